// Zapytai - a Telegram assistant bot backed by ChatGPT
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/okravets/zapytai/internal/assets"
	"github.com/okravets/zapytai/internal/completion"
	"github.com/okravets/zapytai/internal/config"
	"github.com/okravets/zapytai/internal/dispatcher"
	"github.com/okravets/zapytai/internal/logging"
	"github.com/okravets/zapytai/internal/persona"
	"github.com/okravets/zapytai/internal/session"
	"github.com/okravets/zapytai/internal/telegram"
)

var (
	version   = "1.0.0"
	buildTime = "unknown"
)

func main() {
	configPath := flag.String("config", "", "Path to config file")
	showVersion := flag.Bool("version", false, "Show version")
	flag.Parse()

	if *showVersion {
		fmt.Printf("Zapytai v%s (built %s)\n", version, buildTime)
		os.Exit(0)
	}

	// A .env file is optional; real environments set variables directly
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewWithConfig(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.File)
	defer logger.Close()
	logger.Info("Starting Zapytai", "version", version)

	if err := cfg.Validate(); err != nil {
		logger.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("Bot error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *logging.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("Shutting down...")
		cancel()
	}()

	// Asset keys are fixed by the dispatcher's branches; a missing one is
	// a deployment error, caught here rather than mid-conversation.
	library := assets.New(cfg.Assets.Dir)
	if err := library.Verify(dispatcher.RequiredPrompts(), dispatcher.RequiredMessages()); err != nil {
		return fmt.Errorf("asset verification failed: %w", err)
	}

	adapter, err := telegram.New(cfg.Telegram, logger.Logger)
	if err != nil {
		return err
	}

	// The breaker keeps a dead OpenAI backend from stalling every chat:
	// after repeated failures requests are rejected immediately and the
	// flows degrade to their apology messages.
	breakerCfg := completion.DefaultBreakerConfig()
	breakerCfg.OnStateChange = func(from, to completion.BreakerState) {
		logger.Warn("Completion circuit state changed", "from", from.String(), "to", to.String())
	}
	client := completion.NewBreaker(completion.NewOpenAI(cfg.OpenAI), breakerCfg)

	disp := dispatcher.New(dispatcher.Config{
		Sessions:  session.NewStore(),
		Client:    client,
		Assets:    library,
		Personas:  persona.NewManager(),
		Transport: adapter,
		Logger:    logger,
		Languages: cfg.Languages,
	})
	adapter.SetHandler(disp)

	if err := adapter.SetCommands(dispatcher.MenuCommands()); err != nil {
		logger.Warn("Failed to publish command menu", "error", err)
	}

	return adapter.Run(ctx)
}
