// Package config handles configuration for the bot.
//
// Configuration is loaded from an optional YAML file, then overlaid with
// environment variables (a .env file is honoured by the entry point).
// The two credentials are required; everything else has defaults.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v6"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration
type Config struct {
	Version   int            `yaml:"version"`
	Telegram  TelegramConfig `yaml:"telegram"`
	OpenAI    OpenAIConfig   `yaml:"openai"`
	Assets    AssetsConfig   `yaml:"assets"`
	Logging   LoggingConfig  `yaml:"logging"`
	Languages []Language     `yaml:"languages"`
}

// TelegramConfig configures the Telegram transport
type TelegramConfig struct {
	Token         string `yaml:"token" env:"BOT_TOKEN"`
	UpdateTimeout int    `yaml:"update_timeout" env:"BOT_UPDATE_TIMEOUT"`
}

// OpenAIConfig configures the completion client
type OpenAIConfig struct {
	Token          string        `yaml:"token" env:"OPENAI_API_KEY"`
	Model          string        `yaml:"model" env:"OPENAI_MODEL"`
	RequestTimeout time.Duration `yaml:"request_timeout" env:"OPENAI_REQUEST_TIMEOUT"`
}

// AssetsConfig points at the prompt/message/image directory
type AssetsConfig struct {
	Dir string `yaml:"dir" env:"ASSETS_DIR"`
}

// LoggingConfig configures log output
type LoggingConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL"`
	Format string `yaml:"format" env:"LOG_FORMAT"`
	File   string `yaml:"file" env:"LOG_FILE"`
}

// Language is one entry of the translation language catalog.
// Order matters: the selection grid is rendered in catalog order.
type Language struct {
	Code string `yaml:"code"`
	Name string `yaml:"name"`
}

// Default returns a config with sensible defaults and the built-in
// language catalog. Tokens are left empty and must come from the
// environment or the config file.
func Default() *Config {
	return &Config{
		Version: 1,
		Telegram: TelegramConfig{
			UpdateTimeout: 30,
		},
		OpenAI: OpenAIConfig{
			Model:          "gpt-4o",
			RequestTimeout: 60 * time.Second,
		},
		Assets: AssetsConfig{
			Dir: "resources",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Languages: DefaultLanguages(),
	}
}

// DefaultLanguages returns the built-in language catalog
func DefaultLanguages() []Language {
	return []Language{
		{Code: "en", Name: "🇬🇧 Англійська"},
		{Code: "uk", Name: "🇺🇦 Українська"},
		{Code: "es", Name: "🇪🇸 Іспанська"},
		{Code: "fr", Name: "🇫🇷 Французька"},
		{Code: "de", Name: "🇩🇪 Німецька"},
		{Code: "pl", Name: "🇵🇱 Польська"},
		{Code: "it", Name: "🇮🇹 Італійська"},
	}
}

// Load reads configuration from path (optional), then applies environment
// overrides. An empty path or a missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	if len(cfg.Languages) == 0 {
		cfg.Languages = DefaultLanguages()
	}

	return cfg, nil
}

// Validate checks that the required credentials are present
func (c *Config) Validate() error {
	if c.Telegram.Token == "" {
		return fmt.Errorf("telegram bot token is required (BOT_TOKEN)")
	}
	if c.OpenAI.Token == "" {
		return fmt.Errorf("openai api key is required (OPENAI_API_KEY)")
	}
	return nil
}

// LanguageName returns the display name for a language code,
// or the code itself if it is not in the catalog.
func (c *Config) LanguageName(code string) string {
	for _, l := range c.Languages {
		if l.Code == code {
			return l.Name
		}
	}
	return code
}
