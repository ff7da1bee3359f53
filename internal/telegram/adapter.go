// Package telegram provides the Telegram transport adapter
package telegram

import (
	"fmt"
	"log/slog"
	"sync"

	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/okravets/zapytai/internal/config"
	"github.com/okravets/zapytai/internal/dispatcher"
)

// Handler processes inbound events. Implemented by the dispatcher.
type Handler interface {
	HandleCommand(ctx context.Context, chatID int64, command string)
	HandleText(ctx context.Context, chatID int64, text string)
	HandleCallback(ctx context.Context, chatID int64, messageID int, data string)
}

// Adapter connects the dispatcher to the Telegram Bot API. It implements
// dispatcher.Transport for outbound messages and fans inbound updates out
// to per-chat serial queues: one chat's updates are handled in arrival
// order while different chats proceed concurrently.
type Adapter struct {
	cfg     config.TelegramConfig
	api     *tgbotapi.BotAPI
	handler Handler
	logger  *slog.Logger

	queues map[int64]chan func()
	mu     sync.Mutex

	running bool
	done    chan struct{}
}

// queueSize bounds the per-chat update backlog
const queueSize = 16

// New creates an adapter and authorizes against the Bot API
func New(cfg config.TelegramConfig, logger *slog.Logger) (*Adapter, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Token == "" {
		return nil, fmt.Errorf("telegram bot token is required")
	}

	api, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to authorize bot: %w", err)
	}

	return &Adapter{
		cfg:    cfg,
		api:    api,
		logger: logger.With("channel", "telegram"),
		queues: make(map[int64]chan func()),
		done:   make(chan struct{}),
	}, nil
}

// SetHandler registers the inbound event handler. Must be called before Run.
func (a *Adapter) SetHandler(h Handler) {
	a.handler = h
}

// Run receives updates until the context is cancelled
func (a *Adapter) Run(ctx context.Context) error {
	if a.handler == nil {
		return fmt.Errorf("no handler registered")
	}

	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return fmt.Errorf("adapter already running")
	}
	a.running = true
	a.mu.Unlock()

	u := tgbotapi.NewUpdate(0)
	u.Timeout = a.cfg.UpdateTimeout

	updates := a.api.GetUpdatesChan(u)
	a.logger.Info("Telegram adapter started", "bot", a.api.Self.UserName)

	for {
		select {
		case <-ctx.Done():
			a.api.StopReceivingUpdates()
			close(a.done)
			a.logger.Info("Telegram adapter stopped")
			return nil
		case update, ok := <-updates:
			if !ok {
				close(a.done)
				return nil
			}
			a.routeUpdate(ctx, update)
		}
	}
}

// routeUpdate pushes an update onto its chat's serial queue
func (a *Adapter) routeUpdate(ctx context.Context, update tgbotapi.Update) {
	chatID, ok := updateChatID(update)
	if !ok {
		return
	}
	a.enqueue(chatID, func() {
		a.handleUpdate(ctx, update)
	})
}

// updateChatID extracts the chat an update belongs to
func updateChatID(update tgbotapi.Update) (int64, bool) {
	switch {
	case update.CallbackQuery != nil && update.CallbackQuery.Message != nil:
		return update.CallbackQuery.Message.Chat.ID, true
	case update.Message != nil:
		return update.Message.Chat.ID, true
	default:
		return 0, false
	}
}

// enqueue dispatches a job to the chat's worker, creating it lazily.
// Workers are never reaped; like sessions, they are abandoned when the
// user stops interacting.
func (a *Adapter) enqueue(chatID int64, job func()) {
	a.mu.Lock()
	q, ok := a.queues[chatID]
	if !ok {
		q = make(chan func(), queueSize)
		a.queues[chatID] = q
		go a.drain(q)
	}
	a.mu.Unlock()

	select {
	case q <- job:
	default:
		a.logger.Warn("Chat queue full, dropping update", "chat_id", chatID)
	}
}

// drain runs one chat's jobs in order
func (a *Adapter) drain(q chan func()) {
	for {
		select {
		case <-a.done:
			return
		case job := <-q:
			job()
		}
	}
}

// handleUpdate maps one Telegram update to a dispatcher event
func (a *Adapter) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		cq := update.CallbackQuery
		// Acknowledge the click so the client stops its spinner
		if _, err := a.api.Request(tgbotapi.NewCallback(cq.ID, "")); err != nil {
			a.logger.Warn("Failed to answer callback", "error", err)
		}
		a.handler.HandleCallback(ctx, cq.Message.Chat.ID, cq.Message.MessageID, cq.Data)

	case update.Message != nil && update.Message.IsCommand():
		a.handler.HandleCommand(ctx, update.Message.Chat.ID, update.Message.Command())

	case update.Message != nil && update.Message.Text != "":
		a.handler.HandleText(ctx, update.Message.Chat.ID, update.Message.Text)
	}
}

// -----------------------------------------------------------------------------
// dispatcher.Transport implementation
// -----------------------------------------------------------------------------

// Send delivers a message and returns its message ID
func (a *Adapter) Send(chatID int64, msg *dispatcher.Outbound) (int, error) {
	m := tgbotapi.NewMessage(chatID, msg.Text)
	if msg.Format == dispatcher.FormatMarkdown {
		m.ParseMode = tgbotapi.ModeMarkdown
	}
	if len(msg.Buttons) > 0 {
		m.ReplyMarkup = buildKeyboard(msg.Buttons)
	}

	sent, err := a.api.Send(m)
	if err != nil {
		return 0, fmt.Errorf("failed to send message: %w", err)
	}
	return sent.MessageID, nil
}

// Edit replaces a message's text (and buttons) in place
func (a *Adapter) Edit(chatID int64, messageID int, msg *dispatcher.Outbound) error {
	edit := tgbotapi.NewEditMessageText(chatID, messageID, msg.Text)
	if msg.Format == dispatcher.FormatMarkdown {
		edit.ParseMode = tgbotapi.ModeMarkdown
	}
	if len(msg.Buttons) > 0 {
		markup := buildKeyboard(msg.Buttons)
		edit.ReplyMarkup = &markup
	}

	if _, err := a.api.Send(edit); err != nil {
		return fmt.Errorf("failed to edit message: %w", err)
	}
	return nil
}

// Delete removes a message
func (a *Adapter) Delete(chatID int64, messageID int) error {
	if _, err := a.api.Request(tgbotapi.NewDeleteMessage(chatID, messageID)); err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}
	return nil
}

// SendImage sends a named image as a photo
func (a *Adapter) SendImage(chatID int64, name string, data []byte) error {
	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{
		Name:  name + ".jpg",
		Bytes: data,
	})
	if _, err := a.api.Send(photo); err != nil {
		return fmt.Errorf("failed to send image %q: %w", name, err)
	}
	return nil
}

// SetCommands publishes the bot command menu
func (a *Adapter) SetCommands(commands []dispatcher.Command) error {
	botCommands := make([]tgbotapi.BotCommand, 0, len(commands))
	for _, c := range commands {
		botCommands = append(botCommands, tgbotapi.BotCommand{
			Command:     c.Name,
			Description: c.Description,
		})
	}

	if _, err := a.api.Request(tgbotapi.NewSetMyCommands(botCommands...)); err != nil {
		return fmt.Errorf("failed to set commands: %w", err)
	}
	return nil
}

// buildKeyboard converts button rows to an inline keyboard
func buildKeyboard(rows [][]dispatcher.Button) tgbotapi.InlineKeyboardMarkup {
	keyboard := make([][]tgbotapi.InlineKeyboardButton, 0, len(rows))
	for _, row := range rows {
		line := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, btn := range row {
			line = append(line, tgbotapi.NewInlineKeyboardButtonData(btn.Label, btn.ID))
		}
		keyboard = append(keyboard, line)
	}
	return tgbotapi.InlineKeyboardMarkup{InlineKeyboard: keyboard}
}
