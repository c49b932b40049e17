// Package tgbotapi adapts github.com/go-telegram-bot-api to the
// transport-agnostic telegram.Bot interface the rest of the service
// programs against.
package tgbotapi

import (
	"context"
	"net/http"
	"sync"
	"time"

	api "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"

	"resonance/pkg/errors"
	"resonance/pkg/logger"
	"resonance/pkg/telegram"
)

// Config holds bot transport settings. Zero values get defaults suited
// for a single admin chat.
type Config struct {
	Token          string
	Debug          bool
	Timeout        int // long-poll timeout in seconds
	BufferSize     int // update channel buffer
	HTTPTimeout    time.Duration
	RateLimitBurst int // default 30
	RateLimitRate  int // messages per second, default 20
}

func (c *Config) applyDefaults() {
	if c.Timeout == 0 {
		c.Timeout = 60
	}
	if c.BufferSize == 0 {
		c.BufferSize = 100
	}
	if c.HTTPTimeout == 0 {
		c.HTTPTimeout = 30 * time.Second
	}
	if c.RateLimitBurst == 0 {
		c.RateLimitBurst = 30
	}
	if c.RateLimitRate == 0 {
		c.RateLimitRate = 20
	}
}

// Bot is the tgbotapi-backed implementation of telegram.Bot. Outbound
// sends go through a shared rate limiter so notification bursts stay
// inside Telegram's per-bot limits.
type Bot struct {
	client  *api.BotAPI
	limiter *rate.Limiter
	queue   *telegram.AsyncMessageQueue
	log     *logger.Logger

	pollTimeout int

	mu      sync.RWMutex
	running bool
	handler func(telegram.Update)
}

var _ telegram.Bot = (*Bot)(nil)

// NewBot authorizes against the Telegram API and builds the adapter.
func NewBot(cfg Config, log *logger.Logger) (*Bot, error) {
	if cfg.Token == "" {
		return nil, errors.Wrap(errors.ErrInvalidInput, "telegram bot token is required")
	}
	cfg.applyDefaults()

	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	client, err := api.NewBotAPIWithClient(cfg.Token, api.APIEndpoint, httpClient)
	if err != nil {
		return nil, errors.Wrap(err, "telegram authorization failed")
	}
	client.Debug = cfg.Debug

	log.Infof("Authorized on account %s", client.Self.UserName)

	b := &Bot{
		client:      client,
		limiter:     rate.NewLimiter(rate.Limit(cfg.RateLimitRate), cfg.RateLimitBurst),
		log:         log.With("component", "telegram_bot"),
		pollTimeout: cfg.Timeout,
	}
	b.queue = telegram.NewAsyncMessageQueue(b, 5, 50*time.Millisecond, log)

	return b, nil
}

// Start long-polls for updates until ctx is cancelled, dispatching each
// update to the registered handler on its own goroutine.
func (b *Bot) Start(ctx context.Context) error {
	b.mu.Lock()
	if b.running {
		b.mu.Unlock()
		return errors.New("bot already running")
	}
	b.running = true
	b.mu.Unlock()

	b.queue.Start()
	defer b.queue.Stop()

	poll := api.NewUpdate(0)
	poll.Timeout = b.pollTimeout
	updates := b.client.GetUpdatesChan(poll)

	b.log.Info("Polling for updates")

	for {
		select {
		case <-ctx.Done():
			b.Stop()
			return ctx.Err()
		case upd := <-updates:
			b.mu.RLock()
			handler := b.handler
			b.mu.RUnlock()
			if handler != nil {
				go handler(toUpdate(upd))
			}
		}
	}
}

// Stop ends the polling loop.
func (b *Bot) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.running {
		return
	}
	b.client.StopReceivingUpdates()
	b.running = false
	b.log.Info("Bot stopped")
}

// SetHandler registers the update handler.
func (b *Bot) SetHandler(handler func(telegram.Update)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handler = handler
}

// IsRunning reports whether the polling loop is active.
func (b *Bot) IsRunning() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.running
}

// send rate-limits and dispatches one outbound message.
func (b *Bot) send(msg api.Chattable) (api.Message, error) {
	if err := b.limiter.Wait(context.Background()); err != nil {
		return api.Message{}, errors.Wrap(err, "telegram rate limiter")
	}
	return b.client.Send(msg)
}

// scheduleDelete removes a message after the given delay.
func (b *Bot) scheduleDelete(chatID int64, messageID int, after time.Duration) {
	go func() {
		time.Sleep(after)
		_ = b.DeleteMessage(chatID, messageID)
	}()
}

// SendMessage sends Markdown text, blocking until accepted.
func (b *Bot) SendMessage(chatID int64, text string) error {
	msg := api.NewMessage(chatID, text)
	msg.ParseMode = "Markdown"

	if _, err := b.send(msg); err != nil {
		b.log.Errorw("Failed to send message", "chat_id", chatID, "error", err)
		return errors.Wrap(err, "send telegram message")
	}
	return nil
}

// SendMessageAsync sends without blocking; the callback receives the sent
// message id or the error.
func (b *Bot) SendMessageAsync(chatID int64, text string, callback func(messageID int, err error)) {
	go func() {
		msg := api.NewMessage(chatID, text)
		msg.ParseMode = "Markdown"

		sent, err := b.send(msg)
		if callback == nil {
			return
		}
		if err != nil {
			callback(0, err)
			return
		}
		callback(sent.MessageID, nil)
	}()
}

// SendMessageWithKeyboard sends text with an inline keyboard.
func (b *Bot) SendMessageWithKeyboard(chatID int64, text string, keyboard telegram.InlineKeyboardMarkup) error {
	msg := api.NewMessage(chatID, text)
	msg.ParseMode = "Markdown"
	msg.ReplyMarkup = toAPIKeyboard(keyboard)

	if _, err := b.send(msg); err != nil {
		b.log.Errorw("Failed to send message with keyboard", "chat_id", chatID, "error", err)
		return errors.Wrap(err, "send telegram message")
	}
	return nil
}

// SendMessageWithOptions sends with full option control and returns the
// message id.
func (b *Bot) SendMessageWithOptions(chatID int64, text string, opts telegram.MessageOptions) (int, error) {
	msg := api.NewMessage(chatID, text)

	msg.ParseMode = "Markdown"
	if opts.ParseMode != "" {
		msg.ParseMode = opts.ParseMode
	}
	msg.DisableWebPagePreview = opts.DisableWebPagePreview
	msg.DisableNotification = opts.DisableNotification
	if opts.ReplyToMessageID > 0 {
		msg.ReplyToMessageID = opts.ReplyToMessageID
	}
	if opts.Keyboard != nil {
		msg.ReplyMarkup = toAPIKeyboard(*opts.Keyboard)
	}

	sent, err := b.send(msg)
	if err != nil {
		b.log.Errorw("Failed to send message with options", "chat_id", chatID, "error", err)
		return 0, errors.Wrap(err, "send telegram message")
	}

	if opts.SelfDestruct > 0 {
		b.scheduleDelete(chatID, sent.MessageID, opts.SelfDestruct)
	}
	if opts.OnSent != nil {
		go opts.OnSent(sent.MessageID, nil)
	}

	return sent.MessageID, nil
}

// EditMessage replaces an existing message's text and keyboard.
func (b *Bot) EditMessage(chatID int64, messageID int, text string, keyboard *telegram.InlineKeyboardMarkup) error {
	edit := api.NewEditMessageText(chatID, messageID, text)
	edit.ParseMode = "Markdown"
	if keyboard != nil {
		kb := toAPIKeyboard(*keyboard)
		edit.ReplyMarkup = &kb
	}

	if _, err := b.send(edit); err != nil {
		b.log.Debugw("Failed to edit message", "chat_id", chatID, "message_id", messageID, "error", err)
		return errors.Wrap(err, "edit telegram message")
	}
	return nil
}

// DeleteMessage removes a message.
func (b *Bot) DeleteMessage(chatID int64, messageID int) error {
	if _, err := b.client.Request(api.NewDeleteMessage(chatID, messageID)); err != nil {
		b.log.Debugw("Failed to delete message", "chat_id", chatID, "message_id", messageID, "error", err)
		return errors.Wrap(err, "delete telegram message")
	}
	return nil
}

// DeleteMessageAsync removes a message in the background; reason is
// logged on failure.
func (b *Bot) DeleteMessageAsync(chatID int64, messageID int, reason string) {
	go func() {
		if _, err := b.client.Request(api.NewDeleteMessage(chatID, messageID)); err != nil {
			b.log.Debugw("Failed to delete message",
				"chat_id", chatID, "message_id", messageID, "reason", reason, "error", err)
		}
	}()
}

// SendTemporaryMessage sends text that self-deletes after the duration.
func (b *Bot) SendTemporaryMessage(chatID int64, text string, duration time.Duration) error {
	msg := api.NewMessage(chatID, text)
	msg.ParseMode = "Markdown"

	sent, err := b.send(msg)
	if err != nil {
		return errors.Wrap(err, "send temporary message")
	}

	b.scheduleDelete(chatID, sent.MessageID, duration)
	return nil
}

// AnswerCallback acknowledges a callback query.
func (b *Bot) AnswerCallback(callbackQueryID string, text string, showAlert bool) error {
	callback := api.NewCallback(callbackQueryID, text)
	callback.ShowAlert = showAlert

	if _, err := b.client.Request(callback); err != nil {
		b.log.Errorw("Failed to answer callback", "callback_id", callbackQueryID, "error", err)
		return errors.Wrap(err, "answer callback query")
	}
	return nil
}

// SendTyping shows the typing indicator in a chat.
func (b *Bot) SendTyping(chatID int64) error {
	_, err := b.client.Send(api.NewChatAction(chatID, api.ChatTyping))
	return err
}

// toUpdate maps the wire update onto the transport-agnostic shape.
func toUpdate(u api.Update) telegram.Update {
	out := telegram.Update{UpdateID: u.UpdateID}
	if u.Message != nil {
		out.Message = toMessage(u.Message)
	}
	if u.CallbackQuery != nil {
		out.CallbackQuery = toCallbackQuery(u.CallbackQuery)
	}
	return out
}

func toMessage(m *api.Message) *telegram.Message {
	msg := &telegram.Message{
		MessageID: m.MessageID,
		Text:      m.Text,
		IsCommand: m.IsCommand(),
	}
	if m.From != nil {
		msg.From = toUser(m.From)
	}
	if m.Chat != nil {
		msg.Chat = toChat(m.Chat)
	}
	if msg.IsCommand {
		msg.Command = m.Command()
		msg.Arguments = m.CommandArguments()
	}
	if m.ReplyToMessage != nil {
		msg.ReplyTo = toMessage(m.ReplyToMessage)
	}
	return msg
}

func toCallbackQuery(c *api.CallbackQuery) *telegram.CallbackQuery {
	out := &telegram.CallbackQuery{ID: c.ID, Data: c.Data}
	if c.From != nil {
		out.From = toUser(c.From)
	}
	if c.Message != nil {
		out.Message = toMessage(c.Message)
	}
	return out
}

func toUser(u *api.User) *telegram.User {
	return &telegram.User{
		ID:        u.ID,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Username:  u.UserName,
		IsBot:     u.IsBot,
	}
}

func toChat(c *api.Chat) *telegram.Chat {
	return &telegram.Chat{
		ID:       c.ID,
		Type:     c.Type,
		Title:    c.Title,
		Username: c.UserName,
	}
}

func toAPIKeyboard(kb telegram.InlineKeyboardMarkup) api.InlineKeyboardMarkup {
	rows := make([][]api.InlineKeyboardButton, 0, len(kb.InlineKeyboard))
	for _, row := range kb.InlineKeyboard {
		buttons := make([]api.InlineKeyboardButton, 0, len(row))
		for _, btn := range row {
			out := api.InlineKeyboardButton{Text: btn.Text}
			if btn.CallbackData != "" {
				data := btn.CallbackData
				out.CallbackData = &data
			}
			if btn.URL != "" {
				url := btn.URL
				out.URL = &url
			}
			buttons = append(buttons, out)
		}
		rows = append(rows, buttons)
	}
	return api.InlineKeyboardMarkup{InlineKeyboard: rows}
}
