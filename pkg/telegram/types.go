package telegram

import (
	"context"
	"time"
)

// Bot is the transport-agnostic bot surface. The command registry and
// notification service depend on it; the tgbotapi adapter implements it.
type Bot interface {
	// Start runs the polling loop until ctx is cancelled.
	Start(ctx context.Context) error

	Stop()

	// SetHandler installs the update handler.
	SetHandler(handler func(Update))

	// SendMessage delivers a text message, blocking until sent.
	SendMessage(chatID int64, text string) error

	// SendMessageAsync enqueues a message; callback receives the result.
	SendMessageAsync(chatID int64, text string, callback func(messageID int, err error))

	// SendMessageWithKeyboard delivers a message with inline buttons.
	SendMessageWithKeyboard(chatID int64, text string, keyboard InlineKeyboardMarkup) error

	// SendMessageWithOptions delivers with full options and returns the
	// message ID.
	SendMessageWithOptions(chatID int64, text string, opts MessageOptions) (int, error)

	// EditMessage replaces text and keyboard of an existing message.
	EditMessage(chatID int64, messageID int, text string, keyboard *InlineKeyboardMarkup) error

	DeleteMessage(chatID int64, messageID int) error

	// DeleteMessageAsync deletes without blocking; reason is logged.
	DeleteMessageAsync(chatID int64, messageID int, reason string)

	// SendTemporaryMessage delivers a message that self-deletes.
	SendTemporaryMessage(chatID int64, text string, duration time.Duration) error

	// AnswerCallback acknowledges an inline button press.
	AnswerCallback(callbackQueryID string, text string, showAlert bool) error
}

// MessageOptions carries everything beyond chat and text.
type MessageOptions struct {
	Keyboard *InlineKeyboardMarkup

	// ParseMode is Markdown, MarkdownV2 or HTML.
	ParseMode string

	DisableWebPagePreview bool
	DisableNotification   bool
	ReplyToMessageID      int

	// SelfDestruct deletes the message after this duration; zero keeps it.
	SelfDestruct time.Duration

	// OnSent is invoked with the delivery result when sending async.
	OnSent func(messageID int, err error)
}

// TemplateRenderer renders a notification template with data.
type TemplateRenderer interface {
	Render(templatePath string, data interface{}) (string, error)
}

// ValidationError marks a user-facing input problem; the registry
// reports it to the chat instead of the error tracker.
type ValidationError struct {
	Field   string
	Message string
}

func (v ValidationError) Error() string { return v.Message }
