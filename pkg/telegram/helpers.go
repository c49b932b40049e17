package telegram

import (
	"fmt"
	"strings"
	"time"
)

// MessageBuilder is a fluent way to assemble MessageOptions. Command
// handlers chain the modifiers they need and finish with Send or Build.
type MessageBuilder struct {
	chatID int64
	text   string
	opts   MessageOptions
}

// NewMessage starts a builder; parse mode defaults to Markdown.
func NewMessage(chatID int64, text string) *MessageBuilder {
	return &MessageBuilder{
		chatID: chatID,
		text:   text,
		opts:   MessageOptions{ParseMode: "Markdown"},
	}
}

func (mb *MessageBuilder) WithMarkdown() *MessageBuilder {
	mb.opts.ParseMode = "Markdown"
	return mb
}

func (mb *MessageBuilder) WithHTML() *MessageBuilder {
	mb.opts.ParseMode = "HTML"
	return mb
}

func (mb *MessageBuilder) WithKeyboard(keyboard InlineKeyboardMarkup) *MessageBuilder {
	mb.opts.Keyboard = &keyboard
	return mb
}

func (mb *MessageBuilder) WithButtons(buttons ...[]InlineKeyboardButton) *MessageBuilder {
	keyboard := NewInlineKeyboardMarkup(buttons...)
	mb.opts.Keyboard = &keyboard
	return mb
}

// Silent suppresses the client-side notification sound.
func (mb *MessageBuilder) Silent() *MessageBuilder {
	mb.opts.DisableNotification = true
	return mb
}

// NoPreview disables link previews.
func (mb *MessageBuilder) NoPreview() *MessageBuilder {
	mb.opts.DisableWebPagePreview = true
	return mb
}

func (mb *MessageBuilder) ReplyTo(messageID int) *MessageBuilder {
	mb.opts.ReplyToMessageID = messageID
	return mb
}

// SelfDestruct deletes the message after the given duration.
func (mb *MessageBuilder) SelfDestruct(duration time.Duration) *MessageBuilder {
	mb.opts.SelfDestruct = duration
	return mb
}

// OnSent registers a callback invoked with the delivery result.
func (mb *MessageBuilder) OnSent(callback func(messageID int, err error)) *MessageBuilder {
	mb.opts.OnSent = callback
	return mb
}

// Build returns the accumulated options.
func (mb *MessageBuilder) Build() MessageOptions {
	return mb.opts
}

// Send delivers the built message through the bot.
func (mb *MessageBuilder) Send(bot Bot) (int, error) {
	return bot.SendMessageWithOptions(mb.chatID, mb.text, mb.Build())
}

// Markdown formatting helpers.

func Bold(text string) string   { return fmt.Sprintf("*%s*", text) }
func Italic(text string) string { return fmt.Sprintf("_%s_", text) }
func Code(text string) string   { return fmt.Sprintf("`%s`", text) }

func Link(text, url string) string {
	return fmt.Sprintf("[%s](%s)", text, url)
}

var markdownEscaper = func() *strings.Replacer {
	const reserved = "_*[]()~`>#+-=|{}.!"
	pairs := make([]string, 0, 2*len(reserved))
	for _, ch := range reserved {
		pairs = append(pairs, string(ch), `\`+string(ch))
	}
	return strings.NewReplacer(pairs...)
}()

// Escape escapes Markdown-reserved characters.
func Escape(text string) string {
	return markdownEscaper.Replace(text)
}

// SafeText strips invalid UTF-8 and escapes the result, making
// arbitrary upstream text safe to interpolate into a message.
func SafeText(text string) string {
	return Escape(strings.ToValidUTF8(text, ""))
}
