package telegram

import (
	"context"

	"resonance/pkg/logger"
	"resonance/pkg/telegram"
)

// Handler routes incoming Telegram updates to the command registry.
// The bot serves a single ops chat, so there is no user registry; admin
// checks happen in command middleware against the configured chat ID.
type Handler struct {
	bot             telegram.Bot
	commandRegistry *telegram.CommandRegistry
	log             *logger.Logger
}

func NewHandler(
	bot telegram.Bot,
	commandRegistry *telegram.CommandRegistry,
	log *logger.Logger,
) *Handler {
	return &Handler{
		bot:             bot,
		commandRegistry: commandRegistry,
		log:             log.With("component", "telegram_handler"),
	}
}

// HandleUpdate is the entry point installed on the bot.
func (h *Handler) HandleUpdate(update telegram.Update) {
	switch {
	case update.HasCallback():
		h.handleCallback(update.CallbackQuery)
	case update.HasMessage():
		if err := h.handleMessage(context.Background(), update.Message); err != nil {
			h.log.Errorw("Failed to handle message",
				"message_id", update.Message.MessageID,
				"error", err,
			)
		}
	}
}

// handleCallback acknowledges stray callback queries so the client
// stops its loading spinner. No inline keyboards are wired yet.
func (h *Handler) handleCallback(cb *telegram.CallbackQuery) {
	if err := h.bot.AnswerCallback(cb.ID, "", false); err != nil {
		h.log.Errorw("Failed to answer callback",
			"callback_id", cb.ID,
			"error", err,
		)
	}
}

func (h *Handler) handleMessage(ctx context.Context, msg *telegram.Message) error {
	if msg.From == nil {
		return nil
	}

	h.log.Debugw("Processing message",
		"telegram_id", msg.From.ID,
		"username", msg.From.Username,
		"text", msg.Text,
	)

	if !msg.IsCommand {
		h.log.Debugw("Received non-command message",
			"telegram_id", msg.From.ID,
			"text_length", len(msg.Text),
		)
		_ = h.bot.SendMessage(msg.Chat.ID, "I don't understand that message. Use /help to see available commands.")
		return nil
	}

	h.log.Debugw("Routing command",
		"telegram_id", msg.From.ID,
		"command", msg.Command,
		"has_args", msg.Arguments != "",
	)

	return h.commandRegistry.Handle(ctx, msg.From, msg.From.ID, msg.Chat.ID, msg.Command, msg.Arguments, msg.Text)
}
