package telegram

import (
	"fmt"
	"sync"
	"time"

	"resonance/pkg/logger"
)

// LoggingMiddleware logs every command with its outcome and timing.
func LoggingMiddleware(log *logger.Logger) CommandMiddleware {
	return func(next CommandHandler) CommandHandler {
		return func(ctx *CommandContext) error {
			start := time.Now()

			log.Infow("Executing command",
				"command", ctx.Command,
				"telegram_id", ctx.TelegramID,
				"has_args", ctx.Args != "",
			)

			err := next(ctx)
			ms := time.Since(start).Milliseconds()

			if err != nil {
				log.Errorw("Command failed",
					"command", ctx.Command,
					"telegram_id", ctx.TelegramID,
					"duration_ms", ms,
					"error", err,
				)
				return err
			}
			log.Debugw("Command completed",
				"command", ctx.Command,
				"telegram_id", ctx.TelegramID,
				"duration_ms", ms,
			)
			return nil
		}
	}
}

// RecoveryMiddleware converts handler panics into a logged error and a
// generic apology to the chat, keeping the update loop alive.
func RecoveryMiddleware(log *logger.Logger) CommandMiddleware {
	return func(next CommandHandler) CommandHandler {
		return func(ctx *CommandContext) (err error) {
			defer func() {
				if r := recover(); r != nil {
					log.Errorw("Command handler panicked",
						"command", ctx.Command,
						"telegram_id", ctx.TelegramID,
						"panic", r,
					)
					err = fmt.Errorf("internal error")
					ctx.Bot.SendMessage(ctx.ChatID, "❌ An unexpected error occurred. Our team has been notified.")
				}
			}()
			return next(ctx)
		}
	}
}

// RateLimitMiddleware caps commands per user with a sliding one-minute
// window. State is in-memory; a multi-instance bot would need Redis.
func RateLimitMiddleware(maxPerMinute int, log *logger.Logger) CommandMiddleware {
	var mu sync.Mutex
	windows := make(map[int64][]time.Time)

	return func(next CommandHandler) CommandHandler {
		return func(ctx *CommandContext) error {
			now := time.Now()
			cutoff := now.Add(-time.Minute)

			mu.Lock()
			recent := windows[ctx.TelegramID][:0]
			for _, ts := range windows[ctx.TelegramID] {
				if ts.After(cutoff) {
					recent = append(recent, ts)
				}
			}

			if len(recent) >= maxPerMinute {
				windows[ctx.TelegramID] = recent
				count := len(recent)
				mu.Unlock()

				log.Warnw("Rate limit exceeded",
					"telegram_id", ctx.TelegramID,
					"command", ctx.Command,
					"requests_count", count,
				)
				return ctx.Bot.SendMessage(ctx.ChatID, "⏱️ Slow down! Please wait a moment before trying again.")
			}

			windows[ctx.TelegramID] = append(recent, now)
			mu.Unlock()

			return next(ctx)
		}
	}
}

// AdminOnlyMiddleware rejects commands from anyone but the allowed chats.
func AdminOnlyMiddleware(allowedIDs ...int64) CommandMiddleware {
	return func(next CommandHandler) CommandHandler {
		return func(ctx *CommandContext) error {
			for _, allowed := range allowedIDs {
				if ctx.TelegramID == allowed {
					return next(ctx)
				}
			}
			return ctx.Bot.SendMessage(ctx.ChatID, "❌ This command requires administrator privileges.")
		}
	}
}
