// Package logger provides structured logging for the bot using log/slog,
// plus a Telegram middleware that traces update processing.
package logger

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// NewLogger creates a new slog Logger with the specified level and format.
// If jsonOutput is true, logs will be formatted as JSON, otherwise as text.
func NewLogger(levelStr string, jsonOutput bool) *slog.Logger {
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if jsonOutput {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}

// Middleware creates a logging middleware for the Telegram bot. It logs the
// update type, identities, and processing duration for every update.
func Middleware(log *slog.Logger) bot.Middleware {
	return func(next bot.HandlerFunc) bot.HandlerFunc {
		return func(ctx context.Context, b *bot.Bot, update *models.Update) {
			startTime := time.Now()

			logEntry := log.With("update_id", update.ID)

			var updateType string
			switch {
			case update.BusinessConnection != nil:
				updateType = "business_connection"
				logEntry = logEntry.With(
					"connection_id", update.BusinessConnection.ID,
					"user_id", update.BusinessConnection.User.ID,
					"enabled", update.BusinessConnection.IsEnabled,
				)
			case update.BusinessMessage != nil:
				updateType = "business_message"
				logEntry = logEntry.With(
					"message_id", update.BusinessMessage.ID,
					"chat_id", update.BusinessMessage.Chat.ID,
				)
			case update.EditedBusinessMessage != nil:
				updateType = "edited_business_message"
				logEntry = logEntry.With(
					"message_id", update.EditedBusinessMessage.ID,
					"chat_id", update.EditedBusinessMessage.Chat.ID,
				)
			case update.DeletedBusinessMessages != nil:
				updateType = "deleted_business_messages"
				logEntry = logEntry.With(
					"chat_id", update.DeletedBusinessMessages.Chat.ID,
					"count", len(update.DeletedBusinessMessages.MessageIDs),
				)
			case update.Message != nil:
				updateType = "message"
				logEntry = logEntry.With(
					"message_id", update.Message.ID,
					"chat_id", update.Message.Chat.ID,
					"text_preview", truncateString(update.Message.Text, 50),
				)
				if update.Message.From != nil {
					logEntry = logEntry.With("user_id", update.Message.From.ID)
				}
			case update.CallbackQuery != nil:
				updateType = "callback_query"
				logEntry = logEntry.With(
					"callback_query_id", update.CallbackQuery.ID,
					"user_id", update.CallbackQuery.From.ID,
					"data", update.CallbackQuery.Data,
				)
			default:
				updateType = "other"
			}
			logEntry = logEntry.With("update_type", updateType)

			logEntry.DebugContext(ctx, "Processing update")

			next(ctx, b, update)

			logEntry.DebugContext(ctx, "Finished processing update", "duration", time.Since(startTime))
		}
	}
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return "..."
	}
	return s[:maxLen-3] + "..."
}
