package handlers

import (
	"context"
	"fmt"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// NewBackupHandler returns the handler for the /backup command. It shows the
// audit summary and asks for confirmation before draining the store.
func NewBackupHandler(deps HandlerDeps) bot.HandlerFunc {
	return backupHandler{deps}.Handle
}

type backupHandler struct {
	deps HandlerDeps
}

func (h backupHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "backup")

	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID

	stats, err := h.deps.Store.BackupStats(ctx)
	if err != nil {
		log.ErrorContext(ctx, "Failed to read backup stats", "error", err)
		return
	}
	pending, err := h.deps.Store.CountMessages(ctx, 0)
	if err != nil {
		log.ErrorContext(ctx, "Failed to count pending messages", "error", err)
		return
	}

	lastSuccess := "never"
	if stats.HasLastSuccess {
		lastSuccess = h.deps.Renderer.FullTime(stats.LastSuccessTime)
	}
	text := fmt.Sprintf(
		"Backup status\n\nPending messages: %d\nCycles recorded: %d (%d successful)\nMessages archived: %d\nLast success: %s\n\nRun a backup cycle now?",
		pending, stats.TotalCycles, stats.SuccessCycles, stats.MessagesArchived, lastSuccess,
	)

	_, err = b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: chatID,
		Text:   text,
		ReplyMarkup: &models.InlineKeyboardMarkup{
			InlineKeyboard: [][]models.InlineKeyboardButton{{
				{Text: "Run now", CallbackData: "backup_confirm"},
				{Text: "Cancel", CallbackData: "backup_cancel"},
			}},
		},
	})
	if err != nil {
		log.ErrorContext(ctx, "Failed to send backup menu", "error", err)
	}
}

// NewBackupConfirmHandler returns the callback handler that runs a manual
// backup cycle. The rolling timer is untouched.
func NewBackupConfirmHandler(deps HandlerDeps) bot.HandlerFunc {
	return backupConfirmHandler{deps}.Handle
}

type backupConfirmHandler struct {
	deps HandlerDeps
}

func (h backupConfirmHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "backup_confirm")

	if update.CallbackQuery == nil {
		return
	}
	query := update.CallbackQuery

	_, err := b.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{CallbackQueryID: query.ID})
	if err != nil {
		log.WarnContext(ctx, "Failed to answer callback query", "error", err)
	}
	if query.Message.Message == nil {
		return
	}
	chatID := query.Message.Message.Chat.ID
	messageID := query.Message.Message.ID

	_, err = b.EditMessageText(ctx, &bot.EditMessageTextParams{
		ChatID: chatID, MessageID: messageID, Text: "Running backup cycle...",
	})
	if err != nil {
		log.WarnContext(ctx, "Failed to edit backup message", "error", err)
	}

	result, err := h.deps.Backup.TriggerManual(ctx)
	var text string
	if err != nil {
		log.ErrorContext(ctx, "Manual backup failed", "error", err)
		text = "Backup cycle failed, see logs."
	} else {
		text = fmt.Sprintf("Backup cycle finished: %d messages archived (status: %s).", result.Archived, result.Status)
	}

	_, err = b.EditMessageText(ctx, &bot.EditMessageTextParams{ChatID: chatID, MessageID: messageID, Text: text})
	if err != nil {
		log.ErrorContext(ctx, "Failed to report backup result", "error", err)
	}
}

// NewBackupCancelHandler returns the callback handler that dismisses the
// backup confirmation.
func NewBackupCancelHandler(deps HandlerDeps) bot.HandlerFunc {
	return backupCancelHandler{deps}.Handle
}

type backupCancelHandler struct {
	deps HandlerDeps
}

func (h backupCancelHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "backup_cancel")

	if update.CallbackQuery == nil {
		return
	}
	query := update.CallbackQuery

	_, err := b.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{CallbackQueryID: query.ID})
	if err != nil {
		log.WarnContext(ctx, "Failed to answer callback query", "error", err)
	}
	if query.Message.Message == nil {
		return
	}
	_, err = b.EditMessageText(ctx, &bot.EditMessageTextParams{
		ChatID:    query.Message.Message.Chat.ID,
		MessageID: query.Message.Message.ID,
		Text:      "Backup cancelled.",
	})
	if err != nil {
		log.ErrorContext(ctx, "Failed to edit backup message", "error", err)
	}
}
