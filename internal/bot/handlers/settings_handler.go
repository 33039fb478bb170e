package handlers

import (
	"context"
	"fmt"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// NewSettingsHandler returns the handler for the /settings command. Only
// connected owners have settings to manage.
func NewSettingsHandler(deps HandlerDeps) bot.HandlerFunc {
	return settingsHandler{deps}.Handle
}

type settingsHandler struct {
	deps HandlerDeps
}

func (h settingsHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "settings")

	if update.Message == nil || update.Message.From == nil {
		return
	}
	chatID := update.Message.Chat.ID

	owner, err := h.deps.Store.GetOwnerByUserID(ctx, update.Message.From.ID)
	if err != nil {
		log.ErrorContext(ctx, "Failed to look up owner", "error", err, "user_id", update.Message.From.ID)
		return
	}
	if owner == nil {
		_, err := b.SendMessage(ctx, &bot.SendMessageParams{
			ChatID: chatID,
			Text:   "No business connection found. Connect the bot in your Telegram Business settings first.",
		})
		if err != nil {
			log.ErrorContext(ctx, "Failed to send settings reply", "error", err)
		}
		return
	}

	_, err = b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:      chatID,
		Text:        settingsText(owner.NotifyOnEdit),
		ReplyMarkup: settingsKeyboard(owner.NotifyOnEdit),
	})
	if err != nil {
		log.ErrorContext(ctx, "Failed to send settings menu", "error", err)
	}
}

func settingsText(notifyOnEdit bool) string {
	state := "off"
	if notifyOnEdit {
		state = "on"
	}
	return fmt.Sprintf("Settings\n\nNotifications for your own edits and deletions: %s", state)
}

func settingsKeyboard(notifyOnEdit bool) *models.InlineKeyboardMarkup {
	label := "Enable own-message notifications"
	if notifyOnEdit {
		label = "Disable own-message notifications"
	}
	return &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{
			{{Text: label, CallbackData: "settings_toggle_edit"}},
		},
	}
}

// NewSettingsToggleHandler returns the callback handler that flips the
// owner's notify-on-edit preference.
func NewSettingsToggleHandler(deps HandlerDeps) bot.HandlerFunc {
	return settingsToggleHandler{deps}.Handle
}

type settingsToggleHandler struct {
	deps HandlerDeps
}

func (h settingsToggleHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "settings_toggle")

	if update.CallbackQuery == nil {
		return
	}
	query := update.CallbackQuery

	defer func() {
		_, err := b.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{CallbackQueryID: query.ID})
		if err != nil {
			log.WarnContext(ctx, "Failed to answer callback query", "error", err)
		}
	}()

	owner, err := h.deps.Store.GetOwnerByUserID(ctx, query.From.ID)
	if err != nil || owner == nil {
		log.WarnContext(ctx, "Settings toggle without owner record", "user_id", query.From.ID, "error", err)
		return
	}

	next := !owner.NotifyOnEdit
	if _, err := h.deps.Store.SetOwnerNotifyOnEdit(ctx, owner.UserID, next); err != nil {
		log.ErrorContext(ctx, "Failed to update notification preference", "error", err)
		return
	}
	log.InfoContext(ctx, "Notification preference changed", "user_id", owner.UserID, "notify_on_edit", next)

	if query.Message.Message == nil {
		return
	}
	_, err = b.EditMessageText(ctx, &bot.EditMessageTextParams{
		ChatID:      query.Message.Message.Chat.ID,
		MessageID:   query.Message.Message.ID,
		Text:        settingsText(next),
		ReplyMarkup: settingsKeyboard(next),
	})
	if err != nil {
		log.ErrorContext(ctx, "Failed to update settings message", "error", err)
	}
}
