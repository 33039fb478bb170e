package handlers

import (
	"context"
	"fmt"
	"html"
	"strconv"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// historyPageSize bounds how many entries are rendered into one reply.
const historyPageSize = 20

// NewHistoryHandler returns the handler for the /history command. The caller
// must be a connected owner; the argument is the counterpart chat ID.
func NewHistoryHandler(deps HandlerDeps) bot.HandlerFunc {
	return historyHandler{deps}.Handle
}

type historyHandler struct {
	deps HandlerDeps
}

func (h historyHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "history")

	if update.Message == nil || update.Message.From == nil {
		return
	}
	chatID := update.Message.Chat.ID

	reply := func(text string) {
		_, err := b.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: text})
		if err != nil {
			log.ErrorContext(ctx, "Failed to send history reply", "error", err)
		}
	}

	owner, err := h.deps.Store.GetOwnerByUserID(ctx, update.Message.From.ID)
	if err != nil {
		log.ErrorContext(ctx, "Failed to look up owner", "error", err)
		return
	}
	if owner == nil {
		reply("No business connection found for your account.")
		return
	}

	fields := strings.Fields(update.Message.Text)
	if len(fields) != 2 {
		reply("Usage: /history <chat_id>")
		return
	}
	targetChat, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		reply("Usage: /history <chat_id>")
		return
	}

	records, err := h.deps.History.Query(ctx, owner.UserID, targetChat)
	if err != nil {
		log.ErrorContext(ctx, "History query failed", "error", err, "owner_id", owner.UserID, "chat_id", targetChat)
		reply("History lookup failed, try again later.")
		return
	}
	if len(records) == 0 {
		reply("No history found for this chat.")
		return
	}

	shown := records
	if len(shown) > historyPageSize {
		shown = shown[:historyPageSize]
	}

	var body strings.Builder
	fmt.Fprintf(&body, "<b>History for chat %d</b> (%d messages, showing %d)\n\n", targetChat, len(records), len(shown))
	for _, rec := range shown {
		who := html.EscapeString(rec.SenderName)
		if rec.IsOutgoing {
			who = "You"
		}
		fmt.Fprintf(&body, "<b>%s</b> %s [%s]\n", h.deps.Renderer.FullTime(rec.Timestamp), who, rec.ContentType)
		if rec.Text.Valid && rec.Text.String != "" {
			fmt.Fprintf(&body, "<blockquote>%s</blockquote>\n", html.EscapeString(rec.Text.String))
		}
		body.WriteString("\n")
	}

	disabled := true
	_, err = b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:             chatID,
		Text:               strings.TrimRight(body.String(), "\n"),
		ParseMode:          models.ParseModeHTML,
		LinkPreviewOptions: &models.LinkPreviewOptions{IsDisabled: &disabled},
	})
	if err != nil {
		log.ErrorContext(ctx, "Failed to send history page", "error", err)
	}
}
