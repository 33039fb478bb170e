package handlers

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// NewUsersHandler returns the handler for the /users command: a CSV export
// of every known client.
func NewUsersHandler(deps HandlerDeps) bot.HandlerFunc {
	return usersHandler{deps}.Handle
}

type usersHandler struct {
	deps HandlerDeps
}

func (h usersHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "users")

	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID

	clients, err := h.deps.Store.ListClients(ctx)
	if err != nil {
		log.ErrorContext(ctx, "Failed to list clients", "error", err)
		return
	}
	if len(clients) == 0 {
		_, err := b.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: "No clients recorded yet."})
		if err != nil {
			log.ErrorContext(ctx, "Failed to send users reply", "error", err)
		}
		return
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write([]string{"user_id", "owner_id", "full_name", "username", "is_premium", "first_seen"})
	for _, c := range clients {
		_ = w.Write([]string{
			strconv.FormatInt(c.UserID, 10),
			strconv.FormatInt(c.OwnerID, 10),
			c.FullName,
			c.Username.String,
			strconv.FormatBool(c.IsPremium),
			c.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
		})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		log.ErrorContext(ctx, "Failed to build clients CSV", "error", err)
		return
	}

	_, err = b.SendDocument(ctx, &bot.SendDocumentParams{
		ChatID: chatID,
		Document: &models.InputFileUpload{
			Filename: "clients.csv",
			Data:     bytes.NewReader(buf.Bytes()),
		},
		Caption: fmt.Sprintf("%d clients", len(clients)),
	})
	if err != nil {
		log.ErrorContext(ctx, "Failed to send clients export", "error", err)
	}
}
