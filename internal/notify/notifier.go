package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/telewatch/telewatch/internal/content"
)

// sender is the slice of the Telegram API the notifier uses. *bot.Bot
// satisfies it.
type sender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
	SendPhoto(ctx context.Context, params *bot.SendPhotoParams) (*models.Message, error)
	SendVideo(ctx context.Context, params *bot.SendVideoParams) (*models.Message, error)
	SendAnimation(ctx context.Context, params *bot.SendAnimationParams) (*models.Message, error)
	SendDocument(ctx context.Context, params *bot.SendDocumentParams) (*models.Message, error)
	SendAudio(ctx context.Context, params *bot.SendAudioParams) (*models.Message, error)
	SendVoice(ctx context.Context, params *bot.SendVoiceParams) (*models.Message, error)
	SendSticker(ctx context.Context, params *bot.SendStickerParams) (*models.Message, error)
	SendVideoNote(ctx context.Context, params *bot.SendVideoNoteParams) (*models.Message, error)
}

// Notifier delivers rendered notifications to owners. Sends are best-effort:
// a failed media resend degrades to a plain-text notice, and a failed text
// send is logged without affecting storage state.
type Notifier struct {
	api sender
	log *slog.Logger
}

// NewNotifier creates a notifier on top of the bot API.
func NewNotifier(api sender, log *slog.Logger) *Notifier {
	return &Notifier{api: api, log: log.With("component", "notifier")}
}

// Send delivers an HTML notification with link previews disabled.
func (n *Notifier) Send(ctx context.Context, chatID int64, body string) error {
	disabled := true
	_, err := n.api.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:             chatID,
		Text:               body,
		ParseMode:          models.ParseModeHTML,
		LinkPreviewOptions: &models.LinkPreviewOptions{IsDisabled: &disabled},
	})
	if err != nil {
		n.log.WarnContext(ctx, "Failed to send notification", "chat_id", chatID, "error", err)
		return fmt.Errorf("failed to send notification: %w", err)
	}
	return nil
}

// SendMedia resends a stored media file by its Telegram file ID with the
// notification body as caption. Stickers carry no caption, so the body is
// sent as a separate message first; the same goes for video notes. Any
// failure degrades to a plain-text notice naming the media type.
func (n *Notifier) SendMedia(ctx context.Context, chatID int64, contentType, fileID, caption string) error {
	file := &models.InputFileString{Data: fileID}

	var err error
	switch contentType {
	case content.TypeSticker:
		_, err = n.api.SendSticker(ctx, &bot.SendStickerParams{ChatID: chatID, Sticker: file})
	case content.TypeVideoNote:
		if caption != "" {
			if err := n.Send(ctx, chatID, caption); err != nil {
				return err
			}
		}
		_, err = n.api.SendVideoNote(ctx, &bot.SendVideoNoteParams{ChatID: chatID, VideoNote: file})
	case content.TypePhoto:
		_, err = n.api.SendPhoto(ctx, &bot.SendPhotoParams{ChatID: chatID, Photo: file, Caption: caption, ParseMode: models.ParseModeHTML})
	case content.TypeVideo:
		_, err = n.api.SendVideo(ctx, &bot.SendVideoParams{ChatID: chatID, Video: file, Caption: caption, ParseMode: models.ParseModeHTML})
	case content.TypeAnimation:
		_, err = n.api.SendAnimation(ctx, &bot.SendAnimationParams{ChatID: chatID, Animation: file, Caption: caption, ParseMode: models.ParseModeHTML})
	case content.TypeDocument:
		_, err = n.api.SendDocument(ctx, &bot.SendDocumentParams{ChatID: chatID, Document: file, Caption: caption, ParseMode: models.ParseModeHTML})
	case content.TypeAudio:
		_, err = n.api.SendAudio(ctx, &bot.SendAudioParams{ChatID: chatID, Audio: file, Caption: caption, ParseMode: models.ParseModeHTML})
	case content.TypeVoice:
		_, err = n.api.SendVoice(ctx, &bot.SendVoiceParams{ChatID: chatID, Voice: file, Caption: caption, ParseMode: models.ParseModeHTML})
	default:
		return n.Send(ctx, chatID, caption+"\n<i>["+content.TypeName(contentType)+"]</i>")
	}

	if err != nil {
		n.log.WarnContext(ctx, "Media resend failed, falling back to text", "chat_id", chatID, "content_type", contentType, "error", err)
		return n.Send(ctx, chatID, caption+"\n<i>["+content.TypeName(contentType)+"]</i>")
	}
	return nil
}
