package handlers

import (
	"context"
	"database/sql"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/telewatch/telewatch/internal/content"
	"github.com/telewatch/telewatch/internal/database"
	"github.com/telewatch/telewatch/internal/notify"
	"github.com/telewatch/telewatch/internal/track"
)

// NewBusinessRouter returns the default handler that routes business account
// updates: connections, new messages, edits, and deletion batches.
func NewBusinessRouter(deps HandlerDeps) bot.HandlerFunc {
	r := businessRouter{deps}
	return func(ctx context.Context, b *bot.Bot, update *models.Update) {
		switch {
		case update.BusinessConnection != nil:
			r.handleConnection(ctx, b, update.BusinessConnection)
		case update.BusinessMessage != nil:
			r.handleMessage(ctx, b, update.BusinessMessage)
		case update.EditedBusinessMessage != nil:
			r.handleEdited(ctx, b, update.EditedBusinessMessage)
		case update.DeletedBusinessMessages != nil:
			r.handleDeleted(ctx, b, update.DeletedBusinessMessages)
		}
	}
}

type businessRouter struct {
	deps HandlerDeps
}

func (r businessRouter) notifier(b *bot.Bot) *notify.Notifier {
	return notify.NewNotifier(b, r.deps.Logger)
}

// handleConnection reacts to a business connection being enabled or revoked.
// Disconnection removes the owner record but keeps already-tracked messages;
// they still drain to the archive on the next backup cycle.
func (r businessRouter) handleConnection(ctx context.Context, b *bot.Bot, conn *models.BusinessConnection) {
	log := r.deps.Logger.With("handler", "business_connection")

	if conn.IsEnabled {
		owner := &database.Owner{
			UserID:       conn.User.ID,
			ConnectionID: conn.ID,
			FullName:     userFullName(&conn.User),
		}
		if conn.User.Username != "" {
			owner.Username = sql.NullString{String: conn.User.Username, Valid: true}
		}
		if err := r.deps.Store.UpsertOwner(ctx, owner); err != nil {
			log.ErrorContext(ctx, "Failed to register owner", "error", err, "user_id", conn.User.ID)
			return
		}
		log.InfoContext(ctx, "Business connection enabled", "user_id", conn.User.ID, "connection_id", conn.ID)
		_ = r.notifier(b).Send(ctx, conn.User.ID, notify.OwnerConnected())
		return
	}

	if _, err := r.deps.Store.DeleteOwner(ctx, conn.User.ID); err != nil {
		log.ErrorContext(ctx, "Failed to remove owner", "error", err, "user_id", conn.User.ID)
		return
	}
	log.InfoContext(ctx, "Business connection disabled", "user_id", conn.User.ID)
	_ = r.notifier(b).Send(ctx, conn.User.ID, notify.OwnerDisconnected())
}

// handleMessage ingests a new business message: classify, cache
// synchronously, persist asynchronously, and feed the backup threshold.
func (r businessRouter) handleMessage(ctx context.Context, b *bot.Bot, msg *models.Message) {
	log := r.deps.Logger.With("handler", "business_message")

	owner := r.ownerFor(ctx, log, msg.BusinessConnectionID)
	if owner == nil || msg.From == nil {
		return
	}

	isOutgoing := msg.From.ID != msg.Chat.ID
	if !isOutgoing {
		r.trackClient(ctx, b, owner, msg.From)
	}

	snap := content.Classify(msg)
	record := database.Message{
		OwnerID:     owner.UserID,
		ChatID:      msg.Chat.ID,
		MessageID:   msg.ID,
		Timestamp:   time.Unix(int64(msg.Date), 0).UTC(),
		SenderID:    msg.From.ID,
		SenderName:  userFullName(msg.From),
		IsOutgoing:  isOutgoing,
		ContentType: snap.Type,
		Text:        snap.Text,
		Duration:    snap.Duration,
		FileSize:    snap.FileSize,
		Fingerprint: snap.Fingerprint,
		Extra:       snap.Extra,
	}
	if msg.From.Username != "" {
		record.SenderUsername = sql.NullString{String: msg.From.Username, Valid: true}
	}

	r.deps.Cache.Set(record)
	r.deps.Writer.EnqueueUpsert(&record)
	r.deps.Backup.NoteIngested(ctx)

	log.DebugContext(ctx, "Business message tracked",
		"owner_id", owner.UserID, "chat_id", msg.Chat.ID, "message_id", msg.ID, "content_type", snap.Type)
}

// trackClient registers a counterpart on first contact and keeps the premium
// flag in sync afterwards.
func (r businessRouter) trackClient(ctx context.Context, b *bot.Bot, owner *database.Owner, from *models.User) {
	log := r.deps.Logger.With("handler", "business_message")

	existing, err := r.deps.Store.GetClient(ctx, from.ID, owner.UserID)
	if err != nil {
		log.WarnContext(ctx, "Failed to look up client", "error", err, "user_id", from.ID)
		return
	}

	if existing == nil {
		client := &database.Client{
			UserID:    from.ID,
			OwnerID:   owner.UserID,
			FullName:  userFullName(from),
			IsPremium: from.IsPremium,
		}
		if from.Username != "" {
			client.Username = sql.NullString{String: from.Username, Valid: true}
		}
		if err := r.deps.Store.UpsertClient(ctx, client); err != nil {
			log.WarnContext(ctx, "Failed to register client", "error", err, "user_id", from.ID)
			return
		}
		log.InfoContext(ctx, "New client registered", "user_id", from.ID, "owner_id", owner.UserID)
		_ = r.notifier(b).Send(ctx, owner.UserID, notify.NewClient(from.ID, userFullName(from), from.IsPremium))
		return
	}

	if existing.IsPremium != from.IsPremium {
		if err := r.deps.Store.SetClientPremium(ctx, from.ID, owner.UserID, from.IsPremium); err != nil {
			log.WarnContext(ctx, "Failed to sync client premium flag", "error", err, "user_id", from.ID)
		}
	}
}

// handleEdited reconciles an edit against the stored snapshot. The cache is
// updated before any notification is sent, so an immediately following event
// for the same key observes the new content even while the asynchronous
// store write is still in flight.
func (r businessRouter) handleEdited(ctx context.Context, b *bot.Bot, msg *models.Message) {
	log := r.deps.Logger.With("handler", "business_edit")

	owner := r.ownerFor(ctx, log, msg.BusinessConnectionID)
	if owner == nil || msg.From == nil {
		return
	}

	key := database.MessageKey{OwnerID: owner.UserID, ChatID: msg.Chat.ID, MessageID: msg.ID}
	stored := r.resolve(ctx, key)
	if stored == nil {
		// Already evicted and archived; at-most-once reporting accepts this.
		log.DebugContext(ctx, "Edit for unknown message, skipping", "chat_id", msg.Chat.ID, "message_id", msg.ID)
		return
	}

	snap := content.Classify(msg)
	delta := track.DiffEdit(stored, snap)
	if delta.IsNoop() {
		return
	}

	newType := sql.NullString{String: snap.Type, Valid: true}
	r.deps.Cache.UpdateContent(key, snap.Text, newType, snap.Fingerprint, snap.Extra)
	r.deps.Writer.EnqueueContentUpdate(key, snap.Text, newType, snap.Fingerprint, snap.Extra)

	// Suppressed outgoing edits are recorded but not reported.
	isOutgoing := msg.From.ID != msg.Chat.ID
	if isOutgoing && !owner.NotifyOnEdit {
		return
	}

	n := r.notifier(b)
	p := r.party(isOutgoing, msg.From, msg.Chat)
	ts := stored.Timestamp

	switch track.Classify(delta, snap.Type) {
	case track.EditMediaSwap:
		body := r.deps.Renderer.EditedMedia(p, ts, stored.ContentType, snap.Type, delta.TypeChanged, snap.Text)
		_ = n.Send(ctx, owner.UserID, body)
		r.sendComparison(ctx, n, owner.UserID, stored, snap)

	case track.EditCaption:
		body := r.deps.Renderer.EditedCaption(p, ts, snap.Type, stored.Text, snap.Text) +
			notify.TypeChangeInfo(delta.TypeChanged, delta.MediaChanged, stored.ContentType, snap.Type)
		_ = n.Send(ctx, owner.UserID, body)
		if delta.MediaChanged {
			r.sendComparison(ctx, n, owner.UserID, stored, snap)
		}

	case track.EditText:
		body := r.deps.Renderer.EditedText(p, ts, stored.Text, snap.Text) +
			notify.TypeChangeInfo(delta.TypeChanged, delta.MediaChanged, stored.ContentType, snap.Type)
		_ = n.Send(ctx, owner.UserID, body)

	default:
		var changed []string
		if delta.TypeChanged {
			changed = append(changed, "type")
		}
		if delta.TextChanged {
			changed = append(changed, "text")
		}
		if delta.MediaChanged {
			changed = append(changed, "media")
		}
		_ = n.Send(ctx, owner.UserID, r.deps.Renderer.EditedGeneric(p, ts, changed))
	}
}

// sendComparison resends the old and new media side by side when both file
// references survived.
func (r businessRouter) sendComparison(ctx context.Context, n *notify.Notifier, ownerID int64, stored *database.Message, snap content.Snapshot) {
	if stored.Fingerprint.Valid {
		_ = n.SendMedia(ctx, ownerID, stored.ContentType, stored.Fingerprint.String, "<b>Was:</b>")
	}
	if snap.Fingerprint.Valid {
		_ = n.SendMedia(ctx, ownerID, snap.Type, snap.Fingerprint.String, "<b>Now:</b>")
	}
}

// handleDeleted resolves a deletion batch, archives frozen copies, emits
// grouped notifications, and finally purges every resolved record from both
// the cache and the store.
func (r businessRouter) handleDeleted(ctx context.Context, b *bot.Bot, ev *models.BusinessMessagesDeleted) {
	log := r.deps.Logger.With("handler", "business_delete")

	owner := r.ownerFor(ctx, log, ev.BusinessConnectionID)
	if owner == nil {
		return
	}

	var archived, reported []database.Message
	for _, id := range ev.MessageIDs {
		key := database.MessageKey{OwnerID: owner.UserID, ChatID: ev.Chat.ID, MessageID: id}
		stored := r.resolve(ctx, key)
		if stored == nil {
			continue
		}
		archived = append(archived, *stored)
		if stored.IsOutgoing && !owner.NotifyOnEdit {
			// The owner deleted their own message and asked not to be
			// notified; the record is still archived and purged below.
			continue
		}
		reported = append(reported, *stored)
	}
	if len(archived) == 0 {
		return
	}

	// Archive frozen copies before anything else; a notification failure must
	// never cost the archival record.
	if err := r.deps.Backup.LogDeleted(ctx, archived); err != nil {
		log.WarnContext(ctx, "Failed to archive deleted messages", "error", err, "count", len(archived))
	}

	n := r.notifier(b)
	chat := chatDisplayName(ev.Chat)

	for _, notice := range track.GroupDeleted(reported) {
		rec := notice.Records[0]
		p := r.recordParty(rec, ev.Chat)

		switch notice.Kind {
		case track.NoticeStickerGroup:
			_ = n.Send(ctx, owner.UserID, r.deps.Renderer.DeletedStickerGroup(rec, p, len(notice.Records)))
			if rec.Fingerprint.Valid {
				_ = n.SendMedia(ctx, owner.UserID, rec.ContentType, rec.Fingerprint.String, "")
			}

		case track.NoticeTextBatch:
			_ = n.Send(ctx, owner.UserID, r.deps.Renderer.DeletedTextBatch(notice.Records, p))

		default:
			body := r.deps.Renderer.DeletedSingle(rec, p)
			if rec.Fingerprint.Valid && rec.ContentType == content.TypeSticker {
				_ = n.Send(ctx, owner.UserID, body)
				_ = n.SendMedia(ctx, owner.UserID, rec.ContentType, rec.Fingerprint.String, "")
			} else if rec.Fingerprint.Valid {
				_ = n.SendMedia(ctx, owner.UserID, rec.ContentType, rec.Fingerprint.String, body)
			} else {
				_ = n.Send(ctx, owner.UserID, body)
			}
		}
	}

	// Unconditional purge: even a record whose notification failed was
	// archived above.
	for i := range archived {
		r.purge(archived[i].Key())
	}

	log.InfoContext(ctx, "Deletion batch processed",
		"owner_id", owner.UserID, "chat", chat, "deleted", len(archived),
		"reported", len(reported), "requested", len(ev.MessageIDs))
}

func (r businessRouter) ownerFor(ctx context.Context, log *slog.Logger, connectionID string) *database.Owner {
	owner, err := r.deps.Store.GetOwnerByConnectionID(ctx, connectionID)
	if err != nil || owner == nil {
		log.WarnContext(ctx, "Owner not found for business connection", "connection_id", connectionID, "error", err)
		return nil
	}
	return owner
}

// resolve looks a message up in the cache first, then the store.
func (r businessRouter) resolve(ctx context.Context, key database.MessageKey) *database.Message {
	if rec, ok := r.deps.Cache.Get(key); ok {
		return &rec
	}
	rec, err := r.deps.Store.GetMessage(ctx, key)
	if err != nil {
		r.deps.Logger.WarnContext(ctx, "Store lookup failed", "key", key, "error", err)
		return nil
	}
	return rec
}

func (r businessRouter) purge(key database.MessageKey) {
	r.deps.Cache.Delete(key)
	r.deps.Writer.EnqueueDelete(key)
}

// party labels the live counterpart of an edit event.
func (r businessRouter) party(isOutgoing bool, from *models.User, chat models.Chat) notify.Party {
	if isOutgoing {
		return notify.Party{Label: "You", UserID: chat.ID, ToChat: chatDisplayName(chat)}
	}
	return notify.Party{Label: userFullName(from), UserID: from.ID, Link: userLink(from.ID, from.Username)}
}

// recordParty labels the counterpart of a stored record during deletion.
func (r businessRouter) recordParty(rec database.Message, chat models.Chat) notify.Party {
	if rec.IsOutgoing {
		return notify.Party{Label: "You", UserID: rec.ChatID, ToChat: chatDisplayName(chat)}
	}
	return notify.Party{Label: rec.SenderName, UserID: rec.SenderID, Link: userLink(rec.SenderID, rec.SenderUsername.String)}
}

func userFullName(u *models.User) string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

func userLink(userID int64, username string) string {
	if username != "" {
		return "https://t.me/" + username
	}
	return "tg://user?id=" + strconv.FormatInt(userID, 10)
}

func chatDisplayName(chat models.Chat) string {
	name := strings.TrimSpace(chat.FirstName + " " + chat.LastName)
	if name == "" {
		name = chat.Title
	}
	if name == "" {
		name = strconv.FormatInt(chat.ID, 10)
	}
	return name
}
