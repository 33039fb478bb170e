package database

import (
	"database/sql"
	"time"
)

// Message is the stored representation of one tracked business message,
// keyed by (owner_id, chat_id, message_id). The key and timestamp are
// immutable once created; edits only touch content fields.
type Message struct {
	OwnerID   int64 `db:"owner_id"`
	ChatID    int64 `db:"chat_id"`
	MessageID int   `db:"message_id"`

	Timestamp      time.Time      `db:"timestamp"`
	SenderID       int64          `db:"sender_id"`
	SenderName     string         `db:"sender_name"`
	SenderUsername sql.NullString `db:"sender_username"`
	IsOutgoing     bool           `db:"is_outgoing"`

	ContentType string         `db:"content_type"`
	Text        sql.NullString `db:"text"`
	Duration    sql.NullInt64  `db:"duration"`
	FileSize    sql.NullInt64  `db:"file_size"`

	// Fingerprint identifies the underlying media file (Telegram file ID),
	// set once at ingestion and compared across edits.
	Fingerprint sql.NullString `db:"fingerprint"`

	// Extra holds type-specific metadata serialized as JSON (see content.Extra).
	Extra sql.NullString `db:"extra"`

	CreatedAt time.Time `db:"created_at"`
}

// Key returns the composite identity of the message.
func (m *Message) Key() MessageKey {
	return MessageKey{OwnerID: m.OwnerID, ChatID: m.ChatID, MessageID: m.MessageID}
}

// MessageKey is the composite primary key of a Message.
type MessageKey struct {
	OwnerID   int64
	ChatID    int64
	MessageID int
}

// Owner is a business account being monitored.
type Owner struct {
	UserID       int64          `db:"user_id"`
	ConnectionID string         `db:"connection_id"`
	FullName     string         `db:"full_name"`
	Username     sql.NullString `db:"username"`

	// NotifyOnEdit controls whether the owner's own (outgoing) edits and
	// deletions produce notifications.
	NotifyOnEdit bool `db:"notify_on_edit"`

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// Client is a counterpart user writing to an owner, unique per (user, owner).
type Client struct {
	UserID    int64          `db:"user_id"`
	OwnerID   int64          `db:"owner_id"`
	FullName  string         `db:"full_name"`
	Username  sql.NullString `db:"username"`
	IsPremium bool           `db:"is_premium"`
	CreatedAt time.Time      `db:"created_at"`
	UpdatedAt time.Time      `db:"updated_at"`
}

// Backup cycle statuses.
const (
	BackupStatusSuccess = "success"
	BackupStatusFailed  = "failed"
	BackupStatusPartial = "partial"
)

// BackupCycle is one append-only audit record of a drain-to-archive run.
type BackupCycle struct {
	ID            uint           `db:"id"`
	Timestamp     time.Time      `db:"timestamp"`
	MessagesCount int            `db:"messages_count"`
	Status        string         `db:"status"`
	ErrorMessage  sql.NullString `db:"error_message"`
}

// BackupStats aggregates the audit log for reporting.
type BackupStats struct {
	TotalCycles      int
	SuccessCycles    int
	MessagesArchived int
	LastSuccessTime  time.Time
	HasLastSuccess   bool
}
