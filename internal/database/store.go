package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
)

// Store defines the interface for online-store operations. Methods accept
// context.Context for cancellation and timeouts. Lookups that miss return
// (nil, nil): a missing record is steady-state here, not an error.
type Store interface {
	// Ping checks the database connection.
	Ping(ctx context.Context) error

	// UpsertMessage inserts a message record, replacing any existing row with
	// the same composite key (required for safe concurrent retries).
	UpsertMessage(ctx context.Context, message *Message) error

	// GetMessage retrieves one message by composite key.
	GetMessage(ctx context.Context, key MessageKey) (*Message, error)

	// UpdateMessageContent updates the mutable content fields of a message.
	// Returns false if no row matched.
	UpdateMessageContent(ctx context.Context, key MessageKey, text, contentType, fingerprint, extra sql.NullString) (bool, error)

	// DeleteMessage removes one message. Returns false if no row matched.
	DeleteMessage(ctx context.Context, key MessageKey) (bool, error)

	// ListAllMessages returns every live message, oldest first.
	ListAllMessages(ctx context.Context) ([]Message, error)

	// ListMessagesInChat returns the most recent 'limit' messages of one chat.
	ListMessagesInChat(ctx context.Context, ownerID, chatID int64, limit int) ([]Message, error)

	// CountMessages returns the number of live messages, across all owners
	// when ownerID is zero, or for one owner otherwise.
	CountMessages(ctx context.Context, ownerID int64) (int, error)

	// DeleteMessagesBefore removes live messages older than cutoff and
	// returns how many were removed.
	DeleteMessagesBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// UpsertOwner registers or refreshes a business connection owner.
	UpsertOwner(ctx context.Context, owner *Owner) error

	// GetOwnerByConnectionID finds the owner of a business connection.
	GetOwnerByConnectionID(ctx context.Context, connectionID string) (*Owner, error)

	// GetOwnerByUserID finds an owner by Telegram user ID.
	GetOwnerByUserID(ctx context.Context, userID int64) (*Owner, error)

	// ListOwners returns all registered owners.
	ListOwners(ctx context.Context) ([]Owner, error)

	// SetOwnerNotifyOnEdit updates the owner's outgoing-notification preference.
	SetOwnerNotifyOnEdit(ctx context.Context, userID int64, notify bool) (bool, error)

	// DeleteOwner removes an owner on business disconnection.
	DeleteOwner(ctx context.Context, userID int64) (bool, error)

	// UpsertClient registers or refreshes a counterpart client.
	UpsertClient(ctx context.Context, client *Client) error

	// GetClient finds a client by (user, owner).
	GetClient(ctx context.Context, userID, ownerID int64) (*Client, error)

	// SetClientPremium updates the stored premium flag of a client.
	SetClientPremium(ctx context.Context, userID, ownerID int64, premium bool) error

	// ListClients returns all known clients, newest first.
	ListClients(ctx context.Context) ([]Client, error)

	// RecordBackupCycle appends one audit record of an archival run.
	RecordBackupCycle(ctx context.Context, count int, status string, errMsg string) error

	// LastSuccessfulBackup returns the most recent successful cycle.
	LastSuccessfulBackup(ctx context.Context) (*BackupCycle, error)

	// BackupStats aggregates the recent audit log for reporting.
	BackupStats(ctx context.Context) (*BackupStats, error)

	// RunSQLMaintenance performs database maintenance tasks like VACUUM.
	RunSQLMaintenance(ctx context.Context) error
}

// sqlxStore provides an implementation of the Store interface using sqlx.
type sqlxStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStore creates a new Store implementation backed by sqlx.
// It requires a connected sqlx.DB instance and a logger.
func NewStore(db *sqlx.DB, logger *slog.Logger) Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &sqlxStore{
		db:     db,
		logger: logger.With("component", "store"),
	}
}

func (s *sqlxStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *sqlxStore) UpsertMessage(ctx context.Context, message *Message) error {
	if message == nil {
		return fmt.Errorf("cannot save nil message")
	}
	if message.OwnerID == 0 || message.ChatID == 0 || message.MessageID == 0 {
		return fmt.Errorf("message must have a complete (owner, chat, message) key")
	}
	if message.Timestamp.IsZero() {
		return fmt.Errorf("message must have a non-zero timestamp")
	}

	message.CreatedAt = time.Now().UTC()

	query := `
        INSERT INTO messages (owner_id, chat_id, message_id, timestamp, sender_id,
                              sender_name, sender_username, is_outgoing, content_type,
                              text, duration, file_size, fingerprint, extra, created_at)
        VALUES (:owner_id, :chat_id, :message_id, :timestamp, :sender_id,
                :sender_name, :sender_username, :is_outgoing, :content_type,
                :text, :duration, :file_size, :fingerprint, :extra, :created_at)
        ON CONFLICT (owner_id, chat_id, message_id) DO UPDATE SET
            content_type = excluded.content_type,
            text         = excluded.text,
            duration     = excluded.duration,
            file_size    = excluded.file_size,
            fingerprint  = excluded.fingerprint,
            extra        = excluded.extra;
    `

	if _, err := s.db.NamedExecContext(ctx, query, message); err != nil {
		return fmt.Errorf("failed to save message (owner %d, chat %d, msg %d): %w",
			message.OwnerID, message.ChatID, message.MessageID, err)
	}

	s.logger.DebugContext(ctx, "Message saved",
		"owner_id", message.OwnerID, "chat_id", message.ChatID, "message_id", message.MessageID)
	return nil
}

func (s *sqlxStore) GetMessage(ctx context.Context, key MessageKey) (*Message, error) {
	var msg Message
	query := `
        SELECT * FROM messages
        WHERE owner_id = ? AND chat_id = ? AND message_id = ?;
    `
	err := s.db.GetContext(ctx, &msg, query, key.OwnerID, key.ChatID, key.MessageID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get message (owner %d, chat %d, msg %d): %w",
			key.OwnerID, key.ChatID, key.MessageID, err)
	}
	return &msg, nil
}

func (s *sqlxStore) UpdateMessageContent(ctx context.Context, key MessageKey, text, contentType, fingerprint, extra sql.NullString) (bool, error) {
	query := `
        UPDATE messages
        SET text = ?, content_type = ?, fingerprint = ?, extra = ?
        WHERE owner_id = ? AND chat_id = ? AND message_id = ?;
    `
	ct := "unknown"
	if contentType.Valid {
		ct = contentType.String
	}
	result, err := s.db.ExecContext(ctx, query, text, ct, fingerprint, extra,
		key.OwnerID, key.ChatID, key.MessageID)
	if err != nil {
		return false, fmt.Errorf("failed to update message (owner %d, chat %d, msg %d): %w",
			key.OwnerID, key.ChatID, key.MessageID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, nil
	}
	return affected > 0, nil
}

func (s *sqlxStore) DeleteMessage(ctx context.Context, key MessageKey) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM messages WHERE owner_id = ? AND chat_id = ? AND message_id = ?;`,
		key.OwnerID, key.ChatID, key.MessageID)
	if err != nil {
		return false, fmt.Errorf("failed to delete message (owner %d, chat %d, msg %d): %w",
			key.OwnerID, key.ChatID, key.MessageID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, nil
	}
	return affected > 0, nil
}

func (s *sqlxStore) ListAllMessages(ctx context.Context) ([]Message, error) {
	var messages []Message
	err := s.db.SelectContext(ctx, &messages,
		`SELECT * FROM messages ORDER BY timestamp ASC;`)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	return messages, nil
}

func (s *sqlxStore) ListMessagesInChat(ctx context.Context, ownerID, chatID int64, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 100
	}
	var messages []Message
	query := `
        SELECT * FROM messages
        WHERE owner_id = ? AND chat_id = ?
        ORDER BY timestamp DESC
        LIMIT ?;
    `
	err := s.db.SelectContext(ctx, &messages, query, ownerID, chatID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages for chat %d: %w", chatID, err)
	}
	return messages, nil
}

func (s *sqlxStore) CountMessages(ctx context.Context, ownerID int64) (int, error) {
	var count int
	var err error
	if ownerID == 0 {
		err = s.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM messages;`)
	} else {
		err = s.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM messages WHERE owner_id = ?;`, ownerID)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to count messages: %w", err)
	}
	return count, nil
}

func (s *sqlxStore) DeleteMessagesBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE timestamp < ?;`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete messages before %s: %w", cutoff, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return affected, nil
}

func (s *sqlxStore) UpsertOwner(ctx context.Context, owner *Owner) error {
	if owner == nil {
		return fmt.Errorf("cannot save nil owner")
	}
	now := time.Now().UTC()
	owner.CreatedAt = now
	owner.UpdatedAt = now

	query := `
        INSERT INTO owners (user_id, connection_id, full_name, username, notify_on_edit, created_at, updated_at)
        VALUES (:user_id, :connection_id, :full_name, :username, :notify_on_edit, :created_at, :updated_at)
        ON CONFLICT (user_id) DO UPDATE SET
            connection_id = excluded.connection_id,
            full_name     = excluded.full_name,
            username      = excluded.username,
            updated_at    = excluded.updated_at;
    `
	if _, err := s.db.NamedExecContext(ctx, query, owner); err != nil {
		return fmt.Errorf("failed to save owner %d: %w", owner.UserID, err)
	}

	s.logger.DebugContext(ctx, "Owner saved", "user_id", owner.UserID, "connection_id", owner.ConnectionID)
	return nil
}

func (s *sqlxStore) GetOwnerByConnectionID(ctx context.Context, connectionID string) (*Owner, error) {
	var owner Owner
	err := s.db.GetContext(ctx, &owner, `SELECT * FROM owners WHERE connection_id = ?;`, connectionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get owner by connection %q: %w", connectionID, err)
	}
	return &owner, nil
}

func (s *sqlxStore) GetOwnerByUserID(ctx context.Context, userID int64) (*Owner, error) {
	var owner Owner
	err := s.db.GetContext(ctx, &owner, `SELECT * FROM owners WHERE user_id = ?;`, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get owner %d: %w", userID, err)
	}
	return &owner, nil
}

func (s *sqlxStore) ListOwners(ctx context.Context) ([]Owner, error) {
	var owners []Owner
	if err := s.db.SelectContext(ctx, &owners, `SELECT * FROM owners ORDER BY created_at ASC;`); err != nil {
		return nil, fmt.Errorf("failed to list owners: %w", err)
	}
	return owners, nil
}

func (s *sqlxStore) SetOwnerNotifyOnEdit(ctx context.Context, userID int64, notify bool) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE owners SET notify_on_edit = ?, updated_at = ? WHERE user_id = ?;`,
		notify, time.Now().UTC(), userID)
	if err != nil {
		return false, fmt.Errorf("failed to update owner %d settings: %w", userID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, nil
	}
	return affected > 0, nil
}

func (s *sqlxStore) DeleteOwner(ctx context.Context, userID int64) (bool, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM owners WHERE user_id = ?;`, userID)
	if err != nil {
		return false, fmt.Errorf("failed to delete owner %d: %w", userID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, nil
	}
	return affected > 0, nil
}

func (s *sqlxStore) UpsertClient(ctx context.Context, client *Client) error {
	if client == nil {
		return fmt.Errorf("cannot save nil client")
	}
	now := time.Now().UTC()
	client.CreatedAt = now
	client.UpdatedAt = now

	query := `
        INSERT INTO clients (user_id, owner_id, full_name, username, is_premium, created_at, updated_at)
        VALUES (:user_id, :owner_id, :full_name, :username, :is_premium, :created_at, :updated_at)
        ON CONFLICT (user_id, owner_id) DO UPDATE SET
            full_name  = excluded.full_name,
            username   = excluded.username,
            is_premium = excluded.is_premium,
            updated_at = excluded.updated_at;
    `
	if _, err := s.db.NamedExecContext(ctx, query, client); err != nil {
		return fmt.Errorf("failed to save client (user %d, owner %d): %w", client.UserID, client.OwnerID, err)
	}
	return nil
}

func (s *sqlxStore) GetClient(ctx context.Context, userID, ownerID int64) (*Client, error) {
	var client Client
	err := s.db.GetContext(ctx, &client,
		`SELECT * FROM clients WHERE user_id = ? AND owner_id = ?;`, userID, ownerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get client (user %d, owner %d): %w", userID, ownerID, err)
	}
	return &client, nil
}

func (s *sqlxStore) SetClientPremium(ctx context.Context, userID, ownerID int64, premium bool) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE clients SET is_premium = ?, updated_at = ? WHERE user_id = ? AND owner_id = ?;`,
		premium, time.Now().UTC(), userID, ownerID)
	if err != nil {
		return fmt.Errorf("failed to update client premium flag (user %d, owner %d): %w", userID, ownerID, err)
	}
	return nil
}

func (s *sqlxStore) ListClients(ctx context.Context) ([]Client, error) {
	var clients []Client
	err := s.db.SelectContext(ctx, &clients, `SELECT * FROM clients ORDER BY created_at DESC;`)
	if err != nil {
		return nil, fmt.Errorf("failed to list clients: %w", err)
	}
	return clients, nil
}

func (s *sqlxStore) RecordBackupCycle(ctx context.Context, count int, status string, errMsg string) error {
	cycle := BackupCycle{
		Timestamp:     time.Now().UTC(),
		MessagesCount: count,
		Status:        status,
	}
	if errMsg != "" {
		cycle.ErrorMessage = sql.NullString{String: errMsg, Valid: true}
	}

	query := `
        INSERT INTO backups (timestamp, messages_count, status, error_message)
        VALUES (:timestamp, :messages_count, :status, :error_message);
    `
	if _, err := s.db.NamedExecContext(ctx, query, &cycle); err != nil {
		return fmt.Errorf("failed to record backup cycle: %w", err)
	}

	s.logger.InfoContext(ctx, "Backup cycle recorded", "count", count, "status", status)
	return nil
}

func (s *sqlxStore) LastSuccessfulBackup(ctx context.Context) (*BackupCycle, error) {
	var cycle BackupCycle
	query := `
        SELECT * FROM backups
        WHERE status = ?
        ORDER BY timestamp DESC
        LIMIT 1;
    `
	err := s.db.GetContext(ctx, &cycle, query, BackupStatusSuccess)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get last successful backup: %w", err)
	}
	return &cycle, nil
}

func (s *sqlxStore) BackupStats(ctx context.Context) (*BackupStats, error) {
	var cycles []BackupCycle
	err := s.db.SelectContext(ctx, &cycles,
		`SELECT * FROM backups ORDER BY timestamp DESC LIMIT 100;`)
	if err != nil {
		return nil, fmt.Errorf("failed to load backup history: %w", err)
	}

	stats := &BackupStats{TotalCycles: len(cycles)}
	for _, c := range cycles {
		if c.Status != BackupStatusSuccess {
			continue
		}
		stats.SuccessCycles++
		stats.MessagesArchived += c.MessagesCount
		if !stats.HasLastSuccess {
			stats.LastSuccessTime = c.Timestamp
			stats.HasLastSuccess = true
		}
	}
	return stats, nil
}

func (s *sqlxStore) RunSQLMaintenance(ctx context.Context) error {
	for _, stmt := range []string{`VACUUM;`, `ANALYZE;`} {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("maintenance statement %q failed: %w", stmt, err)
		}
	}
	return nil
}
