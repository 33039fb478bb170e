package archive

import (
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/telewatch/telewatch/internal/database"
)

// Partition column layout, A through O. Row one of every partition is this
// header; data rows follow the same order.
var columns = []string{
	"timestamp", "owner_id", "chat_id", "message_id", "sender_id",
	"sender_name", "sender_username", "is_outgoing", "content_type", "text",
	"duration", "file_size", "fingerprint", "extra", "created_at",
}

func headerRow() []any {
	row := make([]any, len(columns))
	for i, c := range columns {
		row[i] = c
	}
	return row
}

func encodeRow(m *database.Message) []any {
	return []any{
		m.Timestamp.UTC().Format(time.RFC3339),
		strconv.FormatInt(m.OwnerID, 10),
		strconv.FormatInt(m.ChatID, 10),
		strconv.Itoa(m.MessageID),
		strconv.FormatInt(m.SenderID, 10),
		m.SenderName,
		m.SenderUsername.String,
		strconv.FormatBool(m.IsOutgoing),
		m.ContentType,
		m.Text.String,
		encodeInt64(m.Duration),
		encodeInt64(m.FileSize),
		m.Fingerprint.String,
		m.Extra.String,
		m.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func decodeRow(row []any) (database.Message, error) {
	if len(row) < len(columns) {
		return database.Message{}, fmt.Errorf("expected %d columns, got %d", len(columns), len(row))
	}

	cell := func(i int) string {
		s, _ := row[i].(string)
		return s
	}

	ts, err := time.Parse(time.RFC3339, cell(0))
	if err != nil {
		return database.Message{}, fmt.Errorf("invalid timestamp: %w", err)
	}
	ownerID, err := strconv.ParseInt(cell(1), 10, 64)
	if err != nil {
		return database.Message{}, fmt.Errorf("invalid owner_id: %w", err)
	}
	chatID, err := strconv.ParseInt(cell(2), 10, 64)
	if err != nil {
		return database.Message{}, fmt.Errorf("invalid chat_id: %w", err)
	}
	messageID, err := strconv.Atoi(cell(3))
	if err != nil {
		return database.Message{}, fmt.Errorf("invalid message_id: %w", err)
	}
	senderID, err := strconv.ParseInt(cell(4), 10, 64)
	if err != nil {
		return database.Message{}, fmt.Errorf("invalid sender_id: %w", err)
	}

	createdAt := ts
	if parsed, err := time.Parse(time.RFC3339, cell(14)); err == nil {
		createdAt = parsed
	}

	return database.Message{
		Timestamp:      ts,
		OwnerID:        ownerID,
		ChatID:         chatID,
		MessageID:      messageID,
		SenderID:       senderID,
		SenderName:     cell(5),
		SenderUsername: decodeString(cell(6)),
		IsOutgoing:     cell(7) == "true",
		ContentType:    cell(8),
		Text:           decodeString(cell(9)),
		Duration:       decodeInt64(cell(10)),
		FileSize:       decodeInt64(cell(11)),
		Fingerprint:    decodeString(cell(12)),
		Extra:          decodeString(cell(13)),
		CreatedAt:      createdAt,
	}, nil
}

func encodeInt64(v sql.NullInt64) string {
	if !v.Valid {
		return ""
	}
	return strconv.FormatInt(v.Int64, 10)
}

func decodeInt64(s string) sql.NullInt64 {
	if s == "" {
		return sql.NullInt64{}
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: v, Valid: true}
}

func decodeString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
