package notify_test

import (
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telewatch/telewatch/internal/database"
	"github.com/telewatch/telewatch/internal/notify"
)

var moscow = time.FixedZone("MSK", 3*60*60)

func party() notify.Party {
	return notify.Party{Label: "Ada <L>", UserID: 42, Link: "tg://user?id=42"}
}

func TestTimestampsAreLocalized(t *testing.T) {
	t.Parallel()

	r := notify.NewRenderer(moscow)
	ts := time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)

	assert.Equal(t, "01/06/25 12:30", r.FullTime(ts))
	assert.Equal(t, "12:30", r.ShortTime(ts))
}

func TestEditedTextEscapesAndMarksEmpty(t *testing.T) {
	t.Parallel()

	r := notify.NewRenderer(moscow)
	body := r.EditedText(party(), time.Now(),
		sql.NullString{String: "<script>", Valid: true}, sql.NullString{})

	assert.Contains(t, body, "[EDITED]")
	assert.Contains(t, body, "Ada &lt;L&gt;")
	assert.Contains(t, body, "&lt;script&gt;")
	assert.Contains(t, body, "<i>empty</i>", "absent new text renders as empty marker")
	assert.NotContains(t, body, "<script>")
}

func TestOutgoingHeaderNamesCounterpartChat(t *testing.T) {
	t.Parallel()

	r := notify.NewRenderer(moscow)
	p := notify.Party{Label: "You", UserID: 42, ToChat: "Client Chat"}
	body := r.EditedText(p, time.Now(), sql.NullString{}, sql.NullString{})

	assert.Contains(t, body, "<b>To:</b> Client Chat")
}

func TestDeletedSingleVoiceHasDuration(t *testing.T) {
	t.Parallel()

	r := notify.NewRenderer(moscow)
	rec := database.Message{
		ContentType: "voice",
		Timestamp:   time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC),
		Duration:    sql.NullInt64{Int64: 125, Valid: true},
	}
	body := r.DeletedSingle(rec, party())

	assert.Contains(t, body, "[DELETED]")
	assert.Contains(t, body, "Voice Message")
	assert.Contains(t, body, "Duration: 2:05")
}

func TestDeletedSinglePhotoCaption(t *testing.T) {
	t.Parallel()

	r := notify.NewRenderer(moscow)
	rec := database.Message{
		ContentType: "photo",
		Timestamp:   time.Now(),
		Text:        sql.NullString{String: "sunset", Valid: true},
	}
	body := r.DeletedSingle(rec, party())

	assert.Contains(t, body, "Deleted: Photo")
	assert.Contains(t, body, "<b>Caption:</b>")
	assert.Contains(t, body, "sunset")
}

func TestDeletedTextBatchOrderAndTruncation(t *testing.T) {
	t.Parallel()

	r := notify.NewRenderer(moscow)
	long := strings.Repeat("x", 300)
	records := []database.Message{
		{ContentType: "text", Timestamp: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC), Text: sql.NullString{String: "first", Valid: true}},
		{ContentType: "text", Timestamp: time.Date(2025, 6, 1, 9, 5, 0, 0, time.UTC), Text: sql.NullString{String: long, Valid: true}},
	}
	body := r.DeletedTextBatch(records, party())

	assert.Contains(t, body, "BULK DELETION (Text: 2)")
	first := strings.Index(body, "1. 12:00")
	second := strings.Index(body, "2. 12:05")
	require.Positive(t, first)
	require.Positive(t, second)
	assert.Less(t, first, second, "members must appear in original order")
	assert.Contains(t, body, "…", "long text must be truncated")
	assert.NotContains(t, body, long)
}

func TestDeletedStickerGroupCount(t *testing.T) {
	t.Parallel()

	r := notify.NewRenderer(moscow)
	sample := database.Message{ContentType: "sticker", Timestamp: time.Now()}
	body := r.DeletedStickerGroup(sample, party(), 3)

	assert.Contains(t, body, "DELETED (3 stickers)")
	assert.Contains(t, body, "Identical stickers (x3)")
}

func TestNewClientPremiumBadge(t *testing.T) {
	t.Parallel()

	assert.Contains(t, notify.NewClient(7, "Ada", true), "Premium")
	assert.NotContains(t, notify.NewClient(7, "Ada", false), "Premium")
}
