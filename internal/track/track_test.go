package track_test

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telewatch/telewatch/internal/content"
	"github.com/telewatch/telewatch/internal/database"
	"github.com/telewatch/telewatch/internal/track"
)

func stored(contentType, text, fingerprint string) *database.Message {
	m := &database.Message{ContentType: contentType}
	if text != "" {
		m.Text = sql.NullString{String: text, Valid: true}
	}
	if fingerprint != "" {
		m.Fingerprint = sql.NullString{String: fingerprint, Valid: true}
	}
	return m
}

func snap(contentType, text, fingerprint string) content.Snapshot {
	s := content.Snapshot{Type: contentType}
	if text != "" {
		s.Text = sql.NullString{String: text, Valid: true}
	}
	if fingerprint != "" {
		s.Fingerprint = sql.NullString{String: fingerprint, Valid: true}
	}
	return s
}

func TestDiffEditNoop(t *testing.T) {
	t.Parallel()

	d := track.DiffEdit(stored("text", "hello", ""), snap("text", "hello", ""))
	assert.True(t, d.IsNoop())
	assert.Equal(t, track.EditNone, track.Classify(d, "text"))
}

func TestDiffEditEmptyTextDistinctFromAbsent(t *testing.T) {
	t.Parallel()

	old := stored("photo", "caption", "fp-1")
	d := track.DiffEdit(old, snap("photo", "", "fp-1"))
	assert.True(t, d.TextChanged, "caption removal must register as a text change")
	assert.False(t, d.MediaChanged)
}

func TestDiffEditMediaByFingerprint(t *testing.T) {
	t.Parallel()

	d := track.DiffEdit(stored("photo", "same", "fp-1"), snap("photo", "same", "fp-2"))
	assert.True(t, d.MediaChanged)
	assert.False(t, d.TextChanged)

	// One-sided fingerprints never register as a media change.
	d = track.DiffEdit(stored("photo", "same", ""), snap("photo", "same", "fp-2"))
	assert.False(t, d.MediaChanged)
}

func TestClassifyOrder(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		delta   track.EditDelta
		newType string
		want    track.EditKind
	}{
		{"media only", track.EditDelta{MediaChanged: true}, "photo", track.EditMediaSwap},
		{"type only", track.EditDelta{TypeChanged: true}, "video", track.EditMediaSwap},
		{"caption", track.EditDelta{TextChanged: true}, "photo", track.EditCaption},
		{"plain text", track.EditDelta{TextChanged: true}, "text", track.EditText},
		{"text and media", track.EditDelta{TextChanged: true, MediaChanged: true}, "photo", track.EditCaption},
		{"type and text", track.EditDelta{TypeChanged: true, TextChanged: true}, "text", track.EditText},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, track.Classify(tc.delta, tc.newType), tc.name)
	}
}

func deleted(id int, contentType, text, fingerprint string) database.Message {
	m := *stored(contentType, text, fingerprint)
	m.MessageID = id
	return m
}

func TestGroupDeletedStickerRuns(t *testing.T) {
	t.Parallel()

	batch := []database.Message{
		deleted(1, "sticker", "", "stk-A"),
		deleted(2, "sticker", "", "stk-A"),
		deleted(3, "sticker", "", "stk-A"),
		deleted(4, "text", "hello", ""),
		deleted(5, "sticker", "", "stk-B"),
	}

	notices := track.GroupDeleted(batch)
	require.Len(t, notices, 3)

	assert.Equal(t, track.NoticeStickerGroup, notices[0].Kind)
	assert.Len(t, notices[0].Records, 3)
	assert.Equal(t, 1, notices[0].Records[0].MessageID)

	assert.Equal(t, track.NoticeSingle, notices[1].Kind)
	assert.Equal(t, 4, notices[1].Records[0].MessageID)

	assert.Equal(t, track.NoticeSingle, notices[2].Kind)
	assert.Equal(t, 5, notices[2].Records[0].MessageID)
}

func TestGroupDeletedStickerFingerprintBreaksRun(t *testing.T) {
	t.Parallel()

	batch := []database.Message{
		deleted(1, "sticker", "", "stk-A"),
		deleted(2, "sticker", "", "stk-B"),
		deleted(3, "sticker", "", "stk-B"),
	}

	notices := track.GroupDeleted(batch)
	require.Len(t, notices, 2)
	assert.Equal(t, track.NoticeSingle, notices[0].Kind)
	assert.Equal(t, track.NoticeStickerGroup, notices[1].Kind)
	assert.Len(t, notices[1].Records, 2)
}

func TestGroupDeletedStickersWithoutFingerprintNeverGroup(t *testing.T) {
	t.Parallel()

	batch := []database.Message{
		deleted(1, "sticker", "", ""),
		deleted(2, "sticker", "", ""),
	}

	notices := track.GroupDeleted(batch)
	require.Len(t, notices, 2)
	for _, n := range notices {
		assert.Equal(t, track.NoticeSingle, n.Kind)
	}
}

func TestGroupDeletedTextBatch(t *testing.T) {
	t.Parallel()

	batch := []database.Message{
		deleted(1, "text", "one", ""),
		deleted(2, "text", "two", ""),
		deleted(3, "text", "three", ""),
		deleted(4, "text", "four", ""),
		deleted(5, "text", "five", ""),
	}

	notices := track.GroupDeleted(batch)
	require.Len(t, notices, 1)
	assert.Equal(t, track.NoticeTextBatch, notices[0].Kind)
	require.Len(t, notices[0].Records, 5)
	for i, rec := range notices[0].Records {
		assert.Equal(t, i+1, rec.MessageID, "member order must be preserved")
	}
}

func TestGroupDeletedOtherTypesFlushOpenRun(t *testing.T) {
	t.Parallel()

	batch := []database.Message{
		deleted(1, "text", "one", ""),
		deleted(2, "text", "two", ""),
		deleted(3, "photo", "pic", "fp-1"),
		deleted(4, "text", "three", ""),
	}

	notices := track.GroupDeleted(batch)
	require.Len(t, notices, 3)
	assert.Equal(t, track.NoticeTextBatch, notices[0].Kind)
	assert.Equal(t, track.NoticeSingle, notices[1].Kind)
	assert.Equal(t, "photo", notices[1].Records[0].ContentType)
	assert.Equal(t, track.NoticeSingle, notices[2].Kind)
}

func TestGroupDeletedEmpty(t *testing.T) {
	t.Parallel()

	assert.Empty(t, track.GroupDeleted(nil))
}
