package history_test

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telewatch/telewatch/internal/database"
	"github.com/telewatch/telewatch/internal/history"
)

type fakeStore struct {
	records []database.Message
}

func (s *fakeStore) ListMessagesInChat(_ context.Context, ownerID, chatID int64, limit int) ([]database.Message, error) {
	var out []database.Message
	for _, rec := range s.records {
		if rec.OwnerID == ownerID && rec.ChatID == chatID {
			out = append(out, rec)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type fakeArchive struct {
	mu         sync.Mutex
	partitions map[string][]database.Message
	scans      []string
}

func (a *fakeArchive) ScanMonth(_ context.Context, month time.Time) ([]database.Message, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	name := month.Format("2006-01")
	a.scans = append(a.scans, name)
	return a.partitions[name], nil
}

func msg(id int, ts time.Time, text string) database.Message {
	return database.Message{
		OwnerID:     1,
		ChatID:      2,
		MessageID:   id,
		Timestamp:   ts,
		ContentType: "text",
		Text:        sql.NullString{String: text, Valid: true},
	}
}

func newService(store *fakeStore, archive *fakeArchive, epoch time.Time, maxResults int) *history.Service {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return history.NewService(store, archive, epoch, 3, maxResults, log)
}

// monthsAgo returns the first day of the month n months before now, avoiding
// AddDate day normalization at month ends.
func monthsAgo(n int) time.Time {
	now := time.Now().UTC()
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -n, 0)
}

func TestQueryMergesTiersNewestFirst(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	epoch := monthsAgo(1)

	store := &fakeStore{records: []database.Message{
		msg(3, now.Add(-1*time.Hour), "live"),
	}}
	archive := &fakeArchive{partitions: map[string][]database.Message{
		epoch.Format("2006-01"): {msg(1, epoch.Add(12 * time.Hour), "old")},
		now.Format("2006-01"):   {msg(2, now.Add(-2*time.Hour), "archived")},
	}}

	svc := newService(store, archive, epoch, 100)
	out, err := svc.Query(context.Background(), 1, 2)
	require.NoError(t, err)

	require.Len(t, out, 3)
	assert.Equal(t, 3, out[0].MessageID)
	assert.Equal(t, 2, out[1].MessageID)
	assert.Equal(t, 1, out[2].MessageID)
}

func TestQueryStoreWinsOnCollision(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	store := &fakeStore{records: []database.Message{
		msg(1, now.Add(-1*time.Hour), "edited live copy"),
	}}
	archive := &fakeArchive{partitions: map[string][]database.Message{
		now.Format("2006-01"): {msg(1, now.Add(-1*time.Hour), "stale frozen copy")},
	}}

	svc := newService(store, archive, now, 100)
	out, err := svc.Query(context.Background(), 1, 2)
	require.NoError(t, err)

	require.Len(t, out, 1)
	assert.Equal(t, "edited live copy", out[0].Text.String)
}

func TestQueryFiltersOtherChats(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	other := msg(9, now, "other chat")
	other.ChatID = 99
	archive := &fakeArchive{partitions: map[string][]database.Message{
		now.Format("2006-01"): {msg(1, now.Add(-time.Hour), "ours"), other},
	}}

	svc := newService(&fakeStore{}, archive, now, 100)
	out, err := svc.Query(context.Background(), 1, 2)
	require.NoError(t, err)

	require.Len(t, out, 1)
	assert.Equal(t, 1, out[0].MessageID)
}

func TestQueryScansEveryMonthSinceEpoch(t *testing.T) {
	t.Parallel()

	epoch := monthsAgo(3)
	archive := &fakeArchive{partitions: map[string][]database.Message{}}

	svc := newService(&fakeStore{}, archive, epoch, 100)
	_, err := svc.Query(context.Background(), 1, 2)
	require.NoError(t, err)

	archive.mu.Lock()
	defer archive.mu.Unlock()
	assert.Len(t, archive.scans, 4, "epoch month through current month inclusive")
}

func TestQueryTruncatesToMaxResults(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	var records []database.Message
	for i := 0; i < 10; i++ {
		records = append(records, msg(i+1, now.Add(-time.Duration(i)*time.Minute), "m"))
	}
	archive := &fakeArchive{partitions: map[string][]database.Message{
		now.Format("2006-01"): records,
	}}

	svc := newService(&fakeStore{}, archive, now, 5)
	out, err := svc.Query(context.Background(), 1, 2)
	require.NoError(t, err)

	require.Len(t, out, 5)
	assert.Equal(t, 1, out[0].MessageID, "newest kept after truncation")
}
