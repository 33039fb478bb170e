package handlers_test

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/go-telegram/bot/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telewatch/telewatch/internal/backup"
	"github.com/telewatch/telewatch/internal/bot/handlers"
	"github.com/telewatch/telewatch/internal/cache"
	"github.com/telewatch/telewatch/internal/config"
	"github.com/telewatch/telewatch/internal/content"
	"github.com/telewatch/telewatch/internal/database"
	"github.com/telewatch/telewatch/internal/notify"
)

type contentUpdate struct {
	key  database.MessageKey
	text sql.NullString
}

// stubStore serves the owner lookup and records the mutations the router
// routes through the async writer.
type stubStore struct {
	database.Store

	owner  *database.Owner
	stored *database.Message

	mu      sync.Mutex
	updates []contentUpdate
	deletes []database.MessageKey
}

func (s *stubStore) GetOwnerByConnectionID(_ context.Context, connectionID string) (*database.Owner, error) {
	if s.owner != nil && s.owner.ConnectionID == connectionID {
		return s.owner, nil
	}
	return nil, nil
}

func (s *stubStore) GetMessage(_ context.Context, key database.MessageKey) (*database.Message, error) {
	if s.stored != nil && s.stored.Key() == key {
		rec := *s.stored
		return &rec, nil
	}
	return nil, nil
}

func (s *stubStore) UpdateMessageContent(_ context.Context, key database.MessageKey, text, _, _, _ sql.NullString) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates = append(s.updates, contentUpdate{key: key, text: text})
	return true, nil
}

func (s *stubStore) DeleteMessage(_ context.Context, key database.MessageKey) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deletes = append(s.deletes, key)
	return true, nil
}

type stubArchive struct {
	mu      sync.Mutex
	batches [][]database.Message
}

func (a *stubArchive) AppendBatch(_ context.Context, records []database.Message) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	batch := make([]database.Message, len(records))
	copy(batch, records)
	a.batches = append(a.batches, batch)
	return nil
}

func testDeps(store *stubStore, archive *stubArchive) (handlers.HandlerDeps, *database.AsyncWriter) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	writer := database.NewAsyncWriter(store, 16, log)
	mgr := backup.NewManager(store, archive, config.BackupConfig{
		Interval:    time.Hour,
		GracePeriod: time.Second,
		Threshold:   100,
		CheckEvery:  10,
	}, log)

	deps := handlers.HandlerDeps{
		Logger:   log,
		Config:   &config.Config{},
		Store:    store,
		Cache:    cache.New(16),
		Writer:   writer,
		Backup:   mgr,
		Renderer: notify.NewRenderer(time.UTC),
	}
	return deps, writer
}

func quietOwner() *database.Owner {
	return &database.Owner{UserID: 10, ConnectionID: "conn-1", FullName: "Owner", NotifyOnEdit: false}
}

func outgoingText(text string) database.Message {
	return database.Message{
		OwnerID:     10,
		ChatID:      77,
		MessageID:   5,
		Timestamp:   time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		SenderID:    10,
		SenderName:  "Owner",
		IsOutgoing:  true,
		ContentType: content.TypeText,
		Text:        sql.NullString{String: text, Valid: true},
	}
}

func editedUpdate(text string) *models.Update {
	return &models.Update{
		EditedBusinessMessage: &models.Message{
			ID:                   5,
			BusinessConnectionID: "conn-1",
			From:                 &models.User{ID: 10, FirstName: "Owner"},
			Chat:                 models.Chat{ID: 77},
			Date:                 int(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC).Unix()),
			Text:                 text,
		},
	}
}

// The bot is nil in these tests: any attempt to notify panics, so a passing
// test proves the suppression gate fired after the record was updated.
func TestSuppressedOutgoingEditStillRecorded(t *testing.T) {
	store := &stubStore{owner: quietOwner()}
	deps, writer := testDeps(store, &stubArchive{})
	writer.Run(context.Background())

	original := outgoingText("draft")
	deps.Cache.Set(original)

	router := handlers.NewBusinessRouter(deps)
	router(context.Background(), nil, editedUpdate("final"))

	rec, ok := deps.Cache.Get(original.Key())
	require.True(t, ok)
	assert.Equal(t, "final", rec.Text.String, "cache must reflect the edit even when suppressed")

	writer.Close()
	store.mu.Lock()
	defer store.mu.Unlock()
	require.Len(t, store.updates, 1)
	assert.Equal(t, original.Key(), store.updates[0].key)
	assert.Equal(t, "final", store.updates[0].text.String)
}

func TestEditResolvesFromStoreOnCacheMiss(t *testing.T) {
	original := outgoingText("draft")
	store := &stubStore{owner: quietOwner(), stored: &original}
	deps, writer := testDeps(store, &stubArchive{})
	writer.Run(context.Background())

	router := handlers.NewBusinessRouter(deps)
	router(context.Background(), nil, editedUpdate("final"))

	writer.Close()
	store.mu.Lock()
	defer store.mu.Unlock()
	require.Len(t, store.updates, 1, "a cache miss must fall back to the store snapshot")
	assert.Equal(t, original.Key(), store.updates[0].key)
}

func TestSuppressedOutgoingDeletionArchivedAndPurged(t *testing.T) {
	store := &stubStore{owner: quietOwner()}
	archive := &stubArchive{}
	deps, writer := testDeps(store, archive)
	writer.Run(context.Background())

	original := outgoingText("draft")
	deps.Cache.Set(original)

	router := handlers.NewBusinessRouter(deps)
	router(context.Background(), nil, &models.Update{
		DeletedBusinessMessages: &models.BusinessMessagesDeleted{
			BusinessConnectionID: "conn-1",
			Chat:                 models.Chat{ID: 77},
			MessageIDs:           []int{5},
		},
	})

	archive.mu.Lock()
	require.Len(t, archive.batches, 1, "suppressed deletions must still be archived")
	require.Len(t, archive.batches[0], 1)
	assert.Equal(t, "DELETED (text)", archive.batches[0][0].ContentType)
	archive.mu.Unlock()

	_, ok := deps.Cache.Get(original.Key())
	assert.False(t, ok, "deleted record must leave the cache")

	writer.Close()
	store.mu.Lock()
	defer store.mu.Unlock()
	assert.Contains(t, store.deletes, original.Key())
}
