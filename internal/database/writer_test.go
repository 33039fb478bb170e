package database_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/telewatch/telewatch/internal/database"
)

// orderedStore records the order mutations reach the store. Upserts block on
// gate until release is called, which lets a test hold the worker busy while
// the queue fills up.
type orderedStore struct {
	database.Store

	mu   sync.Mutex
	ops  []string
	live map[database.MessageKey]bool

	entered chan struct{}
	once    sync.Once
	gate    chan struct{}
}

func newOrderedStore() *orderedStore {
	return &orderedStore{
		live:    make(map[database.MessageKey]bool),
		entered: make(chan struct{}),
		gate:    make(chan struct{}),
	}
}

func (s *orderedStore) release() {
	close(s.gate)
}

func (s *orderedStore) UpsertMessage(ctx context.Context, m *database.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.once.Do(func() { close(s.entered) })
	<-s.gate

	s.mu.Lock()
	defer s.mu.Unlock()
	s.ops = append(s.ops, "upsert")
	s.live[m.Key()] = true
	return nil
}

func (s *orderedStore) DeleteMessage(ctx context.Context, key database.MessageKey) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.ops = append(s.ops, "delete")
	delete(s.live, key)
	return true, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestFullQueuePreservesOrder(t *testing.T) {
	store := newOrderedStore()
	w := database.NewAsyncWriter(store, 1, discardLogger())
	w.Run(context.Background())

	rec := &database.Message{OwnerID: 1, ChatID: 2, MessageID: 3, ContentType: "text"}
	key := rec.Key()

	w.EnqueueUpsert(rec)
	<-store.entered // the worker is now inside the first upsert
	w.EnqueueUpsert(rec)

	delivered := make(chan struct{})
	go func() {
		w.EnqueueDelete(key)
		close(delivered)
	}()

	// The queue is full: the delete must wait for capacity instead of
	// overtaking the queued upsert.
	select {
	case <-delivered:
		t.Fatal("delete accepted while the queue was full")
	case <-time.After(50 * time.Millisecond):
	}

	store.release()
	<-delivered
	w.Close()

	store.mu.Lock()
	defer store.mu.Unlock()
	assert.Equal(t, []string{"upsert", "upsert", "delete"}, store.ops)
	assert.False(t, store.live[key], "delete must win over earlier queued upserts")
}

func TestCloseDrainsAfterCancel(t *testing.T) {
	store := newOrderedStore()
	store.release()

	ctx, cancel := context.WithCancel(context.Background())
	w := database.NewAsyncWriter(store, 4, discardLogger())
	w.Run(ctx)
	cancel()

	rec := &database.Message{OwnerID: 1, ChatID: 2, MessageID: 3, ContentType: "text"}
	w.EnqueueUpsert(rec)
	w.Close()

	store.mu.Lock()
	defer store.mu.Unlock()
	assert.True(t, store.live[rec.Key()], "writes queued during shutdown must still reach the store")
}
