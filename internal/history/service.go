// Package history serves merged chat history: live records from the online
// store combined with frozen records from the cold archive.
package history

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/telewatch/telewatch/internal/database"
)

// Store is the online read side.
type Store interface {
	ListMessagesInChat(ctx context.Context, ownerID, chatID int64, limit int) ([]database.Message, error)
}

// Archive is the cold archive read side.
type Archive interface {
	ScanMonth(ctx context.Context, month time.Time) ([]database.Message, error)
}

// Service merges both tiers for history queries. Archive partitions are
// scanned concurrently with a worker bound; on key collisions the store copy
// wins, since an archived record can be stale relative to a live edit.
type Service struct {
	store      Store
	archive    Archive
	epoch      time.Time
	workers    int
	maxResults int
	log        *slog.Logger
}

// NewService creates a history service. epoch is the first month that can
// hold archived records.
func NewService(store Store, archive Archive, epoch time.Time, workers, maxResults int, log *slog.Logger) *Service {
	if workers <= 0 {
		workers = 1
	}
	return &Service{
		store:      store,
		archive:    archive,
		epoch:      epoch,
		workers:    workers,
		maxResults: maxResults,
		log:        log.With("component", "history_service"),
	}
}

// Query returns up to maxResults messages for one chat, newest first,
// merging the online store with every archive partition from the epoch to
// the current month.
func (s *Service) Query(ctx context.Context, ownerID, chatID int64) ([]database.Message, error) {
	live, err := s.store.ListMessagesInChat(ctx, ownerID, chatID, s.maxResults)
	if err != nil {
		return nil, fmt.Errorf("failed to read live history: %w", err)
	}

	merged := make(map[database.MessageKey]database.Message, len(live))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for _, month := range s.months() {
		g.Go(func() error {
			records, err := s.archive.ScanMonth(gctx, month)
			if err != nil {
				return fmt.Errorf("failed to scan %s: %w", month.Format("2006-01"), err)
			}
			mu.Lock()
			defer mu.Unlock()
			for _, rec := range records {
				if rec.OwnerID != ownerID || rec.ChatID != chatID {
					continue
				}
				merged[rec.Key()] = rec
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Store copies overwrite archived ones: a live record is always at least
	// as fresh as its frozen counterpart.
	for _, rec := range live {
		merged[rec.Key()] = rec
	}

	out := make([]database.Message, 0, len(merged))
	for _, rec := range merged {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if len(out) > s.maxResults {
		out = out[:s.maxResults]
	}

	s.log.DebugContext(ctx, "History query merged", "owner_id", ownerID, "chat_id", chatID,
		"live", len(live), "total", len(out))
	return out, nil
}

// months lists every partition month from the epoch through the current one.
func (s *Service) months() []time.Time {
	start := time.Date(s.epoch.Year(), s.epoch.Month(), 1, 0, 0, 0, 0, time.UTC)
	now := time.Now().UTC()
	end := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

	var months []time.Time
	for m := start; !m.After(end); m = m.AddDate(0, 1, 0) {
		months = append(months, m)
	}
	return months
}
