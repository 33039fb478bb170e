// Package backup runs the rolling drain-to-archive cycle: all live records in
// the online store are appended to the cold archive, then deleted one by one,
// with an audit record per cycle.
package backup

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/telewatch/telewatch/internal/config"
	"github.com/telewatch/telewatch/internal/database"
)

// Store is the subset of the online store the backup cycle needs.
type Store interface {
	ListAllMessages(ctx context.Context) ([]database.Message, error)
	DeleteMessage(ctx context.Context, key database.MessageKey) (bool, error)
	CountMessages(ctx context.Context, ownerID int64) (int, error)
	RecordBackupCycle(ctx context.Context, count int, status string, errMsg string) error
	LastSuccessfulBackup(ctx context.Context) (*database.BackupCycle, error)
}

// Archiver is the cold archive write side.
type Archiver interface {
	AppendBatch(ctx context.Context, records []database.Message) error
}

// Result summarizes one completed cycle.
type Result struct {
	Archived int
	Status   string
}

// Manager owns the rolling backup timer. The next run is anchored to the last
// successful cycle, not to process start, so restarts do not cause backup
// storms. Manual and threshold triggers run out of band and leave the rolling
// timer alone.
type Manager struct {
	store   Store
	archive Archiver
	cfg     config.BackupConfig
	log     *slog.Logger

	runCh chan chan Result

	mu       sync.Mutex
	ingested int
}

// NewManager creates a backup manager. Run must be called for triggers to
// have any effect.
func NewManager(store Store, archive Archiver, cfg config.BackupConfig, log *slog.Logger) *Manager {
	if cfg.CheckEvery <= 0 {
		cfg.CheckEvery = config.DefaultBackupCheckEvery
	}
	return &Manager{
		store:   store,
		archive: archive,
		cfg:     cfg,
		log:     log.With("component", "backup_manager"),
		runCh:   make(chan chan Result, 1),
	}
}

// Run drives the rolling cycle until ctx is cancelled, then attempts one
// final best-effort cycle before returning.
func (m *Manager) Run(ctx context.Context) error {
	next := m.nextRunTime(ctx)
	m.log.InfoContext(ctx, "Backup loop started", "next_run", next)

	timer := time.NewTimer(time.Until(next))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			m.log.Info("Shutting down, attempting final backup cycle")
			final, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			result := m.runCycle(final)
			cancel()
			m.log.Info("Final backup cycle finished", "archived", result.Archived, "status", result.Status)
			return ctx.Err()

		case <-timer.C:
			result := m.runCycle(ctx)
			m.log.InfoContext(ctx, "Scheduled backup cycle finished", "archived", result.Archived, "status", result.Status)
			// Roll from completion time, not from the missed deadline.
			timer.Reset(m.cfg.Interval)

		case reply := <-m.runCh:
			result := m.runCycle(ctx)
			m.log.InfoContext(ctx, "Out-of-band backup cycle finished", "archived", result.Archived, "status", result.Status)
			if reply != nil {
				reply <- result
			}
		}
	}
}

// TriggerManual requests an out-of-band cycle and waits for its result. The
// rolling timer is not reset.
func (m *Manager) TriggerManual(ctx context.Context) (Result, error) {
	reply := make(chan Result, 1)
	select {
	case m.runCh <- reply:
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
	select {
	case result := <-reply:
		return result, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// NoteIngested records one ingested message. Every CheckEvery messages the
// live count is compared against the threshold; crossing it schedules an
// out-of-band cycle without waiting for it.
func (m *Manager) NoteIngested(ctx context.Context) {
	m.mu.Lock()
	m.ingested++
	due := m.ingested%m.cfg.CheckEvery == 0
	m.mu.Unlock()
	if !due {
		return
	}

	count, err := m.store.CountMessages(ctx, 0)
	if err != nil {
		m.log.WarnContext(ctx, "Failed to count live messages for threshold check", "error", err)
		return
	}
	if count < m.cfg.Threshold {
		return
	}

	select {
	case m.runCh <- nil:
		m.log.InfoContext(ctx, "Threshold backup triggered", "live_messages", count, "threshold", m.cfg.Threshold)
	default:
		// A run is already pending.
	}
}

// nextRunTime anchors the first run to the last successful cycle; with no
// prior cycle the first run waits out a short grace period after startup.
func (m *Manager) nextRunTime(ctx context.Context) time.Time {
	last, err := m.store.LastSuccessfulBackup(ctx)
	if err != nil {
		m.log.WarnContext(ctx, "Failed to read last successful backup", "error", err)
	}
	if last == nil {
		return time.Now().Add(m.cfg.GracePeriod)
	}
	next := last.Timestamp.Add(m.cfg.Interval)
	if next.Before(time.Now()) {
		return time.Now().Add(m.cfg.GracePeriod)
	}
	return next
}

// runCycle executes one drain: list, archive, then delete. Archival failure
// aborts before any deletion, so a record is never lost without a frozen copy
// in the archive.
func (m *Manager) runCycle(ctx context.Context) Result {
	records, err := m.store.ListAllMessages(ctx)
	if err != nil {
		return m.record(ctx, 0, database.BackupStatusFailed, fmt.Errorf("failed to list messages: %w", err))
	}
	if len(records) == 0 {
		return m.record(ctx, 0, database.BackupStatusSuccess, nil)
	}

	if err := m.archive.AppendBatch(ctx, records); err != nil {
		return m.record(ctx, 0, database.BackupStatusFailed, fmt.Errorf("failed to archive batch: %w", err))
	}

	deleted := 0
	for i := range records {
		ok, err := m.store.DeleteMessage(ctx, records[i].Key())
		if err != nil {
			m.log.WarnContext(ctx, "Failed to delete archived message", "key", records[i].Key(), "error", err)
			continue
		}
		if ok {
			deleted++
		}
	}

	status := database.BackupStatusSuccess
	if deleted < len(records) {
		status = database.BackupStatusPartial
	}
	return m.record(ctx, deleted, status, nil)
}

// LogDeleted appends frozen copies of deleted records to the archive with
// their content type rewritten to mark the deletion. Records already drained
// by a backup cycle are unaffected; this covers deletions observed live.
func (m *Manager) LogDeleted(ctx context.Context, records []database.Message) error {
	if len(records) == 0 {
		return nil
	}
	tagged := make([]database.Message, len(records))
	for i, rec := range records {
		rec.ContentType = "DELETED (" + rec.ContentType + ")"
		tagged[i] = rec
	}
	if err := m.archive.AppendBatch(ctx, tagged); err != nil {
		return fmt.Errorf("failed to archive deleted records: %w", err)
	}
	return nil
}

func (m *Manager) record(ctx context.Context, count int, status string, cause error) Result {
	errMsg := ""
	if cause != nil {
		errMsg = cause.Error()
		m.log.ErrorContext(ctx, "Backup cycle failed", "error", cause)
	}
	if err := m.store.RecordBackupCycle(ctx, count, status, errMsg); err != nil {
		m.log.ErrorContext(ctx, "Failed to record backup cycle", "error", err)
	}
	return Result{Archived: count, Status: status}
}
