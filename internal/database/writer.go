package database

import (
	"context"
	"database/sql"
	"log/slog"
	"sync"
)

// writeOp is one queued store mutation.
type writeOp struct {
	kind    opKind
	message *Message

	key         MessageKey
	text        sql.NullString
	contentType sql.NullString
	fingerprint sql.NullString
	extra       sql.NullString
}

type opKind int

const (
	opUpsert opKind = iota
	opUpdate
	opDelete
)

// AsyncWriter applies store mutations off the event path through a bounded
// queue drained by a single worker. The queue length is observable, which is
// what the backup threshold logic keys off. Failed writes are logged and
// dropped: the cache already reflects the intended state for live traffic,
// and the store is best-effort single-attempt by design.
type AsyncWriter struct {
	store  Store
	logger *slog.Logger

	queue chan writeOp
	wg    sync.WaitGroup
}

// NewAsyncWriter creates a writer with the given queue capacity. Call Run to
// start draining and Close to flush and stop.
func NewAsyncWriter(store Store, queueLen int, logger *slog.Logger) *AsyncWriter {
	if queueLen <= 0 {
		queueLen = 1024
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AsyncWriter{
		store:  store,
		logger: logger.With("component", "async_writer"),
		queue:  make(chan writeOp, queueLen),
	}
}

// Run drains the queue until Close is called. It is intended to be run as a
// single goroutine; the ctx bounds each individual store call.
func (w *AsyncWriter) Run(ctx context.Context) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		for op := range w.queue {
			// The final drain happens after ctx is cancelled; those writes
			// must still reach the store.
			if ctx.Err() != nil {
				w.apply(context.Background(), op)
				continue
			}
			w.apply(ctx, op)
		}
	}()
}

// Close stops accepting work, waits for the queue to drain, and returns.
func (w *AsyncWriter) Close() {
	close(w.queue)
	w.wg.Wait()
}

// Backlog reports the number of queued, not-yet-applied mutations.
func (w *AsyncWriter) Backlog() int {
	return len(w.queue)
}

// EnqueueUpsert schedules an insert/replace of a full message record.
func (w *AsyncWriter) EnqueueUpsert(message *Message) {
	w.enqueue(writeOp{kind: opUpsert, message: message})
}

// EnqueueContentUpdate schedules an update of the mutable content fields.
func (w *AsyncWriter) EnqueueContentUpdate(key MessageKey, text, contentType, fingerprint, extra sql.NullString) {
	w.enqueue(writeOp{
		kind:        opUpdate,
		key:         key,
		text:        text,
		contentType: contentType,
		fingerprint: fingerprint,
		extra:       extra,
	})
}

// EnqueueDelete schedules removal of a message record.
func (w *AsyncWriter) EnqueueDelete(key MessageKey) {
	w.enqueue(writeOp{kind: opDelete, key: key})
}

func (w *AsyncWriter) enqueue(op writeOp) {
	select {
	case w.queue <- op:
	default:
		// Queue full: wait for capacity. Applying inline here would let this
		// mutation overtake queued ones for the same key, so a stale queued
		// upsert could resurrect a record after its delete ran.
		w.logger.Warn("Write queue full, waiting for capacity", "backlog", len(w.queue))
		w.queue <- op
	}
}

func (w *AsyncWriter) apply(ctx context.Context, op writeOp) {
	var err error
	switch op.kind {
	case opUpsert:
		err = w.store.UpsertMessage(ctx, op.message)
	case opUpdate:
		_, err = w.store.UpdateMessageContent(ctx, op.key, op.text, op.contentType, op.fingerprint, op.extra)
	case opDelete:
		_, err = w.store.DeleteMessage(ctx, op.key)
	}
	if err != nil {
		w.logger.Error("Async store write failed", "kind", int(op.kind), "error", err)
	}
}
