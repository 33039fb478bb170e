package tasks

import (
	"context"
	"fmt"
	"time"
)

// newStaleCleanupTask creates the task that prunes live records older than
// the configured maximum age. It is a safety net: under normal operation the
// backup cycle drains the store long before records get this old.
func newStaleCleanupTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", "stale_cleanup")

	return func(ctx context.Context) error {
		taskCfg, ok := deps.Config.Scheduler.Tasks["stale_cleanup"]
		if !ok || taskCfg.MaxAge <= 0 {
			log.WarnContext(ctx, "Stale cleanup enabled without max_age, skipping")
			return nil
		}

		cutoff := time.Now().Add(-taskCfg.MaxAge)
		deleted, err := deps.Store.DeleteMessagesBefore(ctx, cutoff)
		if err != nil {
			log.ErrorContext(ctx, "Stale cleanup failed", "error", err)
			return fmt.Errorf("stale cleanup failed: %w", err)
		}

		if deleted > 0 {
			log.InfoContext(ctx, "Pruned stale records", "deleted", deleted, "cutoff", cutoff)
		}
		return nil
	}
}
