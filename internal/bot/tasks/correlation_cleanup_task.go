package tasks

import (
	"context"
	"fmt"
	"time"
)

const cleanupTimeout = 2 * time.Minute

// newCorrelationCleanupTask creates a task that deletes correlations older than
// database.retention. A zero retention keeps every record and the task does nothing.
func newCorrelationCleanupTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", "correlation_cleanup")

	return func(ctx context.Context) error {
		retention := deps.Config.Database.Retention
		if retention <= 0 {
			log.DebugContext(ctx, "Retention disabled, keeping all correlations")
			return nil
		}

		now := time.Now
		if deps.Now != nil {
			now = deps.Now
		}
		cutoff := now().Add(-retention)

		timeoutCtx, cancel := context.WithTimeout(ctx, cleanupTimeout)
		defer cancel()

		log.InfoContext(ctx, "Deleting expired correlations", "cutoff", cutoff, "retention", retention)
		deleted, err := deps.Store.DeleteCorrelationsBefore(timeoutCtx, cutoff)
		if err != nil {
			log.ErrorContext(ctx, "Correlation cleanup failed", "error", err)
			return fmt.Errorf("correlation cleanup failed: %w", err)
		}

		log.InfoContext(ctx, "Correlation cleanup completed", "deleted", deleted)
		return nil
	}
}
