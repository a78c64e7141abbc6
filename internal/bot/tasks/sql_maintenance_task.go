package tasks

import (
	"context"
	"fmt"
	"time"
)

const maintenanceTimeout = 5 * time.Minute

// newSQLMaintenanceTask compacts the correlation database within maintenanceTimeout.
func newSQLMaintenanceTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", "sql_maintenance")

	return func(ctx context.Context) error {
		dbPath := ""
		if deps.Config != nil {
			dbPath = deps.Config.Database.Path
		}

		timeoutCtx, cancel := context.WithTimeout(ctx, maintenanceTimeout)
		defer cancel()

		log.InfoContext(ctx, "Compacting correlation store", "db_path", dbPath, "timeout", maintenanceTimeout)
		startTime := time.Now()

		err := deps.Store.RunSQLMaintenance(timeoutCtx)
		duration := time.Since(startTime)
		if err != nil {
			log.ErrorContext(ctx, "Correlation store compaction failed", "db_path", dbPath, "error", err, "duration", duration)
			return fmt.Errorf("sql maintenance of %s failed: %w", dbPath, err)
		}

		log.InfoContext(ctx, "Correlation store compacted", "db_path", dbPath, "duration", duration)
		return nil
	}
}
