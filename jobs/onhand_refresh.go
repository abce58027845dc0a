package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"
)

// OnhandRefreshJob rebuilds the onhand_snapshots table. The snapshot is a
// reporting convenience; the ledger aggregate remains authoritative, so a
// failed or skipped refresh never affects correctness.
type OnhandRefreshJob struct {
	refresher SnapshotRefresher
	logger    *slog.Logger
}

// NewOnhandRefreshJob constructs the job.
func NewOnhandRefreshJob(refresher SnapshotRefresher, logger *slog.Logger) *OnhandRefreshJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &OnhandRefreshJob{refresher: refresher, logger: logger}
}

// ProcessTask handles TaskOnhandRefresh tasks.
func (j *OnhandRefreshJob) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload OnhandRefreshPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if err := j.refresher.RefreshSnapshot(ctx); err != nil {
		j.logger.Error("refresh onhand snapshot",
			slog.String("reason", payload.Reason),
			slog.Any("error", err))
		return err
	}
	j.logger.Info("onhand snapshot refreshed",
		slog.String("reason", payload.Reason),
		slog.String("device_id", payload.DeviceID))
	return nil
}
