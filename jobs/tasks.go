package jobs

import (
	"context"
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskOnhandRefresh rebuilds the on-hand reporting snapshot from the ledger.
	TaskOnhandRefresh = "ledger:onhand-refresh"
)

// OnhandRefreshPayload carries the trigger context of a refresh request.
type OnhandRefreshPayload struct {
	Reason   string `json:"reason"`
	DeviceID string `json:"device_id,omitempty"`
}

// NewOnhandRefreshTask constructs an Asynq task.
func NewOnhandRefreshTask(payload OnhandRefreshPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskOnhandRefresh, data), nil
}

// SnapshotRefresher is the ledger surface the refresh job needs.
type SnapshotRefresher interface {
	RefreshSnapshot(ctx context.Context) error
}
