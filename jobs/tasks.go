package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/stockcount/internal/counting"
	"github.com/odyssey-erp/stockcount/internal/export"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskCountBackup writes the persisted count ledger to a backup file.
	TaskCountBackup = "count:backup"
)

// CountBackupPayload selects how a backup is rendered. Empty fields fall back
// to the active defaults of the handler.
type CountBackupPayload struct {
	Location    counting.Location `json:"location,omitempty"`
	Format      export.Format     `json:"format,omitempty"`
	RequestedAt time.Time         `json:"requested_at"`
}

// NewCountBackupTask constructs an Asynq task for a ledger backup.
func NewCountBackupTask(payload CountBackupPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskCountBackup, body, asynq.Queue(QueueDefault)), nil
}
