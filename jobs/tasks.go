package jobs

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-entry/internal/entry"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// QueueLedger carries batch hand-offs ahead of housekeeping work.
	QueueLedger = "ledger"

	// TaskBatchHandoff forwards the batches of a saved document to the ledger.
	TaskBatchHandoff = "entry:batches.handoff"
	// TaskIdempotencyCleanup purges expired save keys.
	TaskIdempotencyCleanup = "entry:idempotency.cleanup"
)

// IdempotencyCleanupPayload sets how long save keys are kept.
type IdempotencyCleanupPayload struct {
	RetentionHours int `json:"retention_hours"`
}

// NewBatchHandoffTask encodes a hand-off. The task id makes a replayed
// enqueue of the same save a no-op while the first task is retained.
func NewBatchHandoffTask(h entry.Handoff) (*asynq.Task, error) {
	if h.DocumentID == "" {
		return nil, fmt.Errorf("jobs: handoff without document id")
	}
	data, err := json.Marshal(h)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskBatchHandoff, data,
		asynq.TaskID(handoffTaskID(h)),
		asynq.Queue(QueueLedger),
		asynq.MaxRetry(10),
		asynq.Retention(24*time.Hour),
	), nil
}

func handoffTaskID(h entry.Handoff) string {
	return "handoff:" + h.DocumentID + ":" + strconv.FormatInt(h.SavedAt.UnixNano(), 10)
}

// NewIdempotencyCleanupTask constructs the periodic cleanup task.
func NewIdempotencyCleanupTask(retention time.Duration) (*asynq.Task, error) {
	hours := int(retention / time.Hour)
	if hours <= 0 {
		return nil, fmt.Errorf("jobs: cleanup retention must be at least one hour")
	}
	data, err := json.Marshal(IdempotencyCleanupPayload{RetentionHours: hours})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, data, asynq.Queue(QueueDefault)), nil
}
