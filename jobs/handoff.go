package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-entry/internal/entry"
	jobmetrics "github.com/odyssey-erp/odyssey-entry/internal/jobs"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// TaskEnqueuer is satisfied by *asynq.Client.
type TaskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// HandoffEnqueuer implements entry.BatchHandoff by queueing a task.
type HandoffEnqueuer struct {
	client TaskEnqueuer
}

var _ entry.BatchHandoff = (*HandoffEnqueuer)(nil)

// NewHandoffEnqueuer wraps an asynq client.
func NewHandoffEnqueuer(client TaskEnqueuer) *HandoffEnqueuer {
	return &HandoffEnqueuer{client: client}
}

// HandOff enqueues the batches of a saved document. A duplicate task id means
// the same save was already queued and is not an error.
func (e *HandoffEnqueuer) HandOff(ctx context.Context, h entry.Handoff) error {
	task, err := NewBatchHandoffTask(h)
	if err != nil {
		return err
	}
	if _, err := e.client.EnqueueContext(ctx, task); err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) {
			return nil
		}
		return fmt.Errorf("jobs: enqueue handoff %s: %w", h.DocumentID, err)
	}
	return nil
}

// LedgerSink receives saved batches on the ledger side.
type LedgerSink interface {
	PostBatches(ctx context.Context, h entry.Handoff) error
}

// LogSink writes hand-offs to the log. It stands in until a ledger service
// is attached.
type LogSink struct {
	Logger *slog.Logger
}

// PostBatches logs one line per batch.
func (s LogSink) PostBatches(ctx context.Context, h entry.Handoff) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	for _, b := range h.Batches {
		logger.InfoContext(ctx, "ledger batch",
			slog.String("document_id", h.DocumentID),
			slog.String("document_no", h.DocumentNo),
			slog.String("key", b.Key),
			slog.Float64("quantity", b.TotalQuantity),
			slog.Float64("purchase_price", b.PurchasePrice),
			slog.Float64("total", b.Total),
		)
	}
	return nil
}

// BatchHandoffJob consumes hand-off tasks.
type BatchHandoffJob struct {
	Sink    LedgerSink
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewBatchHandoffJob wires dependencies for the hand-off handler.
func NewBatchHandoffJob(sink LedgerSink, logger *slog.Logger, metrics *jobmetrics.Metrics) *BatchHandoffJob {
	return &BatchHandoffJob{Sink: sink, Logger: logger, Metrics: metrics}
}

// Handle processes TaskBatchHandoff tasks. Malformed payloads are not retried.
func (j *BatchHandoffJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Sink == nil {
		return errors.New("batch handoff: handler not configured")
	}
	var h entry.Handoff
	if err := json.Unmarshal(t.Payload(), &h); err != nil {
		return fmt.Errorf("batch handoff: decode payload: %v: %w", err, asynq.SkipRetry)
	}
	if h.DocumentID == "" {
		return fmt.Errorf("batch handoff: missing document id: %w", asynq.SkipRetry)
	}

	tracker := j.metrics().Track(TaskBatchHandoff)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.String("document_id", h.DocumentID), slog.String("kind", string(h.Kind)))
	if err := j.Sink.PostBatches(ctx, h); err != nil {
		logger.Error("post batches", slog.Any("error", err))
		return err
	}
	j.metrics().AddBatches(string(h.Kind), len(h.Batches))
	logger.Info("batches handed off", slog.Int("batches", len(h.Batches)))
	return nil
}

func (j *BatchHandoffJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskBatchHandoff))
	}
	return slog.Default().With(slog.String("job", TaskBatchHandoff))
}

func (j *BatchHandoffJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
