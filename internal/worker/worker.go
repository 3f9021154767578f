package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/aura-streams/backend/internal/events"
	"github.com/aura-streams/backend/pkg/queue"
	"github.com/aura-streams/backend/pkg/storage"
)

// Jobs is the queue the archiver drains. *queue.Queue satisfies it.
type Jobs interface {
	Dequeue(ctx context.Context) (*queue.Job, error)
	Retry(ctx context.Context, job *queue.Job) error
}

// ReceiptStore persists receipts. *storage.S3 satisfies it.
type ReceiptStore interface {
	PutReceipt(ctx context.Context, key string, body []byte) error
}

// ReceiptArchiver writes every emitted stream event to object storage as a
// JSON receipt, keyed by stream and event id.
type ReceiptArchiver struct {
	store   ReceiptStore
	jobs    Jobs
	backoff time.Duration
	logger  *zap.Logger
}

// NewReceiptArchiver creates a receipt archiver.
func NewReceiptArchiver(store ReceiptStore, jobs Jobs, logger *zap.Logger) *ReceiptArchiver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReceiptArchiver{store: store, jobs: jobs, backoff: queue.RetryBackoff, logger: logger}
}

// Process executes one receipt job. Re-running a job overwrites the same key.
func (a *ReceiptArchiver) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeReceipt {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var e events.Event
	if err := json.Unmarshal(job.Payload, &e); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}
	body, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal receipt: %w", err)
	}
	key := storage.ReceiptKey(e.StreamID, e.ID.String())
	if err := a.store.PutReceipt(ctx, key, body); err != nil {
		return err
	}
	a.logger.Info("receipt archived",
		zap.Uint64("stream_id", e.StreamID),
		zap.String("kind", string(e.Kind)),
		zap.String("s3_key", key),
	)
	return nil
}

// Run starts the worker loop: dequeue, process, retry on error.
func (a *ReceiptArchiver) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			a.logger.Info("receipt worker stopping")
			return
		default:
		}

		job, err := a.jobs.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			a.logger.Warn("dequeue error", zap.Error(err))
			a.sleep(ctx)
			continue
		}
		if job == nil {
			continue
		}

		a.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := a.Process(ctx, job); err != nil {
			a.logger.Error("job failed", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt), zap.Error(err))
			if reErr := a.jobs.Retry(ctx, job); reErr != nil {
				a.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			a.sleep(ctx)
		}
	}
}

func (a *ReceiptArchiver) sleep(ctx context.Context) {
	t := time.NewTimer(a.backoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
