package events

import (
	"context"

	"github.com/aura-streams/backend/pkg/queue"
)

// QueueEmitter enqueues every event as a receipt archive job.
type QueueEmitter struct {
	queue *queue.Queue
}

// NewQueueEmitter creates an emitter that feeds the receipt worker.
func NewQueueEmitter(q *queue.Queue) *QueueEmitter {
	return &QueueEmitter{queue: q}
}

// Emit implements Emitter.
func (q *QueueEmitter) Emit(ctx context.Context, e Event) error {
	return q.queue.Enqueue(ctx, queue.JobTypeReceipt, e)
}
