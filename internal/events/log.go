package events

import (
	"context"

	"go.uber.org/zap"
)

// LogEmitter writes events to a zap logger.
type LogEmitter struct {
	logger *zap.Logger
}

// NewLogEmitter creates a log emitter.
func NewLogEmitter(logger *zap.Logger) *LogEmitter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogEmitter{logger: logger}
}

// Emit implements Emitter.
func (l *LogEmitter) Emit(_ context.Context, e Event) error {
	fields := []zap.Field{
		zap.String("event_id", e.ID.String()),
		zap.String("kind", string(e.Kind)),
		zap.Uint64("stream_id", e.StreamID),
	}
	if e.Amount != "" {
		fields = append(fields, zap.String("amount", e.Amount))
	}
	if e.Kind == KindStreamCancelled {
		fields = append(fields, zap.String("sender_refund", e.SenderRefund), zap.String("recipient_amount", e.RecipientAmount))
	}
	l.logger.Info("stream event", fields...)
	return nil
}
