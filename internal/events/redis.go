package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	channelPrefix = "stream:"
	// FirehoseChannel receives every event for indexers.
	FirehoseChannel = "streams:events"
	publishTimeout  = 5 * time.Second
)

// StreamChannel returns the pub/sub channel for one stream.
func StreamChannel(streamID uint64) string {
	return channelPrefix + strconv.FormatUint(streamID, 10)
}

// RedisPubSub publishes events to Redis channels and relays them to subscribers,
// so every service instance sees every event.
type RedisPubSub struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisPubSub creates a Redis pub/sub bridge for stream events.
func NewRedisPubSub(client *redis.Client, logger *zap.Logger) *RedisPubSub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisPubSub{client: client, logger: logger}
}

// Emit publishes e on its stream channel and on the firehose.
func (r *RedisPubSub) Emit(ctx context.Context, e Event) error {
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	pipe := r.client.Pipeline()
	pipe.Publish(ctx, StreamChannel(e.StreamID), body)
	pipe.Publish(ctx, FirehoseChannel, body)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("publish %s: %w", e.Kind, err)
	}
	return nil
}

// Subscribe relays events published on channel to handler until the returned
// cancel function is called.
func (r *RedisPubSub) Subscribe(channel string, handler func(Event)) (cancel func(), err error) {
	ctx, cancelCtx := context.WithCancel(context.Background())
	pubsub := r.client.Subscribe(ctx, channel)
	if _, err = pubsub.Receive(ctx); err != nil {
		cancelCtx()
		return nil, fmt.Errorf("subscribe: %w", err)
	}
	ch := pubsub.Channel()
	go func() {
		defer pubsub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var e Event
				if err := json.Unmarshal([]byte(msg.Payload), &e); err != nil {
					r.logger.Warn("dropping malformed event", zap.String("channel", channel), zap.Error(err))
					continue
				}
				handler(e)
			}
		}
	}()
	return cancelCtx, nil
}
