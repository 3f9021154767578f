package events_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/aura-streams/backend/internal/events"
)

var at = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

type failing struct{ err error }

func (f failing) Emit(context.Context, events.Event) error { return f.err }

func TestConstructors(t *testing.T) {
	t.Parallel()

	sender, recipient := uuid.New(), uuid.New()

	created := events.StreamCreated(1, sender, recipient, at)
	assert.Equal(t, events.KindStreamCreated, created.Kind)
	require.NotNil(t, created.Sender)
	assert.Equal(t, sender, *created.Sender)
	assert.NotEqual(t, uuid.Nil, created.ID)

	w := events.Withdraw(1, recipient, *uint256.NewInt(300), at)
	assert.Equal(t, "300", w.Amount)
	assert.Nil(t, w.Sender)

	c := events.StreamCancelled(2, *uint256.NewInt(1000), *uint256.NewInt(500), at)
	assert.Equal(t, "1000", c.SenderRefund)
	assert.Equal(t, "500", c.RecipientAmount)

	assert.NotEqual(t, events.StreamPaused(3, at).ID, events.StreamResumed(3, at).ID)

	body, err := json.Marshal(events.StreamPaused(3, at))
	require.NoError(t, err)
	assert.NotContains(t, string(body), "amount")
}

func TestMulti(t *testing.T) {
	t.Parallel()

	var a, b events.Recorder
	errA, errB := errors.New("a down"), errors.New("b down")
	m := events.Multi{&a, failing{errA}, &b, failing{errB}}

	err := m.Emit(context.Background(), events.StreamPaused(1, at))
	require.Error(t, err)
	assert.ErrorIs(t, err, errA)
	assert.ErrorIs(t, err, errB)
	assert.Len(t, a.Events(), 1, "every emitter is attempted")
	assert.Len(t, b.Events(), 1)

	assert.NoError(t, events.Multi{}.Emit(context.Background(), events.StreamPaused(1, at)))
	assert.NoError(t, events.Nop{}.Emit(context.Background(), events.StreamPaused(1, at)))
}

func TestRecorder(t *testing.T) {
	t.Parallel()

	var r events.Recorder
	ctx := context.Background()
	require.NoError(t, r.Emit(ctx, events.StreamPaused(1, at)))
	require.NoError(t, r.Emit(ctx, events.StreamResumed(1, at)))

	assert.Equal(t, []events.Kind{events.KindStreamPaused, events.KindStreamResumed}, r.Kinds())

	got := r.Events()
	got[0].StreamID = 99
	assert.Equal(t, uint64(1), r.Events()[0].StreamID, "Events returns a copy")
}

func TestLogEmitter(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.InfoLevel)
	em := events.NewLogEmitter(zap.New(core))

	require.NoError(t, em.Emit(context.Background(), events.StreamCancelled(4, *uint256.NewInt(7), *uint256.NewInt(3), at)))

	entries := logs.FilterMessage("stream event").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "StreamCancelled", fields["kind"])
	assert.Equal(t, uint64(4), fields["stream_id"])
	assert.Equal(t, "7", fields["sender_refund"])
	assert.Equal(t, "3", fields["recipient_amount"])
}

func TestStreamChannel(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "stream:42", events.StreamChannel(42))
	assert.NotEqual(t, events.FirehoseChannel, events.StreamChannel(0))
}
