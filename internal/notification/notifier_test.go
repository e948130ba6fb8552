package notification

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"gamekeys-be/internal/logger"

	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type fakeChannel struct {
	exchange string
	key      string
	msg      amqp.Publishing
	err      error
}

func (f *fakeChannel) Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	f.exchange, f.key, f.msg = exchange, key, msg
	return f.err
}

func TestAMQPNotifier_Notify(t *testing.T) {
	t.Run("publishes persistent json", func(t *testing.T) {
		ch := &fakeChannel{}
		n := NewAMQPNotifier(ch, "gamekeys.events")
		ctx := logger.WithRequestID(context.Background(), "req-1")

		err := n.Notify(ctx, Event{Type: EventOrderFulfilled, OrderID: 12, UserID: 7, Requested: 3, Delivered: 3, Complete: true})
		require.NoError(t, err)

		assert.Equal(t, "gamekeys.events", ch.exchange)
		assert.Equal(t, EventOrderFulfilled, ch.key)
		assert.Equal(t, uint8(amqp.Persistent), ch.msg.DeliveryMode)
		assert.NotEmpty(t, ch.msg.MessageId)
		assert.Equal(t, "req-1", ch.msg.Headers["request_id"])

		var ev Event
		require.NoError(t, json.Unmarshal(ch.msg.Body, &ev))
		assert.Equal(t, uint(12), ev.OrderID)
		assert.True(t, ev.Complete)
		assert.False(t, ev.OccurredAt.IsZero())
	})

	t.Run("publish failure", func(t *testing.T) {
		n := NewAMQPNotifier(&fakeChannel{err: errors.New("channel closed")}, "x")
		err := n.Notify(context.Background(), Event{Type: EventOrderFulfilled})
		assert.ErrorContains(t, err, "channel closed")
		assert.NoError(t, n.Close())
	})
}

func TestLogNotifier(t *testing.T) {
	core, observed := observer.New(zapcore.InfoLevel)
	defer logger.Replace(zap.New(core))()

	err := NewLogNotifier().Notify(context.Background(), Event{Type: EventOrderFulfilled, OrderID: 4, Delivered: 2, Requested: 3})
	require.NoError(t, err)

	logs := observed.FilterMessage("order notification").All()
	require.Len(t, logs, 1)
	assert.EqualValues(t, 4, logs[0].ContextMap()["order_id"])
	assert.Equal(t, false, logs[0].ContextMap()["complete"])
}
