package kafka

import (
	"context"
	"errors"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error {
	w.closed = true
	return nil
}

func TestPublish(t *testing.T) {
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})

	t.Run("writes keyed message with headers", func(t *testing.T) {
		w := &recordingWriter{}
		p := NewProducerWithWriter(w, "lead-events", logger)

		err := p.Publish(context.Background(), &Envelope{
			Key:           "lead-1",
			EventType:     "lead.merged",
			TenantID:      "tenant-1",
			SchemaVersion: "1.0",
			Payload:       []byte(`{"primary_lead_id":"lead-1"}`),
		})
		require.NoError(t, err)
		require.Len(t, w.msgs, 1)

		msg := w.msgs[0]
		assert.Equal(t, "lead-events", msg.Topic)
		assert.Equal(t, "lead-1", string(msg.Key))
		assert.JSONEq(t, `{"primary_lead_id":"lead-1"}`, string(msg.Value))

		headers := map[string]string{}
		for _, h := range msg.Headers {
			headers[h.Key] = string(h.Value)
		}
		assert.Equal(t, map[string]string{
			"event_type":     "lead.merged",
			"tenant_id":      "tenant-1",
			"schema_version": "1.0",
		}, headers)
	})

	t.Run("returns writer errors", func(t *testing.T) {
		boom := errors.New("broker unavailable")
		p := NewProducerWithWriter(&recordingWriter{err: boom}, "lead-events", logger)
		assert.ErrorIs(t, p.Publish(context.Background(), &Envelope{Key: "k"}), boom)
	})

	t.Run("close closes the writer", func(t *testing.T) {
		w := &recordingWriter{}
		require.NoError(t, NewProducerWithWriter(w, "t", logger).Close())
		assert.True(t, w.closed)
	})
}
