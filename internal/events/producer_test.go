package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	skafka "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	messages []skafka.Message
	err      error
	closed   bool
}

func (f *fakeWriter) WriteMessages(ctx context.Context, msgs ...skafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func TestPublish(t *testing.T) {
	w := &fakeWriter{}
	p := NewProducerWithWriter(w)

	event := TrackingEventMessage{
		EntityType:  "shipment",
		TrackingKey: "SP250601-ABCDEF01",
		Status:      "in_transit",
		Description: "Departed hub",
		Timestamp:   time.Now().Unix(),
	}
	p.Publish(context.Background(), event.TrackingKey, event)

	require.Len(t, w.messages, 1)
	assert.Equal(t, []byte("SP250601-ABCDEF01"), w.messages[0].Key)

	var decoded TrackingEventMessage
	require.NoError(t, json.Unmarshal(w.messages[0].Value, &decoded))
	assert.Equal(t, event, decoded)
}

func TestPublishWriteErrorIsSwallowed(t *testing.T) {
	w := &fakeWriter{err: errors.New("broker unreachable")}
	p := NewProducerWithWriter(w)

	// must not panic or surface the error to the caller
	p.Publish(context.Background(), "key", map[string]string{"a": "b"})
	assert.Empty(t, w.messages)
}

func TestNilProducerIsSafe(t *testing.T) {
	var p *Producer
	p.Publish(context.Background(), "key", "value")
	assert.NoError(t, p.Close())
}

func TestClose(t *testing.T) {
	w := &fakeWriter{}
	p := NewProducerWithWriter(w)
	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}
