package events

import (
	"context"
	"encoding/json"
	"log"

	skafka "github.com/segmentio/kafka-go"
)

// Writer is the subset of the kafka writer the producer needs; tests inject
// a fake.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...skafka.Message) error
	Close() error
}

// Producer publishes accepted tracking events to Kafka so downstream
// consumers (billing, notifications, analytics) can react without polling
// the registry. A nil *Producer is valid and publishes nothing, mirroring
// how push notifications are optional.
type Producer struct {
	writer Writer
}

// NewProducer creates a producer writing to the given broker and topic.
func NewProducer(brokerURL, topic string) *Producer {
	return &Producer{
		writer: &skafka.Writer{
			Addr:     skafka.TCP(brokerURL),
			Topic:    topic,
			Balancer: &skafka.LeastBytes{},
		},
	}
}

// NewProducerWithWriter allows injecting a test writer.
func NewProducerWithWriter(w Writer) *Producer {
	return &Producer{writer: w}
}

// Publish sends one JSON-encoded event keyed by the entity's public id (AWB
// or barcode) so events for the same entity stay ordered in one partition.
// Failures are logged, never propagated: event publication must not fail the
// request that produced the event.
func (p *Producer) Publish(ctx context.Context, key string, value interface{}) {
	if p == nil {
		return
	}

	b, err := json.Marshal(value)
	if err != nil {
		log.Printf("❌ Failed to marshal event payload: %v", err)
		return
	}

	msg := skafka.Message{Key: []byte(key), Value: b}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		log.Printf("❌ Kafka write error: %v", err)
	}
}

// Close shuts down the underlying writer.
func (p *Producer) Close() error {
	if p == nil {
		return nil
	}
	return p.writer.Close()
}
