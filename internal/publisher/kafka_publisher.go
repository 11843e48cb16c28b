package publisher

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"

	pkglog "github.com/pulsegram/relation-service/pkg/log"
)

// KafkaPublisher implements EventPublisher using confluent-kafka-go.
type KafkaPublisher struct {
	producer *kafka.Producer
	topic    string
	doneCh   chan struct{}
}

// NewKafkaPublisher creates a Kafka producer for relationship events.
func NewKafkaPublisher(brokers, topic string) (*KafkaPublisher, error) {
	p, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers": brokers,
		"acks":              "1",
		"linger.ms":         5,
		"compression.type":  "snappy",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	kp := &KafkaPublisher{
		producer: p,
		topic:    topic,
		doneCh:   make(chan struct{}),
	}
	go kp.deliveryReportLoop()

	return kp, nil
}

// deliveryReportLoop drains delivery reports so the producer's event channel
// never backs up. Failed deliveries are logged, not retried here.
func (p *KafkaPublisher) deliveryReportLoop() {
	defer close(p.doneCh)
	l := pkglog.L()

	for e := range p.producer.Events() {
		switch ev := e.(type) {
		case *kafka.Message:
			if ev.TopicPartition.Error != nil {
				l.Error().Err(ev.TopicPartition.Error).
					Str("topic", p.topic).
					Msg("relationship event delivery failed")
			}
		case kafka.Error:
			l.Warn().Str("kafka_error", ev.String()).Msg("kafka producer error")
		}
	}
}

// Publish enqueues one relationship event, keyed by the target user so all
// events about a user land on one partition in order.
func (p *KafkaPublisher) Publish(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal relationship event: %w", err)
	}

	msg := &kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &p.topic, Partition: kafka.PartitionAny},
		Key:            []byte(event.TargetID),
		Value:          payload,
	}
	if err := p.producer.Produce(msg, nil); err != nil {
		return fmt.Errorf("produce relationship event: %w", err)
	}
	return nil
}

// Close flushes outstanding messages and shuts the producer down.
func (p *KafkaPublisher) Close() error {
	p.producer.Flush(5000)
	p.producer.Close()
	<-p.doneCh
	return nil
}

// Ensure interface is satisfied at compile time.
var _ EventPublisher = (*KafkaPublisher)(nil)
