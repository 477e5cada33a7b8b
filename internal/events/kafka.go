package events

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/XavierBriggs/fortuna/services/edge-ledger/pkg/contracts"
	"github.com/XavierBriggs/fortuna/services/edge-ledger/pkg/models"
)

// MessageWriter is satisfied by *kafka.Writer
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes events to Kafka topics keyed by opportunity id
type KafkaPublisher struct {
	writer        MessageWriter
	detectedTopic string
	settledTopic  string
	log           *zap.Logger
}

var _ contracts.EventPublisher = (*KafkaPublisher)(nil)

// NewKafkaPublisher creates a publisher; topics are set per message
func NewKafkaPublisher(brokers []string, detectedTopic, settledTopic string, log *zap.Logger) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
		BatchTimeout:           10 * time.Millisecond,
		ReadTimeout:            10 * time.Second,
		WriteTimeout:           10 * time.Second,
	}
	return NewKafkaWriterPublisher(writer, detectedTopic, settledTopic, log)
}

// NewKafkaWriterPublisher publishes through an existing writer
func NewKafkaWriterPublisher(writer MessageWriter, detectedTopic, settledTopic string, log *zap.Logger) *KafkaPublisher {
	return &KafkaPublisher{
		writer:        writer,
		detectedTopic: detectedTopic,
		settledTopic:  settledTopic,
		log:           log.Named("kafka"),
	}
}

func (p *KafkaPublisher) PublishDetected(ctx context.Context, opp models.Opportunity) error {
	return p.publish(ctx, p.detectedTopic, TypeDetected, opp)
}

func (p *KafkaPublisher) PublishSettled(ctx context.Context, opp models.Opportunity) error {
	return p.publish(ctx, p.settledTopic, TypeSettled, opp)
}

func (p *KafkaPublisher) publish(ctx context.Context, topic, eventType string, opp models.Opportunity) error {
	value, err := encode(eventType, opp)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Topic: topic,
		Key:   []byte(strconv.FormatInt(opp.ID, 10)),
		Value: value,
		Time:  time.Now(),
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish %s to %s: %w", eventType, topic, err)
	}

	p.log.Debug("published event", zap.String("type", eventType), zap.Int64("opportunity_id", opp.ID))
	return nil
}

// Close flushes and closes the writer
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
