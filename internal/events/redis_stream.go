package events

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/XavierBriggs/fortuna/services/edge-ledger/pkg/contracts"
	"github.com/XavierBriggs/fortuna/services/edge-ledger/pkg/models"
)

// StreamAdder is the part of a Redis client the stream publisher needs
type StreamAdder interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
}

// StreamPublisher publishes events to Redis Streams, both to a
// sport-specific stream and to the global one
type StreamPublisher struct {
	client         StreamAdder
	detectedStream string
	settledStream  string
}

var _ contracts.EventPublisher = (*StreamPublisher)(nil)

// NewStreamPublisher creates a new stream publisher
func NewStreamPublisher(client StreamAdder, detectedStream, settledStream string) *StreamPublisher {
	return &StreamPublisher{
		client:         client,
		detectedStream: detectedStream,
		settledStream:  settledStream,
	}
}

// PublishDetected writes to {detected}.{sport} and {detected}
func (p *StreamPublisher) PublishDetected(ctx context.Context, opp models.Opportunity) error {
	return p.publish(ctx, p.detectedStream, TypeDetected, opp)
}

// PublishSettled writes to {settled}.{sport} and {settled}
func (p *StreamPublisher) PublishSettled(ctx context.Context, opp models.Opportunity) error {
	return p.publish(ctx, p.settledStream, TypeSettled, opp)
}

func (p *StreamPublisher) publish(ctx context.Context, base, eventType string, opp models.Opportunity) error {
	data, err := encode(eventType, opp)
	if err != nil {
		return err
	}

	for _, stream := range []string{fmt.Sprintf("%s.%s", base, opp.SportKey), base} {
		_, err := p.client.XAdd(ctx, &redis.XAddArgs{
			Stream: stream,
			Values: map[string]interface{}{
				"event": string(data),
			},
		}).Result()
		if err != nil {
			return fmt.Errorf("failed to publish to stream %s: %w", stream, err)
		}
	}
	return nil
}

// Close is a no-op; the Redis client is owned by the caller
func (p *StreamPublisher) Close() error { return nil }
