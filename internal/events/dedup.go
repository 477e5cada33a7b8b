package events

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/XavierBriggs/fortuna/services/edge-ledger/pkg/contracts"
	"github.com/XavierBriggs/fortuna/services/edge-ledger/pkg/models"
)

// KeyClaimer is the part of a Redis client dedup needs
type KeyClaimer interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// Deduplicated suppresses repeat detected events for the same selection at
// the same price within a TTL. Settled events always pass through.
type Deduplicated struct {
	next   contracts.EventPublisher
	client KeyClaimer
	ttl    time.Duration
}

var _ contracts.EventPublisher = (*Deduplicated)(nil)

// WithDedup wraps a publisher with Redis-backed deduplication
func WithDedup(next contracts.EventPublisher, client KeyClaimer, ttl time.Duration) *Deduplicated {
	return &Deduplicated{next: next, client: client, ttl: ttl}
}

func (d *Deduplicated) PublishDetected(ctx context.Context, opp models.Opportunity) error {
	key := DedupKey(opp)
	fresh, err := d.client.SetNX(ctx, key, "1", d.ttl).Result()
	if err != nil {
		return fmt.Errorf("failed to set dedup key: %w", err)
	}
	if !fresh {
		return nil
	}
	if err := d.next.PublishDetected(ctx, opp); err != nil {
		// release the claim so the next pass retries the event
		if delErr := d.client.Del(ctx, key).Err(); delErr != nil {
			return errors.Join(err, fmt.Errorf("failed to release dedup key: %w", delErr))
		}
		return err
	}
	return nil
}

func (d *Deduplicated) PublishSettled(ctx context.Context, opp models.Opportunity) error {
	return d.next.PublishSettled(ctx, opp)
}

func (d *Deduplicated) Close() error {
	return d.next.Close()
}

// DedupKey is ledger:dedup:{match}:{hash of selection and price}
func DedupKey(opp models.Opportunity) string {
	hash := sha256.Sum256([]byte(opp.SelectionKey + "|" + strconv.FormatFloat(opp.DecimalOdds, 'f', 3, 64)))
	return fmt.Sprintf("ledger:dedup:%s:%x", opp.MatchID, hash[:8])
}
