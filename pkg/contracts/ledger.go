package contracts

import (
	"context"
	"time"

	"github.com/XavierBriggs/fortuna/services/edge-ledger/pkg/models"
)

// OpportunityFilter narrows opportunity listings
type OpportunityFilter struct {
	Outcome  *models.Outcome
	SportKey string
	Since    *time.Time
	Until    *time.Time
	Limit    int
	Offset   int
}

// OpportunityStore is the durable opportunity ledger
type OpportunityStore interface {
	Upsert(ctx context.Context, c models.Candidate) (int64, error)
	Get(ctx context.Context, id int64) (*models.Opportunity, error)
	List(ctx context.Context, f OpportunityFilter) ([]models.Opportunity, error)

	PendingStarted(ctx context.Context, now time.Time) ([]models.Opportunity, error)
	PendingKickoffBetween(ctx context.Context, from, to time.Time) ([]models.Opportunity, error)

	Settle(ctx context.Context, id int64, outcome models.Outcome, profit float64, at time.Time) (bool, error)
	FlagReview(ctx context.Context, id int64, reason string) error
	RecordClosingOdds(ctx context.Context, id int64, price float64) error
	Confirm(ctx context.Context, id int64, stake, odds *float64) (*models.Opportunity, error)
	PurgeStalePending(ctx context.Context, before time.Time) (int64, error)

	SettledStats(ctx context.Context, sportKey string) (models.SettledStats, error)
	BucketPerformance(ctx context.Context, sportKey string, bounds []float64, since time.Time) ([]models.BucketPerformance, error)
}

// FactorCache stores computed calibration factors
type FactorCache interface {
	GetFactor(ctx context.Context, sportKey string) (*models.CalibrationFactor, error)
	SetFactor(ctx context.Context, f models.CalibrationFactor, ttl time.Duration) error
}

// EventPublisher publishes ledger events to downstream consumers
type EventPublisher interface {
	PublishDetected(ctx context.Context, opp models.Opportunity) error
	PublishSettled(ctx context.Context, opp models.Opportunity) error
	Close() error
}
