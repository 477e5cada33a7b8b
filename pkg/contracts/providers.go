package contracts

import (
	"context"
	"time"

	"github.com/XavierBriggs/fortuna/services/edge-ledger/pkg/models"
)

// ModelProvider produces a win probability for one outcome of a match
type ModelProvider interface {
	// Predict returns nil when the model has no opinion on the match
	Predict(ctx context.Context, match models.MatchContext) (*float64, error)
}

// RatingProvider supplies team strength estimates
type RatingProvider interface {
	// Rating returns nil when the team is unknown under that exact name
	Rating(ctx context.Context, team, sportKey string) (*models.TeamRating, error)

	// Teams lists the names the provider knows for a sport
	Teams(ctx context.Context, sportKey string) ([]string, error)
}

// OddsProvider returns the current quotes for a sport
type OddsProvider interface {
	Snapshot(ctx context.Context, sportKey string) ([]models.RawQuote, error)
}

// ScoreProvider returns games for one sport on one calendar day (UTC)
type ScoreProvider interface {
	Results(ctx context.Context, sportKey string, day time.Time) ([]models.GameResult, error)
}

// SplitProvider returns public betting percentages for one selection
type SplitProvider interface {
	// Split returns nil when no split data exists
	Split(ctx context.Context, sportKey, matchID, selection string) (*models.PublicSplit, error)
}
