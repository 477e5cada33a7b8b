// Package intake normalizes provider payloads into the shapes the edge
// engine consumes.
package intake

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/XavierBriggs/fortuna/services/edge-ledger/internal/resolver"
	"github.com/XavierBriggs/fortuna/services/edge-ledger/pkg/contracts"
	"github.com/XavierBriggs/fortuna/services/edge-ledger/pkg/models"
	"github.com/XavierBriggs/fortuna/services/edge-ledger/pkg/oddsmath"
)

// ErrMalformedQuote marks quotes missing identifying fields
var ErrMalformedQuote = errors.New("malformed quote")

var marketAliases = map[string]string{
	"h2h":        models.MarketMoneyline,
	"moneyline":  models.MarketMoneyline,
	"ml":         models.MarketMoneyline,
	"spreads":    models.MarketSpread,
	"spread":     models.MarketSpread,
	"handicap":   models.MarketSpread,
	"totals":     models.MarketTotal,
	"total":      models.MarketTotal,
	"over_under": models.MarketTotal,
}

var halfSuffixes = []string{"_h1", "_1h", "_first_half", "_1st_half"}

// Quote canonicalizes a raw quote. An unusable price is left as zero so
// the edge engine rejects and counts it; missing identity is an error.
func Quote(raw models.RawQuote) (models.MarketQuote, error) {
	q := models.MarketQuote{
		MatchID:      strings.TrimSpace(raw.MatchID),
		SportKey:     strings.TrimSpace(raw.SportKey),
		HomeTeam:     strings.TrimSpace(raw.HomeTeam),
		AwayTeam:     strings.TrimSpace(raw.AwayTeam),
		CommenceTime: raw.CommenceTime.UTC(),
		BookKey:      strings.ToLower(strings.TrimSpace(raw.BookKey)),
		OutcomeName:  strings.TrimSpace(raw.OutcomeName),
		Point:        raw.Point,
		ObservedAt:   raw.ObservedAt.UTC(),
		Period:       models.PeriodFull,
	}

	if q.MatchID == "" || q.OutcomeName == "" || q.HomeTeam == "" || q.AwayTeam == "" {
		return q, fmt.Errorf("%w: match %q outcome %q", ErrMalformedQuote, raw.MatchID, raw.OutcomeName)
	}

	market := strings.ToLower(strings.TrimSpace(raw.MarketKey))
	for _, suffix := range halfSuffixes {
		if strings.HasSuffix(market, suffix) {
			market = strings.TrimSuffix(market, suffix)
			q.Period = models.PeriodFirstHalf
			break
		}
	}
	canonical, ok := marketAliases[market]
	if !ok {
		canonical = market
	}
	q.MarketKey = canonical

	if q.MarketKey == models.MarketTotal {
		switch strings.ToLower(q.OutcomeName) {
		case "over", "o":
			q.OutcomeName = "Over"
		case "under", "u":
			q.OutcomeName = "Under"
		}
	}

	q.Price = price(raw)
	return q, nil
}

func price(raw models.RawQuote) float64 {
	if raw.DecimalPrice != nil {
		if oddsmath.ValidPrice(*raw.DecimalPrice) {
			return *raw.DecimalPrice
		}
		return 0
	}
	if raw.AmericanPrice != nil {
		if d, err := oddsmath.AmericanToDecimal(*raw.AmericanPrice); err == nil {
			return d
		}
	}
	return 0
}

// Probability maps a possibly-missing model output onto [0,1].
// Missing and not-a-number values become 0.
func Probability(p *float64) float64 {
	if p == nil || math.IsNaN(*p) || math.IsInf(*p, 0) {
		return 0
	}
	return math.Max(0, math.Min(1, *p))
}

// Split builds a public split from money and ticket shares given either as
// fractions or percentages. Nil when either side is missing.
func Split(money, tickets *float64) *models.PublicSplit {
	if money == nil || tickets == nil {
		return nil
	}
	m, t := share(*money), share(*tickets)
	if math.IsNaN(m) || math.IsNaN(t) {
		return nil
	}
	return &models.PublicSplit{MoneyPct: m, TicketPct: t}
}

func share(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return math.NaN()
	}
	if v > 1 {
		v /= 100
	}
	if v > 1 {
		return math.NaN()
	}
	return v
}

// Ratings looks up team ratings with an approximate-name fallback
type Ratings struct {
	provider contracts.RatingProvider
	matcher  resolver.Matcher
	timeout  time.Duration
	log      *zap.Logger
}

// NewRatings wraps a rating provider. provider may be nil.
func NewRatings(provider contracts.RatingProvider, matcher resolver.Matcher, timeout time.Duration, log *zap.Logger) *Ratings {
	return &Ratings{provider: provider, matcher: matcher, timeout: timeout, log: log.Named("ratings")}
}

// Rating returns nil when neither the exact name nor any close name is known
func (r *Ratings) Rating(ctx context.Context, team, sportKey string) (*models.TeamRating, error) {
	if r == nil || r.provider == nil {
		return nil, nil
	}

	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	rating, err := r.provider.Rating(callCtx, team, sportKey)
	if err != nil {
		return nil, fmt.Errorf("rating %s/%s: %w", sportKey, team, err)
	}
	if rating != nil {
		return rating, nil
	}

	teams, err := r.provider.Teams(callCtx, sportKey)
	if err != nil {
		return nil, fmt.Errorf("listing %s teams: %w", sportKey, err)
	}
	name, score, ok := r.matcher.Best(team, teams)
	if !ok {
		return nil, nil
	}
	r.log.Debug("rating resolved by approximate name",
		zap.String("team", team), zap.String("matched", name), zap.Float64("score", score))

	rating, err = r.provider.Rating(callCtx, name, sportKey)
	if err != nil {
		return nil, fmt.Errorf("rating %s/%s: %w", sportKey, name, err)
	}
	return rating, nil
}

// MatchContext assembles the model input for a quote. Rating failures are
// logged and leave the rating empty.
func (r *Ratings) MatchContext(ctx context.Context, q models.MarketQuote) models.MatchContext {
	mc := models.MatchContext{
		MatchID:      q.MatchID,
		SportKey:     q.SportKey,
		HomeTeam:     q.HomeTeam,
		AwayTeam:     q.AwayTeam,
		CommenceTime: q.CommenceTime,
		MarketKey:    q.MarketKey,
		Period:       q.Period,
		OutcomeName:  q.OutcomeName,
		Point:        q.Point,
	}
	if r == nil || r.provider == nil {
		return mc
	}

	var err error
	if mc.HomeRating, err = r.Rating(ctx, q.HomeTeam, q.SportKey); err != nil {
		r.log.Warn("home rating unavailable", zap.String("match_id", q.MatchID), zap.Error(err))
	}
	if mc.AwayRating, err = r.Rating(ctx, q.AwayTeam, q.SportKey); err != nil {
		r.log.Warn("away rating unavailable", zap.String("match_id", q.MatchID), zap.Error(err))
	}
	return mc
}
