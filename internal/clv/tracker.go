// Package clv records closing prices for opportunities about to start.
package clv

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/XavierBriggs/fortuna/services/edge-ledger/internal/config"
	"github.com/XavierBriggs/fortuna/services/edge-ledger/internal/intake"
	"github.com/XavierBriggs/fortuna/services/edge-ledger/internal/metrics"
	"github.com/XavierBriggs/fortuna/services/edge-ledger/internal/resolver"
	"github.com/XavierBriggs/fortuna/services/edge-ledger/internal/wager"
	"github.com/XavierBriggs/fortuna/services/edge-ledger/pkg/contracts"
	"github.com/XavierBriggs/fortuna/services/edge-ledger/pkg/models"
	"github.com/XavierBriggs/fortuna/services/edge-ledger/pkg/oddsmath"
)

// Report summarizes one closing-line pass
type Report struct {
	PassID   string        `json:"pass_id"`
	InWindow int           `json:"in_window"`
	Fetched  int           `json:"fetched"` // snapshots requested
	Recorded int           `json:"recorded"`
	NoLine   int           `json:"no_line"`
	Failed   int           `json:"failed"`
	Duration time.Duration `json:"duration"`
}

// Tracker captures closing lines
type Tracker struct {
	store   contracts.OpportunityStore
	odds    contracts.OddsProvider
	matcher resolver.Matcher
	limiter *rate.Limiter
	window  time.Duration
	timeout time.Duration
	metrics *metrics.Metrics
	log     *zap.Logger
	now     func() time.Time
}

// New creates a tracker. m may be nil.
func New(cfg *config.Config, st contracts.OpportunityStore, odds contracts.OddsProvider, matcher resolver.Matcher, m *metrics.Metrics, log *zap.Logger) *Tracker {
	if m == nil {
		m = metrics.New()
	}
	limit := rate.Inf
	if cfg.CLV.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.CLV.RequestsPerSecond)
	}
	burst := cfg.CLV.Burst
	if burst < 1 {
		burst = 1
	}
	return &Tracker{
		store:   st,
		odds:    odds,
		matcher: matcher,
		limiter: rate.NewLimiter(limit, burst),
		window:  cfg.CLV.Window,
		timeout: cfg.Providers.Timeout,
		metrics: m,
		log:     log.Named("clv"),
		now:     time.Now,
	}
}

// Run records closing odds for pending opportunities kicking off within
// the window. Nothing is fetched when the window is empty.
func (t *Tracker) Run(ctx context.Context) (Report, error) {
	started := t.now()
	report := Report{PassID: uuid.New().String()}
	log := t.log.With(zap.String("pass_id", report.PassID))
	defer func() { report.Duration = time.Since(started) }()

	opps, err := t.store.PendingKickoffBetween(ctx, started, started.Add(t.window))
	if err != nil {
		return report, fmt.Errorf("failed to load imminent opportunities: %w", err)
	}
	report.InWindow = len(opps)
	if len(opps) == 0 {
		log.Debug("no opportunities inside the closing window")
		return report, nil
	}

	bySport := make(map[string][]models.Opportunity)
	for _, o := range opps {
		bySport[o.SportKey] = append(bySport[o.SportKey], o)
	}
	sports := make([]string, 0, len(bySport))
	for sport := range bySport {
		sports = append(sports, sport)
	}
	sort.Strings(sports)

	var errs []error
	for _, sport := range sports {
		quotes, err := t.snapshot(ctx, sport)
		report.Fetched++
		if err != nil {
			if ctx.Err() != nil {
				return report, ctx.Err()
			}
			t.metrics.ProviderErrors.WithLabelValues("odds", sport).Inc()
			log.Warn("closing snapshot unavailable", zap.String("sport", sport), zap.Error(err))
			report.NoLine += len(bySport[sport])
			continue
		}

		for _, opp := range bySport[sport] {
			price, source, ok := ClosingPrice(t.matcher, opp, quotes)
			if !ok {
				report.NoLine++
				log.Debug("no closing line found",
					zap.Int64("opportunity_id", opp.ID), zap.String("selection", opp.Selection))
				continue
			}

			if err := t.store.RecordClosingOdds(ctx, opp.ID, price); err != nil {
				report.Failed++
				errs = append(errs, err)
				continue
			}
			report.Recorded++
			t.metrics.ClosingLines.WithLabelValues(sport).Inc()

			open := opp.EffectiveOdds()
			fields := []zap.Field{
				zap.Int64("opportunity_id", opp.ID),
				zap.String("selection", opp.Selection),
				zap.Float64("open", open),
				zap.Float64("close", price),
				zap.String("source", source),
			}
			if value, err := oddsmath.CLVPercent(open, price); err == nil {
				fields = append(fields, zap.Float64("clv_pct", value))
			}
			log.Info("closing line recorded", fields...)
		}
	}

	log.Info("closing-line pass complete",
		zap.Int("in_window", report.InWindow),
		zap.Int("fetched", report.Fetched),
		zap.Int("recorded", report.Recorded),
		zap.Int("no_line", report.NoLine),
		zap.Int("failed", report.Failed))

	if len(errs) > 0 {
		return report, fmt.Errorf("closing-line pass: %w", errors.Join(errs...))
	}
	return report, nil
}

func (t *Tracker) snapshot(ctx context.Context, sportKey string) ([]models.MarketQuote, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	raw, err := t.odds.Snapshot(callCtx, sportKey)
	if err != nil {
		return nil, err
	}

	quotes := make([]models.MarketQuote, 0, len(raw))
	for _, r := range raw {
		q, err := intake.Quote(r)
		if err != nil || !oddsmath.ValidPrice(q.Price) {
			continue
		}
		quotes = append(quotes, q)
	}
	return quotes, nil
}

// ClosingPrice finds the current price for an opportunity's selection.
// The opportunity's own bookmaker wins; otherwise the mean across books.
// source is the bookmaker key or "consensus".
func ClosingPrice(matcher resolver.Matcher, opp models.Opportunity, quotes []models.MarketQuote) (price float64, source string, ok bool) {
	want, parseErr := wager.Parse(opp.Selection)

	var prices []float64
	for _, q := range quotes {
		if !sameMatch(matcher, opp, q) {
			continue
		}
		w, err := wager.FromQuote(q)
		if err != nil {
			continue
		}
		if wager.Key(w.String()) != opp.SelectionKey && (parseErr != nil || !Equivalent(matcher, want, w)) {
			continue
		}
		if q.BookKey == opp.BookKey {
			return q.Price, q.BookKey, true
		}
		prices = append(prices, q.Price)
	}

	mean, ok := oddsmath.MeanPrice(prices)
	if !ok {
		return 0, "", false
	}
	return mean, "consensus", true
}

func sameMatch(matcher resolver.Matcher, opp models.Opportunity, q models.MarketQuote) bool {
	if q.MatchID != "" && q.MatchID == opp.MatchID {
		return true
	}
	return matcher.Same(opp.HomeTeam, q.HomeTeam) && matcher.Same(opp.AwayTeam, q.AwayTeam)
}

// Equivalent reports whether two wagers are the same bet, comparing team
// names through the matcher
func Equivalent(matcher resolver.Matcher, a, b wager.Wager) bool {
	switch x := a.(type) {
	case wager.Moneyline:
		y, ok := b.(wager.Moneyline)
		return ok && x.Period == y.Period && matcher.Same(x.Team, y.Team)
	case wager.Draw:
		y, ok := b.(wager.Draw)
		return ok && x.Period == y.Period
	case wager.Spread:
		y, ok := b.(wager.Spread)
		return ok && x.Period == y.Period && x.Line == y.Line && matcher.Same(x.Team, y.Team)
	case wager.Total:
		y, ok := b.(wager.Total)
		return ok && x.Period == y.Period && x.Over == y.Over && x.Line == y.Line
	}
	return false
}
