// Package scanner runs detection passes: one sport's odds snapshot in,
// persisted opportunities out.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/XavierBriggs/fortuna/services/edge-ledger/internal/config"
	"github.com/XavierBriggs/fortuna/services/edge-ledger/internal/edge"
	"github.com/XavierBriggs/fortuna/services/edge-ledger/internal/events"
	"github.com/XavierBriggs/fortuna/services/edge-ledger/internal/intake"
	"github.com/XavierBriggs/fortuna/services/edge-ledger/internal/metrics"
	"github.com/XavierBriggs/fortuna/services/edge-ledger/internal/quality"
	"github.com/XavierBriggs/fortuna/services/edge-ledger/internal/retry"
	"github.com/XavierBriggs/fortuna/services/edge-ledger/internal/store"
	"github.com/XavierBriggs/fortuna/services/edge-ledger/internal/wager"
	"github.com/XavierBriggs/fortuna/services/edge-ledger/pkg/contracts"
	"github.com/XavierBriggs/fortuna/services/edge-ledger/pkg/models"
	"github.com/XavierBriggs/fortuna/services/edge-ledger/pkg/oddsmath"
)

// FactorSource supplies calibration factors
type FactorSource interface {
	Factor(ctx context.Context, sportKey string) (models.CalibrationFactor, error)
}

// Deps are the collaborators of a scan pass. Splits, Ratings, Calibration
// and Events may be nil.
type Deps struct {
	Odds        contracts.OddsProvider
	Model       contracts.ModelProvider
	Splits      contracts.SplitProvider
	Ratings     *intake.Ratings
	Store       contracts.OpportunityStore
	Calibration FactorSource
	Events      contracts.EventPublisher
	Metrics     *metrics.Metrics
}

// Report summarizes one pass
type Report struct {
	PassID     string                 `json:"pass_id"`
	SportKey   string                 `json:"sport_key"`
	Quotes     int                    `json:"quotes"`
	Malformed  int                    `json:"malformed"`
	Rejections map[edge.Rejection]int `json:"rejections"`
	Candidates int                    `json:"candidates"`
	Superseded int                    `json:"superseded"` // lower-edge selections on an already chosen match
	Upserted   int                    `json:"upserted"`
	Skipped    int                    `json:"skipped"` // already settled or started
	Failed     int                    `json:"failed"`
	Factor     float64                `json:"factor"`
	Duration   time.Duration          `json:"duration"`
}

// Scanner evaluates odds snapshots and records qualifying opportunities
type Scanner struct {
	deps    Deps
	engine  *edge.Engine
	cfg     *config.Config
	retrier *retry.Policy
	log     *zap.Logger
	now     func() time.Time
}

// New creates a scanner
func New(cfg *config.Config, engine *edge.Engine, deps Deps, log *zap.Logger) *Scanner {
	if deps.Events == nil {
		deps.Events = events.Noop{}
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.New()
	}
	return &Scanner{
		deps:    deps,
		engine:  engine,
		cfg:     cfg,
		retrier: retry.NewPolicy(cfg.Providers.Attempts, cfg.Providers.RetryDelay),
		log:     log.Named("scanner"),
		now:     time.Now,
	}
}

// RunAll scans each sport in parallel. Passes share nothing but the store.
func (s *Scanner) RunAll(ctx context.Context, sports []string) ([]Report, error) {
	reports := make([]Report, len(sports))
	errs := make([]error, len(sports))

	var wg sync.WaitGroup
	for i, sport := range sports {
		wg.Add(1)
		go func(i int, sport string) {
			defer wg.Done()
			reports[i], errs[i] = s.Run(ctx, sport)
		}(i, sport)
	}
	wg.Wait()

	return reports, errors.Join(errs...)
}

// Run performs one detection pass for one sport. Provider failures are
// logged and end the pass early without error; ledger invariant
// violations are returned.
func (s *Scanner) Run(ctx context.Context, sportKey string) (report Report, err error) {
	started := s.now()
	report = Report{
		PassID:     uuid.New().String(),
		SportKey:   sportKey,
		Rejections: make(map[edge.Rejection]int),
		Factor:     1,
	}
	log := s.log.With(zap.String("pass_id", report.PassID), zap.String("sport", sportKey))
	budget := quality.NewBudget(log, s.cfg.Log.QualityDetailLimit)

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in scan pass for %s: %v", sportKey, r)
			log.Error("scan pass panicked", zap.Any("panic", r))
		}
		report.Duration = time.Since(started)
		s.deps.Metrics.ObservePass("scan", sportKey, started)
	}()

	var raw []models.RawQuote
	err = s.retrier.Execute(ctx, s.cfg.Providers.Timeout, func(ctx context.Context) error {
		var fetchErr error
		raw, fetchErr = s.deps.Odds.Snapshot(ctx, sportKey)
		return fetchErr
	})
	if err != nil {
		s.deps.Metrics.ProviderErrors.WithLabelValues("odds", sportKey).Inc()
		log.Warn("odds snapshot unavailable, skipping sport", zap.Error(err))
		return report, nil
	}

	perf := s.performance(ctx, sportKey, log)
	report.Factor = s.factor(ctx, sportKey, log)

	p := &pass{
		Scanner:  s,
		sportKey: sportKey,
		log:      log,
		budget:   budget,
		contexts: make(map[string]models.MatchContext),
	}

	var accepted []edge.Result
	for _, r := range raw {
		if ctx.Err() != nil {
			break
		}
		report.Quotes++

		q, qErr := intake.Quote(r)
		if qErr != nil {
			report.Malformed++
			budget.Report("malformed_quote", "quote dropped", zap.Error(qErr))
			continue
		}
		if q.SportKey == "" {
			q.SportKey = sportKey
		}
		// in-play prices never become, or refresh, an opportunity
		if !q.CommenceTime.After(s.now()) {
			report.Rejections[edge.RejectStarted]++
			s.deps.Metrics.Rejections.WithLabelValues(sportKey, string(edge.RejectStarted)).Inc()
			continue
		}

		res := s.engine.Evaluate(edge.Input{
			Quote:     q,
			ModelProb: p.probability(ctx, q),
			Factor:    report.Factor,
			Split:     p.split(ctx, q),
			At:        s.now(),
		}, perf)
		if !res.Accepted() {
			report.Rejections[res.Reject]++
			s.deps.Metrics.Rejections.WithLabelValues(sportKey, string(res.Reject)).Inc()
			if res.Reject == edge.RejectMalformedPrice || res.Reject == edge.RejectBadSelection {
				budget.Report(string(res.Reject), "quote rejected",
					zap.String("match_id", q.MatchID),
					zap.String("book", q.BookKey),
					zap.String("market", q.MarketKey),
					zap.String("outcome", q.OutcomeName),
					zap.Float64("price", q.Price))
			}
			continue
		}
		accepted = append(accepted, res)
	}
	s.deps.Metrics.QuotesSeen.WithLabelValues(sportKey).Add(float64(report.Quotes))
	report.Candidates = len(accepted)

	chosen := BestPerMatch(accepted)
	report.Superseded = len(accepted) - len(chosen)

	var errs []error
	for _, c := range chosen {
		id, upErr := s.deps.Store.Upsert(ctx, c)
		switch {
		case upErr == nil:
			report.Upserted++
			s.deps.Metrics.Upserts.WithLabelValues(sportKey, "upserted").Inc()
			p.publish(ctx, id)
		case errors.Is(upErr, store.ErrAlreadySettled):
			report.Skipped++
			s.deps.Metrics.Upserts.WithLabelValues(sportKey, "settled").Inc()
		case errors.Is(upErr, store.ErrStarted):
			report.Skipped++
			s.deps.Metrics.Upserts.WithLabelValues(sportKey, "started").Inc()
		case errors.Is(upErr, store.ErrSportConflict):
			report.Failed++
			s.deps.Metrics.Upserts.WithLabelValues(sportKey, "conflict").Inc()
			log.Error("opportunity key owned by another sport",
				zap.String("match_id", c.MatchID), zap.String("selection", c.Selection))
			errs = append(errs, upErr)
		default:
			report.Failed++
			s.deps.Metrics.Upserts.WithLabelValues(sportKey, "error").Inc()
			log.Error("failed to upsert opportunity", zap.String("match_id", c.MatchID), zap.Error(upErr))
			errs = append(errs, upErr)
		}
	}

	budget.Summarize("scan data quality summary")
	log.Info("scan pass complete",
		zap.Int("quotes", report.Quotes),
		zap.Int("malformed", report.Malformed),
		zap.Int("candidates", report.Candidates),
		zap.Int("superseded", report.Superseded),
		zap.Int("upserted", report.Upserted),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed),
		zap.Float64("factor", report.Factor),
		zap.Duration("elapsed", time.Since(started)))

	if len(errs) > 0 {
		return report, fmt.Errorf("scan pass for %s: %w", sportKey, errors.Join(errs...))
	}
	return report, nil
}

// BestPerMatch keeps the highest-edge candidate for every match. Ties keep
// the earlier result.
func BestPerMatch(results []edge.Result) []models.Candidate {
	sorted := make([]edge.Result, len(results))
	copy(sorted, results)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Edge > sorted[j].Edge
	})

	seen := make(map[string]bool, len(sorted))
	out := make([]models.Candidate, 0, len(sorted))
	for _, r := range sorted {
		if seen[r.Candidate.MatchID] {
			continue
		}
		seen[r.Candidate.MatchID] = true
		out = append(out, r.Candidate)
	}
	return out
}

func (s *Scanner) factor(ctx context.Context, sportKey string, log *zap.Logger) float64 {
	if s.deps.Calibration == nil {
		return 1
	}
	f, err := s.deps.Calibration.Factor(ctx, sportKey)
	if err != nil {
		log.Warn("calibration unavailable, using neutral factor", zap.Error(err))
		return 1
	}
	return f.Factor
}

func (s *Scanner) performance(ctx context.Context, sportKey string, log *zap.Logger) *edge.Performance {
	pc := s.cfg.Edge.Performance
	if !pc.Enabled {
		return nil
	}
	stats, err := s.deps.Store.BucketPerformance(ctx, sportKey, pc.EdgeBuckets, s.now().Add(-pc.Lookback))
	if err != nil {
		log.Warn("performance history unavailable, sizing without multiplier", zap.Error(err))
		return nil
	}
	return edge.NewPerformance(pc, stats)
}

// pass holds the state of one Run; it is never shared between passes
type pass struct {
	*Scanner
	sportKey string
	log      *zap.Logger
	budget   *quality.Budget
	contexts map[string]models.MatchContext // by match id, ratings resolved once
}

func (p *pass) probability(ctx context.Context, q models.MarketQuote) float64 {
	if !oddsmath.ValidPrice(q.Price) || p.deps.Model == nil {
		return 0
	}

	mc, ok := p.contexts[q.MatchID]
	if !ok {
		mc = p.deps.Ratings.MatchContext(ctx, q)
		p.contexts[q.MatchID] = mc
	}
	mc.MarketKey = q.MarketKey
	mc.Period = q.Period
	mc.OutcomeName = q.OutcomeName
	mc.Point = q.Point

	callCtx, cancel := context.WithTimeout(ctx, p.cfg.Providers.Timeout)
	defer cancel()

	prob, err := p.deps.Model.Predict(callCtx, mc)
	if err != nil {
		p.deps.Metrics.ProviderErrors.WithLabelValues("model", p.sportKey).Inc()
		p.budget.Report("model_error", "model prediction failed",
			zap.String("match_id", q.MatchID), zap.String("outcome", q.OutcomeName), zap.Error(err))
		return 0
	}
	return intake.Probability(prob)
}

func (p *pass) split(ctx context.Context, q models.MarketQuote) *models.PublicSplit {
	if p.deps.Splits == nil || !oddsmath.ValidPrice(q.Price) {
		return nil
	}
	w, err := wager.FromQuote(q)
	if err != nil {
		return nil
	}

	callCtx, cancel := context.WithTimeout(ctx, p.cfg.Providers.Timeout)
	defer cancel()

	split, err := p.deps.Splits.Split(callCtx, p.sportKey, q.MatchID, w.String())
	if err != nil {
		p.deps.Metrics.ProviderErrors.WithLabelValues("splits", p.sportKey).Inc()
		p.budget.Report("split_error", "public split unavailable",
			zap.String("match_id", q.MatchID), zap.Error(err))
		return nil
	}
	return split
}

func (p *pass) publish(ctx context.Context, id int64) {
	opp, err := p.deps.Store.Get(ctx, id)
	if err != nil {
		p.log.Warn("failed to reload opportunity for publish", zap.Int64("id", id), zap.Error(err))
		return
	}
	if err := p.deps.Events.PublishDetected(ctx, *opp); err != nil {
		p.log.Warn("failed to publish detected opportunity", zap.Int64("id", id), zap.Error(err))
	}
}
