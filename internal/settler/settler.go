// Package settler grades pending opportunities against final scores.
package settler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/XavierBriggs/fortuna/services/edge-ledger/internal/config"
	"github.com/XavierBriggs/fortuna/services/edge-ledger/internal/events"
	"github.com/XavierBriggs/fortuna/services/edge-ledger/internal/metrics"
	"github.com/XavierBriggs/fortuna/services/edge-ledger/internal/quality"
	"github.com/XavierBriggs/fortuna/services/edge-ledger/internal/resolver"
	"github.com/XavierBriggs/fortuna/services/edge-ledger/internal/retry"
	"github.com/XavierBriggs/fortuna/services/edge-ledger/internal/wager"
	"github.com/XavierBriggs/fortuna/services/edge-ledger/pkg/contracts"
	"github.com/XavierBriggs/fortuna/services/edge-ledger/pkg/models"
)

// Review reasons written to flagged opportunities
const (
	ReasonUnparseable       = "unparseable selection"
	ReasonPeriodUnsupported = "first-half market unsupported for sport"
	ReasonParlayPush        = "parlay leg pushed"
	ReasonUnknownSide       = "selection team not in matched game"
)

// Report summarizes one settlement pass
type Report struct {
	PassID    string                 `json:"pass_id"`
	Pending   int                    `json:"pending"`
	Settled   map[models.Outcome]int `json:"settled"`
	Unmatched int                    `json:"unmatched"`
	NotReady  int                    `json:"not_ready"` // matched but not gradable yet
	Flagged   int                    `json:"flagged"`
	Failed    int                    `json:"failed"`
	Duration  time.Duration          `json:"duration"`
}

// Settler handles opportunity settlement
type Settler struct {
	store   contracts.OpportunityStore
	scores  contracts.ScoreProvider
	matcher resolver.Matcher
	grader  *wager.Grader
	events  contracts.EventPublisher
	metrics *metrics.Metrics
	cfg     config.SettlementConfig
	timeout time.Duration
	retrier *retry.Policy
	detail  int
	log     *zap.Logger
	now     func() time.Time
}

// New creates a settler. pub and m may be nil.
func New(cfg *config.Config, st contracts.OpportunityStore, scores contracts.ScoreProvider, matcher resolver.Matcher, pub contracts.EventPublisher, m *metrics.Metrics, log *zap.Logger) *Settler {
	if pub == nil {
		pub = events.Noop{}
	}
	if m == nil {
		m = metrics.New()
	}
	return &Settler{
		store:   st,
		scores:  scores,
		matcher: matcher,
		grader:  wager.NewGrader(matcher),
		events:  pub,
		metrics: m,
		cfg:     cfg.Settlement,
		timeout: cfg.Providers.Timeout,
		retrier: retry.NewPolicy(cfg.Providers.Attempts, cfg.Providers.RetryDelay),
		detail:  cfg.Log.QualityDetailLimit,
		log:     log.Named("settlement"),
		now:     time.Now,
	}
}

// Run settles every pending opportunity whose kickoff has passed
func (s *Settler) Run(ctx context.Context) (report Report, err error) {
	started := s.now()
	report = Report{PassID: uuid.New().String(), Settled: make(map[models.Outcome]int)}
	log := s.log.With(zap.String("pass_id", report.PassID))
	budget := quality.NewBudget(log, s.detail)

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in settlement pass: %v", r)
			log.Error("settlement pass panicked", zap.Any("panic", r))
		}
		report.Duration = time.Since(started)
		s.metrics.ObservePass("settle", "all", started)
	}()

	pending, err := s.store.PendingStarted(ctx, started)
	if err != nil {
		return report, fmt.Errorf("failed to load pending opportunities: %w", err)
	}
	report.Pending = len(pending)
	if len(pending) == 0 {
		log.Debug("no pending opportunities past kickoff")
		return report, nil
	}

	bySport := make(map[string][]models.Opportunity)
	for _, o := range pending {
		bySport[o.SportKey] = append(bySport[o.SportKey], o)
	}
	sports := make([]string, 0, len(bySport))
	for sport := range bySport {
		sports = append(sports, sport)
	}
	sort.Strings(sports)

	var errs []error
	for _, sport := range sports {
		if ctx.Err() != nil {
			break
		}
		games := s.fetchGames(ctx, sport, log)
		for _, opp := range bySport[sport] {
			if err := s.settleOne(ctx, opp, games, &report, budget, log); err != nil {
				report.Failed++
				errs = append(errs, err)
			}
		}
	}

	budget.Summarize("settlement data quality summary")
	log.Info("settlement pass complete",
		zap.Int("pending", report.Pending),
		zap.Int("won", report.Settled[models.OutcomeWon]),
		zap.Int("lost", report.Settled[models.OutcomeLost]),
		zap.Int("push", report.Settled[models.OutcomePush]),
		zap.Int("unmatched", report.Unmatched),
		zap.Int("not_ready", report.NotReady),
		zap.Int("flagged", report.Flagged),
		zap.Int("failed", report.Failed),
		zap.Duration("elapsed", time.Since(started)))

	if len(errs) > 0 {
		return report, fmt.Errorf("settlement pass: %w", errors.Join(errs...))
	}
	return report, nil
}

// fetchGames collects results for each day of the lookback. A failed day
// contributes nothing.
func (s *Settler) fetchGames(ctx context.Context, sportKey string, log *zap.Logger) []models.GameResult {
	days := s.cfg.LookbackDays
	if days < 1 {
		days = 1
	}

	today := s.now().UTC().Truncate(24 * time.Hour)
	seen := make(map[string]bool)
	var games []models.GameResult

	for i := 0; i < days; i++ {
		day := today.AddDate(0, 0, -i)

		var results []models.GameResult
		err := s.retrier.Execute(ctx, s.timeout, func(ctx context.Context) error {
			var fetchErr error
			results, fetchErr = s.scores.Results(ctx, sportKey, day)
			return fetchErr
		})
		if err != nil {
			s.metrics.ProviderErrors.WithLabelValues("scores", sportKey).Inc()
			log.Warn("score results unavailable",
				zap.String("sport", sportKey),
				zap.String("day", day.Format("2006-01-02")),
				zap.Error(err))
			continue
		}

		for _, g := range results {
			key := g.GameID
			if key == "" {
				key = g.AwayTeam + "@" + g.HomeTeam + "@" + g.CommenceTime.UTC().Format(time.RFC3339)
			}
			if seen[key] {
				continue
			}
			seen[key] = true
			games = append(games, g)
		}
	}
	return games
}

func (s *Settler) settleOne(ctx context.Context, opp models.Opportunity, games []models.GameResult, report *Report, budget *quality.Budget, log *zap.Logger) error {
	oppLog := log.With(zap.Int64("opportunity_id", opp.ID), zap.String("selection", opp.Selection))

	w, err := wager.Parse(opp.Selection)
	if err != nil {
		budget.Report("unparseable_selection", "selection cannot be graded",
			zap.Int64("opportunity_id", opp.ID), zap.String("selection", opp.Selection), zap.Error(err))
		return s.flag(ctx, opp, ReasonUnparseable, report)
	}

	game, ok := FindGame(s.matcher, opp, games, s.cfg.MatchWindow)
	if !ok {
		report.Unmatched++
		oppLog.Debug("no score result matches opportunity",
			zap.String("matchup", opp.Matchup), zap.Time("commence_time", opp.CommenceTime))
		return nil
	}

	outcome, err := s.grader.Grade(w, opp.SportKey, game, games...)
	_, isParlay := w.(wager.Parlay)
	switch {
	case errors.Is(err, wager.ErrPeriodUnsupported):
		return s.flag(ctx, opp, ReasonPeriodUnsupported, report)
	case errors.Is(err, wager.ErrParlayPush):
		return s.flag(ctx, opp, ReasonParlayPush, report)
	case errors.Is(err, wager.ErrUnknownSide) && !isParlay:
		budget.Report("unknown_side", "selection team matches neither side",
			zap.Int64("opportunity_id", opp.ID),
			zap.String("selection", opp.Selection),
			zap.String("home", game.HomeTeam),
			zap.String("away", game.AwayTeam))
		return s.flag(ctx, opp, ReasonUnknownSide, report)
	case err != nil:
		report.NotReady++
		oppLog.Debug("opportunity not gradable yet", zap.Error(err))
		return nil
	}
	if !outcome.Terminal() {
		report.NotReady++
		return nil
	}

	profit := wager.Profit(outcome, opp.EffectiveStake(), opp.EffectiveOdds())
	settled, err := s.store.Settle(ctx, opp.ID, outcome, profit, s.now())
	if err != nil {
		return fmt.Errorf("failed to settle opportunity %d: %w", opp.ID, err)
	}
	if !settled {
		oppLog.Debug("opportunity settled elsewhere")
		return nil
	}

	report.Settled[outcome]++
	s.metrics.Settlements.WithLabelValues(opp.SportKey, string(outcome)).Inc()
	oppLog.Info("opportunity settled",
		zap.String("outcome", string(outcome)),
		zap.Float64("profit", profit),
		zap.Int("home_score", game.HomeScore),
		zap.Int("away_score", game.AwayScore))

	updated, err := s.store.Get(ctx, opp.ID)
	if err != nil {
		oppLog.Warn("failed to reload settled opportunity", zap.Error(err))
		return nil
	}
	if err := s.events.PublishSettled(ctx, *updated); err != nil {
		oppLog.Warn("failed to publish settlement", zap.Error(err))
	}
	return nil
}

func (s *Settler) flag(ctx context.Context, opp models.Opportunity, reason string, report *Report) error {
	if opp.NeedsReview && opp.ReviewReason == reason {
		return nil
	}
	if err := s.store.FlagReview(ctx, opp.ID, reason); err != nil {
		return fmt.Errorf("failed to flag opportunity %d: %w", opp.ID, err)
	}
	report.Flagged++
	s.metrics.Reviews.WithLabelValues(opp.SportKey, reason).Inc()
	s.log.Warn("opportunity flagged for manual review",
		zap.Int64("opportunity_id", opp.ID), zap.String("reason", reason))
	return nil
}

// FindGame locates the result for an opportunity: same game id, else both
// team names matching within window of the recorded kickoff.
func FindGame(matcher resolver.Matcher, opp models.Opportunity, games []models.GameResult, window time.Duration) (models.GameResult, bool) {
	for _, g := range games {
		if g.GameID != "" && g.GameID == opp.MatchID {
			return g, true
		}
	}

	var (
		best     models.GameResult
		bestDiff time.Duration
		found    bool
	)
	for _, g := range games {
		diff := g.CommenceTime.Sub(opp.CommenceTime)
		if diff < 0 {
			diff = -diff
		}
		if window > 0 && diff > window {
			continue
		}
		if !matcher.Same(opp.HomeTeam, g.HomeTeam) || !matcher.Same(opp.AwayTeam, g.AwayTeam) {
			continue
		}
		if !found || diff < bestDiff {
			best, bestDiff, found = g, diff, true
		}
	}
	return best, found
}
