// Package edge decides whether a quote is worth betting and how much.
package edge

import (
	"math"
	"time"

	"github.com/XavierBriggs/fortuna/services/edge-ledger/internal/config"
	"github.com/XavierBriggs/fortuna/services/edge-ledger/internal/wager"
	"github.com/XavierBriggs/fortuna/services/edge-ledger/pkg/models"
	"github.com/XavierBriggs/fortuna/services/edge-ledger/pkg/oddsmath"
)

// Rejection explains why a quote produced no candidate
type Rejection string

const (
	RejectNone            Rejection = ""
	RejectMalformedPrice  Rejection = "malformed_price"
	RejectPriceCap        Rejection = "price_cap"
	RejectMarketDisabled  Rejection = "market_disabled"
	RejectNoProbability   Rejection = "no_probability"
	RejectBelowMinEdge    Rejection = "below_min_edge"
	RejectAboveMaxEdge    Rejection = "above_max_edge"
	RejectBadSelection    Rejection = "bad_selection"
	RejectNonPositiveSize Rejection = "non_positive_stake"
	RejectStarted         Rejection = "started"
)

// Input is one quote with the signals the engine blends
type Input struct {
	Quote     models.MarketQuote
	ModelProb float64
	Factor    float64 // calibration multiplier, zero means 1
	Split     *models.PublicSplit
	At        time.Time
}

// Result carries the candidate plus the intermediate numbers, which are
// populated as far as evaluation got before any rejection.
type Result struct {
	Candidate  models.Candidate
	Reject     Rejection
	Calibrated float64
	Blended    float64
	Edge       float64
	MinEdge    float64
	Kelly      float64
	Multiplier float64
}

// Accepted reports whether the quote produced a candidate
func (r Result) Accepted() bool {
	return r.Reject == RejectNone
}

// Engine applies blending, guardrails and sizing. It holds no mutable
// state and is safe for concurrent use.
type Engine struct {
	cfg config.EdgeConfig
}

// NewEngine creates an engine for a validated configuration
func NewEngine(cfg config.EdgeConfig) *Engine {
	return &Engine{cfg: cfg}
}

// Config returns the guardrails the engine enforces
func (e *Engine) Config() config.EdgeConfig {
	return e.cfg
}

// Evaluate turns one quote into a candidate or a rejection. perf may be nil.
func (e *Engine) Evaluate(in Input, perf *Performance) Result {
	q := in.Quote
	var res Result

	if !oddsmath.ValidPrice(q.Price) {
		res.Reject = RejectMalformedPrice
		return res
	}
	if !e.cfg.IsMarketEnabled(q.MarketKey) {
		res.Reject = RejectMarketDisabled
		return res
	}

	minEdge, ok := MinEdgeFor(e.cfg, q.Price)
	if !ok {
		res.Reject = RejectPriceCap
		return res
	}
	res.MinEdge = minEdge

	prob := in.ModelProb
	if math.IsNaN(prob) || prob <= 0 {
		res.Reject = RejectNoProbability
		return res
	}

	factor := in.Factor
	if factor <= 0 || math.IsNaN(factor) {
		factor = 1
	}
	res.Calibrated = math.Min(prob*factor, e.cfg.MaxModelProb)
	res.Blended = e.Blend(q.SportKey, q.Price, res.Calibrated)
	res.Edge = oddsmath.Edge(res.Blended, q.Price)

	if res.Edge < minEdge {
		res.Reject = RejectBelowMinEdge
		return res
	}
	if res.Edge >= e.cfg.MaxEdge {
		res.Reject = RejectAboveMaxEdge
		return res
	}

	w, err := wager.FromQuote(q)
	if err != nil {
		res.Reject = RejectBadSelection
		return res
	}

	res.Kelly = KellyFraction(res.Edge, q.Price)
	res.Multiplier = perf.Multiplier(res.Edge)
	stake := Stake(res.Edge, q.Price, e.cfg.KellyFraction, e.cfg.Bankroll, e.cfg.MaxStakePct, res.Multiplier)
	if stake <= 0 {
		res.Reject = RejectNonPositiveSize
		return res
	}

	at := in.At
	if at.IsZero() {
		at = time.Now()
	}
	selection := w.String()

	res.Candidate = models.Candidate{
		MatchID:      q.MatchID,
		SportKey:     q.SportKey,
		HomeTeam:     q.HomeTeam,
		AwayTeam:     q.AwayTeam,
		CommenceTime: q.CommenceTime,
		MarketKey:    q.MarketKey,
		BookKey:      q.BookKey,
		Selection:    selection,
		SelectionKey: wager.Key(selection),
		DecimalOdds:  q.Price,
		ModelProb:    prob,
		BlendedProb:  res.Blended,
		Edge:         res.Edge,
		Stake:        stake,
		SharpScore:   SharpScore(in.Split, e.cfg.SharpSplitScale),
		DetectedAt:   at.UTC(),
	}
	return res
}

// Blend mixes market-implied and calibrated model probability, then
// shrinks toward the market for sports configured as noisy. The result is
// the probability the edge is computed from.
func (e *Engine) Blend(sportKey string, price, calibrated float64) float64 {
	implied := 1.0 / price
	w := e.cfg.MarketWeight(sportKey)
	blended := w*implied + (1-w)*calibrated
	if s := e.cfg.ShrinkFor(sportKey); s > 0 {
		blended = implied + (1-s)*(blended-implied)
	}
	return blended
}
