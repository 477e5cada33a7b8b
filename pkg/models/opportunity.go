package models

import "time"

// Outcome is the settlement state of an opportunity
type Outcome string

const (
	OutcomePending Outcome = "PENDING"
	OutcomeWon     Outcome = "WON"
	OutcomeLost    Outcome = "LOST"
	OutcomePush    Outcome = "PUSH"
)

// Terminal reports whether the outcome can no longer change
func (o Outcome) Terminal() bool {
	return o == OutcomeWon || o == OutcomeLost || o == OutcomePush
}

// Valid reports whether o is a known outcome
func (o Outcome) Valid() bool {
	return o == OutcomePending || o.Terminal()
}

// Candidate is an accepted edge-engine result, not yet persisted
type Candidate struct {
	MatchID      string    `json:"match_id"`
	SportKey     string    `json:"sport_key"`
	HomeTeam     string    `json:"home_team"`
	AwayTeam     string    `json:"away_team"`
	CommenceTime time.Time `json:"commence_time"`
	MarketKey    string    `json:"market_key"`
	BookKey      string    `json:"book_key"`
	Selection    string    `json:"selection"`
	SelectionKey string    `json:"selection_key"`
	DecimalOdds  float64   `json:"decimal_odds"`
	ModelProb    float64   `json:"model_prob"`
	BlendedProb  float64   `json:"blended_prob"`
	Edge         float64   `json:"edge"`
	Stake        float64   `json:"stake"`
	SharpScore   *float64  `json:"sharp_score,omitempty"`
	DetectedAt   time.Time `json:"detected_at"`
}

// Matchup renders "Away @ Home"
func (c Candidate) Matchup() string {
	return c.AwayTeam + " @ " + c.HomeTeam
}

// Opportunity is the persisted wager record
type Opportunity struct {
	ID           int64     `json:"id"`
	MatchID      string    `json:"match_id"`
	SportKey     string    `json:"sport_key"`
	HomeTeam     string    `json:"home_team"`
	AwayTeam     string    `json:"away_team"`
	Matchup      string    `json:"matchup"`
	CommenceTime time.Time `json:"commence_time"`
	MarketKey    string    `json:"market_key"`
	BookKey      string    `json:"book_key"`
	Selection    string    `json:"selection"`
	SelectionKey string    `json:"selection_key"`
	DecimalOdds  float64   `json:"decimal_odds"`
	ModelProb    float64   `json:"model_prob"`
	BlendedProb  float64   `json:"blended_prob"`
	Edge         float64   `json:"edge"`
	Stake        float64   `json:"stake"`
	SharpScore   *float64  `json:"sharp_score,omitempty"`
	DetectedAt   time.Time `json:"detected_at"`

	// Settlement
	Outcome   Outcome    `json:"outcome"`
	Profit    *float64   `json:"profit,omitempty"`
	SettledAt *time.Time `json:"settled_at,omitempty"`

	// Closing line
	ClosingOdds *float64 `json:"closing_odds,omitempty"`

	// Review
	NeedsReview  bool   `json:"needs_review"`
	ReviewReason string `json:"review_reason,omitempty"`

	// Operator override
	Confirmed      bool     `json:"confirmed"`
	ConfirmedStake *float64 `json:"confirmed_stake,omitempty"`
	ConfirmedOdds  *float64 `json:"confirmed_odds,omitempty"`
}

// EffectiveStake is the operator stake when confirmed, else the recommendation
func (o Opportunity) EffectiveStake() float64 {
	if o.Confirmed && o.ConfirmedStake != nil {
		return *o.ConfirmedStake
	}
	return o.Stake
}

// EffectiveOdds is the operator price when confirmed, else the decision price
func (o Opportunity) EffectiveOdds() float64 {
	if o.Confirmed && o.ConfirmedOdds != nil {
		return *o.ConfirmedOdds
	}
	return o.DecimalOdds
}

// CalibrationFactor scales model probability for one sport
type CalibrationFactor struct {
	SportKey   string    `json:"sport_key"`
	Factor     float64   `json:"factor"`
	Samples    int       `json:"samples"`
	ComputedAt time.Time `json:"computed_at"`
}

// SettledStats summarizes settled history for calibration
type SettledStats struct {
	Samples       int     `json:"samples"`
	Wins          int     `json:"wins"`
	PredictedWins float64 `json:"predicted_wins"` // sum of model probabilities
}

// BucketPerformance is trailing results for one (sport, edge bucket)
type BucketPerformance struct {
	Bucket  int     `json:"bucket"`
	Samples int     `json:"samples"`
	Staked  float64 `json:"staked"`
	Profit  float64 `json:"profit"`
}

// ROI returns profit over staked, zero when nothing was staked
func (b BucketPerformance) ROI() float64 {
	if b.Staked <= 0 {
		return 0
	}
	return b.Profit / b.Staked
}

// EdgeBucket returns the index of the last ascending lower bound that edge
// reaches, or -1 when edge is below every bound.
func EdgeBucket(bounds []float64, edge float64) int {
	idx := -1
	for i, b := range bounds {
		if edge >= b {
			idx = i
		}
	}
	return idx
}
