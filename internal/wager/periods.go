package wager

import (
	"errors"

	"github.com/XavierBriggs/fortuna/services/edge-ledger/pkg/models"
)

var (
	// ErrPeriodUnavailable means the result lacks the partial scores a
	// first-half wager needs
	ErrPeriodUnavailable = errors.New("period scores unavailable")

	// ErrPeriodUnsupported means the sport has no first-half market rule
	ErrPeriodUnsupported = errors.New("first-half market not supported for sport")
)

// firstHalfPeriods returns how many reported periods make up the first
// half for a sport, or zero when the sport has no such rule.
func firstHalfPeriods(sportKey string) int {
	switch sportKey {
	case "basketball_ncaab", "basketball_wncaab":
		return 1 // played in halves
	}
	switch models.SportFamily(sportKey) {
	case models.FamilyBasketball, models.FamilyFootball:
		return 2
	case models.FamilySoccer:
		return 1
	case models.FamilyBaseball:
		return 5 // first five innings
	}
	return 0
}

// periodScore returns the home and away score for the period a wager
// settles on.
func periodScore(sportKey, period string, g models.GameResult) (home, away int, err error) {
	if period != models.PeriodFirstHalf {
		return g.HomeScore, g.AwayScore, nil
	}

	if g.HomeFirstHalf != nil && g.AwayFirstHalf != nil {
		return *g.HomeFirstHalf, *g.AwayFirstHalf, nil
	}

	n := firstHalfPeriods(sportKey)
	if n == 0 {
		return 0, 0, ErrPeriodUnsupported
	}
	if len(g.HomePeriods) < n || len(g.AwayPeriods) < n {
		return 0, 0, ErrPeriodUnavailable
	}
	for i := 0; i < n; i++ {
		home += g.HomePeriods[i]
		away += g.AwayPeriods[i]
	}
	return home, away, nil
}
