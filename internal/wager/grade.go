package wager

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/XavierBriggs/fortuna/services/edge-ledger/internal/resolver"
	"github.com/XavierBriggs/fortuna/services/edge-ledger/pkg/models"
)

var (
	// ErrNotFinal means the game has not finished
	ErrNotFinal = errors.New("game not final")

	// ErrUnknownSide means the wager's team matches neither side of the game
	ErrUnknownSide = errors.New("selection team matches neither side")

	// ErrParlayPush means a parlay leg pushed and the ticket's repricing is unknown
	ErrParlayPush = errors.New("parlay leg pushed")
)

// Grader resolves wager outcomes. Grading depends only on its arguments
// and the matcher, which is itself deterministic.
type Grader struct {
	matcher resolver.Matcher
}

// NewGrader creates a grader using matcher for team sides
func NewGrader(matcher resolver.Matcher) *Grader {
	return &Grader{matcher: matcher}
}

// GradeText parses selection and grades it against game
func (g *Grader) GradeText(selection, sportKey string, game models.GameResult) (models.Outcome, error) {
	w, err := Parse(selection)
	if err != nil {
		return models.OutcomePending, err
	}
	return g.Grade(w, sportKey, game)
}

// Grade settles w against game. Parlay legs naming a team from another
// game are graded against the matching entry of others.
// A non-nil error always comes with OutcomePending, except for a parlay
// already lost on another leg.
func (g *Grader) Grade(w Wager, sportKey string, game models.GameResult, others ...models.GameResult) (models.Outcome, error) {
	if p, ok := w.(Parlay); ok {
		return g.gradeParlay(p, sportKey, game, others)
	}
	return g.gradeSingle(w, sportKey, game)
}

func (g *Grader) gradeSingle(w Wager, sportKey string, game models.GameResult) (models.Outcome, error) {
	if !game.IsFinal() {
		return models.OutcomePending, ErrNotFinal
	}

	switch v := w.(type) {
	case Moneyline:
		home, away, err := periodScore(sportKey, v.Period, game)
		if err != nil {
			return models.OutcomePending, err
		}
		margin, err := g.sideMargin(v.Team, game, home, away)
		if err != nil {
			return models.OutcomePending, err
		}
		switch {
		case margin > 0:
			return models.OutcomeWon, nil
		case margin < 0:
			return models.OutcomeLost, nil
		}
		// three-way markets lose a side bet on a tie
		if models.SportFamily(sportKey) == models.FamilySoccer {
			return models.OutcomeLost, nil
		}
		return models.OutcomePush, nil

	case Draw:
		home, away, err := periodScore(sportKey, v.Period, game)
		if err != nil {
			return models.OutcomePending, err
		}
		if home == away {
			return models.OutcomeWon, nil
		}
		return models.OutcomeLost, nil

	case Spread:
		home, away, err := periodScore(sportKey, v.Period, game)
		if err != nil {
			return models.OutcomePending, err
		}
		margin, err := g.sideMargin(v.Team, game, home, away)
		if err != nil {
			return models.OutcomePending, err
		}
		return byCoverage(float64(margin) + v.Line), nil

	case Total:
		home, away, err := periodScore(sportKey, v.Period, game)
		if err != nil {
			return models.OutcomePending, err
		}
		diff := float64(home+away) - v.Line
		if !v.Over {
			diff = -diff
		}
		return byCoverage(diff), nil
	}

	return models.OutcomePending, fmt.Errorf("%w: %T", ErrUnparseable, w)
}

func (g *Grader) gradeParlay(p Parlay, sportKey string, game models.GameResult, others []models.GameResult) (models.Outcome, error) {
	games := make([]models.GameResult, len(p.Legs))
	teamLess := make([]bool, len(p.Legs))
	distinct := map[string]bool{}
	for i, leg := range p.Legs {
		team, ok := legTeam(leg)
		if !ok {
			teamLess[i] = true
			continue
		}
		games[i] = g.legGame(team, game, others)
		distinct[gameKey(games[i])] = true
	}
	// a total or draw leg names no team, so it can only be placed when
	// every other leg is on one game
	spansGames := len(distinct) > 1

	won := 0
	var firstErr error
	for i, leg := range p.Legs {
		var (
			outcome models.Outcome
			err     error
		)
		switch {
		case teamLess[i] && spansGames:
			outcome, err = models.OutcomePending, fmt.Errorf("%w: %q in a multi-game parlay", ErrUnknownSide, leg)
		case teamLess[i] && len(distinct) == 1:
			outcome, err = g.gradeSingle(leg, sportKey, games[firstTeamLeg(teamLess)])
		case teamLess[i]:
			outcome, err = g.gradeSingle(leg, sportKey, game)
		default:
			outcome, err = g.gradeSingle(leg, sportKey, games[i])
		}

		switch outcome {
		case models.OutcomeLost:
			return models.OutcomeLost, nil
		case models.OutcomeWon:
			won++
		case models.OutcomePush:
			if firstErr == nil {
				firstErr = ErrParlayPush
			}
		default:
			if firstErr == nil && err != nil {
				firstErr = fmt.Errorf("leg %q: %w", leg, err)
			}
		}
	}
	if won == len(p.Legs) {
		return models.OutcomeWon, nil
	}
	return models.OutcomePending, firstErr
}

func legTeam(leg Wager) (string, bool) {
	switch v := leg.(type) {
	case Moneyline:
		return v.Team, true
	case Spread:
		return v.Team, true
	}
	return "", false
}

func firstTeamLeg(teamLess []bool) int {
	for i, tl := range teamLess {
		if !tl {
			return i
		}
	}
	return 0
}

func gameKey(game models.GameResult) string {
	if game.GameID != "" {
		return game.GameID
	}
	return game.HomeTeam + "|" + game.AwayTeam + "|" + game.CommenceTime.UTC().Format(time.RFC3339)
}

// legGame picks the game a team leg refers to
func (g *Grader) legGame(team string, primary models.GameResult, others []models.GameResult) models.GameResult {
	if g.onGame(team, primary) {
		return primary
	}
	for _, o := range others {
		if g.onGame(team, o) {
			return o
		}
	}
	return primary
}

func (g *Grader) onGame(team string, game models.GameResult) bool {
	return g.matcher.Same(team, game.HomeTeam) || g.matcher.Same(team, game.AwayTeam)
}

// sideMargin returns the score margin from the named team's perspective
func (g *Grader) sideMargin(team string, game models.GameResult, home, away int) (int, error) {
	hs := g.matcher.Score(team, game.HomeTeam)
	as := g.matcher.Score(team, game.AwayTeam)
	switch {
	case hs > as:
		return home - away, nil
	case as > hs:
		return away - home, nil
	}
	if hs == 0 {
		return 0, fmt.Errorf("%w: %q vs %s @ %s", ErrUnknownSide, team, game.AwayTeam, game.HomeTeam)
	}
	return 0, fmt.Errorf("%w: %q matches both %s and %s", ErrUnknownSide, team, game.AwayTeam, game.HomeTeam)
}

func byCoverage(coverage float64) models.Outcome {
	switch {
	case coverage > 0:
		return models.OutcomeWon
	case coverage < 0:
		return models.OutcomeLost
	}
	return models.OutcomePush
}

// Profit returns the settled profit for a stake at a decimal price,
// rounded to cents
func Profit(outcome models.Outcome, stake, price float64) float64 {
	s := decimal.NewFromFloat(stake)
	var p decimal.Decimal
	switch outcome {
	case models.OutcomeWon:
		p = s.Mul(decimal.NewFromFloat(price).Sub(decimal.NewFromInt(1)))
	case models.OutcomeLost:
		p = s.Neg()
	default:
		return 0
	}
	f, _ := p.Round(2).Float64()
	return f
}
