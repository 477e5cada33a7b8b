// Package wager turns selection text into typed wagers and grades them
// against final scores.
package wager

import (
	"strconv"
	"strings"

	"github.com/XavierBriggs/fortuna/services/edge-ledger/pkg/models"
)

// Wager is one of Moneyline, Draw, Spread, Total or Parlay
type Wager interface {
	// String renders the canonical selection text
	String() string
	isWager()
}

// Moneyline backs a team to win outright
type Moneyline struct {
	Team   string
	Period string
}

// Draw backs a tie in a three-way market
type Draw struct {
	Period string
}

// Spread backs a team against a handicap
type Spread struct {
	Team   string
	Line   float64
	Period string
}

// Total backs the combined score over or under a line
type Total struct {
	Over   bool
	Line   float64
	Period string
}

// Parlay combines legs that must all win
type Parlay struct {
	Legs []Wager
}

func (Moneyline) isWager() {}
func (Draw) isWager()      {}
func (Spread) isWager()    {}
func (Total) isWager()     {}
func (Parlay) isWager()    {}

func (m Moneyline) String() string {
	return periodPrefix(m.Period) + m.Team + " ML"
}

func (d Draw) String() string {
	return periodPrefix(d.Period) + "Draw ML"
}

func (s Spread) String() string {
	return periodPrefix(s.Period) + s.Team + " " + signed(s.Line)
}

func (t Total) String() string {
	side := "Under"
	if t.Over {
		side = "Over"
	}
	return periodPrefix(t.Period) + side + " " + strconv.FormatFloat(t.Line, 'f', -1, 64)
}

func (p Parlay) String() string {
	legs := make([]string, len(p.Legs))
	for i, l := range p.Legs {
		legs[i] = l.String()
	}
	return "Parlay (" + strconv.Itoa(len(p.Legs)) + " Legs): " + strings.Join(legs, " + ")
}

func periodPrefix(period string) string {
	if period == models.PeriodFirstHalf {
		return "1H "
	}
	return ""
}

func signed(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if v >= 0 {
		return "+" + s
	}
	return s
}

// Key is the normalized selection used as half of the opportunity key.
// Parsed selections use their canonical form so formatting differences
// between sources collapse to one key.
func Key(selection string) string {
	if w, err := Parse(selection); err == nil {
		return strings.ToLower(w.String())
	}
	return strings.ToLower(strings.Join(strings.Fields(foldDashes(selection)), " "))
}

// FromQuote builds the wager a market quote offers
func FromQuote(q models.MarketQuote) (Wager, error) {
	period := q.Period
	if period == "" {
		period = models.PeriodFull
	}
	switch q.MarketKey {
	case models.MarketMoneyline:
		if strings.EqualFold(q.OutcomeName, "draw") || strings.EqualFold(q.OutcomeName, "tie") {
			return Draw{Period: period}, nil
		}
		return Moneyline{Team: q.OutcomeName, Period: period}, nil
	case models.MarketSpread:
		if q.Point == nil {
			return nil, unparseable(q.OutcomeName, "spread quote without a point")
		}
		return Spread{Team: q.OutcomeName, Line: *q.Point, Period: period}, nil
	case models.MarketTotal:
		if q.Point == nil {
			return nil, unparseable(q.OutcomeName, "total quote without a point")
		}
		switch strings.ToLower(q.OutcomeName) {
		case "over":
			return Total{Over: true, Line: *q.Point, Period: period}, nil
		case "under":
			return Total{Over: false, Line: *q.Point, Period: period}, nil
		}
		return nil, unparseable(q.OutcomeName, "total side must be Over or Under")
	}
	return nil, unparseable(q.OutcomeName, "unsupported market "+q.MarketKey)
}
