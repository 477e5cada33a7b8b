package models

import (
	"strings"
	"time"
)

// GameStatus represents the state of a game
type GameStatus string

const (
	GameStatusUpcoming  GameStatus = "upcoming"
	GameStatusLive      GameStatus = "live"
	GameStatusFinal     GameStatus = "final"
	GameStatusPostponed GameStatus = "postponed"
)

// GameResult is a score report for one event
type GameResult struct {
	GameID       string     `json:"game_id"`
	SportKey     string     `json:"sport_key"`
	HomeTeam     string     `json:"home_team"`
	AwayTeam     string     `json:"away_team"`
	CommenceTime time.Time  `json:"commence_time"`
	Status       GameStatus `json:"status"`
	HomeScore    int        `json:"home_score"`
	AwayScore    int        `json:"away_score"`

	// Per-period scores (quarters, halves, innings), optional
	HomePeriods []int `json:"home_periods,omitempty"`
	AwayPeriods []int `json:"away_periods,omitempty"`

	// Explicit first-half scores when the provider reports them directly
	HomeFirstHalf *int `json:"home_first_half,omitempty"`
	AwayFirstHalf *int `json:"away_first_half,omitempty"`
}

// IsFinal reports whether the game is complete
func (g GameResult) IsFinal() bool {
	return g.Status == GameStatusFinal
}

// Sport families used for settlement and guardrail rules
const (
	FamilyBasketball = "basketball"
	FamilyFootball   = "americanfootball"
	FamilyHockey     = "icehockey"
	FamilyBaseball   = "baseball"
	FamilySoccer     = "soccer"
)

// SportFamily returns the family prefix of a sport key such as
// "basketball_nba" or "soccer_epl".
func SportFamily(sportKey string) string {
	if i := strings.IndexByte(sportKey, '_'); i > 0 {
		return sportKey[:i]
	}
	return sportKey
}
