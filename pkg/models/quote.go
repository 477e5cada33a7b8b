package models

import "time"

// Market types as quoted by odds providers
const (
	MarketMoneyline = "h2h"
	MarketSpread    = "spreads"
	MarketTotal     = "totals"
)

// Periods a market can settle on
const (
	PeriodFull      = "full"
	PeriodFirstHalf = "1h"
)

// MarketQuote is one bookmaker's price for one outcome of one market
type MarketQuote struct {
	MatchID      string    `json:"match_id"`
	SportKey     string    `json:"sport_key"`
	HomeTeam     string    `json:"home_team"`
	AwayTeam     string    `json:"away_team"`
	CommenceTime time.Time `json:"commence_time"`
	BookKey      string    `json:"book_key"`
	MarketKey    string    `json:"market_key"`
	Period       string    `json:"period,omitempty"`
	OutcomeName  string    `json:"outcome_name"`
	Price        float64   `json:"price"`           // Decimal odds
	Point        *float64  `json:"point,omitempty"` // For spreads/totals
	ObservedAt   time.Time `json:"observed_at"`
}

// RawQuote is the provider payload before intake normalization.
// Either DecimalPrice or AmericanPrice is set.
type RawQuote struct {
	MatchID       string    `json:"match_id"`
	SportKey      string    `json:"sport_key"`
	HomeTeam      string    `json:"home_team"`
	AwayTeam      string    `json:"away_team"`
	CommenceTime  time.Time `json:"commence_time"`
	BookKey       string    `json:"book_key"`
	MarketKey     string    `json:"market_key"`
	OutcomeName   string    `json:"outcome_name"`
	DecimalPrice  *float64  `json:"decimal_price,omitempty"`
	AmericanPrice *int      `json:"american_price,omitempty"`
	Point         *float64  `json:"point,omitempty"`
	ObservedAt    time.Time `json:"observed_at"`
}

// Matchup renders "Away @ Home"
func (q MarketQuote) Matchup() string {
	return q.AwayTeam + " @ " + q.HomeTeam
}

// PublicSplit is the share of money and tickets on one side of one market.
// Both values are fractions in [0,1].
type PublicSplit struct {
	MoneyPct  float64 `json:"money_pct"`
	TicketPct float64 `json:"ticket_pct"`
}

// TeamRating is an external strength estimate for a team
type TeamRating struct {
	Team    string             `json:"team"`
	Sport   string             `json:"sport"`
	Offense float64            `json:"offense"`
	Defense float64            `json:"defense"`
	Tempo   float64            `json:"tempo"`
	Extra   map[string]float64 `json:"extra,omitempty"`
}

// MatchContext is everything the model provider is told about a match
type MatchContext struct {
	MatchID      string      `json:"match_id"`
	SportKey     string      `json:"sport_key"`
	HomeTeam     string      `json:"home_team"`
	AwayTeam     string      `json:"away_team"`
	CommenceTime time.Time   `json:"commence_time"`
	HomeRating   *TeamRating `json:"home_rating,omitempty"`
	AwayRating   *TeamRating `json:"away_rating,omitempty"`
	MarketKey    string      `json:"market_key"`
	Period       string      `json:"period"`
	OutcomeName  string      `json:"outcome_name"`
	Point        *float64    `json:"point,omitempty"`
}
