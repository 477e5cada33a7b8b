package feed

import (
	"strconv"
	"strings"
	"time"

	"github.com/XavierBriggs/fortuna/services/edge-ledger/pkg/models"
)

// Keys builds the Redis key layout shared with upstream collectors
type Keys struct {
	Prefix string
}

// Odds is {prefix}odds:snapshot:{sport}
func (k Keys) Odds(sportKey string) string {
	return k.Prefix + "odds:snapshot:" + sportKey
}

// Scores is {prefix}scores:{sport}:{yyyy-mm-dd}
func (k Keys) Scores(sportKey string, day time.Time) string {
	return k.Prefix + "scores:" + sportKey + ":" + day.UTC().Format("2006-01-02")
}

// Model is {prefix}model:prob:{sport}:{match}
func (k Keys) Model(sportKey, matchID string) string {
	return k.Prefix + "model:prob:" + sportKey + ":" + matchID
}

// Ratings is {prefix}ratings:{sport}
func (k Keys) Ratings(sportKey string) string {
	return k.Prefix + "ratings:" + sportKey
}

// Splits is {prefix}splits:{sport}:{match}
func (k Keys) Splits(sportKey, matchID string) string {
	return k.Prefix + "splits:" + sportKey + ":" + matchID
}

// ModelField names one outcome inside a match's probability hash:
// market|period|outcome, with |point appended for lined markets.
func ModelField(m models.MatchContext) string {
	period := m.Period
	if period == "" {
		period = models.PeriodFull
	}
	field := m.MarketKey + "|" + period + "|" + strings.ToLower(strings.TrimSpace(m.OutcomeName))
	if m.Point != nil {
		field += "|" + strconv.FormatFloat(*m.Point, 'f', -1, 64)
	}
	return field
}

// SplitField names one selection inside a match's split hash
func SplitField(selection string) string {
	return strings.ToLower(strings.Join(strings.Fields(selection), " "))
}
