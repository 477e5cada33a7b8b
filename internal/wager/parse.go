package wager

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/XavierBriggs/fortuna/services/edge-ledger/pkg/models"
)

// ErrUnparseable marks selection text no wager type recognizes
var ErrUnparseable = errors.New("unparseable selection")

func unparseable(text, why string) error {
	return fmt.Errorf("%w %q: %s", ErrUnparseable, text, why)
}

var (
	parlayRe     = regexp.MustCompile(`(?i)^parlay\s*(?:\(\s*(\d+)\s*legs?\s*\))?\s*:\s*(.+)$`)
	legPriceRe   = regexp.MustCompile(`\s*(?:\(\s*[+-]?\d+(?:\.\d+)?\s*\)|@\s*[+-]?\d+(?:\.\d+)?)\s*$`)
	halfPrefixRe = regexp.MustCompile(`(?i)^(?:1h|1st\s+half|first\s+half)\s+`)
	totalRe      = regexp.MustCompile(`(?i)^(over|under)\s+(\d+(?:\.\d+)?)(?:\s*(?:pts|points|goals|runs))?$`)
	spreadRe     = regexp.MustCompile(`^(.+?)\s+([+-]\d+(?:\.\d+)?)$`)
	pickRe       = regexp.MustCompile(`(?i)^(.+?)\s+(?:pk|pick|pick'?em)$`)
	mlSuffixRe   = regexp.MustCompile(`(?i)\s+ml$`)
)

// Parse reads selection text into a wager
func Parse(text string) (Wager, error) {
	s := strings.Join(strings.Fields(foldDashes(text)), " ")
	if s == "" {
		return nil, unparseable(text, "empty")
	}

	if m := parlayRe.FindStringSubmatch(s); m != nil {
		return parseParlay(text, m[1], m[2])
	}
	return parseSingle(s)
}

func parseParlay(text, count, body string) (Wager, error) {
	parts := strings.Split(body, " + ")
	legs := make([]Wager, 0, len(parts))
	for _, part := range parts {
		leg := strings.TrimSpace(legPriceRe.ReplaceAllString(part, ""))
		w, err := parseSingle(leg)
		if err != nil {
			return nil, fmt.Errorf("parlay leg %q: %w", part, err)
		}
		legs = append(legs, w)
	}
	if len(legs) < 2 {
		return nil, unparseable(text, "parlay needs at least two legs")
	}
	if count != "" {
		n, _ := strconv.Atoi(count)
		if n != len(legs) {
			return nil, unparseable(text, fmt.Sprintf("declares %d legs, found %d", n, len(legs)))
		}
	}
	return Parlay{Legs: legs}, nil
}

func parseSingle(s string) (Wager, error) {
	period := models.PeriodFull
	if loc := halfPrefixRe.FindStringIndex(s); loc != nil {
		period = models.PeriodFirstHalf
		s = s[loc[1]:]
	}
	if strings.ContainsAny(s, "()") {
		return nil, unparseable(s, "unexpected parentheses")
	}

	if strings.EqualFold(s, "draw ml") || strings.EqualFold(s, "draw") {
		return Draw{Period: period}, nil
	}

	if loc := mlSuffixRe.FindStringIndex(s); loc != nil {
		team := strings.TrimSpace(s[:loc[0]])
		if team == "" {
			return nil, unparseable(s, "moneyline without a team")
		}
		return Moneyline{Team: team, Period: period}, nil
	}

	if m := totalRe.FindStringSubmatch(s); m != nil {
		line, err := strconv.ParseFloat(m[2], 64)
		if err != nil {
			return nil, unparseable(s, "bad total line")
		}
		return Total{Over: strings.EqualFold(m[1], "over"), Line: line, Period: period}, nil
	}

	if m := spreadRe.FindStringSubmatch(s); m != nil {
		line, err := strconv.ParseFloat(m[2], 64)
		if err != nil {
			return nil, unparseable(s, "bad spread line")
		}
		return Spread{Team: m[1], Line: line, Period: period}, nil
	}

	if m := pickRe.FindStringSubmatch(s); m != nil {
		return Spread{Team: m[1], Line: 0, Period: period}, nil
	}

	return nil, unparseable(s, "no wager type matched")
}

// foldDashes maps typographic minus signs to ASCII
func foldDashes(s string) string {
	return strings.NewReplacer("−", "-", "–", "-", "—", "-").Replace(s)
}
