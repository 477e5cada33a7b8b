package edge

import "github.com/XavierBriggs/fortuna/services/edge-ledger/pkg/models"

// SharpScore maps a public split to [-1, 1]. Positive means money share
// exceeds ticket share, the usual signature of larger, sharper bettors.
func SharpScore(split *models.PublicSplit, scale float64) *float64 {
	if split == nil || scale <= 0 {
		return nil
	}
	score := (split.MoneyPct - split.TicketPct) / scale
	if score > 1 {
		score = 1
	} else if score < -1 {
		score = -1
	}
	return &score
}
