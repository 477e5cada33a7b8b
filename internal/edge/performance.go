package edge

import (
	"github.com/XavierBriggs/fortuna/services/edge-ledger/internal/config"
	"github.com/XavierBriggs/fortuna/services/edge-ledger/pkg/models"
)

// Performance holds trailing results per edge bucket for one sport
type Performance struct {
	cfg     config.PerformanceConfig
	buckets map[int]models.BucketPerformance
}

// NewPerformance indexes bucket stats. Nil is a valid *Performance and
// always returns a multiplier of 1.
func NewPerformance(cfg config.PerformanceConfig, stats []models.BucketPerformance) *Performance {
	p := &Performance{cfg: cfg, buckets: make(map[int]models.BucketPerformance, len(stats))}
	for _, s := range stats {
		p.buckets[s.Bucket] = s
	}
	return p
}

// Multiplier returns the stake multiplier for a wager at edge
func (p *Performance) Multiplier(edge float64) float64 {
	if p == nil || !p.cfg.Enabled {
		return 1
	}
	stats, ok := p.buckets[models.EdgeBucket(p.cfg.EdgeBuckets, edge)]
	if !ok || stats.Samples < p.cfg.MinSamples {
		return 1
	}
	roi := stats.ROI()
	switch {
	case roi >= p.cfg.StrongROI:
		return p.cfg.BoostMultiplier
	case roi <= p.cfg.LossROI:
		return p.cfg.CutMultiplier
	}
	return 1
}
