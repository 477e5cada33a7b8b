// Package calibration derives per-sport probability multipliers from
// settled history.
package calibration

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/XavierBriggs/fortuna/services/edge-ledger/internal/config"
	"github.com/XavierBriggs/fortuna/services/edge-ledger/pkg/contracts"
	"github.com/XavierBriggs/fortuna/services/edge-ledger/pkg/models"
)

// StatsSource provides settled history
type StatsSource interface {
	SettledStats(ctx context.Context, sportKey string) (models.SettledStats, error)
}

// Compute returns actual over predicted wins clamped to the configured
// bounds, or 1.0 below the minimum sample.
func Compute(sportKey string, stats models.SettledStats, cfg config.CalibrationConfig, now time.Time) models.CalibrationFactor {
	f := models.CalibrationFactor{
		SportKey:   sportKey,
		Factor:     1.0,
		Samples:    stats.Samples,
		ComputedAt: now.UTC(),
	}
	if stats.Samples < cfg.MinSamples || stats.PredictedWins <= 0 {
		return f
	}

	ratio := float64(stats.Wins) / stats.PredictedWins
	switch {
	case ratio < cfg.MinFactor:
		ratio = cfg.MinFactor
	case ratio > cfg.MaxFactor:
		ratio = cfg.MaxFactor
	}
	f.Factor = ratio
	return f
}

// Service serves factors from cache, recomputing on a miss
type Service struct {
	stats StatsSource
	cache contracts.FactorCache
	cfg   config.CalibrationConfig
	log   *zap.Logger
	now   func() time.Time
}

// NewService creates a calibration service. cache may be nil.
func NewService(stats StatsSource, cache contracts.FactorCache, cfg config.CalibrationConfig, log *zap.Logger) *Service {
	return &Service{
		stats: stats,
		cache: cache,
		cfg:   cfg,
		log:   log.Named("calibration"),
		now:   time.Now,
	}
}

// Factor returns the current factor for a sport. On failure it returns the
// neutral factor alongside the error so callers can continue.
func (s *Service) Factor(ctx context.Context, sportKey string) (models.CalibrationFactor, error) {
	if s.cache != nil {
		cached, err := s.cache.GetFactor(ctx, sportKey)
		if err != nil {
			s.log.Warn("calibration cache read failed", zap.String("sport", sportKey), zap.Error(err))
		} else if cached != nil {
			return *cached, nil
		}
	}
	return s.Refresh(ctx, sportKey)
}

// Refresh recomputes a factor from the store and caches it
func (s *Service) Refresh(ctx context.Context, sportKey string) (models.CalibrationFactor, error) {
	stats, err := s.stats.SettledStats(ctx, sportKey)
	if err != nil {
		neutral := models.CalibrationFactor{SportKey: sportKey, Factor: 1.0, ComputedAt: s.now().UTC()}
		return neutral, fmt.Errorf("failed to compute calibration for %s: %w", sportKey, err)
	}

	f := Compute(sportKey, stats, s.cfg, s.now())
	if s.cache != nil {
		if err := s.cache.SetFactor(ctx, f, s.cfg.CacheTTL); err != nil {
			s.log.Warn("calibration cache write failed", zap.String("sport", sportKey), zap.Error(err))
		}
	}

	s.log.Debug("calibration factor computed",
		zap.String("sport", sportKey),
		zap.Float64("factor", f.Factor),
		zap.Int("samples", f.Samples))
	return f, nil
}
