package edge_test

import (
	"math"
	"testing"

	"github.com/XavierBriggs/fortuna/services/edge-ledger/internal/config"
	"github.com/XavierBriggs/fortuna/services/edge-ledger/internal/edge"
	"github.com/XavierBriggs/fortuna/services/edge-ledger/pkg/models"
)

func TestKellyFraction(t *testing.T) {
	if got := edge.KellyFraction(0.05, 2.0); math.Abs(got-0.05) > 1e-12 {
		t.Errorf("KellyFraction(0.05, 2.0) = %v, want 0.05", got)
	}
	if got := edge.KellyFraction(0, 2.0); math.Abs(got) > 1e-12 {
		t.Errorf("KellyFraction(0, 2.0) = %v, want 0", got)
	}
	if got := edge.KellyFraction(0.1, 1.0); got != 0 {
		t.Errorf("KellyFraction at price 1.0 = %v, want 0", got)
	}
}

func TestStake(t *testing.T) {
	tests := []struct {
		name       string
		edge       float64
		price      float64
		fraction   float64
		bankroll   float64
		maxPct     float64
		multiplier float64
		want       float64
	}{
		{"eighth kelly", 0.05, 2.0, 0.125, 1000, 0.03, 1, 6.25},
		{"ceiling binds", 0.05, 2.0, 0.125, 1000, 0.005, 1, 5.00},
		{"boost", 0.05, 2.0, 0.125, 1000, 0.03, 1.25, 7.81},
		{"boost clipped by ceiling", 0.05, 2.0, 0.125, 1000, 0.007, 1.25, 7.00},
		{"cut", 0.05, 2.0, 0.125, 1000, 0.03, 0.5, 3.13},
		{"no edge", -0.01, 2.0, 0.125, 1000, 0.03, 1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := edge.Stake(tt.edge, tt.price, tt.fraction, tt.bankroll, tt.maxPct, tt.multiplier)
			if got != tt.want {
				t.Errorf("Stake = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMinEdgeFor(t *testing.T) {
	cfg := config.Default().Edge

	tests := []struct {
		price  float64
		want   float64
		wantOK bool
	}{
		{1.50, 0.01, true},
		{2.50, 0.01, true},
		{2.51, 0.04, true},
		{4.00, 0.04, true},
		{5.50, 0.08, true},
		{6.00, 0.08, true},
		{6.01, 0, false},
	}
	for _, tt := range tests {
		got, ok := edge.MinEdgeFor(cfg, tt.price)
		if ok != tt.wantOK || got != tt.want {
			t.Errorf("MinEdgeFor(%v) = %v, %v; want %v, %v", tt.price, got, ok, tt.want, tt.wantOK)
		}
	}

	cfg.MinEdgeByPrice = nil
	if got, ok := edge.MinEdgeFor(cfg, 3.0); !ok || got != cfg.MinEdge {
		t.Errorf("empty table = %v, %v; want raw min edge %v", got, ok, cfg.MinEdge)
	}
}

func TestPerformanceMultiplier(t *testing.T) {
	cfg := config.Default().Edge.Performance
	stats := []models.BucketPerformance{
		{Bucket: 0, Samples: 100, Staked: 1000, Profit: 80},   // +8% ROI
		{Bucket: 1, Samples: 100, Staked: 1000, Profit: -150}, // -15% ROI
		{Bucket: 2, Samples: 5, Staked: 50, Profit: 40},       // too few samples
		{Bucket: 3, Samples: 100, Staked: 1000, Profit: 10},   // neutral
	}
	p := edge.NewPerformance(cfg, stats)

	tests := []struct {
		edge float64
		want float64
	}{
		{0.02, cfg.BoostMultiplier},
		{0.04, cfg.CutMultiplier},
		{0.07, 1},
		{0.12, 1},
		{-0.01, 1},
	}
	for _, tt := range tests {
		if got := p.Multiplier(tt.edge); got != tt.want {
			t.Errorf("Multiplier(%v) = %v, want %v", tt.edge, got, tt.want)
		}
	}

	var nilPerf *edge.Performance
	if got := nilPerf.Multiplier(0.02); got != 1 {
		t.Errorf("nil performance multiplier = %v, want 1", got)
	}

	cfg.Enabled = false
	if got := edge.NewPerformance(cfg, stats).Multiplier(0.02); got != 1 {
		t.Errorf("disabled multiplier = %v, want 1", got)
	}
}

func TestSharpScore(t *testing.T) {
	tests := []struct {
		split *models.PublicSplit
		want  *float64
	}{
		{nil, nil},
		{&models.PublicSplit{MoneyPct: 0.55, TicketPct: 0.40}, ptr(0.5)},
		{&models.PublicSplit{MoneyPct: 0.20, TicketPct: 0.80}, ptr(-1)},
	}
	for _, tt := range tests {
		got := edge.SharpScore(tt.split, 0.30)
		switch {
		case tt.want == nil && got != nil:
			t.Errorf("SharpScore(%v) = %v, want nil", tt.split, *got)
		case tt.want != nil && (got == nil || math.Abs(*got-*tt.want) > 1e-9):
			t.Errorf("SharpScore(%v) = %v, want %v", tt.split, got, *tt.want)
		}
	}
}

func ptr(v float64) *float64 { return &v }
