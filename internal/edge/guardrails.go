package edge

import "github.com/XavierBriggs/fortuna/services/edge-ledger/internal/config"

// MinEdgeFor returns the minimum edge a price must show. ok is false for
// prices above the cap, which are never accepted.
func MinEdgeFor(cfg config.EdgeConfig, price float64) (minEdge float64, ok bool) {
	if price > cfg.PriceCap {
		return 0, false
	}
	for _, b := range cfg.MinEdgeByPrice {
		if price <= b.MaxPrice {
			return b.MinEdge, true
		}
	}
	return cfg.MinEdge, true
}
