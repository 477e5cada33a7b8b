// Package quality rate-limits detailed logging of data-quality problems.
package quality

import (
	"sync"

	"go.uber.org/zap"
)

// Budget logs the first Limit occurrences of each kind with every field
// attached; later occurrences keep only the kind and a running count.
type Budget struct {
	log   *zap.Logger
	limit int

	mu     sync.Mutex
	counts map[string]int
}

// NewBudget creates a budget. A limit of zero logs every occurrence tersely.
func NewBudget(log *zap.Logger, limit int) *Budget {
	return &Budget{
		log:    log,
		limit:  limit,
		counts: make(map[string]int),
	}
}

// Report records one occurrence of kind
func (b *Budget) Report(kind, msg string, fields ...zap.Field) {
	b.mu.Lock()
	b.counts[kind]++
	n := b.counts[kind]
	b.mu.Unlock()

	if n <= b.limit {
		b.log.Warn(msg, append([]zap.Field{zap.String("kind", kind)}, fields...)...)
		return
	}
	b.log.Debug("data quality issue suppressed", zap.String("kind", kind), zap.Int("count", n))
}

// Counts returns a copy of the per-kind occurrence counts
func (b *Budget) Counts() map[string]int {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[string]int, len(b.counts))
	for k, v := range b.counts {
		out[k] = v
	}
	return out
}

// Summarize logs one line per kind if anything was reported
func (b *Budget) Summarize(msg string) {
	counts := b.Counts()
	if len(counts) == 0 {
		return
	}
	fields := make([]zap.Field, 0, len(counts))
	for k, v := range counts {
		fields = append(fields, zap.Int(k, v))
	}
	b.log.Info(msg, fields...)
}
