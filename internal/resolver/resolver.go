// Package resolver decides whether two team names from different sources
// refer to the same team.
package resolver

// Matcher is what the grading, settlement and intake code depend on
type Matcher interface {
	Normalize(name string) string
	Score(a, b string) float64
	Same(a, b string) bool
	Best(name string, candidates []string) (string, float64, bool)
}

// Resolver normalizes names and runs a chain of strategies, keeping the
// highest score.
type Resolver struct {
	normalizer *Normalizer
	strategies []Strategy
}

// New creates a resolver. Exact matching is always tried first.
func New(n *Normalizer, strategies ...Strategy) *Resolver {
	if n == nil {
		n = NewNormalizer(nil)
	}
	return &Resolver{
		normalizer: n,
		strategies: append([]Strategy{Exact{}}, strategies...),
	}
}

// Default is alias table, substring and token overlap matching
func Default(aliases map[string]string) *Resolver {
	return New(NewNormalizer(aliases), Substring{}, TokenOverlap{})
}

// Normalize exposes the canonical form of a name
func (r *Resolver) Normalize(name string) string {
	return r.normalizer.Normalize(name)
}

// Score returns the best strategy score for two raw names
func (r *Resolver) Score(a, b string) float64 {
	na, nb := r.normalizer.Normalize(a), r.normalizer.Normalize(b)
	if na == "" || nb == "" {
		return 0
	}
	best := 0.0
	for _, s := range r.strategies {
		if score := s.Score(na, nb); score > best {
			best = score
			if best == 1 {
				break
			}
		}
	}
	return best
}

// Same reports whether any strategy matched
func (r *Resolver) Same(a, b string) bool {
	return r.Score(a, b) > 0
}

// Best returns the highest-scoring candidate for name
func (r *Resolver) Best(name string, candidates []string) (string, float64, bool) {
	bestName, best := "", 0.0
	for _, c := range candidates {
		if score := r.Score(name, c); score > best {
			bestName, best = c, score
		}
	}
	return bestName, best, best > 0
}
