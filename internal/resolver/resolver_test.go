package resolver_test

import (
	"testing"

	"github.com/XavierBriggs/fortuna/services/edge-ledger/internal/resolver"
)

func TestNormalize(t *testing.T) {
	n := resolver.NewNormalizer(map[string]string{"The U": "Miami Hurricanes"})

	tests := []struct {
		in   string
		want string
	}{
		{"Boston Celtics", "boston celtics"},
		{"#12 Duke", "duke"},
		{"Gonzaga (5)", "gonzaga"},
		{"No. 3 Houston", "houston"},
		{"Atlético Madrid", "atletico madrid"},
		{"Atletico", "atletico madrid"},
		{"LA Lakers", "los angeles lakers"},
		{"LAL", "los angeles lakers"},
		{"Man Utd", "manchester united"},
		{"Man City", "manchester city"},
		{"St. John's", "saint johns"},
		{"Arsenal FC", "arsenal"},
		{"AFC Bournemouth", "bournemouth"},
		{"Brighton & Hove Albion", "brighton"},
		{"the u", "miami hurricanes"},
		{"  ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := n.Normalize(tt.in); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestDefaultResolverSame(t *testing.T) {
	r := resolver.Default(nil)

	tests := []struct {
		a, b string
		want bool
	}{
		{"Boston Celtics", "Celtics", true},
		{"Los Angeles Lakers", "LA Lakers", true},
		{"#8 Kansas", "Kansas Jayhawks", true},
		{"North Carolina Tar Heels", "UNC", true},
		{"Duke Blue Devils", "Duke", true},
		{"Boston Celtics", "Brooklyn Nets", false},
		{"Kansas", "Kansas State Wildcats", true}, // substring on word boundary
		{"Arkansas", "Kansas", false},
		{"", "Kansas", false},
	}

	for _, tt := range tests {
		t.Run(tt.a+"|"+tt.b, func(t *testing.T) {
			if got := r.Same(tt.a, tt.b); got != tt.want {
				t.Errorf("Same(%q, %q) = %v, want %v (score %.2f)", tt.a, tt.b, got, tt.want, r.Score(tt.a, tt.b))
			}
		})
	}
}

func TestTokenOverlapThreshold(t *testing.T) {
	s := resolver.TokenOverlap{}

	// 1 shared of 2 is exactly half, not more than half
	if got := s.Score("golden knights", "golden state warriors"); got != 0 {
		t.Errorf("half overlap scored %v, want 0", got)
	}
	if got := s.Score("texas a and m aggies", "texas a and m"); got == 0 {
		t.Error("full overlap of shorter name scored 0")
	}
}

func TestEditDistanceStrategy(t *testing.T) {
	r := resolver.New(resolver.NewNormalizer(nil), resolver.EditDistance{MinRatio: 0.85})

	if !r.Same("Philadelphia 76ers", "Philadelphia 76ers.") {
		t.Error("punctuation variant should match exactly after normalization")
	}
	if !r.Same("Borussia Monchengladbach", "Borussia Mönchengladbach") {
		t.Error("accent variant should match")
	}
	if !r.Same("Wolverhampton Wanderers", "Wolverhampton Wanderer") {
		t.Error("one-letter typo should match by edit distance")
	}
	if r.Same("Utah Jazz", "Miami Heat") {
		t.Error("unrelated names matched")
	}
}

func TestBest(t *testing.T) {
	r := resolver.Default(nil)
	candidates := []string{"Kansas State", "Kansas", "Arkansas"}

	got, score, ok := r.Best("Kansas", candidates)
	if !ok || got != "Kansas" || score != 1 {
		t.Errorf("Best = %q, %v, %v; want exact Kansas", got, score, ok)
	}

	if _, _, ok := r.Best("Gonzaga", candidates); ok {
		t.Error("Best found a match for an unknown team")
	}
}
