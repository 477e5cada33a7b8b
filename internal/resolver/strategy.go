package resolver

import "strings"

// Strategy scores two normalized names. Zero means no match; higher
// scores are more trustworthy. Scores are in [0,1].
type Strategy interface {
	Name() string
	Score(a, b string) float64
}

// Exact matches identical normalized names
type Exact struct{}

func (Exact) Name() string { return "exact" }

func (Exact) Score(a, b string) float64 {
	if a != "" && a == b {
		return 1
	}
	return 0
}

// Substring matches when one name appears in the other on word boundaries
type Substring struct {
	MinLen int
}

func (Substring) Name() string { return "substring" }

func (s Substring) Score(a, b string) float64 {
	if len(a) > len(b) {
		a, b = b, a
	}
	minLen := s.MinLen
	if minLen <= 0 {
		minLen = 3
	}
	if len(a) < minLen {
		return 0
	}
	if strings.Contains(" "+b+" ", " "+a+" ") {
		return 0.9
	}
	return 0
}

// TokenOverlap matches when the shared words exceed half of the shorter
// name's word count.
type TokenOverlap struct{}

func (TokenOverlap) Name() string { return "token_overlap" }

func (TokenOverlap) Score(a, b string) float64 {
	ta, tb := strings.Fields(a), strings.Fields(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	if len(ta) > len(tb) {
		ta, tb = tb, ta
	}
	set := make(map[string]struct{}, len(tb))
	for _, t := range tb {
		set[t] = struct{}{}
	}
	shared := 0
	for _, t := range ta {
		if _, ok := set[t]; ok {
			shared++
		}
	}
	if float64(shared) <= float64(len(ta))/2 {
		return 0
	}
	return 0.8 * float64(shared) / float64(len(tb))
}

// EditDistance matches names whose Levenshtein similarity reaches MinRatio
type EditDistance struct {
	MinRatio float64
}

func (EditDistance) Name() string { return "edit_distance" }

func (e EditDistance) Score(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	longest := len(ra)
	if len(rb) > longest {
		longest = len(rb)
	}
	if longest == 0 {
		return 0
	}
	ratio := 1 - float64(levenshtein(ra, rb))/float64(longest)
	minRatio := e.MinRatio
	if minRatio <= 0 {
		minRatio = 0.85
	}
	if ratio < minRatio {
		return 0
	}
	return 0.85 * ratio
}

func levenshtein(a, b []rune) int {
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		cur[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			cur[j] = minInt(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}

func minInt(vals ...int) int {
	m := vals[0]
	for _, v := range vals[1:] {
		if v < m {
			m = v
		}
	}
	return m
}
