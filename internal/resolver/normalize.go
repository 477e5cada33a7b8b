package resolver

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	rankHash   = regexp.MustCompile(`#\s*\d+`)
	rankParen  = regexp.MustCompile(`\(\s*\d+\s*\)`)
	rankPrefix = regexp.MustCompile(`^(no\.?|number)\s*\d+\s+`)
)

// Normalizer canonicalizes team names before comparison
type Normalizer struct {
	exact  map[string]string // whole-name aliases
	prefix map[string]string // leading-words aliases ("la" → "los angeles")
}

// NewNormalizer builds a normalizer from the built-in alias tables plus
// extra whole-name aliases. Extra keys and values are normalized first.
func NewNormalizer(extra map[string]string) *Normalizer {
	n := &Normalizer{
		exact:  make(map[string]string, len(teamAliases)+len(extra)),
		prefix: make(map[string]string, len(prefixAliases)),
	}
	for k, v := range prefixAliases {
		n.prefix[k] = v
	}
	for k, v := range teamAliases {
		n.exact[k] = v
	}
	for k, v := range extra {
		n.exact[clean(k)] = clean(v)
	}
	return n
}

// Normalize lower-cases, folds accents, strips rank markers and punctuation
// and applies the alias tables.
func (n *Normalizer) Normalize(name string) string {
	s := clean(name)
	if s == "" {
		return s
	}
	if alias, ok := n.exact[s]; ok {
		return alias
	}
	for from, to := range n.prefix {
		if s == from {
			return to
		}
		if strings.HasPrefix(s, from+" ") {
			s = to + s[len(from):]
			break
		}
	}
	if alias, ok := n.exact[s]; ok {
		return alias
	}
	return s
}

func clean(name string) string {
	s := strings.ToLower(name)

	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if folded, _, err := transform.String(t, s); err == nil {
		s = folded
	}

	s = rankHash.ReplaceAllString(s, " ")
	s = rankParen.ReplaceAllString(s, " ")
	s = strings.ReplaceAll(s, "&", " and ")
	s = strings.ReplaceAll(s, "'", "")
	s = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return ' '
	}, s)

	fields := strings.Fields(s)
	s = strings.Join(fields, " ")
	s = rankPrefix.ReplaceAllString(s, "")

	// club suffixes carry no identity
	fields = strings.Fields(s)
	for len(fields) > 1 {
		last := fields[len(fields)-1]
		if last != "fc" && last != "afc" && last != "sc" && last != "cf" {
			break
		}
		fields = fields[:len(fields)-1]
	}
	if len(fields) > 1 && (fields[0] == "fc" || fields[0] == "afc") {
		fields = fields[1:]
	}
	return strings.Join(fields, " ")
}
