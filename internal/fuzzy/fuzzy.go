// Package fuzzy scores how well a stored name matches a requested one and
// normalizes text for keyword matching.
package fuzzy

import (
	"math"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/agext/levenshtein"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MatchConfidence scores candidate against query on a 0-100 scale. It takes
// the best of three signals: case-insensitive equality (100), containment
// (length ratio of the shorter to the longer string) and edit-distance
// similarity.
func MatchConfidence(query, candidate string) int {
	q := strings.ToLower(strings.TrimSpace(query))
	c := strings.ToLower(strings.TrimSpace(candidate))
	if q == c {
		return 100
	}
	if q == "" || c == "" {
		return 0
	}

	best := Similarity(q, c)
	if strings.Contains(c, q) || strings.Contains(q, c) {
		ql, cl := utf8.RuneCountInString(q), utf8.RuneCountInString(c)
		ratio := int(math.Round(float64(min(ql, cl)) / float64(max(ql, cl)) * 100))
		best = max(best, ratio)
	}
	return best
}

// Similarity is (maxLen - distance) / maxLen * 100, rounded, where distance
// is the Levenshtein distance in runes.
func Similarity(a, b string) int {
	maxLen := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	if maxLen == 0 {
		return 100
	}
	d := levenshtein.Distance(a, b, nil)
	return int(math.Round(float64(maxLen-d) / float64(maxLen) * 100))
}

// Fold lowercases s and strips diacritics ("Televisión" -> "television").
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return strings.ToLower(s)
	}
	return strings.ToLower(out)
}
