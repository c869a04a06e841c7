// Package intent classifies free-text user input against known question
// categories using approximate string matching.
//
// Matching is intentionally cheap: phrase lists are small and the matcher is
// invoked at most once per user turn, so the O(categories x phrases x input x
// phrase) normalized edit-distance scan is acceptable.
package intent

import (
	"strings"
	"unicode"

	"go.uber.org/zap"
)

const (
	// DefaultThreshold is the minimum similarity score for a phrase match.
	DefaultThreshold = 0.70

	// containmentScore is the floor score applied when the normalized input
	// contains a phrase or vice versa. Substring containment handles partial
	// and longer-than-phrase queries robustly.
	containmentScore = 0.85
)

// Category is a named intent with its trigger phrases and canned answer.
type Category struct {
	// Name identifies the category ("glossary", "process", ...).
	Name string

	// Phrases are the question templates matched against user input.
	Phrases []string

	// Answer is the canned response surfaced when this category matches.
	Answer string
}

// Matcher scores input against categories in declaration order.
//
// Tie-break contract: when several categories clear the threshold, the first
// declared category wins. Callers depend on the declared ordering; do not
// switch to a global best-score rule.
type Matcher struct {
	categories []Category
	logger     *zap.Logger
}

// NewMatcher creates a matcher over the given categories. A nil or empty
// category list falls back to DefaultCategories.
func NewMatcher(categories []Category, logger *zap.Logger) *Matcher {
	if len(categories) == 0 {
		categories = DefaultCategories()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Matcher{
		categories: categories,
		logger:     logger,
	}
}

// Match classifies input with the default threshold.
func (m *Matcher) Match(input string) (Category, bool) {
	return m.MatchWithThreshold(input, DefaultThreshold)
}

// MatchWithThreshold classifies input, returning the first declared category
// with any phrase scoring at or above threshold. The second return is false
// when nothing matches.
//
// Matching is deterministic: the same input and threshold always produce the
// same result.
func (m *Matcher) MatchWithThreshold(input string, threshold float64) (Category, bool) {
	normalized := Normalize(input)
	if normalized == "" {
		return Category{}, false
	}

	for _, cat := range m.categories {
		for _, phrase := range cat.Phrases {
			score := phraseScore(normalized, Normalize(phrase))
			if score >= threshold {
				m.logger.Debug("intent matched",
					zap.String("category", cat.Name),
					zap.String("phrase", phrase),
					zap.Float64("score", score),
				)
				return cat, true
			}
		}
	}

	return Category{}, false
}

// phraseScore computes the similarity between a normalized input and a
// normalized phrase: normalized Levenshtein similarity, raised to
// containmentScore when either string contains the other.
func phraseScore(input, phrase string) float64 {
	if input == "" || phrase == "" {
		return 0
	}

	score := similarity(input, phrase)
	if strings.Contains(phrase, input) || strings.Contains(input, phrase) {
		if score < containmentScore {
			score = containmentScore
		}
	}
	return score
}

// brandVariants maps common misspellings and spacing variants of brand terms
// to their canonical form. Applied after lowercasing.
var brandVariants = map[string]string{
	"smarter payouts": "smarterpayouts",
	"smart payouts":   "smarterpayouts",
	"smarterpayout":   "smarterpayouts",
}

// Normalize lowercases input, strips punctuation, collapses whitespace, and
// canonicalizes known brand-name spelling variants.
func Normalize(s string) string {
	s = strings.ToLower(s)

	var b strings.Builder
	b.Grow(len(s))
	lastSpace := false
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastSpace = false
		case unicode.IsSpace(r):
			if !lastSpace && b.Len() > 0 {
				b.WriteRune(' ')
			}
			lastSpace = true
		// Punctuation and symbols are dropped.
		}
	}
	out := strings.TrimSpace(b.String())

	for variant, canonical := range brandVariants {
		out = strings.ReplaceAll(out, variant, canonical)
	}
	return out
}

// similarity computes normalized Levenshtein similarity:
// 1 - distance/max(len). Ranges from 0 (completely different) to 1
// (identical).
func similarity(s1, s2 string) float64 {
	if s1 == s2 {
		return 1.0
	}
	if len(s1) == 0 || len(s2) == 0 {
		return 0.0
	}

	distance := levenshteinDistance(s1, s2)
	maxLen := len(s1)
	if len(s2) > maxLen {
		maxLen = len(s2)
	}
	return 1.0 - float64(distance)/float64(maxLen)
}

// levenshteinDistance computes the edit distance between two strings.
func levenshteinDistance(s1, s2 string) int {
	len1, len2 := len(s1), len(s2)
	if len1 == 0 {
		return len2
	}
	if len2 == 0 {
		return len1
	}

	matrix := make([][]int, len1+1)
	for i := range matrix {
		matrix[i] = make([]int, len2+1)
	}

	for i := 0; i <= len1; i++ {
		matrix[i][0] = i
	}
	for j := 0; j <= len2; j++ {
		matrix[0][j] = j
	}

	for i := 1; i <= len1; i++ {
		for j := 1; j <= len2; j++ {
			cost := 1
			if s1[i-1] == s2[j-1] {
				cost = 0
			}

			matrix[i][j] = minOf(
				matrix[i-1][j]+1,      // deletion
				matrix[i][j-1]+1,      // insertion
				matrix[i-1][j-1]+cost, // substitution
			)
		}
	}

	return matrix[len1][len2]
}

func minOf(a, b, c int) int {
	if a < b {
		if a < c {
			return a
		}
		return c
	}
	if b < c {
		return b
	}
	return c
}
