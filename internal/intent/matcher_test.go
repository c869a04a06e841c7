package intent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"lowercases", "How Does It WORK", "how does it work"},
		{"strips punctuation", "what's the catch?!", "whats the catch"},
		{"collapses whitespace", "  why   work\twith  us ", "why work with us"},
		{"brand variant spacing", "why work with Smarter Payouts", "why work with smarterpayouts"},
		{"brand variant misspelling", "is smart payouts legit", "is smarterpayouts legit"},
		{"empty", "   ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.input))
		})
	}
}

func TestLevenshteinDistance(t *testing.T) {
	assert.Equal(t, 0, levenshteinDistance("annuity", "annuity"))
	assert.Equal(t, 1, levenshteinDistance("anuity", "annuity"))
	assert.Equal(t, 7, levenshteinDistance("", "annuity"))
	assert.Equal(t, 3, levenshteinDistance("kitten", "sitting"))
}

func TestMatcher_BrandSpacingVariantsResolveSame(t *testing.T) {
	m := NewMatcher(nil, nil)

	a, okA := m.Match("why work with smarterpayouts")
	b, okB := m.Match("why work with smarter payouts")

	require.True(t, okA)
	require.True(t, okB)
	assert.Equal(t, a.Name, b.Name)
	assert.Equal(t, "company", a.Name)
}

func TestMatcher_TypoToleranceCoversGlossary(t *testing.T) {
	m := NewMatcher(nil, nil)

	cat, ok := m.Match("wat is an anuity")
	require.True(t, ok)
	assert.Equal(t, "glossary", cat.Name)
	assert.NotEmpty(t, cat.Answer)
}

func TestMatcher_Deterministic(t *testing.T) {
	m := NewMatcher(nil, nil)

	first, ok := m.Match("how does the process work")
	require.True(t, ok)

	for i := 0; i < 10; i++ {
		got, ok := m.Match("how does the process work")
		require.True(t, ok)
		assert.Equal(t, first.Name, got.Name)
	}
}

func TestMatcher_SubstringContainment(t *testing.T) {
	m := NewMatcher([]Category{
		{Name: "hours", Phrases: []string{"what are your business hours"}},
	}, nil)

	// Input longer than the phrase still matches via containment.
	cat, ok := m.Match("hey, what are your business hours on weekends?")
	require.True(t, ok)
	assert.Equal(t, "hours", cat.Name)

	// Partial query contained in the phrase matches too.
	cat, ok = m.Match("business hours")
	require.True(t, ok)
	assert.Equal(t, "hours", cat.Name)
}

func TestMatcher_FirstDeclaredCategoryWins(t *testing.T) {
	// Both categories carry the identical phrase; declaration order decides.
	m := NewMatcher([]Category{
		{Name: "first", Phrases: []string{"tell me about fees"}},
		{Name: "second", Phrases: []string{"tell me about fees"}},
	}, nil)

	cat, ok := m.Match("tell me about fees")
	require.True(t, ok)
	assert.Equal(t, "first", cat.Name)
}

func TestMatcher_NoMatchBelowThreshold(t *testing.T) {
	m := NewMatcher(nil, nil)

	_, ok := m.Match("completely unrelated gibberish zzz qqq")
	assert.False(t, ok)
}

func TestMatcher_EmptyInput(t *testing.T) {
	m := NewMatcher(nil, nil)

	_, ok := m.Match("   !!! ")
	assert.False(t, ok)
}

func TestMatchWithThreshold_StricterThresholdRejects(t *testing.T) {
	m := NewMatcher(nil, nil)

	// A typo-laden query passes the default threshold but not a strict one.
	_, ok := m.MatchWithThreshold("wat is an anuity", 0.95)
	assert.False(t, ok)

	_, ok = m.MatchWithThreshold("wat is an anuity", DefaultThreshold)
	assert.True(t, ok)
}
