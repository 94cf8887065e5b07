package matcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/sponsorship-analyzer/constants"
	"github.com/joseph-ayodele/sponsorship-analyzer/internal/taxonomy"
)

func defaultMatcher(t *testing.T) *Matcher {
	t.Helper()
	entries, err := taxonomy.Default()
	require.NoError(t, err)
	tax, err := taxonomy.New(entries)
	require.NoError(t, err)
	m, err := New(tax, DefaultConfig())
	require.NoError(t, err)
	return m
}

func TestMatchStages(t *testing.T) {
	m := defaultMatcher(t)

	tests := []struct {
		phrase     string
		canonical  string
		confidence Confidence
		method     Method
	}{
		{"Logo on jersey", "Jersey Front Logo", ConfidenceHigh, MethodAlias},
		{"fence banner", "Fence Banner (Standard)", ConfidenceHigh, MethodAlias},
		{"Dugout Sign!", "Dugout Sign", ConfidenceHigh, MethodExact},
		{"gym wall banner 4x8", "Gym Wall Banner", ConfidenceMedium, MethodExact},
		{"standard banner fence", "Fence Banner (Standard)", ConfidenceHigh, MethodFuzzy},
		{"premium banner fence large", "Fence Banner (Premium)", ConfidenceMedium, MethodFuzzy},
		{"vinyl banner fence mesh", "Fence Banner (Standard)", ConfidenceLow, MethodFuzzy},
	}
	for _, tc := range tests {
		t.Run(tc.phrase, func(t *testing.T) {
			r := m.Match(tc.phrase)
			require.NotNil(t, r.Entry)
			assert.Equal(t, tc.canonical, r.Entry.CanonicalName)
			assert.Equal(t, tc.confidence, r.Confidence)
			assert.Equal(t, tc.method, r.Method)
			assert.Equal(t, tc.phrase, r.RawText)
		})
	}
}

func TestSubstringNeedsWholeTokens(t *testing.T) {
	m := defaultMatcher(t)

	r := m.Match("scoreboard")
	require.NotNil(t, r.Entry)
	assert.Equal(t, "Scoreboard Sign", r.Entry.CanonicalName)
	assert.Equal(t, MethodExact, r.Method)
	assert.Equal(t, ConfidenceMedium, r.Confidence)

	partial := m.Match("scoreboar")
	assert.NotEqual(t, MethodExact, partial.Method)
}

func TestUnmatchedKeepsRawPhrase(t *testing.T) {
	m := defaultMatcher(t)
	for _, p := range []string{"free pizza for the team", "", "  ...  "} {
		r := m.Match(p)
		assert.Nil(t, r.Entry, p)
		assert.Equal(t, ConfidenceNone, r.Confidence)
		assert.Equal(t, MethodUnmatched, r.Method)
	}
	assert.Equal(t, "free pizza for the team", m.Match("  free pizza for the team ").DisplayText())
}

func TestFuzzyNeverCrossesImpliedCategory(t *testing.T) {
	tax, err := taxonomy.New([]taxonomy.Entry{
		{ID: 1, CanonicalName: "Jersey Photo Post", Category: constants.CategoryDigital},
		{ID: 2, CanonicalName: "Jersey Number Patch", Category: constants.CategoryApparel},
	})
	require.NoError(t, err)
	m, err := New(tax, DefaultConfig())
	require.NoError(t, err)

	// "jersey" implies apparel only, so the better scoring digital entry is off limits.
	r := m.Match("photo of jersey")
	assert.Nil(t, r.Entry)
	assert.Equal(t, MethodUnmatched, r.Method)
}

func TestFuzzyTieBreaksByRegistrationOrder(t *testing.T) {
	m := defaultMatcher(t)
	// Scores 0.4 against both fence banners; Standard is registered first.
	r := m.Match("vinyl banner fence mesh")
	require.NotNil(t, r.Entry)
	assert.Equal(t, "Fence Banner (Standard)", r.Entry.CanonicalName)
	assert.InDelta(t, 0.4, r.Score, 1e-9)
}

func TestMatchIsDeterministic(t *testing.T) {
	m := defaultMatcher(t)
	first := m.Match("3x5 field banner")
	for i := 0; i < 50; i++ {
		assert.Equal(t, first, m.Match("3x5 field banner"))
	}
}

func TestConfigurableThresholds(t *testing.T) {
	entries, err := taxonomy.Default()
	require.NoError(t, err)
	tax, err := taxonomy.New(entries)
	require.NoError(t, err)

	strict := defaultMatcher(t)
	assert.Equal(t, MethodUnmatched, strict.Match("3x5 field banner").Method)

	loose, err := New(tax, Config{AcceptThreshold: 0.2, MediumThreshold: 0.6, HighThreshold: 0.8, ExactHighRatio: 0.8})
	require.NoError(t, err)
	r := loose.Match("3x5 field banner")
	require.NotNil(t, r.Entry)
	assert.Equal(t, "Entrance Banner", r.Entry.CanonicalName)
	assert.Equal(t, ConfidenceLow, r.Confidence)
	assert.Equal(t, MethodFuzzy, r.Method)
}

func TestConfidenceForScoreIsMonotonic(t *testing.T) {
	cfg := DefaultConfig()
	prev := ConfidenceNone
	for i := 0; i <= 100; i++ {
		c := cfg.ConfidenceForScore(float64(i) / 100)
		assert.GreaterOrEqual(t, c.Rank(), prev.Rank(), "score %.2f", float64(i)/100)
		prev = c
	}
	assert.Equal(t, ConfidenceLow, cfg.ConfidenceForScore(0.4))
	assert.Equal(t, ConfidenceMedium, cfg.ConfidenceForScore(0.6))
	assert.Equal(t, ConfidenceHigh, cfg.ConfidenceForScore(0.8))
	assert.Equal(t, ConfidenceNone, cfg.ConfidenceForScore(0.39))
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
	assert.Error(t, Config{AcceptThreshold: 0.7, MediumThreshold: 0.6, HighThreshold: 0.8, ExactHighRatio: 0.8}.Validate())
	assert.Error(t, Config{AcceptThreshold: 0, MediumThreshold: 0.6, HighThreshold: 0.8, ExactHighRatio: 0.8}.Validate())
	assert.Error(t, Config{AcceptThreshold: 0.4, MediumThreshold: 0.6, HighThreshold: 0.8}.Validate())
}

func TestMatchAllStatsAndDisplayBenefits(t *testing.T) {
	m := defaultMatcher(t)
	results, stats := m.MatchAll([]string{
		"logo on jersey",
		"fence banner",
		"Logo on Jersey",
		"vinyl banner fence mesh",
		"free pizza",
	})
	require.Len(t, results, 5)
	assert.Equal(t, BatchStats{Total: 5, Matched: 4, Unmatched: 1, High: 3, Low: 1, None: 1}, stats)

	assert.Equal(t, []string{
		"Jersey Front Logo",
		"Fence Banner (Standard)",
		"free pizza",
	}, DisplayBenefits(results))
}
