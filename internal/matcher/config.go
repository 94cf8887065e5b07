package matcher

import (
	"fmt"

	"github.com/joseph-ayodele/sponsorship-analyzer/internal/common"
)

// Config holds the tunable thresholds. Defaults are empirical and meant to be
// tuned against labelled phrases (see `sponsorctl match`).
type Config struct {
	AcceptThreshold float64 // minimum fuzzy score to accept a candidate
	MediumThreshold float64 // fuzzy score for medium confidence
	HighThreshold   float64 // fuzzy score for high confidence
	ExactHighRatio  float64 // substring length ratio above which an exact match is high
}

func DefaultConfig() Config {
	return Config{
		AcceptThreshold: 0.4,
		MediumThreshold: 0.6,
		HighThreshold:   0.8,
		ExactHighRatio:  0.8,
	}
}

// FromCommon converts the environment-driven matcher settings.
func FromCommon(c common.MatcherConfig) Config {
	return Config{
		AcceptThreshold: c.AcceptThreshold,
		MediumThreshold: c.MediumThreshold,
		HighThreshold:   c.HighThreshold,
		ExactHighRatio:  c.ExactHighRatio,
	}
}

func (c Config) Validate() error {
	if !(c.AcceptThreshold > 0 && c.AcceptThreshold <= c.MediumThreshold &&
		c.MediumThreshold <= c.HighThreshold && c.HighThreshold <= 1) {
		return fmt.Errorf("matcher: thresholds must satisfy 0 < accept(%.2f) <= medium(%.2f) <= high(%.2f) <= 1",
			c.AcceptThreshold, c.MediumThreshold, c.HighThreshold)
	}
	if c.ExactHighRatio <= 0 || c.ExactHighRatio > 1 {
		return fmt.Errorf("matcher: exact high ratio %.2f out of (0,1]", c.ExactHighRatio)
	}
	return nil
}

// ConfidenceForScore maps a fuzzy similarity score to a tier. It is pure and
// monotonic: a higher score never yields a lower tier.
func (c Config) ConfidenceForScore(score float64) Confidence {
	switch {
	case score >= c.HighThreshold:
		return ConfidenceHigh
	case score >= c.MediumThreshold:
		return ConfidenceMedium
	case score >= c.AcceptThreshold:
		return ConfidenceLow
	default:
		return ConfidenceNone
	}
}
