// Package matcher resolves free-text benefit phrases to canonical placements.
package matcher

import (
	"strings"
	"unicode/utf8"

	"github.com/joseph-ayodele/sponsorship-analyzer/constants"
	"github.com/joseph-ayodele/sponsorship-analyzer/internal/taxonomy"
)

type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
	ConfidenceNone   Confidence = "none"
)

// Rank orders tiers: none < low < medium < high.
func (c Confidence) Rank() int {
	switch c {
	case ConfidenceHigh:
		return 3
	case ConfidenceMedium:
		return 2
	case ConfidenceLow:
		return 1
	default:
		return 0
	}
}

type Method string

const (
	MethodAlias     Method = "alias"
	MethodExact     Method = "exact"
	MethodFuzzy     Method = "fuzzy"
	MethodUnmatched Method = "unmatched"
)

// MatchResult is the outcome for one raw phrase. Entry is nil when unmatched.
type MatchResult struct {
	RawText    string          `json:"rawText"`
	Entry      *taxonomy.Entry `json:"canonicalEntry"`
	Confidence Confidence      `json:"confidence"`
	Method     Method          `json:"method"`
	Score      float64         `json:"score"`
}

func (r MatchResult) Matched() bool { return r.Entry != nil }

// DisplayText is the canonical name when matched, else the trimmed raw phrase.
func (r MatchResult) DisplayText() string {
	if r.Entry != nil {
		return r.Entry.CanonicalName
	}
	return strings.TrimSpace(r.RawText)
}

// Matcher is stateless apart from its read-only taxonomy and may be shared across goroutines.
type Matcher struct {
	tax *taxonomy.Taxonomy
	cfg Config
}

func New(tax *taxonomy.Taxonomy, cfg Config) (*Matcher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Matcher{tax: tax, cfg: cfg}, nil
}

func (m *Matcher) Config() Config { return m.cfg }

// Match runs alias, exact/substring and category-constrained fuzzy stages in that
// order; the first stage that succeeds wins.
func (m *Matcher) Match(phrase string) MatchResult {
	norm := taxonomy.Normalize(phrase)
	if norm == "" || m.tax == nil || m.tax.Len() == 0 {
		return unmatched(phrase)
	}

	if i, ok := m.tax.LookupAlias(norm); ok {
		return m.result(phrase, i, ConfidenceHigh, MethodAlias, 1)
	}

	if i, ratio, ok := m.substring(norm); ok {
		conf := ConfidenceMedium
		if ratio > m.cfg.ExactHighRatio {
			conf = ConfidenceHigh
		}
		return m.result(phrase, i, conf, MethodExact, ratio)
	}

	if i, score, ok := m.fuzzy(phrase, norm); ok {
		return m.result(phrase, i, m.cfg.ConfidenceForScore(score), MethodFuzzy, score)
	}

	return unmatched(phrase)
}

// substring finds canonical names containing the phrase (or contained in it).
// Containment is checked on whole tokens only, so "pa" never matches inside
// "park" and "ad" never matches inside "banner ads"; partial-word overlap is left
// to the fuzzy stage. The highest length ratio wins; ties keep registration order.
func (m *Matcher) substring(norm string) (int, float64, bool) {
	padded := " " + norm + " "
	pl := utf8.RuneCountInString(norm)
	best, bestRatio := -1, 0.0
	for i := 0; i < m.tax.Len(); i++ {
		name := m.tax.NormalizedName(i)
		if name == "" {
			continue
		}
		if !strings.Contains(" "+name+" ", padded) && !strings.Contains(padded, " "+name+" ") {
			continue
		}
		nl := utf8.RuneCountInString(name)
		ratio := float64(min(pl, nl)) / float64(max(pl, nl))
		if ratio > bestRatio {
			best, bestRatio = i, ratio
		}
	}
	return best, bestRatio, best >= 0
}

// fuzzy scores candidates from the categories implied by the phrase (all
// categories when none is implied) with token-set Jaccard similarity.
func (m *Matcher) fuzzy(phrase, norm string) (int, float64, bool) {
	cats := constants.ClassifyPhrase(phrase)
	if len(cats) == 0 {
		cats = constants.Categories()
	}
	tokens := taxonomy.Tokens(norm)
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}

	best, bestScore := -1, 0.0
	for _, cat := range cats {
		for _, i := range m.tax.ByCategory(cat) {
			s := jaccard(set, m.tax.NameTokens(i))
			if s > bestScore {
				best, bestScore = i, s
			}
		}
	}
	if best < 0 || bestScore < m.cfg.AcceptThreshold {
		return -1, bestScore, false
	}
	return best, bestScore, true
}

// jaccard is |a ∩ b| / |a ∪ b| for distinct token sets.
func jaccard(a map[string]struct{}, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for _, t := range b {
		if _, ok := a[t]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

func (m *Matcher) result(raw string, i int, conf Confidence, method Method, score float64) MatchResult {
	e := m.tax.At(i)
	return MatchResult{RawText: raw, Entry: &e, Confidence: conf, Method: method, Score: score}
}

func unmatched(raw string) MatchResult {
	return MatchResult{RawText: raw, Confidence: ConfidenceNone, Method: MethodUnmatched}
}
