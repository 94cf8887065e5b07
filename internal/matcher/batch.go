package matcher

// BatchStats summarizes a batch for diagnostics only.
type BatchStats struct {
	Total     int `json:"total"`
	Matched   int `json:"matched"`
	Unmatched int `json:"unmatched"`
	High      int `json:"high"`
	Medium    int `json:"medium"`
	Low       int `json:"low"`
	None      int `json:"none"`
}

// Add folds one result into the stats.
func (s *BatchStats) Add(r MatchResult) {
	s.Total++
	if r.Matched() {
		s.Matched++
	} else {
		s.Unmatched++
	}
	switch r.Confidence {
	case ConfidenceHigh:
		s.High++
	case ConfidenceMedium:
		s.Medium++
	case ConfidenceLow:
		s.Low++
	default:
		s.None++
	}
}

// Merge adds other into s.
func (s *BatchStats) Merge(other BatchStats) {
	s.Total += other.Total
	s.Matched += other.Matched
	s.Unmatched += other.Unmatched
	s.High += other.High
	s.Medium += other.Medium
	s.Low += other.Low
	s.None += other.None
}

// MatchAll matches each phrase independently, preserving input order.
func (m *Matcher) MatchAll(phrases []string) ([]MatchResult, BatchStats) {
	out := make([]MatchResult, 0, len(phrases))
	var stats BatchStats
	for _, p := range phrases {
		r := m.Match(p)
		stats.Add(r)
		out = append(out, r)
	}
	return out, stats
}

// DisplayBenefits lists canonical names where matched and raw phrases otherwise,
// without duplicates, in input order.
func DisplayBenefits(results []MatchResult) []string {
	seen := make(map[string]struct{}, len(results))
	out := make([]string, 0, len(results))
	for _, r := range results {
		text := r.DisplayText()
		if text == "" {
			continue
		}
		if _, dup := seen[text]; dup {
			continue
		}
		seen[text] = struct{}{}
		out = append(out, text)
	}
	return out
}
