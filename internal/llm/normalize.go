package llm

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/joseph-ayodele/sponsorship-analyzer/internal/common"
)

// MaxPlacementChars caps each raw placement phrase; longer values are usually the
// service echoing whole sentences.
const MaxPlacementChars = 100

var amountStripper = strings.NewReplacer("$", "", ",", "", " ", "", "\t", "", "\n", "", "\u00a0", "")

// Normalize decodes the service's JSON content and coerces it into an ExtractedResult:
//   - fundingGoal and cost: numbers (or "$1,500"-style strings) >= 0, else nil
//   - term and impact: trimmed strings, never nil
//   - totalSupported: whole numbers >= 0, else nil
//   - packages: only those with a non-empty name survive
//   - rawPlacements: trimmed, non-empty, capped at MaxPlacementChars
//
// Non-JSON or non-object content is common.ErrMalformedResponse; zero surviving
// packages is common.ErrNoPackagesExtracted. Normalizing a marshaled result again
// yields the same result.
func Normalize(raw []byte) (ExtractedResult, error) {
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return ExtractedResult{}, fmt.Errorf("%w: %v", common.ErrMalformedResponse, err)
	}
	if doc == nil {
		return ExtractedResult{}, fmt.Errorf("%w: expected a JSON object", common.ErrMalformedResponse)
	}

	out := ExtractedResult{
		FundingGoal:    coerceAmount(doc["fundingGoal"]),
		Term:           coerceText(doc["term"]),
		Impact:         coerceText(doc["impact"]),
		TotalSupported: coerceCount(doc["totalSupported"]),
		Packages:       []ExtractedPackage{},
	}

	items, _ := doc["packages"].([]any)
	for _, it := range items {
		m, ok := it.(map[string]any)
		if !ok {
			continue
		}
		name := coerceText(m["name"])
		if name == "" {
			continue
		}
		out.Packages = append(out.Packages, ExtractedPackage{
			Name:          name,
			Cost:          coerceAmount(m["cost"]),
			RawPlacements: coercePlacements(m["rawPlacements"]),
		})
	}

	if len(out.Packages) == 0 {
		return out, fmt.Errorf("%w: %d package candidates, none with a name", common.ErrNoPackagesExtracted, len(items))
	}
	return out, nil
}

func coerceAmount(v any) *float64 {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case string:
		s := amountStripper.Replace(strings.TrimSpace(t))
		if s == "" {
			return nil
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil
		}
		f = parsed
	default:
		return nil
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return nil
	}
	return &f
}

func coerceCount(v any) *int {
	f := coerceAmount(v)
	if f == nil || *f != math.Trunc(*f) || *f > math.MaxInt32 {
		return nil
	}
	n := int(*f)
	return &n
}

func coerceText(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return ""
	}
}

func coercePlacements(v any) []string {
	out := []string{}
	add := func(x any) {
		s := coerceText(x)
		if s == "" {
			return
		}
		out = append(out, strings.TrimSpace(common.Truncate(s, MaxPlacementChars)))
	}
	switch t := v.(type) {
	case []any:
		for _, x := range t {
			add(x)
		}
	case string:
		add(t)
	}
	return out
}
