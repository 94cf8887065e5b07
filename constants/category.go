package constants

import (
	"strings"
	"unicode"
)

// PlacementCategory groups canonical placements; fuzzy matching never crosses categories.
type PlacementCategory string

const (
	CategoryApparel     PlacementCategory = "apparel"
	CategorySignage     PlacementCategory = "signage"
	CategoryDigital     PlacementCategory = "digital"
	CategoryEvent       PlacementCategory = "event"
	CategoryBroadcast   PlacementCategory = "broadcast"
	CategoryPrint       PlacementCategory = "print"
	CategoryNaming      PlacementCategory = "naming"
	CategoryHospitality PlacementCategory = "hospitality"
	CategoryOther       PlacementCategory = "other"
)

// allCategories is also the tie-break order for matching.
var allCategories = []PlacementCategory{
	CategoryApparel,
	CategorySignage,
	CategoryDigital,
	CategoryEvent,
	CategoryBroadcast,
	CategoryPrint,
	CategoryNaming,
	CategoryHospitality,
	CategoryOther,
}

// Categories returns the categories in their fixed order.
func Categories() []PlacementCategory {
	out := make([]PlacementCategory, len(allCategories))
	copy(out, allCategories)
	return out
}

func AsStringSlice() []string {
	result := make([]string, len(allCategories))
	for i, cat := range allCategories {
		result[i] = string(cat)
	}
	return result
}

// CategoryRank is the position of c in the fixed order, or -1.
func CategoryRank(c PlacementCategory) int {
	for i, cat := range allCategories {
		if cat == c {
			return i
		}
	}
	return -1
}

func Canonicalize(input string) (PlacementCategory, bool) {
	if input == "" {
		return CategoryOther, false
	}

	normalized := strings.ToLower(strings.TrimSpace(input))

	// synonyms map
	synonyms := map[string]PlacementCategory{
		"uniform":       CategoryApparel,
		"uniforms":      CategoryApparel,
		"jersey":        CategoryApparel,
		"signs":         CategorySignage,
		"sign":          CategorySignage,
		"banners":       CategorySignage,
		"web":           CategoryDigital,
		"online":        CategoryDigital,
		"social":        CategoryDigital,
		"social media":  CategoryDigital,
		"events":        CategoryEvent,
		"activation":    CategoryEvent,
		"media":         CategoryBroadcast,
		"tv":            CategoryBroadcast,
		"radio":         CategoryBroadcast,
		"printed":       CategoryPrint,
		"naming rights": CategoryNaming,
		"tickets":       CategoryHospitality,
		"vip":           CategoryHospitality,
	}

	if cat, ok := synonyms[normalized]; ok {
		return cat, true
	}

	for _, cat := range allCategories {
		if normalized == string(cat) {
			return cat, true
		}
	}

	return CategoryOther, false
}

// phraseKeywords is the coarse classifier table used to constrain fuzzy matching.
var phraseKeywords = map[string]PlacementCategory{
	"jersey": CategoryApparel, "jerseys": CategoryApparel, "uniform": CategoryApparel,
	"uniforms": CategoryApparel, "shirt": CategoryApparel, "shirts": CategoryApparel,
	"kit": CategoryApparel, "apparel": CategoryApparel, "helmet": CategoryApparel,
	"helmets": CategoryApparel, "sleeve": CategoryApparel, "shorts": CategoryApparel,
	"hat": CategoryApparel, "hats": CategoryApparel, "warmup": CategoryApparel,

	"banner": CategorySignage, "banners": CategorySignage, "fence": CategorySignage,
	"sign": CategorySignage, "signs": CategorySignage, "signage": CategorySignage,
	"scoreboard": CategorySignage, "billboard": CategorySignage, "dugout": CategorySignage,
	"outfield": CategorySignage, "wall": CategorySignage, "boards": CategorySignage,

	"website": CategoryDigital, "web": CategoryDigital, "online": CategoryDigital,
	"social": CategoryDigital, "instagram": CategoryDigital, "facebook": CategoryDigital,
	"twitter": CategoryDigital, "tiktok": CategoryDigital, "email": CategoryDigital,
	"newsletter": CategoryDigital, "digital": CategoryDigital, "post": CategoryDigital,
	"posts": CategoryDigital, "app": CategoryDigital,

	"event": CategoryEvent, "events": CategoryEvent, "tournament": CategoryEvent,
	"booth": CategoryEvent, "table": CategoryEvent, "clinic": CategoryEvent,
	"camp": CategoryEvent, "appreciation": CategoryEvent,

	"broadcast": CategoryBroadcast, "radio": CategoryBroadcast, "tv": CategoryBroadcast,
	"television": CategoryBroadcast, "livestream": CategoryBroadcast, "stream": CategoryBroadcast,
	"announcement": CategoryBroadcast, "announcements": CategoryBroadcast, "pa": CategoryBroadcast,
	"video": CategoryBroadcast, "commercial": CategoryBroadcast,

	"program": CategoryPrint, "programs": CategoryPrint, "flyer": CategoryPrint,
	"flyers": CategoryPrint, "brochure": CategoryPrint, "poster": CategoryPrint,
	"posters": CategoryPrint, "print": CategoryPrint, "schedule": CategoryPrint,
	"yearbook": CategoryPrint, "ad": CategoryPrint,

	"naming": CategoryNaming, "named": CategoryNaming, "presenting": CategoryNaming,
	"field": CategoryNaming, "arena": CategoryNaming, "stadium": CategoryNaming,

	"vip": CategoryHospitality, "suite": CategoryHospitality, "tickets": CategoryHospitality,
	"ticket": CategoryHospitality, "passes": CategoryHospitality, "hospitality": CategoryHospitality,
	"dinner": CategoryHospitality, "reception": CategoryHospitality, "parking": CategoryHospitality,
}

// ClassifyPhrase returns the categories implied by keywords in phrase, in category order.
// Nil means the phrase carries no category signal.
func ClassifyPhrase(phrase string) []PlacementCategory {
	words := strings.FieldsFunc(strings.ToLower(phrase), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	hit := make(map[PlacementCategory]bool)
	for _, w := range words {
		if cat, ok := phraseKeywords[w]; ok {
			hit[cat] = true
		}
	}
	if len(hit) == 0 {
		return nil
	}
	out := make([]PlacementCategory, 0, len(hit))
	for _, cat := range allCategories {
		if hit[cat] {
			out = append(out, cat)
		}
	}
	return out
}
