// Package taxonomy holds the canonical placement catalogue used to normalize
// free-text sponsorship benefits.
package taxonomy

import (
	"fmt"
	"strings"

	"github.com/joseph-ayodele/sponsorship-analyzer/constants"
)

// Entry is one canonical placement.
type Entry struct {
	ID            int64                       `json:"id"`
	CanonicalName string                      `json:"canonicalName"`
	Category      constants.PlacementCategory `json:"category"`
	IsPopular     bool                        `json:"isPopular"`
	Aliases       []string                    `json:"aliases,omitempty"`
}

// Taxonomy is an immutable arena of entries with category and alias indexes.
// All methods are safe for concurrent use.
type Taxonomy struct {
	entries    []Entry
	names      []string   // normalized canonical names, parallel to entries
	tokens     [][]string // token sets of names, parallel to entries
	byCategory map[constants.PlacementCategory][]int
	byAlias    map[string]int
	byName     map[string]int
}

// New indexes entries in the given (registration) order.
func New(entries []Entry) (*Taxonomy, error) {
	t := &Taxonomy{
		entries:    make([]Entry, 0, len(entries)),
		byCategory: make(map[constants.PlacementCategory][]int),
		byAlias:    make(map[string]int),
		byName:     make(map[string]int),
	}
	for _, e := range entries {
		e.CanonicalName = strings.TrimSpace(e.CanonicalName)
		if e.CanonicalName == "" {
			return nil, fmt.Errorf("taxonomy: entry %d has an empty name", e.ID)
		}
		if constants.CategoryRank(e.Category) < 0 {
			return nil, fmt.Errorf("taxonomy: %q has unknown category %q", e.CanonicalName, e.Category)
		}
		norm := Normalize(e.CanonicalName)
		if _, dup := t.byName[norm]; dup {
			return nil, fmt.Errorf("taxonomy: duplicate canonical name %q", e.CanonicalName)
		}
		idx := len(t.entries)
		e.Aliases = append([]string(nil), e.Aliases...)
		t.entries = append(t.entries, e)
		t.names = append(t.names, norm)
		t.tokens = append(t.tokens, Tokens(norm))
		t.byName[norm] = idx
		t.byCategory[e.Category] = append(t.byCategory[e.Category], idx)
		for _, a := range e.Aliases {
			key := Normalize(a)
			if key == "" {
				continue
			}
			// first registration wins
			if _, taken := t.byAlias[key]; !taken {
				t.byAlias[key] = idx
			}
		}
	}
	return t, nil
}

// Len is the number of entries.
func (t *Taxonomy) Len() int { return len(t.entries) }

// At returns the entry at registration index i.
func (t *Taxonomy) At(i int) Entry { return t.entries[i] }

// Entries returns a copy of all entries in registration order.
func (t *Taxonomy) Entries() []Entry {
	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

// NormalizedName is Normalize(At(i).CanonicalName), precomputed.
func (t *Taxonomy) NormalizedName(i int) string { return t.names[i] }

// NameTokens is the token set of the canonical name at i. Callers must not modify it.
func (t *Taxonomy) NameTokens(i int) []string { return t.tokens[i] }

// ByCategory returns entry indexes of a category in registration order. Callers must not modify it.
func (t *Taxonomy) ByCategory(c constants.PlacementCategory) []int { return t.byCategory[c] }

// LookupAlias finds the entry whose alias normalizes to the same form as phrase.
func (t *Taxonomy) LookupAlias(phrase string) (int, bool) {
	i, ok := t.byAlias[Normalize(phrase)]
	return i, ok
}

// LookupName finds an entry by canonical name, ignoring case and punctuation.
func (t *Taxonomy) LookupName(name string) (Entry, bool) {
	i, ok := t.byName[Normalize(name)]
	if !ok {
		return Entry{}, false
	}
	return t.entries[i], true
}
