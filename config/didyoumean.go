package config

import (
	"sort"

	"github.com/antzucaro/matchr"
)

// nearestDirectiveNames returns the directive names closest to name by
// Levenshtein distance, for use in "did you mean" diagnostics on an
// unrecognized directive.
func nearestDirectiveNames(name string) []string {
	type scored struct {
		name string
		dist int
	}
	scores := make([]scored, len(directiveTable))
	for i, d := range directiveTable {
		scores[i] = scored{d.name, matchr.Levenshtein(name, d.name)}
	}
	sort.Slice(scores, func(i, j int) bool { return scores[i].dist < scores[j].dist })

	const maxSuggestions = 3
	var out []string
	for i := 0; i < len(scores) && i < maxSuggestions; i++ {
		out = append(out, scores[i].name)
	}
	return out
}
