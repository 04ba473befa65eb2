// Package derive computes the searchable form of a catalog product: its
// embedding text, its primary category, and its figure compatibility. All
// functions are pure and deterministic so re-derivation is idempotent.
package derive

import (
	"regexp"
	"sort"
	"strings"
)

// ignoreWords are content-type tokens that carry no categorical signal,
// mostly platform boilerplate and figure generation names.
var ignoreWords = map[string]bool{
	"follower": true, "default": true, "support": true, "preset": true,
	"people": true, "genesis": true, "genesis 9": true, "genesis 8": true,
	"genesis 3": true,
}

// priorityWords are picked as the primary category whenever present,
// regardless of token frequency.
var priorityWords = map[string]bool{
	"character": true, "clothes": true, "accessories": true,
	"environments": true, "hair": true, "poses": true, "animations": true,
	"props": true, "tools": true, "effects": true,
}

var wordSplitRegex = regexp.MustCompile(`[^a-zA-Z0-9]+`)

// ClassifyCategory analyzes a raw content-type string and picks a primary
// category plus sorted subcategories.
//
// The first priority word wins in token order; otherwise the most frequent
// remaining token does. Tokens in the ignore list never classify. An empty
// or all-noise input yields an empty category.
func ClassifyCategory(contentType string) (string, []string) {
	if contentType == "" {
		return "", nil
	}

	words := wordSplitRegex.Split(contentType, -1)
	var valid []string
	for _, w := range words {
		w = strings.ToLower(strings.TrimSpace(w))
		if w != "" && !ignoreWords[w] {
			valid = append(valid, w)
		}
	}
	if len(valid) == 0 {
		return "", nil
	}

	primary := ""
	for _, w := range valid {
		if priorityWords[w] {
			primary = w
			break
		}
	}
	if primary == "" {
		counts := make(map[string]int)
		for _, w := range valid {
			counts[w]++
		}
		best := -1
		for _, w := range valid { // first-seen order breaks count ties
			if counts[w] > best {
				best = counts[w]
				primary = w
			}
		}
	}

	seen := map[string]bool{primary: true}
	var subcategories []string
	for _, w := range valid {
		if !seen[w] {
			seen[w] = true
			subcategories = append(subcategories, w)
		}
	}
	sort.Strings(subcategories)
	return primary, subcategories
}
