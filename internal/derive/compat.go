package derive

import (
	"sort"
	"strings"
)

// Compatibility resolves which canonical figures a product supports by
// checking fields in strict priority order: the formal compatibility string,
// then the product name, then the scraped description. A later field is only
// consulted when every earlier one found nothing, which keeps incidental
// mentions in descriptions from overriding explicit vendor data.
//
// Matching is case-insensitive substring matching against the canonical
// figure names. The result is sorted and de-duplicated.
func Compatibility(compatibility, name, description string, figures []string) []string {
	found := make(map[string]bool)

	scan := func(haystack string) {
		lower := strings.ToLower(haystack)
		for _, figure := range figures {
			if strings.Contains(lower, strings.ToLower(figure)) {
				found[figure] = true
			}
		}
	}

	if compatibility != "" {
		scan(compatibility)
	}
	if len(found) == 0 && name != "" {
		scan(name)
	}
	if len(found) == 0 && description != "" {
		scan(description)
	}

	if len(found) == 0 {
		return nil
	}
	result := make([]string, 0, len(found))
	for figure := range found {
		result = append(result, figure)
	}
	sort.Strings(result)
	return result
}
