package search

import (
	"github.com/vabrowser/vab/internal/store"
)

// BuildFilter translates facets into a metadata filter tree. Values within
// one field are OR'd, fields are AND'd. The category field holds a single
// string and uses exact matching; the list-valued fields are stored as
// joined strings and use substring matching.
//
// Degenerate shapes collapse: no facets yields nil (no filtering), a single
// value is a bare leaf, and a single populated field skips the AND wrapper.
func BuildFilter(f Facets) store.Filter {
	var conditions []store.Filter

	appendField := func(field string, op store.Op, values []string) {
		if len(values) == 0 {
			return
		}
		leaves := make([]store.Filter, len(values))
		for i, value := range values {
			leaves[i] = store.Leaf{Field: field, Op: op, Value: value}
		}
		if len(leaves) == 1 {
			conditions = append(conditions, leaves[0])
			return
		}
		conditions = append(conditions, store.Or(leaves))
	}

	appendField("tags", store.OpContains, f.Tags)
	appendField("artists", store.OpContains, f.Artists)
	appendField("category", store.OpEquals, f.Categories)
	appendField("compatible_figures", store.OpContains, f.CompatibleFigures)

	switch len(conditions) {
	case 0:
		return nil
	case 1:
		return conditions[0]
	default:
		return store.And(conditions)
	}
}
