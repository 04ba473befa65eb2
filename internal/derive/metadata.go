package derive

import (
	"fmt"
	"strings"
	"time"

	"github.com/vabrowser/vab/internal/store"
)

// Metadata builds the scalar facet snapshot stored alongside a product's
// vector. Multi-valued fields are joined into single strings so "contains"
// facet predicates can match them; empty values are omitted entirely.
func Metadata(p *store.Product) store.Metadata {
	meta := store.Metadata{
		"sku":  p.SKU,
		"name": p.Name,
	}

	putString := func(key, value string) {
		if value != "" {
			meta[key] = value
		}
	}
	putList := func(key string, values []string) {
		putString(key, strings.Join(values, store.ListSeparator))
	}

	putString("url", p.URL)
	putString("image_url", p.ImageURL)
	putList("artists", p.Artists)
	putList("tags", p.Tags)
	putList("compatible_figures", p.CompatibleFigures)
	putString("category", p.Category)
	putList("subcategories", p.Subcategories)
	meta["mature"] = p.Mature
	if !p.LastUpdated.IsZero() {
		meta["last_updated"] = p.LastUpdated.UTC().Format(time.RFC3339)
	}

	return meta
}

// CleanMetadata drops nil values and coerces everything outside the scalar
// set (string, bool, int, int64, float64) to its string form. Vector index
// metadata must stay flat and scalar.
func CleanMetadata(meta store.Metadata) store.Metadata {
	cleaned := make(store.Metadata, len(meta))
	for key, value := range meta {
		switch v := value.(type) {
		case nil:
			// dropped
		case string, bool, int, int64, float64:
			cleaned[key] = v
		case []string:
			cleaned[key] = strings.Join(v, store.ListSeparator)
		default:
			cleaned[key] = fmt.Sprintf("%v", v)
		}
	}
	return cleaned
}
