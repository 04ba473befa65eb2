package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// LoadFigures reads a JSON array of figure names from path. Entries are
// trimmed and blanks dropped; order is preserved because compatibility
// derivation scans figures in priority order.
func LoadFigures(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read figures file %s: %w", path, err)
	}

	var raw []string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse figures file %s: %w", path, err)
	}

	figures := make([]string, 0, len(raw))
	for _, f := range raw {
		if f = strings.TrimSpace(f); f != "" {
			figures = append(figures, f)
		}
	}
	if len(figures) == 0 {
		return nil, fmt.Errorf("figures file %s contains no figure names", path)
	}
	return figures, nil
}
