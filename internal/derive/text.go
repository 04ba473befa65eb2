package derive

import (
	"fmt"
	"strings"
)

// TextInput carries the raw product fields that feed embedding text
// generation.
type TextInput struct {
	Name        string
	Artists     []string
	ContentType string // raw vendor content-type string
	Description string
}

// Use-case sentences inferred from content-type keywords. These give the
// embedding model context a bare category token cannot.
const (
	propsSentence     = "This is a set of props suitable for decorating digital scenes, environments, and dioramas."
	furnitureSentence = "It includes furniture items for interior design and architectural visualization."
	characterSentence = "This is a character asset for digital art and animation."
	hairSentence      = "This is a hairstyle asset for 3D characters."
	wardrobeSentence  = "It contains clothing or wardrobe items for 3D figures."
)

// EmbeddingText builds the descriptive paragraph handed to the embedding
// model: a factual opener, attribution, categorization with inferred
// use-case sentences, and the human-written description last.
func EmbeddingText(in TextInput) string {
	name := in.Name
	if name == "" {
		name = "a 3D asset"
	}

	parts := []string{fmt.Sprintf("A 3D asset package titled '%s'.", name)}

	if len(in.Artists) > 0 {
		parts = append(parts, fmt.Sprintf("Created by the artist or studio: %s.", strings.Join(in.Artists, ", ")))
	}

	if in.ContentType != "" {
		clean := strings.ReplaceAll(in.ContentType, ",", ", ")
		parts = append(parts, fmt.Sprintf("It is categorized under: %s.", clean))

		lower := strings.ToLower(in.ContentType)
		if strings.Contains(lower, "props") || strings.Contains(lower, "decor") {
			parts = append(parts, propsSentence)
		}
		if strings.Contains(lower, "furniture") {
			parts = append(parts, furnitureSentence)
		}
		if strings.Contains(lower, "character") {
			parts = append(parts, characterSentence)
		}
		if strings.Contains(lower, "hair") {
			parts = append(parts, hairSentence)
		}
		if strings.Contains(lower, "wardrobe") || strings.Contains(lower, "clothes") {
			parts = append(parts, wardrobeSentence)
		}
	}

	if desc := strings.TrimSpace(in.Description); desc != "" {
		parts = append(parts, "Product Description: "+desc)
	}

	return strings.Join(parts, " ")
}
