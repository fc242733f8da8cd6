package manifest

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// Rendering
// =============================================================================

// Render produces the YAML text for a single document.
func Render(doc Document) (string, error) {
	out, err := yaml.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("render %s/%s: %w", doc.Kind, doc.Metadata.Name, err)
	}
	return string(out), nil
}

// Render produces a multi-document YAML stream in the set's order.
func (s Set) Render() (string, error) {
	parts := make([]string, 0, len(s))
	for _, doc := range s {
		text, err := Render(doc)
		if err != nil {
			return "", err
		}
		parts = append(parts, text)
	}
	return strings.Join(parts, "---\n"), nil
}
