package assets

import (
	"fmt"
	"strings"
)

// DefaultTemplateName is the name of the built-in template.
const DefaultTemplateName = "default"

// Placeholder marks where the markup is substituted into a template.
const Placeholder = "__DATA__"

// TemplateLoader defines the contract for loading LaTeX templates.
type TemplateLoader interface {
	// LoadTemplate loads a template by name (without .tex extension).
	// Returns ErrTemplateNotFound if the template doesn't exist.
	// Returns ErrInvalidAssetName if the name contains invalid characters.
	LoadTemplate(name string) (string, error)
}

// Fill substitutes body for the placeholder in tmpl.
// Every occurrence is replaced; a template without one is rejected.
func Fill(tmpl, body string) (string, error) {
	if !strings.Contains(tmpl, Placeholder) {
		return "", fmt.Errorf("%w: %s", ErrMissingPlaceholder, Placeholder)
	}
	return strings.ReplaceAll(tmpl, Placeholder, body), nil
}
