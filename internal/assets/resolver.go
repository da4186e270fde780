package assets

import (
	"errors"
	"slices"
)

// Resolver tries the operator's template directory first, then the
// embedded templates. Only ErrTemplateNotFound falls through; a broken
// custom template is reported rather than silently replaced.
type Resolver struct {
	custom   *FilesystemLoader // nil without render.templateDir
	embedded *EmbeddedLoader
}

var _ TemplateLoader = (*Resolver)(nil)

// NewResolver creates a Resolver. An empty dir means embedded templates only.
func NewResolver(dir string) (*Resolver, error) {
	r := &Resolver{embedded: NewEmbeddedLoader()}
	if dir == "" {
		return r, nil
	}
	custom, err := NewFilesystemLoader(dir)
	if err != nil {
		return nil, err
	}
	r.custom = custom
	return r, nil
}

// LoadTemplate implements TemplateLoader.
func (r *Resolver) LoadTemplate(name string) (string, error) {
	if r.custom != nil {
		content, err := r.custom.LoadTemplate(name)
		if !errors.Is(err, ErrTemplateNotFound) {
			return content, err
		}
	}
	return r.embedded.LoadTemplate(name)
}

// Names lists every resolvable template name, sorted and deduplicated.
func (r *Resolver) Names() []string {
	names := r.embedded.Names()
	if r.custom != nil {
		names = append(names, r.custom.Names()...)
	}
	slices.Sort(names)
	return slices.Compact(names)
}
