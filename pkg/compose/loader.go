package compose

import (
	"errors"
	"fmt"
	"io/fs"
)

// ErrTemplateNotFound is returned when neither the templated nor the
// plain variant of a component template exists.
var ErrTemplateNotFound = errors.New("template not found")

// Loader reads component templates from a filesystem. The templated
// variant (<name>.yaml.tpl) takes precedence over the plain variant
// (<name>.yaml).
type Loader struct {
	fsys fs.FS
}

// NewLoader creates a Loader over the given template filesystem. The
// filesystem root is the directory holding the component files.
func NewLoader(fsys fs.FS) *Loader {
	return &Loader{fsys: fsys}
}

// Load reads, renders, and parses the named component template.
// Rendering only happens for the .tpl variant; plain .yaml files are
// parsed as-is.
func (l *Loader) Load(component string, rc RenderContext) (*Document, error) {
	if data, err := fs.ReadFile(l.fsys, component+".yaml.tpl"); err == nil {
		rendered, err := Render(string(data), rc)
		if err != nil {
			return nil, fmt.Errorf("render template %s: %w", component, err)
		}
		doc, err := Parse([]byte(rendered))
		if err != nil {
			return nil, fmt.Errorf("template %s: %w", component, err)
		}
		return doc, nil
	}

	data, err := fs.ReadFile(l.fsys, component+".yaml")
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, component)
	}
	doc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("template %s: %w", component, err)
	}
	return doc, nil
}

// LoadAll loads every named component and merges the results in order.
func (l *Loader) LoadAll(components []string, rc RenderContext) (*Document, error) {
	if len(components) == 0 {
		return nil, ErrNoComponents
	}
	docs := make([]*Document, 0, len(components))
	for _, c := range components {
		doc, err := l.Load(c, rc)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return Merge(docs)
}
