package internal

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/lychee-technology/appforge"
	"gopkg.in/yaml.v3"
)

//go:embed patterns/*
var builtinPatterns embed.FS

const libraryManifest = "library.yaml"

type patternManifest struct {
	Patterns []patternEntry `yaml:"patterns"`
}

type patternEntry struct {
	ID           string              `yaml:"id"`
	Name         string              `yaml:"name"`
	Category     string              `yaml:"category"`
	Description  string              `yaml:"description"`
	Inputs       []patternInputEntry `yaml:"inputs"`
	Dependencies []string            `yaml:"dependencies"`
}

type patternInputEntry struct {
	Name        string `yaml:"name"`
	Type        string `yaml:"type"`
	Required    bool   `yaml:"required"`
	Description string `yaml:"description"`
}

// PatternLibrary is the immutable, process-wide set of patterns. Templates
// are parsed and input schemas resolved once at load time.
type PatternLibrary struct {
	patterns map[string]*appforge.Pattern
	compiled map[string]*compiledPattern
	schemas  map[string]*jsonschema.Resolved
	ids      []string
}

var _ appforge.PatternRegistry = (*PatternLibrary)(nil)

var (
	defaultLibraryOnce sync.Once
	defaultLibrary     *PatternLibrary
	defaultLibraryErr  error
)

// DefaultPatternLibrary returns the built-in library, loading it on first use.
func DefaultPatternLibrary() (*PatternLibrary, error) {
	defaultLibraryOnce.Do(func() {
		sub, err := fs.Sub(builtinPatterns, "patterns")
		if err != nil {
			defaultLibraryErr = err
			return
		}
		defaultLibrary, defaultLibraryErr = LoadPatternLibrary(sub)
	})
	return defaultLibrary, defaultLibraryErr
}

// LoadPatternLibrary reads library.yaml and the template files next to it.
func LoadPatternLibrary(fsys fs.FS) (*PatternLibrary, error) {
	data, err := fs.ReadFile(fsys, libraryManifest)
	if err != nil {
		return nil, fmt.Errorf("failed to read pattern manifest: %w", err)
	}

	var manifest patternManifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("failed to parse pattern manifest: %w", err)
	}

	lib := &PatternLibrary{
		patterns: make(map[string]*appforge.Pattern, len(manifest.Patterns)),
		compiled: make(map[string]*compiledPattern, len(manifest.Patterns)),
		schemas:  make(map[string]*jsonschema.Resolved, len(manifest.Patterns)),
	}

	for _, entry := range manifest.Patterns {
		if entry.ID == "" {
			return nil, errors.New("pattern manifest contains an entry without id")
		}
		if _, dup := lib.patterns[entry.ID]; dup {
			return nil, fmt.Errorf("duplicate pattern id %q", entry.ID)
		}

		p, err := buildPattern(fsys, entry)
		if err != nil {
			return nil, err
		}
		compiled, err := compilePattern(p)
		if err != nil {
			return nil, err
		}
		schema, err := inputSchemaFor(p)
		if err != nil {
			return nil, err
		}

		lib.patterns[p.ID] = p
		lib.compiled[p.ID] = compiled
		lib.schemas[p.ID] = schema
		lib.ids = append(lib.ids, p.ID)
	}
	sort.Strings(lib.ids)

	return lib, nil
}

func buildPattern(fsys fs.FS, entry patternEntry) (*appforge.Pattern, error) {
	category := appforge.PatternCategory(entry.Category)
	switch category {
	case appforge.CategoryLayout, appforge.CategoryEntity, appforge.CategoryInput, appforge.CategoryView, appforge.CategoryUtility:
	default:
		return nil, fmt.Errorf("pattern %q has unknown category %q", entry.ID, entry.Category)
	}

	p := &appforge.Pattern{
		ID:           entry.ID,
		Name:         entry.Name,
		Category:     category,
		Description:  entry.Description,
		Inputs:       make([]appforge.PatternInput, 0, len(entry.Inputs)),
		Dependencies: append([]string{}, entry.Dependencies...),
	}
	for _, in := range entry.Inputs {
		p.Inputs = append(p.Inputs, appforge.PatternInput{
			Name:        in.Name,
			Type:        in.Type,
			Required:    in.Required,
			Description: in.Description,
		})
	}

	var err error
	if p.Template.HTML, err = readOptional(fsys, entry.ID+".html"); err != nil {
		return nil, err
	}
	if p.Template.CSS, err = readOptional(fsys, entry.ID+".css"); err != nil {
		return nil, err
	}
	if p.Template.JS, err = readOptional(fsys, entry.ID+".js"); err != nil {
		return nil, err
	}
	return p, nil
}

func readOptional(fsys fs.FS, name string) (string, error) {
	data, err := fs.ReadFile(fsys, path.Clean(name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("failed to read template %s: %w", name, err)
	}
	return string(data), nil
}

// GetPattern returns the pattern with the given id. Callers must not modify it.
func (l *PatternLibrary) GetPattern(id string) (*appforge.Pattern, bool) {
	p, ok := l.patterns[id]
	return p, ok
}

// ListPatterns returns pattern ids in sorted order.
func (l *PatternLibrary) ListPatterns() []string {
	return append([]string(nil), l.ids...)
}

// Patterns returns every pattern ordered by id.
func (l *PatternLibrary) Patterns() []*appforge.Pattern {
	out := make([]*appforge.Pattern, 0, len(l.ids))
	for _, id := range l.ids {
		out = append(out, l.patterns[id])
	}
	return out
}

func (l *PatternLibrary) compiledPattern(id string) (*compiledPattern, bool) {
	c, ok := l.compiled[id]
	return c, ok
}

// CheckConfig validates a reference config against the pattern's declared inputs.
func (l *PatternLibrary) CheckConfig(id string, config map[string]any) error {
	schema, ok := l.schemas[id]
	if !ok {
		return appforge.NewPatternNotFoundError(id)
	}
	doc, err := toJSONValue(config)
	if err != nil {
		return fmt.Errorf("config for %s is not JSON serializable: %w", id, err)
	}
	if doc == nil {
		doc = map[string]any{}
	}
	return schema.Validate(doc)
}
