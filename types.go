package appforge

import "time"

// PropertyType is the data type of an entity property.
type PropertyType string

const (
	PropertyTypeString  PropertyType = "string"
	PropertyTypeNumber  PropertyType = "number"
	PropertyTypeBoolean PropertyType = "boolean"
	PropertyTypeDate    PropertyType = "date"
	PropertyTypeEnum    PropertyType = "enum"
)

// IsValid reports whether the property type is one of the known values.
func (t PropertyType) IsValid() bool {
	switch t {
	case PropertyTypeString, PropertyTypeNumber, PropertyTypeBoolean, PropertyTypeDate, PropertyTypeEnum:
		return true
	}
	return false
}

// RelationshipType is the cardinality of a relationship between entities.
type RelationshipType string

const (
	RelationshipOneToOne   RelationshipType = "one-to-one"
	RelationshipOneToMany  RelationshipType = "one-to-many"
	RelationshipManyToMany RelationshipType = "many-to-many"
)

func (t RelationshipType) IsValid() bool {
	switch t {
	case RelationshipOneToOne, RelationshipOneToMany, RelationshipManyToMany:
		return true
	}
	return false
}

// ViewType is the kind of screen a view renders.
type ViewType string

const (
	ViewTypeList      ViewType = "list"
	ViewTypeForm      ViewType = "form"
	ViewTypeDetail    ViewType = "detail"
	ViewTypeDashboard ViewType = "dashboard"
)

func (t ViewType) IsValid() bool {
	switch t {
	case ViewTypeList, ViewTypeForm, ViewTypeDetail, ViewTypeDashboard:
		return true
	}
	return false
}

// ActionTrigger is how an action gets started.
type ActionTrigger string

const (
	TriggerButton     ActionTrigger = "button"
	TriggerFormSubmit ActionTrigger = "form_submit"
	TriggerAuto       ActionTrigger = "auto"
)

func (t ActionTrigger) IsValid() bool {
	switch t {
	case TriggerButton, TriggerFormSubmit, TriggerAuto:
		return true
	}
	return false
}

// PatternCategory groups patterns in the library.
type PatternCategory string

const (
	CategoryLayout  PatternCategory = "layout"
	CategoryEntity  PatternCategory = "entity"
	CategoryInput   PatternCategory = "input"
	CategoryView    PatternCategory = "view"
	CategoryUtility PatternCategory = "utility"
)

// Specification is the structured description of an app produced from a conversation.
type Specification struct {
	Version  string   `json:"version"`
	Meta     SpecMeta `json:"meta"`
	Entities []Entity `json:"entities"`
	Views    []View   `json:"views"`
	Actions  []Action `json:"actions"`
	Patterns []string `json:"patterns"`
}

// SpecMeta holds descriptive metadata for a specification.
type SpecMeta struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	CreatedAt   string `json:"createdAt"`
}

// Entity returns the entity with the given id, or nil.
func (s *Specification) Entity(id string) *Entity {
	if s == nil || id == "" {
		return nil
	}
	for i := range s.Entities {
		if s.Entities[i].ID == id {
			return &s.Entities[i]
		}
	}
	return nil
}

// Entity is a data model in the generated app.
type Entity struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	Properties    []Property     `json:"properties"`
	Relationships []Relationship `json:"relationships"`
}

// UniqueProperties returns the properties with duplicate names removed.
// The first occurrence of a name wins.
func (e *Entity) UniqueProperties() []Property {
	if e == nil {
		return []Property{}
	}
	seen := make(map[string]struct{}, len(e.Properties))
	out := make([]Property, 0, len(e.Properties))
	for _, p := range e.Properties {
		if _, ok := seen[p.Name]; ok {
			continue
		}
		seen[p.Name] = struct{}{}
		out = append(out, p)
	}
	return out
}

// Property is a single field of an entity.
type Property struct {
	Name     string       `json:"name"`
	Type     PropertyType `json:"type"`
	Required bool         `json:"required"`
	Options  []string     `json:"options,omitempty"`
}

type Relationship struct {
	TargetEntity string           `json:"targetEntity"`
	Type         RelationshipType `json:"type"`
}

type View struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Type   ViewType `json:"type"`
	Entity string   `json:"entity,omitempty"`
}

// Action is a user-visible operation. Logic is free text describing intent.
type Action struct {
	ID      string        `json:"id"`
	Name    string        `json:"name"`
	Trigger ActionTrigger `json:"trigger"`
	Logic   string        `json:"logic"`
}

// PatternInput declares one config field a pattern reads.
type PatternInput struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Required    bool   `json:"required"`
	Description string `json:"description,omitempty"`
}

// PatternTemplate holds the three template bodies of a pattern. Any may be empty.
type PatternTemplate struct {
	HTML string `json:"html"`
	CSS  string `json:"css"`
	JS   string `json:"js"`
}

// Pattern is an entry of the closed pattern library.
type Pattern struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Category     PatternCategory `json:"category"`
	Description  string          `json:"description,omitempty"`
	Inputs       []PatternInput  `json:"inputs"`
	Template     PatternTemplate `json:"template"`
	Dependencies []string        `json:"dependencies"`
}

// PatternReference asks the assembler to render a pattern for a target.
type PatternReference struct {
	PatternID string         `json:"patternId"`
	TargetID  string         `json:"targetId"`
	Config    map[string]any `json:"config"`
}

// ValidationIssue is a single validator finding.
type ValidationIssue struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Path    string `json:"path,omitempty"`
}

type ValidationResult struct {
	Valid        bool              `json:"valid"`
	Errors       []ValidationIssue `json:"errors"`
	Warnings     []ValidationIssue `json:"warnings"`
	Completeness float64           `json:"completeness"`
}

// ErrorMessages returns up to limit error messages in order. A limit <= 0 returns all.
func (r ValidationResult) ErrorMessages(limit int) []string {
	n := len(r.Errors)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]string, 0, n)
	for _, e := range r.Errors[:n] {
		out = append(out, e.Message)
	}
	return out
}

// BuildManifest describes what went into a build.
type BuildManifest struct {
	SpecID          string    `json:"specId"`
	BuiltAt         time.Time `json:"builtAt"`
	PatternsUsed    []string  `json:"patternsUsed"`
	DeltasGenerated int       `json:"deltasGenerated"`
}

// BuildResult is the output of the assembler. HTML is the full document.
type BuildResult struct {
	Success    bool          `json:"success"`
	HTML       string        `json:"html"`
	CSS        string        `json:"css"`
	JavaScript string        `json:"javascript"`
	Manifest   BuildManifest `json:"manifest"`
	Errors     []string      `json:"errors,omitempty"`
	Warnings   []string      `json:"warnings,omitempty"`
}
