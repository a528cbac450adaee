package internal

import (
	"github.com/lychee-technology/appforge"
)

// Target ids of the structural references.
const (
	TargetGlobal  = "global"
	TargetRoot    = "root"
	TargetMainNav = "main-nav"
)

// RouterOptions carries build settings the router threads into reference configs.
type RouterOptions struct {
	Theme            string
	StorageKeyPrefix string
	ShellPatternID   string
}

// PatternRouter maps a specification onto pattern references.
type PatternRouter struct {
	opts RouterOptions
}

func NewPatternRouter(opts RouterOptions) *PatternRouter {
	if opts.Theme == "" {
		opts.Theme = "light"
	}
	if opts.ShellPatternID == "" {
		opts.ShellPatternID = "app-shell"
	}
	return &PatternRouter{opts: opts}
}

// MatchPatterns returns the references that render spec. The list is not in
// render order; the assembler sorts it. Actions produce no references because
// app-core wires them.
func (r *PatternRouter) MatchPatterns(spec *appforge.Specification) []appforge.PatternReference {
	if spec == nil {
		return []appforge.PatternReference{}
	}

	refs := make([]appforge.PatternReference, 0, 6+len(spec.Entities)+len(spec.Views)*2)

	refs = append(refs,
		appforge.PatternReference{
			PatternID: "style-base",
			TargetID:  TargetGlobal,
			Config:    map[string]any{"theme": r.opts.Theme},
		},
		appforge.PatternReference{
			PatternID: "app-core",
			TargetID:  TargetGlobal,
			Config: map[string]any{
				"storageKey": r.storageKey(spec),
				"appName":    spec.Meta.Name,
			},
		},
		appforge.PatternReference{PatternID: "toast", TargetID: TargetGlobal, Config: map[string]any{}},
		appforge.PatternReference{PatternID: "modal", TargetID: TargetGlobal, Config: map[string]any{}},
	)

	navItems := make([]map[string]any, 0, len(spec.Views))
	for _, v := range spec.Views {
		navItems = append(navItems, map[string]any{"id": v.ID, "name": v.Name, "type": string(v.Type)})
	}
	defaultView := ""
	if len(spec.Views) > 0 {
		defaultView = spec.Views[0].ID
	}

	refs = append(refs,
		appforge.PatternReference{
			PatternID: r.opts.ShellPatternID,
			TargetID:  TargetRoot,
			Config: map[string]any{
				"title":       spec.Meta.Name,
				"description": spec.Meta.Description,
			},
		},
		appforge.PatternReference{
			PatternID: "navigation",
			TargetID:  TargetMainNav,
			Config: map[string]any{
				"items":       navItems,
				"defaultView": defaultView,
			},
		},
	)

	for i := range spec.Entities {
		e := &spec.Entities[i]
		refs = append(refs, appforge.PatternReference{
			PatternID: "entity-card",
			TargetID:  e.ID,
			Config: map[string]any{
				"entityId":   e.ID,
				"entityName": e.Name,
				"properties": e.UniqueProperties(),
			},
		})
	}

	for _, v := range spec.Views {
		entity := spec.Entity(v.Entity)
		switch v.Type {
		case appforge.ViewTypeForm:
			refs = append(refs, viewReference("view-form", v, entity))
			if entity == nil {
				continue
			}
			for _, p := range entity.UniqueProperties() {
				fieldID := v.ID + "." + p.Name
				refs = append(refs, appforge.PatternReference{
					PatternID: inputPatternFor(p.Type),
					TargetID:  fieldID,
					Config: map[string]any{
						"viewId":   v.ID,
						"entityId": entity.ID,
						"property": p,
						"fieldId":  "field-" + kebabCase(v.ID) + "-" + kebabCase(p.Name),
					},
				})
			}
		case appforge.ViewTypeDetail:
			refs = append(refs, viewReference("view-detail", v, entity))
		default:
			// list, dashboard and anything unrecognized
			refs = append(refs, viewReference("view-list", v, entity))
		}
	}

	return refs
}

func (r *PatternRouter) storageKey(spec *appforge.Specification) string {
	name := kebabCase(spec.Meta.Name)
	if name == "" {
		name = "app"
	}
	return r.opts.StorageKeyPrefix + name
}

// viewReference binds a view to its entity. A missing or dangling entity
// yields a null entity with no properties.
func viewReference(patternID string, v appforge.View, entity *appforge.Entity) appforge.PatternReference {
	config := map[string]any{
		"viewId":      v.ID,
		"viewName":    v.Name,
		"viewType":    string(v.Type),
		"entityId":    "",
		"entity":      nil,
		"properties":  []appforge.Property{},
		"isDashboard": v.Type == appforge.ViewTypeDashboard,
	}
	if entity != nil {
		config["entityId"] = entity.ID
		config["entity"] = entity
		config["properties"] = entity.UniqueProperties()
	}
	return appforge.PatternReference{PatternID: patternID, TargetID: v.ID, Config: config}
}

func inputPatternFor(t appforge.PropertyType) string {
	switch t {
	case appforge.PropertyTypeBoolean:
		return "input-checkbox"
	case appforge.PropertyTypeDate:
		return "input-date"
	case appforge.PropertyTypeEnum:
		return "input-select"
	default:
		return "input-text"
	}
}
