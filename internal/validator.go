package internal

import (
	"fmt"
	"math"
	"strings"

	"github.com/lychee-technology/appforge"
)

// Completeness weights.
const (
	weightName        = 0.1
	weightDescription = 0.05
	weightEntities    = 0.15
	weightViews       = 0.1
	weightActions     = 0.1

	weightEntityQuality = 0.3
	weightViewQuality   = 0.1
	weightPatternHints  = 0.1

	patternHintTarget = 5.0
)

// ValidateSpec checks a specification for build readiness. It is total:
// a nil spec yields a NO_SPEC error rather than a panic.
func ValidateSpec(spec *appforge.Specification) appforge.ValidationResult {
	result := appforge.ValidationResult{
		Errors:   []appforge.ValidationIssue{},
		Warnings: []appforge.ValidationIssue{},
	}
	if spec == nil {
		result.Errors = append(result.Errors, appforge.ValidationIssue{
			Code:    appforge.ErrCodeNoSpec,
			Message: "No specification has been created yet",
		})
		return result
	}

	addErr := func(code, path, msg string) {
		result.Errors = append(result.Errors, appforge.ValidationIssue{Code: code, Message: msg, Path: path})
	}
	addWarn := func(code, path, msg string) {
		result.Warnings = append(result.Warnings, appforge.ValidationIssue{Code: code, Message: msg, Path: path})
	}

	if isBlank(spec.Meta.Name) {
		addErr(appforge.ErrCodeMissingName, "meta.name", "App name is required")
	}
	if isBlank(spec.Meta.Description) {
		addWarn(appforge.ErrCodeMissingDescription, "meta.description", "Adding a description helps generate a better app")
	}
	if len(spec.Entities) == 0 {
		addErr(appforge.ErrCodeNoEntities, "entities", "At least one entity is required")
	}
	if len(spec.Views) == 0 {
		addErr(appforge.ErrCodeNoViews, "views", "At least one view is required")
	}

	entityIDs := NewSet[string]()
	for _, e := range spec.Entities {
		entityIDs.Add(e.ID)
	}

	seenEntities := NewSet[string]()
	for i, e := range spec.Entities {
		path := fmt.Sprintf("entities[%d]", i)
		if seenEntities.Contains(e.ID) {
			addErr(appforge.ErrCodeDuplicateEntityID, path+".id", fmt.Sprintf("Entity id %q is used more than once", e.ID))
		}
		seenEntities.Add(e.ID)

		if isBlank(e.Name) {
			addErr(appforge.ErrCodeMissingEntityName, path+".name", fmt.Sprintf("Entity %q needs a name", e.ID))
		}
		if len(e.Properties) == 0 {
			addErr(appforge.ErrCodeNoProperties, path+".properties", fmt.Sprintf("Entity %q needs at least one property", displayName(e.Name, e.ID)))
		}

		seenProps := NewSet[string]()
		for j, p := range e.Properties {
			if seenProps.Contains(p.Name) {
				addWarn(appforge.ErrCodeDuplicateProperty, fmt.Sprintf("%s.properties[%d]", path, j),
					fmt.Sprintf("Property %q appears more than once in %q; the first definition is used", p.Name, displayName(e.Name, e.ID)))
				continue
			}
			seenProps.Add(p.Name)
		}

		for j, r := range e.Relationships {
			if !entityIDs.Contains(r.TargetEntity) {
				addWarn(appforge.ErrCodeInvalidRelationship, fmt.Sprintf("%s.relationships[%d]", path, j),
					fmt.Sprintf("Relationship from %q points to unknown entity %q", displayName(e.Name, e.ID), r.TargetEntity))
			}
		}
	}

	for i, v := range spec.Views {
		path := fmt.Sprintf("views[%d]", i)
		if isBlank(v.Name) {
			addErr(appforge.ErrCodeMissingViewName, path+".name", fmt.Sprintf("View %q needs a name", v.ID))
		}
		if v.Entity != "" && !entityIDs.Contains(v.Entity) {
			addWarn(appforge.ErrCodeInvalidViewEntity, path+".entity",
				fmt.Sprintf("View %q references unknown entity %q", displayName(v.Name, v.ID), v.Entity))
		}
	}

	for i, a := range spec.Actions {
		path := fmt.Sprintf("actions[%d]", i)
		if isBlank(a.Name) {
			addErr(appforge.ErrCodeMissingActionName, path+".name", fmt.Sprintf("Action %q needs a name", a.ID))
		}
		if isBlank(string(a.Trigger)) {
			addErr(appforge.ErrCodeMissingTrigger, path+".trigger", fmt.Sprintf("Action %q needs a trigger", displayName(a.Name, a.ID)))
		}
	}

	if len(spec.Patterns) == 0 {
		addWarn(appforge.ErrCodeNoPatterns, "patterns", "No UI pattern hints were suggested")
	}

	result.Valid = len(result.Errors) == 0
	result.Completeness = CalculateCompleteness(spec)
	return result
}

// CalculateCompleteness scores how ready a specification is to build, in [0, 1].
// Terms are summed in a fixed order so the result is reproducible.
func CalculateCompleteness(spec *appforge.Specification) float64 {
	if spec == nil {
		return 0
	}

	score := 0.0
	if !isBlank(spec.Meta.Name) {
		score += weightName
	}
	if !isBlank(spec.Meta.Description) {
		score += weightDescription
	}
	if len(spec.Entities) > 0 {
		score += weightEntities
	}
	if len(spec.Views) > 0 {
		score += weightViews
	}
	if len(spec.Actions) > 0 {
		score += weightActions
	}

	if len(spec.Entities) > 0 {
		total := 0.0
		for _, e := range spec.Entities {
			q := 0.0
			if !isBlank(e.Name) {
				q += 0.3
			}
			if len(e.Properties) > 0 {
				q += 0.4
			}
			if len(e.Properties) >= 2 {
				q += 0.2
			}
			for _, p := range e.Properties {
				if p.Required {
					q += 0.1
					break
				}
			}
			total += q
		}
		score += total / float64(len(spec.Entities)) * weightEntityQuality
	}

	if len(spec.Views) > 0 {
		total := 0.0
		for _, v := range spec.Views {
			q := 0.0
			if !isBlank(v.Name) {
				q += 0.5
			}
			if v.Entity != "" {
				q += 0.5
			}
			total += q
		}
		score += total / float64(len(spec.Views)) * weightViewQuality
	}

	score += math.Min(float64(len(spec.Patterns))/patternHintTarget, 1) * weightPatternHints

	return math.Max(0, math.Min(1, score))
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

func displayName(name, id string) string {
	if !isBlank(name) {
		return name
	}
	return id
}
