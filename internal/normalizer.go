package internal

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/lychee-technology/appforge"
	"go.uber.org/zap"
)

const (
	defaultSpecVersion = "1.0.0"
	defaultAppName     = "Untitled App"
)

var fencePattern = regexp.MustCompile("(?s)```[A-Za-z0-9_-]*[ \t]*\r?\n?(.*?)```")

// SpecNormalizer converts raw model output into a fully populated
// Specification. It tolerates missing and wrongly shaped fields.
type SpecNormalizer struct {
	now func() time.Time
}

// NewSpecNormalizer creates a normalizer. A nil clock uses time.Now.
func NewSpecNormalizer(now func() time.Time) *SpecNormalizer {
	if now == nil {
		now = time.Now
	}
	return &SpecNormalizer{now: now}
}

var _ appforge.SpecParser = (*SpecNormalizer)(nil)

// Parse strips markdown fences, decodes the JSON object and normalizes it.
// The returned notes list shape drift against the specification schema.
func (n *SpecNormalizer) Parse(raw string) (*appforge.Specification, []string, error) {
	body := strings.TrimSpace(raw)
	if body == "" {
		return nil, nil, appforge.NewForgeError(appforge.ErrorTypeParse, appforge.ErrCodeEmptyInput, "model response is empty")
	}

	doc, err := decodeSpecObject(body)
	if err != nil {
		return nil, nil, err
	}
	doc = unwrapSpecObject(doc)

	notes := CheckSpecificationShape(doc)
	if len(notes) > 0 {
		zap.S().Debugw("specification shape drift", "notes", notes)
	}

	return n.Normalize(doc), notes, nil
}

// decodeSpecObject finds and decodes the JSON object in body.
func decodeSpecObject(body string) (map[string]any, error) {
	candidates := make([]string, 0, 3)
	if m := fencePattern.FindStringSubmatch(body); m != nil {
		candidates = append(candidates, strings.TrimSpace(m[1]))
	}
	candidates = append(candidates, body)
	if start, end := strings.Index(body, "{"), strings.LastIndex(body, "}"); start >= 0 && end > start {
		candidates = append(candidates, body[start:end+1])
	}

	var lastErr error
	for _, c := range candidates {
		var doc any
		if err := json.Unmarshal([]byte(c), &doc); err != nil {
			lastErr = err
			continue
		}
		obj, ok := doc.(map[string]any)
		if !ok {
			lastErr = fmt.Errorf("expected a JSON object, got %T", doc)
			continue
		}
		return obj, nil
	}
	return nil, appforge.NewParseError("model response is not a JSON specification", lastErr)
}

// unwrapSpecObject handles responses shaped like {"specification": {...}}.
func unwrapSpecObject(doc map[string]any) map[string]any {
	if _, ok := doc["entities"]; ok {
		return doc
	}
	if _, ok := doc["meta"]; ok {
		return doc
	}
	for _, key := range []string{"specification", "spec"} {
		if inner, ok := doc[key].(map[string]any); ok {
			return inner
		}
	}
	return doc
}

// Normalize applies the default-on-absence policy to a decoded object.
func (n *SpecNormalizer) Normalize(doc map[string]any) *appforge.Specification {
	spec := &appforge.Specification{
		Version:  defaultSpecVersion,
		Entities: []appforge.Entity{},
		Views:    []appforge.View{},
		Actions:  []appforge.Action{},
		Patterns: []string{},
	}
	if doc == nil {
		spec.Meta = appforge.SpecMeta{Name: defaultAppName, CreatedAt: n.now().UTC().Format(time.RFC3339)}
		return spec
	}

	if v, ok := doc["version"].(string); ok && strings.TrimSpace(v) != "" {
		spec.Version = v
	}

	meta := asObject(doc["meta"])
	spec.Meta.Name = defaultAppName
	if name, ok := meta["name"].(string); ok {
		spec.Meta.Name = name
	}
	spec.Meta.Description = asString(meta["description"])
	spec.Meta.CreatedAt = asString(meta["createdAt"])
	if spec.Meta.CreatedAt == "" {
		spec.Meta.CreatedAt = n.now().UTC().Format(time.RFC3339)
	}

	entityIDs := NewSet[string]()
	for i, raw := range asArray(doc["entities"]) {
		obj, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		e := normalizeEntity(obj, i)
		if entityIDs.Contains(e.ID) {
			e.ID = uniqueID(entityIDs, fmt.Sprintf("%s_%d", e.ID, i))
		}
		entityIDs.Add(e.ID)
		spec.Entities = append(spec.Entities, e)
	}

	viewIDs := NewSet[string]()
	for i, raw := range asArray(doc["views"]) {
		obj, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		v := normalizeView(obj, i)
		if viewIDs.Contains(v.ID) {
			v.ID = uniqueID(viewIDs, fmt.Sprintf("%s_%d", v.ID, i))
		}
		viewIDs.Add(v.ID)
		spec.Views = append(spec.Views, v)
	}

	actionIDs := NewSet[string]()
	for i, raw := range asArray(doc["actions"]) {
		obj, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		a := normalizeAction(obj, i)
		if actionIDs.Contains(a.ID) {
			a.ID = uniqueID(actionIDs, fmt.Sprintf("%s_%d", a.ID, i))
		}
		actionIDs.Add(a.ID)
		spec.Actions = append(spec.Actions, a)
	}

	for _, raw := range asArray(doc["patterns"]) {
		if s, ok := raw.(string); ok && s != "" {
			spec.Patterns = append(spec.Patterns, s)
		}
	}

	return spec
}

func uniqueID(taken *Set[string], candidate string) string {
	id := candidate
	for i := 2; taken.Contains(id); i++ {
		id = fmt.Sprintf("%s_%d", candidate, i)
	}
	return id
}

func normalizeEntity(obj map[string]any, index int) appforge.Entity {
	e := appforge.Entity{
		ID:            asString(obj["id"]),
		Name:          asString(obj["name"]),
		Properties:    []appforge.Property{},
		Relationships: []appforge.Relationship{},
	}
	if e.ID == "" {
		e.ID = fmt.Sprintf("entity_%d", index)
	}

	for _, raw := range asArray(obj["properties"]) {
		switch p := raw.(type) {
		case string:
			if p != "" {
				e.Properties = append(e.Properties, appforge.Property{Name: p, Type: appforge.PropertyTypeString})
			}
		case map[string]any:
			e.Properties = append(e.Properties, normalizeProperty(p))
		}
	}

	for _, raw := range asArray(obj["relationships"]) {
		r, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		target := asString(r["targetEntity"])
		if target == "" {
			target = asString(r["target"])
		}
		e.Relationships = append(e.Relationships, appforge.Relationship{
			TargetEntity: target,
			Type:         normalizeRelationshipType(asString(r["type"])),
		})
	}
	return e
}

func normalizeProperty(obj map[string]any) appforge.Property {
	p := appforge.Property{
		Name:     asString(obj["name"]),
		Type:     normalizePropertyType(asString(obj["type"])),
		Required: asBool(obj["required"]),
	}
	if p.Type == appforge.PropertyTypeEnum {
		p.Options = []string{}
		for _, o := range asArray(obj["options"]) {
			switch v := o.(type) {
			case string:
				p.Options = append(p.Options, v)
			case float64, bool:
				p.Options = append(p.Options, fmt.Sprint(v))
			}
		}
	}
	return p
}

func normalizeView(obj map[string]any, index int) appforge.View {
	v := appforge.View{
		ID:     asString(obj["id"]),
		Name:   asString(obj["name"]),
		Type:   normalizeViewType(asString(obj["type"])),
		Entity: asString(obj["entity"]),
	}
	if v.ID == "" {
		v.ID = fmt.Sprintf("view_%d", index)
	}
	if v.Entity == "" {
		v.Entity = asString(obj["entityId"])
	}
	return v
}

func normalizeAction(obj map[string]any, index int) appforge.Action {
	a := appforge.Action{
		ID:    asString(obj["id"]),
		Name:  asString(obj["name"]),
		Logic: asString(obj["logic"]),
	}
	if a.ID == "" {
		a.ID = fmt.Sprintf("action_%d", index)
	}
	a.Trigger = normalizeTrigger(asString(obj["trigger"]))
	return a
}

func normalizePropertyType(raw string) appforge.PropertyType {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "string", "text", "textarea", "email", "url", "str":
		return appforge.PropertyTypeString
	case "number", "int", "integer", "float", "double", "decimal", "currency", "numeric":
		return appforge.PropertyTypeNumber
	case "boolean", "bool", "checkbox":
		return appforge.PropertyTypeBoolean
	case "date", "datetime", "date-time", "timestamp", "time":
		return appforge.PropertyTypeDate
	case "enum", "select", "choice", "options":
		return appforge.PropertyTypeEnum
	default:
		return appforge.PropertyTypeString
	}
}

func normalizeRelationshipType(raw string) appforge.RelationshipType {
	key := strings.ToLower(strings.TrimSpace(raw))
	key = strings.NewReplacer("_", "-", " ", "-").Replace(key)
	switch key {
	case "one-to-one", "1:1", "1-1":
		return appforge.RelationshipOneToOne
	case "many-to-many", "n:m", "m:n", "n-m":
		return appforge.RelationshipManyToMany
	default:
		return appforge.RelationshipOneToMany
	}
}

func normalizeViewType(raw string) appforge.ViewType {
	switch t := appforge.ViewType(strings.ToLower(strings.TrimSpace(raw))); t {
	case appforge.ViewTypeList, appforge.ViewTypeForm, appforge.ViewTypeDetail, appforge.ViewTypeDashboard:
		return t
	default:
		return appforge.ViewTypeList
	}
}

// normalizeTrigger maps raw onto a trigger. Empty and unknown values are buttons.
func normalizeTrigger(raw string) appforge.ActionTrigger {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "form_submit", "form-submit", "submit", "formsubmit":
		return appforge.TriggerFormSubmit
	case "auto", "automatic", "load", "onload":
		return appforge.TriggerAuto
	default:
		return appforge.TriggerButton
	}
}
