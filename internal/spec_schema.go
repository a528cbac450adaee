package internal

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/lychee-technology/appforge"
)

// specificationSchema describes the shape the model is asked to produce.
// Normalization tolerates any deviation; the schema only reports drift.
const specificationSchema = `{
  "type": "object",
  "required": ["meta", "entities", "views"],
  "properties": {
    "version": {"type": "string"},
    "meta": {
      "type": "object",
      "required": ["name"],
      "properties": {
        "name": {"type": "string"},
        "description": {"type": "string"},
        "createdAt": {"type": "string"}
      }
    },
    "entities": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "name", "properties"],
        "properties": {
          "id": {"type": "string"},
          "name": {"type": "string"},
          "properties": {
            "type": "array",
            "items": {
              "type": "object",
              "required": ["name", "type"],
              "properties": {
                "name": {"type": "string"},
                "type": {"enum": ["string", "number", "boolean", "date", "enum"]},
                "required": {"type": "boolean"},
                "options": {"type": "array", "items": {"type": "string"}}
              }
            }
          },
          "relationships": {
            "type": "array",
            "items": {
              "type": "object",
              "required": ["targetEntity", "type"],
              "properties": {
                "targetEntity": {"type": "string"},
                "type": {"enum": ["one-to-one", "one-to-many", "many-to-many"]}
              }
            }
          }
        }
      }
    },
    "views": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "name", "type"],
        "properties": {
          "id": {"type": "string"},
          "name": {"type": "string"},
          "type": {"enum": ["list", "form", "detail", "dashboard"]},
          "entity": {"type": "string"}
        }
      }
    },
    "actions": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "name", "trigger"],
        "properties": {
          "id": {"type": "string"},
          "name": {"type": "string"},
          "trigger": {"enum": ["button", "form_submit", "auto"]},
          "logic": {"type": "string"}
        }
      }
    },
    "patterns": {"type": "array", "items": {"type": "string"}}
  }
}`

var (
	specSchemaOnce     sync.Once
	specSchemaResolved *jsonschema.Resolved
	specSchemaErr      error
)

func resolvedSpecSchema() (*jsonschema.Resolved, error) {
	specSchemaOnce.Do(func() {
		var schema jsonschema.Schema
		if err := json.Unmarshal([]byte(specificationSchema), &schema); err != nil {
			specSchemaErr = fmt.Errorf("failed to unmarshal specification schema: %w", err)
			return
		}
		specSchemaResolved, specSchemaErr = schema.Resolve(&jsonschema.ResolveOptions{})
	})
	return specSchemaResolved, specSchemaErr
}

// CheckSpecificationShape validates a decoded model response against the
// specification schema and returns human readable drift notes. It never fails
// the caller; an unusable schema yields no notes.
func CheckSpecificationShape(doc any) []string {
	resolved, err := resolvedSpecSchema()
	if err != nil {
		return nil
	}
	if err := resolved.Validate(doc); err != nil {
		return []string{strings.TrimSpace(err.Error())}
	}
	return nil
}

// inputSchemaFor builds a JSON schema for a pattern's declared inputs.
// Unknown input types are left unconstrained.
func inputSchemaFor(p *appforge.Pattern) (*jsonschema.Resolved, error) {
	schema := &jsonschema.Schema{
		Type:       "object",
		Properties: make(map[string]*jsonschema.Schema, len(p.Inputs)),
	}
	for _, in := range p.Inputs {
		prop := &jsonschema.Schema{Description: in.Description}
		switch in.Type {
		case "string", "boolean", "number", "array", "object":
			// null stands in for an unresolved entity
			prop.Types = []string{in.Type, "null"}
		}
		schema.Properties[in.Name] = prop
		if in.Required {
			schema.Required = append(schema.Required, in.Name)
		}
	}
	resolved, err := schema.Resolve(&jsonschema.ResolveOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to resolve input schema for %s: %w", p.ID, err)
	}
	return resolved, nil
}
