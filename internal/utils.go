package internal

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// specNamespace scopes name-based spec ids.
var specNamespace = uuid.MustParse("6f1d5c0e-2b7a-4d8e-9c3f-a1b2c3d4e5f6")

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asBool(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(b))
		return err == nil && parsed
	case float64:
		return b != 0
	default:
		return false
	}
}

func asArray(v any) []any {
	a, _ := v.([]any)
	return a
}

func asObject(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

// toJSONValue converts v into plain JSON values (maps, slices, strings,
// float64, bool, nil) so templates see the same field names as the JSON form.
func toJSONValue(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// specIdentity returns a stable id derived from the canonical JSON of v.
func specIdentity(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return uuid.Nil.String()
	}
	return uuid.NewSHA1(specNamespace, data).String()
}

func sanitizeIdentifier(name string) string {
	if name == "" {
		return ""
	}
	parts := strings.Split(name, ".")
	clean := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.Trim(part, " \"")
		if trimmed == "" {
			continue
		}
		clean = append(clean, trimmed)
	}
	if len(clean) == 0 {
		clean = []string{name}
	}
	return pgx.Identifier(clean).Sanitize()
}
