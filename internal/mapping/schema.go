package mapping

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrInvalidSchema        = errors.New("mapping: invalid schema")
	ErrMissingRequiredField = errors.New("mapping: missing required field")
)

// Schema associates target fields with the source keys chosen for them.
// Only fields with a non-empty source key are meaningful; empty entries count as unset.
type Schema map[TargetField]string

// ParseSchema decodes the JSON object string persisted with an import template.
func ParseSchema(encoded string) (Schema, error) {
	trimmed := strings.TrimSpace(encoded)
	if trimmed == "" {
		return Schema{}, nil
	}
	var decoded map[string]string
	if decodeErr := json.Unmarshal([]byte(trimmed), &decoded); decodeErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSchema, decodeErr)
	}
	schema := make(Schema, len(decoded))
	for field, sourceKey := range decoded {
		if sourceKey == "" {
			continue
		}
		schema[TargetField(field)] = sourceKey
	}
	return schema, nil
}

// Encode serializes the resolved entries as a JSON object string.
func (schema Schema) Encode() (string, error) {
	resolved := make(map[string]string, len(schema))
	for field, sourceKey := range schema {
		if sourceKey == "" {
			continue
		}
		resolved[string(field)] = sourceKey
	}
	encoded, encodeErr := json.Marshal(resolved)
	if encodeErr != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidSchema, encodeErr)
	}
	return string(encoded), nil
}

// Clone copies the resolved entries into a new Schema.
func (schema Schema) Clone() Schema {
	cloned := make(Schema, len(schema))
	for field, sourceKey := range schema {
		if sourceKey == "" {
			continue
		}
		cloned[field] = sourceKey
	}
	return cloned
}

// Has reports whether field has a non-empty source key.
func (schema Schema) Has(field TargetField) bool {
	return schema[field] != ""
}

// Require returns ErrMissingRequiredField naming every listed field without a source key.
func (schema Schema) Require(fields ...TargetField) error {
	var missing []string
	for _, field := range fields {
		if !schema.Has(field) {
			missing = append(missing, string(field))
		}
	}
	if len(missing) == 0 {
		return nil
	}
	sort.Strings(missing)
	return fmt.Errorf("%w: %s", ErrMissingRequiredField, strings.Join(missing, ", "))
}
