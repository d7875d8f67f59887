package document

import (
	"fmt"

	"github.com/solidb/solidb/pkg/value"
)

// FieldType is the subset of JSON Schema "type" values SoliDB enforces.
type FieldType string

const (
	FieldAny     FieldType = ""
	FieldString  FieldType = "string"
	FieldNumber  FieldType = "number"
	FieldBool    FieldType = "boolean"
	FieldArray   FieldType = "array"
	FieldObject  FieldType = "object"
)

// FieldRule describes one required or typed field in a Schema.
type FieldRule struct {
	Name     string
	Type     FieldType
	Required bool
}

// Schema is SoliDB's optional per-collection document validator (spec
// §1: schema enforcement is out of scope beyond this). It checks
// required-field presence and top-level field types; it does not
// support nested schemas, enums, or pattern constraints.
type Schema struct {
	Fields []FieldRule
}

// Validate checks doc against every field rule.
func (s *Schema) Validate(doc value.Value) error {
	if doc.Kind() != value.KindObject {
		return fmt.Errorf("document is not an object")
	}
	for _, rule := range s.Fields {
		f, ok := doc.Field(rule.Name)
		if !ok {
			if rule.Required {
				return fmt.Errorf("missing required field %q", rule.Name)
			}
			continue
		}
		if rule.Type == FieldAny {
			continue
		}
		if !matchesType(f, rule.Type) {
			return fmt.Errorf("field %q expected type %s, got %v", rule.Name, rule.Type, f.Kind())
		}
	}
	return nil
}

func matchesType(v value.Value, t FieldType) bool {
	switch t {
	case FieldString:
		return v.Kind() == value.KindString
	case FieldNumber:
		return v.IsNumber()
	case FieldBool:
		return v.Kind() == value.KindBool
	case FieldArray:
		return v.Kind() == value.KindArray
	case FieldObject:
		return v.Kind() == value.KindObject
	default:
		return true
	}
}
