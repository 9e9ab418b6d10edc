// ABOUTME: Per-table schema with typed fields, generated ids, defaults and open/closed modes
// ABOUTME: Validation failures are reported as *ValidationError

package docstore

import (
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
)

// ErrValidation matches every *ValidationError.
var ErrValidation = errors.New("validation failed")

// ValidationError describes a schema violation on write.
type ValidationError struct {
	Table  string
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validating %s: %s", e.Table, e.Reason)
	}
	return fmt.Sprintf("validating %s.%s: %s", e.Table, e.Field, e.Reason)
}

// Is reports whether target is ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// FieldType is the JSON type a field must hold.
type FieldType string

const (
	TypeString     FieldType = "string"
	TypeNumber     FieldType = "number"
	TypeBool       FieldType = "bool"
	TypeStringList FieldType = "string_list"
	TypeAny        FieldType = "any"
)

// Field describes a single schema field.
type Field struct {
	Type     FieldType
	Required bool

	// Generate fills the field on Create when the caller left it out.
	Generate func() string

	// Default supplies a value when the field is absent, on write and on read.
	Default func() any
}

// IDField is a string field filled with a random UUID on create.
func IDField() Field {
	return Field{Type: TypeString, Required: true, Generate: uuid.NewString}
}

// Schema is an immutable set of field rules.
type Schema struct {
	fields map[string]Field
	open   bool
}

// NewSchema returns a closed schema with the given fields.
func NewSchema(fields map[string]Field) *Schema {
	s := &Schema{fields: make(map[string]Field, len(fields))}
	for name, f := range fields {
		s.fields[name] = f
	}
	return s
}

// AllowUnknown returns a copy of the schema that passes unknown fields through.
func (s *Schema) AllowUnknown() *Schema {
	out := s.copy()
	out.open = true
	return out
}

// Keys returns a copy of the schema with fields added or replaced.
func (s *Schema) Keys(fields map[string]Field) *Schema {
	out := s.copy()
	for name, f := range fields {
		out.fields[name] = f
	}
	return out
}

// Field returns the declaration for name.
func (s *Schema) Field(name string) (Field, bool) {
	f, ok := s.fields[name]
	return f, ok
}

// Open reports whether unknown fields are allowed.
func (s *Schema) Open() bool {
	return s.open
}

func (s *Schema) copy() *Schema {
	out := NewSchema(s.fields)
	out.open = s.open
	return out
}

func (s *Schema) generate(item Item) {
	for name, f := range s.fields {
		if f.Generate == nil {
			continue
		}
		if _, ok := item[name]; !ok {
			item[name] = f.Generate()
		}
	}
}

func (s *Schema) applyDefaults(item Item) {
	for name, f := range s.fields {
		if f.Default == nil {
			continue
		}
		if _, ok := item[name]; !ok {
			item[name] = f.Default()
		}
	}
}

// Validate checks a normalized item against the schema.
func (s *Schema) Validate(table string, item Item) error {
	names := make([]string, 0, len(s.fields))
	for name := range s.fields {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		f := s.fields[name]
		v, ok := item[name]
		if !ok {
			if f.Required {
				return &ValidationError{Table: table, Field: name, Reason: "is required"}
			}
			continue
		}
		if err := checkType(f.Type, v); err != "" {
			return &ValidationError{Table: table, Field: name, Reason: err}
		}
	}

	if !s.open {
		for name := range item {
			if _, ok := s.fields[name]; !ok {
				return &ValidationError{Table: table, Field: name, Reason: "is not allowed"}
			}
		}
	}
	return nil
}

func checkType(t FieldType, v any) string {
	if t == TypeAny {
		return ""
	}
	if v == nil {
		return "must not be null"
	}
	switch t {
	case TypeString:
		s, ok := v.(string)
		if !ok {
			return "must be a string"
		}
		if s == "" {
			return "must not be empty"
		}
	case TypeNumber:
		switch v.(type) {
		case int64, float64:
		default:
			return "must be a number"
		}
	case TypeBool:
		if _, ok := v.(bool); !ok {
			return "must be a boolean"
		}
	case TypeStringList:
		list, ok := v.([]any)
		if !ok {
			return "must be a list of strings"
		}
		for _, e := range list {
			if _, ok := e.(string); !ok {
				return "must be a list of strings"
			}
		}
	}
	return ""
}
