// Package schema validates category data payloads against field schemas
// supplied by category configuration.
//
// The core never knows a category's fields at compile time. A Schema is a list
// of field definitions; each may carry a go-playground/validator tag string in
// Rules, which is applied to the decoded JSON value at runtime.
package schema

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/erazemk/shramba/internal/model"
)

// FieldType is the JSON type a field must have.
type FieldType string

// Field types.
const (
	TypeString  FieldType = "string"
	TypeNumber  FieldType = "number"
	TypeInteger FieldType = "integer"
	TypeBoolean FieldType = "boolean"
	TypeEnum    FieldType = "enum"
)

// Field describes one entry of a category payload.
type Field struct {
	Name     string    `json:"name"`
	Type     FieldType `json:"type"`
	Required bool      `json:"required,omitempty"`
	Rules    string    `json:"rules,omitempty"`
	Options  []string  `json:"options,omitempty"`
}

// Schema is the field list of one category.
type Schema struct {
	Fields       []Field `json:"fields"`
	AllowUnknown bool    `json:"allowUnknown,omitempty"`
}

// Validator checks a payload against a schema and returns every failing field.
type Validator interface {
	Validate(s Schema, payload json.RawMessage) []model.FieldError
}

// Parse decodes and checks a schema definition. An empty definition is an
// empty schema.
func Parse(raw []byte) (Schema, error) {
	var s Schema
	if len(strings.TrimSpace(string(raw))) == 0 {
		return s, nil
	}
	if err := json.Unmarshal(raw, &s); err != nil {
		return s, fmt.Errorf("%w: schema: %v", model.ErrValidation, err)
	}

	var fields []model.FieldError
	seen := make(map[string]bool)
	for i, f := range s.Fields {
		at := fmt.Sprintf("fields[%d]", i)
		switch {
		case f.Name == "":
			fields = append(fields, model.FieldError{Field: at + ".name", Message: "is required"})
		case seen[f.Name]:
			fields = append(fields, model.FieldError{Field: at + ".name", Message: fmt.Sprintf("duplicate field %q", f.Name)})
		}
		seen[f.Name] = true

		switch f.Type {
		case TypeString, TypeNumber, TypeInteger, TypeBoolean:
		case TypeEnum:
			if len(f.Options) == 0 {
				fields = append(fields, model.FieldError{Field: at + ".options", Message: "enum fields need options"})
			}
		default:
			fields = append(fields, model.FieldError{Field: at + ".type", Message: fmt.Sprintf("unknown type %q", f.Type)})
		}

		if f.Rules != "" {
			if err := checkRules(f.Rules, f.Type); err != nil {
				fields = append(fields, model.FieldError{Field: at + ".rules", Message: err.Error()})
			}
		}
	}
	if err := model.NewValidationError(fields); err != nil {
		return s, err
	}
	return s, nil
}

// MustParse is Parse for schemas defined in code.
func MustParse(raw string) Schema {
	s, err := Parse([]byte(raw))
	if err != nil {
		panic(err)
	}
	return s
}

// FieldValidator is the default Validator.
type FieldValidator struct{}

// NewValidator returns the default Validator.
func NewValidator() *FieldValidator {
	return &FieldValidator{}
}

// Validate checks payload against s. A missing or null payload is an empty object.
func (FieldValidator) Validate(s Schema, payload json.RawMessage) []model.FieldError {
	data := map[string]any{}
	if trimmed := strings.TrimSpace(string(payload)); trimmed != "" && trimmed != "null" {
		if err := json.Unmarshal(payload, &data); err != nil {
			return []model.FieldError{{Field: "categoryData", Message: "must be a JSON object"}}
		}
	}

	var out []model.FieldError
	defined := make(map[string]bool, len(s.Fields))
	for _, f := range s.Fields {
		defined[f.Name] = true
		value, present := data[f.Name]
		if !present || value == nil {
			if f.Required {
				out = append(out, model.FieldError{Field: f.Name, Message: "is required"})
			}
			continue
		}

		if msg := checkType(f, value); msg != "" {
			out = append(out, model.FieldError{Field: f.Name, Message: msg})
			continue
		}

		if f.Rules != "" {
			for _, msg := range checkValue(value, f.Rules) {
				out = append(out, model.FieldError{Field: f.Name, Message: msg})
			}
		}
	}

	if !s.AllowUnknown {
		var unknown []string
		for name := range data {
			if !defined[name] {
				unknown = append(unknown, name)
			}
		}
		sort.Strings(unknown)
		for _, name := range unknown {
			out = append(out, model.FieldError{Field: name, Message: "is not defined for this category"})
		}
	}
	return out
}

func checkType(f Field, value any) string {
	switch f.Type {
	case TypeString:
		if _, ok := value.(string); !ok {
			return "must be a string"
		}
	case TypeNumber:
		if _, ok := value.(float64); !ok {
			return "must be a number"
		}
	case TypeInteger:
		n, ok := value.(float64)
		if !ok || n != math.Trunc(n) {
			return "must be an integer"
		}
	case TypeBoolean:
		if _, ok := value.(bool); !ok {
			return "must be true or false"
		}
	case TypeEnum:
		str, ok := value.(string)
		if !ok {
			return "must be one of " + strings.Join(f.Options, ", ")
		}
		for _, opt := range f.Options {
			if str == opt {
				return ""
			}
		}
		return "must be one of " + strings.Join(f.Options, ", ")
	}
	return ""
}
