package schema

import (
	"fmt"
	"sort"
)

// FieldSpec is the file form of a Field, as written in plugin manifests
type FieldSpec struct {
	Type        string   `json:"type" yaml:"type" toml:"type"`
	Required    bool     `json:"required,omitempty" yaml:"required,omitempty" toml:"required,omitempty"`
	Min         *float64 `json:"min,omitempty" yaml:"min,omitempty" toml:"min,omitempty"`
	Max         *float64 `json:"max,omitempty" yaml:"max,omitempty" toml:"max,omitempty"`
	Enum        []string `json:"enum,omitempty" yaml:"enum,omitempty" toml:"enum,omitempty"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty" toml:"description,omitempty"`
}

// FromSpec builds an Object schema from file-form field specs. An empty type means "any".
func FromSpec(specs map[string]FieldSpec, strict bool) (*Object, error) {
	names := make([]string, 0, len(specs))
	for n := range specs {
		names = append(names, n)
	}
	sort.Strings(names)

	fields := make(map[string]Field, len(specs))
	for _, name := range names {
		s := specs[name]
		typ := s.Type
		if typ == "" {
			typ = "any"
		}
		ty, err := ParseType(typ)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", name, err)
		}
		if s.Min != nil && s.Max != nil && *s.Min > *s.Max {
			return nil, fmt.Errorf("field %s: min %g exceeds max %g", name, *s.Min, *s.Max)
		}
		fields[name] = Field{
			Type:        ty,
			Required:    s.Required,
			Min:         s.Min,
			Max:         s.Max,
			Enum:        s.Enum,
			Description: s.Description,
		}
	}
	return &Object{Fields: fields, Strict: strict}, nil
}
