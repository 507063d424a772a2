package schema

import (
	"regexp"

	"github.com/m-mizutani/goerr/v2"
)

// Kind is the tag of a schema variant. A Schema is a tree of tagged
// variants walked by the output validator.
type Kind string

const (
	KindString  Kind = "string"
	KindNumber  Kind = "number"
	KindInteger Kind = "integer"
	KindBoolean Kind = "boolean"
	KindObject  Kind = "object"
	KindArray   Kind = "array"
	KindEnum    Kind = "enum"
)

// IsValid checks if the Kind is one of the known variants
func (k Kind) IsValid() bool {
	switch k {
	case KindString, KindNumber, KindInteger, KindBoolean, KindObject, KindArray, KindEnum:
		return true
	default:
		return false
	}
}

// Schema describes the expected shape of a structured completion result.
// Only the fields relevant to the variant's Kind are meaningful:
// Properties/Required for objects, Items for arrays, Pattern for strings,
// Values for enums.
type Schema struct {
	Kind        Kind               `json:"kind" yaml:"kind"`
	Description string             `json:"description,omitempty" yaml:"description,omitempty"`
	Properties  map[string]*Schema `json:"properties,omitempty" yaml:"properties,omitempty"`
	Required    []string           `json:"required,omitempty" yaml:"required,omitempty"`
	Items       *Schema            `json:"items,omitempty" yaml:"items,omitempty"`
	Pattern     string             `json:"pattern,omitempty" yaml:"pattern,omitempty"`
	Values      []string           `json:"values,omitempty" yaml:"values,omitempty"`
}

// Validate checks the structural sanity of the schema definition itself
func (s *Schema) Validate() error {
	if s == nil {
		return goerr.New("schema cannot be nil")
	}

	if !s.Kind.IsValid() {
		return goerr.New("unknown schema kind", goerr.V("kind", s.Kind))
	}

	switch s.Kind {
	case KindObject:
		if len(s.Properties) == 0 {
			return goerr.New("object schema requires at least one property")
		}
		for name, prop := range s.Properties {
			if err := prop.Validate(); err != nil {
				return goerr.Wrap(err, "invalid property schema", goerr.V("property", name))
			}
		}
		for _, req := range s.Required {
			if _, ok := s.Properties[req]; !ok {
				return goerr.New("required property is not declared",
					goerr.V("property", req))
			}
		}

	case KindArray:
		if s.Items == nil {
			return goerr.New("array schema requires items")
		}
		if err := s.Items.Validate(); err != nil {
			return goerr.Wrap(err, "invalid items schema")
		}

	case KindString:
		if s.Pattern != "" {
			if _, err := regexp.Compile(s.Pattern); err != nil {
				return goerr.Wrap(err, "invalid string pattern", goerr.V("pattern", s.Pattern))
			}
		}

	case KindEnum:
		if len(s.Values) == 0 {
			return goerr.New("enum schema requires at least one value")
		}
	}

	return nil
}

// Clone returns a deep copy of the schema tree
func (s *Schema) Clone() *Schema {
	if s == nil {
		return nil
	}

	clone := *s
	if s.Properties != nil {
		clone.Properties = make(map[string]*Schema, len(s.Properties))
		for name, prop := range s.Properties {
			clone.Properties[name] = prop.Clone()
		}
	}
	if s.Required != nil {
		clone.Required = append([]string{}, s.Required...)
	}
	clone.Items = s.Items.Clone()
	if s.Values != nil {
		clone.Values = append([]string{}, s.Values...)
	}

	return &clone
}

// PropertyNames returns the declared property names of an object schema.
// Used by the hallucination detector to decide which result properties
// are licensed by the source schema.
func (s *Schema) PropertyNames() []string {
	if s == nil || s.Kind != KindObject {
		return nil
	}

	names := make([]string, 0, len(s.Properties))
	for name := range s.Properties {
		names = append(names, name)
	}
	return names
}

// HasProperty checks whether an object schema declares the given property
func (s *Schema) HasProperty(name string) bool {
	if s == nil || s.Kind != KindObject {
		return false
	}
	_, ok := s.Properties[name]
	return ok
}
