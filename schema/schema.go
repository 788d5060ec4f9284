package schema

import "fmt"

// Schema is a compiled set of attribute declarations for one resource.
type Schema struct {
	Attributes map[string]*Attribute
	// Order preserves declaration order. Validate and the metadata packer
	// walk attributes in this order; the packer's truncate/overflow
	// tie-breaks compare attribute names instead.
	Order []string
}

// Compile compiles a list of attribute declarations into a Schema.
func Compile(defs []AttributeDef) (*Schema, error) {
	s := &Schema{Attributes: make(map[string]*Attribute, len(defs))}

	for _, def := range defs {
		if def.Name == "" {
			return nil, fmt.Errorf("schema: attribute declaration missing a name")
		}
		if _, exists := s.Attributes[def.Name]; exists {
			return nil, fmt.Errorf("schema: duplicate attribute %q", def.Name)
		}

		attr, err := compileAttribute(def)
		if err != nil {
			return nil, err
		}

		s.Attributes[def.Name] = attr
		s.Order = append(s.Order, def.Name)
	}

	return s, nil
}
