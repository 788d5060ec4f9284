package schema

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Kind is the base storage kind of a type, after stripping any semantic
// parameterization (e.g. "decimal:4" has Kind KindDecimal, Precision 4).
type Kind string

const (
	KindString    Kind = "string"
	KindNumber    Kind = "number"
	KindBoolean   Kind = "boolean"
	KindDate      Kind = "date"
	KindJSON      Kind = "json"
	KindBinary    Kind = "binary"
	KindIP4       Kind = "ip4"
	KindIP6       Kind = "ip6"
	KindMoney     Kind = "money"
	KindDecimal   Kind = "decimal"
	KindGeoLat    Kind = "geo:lat"
	KindGeoLon    Kind = "geo:lon"
	KindEmbedding Kind = "embedding"
	KindSecret    Kind = "secret"
)

// Type is a parsed attribute type, e.g. "decimal:4" -> {Kind: decimal, Precision: 4}.
type Type struct {
	Kind      Kind
	Precision int // meaningful for decimal:N and embedding:N
}

// ParseType parses a declared type string such as "string", "decimal:4",
// "embedding:384", or "geo:lat" into a Type.
func ParseType(raw string) (Type, error) {
	switch {
	case strings.HasPrefix(raw, "decimal:"):
		p, err := strconv.Atoi(strings.TrimPrefix(raw, "decimal:"))
		if err != nil {
			return Type{}, fmt.Errorf("schema: invalid decimal precision in %q: %w", raw, err)
		}
		return Type{Kind: KindDecimal, Precision: p}, nil
	case strings.HasPrefix(raw, "embedding:"):
		p, err := strconv.Atoi(strings.TrimPrefix(raw, "embedding:"))
		if err != nil {
			return Type{}, fmt.Errorf("schema: invalid embedding dimension in %q: %w", raw, err)
		}
		return Type{Kind: KindEmbedding, Precision: p}, nil
	case raw == "geo:lat":
		return Type{Kind: KindGeoLat}, nil
	case raw == "geo:lon":
		return Type{Kind: KindGeoLon}, nil
	}

	switch Kind(raw) {
	case KindString, KindNumber, KindBoolean, KindDate, KindJSON, KindBinary,
		KindIP4, KindIP6, KindMoney, KindSecret:
		return Type{Kind: Kind(raw)}, nil
	}

	return Type{}, fmt.Errorf("schema: unknown attribute type %q", raw)
}

// AttributeDef is the declarative, user-facing form of an attribute used
// when building a Schema.
type AttributeDef struct {
	Name      string
	Type      string // parsed via ParseType
	Required  bool
	Default   any
	Min       *float64
	Max       *float64
	MinLength *int
	MaxLength *int
	Enum      []string
	Pattern   string // regexp, compiled at Compile time

	// Nested declares the one-level-below-json attributes permitted under
	// a KindJSON attribute; deeper addressing requires explicit typing.
	Nested []AttributeDef
}

// Attribute is a compiled AttributeDef, ready for validation and encoding.
type Attribute struct {
	Name      string
	Type      Type
	Required  bool
	Default   any
	Min       *float64
	Max       *float64
	MinLength *int
	MaxLength *int
	Enum      []string
	Pattern   *regexp.Regexp
	Nested    map[string]*Attribute
}

func compileAttribute(def AttributeDef) (*Attribute, error) {
	t, err := ParseType(def.Type)
	if err != nil {
		return nil, err
	}

	attr := &Attribute{
		Name:      def.Name,
		Type:      t,
		Required:  def.Required,
		Default:   def.Default,
		Min:       def.Min,
		Max:       def.Max,
		MinLength: def.MinLength,
		MaxLength: def.MaxLength,
		Enum:      def.Enum,
	}

	if def.Pattern != "" {
		re, err := regexp.Compile(def.Pattern)
		if err != nil {
			return nil, fmt.Errorf("schema: attribute %q has invalid pattern: %w", def.Name, err)
		}
		attr.Pattern = re
	}

	if len(def.Nested) > 0 {
		if t.Kind != KindJSON {
			return nil, fmt.Errorf("schema: attribute %q declares nested fields but is not type json", def.Name)
		}
		attr.Nested = make(map[string]*Attribute, len(def.Nested))
		for _, nd := range def.Nested {
			if len(nd.Nested) > 0 {
				return nil, fmt.Errorf(
					"schema: attribute %q.%q exceeds the one-level-below-json nesting rule",
					def.Name, nd.Name,
				)
			}
			na, err := compileAttribute(nd)
			if err != nil {
				return nil, fmt.Errorf("schema: nested attribute %q.%q: %w", def.Name, nd.Name, err)
			}
			attr.Nested[nd.Name] = na
		}
	}

	return attr, nil
}
