package schema

import (
	"fmt"
)

// Validate checks record against s and returns a normalized copy with
// defaults applied. If partial is true, missing required fields are not
// flagged (used by update, as opposed to insert/upsert).
func (s *Schema) Validate(record map[string]interface{}, partial bool) (map[string]interface{}, *ValidationError) {
	out := make(map[string]interface{}, len(record))
	verr := &ValidationError{}

	for _, name := range s.Order {
		attr := s.Attributes[name]
		value, present := record[name]

		if !present {
			if attr.Default != nil {
				out[name] = attr.Default
				continue
			}
			if attr.Required && !partial {
				verr.add(name, "required field is missing")
			}
			continue
		}

		normalized, err := validateValue(attr, name, value)
		if err != nil {
			verr.add(name, err.Error())
			continue
		}
		out[name] = normalized
	}

	for name := range record {
		if _, known := s.Attributes[name]; !known {
			verr.add(name, "unknown attribute")
		}
	}

	if len(verr.Errors) > 0 {
		return nil, verr
	}
	return out, nil
}

func validateValue(attr *Attribute, field string, value interface{}) (interface{}, error) {
	switch attr.Type.Kind {
	case KindString, KindSecret, KindIP4, KindIP6, KindMoney, KindDate:
		s, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("expected a string")
		}
		if attr.MinLength != nil && len(s) < *attr.MinLength {
			return nil, fmt.Errorf("shorter than minimum length %d", *attr.MinLength)
		}
		if attr.MaxLength != nil && len(s) > *attr.MaxLength {
			return nil, fmt.Errorf("longer than maximum length %d", *attr.MaxLength)
		}
		if attr.Pattern != nil && !attr.Pattern.MatchString(s) {
			return nil, fmt.Errorf("does not match required pattern")
		}
		if err := validateEnum(attr, s); err != nil {
			return nil, err
		}
		return s, nil

	case KindNumber, KindDecimal, KindGeoLat, KindGeoLon:
		f, ok := asFloat(value)
		if !ok {
			return nil, fmt.Errorf("expected a number")
		}
		if attr.Min != nil && f < *attr.Min {
			return nil, fmt.Errorf("below minimum %v", *attr.Min)
		}
		if attr.Max != nil && f > *attr.Max {
			return nil, fmt.Errorf("above maximum %v", *attr.Max)
		}
		return f, nil

	case KindBoolean:
		b, ok := value.(bool)
		if !ok {
			return nil, fmt.Errorf("expected a boolean")
		}
		return b, nil

	case KindBinary:
		switch value.(type) {
		case []byte, string:
			return value, nil
		}
		return nil, fmt.Errorf("expected binary data")

	case KindEmbedding:
		vec, ok := asFloatSlice(value)
		if !ok {
			return nil, fmt.Errorf("expected a numeric vector")
		}
		if attr.Type.Precision > 0 && len(vec) != attr.Type.Precision {
			return nil, fmt.Errorf("expected %d dimensions, got %d", attr.Type.Precision, len(vec))
		}
		return vec, nil

	case KindJSON:
		obj, ok := value.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("expected a json object")
		}
		return validateNested(attr, obj)
	}

	return nil, fmt.Errorf("unsupported attribute kind %q", attr.Type.Kind)
}

func validateNested(attr *Attribute, obj map[string]interface{}) (map[string]interface{}, error) {
	if len(attr.Nested) == 0 {
		return obj, nil
	}

	out := make(map[string]interface{}, len(obj))
	for name, nested := range attr.Nested {
		value, present := obj[name]
		if !present {
			if nested.Default != nil {
				out[name] = nested.Default
				continue
			}
			if nested.Required {
				return nil, fmt.Errorf("nested field %q is missing", name)
			}
			continue
		}
		normalized, err := validateValue(nested, name, value)
		if err != nil {
			return nil, fmt.Errorf("nested field %q: %w", name, err)
		}
		out[name] = normalized
	}

	for name := range obj {
		if _, known := attr.Nested[name]; !known {
			return nil, fmt.Errorf("unknown nested field %q", name)
		}
	}

	return out, nil
}

func validateEnum(attr *Attribute, s string) error {
	if len(attr.Enum) == 0 {
		return nil
	}
	for _, allowed := range attr.Enum {
		if s == allowed {
			return nil
		}
	}
	return fmt.Errorf("value %q is not one of the permitted enum values", s)
}

func asFloat(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}

func asFloatSlice(value interface{}) ([]float64, bool) {
	switch v := value.(type) {
	case []float64:
		return v, true
	case []interface{}:
		out := make([]float64, len(v))
		for i, elem := range v {
			f, ok := asFloat(elem)
			if !ok {
				return nil, false
			}
			out[i] = f
		}
		return out, true
	}
	return nil, false
}
