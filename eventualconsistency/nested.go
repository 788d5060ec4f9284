package eventualconsistency

import "strings"

// splitField separates a field path into its top-level schema attribute
// and an optional nested json leaf. At most one level of addressing below
// a json attribute is supported.
func splitField(field string) (top, nested string) {
	if idx := strings.IndexByte(field, '.'); idx >= 0 {
		return field[:idx], field[idx+1:]
	}
	return field, ""
}

// fieldValue reads field's current numeric value out of rec, descending one
// level into a json attribute when field names a nested leaf. Missing
// values read as 0.
func fieldValue(rec map[string]interface{}, field string) float64 {
	top, nested := splitField(field)
	if nested == "" {
		v, _ := rec[top].(float64)
		return v
	}
	obj, _ := rec[top].(map[string]interface{})
	if obj == nil {
		return 0
	}
	v, _ := obj[nested].(float64)
	return v
}

// buildFieldPatch builds the Update patch needed to set field to value,
// preserving any sibling nested keys already present in rec.
func buildFieldPatch(rec map[string]interface{}, field string, value float64) map[string]interface{} {
	top, nested := splitField(field)
	if nested == "" {
		return map[string]interface{}{top: value}
	}
	obj, ok := rec[top].(map[string]interface{})
	if !ok || obj == nil {
		obj = make(map[string]interface{})
	} else {
		clone := make(map[string]interface{}, len(obj)+1)
		for k, v := range obj {
			clone[k] = v
		}
		obj = clone
	}
	obj[nested] = value
	return map[string]interface{}{top: obj}
}
