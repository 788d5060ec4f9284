package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func minFloat(f float64) *float64 { return &f }
func maxFloat(f float64) *float64 { return &f }
func minLen(n int) *int           { return &n }
func maxLen(n int) *int           { return &n }

func testDefs() []AttributeDef {
	return []AttributeDef{
		{Name: "email", Type: "string", Required: true, MaxLength: maxLen(254)},
		{Name: "age", Type: "number", Min: minFloat(0), Max: maxFloat(150)},
		{Name: "status", Type: "string", Enum: []string{"active", "pending"}, Default: "pending"},
		{Name: "balance", Type: "decimal:2"},
		{Name: "home", Type: "geo:lat"},
		{
			Name: "profile",
			Type: "json",
			Nested: []AttributeDef{
				{Name: "bio", Type: "string"},
				{Name: "age", Type: "number", Required: true},
			},
		},
	}
}

func TestCompileRejectsDuplicateNames(t *testing.T) {
	_, err := Compile([]AttributeDef{
		{Name: "a", Type: "string"},
		{Name: "a", Type: "number"},
	})
	assert.Error(t, err)
}

func TestCompileRejectsDeepNesting(t *testing.T) {
	_, err := Compile([]AttributeDef{
		{
			Name: "profile",
			Type: "json",
			Nested: []AttributeDef{
				{
					Name: "inner",
					Type: "json",
					Nested: []AttributeDef{
						{Name: "tooDeep", Type: "string"},
					},
				},
			},
		},
	})
	assert.Error(t, err)
}

func TestCompileRejectsNestedOnNonJSON(t *testing.T) {
	_, err := Compile([]AttributeDef{
		{
			Name:   "name",
			Type:   "string",
			Nested: []AttributeDef{{Name: "x", Type: "string"}},
		},
	})
	assert.Error(t, err)
}

func TestValidateAppliesDefaultsAndNormalizes(t *testing.T) {
	s, err := Compile(testDefs())
	require.NoError(t, err)

	out, verr := s.Validate(map[string]interface{}{
		"email":   "a@b.com",
		"age":     float64(30),
		"balance": float64(12.5),
		"home":    float64(48.1),
		"profile": map[string]interface{}{"age": float64(10)},
	}, false)

	require.Nil(t, verr)
	assert.Equal(t, "pending", out["status"])
	assert.Equal(t, "a@b.com", out["email"])
}

func TestValidateRejectsMissingRequired(t *testing.T) {
	s, err := Compile(testDefs())
	require.NoError(t, err)

	_, verr := s.Validate(map[string]interface{}{}, false)
	require.NotNil(t, verr)
	assert.ErrorIs(t, verr, ErrValidation)

	found := false
	for _, fe := range verr.Errors {
		if fe.Field == "email" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestValidatePartialSkipsRequiredCheck(t *testing.T) {
	s, err := Compile(testDefs())
	require.NoError(t, err)

	_, verr := s.Validate(map[string]interface{}{"age": float64(5)}, true)
	assert.Nil(t, verr)
}

func TestValidateRejectsUnknownField(t *testing.T) {
	s, err := Compile(testDefs())
	require.NoError(t, err)

	_, verr := s.Validate(map[string]interface{}{
		"email":    "a@b.com",
		"mistyped": "x",
	}, false)
	require.NotNil(t, verr)
}

func TestValidateRejectsEnumViolation(t *testing.T) {
	s, err := Compile(testDefs())
	require.NoError(t, err)

	_, verr := s.Validate(map[string]interface{}{
		"email":  "a@b.com",
		"status": "archived",
	}, false)
	require.NotNil(t, verr)
}

func TestValidateRejectsOutOfRangeNumber(t *testing.T) {
	s, err := Compile(testDefs())
	require.NoError(t, err)

	_, verr := s.Validate(map[string]interface{}{
		"email": "a@b.com",
		"age":   float64(200),
	}, false)
	require.NotNil(t, verr)
}

func TestValidateNestedRequiresField(t *testing.T) {
	s, err := Compile(testDefs())
	require.NoError(t, err)

	_, verr := s.Validate(map[string]interface{}{
		"email":   "a@b.com",
		"profile": map[string]interface{}{"bio": "hi"},
	}, false)
	require.NotNil(t, verr)
}
