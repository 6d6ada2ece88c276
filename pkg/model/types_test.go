package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestStabilityLessStableThan(t *testing.T) {
	assert.True(t, StabilityDevelopment.LessStableThan(StabilityStable))
	assert.False(t, StabilityStable.LessStableThan(StabilityDevelopment))
	assert.False(t, StabilityStable.LessStableThan(StabilityStable))
}

func TestStabilityValid(t *testing.T) {
	assert.True(t, Stability("").Valid())
	assert.True(t, StabilityBeta.Valid())
	assert.False(t, Stability("bogus").Valid())
}

func TestRequirementLevelUnmarshalScalar(t *testing.T) {
	var r RequirementLevel
	require.NoError(t, yaml.Unmarshal([]byte(`required`), &r))
	assert.Equal(t, "required", r.Level)
	assert.Empty(t, r.Explanation)
}

func TestRequirementLevelUnmarshalConditional(t *testing.T) {
	var r RequirementLevel
	src := "conditionally_required: when db.statement is populated"
	require.NoError(t, yaml.Unmarshal([]byte(src), &r))
	assert.Equal(t, "conditionally_required", r.Level)
	assert.Equal(t, "when db.statement is populated", r.Explanation)
}

func TestAttributeTypeUnmarshalScalar(t *testing.T) {
	var at AttributeType
	require.NoError(t, yaml.Unmarshal([]byte(`string`), &at))
	assert.Equal(t, "string", at.Value)
	assert.Nil(t, at.Members)
}

func TestAttributeTypeUnmarshalEnum(t *testing.T) {
	src := `
members:
  - id: get
    value: "GET"
    brief: GET method
  - id: post
    value: "POST"
    brief: POST method
`
	var at AttributeType
	require.NoError(t, yaml.Unmarshal([]byte(src), &at))
	assert.Equal(t, "enum", at.Value)
	require.Len(t, at.Members, 2)
	assert.Equal(t, "get", at.Members[0].ID)
}

func TestExamplesUnmarshalScalarAndSequence(t *testing.T) {
	var e Examples
	require.NoError(t, yaml.Unmarshal([]byte(`"/users/{id}"`), &e))
	assert.Equal(t, []any{"/users/{id}"}, e.Values)

	var e2 Examples
	require.NoError(t, yaml.Unmarshal([]byte("- GET\n- POST\n"), &e2))
	assert.Equal(t, []any{"GET", "POST"}, e2.Values)
}

func TestDeprecatedCanonicalizeLegacyBool(t *testing.T) {
	var raw RawDeprecated
	require.NoError(t, yaml.Unmarshal([]byte(`true`), &raw))
	d := Canonicalize(&raw)
	assert.Equal(t, DeprecatedUncategorized, d.Kind)
	assert.True(t, d.RawLegacy)
}

func TestDeprecatedCanonicalizeRenamedTo(t *testing.T) {
	src := "renamed_to: http.request.method\nnote: use the new attribute\n"
	var raw RawDeprecated
	require.NoError(t, yaml.Unmarshal([]byte(src), &raw))
	d := Canonicalize(&raw)
	assert.Equal(t, DeprecatedRenamedTo, d.Kind)
	assert.Equal(t, "http.request.method", d.RenamedTo)
	assert.False(t, d.RawLegacy)
}

func TestDeprecatedCanonicalizeNil(t *testing.T) {
	assert.Equal(t, Deprecated{}, Canonicalize(nil))
}

func TestMatchPatternWildcard(t *testing.T) {
	assert.True(t, MatchPattern("aws.*", "aws.ecs.task.id"))
	assert.False(t, MatchPattern("aws.*", "gcp.project.id"))
	assert.True(t, MatchPattern("http.request.method", "http.request.method"))
	assert.False(t, MatchPattern("http.request.method", "http.request.method.original"))
}

func TestAnyValueToAnyValueArray(t *testing.T) {
	r := rawAnyValue{Type: "string[]"}
	av := r.ToAnyValue()
	assert.Equal(t, AnyValueArray, av.Kind)
	assert.Equal(t, AnyValueString, av.ElemKind)
}

func TestAnyValueToAnyValueMap(t *testing.T) {
	r := rawAnyValue{
		Fields: []rawAnyValue{
			{ID: "name", Type: "string"},
			{ID: "age", Type: "int"},
		},
	}
	av := r.ToAnyValue()
	assert.Equal(t, AnyValueMap, av.Kind)
	require.Len(t, av.Fields, 2)
	assert.Equal(t, "name", av.Fields[0].ID)
	assert.Equal(t, AnyValueString, av.Fields[0].Value.Kind)
}

func TestAnyValueToAnyValueUndefined(t *testing.T) {
	av := rawAnyValue{}.ToAnyValue()
	assert.Equal(t, AnyValueUndefined, av.Kind)
}

func TestAttributeSetFields(t *testing.T) {
	var a Attribute
	assert.False(t, a.IsSet("brief"))
	a.MarkSet("brief")
	assert.True(t, a.IsSet("brief"))
	assert.False(t, a.IsSet("note"))
}

func TestPositionString(t *testing.T) {
	p := Position{File: "registry/http.yaml", Line: 12, Column: 3}
	assert.Equal(t, "registry/http.yaml:12:3", p.String())
	assert.Empty(t, Position{}.String())
}
