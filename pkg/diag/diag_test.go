package diag

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conventionforge/forge/pkg/model"
)

func TestKindStructural(t *testing.T) {
	assert.True(t, KindCyclicDependency.Structural())
	assert.True(t, KindManifestError.Structural())
	assert.False(t, KindDuplicateID.Structural())
	assert.False(t, KindQueryError.Structural())
}

func TestSinkAccumulates(t *testing.T) {
	var s Sink
	s.Addf(KindDuplicateID, model.Position{File: "a.yaml", Line: 3}, nil, "duplicate id %q", "http.method")
	s.Addf(KindUnresolvedReference, model.Position{}, nil, "ref %q has no definition", "foo.bar")

	require.True(t, s.HasErrors())
	diags := s.Diagnostics()
	require.Len(t, diags, 2)
	assert.Equal(t, KindDuplicateID, diags[0].Kind)
	assert.Contains(t, diags[0].Message, "http.method")

	counts := s.CountByKind()
	assert.Equal(t, 1, counts[KindDuplicateID])
	assert.Equal(t, 1, counts[KindUnresolvedReference])
}

func TestSinkEmpty(t *testing.T) {
	var s Sink
	assert.False(t, s.HasErrors())
	assert.Empty(t, s.Diagnostics())
}

func TestErrorWrapping(t *testing.T) {
	cause := errors.New("boom")
	e := New(KindParseError, model.Position{File: "x.yaml", Line: 1, Column: 1}, cause, "bad token")
	assert.ErrorIs(t, e, cause)
	assert.Contains(t, e.Error(), "bad token")
	assert.Contains(t, e.Error(), "boom")
}

func TestSinkAddErrUnwrapsDiagError(t *testing.T) {
	var s Sink
	de := New(KindManifestError, model.Position{}, nil, "missing dependency")
	s.AddErr(de)
	diags := s.Diagnostics()
	require.Len(t, diags, 1)
	assert.Equal(t, KindManifestError, diags[0].Kind)
}

func TestSinkAddErrWrapsPlainError(t *testing.T) {
	var s Sink
	s.AddErr(errors.New("unexpected"))
	diags := s.Diagnostics()
	require.Len(t, diags, 1)
	assert.Equal(t, KindInvariantViolation, diags[0].Kind)
}

func TestSinkTableRenders(t *testing.T) {
	var s Sink
	s.Addf(KindStabilityConflict, model.Position{File: "b.yaml", Line: 5, Column: 2}, nil, "conflicting stability")
	out := s.Table()
	assert.Contains(t, out, "stability_conflict")
	assert.Contains(t, out, "b.yaml:5:2")
}
