package specparse

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conventionforge/forge/pkg/diag"
)

func TestParseGroupFile(t *testing.T) {
	fsys := fstest.MapFS{
		"registry/http.yaml": &fstest.MapFile{Data: []byte(`
groups:
  - id: http.common
    type: attribute_group
    brief: Common HTTP attributes
    attributes:
      - id: http.request.method
        type: string
        brief: The HTTP method
        requirement_level: required
        examples:
          - GET
          - POST
`)},
	}
	var sink diag.Sink
	result, err := Parse(fsys, "registry", &sink, Options{})
	require.NoError(t, err)
	assert.False(t, sink.HasErrors())
	require.Len(t, result.Files, 1)
	f := result.Files[0]
	require.Len(t, f.Groups, 1)
	g := f.Groups[0]
	assert.Equal(t, "http.common", g.ID)
	assert.Equal(t, "registry/http.yaml", g.Source.File)
	assert.Greater(t, g.Source.Line, 0)
	require.Len(t, g.Attributes, 1)
	a := g.Attributes[0]
	assert.Equal(t, "http.request.method", a.ID)
	assert.True(t, a.IsSet("requirement_level"))
	assert.False(t, a.IsSet("deprecated"))
	assert.Equal(t, []any{"GET", "POST"}, a.Examples.Values)
}

func TestParseManifest(t *testing.T) {
	fsys := fstest.MapFS{
		"registry/registry_manifest.yaml": &fstest.MapFile{Data: []byte(`
name: http-semconv
version: 1.0.0
dependencies:
  - name: base
    registry_path: ../base
`)},
	}
	var sink diag.Sink
	result, err := Parse(fsys, "registry", &sink, Options{})
	require.NoError(t, err)
	require.NotNil(t, result.Manifest)
	assert.Equal(t, "http-semconv", result.Manifest.Name)
	require.Len(t, result.Manifest.Dependencies, 1)
	assert.Equal(t, "base", result.Manifest.Dependencies[0].Name)
}

func TestParseUnknownTopLevelKeyWarns(t *testing.T) {
	fsys := fstest.MapFS{
		"registry/weird.yaml": &fstest.MapFile{Data: []byte(`
groups: []
future_feature: true
`)},
	}
	var sink diag.Sink
	_, err := Parse(fsys, "registry", &sink, Options{UnknownKeys: WarnUnknownKeys})
	require.NoError(t, err)
	assert.True(t, sink.HasErrors())
	diags := sink.Diagnostics()
	require.Len(t, diags, 1)
	assert.Contains(t, diags[0].Message, "future_feature")
}

func TestParseUnknownGroupTypeReported(t *testing.T) {
	fsys := fstest.MapFS{
		"registry/bogus.yaml": &fstest.MapFile{Data: []byte(`
groups:
  - id: weird.group
    type: not_a_real_type
`)},
	}
	var sink diag.Sink
	result, err := Parse(fsys, "registry", &sink, Options{})
	require.NoError(t, err)
	require.Len(t, result.Files, 1)
	assert.True(t, sink.HasErrors())
}

func TestParseEmptyFile(t *testing.T) {
	fsys := fstest.MapFS{
		"registry/empty.yaml": &fstest.MapFile{Data: []byte("")},
	}
	var sink diag.Sink
	result, err := Parse(fsys, "registry", &sink, Options{})
	require.NoError(t, err)
	assert.False(t, sink.HasErrors())
	require.Len(t, result.Files, 1)
	assert.Empty(t, result.Files[0].Groups)
}

func TestParseImports(t *testing.T) {
	fsys := fstest.MapFS{
		"registry/derived.yaml": &fstest.MapFile{Data: []byte(`
imports:
  metrics:
    - aws.*
  events:
    - exception
groups: []
`)},
	}
	var sink diag.Sink
	result, err := Parse(fsys, "registry", &sink, Options{})
	require.NoError(t, err)
	require.Len(t, result.Files, 1)
	assert.True(t, result.Files[0].HasImports)
	assert.Equal(t, []string{"aws.*"}, result.Files[0].Imports.Metrics)
	assert.Equal(t, []string{"exception"}, result.Files[0].Imports.Events)
}
