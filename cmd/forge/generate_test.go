package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conventionforge/forge/pkg/gen"
	"github.com/conventionforge/forge/pkg/targetcfg"
)

func TestBuildBindingsExpandsGlobAndMergesParams(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "templates"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "templates", "attrs.md.j2"), []byte("{{ .ID }}"), 0o644))

	cfg := &targetcfg.Config{
		Params: map[string]any{"shared": "file-level"},
		Templates: []targetcfg.TemplateBinding{
			{
				Template:        filepath.Join("templates", "*.j2"),
				Filter:          "attributes",
				ApplicationMode: "each",
				Params:          map[string]any{"only": "per-template"},
			},
		},
	}

	bindings, err := buildBindings(dir, cfg)
	require.NoError(t, err)
	require.Len(t, bindings, 1)

	b := bindings[0]
	assert.Equal(t, gen.ModeEach, b.ApplicationMode)
	assert.Equal(t, "attributes", b.Query)
	assert.Equal(t, "{{ .ID }}", b.TemplateSource)
	assert.Equal(t, "file-level", b.Params["shared"])
	assert.Equal(t, "per-template", b.Params["only"])
}

func TestBuildBindingsDefaultsToSingleMode(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "report.md.j2"), []byte("report"), 0o644))

	cfg := &targetcfg.Config{
		Templates: []targetcfg.TemplateBinding{
			{Template: "report.md.j2", Filter: "attributes"},
		},
	}

	bindings, err := buildBindings(dir, cfg)
	require.NoError(t, err)
	require.Len(t, bindings, 1)
	assert.Equal(t, gen.ModeSingle, bindings[0].ApplicationMode)
}
