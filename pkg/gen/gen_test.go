package gen

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conventionforge/forge/pkg/diag"
	"github.com/conventionforge/forge/pkg/model"
	"github.com/conventionforge/forge/pkg/registry"
	"github.com/conventionforge/forge/pkg/tmplhost"
)

func newTestBundle() *registry.Bundle {
	b := registry.NewBundle()
	b.Catalog.Put(&registry.ResolvedAttribute{Attribute: model.Attribute{
		ID: "http.request.method", Stability: model.StabilityStable,
		RequirementLevel: model.RequirementLevel{Level: "required"},
	}})
	b.Catalog.Put(&registry.ResolvedAttribute{Attribute: model.Attribute{
		ID: "http.response.status_code", Stability: model.StabilityStable,
		RequirementLevel: model.RequirementLevel{Level: "recommended"},
	}})
	return b
}

func TestRunSingleModeWritesFile(t *testing.T) {
	dir := t.TempDir()
	bundle := newTestBundle()
	host := tmplhost.New(nil, tmplhost.Delims{}, tmplhost.Whitespace{})
	sink := &diag.Sink{}
	o := New(bundle, host, sink, Options{OutputDir: dir, Concurrency: 2})

	bindings := []Binding{{
		Name:           "attrs",
		TemplatePath:   "attributes.md",
		TemplateSource: "{{ len .ctx.attributes }} attributes",
		ApplicationMode: ModeSingle,
	}}

	written, err := o.Run(context.Background(), bindings, nil)
	require.NoError(t, err)
	require.Len(t, written, 1)

	body, err := os.ReadFile(filepath.Join(dir, written[0].Path))
	require.NoError(t, err)
	assert.Equal(t, "2 attributes", string(body))
	assert.False(t, sink.HasErrors())
}

func TestRunEachModeWritesOnePerElement(t *testing.T) {
	dir := t.TempDir()
	bundle := newTestBundle()
	host := tmplhost.New(nil, tmplhost.Delims{}, tmplhost.Whitespace{})
	sink := &diag.Sink{}
	o := New(bundle, host, sink, Options{OutputDir: dir, Concurrency: 4})

	bindings := []Binding{{
		Name:            "per-attr",
		TemplatePath:    "attr.md",
		TemplateSource:  `{{ .template.SetFileName (printf "%s.md" (.ctx.id | snake_case)) }}{{ .ctx.id }}`,
		Query:           "attributes",
		ApplicationMode: ModeEach,
	}}

	written, err := o.Run(context.Background(), bindings, nil)
	require.NoError(t, err)
	assert.Len(t, written, 2)
	assert.False(t, sink.HasErrors())
}

func TestRunReportsPathCollision(t *testing.T) {
	dir := t.TempDir()
	bundle := newTestBundle()
	host := tmplhost.New(nil, tmplhost.Delims{}, tmplhost.Whitespace{})
	sink := &diag.Sink{}
	o := New(bundle, host, sink, Options{OutputDir: dir, Concurrency: 2})

	bindings := []Binding{
		{Name: "a", TemplatePath: "out.md", TemplateSource: "a", ApplicationMode: ModeSingle},
		{Name: "b", TemplatePath: "out.md", TemplateSource: "b", ApplicationMode: ModeSingle},
	}

	_, err := o.Run(context.Background(), bindings, nil)
	require.NoError(t, err)
	assert.True(t, sink.HasErrors())
}

func TestRunFileNameTemplateFallback(t *testing.T) {
	dir := t.TempDir()
	bundle := newTestBundle()
	host := tmplhost.New(nil, tmplhost.Delims{}, tmplhost.Whitespace{})
	sink := &diag.Sink{}
	o := New(bundle, host, sink, Options{OutputDir: dir})

	bindings := []Binding{{
		Name:             "named",
		TemplatePath:     "attributes.md",
		TemplateSource:   "body",
		FileNameTemplate: "generated/{{ .params.target }}.md",
		Params:           map[string]any{"target": "go"},
		ApplicationMode:  ModeSingle,
	}}

	written, err := o.Run(context.Background(), bindings, nil)
	require.NoError(t, err)
	require.Len(t, written, 1)
	assert.Equal(t, "generated/go.md", written[0].Path)
}
