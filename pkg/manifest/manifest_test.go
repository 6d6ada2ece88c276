package manifest

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conventionforge/forge/pkg/model"
)

// fakeLoader resolves manifests from an in-memory map keyed by path, for
// testing graph construction without touching pkg/fetch.
type fakeLoader struct {
	byPath map[string]*model.Manifest
}

func (f *fakeLoader) LoadManifest(_ context.Context, p string) (*model.Manifest, error) {
	m, ok := f.byPath[p]
	if !ok {
		return nil, fmt.Errorf("no manifest registered at %s", p)
	}
	cp := *m
	return &cp, nil
}

func TestBuildLinearChain(t *testing.T) {
	loader := &fakeLoader{byPath: map[string]*model.Manifest{
		"root": {Name: "root", Dependencies: []model.ManifestDependency{{Name: "mid", RegistryPath: "mid"}}},
		"root/mid": {Name: "mid", Dependencies: []model.ManifestDependency{{Name: "base", RegistryPath: "base"}}},
		"root/mid/base": {Name: "base"},
	}}
	g, err := Build(context.Background(), loader, "root", 0)
	require.NoError(t, err)
	require.Len(t, g.Order, 3)
	// Reverse-topological: base before mid before root.
	assert.Equal(t, "base", g.Order[0].Manifest.Name)
	assert.Equal(t, "mid", g.Order[1].Manifest.Name)
	assert.Equal(t, "root", g.Order[2].Manifest.Name)
	assert.Equal(t, 2, g.Depth(g.Root))
}

func TestBuildDiamond(t *testing.T) {
	loader := &fakeLoader{byPath: map[string]*model.Manifest{
		"root": {Name: "root", Dependencies: []model.ManifestDependency{
			{Name: "a", RegistryPath: "a"},
			{Name: "b", RegistryPath: "b"},
		}},
		"root/a": {Name: "a", Dependencies: []model.ManifestDependency{{Name: "base", RegistryPath: "../base"}}},
		"root/b": {Name: "b", Dependencies: []model.ManifestDependency{{Name: "base", RegistryPath: "../base"}}},
		"root/base": {Name: "base"},
	}}
	g, err := Build(context.Background(), loader, "root", 0)
	require.NoError(t, err)
	// base is shared: visited once, appears once in Order, before both a and b.
	require.Len(t, g.Order, 4)
	assert.Equal(t, "base", g.Order[0].Manifest.Name)
}

func TestBuildDetectsCycle(t *testing.T) {
	loader := &fakeLoader{byPath: map[string]*model.Manifest{
		"root": {Name: "root", Dependencies: []model.ManifestDependency{{Name: "a", RegistryPath: "a"}}},
		"root/a": {Name: "a", Dependencies: []model.ManifestDependency{{Name: "root", RegistryPath: ".."}}},
	}}
	_, err := Build(context.Background(), loader, "root", 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cyclic dependency")
}

func TestBuildRejectsExcessiveDepth(t *testing.T) {
	loader := &fakeLoader{byPath: map[string]*model.Manifest{
		"0": {Name: "0", Dependencies: []model.ManifestDependency{{Name: "1", RegistryPath: "1"}}},
		"0/1": {Name: "1"},
	}}
	_, err := Build(context.Background(), loader, "0", 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max depth")
}

func TestBuildMissingDependency(t *testing.T) {
	loader := &fakeLoader{byPath: map[string]*model.Manifest{
		"root": {Name: "root", Dependencies: []model.ManifestDependency{{Name: "missing", RegistryPath: "missing"}}},
	}}
	_, err := Build(context.Background(), loader, "root", 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing")
}
