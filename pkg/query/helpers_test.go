package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conventionforge/forge/pkg/model"
	"github.com/conventionforge/forge/pkg/registry"
)

func newTestBundle() *registry.Bundle {
	b := registry.NewBundle()
	stable := &registry.ResolvedAttribute{Attribute: model.Attribute{ID: "http.request.method", Stability: model.StabilityStable}}
	stable.Type = model.AttributeType{Value: "string"}
	deprecated := &registry.ResolvedAttribute{Attribute: model.Attribute{ID: "http.method", Stability: model.StabilityDeprecated, Deprecated: &model.RawDeprecated{}}}
	aws := &registry.ResolvedAttribute{Attribute: model.Attribute{ID: "aws.ecs.task.id", Stability: model.StabilityStable}}

	stableIdx := b.Catalog.Put(stable)
	b.Catalog.Put(deprecated)
	b.Catalog.Put(aws)

	g := &registry.ResolvedGroup{Group: model.Group{ID: "http.client", Type: model.GroupSpan}, AttributeIDs: []int{stableIdx}}
	b.AddGroup(g, "registry/http")

	metric := &registry.ResolvedGroup{Group: model.Group{ID: "aws.ecs.task.count", Type: model.GroupMetric, MetricName: "aws.ecs.task.count", Instrument: "counter"}}
	b.AddGroup(metric, "registry/aws")

	return b
}

func TestAttributesFiltersDeprecated(t *testing.T) {
	b := newTestBundle()
	views := Attributes(b, FilterOptions{ExcludeDeprecated: true})
	ids := make([]string, len(views))
	for i, v := range views {
		ids[i] = v.ID
	}
	assert.NotContains(t, ids, "http.method")
	assert.Contains(t, ids, "http.request.method")
}

func TestAttributesStableOnly(t *testing.T) {
	b := newTestBundle()
	views := Attributes(b, FilterOptions{StableOnly: true})
	for _, v := range views {
		assert.Equal(t, "stable", v.Stability)
	}
}

func TestAttributesExcludeRootNamespace(t *testing.T) {
	b := newTestBundle()
	views := Attributes(b, FilterOptions{ExcludeRootNamespace: []string{"aws"}})
	for _, v := range views {
		assert.NotEqual(t, "aws", RootNamespace(v.ID))
	}
}

func TestGroupAttributesByNamespace(t *testing.T) {
	b := newTestBundle()
	views := GroupAttributesByNamespace(b, "http.client", FilterOptions{})
	require.Len(t, views, 1)
	assert.Equal(t, "http.request.method", views[0].ID)
}

func TestGroupedMetrics(t *testing.T) {
	b := newTestBundle()
	grouped := GroupedMetrics(b)
	require.Contains(t, grouped, "aws")
	assert.Len(t, grouped["aws"], 1)
}

func TestRootNamespace(t *testing.T) {
	assert.Equal(t, "http", RootNamespace("http.request.method"))
	assert.Equal(t, "single", RootNamespace("single"))
}
