package resolve

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conventionforge/forge/pkg/diag"
	"github.com/conventionforge/forge/pkg/model"
	"github.com/conventionforge/forge/pkg/specparse"
)

func group(id, typ string, attrs ...model.Attribute) model.Group {
	return model.Group{ID: id, Type: typ, Brief: "brief for " + id, Stability: model.StabilityStable, Attributes: attrs}
}

func attr(id, typ string) model.Attribute {
	var a model.Attribute
	a.ID = id
	a.Type = model.AttributeType{Value: typ}
	a.Brief = "brief for " + id
	a.RequirementLevel = model.RequirementLevel{Level: "recommended"}
	return a
}

func TestResolveBasicAttributeGroupAndRef(t *testing.T) {
	base := group("common", model.GroupAttributeGroup, attr("http.method", "string"))
	span := group("http.client", model.GroupSpan)
	span.Extends = ""
	refAttr := attr("http.method", "")
	refAttr.Type = model.AttributeType{}
	refAttr.Ref = "http.method"
	refAttr.RequirementLevel = model.RequirementLevel{Level: "required"}
	span.Attributes = []model.Attribute{refAttr}

	sources := []RegistrySource{
		{Path: "registry", Files: []specparse.ParsedFile{
			{Path: "registry/base.yaml", Groups: []model.Group{base}},
			{Path: "registry/span.yaml", Groups: []model.Group{span}},
		}},
	}

	var sink diag.Sink
	bundle, err := Resolve(sources, &sink, Options{})
	require.NoError(t, err)

	rg, ok := bundle.Groups["http.client"]
	require.True(t, ok)
	require.Len(t, rg.AttributeIDs, 1)
	idx, ok := bundle.Catalog.Index("http.method")
	require.True(t, ok)
	resolved := bundle.Catalog.At(idx)
	require.NotNil(t, resolved)
	assert.Equal(t, "string", resolved.Type.Value)
	assert.Equal(t, "required", resolved.RequirementLevel.Level) // from ref site
	assert.False(t, sink.HasErrors())

	// the base attribute_group survives GC: it is authored in the root
	// (only) registry, regardless of nothing extending it.
	_, retained := bundle.Groups["common"]
	assert.True(t, retained)
}

func TestResolveExtendsMergesFields(t *testing.T) {
	base := group("base.attrs", model.GroupAttributeGroup, attr("net.peer.name", "string"))
	base.Brief = "base attributes"
	child := group("db.client", model.GroupSpan, attr("db.statement", "string"))
	child.Extends = "base.attrs"
	child.Brief = ""

	sources := []RegistrySource{
		{Path: "registry", Files: []specparse.ParsedFile{
			{Path: "registry/a.yaml", Groups: []model.Group{base, child}},
		}},
	}

	var sink diag.Sink
	bundle, err := Resolve(sources, &sink, Options{})
	require.NoError(t, err)

	rg := bundle.Groups["db.client"]
	require.NotNil(t, rg)
	assert.Equal(t, "base attributes", rg.Brief)
	ids := make([]string, len(rg.AttributeIDs))
	for i, idx := range rg.AttributeIDs {
		ids[i] = bundle.Catalog.At(idx).ID
	}
	assert.ElementsMatch(t, []string{"net.peer.name", "db.statement"}, ids)
}

func TestResolveDetectsCyclicExtends(t *testing.T) {
	a := group("a", model.GroupAttributeGroup)
	a.Extends = "b"
	b := group("b", model.GroupAttributeGroup)
	b.Extends = "a"

	sources := []RegistrySource{
		{Path: "registry", Files: []specparse.ParsedFile{
			{Path: "registry/cycle.yaml", Groups: []model.Group{a, b}},
		}},
	}
	var sink diag.Sink
	_, err := Resolve(sources, &sink, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cyclic extends")
}

func TestResolveUnresolvedRefReported(t *testing.T) {
	span := group("svc.op", model.GroupSpan)
	bad := attr("missing.attr", "")
	bad.Ref = "missing.attr"
	span.Attributes = []model.Attribute{bad}

	sources := []RegistrySource{
		{Path: "registry", Files: []specparse.ParsedFile{
			{Path: "registry/span.yaml", Groups: []model.Group{span}},
		}},
	}
	var sink diag.Sink
	_, err := Resolve(sources, &sink, Options{})
	require.NoError(t, err)
	require.True(t, sink.HasErrors())
	diags := sink.Diagnostics()
	assert.Equal(t, diag.KindUnresolvedReference, diags[0].Kind)
}

func TestResolveImportFilteringExcludesUnimportedRoots(t *testing.T) {
	wanted := group("aws.ecs.task", model.GroupMetric)
	wanted.MetricName = "aws.ecs.task.count"
	wanted.Instrument = "counter"
	unwanted := group("gcp.run.invocation", model.GroupMetric)
	unwanted.MetricName = "gcp.run.invocation.count"
	unwanted.Instrument = "counter"

	sources := []RegistrySource{
		{Path: "registry", Files: []specparse.ParsedFile{
			{
				Path:       "registry/metrics.yaml",
				Groups:     []model.Group{wanted, unwanted},
				Imports:    model.ImportDeclaration{Metrics: []string{"aws.*"}},
				HasImports: true,
			},
		}},
	}
	var sink diag.Sink
	bundle, err := Resolve(sources, &sink, Options{})
	require.NoError(t, err)
	_, ok := bundle.Groups["aws.ecs.task"]
	assert.True(t, ok)
	_, ok = bundle.Groups["gcp.run.invocation"]
	assert.False(t, ok)
}

func TestResolveIncludeUnreferencedKeepsEverything(t *testing.T) {
	orphan := group("orphan.group", model.GroupAttributeGroup, attr("orphan.attr", "string"))
	sources := []RegistrySource{
		{Path: "registry", Files: []specparse.ParsedFile{
			{Path: "registry/a.yaml", Groups: []model.Group{orphan}},
		}},
	}
	var sink diag.Sink
	bundle, err := Resolve(sources, &sink, Options{IncludeUnreferenced: true})
	require.NoError(t, err)
	_, ok := bundle.Groups["orphan.group"]
	assert.True(t, ok)
	_, ok = bundle.Catalog.Index("orphan.attr")
	assert.True(t, ok)
}

func TestResolveDeprecatedRequiredInvariantViolation(t *testing.T) {
	a := attr("legacy.attr", "string")
	a.RequirementLevel = model.RequirementLevel{Level: "required"}
	a.Deprecated = &model.RawDeprecated{}
	g := group("legacy.group", model.GroupAttributeGroup, a)
	g.Extends = "" // attribute_group in the root registry, so it survives GC either way

	sources := []RegistrySource{
		{Path: "registry", Files: []specparse.ParsedFile{
			{Path: "registry/legacy.yaml", Groups: []model.Group{g}},
		}},
	}
	var sink diag.Sink
	_, err := Resolve(sources, &sink, Options{IncludeUnreferenced: true})
	require.NoError(t, err)
	found := false
	for _, d := range sink.Diagnostics() {
		if d.Kind == diag.KindInvariantViolation {
			found = true
		}
	}
	assert.True(t, found)
}

func TestResolveLastRegisteredWinsAcrossRegistries(t *testing.T) {
	base := group("shared.metric", model.GroupMetric)
	base.MetricName = "shared.metric"
	base.Instrument = "counter"
	base.Brief = "base definition"

	override := group("shared.metric", model.GroupMetric)
	override.MetricName = "shared.metric"
	override.Instrument = "counter"
	override.Brief = "dependent override"

	// base-first order, as manifest.Graph.Order would produce.
	sources := []RegistrySource{
		{Path: "base-registry", Files: []specparse.ParsedFile{
			{Path: "base-registry/m.yaml", Groups: []model.Group{base}},
		}},
		{Path: "dependent-registry", Files: []specparse.ParsedFile{
			{Path: "dependent-registry/m.yaml", Groups: []model.Group{override}},
		}},
	}
	var sink diag.Sink
	bundle, err := Resolve(sources, &sink, Options{})
	require.NoError(t, err)
	rg := bundle.Groups["shared.metric"]
	require.NotNil(t, rg)
	assert.Equal(t, "dependent override", rg.Brief)
}
