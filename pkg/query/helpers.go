package query

import (
	"sort"
	"strings"

	"github.com/conventionforge/forge/pkg/model"
	"github.com/conventionforge/forge/pkg/registry"
)

// FilterOptions are the exclusion options of the attribute helpers
// (Attributes, GroupAttributesByNamespace, GroupedAttributes). Exclusion
// always wins over whatever a registry's imports declaration already
// selected (Open Question #3, SPEC_FULL.md §5.3): they are applied as the
// last step of those helpers, never folded into Pass 5's reachability
// decision. The GroupedMetrics/Events/Spans/Resources/Scopes helpers take no
// FilterOptions and apply no exclusion.
type FilterOptions struct {
	ExcludeNamespace     []string
	ExcludeRootNamespace []string
	ExcludeStability     []string
	StableOnly           bool
	ExcludeDeprecated    bool
}

func (o FilterOptions) excludes(a *registry.ResolvedAttribute) bool {
	if o.ExcludeDeprecated && a.Deprecated != nil {
		return true
	}
	if o.StableOnly && a.Stability != model.StabilityStable {
		return true
	}
	for _, ns := range o.ExcludeNamespace {
		if model.MatchPattern(ns, a.ID) || strings.HasPrefix(a.ID, ns+".") {
			return true
		}
	}
	for _, ns := range o.ExcludeRootNamespace {
		if RootNamespace(a.ID) == ns {
			return true
		}
	}
	for _, st := range o.ExcludeStability {
		if string(a.Stability) == st {
			return true
		}
	}
	return false
}

// RootNamespace returns the first dot-separated segment of a dotted
// identifier, e.g. "http.request.method" -> "http".
func RootNamespace(id string) string {
	if i := strings.IndexByte(id, '.'); i >= 0 {
		return id[:i]
	}
	return id
}

// AttributeView is the template/query-facing projection of a resolved
// attribute — a flat, stable shape independent of pkg/model's internal
// wire structs.
type AttributeView struct {
	ID               string
	Type             string
	Brief            string
	Note             string
	Stability        string
	Deprecated       bool
	DeprecatedReason string
	RequirementLevel string
	Examples         []any
}

func toView(a *registry.ResolvedAttribute) AttributeView {
	v := AttributeView{
		ID:               a.ID,
		Type:             a.Type.Value,
		Brief:            a.Brief,
		Note:             a.Note,
		Stability:        string(a.Stability),
		RequirementLevel: a.RequirementLevel.Level,
		Examples:         a.Examples.Values,
	}
	if a.Deprecated != nil {
		v.Deprecated = true
		d := model.Canonicalize(a.Deprecated)
		v.DeprecatedReason = d.Note
		if d.RenamedTo != "" {
			v.DeprecatedReason = "renamed to " + d.RenamedTo
		}
	}
	return v
}

// Attributes returns every attribute in bundle's catalog that survives
// opts, sorted by id for deterministic output (spec.md §8.1).
func Attributes(bundle *registry.Bundle, opts FilterOptions) []AttributeView {
	var out []AttributeView
	for _, a := range bundle.Catalog.All() {
		if opts.excludes(a) {
			continue
		}
		out = append(out, toView(a))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// GroupAttributesByNamespace returns groupID's own attributes (not its
// whole transitive namespace), sorted by id, after opts filtering.
func GroupAttributesByNamespace(bundle *registry.Bundle, groupID string, opts FilterOptions) []AttributeView {
	g, ok := bundle.Groups[groupID]
	if !ok {
		return nil
	}
	var out []AttributeView
	for _, aidx := range g.AttributeIDs {
		a := bundle.Catalog.At(aidx)
		if a == nil || opts.excludes(a) {
			continue
		}
		out = append(out, toView(a))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// GroupedAttributes buckets every surviving attribute by its root
// namespace (the segment before the first dot).
func GroupedAttributes(bundle *registry.Bundle, opts FilterOptions) map[string][]AttributeView {
	out := make(map[string][]AttributeView)
	for _, a := range Attributes(bundle, opts) {
		ns := RootNamespace(a.ID)
		out[ns] = append(out[ns], a)
	}
	return out
}

// groupedByType buckets resolved groups of groupType by root namespace of
// their id, for the semconv_grouped_metrics/events/spans/resources/scopes
// family of helpers.
func groupedByType(bundle *registry.Bundle, groupType string) map[string][]*registry.ResolvedGroup {
	out := make(map[string][]*registry.ResolvedGroup)
	for _, g := range bundle.GroupsByType(groupType) {
		ns := RootNamespace(g.ID)
		out[ns] = append(out[ns], g)
	}
	return out
}

// GroupedMetrics buckets resolved metric groups by root namespace.
func GroupedMetrics(bundle *registry.Bundle) map[string][]*registry.ResolvedGroup {
	return groupedByType(bundle, model.GroupMetric)
}

// GroupedEvents buckets resolved event groups by root namespace.
func GroupedEvents(bundle *registry.Bundle) map[string][]*registry.ResolvedGroup {
	return groupedByType(bundle, model.GroupEvent)
}

// GroupedSpans buckets resolved span groups by root namespace.
func GroupedSpans(bundle *registry.Bundle) map[string][]*registry.ResolvedGroup {
	return groupedByType(bundle, model.GroupSpan)
}

// GroupedResources buckets resolved resource groups by root namespace.
func GroupedResources(bundle *registry.Bundle) map[string][]*registry.ResolvedGroup {
	return groupedByType(bundle, model.GroupResource)
}

// GroupedScopes buckets resolved scope groups by root namespace.
func GroupedScopes(bundle *registry.Bundle) map[string][]*registry.ResolvedGroup {
	return groupedByType(bundle, model.GroupScope)
}

// BundleToAny projects bundle into the map[string]any/[]any shape Eval's
// restricted expression grammar understands: a template binding's query
// (spec.md §4.5) runs against this, not against the Go-typed Bundle
// directly.
func BundleToAny(bundle *registry.Bundle) map[string]any {
	attrs := Attributes(bundle, FilterOptions{})
	return map[string]any{
		"attributes": AttributeViewsToAny(attrs),
		"metrics":    groupsToAny(bundle.GroupsByType(model.GroupMetric)),
		"events":     groupsToAny(bundle.GroupsByType(model.GroupEvent)),
		"spans":      groupsToAny(bundle.GroupsByType(model.GroupSpan)),
		"resources":  groupsToAny(bundle.GroupsByType(model.GroupResource)),
		"scopes":     groupsToAny(bundle.GroupsByType(model.GroupScope)),
	}
}

func groupsToAny(groups []*registry.ResolvedGroup) []any {
	out := make([]any, len(groups))
	for i, g := range groups {
		out[i] = map[string]any{
			"id":            g.ID,
			"type":          g.Type,
			"brief":         g.Brief,
			"note":          g.Note,
			"stability":     string(g.Stability),
			"metric_name":   g.MetricName,
			"instrument":    g.Instrument,
			"unit":          g.Unit,
			"attribute_ids": g.AttributeIDs,
		}
	}
	return out
}

// AttributeViewsToAny converts a slice of AttributeView into []any of
// map[string]any so the Eval expression language, which only understands
// map[string]any/[]any/scalars, can operate on it.
func AttributeViewsToAny(views []AttributeView) []any {
	out := make([]any, len(views))
	for i, v := range views {
		out[i] = map[string]any{
			"id":                v.ID,
			"type":              v.Type,
			"brief":             v.Brief,
			"note":              v.Note,
			"stability":         v.Stability,
			"deprecated":        v.Deprecated,
			"deprecated_reason": v.DeprecatedReason,
			"requirement_level": v.RequirementLevel,
			"examples":          v.Examples,
		}
	}
	return out
}
