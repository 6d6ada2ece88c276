package resolve

import (
	"github.com/conventionforge/forge/pkg/model"
)

// rootTypes are the group types import patterns select among; attribute_group
// and scope groups are never selected by a pattern match — they are retained
// only when authored in the root registry, when they serve as an extends
// base (tracked via state.extendsUsed), or when Options.IncludeUnreferenced
// is set.
var rootTypes = map[string]bool{
	model.GroupSpan:        true,
	model.GroupEvent:       true,
	model.GroupMetric:      true,
	model.GroupMetricGroup: true,
	model.GroupResource:    true,
	model.GroupEntity:      true,
}

// resolveImportsAndGC is Pass 5: decide which groups are reachable from
// some registry's import declarations (or, absent any imports at all,
// every root-type group), and garbage-collect everything else, along with
// any attribute that ends up unreferenced by a retained group. Per
// Open Question #3 (SPEC_FULL.md §5.3), an explicit exclude_* filter at
// query time (pkg/query) always wins over an imports-driven inclusion;
// this pass only decides structural reachability, not query-time filtering.
func resolveImportsAndGC(st *state, sources []RegistrySource) (map[string]*model.Group, map[string]bool, error) {
	hasAnyImports := false
	patterns := struct{ metrics, events, entities []string }{}
	for _, src := range sources {
		for _, f := range st.sourcesByPath[src.Path] {
			if !f.HasImports {
				continue
			}
			hasAnyImports = true
			patterns.metrics = append(patterns.metrics, f.Imports.Metrics...)
			patterns.events = append(patterns.events, f.Imports.Events...)
			patterns.entities = append(patterns.entities, f.Imports.Entities...)
		}
	}

	// The root registry is the entry point passed to Resolve, not a
	// dependency — manifest.Build's post-order DFS always appends it last
	// to the dependency graph, so it is always the last source here too.
	// Every group authored there survives GC regardless of type (spec.md
	// §8.5): only dependency-registry attribute_group/scope groups are
	// GC-eligible unless an extends reaches them.
	var rootPath string
	if len(sources) > 0 {
		rootPath = sources[len(sources)-1].Path
	}

	retainedGroups := make(map[string]*model.Group)
	for id, g := range st.materialised {
		if st.opts.IncludeUnreferenced {
			retainedGroups[id] = g
			continue
		}
		if !rootTypes[g.Type] {
			if st.extendsUsed[id] || st.groupSource[id] == rootPath {
				retainedGroups[id] = g
			}
			continue
		}
		if !hasAnyImports {
			retainedGroups[id] = g
			continue
		}
		if matchesAny(patternsFor(g.Type, patterns), id) {
			retainedGroups[id] = g
		}
	}

	retainedAttrs := make(map[string]bool)
	if st.opts.IncludeUnreferenced {
		for id := range st.attrDefsByID {
			retainedAttrs[id] = true
		}
	}
	for _, g := range retainedGroups {
		for _, a := range g.Attributes {
			retainedAttrs[a.ID] = true
		}
	}

	return retainedGroups, retainedAttrs, nil
}

func patternsFor(groupType string, patterns struct{ metrics, events, entities []string }) []string {
	switch groupType {
	case model.GroupMetric, model.GroupMetricGroup:
		return patterns.metrics
	case model.GroupEvent:
		return patterns.events
	case model.GroupEntity, model.GroupResource:
		return patterns.entities
	default:
		return nil
	}
}

func matchesAny(patterns []string, id string) bool {
	for _, p := range patterns {
		if model.MatchPattern(p, id) {
			return true
		}
	}
	return false
}
