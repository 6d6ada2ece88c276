// Package resolve implements C4: the seven-pass algorithm that turns a set
// of parsed, unresolved registries (pkg/specparse output, ordered
// base-registry-first by pkg/manifest) into the resolved registry.Bundle
// C6 and C8 consume.
//
// The seven passes run in a fixed order against shared, mutable indexes:
//
//  1. identifier indexing       (resolve.go: indexIdentifiers)
//  2. extends expansion         (extends.go)
//  3. ref materialisation       (refs.go)
//  4. deprecation/stability normalisation (resolve.go: normalizeStability)
//  5. import resolution & GC    (imports.go)
//  6. catalog construction      (resolve.go: buildCatalog)
//  7. invariant checks          (invariants.go)
//
// Passes accumulate diagnostics into the supplied diag.Sink and keep going;
// only a cyclic extends/ref chain or an extends naming an unknown group
// aborts the run early, returned as an error from Resolve, matching
// spec.md §4.4/§9's error-accumulation policy.
package resolve

import (
	"fmt"
	"sort"

	"github.com/conventionforge/forge/pkg/diag"
	"github.com/conventionforge/forge/pkg/model"
	"github.com/conventionforge/forge/pkg/registry"
	"github.com/conventionforge/forge/pkg/specparse"
)

// RegistrySource is one registry's worth of parsed files, in the position
// pkg/manifest assigned it within the overall dependency order.
type RegistrySource struct {
	Path    string
	Files   []specparse.ParsedFile
}

// Options configures resolution behaviour not implied by the sources
// themselves.
type Options struct {
	// IncludeUnreferenced keeps groups/attributes that Pass 5 would
	// otherwise garbage-collect for not being reachable from any root
	// import. Named in spec.md §4.4 Pass 5 / §8.5, surfaced as
	// --include-unreferenced (SPEC_FULL.md §4).
	IncludeUnreferenced bool
}

// state carries the mutable indexes passes 1-6 build up and read from.
type state struct {
	opts Options
	sink *diag.Sink

	// Pass 1 output.
	groupsByID   map[string]*model.Group
	groupSource  map[string]string // group id -> owning registry path
	attrDefsByID map[string]*model.Attribute

	// Pass 2 output: groups after extends has been fully expanded.
	expanded map[string]*model.Group

	// Pass 3 output: groups after every ref attribute has been replaced
	// with its materialised (merged) form.
	materialised map[string]*model.Group

	// Pass 3 lineage, keyed by "<groupID>/<attrID>".
	lineage map[string]registry.Lineage

	// sourcesByPath lets Pass 5 recover each registry's import declarations.
	sourcesByPath map[string][]specparse.ParsedFile

	// extendsUsed records every group id that served as some other group's
	// extends target, so Pass 5 can retain attribute_group/scope groups
	// that exist only to be extended even when nothing imports them
	// directly.
	extendsUsed map[string]bool
}

// Resolve runs all seven passes over sources, which must already be in
// reverse-topological (base-registry-first) order as produced by
// manifest.Graph.Order.
func Resolve(sources []RegistrySource, sink *diag.Sink, opts Options) (*registry.Bundle, error) {
	st := &state{
		opts:          opts,
		sink:          sink,
		groupsByID:    make(map[string]*model.Group),
		groupSource:   make(map[string]string),
		attrDefsByID:  make(map[string]*model.Attribute),
		sourcesByPath: make(map[string][]specparse.ParsedFile),
		lineage:       make(map[string]registry.Lineage),
	}

	indexIdentifiers(st, sources)

	if err := expandExtends(st); err != nil {
		return nil, err
	}

	if err := materialiseRefs(st); err != nil {
		return nil, err
	}

	normalizeStability(st)

	retainedGroups, retainedAttrs, err := resolveImportsAndGC(st, sources)
	if err != nil {
		return nil, err
	}

	bundle := buildCatalog(st, retainedGroups, retainedAttrs)

	checkInvariants(st, bundle)

	return bundle, nil
}

// indexIdentifiers is Pass 1: index every group by id and every inline
// attribute definition by id, across all registries. Sources are walked in
// the order given (base-first); a later registry's definition of the same
// id replaces an earlier one (Open Question #2, SPEC_FULL.md §5.2),
// generalising pkg/semconv/registry.go's buildRegistry two-pass indexing
// from one registry to a DAG of them.
func indexIdentifiers(st *state, sources []RegistrySource) {
	for _, src := range sources {
		st.sourcesByPath[src.Path] = src.Files
		for _, f := range src.Files {
			for i := range f.Groups {
				g := &f.Groups[i]
				if _, exists := st.groupsByID[g.ID]; exists {
					st.sink.Addf(diag.KindDuplicateID, g.Source, map[string]string{"group": g.ID},
						"group id %q redefined in %s (replacing definition from %s)",
						g.ID, src.Path, st.groupSource[g.ID])
				}
				st.groupsByID[g.ID] = g
				st.groupSource[g.ID] = src.Path

				for j := range g.Attributes {
					a := &g.Attributes[j]
					if a.Ref != "" {
						continue // ref entries are materialised in Pass 3, not indexed as definitions
					}
					if a.ID == "" {
						continue
					}
					st.attrDefsByID[a.ID] = a
				}
			}
		}
	}
}

// normalizeStability is Pass 4: report unrecognised stability values and
// flag StabilityConflict where a stable group directly defines an attribute
// that is less than stable and not deprecated.
func normalizeStability(st *state) {
	for id, g := range st.materialised {
		if g.Deprecated != nil {
			// The canonical form is not stored: Deprecated keeps its raw
			// wire form, and readers call model.Canonicalize themselves.
			_ = model.Canonicalize(g.Deprecated)
		}
		if !g.Stability.Valid() {
			st.sink.Addf(diag.KindInvariantViolation, g.Source, map[string]string{"group": id},
				"group %q has unrecognised stability %q", id, g.Stability)
		}
		for i := range g.Attributes {
			a := &g.Attributes[i]
			if a.Deprecated != nil {
				_ = model.Canonicalize(a.Deprecated)
			}
			if !a.Stability.Valid() {
				st.sink.Addf(diag.KindInvariantViolation, a.Source, map[string]string{"group": id, "attribute": a.ID},
					"attribute %q has unrecognised stability %q", a.ID, a.Stability)
				continue
			}
			// A stable group promises every attribute it directly defines
			// is itself usable at stable quality; an experimental attribute
			// living in a stable group (and not itself deprecated) breaks
			// that promise.
			if g.Stability == model.StabilityStable && a.Stability != "" &&
				a.Stability != model.StabilityStable && a.Deprecated == nil {
				st.sink.Addf(diag.KindStabilityConflict, a.Source, map[string]string{"group": id, "attribute": a.ID},
					"attribute %q is %s but its group %q is stable", a.ID, a.Stability, id)
			}
		}
	}
}

// buildCatalog is Pass 6: deduplicate resolved attributes by canonical form
// and assemble the final Bundle. Groups are visited in sorted id order, so
// catalog positions and GroupOrder are the same on every run.
func buildCatalog(st *state, retainedGroups map[string]*model.Group, retainedAttrs map[string]bool) *registry.Bundle {
	bundle := registry.NewBundle()

	ids := make([]string, 0, len(retainedGroups))
	for id := range retainedGroups {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		g := retainedGroups[id]
		rg := &registry.ResolvedGroup{Group: *g}
		for _, a := range g.Attributes {
			if !retainedAttrs[a.ID] {
				continue
			}
			canonical := canonicalHash(a)
			idx, exists := bundle.Catalog.Index(a.ID)
			if !exists || bundle.Catalog.At(idx).CanonicalHash != canonical {
				idx = bundle.Catalog.Put(&registry.ResolvedAttribute{
					Attribute:     a,
					CanonicalHash: canonical,
					Lineage:       st.lineage[id+"/"+a.ID],
				})
			}
			rg.AttributeIDs = append(rg.AttributeIDs, idx)
		}
		bundle.AddGroup(rg, st.groupSource[id])
	}

	return bundle
}

// canonicalHash computes the dedup key Pass 6 uses to decide whether two
// attribute definitions (possibly from different registries) describe the
// same canonical attribute: id, type, requirement level and stability must
// agree.
func canonicalHash(a model.Attribute) string {
	return fmt.Sprintf("%s|%s|%s|%s", a.ID, a.Type.Value, a.RequirementLevel.Level, a.Stability)
}
