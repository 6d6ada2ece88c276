package resolve

import (
	"fmt"

	"github.com/conventionforge/forge/pkg/diag"
	"github.com/conventionforge/forge/pkg/model"
	"github.com/conventionforge/forge/pkg/registry"
)

var validSpanKinds = map[string]bool{
	"client": true, "server": true, "internal": true, "producer": true, "consumer": true,
}

// checkInvariants is Pass 7: a final sweep over the assembled Bundle
// checking the structural invariants spec.md §3 requires of a resolved
// registry. Every violation accumulates into st.sink; none of them abort
// resolution at this point, since the bundle itself is already complete —
// a failed check means "do not trust this bundle for codegen", not "this
// pass cannot continue".
func checkInvariants(st *state, bundle *registry.Bundle) {
	seenCanonical := make(map[string]string) // attribute id -> first-seen canonical hash

	for gid, rg := range bundle.Groups {
		// invariant 1: every attribute index a group references refers to a
		// catalog position that exists.
		for _, aidx := range rg.AttributeIDs {
			if bundle.Catalog.At(aidx) == nil {
				st.sink.Addf(diag.KindUnresolvedReference, rg.Source, map[string]string{"group": gid, "attribute_index": fmt.Sprintf("%d", aidx)},
					"group %q references catalog position %d which does not exist", gid, aidx)
			}
		}

		// invariant: a metric group names a recognised instrument kind.
		if rg.Type == model.GroupMetric && rg.Instrument != "" && !model.Instruments[rg.Instrument] {
			st.sink.Addf(diag.KindInvariantViolation, rg.Source, map[string]string{"group": gid},
				"metric group %q declares unrecognised instrument %q", gid, rg.Instrument)
		}
		// invariant: a metric group must name a metric_name.
		if rg.Type == model.GroupMetric && rg.MetricName == "" {
			st.sink.Addf(diag.KindInvariantViolation, rg.Source, map[string]string{"group": gid},
				"metric group %q has no metric_name", gid)
		}

		// invariant: a span group's span_kind, if set, is one of the
		// recognised OpenTelemetry span kinds.
		if rg.Type == model.GroupSpan && rg.SpanKind != "" && !validSpanKinds[rg.SpanKind] {
			st.sink.Addf(diag.KindInvariantViolation, rg.Source, map[string]string{"group": gid},
				"span group %q declares unrecognised span_kind %q", gid, rg.SpanKind)
		}

		// invariant: a span group's referenced events must themselves be
		// retained event groups.
		for _, evt := range rg.Events {
			if _, ok := bundle.Groups[evt]; !ok {
				st.sink.Addf(diag.KindUnresolvedReference, rg.Source, map[string]string{"group": gid, "event": evt},
					"span group %q references event %q which is absent from the resolved registry", gid, evt)
			}
		}

		// invariant: a deprecated attribute must not be marked required —
		// a caller cannot be told to both always set it and that it is
		// going away.
		for _, a := range rg.Attributes {
			if a.Deprecated != nil && a.RequirementLevel.Level == "required" {
				st.sink.Addf(diag.KindInvariantViolation, a.Source, map[string]string{"group": gid, "attribute": a.ID},
					"attribute %q is both deprecated and required", a.ID)
			}

			// invariant 5: a stable attribute must not list enum members
			// whose own stability is explicitly set to something less
			// stable, since a consumer reading the attribute as stable has
			// no signal that a particular value is not.
			if a.Stability == model.StabilityStable {
				for _, m := range a.Type.Members {
					if m.Stability != "" && m.Stability != model.StabilityStable {
						st.sink.Addf(diag.KindInvariantViolation, a.Source, map[string]string{"group": gid, "attribute": a.ID, "member": m.ID},
							"attribute %q is stable but enum member %q is %s", a.ID, m.ID, m.Stability)
					}
				}
			}

			// invariant 6: a deprecated-renamed-to attribute's target must
			// resolve to a known id, unless the target is itself obsoleted.
			if dep := model.Canonicalize(a.Deprecated); dep.Kind == model.DeprecatedRenamedTo {
				st.checkRenamedTo(bundle, a.Source, map[string]string{"group": gid, "attribute": a.ID}, dep.RenamedTo)
			}
		}

		// invariant 6, group form: a group can itself be deprecated-renamed-to
		// another group or attribute id.
		if dep := model.Canonicalize(rg.Deprecated); dep.Kind == model.DeprecatedRenamedTo {
			st.checkRenamedTo(bundle, rg.Source, map[string]string{"group": gid}, dep.RenamedTo)
		}
	}

	// invariant: every catalog attribute has exactly one canonical form;
	// a second, differing canonical hash for the same id crossing registry
	// boundaries is a stability/type conflict, not a simple override.
	for _, attr := range bundle.Catalog.All() {
		if prior, ok := seenCanonical[attr.ID]; ok && prior != attr.CanonicalHash {
			st.sink.Addf(diag.KindStabilityConflict, attr.Source, map[string]string{"attribute": attr.ID},
				"attribute %q has conflicting definitions across registries", attr.ID)
		}
		seenCanonical[attr.ID] = attr.CanonicalHash
	}
}

// checkRenamedTo implements invariant 6: a deprecated-renamed-to target must
// resolve to a known attribute or group id in the fully resolved registry,
// unless the target is itself marked deprecated-obsoleted — in which case
// its absence from the final bundle (Pass 5 GC'd it, or it was never meant
// to survive) is expected rather than a dangling reference. The "itself
// marked obsoleted" check has to reach past the final bundle into the
// pre-GC indexes Pass 1 built, since an obsoleted target is exactly the
// case where the bundle legitimately no longer contains it.
func (st *state) checkRenamedTo(bundle *registry.Bundle, pos model.Position, ctx map[string]string, target string) {
	if _, ok := bundle.Groups[target]; ok {
		return
	}
	if _, ok := bundle.Catalog.Index(target); ok {
		return
	}
	if g, ok := st.groupsByID[target]; ok {
		if model.Canonicalize(g.Deprecated).Kind == model.DeprecatedObsoleted {
			return
		}
	} else if a, ok := st.attrDefsByID[target]; ok {
		if model.Canonicalize(a.Deprecated).Kind == model.DeprecatedObsoleted {
			return
		}
	}
	ctx["renamed_to"] = target
	st.sink.Addf(diag.KindUnresolvedReference, pos, ctx,
		"deprecated renamed_to target %q is not a known attribute or group id", target)
}
