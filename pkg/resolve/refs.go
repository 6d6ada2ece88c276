package resolve

import (
	"fmt"

	"github.com/conventionforge/forge/pkg/diag"
	"github.com/conventionforge/forge/pkg/model"
	"github.com/conventionforge/forge/pkg/registry"
)

type refState int

const (
	refUnvisited refState = iota
	refVisiting
	refVisited
)

// materialiseRefs is Pass 3: replace every `ref:` attribute entry with the
// merged result of its definition and its own override fields. Generalises
// pkg/semconv/registry.go's resolveRef (brief/note favour the ref site if
// non-empty; type/examples/stability/deprecated always come from the
// definition; requirement_level/sampling_relevant always come from the ref
// site) from a single flat registry to the full cross-registry index Pass 1
// built, and adds fixpoint iteration plus cycle detection for the rare case
// of a definition that is itself written as a ref.
func materialiseRefs(st *state) error {
	resolved := make(map[string]*model.Attribute)
	state := make(map[string]refState)
	var chain []string

	var resolveDef func(id string) (*model.Attribute, error)
	resolveDef = func(id string) (*model.Attribute, error) {
		if a, ok := resolved[id]; ok {
			return a, nil
		}
		switch state[id] {
		case refVisiting:
			return nil, fmt.Errorf("resolve: cyclic ref chain: %s -> %s", formatChain(chain), id)
		case refVisited:
			return resolved[id], nil
		}

		def, ok := st.attrDefsByID[id]
		if !ok {
			return nil, nil // unresolved; caller raises UnresolvedReference
		}

		if def.Ref == "" {
			state[id] = refVisited
			resolved[id] = def
			return def, nil
		}

		state[id] = refVisiting
		chain = append(chain, id)
		defer func() { chain = chain[:len(chain)-1] }()

		target, err := resolveDef(def.Ref)
		if err != nil {
			return nil, err
		}
		merged := mergeRef(*def, target)
		state[id] = refVisited
		resolved[id] = &merged
		return &merged, nil
	}

	st.materialised = make(map[string]*model.Group, len(st.expanded))
	for gid, g := range st.expanded {
		out := cloneGroup(g)
		attrs := out.Attributes[:0]
		for _, a := range out.Attributes {
			if a.Ref == "" {
				attrs = append(attrs, a)
				continue
			}
			target, err := resolveDef(a.Ref)
			if err != nil {
				return err
			}
			if target == nil {
				// spec.md §4.4: an unresolvable ref is fatal unless the
				// enclosing attribute is itself marked deprecated-obsoleted,
				// in which case the dangling ref is expected and the
				// attribute is simply dropped rather than surfaced
				// half-resolved (it would otherwise violate the reference-
				// closure property, spec.md §8.4).
				if model.Canonicalize(a.Deprecated).Kind == model.DeprecatedObsoleted {
					continue
				}
				st.sink.Addf(diag.KindUnresolvedReference, a.Source, map[string]string{"group": gid, "ref": a.Ref},
					"attribute ref %q in group %q has no matching definition", a.Ref, gid)
				continue
			}
			merged := mergeRef(a, target)
			attrs = append(attrs, merged)
			st.lineage[gid+"/"+merged.ID] = append(st.lineage[gid+"/"+merged.ID],
				registry.LineageStep{Kind: "ref", FromID: a.Ref, Registry: st.groupSource[gid]})
		}
		out.Attributes = attrs
		st.materialised[gid] = out
	}
	return nil
}

// mergeRef merges a ref-site attribute entry (ref) with its resolved
// definition (def), per pkg/semconv/registry.go's resolveRef: brief/note
// favour the ref site when it supplied its own, non-empty text; type,
// examples, stability, and deprecation always come from the definition;
// requirement_level and sampling_relevant always come from the ref site,
// since those describe how this group uses the attribute, not what the
// attribute is.
func mergeRef(ref model.Attribute, def *model.Attribute) model.Attribute {
	out := *def
	out.ID = def.ID
	out.RequirementLevel = ref.RequirementLevel
	out.SamplingRelevant = ref.SamplingRelevant
	out.Source = ref.Source
	if ref.Brief != "" {
		out.Brief = ref.Brief
	}
	if ref.Note != "" {
		out.Note = ref.Note
	}
	out.Ref = ""
	return out
}
