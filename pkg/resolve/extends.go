package resolve

import (
	"fmt"

	"github.com/conventionforge/forge/pkg/model"
)

type extendsState int

const (
	extendsUnvisited extendsState = iota
	extendsVisiting
	extendsVisited
)

// expandExtends is Pass 2: follow each group's extends chain to its root,
// merging ancestor fields into descendants (ancestor first, so a
// descendant's explicitly-set fields always win), and flag cyclic extends
// chains as a structural error. The visiting/visited three-colour DFS
// mirrors pkg/synth/topology.go's detectCycles, generalised from "cycle
// found, abort" to "cycle found, abort resolution" since an extends cycle
// makes field merge order undefined.
func expandExtends(st *state) error {
	st.expanded = make(map[string]*model.Group, len(st.groupsByID))
	state := make(map[string]extendsState)
	var chain []string

	var expand func(id string) (*model.Group, error)
	expand = func(id string) (*model.Group, error) {
		if g, ok := st.expanded[id]; ok {
			return g, nil
		}
		switch state[id] {
		case extendsVisiting:
			return nil, fmt.Errorf("resolve: cyclic extends chain: %s -> %s", formatChain(chain), id)
		case extendsVisited:
			return st.expanded[id], nil
		}

		g, ok := st.groupsByID[id]
		if !ok {
			return nil, fmt.Errorf("resolve: extends chain references unknown group %q", id)
		}

		state[id] = extendsVisiting
		chain = append(chain, id)
		defer func() { chain = chain[:len(chain)-1] }()

		result := cloneGroup(g)

		if g.Extends != "" {
			parent, err := expand(g.Extends)
			if err != nil {
				return nil, err
			}
			mergeExtends(result, parent, g)
			if st.extendsUsed == nil {
				st.extendsUsed = make(map[string]bool)
			}
			st.extendsUsed[g.Extends] = true
		}

		state[id] = extendsVisited
		st.expanded[id] = result
		return result, nil
	}

	for id := range st.groupsByID {
		if _, err := expand(id); err != nil {
			return err
		}
	}
	return nil
}

// cloneGroup makes a shallow value copy of g with its own Attributes slice,
// so merges never mutate the original indexed group.
func cloneGroup(g *model.Group) *model.Group {
	out := *g
	out.Attributes = append([]model.Attribute(nil), g.Attributes...)
	return &out
}

// mergeExtends merges parent's fields into result, which already holds
// child's own (unexpanded) values. Only fields child did not explicitly set
// are overwritten from parent; Attributes are merged by id, with parent's
// attributes ordered first and child's own attributes either appended or,
// if they share an id with a parent attribute, overriding it in place.
func mergeExtends(result, parent, child *model.Group) {
	if child.Brief == "" {
		result.Brief = parent.Brief
	}
	if child.Note == "" {
		result.Note = parent.Note
	}
	if child.Stability == "" {
		result.Stability = parent.Stability
	}
	if child.Deprecated == nil {
		result.Deprecated = parent.Deprecated
	}
	if child.MetricName == "" {
		result.MetricName = parent.MetricName
	}
	if child.Instrument == "" {
		result.Instrument = parent.Instrument
	}
	if child.Unit == "" {
		result.Unit = parent.Unit
	}
	if child.SpanKind == "" {
		result.SpanKind = parent.SpanKind
	}

	byID := make(map[string]int, len(parent.Attributes))
	merged := append([]model.Attribute(nil), parent.Attributes...)
	for i, a := range merged {
		byID[a.ID] = i
	}
	for _, a := range child.Attributes {
		if idx, ok := byID[a.ID]; ok {
			merged[idx] = a
			continue
		}
		byID[a.ID] = len(merged)
		merged = append(merged, a)
	}
	result.Attributes = merged
}

// formatChain renders a chain of group ids for a cycle error message.
func formatChain(chain []string) string {
	out := ""
	for i, c := range chain {
		if i > 0 {
			out += " -> "
		}
		out += c
	}
	return out
}
