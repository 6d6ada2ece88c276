// Package registry defines C5, the resolved output of the C4 resolution
// pipeline: a deduplicated attribute Catalog, fully-merged ResolvedGroups,
// optional Lineage records, and the Bundle that ties a resolution run
// together for the query engine and generation orchestrator to consume.
package registry

import (
	"github.com/conventionforge/forge/pkg/model"
)

// LineageStep records one hop a definition travelled through on its way
// into the final catalog: an extends merge, a ref materialisation, or an
// import across a registry boundary.
type LineageStep struct {
	Kind     string // "extends", "ref", "import"
	FromID   string // the group/attribute id this step came from
	Registry string // the registry path the step originated in
}

// Lineage is the ordered chain of steps that produced a resolved attribute
// or group, root-cause first. pkg/resolve records only "ref" steps, on
// attributes materialised from a ref, and leaves ResolvedGroup.Lineage
// empty; cmd/forge clears attribute lineage unless --lineage is given.
type Lineage []LineageStep

// ResolvedAttribute is the canonical, fully-merged form of an attribute
// after Pass 2 (extends), Pass 3 (ref), and Pass 4 (stability/deprecation
// normalisation) have all run. CanonicalHash is the dedup key Pass 6 uses.
type ResolvedAttribute struct {
	model.Attribute
	CanonicalHash string
	Lineage       Lineage
}

// ResolvedGroup is a group after all seven passes, with its Attributes
// replaced by the stable numeric catalog positions of its resolved
// attributes (spec.md §3: "Each catalog entry carries a stable numeric
// position used as the sole way to reference it from groups") rather than
// inline definitions or id strings.
type ResolvedGroup struct {
	model.Group
	AttributeIDs []int
	Lineage      Lineage
}

// Catalog is the deduplicated, ordered set of resolved attributes produced
// by Pass 6. A catalog position is assigned once, on first insertion, and
// never changes thereafter — it is the sole handle groups use to reference
// an entry (spec.md §3, Invariant 1). Order is insertion order, which
// Pass 6's canonical-form dedup keys off of for determinism (spec.md §8.1).
type Catalog struct {
	byID    map[string]int // attribute id -> stable catalog position
	entries []*ResolvedAttribute
}

// NewCatalog returns an empty Catalog.
func NewCatalog() *Catalog {
	return &Catalog{byID: make(map[string]int)}
}

// Put inserts or replaces the attribute at a.ID and returns its stable
// catalog position. Replacing an existing entry keeps its original
// position (Open Question #2: last write wins on content, but the id's
// position reflects first appearance in resolution order), matching the
// teacher's Merge() precedent in pkg/semconv/registry.go where later
// registries override in place.
func (c *Catalog) Put(a *ResolvedAttribute) int {
	if idx, exists := c.byID[a.ID]; exists {
		c.entries[idx] = a
		return idx
	}
	idx := len(c.entries)
	c.entries = append(c.entries, a)
	c.byID[a.ID] = idx
	return idx
}

// Index returns the stable catalog position for id, and whether it exists.
func (c *Catalog) Index(id string) (int, bool) {
	idx, ok := c.byID[id]
	return idx, ok
}

// At returns the resolved attribute at catalog position idx, or nil if idx
// is out of range (Invariant 1 violations surface this as nil rather than
// panicking, so invariant checks can report them as diagnostics).
func (c *Catalog) At(idx int) *ResolvedAttribute {
	if idx < 0 || idx >= len(c.entries) {
		return nil
	}
	return c.entries[idx]
}

// Len returns the number of distinct attributes in the catalog.
func (c *Catalog) Len() int { return len(c.entries) }

// All returns every resolved attribute in catalog-position order.
func (c *Catalog) All() []*ResolvedAttribute {
	out := make([]*ResolvedAttribute, len(c.entries))
	copy(out, c.entries)
	return out
}

// Bundle is the complete output of a resolution run: the attribute
// catalog, every resolved group keyed by id, and the group ids that came
// from each source registry (for lineage and for C6's registry-scoped
// queries).
type Bundle struct {
	Catalog       *Catalog
	Groups        map[string]*ResolvedGroup
	GroupOrder    []string
	RegistryOf    map[string]string // group id -> owning registry path
}

// NewBundle returns an empty Bundle ready for C4 to populate.
func NewBundle() *Bundle {
	return &Bundle{
		Catalog:    NewCatalog(),
		Groups:     make(map[string]*ResolvedGroup),
		RegistryOf: make(map[string]string),
	}
}

// AddGroup inserts or replaces a resolved group, recording its registry of
// origin and its position in GroupOrder (first appearance wins position,
// content is replaced — mirrors Catalog.Put).
func (b *Bundle) AddGroup(g *ResolvedGroup, registryPath string) {
	if _, exists := b.Groups[g.ID]; !exists {
		b.GroupOrder = append(b.GroupOrder, g.ID)
	}
	b.Groups[g.ID] = g
	b.RegistryOf[g.ID] = registryPath
}

// GroupsByType returns every resolved group of the given type, in
// GroupOrder.
func (b *Bundle) GroupsByType(groupType string) []*ResolvedGroup {
	var out []*ResolvedGroup
	for _, id := range b.GroupOrder {
		if g := b.Groups[id]; g.Type == groupType {
			out = append(out, g)
		}
	}
	return out
}
