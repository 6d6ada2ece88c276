// Package model defines the unresolved semantic convention data model: the
// in-memory shape of a group, attribute, or any-value tree exactly as it is
// authored in YAML, before extends/ref/imports have been applied.
package model

import "fmt"

// Stability is the closed set of stability levels a group, attribute, or
// enum member may declare. Ordering matters: Less stable values sort after
// more stable ones, which Pass 4 and the invariant checks rely on.
type Stability string

const (
	StabilityStable            Stability = "stable"
	StabilityDevelopment        Stability = "development"
	StabilityAlpha             Stability = "alpha"
	StabilityBeta              Stability = "beta"
	StabilityReleaseCandidate  Stability = "release_candidate"
	StabilityDeprecated        Stability = "deprecated"
)

// rank orders stability from most to least stable; lower is more stable.
var rank = map[Stability]int{
	StabilityStable:           0,
	StabilityReleaseCandidate: 1,
	StabilityBeta:             2,
	StabilityAlpha:            3,
	StabilityDevelopment:      4,
	StabilityDeprecated:       5,
}

// Valid reports whether s is one of the closed set of known stability values.
// An empty Stability is considered valid (unspecified).
func (s Stability) Valid() bool {
	if s == "" {
		return true
	}
	_, ok := rank[s]
	return ok
}

// LessStableThan reports whether s is strictly less stable than other. Both
// must be valid, non-empty values; callers are expected to have checked
// Valid() already, as this is used deep in invariant checking (§3 invariant 5).
func (s Stability) LessStableThan(other Stability) bool {
	return rank[s] > rank[other]
}

// DeprecatedKind is the closed tagged-union of deprecation reasons a group or
// attribute may carry (spec.md §3, Group.Deprecated).
type DeprecatedKind string

const (
	DeprecatedRenamedTo   DeprecatedKind = "renamed_to"
	DeprecatedObsoleted   DeprecatedKind = "obsoleted"
	DeprecatedUncategorized DeprecatedKind = "uncategorized"
)

// Deprecated is the canonical tagged-variant form of a deprecation notice.
// Raw YAML may spell this as a bare boolean/string (legacy form) or as a
// structured mapping; Canonicalize turns either into this shape wherever
// pkg/resolve or pkg/query reads a notice. RawLegacy records whether the source used the legacy form,
// purely for provenance/diagnostics — it carries no resolution semantics.
type Deprecated struct {
	Kind      DeprecatedKind
	RenamedTo string // populated only when Kind == DeprecatedRenamedTo
	Note      string
	RawLegacy bool
}

// rawDeprecated is the wire shape accepted from YAML: either a bare truthy
// scalar (legacy), a string reason, or a mapping with reason/renamed_to/note.
type rawDeprecated struct {
	scalarBool   *bool
	scalarString string
	Reason       string `yaml:"reason"`
	RenamedTo    string `yaml:"renamed_to"`
	Note         string `yaml:"note"`
	isMapping    bool
}

// UnmarshalYAML accepts the legacy bare-truthy form, a bare reason string, or
// a structured mapping, and leaves the raw shape for Canonicalize.
func (r *rawDeprecated) UnmarshalYAML(unmarshal func(any) error) error {
	var b bool
	if err := unmarshal(&b); err == nil {
		r.scalarBool = &b
		return nil
	}
	var s string
	if err := unmarshal(&s); err == nil {
		r.scalarString = s
		return nil
	}
	type plain struct {
		Reason    string `yaml:"reason"`
		RenamedTo string `yaml:"renamed_to"`
		Note      string `yaml:"note"`
	}
	var p plain
	if err := unmarshal(&p); err != nil {
		return fmt.Errorf("deprecated: expected bool, string, or mapping: %w", err)
	}
	r.Reason, r.RenamedTo, r.Note = p.Reason, p.RenamedTo, p.Note
	r.isMapping = true
	return nil
}

// Canonicalize converts a raw deprecated notice into its tagged-variant form.
// A nil rawDeprecated-bearing field (not deprecated at all) is represented by
// the caller leaving *Deprecated nil — this method is only ever invoked on a
// non-nil wire value.
func (r *rawDeprecated) canonicalize() Deprecated {
	switch {
	case r.scalarBool != nil:
		return Deprecated{Kind: DeprecatedUncategorized, RawLegacy: true}
	case r.scalarString != "":
		return Deprecated{Kind: DeprecatedUncategorized, Note: r.scalarString, RawLegacy: true}
	case r.RenamedTo != "":
		return Deprecated{Kind: DeprecatedRenamedTo, RenamedTo: r.RenamedTo, Note: r.Note}
	case r.Reason == "obsoleted":
		return Deprecated{Kind: DeprecatedObsoleted, Note: r.Note}
	default:
		return Deprecated{Kind: DeprecatedUncategorized, Note: r.Note}
	}
}

// RawDeprecated is a thin exported alias used by pkg/specparse so the
// resolver can canonicalise it via Canonicalize without specparse depending on
// pkg/resolve.
type RawDeprecated = rawDeprecated

// Canonicalize exposes canonicalize to pkg/resolve.
func Canonicalize(r *RawDeprecated) Deprecated {
	if r == nil {
		return Deprecated{}
	}
	return r.canonicalize()
}

// RequirementLevel is the requirement level of an attribute within a group.
// For simple levels (required, recommended, opt_in) Level holds the value.
// For conditional levels, Level is "conditionally_required" and Explanation
// holds the human-readable condition text.
type RequirementLevel struct {
	Level       string
	Explanation string
}

// UnmarshalYAML handles both scalar levels and conditional requirement mappings.
func (r *RequirementLevel) UnmarshalYAML(unmarshal func(any) error) error {
	var scalar string
	if err := unmarshal(&scalar); err == nil {
		r.Level = scalar
		return nil
	}
	var mapping map[string]string
	if err := unmarshal(&mapping); err != nil {
		return fmt.Errorf("requirement_level: expected string or mapping: %w", err)
	}
	for k, v := range mapping {
		r.Level, r.Explanation = k, v
		break
	}
	return nil
}

// AttributeType represents the type of an attribute. For scalar types
// (string, int, double, boolean, and their "[]" array forms) Value holds the
// type name. For enum types Value is "enum" and Members is populated. For
// template types Value is "template[<scalar>]".
type AttributeType struct {
	Value   string
	Members []EnumMember
}

// UnmarshalYAML handles both scalar type strings and enum definitions with members.
func (t *AttributeType) UnmarshalYAML(unmarshal func(any) error) error {
	var scalar string
	if err := unmarshal(&scalar); err == nil {
		t.Value = scalar
		return nil
	}
	var mapping struct {
		Members []EnumMember `yaml:"members"`
	}
	if err := unmarshal(&mapping); err != nil {
		return fmt.Errorf("attribute type: expected string or mapping with members: %w", err)
	}
	t.Value = "enum"
	t.Members = mapping.Members
	return nil
}

// EnumMember is a single member of an enum attribute type.
type EnumMember struct {
	ID         string         `yaml:"id"`
	Value      any            `yaml:"value"`
	Brief      string         `yaml:"brief"`
	Stability  Stability      `yaml:"stability"`
	Note       string         `yaml:"note"`
	Deprecated *RawDeprecated `yaml:"deprecated"`
}

// Examples holds example values for an attribute. The YAML may contain a
// scalar, a flat array, or (for array-typed attributes) nested arrays.
type Examples struct {
	Values []any
}

// UnmarshalYAML handles scalar values and sequences of examples.
func (e *Examples) UnmarshalYAML(unmarshal func(any) error) error {
	var seq []any
	if err := unmarshal(&seq); err == nil {
		e.Values = seq
		return nil
	}
	var scalar any
	if err := unmarshal(&scalar); err != nil {
		return fmt.Errorf("examples: expected scalar or sequence: %w", err)
	}
	if scalar == nil {
		e.Values = nil
		return nil
	}
	e.Values = []any{scalar}
	return nil
}

// AnyValueKind is the closed tagged-union discriminator for Event.Body trees.
type AnyValueKind string

const (
	AnyValueString  AnyValueKind = "string"
	AnyValueInt     AnyValueKind = "int"
	AnyValueDouble  AnyValueKind = "double"
	AnyValueBoolean AnyValueKind = "boolean"
	AnyValueArray   AnyValueKind = "array" // string[], int[], ...; ElemKind holds the element kind
	AnyValueMap     AnyValueKind = "map"
	AnyValueEnum    AnyValueKind = "enum"
	AnyValueUndefined AnyValueKind = "undefined"
)

// AnyValue is the recursive any-value tree used by Event.Body (spec.md §3).
type AnyValue struct {
	Kind     AnyValueKind
	ElemKind AnyValueKind  // populated when Kind == AnyValueArray
	Fields   []NamedAnyValue // populated when Kind == AnyValueMap
	Members  []EnumMember    // populated when Kind == AnyValueEnum
	Requirement RequirementLevel
	Brief    string
	Note     string
	Stability Stability
}

// NamedAnyValue pairs a field name with its AnyValue definition inside a map.
type NamedAnyValue struct {
	ID    string
	Value AnyValue
}

// rawAnyValue mirrors the YAML shape of an AnyValue node before conversion.
type rawAnyValue struct {
	ID          string         `yaml:"id"`
	Type        string         `yaml:"type"`
	Brief       string         `yaml:"brief"`
	Note        string         `yaml:"note"`
	Stability   Stability      `yaml:"stability"`
	Requirement RequirementLevel `yaml:"requirement_level"`
	Fields      []rawAnyValue  `yaml:"fields"`
	Members     []EnumMember   `yaml:"members"`
}

// ToAnyValue converts the raw wire shape into the canonical AnyValue tree.
func (r rawAnyValue) ToAnyValue() AnyValue {
	av := AnyValue{
		Brief:       r.Brief,
		Note:        r.Note,
		Stability:   r.Stability,
		Requirement: r.Requirement,
	}
	switch {
	case len(r.Members) > 0:
		av.Kind = AnyValueEnum
		av.Members = r.Members
	case len(r.Fields) > 0 || r.Type == "map":
		av.Kind = AnyValueMap
		for _, f := range r.Fields {
			av.Fields = append(av.Fields, NamedAnyValue{ID: f.ID, Value: f.ToAnyValue()})
		}
	case r.Type == "":
		av.Kind = AnyValueUndefined
	default:
		if elem, ok := arrayElemKind(r.Type); ok {
			av.Kind = AnyValueArray
			av.ElemKind = elem
		} else {
			av.Kind = AnyValueKind(r.Type)
		}
	}
	return av
}

func arrayElemKind(t string) (AnyValueKind, bool) {
	const suffix = "[]"
	if len(t) > len(suffix) && t[len(t)-len(suffix):] == suffix {
		return AnyValueKind(t[:len(t)-len(suffix)]), true
	}
	return "", false
}

// Attribute is a single attribute definition or reference, as it appears
// inline within a group's attributes list.
type Attribute struct {
	ID               string            `yaml:"id"`
	Type             AttributeType     `yaml:"type"`
	Brief            string            `yaml:"brief"`
	Note             string            `yaml:"note"`
	Stability        Stability         `yaml:"stability"`
	Examples         Examples          `yaml:"examples"`
	Deprecated       *RawDeprecated    `yaml:"deprecated"`
	Ref              string            `yaml:"ref"`
	RequirementLevel RequirementLevel  `yaml:"requirement_level"`
	SamplingRelevant bool              `yaml:"sampling_relevant"`

	// Source carries provenance for diagnostics; populated by pkg/specparse.
	Source Position `yaml:"-"`

	// setFields records which YAML keys were explicitly present on this
	// attribute entry, used by Pass 2 (extends override semantics) and Pass 3
	// (ref overlay semantics) to distinguish "absent" from "zero value".
	setFields map[string]bool `yaml:"-"`
}

// IsSet reports whether field was explicitly present in the source YAML for
// this attribute entry.
func (a *Attribute) IsSet(field string) bool {
	return a.setFields[field]
}

// MarkSet records that field was explicitly present; used by pkg/specparse
// while decoding, since yaml.v3 does not expose per-field presence directly.
func (a *Attribute) MarkSet(field string) {
	if a.setFields == nil {
		a.setFields = make(map[string]bool)
	}
	a.setFields[field] = true
}

// EventDef describes the type-specific fields of an event group (spec.md §3).
type EventDef struct {
	Name string    `yaml:"name"`
	Body *AnyValue `yaml:"-"`
}

// Position is a source location for diagnostics: file path plus 1-based
// line/column, matching the (file, line, column) tuple spec.md §6 requires
// on every diagnostic.
type Position struct {
	File   string
	Line   int
	Column int
}

func (p Position) String() string {
	if p.File == "" {
		return ""
	}
	return fmt.Sprintf("%s:%d:%d", p.File, p.Line, p.Column)
}

// Group is an unresolved semantic convention group: an attribute_group,
// span, event, metric, metric_group, resource, entity, or scope.
type Group struct {
	ID          string      `yaml:"id"`
	Type        string      `yaml:"type"`
	Brief       string      `yaml:"brief"`
	Note        string      `yaml:"note"`
	Stability   Stability   `yaml:"stability"`
	Deprecated  *RawDeprecated `yaml:"deprecated"`
	Extends     string      `yaml:"extends"`
	Attributes  []Attribute `yaml:"attributes"`

	// Metric-specific.
	MetricName string `yaml:"metric_name"`
	Instrument string `yaml:"instrument"`
	Unit       string `yaml:"unit"`

	// Span-specific.
	SpanKind string   `yaml:"span_kind"`
	Events   []string `yaml:"events"`

	// Event-specific.
	Name string    `yaml:"name"`
	Body *AnyValue `yaml:"-"`

	// Source carries the file this group was parsed from.
	Source Position `yaml:"-"`

	// Registry is the URL/path of the registry this group was loaded as part
	// of. No pipeline stage sets it; the owning registry of a resolved group
	// is recorded in registry.Bundle.RegistryOf instead.
	Registry string `yaml:"-"`
}

// GroupType is the closed set of recognised group type discriminators.
const (
	GroupAttributeGroup = "attribute_group"
	GroupSpan           = "span"
	GroupEvent          = "event"
	GroupMetric         = "metric"
	GroupMetricGroup    = "metric_group"
	GroupResource       = "resource"
	GroupEntity         = "entity"
	GroupScope          = "scope"
)

// ValidGroupTypes is used by pkg/specparse to reject unknown group types.
var ValidGroupTypes = map[string]bool{
	GroupAttributeGroup: true,
	GroupSpan:           true,
	GroupEvent:          true,
	GroupMetric:         true,
	GroupMetricGroup:    true,
	GroupResource:       true,
	GroupEntity:         true,
	GroupScope:          true,
}

// Instruments is the closed set of recognised metric instrument kinds.
var Instruments = map[string]bool{
	"counter":          true,
	"up_down_counter":  true,
	"gauge":            true,
	"histogram":        true,
}

// ManifestDependency is one entry of a registry_manifest.yaml dependencies list.
type ManifestDependency struct {
	Name         string `yaml:"name"`
	RegistryPath string `yaml:"registry_path"`
}

// Manifest is the parsed form of a registry_manifest.yaml file (spec.md §6).
type Manifest struct {
	Name           string                `yaml:"name"`
	Version        string                `yaml:"version"`
	RepositoryURL  string                `yaml:"repository_url"`
	Dependencies   []ManifestDependency  `yaml:"dependencies"`

	// Source registry path this manifest was loaded from; not part of the
	// wire format, populated by pkg/manifest.
	SourcePath string `yaml:"-"`
}

// ImportDeclaration is a per-source-file imports block (spec.md §3): patterns
// are exact names or a namespace followed by a wildcard ("aws.*").
type ImportDeclaration struct {
	Metrics  []string `yaml:"metrics"`
	Events   []string `yaml:"events"`
	Entities []string `yaml:"entities"`
}

// MatchPattern reports whether id matches an imports pattern: either an exact
// match, or (if pattern ends in ".*") a namespace-prefix wildcard match.
func MatchPattern(pattern, id string) bool {
	const wildcard = ".*"
	if len(pattern) >= len(wildcard) && pattern[len(pattern)-len(wildcard):] == wildcard {
		prefix := pattern[:len(pattern)-len(wildcard)+1] // keep trailing "."
		return len(id) > len(prefix) && id[:len(prefix)] == prefix
	}
	return pattern == id
}
