// Package diag implements the closed set of diagnostic kinds from spec.md
// §7, an accumulating sink passes append to as they run, and a go-pretty
// table renderer for CLI summaries.
package diag

import (
	"fmt"
	"sync"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/conventionforge/forge/pkg/model"
)

// Kind is the closed tagged-union of diagnostic kinds spec.md §7 names.
type Kind string

const (
	KindRegistryLoadError   Kind = "registry_load_error"
	KindParseError          Kind = "parse_error"
	KindManifestError       Kind = "manifest_error"
	KindCyclicDependency    Kind = "cyclic_dependency"
	KindDuplicateID         Kind = "duplicate_id"
	KindUnresolvedReference Kind = "unresolved_reference"
	KindStabilityConflict   Kind = "stability_conflict"
	KindInvariantViolation  Kind = "invariant_violation"
	KindQueryError          Kind = "query_error"
	KindTemplateError       Kind = "template_error"
	KindWriteError          Kind = "write_error"
)

// structural reports whether kind is one of the kinds spec.md §7 says must
// abort the current stage immediately rather than accumulate and continue.
func (k Kind) structural() bool {
	switch k {
	case KindCyclicDependency, KindRegistryLoadError, KindManifestError:
		return true
	default:
		return false
	}
}

// Structural reports whether a diagnostic of this kind should abort the
// stage that produced it rather than be merely accumulated.
func (k Kind) Structural() bool { return k.structural() }

// Diagnostic is a single accumulated finding: a kind, a message, an optional
// source position, and free-form context (attribute id, group id, registry
// path, etc.) for rendering and programmatic inspection alike.
type Diagnostic struct {
	Kind    Kind
	Message string
	Pos     model.Position
	Context map[string]string
}

func (d Diagnostic) String() string {
	if d.Pos.File == "" {
		return fmt.Sprintf("[%s] %s", d.Kind, d.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", d.Kind, d.Pos, d.Message)
}

// Error adapts a Diagnostic to the error interface so resolution passes can
// return it directly, and wraps an optional underlying cause.
type Error struct {
	Diagnostic
	Cause error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Diagnostic, e.Cause)
	}
	return e.Diagnostic.String()
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds a diagnostic Error of the given kind, wrapping cause (which may
// be nil).
func New(kind Kind, pos model.Position, cause error, format string, args ...any) *Error {
	return &Error{
		Diagnostic: Diagnostic{Kind: kind, Message: fmt.Sprintf(format, args...), Pos: pos},
		Cause:      cause,
	}
}

// Sink accumulates diagnostics across a resolution or generation run. Passes
// append to it and continue; only Structural() diagnostics abort a stage
// early (spec.md §4.4, §9 "error accumulation").
type Sink struct {
	mu    sync.Mutex
	items []Diagnostic
}

// Add appends d to the sink.
func (s *Sink) Add(d Diagnostic) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, d)
}

// Addf is a convenience wrapper building a Diagnostic from a kind, position,
// and format string.
func (s *Sink) Addf(kind Kind, pos model.Position, ctx map[string]string, format string, args ...any) {
	s.Add(Diagnostic{Kind: kind, Message: fmt.Sprintf(format, args...), Pos: pos, Context: ctx})
}

// AddErr appends the diagnostic carried by a *Error, if err is one; otherwise
// it wraps err as an InvariantViolation so no diagnostic is silently dropped.
func (s *Sink) AddErr(err error) {
	if err == nil {
		return
	}
	var de *Error
	if ok := asError(err, &de); ok {
		s.Add(de.Diagnostic)
		return
	}
	s.Add(Diagnostic{Kind: KindInvariantViolation, Message: err.Error()})
}

func asError(err error, target **Error) bool {
	for err != nil {
		if de, ok := err.(*Error); ok {
			*target = de
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// Diagnostics returns a snapshot of every diagnostic accumulated so far.
func (s *Sink) Diagnostics() []Diagnostic {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Diagnostic, len(s.items))
	copy(out, s.items)
	return out
}

// HasErrors reports whether any diagnostic has been accumulated. forge check
// uses this to decide its process exit code.
func (s *Sink) HasErrors() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items) > 0
}

// CountByKind tallies accumulated diagnostics by kind, for summary tables.
func (s *Sink) CountByKind() map[Kind]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := make(map[Kind]int)
	for _, d := range s.items {
		counts[d.Kind]++
	}
	return counts
}

// Table renders the sink's contents as a go-pretty table, for the
// `forge check`, `forge resolve` and `forge generate` diagnostic output.
func (s *Sink) Table() string {
	s.mu.Lock()
	items := make([]Diagnostic, len(s.items))
	copy(items, s.items)
	s.mu.Unlock()

	t := table.NewWriter()
	t.AppendHeader(table.Row{"Kind", "Location", "Message"})
	for _, d := range items {
		loc := d.Pos.String()
		if loc == "" {
			loc = "-"
		}
		t.AppendRow(table.Row{string(d.Kind), loc, d.Message})
	}
	return t.Render()
}
