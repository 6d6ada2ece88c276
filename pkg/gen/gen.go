// Package gen implements C8, the generation orchestrator: for each
// configured binding it evaluates a query against the resolved registry,
// renders a template once (single mode) or once per element (each mode),
// computes the output path, and writes the result atomically. Independent
// bindings and independent each-mode elements run concurrently, grounded on
// the bounded-worker-pool style errgroup.SetLimit usage in the retrieval
// pack's oci-mirror tooling rather than the teacher's unbounded
// sync.WaitGroup shutdown fan-out (spec.md §5 requires a worker pool whose
// size is configurable, not "however many items exist").
package gen

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/conventionforge/forge/pkg/diag"
	"github.com/conventionforge/forge/pkg/model"
	"github.com/conventionforge/forge/pkg/query"
	"github.com/conventionforge/forge/pkg/registry"
	"github.com/conventionforge/forge/pkg/tmplhost"
)

// ApplicationMode is a binding's evaluation mode (spec.md §4.7).
type ApplicationMode string

const (
	ModeSingle ApplicationMode = "single"
	ModeEach   ApplicationMode = "each"
)

// Binding is one `{template, query, application_mode, file_name, params}`
// entry from a target's `templates` list (spec.md §6).
type Binding struct {
	Name            string // for diagnostics only
	TemplatePath    string
	TemplateSource  string
	Query           string
	ApplicationMode ApplicationMode
	FileNameTemplate string
	Params          map[string]any
}

// Options configures an orchestrator run.
type Options struct {
	OutputDir   string
	Concurrency int // worker pool size; 0 means runtime.NumCPU()
}

// Orchestrator runs C8 over a resolved Bundle using a Host to render.
type Orchestrator struct {
	bundle *registry.Bundle
	host   *tmplhost.Host
	opts   Options
	sink   *diag.Sink
	runID  string
}

// New returns an Orchestrator bound to bundle and host. Each Orchestrator
// carries a unique run ID so that diagnostics from concurrent forge
// invocations sharing a sink (e.g. multiple targets in one `forge generate`)
// can be told apart.
func New(bundle *registry.Bundle, host *tmplhost.Host, sink *diag.Sink, opts Options) *Orchestrator {
	return &Orchestrator{bundle: bundle, host: host, opts: opts, sink: sink, runID: uuid.New().String()}
}

// RunID identifies this orchestrator's generation run, for correlating its
// diagnostics and written-file manifest with logs from the same invocation.
func (o *Orchestrator) RunID() string {
	return o.runID
}

// WrittenFile records one write Run performed, for callers that want a
// manifest of generated output (tests, the `forge generate` summary lines).
type WrittenFile struct {
	Binding string
	Path    string
}

// Run evaluates every binding and writes its output under opts.OutputDir.
// A path collision between two bindings (or two elements of the same `each`
// binding) is recorded in the sink as a WriteError and the later entry is
// left out of the returned list; the run itself continues. Collisions are
// detected only after both files have been written, so the file on disk
// holds whichever write finished last.
func (o *Orchestrator) Run(ctx context.Context, bindings []Binding, globalParams map[string]any) ([]WrittenFile, error) {
	g, gctx := errgroup.WithContext(ctx)
	limit := o.opts.Concurrency
	if limit <= 0 {
		limit = runtime.NumCPU()
	}
	g.SetLimit(limit)

	var mu sync.Mutex
	var written []WrittenFile
	seen := make(map[string]string) // path -> binding name, for collision detection

	for _, b := range bindings {
		b := b
		g.Go(func() error {
			files, err := o.runBinding(gctx, b, globalParams)
			if err != nil {
				o.sink.AddErr(fmt.Errorf("run %s: binding %s: %w", o.runID, b.Name, err))
				return nil // accumulate, don't abort the whole run on one binding's failure
			}
			mu.Lock()
			defer mu.Unlock()
			for _, f := range files {
				if owner, exists := seen[f.Path]; exists {
					o.sink.Addf(diag.KindWriteError, model.Position{}, nil, "output path %q written by both %q and %q", f.Path, owner, f.Binding)
					continue
				}
				seen[f.Path] = f.Binding
				written = append(written, f)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(written, func(i, j int) bool { return written[i].Path < written[j].Path })
	return written, nil
}

// runBinding evaluates one binding end to end, parallelising each-mode
// elements with their own bounded worker group.
func (o *Orchestrator) runBinding(ctx context.Context, b Binding, globalParams map[string]any) ([]WrittenFile, error) {
	value, err := o.evalQuery(b.Query)
	if err != nil {
		return nil, fmt.Errorf("evaluating query: %w", err)
	}

	params := mergeParams(globalParams, b.Params)

	switch b.ApplicationMode {
	case ModeEach:
		return o.runEach(ctx, b, value, params)
	default:
		return o.runSingle(b, value, params)
	}
}

func (o *Orchestrator) runSingle(b Binding, ctx any, params map[string]any) ([]WrittenFile, error) {
	res, err := o.host.Render(b.TemplatePath, b.TemplateSource, ctx, params)
	if err != nil {
		return nil, err
	}
	path, err := o.resolvePath(b, res, ctx, params)
	if err != nil {
		return nil, err
	}
	if err := writeAtomic(filepath.Join(o.opts.OutputDir, path), res.Body); err != nil {
		return nil, err
	}
	return []WrittenFile{{Binding: b.Name, Path: path}}, nil
}

func (o *Orchestrator) runEach(ctx context.Context, b Binding, value any, params map[string]any) ([]WrittenFile, error) {
	elements, ok := value.([]any)
	if !ok {
		return nil, fmt.Errorf("application_mode \"each\" requires an array result, got %T", value)
	}

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(o.opts.Concurrency)
	if o.opts.Concurrency <= 0 {
		g.SetLimit(runtime.NumCPU())
	}

	var mu sync.Mutex
	var out []WrittenFile

	for _, el := range elements {
		el := el
		g.Go(func() error {
			res, err := o.host.Render(b.TemplatePath, b.TemplateSource, el, params)
			if err != nil {
				return err
			}
			path, err := o.resolvePath(b, res, el, params)
			if err != nil {
				return err
			}
			if err := writeAtomic(filepath.Join(o.opts.OutputDir, path), res.Body); err != nil {
				return err
			}
			mu.Lock()
			out = append(out, WrittenFile{Binding: b.Name, Path: path})
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// resolvePath implements spec.md §4.7 step 4's override precedence:
// template.set_file_name > the binding's file_name template > the
// template's source basename.
func (o *Orchestrator) resolvePath(b Binding, res tmplhost.Result, ctx any, params map[string]any) (string, error) {
	if res.HasOverride {
		return res.FileNameOverride, nil
	}
	if b.FileNameTemplate != "" {
		nameRes, err := o.host.Render(b.Name+":file_name", b.FileNameTemplate, ctx, params)
		if err != nil {
			return "", fmt.Errorf("rendering file_name: %w", err)
		}
		return nameRes.Body, nil
	}
	return filepath.Base(b.TemplatePath), nil
}

// evalQuery implements C6's contract (spec.md §4.5): an absent query passes
// the whole resolved registry through unchanged, otherwise expr runs
// against the projected query.BundleToAny(bundle) root.
func (o *Orchestrator) evalQuery(expr string) (any, error) {
	root := query.BundleToAny(o.bundle)
	if expr == "" {
		return root, nil
	}
	return query.Eval(expr, root)
}

func mergeParams(global, local map[string]any) map[string]any {
	out := make(map[string]any, len(global)+len(local))
	for k, v := range global {
		out[k] = v
	}
	for k, v := range local {
		out[k] = v
	}
	return out
}

// writeAtomic writes body to path via a temp file in the same directory
// followed by a rename, so a crash mid-write never leaves a truncated file
// at the destination (spec.md §4.7 step 5).
func writeAtomic(path, body string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating output directory %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".forge-tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.WriteString(body); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file for %s: %w", path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming into place %s: %w", path, err)
	}
	return nil
}
