package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/conventionforge/forge/pkg/cache"
	"github.com/conventionforge/forge/pkg/diag"
	"github.com/conventionforge/forge/pkg/fetch"
	"github.com/conventionforge/forge/pkg/manifest"
	"github.com/conventionforge/forge/pkg/registry"
	"github.com/conventionforge/forge/pkg/resolve"
	"github.com/conventionforge/forge/pkg/specparse"
)

type runtimeContextKey struct{}

// withRuntime attaches the self-instrumentation runtime to ctx so any
// subcommand can recover its tracer/logger without threading an extra
// parameter through every function signature.
func withRuntime(ctx context.Context, rt *runtimeState) context.Context {
	return context.WithValue(ctx, runtimeContextKey{}, rt)
}

func runtimeFromContext(ctx context.Context) *runtimeState {
	rt, _ := ctx.Value(runtimeContextKey{}).(*runtimeState)
	return rt
}

// pipelineResult is everything the three read-the-registry commands
// (resolve/check/generate) need out of fetch+parse+resolve.
type pipelineResult struct {
	bundle *registry.Bundle
	graph  *manifest.Graph
	sink   *diag.Sink
}

// runPipeline drives C1 through C5: fetch the root registry and every
// dependency it names, parse each into the unresolved model, and run the
// seven-pass resolver over the whole dependency DAG in base-registry-first
// order.
func runPipeline(ctx context.Context, rootPath string, opts *globalOptions) (*pipelineResult, error) {
	if rt := runtimeFromContext(ctx); rt != nil {
		var span trace.Span
		ctx, span = rt.telemetry.Tracer.Start(ctx, "forge.pipeline",
			trace.WithAttributes(attribute.String("forge.registry_path", rootPath)))
		defer span.End()
	}

	var c *cache.Cache
	if !opts.noCache {
		dir := opts.cacheDir
		if dir == "" {
			userCache, err := os.UserCacheDir()
			if err != nil {
				return nil, fmt.Errorf("resolving default cache directory: %w", err)
			}
			dir = filepath.Join(userCache, cache.ToolName)
		}
		opened, err := cache.Open(dir)
		if err != nil {
			return nil, fmt.Errorf("opening fetch cache: %w", err)
		}
		defer opened.Close()
		c = opened
	}

	fetcher := fetch.New(fetch.Options{Cache: c, Quiet: true})

	graph, err := manifest.Build(ctx, fetcher, rootPath, opts.maxDepth)
	if err != nil {
		return nil, fmt.Errorf("building dependency graph: %w", err)
	}

	sink := &diag.Sink{}
	var sources []resolve.RegistrySource
	for _, node := range graph.Order {
		dir, err := fetcher.Fetch(ctx, node.Path)
		if err != nil {
			return nil, fmt.Errorf("fetching %s: %w", node.Path, err)
		}
		parsed, err := specparse.Parse(os.DirFS(dir), ".", sink, specparse.Options{})
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", node.Path, err)
		}
		sources = append(sources, resolve.RegistrySource{Path: node.Path, Files: parsed.Files})
	}

	bundle, err := resolve.Resolve(sources, sink, resolve.Options{IncludeUnreferenced: opts.includeUnreferenced})
	if err != nil {
		return nil, fmt.Errorf("resolving registry: %w", err)
	}
	if !opts.lineage {
		for _, a := range bundle.Catalog.All() {
			a.Lineage = nil
		}
	}

	return &pipelineResult{bundle: bundle, graph: graph, sink: sink}, nil
}
