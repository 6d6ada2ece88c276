// Package manifest implements C3: loading registry_manifest.yaml documents,
// resolving the dependency graph they describe, detecting cycles, and
// producing a reverse-topological build order (dependencies before
// dependents) for the resolver to consume.
package manifest

import (
	"context"
	"fmt"
	"path"

	"github.com/conventionforge/forge/pkg/model"
)

// DefaultMaxDepth is the default maximum dependency chain length spec.md §3
// names for registry manifests.
const DefaultMaxDepth = 10

// Loader resolves a registry path (as named by a dependency's registry_path,
// or the initial root path) to its manifest. Implementations live in
// pkg/fetch, which knows how to turn a path into a local/git/oci/zip source.
type Loader interface {
	LoadManifest(ctx context.Context, registryPath string) (*model.Manifest, error)
}

// Node is one registry in the resolved dependency graph.
type Node struct {
	Path         string
	Manifest     *model.Manifest
	Dependencies []*Node
}

// Graph is the resolved, cycle-free dependency graph for a root registry.
type Graph struct {
	Root  *Node
	ByPath map[string]*Node

	// Order lists every node in reverse-topological order: a registry
	// always appears after every registry it depends on. C4 Pass 5/6
	// walks registries in this order so a dependent can override a base
	// registry's definitions (Open Question #2, SPEC_FULL.md §5.2).
	Order []*Node
}

type visitState int

const (
	unvisited visitState = iota
	visiting
	visited
)

// Build resolves the dependency graph rooted at rootPath, loading each
// manifest via loader. maxDepth bounds the dependency chain length; pass 0
// to use DefaultMaxDepth.
func Build(ctx context.Context, loader Loader, rootPath string, maxDepth int) (*Graph, error) {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}

	g := &Graph{ByPath: make(map[string]*Node)}
	state := make(map[string]visitState)
	var chain []string

	var visit func(p string, depth int) (*Node, error)
	visit = func(p string, depth int) (*Node, error) {
		if depth >= maxDepth {
			return nil, fmt.Errorf("manifest: dependency chain exceeds max depth %d at %s (chain: %s)",
				maxDepth, p, formatChain(append(chain, p)))
		}
		switch state[p] {
		case visiting:
			return nil, fmt.Errorf("manifest: cyclic dependency detected: %s -> %s", formatChain(chain), p)
		case visited:
			return g.ByPath[p], nil
		}

		state[p] = visiting
		chain = append(chain, p)
		defer func() { chain = chain[:len(chain)-1] }()

		m, err := loader.LoadManifest(ctx, p)
		if err != nil {
			return nil, fmt.Errorf("manifest: loading %s: %w", p, err)
		}
		m.SourcePath = p

		node := &Node{Path: p, Manifest: m}
		g.ByPath[p] = node

		for _, dep := range m.Dependencies {
			depPath := resolveDependencyPath(p, dep.RegistryPath)
			child, err := visit(depPath, depth+1)
			if err != nil {
				return nil, err
			}
			node.Dependencies = append(node.Dependencies, child)
		}

		state[p] = visited
		g.Order = append(g.Order, node)
		return node, nil
	}

	root, err := visit(rootPath, 0)
	if err != nil {
		return nil, err
	}
	g.Root = root
	return g, nil
}

// resolveDependencyPath resolves a dependency's registry_path relative to
// the manifest that declared it, the way a relative import path is resolved
// relative to its containing file.
func resolveDependencyPath(basePath, registryPath string) string {
	if path.IsAbs(registryPath) || isRemoteRef(registryPath) {
		return registryPath
	}
	return path.Join(basePath, registryPath)
}

// isRemoteRef reports whether registryPath already names a remote source
// (git/oci/zip scheme) rather than a path relative to the parent manifest.
func isRemoteRef(registryPath string) bool {
	for _, scheme := range []string{"git://", "git+ssh://", "oci://", "https://", "http://"} {
		if len(registryPath) >= len(scheme) && registryPath[:len(scheme)] == scheme {
			return true
		}
	}
	return false
}

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

// Depth returns the dependency depth of node within g (root is depth 0),
// computed via memoized DFS over Dependencies — safe because Build already
// guarantees the graph is acyclic.
func (g *Graph) Depth(node *Node) int {
	memo := make(map[*Node]int)
	var depth func(n *Node) int
	depth = func(n *Node) int {
		if d, ok := memo[n]; ok {
			return d
		}
		max := 0
		for _, dep := range n.Dependencies {
			if d := depth(dep) + 1; d > max {
				max = d
			}
		}
		memo[n] = max
		return max
	}
	return depth(node)
}
