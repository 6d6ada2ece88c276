// Package specparse implements C2: walking a registry's file tree, parsing
// each YAML document into the unresolved pkg/model shapes, recording
// per-group source provenance, and recognising registry_manifest.yaml.
package specparse

import (
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/conventionforge/forge/pkg/diag"
	"github.com/conventionforge/forge/pkg/model"
)

// ManifestFileName is the reserved file name recognised as a registry
// manifest rather than a group-definition file.
const ManifestFileName = "registry_manifest.yaml"

// UnknownKeyPolicy controls what happens when a YAML document contains a
// top-level key this parser does not recognise.
type UnknownKeyPolicy int

const (
	// WarnUnknownKeys accumulates a diagnostic but keeps parsing (the
	// default: registries are allowed to carry fields a given forge
	// version doesn't yet understand).
	WarnUnknownKeys UnknownKeyPolicy = iota
	// RejectUnknownKeys treats an unrecognised top-level key as a parse
	// error, for "future" mode where strict compatibility is required.
	RejectUnknownKeys
)

// Options configures parsing behaviour.
type Options struct {
	UnknownKeys UnknownKeyPolicy
}

// recognisedTopLevelKeys are the only keys a group-definition YAML file may
// carry at its root.
var recognisedTopLevelKeys = map[string]bool{
	"groups":  true,
	"imports": true,
}

// ParsedFile is one parsed, non-manifest YAML document from a registry.
type ParsedFile struct {
	Path       string
	Groups     []model.Group
	Imports    model.ImportDeclaration
	HasImports bool
}

// ParsedRegistry is the full result of walking and parsing one registry's
// file tree.
type ParsedRegistry struct {
	Files    []ParsedFile
	Manifest *model.Manifest // nil if no registry_manifest.yaml was present
}

// rawGroupFile mirrors the top-level shape of a group-definition YAML file.
type rawGroupFile struct {
	Groups  []model.Group         `yaml:"groups"`
	Imports *model.ImportDeclaration `yaml:"imports"`
}

// Parse walks fsys rooted at root, parsing every *.yaml/*.yml file. Structural
// failures (an unreadable file, a document that isn't valid YAML at all)
// are appended to sink as diag.KindParseError and also cause that single
// file to be skipped; Parse itself only returns an error for failures that
// make the whole registry unreadable (the root path does not exist).
func Parse(fsys fs.FS, root string, sink *diag.Sink, opts Options) (*ParsedRegistry, error) {
	var paths []string
	err := fs.WalkDir(fsys, root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if !isYAMLFile(p) {
			return nil
		}
		paths = append(paths, p)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("specparse: walking %s: %w", root, err)
	}
	sort.Strings(paths)

	result := &ParsedRegistry{}
	for _, p := range paths {
		raw, err := fs.ReadFile(fsys, p)
		if err != nil {
			sink.AddErr(diag.New(diag.KindParseError, model.Position{File: p}, err, "reading file"))
			continue
		}

		if path.Base(p) == ManifestFileName {
			m, err := parseManifest(p, raw)
			if err != nil {
				sink.AddErr(err)
				continue
			}
			result.Manifest = m
			continue
		}

		pf, err := parseGroupFile(p, raw, sink, opts)
		if err != nil {
			sink.AddErr(err)
			continue
		}
		result.Files = append(result.Files, *pf)
	}
	return result, nil
}

func isYAMLFile(p string) bool {
	ext := strings.ToLower(path.Ext(p))
	return ext == ".yaml" || ext == ".yml"
}

func parseManifest(p string, raw []byte) (*model.Manifest, error) {
	return ParseManifest(p, raw)
}

// ParseManifest decodes a single registry_manifest.yaml document. Exported
// so pkg/fetch can parse a manifest straight out of a freshly-fetched
// registry tree without going through the whole-registry Parse walk.
func ParseManifest(p string, raw []byte) (*model.Manifest, error) {
	var m model.Manifest
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return nil, diag.New(diag.KindManifestError, model.Position{File: p}, err, "invalid registry manifest")
	}
	m.SourcePath = p
	if m.Name == "" {
		return nil, diag.New(diag.KindManifestError, model.Position{File: p}, nil, "manifest missing required 'name'")
	}
	return &m, nil
}

// parseGroupFile parses one group-definition document, decoding via an
// intermediate yaml.Node tree so each group's source position can be
// recorded and unrecognised top-level keys can be detected.
func parseGroupFile(p string, raw []byte, sink *diag.Sink, opts Options) (*ParsedFile, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, diag.New(diag.KindParseError, model.Position{File: p}, err, "invalid YAML")
	}
	if len(doc.Content) == 0 {
		// An empty file is valid and contributes no groups.
		return &ParsedFile{Path: p}, nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, diag.New(diag.KindParseError, model.Position{File: p}, nil, "expected a mapping at document root")
	}

	checkUnknownKeys(p, root, sink, opts)

	var rawFile rawGroupFile
	if err := root.Decode(&rawFile); err != nil {
		return nil, diag.New(diag.KindParseError, model.Position{File: p}, err, "decoding group file")
	}

	pf := &ParsedFile{Path: p}
	if groupsNode := findMappingValue(root, "groups"); groupsNode != nil {
		for i, item := range groupsNode.Content {
			if i >= len(rawFile.Groups) {
				break
			}
			g := rawFile.Groups[i]
			g.Source = model.Position{File: p, Line: item.Line, Column: item.Column}
			markAttributePresence(item, &g)
			if !model.ValidGroupTypes[g.Type] {
				sink.Addf(diag.KindParseError, g.Source, map[string]string{"group": g.ID},
					"unrecognised group type %q", g.Type)
			}
			pf.Groups = append(pf.Groups, g)
		}
	}
	if rawFile.Imports != nil {
		pf.Imports = *rawFile.Imports
		pf.HasImports = true
	}
	return pf, nil
}

// checkUnknownKeys walks the top-level mapping's keys and reports any that
// aren't in recognisedTopLevelKeys, per opts.UnknownKeys.
func checkUnknownKeys(p string, root *yaml.Node, sink *diag.Sink, opts Options) {
	for i := 0; i+1 < len(root.Content); i += 2 {
		key := root.Content[i]
		if recognisedTopLevelKeys[key.Value] {
			continue
		}
		pos := model.Position{File: p, Line: key.Line, Column: key.Column}
		kind := diag.KindParseError
		msg := fmt.Sprintf("unrecognised top-level key %q (ignored)", key.Value)
		if opts.UnknownKeys == WarnUnknownKeys {
			sink.Addf(kind, pos, nil, msg)
			continue
		}
		sink.Addf(kind, pos, nil, "unrecognised top-level key %q (rejected in future mode)", key.Value)
	}
}

// findMappingValue returns the value node for key within mapping node m, or
// nil if absent.
func findMappingValue(m *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return m.Content[i+1]
		}
	}
	return nil
}

// markAttributePresence inspects the raw YAML node for a single group entry
// and records, on each of its inline attributes, which fields were
// explicitly present in the source — yaml.v3's struct decoding cannot tell
// "absent" from "zero value" on its own, and Pass 2/3 of the resolver need
// that distinction for extends/ref override semantics.
func markAttributePresence(groupNode *yaml.Node, g *model.Group) {
	attrsNode := findMappingValue(groupNode, "attributes")
	if attrsNode == nil || attrsNode.Kind != yaml.SequenceNode {
		return
	}
	for i, attrNode := range attrsNode.Content {
		if i >= len(g.Attributes) || attrNode.Kind != yaml.MappingNode {
			continue
		}
		a := &g.Attributes[i]
		a.Source = model.Position{File: g.Source.File, Line: attrNode.Line, Column: attrNode.Column}
		for k := 0; k+1 < len(attrNode.Content); k += 2 {
			a.MarkSet(attrNode.Content[k].Value)
		}
	}
}
