// Package query implements C6: a restricted expression language for
// selecting, projecting, and filtering data out of a resolved
// registry.Bundle, plus the named semconv_* helpers (helpers.go) that give
// template bindings their usual entry points into the catalog.
//
// The expression grammar is deliberately small — field access, indexing,
// slicing, projection, filtering, and a handful of built-in functions — in
// the spirit of JMESPath/jq, but none of the retrieval pack's repositories
// vendor a matching library (see DESIGN.md), so it is hand-rolled here.
package query

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Eval parses and evaluates expr against root, returning the resulting
// value (a scalar, []any, or map[string]any).
func Eval(expr string, root any) (any, error) {
	p := &parser{toks: tokenize(expr)}
	node, err := p.parsePipeline()
	if err != nil {
		return nil, fmt.Errorf("query: parsing %q: %w", expr, err)
	}
	if !p.atEnd() {
		return nil, fmt.Errorf("query: unexpected trailing input in %q at %q", expr, p.peek().text)
	}
	return node.eval(root)
}

// --- tokenizer ---

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokNumber
	tokString
	tokPunct
)

type token struct {
	kind tokenKind
	text string
}

func tokenize(s string) []token {
	var toks []token
	i := 0
	for i < len(s) {
		c := s[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n':
			i++
		case c == '"' || c == '\'':
			j := i + 1
			for j < len(s) && s[j] != c {
				j++
			}
			toks = append(toks, token{tokString, s[i+1 : j]})
			i = j + 1
		case isIdentStart(c):
			j := i
			for j < len(s) && isIdentPart(s[j]) {
				j++
			}
			toks = append(toks, token{tokIdent, s[i:j]})
			i = j
		case c >= '0' && c <= '9':
			j := i
			for j < len(s) && (s[j] >= '0' && s[j] <= '9' || s[j] == '.') {
				j++
			}
			toks = append(toks, token{tokNumber, s[i:j]})
			i = j
		case strings.HasPrefix(s[i:], "=="), strings.HasPrefix(s[i:], "!="),
			strings.HasPrefix(s[i:], "<="), strings.HasPrefix(s[i:], ">="),
			strings.HasPrefix(s[i:], "&&"), strings.HasPrefix(s[i:], "||"):
			toks = append(toks, token{tokPunct, s[i : i+2]})
			i += 2
		default:
			toks = append(toks, token{tokPunct, s[i : i+1]})
			i++
		}
	}
	return toks
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9') || c == '.'
}

// --- AST ---

type node interface {
	eval(ctx any) (any, error)
}

type identNode struct{ path []string }

func (n identNode) eval(ctx any) (any, error) {
	cur := ctx
	for _, seg := range n.path {
		if seg == "@" {
			continue
		}
		cur = fieldOf(cur, seg)
	}
	return cur, nil
}

type literalNode struct{ v any }

func (n literalNode) eval(any) (any, error) { return n.v, nil }

type indexNode struct {
	base  node
	index node
}

func (n indexNode) eval(ctx any) (any, error) {
	base, err := n.base.eval(ctx)
	if err != nil {
		return nil, err
	}
	idx, err := n.index.eval(ctx)
	if err != nil {
		return nil, err
	}
	list, ok := base.([]any)
	if !ok {
		return nil, nil
	}
	i, err := toInt(idx)
	if err != nil {
		return nil, err
	}
	if i < 0 {
		i += len(list)
	}
	if i < 0 || i >= len(list) {
		return nil, nil
	}
	return list[i], nil
}

type sliceNode struct {
	base       node
	start, end *int
}

func (n sliceNode) eval(ctx any) (any, error) {
	base, err := n.base.eval(ctx)
	if err != nil {
		return nil, err
	}
	list, ok := base.([]any)
	if !ok {
		return nil, nil
	}
	start, end := 0, len(list)
	if n.start != nil {
		start = clampIndex(*n.start, len(list))
	}
	if n.end != nil {
		end = clampIndex(*n.end, len(list))
	}
	if start > end {
		start = end
	}
	return append([]any(nil), list[start:end]...), nil
}

func clampIndex(i, n int) int {
	if i < 0 {
		i += n
	}
	if i < 0 {
		return 0
	}
	if i > n {
		return n
	}
	return i
}

// projectionNode implements `a[].field`: flatten-map a field access over
// every element of a list.
type projectionNode struct {
	base nodeOrNil
	proj node
}

type nodeOrNil = node

func (n projectionNode) eval(ctx any) (any, error) {
	base, err := n.base.eval(ctx)
	if err != nil {
		return nil, err
	}
	list, ok := base.([]any)
	if !ok {
		return nil, nil
	}
	out := make([]any, 0, len(list))
	for _, elem := range list {
		v, err := n.proj.eval(elem)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// filterNode implements `a[?pred]`: keep elements of a list matching pred.
type filterNode struct {
	base node
	pred node
}

func (n filterNode) eval(ctx any) (any, error) {
	base, err := n.base.eval(ctx)
	if err != nil {
		return nil, err
	}
	list, ok := base.([]any)
	if !ok {
		return nil, nil
	}
	var out []any
	for _, elem := range list {
		v, err := n.pred.eval(elem)
		if err != nil {
			return nil, err
		}
		if truthy(v) {
			out = append(out, elem)
		}
	}
	return out, nil
}

// binaryNode handles the comparison (==, !=, <, <=, >, >=) and boolean
// (&&, ||) operators; the grammar has no arithmetic operators.
type binaryNode struct {
	op          string
	left, right node
}

func (n binaryNode) eval(ctx any) (any, error) {
	l, err := n.left.eval(ctx)
	if err != nil {
		return nil, err
	}
	if n.op == "&&" && !truthy(l) {
		return false, nil
	}
	if n.op == "||" && truthy(l) {
		return true, nil
	}
	r, err := n.right.eval(ctx)
	if err != nil {
		return nil, err
	}
	switch n.op {
	case "==":
		return fmt.Sprint(l) == fmt.Sprint(r), nil
	case "!=":
		return fmt.Sprint(l) != fmt.Sprint(r), nil
	case "&&":
		return truthy(r), nil
	case "||":
		return truthy(r), nil
	case "<", "<=", ">", ">=":
		lf, lerr := toFloat(l)
		rf, rerr := toFloat(r)
		if lerr != nil || rerr != nil {
			return nil, fmt.Errorf("query: cannot compare %v %s %v", l, n.op, r)
		}
		switch n.op {
		case "<":
			return lf < rf, nil
		case "<=":
			return lf <= rf, nil
		case ">":
			return lf > rf, nil
		default:
			return lf >= rf, nil
		}
	}
	return nil, fmt.Errorf("query: unknown operator %q", n.op)
}

// callNode is a built-in function call: length(x), join(sep, list),
// sort_by(list, field), keys(x).
type callNode struct {
	name string
	args []node
}

func (n callNode) eval(ctx any) (any, error) {
	args := make([]any, len(n.args))
	for i, a := range n.args {
		v, err := a.eval(ctx)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	fn, ok := builtins[n.name]
	if !ok {
		return nil, fmt.Errorf("query: unknown function %q", n.name)
	}
	return fn(args)
}

var builtins = map[string]func([]any) (any, error){
	"length": func(args []any) (any, error) {
		switch v := args[0].(type) {
		case []any:
			return len(v), nil
		case map[string]any:
			return len(v), nil
		case string:
			return len(v), nil
		default:
			return 0, nil
		}
	},
	"join": func(args []any) (any, error) {
		sep, _ := args[0].(string)
		list, _ := args[1].([]any)
		parts := make([]string, len(list))
		for i, v := range list {
			parts[i] = fmt.Sprint(v)
		}
		return strings.Join(parts, sep), nil
	},
	"keys": func(args []any) (any, error) {
		m, _ := args[0].(map[string]any)
		out := make([]any, 0, len(m))
		for k := range m {
			out = append(out, k)
		}
		sort.Slice(out, func(i, j int) bool { return out[i].(string) < out[j].(string) })
		return out, nil
	},
	"sort_by": func(args []any) (any, error) {
		list, _ := args[0].([]any)
		field, _ := args[1].(string)
		out := append([]any(nil), list...)
		sort.SliceStable(out, func(i, j int) bool {
			return fmt.Sprint(fieldOf(out[i], field)) < fmt.Sprint(fieldOf(out[j], field))
		})
		return out, nil
	},
}

// --- helpers over generic any values ---

func fieldOf(v any, field string) any {
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	return m[field]
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case []any:
		return len(t) > 0
	default:
		return true
	}
}

func toInt(v any) (int, error) {
	switch t := v.(type) {
	case int:
		return t, nil
	case float64:
		return int(t), nil
	case string:
		return strconv.Atoi(t)
	default:
		return 0, fmt.Errorf("query: %v is not an integer", v)
	}
}

func toFloat(v any) (float64, error) {
	switch t := v.(type) {
	case int:
		return float64(t), nil
	case float64:
		return t, nil
	case string:
		return strconv.ParseFloat(t, 64)
	default:
		return 0, fmt.Errorf("query: %v is not a number", v)
	}
}
