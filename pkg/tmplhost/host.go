package tmplhost

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"
	"text/template"
)

// Delims is the four-delimiter-pair syntax spec.md §4.6 lets a target
// reconfigure. text/template only distinguishes one delimiter pair (there is
// no separate block/variable syntax the way a Jinja-family engine has), so
// Block and Variable are folded onto the same template.Delims pair — when a
// target configures them differently the Variable pair is the one passed to
// template.Delims, and Block is used only to find block tags for the
// trim_blocks/lstrip_blocks preprocessing; Comment and Raw are handled by
// Host as a textual preprocessing step ahead of template.Parse, since
// text/template has no concept of either.
type Delims struct {
	Block    [2]string
	Variable [2]string
	Comment  [2]string
	Raw      [2]string
}

// DefaultDelims mirrors the stdlib text/template default and the closest
// thing to a "raw"/"comment" convention it already supports.
func DefaultDelims() Delims {
	return Delims{
		Block:    [2]string{"{{", "}}"},
		Variable: [2]string{"{{", "}}"},
		Comment:  [2]string{"{{/*", "*/}}"},
		Raw:      [2]string{"{{`", "`}}"},
	}
}

// Whitespace is the trim_blocks/lstrip_blocks/keep_trailing_newline policy a
// target configures (spec.md §6/§4.6). All default false.
type Whitespace struct {
	TrimBlocks         bool
	LstripBlocks       bool
	KeepTrailingNewline bool
}

// Host wraps text/template with the domain's filter/test FuncMap, the
// ctx/params/template globals, and the whitespace and delimiter policy
// spec.md §4.6 requires, the way the teacher wraps OTel SDK providers behind
// a single constructor in cmd/motel/main.go.
type Host struct {
	delims     Delims
	whitespace Whitespace
	funcs      template.FuncMap
}

// New builds a Host. acronyms feeds the `acronym` filter; any delimiter pair
// left as the zero value takes its DefaultDelims value, and ws may be the
// zero value (all policies off).
func New(acronyms AcronymSet, delims Delims, ws Whitespace) *Host {
	def := DefaultDelims()
	if delims.Block == ([2]string{}) {
		delims.Block = def.Block
	}
	if delims.Variable == ([2]string{}) {
		delims.Variable = def.Variable
	}
	if delims.Comment == ([2]string{}) {
		delims.Comment = def.Comment
	}
	if delims.Raw == ([2]string{}) {
		delims.Raw = def.Raw
	}
	return &Host{delims: delims, whitespace: ws, funcs: FuncMap(acronyms)}
}

// fileNameOverride is the mutable cell templateGlobal.SetFileName writes into;
// one is allocated per Render call so concurrent renders never share state.
type fileNameOverride struct {
	path string
	set  bool
}

// templateGlobal is the value bound to the `template` template-global: its
// SetFileName(path) method is the set_file_name operation, called from a
// template as {{ .template.SetFileName "path" }}.
type templateGlobal struct{ override *fileNameOverride }

func (t templateGlobal) SetFileName(path string) string {
	t.override.path = path
	t.override.set = true
	return ""
}

// Result is what Render returns: the rendered body plus whatever output path
// the template computed via template.set_file_name, if any.
type Result struct {
	Body             string
	FileNameOverride string
	HasOverride      bool
}

// Render runs src through Preprocess, parses the result under name, then
// executes it with ctx and params bound as the `ctx`/`params` globals and
// `template` bound to the templateGlobal that carries SetFileName.
func (h *Host) Render(name, src string, ctx, params any) (Result, error) {
	tmpl := template.New(name).Delims(h.delims.Variable[0], h.delims.Variable[1]).Funcs(h.funcs)
	parsed, err := tmpl.Parse(h.Preprocess(src))
	if err != nil {
		return Result{}, fmt.Errorf("parse template %s: %w", name, err)
	}

	override := &fileNameOverride{}
	data := map[string]any{
		"ctx":      ctx,
		"params":   params,
		"template": templateGlobal{override: override},
	}

	var buf bytes.Buffer
	if err := parsed.Execute(&buf, data); err != nil {
		return Result{}, fmt.Errorf("execute template %s: %w", name, err)
	}

	body := buf.String()
	if !h.whitespace.KeepTrailingNewline {
		body = strings.TrimRight(body, "\n")
	}

	return Result{Body: body, FileNameOverride: override.path, HasOverride: override.set}, nil
}

// Preprocess rewrites a target's configured comment/raw delimiters and
// trim_blocks/lstrip_blocks whitespace policy into text/template's native
// forms ahead of Parse.
func (h *Host) Preprocess(src string) string {
	src = h.rewriteComments(src)
	src = h.rewriteRaw(src)
	if h.whitespace.TrimBlocks {
		src = trimBlocksPolicy(src, h.delims.Block)
	}
	if h.whitespace.LstripBlocks {
		src = lstripBlocksPolicy(src, h.delims.Block)
	}
	return src
}

func (h *Host) rewriteComments(src string) string {
	open, close := h.delims.Comment[0], h.delims.Comment[1]
	if open == "{{/*" && close == "*/}}" {
		return src // already native, nothing to rewrite
	}
	re := regexp.MustCompile(regexp.QuoteMeta(open) + `(?s:.*?)` + regexp.QuoteMeta(close))
	return re.ReplaceAllStringFunc(src, func(m string) string {
		inner := strings.TrimSuffix(strings.TrimPrefix(m, open), close)
		return "{{/*" + inner + "*/}}"
	})
}

func (h *Host) rewriteRaw(src string) string {
	open, close := h.delims.Raw[0], h.delims.Raw[1]
	if open == "{{`" && close == "`}}" {
		return src
	}
	re := regexp.MustCompile(regexp.QuoteMeta(open) + `(?s:.*?)` + regexp.QuoteMeta(close))
	return re.ReplaceAllStringFunc(src, func(m string) string {
		inner := strings.TrimSuffix(strings.TrimPrefix(m, open), close)
		return "{{`" + inner + "`}}"
	})
}

// trimBlocksPolicy drops the newline immediately following a block's closing
// delimiter, the Jinja trim_blocks behaviour.
func trimBlocksPolicy(src string, block [2]string) string {
	re := regexp.MustCompile(regexp.QuoteMeta(block[1]) + `\n`)
	return re.ReplaceAllString(src, block[1])
}

// lstripBlocksPolicy strips leading horizontal whitespace on a line that
// contains only a block tag, the Jinja lstrip_blocks behaviour.
func lstripBlocksPolicy(src string, block [2]string) string {
	re := regexp.MustCompile(`(?m)^[ \t]+` + regexp.QuoteMeta(block[0]))
	return re.ReplaceAllString(src, block[0])
}
