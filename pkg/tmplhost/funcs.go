package tmplhost

import (
	"fmt"
	"sort"
	"strings"
	"text/template"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/oapi-codegen/oapi-codegen/v2/pkg/codegen"

	"github.com/conventionforge/forge/pkg/query"
)

// AcronymSet is a caller-supplied table of identifier segments that should
// render as a fixed acronym regardless of case conversion (e.g. "id" ->
// "ID", "url" -> "URL"), configured via pkg/targetcfg's "acronyms" key.
type AcronymSet map[string]string

// Acronym renders s through set, falling back to TitleCase when s is not a
// configured acronym.
func (set AcronymSet) Acronym(s string) string {
	if up, ok := set[strings.ToLower(s)]; ok {
		return up
	}
	return TitleCase(s)
}

// FuncMap builds the complete text/template function map C7 exposes to
// bindings: case converters, the boolean test family, markdown rendering,
// ANSI colour wrapping (go-pretty/v6/text, teacher go.mod), and the
// flatten/sort/namespace helpers templates use when walking a
// registry.Bundle.
func FuncMap(acronyms AcronymSet) template.FuncMap {
	if acronyms == nil {
		acronyms = AcronymSet{}
	}
	return template.FuncMap{
		// case converters
		"lower_case":           LowerCase,
		"upper_case":           UpperCase,
		"title_case":           TitleCase,
		"pascal_case":          PascalCase,
		"camel_case":           CamelCase,
		"snake_case":           SnakeCase,
		"screaming_snake_case": ScreamingSnakeCase,
		"kebab_case":           KebabCase,
		"screaming_kebab_case": ScreamingKebabCase,
		"const_case":           ConstCase,
		"identifier_case":      identifierCase,
		"acronym":              acronyms.Acronym,

		// "_const" variants (spec.md §4.6): "." is a segment boundary,
		// pre-existing "_" within a segment is not.
		"lower_case_const":           LowerCaseConst,
		"upper_case_const":           UpperCaseConst,
		"title_case_const":           TitleCaseConst,
		"pascal_case_const":          PascalCaseConst,
		"camel_case_const":           CamelCaseConst,
		"snake_case_const":           SnakeCaseConst,
		"screaming_snake_case_const": ScreamingSnakeCaseConst,
		"kebab_case_const":           KebabCaseConst,
		"screaming_kebab_case_const": ScreamingKebabCaseConst,

		// boolean tests
		"stable":       isStable,
		"experimental": isExperimental,
		"deprecated":   isDeprecated,
		"enum":         isEnum,
		"simple_type":  isSimpleType,
		"template_type": isTemplateType,

		// text rendering
		"markdown_to_html":   MarkdownToHTML,
		"comment_with_prefix": commentWithPrefix,
		"map_text":           mapText,

		// ANSI colour (go-pretty/v6/text)
		"color_red":    colorWrap(text.FgRed),
		"color_green":  colorWrap(text.FgGreen),
		"color_yellow": colorWrap(text.FgYellow),
		"color_bold":   boldWrap,

		// collection helpers
		"flatten":         flatten,
		"attribute_sort":  attributeSort,
		"required":        filterRequirement("required"),
		"not_required":    filterRequirementNot("required"),

		// namespace/registry helpers
		"metric_namespace":             query.RootNamespace,
		"attribute_namespace":          query.RootNamespace,
		"attribute_registry_namespace": query.RootNamespace,
		"attribute_registry_file":      attributeRegistryFile,
		"attribute_registry_title":     attributeRegistryTitle,

		// type classification
		"instantiated_type": instantiatedType,
		"enum_type":         enumType,
	}
}

func identifierCase(s string) string {
	// codegen.ToCamelCase is oapi-codegen's own identifier-naming helper
	// (pkg/codegen), seeded here with our own word-splitting so that
	// acronym/digit-boundary handling stays consistent across every case
	// filter rather than diverging between ours and oapi-codegen's.
	return codegen.ToCamelCase(strings.Join(splitWords(s), "_"))
}

func isStable(stability string) bool       { return stability == "stable" }
func isExperimental(stability string) bool { return stability == "development" || stability == "alpha" || stability == "beta" }
func isDeprecated(deprecated bool) bool    { return deprecated }
func isEnum(typ string) bool               { return typ == "enum" }
func isSimpleType(typ string) bool {
	switch typ {
	case "string", "int", "double", "boolean", "string[]", "int[]", "double[]", "boolean[]":
		return true
	default:
		return false
	}
}
func isTemplateType(typ string) bool { return strings.HasPrefix(typ, "template[") }

func enumType(typ string) string {
	if typ == "enum" {
		return "enum"
	}
	return ""
}

// instantiatedType resolves a template[<scalar>] attribute type to its
// instantiated scalar form, e.g. "template[string]" -> "string".
func instantiatedType(typ string) string {
	if !isTemplateType(typ) {
		return typ
	}
	inner := strings.TrimPrefix(typ, "template[")
	return strings.TrimSuffix(inner, "]")
}

// commentWithPrefix prefixes every line of body with prefix, the way a
// generated comment block is built line by line.
func commentWithPrefix(prefix, body string) string {
	lines := strings.Split(strings.TrimRight(body, "\n"), "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(prefix+l, " ")
	}
	return strings.Join(lines, "\n")
}

// mapText looks up key in a map[string]string-shaped text_maps entry
// (pkg/targetcfg), falling back to the key itself when absent.
func mapText(m map[string]string, key string) string {
	if v, ok := m[key]; ok {
		return v
	}
	return key
}

func colorWrap(color text.Color) func(string) string {
	return func(s string) string { return color.Sprint(s) }
}

func boldWrap(s string) string { return text.Bold.Sprint(s) }

// flatten concatenates a slice-of-slices into a single slice, used by
// templates composing several semconv_grouped_* results together.
func flatten(groups [][]query.AttributeView) []query.AttributeView {
	var out []query.AttributeView
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

// requirementLevelRank orders requirement levels for attributeSort: required
// attributes first, then conditionally_required, then recommended, then
// opt_in, matching how a generated attribute table reads best to a human.
var requirementLevelRank = map[string]int{
	"required":               0,
	"conditionally_required": 1,
	"recommended":            2,
	"opt_in":                 3,
}

// attributeSort sorts by requirement level then by id (spec.md §4.6), the
// order a generated attribute table reads best in.
func attributeSort(attrs []query.AttributeView) []query.AttributeView {
	out := append([]query.AttributeView(nil), attrs...)
	rank := func(level string) int {
		if r, ok := requirementLevelRank[level]; ok {
			return r
		}
		return len(requirementLevelRank)
	}
	sort.Slice(out, func(i, j int) bool {
		ri, rj := rank(out[i].RequirementLevel), rank(out[j].RequirementLevel)
		if ri != rj {
			return ri < rj
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func filterRequirement(level string) func([]query.AttributeView) []query.AttributeView {
	return func(attrs []query.AttributeView) []query.AttributeView {
		var out []query.AttributeView
		for _, a := range attrs {
			if a.RequirementLevel == level {
				out = append(out, a)
			}
		}
		return out
	}
}

func filterRequirementNot(level string) func([]query.AttributeView) []query.AttributeView {
	return func(attrs []query.AttributeView) []query.AttributeView {
		var out []query.AttributeView
		for _, a := range attrs {
			if a.RequirementLevel != level {
				out = append(out, a)
			}
		}
		return out
	}
}

func attributeRegistryFile(namespace string) string {
	return fmt.Sprintf("attributes-registry/%s.md", KebabCase(namespace))
}

func attributeRegistryTitle(namespace string) string {
	return TitleCase(namespace) + " Attributes"
}
