package tmplhost

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// splitWords breaks an identifier into its constituent words, handling
// explicit separators (_, -, ., space), camelCase transitions, acronym runs
// ("HTTPServer" -> "HTTP", "Server"), and digit boundaries.
//
// Open Question #1 (SPEC_FULL.md §5.1): a letter-to-digit transition is only
// a word boundary when the digit run is itself followed by an uppercase
// letter — i.e. the digits introduce a new capitalised word ("http2Server"
// -> "http", "2", "Server"). A digit run followed by a lowercase letter is
// left attached to what precedes it ("sha256sum" stays one word), since
// nothing downstream of the digits signals a new segment.
func splitWords(s string) []string {
	var words []string
	var current []rune
	flush := func() {
		if len(current) > 0 {
			words = append(words, string(current))
			current = nil
		}
	}

	runes := []rune(s)
	for i, r := range runes {
		if isSeparator(r) {
			flush()
			continue
		}
		if i > 0 && isBoundary(runes, i) {
			flush()
		}
		current = append(current, r)
	}
	flush()
	return words
}

func isSeparator(r rune) bool {
	return r == '_' || r == '-' || r == '.' || unicode.IsSpace(r)
}

type runeClass int

const (
	classLower runeClass = iota
	classUpper
	classDigit
	classOther
)

func classify(r rune) runeClass {
	switch {
	case unicode.IsUpper(r):
		return classUpper
	case unicode.IsLower(r):
		return classLower
	case unicode.IsDigit(r):
		return classDigit
	default:
		return classOther
	}
}

// isBoundary reports whether a word boundary falls immediately before
// runes[i].
func isBoundary(runes []rune, i int) bool {
	prev, cur := classify(runes[i-1]), classify(runes[i])

	switch {
	case (prev == classLower || prev == classDigit) && cur == classUpper:
		return true
	case prev == classUpper && cur == classUpper && i+1 < len(runes) && classify(runes[i+1]) == classLower:
		return true
	case (prev == classLower || prev == classUpper) && cur == classDigit:
		return digitRunFollowedByUpper(runes, i)
	default:
		return false
	}
}

// digitRunFollowedByUpper looks ahead from a digit starting at i to see
// whether the run of digits is immediately followed by an uppercase
// letter, which is the only case Open Question #1 treats as a boundary.
func digitRunFollowedByUpper(runes []rune, i int) bool {
	j := i
	for j < len(runes) && classify(runes[j]) == classDigit {
		j++
	}
	return j < len(runes) && classify(runes[j]) == classUpper
}

// isSeparatorConst and splitWordsKeepUnderscore are the word-splitter behind
// every `_const` filter variant
// (spec.md §4.6): "." is a meaningful segment boundary (namespace levels
// stay distinct words) but "_" is not — an id segment that already contains
// underscores ("last_termination_reason") is kept as a single word instead
// of being re-split, so a constant name derived from an id with underscored
// segments doesn't gain extra boundaries the id's author didn't intend.
// Camel-case and digit-run boundaries (Open Question #1) still apply within
// each dot-delimited segment.
func isSeparatorConst(r rune) bool {
	return r == '-' || r == '.' || unicode.IsSpace(r)
}

func splitWordsKeepUnderscore(s string) []string {
	var words []string
	var current []rune
	flush := func() {
		if len(current) > 0 {
			words = append(words, string(current))
			current = nil
		}
	}

	runes := []rune(s)
	for i, r := range runes {
		if isSeparatorConst(r) {
			flush()
			continue
		}
		if i > 0 && r != '_' && runes[i-1] != '_' && isBoundary(runes, i) {
			flush()
		}
		current = append(current, r)
	}
	flush()
	return words
}

var titleCaser = cases.Title(language.English)

// LowerCase joins words with a single space, all lowercase.
func LowerCase(s string) string { return strings.ToLower(strings.Join(splitWords(s), " ")) }

// UpperCase joins words with a single space, all uppercase.
func UpperCase(s string) string { return strings.ToUpper(strings.Join(splitWords(s), " ")) }

// TitleCase joins words with a single space, each word title-cased via
// golang.org/x/text/cases (teacher go.mod dependency).
func TitleCase(s string) string {
	words := splitWords(s)
	for i, w := range words {
		words[i] = titleCaser.String(strings.ToLower(w))
	}
	return strings.Join(words, " ")
}

// PascalCase concatenates words with each word's first letter capitalised.
func PascalCase(s string) string {
	var b strings.Builder
	for _, w := range splitWords(s) {
		b.WriteString(titleCaser.String(strings.ToLower(w)))
	}
	return b.String()
}

// CamelCase is PascalCase with the first word lower-cased.
func CamelCase(s string) string {
	p := PascalCase(s)
	if p == "" {
		return p
	}
	r := []rune(p)
	r[0] = unicode.ToLower(r[0])
	return string(r)
}

// SnakeCase joins lowercased words with underscores.
func SnakeCase(s string) string { return joinLower(s, "_") }

// ScreamingSnakeCase joins uppercased words with underscores; this is the
// _const family's base form (SPEC_FULL.md §5.1, Open Question #1).
func ScreamingSnakeCase(s string) string { return joinUpper(s, "_") }

// KebabCase joins lowercased words with hyphens.
func KebabCase(s string) string { return joinLower(s, "-") }

// ScreamingKebabCase joins uppercased words with hyphens.
func ScreamingKebabCase(s string) string { return joinUpper(s, "-") }

// ConstCase is the C-identifier constant form (e.g. for #define-style
// codegen): identical to ScreamingSnakeCase, named separately because it is
// the form spec.md's Open Question #1 explicitly discusses.
func ConstCase(s string) string { return ScreamingSnakeCase(s) }

func joinLower(s, sep string) string {
	words := splitWords(s)
	for i, w := range words {
		words[i] = strings.ToLower(w)
	}
	return strings.Join(words, sep)
}

func joinUpper(s, sep string) string {
	words := splitWords(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w)
	}
	return strings.Join(words, sep)
}

// The *Const variants back every `_const`-suffixed template filter
// (spec.md §4.6), built on splitWordsKeepUnderscore rather than splitWords.

func joinLowerConst(s, sep string) string {
	words := splitWordsKeepUnderscore(s)
	for i, w := range words {
		words[i] = strings.ToLower(w)
	}
	return strings.Join(words, sep)
}

func joinUpperConst(s, sep string) string {
	words := splitWordsKeepUnderscore(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w)
	}
	return strings.Join(words, sep)
}

func LowerCaseConst(s string) string { return strings.ToLower(strings.Join(splitWordsKeepUnderscore(s), " ")) }
func UpperCaseConst(s string) string { return strings.ToUpper(strings.Join(splitWordsKeepUnderscore(s), " ")) }

func TitleCaseConst(s string) string {
	words := splitWordsKeepUnderscore(s)
	for i, w := range words {
		words[i] = titleCaser.String(strings.ToLower(w))
	}
	return strings.Join(words, " ")
}

func PascalCaseConst(s string) string {
	var b strings.Builder
	for _, w := range splitWordsKeepUnderscore(s) {
		b.WriteString(titleCaser.String(strings.ToLower(w)))
	}
	return b.String()
}

func CamelCaseConst(s string) string {
	p := PascalCaseConst(s)
	if p == "" {
		return p
	}
	r := []rune(p)
	r[0] = unicode.ToLower(r[0])
	return string(r)
}

func SnakeCaseConst(s string) string          { return joinLowerConst(s, "_") }
func ScreamingSnakeCaseConst(s string) string { return joinUpperConst(s, "_") }
func KebabCaseConst(s string) string          { return joinLowerConst(s, "-") }
func ScreamingKebabCaseConst(s string) string { return joinUpperConst(s, "-") }
