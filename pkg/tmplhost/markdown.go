package tmplhost

import (
	"html"
	"regexp"
	"strings"
)

// MarkdownToHTML renders the narrow CommonMark subset spec.md §4.6 calls
// for — headings, emphasis/strong, inline code spans, and links — against
// registry brief/note text. It is not a general-purpose Markdown renderer:
// no pack repository ships one, and pulling a full CommonMark
// implementation for five constructs would be a disproportionate
// dependency (DESIGN.md). Implemented with regexp/strings only, one
// construct at a time, line-oriented for headings and block-agnostic for
// the inline forms.
func MarkdownToHTML(src string) string {
	lines := strings.Split(src, "\n")
	var out []string
	for _, line := range lines {
		out = append(out, renderLine(line))
	}
	return strings.Join(out, "\n")
}

var headingRe = regexp.MustCompile(`^(#{1,6})\s+(.*)$`)

func renderLine(line string) string {
	if m := headingRe.FindStringSubmatch(line); m != nil {
		level := len(m[1])
		return wrapTag("h", level, renderInline(m[2]))
	}
	if line == "" {
		return ""
	}
	return "<p>" + renderInline(line) + "</p>"
}

func wrapTag(tag string, level int, body string) string {
	return "<" + tag + itoa(level) + ">" + body + "</" + tag + itoa(level) + ">"
}

func itoa(n int) string {
	digits := "0123456789"
	if n < 10 {
		return string(digits[n])
	}
	return string(digits[n/10]) + string(digits[n%10])
}

var (
	strongRe = regexp.MustCompile(`\*\*([^*]+)\*\*`)
	emphRe   = regexp.MustCompile(`\*([^*]+)\*`)
	codeRe   = regexp.MustCompile("`([^`]+)`")
	linkRe   = regexp.MustCompile(`\[([^\]]+)\]\(([^)]+)\)`)
)

// renderInline applies the inline constructs in an order that avoids
// emphasis eating into strong ("**bold**" is matched before "*emphasis*").
func renderInline(s string) string {
	s = html.EscapeString(s)
	s = codeRe.ReplaceAllString(s, "<code>$1</code>")
	s = linkRe.ReplaceAllString(s, `<a href="$2">$1</a>`)
	s = strongRe.ReplaceAllString(s, "<strong>$1</strong>")
	s = emphRe.ReplaceAllString(s, "<em>$1</em>")
	return s
}
