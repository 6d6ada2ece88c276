package tmplhost

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMarkdownToHTMLHeading(t *testing.T) {
	assert.Equal(t, "<h2>Attributes</h2>", MarkdownToHTML("## Attributes"))
}

func TestMarkdownToHTMLInlineConstructs(t *testing.T) {
	assert.Equal(t, "<p>a <strong>bold</strong> word</p>", MarkdownToHTML("a **bold** word"))
	assert.Equal(t, "<p>an <em>emphasised</em> word</p>", MarkdownToHTML("an *emphasised* word"))
	assert.Equal(t, "<p>inline <code>code</code> span</p>", MarkdownToHTML("inline `code` span"))
	assert.Equal(t, `<p>a <a href="https://example.com">link</a></p>`, MarkdownToHTML("a [link](https://example.com)"))
}

func TestMarkdownToHTMLEscapesHTML(t *testing.T) {
	assert.Equal(t, "<p>&lt;script&gt;</p>", MarkdownToHTML("<script>"))
}

func TestMarkdownToHTMLEmptyLine(t *testing.T) {
	assert.Equal(t, "<p>a</p>\n\n<p>b</p>", MarkdownToHTML("a\n\nb"))
}

func TestMarkdownToHTMLMultipleHeadingLevels(t *testing.T) {
	assert.Equal(t, "<h1>Title</h1>", MarkdownToHTML("# Title"))
	assert.Equal(t, "<h6>Deep</h6>", MarkdownToHTML("###### Deep"))
}
