package targetcfg

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName), []byte(body), 0o644))
}

func TestLoadSingleFile(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `
acronyms: ["http", "url"]
params:
  target: go
templates:
  - pattern: "attributes.md.tmpl"
    application_mode: single
`)

	cfg, err := Load([]string{dir})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"http", "url"}, cfg.Acronyms)
	assert.Equal(t, "go", cfg.Params["target"])
	require.Len(t, cfg.Templates, 1)
	assert.Equal(t, "attributes.md.tmpl", cfg.Templates[0].Template)
}

func TestLoadMergesLastWriterWins(t *testing.T) {
	outer := t.TempDir()
	inner := filepath.Join(outer, "inner")
	require.NoError(t, os.Mkdir(inner, 0o755))

	writeConfig(t, outer, "default_comment_format: markdown\nparams:\n  a: 1\n")
	writeConfig(t, inner, "default_comment_format: html\nparams:\n  b: 2\n")

	cfg, err := Load([]string{outer, inner})
	require.NoError(t, err)
	assert.Equal(t, "html", cfg.DefaultCommentFormat)
	assert.Equal(t, 1, cfg.Params["a"])
	assert.Equal(t, 2, cfg.Params["b"])
}

func TestLoadNoConfigFilesReturnsZeroValue(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load([]string{dir})
	require.NoError(t, err)
	assert.Empty(t, cfg.Templates)
}

func TestMergeParamsPrecedence(t *testing.T) {
	fileLevel := map[string]any{"a": "file", "b": "file"}
	perTemplate := map[string]any{"b": "template", "c": "template"}
	commandLine := map[string]any{"c": "cli"}

	merged := MergeParams(fileLevel, perTemplate, commandLine)
	assert.Equal(t, "file", merged["a"])
	assert.Equal(t, "template", merged["b"])
	assert.Equal(t, "cli", merged["c"])
}

func TestDiscoveryPathsEndsAtTarget(t *testing.T) {
	dir := t.TempDir()
	paths, err := DiscoveryPaths(dir)
	require.NoError(t, err)
	require.NotEmpty(t, paths)
	abs, _ := filepath.Abs(dir)
	assert.Equal(t, abs, paths[len(paths)-1])
}
