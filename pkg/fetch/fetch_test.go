package fetch

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	assert.Equal(t, KindGit, Classify("git://example.com/repo.git"))
	assert.Equal(t, KindGit, Classify("https://example.com/repo.git"))
	assert.Equal(t, KindOCI, Classify("oci://ghcr.io/example/registry:latest"))
	assert.Equal(t, KindZip, Classify("/tmp/bundle.zip"))
	assert.Equal(t, KindLocal, Classify("/tmp/local-registry"))
}

func TestSplitGitRef(t *testing.T) {
	url, sub, commit := splitGitRef("git://example.com/repo.git[sub/path]@abc123")
	assert.Equal(t, "example.com/repo.git", url)
	assert.Equal(t, "sub/path", sub)
	assert.Equal(t, "abc123", commit)
}

func TestSplitGitRefNoExtras(t *testing.T) {
	url, sub, commit := splitGitRef("git://example.com/repo.git")
	assert.Equal(t, "example.com/repo.git", url)
	assert.Empty(t, sub)
	assert.Empty(t, commit)
}

func TestFetchLocalReturnsPathUnchanged(t *testing.T) {
	dir := t.TempDir()
	f := New(Options{Quiet: true})
	got, err := f.Fetch(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, dir, got)
}

func TestFetchZipExtractsArchive(t *testing.T) {
	dir := t.TempDir()
	archivePath := filepath.Join(dir, "bundle.zip")
	writeTestZip(t, archivePath, map[string]string{
		"registry_manifest.yaml": "name: test\n",
		"groups/http.yaml":       "groups: []\n",
	})

	f := New(Options{Quiet: true})
	got, err := f.Fetch(context.Background(), archivePath)
	require.NoError(t, err)

	body, err := os.ReadFile(filepath.Join(got, "registry_manifest.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "name: test\n", string(body))
}

func writeTestZip(t *testing.T, path string, files map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	zw := zip.NewWriter(f)
	for name, body := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
}
