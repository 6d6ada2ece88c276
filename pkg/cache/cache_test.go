package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashReferenceIsStableAndIncludesSubPath(t *testing.T) {
	a := HashReference("git://example.com/repo.git")
	b := HashReference("git://example.com/repo.git[sub/path]")
	assert.NotEqual(t, a, b)
	assert.Equal(t, a, HashReference("git://example.com/repo.git"))
}

func TestStoreThenLookup(t *testing.T) {
	root := t.TempDir()
	c, err := Open(root)
	require.NoError(t, err)
	defer c.Close()

	src := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src, "registry_manifest.yaml"), []byte("name: test\n"), 0o644))

	dest, err := c.Store("git://example.com/repo.git", src)
	require.NoError(t, err)

	got, ok := c.Lookup("git://example.com/repo.git")
	require.True(t, ok)
	assert.Equal(t, dest, got)

	body, err := os.ReadFile(filepath.Join(got, "registry_manifest.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "name: test\n", string(body))
}

func TestLookupMissReturnsFalse(t *testing.T) {
	root := t.TempDir()
	c, err := Open(root)
	require.NoError(t, err)
	defer c.Close()

	_, ok := c.Lookup("oci://example.com/registry:latest")
	assert.False(t, ok)
}

func TestPruneRemovesStaleEntries(t *testing.T) {
	root := t.TempDir()
	c, err := Open(root)
	require.NoError(t, err)
	defer c.Close()

	src := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src, "registry_manifest.yaml"), []byte("name: test\n"), 0o644))
	_, err = c.Store("zip:///tmp/archive.zip", src)
	require.NoError(t, err)

	removed, err := c.Prune(0)
	require.NoError(t, err)
	assert.Equal(t, 0, removed) // maxAge 0 means "no age-based pruning"

	removed, err = c.Prune(time.Nanosecond)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, ok := c.Lookup("zip:///tmp/archive.zip")
	assert.False(t, ok)
}

func TestListReturnsEntries(t *testing.T) {
	root := t.TempDir()
	c, err := Open(root)
	require.NoError(t, err)
	defer c.Close()

	src := t.TempDir()
	_, err = c.Store("local:one", src)
	require.NoError(t, err)

	entries, err := c.List()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "local:one", entries[0].Reference)
}
