package worldpack

import (
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeTree creates a named root directory populated with files.
func writeTree(t *testing.T, name string, files map[string]string) string {
	t.Helper()
	root := filepath.Join(t.TempDir(), name)
	for rel, content := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
	return root
}

func TestBuildManifest_OrderAndPrefix(t *testing.T) {
	t.Parallel()

	root := writeTree(t, "world", map[string]string{
		"b.txt":   "bb",
		"a/x.txt": "x",
		"a/y.txt": "yy",
		"c.txt":   "c",
	})

	m, err := BuildManifest([]string{root})
	require.NoError(t, err)

	var paths []string
	for _, e := range m.Entries {
		paths = append(paths, e.RelPath)
	}
	assert.Equal(t, []string{"world/a/x.txt", "world/a/y.txt", "world/b.txt", "world/c.txt"}, paths)
	assert.Equal(t, uint64(6), m.TotalBytes)
	assert.Empty(t, m.Warnings)
}

func TestBuildManifest_MultipleRootsMerge(t *testing.T) {
	t.Parallel()

	overworld := writeTree(t, "world", map[string]string{"level.dat": "overworld"})
	nether := writeTree(t, "world_nether", map[string]string{"level.dat": "nether"})

	m, err := BuildManifest([]string{overworld, nether})
	require.NoError(t, err)

	var paths []string
	for _, e := range m.Entries {
		paths = append(paths, e.RelPath)
	}
	assert.Equal(t, []string{"world/level.dat", "world_nether/level.dat"}, paths)
}

func TestBuildManifest_DuplicatePath(t *testing.T) {
	t.Parallel()

	first := writeTree(t, "world", map[string]string{"level.dat": "one"})
	second := writeTree(t, "world", map[string]string{"level.dat": "two"})

	_, err := BuildManifest([]string{first, second})
	require.ErrorIs(t, err, ErrDuplicatePath)
}

func TestBuildManifest_RootNotFound(t *testing.T) {
	t.Parallel()

	_, err := BuildManifest([]string{filepath.Join(t.TempDir(), "missing")})
	require.ErrorIs(t, err, ErrRootNotFound)

	file := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))
	_, err = BuildManifest([]string{file})
	require.ErrorIs(t, err, ErrRootNotFound)
}

func TestBuildManifest_Idempotent(t *testing.T) {
	t.Parallel()

	root := writeTree(t, "world", map[string]string{
		"region/r.0.0.mca": "region data",
		"level.dat":        "level",
		"data/raids.dat":   "raids",
	})

	first, err := BuildManifest([]string{root})
	require.NoError(t, err)
	second, err := BuildManifest([]string{root})
	require.NoError(t, err)

	assert.Equal(t, first.Entries, second.Entries)
	assert.Equal(t, first.TotalBytes, second.TotalBytes)
}

func TestBuildManifest_SkipFunc(t *testing.T) {
	t.Parallel()

	root := writeTree(t, "world", map[string]string{
		"DIM-1/region/r.0.0.mca": "nether",
		"region/r.0.0.mca":       "overworld",
		"session.lock":           "lock",
	})

	m, err := BuildManifest([]string{root}, ManifestWithSkip(func(relPath string, d fs.DirEntry) bool {
		return relPath == "world/DIM-1" || relPath == "world/session.lock"
	}))
	require.NoError(t, err)

	var paths []string
	for _, e := range m.Entries {
		paths = append(paths, e.RelPath)
	}
	assert.Equal(t, []string{"world/region/r.0.0.mca"}, paths)
}

func TestBuildManifest_SkipsNonRegular(t *testing.T) {
	t.Parallel()
	if runtime.GOOS == "windows" {
		t.Skip("symlinks not reliable on windows")
	}

	root := writeTree(t, "world", map[string]string{"level.dat": "level"})
	require.NoError(t, os.Symlink(filepath.Join(root, "level.dat"), filepath.Join(root, "link.dat")))

	m, err := BuildManifest([]string{root})
	require.NoError(t, err)

	require.Len(t, m.Entries, 1)
	assert.Equal(t, "world/level.dat", m.Entries[0].RelPath)
	require.Len(t, m.Warnings, 1)
	assert.ErrorIs(t, m.Warnings[0].Err, errNotRegular)
}
