package worldpack

import (
	"fmt"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testManifest builds a manifest with the given entry sizes.
func testManifest(sizes ...uint64) *Manifest {
	m := &Manifest{}
	for i, size := range sizes {
		m.Entries = append(m.Entries, Entry{
			RelPath: fmt.Sprintf("world/file-%03d", i),
			AbsPath: fmt.Sprintf("/world/file-%03d", i),
			Size:    size,
		})
		m.TotalBytes += size
	}
	return m
}

func TestPartition_ExactPartition(t *testing.T) {
	t.Parallel()

	// Heavily size-skewed: a few region files among many small ones.
	m := testManifest(500<<20, 120<<20, 90<<20, 4096, 4096, 512, 512, 64, 64, 64, 8, 0)

	for n := 1; n <= len(m.Entries)+5; n++ {
		chunks := Partition(m, n)
		require.Len(t, chunks, n, "n=%d", n)

		seen := make(map[string]int)
		var total uint64
		for i, c := range chunks {
			assert.Equal(t, i, c.Index)
			var chunkTotal uint64
			for _, e := range c.Entries {
				seen[e.RelPath]++
				chunkTotal += e.Size
			}
			assert.Equal(t, chunkTotal, c.TotalBytes, "n=%d chunk=%d", n, i)
			total += chunkTotal
		}

		require.Len(t, seen, len(m.Entries), "n=%d", n)
		for path, count := range seen {
			require.Equal(t, 1, count, "n=%d entry %s", n, path)
		}
		assert.Equal(t, m.TotalBytes, total, "n=%d", n)
	}
}

func TestPartition_BalanceBound(t *testing.T) {
	t.Parallel()

	m := testManifest(900<<20, 100<<20, 100<<20, 100<<20, 1<<20, 1<<20, 1<<20, 64, 64, 64)
	var maxEntry uint64
	for _, e := range m.Entries {
		maxEntry = max(maxEntry, e.Size)
	}

	for _, n := range []int{1, 2, 3, 4, 8} {
		chunks := Partition(m, n)
		bound := (m.TotalBytes+uint64(n)-1)/uint64(n) + maxEntry
		for _, c := range chunks {
			assert.LessOrEqual(t, c.TotalBytes, bound, "n=%d chunk=%d", n, c.Index)
		}
	}
}

func TestPartition_SingleChunkKeepsManifestOrder(t *testing.T) {
	t.Parallel()

	m := testManifest(1, 100, 10, 1000, 5)
	chunks := Partition(m, 1)
	require.Len(t, chunks, 1)
	assert.Equal(t, m.Entries, chunks[0].Entries)
	assert.Equal(t, m.TotalBytes, chunks[0].TotalBytes)
}

func TestPartition_EmptyChunksWhenFewEntries(t *testing.T) {
	t.Parallel()

	m := testManifest(10, 20)
	chunks := Partition(m, 5)
	require.Len(t, chunks, 5)

	nonEmpty := 0
	for _, c := range chunks {
		if len(c.Entries) > 0 {
			nonEmpty++
		}
	}
	assert.Equal(t, 2, nonEmpty)
}

func TestChunkCount(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		format  Format
		level   int
		workers int
		want    int
	}{
		{"single worker", FormatZip, 6, 1, 1},
		{"zip parallel", FormatZip, 9, 4, 4},
		{"zstd fast parallel", FormatTarZstd, -7, 4, 4},
		{"zstd mid parallel", FormatTarZstd, 12, 4, 4},
		{"zstd best ratio collapses", FormatTarZstd, 19, 4, 1},
		{"zstd max level collapses", FormatTarZstd, 22, 8, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ChunkCount(tt.format, tt.level, tt.workers))
		})
	}

	assert.Equal(t, runtime.GOMAXPROCS(0), max(ChunkCount(FormatZip, 6, 0), 1))
}
