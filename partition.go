package worldpack

import (
	"runtime"
	"slices"
)

// bestRatioZstdLevel is the native zstd level at or above which the
// partitioner collapses to a single chunk: one full-stream encoder
// squeezes out the last few percent that independent frames give up.
const bestRatioZstdLevel = 19

// ChunkCount decides how many chunks (and therefore workers) a build
// uses. workers <= 0 selects the available CPU parallelism. The count
// collapses to one when the caller asked for a single worker, or when the
// format is tar+zstd at a high compression level, where the ratio gain of
// a single full-stream context outweighs parallelism.
func ChunkCount(format Format, level, workers int) int {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers == 1 {
		return 1
	}
	if format == FormatTarZstd && level >= bestRatioZstdLevel {
		return 1
	}
	return workers
}

// Partition divides the manifest into exactly n WorkChunks using greedy
// longest-processing-time-first assignment: entries are taken in
// descending size order and each goes to the currently lightest chunk.
// This bounds the heaviest chunk by total/n plus the largest entry, even
// for heavily size-skewed trees. Empty chunks are produced when the
// manifest has fewer entries than n.
//
// Chunk-internal order is assignment order, not manifest order; only the
// chunk index matters for reassembly.
func Partition(m *Manifest, n int) []WorkChunk {
	if n < 1 {
		n = 1
	}
	chunks := make([]WorkChunk, n)
	for i := range chunks {
		chunks[i].Index = i
	}
	if n == 1 {
		chunks[0].Entries = slices.Clone(m.Entries)
		chunks[0].TotalBytes = m.TotalBytes
		return chunks
	}

	// Sort a copy descending by size; ties keep manifest order so the
	// partition is deterministic.
	order := slices.Clone(m.Entries)
	slices.SortStableFunc(order, func(a, b Entry) int {
		switch {
		case a.Size > b.Size:
			return -1
		case a.Size < b.Size:
			return 1
		default:
			return 0
		}
	})

	for _, e := range order {
		lightest := 0
		for i := 1; i < n; i++ {
			if chunks[i].TotalBytes < chunks[lightest].TotalBytes {
				lightest = i
			}
		}
		chunks[lightest].Entries = append(chunks[lightest].Entries, e)
		chunks[lightest].TotalBytes += e.Size
	}
	return chunks
}
