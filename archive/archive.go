// Package archive runs the build pipeline: manifest walk, partitioning,
// parallel chunk compression, and final assembly.
package archive

import (
	"context"
	"fmt"
	"os"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/meridianmc/worldpack"
	"github.com/meridianmc/worldpack/assemble"
	"github.com/meridianmc/worldpack/codec"
)

// Build archives the files under roots into a single file at dest.
//
// The manifest is partitioned into one chunk per worker and the chunks
// are compressed in parallel, each by exactly one worker. The first
// failure wins: the remaining unstarted work is cancelled, in-flight
// workers finish their current entry and stop at the next check, every
// chunk output is discarded, and dest is left untouched. On success the
// outputs are assembled in chunk-index order and dest is replaced
// atomically.
//
// Warnings accumulated during the walk (unreadable files, non-regular
// entries) do not fail the build; they are reported through the
// configured logger and remain inspectable on the manifest.
func Build(ctx context.Context, roots []string, dest string, opts ...Option) (*worldpack.ArchiveDescriptor, error) {
	cfg := config{memoryLimit: DefaultMemoryLimit}
	for _, opt := range opts {
		opt(&cfg)
	}
	if !cfg.levelSet {
		cfg.level = DefaultLevel(cfg.format)
	}

	manifestOpts := append([]worldpack.ManifestOption{
		worldpack.ManifestWithLogger(cfg.logger),
	}, cfg.manifestOpts...)
	if cfg.progress != nil {
		manifestOpts = append(manifestOpts, worldpack.ManifestWithProgress(cfg.progress))
	}
	m, err := worldpack.BuildManifest(roots, manifestOpts...)
	if err != nil {
		return nil, err
	}

	n := worldpack.ChunkCount(cfg.format, cfg.level, cfg.workers)
	chunks := worldpack.Partition(m, n)
	cfg.log().Info("build started",
		"files", len(m.Entries),
		"bytes", m.TotalBytes,
		"skipped", len(m.Warnings),
		"format", cfg.format.String(),
		"level", cfg.level,
		"workers", n,
	)

	comp := cfg.compressor
	if comp == nil {
		comp, err = codec.New(cfg.format, cfg.level, codec.WithProgress(compressProgress(&cfg, m)))
		if err != nil {
			return nil, err
		}
	}

	scratch, err := os.MkdirTemp("", "worldpack-*")
	if err != nil {
		return nil, fmt.Errorf("create scratch directory: %w", err)
	}
	defer os.RemoveAll(scratch)
	sinks := codec.NewSinkFactory(cfg.memoryLimit, scratch)

	outputs := make([]*worldpack.ChunkOutput, len(chunks))
	releaseAll := func() {
		for _, out := range outputs {
			if out != nil {
				out.Release()
			}
		}
	}

	eg, gctx := errgroup.WithContext(ctx)
	for _, chunk := range chunks {
		if len(chunk.Entries) == 0 {
			continue
		}
		eg.Go(func() error {
			// A failure elsewhere cancels work that has not started.
			if err := gctx.Err(); err != nil {
				return err
			}
			sink, err := sinks.Sink(chunk)
			if err != nil {
				return fmt.Errorf("chunk %d: %w", chunk.Index, err)
			}
			out, err := comp.Compress(gctx, chunk, sink)
			if err != nil {
				return fmt.Errorf("chunk %d: %w", chunk.Index, err)
			}
			outputs[chunk.Index] = out
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		releaseAll()
		return nil, err
	}
	defer releaseAll()

	produced := make([]*worldpack.ChunkOutput, 0, len(outputs))
	for _, out := range outputs {
		if out != nil {
			produced = append(produced, out)
		}
	}

	if cfg.progress != nil {
		cfg.progress(worldpack.ProgressEvent{Stage: worldpack.StageAssembling, FilesTotal: len(m.Entries)})
	}
	asm, err := assemble.New(cfg.format, cfg.level)
	if err != nil {
		return nil, err
	}
	desc, err := asm.Assemble(produced, dest)
	if err != nil {
		return nil, err
	}

	if cfg.progress != nil {
		cfg.progress(worldpack.ProgressEvent{Stage: worldpack.StageComplete, BytesTotal: desc.TotalBytes})
	}
	cfg.log().Info("archive published",
		"path", desc.Path,
		"bytes", desc.TotalBytes,
		"digest", desc.Digest.String(),
	)
	return desc, nil
}

// compressProgress aggregates per-entry codec events with build-wide
// counters before forwarding them to the user callback.
func compressProgress(cfg *config, m *worldpack.Manifest) worldpack.ProgressFunc {
	if cfg.progress == nil {
		return nil
	}
	var done atomic.Int64
	total := len(m.Entries)
	return func(ev worldpack.ProgressEvent) {
		if ev.Stage == worldpack.StageCompressing {
			ev.FilesDone = int(done.Add(1))
			ev.FilesTotal = total
			ev.BytesTotal = m.TotalBytes
		}
		cfg.progress(ev)
	}
}
