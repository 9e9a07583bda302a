// Package codec compresses WorkChunks into ChunkOutputs.
//
// Each supported archive format provides a Compressor that turns one
// chunk into a self-contained byte sequence safe to concatenate with the
// outputs of other chunks: zip chunks are runs of local-file records
// without a central directory, tar+zstd chunks are independent zstd
// frames without the tar end-of-archive marker. The assemble package owns
// the per-format finalization.
package codec

import (
	"context"
	"fmt"
	"io"

	"github.com/meridianmc/worldpack"
)

// Compressor compresses one WorkChunk into a ChunkOutput.
//
// Implementations check ctx between entries and abort cleanly when the
// build is cancelled; they never publish partial output. A Compressor is
// safe for concurrent Compress calls on distinct chunks.
type Compressor interface {
	Compress(ctx context.Context, chunk worldpack.WorkChunk, sink Sink) (*worldpack.ChunkOutput, error)
}

// config holds shared compressor configuration.
type config struct {
	progress worldpack.ProgressFunc
}

func (c *config) report(stage worldpack.ProgressStage, chunkIndex int, path string) {
	if c.progress != nil {
		c.progress(worldpack.ProgressEvent{Stage: stage, ChunkIndex: chunkIndex, Path: path})
	}
}

// Option configures a Compressor.
type Option func(*config)

// WithProgress sets a callback invoked once per compressed entry.
func WithProgress(fn worldpack.ProgressFunc) Option {
	return func(cfg *config) {
		cfg.progress = fn
	}
}

// New returns the Compressor for the given format and compression level.
// Levels are format-native: 0-9 for zip deflate, the zstd range
// (negative fast modes through 22) for tar+zstd.
func New(format worldpack.Format, level int, opts ...Option) (Compressor, error) {
	cfg := config{}
	for _, opt := range opts {
		opt(&cfg)
	}
	switch format {
	case worldpack.FormatZip:
		return newZipCompressor(level, cfg)
	case worldpack.FormatTarZstd:
		return newTarZstdCompressor(level, cfg)
	default:
		return nil, fmt.Errorf("%w: %d", worldpack.ErrUnknownFormat, format)
	}
}

// countingWriter tracks bytes written through it.
type countingWriter struct {
	w io.Writer
	n uint64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += uint64(n)
	return n, err
}
