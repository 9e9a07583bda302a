package archive

import (
	"log/slog"

	"github.com/meridianmc/worldpack"
	"github.com/meridianmc/worldpack/codec"
)

// DefaultMemoryLimit caps in-memory chunk buffering when no option is
// set; chunks beyond the budget spill to the build's scratch directory.
const DefaultMemoryLimit = 1 << 30

// DefaultLevel returns the default compression level for a format:
// a fast zstd mode for tar+zstd, midrange deflate for zip.
func DefaultLevel(format worldpack.Format) int {
	if format == worldpack.FormatZip {
		return 6
	}
	return -7
}

// config holds configuration for one build invocation.
type config struct {
	format       worldpack.Format
	level        int
	levelSet     bool
	workers      int
	memoryLimit  uint64
	logger       *slog.Logger
	progress     worldpack.ProgressFunc
	manifestOpts []worldpack.ManifestOption
	compressor   codec.Compressor
}

func (c *config) log() *slog.Logger {
	if c.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return c.logger
}

// Option configures a build.
type Option func(*config)

// WithFormat sets the archive format. The default is tar+zstd.
func WithFormat(f worldpack.Format) Option {
	return func(cfg *config) {
		cfg.format = f
	}
}

// WithLevel sets the format-native compression level: 0-9 for zip,
// the zstd range (negative fast modes through 22) for tar+zstd.
func WithLevel(level int) Option {
	return func(cfg *config) {
		cfg.level = level
		cfg.levelSet = true
	}
}

// WithWorkers sets the worker count. Values <= 0 use the available CPU
// parallelism. A single worker compresses the whole manifest as one
// chunk.
func WithWorkers(n int) Option {
	return func(cfg *config) {
		cfg.workers = n
	}
}

// WithMemoryLimit caps the bytes of chunk output buffered in memory
// across all workers. Zero forces every chunk to spill to disk.
func WithMemoryLimit(bytes uint64) Option {
	return func(cfg *config) {
		cfg.memoryLimit = bytes
	}
}

// WithLogger sets the logger for build diagnostics. If not set, logging
// is disabled.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *config) {
		cfg.logger = logger
	}
}

// WithProgress sets a callback receiving build progress events.
func WithProgress(fn worldpack.ProgressFunc) Option {
	return func(cfg *config) {
		cfg.progress = fn
	}
}

// WithSkip excludes walk entries from the manifest; used for layout
// rules such as pruning unselected dimensions.
func WithSkip(fns ...worldpack.SkipFunc) Option {
	return func(cfg *config) {
		cfg.manifestOpts = append(cfg.manifestOpts, worldpack.ManifestWithSkip(fns...))
	}
}

// WithCompressor overrides the codec backend constructed from the format
// and level. The compressor must produce chunk outputs compatible with
// the configured format's assembler.
func WithCompressor(c codec.Compressor) Option {
	return func(cfg *config) {
		cfg.compressor = c
	}
}
