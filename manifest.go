package worldpack

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
)

var errNotRegular = errors.New("not a regular file")

// manifestConfig holds configuration for manifest building.
type manifestConfig struct {
	skip     []SkipFunc
	logger   *slog.Logger
	progress ProgressFunc
}

func (c *manifestConfig) log() *slog.Logger {
	if c.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return c.logger
}

// ManifestOption configures manifest building.
type ManifestOption func(*manifestConfig)

// ManifestWithSkip adds predicates that exclude walk entries from the
// manifest. If any predicate returns true for a directory, its whole
// subtree is pruned.
func ManifestWithSkip(fns ...SkipFunc) ManifestOption {
	return func(cfg *manifestConfig) {
		cfg.skip = append(cfg.skip, fns...)
	}
}

// ManifestWithLogger sets the logger used to report skipped paths.
// If not set, logging is disabled.
func ManifestWithLogger(logger *slog.Logger) ManifestOption {
	return func(cfg *manifestConfig) {
		cfg.logger = logger
	}
}

// ManifestWithProgress sets a callback invoked once per discovered file.
func ManifestWithProgress(fn ProgressFunc) ManifestOption {
	return func(cfg *manifestConfig) {
		cfg.progress = fn
	}
}

// BuildManifest walks the given root directories and produces a Manifest.
//
// Each root contributes entries under a prefix equal to its base name, so
// several roots (for example three dimension directories) merge into one
// flat namespace. Two files mapping to the same relative path is an
// ErrDuplicatePath error.
//
// The walk order is the lexical order of fs.WalkDir, making repeated
// walks over an unmodified tree deterministic. Unreadable files and
// directories, and entries that are not regular files, are skipped and
// accumulated as Warnings rather than failing the build. Entry sizes are
// a snapshot taken at walk time.
func BuildManifest(roots []string, opts ...ManifestOption) (*Manifest, error) {
	cfg := manifestConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	m := &Manifest{}
	seen := make(map[string]string)
	for _, root := range roots {
		if err := walkRoot(root, m, seen, &cfg); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// walkRoot adds one root's files to the manifest.
func walkRoot(root string, m *Manifest, seen map[string]string, cfg *manifestConfig) error {
	root = filepath.Clean(root)
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrRootNotFound, root)
	}
	prefix := filepath.Base(root)

	return filepath.WalkDir(root, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			m.Warnings = append(m.Warnings, SkipWarning{Path: p, Err: walkErr})
			cfg.log().Warn("skipping unreadable path", "path", p, "error", walkErr)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		relPath := prefix
		if p != root {
			rel, relErr := filepath.Rel(root, p)
			if relErr != nil {
				return relErr
			}
			relPath = path.Join(prefix, filepath.ToSlash(rel))
		}

		for _, skip := range cfg.skip {
			if skip(relPath, d) {
				if d.IsDir() {
					return fs.SkipDir
				}
				return nil
			}
		}
		if d.IsDir() {
			return nil
		}
		if !d.Type().IsRegular() {
			m.Warnings = append(m.Warnings, SkipWarning{Path: p, Err: errNotRegular})
			cfg.log().Warn("skipping entry", "path", p, "error", errNotRegular)
			return nil
		}

		fi, err := d.Info()
		if err != nil {
			m.Warnings = append(m.Warnings, SkipWarning{Path: p, Err: err})
			cfg.log().Warn("skipping unreadable path", "path", p, "error", err)
			return nil
		}

		if prev, ok := seen[relPath]; ok {
			return fmt.Errorf("%w: %q maps to both %s and %s", ErrDuplicatePath, relPath, prev, p)
		}
		seen[relPath] = p

		size := uint64(fi.Size())
		m.Entries = append(m.Entries, Entry{RelPath: relPath, AbsPath: p, Size: size})
		m.TotalBytes += size
		if cfg.progress != nil {
			cfg.progress(ProgressEvent{Stage: StageScanning, Path: relPath, FilesDone: len(m.Entries)})
		}
		return nil
	})
}
