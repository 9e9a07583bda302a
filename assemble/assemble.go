// Package assemble merges ordered ChunkOutputs into one final archive.
//
// The two formats finalize differently, which is why assembly is
// format-aware rather than a plain byte concatenator: zstd frames join by
// concatenation and only need the tar end-of-archive marker appended,
// while zip needs a single central directory listing every entry's
// absolute offset in the finished file.
package assemble

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"

	"github.com/opencontainers/go-digest"

	"github.com/meridianmc/worldpack"
)

// Assembler writes the final archive from chunk outputs ordered by chunk
// index. The destination is written atomically: a temp file in the same
// directory is renamed into place only after every byte is flushed, so a
// failed build never disturbs an existing archive at dest.
type Assembler interface {
	Assemble(outputs []*worldpack.ChunkOutput, dest string) (*worldpack.ArchiveDescriptor, error)
}

// New returns the Assembler for the given format. level is the
// compression level used for format trailer data.
func New(format worldpack.Format, level int) (Assembler, error) {
	switch format {
	case worldpack.FormatZip:
		return &zipAssembler{}, nil
	case worldpack.FormatTarZstd:
		return &tarZstdAssembler{level: level}, nil
	default:
		return nil, fmt.Errorf("%w: %d", worldpack.ErrUnknownFormat, format)
	}
}

// ordered returns the outputs sorted by chunk index. Workers complete in
// arbitrary order; the chunk index is the only ordering that matters.
func ordered(outputs []*worldpack.ChunkOutput) []*worldpack.ChunkOutput {
	sorted := slices.Clone(outputs)
	slices.SortFunc(sorted, func(a, b *worldpack.ChunkOutput) int {
		return a.Index - b.Index
	})
	return sorted
}

// copyOutput streams one chunk's bytes to w.
func copyOutput(w io.Writer, out *worldpack.ChunkOutput) error {
	r, err := out.Open()
	if err != nil {
		return fmt.Errorf("open chunk %d: %w", out.Index, err)
	}
	defer r.Close()

	n, err := io.Copy(w, r)
	if err != nil {
		return fmt.Errorf("copy chunk %d: %w", out.Index, err)
	}
	if uint64(n) != out.Size() {
		return fmt.Errorf("chunk %d: wrote %d of %d bytes", out.Index, n, out.Size())
	}
	return nil
}

// publish writes the archive through fn to a temp file next to dest and
// renames it into place, returning the byte count and content digest.
// On any error the temp file is removed and dest is left untouched.
func publish(dest string, fn func(io.Writer) error) (uint64, digest.Digest, error) {
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".worldpack-*")
	if err != nil {
		return 0, "", fmt.Errorf("%w: %v", worldpack.ErrAssemble, err)
	}
	tmpPath := tmp.Name()
	fail := func(err error) (uint64, digest.Digest, error) {
		tmp.Close()
		os.Remove(tmpPath)
		return 0, "", fmt.Errorf("%w: %v", worldpack.ErrAssemble, err)
	}

	digester := digest.SHA256.Digester()
	cw := &countingWriter{w: io.MultiWriter(tmp, digester.Hash())}

	if err := fn(cw); err != nil {
		return fail(err)
	}
	if err := tmp.Sync(); err != nil {
		return fail(err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return 0, "", fmt.Errorf("%w: %v", worldpack.ErrAssemble, err)
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		os.Remove(tmpPath)
		return 0, "", fmt.Errorf("%w: %v", worldpack.ErrAssemble, err)
	}
	return cw.n, digester.Digest(), nil
}

type countingWriter struct {
	w io.Writer
	n uint64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += uint64(n)
	return n, err
}
