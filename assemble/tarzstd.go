package assemble

import (
	"io"

	"github.com/klauspost/compress/zstd"

	"github.com/meridianmc/worldpack"
)

// tarBlockSize is the tar record block size; the end-of-archive marker
// is two zero blocks.
const tarBlockSize = 512

// tarZstdAssembler byte-concatenates the chunks' zstd frames in index
// order. Frames are concatenation-safe: a decoder reads consecutive
// frames as one continuous stream. The only bookkeeping is the tar
// end-of-archive marker, stripped from every chunk at compression time
// and appended here exactly once as a final frame.
type tarZstdAssembler struct {
	level int
}

func (a *tarZstdAssembler) Assemble(outputs []*worldpack.ChunkOutput, dest string) (*worldpack.ArchiveDescriptor, error) {
	size, dg, err := publish(dest, func(w io.Writer) error {
		for _, out := range ordered(outputs) {
			if err := copyOutput(w, out); err != nil {
				return err
			}
		}
		return a.writeTrailer(w)
	})
	if err != nil {
		return nil, err
	}

	return &worldpack.ArchiveDescriptor{
		Format:     worldpack.FormatTarZstd,
		Path:       dest,
		TotalBytes: size,
		Digest:     dg,
	}, nil
}

// writeTrailer emits the tar end-of-archive marker in its own zstd frame.
func (a *tarZstdAssembler) writeTrailer(w io.Writer) error {
	enc, err := zstd.NewWriter(w,
		zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(a.level)),
		zstd.WithEncoderConcurrency(1),
	)
	if err != nil {
		return err
	}
	if _, err := enc.Write(make([]byte, 2*tarBlockSize)); err != nil {
		enc.Close()
		return err
	}
	return enc.Close()
}
