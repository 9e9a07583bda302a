package codec

import (
	"archive/tar"
	"context"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/klauspost/compress/zstd"

	"github.com/meridianmc/worldpack"
)

// tarZstdMaxLevel is the highest native zstd compression level.
const tarZstdMaxLevel = 22

// tarZstdCompressor writes a chunk as tar records inside one independent
// zstd frame. The tar end-of-archive marker is never written here; the
// assembler emits it once after the final chunk, so concatenated frames
// decode as a single well-terminated tar stream.
type tarZstdCompressor struct {
	level zstd.EncoderLevel
	cfg   config
}

func newTarZstdCompressor(level int, cfg config) (*tarZstdCompressor, error) {
	if level > tarZstdMaxLevel {
		return nil, fmt.Errorf("zstd compression level %d out of range", level)
	}
	// Native zstd levels collapse onto the encoder's speed tiers;
	// negative fast modes select the fastest tier.
	return &tarZstdCompressor{level: zstd.EncoderLevelFromZstd(level), cfg: cfg}, nil
}

func (t *tarZstdCompressor) Compress(ctx context.Context, chunk worldpack.WorkChunk, sink Sink) (*worldpack.ChunkOutput, error) {
	enc, err := zstd.NewWriter(sink,
		zstd.WithEncoderLevel(t.level),
		zstd.WithEncoderConcurrency(1),
		zstd.WithLowerEncoderMem(true),
	)
	if err != nil {
		sink.Abort()
		return nil, fmt.Errorf("%w: %v", worldpack.ErrCodec, err)
	}

	tw := tar.NewWriter(enc)
	buf := make([]byte, 32*1024)

	for _, entry := range chunk.Entries {
		if err := ctx.Err(); err != nil {
			enc.Close()
			sink.Abort()
			return nil, err
		}
		t.cfg.report(worldpack.StageCompressing, chunk.Index, entry.RelPath)

		if err := t.writeEntry(tw, entry, buf); err != nil {
			enc.Close()
			sink.Abort()
			return nil, fmt.Errorf("%w: %s: %v", worldpack.ErrCodec, entry.RelPath, err)
		}
	}

	// Flush the final entry's block padding, then finish the frame.
	// tw.Close would also write the end-of-archive marker, which must
	// appear exactly once in the assembled stream.
	if err := tw.Flush(); err != nil {
		enc.Close()
		sink.Abort()
		return nil, fmt.Errorf("%w: %v", worldpack.ErrCodec, err)
	}
	if err := enc.Close(); err != nil {
		sink.Abort()
		return nil, fmt.Errorf("%w: %v", worldpack.ErrCodec, err)
	}

	return sink.Output(chunk.Index, len(chunk.Entries), nil)
}

// writeEntry writes one tar header and body. The header size comes from
// the manifest snapshot: a file that grew since the walk is truncated to
// the snapshot, one that shrank fails the build, since tar framing fixes
// the record length up front.
func (t *tarZstdCompressor) writeEntry(tw *tar.Writer, entry worldpack.Entry, buf []byte) error {
	if entry.Size > math.MaxInt64 {
		return worldpack.ErrEntryTooLarge
	}

	f, err := os.Open(entry.AbsPath)
	if err != nil {
		return err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return err
	}

	hdr, err := tar.FileInfoHeader(fi, "")
	if err != nil {
		return err
	}
	hdr.Name = entry.RelPath
	hdr.Size = int64(entry.Size)

	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	n, err := io.CopyBuffer(tw, io.LimitReader(f, int64(entry.Size)), buf)
	if err != nil {
		return err
	}
	if uint64(n) != entry.Size {
		return fmt.Errorf("file shrank during archiving: read %d of %d bytes", n, entry.Size)
	}
	return nil
}
