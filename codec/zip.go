package codec

import (
	"context"
	"errors"
	"fmt"
	"hash"
	"hash/crc32"
	"io"
	"os"

	"github.com/klauspost/compress/flate"

	"github.com/meridianmc/worldpack"
	"github.com/meridianmc/worldpack/internal/zipfmt"
)

// zipCompressor writes a chunk as a run of zip local-file records with
// deflate bodies and trailing data descriptors. No central directory is
// written; the assembler appends a single directory over all chunks.
type zipCompressor struct {
	level int
	cfg   config
}

func newZipCompressor(level int, cfg config) (*zipCompressor, error) {
	if level < flate.NoCompression || level > flate.BestCompression {
		return nil, fmt.Errorf("zip compression level %d out of range 0-9", level)
	}
	return &zipCompressor{level: level, cfg: cfg}, nil
}

func (z *zipCompressor) Compress(ctx context.Context, chunk worldpack.WorkChunk, sink Sink) (*worldpack.ChunkOutput, error) {
	cw := &countingWriter{w: sink}
	records := make([]worldpack.EntryRecord, 0, len(chunk.Entries))

	fw, err := flate.NewWriter(io.Discard, z.level)
	if err != nil {
		sink.Abort()
		return nil, fmt.Errorf("%w: %v", worldpack.ErrCodec, err)
	}
	crc := crc32.NewIEEE()

	for _, entry := range chunk.Entries {
		if err := ctx.Err(); err != nil {
			sink.Abort()
			return nil, err
		}
		z.cfg.report(worldpack.StageCompressing, chunk.Index, entry.RelPath)

		rec, err := z.writeEntry(cw, fw, crc, entry)
		if err != nil {
			sink.Abort()
			if errors.Is(err, worldpack.ErrPathTooLong) {
				return nil, fmt.Errorf("%s: %w", entry.RelPath, err)
			}
			return nil, fmt.Errorf("%w: %s: %v", worldpack.ErrCodec, entry.RelPath, err)
		}
		records = append(records, rec)
	}

	return sink.Output(chunk.Index, len(records), records)
}

// writeEntry writes one local record: header, deflate body, descriptor.
// The header carries the streamed flag, so sizes and CRC land in the
// descriptor and nothing needs buffering.
func (z *zipCompressor) writeEntry(cw *countingWriter, fw *flate.Writer, crc hash.Hash32, entry worldpack.Entry) (worldpack.EntryRecord, error) {
	f, err := os.Open(entry.AbsPath)
	if err != nil {
		return worldpack.EntryRecord{}, err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return worldpack.EntryRecord{}, err
	}

	headerOffset := cw.n
	if _, err := zipfmt.WriteLocalHeader(cw, entry.RelPath, fi.ModTime()); err != nil {
		return worldpack.EntryRecord{}, err
	}

	crc.Reset()
	body := &countingWriter{w: cw}
	fw.Reset(body)

	usize, err := io.Copy(fw, io.TeeReader(f, crc))
	if err != nil {
		return worldpack.EntryRecord{}, err
	}
	if err := fw.Close(); err != nil {
		return worldpack.EntryRecord{}, err
	}

	sum := crc.Sum32()
	if _, err := zipfmt.WriteDataDescriptor(cw, sum, body.n, uint64(usize)); err != nil {
		return worldpack.EntryRecord{}, err
	}

	return worldpack.EntryRecord{
		Name:             entry.RelPath,
		CRC32:            sum,
		CompressedSize:   body.n,
		UncompressedSize: uint64(usize),
		HeaderOffset:     headerOffset,
		Modified:         fi.ModTime(),
		Mode:             fi.Mode(),
	}, nil
}
