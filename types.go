package worldpack

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"

	"github.com/opencontainers/go-digest"
)

// Format identifies the archive container and compression scheme.
type Format uint8

const (
	// FormatTarZstd produces a tar stream framed with zstd (.tar.zst).
	FormatTarZstd Format = iota

	// FormatZip produces a zip archive with per-entry deflate (.zip).
	FormatZip
)

// ParseFormat converts a user-supplied format name to a Format.
func ParseFormat(s string) (Format, error) {
	switch s {
	case "zstd", "tar.zst":
		return FormatTarZstd, nil
	case "zip":
		return FormatZip, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

func (f Format) String() string {
	switch f {
	case FormatTarZstd:
		return "zstd"
	case FormatZip:
		return "zip"
	default:
		return fmt.Sprintf("Format(%d)", f)
	}
}

// Extension returns the file extension for the format, without a leading dot.
func (f Format) Extension() string {
	if f == FormatZip {
		return "zip"
	}
	return "tar.zst"
}

// ContentType returns the MIME type advertised when serving the archive.
func (f Format) ContentType() string {
	if f == FormatZip {
		return "application/zip"
	}
	return "application/zstd"
}

// Entry is a single file selected for archiving. RelPath is the entry's
// identity within a manifest and its path inside the archive; Size is the
// byte size observed at walk time (a best-effort snapshot).
type Entry struct {
	RelPath string
	AbsPath string
	Size    uint64
}

// SkipWarning records a file or directory that was left out of the
// manifest without failing the build.
type SkipWarning struct {
	Path string
	Err  error
}

// Manifest is the full ordered list of files selected for archiving.
// Entries follow the deterministic walk order of BuildManifest and are
// never mutated after construction.
type Manifest struct {
	Entries    []Entry
	TotalBytes uint64
	Warnings   []SkipWarning
}

// SkipFunc reports whether a walk entry should be excluded from the
// manifest. relPath is the slash-separated archive path the entry would
// receive. Returning true for a directory prunes its whole subtree.
type SkipFunc func(relPath string, d fs.DirEntry) bool

// WorkChunk is a balanced subset of the manifest assigned to one worker.
// Chunks partition the manifest exactly; Index is the sole ordering key
// used at reassembly.
type WorkChunk struct {
	Index      int
	Entries    []Entry
	TotalBytes uint64
}

// EntryRecord carries the per-entry metadata a zip central directory
// needs. HeaderOffset is relative to the start of the chunk that produced
// the record; the assembler shifts it by the preceding chunks' lengths.
type EntryRecord struct {
	Name             string
	CRC32            uint32
	CompressedSize   uint64
	UncompressedSize uint64
	HeaderOffset     uint64
	Modified         time.Time
	Mode             fs.FileMode
}

// ChunkOutput holds the compressed bytes produced from one WorkChunk.
// The bytes live either in memory or in a spill file on disk; Open reads
// them back wherever they are. A ChunkOutput is produced by exactly one
// worker and consumed by exactly one assembler pass.
type ChunkOutput struct {
	Index      int
	EntryCount int
	Records    []EntryRecord

	size    uint64
	data    []byte
	spill   string
	release func()
}

// MemoryChunkOutput wraps an in-memory chunk buffer. release, if non-nil,
// is invoked once when the output is released.
func MemoryChunkOutput(index int, records []EntryRecord, entryCount int, data []byte, release func()) *ChunkOutput {
	return &ChunkOutput{
		Index:      index,
		EntryCount: entryCount,
		Records:    records,
		size:       uint64(len(data)),
		data:       data,
		release:    release,
	}
}

// SpilledChunkOutput wraps a chunk buffer that was written to a temp file.
func SpilledChunkOutput(index int, records []EntryRecord, entryCount int, path string, size uint64) *ChunkOutput {
	return &ChunkOutput{
		Index:      index,
		EntryCount: entryCount,
		Records:    records,
		size:       size,
		spill:      path,
	}
}

// Size returns the chunk output's byte length.
func (c *ChunkOutput) Size() uint64 { return c.size }

// Open returns a reader over the chunk bytes.
func (c *ChunkOutput) Open() (io.ReadCloser, error) {
	if c.spill != "" {
		return os.Open(c.spill)
	}
	return io.NopCloser(bytes.NewReader(c.data)), nil
}

// Release frees the chunk's buffer or removes its spill file. It is safe
// to call more than once.
func (c *ChunkOutput) Release() {
	if c.release != nil {
		c.release()
		c.release = nil
	}
	c.data = nil
	if c.spill != "" {
		os.Remove(c.spill)
		c.spill = ""
	}
}

// ArchiveDescriptor describes a finished archive on disk. It is immutable
// once written and may be read by any number of concurrent requests.
type ArchiveDescriptor struct {
	Format     Format
	Path       string
	TotalBytes uint64
	Digest     digest.Digest
}
