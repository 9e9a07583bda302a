package codec

import (
	"bytes"
	"fmt"
	"os"

	"golang.org/x/sync/semaphore"

	"github.com/meridianmc/worldpack"
)

// Sink receives one chunk's compressed bytes and seals them into a
// ChunkOutput. Exactly one of Output or Abort must be called.
type Sink interface {
	Write(p []byte) (int, error)

	// Output seals everything written into a ChunkOutput.
	Output(index, entryCount int, records []worldpack.EntryRecord) (*worldpack.ChunkOutput, error)

	// Abort discards everything written and frees any reservation.
	Abort()
}

// SinkFactory hands out sinks under a build-wide memory budget. A chunk
// whose raw size fits the remaining budget buffers in memory; anything
// else streams to a spill file in the scratch directory. The budget is
// reserved at the chunk's uncompressed size, an upper bound on the
// compressed output.
type SinkFactory struct {
	budget     *semaphore.Weighted
	limit      uint64
	scratchDir string
}

// NewSinkFactory creates a factory. memoryLimit zero disables in-memory
// buffering entirely; scratchDir empty falls back to os.TempDir.
func NewSinkFactory(memoryLimit uint64, scratchDir string) *SinkFactory {
	f := &SinkFactory{limit: memoryLimit, scratchDir: scratchDir}
	if f.scratchDir == "" {
		f.scratchDir = os.TempDir()
	}
	if memoryLimit > 0 {
		f.budget = semaphore.NewWeighted(int64(min(memoryLimit, 1<<62)))
	}
	return f
}

// Sink returns a sink for the given chunk.
func (f *SinkFactory) Sink(chunk worldpack.WorkChunk) (Sink, error) {
	reserve := chunk.TotalBytes
	if f.budget != nil && reserve <= f.limit && f.budget.TryAcquire(int64(reserve)) {
		return &memorySink{budget: f.budget, reserved: int64(reserve)}, nil
	}
	file, err := os.CreateTemp(f.scratchDir, "chunk-*.bin")
	if err != nil {
		return nil, fmt.Errorf("create spill file: %w", err)
	}
	return &spillSink{file: file}, nil
}

// memorySink buffers chunk output in memory against the budget.
type memorySink struct {
	buf      bytes.Buffer
	budget   *semaphore.Weighted
	reserved int64
}

func (s *memorySink) Write(p []byte) (int, error) {
	return s.buf.Write(p)
}

func (s *memorySink) Output(index, entryCount int, records []worldpack.EntryRecord) (*worldpack.ChunkOutput, error) {
	budget, reserved := s.budget, s.reserved
	s.budget = nil
	return worldpack.MemoryChunkOutput(index, records, entryCount, s.buf.Bytes(), func() {
		budget.Release(reserved)
	}), nil
}

func (s *memorySink) Abort() {
	if s.budget != nil {
		s.budget.Release(s.reserved)
		s.budget = nil
	}
	s.buf.Reset()
}

// spillSink streams chunk output to a temp file.
type spillSink struct {
	file *os.File
	n    uint64
}

func (s *spillSink) Write(p []byte) (int, error) {
	n, err := s.file.Write(p)
	s.n += uint64(n)
	return n, err
}

func (s *spillSink) Output(index, entryCount int, records []worldpack.EntryRecord) (*worldpack.ChunkOutput, error) {
	path := s.file.Name()
	if err := s.file.Close(); err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("close spill file: %w", err)
	}
	return worldpack.SpilledChunkOutput(index, records, entryCount, path, s.n), nil
}

func (s *spillSink) Abort() {
	path := s.file.Name()
	s.file.Close()
	os.Remove(path)
}
