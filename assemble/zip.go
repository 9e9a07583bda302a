package assemble

import (
	"io"

	"github.com/meridianmc/worldpack"
	"github.com/meridianmc/worldpack/internal/zipfmt"
)

// zipAssembler concatenates chunk record runs and appends the single
// central directory the zip format allows. Each record's header offset is
// shifted from chunk-relative to absolute by the total length of the
// chunks preceding it.
type zipAssembler struct{}

func (a *zipAssembler) Assemble(outputs []*worldpack.ChunkOutput, dest string) (*worldpack.ArchiveDescriptor, error) {
	sorted := ordered(outputs)

	size, dg, err := publish(dest, func(w io.Writer) error {
		records := make([]worldpack.EntryRecord, 0, totalRecords(sorted))
		var offset uint64
		for _, out := range sorted {
			if err := copyOutput(w, out); err != nil {
				return err
			}
			for _, rec := range out.Records {
				rec.HeaderOffset += offset
				records = append(records, rec)
			}
			offset += out.Size()
		}
		return zipfmt.WriteCentralDirectory(w, records, offset)
	})
	if err != nil {
		return nil, err
	}

	return &worldpack.ArchiveDescriptor{
		Format:     worldpack.FormatZip,
		Path:       dest,
		TotalBytes: size,
		Digest:     dg,
	}, nil
}

func totalRecords(outputs []*worldpack.ChunkOutput) int {
	n := 0
	for _, out := range outputs {
		n += len(out.Records)
	}
	return n
}
