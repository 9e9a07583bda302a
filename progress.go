package worldpack

// ProgressStage identifies the current phase of an archive build.
type ProgressStage uint8

const (
	// StageScanning indicates the manifest builder is walking the roots.
	StageScanning ProgressStage = iota

	// StageCompressing indicates chunks are being compressed.
	StageCompressing

	// StageAssembling indicates chunk outputs are being merged into the
	// final archive.
	StageAssembling

	// StageComplete indicates the archive has been published.
	StageComplete
)

// ProgressEvent represents a progress update during an archive build.
type ProgressEvent struct {
	Stage      ProgressStage
	Path       string
	ChunkIndex int
	FilesDone  int
	FilesTotal int
	BytesDone  uint64
	BytesTotal uint64
}

// ProgressFunc receives progress updates during a build.
// Implementations must be safe for concurrent calls.
type ProgressFunc func(ProgressEvent)
