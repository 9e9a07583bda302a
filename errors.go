package worldpack

import "errors"

var (
	// ErrRootNotFound is returned when a root path does not exist or is
	// not a directory.
	ErrRootNotFound = errors.New("root directory not found")

	// ErrDuplicatePath is returned when two roots map distinct files to
	// the same relative path.
	ErrDuplicatePath = errors.New("duplicate entry path")

	// ErrUnknownFormat is returned for an unrecognized format name.
	ErrUnknownFormat = errors.New("unknown archive format")

	// ErrCodec is returned when a chunk's compression step fails. It is
	// fatal for the whole build; no archive is published.
	ErrCodec = errors.New("codec failure")

	// ErrAssemble is returned when writing or publishing the final
	// archive fails.
	ErrAssemble = errors.New("archive assembly failure")

	// ErrPathTooLong is returned when a relative path exceeds the
	// container format's encoding limit.
	ErrPathTooLong = errors.New("entry path too long for archive format")

	// ErrEntryTooLarge is returned when an entry exceeds the container
	// format's size limit.
	ErrEntryTooLarge = errors.New("entry too large for archive format")
)
