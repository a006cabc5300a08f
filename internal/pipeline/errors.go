package pipeline

import "errors"

var (
	ErrNoInterpreters      = errors.New("no matching interpreters")
	ErrNoArtifacts         = errors.New("no build artifacts produced")
	ErrFileSystemOperation = errors.New("file system operation failed")
)
