// Package fs holds the filesystem service used by the engine and the
// asynchronous copy queue built on top of it.
package fs

import (
	"errors"
	"time"
)

var (
	ErrNotExist        = errors.New("path does not exist")
	ErrUnsafeArchive   = errors.New("archive entry escapes destination")
	ErrQueueClosed     = errors.New("task queue closed")
	ErrDirectoryExists = errors.New("directory already exists")
)

// Service is the filesystem surface consumed by the engine. Every call
// is synchronous; TaskQueue runs Copy on worker goroutines.
type Service interface {
	Exists(path string) bool
	// Copy copies a file or a whole tree, creating missing parents of dst.
	Copy(src, dst string) error
	// RemoveTree removes path. Without recursive a non-empty directory fails.
	RemoveTree(path string, recursive bool) error
	// ListDirectory returns entry names of a directory, [path] for a
	// regular file and nothing for a missing path.
	ListDirectory(path string) ([]string, error)
	CreateFile(path string) error
	ExtractArchive(path, dest string) error
	MakeDir(path string, recursive bool) error
	LastModified(path string) (time.Time, error)
}
