package backend

import (
	"context"
	"hash"
	"io"
)

// FileType is the type of a file in the backend.
type FileType uint8

// These are the different data types a backend can store.
const (
	GraphFile FileType = 1 + iota
	SceneFile
)

func (t FileType) String() string {
	s := "invalid"
	switch t {
	case GraphFile:
		s = "graph"
	case SceneFile:
		s = "scene"
	}
	return s
}

// Handle is used to store and access data in a backend.
type Handle struct {
	Type FileType
	Name string
}

func (h Handle) String() string {
	name := h.Name
	if len(name) > 10 {
		name = name[:10]
	}
	return "<" + h.Type.String() + "/" + name + ">"
}

// FileInfo is contained in the result of a List operation.
type FileInfo struct {
	Size int64
	Name string
}

// Backend is used to store and access encoded graphs.
type Backend interface {
	// Location returns a string that describes the type and location of the
	// repository.
	Location() string

	// Connections returns the maximum number of concurrent backend operations.
	Connections() uint

	// Hasher may return a hash function for calculating a content hash for
	// the backend.
	Hasher() hash.Hash

	// Save stores the data from rd under the given handle.
	Save(ctx context.Context, h Handle, rd RewindReader) error

	// Load runs fn with a reader that yields the contents of the file at h at
	// the given offset. If length is larger than zero, only a portion of the
	// file is read. fn may be called more than once when the read is retried.
	Load(ctx context.Context, h Handle, length int, offset int64, fn func(rd io.Reader) error) error

	// Stat returns information about the file identified by h.
	Stat(ctx context.Context, h Handle) (FileInfo, error)

	// List runs fn for each file in the backend which has the type t. When an
	// error occurs (or fn returns an error), List stops and returns it.
	List(ctx context.Context, t FileType, fn func(FileInfo) error) error

	// Remove removes the file identified by h.
	Remove(ctx context.Context, h Handle) error

	// IsNotExist returns true if the error was caused by a non-existing file.
	IsNotExist(err error) bool

	// Close the backend.
	Close() error
}

// Unwrapper is implemented by backends that wrap another backend.
type Unwrapper interface {
	// Unwrap returns the underlying backend or nil if there is none.
	Unwrap() Backend
}

// AsBackend returns the first backend of type B in the chain of wrapped
// backends starting at b, or the zero value if there is none.
func AsBackend[B Backend](b Backend) B {
	for b != nil {
		if be, ok := b.(B); ok {
			return be
		}

		if be, ok := b.(Unwrapper); ok {
			b = be.Unwrap()
		} else {
			// not the backend we're looking for
			break
		}
	}
	var be B
	return be
}
