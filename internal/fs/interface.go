package fs

import (
	"io"
	"os"
)

// File is an open file on a filesystem.
type File interface {
	io.Reader
	io.Closer

	Readdir(int) ([]os.FileInfo, error)
	Seek(int64, int) (int64, error)
	Stat() (os.FileInfo, error)
	Name() string
}
