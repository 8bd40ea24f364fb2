package layout

import (
	"context"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/skyline93/svdag/internal/backend"
	"github.com/skyline93/svdag/internal/fs"
)

// LocalFilesystem implements Filesystem on the local disk.
type LocalFilesystem struct {
}

// ReadDir returns all entries of a directory.
func (l *LocalFilesystem) ReadDir(_ context.Context, dir string) ([]os.FileInfo, error) {
	f, err := fs.Open(dir)
	if err != nil {
		return nil, err
	}

	entries, err := f.Readdir(-1)
	if err != nil {
		_ = f.Close()
		return nil, errors.Wrap(err, "Readdir")
	}

	err = f.Close()
	if err != nil {
		return nil, errors.Wrap(err, "Close")
	}

	return entries, nil
}

// Join combines several path components to one.
func (l *LocalFilesystem) Join(paths ...string) string {
	return filepath.Join(paths...)
}

// IsNotExist returns true for errors that are caused by not existing files.
func (l *LocalFilesystem) IsNotExist(err error) bool {
	return os.IsNotExist(err)
}

// Filesystem is the abstraction of a file system used by a backend.
type Filesystem interface {
	Join(...string) string
	ReadDir(context.Context, string) ([]os.FileInfo, error)
	IsNotExist(error) bool
}

// Layout computes paths for file name storage.
type Layout interface {
	Filename(backend.Handle) string
	Dirname(backend.Handle) string
	Basedir(backend.FileType) (dir string, subdirs bool)
	Paths() []string
	Name() string
}

var typeDirs = map[backend.FileType]string{
	backend.GraphFile: "graphs",
	backend.SceneFile: "scenes",
}

// DefaultLayout stores files below a directory per type, fanned out into
// subdirectories named after the first two characters of the file name:
//
//	graphs/2f/2f6c...
//	scenes/a0/a01b...
type DefaultLayout struct {
	Path string
	Join func(...string) string
}

// NewDefaultLayout returns a layout rooted at path.
func NewDefaultLayout(path string, join func(...string) string) *DefaultLayout {
	return &DefaultLayout{Path: path, Join: join}
}

// Name returns the name for this layout.
func (l *DefaultLayout) Name() string {
	return "default"
}

// Dirname returns the directory path for a given file type and name.
func (l *DefaultLayout) Dirname(h backend.Handle) string {
	if len(h.Name) < 2 {
		return l.Join(l.Path, typeDirs[h.Type])
	}
	return l.Join(l.Path, typeDirs[h.Type], h.Name[:2])
}

// Filename returns a path to a file, including its name.
func (l *DefaultLayout) Filename(h backend.Handle) string {
	return l.Join(l.Dirname(h), h.Name)
}

// Paths returns all directory names needed for a repo.
func (l *DefaultLayout) Paths() (dirs []string) {
	dirs = append(dirs, l.Path)
	for _, t := range []backend.FileType{backend.GraphFile, backend.SceneFile} {
		dirs = append(dirs, l.Join(l.Path, typeDirs[t]))
	}
	return dirs
}

// Basedir returns the base dir name for type t.
func (l *DefaultLayout) Basedir(t backend.FileType) (dirname string, subdirs bool) {
	return l.Join(l.Path, typeDirs[t]), true
}
