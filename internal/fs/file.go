package fs

import "os"

// Stat returns a FileInfo structure describing the named file.
func Stat(name string) (os.FileInfo, error) {
	return os.Stat(fixpath(name))
}

// MkdirAll creates a directory named path, along with any necessary parents.
// If path is already a directory, MkdirAll does nothing and returns nil.
func MkdirAll(path string, perm os.FileMode) error {
	return os.MkdirAll(fixpath(path), perm)
}

// Open opens a file for reading.
func Open(name string) (File, error) {
	return os.Open(fixpath(name))
}

// Remove removes the named file or directory.
func Remove(name string) error {
	return os.Remove(fixpath(name))
}

// RemoveIfExists removes a file, returning no error if it does not exist.
func RemoveIfExists(filename string) error {
	err := os.Remove(fixpath(filename))
	if err != nil && os.IsNotExist(err) {
		err = nil
	}
	return err
}

// OpenFile is the generalized open call.
func OpenFile(name string, flag int, perm os.FileMode) (*os.File, error) {
	return os.OpenFile(fixpath(name), flag, perm)
}

// CreateTemp creates a new temporary file in dir, see os.CreateTemp.
func CreateTemp(dir, pattern string) (*os.File, error) {
	return os.CreateTemp(fixpath(dir), pattern)
}

// Rename moves oldpath to newpath, replacing newpath if it exists.
func Rename(oldpath, newpath string) error {
	return os.Rename(fixpath(oldpath), fixpath(newpath))
}

// ReadFile reads the named file and returns its contents.
func ReadFile(name string) ([]byte, error) {
	return os.ReadFile(fixpath(name))
}
