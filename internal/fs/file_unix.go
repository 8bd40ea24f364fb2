//go:build !windows

package fs

import (
	"errors"
	"os"

	"golang.org/x/sys/unix"
)

func fixpath(name string) string {
	return name
}

// Chmod changes the mode of the named file to mode.
func Chmod(name string, mode os.FileMode) error {
	err := os.Chmod(fixpath(name), mode)

	// ignore the error if the FS does not support setting this mode (e.g. CIFS with gvfs on Linux)
	if err != nil && isNotSupported(err) {
		return nil
	}

	return err
}

// isNotSupported returns true if the error is caused by an unsupported file system feature.
func isNotSupported(err error) bool {
	var perr *os.PathError
	return errors.As(err, &perr) && (perr.Err == unix.ENOTSUP || perr.Err == unix.EOPNOTSUPP)
}
