//go:build !windows

package local

import (
	"errors"
	"os"
	"runtime"

	"github.com/skyline93/svdag/internal/fs"
	"golang.org/x/sys/unix"
)

func isMacENOTTY(err error) bool {
	return runtime.GOOS == "darwin" && errors.Is(err, unix.ENOTTY)
}

// fsyncDir flushes changes to the directory dir.
func fsyncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}

	err = d.Sync()
	if err != nil &&
		(errors.Is(err, unix.ENOTSUP) || errors.Is(err, unix.ENOENT) ||
			errors.Is(err, unix.EINVAL) || isMacENOTTY(err)) {
		err = nil
	}

	cerr := d.Close()
	if err == nil {
		err = cerr
	}

	return err
}

// set file to readonly
func setFileReadonly(f string, mode os.FileMode) error {
	return fs.Chmod(f, mode&^0222)
}
