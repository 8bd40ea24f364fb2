package cache

import (
	"io"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/skyline93/svdag/internal/backend"
	"github.com/skyline93/svdag/internal/fs"
)

func (c *Cache) canBeCached(t backend.FileType) bool {
	if c == nil {
		return false
	}

	_, ok := cacheLayoutPaths[t]
	return ok
}

func (c *Cache) filename(h backend.Handle) string {
	if len(h.Name) < 2 {
		panic("Name is empty or too short")
	}
	subdir := h.Name[:2]
	return filepath.Join(c.path, cacheLayoutPaths[h.Type], subdir, h.Name)
}

// load opens the cached file at h. If length is larger than zero, only a
// portion of the file is returned.
func (c *Cache) load(h backend.Handle, length int, offset int64) (io.ReadCloser, error) {
	if !c.canBeCached(h.Type) {
		return nil, errors.New("cannot be cached")
	}

	f, err := fs.Open(c.filename(h))
	if err != nil {
		return nil, errors.WithStack(err)
	}

	fi, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, errors.WithStack(err)
	}

	if fi.Size() < offset+int64(length) {
		_ = f.Close()
		_ = c.Forget(h)
		return nil, errors.Errorf("cached file %v is truncated", h)
	}

	if offset > 0 {
		if _, err = f.Seek(offset, io.SeekStart); err != nil {
			_ = f.Close()
			return nil, errors.WithStack(err)
		}
	}

	if length > 0 {
		return backend.LimitReadCloser(f, int64(length)), nil
	}
	return f, nil
}

// save saves the content of rd as the file h in the cache. The file appears
// under its final name only once it is complete.
func (c *Cache) save(h backend.Handle, rd io.Reader) error {
	if !c.canBeCached(h.Type) {
		return errors.New("cannot be cached")
	}

	finalname := c.filename(h)
	dir := filepath.Dir(finalname)
	if err := fs.MkdirAll(dir, dirMode); err != nil {
		return errors.WithStack(err)
	}

	f, err := fs.CreateTemp(dir, "tmp-")
	if err != nil {
		return errors.WithStack(err)
	}

	if _, err = io.Copy(f, rd); err != nil {
		_ = f.Close()
		_ = fs.Remove(f.Name())
		return errors.Wrap(err, "Copy")
	}

	if err = f.Close(); err != nil {
		_ = fs.Remove(f.Name())
		return errors.WithStack(err)
	}

	if err = fs.Rename(f.Name(), finalname); err != nil {
		_ = fs.Remove(f.Name())
		return errors.WithStack(err)
	}
	return nil
}

// Forget drops the cached copy of h, so the next load goes to the backend.
func (c *Cache) Forget(h backend.Handle) error {
	if _, ok := c.forgotten.Load(h); ok {
		// Delete a file at most once per run. This prevents repeatedly
		// caching and forgetting broken files.
		return errors.Errorf("circuit breaker prevents repeated deletion of cached file %v", h)
	}

	removed, err := c.remove(h)
	if removed {
		c.forgotten.Store(h, struct{}{})
	}
	return err
}

// remove deletes a file. When the file is not cached, no error is returned.
func (c *Cache) remove(h backend.Handle) (bool, error) {
	if !c.Has(h) {
		return false, nil
	}
	if err := fs.RemoveIfExists(c.filename(h)); err != nil {
		return false, errors.WithStack(err)
	}
	return true, nil
}

// Has returns true if the file is cached.
func (c *Cache) Has(h backend.Handle) bool {
	if !c.canBeCached(h.Type) {
		return false
	}

	_, err := fs.Stat(c.filename(h))
	return err == nil
}
