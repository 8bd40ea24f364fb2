package local

import (
	"context"
	"hash"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/skyline93/svdag/internal/backend"
	"github.com/skyline93/svdag/internal/backend/layout"
	"github.com/skyline93/svdag/internal/backend/util"
	"github.com/skyline93/svdag/internal/fs"
)

// Local is a backend in a local directory.
type Local struct {
	Config
	layout.Layout
	util.Modes

	filesys layout.LocalFilesystem
}

var _ backend.Backend = &Local{}

const tempInfix = "-tmp-"

func open(cfg Config) (*Local, error) {
	l := layout.NewDefaultLayout(cfg.Path, filepath.Join)

	fi, err := fs.Stat(cfg.Path)
	m := util.DeriveModesFromFileInfo(fi, err)
	log.Debugf("using (%03O file, %03O dir) permissions", m.File, m.Dir)

	return &Local{
		Config: cfg,
		Layout: l,
		Modes:  m,
	}, nil
}

// Open opens the local backend as specified by config.
func Open(_ context.Context, cfg Config) (*Local, error) {
	log.Debugf("open local backend at %v", cfg.Path)

	be, err := open(cfg)
	if err != nil {
		return nil, err
	}

	dir, _ := be.Basedir(backend.GraphFile)
	if _, err := fs.Stat(dir); err != nil {
		return nil, errors.Wrap(err, "repository not initialized")
	}
	return be, nil
}

// Create creates all the necessary directories for a new local backend at
// cfg.Path. It fails if a repository already exists there.
func Create(_ context.Context, cfg Config) (*Local, error) {
	log.Debugf("create local backend at %v", cfg.Path)

	be, err := open(cfg)
	if err != nil {
		return nil, err
	}

	dir, _ := be.Basedir(backend.GraphFile)
	if _, err := fs.Stat(dir); err == nil {
		return nil, errors.Errorf("repository at %v already exists", cfg.Path)
	}

	for _, d := range be.Paths() {
		err := fs.MkdirAll(d, be.Modes.Dir)
		if err != nil {
			return nil, errors.WithStack(err)
		}
	}

	return be, nil
}

// Location returns this backend's location (the directory name).
func (b *Local) Location() string {
	return b.Path
}

// Connections returns the maximum number of concurrent backend operations.
func (b *Local) Connections() uint {
	return b.Config.Connections
}

// Hasher may return a hash function for calculating a content hash for the backend
func (b *Local) Hasher() hash.Hash {
	return nil
}

// IsNotExist returns true if the error is caused by a non existing file.
func (b *Local) IsNotExist(err error) bool {
	return errors.Is(err, os.ErrNotExist)
}

// Save stores data in the backend at the handle. The file is written to a
// temporary name, synced and renamed into place, so readers never observe
// partial files.
func (b *Local) Save(_ context.Context, h backend.Handle, rd backend.RewindReader) (err error) {
	finalname := b.Filename(h)
	dir := filepath.Dir(finalname)

	f, err := fs.CreateTemp(dir, filepath.Base(finalname)+tempInfix)
	if b.IsNotExist(err) {
		log.Debugf("error %v: creating dir", err)

		mkdirErr := fs.MkdirAll(dir, b.Modes.Dir)
		if mkdirErr != nil {
			log.Debugf("error creating dir %v: %v", dir, mkdirErr)
		} else {
			f, err = fs.CreateTemp(dir, filepath.Base(finalname)+tempInfix)
		}
	}
	if err != nil {
		return errors.WithStack(err)
	}

	defer func(f *os.File) {
		if err != nil {
			_ = f.Close() // Double Close is harmless.
			// Remove after Rename is harmless: we embed the final name in the
			// temporary's name and no other goroutine will get the same data to
			// Save, so the temporary name should never be reused by another
			// goroutine.
			_ = fs.Remove(f.Name())
		}
	}(f)

	wbytes, err := io.Copy(f, rd)
	if err != nil {
		return errors.WithStack(err)
	}
	if wbytes != rd.Length() {
		return errors.Errorf("wrote %d bytes instead of the expected %d bytes", wbytes, rd.Length())
	}

	if err = f.Sync(); err != nil {
		return errors.WithStack(err)
	}
	if err = f.Close(); err != nil {
		return errors.WithStack(err)
	}

	if err = fs.Rename(f.Name(), finalname); err != nil {
		return errors.WithStack(err)
	}

	if err = fsyncDir(dir); err != nil {
		return errors.WithStack(err)
	}

	// try to mark file as read-only to avoid accidental modifications
	// ignore if the operation fails as some filesystems don't allow the chmod call
	// e.g. exfat and network file systems with certain mount options
	err = setFileReadonly(finalname, b.Modes.File)
	if err != nil && !os.IsPermission(err) {
		return errors.WithStack(err)
	}

	return nil
}

// Load runs fn with a reader that yields the contents of the file at h at the
// given offset.
func (b *Local) Load(ctx context.Context, h backend.Handle, length int, offset int64, fn func(rd io.Reader) error) error {
	return util.DefaultLoad(ctx, h, length, offset, b.openReader, fn)
}

func (b *Local) openReader(_ context.Context, h backend.Handle, length int, offset int64) (io.ReadCloser, error) {
	f, err := fs.Open(b.Filename(h))
	if err != nil {
		return nil, err
	}

	if offset > 0 {
		_, err = f.Seek(offset, 0)
		if err != nil {
			_ = f.Close()
			return nil, err
		}
	}

	if length > 0 {
		return backend.LimitReadCloser(f, int64(length)), nil
	}

	return f, nil
}

// Stat returns information about a blob.
func (b *Local) Stat(_ context.Context, h backend.Handle) (backend.FileInfo, error) {
	fi, err := fs.Stat(b.Filename(h))
	if err != nil {
		return backend.FileInfo{}, errors.WithStack(err)
	}

	return backend.FileInfo{Size: fi.Size(), Name: h.Name}, nil
}

// Remove removes the blob with the given name and type.
func (b *Local) Remove(_ context.Context, h backend.Handle) error {
	fn := b.Filename(h)

	// reset read-only flag
	err := fs.Chmod(fn, 0666)
	if err != nil && !os.IsPermission(err) {
		return errors.WithStack(err)
	}

	return fs.Remove(fn)
}

// List runs fn for each file in the backend which has the type t. Leftover
// temporary files of interrupted saves are skipped.
func (b *Local) List(ctx context.Context, t backend.FileType, fn func(backend.FileInfo) error) error {
	basedir, subdirs := b.Basedir(t)
	if !subdirs {
		return b.listDir(ctx, basedir, fn)
	}

	entries, err := b.filesys.ReadDir(ctx, basedir)
	if err != nil {
		if b.filesys.IsNotExist(err) {
			return nil
		}
		return err
	}

	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		err := b.listDir(ctx, b.filesys.Join(basedir, e.Name()), fn)
		if err != nil {
			return err
		}
	}
	return nil
}

func (b *Local) listDir(ctx context.Context, dir string, fn func(backend.FileInfo) error) error {
	entries, err := b.filesys.ReadDir(ctx, dir)
	if err != nil {
		return err
	}

	for _, e := range entries {
		if !e.Mode().IsRegular() || strings.Contains(e.Name(), tempInfix) {
			continue
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		err := fn(backend.FileInfo{Name: e.Name(), Size: e.Size()})
		if err != nil {
			return err
		}
	}
	return nil
}

// Close closes all open files.
func (b *Local) Close() error {
	return nil
}
