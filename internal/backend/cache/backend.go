package cache

import (
	"context"
	"io"
	"sync"

	log "github.com/sirupsen/logrus"
	"github.com/skyline93/svdag/internal/backend"
	"github.com/skyline93/svdag/internal/backend/util"
)

// Backend wraps a backend and keeps a local copy of every file it saves or
// loads. Stored files are immutable, so cached copies never go stale.
type Backend struct {
	backend.Backend
	*Cache

	// inProgress contains the handle for all files that are currently
	// downloaded. The channel in the value is closed as soon as the download
	// is finished.
	inProgressMutex sync.Mutex
	inProgress      map[backend.Handle]chan struct{}
}

// ensure Backend implements backend.Backend
var _ backend.Backend = &Backend{}

// Wrap returns a backend with a cache.
func (c *Cache) Wrap(be backend.Backend) *Backend {
	return &Backend{
		Backend:    be,
		Cache:      c,
		inProgress: make(map[backend.Handle]chan struct{}),
	}
}

// Remove deletes a file from the backend and the cache if it has been cached.
func (b *Backend) Remove(ctx context.Context, h backend.Handle) error {
	log.Debugf("cache Remove(%v)", h)
	err := b.Backend.Remove(ctx, h)
	if err != nil {
		return err
	}

	_, err = b.Cache.remove(h)
	return err
}

// Save stores a new file in the backend and the cache.
func (b *Backend) Save(ctx context.Context, h backend.Handle, rd backend.RewindReader) error {
	log.Debugf("Save(%v): auto-store in the cache", h)

	// make sure the reader is at the start
	err := rd.Rewind()
	if err != nil {
		return err
	}

	// first, save in the backend
	err = b.Backend.Save(ctx, h, rd)
	if err != nil {
		return err
	}

	// next, save in the cache
	err = rd.Rewind()
	if err != nil {
		return err
	}

	err = b.Cache.save(h, rd)
	if err != nil {
		log.Debugf("unable to save %v to cache: %v", h, err)
		return nil
	}

	return nil
}

func (b *Backend) cacheFile(ctx context.Context, h backend.Handle) error {
	finish := make(chan struct{})

	b.inProgressMutex.Lock()
	other, alreadyDownloading := b.inProgress[h]
	if !alreadyDownloading {
		b.inProgress[h] = finish
	}
	b.inProgressMutex.Unlock()

	if alreadyDownloading {
		log.Debugf("readahead %v is already performed by somebody else, delegating...", h)
		<-other
		return nil
	}

	defer func() {
		// signal other waiting goroutines that the file may now be cached
		close(finish)

		// remove the finish channel from the map
		b.inProgressMutex.Lock()
		delete(b.inProgress, h)
		b.inProgressMutex.Unlock()
	}()

	// test again, maybe the file was cached in the meantime
	if b.Cache.Has(h) {
		return nil
	}

	// nothing downloaded, no need to remove a partial file
	return b.Backend.Load(ctx, h, 0, 0, func(rd io.Reader) error {
		return b.Cache.save(h, rd)
	})
}

// loadFromCache will try to load the file from the cache.
func (b *Backend) loadFromCache(ctx context.Context, h backend.Handle, length int, offset int64, consumer func(rd io.Reader) error) (bool, error) {
	rd, err := b.Cache.load(h, length, offset)
	if err != nil {
		return false, err
	}

	err = consumer(rd)
	if err != nil {
		_ = rd.Close() // ignore secondary errors
		return true, err
	}
	return true, rd.Close()
}

// Load loads a file from the cache or the backend.
func (b *Backend) Load(ctx context.Context, h backend.Handle, length int, offset int64, consumer func(rd io.Reader) error) error {
	if b.Cache.Has(h) {
		log.Debugf("Load(%v, %v, %v) from cache", h, length, offset)
		return util.DefaultLoad(ctx, h, length, offset, b.openCached, consumer)
	}

	if !b.Cache.canBeCached(h.Type) {
		return b.Backend.Load(ctx, h, length, offset, consumer)
	}

	log.Debugf("auto-store %v in the cache", h)
	err := b.cacheFile(ctx, h)
	if err != nil {
		return err
	}

	inCache, err := b.loadFromCache(ctx, h, length, offset, consumer)
	if inCache {
		return err
	}

	log.Debugf("error caching %v: %v, falling back to backend", h, err)
	return b.Backend.Load(ctx, h, length, offset, consumer)
}

func (b *Backend) openCached(_ context.Context, h backend.Handle, length int, offset int64) (io.ReadCloser, error) {
	return b.Cache.load(h, length, offset)
}

// Stat tests whether the backend has a file. If it does not exist but still
// exists in the cache, it is removed from the cache.
func (b *Backend) Stat(ctx context.Context, h backend.Handle) (backend.FileInfo, error) {
	fi, err := b.Backend.Stat(ctx, h)
	if err != nil && b.Backend.IsNotExist(err) {
		// try to remove from the cache, ignore errors
		_, _ = b.Cache.remove(h)
	}

	return fi, err
}

// IsNotExist returns true if the error is caused by a non-existing file.
func (b *Backend) IsNotExist(err error) bool {
	return b.Backend.IsNotExist(err)
}

// Unwrap returns the wrapped backend.
func (b *Backend) Unwrap() backend.Backend {
	return b.Backend
}
