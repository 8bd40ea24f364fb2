package cache

import (
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/skyline93/svdag/internal/backend"
	"github.com/skyline93/svdag/internal/fs"
)

// Cache manages a local cache of repository files.
type Cache struct {
	path string

	forgotten sync.Map
}

const dirMode = 0700
const fileMode = 0600

var cacheLayoutPaths = map[backend.FileType]string{
	backend.GraphFile: "graphs",
	backend.SceneFile: "scenes",
}

// New opens the cache at dir, creating its directories if needed.
func New(dir string) (*Cache, error) {
	if dir == "" {
		return nil, errors.New("empty cache directory")
	}

	for _, p := range cacheLayoutPaths {
		if err := fs.MkdirAll(filepath.Join(dir, p), dirMode); err != nil {
			return nil, errors.WithStack(err)
		}
	}

	log.Debugf("using cache at %v", dir)
	return &Cache{path: dir}, nil
}

// Path returns the cache directory.
func (c *Cache) Path() string {
	return c.path
}
