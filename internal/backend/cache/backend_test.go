package cache

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/skyline93/svdag/internal/backend"
	"github.com/skyline93/svdag/internal/backend/local"
	"github.com/stretchr/testify/require"
)

func newTestBackend(t *testing.T) (*Backend, *local.Local) {
	t.Helper()
	cfg := local.NewConfig()
	cfg.Path = filepath.Join(t.TempDir(), "repo")
	be, err := local.Create(context.TODO(), cfg)
	require.NoError(t, err)

	c, err := New(filepath.Join(t.TempDir(), "cache"))
	require.NoError(t, err)
	return c.Wrap(be), be
}

func load(t *testing.T, be backend.Backend, h backend.Handle) []byte {
	t.Helper()
	var buf []byte
	err := be.Load(context.TODO(), h, 0, 0, func(rd io.Reader) (ierr error) {
		buf, ierr = io.ReadAll(rd)
		return ierr
	})
	require.NoError(t, err)
	return buf
}

func TestSaveStoresInCache(t *testing.T) {
	be, _ := newTestBackend(t)
	h := backend.Handle{Type: backend.GraphFile, Name: "ab01"}

	require.NoError(t, be.Save(context.TODO(), h, backend.NewByteReader([]byte("graph"), nil)))
	require.True(t, be.Has(h))
	require.Equal(t, []byte("graph"), load(t, be, h))

	part := make([]byte, 3)
	_, err := backend.ReadAt(context.TODO(), be, h, 2, part)
	require.NoError(t, err)
	require.Equal(t, []byte("aph"), part)
}

func TestLoadFillsCache(t *testing.T) {
	be, inner := newTestBackend(t)
	h := backend.Handle{Type: backend.SceneFile, Name: "cd02"}

	require.NoError(t, inner.Save(context.TODO(), h, backend.NewByteReader([]byte("depth: 3"), nil)))
	require.False(t, be.Has(h))

	require.Equal(t, []byte("depth: 3"), load(t, be, h))
	require.True(t, be.Has(h))

	// served from the cache once the backend copy is gone
	require.NoError(t, inner.Remove(context.TODO(), h))
	require.Equal(t, []byte("depth: 3"), load(t, be, h))

	// Stat notices the file is gone and drops the cached copy
	_, err := be.Stat(context.TODO(), h)
	require.True(t, be.IsNotExist(err))
	require.False(t, be.Has(h))
}

func TestForget(t *testing.T) {
	be, _ := newTestBackend(t)
	h := backend.Handle{Type: backend.GraphFile, Name: "ef03"}
	require.NoError(t, be.Save(context.TODO(), h, backend.NewByteReader([]byte("good"), nil)))

	name := be.filename(h)
	require.NoError(t, os.WriteFile(name, []byte("bad!"), fileMode))
	require.Equal(t, []byte("bad!"), load(t, be, h))

	require.NoError(t, be.Forget(h))
	require.False(t, be.Has(h))
	require.Equal(t, []byte("good"), load(t, be, h))

	// at most once per handle
	require.Error(t, be.Forget(h))
}

func TestRemove(t *testing.T) {
	be, inner := newTestBackend(t)
	h := backend.Handle{Type: backend.GraphFile, Name: "0a0b"}
	require.NoError(t, be.Save(context.TODO(), h, backend.NewByteReader([]byte("x"), nil)))

	require.NoError(t, be.Remove(context.TODO(), h))
	require.False(t, be.Has(h))
	_, err := inner.Stat(context.TODO(), h)
	require.True(t, inner.IsNotExist(err))
}

func TestCacheRemove(t *testing.T) {
	be, _ := newTestBackend(t)
	h := backend.Handle{Type: backend.GraphFile, Name: "7c7d"}

	removed, err := be.Cache.remove(h)
	require.NoError(t, err)
	require.False(t, removed)

	require.NoError(t, be.Save(context.TODO(), h, backend.NewByteReader([]byte("x"), nil)))
	require.True(t, be.Has(h))

	removed, err = be.Cache.remove(h)
	require.NoError(t, err)
	require.True(t, removed)
	require.False(t, be.Has(h))

	removed, err = be.Cache.remove(h)
	require.NoError(t, err)
	require.False(t, removed)
}

func TestNew(t *testing.T) {
	_, err := New("")
	require.Error(t, err)

	dir := filepath.Join(t.TempDir(), "cache")
	c, err := New(dir)
	require.NoError(t, err)
	require.Equal(t, dir, c.Path())
	for _, sub := range []string{"graphs", "scenes"} {
		fi, err := os.Stat(filepath.Join(dir, sub))
		require.NoError(t, err)
		require.True(t, fi.IsDir())
	}
}
