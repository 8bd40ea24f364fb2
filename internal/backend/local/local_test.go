package local

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/skyline93/svdag/internal/backend"
	"github.com/stretchr/testify/require"
)

func newTestBackend(t *testing.T) *Local {
	t.Helper()
	cfg := NewConfig()
	cfg.Path = filepath.Join(t.TempDir(), "repo")

	be, err := Create(context.TODO(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, be.Close()) })
	return be
}

func save(t *testing.T, be backend.Backend, h backend.Handle, data []byte) {
	t.Helper()
	require.NoError(t, be.Save(context.TODO(), h, backend.NewByteReader(data, nil)))
}

func TestParseConfig(t *testing.T) {
	cfg, err := ParseConfig("local:/srv/graphs")
	require.NoError(t, err)
	require.Equal(t, "/srv/graphs", cfg.Path)
	require.Equal(t, uint(2), cfg.Connections)

	cfg, err = ParseConfig("/srv/graphs")
	require.NoError(t, err)
	require.Equal(t, "/srv/graphs", cfg.Path)

	_, err = ParseConfig("s3:bucket/graphs")
	require.Error(t, err)
	_, err = ParseConfig("local:")
	require.Error(t, err)
}

func TestCreateOpen(t *testing.T) {
	cfg := NewConfig()
	cfg.Path = filepath.Join(t.TempDir(), "repo")

	_, err := Open(context.TODO(), cfg)
	require.Error(t, err)

	_, err = Create(context.TODO(), cfg)
	require.NoError(t, err)
	for _, dir := range []string{"graphs", "scenes"} {
		fi, err := os.Stat(filepath.Join(cfg.Path, dir))
		require.NoError(t, err)
		require.True(t, fi.IsDir())
	}

	_, err = Create(context.TODO(), cfg)
	require.Error(t, err)

	be, err := Open(context.TODO(), cfg)
	require.NoError(t, err)
	require.Equal(t, cfg.Path, be.Location())
	require.Equal(t, uint(2), be.Connections())
}

func TestSaveLoad(t *testing.T) {
	be := newTestBackend(t)
	h := backend.Handle{Type: backend.GraphFile, Name: "ab0123"}
	data := []byte("some graph bytes")

	save(t, be, h, data)

	fi, err := os.Stat(filepath.Join(be.Path, "graphs", "ab", "ab0123"))
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0400), fi.Mode().Perm())

	var buf []byte
	err = be.Load(context.TODO(), h, 0, 0, func(rd io.Reader) (ierr error) {
		buf, ierr = io.ReadAll(rd)
		return ierr
	})
	require.NoError(t, err)
	require.Equal(t, data, buf)

	part := make([]byte, 5)
	n, err := backend.ReadAt(context.TODO(), be, h, 5, part)
	require.NoError(t, err)
	require.Equal(t, 5, n)
	require.Equal(t, []byte("graph"), part)

	info, err := be.Stat(context.TODO(), h)
	require.NoError(t, err)
	require.Equal(t, backend.FileInfo{Size: int64(len(data)), Name: "ab0123"}, info)
}

func TestSaveLengthMismatch(t *testing.T) {
	be := newTestBackend(t)
	h := backend.Handle{Type: backend.GraphFile, Name: "cd"}

	rd := backend.NewByteReader([]byte("abc"), nil)
	rd.Len = 10
	require.Error(t, be.Save(context.TODO(), h, rd))

	_, err := be.Stat(context.TODO(), h)
	require.True(t, be.IsNotExist(err))

	entries, err := os.ReadDir(filepath.Join(be.Path, "graphs", "cd"))
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestListRemove(t *testing.T) {
	be := newTestBackend(t)

	names := []string{"aa01", "aa02", "f3"}
	for _, name := range names {
		save(t, be, backend.Handle{Type: backend.GraphFile, Name: name}, bytes.Repeat([]byte{1}, len(name)))
	}
	save(t, be, backend.Handle{Type: backend.SceneFile, Name: "0000"}, []byte("depth: 3"))
	require.NoError(t, os.WriteFile(filepath.Join(be.Path, "graphs", "f3", "f3"+tempInfix+"123"), nil, 0600))

	list := func(tpe backend.FileType) []string {
		var out []string
		err := be.List(context.TODO(), tpe, func(fi backend.FileInfo) error {
			require.Equal(t, int64(len(fi.Name)), fi.Size)
			out = append(out, fi.Name)
			return nil
		})
		require.NoError(t, err)
		sort.Strings(out)
		return out
	}

	require.Equal(t, names, list(backend.GraphFile))

	require.NoError(t, be.Remove(context.TODO(), backend.Handle{Type: backend.GraphFile, Name: "aa02"}))
	require.Equal(t, []string{"aa01", "f3"}, list(backend.GraphFile))

	err := be.Remove(context.TODO(), backend.Handle{Type: backend.GraphFile, Name: "aa02"})
	require.True(t, be.IsNotExist(err))
}

func TestLoadNotExist(t *testing.T) {
	be := newTestBackend(t)
	err := be.Load(context.TODO(), backend.Handle{Type: backend.GraphFile, Name: "missing"}, 0, 0, func(io.Reader) error {
		return nil
	})
	require.True(t, be.IsNotExist(err))
}
