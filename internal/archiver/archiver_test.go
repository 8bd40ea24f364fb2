package archiver

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/skyline93/svdag/internal/svdag"
	"github.com/stretchr/testify/require"
)

type memSaver struct {
	m      sync.Mutex
	graphs map[svdag.ID]*svdag.Svdag
	scenes map[svdag.ID][]byte
	err    error
}

func newMemSaver() *memSaver {
	return &memSaver{
		graphs: make(map[svdag.ID]*svdag.Svdag),
		scenes: make(map[svdag.ID][]byte),
	}
}

func (s *memSaver) SaveGraph(_ context.Context, g *svdag.Svdag) (svdag.ID, error) {
	s.m.Lock()
	defer s.m.Unlock()
	if s.err != nil {
		return svdag.ID{}, s.err
	}
	id := g.ID()
	s.graphs[id] = g
	return id, nil
}

func (s *memSaver) SaveScene(_ context.Context, data []byte) (svdag.ID, error) {
	s.m.Lock()
	defer s.m.Unlock()
	id := svdag.Hash(data)
	s.scenes[id] = data
	return id, nil
}

func writeScenes(t *testing.T, docs map[string]string) []string {
	t.Helper()
	dir := t.TempDir()
	var files []string
	for name, doc := range docs {
		file := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(file, []byte(doc), 0600))
		files = append(files, file)
	}
	sort.Strings(files)
	return files
}

func TestArchive(t *testing.T) {
	files := writeScenes(t, map[string]string{
		"a.yaml": "depth: 4\nshapes:\n  - sphere: {center: [8, 8, 8], radius: 5}\n",
		"b.yaml": "depth: 5\nshapes:\n  - box: {min: [0, 0, 0], max: [32, 32, 3]}\n",
		"c.yaml": "depth: 3\n",
	})

	repo := newMemSaver()
	arch := New(repo, Options{Verify: true, SaveConcurrency: 3})

	var m sync.Mutex
	results := make(map[string]Result)
	arch.Result = func(res Result) {
		m.Lock()
		defer m.Unlock()
		results[res.Scene] = res
	}

	require.NoError(t, arch.Archive(context.TODO(), files))
	require.Len(t, results, 3)
	require.Len(t, repo.graphs, 3)
	require.Len(t, repo.scenes, 3)

	for _, file := range files {
		res := results[file]
		g := repo.graphs[res.GraphID]
		require.NotNil(t, g, file)
		require.Equal(t, g.Summary(), res.Summary)
		require.Contains(t, repo.scenes, res.SceneID)
	}
	require.Equal(t, uint8(5), repo.graphs[results[files[1]].GraphID].Depth())
}

func TestArchiveErrorFunc(t *testing.T) {
	files := writeScenes(t, map[string]string{
		"a.yaml": "depth: 3\nshapes:\n  - box: {min: [0, 0, 0], max: [4, 4, 4]}\n",
		"b.yaml": "depth: 0\n",
	})

	repo := newMemSaver()
	arch := New(repo, Options{})
	require.Error(t, arch.Archive(context.TODO(), files))

	var failed []string
	arch.Error = func(file string, err error) error {
		failed = append(failed, filepath.Base(file))
		return nil
	}
	require.NoError(t, arch.Archive(context.TODO(), append(files, filepath.Join(t.TempDir(), "missing.yaml"))))
	require.Equal(t, []string{"b.yaml", "missing.yaml"}, failed)
	require.Len(t, repo.graphs, 1)
}

func TestArchiveSaveError(t *testing.T) {
	files := writeScenes(t, map[string]string{
		"a.yaml": "depth: 3\n",
		"b.yaml": "depth: 4\n",
		"c.yaml": "depth: 5\n",
	})

	repo := newMemSaver()
	repo.err = errors.New("backend full")

	err := New(repo, Options{}).Archive(context.TODO(), files)
	require.EqualError(t, err, "backend full")
}
