package layout

import (
	"path/filepath"
	"testing"

	"github.com/skyline93/svdag/internal/backend"
	"github.com/stretchr/testify/require"
)

func TestDefaultLayout(t *testing.T) {
	l := NewDefaultLayout("/repo", filepath.Join)

	h := backend.Handle{Type: backend.GraphFile, Name: "2f6c00"}
	require.Equal(t, "/repo/graphs/2f", l.Dirname(h))
	require.Equal(t, "/repo/graphs/2f/2f6c00", l.Filename(h))

	h = backend.Handle{Type: backend.SceneFile, Name: "a0b1"}
	require.Equal(t, "/repo/scenes/a0/a0b1", l.Filename(h))

	dir, subdirs := l.Basedir(backend.GraphFile)
	require.Equal(t, "/repo/graphs", dir)
	require.True(t, subdirs)

	require.Equal(t, []string{"/repo", "/repo/graphs", "/repo/scenes"}, l.Paths())
	require.Equal(t, "default", l.Name())
}
