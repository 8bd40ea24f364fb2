package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/skyline93/svdag/internal/repository"
	"github.com/stretchr/testify/require"
)

func testGlobalOptions(t *testing.T) (GlobalOptions, *bytes.Buffer) {
	t.Helper()
	buf := &bytes.Buffer{}
	return GlobalOptions{
		Repo:   "local:" + filepath.Join(t.TempDir(), "repo"),
		stdout: buf,
	}, buf
}

const testScene = `depth: 4
shapes:
  - box: {min: [0, 0, 0], max: [16, 16, 4]}
  - sphere: {center: [8, 8, 8], radius: 4}
`

func TestBuildQueryFile(t *testing.T) {
	gopts, out := testGlobalOptions(t)
	gopts.Repo = ""
	file := filepath.Join(t.TempDir(), "sphere.svdag")

	opts := BuildOptions{Depth: 5, Out: file, Verify: true}
	require.NoError(t, runBuild(context.TODO(), opts, gopts))
	require.Contains(t, out.String(), "volume:   32^3")
	require.Contains(t, out.String(), "ratio:")

	for _, test := range []struct {
		args []string
		want string
	}{
		{[]string{"16", "16", "16"}, "true"},
		{[]string{"0", "0", "0"}, "false"},
		{[]string{"16", "16", "23"}, "true"},
		{[]string{"16", "16", "24"}, "false"},
	} {
		out.Reset()
		require.NoError(t, runQuery(context.TODO(), GraphOptions{In: file}, gopts, test.args))
		require.Equal(t, test.want, strings.TrimSpace(out.String()), "query %v", test.args)
	}

	require.Error(t, runQuery(context.TODO(), GraphOptions{In: file}, gopts, []string{"32", "0", "0"}))
	require.Error(t, runQuery(context.TODO(), GraphOptions{In: file}, gopts, []string{"a", "0", "0"}))
	require.Error(t, runQuery(context.TODO(), GraphOptions{}, gopts, []string{"0", "0", "0"}))

	out.Reset()
	require.NoError(t, runStat(context.TODO(), GraphOptions{In: file}, gopts))
	require.Contains(t, out.String(), "depth:    5 (32^3 voxels)")
	require.Contains(t, out.String(), "levels:   1 ")

	require.Error(t, runBuild(context.TODO(), BuildOptions{Depth: 16, Out: file}, gopts))
}

func TestRepositoryWorkflow(t *testing.T) {
	gopts, out := testGlobalOptions(t)
	require.NoError(t, gopts.Compression.Set("max"))

	sceneFile := filepath.Join(t.TempDir(), "scene.yaml")
	require.NoError(t, os.WriteFile(sceneFile, []byte(testScene), 0600))

	require.NoError(t, runInit(context.TODO(), gopts))
	require.Error(t, runInit(context.TODO(), gopts))

	out.Reset()
	require.NoError(t, runBuild(context.TODO(), BuildOptions{Scene: sceneFile, Strict: true}, gopts))
	require.Contains(t, out.String(), "scene ")
	require.Contains(t, out.String(), "graph ")

	out.Reset()
	require.NoError(t, runList(context.TODO(), gopts, "graphs"))
	fields := strings.Fields(out.String())
	require.Equal(t, "zstd", fields[len(fields)-1])
	require.Len(t, fields[0], 64)
	id := fields[0]

	out.Reset()
	require.NoError(t, runList(context.TODO(), gopts, "scenes"))
	require.Len(t, strings.Split(strings.TrimSpace(out.String()), "\n"), 1)
	require.Error(t, runList(context.TODO(), gopts, "keys"))

	for _, test := range []struct {
		args []string
		want string
	}{
		{[]string{"15", "15", "3"}, "true"},
		{[]string{"15", "15", "4"}, "false"},
		{[]string{"8", "8", "10"}, "true"},
	} {
		out.Reset()
		require.NoError(t, runQuery(context.TODO(), GraphOptions{ID: id[:8]}, gopts, test.args))
		require.Equal(t, test.want, strings.TrimSpace(out.String()), "query %v", test.args)
	}

	out.Reset()
	require.NoError(t, runStat(context.TODO(), GraphOptions{ID: id}, gopts))
	require.Contains(t, out.String(), "id:       "+id)
}

func TestQueryThroughCache(t *testing.T) {
	gopts, out := testGlobalOptions(t)
	gopts.CacheDir = filepath.Join(t.TempDir(), "cache")

	require.NoError(t, runInit(context.TODO(), gopts))
	require.NoError(t, runBuild(context.TODO(), BuildOptions{Depth: 4, Center: []int{0, 0, 0}, Radius: 6}, gopts))

	out.Reset()
	require.NoError(t, runList(context.TODO(), gopts, "graphs"))
	id := strings.Fields(out.String())[0]

	cached, err := filepath.Glob(filepath.Join(gopts.CacheDir, "graphs", id[:2], id))
	require.NoError(t, err)
	require.Len(t, cached, 1)

	out.Reset()
	require.NoError(t, runQuery(context.TODO(), GraphOptions{ID: id}, gopts, []string{"5", "0", "0"}))
	require.Equal(t, "true", strings.TrimSpace(out.String()))
}

func TestArchive(t *testing.T) {
	gopts, out := testGlobalOptions(t)
	require.NoError(t, runInit(context.TODO(), gopts))

	dir := t.TempDir()
	good := filepath.Join(dir, "good.yaml")
	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(good, []byte(testScene), 0600))
	require.NoError(t, os.WriteFile(bad, []byte("depth: 99\n"), 0600))

	require.Error(t, runArchive(context.TODO(), ArchiveOptions{}, gopts, []string{good, bad}))

	out.Reset()
	require.NoError(t, runArchive(context.TODO(), ArchiveOptions{KeepGoing: true, Verify: true}, gopts, []string{bad, good}))
	require.Contains(t, out.String(), good)
	require.NotContains(t, out.String(), bad)

	out.Reset()
	require.NoError(t, runList(context.TODO(), gopts, "graphs"))
	require.Len(t, strings.Split(strings.TrimSpace(out.String()), "\n"), 1)
}

func TestOpenRepositoryErrors(t *testing.T) {
	gopts, _ := testGlobalOptions(t)

	_, err := openRepository(context.TODO(), gopts, false)
	require.Error(t, err)

	gopts.Repo = ""
	_, err = openRepository(context.TODO(), gopts, true)
	require.Error(t, err)

	gopts.Repo = "sftp:host:/repo"
	_, err = openRepository(context.TODO(), gopts, true)
	require.Error(t, err)

	gopts, _ = testGlobalOptions(t)
	gopts.Compression = repository.CompressionInvalid
	_, err = openRepository(context.TODO(), gopts, true)
	require.Error(t, err)
}
