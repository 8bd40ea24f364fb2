package main

import (
	"bufio"
	"context"
	"io"
	"os"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/skyline93/svdag/internal/backend"
	"github.com/skyline93/svdag/internal/backend/cache"
	"github.com/skyline93/svdag/internal/backend/local"
	"github.com/skyline93/svdag/internal/backend/retry"
	"github.com/skyline93/svdag/internal/fs"
	"github.com/skyline93/svdag/internal/repository"
	"github.com/skyline93/svdag/internal/svdag"
)

// GlobalOptions hold all global options for svdag.
type GlobalOptions struct {
	Repo        string
	CacheDir    string
	Verbose     bool
	Compression repository.CompressionMode

	stdout io.Writer
}

var globalOptions = GlobalOptions{
	stdout: os.Stdout,
}

const maxBackendRetries = 10

func init() {
	f := cmdRoot.PersistentFlags()
	f.StringVarP(&globalOptions.Repo, "repo", "r", os.Getenv("SVDAG_REPOSITORY"), "`repository` to store graphs in, example: 'local:/srv/graphs' (default: $SVDAG_REPOSITORY)")
	f.StringVar(&globalOptions.CacheDir, "cache-dir", os.Getenv("SVDAG_CACHE_DIR"), "keep local copies of loaded graphs in `directory` (default: $SVDAG_CACHE_DIR)")
	f.BoolVarP(&globalOptions.Verbose, "verbose", "v", false, "be verbose")
	f.Var(&globalOptions.Compression, "compression", "compression mode for stored graphs (auto|off|max)")
}

// openRepository opens the repository at opts.Repo, creating it first if
// create is set. Backend calls are retried, and served from a local cache
// when opts.CacheDir is set.
func openRepository(ctx context.Context, opts GlobalOptions, create bool) (*repository.Repository, error) {
	if opts.Repo == "" {
		return nil, errors.New("no repository given, use --repo or $SVDAG_REPOSITORY")
	}

	cfg, err := local.ParseConfig(opts.Repo)
	if err != nil {
		return nil, err
	}

	var be backend.Backend
	if create {
		be, err = local.Create(ctx, *cfg)
	} else {
		be, err = local.Open(ctx, *cfg)
	}
	if err != nil {
		return nil, err
	}

	if opts.CacheDir != "" {
		c, err := cache.New(opts.CacheDir)
		if err != nil {
			return nil, err
		}
		be = c.Wrap(be)
	}

	be = retry.New(be, maxBackendRetries,
		func(msg string, err error, d time.Duration) {
			log.Warnf("%v returned error, retrying after %v: %v", msg, d, err)
		},
		func(msg string, retries int) {
			log.Infof("%v operation successful after %d retries", msg, retries)
		})

	return repository.New(be, repository.Options{Compression: opts.Compression})
}

// GraphOptions select a stored graph, either a raw file or a repository ID.
type GraphOptions struct {
	In string
	ID string
}

func loadGraph(ctx context.Context, gopts GlobalOptions, opts GraphOptions) (*svdag.Svdag, error) {
	if opts.In != "" {
		return readGraphFile(opts.In)
	}
	if opts.ID == "" {
		return nil, errors.New("either --in or --id must be given")
	}

	repo, err := openRepository(ctx, gopts, false)
	if err != nil {
		return nil, err
	}

	id, err := repo.Find(ctx, backend.GraphFile, opts.ID)
	if err != nil {
		return nil, err
	}
	return repo.LoadGraph(ctx, id)
}

func readGraphFile(name string) (*svdag.Svdag, error) {
	f, err := fs.Open(name)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer f.Close()

	g := &svdag.Svdag{}
	if _, err := g.ReadFrom(bufio.NewReader(f)); err != nil {
		return nil, errors.Wrapf(err, "read %v", name)
	}
	return g, nil
}

func writeGraphFile(name string, g *svdag.Svdag) error {
	f, err := fs.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return errors.WithStack(err)
	}

	wr := bufio.NewWriter(f)
	if _, err := g.WriteTo(wr); err != nil {
		_ = f.Close()
		return errors.Wrapf(err, "write %v", name)
	}
	if err := wr.Flush(); err != nil {
		_ = f.Close()
		return errors.WithStack(err)
	}
	return errors.WithStack(f.Close())
}
