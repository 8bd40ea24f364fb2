// Package archiver builds graphs for a batch of scene files and stores them,
// overlapping the CPU bound builds with the backend writes.
package archiver

import (
	"context"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/skyline93/svdag/internal/scene"
	"github.com/skyline93/svdag/internal/svdag"
	"golang.org/x/sync/errgroup"
)

// ErrorFunc is called when a scene cannot be built. When nil is returned, the
// archiver continues with the next scene, otherwise it aborts and passes the
// error up the call stack.
type ErrorFunc func(file string, err error) error

// Result describes one archived scene.
type Result struct {
	Scene   string
	SceneID svdag.ID
	GraphID svdag.ID
	Summary svdag.Summary
	Stats   svdag.Stats
}

// Options configure an Archiver.
type Options struct {
	Builder svdag.BuilderOptions

	// Verify checks every graph against its volume before it is saved.
	Verify bool

	// SaveConcurrency sets how many graphs are saved at the same time,
	// zero means two.
	SaveConcurrency uint
}

// Archiver builds and saves graphs.
type Archiver struct {
	Repo    Saver
	Options Options

	// Error is called for scenes that fail to load, build or verify.
	Error ErrorFunc

	// Result is called from a saver goroutine for every stored graph.
	Result func(Result)
}

// New returns an archiver storing graphs in repo.
func New(repo Saver, opts Options) *Archiver {
	if opts.SaveConcurrency == 0 {
		opts.SaveConcurrency = 2
	}

	return &Archiver{
		Repo:    repo,
		Options: opts,
		Error: func(_ string, err error) error {
			return err
		},
		Result: func(Result) {},
	}
}

// Archive builds a graph for each scene file and saves graph and scene.
func (arch *Archiver) Archive(ctx context.Context, files []string) error {
	wg, wgCtx := errgroup.WithContext(ctx)
	saver := NewGraphSaver(wgCtx, wg, arch.Repo, arch.Options.SaveConcurrency)

	wg.Go(func() error {
		defer saver.TriggerShutdown()

		for _, file := range files {
			if wgCtx.Err() != nil {
				return nil
			}

			err := arch.archive(wgCtx, saver, file)
			if err == nil {
				continue
			}
			if errors.Is(err, context.Canceled) {
				return err
			}

			err = arch.Error(file, err)
			if err != nil {
				return err
			}
		}
		return nil
	})

	return wg.Wait()
}

func (arch *Archiver) archive(ctx context.Context, saver *GraphSaver, file string) error {
	s, err := scene.Load(file)
	if err != nil {
		return err
	}
	data, err := s.Marshal()
	if err != nil {
		return err
	}

	v := s.Volume()
	b, err := svdag.NewBuilder(arch.Options.Builder)
	if err != nil {
		return err
	}
	if err := b.CreateLayers(ctx, v); err != nil {
		return err
	}
	if err := b.CreateGraph(); err != nil {
		return errors.Wrapf(err, "build %v", file)
	}
	g := b.Finish()

	if arch.Options.Verify {
		if err := g.Verify(v); err != nil {
			return errors.Wrapf(err, "verify %v", file)
		}
	}

	stats := b.Stats()
	log.Debugf("built %v: %+v", file, stats)

	saver.Save(ctx, g, data, func(res SaveGraphResponse) {
		arch.Result(Result{
			Scene:   file,
			SceneID: res.SceneID,
			GraphID: res.GraphID,
			Summary: g.Summary(),
			Stats:   stats,
		})
	})
	return nil
}
