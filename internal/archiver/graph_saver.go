package archiver

import (
	"context"

	log "github.com/sirupsen/logrus"
	"github.com/skyline93/svdag/internal/svdag"
	"golang.org/x/sync/errgroup"
)

// Saver allows saving graphs and scenes.
type Saver interface {
	SaveGraph(ctx context.Context, g *svdag.Svdag) (svdag.ID, error)
	SaveScene(ctx context.Context, data []byte) (svdag.ID, error)
}

// GraphSaver concurrently saves incoming graphs to the repo.
type GraphSaver struct {
	repo Saver
	ch   chan<- saveGraphJob
}

type saveGraphJob struct {
	graph *svdag.Svdag
	scene []byte
	cb    func(res SaveGraphResponse)
}

// SaveGraphResponse holds the IDs a graph and its scene were stored under.
type SaveGraphResponse struct {
	GraphID svdag.ID
	SceneID svdag.ID
}

// NewGraphSaver returns a new graph saver. A worker pool is started, it is
// stopped when ctx is cancelled or TriggerShutdown is called.
func NewGraphSaver(ctx context.Context, wg *errgroup.Group, repo Saver, workers uint) *GraphSaver {
	ch := make(chan saveGraphJob)
	s := &GraphSaver{
		repo: repo,
		ch:   ch,
	}

	for i := uint(0); i < workers; i++ {
		wg.Go(func() error {
			return s.worker(ctx, ch)
		})
	}

	return s
}

func (s *GraphSaver) worker(ctx context.Context, jobs <-chan saveGraphJob) error {
	for {
		var job saveGraphJob
		var ok bool
		select {
		case <-ctx.Done():
			return nil
		case job, ok = <-jobs:
			if !ok {
				return nil
			}
		}

		res, err := s.saveGraph(ctx, job.graph, job.scene)
		if err != nil {
			log.Debugf("saveGraph returned error, exiting: %v", err)
			return err
		}
		job.cb(res)
	}
}

func (s *GraphSaver) saveGraph(ctx context.Context, g *svdag.Svdag, scene []byte) (SaveGraphResponse, error) {
	var res SaveGraphResponse
	var err error

	if scene != nil {
		res.SceneID, err = s.repo.SaveScene(ctx, scene)
		if err != nil {
			return SaveGraphResponse{}, err
		}
	}

	res.GraphID, err = s.repo.SaveGraph(ctx, g)
	if err != nil {
		return SaveGraphResponse{}, err
	}
	return res, nil
}

// Save stores a graph and the scene it was built from in the repo. cb is
// called from a worker goroutine once both are stored.
func (s *GraphSaver) Save(ctx context.Context, g *svdag.Svdag, scene []byte, cb func(res SaveGraphResponse)) {
	select {
	case s.ch <- saveGraphJob{graph: g, scene: scene, cb: cb}:
	case <-ctx.Done():
		log.Debugf("not sending job, context is cancelled")
	}
}

// TriggerShutdown stops the workers once all queued jobs are processed.
func (s *GraphSaver) TriggerShutdown() {
	close(s.ch)
}
