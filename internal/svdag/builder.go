package svdag

import (
	"context"
	"math"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/skyline93/svdag/internal/index"
	"github.com/skyline93/svdag/internal/volume"
)

// BuilderOptions configures graph construction.
type BuilderOptions struct {
	// Workers is the number of goroutines summarizing each pyramid level.
	// Zero selects GOMAXPROCS.
	Workers int

	// Strict compares sub-trees structurally whenever their hashes match
	// and only merges them when they are really equal.
	Strict bool
}

// Stats counts what a graph construction emitted.
type Stats struct {
	Levels     int
	Nodes      int
	Pointers   int
	DedupHits  int
	Collisions int
}

// Builder turns a dense volume into a deduplicated graph. It first
// summarizes the volume into a hash pyramid and then emits the pyramid
// root-down, reusing any sub-tree whose content was emitted before.
type Builder struct {
	opts BuilderOptions

	depth  uint8
	levels []*HashedVolume
	idx    *index.Index
	graph  *Svdag
	stats  Stats
}

// NewBuilder returns a new builder.
func NewBuilder(opts BuilderOptions) (*Builder, error) {
	if opts.Workers < 0 {
		return nil, errors.Errorf("invalid number of workers %d", opts.Workers)
	}

	return &Builder{opts: opts}, nil
}

// CreateLayers builds the hash pyramid for v.
func (b *Builder) CreateLayers(ctx context.Context, v *volume.Volume) error {
	log.Debugf("create layers for volume of side %d", v.Side())

	levels, err := BuildPyramid(ctx, v, b.opts.Workers)
	if err != nil {
		return err
	}

	b.depth = v.Depth()
	b.levels = levels
	return nil
}

// CreateGraph merges the pyramid into a single graph. CreateLayers must have
// been called before.
func (b *Builder) CreateGraph() error {
	if len(b.levels) == 0 {
		return errors.New("no layers, call CreateLayers first")
	}

	b.idx = index.New()
	b.graph = &Svdag{depth: b.depth}
	b.stats = Stats{Levels: len(b.levels)}

	if _, err := b.emit(0, volume.Position{}); err != nil {
		b.graph = nil
		return err
	}
	b.idx.Finalize()

	log.Debugf("graph for depth %d: %d slots, %d nodes, %d pointers, %d dedup hits",
		b.depth, len(b.graph.nodes), b.stats.Nodes, b.stats.Pointers, b.stats.DedupHits)
	return nil
}

// Finish returns the graph built by CreateGraph, or nil.
func (b *Builder) Finish() *Svdag {
	return b.graph
}

// Stats returns the counters of the last CreateGraph call.
func (b *Builder) Stats() Stats {
	return b.stats
}

// emit writes the sub-tree rooted at pos on the given level and returns the
// absolute index of its node record. The node and all of its pointer slots
// are appended before any child is visited.
func (b *Builder) emit(level int, pos volume.Position) (int, error) {
	layer := b.levels[level]
	node := layer.Get(pos)
	key := index.Key{Level: uint8(level), Hash: node.Hash}

	if at, ok := b.lookup(key, level, pos); ok {
		b.stats.DedupHits++
		return at, nil
	}

	self := len(b.graph.nodes)
	b.idx.Add(key, index.Entry{Offset: self, Position: pos})
	b.graph.nodes = append(b.graph.nodes, NodeValue(node.Children))
	b.stats.Nodes++

	// leaf occupancy is answered by the mask alone
	if level+1 >= len(b.levels) {
		return self, nil
	}

	n := node.Children.CountOccupied()
	for i := 0; i < n; i++ {
		b.graph.nodes = append(b.graph.nodes, PointerValue(0))
	}
	b.stats.Pointers += n

	children := layer.ChildPositions(pos)
	slot := self + 1
	for i := 0; i < 8; i++ {
		if !node.Children.Get(i) {
			continue
		}

		child, err := b.emit(level+1, children[i])
		if err != nil {
			return 0, err
		}

		offset := child - slot
		if offset < math.MinInt16 || offset > math.MaxInt16 {
			return 0, errors.Wrapf(ErrOffsetOverflow, "slot %d references node %d (offset %d)", slot, child, offset)
		}
		b.graph.nodes[slot] = PointerValue(int16(offset))
		slot++
	}

	return self, nil
}

// lookup returns the index of an already emitted sub-tree equal to the one
// at pos.
func (b *Builder) lookup(key index.Key, level int, pos volume.Position) (int, bool) {
	if !b.opts.Strict {
		e, ok := b.idx.First(key)
		return e.Offset, ok
	}

	var (
		at           int
		found, known bool
	)
	b.idx.Each(key, func(e index.Entry) bool {
		known = true
		if b.sameSubtree(level, e.Position, pos) {
			at, found = e.Offset, true
			return false
		}
		return true
	})

	if known && !found {
		b.stats.Collisions++
		log.Warnf("hash collision on level %d at %v (hash %016x), keeping both sub-trees", level, pos, key.Hash)
	}
	return at, found
}

// sameSubtree compares the sub-trees at a and c on the given level cell by
// cell.
func (b *Builder) sameSubtree(level int, a, c volume.Position) bool {
	if a == c {
		return true
	}

	layer := b.levels[level]
	na, nc := layer.Get(a), layer.Get(c)
	if na.Children != nc.Children {
		return false
	}
	if level+1 >= len(b.levels) {
		return true
	}

	ca, cc := layer.ChildPositions(a), layer.ChildPositions(c)
	for i := 0; i < 8; i++ {
		if na.Children.Get(i) && !b.sameSubtree(level+1, ca[i], cc[i]) {
			return false
		}
	}
	return true
}

// Build compresses v into a graph.
func Build(ctx context.Context, v *volume.Volume, opts BuilderOptions) (*Svdag, error) {
	b, err := NewBuilder(opts)
	if err != nil {
		return nil, err
	}

	if err := b.CreateLayers(ctx, v); err != nil {
		return nil, err
	}
	if err := b.CreateGraph(); err != nil {
		return nil, err
	}

	return b.Finish(), nil
}
