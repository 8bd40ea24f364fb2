package svdag

import (
	"context"
	"encoding/binary"
	"runtime"

	"github.com/cespare/xxhash/v2"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/skyline93/svdag/internal/volume"
	"golang.org/x/sync/errgroup"
)

// HashedVolumeNode summarizes one cell of a pyramid level.
type HashedVolumeNode struct {
	// Hash identifies the content of the sub-tree rooted at this cell. Equal
	// hashes on the same level are taken as equal content.
	Hash     uint64
	Children Children
}

// HashedVolume is one level of the hash pyramid: a cubic grid of side
// 2^depth whose cells summarize 2x2x2 cells of the level below.
type HashedVolume struct {
	depth uint8
	side  int
	nodes []HashedVolumeNode
}

func newHashedVolume(depth uint8) *HashedVolume {
	side := 1 << depth
	return &HashedVolume{
		depth: depth,
		side:  side,
		nodes: make([]HashedVolumeNode, side*side*side),
	}
}

// Depth returns log2 of the level's side length.
func (hv *HashedVolume) Depth() uint8 {
	return hv.depth
}

// Side returns the side length of the level.
func (hv *HashedVolume) Side() int {
	return hv.side
}

// Dimensions returns (side, side, side).
func (hv *HashedVolume) Dimensions() volume.Dimensions {
	return volume.Dimensions{X: hv.side, Y: hv.side, Z: hv.side}
}

// Get returns the node at p.
func (hv *HashedVolume) Get(p volume.Position) HashedVolumeNode {
	return hv.nodes[hv.index(p)]
}

func (hv *HashedVolume) index(p volume.Position) int {
	return p.Z*hv.side*hv.side + p.Y*hv.side + p.X
}

// ChildPositions returns the positions of the eight cells one level below
// that p summarizes, in octant order.
func (hv *HashedVolume) ChildPositions(p volume.Position) [8]volume.Position {
	return childPositions(p)
}

func childPositions(p volume.Position) [8]volume.Position {
	var out [8]volume.Position
	for i := range out {
		out[i] = volume.Position{
			X: p.X*2 + (i>>2)&1,
			Y: p.Y*2 + (i>>1)&1,
			Z: p.Z*2 + i&1,
		}
	}
	return out
}

// NewHashedVolumeFromVolume builds the base level of the pyramid. Every cell
// packs 2x2x2 voxels into its mask and hashes the mask alone.
func NewHashedVolumeFromVolume(ctx context.Context, v *volume.Volume, workers int) (*HashedVolume, error) {
	if v.Depth() == 0 || v.Depth() > MaxDepth {
		return nil, errors.Wrapf(ErrInvalidDepth, "volume depth %d", v.Depth())
	}

	hv := newHashedVolume(v.Depth() - 1)
	err := hv.summarize(ctx, workers, func(p volume.Position) HashedVolumeNode {
		var children Children
		for i, src := range childPositions(p) {
			children.Set(i, v.Get(src))
		}
		return HashedVolumeNode{
			Hash:     xxhash.Sum64([]byte{byte(children)}),
			Children: children,
		}
	})
	if err != nil {
		return nil, err
	}

	log.Debugf("summarized base level: side %d", hv.side)
	return hv, nil
}

// NewHashedVolumeFromHashedVolume builds the next coarser level. A cell's
// mask marks which of its eight children contain anything; its hash covers
// the children's hashes in octant order.
func NewHashedVolumeFromHashedVolume(ctx context.Context, src *HashedVolume, workers int) (*HashedVolume, error) {
	if src.depth == 0 {
		return nil, errors.Wrap(ErrInvalidDepth, "cannot summarize a 1x1x1 level")
	}

	hv := newHashedVolume(src.depth - 1)
	err := hv.summarize(ctx, workers, func(p volume.Position) HashedVolumeNode {
		var (
			children Children
			buf      [8 * 8]byte
		)
		for i, cp := range childPositions(p) {
			child := src.Get(cp)
			children.Set(i, child.Children.IsInteresting())
			binary.LittleEndian.PutUint64(buf[i*8:], child.Hash)
		}
		return HashedVolumeNode{
			Hash:     xxhash.Sum64(buf[:]),
			Children: children,
		}
	})
	if err != nil {
		return nil, err
	}

	log.Debugf("summarized level: side %d", hv.side)
	return hv, nil
}

// summarize fills every cell of hv with fn. Cells are independent, so z
// slabs are handed out to a pool of workers.
func (hv *HashedVolume) summarize(ctx context.Context, workers int, fn func(volume.Position) HashedVolumeNode) error {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > hv.side {
		workers = hv.side
	}

	wg, ctx := errgroup.WithContext(ctx)
	ch := make(chan int)

	for i := 0; i < workers; i++ {
		wg.Go(func() error {
			for z := range ch {
				for y := 0; y < hv.side; y++ {
					for x := 0; x < hv.side; x++ {
						p := volume.Position{X: x, Y: y, Z: z}
						hv.nodes[hv.index(p)] = fn(p)
					}
				}
			}
			return nil
		})
	}

	wg.Go(func() error {
		defer close(ch)
		for z := 0; z < hv.side; z++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			select {
			case ch <- z:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})

	return wg.Wait()
}

// BuildPyramid summarizes v into depth levels. The result is ordered root
// first: levels[0] is the 1x1x1 root level and levels[len-1] the base level
// that summarizes raw voxels.
func BuildPyramid(ctx context.Context, v *volume.Volume, workers int) ([]*HashedVolume, error) {
	hv, err := NewHashedVolumeFromVolume(ctx, v, workers)
	if err != nil {
		return nil, err
	}

	levels := make([]*HashedVolume, v.Depth())
	levels[hv.depth] = hv
	for hv.side > 1 {
		hv, err = NewHashedVolumeFromHashedVolume(ctx, hv, workers)
		if err != nil {
			return nil, err
		}
		levels[hv.depth] = hv
	}

	return levels, nil
}
