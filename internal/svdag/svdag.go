package svdag

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/skyline93/svdag/internal/volume"
)

// Value is one slot of the graph array: either a node record holding a
// children mask or a pointer holding the signed distance from its own slot
// to the node it references.
type Value struct {
	pointer  bool
	children Children
	offset   int16
}

// NodeValue returns a node record.
func NodeValue(c Children) Value {
	return Value{children: c}
}

// PointerValue returns a relative pointer.
func PointerValue(offset int16) Value {
	return Value{pointer: true, offset: offset}
}

// IsNode reports whether v is a node record.
func (v Value) IsNode() bool {
	return !v.pointer
}

// IsPointer reports whether v is a relative pointer.
func (v Value) IsPointer() bool {
	return v.pointer
}

// Children returns the mask of a node record.
func (v Value) Children() Children {
	return v.children
}

// Offset returns the relative offset of a pointer.
func (v Value) Offset() int16 {
	return v.offset
}

func (v Value) String() string {
	if v.pointer {
		return fmt.Sprintf("pointer(%+d)", v.offset)
	}
	return fmt.Sprintf("node(%v)", v.children)
}

// Svdag is a sparse voxel directed acyclic graph. The root node is stored at
// index 0; every node above the leaf level is followed by one pointer slot
// per occupied octant in octant order. Leaf-level nodes have no pointer
// slots.
//
// A finished graph is read-only; concurrent queries are safe.
type Svdag struct {
	depth uint8
	nodes []Value
}

// New returns a graph over the given slots. The slots are not validated,
// use UnmarshalBinary for untrusted data.
func New(depth uint8, nodes []Value) *Svdag {
	return &Svdag{depth: depth, nodes: nodes}
}

// Depth returns the octree depth of the graph.
func (g *Svdag) Depth() uint8 {
	return g.depth
}

// Side returns the side length of the encoded volume.
func (g *Svdag) Side() int {
	return 1 << g.depth
}

// Dimensions returns (side, side, side).
func (g *Svdag) Dimensions() volume.Dimensions {
	side := g.Side()
	return volume.Dimensions{X: side, Y: side, Z: side}
}

// Nodes returns the slot array. It must not be modified.
func (g *Svdag) Nodes() []Value {
	return g.nodes
}

// Len returns the number of slots.
func (g *Svdag) Len() int {
	return len(g.nodes)
}

// Size returns the encoded size in bytes including the depth byte.
func (g *Svdag) Size() int {
	return 1 + 2*len(g.nodes)
}

// DenseSize returns the size in bytes of the volume as a flat bitset.
func (g *Svdag) DenseSize() int {
	side := g.Side()
	return side * side * side / 8
}

// Contains reports whether p lies inside the graph's volume.
func (g *Svdag) Contains(p volume.Position) bool {
	side := g.Side()
	return p.X >= 0 && p.X < side &&
		p.Y >= 0 && p.Y < side &&
		p.Z >= 0 && p.Z < side
}

// Get returns whether the voxel at p is occupied. It panics if p is outside
// the volume or the graph is malformed.
func (g *Svdag) Get(p volume.Position) bool {
	if !g.Contains(p) {
		panic(fmt.Sprintf("position %v outside graph of side %d", p, g.Side()))
	}
	return g.get(p)
}

// Lookup is like Get but returns ErrOutOfRange for positions outside the
// volume.
func (g *Svdag) Lookup(p volume.Position) (bool, error) {
	if !g.Contains(p) {
		return false, errors.Wrapf(ErrOutOfRange, "position %v, side %d", p, g.Side())
	}
	return g.get(p), nil
}

func (g *Svdag) get(p volume.Position) bool {
	var origin volume.Position
	extent := g.Side()
	at := 0

	for depth := uint8(0); depth < g.depth; depth++ {
		extent /= 2

		octant := 0
		if p.X >= origin.X+extent {
			origin.X += extent
			octant += 4
		}
		if p.Y >= origin.Y+extent {
			origin.Y += extent
			octant += 2
		}
		if p.Z >= origin.Z+extent {
			origin.Z += extent
			octant++
		}

		node := g.nodes[at]
		if node.pointer {
			panic(fmt.Sprintf("slot %d: expected node, found %v", at, node))
		}

		// A full mask does not mean a full sub-tree above the leaf level, so
		// only empty octants end the walk early.
		if !node.children.Get(octant) {
			return false
		}
		if depth+1 == g.depth {
			return true
		}

		slot := at + node.children.GetN(octant) + 1
		ptr := g.nodes[slot]
		if !ptr.pointer {
			panic(fmt.Sprintf("slot %d: expected pointer, found %v", slot, ptr))
		}
		at = slot + int(ptr.offset)
	}

	return false
}

// Verify compares every voxel of v against the graph.
func (g *Svdag) Verify(v *volume.Volume) error {
	if v.Depth() != g.depth {
		return errors.Wrapf(ErrMismatch, "volume depth %d, graph depth %d", v.Depth(), g.depth)
	}

	var err error
	v.Each(func(p volume.Position, want bool) {
		if err != nil {
			return
		}
		if got := g.get(p); got != want {
			err = errors.Wrapf(ErrMismatch, "position %v: volume %v, graph %v", p, want, got)
		}
	})
	return err
}

// Equal reports whether both graphs have the same depth and slots.
func (g *Svdag) Equal(other *Svdag) bool {
	if g.depth != other.depth || len(g.nodes) != len(other.nodes) {
		return false
	}
	for i := range g.nodes {
		if g.nodes[i] != other.nodes[i] {
			return false
		}
	}
	return true
}

// Summary describes the shape of a graph.
type Summary struct {
	Depth     uint8
	Slots     int
	Nodes     int
	Pointers  int
	Size      int
	DenseSize int
}

// Ratio returns DenseSize / Size.
func (s Summary) Ratio() float64 {
	if s.Size == 0 {
		return 0
	}
	return float64(s.DenseSize) / float64(s.Size)
}

// Summary counts the records of g.
func (g *Svdag) Summary() Summary {
	s := Summary{
		Depth:     g.depth,
		Slots:     len(g.nodes),
		Size:      g.Size(),
		DenseSize: g.DenseSize(),
	}
	for _, v := range g.nodes {
		if v.pointer {
			s.Pointers++
		} else {
			s.Nodes++
		}
	}
	return s
}

// Walk calls fn once for every node reachable from the root in depth-first
// octant order, which is the order the builder emits them in.
func (g *Svdag) Walk(fn func(at int, depth uint8, c Children) error) error {
	if len(g.nodes) == 0 {
		return nil
	}

	seen := make([]bool, len(g.nodes))
	var walk func(at int, depth uint8) error
	walk = func(at int, depth uint8) error {
		if at < 0 || at >= len(g.nodes) || g.nodes[at].pointer {
			return errors.Wrapf(ErrCorrupt, "slot %d is not a node", at)
		}
		if seen[at] {
			return nil
		}
		seen[at] = true

		c := g.nodes[at].children
		if err := fn(at, depth, c); err != nil {
			return err
		}
		if depth+1 >= g.depth {
			return nil
		}

		for k := 1; k <= c.CountOccupied(); k++ {
			slot := at + k
			if slot >= len(g.nodes) || !g.nodes[slot].pointer {
				return errors.Wrapf(ErrCorrupt, "slot %d is not a pointer", slot)
			}
			if err := walk(slot+int(g.nodes[slot].offset), depth+1); err != nil {
				return err
			}
		}
		return nil
	}

	return walk(0, 0)
}

// LevelCounts returns the number of distinct nodes reachable on each level,
// root first.
func (g *Svdag) LevelCounts() ([]int, error) {
	counts := make([]int, g.depth)
	err := g.Walk(func(_ int, depth uint8, _ Children) error {
		counts[depth]++
		return nil
	})
	if err != nil {
		return nil, err
	}
	return counts, nil
}
