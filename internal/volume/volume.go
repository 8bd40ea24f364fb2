package volume

import (
	"fmt"
	"math"
)

// Position addresses a single voxel (or a cell of a coarser grid).
type Position struct {
	X, Y, Z int
}

func (p Position) String() string {
	return fmt.Sprintf("(%d,%d,%d)", p.X, p.Y, p.Z)
}

// Dimensions is the extent of a grid along each axis.
type Dimensions struct {
	X, Y, Z int
}

// Volume is a dense cubic grid of occupancy values with side 2^depth.
type Volume struct {
	depth     uint8
	side      int
	densities []bool
}

// MaxDepth is the deepest volume that can be allocated. A volume holds one
// byte per voxel, so depth 10 already takes 1 GiB.
const MaxDepth = 10

// New returns an empty volume of the given depth. It panics for depths above
// MaxDepth.
func New(depth uint8) *Volume {
	if depth > MaxDepth {
		panic(fmt.Sprintf("volume depth %d exceeds maximum %d", depth, MaxDepth))
	}
	side := 1 << depth
	return &Volume{
		depth:     depth,
		side:      side,
		densities: make([]bool, side*side*side),
	}
}

// Depth returns the octree depth of the volume.
func (v *Volume) Depth() uint8 {
	return v.depth
}

// Side returns the side length of the cube.
func (v *Volume) Side() int {
	return v.side
}

// Dimensions returns (side, side, side).
func (v *Volume) Dimensions() Dimensions {
	return Dimensions{X: v.side, Y: v.side, Z: v.side}
}

// Len returns the number of voxels.
func (v *Volume) Len() int {
	return len(v.densities)
}

// Contains reports whether p lies inside the volume.
func (v *Volume) Contains(p Position) bool {
	return p.X >= 0 && p.X < v.side &&
		p.Y >= 0 && p.Y < v.side &&
		p.Z >= 0 && p.Z < v.side
}

// Index flattens p as z*side*side + y*side + x.
func (v *Volume) Index(p Position) int {
	return p.Z*v.side*v.side + p.Y*v.side + p.X
}

// Get returns the value at p. It panics when p is outside the volume.
func (v *Volume) Get(p Position) bool {
	if !v.Contains(p) {
		panic(fmt.Sprintf("position %v outside volume of side %d", p, v.side))
	}
	return v.densities[v.Index(p)]
}

// GetIndex returns the value at the flat index i.
func (v *Volume) GetIndex(i int) bool {
	return v.densities[i]
}

// Set stores value at p. It panics when p is outside the volume.
func (v *Volume) Set(p Position, value bool) {
	if !v.Contains(p) {
		panic(fmt.Sprintf("position %v outside volume of side %d", p, v.side))
	}
	v.densities[v.Index(p)] = value
}

// Fill sets every voxel to value.
func (v *Volume) Fill(value bool) {
	for i := range v.densities {
		v.densities[i] = value
	}
}

// Count returns the number of occupied voxels.
func (v *Volume) Count() int {
	n := 0
	for _, d := range v.densities {
		if d {
			n++
		}
	}
	return n
}

// Each calls fn for every voxel in x-fastest order.
func (v *Volume) Each(fn func(p Position, value bool)) {
	i := 0
	for z := 0; z < v.side; z++ {
		for y := 0; y < v.side; y++ {
			for x := 0; x < v.side; x++ {
				fn(Position{X: x, Y: y, Z: z}, v.densities[i])
				i++
			}
		}
	}
}

// FillSphere sets every voxel whose distance to center is strictly less than
// radius. Voxels outside the volume are ignored.
func (v *Volume) FillSphere(center Position, radius float32, value bool) {
	v.Each(func(p Position, _ bool) {
		dx := float32(p.X - center.X)
		dy := float32(p.Y - center.Y)
		dz := float32(p.Z - center.Z)
		if float32(math.Sqrt(float64(dx*dx+dy*dy+dz*dz))) < radius {
			v.densities[v.Index(p)] = value
		}
	})
}

// FillBox sets every voxel in [min, max) clipped to the volume.
func (v *Volume) FillBox(min, max Position, value bool) {
	lo := Position{X: clamp(min.X, v.side), Y: clamp(min.Y, v.side), Z: clamp(min.Z, v.side)}
	hi := Position{X: clamp(max.X, v.side), Y: clamp(max.Y, v.side), Z: clamp(max.Z, v.side)}
	for z := lo.Z; z < hi.Z; z++ {
		for y := lo.Y; y < hi.Y; y++ {
			for x := lo.X; x < hi.X; x++ {
				v.densities[v.Index(Position{X: x, Y: y, Z: z})] = value
			}
		}
	}
}

func clamp(c, side int) int {
	if c < 0 {
		return 0
	}
	if c > side {
		return side
	}
	return c
}
