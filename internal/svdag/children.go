package svdag

import (
	"fmt"
	"math/bits"
)

// Children is an occupancy mask over the eight octants of a node. Bit i is
// octant i, where i = dx*4 + dy*2 + dz for the octant's offset (dx, dy, dz)
// inside the parent cell.
type Children uint8

// Get reports whether octant i is occupied.
func (c Children) Get(i int) bool {
	return (c>>uint(i))&1 == 1
}

// Set marks octant i as occupied or empty.
func (c *Children) Set(i int, occupied bool) {
	if occupied {
		*c |= 1 << uint(i)
	} else {
		*c &^= 1 << uint(i)
	}
}

// GetN returns the number of occupied octants strictly below i.
func (c Children) GetN(i int) int {
	return bits.OnesCount8(uint8(c) & uint8(1<<uint(i)-1))
}

// CountOccupied returns the number of occupied octants.
func (c Children) CountOccupied() int {
	return bits.OnesCount8(uint8(c))
}

// IsInteresting reports whether any octant is occupied.
func (c Children) IsInteresting() bool {
	return c != 0
}

// IsFull reports whether all octants are occupied.
func (c Children) IsFull() bool {
	return c == 0xff
}

func (c Children) String() string {
	return fmt.Sprintf("%08b", uint8(c))
}
