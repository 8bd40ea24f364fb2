package svdag

import (
	"encoding/binary"
	"io"
	"math/bits"

	"github.com/pkg/errors"
)

// The encoded form is one depth byte followed by two bytes per slot. A node
// slot is [mask, 0]; a pointer slot is its offset as little endian int16.
// Slots carry no tag, their role follows from the position in the tree.

const slotSize = 2

// MarshalBinary encodes g.
func (g *Svdag) MarshalBinary() ([]byte, error) {
	buf := make([]byte, 1+slotSize*len(g.nodes))
	buf[0] = g.depth

	for i, v := range g.nodes {
		slot := buf[1+slotSize*i:]
		if v.pointer {
			binary.LittleEndian.PutUint16(slot, uint16(v.offset))
		} else {
			slot[0] = byte(v.children)
			slot[1] = 0
		}
	}
	return buf, nil
}

// WriteTo writes the encoded graph to w.
func (g *Svdag) WriteTo(w io.Writer) (int64, error) {
	buf, err := g.MarshalBinary()
	if err != nil {
		return 0, err
	}
	n, err := w.Write(buf)
	return int64(n), errors.WithStack(err)
}

// ReadFrom replaces g with the graph read from r until EOF.
func (g *Svdag) ReadFrom(r io.Reader) (int64, error) {
	buf, err := io.ReadAll(r)
	if err != nil {
		return int64(len(buf)), errors.Wrap(err, "ReadAll")
	}
	return int64(len(buf)), g.UnmarshalBinary(buf)
}

const (
	roleUnknown = iota
	roleNode
	rolePointer
)

// UnmarshalBinary decodes data into g. The slot roles are recovered by
// walking the structure from the root; any slot that is unreachable, used in
// two roles or points outside the array makes the data corrupt.
func (g *Svdag) UnmarshalBinary(data []byte) error {
	if len(data) == 0 {
		return errors.Wrap(ErrCorrupt, "missing depth byte")
	}
	depth := data[0]
	if depth > MaxDepth {
		return errors.Wrapf(ErrCorrupt, "depth %d exceeds maximum %d", depth, MaxDepth)
	}
	if (len(data)-1)%slotSize != 0 {
		return errors.Wrapf(ErrCorrupt, "odd payload length %d", len(data)-1)
	}

	raw := data[1:]
	count := len(raw) / slotSize
	switch {
	case depth == 0 && count != 0:
		return errors.Wrapf(ErrCorrupt, "depth 0 graph with %d slots", count)
	case depth > 0 && count == 0:
		return errors.Wrap(ErrCorrupt, "missing root node")
	}

	roles := make([]uint8, count)
	levels := make([]uint8, count)
	nodes := make([]Value, count)

	type item struct {
		at    int
		depth uint8
	}
	stack := []item{}
	if count > 0 {
		stack = append(stack, item{at: 0, depth: 0})
	}

	for len(stack) > 0 {
		it := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		switch roles[it.at] {
		case rolePointer:
			return errors.Wrapf(ErrCorrupt, "slot %d referenced as node but is a pointer", it.at)
		case roleNode:
			if levels[it.at] != it.depth {
				return errors.Wrapf(ErrCorrupt, "node %d reached on depth %d and %d", it.at, levels[it.at], it.depth)
			}
			continue
		}

		mask, padding := raw[slotSize*it.at], raw[slotSize*it.at+1]
		if padding != 0 {
			return errors.Wrapf(ErrCorrupt, "node %d has non-zero padding", it.at)
		}
		roles[it.at] = roleNode
		levels[it.at] = it.depth
		nodes[it.at] = NodeValue(Children(mask))

		if it.depth+1 >= depth {
			continue
		}

		n := bits.OnesCount8(mask)
		for k := 1; k <= n; k++ {
			slot := it.at + k
			if slot >= count {
				return errors.Wrapf(ErrCorrupt, "node %d: pointer slot %d beyond end", it.at, slot)
			}
			if roles[slot] != roleUnknown {
				return errors.Wrapf(ErrCorrupt, "node %d: pointer slot %d already in use", it.at, slot)
			}

			offset := int16(binary.LittleEndian.Uint16(raw[slotSize*slot:]))
			target := slot + int(offset)
			if offset == 0 || target < 0 || target >= count {
				return errors.Wrapf(ErrCorrupt, "slot %d: invalid offset %d", slot, offset)
			}

			roles[slot] = rolePointer
			nodes[slot] = PointerValue(offset)
			stack = append(stack, item{at: target, depth: it.depth + 1})
		}
	}

	for i, r := range roles {
		if r == roleUnknown {
			return errors.Wrapf(ErrCorrupt, "slot %d is unreachable", i)
		}
	}

	g.depth = depth
	g.nodes = nodes
	return nil
}
