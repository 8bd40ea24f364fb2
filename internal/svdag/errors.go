package svdag

import (
	"github.com/pkg/errors"
	"github.com/skyline93/svdag/internal/volume"
)

// MaxDepth is the deepest graph that can be built or decoded. Graphs are
// built from dense volumes, so it is bounded by volume.MaxDepth.
const MaxDepth = volume.MaxDepth

var (
	// ErrInvalidDepth is returned for volumes of depth 0 or above MaxDepth.
	ErrInvalidDepth = errors.New("invalid depth")

	// ErrOffsetOverflow is returned when a child reference does not fit into
	// a signed 16 bit relative offset.
	ErrOffsetOverflow = errors.New("relative offset out of 16 bit range")

	// ErrMismatch is returned by Verify when the graph and the volume disagree.
	ErrMismatch = errors.New("graph does not match volume")

	// ErrCorrupt is returned when encoded graph data violates the layout.
	ErrCorrupt = errors.New("corrupt graph data")

	// ErrOutOfRange is returned for positions outside the graph.
	ErrOutOfRange = errors.New("position out of range")
)
