package index

import (
	log "github.com/sirupsen/logrus"
	"github.com/skyline93/svdag/internal/volume"
)

// During graph construction every emitted node is recorded here so that
// later sub-trees with the same content hash can reuse it. A volume of depth
// D produces at most (8^D - 1) / 7 pyramid cells, but only distinct ones are
// stored, so the table stays small compared to the dense input.
//
// Entries take 48 bytes each on amd64 plus one bucket word per entry at the
// maximum load factor.

// Key identifies a sub-tree by the pyramid level it lives on and its content
// hash. Nodes of different levels are never interchangeable, as leaf-level
// nodes carry no pointer slots.
type Key struct {
	Level uint8
	Hash  uint64
}

// Entry records where a sub-tree was emitted in the graph array and which
// pyramid cell it was emitted from.
type Entry struct {
	Offset   int
	Position volume.Position
}

// Index maps content keys to emitted graph nodes. It can hold several
// entries per key; they are visited in insertion order, so the first entry
// is the canonical one.
type Index struct {
	m     indexMap
	final bool
}

// New returns an empty index.
func New() *Index {
	return &Index{}
}

// Add records e under key. It panics if the index was finalized.
func (idx *Index) Add(key Key, e Entry) {
	if idx.final {
		panic("index already finalized")
	}
	idx.m.add(key, e)
}

// First returns the first entry recorded for key.
func (idx *Index) First(key Key) (Entry, bool) {
	return idx.m.firstWithKey(key)
}

// Each calls fn for every entry recorded under key, oldest first, until fn
// returns false.
func (idx *Index) Each(key Key, fn func(Entry) bool) {
	idx.m.foreachWithKey(key, fn)
}

// Len returns the number of entries.
func (idx *Index) Len() int {
	return int(idx.m.len())
}

// Finalize marks the index as complete. No entries can be added afterwards.
func (idx *Index) Finalize() {
	log.Debugf("finalizing index with %d entries", idx.Len())
	idx.final = true
}

// Final reports whether Finalize was called.
func (idx *Index) Final() bool {
	return idx.final
}
