package index

// An indexMap is a chained hash table that maps content keys to indexEntries.
// It allows storing multiple entries with the same key.
//
// IndexMap uses some optimizations that are not compatible with supporting
// deletions.
//
// The buckets in this hash table contain only entry positions, rather than
// inlined key-value pairs like the standard Go map. This way, only a word
// array needs to be resized when the table grows, preventing memory usage
// spikes.
type indexMap struct {
	// The number of buckets is always a power of two and never zero.
	buckets    []uint
	numentries uint

	blockList hashedArrayTree
}

const (
	growthFactor = 2 // Must be a power of 2.
	maxLoad      = 4 // Max. number of entries per bucket.
)

type indexEntry struct {
	key   Key
	next  uint
	entry Entry
}

// add inserts an indexEntry for the given arguments into the map,
// using id as the key.
func (m *indexMap) add(key Key, e Entry) {
	switch {
	case m.numentries == 0: // Lazy initialization.
		m.init()
	case m.numentries >= maxLoad*uint(len(m.buckets)):
		m.grow()
	}

	h := m.hash(key)
	ep, idx := m.newEntry()
	ep.key = key
	ep.entry = e

	ep.next = m.buckets[h] // Chain new entry onto bucket.
	m.buckets[h] = idx
	m.numentries++
}

// foreachWithKey calls fn for all entries with the given key, in insertion
// order, until fn returns false.
func (m *indexMap) foreachWithKey(key Key, fn func(Entry) bool) {
	if len(m.buckets) == 0 {
		return
	}

	// Chains are prepended on insert, so collect and replay backwards.
	var found []Entry
	h := m.hash(key)
	for i := m.buckets[h]; i != 0; {
		e := m.resolve(i)
		if e.key == key {
			found = append(found, e.entry)
		}
		i = e.next
	}

	for i := len(found) - 1; i >= 0; i-- {
		if !fn(found[i]) {
			return
		}
	}
}

// firstWithKey returns the oldest entry with the given key. Chains are
// prepended on insert, so that is the last match along the chain.
func (m *indexMap) firstWithKey(key Key) (Entry, bool) {
	var (
		found Entry
		ok    bool
	)
	if len(m.buckets) == 0 {
		return found, false
	}

	h := m.hash(key)
	for i := m.buckets[h]; i != 0; {
		e := m.resolve(i)
		if e.key == key {
			found, ok = e.entry, true
		}
		i = e.next
	}
	return found, ok
}

func (m *indexMap) grow() {
	m.buckets = make([]uint, growthFactor*len(m.buckets))

	blockCount := m.blockList.Size()
	for i := uint(1); i < blockCount; i++ {
		e := m.resolve(i)

		h := m.hash(e.key)
		e.next = m.buckets[h]
		m.buckets[h] = i
	}
}

// hash spreads the content hash and level over the bucket range. Content
// hashes are already uniformly distributed, so a multiplicative mix is
// enough.
func (m *indexMap) hash(key Key) uint {
	h := key.Hash ^ uint64(key.Level)*0x9e3779b97f4a7c15
	h ^= h >> 29
	h *= 0xbf58476d1ce4e5b9
	h ^= h >> 32

	// Turn hash into a bucket index by masking the low bits.
	return uint(h) & uint(len(m.buckets)-1)
}

func (m *indexMap) init() {
	const initialBuckets = 64
	m.buckets = make([]uint, initialBuckets)
	// first entry in blockList serves as null byte
	m.blockList = *newHAT()
	m.newEntry()
}

func (m *indexMap) len() uint { return m.numentries }

func (m *indexMap) newEntry() (*indexEntry, uint) {
	return m.blockList.Alloc()
}

func (m *indexMap) resolve(idx uint) *indexEntry {
	return m.blockList.Ref(idx)
}

type hashedArrayTree struct {
	mask      uint
	maskShift uint
	blockSize uint

	size      uint
	blockList [][]indexEntry
}

func newHAT() *hashedArrayTree {
	// start with a small block size
	blockSizePower := uint(2)
	blockSize := uint(1 << blockSizePower)

	return &hashedArrayTree{
		mask:      blockSize - 1,
		maskShift: blockSizePower,
		blockSize: blockSize,
		size:      0,
		blockList: make([][]indexEntry, blockSize),
	}
}

func (h *hashedArrayTree) Alloc() (*indexEntry, uint) {
	h.grow()
	size := h.size
	idx, subIdx := h.index(size)
	h.size++
	return &h.blockList[idx][subIdx], size
}

func (h *hashedArrayTree) index(pos uint) (idx uint, subIdx uint) {
	subIdx = pos & h.mask
	idx = pos >> h.maskShift
	return
}

func (h *hashedArrayTree) Ref(pos uint) *indexEntry {
	if pos >= h.size {
		panic("array index out of bounds")
	}

	idx, subIdx := h.index(pos)
	return &h.blockList[idx][subIdx]
}

func (h *hashedArrayTree) Size() uint {
	return h.size
}

func (h *hashedArrayTree) grow() {
	idx, subIdx := h.index(h.size)
	if int(idx) == len(h.blockList) {
		// blockList is too short -> double list and block size
		h.blockSize *= 2
		h.mask = h.mask*2 + 1
		h.maskShift++
		idx = idx / 2

		oldBlocks := h.blockList
		h.blockList = make([][]indexEntry, h.blockSize)

		// pairwise merging of blocks
		for i := 0; i < len(oldBlocks); i += 2 {
			block := make([]indexEntry, 0, h.blockSize)
			block = append(block, oldBlocks[i]...)
			block = append(block, oldBlocks[i+1]...)
			h.blockList[i/2] = block
			// allow GC
			oldBlocks[i] = nil
			oldBlocks[i+1] = nil
		}
	}
	if subIdx == 0 {
		// new index entry batch
		h.blockList[idx] = make([]indexEntry, h.blockSize)
	}
}
