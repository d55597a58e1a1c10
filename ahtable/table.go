// Package ahtable implements the array-hash table: an open-addressed hash
// table whose "slots" are packed, variable-length byte arenas holding every
// (keylen, key, value) record that hashes to that slot. It is the bucket
// type the HAT-trie attaches at its leaves.
package ahtable

import (
	"encoding/binary"
	"sort"
	"unsafe"

	"github.com/bits-and-blooms/bitset"
	"github.com/bits-and-blooms/bloom/v3"
	radixsort "github.com/dgryski/go-radixsort"

	"github.com/vavrusa/hat-trie/errutil"
)

// InitSize is the default number of slots a freshly created Table starts
// with (must be a power of two).
const InitSize = 4096

const valueSize = 8 // sizeof(value_t)

// Table is an array-hash-table bucket. C0/C1 describe the inclusive range
// of first key-bytes this bucket is responsible for; Pure records whether
// that first byte has already been stripped from every stored key, or is
// retained in-line (a bucket spanning more than one byte must do the
// latter, since the byte is the only thing distinguishing its keys by
// which child slot they came through).
type Table struct {
	C0, C1 byte
	Pure   bool

	n       int
	maxSize uint32
	slots   [][]byte

	occupied    *bitset.BitSet // bit i set iff slots[i] is non-empty
	filter      *bloom.BloomFilter
	filterDirty bool
}

// New creates an empty bucket covering [c0,c1]. Pure buckets always have
// c0==c1; hybrid buckets may span a wider range.
func New(c0, c1 byte, pure bool) *Table {
	t := &Table{
		C0: c0, C1: c1, Pure: pure,
		maxSize: InitSize,
		slots:   make([][]byte, InitSize),
	}
	t.occupied = bitset.New(uint(InitSize))
	t.rebuildFilter()
	return t
}

// Size returns n, the number of keys stored.
func (t *Table) Size() int { return t.n }

func (t *Table) slotIndex(h uint64) uint32 {
	return uint32(h) & (t.maxSize - 1)
}

// record layout: varint(keylen) ++ key ++ 8 bytes of value (LE).
func encodeRecord(dst []byte, key []byte, val uint64) []byte {
	var lenBuf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(lenBuf[:], uint64(len(key)))
	dst = append(dst, lenBuf[:n]...)
	dst = append(dst, key...)
	var valBuf [valueSize]byte
	binary.LittleEndian.PutUint64(valBuf[:], val)
	dst = append(dst, valBuf[:]...)
	return dst
}

// scanSlot walks every record in a slot arena, calling f with the record's
// start offset, its key slice (aliasing into slot), and the offset of its
// 8-byte value. Stops early if f returns true.
func scanSlot(slot []byte, f func(recOff int, key []byte, valOff int) bool) {
	off := 0
	for off < len(slot) {
		keylen, n := binary.Uvarint(slot[off:])
		errutil.BugOn(n <= 0, "ahtable: corrupt varint in slot arena")
		keyStart := off + n
		keyEnd := keyStart + int(keylen)
		valOff := keyEnd
		if f(off, slot[keyStart:keyEnd], valOff) {
			return
		}
		off = valOff + valueSize
	}
}

func recordLen(keylen int) int {
	var lenBuf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(lenBuf[:], uint64(keylen))
	return n + keylen + valueSize
}

func valuePtr(slot []byte, valOff int) *uint64 {
	return (*uint64)(unsafe.Pointer(&slot[valOff]))
}

// find locates key within its slot's arena. Returns the slot index, the
// value pointer if found, and whether it was found.
func (t *Table) find(key []byte) (slotIdx uint32, val *uint64, found bool) {
	h := hash(key)
	slotIdx = t.slotIndex(h)
	slot := t.slots[slotIdx]
	scanSlot(slot, func(_ int, k []byte, valOff int) bool {
		if bytesEqual(k, key) {
			val = valuePtr(t.slots[slotIdx], valOff)
			found = true
			return true
		}
		return false
	})
	return
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Insert sets key's value to val, overwriting any existing entry.
func (t *Table) Insert(key []byte, val uint64) {
	if _, existing, found := t.find(key); found {
		*existing = val
		return
	}
	t.append(key, val)
}

// Get returns a pointer to key's value, inserting a fresh zero-valued
// entry if key is absent (the HAT-trie's get-or-create protocol). The
// pointer is valid only until the next mutating call on this Table.
func (t *Table) Get(key []byte) *uint64 {
	if _, existing, found := t.find(key); found {
		return existing
	}
	return t.append(key, 0)
}

func (t *Table) append(key []byte, val uint64) *uint64 {
	h := hash(key)
	idx := t.slotIndex(h)
	t.slots[idx] = encodeRecord(t.slots[idx], key, val)
	t.occupied.Set(uint(idx))
	t.n++
	t.filterDirty = true

	valOff := len(t.slots[idx]) - valueSize
	ptr := valuePtr(t.slots[idx], valOff)

	if uint32(t.n) > t.maxSize {
		t.rehash(t.maxSize * 2)
		// re-locate: the append above may have been relocated by rehash.
		_, ptr, _ = t.find(key)
	}
	return ptr
}

// TryGet looks up key without inserting. The bloom filter gives a fast
// negative path before the arena is scanned.
func (t *Table) TryGet(key []byte) (*uint64, bool) {
	if t.filter != nil {
		if t.filterDirty {
			t.rebuildFilter()
		}
		if !t.filter.Test(key) {
			return nil, false
		}
	}
	_, val, found := t.find(key)
	return val, found
}

// Del removes key, returning whether it was present.
func (t *Table) Del(key []byte) bool {
	h := hash(key)
	idx := t.slotIndex(h)
	slot := t.slots[idx]

	removed := false
	scanSlot(slot, func(recOff int, k []byte, valOff int) bool {
		if bytesEqual(k, key) {
			recLen := recordLen(len(k))
			copy(slot[recOff:], slot[recOff+recLen:])
			t.slots[idx] = slot[:len(slot)-recLen]
			removed = true
			return true
		}
		return false
	})

	if removed {
		t.n--
		if len(t.slots[idx]) == 0 {
			t.occupied.Clear(uint(idx))
		}
		t.filterDirty = true
	}
	return removed
}

func (t *Table) rehash(newSize uint32) {
	newSlots := make([][]byte, newSize)
	newOccupied := bitset.New(uint(newSize))

	moved := 0
	for _, slot := range t.slots {
		scanSlot(slot, func(_ int, k []byte, valOff int) bool {
			h := hash(k)
			idx := uint32(h) & (newSize - 1)
			v := binary.LittleEndian.Uint64(slot[valOff : valOff+valueSize])
			newSlots[idx] = encodeRecord(newSlots[idx], k, v)
			newOccupied.Set(uint(idx))
			moved++
			return false
		})
	}
	errutil.BugOnNotEq(moved, t.n)

	t.slots = newSlots
	t.maxSize = newSize
	t.occupied = newOccupied
	t.filterDirty = true
}

func (t *Table) rebuildFilter() {
	t.filter = bloom.NewWithEstimates(uint(max(t.n, 1)*2+16), 0.01)
	t.eachKey(func(k []byte) {
		t.filter.Add(k)
	})
	t.filterDirty = false
}

// TallyFirstByte counts stored keys by their first byte. Only meaningful
// for a hybrid bucket (Pure == false), whose keys retain that byte; it
// drives the burst split point search in the HAT-trie.
func (t *Table) TallyFirstByte() (counts [256]int) {
	t.eachKey(func(k []byte) {
		if len(k) > 0 {
			counts[k[0]]++
		}
	})
	return counts
}

func (t *Table) eachKey(f func(k []byte)) {
	for _, slot := range t.slots {
		scanSlot(slot, func(_ int, k []byte, _ int) bool {
			f(k)
			return false
		})
	}
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// ByteSize reports the approximate memory footprint of the table's slot
// arenas (excluding the bloom filter / occupancy bitmap bookkeeping).
func (t *Table) ByteSize() int {
	size := 0
	for _, s := range t.slots {
		size += cap(s)
	}
	return size
}

// record is a materialized (key, value) pair used by the iterator.
type record struct {
	key []byte
	val *uint64
}

// records returns every stored record, optionally sorted lexicographically
// by key.
func (t *Table) records(sorted bool) []record {
	recs := make([]record, 0, t.n)
	for i, ok := t.occupied.NextSet(0); ok; i, ok = t.occupied.NextSet(i + 1) {
		slot := t.slots[i]
		scanSlot(slot, func(_ int, k []byte, valOff int) bool {
			recs = append(recs, record{key: k, val: valuePtr(slot, valOff)})
			return false
		})
	}
	if sorted {
		sortRecords(recs)
	}
	return recs
}

// sortRecords orders records lexicographically by key bytes. Short key
// sets are sorted directly; longer ones go through an MSD radix sort over
// the raw bytes (go-radixsort), which is exactly lexicographic byte order
// for this input shape; the sorted strings are then mapped back to their
// records, with no further compare pass.
func sortRecords(recs []record) {
	if len(recs) < 2 {
		return
	}
	if len(recs) < 64 {
		sort.Slice(recs, func(i, j int) bool {
			return CompareBytes(recs[i].key, recs[j].key) < 0
		})
		return
	}

	keys := make([]string, len(recs))
	byKey := make(map[string][]int, len(recs))
	for i, r := range recs {
		s := string(r.key)
		keys[i] = s
		byKey[s] = append(byKey[s], i)
	}
	radixsort.Strings(keys) // sorts keys in place, lexicographic byte order

	ordered := make([]record, 0, len(recs))
	used := make(map[string]int, len(byKey))
	for _, k := range keys {
		pos := used[k]
		idx := byKey[k][pos]
		used[k] = pos + 1
		ordered = append(ordered, recs[idx])
	}
	copy(recs, ordered)
}

// CompareBytes orders two byte strings lexicographically, shorter-is-less
// on equal prefixes. Shared by Table's own sort and by the HAT-trie's
// whole-key iteration order.
func CompareBytes(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return 0
	}
}
