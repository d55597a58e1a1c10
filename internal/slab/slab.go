// Package slab implements a fixed-size-object allocator used by the HAT-trie
// for trie nodes. A slab is a naturally-aligned block of SlabSize bytes;
// because SlabSize is a power of two and slabs are aligned, the owning slab
// of any item handed out by the cache can be recovered by masking the
// item's address: slab = addr &^ (SlabSize-1).
//
// Go has no posix_memalign, so alignment is obtained by over-allocating a
// backing []byte and slicing out an aligned window from it; the slice is
// retained on the slab header so the (non-moving) Go GC never reclaims it
// out from under live items. Recovering the owning slabHeader from a base
// address goes through a side table (Cache.bases), rather than overlaying
// a Go struct directly at a computed address.
package slab

import (
	"fmt"
	"unsafe"

	"github.com/bits-and-blooms/bitset"

	"github.com/vavrusa/hat-trie/errutil"
)

// SlabSize is the size in bytes of one slab. Must be a power of two.
const SlabSize = 65536

// MemColoring toggles cache-coloring: spreading each new slab's usable
// region by a small per-slab offset so that equivalently-indexed items in
// different slabs don't all land on the same cache line set.
var MemColoring = true

const colorStride = 64  // one cache line
const maxColorBytes = 1024

type slabHeader struct {
	mem   []byte // backing allocation, S-aligned window of length SlabSize
	base  uintptr
	color uintptr

	bufSize   uintptr
	bufsCount int
	bufsFree  int

	head       int64 // index of first free buffer, -1 if none
	freeBitmap *bitset.BitSet // bit set <=> buffer at that index is free

	prev, next *slabHeader
}

func (s *slabHeader) bufOffset(i int) uintptr {
	return s.color + uintptr(i)*s.bufSize
}

func (s *slabHeader) itemAt(i int) unsafe.Pointer {
	return unsafe.Pointer(&s.mem[s.bufOffset(i)])
}

// nextFree reads the intrusive free-list link stored in the first 8 bytes
// of a free buffer.
func (s *slabHeader) nextFree(i int) int64 {
	p := (*int64)(s.itemAt(i))
	return *p
}

func (s *slabHeader) setNextFree(i int, next int64) {
	p := (*int64)(s.itemAt(i))
	*p = next
}

// Cache is a fixed-size-object allocator: cache_init records the item size
// and allocates no memory; slabs are created lazily on first Alloc.
type Cache struct {
	bufSize   uintptr
	slabsFree *slabHeader // doubly-linked list head: at least one item free
	slabsFull *slabHeader // doubly-linked list head: no items free
	bases     map[uintptr]*slabHeader
	colorNext uintptr
}

// NewCache records bufSize (rounded up to 8-byte alignment) as the item
// size for this cache. No memory is allocated yet.
func NewCache(bufSize uintptr) *Cache {
	if bufSize < 8 {
		bufSize = 8
	}
	bufSize = (bufSize + 7) &^ 7
	return &Cache{
		bufSize: bufSize,
		bases:   make(map[uintptr]*slabHeader),
	}
}

func alignedWindow(size uintptr) []byte {
	buf := make([]byte, 2*size)
	addr := uintptr(unsafe.Pointer(&buf[0]))
	mask := size - 1
	aligned := (addr + mask) &^ mask
	off := aligned - addr
	return buf[off : off+size]
}

func (c *Cache) newSlab() *slabHeader {
	mem := alignedWindow(SlabSize)
	base := uintptr(unsafe.Pointer(&mem[0]))

	var color uintptr
	if MemColoring {
		color = (c.colorNext * colorStride) % maxColorBytes
		c.colorNext++
	}

	usable := uintptr(SlabSize) - color
	count := int(usable / c.bufSize)
	if count < 1 {
		count = 1
	}

	s := &slabHeader{
		mem:        mem,
		base:       base,
		color:      color,
		bufSize:    c.bufSize,
		bufsCount:  count,
		bufsFree:   count,
		freeBitmap: bitset.New(uint(count)),
	}
	for i := 0; i < count; i++ {
		s.freeBitmap.Set(uint(i))
		if i == count-1 {
			s.setNextFree(i, -1)
		} else {
			s.setNextFree(i, int64(i+1))
		}
	}
	s.head = 0

	c.bases[base] = s
	pushFront(&c.slabsFree, s)
	return s
}

// Alloc returns a pointer to a fresh, zeroed bufSize-byte item. If no slab
// has a free item, a new slab is created first.
func (c *Cache) Alloc() unsafe.Pointer {
	s := c.slabsFree
	if s == nil {
		s = c.newSlab()
	}

	idx := int(s.head)
	item := s.itemAt(idx)
	s.head = s.nextFree(idx)
	s.freeBitmap.Clear(uint(idx))
	s.bufsFree--

	// zero the item before handing it out; the free-list link that lived
	// in its first bytes must not leak into the caller's view of it.
	zero := unsafe.Slice((*byte)(item), int(c.bufSize))
	for i := range zero {
		zero[i] = 0
	}

	if s.bufsFree == 0 {
		unlink(&c.slabsFree, s)
		pushFront(&c.slabsFull, s)
	}
	return item
}

// Free returns ptr (previously obtained from Alloc on this Cache) to its
// owning slab's free list.
func (c *Cache) Free(ptr unsafe.Pointer) {
	addr := uintptr(ptr)
	base := SlabFromAddr(addr)
	s, ok := c.bases[base]
	if !ok {
		errutil.FatalIf(fmt.Errorf("slab: Free called with pointer %#x not owned by this cache", addr))
	}

	idx := int((addr - base - s.color) / s.bufSize)
	wasFull := s.bufsFree == 0

	s.setNextFree(idx, s.head)
	s.head = int64(idx)
	s.freeBitmap.Set(uint(idx))
	s.bufsFree++

	if wasFull {
		unlink(&c.slabsFull, s)
		pushFront(&c.slabsFree, s)
	}
}

// Reap frees every fully-empty slab currently on the slabs_free list.
func (c *Cache) Reap() {
	s := c.slabsFree
	for s != nil {
		next := s.next
		if s.bufsFree == s.bufsCount {
			unlink(&c.slabsFree, s)
			delete(c.bases, s.base)
		}
		s = next
	}
}

// Destroy releases every slab owned by this cache.
func (c *Cache) Destroy() {
	c.slabsFree = nil
	c.slabsFull = nil
	c.bases = make(map[uintptr]*slabHeader)
}

// SlabFromAddr recovers the S-aligned base address of the slab owning addr.
func SlabFromAddr(addr uintptr) uintptr {
	return addr &^ uintptr(SlabSize-1)
}

// Stats reports the current slab/buffer occupancy of the cache.
type Stats struct {
	Slabs      int
	BufsTotal  int
	BufsInUse  int
	BytesTotal int
}

func (c *Cache) Stats() Stats {
	var st Stats
	for _, s := range c.bases {
		st.Slabs++
		st.BufsTotal += s.bufsCount
		st.BufsInUse += s.bufsCount - s.bufsFree
		st.BytesTotal += SlabSize
	}
	return st
}

func pushFront(head **slabHeader, s *slabHeader) {
	s.prev = nil
	s.next = *head
	if *head != nil {
		(*head).prev = s
	}
	*head = s
}

func unlink(head **slabHeader, s *slabHeader) {
	if s.prev != nil {
		s.prev.next = s.next
	} else {
		*head = s.next
	}
	if s.next != nil {
		s.next.prev = s.prev
	}
	s.prev, s.next = nil, nil
}
