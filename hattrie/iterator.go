package hattrie

import (
	"sort"

	"github.com/vavrusa/hat-trie/ahtable"
)

// Iterator walks every (key, value) pair of a HatTrie, either in
// unspecified arena order (sorted == false, but still exactly the stored
// set of keys) or in strict lexicographic byte order (sorted == true).
// The walk uses an explicit stack rather than recursion, and visits each
// hybrid bucket once no matter how many contiguous child slots alias it.
type Iterator struct {
	keys [][]byte
	vals []*uint64
	pos  int
}

// frame is one pending node to visit in the depth-first walk.
type frame struct {
	node   *trieNode
	prefix []byte
}

// Iterator begins a new traversal over t. The walk is materialized
// up front (mirroring ahtable.Iterator's own snapshot-at-creation
// design), so the set of keys an iterator yields is fixed at creation and
// later mutation of the trie does not change it. Val pointers still alias
// the trie's live node and bucket memory and follow the same
// pointer-stability rule as Get's.
func (t *HatTrie) Iterator(sorted bool) *Iterator {
	keys, vals := t.walk()
	if sorted {
		sortPairs(keys, vals)
	}
	return &Iterator{keys: keys, vals: vals, pos: -1}
}

func (t *HatTrie) walk() ([][]byte, []*uint64) {
	var keys [][]byte
	var vals []*uint64

	stack := []frame{{node: t.root}}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if top.node.hasVal {
			keys = append(keys, top.prefix)
			vals = append(vals, &top.node.val)
		}

		for i := 0; i < 256; {
			c := top.node.children[i]
			if c.kind == kindTrie {
				prefix := append(append([]byte(nil), top.prefix...), byte(i))
				stack = append(stack, frame{node: c.trie, prefix: prefix})
				i++
				continue
			}

			// A bucket may be aliased across a contiguous run of slots
			// (a hybrid bucket's whole [c0,c1] range); visit it once.
			j := i
			for j < 256 && top.node.children[j].kind == kindBucket && top.node.children[j].bucket == c.bucket {
				j++
			}

			bit := c.bucket.Iterator(false)
			for bit.Next() {
				var key []byte
				if c.bucket.Pure {
					key = append(append([]byte(nil), top.prefix...), byte(i))
					key = append(key, bit.Key()...)
				} else {
					key = append(append([]byte(nil), top.prefix...), bit.Key()...)
				}
				keys = append(keys, key)
				vals = append(vals, bit.Val())
			}
			bit.Close()
			i = j
		}
	}
	return keys, vals
}

func sortPairs(keys [][]byte, vals []*uint64) {
	idx := make([]int, len(keys))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool {
		return ahtable.CompareBytes(keys[idx[a]], keys[idx[b]]) < 0
	})

	sortedKeys := make([][]byte, len(keys))
	sortedVals := make([]*uint64, len(vals))
	for i, j := range idx {
		sortedKeys[i] = keys[j]
		sortedVals[i] = vals[j]
	}
	copy(keys, sortedKeys)
	copy(vals, sortedVals)
}

// Next advances to the next pair, returning false once exhausted.
func (it *Iterator) Next() bool {
	it.pos++
	return it.pos < len(it.keys)
}

// Finished reports whether the iterator has no more pairs.
func (it *Iterator) Finished() bool {
	return it.pos >= len(it.keys)
}

// Key returns the current pair's key.
func (it *Iterator) Key() []byte {
	return it.keys[it.pos]
}

// Val returns a pointer to the current pair's value.
func (it *Iterator) Val() *uint64 {
	return it.vals[it.pos]
}

// Close releases the iterator's snapshot.
func (it *Iterator) Close() {
	it.keys = nil
	it.vals = nil
}
