package hattrie

import "github.com/vavrusa/hat-trie/ahtable"

// childKind tags which of a trie node's two kinds of outgoing edge a
// child slot currently holds: another trie node, or an ahtable.Table
// bucket. The pure-vs-hybrid distinction for a bucket edge lives on the
// referenced ahtable.Table itself (Table.Pure), so only two kinds are
// needed here.
type childKind uint8

const (
	kindBucket childKind = iota
	kindTrie
)

// child is one of a trieNode's 256 outgoing edges.
type child struct {
	kind   childKind
	trie   *trieNode
	bucket *ahtable.Table
}

// trieNode is an interior node of the HAT-trie: 256 children, one per
// possible next byte, plus an optional value for the key that is exactly
// the path consumed down to this node.
//
// trieNodes are allocated out of a slab (internal/slab) for locality.
// Slab memory is a plain []byte as far as the garbage collector is
// concerned, so the pointers living in a trieNode's children are
// invisible to it; HatTrie keeps every trieNode and ahtable.Table it ever
// creates reachable through its own liveNodes/liveBuckets slices so the
// GC never reclaims one out from under a pointer embedded in slab
// memory.
type trieNode struct {
	hasVal bool
	val    uint64

	children [256]child
}
