// Package hattrie implements a HAT-trie: a burst trie whose leaves are
// array-hash-table buckets (package ahtable), giving a cache-friendly
// byte-string-to-integer map without the node-per-character blowup of a
// plain trie.
package hattrie

import (
	"unsafe"

	"github.com/vavrusa/hat-trie/ahtable"
	"github.com/vavrusa/hat-trie/errutil"
	"github.com/vavrusa/hat-trie/internal/slab"
	"github.com/vavrusa/hat-trie/report"
)

// HatTrie maps byte strings to uint64 values. The zero value is not
// usable; construct one with New. A HatTrie is not safe for concurrent
// use; callers wanting concurrency must serialize access themselves.
type HatTrie struct {
	root *trieNode
	m    int

	slab       *slab.Cache
	bucketSize int
	maxChar    byte

	// liveNodes/liveBuckets keep every trieNode and ahtable.Table this
	// trie has ever allocated reachable from normal, GC-scanned memory;
	// see the comment on trieNode.
	liveNodes   []*trieNode
	liveBuckets []*ahtable.Table
}

// Option configures a HatTrie at construction time.
type Option func(*HatTrie)

// WithBucketSize overrides TrieBucketSize, the burst threshold.
func WithBucketSize(n int) Option {
	return func(t *HatTrie) { t.bucketSize = n }
}

// WithMaxChar overrides TrieMaxChar, the input-validation alphabet bound.
func WithMaxChar(c byte) Option {
	return func(t *HatTrie) { t.maxChar = c }
}

// New creates an empty HAT-trie. The root is always a trie node, and it
// starts out attached to a single all-range hybrid bucket shared across
// all 256 of its children.
func New(opts ...Option) *HatTrie {
	t := &HatTrie{
		bucketSize: TrieBucketSize,
		maxChar:    TrieMaxChar,
	}
	var dummy trieNode
	t.slab = slab.NewCache(unsafe.Sizeof(dummy))
	for _, o := range opts {
		o(t)
	}

	t.root = t.newTrieNode()
	initial := t.newBucket(0, 255, false)
	for i := range t.root.children {
		t.root.children[i] = child{kind: kindBucket, bucket: initial}
	}
	return t
}

func (t *HatTrie) newTrieNode() *trieNode {
	n := (*trieNode)(t.slab.Alloc())
	t.liveNodes = append(t.liveNodes, n)
	return n
}

func (t *HatTrie) newBucket(c0, c1 byte, pure bool) *ahtable.Table {
	b := ahtable.New(c0, c1, pure)
	t.liveBuckets = append(t.liveBuckets, b)
	return b
}

// Len returns m, the number of keys currently stored.
func (t *HatTrie) Len() int { return t.m }

// Close releases every resource the trie holds. The HatTrie must not be
// used afterwards.
func (t *HatTrie) Close() {
	t.liveNodes = nil
	t.liveBuckets = nil
	t.slab.Destroy()
	t.root = nil
	t.m = 0
}

func (t *HatTrie) checkKey(key []byte) {
	for _, b := range key {
		errutil.BugOn(b > t.maxChar, "hattrie: key byte %d exceeds max char %d", b, t.maxChar)
	}
}

// consume descends from root through trie-node children only, stopping
// once the remaining key length is <= brk or the next child is not a
// trie node. It returns the deepest trie node reached and how many bytes
// of key were consumed to get there; key[pos], if pos < len(key), names
// the child that would be visited next.
func consume(root *trieNode, key []byte, brk int) (parent *trieNode, pos int) {
	parent = root
	for len(key)-pos > brk {
		c := key[pos]
		ref := &parent.children[c]
		if ref.kind != kindTrie {
			break
		}
		parent = ref.trie
		pos++
	}
	return parent, pos
}

// useVal marks n as holding a value if it wasn't already, bumping m, and
// returns its value pointer.
func (t *HatTrie) useVal(n *trieNode) *uint64 {
	if !n.hasVal {
		n.hasVal = true
		t.m++
	}
	return &n.val
}

// Get returns a pointer to key's value, inserting a fresh zero-valued
// entry if key is absent. The pointer is valid only until the next
// mutating call on the trie.
func (t *HatTrie) Get(key []byte) *uint64 {
	t.checkKey(key)
	if len(key) == 0 {
		return t.useVal(t.root)
	}

restart:
	parent, pos := consume(t.root, key, 0)
	if pos == len(key) {
		// Consumed entirely by trie descents, so the trie node reached
		// here owns the value directly. A hybrid bucket can't appear in
		// this branch: reaching one always means consume stopped one
		// byte early (see the brk==1 find used by TryGet/Del), never
		// exactly at len(key).
		return t.useVal(parent)
	}

	c := key[pos]
	ref := &parent.children[c]
	errutil.BugOn(ref.kind == kindTrie, "hattrie: consume stopped at a trie child")
	bucket := ref.bucket

	if bucket.Size() >= t.bucketSize {
		t.burst(parent, c, bucket)
		goto restart
	}

	suffix := key[pos:]
	if bucket.Pure {
		suffix = suffix[1:]
	}
	before := bucket.Size()
	ptr := bucket.Get(suffix)
	if bucket.Size() > before {
		t.m++
	}
	return ptr
}

// find descends with brk=1, the lookup used by TryGet and Del: it always
// stops at least one byte short of the key's end, so the caller can tell
// a pure bucket (which doesn't store key[pos], the byte that selected it)
// from a hybrid one
// (which does) by checking Table.Pure itself.
func find(root *trieNode, key []byte) (parent *trieNode, pos int) {
	return consume(root, key, 1)
}

// TryGet looks up key without inserting.
func (t *HatTrie) TryGet(key []byte) (*uint64, bool) {
	t.checkKey(key)
	if len(key) == 0 {
		if t.root.hasVal {
			return &t.root.val, true
		}
		return nil, false
	}

	parent, pos := find(t.root, key)
	c := key[pos]
	ref := &parent.children[c]

	if ref.kind == kindTrie {
		// find only stops at a trie child when exactly one byte of key
		// remains (c), and that byte led straight to another trie node:
		// the key is exactly the path to ref.trie.
		if ref.trie.hasVal {
			return &ref.trie.val, true
		}
		return nil, false
	}

	bucket := ref.bucket
	suffix := key[pos:]
	if bucket.Pure {
		suffix = suffix[1:]
	}
	return bucket.TryGet(suffix)
}

// Del removes key, reporting whether it was present.
func (t *HatTrie) Del(key []byte) bool {
	t.checkKey(key)
	if len(key) == 0 {
		if t.root.hasVal {
			t.root.hasVal = false
			t.root.val = 0
			t.m--
			return true
		}
		return false
	}

	parent, pos := find(t.root, key)
	c := key[pos]
	ref := &parent.children[c]

	if ref.kind == kindTrie {
		n := ref.trie
		if n.hasVal {
			n.hasVal = false
			n.val = 0
			t.m--
			return true
		}
		return false
	}

	bucket := ref.bucket
	suffix := key[pos:]
	if bucket.Pure {
		suffix = suffix[1:]
	}
	if bucket.Del(suffix) {
		t.m--
		return true
	}
	return false
}

// Report describes the trie's memory footprint: slab occupancy plus the
// combined size of every AH-table bucket's slot arenas.
func (t *HatTrie) Report() report.Report {
	stats := t.slab.Stats()
	bucketBytes := 0
	for _, b := range t.liveBuckets {
		bucketBytes += b.ByteSize()
	}
	return report.Report{
		Name: "hattrie",
		Children: []report.Report{
			{Name: "trie nodes (slab)", Bytes: stats.BytesTotal, Count: stats.BufsInUse},
			{Name: "ah-table buckets", Bytes: bucketBytes, Count: len(t.liveBuckets)},
		},
	}
}
