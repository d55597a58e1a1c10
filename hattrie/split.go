package hattrie

import "github.com/vavrusa/hat-trie/ahtable"

// burst splits an over-full bucket, picking the pure or hybrid case
// depending on how many first bytes the bucket currently covers. c is the
// byte of the child slot in parent that bucket currently hangs off (for
// the pure case, c0==c1==c).
func (t *HatTrie) burst(parent *trieNode, c byte, bucket *ahtable.Table) {
	if bucket.C0 == bucket.C1 {
		t.burstPure(parent, c, bucket)
	} else {
		t.burstHybrid(parent, bucket)
	}
}

// burstPure converts a pure bucket into a fresh trie node: the bucket's
// empty-suffix key, if any, is promoted to the new node's own value, and
// the bucket, retagged hybrid over the full byte range, is linked as
// every one of the new node's 256 children. This adds exactly one trie
// level; it's the degenerate case of a split where every key in a bucket
// shares the same first byte, so there's nothing left to partition on.
func (t *HatTrie) burstPure(parent *trieNode, c byte, bucket *ahtable.Table) {
	newNode := t.newTrieNode()
	parent.children[c] = child{kind: kindTrie, trie: newNode}

	if val, ok := bucket.TryGet(nil); ok {
		newNode.hasVal = true
		newNode.val = *val
		bucket.Del(nil)
	}

	bucket.C0, bucket.C1, bucket.Pure = 0, 255, false
	for i := range newNode.children {
		newNode.children[i] = child{kind: kindBucket, bucket: bucket}
	}
}

// burstHybrid splits a hybrid bucket in two at a greedily chosen byte
// boundary, rewiring parent's [c0,c1] child slots to point at whichever
// of the two new buckets covers each byte.
func (t *HatTrie) burstHybrid(parent *trieNode, bucket *ahtable.Table) {
	c0, c1 := int(bucket.C0), int(bucket.C1)
	counts := bucket.TallyFirstByte()
	total := bucket.Size()
	j := splitPoint(counts, c0, c1, total)

	leftPure := j == c0
	rightPure := j+1 == c1

	var left, right *ahtable.Table
	if rightPure {
		right = t.newBucket(byte(c1), byte(c1), true)
		if leftPure {
			left = t.newBucket(byte(c0), byte(j), true)
		} else {
			left = bucket
			left.C0, left.C1, left.Pure = byte(c0), byte(j), false
		}
	} else {
		right = bucket
		right.C0, right.C1, right.Pure = byte(j+1), byte(c1), false
		left = t.newBucket(byte(c0), byte(j), leftPure)
	}

	redistribute(bucket, left, right, j)

	for i := c0; i <= j; i++ {
		parent.children[i] = child{kind: kindBucket, bucket: left}
	}
	for i := j + 1; i <= c1; i++ {
		parent.children[i] = child{kind: kindBucket, bucket: right}
	}
}

// redistribute moves every record of the bucket being split into
// whichever of left/right now owns its first byte. Records destined for
// whichever of left/right happens to be the reused original bucket are
// left untouched in place; everything else is copied to its new home and
// removed from the original. Keys and values are snapshotted up front so
// that deleting from the original mid-pass can't disturb a record this
// pass hasn't looked at yet.
func redistribute(original, left, right *ahtable.Table, j int) {
	type kv struct {
		key []byte
		val uint64
	}
	var recs []kv
	it := original.Iterator(false)
	for it.Next() {
		recs = append(recs, kv{key: append([]byte(nil), it.Key()...), val: *it.Val()})
	}
	it.Close()

	for _, r := range recs {
		dest := right
		if int(r.key[0]) <= j {
			dest = left
		}
		if dest == original {
			continue
		}
		key := r.key
		if dest.Pure {
			key = key[1:]
		}
		dest.Insert(key, r.val)
		original.Del(r.key)
	}
}

// splitPoint greedily advances a split boundary j from c0 towards c1-1,
// picking whichever j keeps the two resulting key counts as close to
// balanced as progress allows.
func splitPoint(counts [256]int, c0, c1, total int) int {
	j := c0
	leftM := counts[c0]
	rightM := total - leftM
	for j < c1-1 {
		next := counts[j+1]
		newLeft := leftM + next
		newRight := rightM - next
		if abs(newLeft-newRight) <= abs(leftM-rightM) && newLeft < total {
			j++
			leftM, rightM = newLeft, newRight
		} else {
			break
		}
	}
	return j
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
