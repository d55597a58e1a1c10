package hattrie

import (
	"fmt"
	"testing"
)

func collect(t *testing.T, trie *HatTrie, sorted bool) map[string]uint64 {
	t.Helper()
	out := make(map[string]uint64)
	it := trie.Iterator(sorted)
	for it.Next() {
		out[string(it.Key())] = *it.Val()
	}
	it.Close()
	return out
}

func TestGetOrCreateAndLen(t *testing.T) {
	trie := New()
	defer trie.Close()

	keys := []string{"", "a", "ab", "abc", "b", "banana", "band", "can"}
	for i, k := range keys {
		*trie.Get([]byte(k)) = uint64(i + 1)
	}
	if trie.Len() != len(keys) {
		t.Fatalf("Len() = %d, want %d", trie.Len(), len(keys))
	}
	for i, k := range keys {
		val, ok := trie.TryGet([]byte(k))
		if !ok {
			t.Fatalf("TryGet(%q) missing", k)
		}
		if *val != uint64(i+1) {
			t.Fatalf("TryGet(%q) = %d, want %d", k, *val, i+1)
		}
	}

	// Re-inserting an existing key must not grow Len.
	*trie.Get([]byte("ab")) = 99
	if trie.Len() != len(keys) {
		t.Fatalf("Len() grew on overwrite: %d", trie.Len())
	}
	if v, _ := trie.TryGet([]byte("ab")); *v != 99 {
		t.Fatalf("overwrite did not take effect, got %d", *v)
	}
}

func TestTryGetAbsent(t *testing.T) {
	trie := New()
	defer trie.Close()

	*trie.Get([]byte("present")) = 1
	cases := []string{"", "p", "pres", "presents", "absent", "zzz"}
	for _, k := range cases {
		if _, ok := trie.TryGet([]byte(k)); ok {
			t.Fatalf("TryGet(%q) unexpectedly found", k)
		}
	}
}

func TestDel(t *testing.T) {
	trie := New()
	defer trie.Close()

	keys := []string{"", "x", "xy", "xyz", "y"}
	for i, k := range keys {
		*trie.Get([]byte(k)) = uint64(i + 1)
	}

	if !trie.Del([]byte("xy")) {
		t.Fatalf("Del(xy) reported absent")
	}
	if trie.Del([]byte("xy")) {
		t.Fatalf("Del(xy) twice reported present")
	}
	if _, ok := trie.TryGet([]byte("xy")); ok {
		t.Fatalf("xy still present after Del")
	}
	if trie.Len() != len(keys)-1 {
		t.Fatalf("Len() = %d, want %d", trie.Len(), len(keys)-1)
	}

	// The rest must survive the deletion untouched.
	for _, k := range []string{"", "x", "xyz", "y"} {
		if _, ok := trie.TryGet([]byte(k)); !ok {
			t.Fatalf("%q missing after unrelated Del", k)
		}
	}

	if !trie.Del(nil) {
		t.Fatalf("Del(\"\") reported absent")
	}
	if trie.Del(nil) {
		t.Fatalf("Del(\"\") twice reported present")
	}
}

func TestEmptyKey(t *testing.T) {
	trie := New()
	defer trie.Close()

	if _, ok := trie.TryGet(nil); ok {
		t.Fatalf("empty key present before insert")
	}
	*trie.Get(nil) = 42
	if trie.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", trie.Len())
	}
	v, ok := trie.TryGet([]byte{})
	if !ok || *v != 42 {
		t.Fatalf("TryGet(\"\") = %v, %v", v, ok)
	}
}

// TestBurstStress forces many bursts (pure and hybrid) by inserting far
// more keys than its burst threshold of 32 under a single shared prefix
// space, then checks every key is still retrievable and iteration yields
// exactly the inserted set exactly once.
func TestBurstStress(t *testing.T) {
	trie := New(WithBucketSize(32))
	defer trie.Close()

	const n = 20000
	want := make(map[string]uint64, n)
	for i := 0; i < n; i++ {
		k := fmt.Sprintf("key-%05d", i)
		want[k] = uint64(i)
		*trie.Get([]byte(k)) = uint64(i)
	}

	if trie.Len() != n {
		t.Fatalf("Len() = %d, want %d", trie.Len(), n)
	}
	for k, v := range want {
		got, ok := trie.TryGet([]byte(k))
		if !ok || *got != v {
			t.Fatalf("TryGet(%q) = %v, %v, want %d", k, got, ok, v)
		}
	}

	got := collect(t, trie, false)
	if len(got) != len(want) {
		t.Fatalf("iteration returned %d keys, want %d", len(got), len(want))
	}
	for k, v := range want {
		if got[k] != v {
			t.Fatalf("iteration value for %q = %d, want %d", k, got[k], v)
		}
	}
}

// TestSingleByteAlphabet inserts one key per possible byte value with a
// burst threshold of 8, so the root's initial all-range hybrid bucket
// cannot hold them all and is split repeatedly into narrower buckets
// spread across the root's child slots.
func TestSingleByteAlphabet(t *testing.T) {
	trie := New(WithBucketSize(8))
	defer trie.Close()

	for i := 0; i < 256; i++ {
		*trie.Get([]byte{byte(i)}) = uint64(i)
	}
	if trie.Len() != 256 {
		t.Fatalf("Len() = %d, want 256", trie.Len())
	}
	for i := 0; i < 256; i++ {
		v, ok := trie.TryGet([]byte{byte(i)})
		if !ok || *v != uint64(i) {
			t.Fatalf("TryGet(%d) = %v, %v", i, v, ok)
		}
	}
}

// TestSharedPrefixAndEmptySuffix covers a common prefix deep enough to
// burst its own path into trie nodes, plus a key that is exactly that
// prefix, inserted after the bursts, so its value is stored on the trie
// node reached by consuming the whole key.
func TestSharedPrefixAndEmptySuffix(t *testing.T) {
	trie := New(WithBucketSize(4))
	defer trie.Close()

	want := make(map[string]uint64)
	for c := byte('A'); c <= 'Z'; c++ {
		k := "prefix_" + string(c)
		want[k] = uint64(c)
		*trie.Get([]byte(k)) = uint64(c)
	}
	want["prefix_"] = 1000
	*trie.Get([]byte("prefix_")) = 1000

	if trie.Len() != len(want) {
		t.Fatalf("Len() = %d, want %d", trie.Len(), len(want))
	}
	for k, v := range want {
		got, ok := trie.TryGet([]byte(k))
		if !ok || *got != v {
			t.Fatalf("TryGet(%q) = %v, %v, want %d", k, got, ok, v)
		}
	}

	got := collect(t, trie, true)
	if len(got) != len(want) {
		t.Fatalf("iteration returned %d keys, want %d", len(got), len(want))
	}
	var prev string
	first := true
	it := trie.Iterator(true)
	for it.Next() {
		k := string(it.Key())
		if !first && k < prev {
			t.Fatalf("sorted iteration out of order: %q after %q", k, prev)
		}
		prev, first = k, false
	}
	it.Close()
}

func TestSortedIterationOrder(t *testing.T) {
	trie := New(WithBucketSize(4))
	defer trie.Close()

	keys := []string{"banana", "apple", "cherry", "band", "ab", "a", "", "zzzz"}
	for i, k := range keys {
		*trie.Get([]byte(k)) = uint64(i)
	}

	it := trie.Iterator(true)
	var got []string
	for it.Next() {
		got = append(got, string(it.Key()))
	}
	it.Close()

	for i := 1; i < len(got); i++ {
		if got[i-1] >= got[i] {
			t.Fatalf("sorted iteration not strictly increasing at %d: %q >= %q", i, got[i-1], got[i])
		}
	}
	if len(got) != len(keys) {
		t.Fatalf("got %d keys, want %d", len(got), len(keys))
	}
}
