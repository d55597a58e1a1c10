package hattrie

import (
	"math/rand"
	"testing"
	"time"

	iradix "github.com/hashicorp/go-immutable-radix"
	"github.com/schollz/progressbar/v3"
	"github.com/stretchr/testify/require"
)

const (
	propTestRuns  = 200
	propOpsPerRun = 2000
	propAlphabet  = "abcdefgh"
	propMaxKeyLen = 6
)

func randomKey(r *rand.Rand) []byte {
	n := r.Intn(propMaxKeyLen + 1)
	k := make([]byte, n)
	for i := range k {
		k[i] = propAlphabet[r.Intn(len(propAlphabet))]
	}
	return k
}

// TestAgainstImmutableRadixOracle cross-checks the HAT-trie against
// hashicorp/go-immutable-radix, a well-tested, independently-implemented
// ordered byte-string map: every Get/TryGet/Del/iteration the HAT-trie
// performs must agree with what the radix tree says, covering membership,
// absence, deletion, and both iteration orders without hand-writing a
// second from-scratch oracle.
func TestAgainstImmutableRadixOracle(t *testing.T) {
	bar := progressbar.Default(propTestRuns)
	for run := 0; run < propTestRuns; run++ {
		seed := time.Now().UnixNano() + int64(run)
		r := rand.New(rand.NewSource(seed))

		trie := New(WithBucketSize(64))
		oracle := iradix.New()
		present := make(map[string]uint64)

		for op := 0; op < propOpsPerRun; op++ {
			key := randomKey(r)
			switch r.Intn(3) {
			case 0: // insert/overwrite
				val := uint64(r.Int63())
				*trie.Get(key) = val
				oracle, _, _ = oracle.Insert(key, val)
				present[string(key)] = val
			case 1: // delete
				deleted := trie.Del(key)
				var oracleHad bool
				oracle, _, oracleHad = oracle.Delete(key)
				require.Equal(t, oracleHad, deleted, "seed %d: Del(%q) disagreement", seed, key)
				delete(present, string(key))
			case 2: // lookup
				got, ok := trie.TryGet(key)
				wantVal, wantOK := oracle.Get(key)
				require.Equal(t, wantOK, ok, "seed %d: TryGet(%q) presence disagreement", seed, key)
				if ok {
					require.Equal(t, wantVal.(uint64), *got, "seed %d: TryGet(%q) value disagreement", seed, key)
				}
			}
		}

		require.Equal(t, len(present), trie.Len(), "seed %d: Len() disagreement", seed)
		require.Equal(t, oracle.Len(), trie.Len(), "seed %d: Len() vs oracle.Len() disagreement", seed)

		it := trie.Iterator(false)
		gotAll := make(map[string]uint64, trie.Len())
		for it.Next() {
			gotAll[string(it.Key())] = *it.Val()
		}
		it.Close()
		require.Equal(t, len(present), len(gotAll), "seed %d: unsorted iteration count disagreement", seed)
		for k, v := range present {
			require.Equal(t, v, gotAll[k], "seed %d: unsorted iteration value disagreement for %q", seed, k)
		}

		sortedIt := trie.Iterator(true)
		var prev []byte
		first := true
		count := 0
		for sortedIt.Next() {
			k := sortedIt.Key()
			if !first {
				require.Less(t, string(prev), string(k), "seed %d: sorted iteration out of order", seed)
			}
			prev = append([]byte(nil), k...)
			first = false
			count++
		}
		sortedIt.Close()
		require.Equal(t, len(present), count, "seed %d: sorted iteration count disagreement", seed)

		trie.Close()
		_ = bar.Add(1)
	}
}
