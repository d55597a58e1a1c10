// Command hattrieload loads a word list (or synthetic random keys) into a
// HAT-trie and reports timing and memory footprint. It doubles as a
// stress harness for shaking out burst/split bugs under large key
// counts, driven from the command line instead of `go test`.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/schollz/progressbar/v3"

	"github.com/vavrusa/hat-trie/hattrie"
)

func main() {
	wordlist := flag.String("file", "", "newline-delimited key file; if empty, synthetic random keys are generated")
	count := flag.Int("n", 1_000_000, "number of synthetic keys to generate when -file is empty")
	bucketSize := flag.Int("bucket-size", hattrie.TrieBucketSize, "burst threshold")
	keyLen := flag.Int("key-len", 16, "length of synthetic keys")
	seed := flag.Int64("seed", time.Now().UnixNano(), "synthetic key RNG seed")
	flag.Parse()

	keys := loadKeys(*wordlist, *count, *keyLen, *seed)

	trie := hattrie.New(hattrie.WithBucketSize(*bucketSize))
	defer trie.Close()

	bar := progressbar.Default(int64(len(keys)))
	start := time.Now()
	for i, k := range keys {
		*trie.Get(k) = uint64(i)
		_ = bar.Add(1)
	}
	elapsed := time.Since(start)

	fmt.Printf("inserted %s keys in %s (%s/key)\n",
		humanize.Comma(int64(len(keys))), elapsed, elapsed/time.Duration(max(len(keys), 1)))
	fmt.Printf("trie.Len() = %s\n", humanize.Comma(int64(trie.Len())))
	fmt.Println(trie.Report().String())

	verifyStart := time.Now()
	missing := 0
	for _, k := range keys {
		if _, ok := trie.TryGet(k); !ok {
			missing++
		}
	}
	fmt.Printf("verified %s keys in %s (%d missing)\n",
		humanize.Comma(int64(len(keys))), time.Since(verifyStart), missing)
}

func loadKeys(path string, n, keyLen int, seed int64) [][]byte {
	if path == "" {
		return syntheticKeys(n, keyLen, seed)
	}

	f, err := os.Open(path)
	if err != nil {
		log.Fatalf("hattrieload: %v", err)
	}
	defer f.Close()

	var keys [][]byte
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		keys = append(keys, append([]byte(nil), line...))
	}
	if err := scanner.Err(); err != nil {
		log.Fatalf("hattrieload: reading %s: %v", path, err)
	}
	return keys
}

const alphabet = "abcdefghijklmnopqrstuvwxyz"

func syntheticKeys(n, keyLen int, seed int64) [][]byte {
	r := rand.New(rand.NewSource(seed))
	keys := make([][]byte, n)
	for i := range keys {
		k := make([]byte, keyLen)
		for j := range k {
			k[j] = alphabet[r.Intn(len(alphabet))]
		}
		keys[i] = k
	}
	return keys
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
