package ahtable

import "github.com/zeebo/xxh3"

// hash is the AH-table's sole string-hashing primitive. xxh3 is a fast,
// high-quality non-cryptographic hash well suited to hashing short,
// arbitrary byte strings for slot placement.
func hash(key []byte) uint64 {
	return xxh3.Hash(key)
}
