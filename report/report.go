// Package report provides a small hierarchical byte-size/occupancy report,
// used by HatTrie.Report to describe the footprint of the slab allocator
// and the AH-table buckets, for debugging and for the cmd/hattrieload
// benchmark harness.
package report

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
)

// Report is one node of a tree describing where bytes are going.
type Report struct {
	Name     string
	Bytes    int
	Count    int // number of items this node accounts for (slabs, buckets, ...)
	Children []Report
}

// String renders the tree, humanizing byte counts (e.g. "64 kB").
func (r Report) String() string {
	var sb strings.Builder
	r.write(&sb, 0)
	return sb.String()
}

func (r Report) write(sb *strings.Builder, indent int) {
	prefix := strings.Repeat("  ", indent)
	if r.Count > 0 {
		fmt.Fprintf(sb, "%s- %s: %s (%d)\n", prefix, r.Name, humanize.Bytes(uint64(r.Bytes)), r.Count)
	} else {
		fmt.Fprintf(sb, "%s- %s: %s\n", prefix, r.Name, humanize.Bytes(uint64(r.Bytes)))
	}
	for _, c := range r.Children {
		c.write(sb, indent+1)
	}
}

// Total sums Bytes over the node and all descendants.
func (r Report) Total() int {
	total := r.Bytes
	for _, c := range r.Children {
		total += c.Total()
	}
	return total
}
