package ahtable

// Iterator walks every (key, value) record of a Table, either in arena
// order (sorted == false) or in strict lexicographic byte order
// (sorted == true). Records are materialized at creation time: key bytes
// are copied out so that Del mid-iteration cannot corrupt a key an
// earlier record still references, but value pointers keep aliasing the
// live arena and so are subject to the usual pointer-stability caveat:
// calling Del invalidates the value pointer of any other record that
// shared its slot's arena.
type Iterator struct {
	t    *Table
	recs []record
	pos  int
}

// Iterator begins a new traversal over t.
func (t *Table) Iterator(sorted bool) *Iterator {
	recs := t.records(sorted)
	for i := range recs {
		recs[i].key = append([]byte(nil), recs[i].key...)
	}
	return &Iterator{t: t, recs: recs, pos: -1}
}

// Next advances to the next record, returning false once exhausted.
func (it *Iterator) Next() bool {
	it.pos++
	return it.pos < len(it.recs)
}

// Finished reports whether the iterator has no more records.
func (it *Iterator) Finished() bool {
	return it.pos >= len(it.recs)
}

// Key returns the current record's key.
func (it *Iterator) Key() []byte {
	return it.recs[it.pos].key
}

// Val returns a pointer to the current record's value.
func (it *Iterator) Val() *uint64 {
	return it.recs[it.pos].val
}

// Del removes the current record from the underlying table.
func (it *Iterator) Del() bool {
	return it.t.Del(it.recs[it.pos].key)
}

// Close releases the iterator's snapshot.
func (it *Iterator) Close() {
	it.recs = nil
}
