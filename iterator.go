// iterator.go - Iterator, adapted from the teacher's modern_iterator.go:
// same Next/Close/All surface, here walking an already-materialised
// []Document instead of a mongodrv.Cursor.

package filedb

// Iterator walks a fixed, already-materialised result set.
type Iterator struct {
	docs []Document
	pos  int
	err  error
}

// NewIterator wraps docs for sequential consumption.
func NewIterator(docs []Document) *Iterator {
	return &Iterator{docs: docs}
}

// Next copies the next document into result and advances. Returns false
// at end of iteration or on error; callers should check Close afterwards
// to distinguish the two.
func (it *Iterator) Next(result *Document) bool {
	if it.err != nil {
		return false
	}
	if it.pos >= len(it.docs) {
		return false
	}
	*result = cloneDocument(it.docs[it.pos])
	it.pos++
	return true
}

// Close returns any error accumulated during iteration. It holds no
// resources, so there is nothing else to release.
func (it *Iterator) Close() error {
	return it.err
}

// All drains every remaining document into a single slice.
func (it *Iterator) All() ([]Document, error) {
	if it.err != nil {
		return nil, it.err
	}
	out := make([]Document, 0, len(it.docs)-it.pos)
	var doc Document
	for it.Next(&doc) {
		out = append(out, doc)
		doc = nil
	}
	return out, it.err
}
