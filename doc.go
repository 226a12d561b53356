// Package filedb is an embeddable, MongoDB-compatible document database.
//
// Collections of JSON-like documents are stored in files on an external
// object store (any blob store with per-file read/write, see BlobService)
// coordinated across processes through a small property store (see
// PropertyStore). The public surface keeps the shape of the classic mgo
// driver - Database, Collection, Iterator, Bulk, Pipe, ChangeInfo - while the implementation underneath is the embedded engine described by
// the package's design notes rather than a wire protocol to a live mongod.
package filedb

import "go.mongodb.org/mongo-driver/bson"

// Document is a single stored record: a mapping from string keys to values
// where a value is one of null, bool, float64/int, string, time.Time,
// []interface{} or another Document. Every stored document carries a
// string-valued "_id" key unique within its collection.
//
// bson.M is reused rather than a hand-rolled map type: its underlying type
// is map[string]interface{} (it is still a distinct named type, so type
// switches list both), with the same document-literal convention
// (bson.M{...}) the teacher uses throughout modern_utils.go. The wire
// format on disk is JSON (see jsonformat.go), not bson encoding - this
// repo has one document representation, not bson.Marshal plus a second
// dialect to bridge from the way the teacher's compatibility.go does.
type Document = bson.M

// M is a short alias matching the teacher's own convention of spelling
// document literals as bson.M{...}.
type M = bson.M

// cloneValue produces a deep, independent copy of an arbitrary document
// value tree. Update operators (C4) and CollectionMetadata.Clone (C5) both
// need this so that mutation of a returned value never reaches back into
// stored state.
func cloneValue(v interface{}) interface{} {
	switch t := v.(type) {
	case Document:
		out := make(Document, len(t))
		for k, val := range t {
			out[k] = cloneValue(val)
		}
		return out
	case map[string]interface{}:
		out := make(Document, len(t))
		for k, val := range t {
			out[k] = cloneValue(val)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, val := range t {
			out[i] = cloneValue(val)
		}
		return out
	default:
		return v
	}
}

// cloneDocument deep-copies a whole document.
func cloneDocument(d Document) Document {
	if d == nil {
		return nil
	}
	out := cloneValue(d).(Document)
	return out
}
