// bulk.go - Bulk operation builder, adapted from the teacher's
// modern_bulk.go: same queue-then-Run shape (Insert/Update/UpdateAll/
// Upsert/Remove/RemoveAll followed by a single Run), replayed here against
// a *Collection instead of handed to mongodrv.BulkWrite.

package filedb

import "context"

// BulkResult mirrors the teacher's legacy_types.go BulkResult, the result
// shape Run returns.
type BulkResult struct {
	Matched  int
	Modified int
	Inserted int
	Removed  int
}

type bulkOpKind int

const (
	bulkInsert bulkOpKind = iota
	bulkUpdateOne
	bulkUpdateMany
	bulkUpsert
	bulkRemoveOne
	bulkRemoveMany
)

type bulkOp struct {
	kind     bulkOpKind
	selector Document
	payload  Document
}

// Bulk queues operations for a single batched Run, in the teacher's
// ModernBulk idiom.
type Bulk struct {
	collection *Collection
	ordered    bool
	ops        []bulkOp
}

// NewBulk constructs a Bulk bound to collection. Ordered by default,
// matching the teacher's ModernBulk.
func NewBulk(collection *Collection) *Bulk {
	return &Bulk{collection: collection, ordered: true}
}

// Unordered puts the bulk operation in unordered mode. Since this engine
// always replays operations sequentially, unordered only changes whether a
// failure aborts the remaining queue (ordered) or is skipped over
// (unordered).
func (b *Bulk) Unordered() {
	b.ordered = false
}

// Insert queues documents for insertion.
func (b *Bulk) Insert(docs ...Document) {
	for _, doc := range docs {
		b.ops = append(b.ops, bulkOp{kind: bulkInsert, payload: doc})
	}
}

// Update queues selector/update pairs, each updating at most one document.
func (b *Bulk) Update(selector, update Document) {
	b.ops = append(b.ops, bulkOp{kind: bulkUpdateOne, selector: selector, payload: update})
}

// UpdateAll queues a selector/update pair updating every matching document.
func (b *Bulk) UpdateAll(selector, update Document) {
	b.ops = append(b.ops, bulkOp{kind: bulkUpdateMany, selector: selector, payload: update})
}

// Upsert queues a selector/update pair that inserts the update document
// when no match exists.
func (b *Bulk) Upsert(selector, update Document) {
	b.ops = append(b.ops, bulkOp{kind: bulkUpsert, selector: selector, payload: update})
}

// Remove queues a selector removing a single matching document.
func (b *Bulk) Remove(selector Document) {
	b.ops = append(b.ops, bulkOp{kind: bulkRemoveOne, selector: selector})
}

// RemoveAll queues a selector removing every matching document.
func (b *Bulk) RemoveAll(selector Document) {
	b.ops = append(b.ops, bulkOp{kind: bulkRemoveMany, selector: selector})
}

// Run replays every queued operation against the bound collection in
// order, accumulating a single BulkResult. In ordered mode (the default),
// the first error aborts the remaining queue and is returned alongside
// whatever partial result had accumulated; in unordered mode, a failing
// operation is skipped and replay continues.
func (b *Bulk) Run(ctx context.Context) (*BulkResult, error) {
	result := &BulkResult{}
	for _, op := range b.ops {
		if err := b.runOne(ctx, op, result); err != nil {
			if b.ordered {
				return result, err
			}
			continue
		}
	}
	return result, nil
}

func (b *Bulk) runOne(ctx context.Context, op bulkOp, result *BulkResult) error {
	switch op.kind {
	case bulkInsert:
		if _, err := b.collection.InsertOne(ctx, op.payload); err != nil {
			return err
		}
		result.Inserted++
	case bulkUpdateOne:
		info, err := b.collection.UpdateOne(ctx, op.selector, op.payload)
		if err != nil {
			return err
		}
		result.Matched += info.Matched
		result.Modified += info.Modified
	case bulkUpdateMany:
		info, err := b.collection.UpdateMany(ctx, op.selector, op.payload)
		if err != nil {
			return err
		}
		result.Matched += info.Matched
		result.Modified += info.Modified
	case bulkUpsert:
		existing, err := b.collection.FindOne(ctx, op.selector)
		if err != nil {
			return err
		}
		if existing == nil {
			doc := cloneDocument(op.payload)
			for k, v := range op.selector {
				if _, ok := doc[k]; !ok {
					doc[k] = v
				}
			}
			if _, err := b.collection.InsertOne(ctx, doc); err != nil {
				return err
			}
			result.Inserted++
			return nil
		}
		info, err := b.collection.UpdateOne(ctx, op.selector, op.payload)
		if err != nil {
			return err
		}
		result.Matched += info.Matched
		result.Modified += info.Modified
	case bulkRemoveOne:
		info, err := b.collection.DeleteOne(ctx, op.selector)
		if err != nil {
			return err
		}
		result.Removed += info.Removed
	case bulkRemoveMany:
		info, err := b.collection.DeleteMany(ctx, op.selector)
		if err != nil {
			return err
		}
		result.Removed += info.Removed
	}
	return nil
}
