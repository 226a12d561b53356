// pipe.go - aggregation Pipe, adapted from the teacher's
// modern_aggregation.go: same builder-then-Iter/All/One surface, restricted
// per SPEC_FULL.md §4 to the single stage this engine actually evaluates,
// {$match: <filter>}. Any other stage is a validation error, not a
// silently ignored no-op - see Collection.Aggregate.

package filedb

import "context"

// Pipe is a builder over a Collection's Aggregate, mirroring the
// teacher's ModernPipe. AllowDiskUse/Batch are accepted for API
// compatibility but have no effect against the embedded
// engine, which never spills to disk or talks to a live server.
type Pipe struct {
	collection *Collection
	pipeline   []Document
}

// NewPipe constructs a Pipe over collection for the given pipeline.
func NewPipe(collection *Collection, pipeline []Document) *Pipe {
	return &Pipe{collection: collection, pipeline: pipeline}
}

// Iter executes the pipeline and returns an Iterator over the results.
func (p *Pipe) Iter(ctx context.Context) (*Iterator, error) {
	docs, err := p.collection.Aggregate(ctx, p.pipeline)
	if err != nil {
		return nil, err
	}
	return NewIterator(docs), nil
}

// All executes the pipeline and returns every result.
func (p *Pipe) All(ctx context.Context) ([]Document, error) {
	return p.collection.Aggregate(ctx, p.pipeline)
}

// One executes the pipeline and returns the first result, or
// ErrDocumentNotFound if it produced none.
func (p *Pipe) One(ctx context.Context) (Document, error) {
	docs, err := p.collection.Aggregate(ctx, p.pipeline)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, ErrDocumentNotFound.New("aggregation produced no results")
	}
	return docs[0], nil
}

// AllowDiskUse is a no-op kept for API compatibility with the teacher's
// ModernPipe.
func (p *Pipe) AllowDiskUse() *Pipe { return p }

// Batch is a no-op kept for API compatibility with the teacher's
// ModernPipe.
func (p *Pipe) Batch(n int) *Pipe { return p }
