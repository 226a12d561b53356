package filedb

import (
	"context"
	"testing"
)

func TestAggregateMatchStage(t *testing.T) {
	ctx := context.Background()
	db := newTestDatabase(t, NewMemoryBlobStore(), NewMemoryPropertyStore())
	_ = db.CreateDatabase(ctx)
	c, err := db.CreateCollection(ctx, "events")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := c.InsertOne(ctx, Document{"_id": "1", "kind": "click"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := c.InsertOne(ctx, Document{"_id": "2", "kind": "view"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	pipe := NewPipe(c, []Document{{"$match": Document{"kind": "click"}}})
	results, err := pipe.All(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 1 || results[0]["_id"] != "1" {
		t.Fatalf("expected exactly the click event, got %v", results)
	}

	one, err := pipe.One(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if one["_id"] != "1" {
		t.Fatalf("expected One to return the click event, got %v", one)
	}

	iter, err := pipe.Iter(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var doc Document
	if !iter.Next(&doc) {
		t.Fatalf("expected iterator to yield a result")
	}
	if iter.Next(&doc) {
		t.Fatalf("expected iterator to yield exactly one result")
	}
}

func TestAggregateEmptyPipelineMatchesAll(t *testing.T) {
	ctx := context.Background()
	db := newTestDatabase(t, NewMemoryBlobStore(), NewMemoryPropertyStore())
	_ = db.CreateDatabase(ctx)
	c, err := db.CreateCollection(ctx, "events")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := c.InsertOne(ctx, Document{"_id": "1"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	results, err := c.Aggregate(ctx, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected empty pipeline to match all documents, got %v", results)
	}
}

func TestAggregateUnsupportedStageIsValidationError(t *testing.T) {
	ctx := context.Background()
	db := newTestDatabase(t, NewMemoryBlobStore(), NewMemoryPropertyStore())
	_ = db.CreateDatabase(ctx)
	c, err := db.CreateCollection(ctx, "events")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = c.Aggregate(ctx, []Document{{"$group": Document{"_id": "$kind"}}})
	if !classOf(ErrInvalidQuery, err) {
		t.Fatalf("expected ErrInvalidQuery for an unsupported stage, got %v", err)
	}
}

func TestAggregateMultiKeyStageIsValidationError(t *testing.T) {
	ctx := context.Background()
	db := newTestDatabase(t, NewMemoryBlobStore(), NewMemoryPropertyStore())
	_ = db.CreateDatabase(ctx)
	c, err := db.CreateCollection(ctx, "events")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = c.Aggregate(ctx, []Document{{"$match": Document{"kind": "click"}, "$sort": Document{"kind": 1}}})
	if !classOf(ErrInvalidQuery, err) {
		t.Fatalf("expected ErrInvalidQuery for a multi-key stage, got %v", err)
	}
}
