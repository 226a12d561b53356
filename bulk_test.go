package filedb

import (
	"context"
	"testing"
)

func TestBulkInsertAndUpdate(t *testing.T) {
	ctx := context.Background()
	db := newTestDatabase(t, NewMemoryBlobStore(), NewMemoryPropertyStore())
	_ = db.CreateDatabase(ctx)
	c, err := db.CreateCollection(ctx, "bulked")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	b := NewBulk(c)
	b.Insert(Document{"_id": "1", "v": 1}, Document{"_id": "2", "v": 2})
	b.UpdateAll(Document{}, Document{"$inc": Document{"v": 10}})
	b.Remove(Document{"_id": "2"})

	result, err := b.Run(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Inserted != 2 {
		t.Fatalf("expected 2 inserted, got %d", result.Inserted)
	}
	if result.Removed != 1 {
		t.Fatalf("expected 1 removed, got %d", result.Removed)
	}

	remaining, err := c.Find(ctx, Document{})
	if err != nil || len(remaining) != 1 {
		t.Fatalf("expected 1 remaining document, got %v %v", remaining, err)
	}
	if remaining[0]["v"] != float64(11) {
		t.Fatalf("expected v 11 after $inc, got %v", remaining[0]["v"])
	}
}
