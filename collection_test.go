package filedb

import (
	"context"
	"testing"
)

func newTestDatabase(t *testing.T, blobService BlobService, propertyStore PropertyStore) *Database {
	t.Helper()
	cfg := DefaultDatabaseConfig()
	cfg.MasterIndexKey = "test:master-index"
	db, err := OpenDatabase(blobService, propertyStore, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return db
}

func TestCollectionInsertFindUpdateDelete(t *testing.T) {
	ctx := context.Background()
	blobs := NewMemoryBlobStore()
	props := NewMemoryPropertyStore()
	db := newTestDatabase(t, blobs, props)
	if err := db.CreateDatabase(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	c, err := db.CreateCollection(ctx, "orders")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	info, err := c.InsertOne(ctx, Document{"item": "widget", "qty": 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !info.Acknowledged || info.InsertedId == "" {
		t.Fatalf("expected acknowledged insert with an id, got %+v", info)
	}

	found, err := c.FindOne(ctx, Document{"_id": info.InsertedId})
	if err != nil || found == nil {
		t.Fatalf("expected to find inserted doc, got %v %v", found, err)
	}
	if found["item"] != "widget" {
		t.Fatalf("expected item widget, got %v", found["item"])
	}

	updateInfo, err := c.UpdateOne(ctx, info.InsertedId, Document{"$inc": Document{"qty": 2}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updateInfo.Modified != 1 {
		t.Fatalf("expected 1 document modified, got %d", updateInfo.Modified)
	}

	updated, err := c.FindOne(ctx, info.InsertedId)
	if err != nil || updated["qty"] != float64(5) {
		t.Fatalf("expected qty 5, got %v %v", updated, err)
	}

	delInfo, err := c.DeleteOne(ctx, Document{"_id": info.InsertedId})
	if err != nil || delInfo.Removed != 1 {
		t.Fatalf("expected 1 document removed, got %+v %v", delInfo, err)
	}

	count, err := c.CountDocuments(ctx, Document{})
	if err != nil || count != 0 {
		t.Fatalf("expected 0 documents left, got %d %v", count, err)
	}
}

func TestCollectionInsertDuplicateId(t *testing.T) {
	ctx := context.Background()
	blobs := NewMemoryBlobStore()
	props := NewMemoryPropertyStore()
	db := newTestDatabase(t, blobs, props)
	_ = db.CreateDatabase(ctx)
	c, _ := db.CreateCollection(ctx, "items")

	if _, err := c.InsertOne(ctx, Document{"_id": "fixed", "v": 1}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err := c.InsertOne(ctx, Document{"_id": "fixed", "v": 2})
	if err == nil || !classOf(ErrDuplicateKey, err) {
		t.Fatalf("expected DuplicateKey, got %v", err)
	}
}

// Seed scenario 7 from spec §8: conflict reload. Two coordinators share a
// collection (via independent Database/Collection instances over the same
// backing stores); the first commits a write, the second - holding a
// stale token - is forced to reload before its own write lands, and both
// writes survive.
func TestCoordinatorConflictReload(t *testing.T) {
	ctx := context.Background()
	blobs := NewMemoryBlobStore()
	props := NewMemoryPropertyStore()

	dbA := newTestDatabase(t, blobs, props)
	if err := dbA.CreateDatabase(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	collA, err := dbA.CreateCollection(ctx, "shared")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := collA.InsertOne(ctx, Document{"_id": "doc1", "v": 0}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	dbB := newTestDatabase(t, blobs, props)
	collB, err := dbB.Collection(ctx, "shared")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Force collB to load its own in-memory state (and token) before A's
	// next write changes the Master Index token underneath it.
	if _, err := collB.FindOne(ctx, Document{"_id": "doc1"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := collA.UpdateOne(ctx, "doc1", Document{"$set": Document{"v": 1}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := collB.InsertOne(ctx, Document{"_id": "doc2", "v": 2}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	final1, err := collB.FindOne(ctx, Document{"_id": "doc1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if final1["v"] != float64(1) {
		t.Fatalf("expected collB's reload to observe A's write, got %v", final1["v"])
	}

	final2, err := collB.FindOne(ctx, Document{"_id": "doc2"})
	if err != nil || final2 == nil {
		t.Fatalf("expected collB's own insert to have landed, got %v %v", final2, err)
	}
}

func TestCoordinatorPersistentConflictSurfacesModificationConflict(t *testing.T) {
	ctx := context.Background()
	blobs := NewMemoryBlobStore()
	props := NewMemoryPropertyStore()

	db := newTestDatabase(t, blobs, props)
	if err := db.CreateDatabase(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	coll, err := db.CreateCollection(ctx, "shared")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := coll.InsertOne(ctx, Document{"_id": "doc1", "v": 0}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Simulate an external writer bumping the Master Index's token without
	// ever producing a matching collection blob - the one case where
	// reload cannot resolve the mismatch, so it must persist.
	err = db.masterIndex.UpdateCollectionMetadata(ctx, "shared", func(m *CollectionMetadata) {
		m.ModificationToken = "external-token-no-matching-blob"
	}, db.config.LockTimeoutMs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = coll.UpdateOne(ctx, "doc1", Document{"$set": Document{"v": 1}})
	if !classOf(ErrModificationConflict, err) {
		t.Fatalf("expected ErrModificationConflict for a conflict that survives reload, got %v", err)
	}
}

func TestDatabaseCollectionNameValidation(t *testing.T) {
	ctx := context.Background()
	blobs := NewMemoryBlobStore()
	props := NewMemoryPropertyStore()
	db := newTestDatabase(t, blobs, props)
	_ = db.CreateDatabase(ctx)

	if _, err := db.CreateCollection(ctx, "system"); !classOf(ErrInvalidArgument, err) {
		t.Fatalf("expected InvalidArgument for reserved name, got %v", err)
	}
	if _, err := db.CreateCollection(ctx, "bad/name"); !classOf(ErrInvalidArgument, err) {
		t.Fatalf("expected InvalidArgument for disallowed characters, got %v", err)
	}
}
