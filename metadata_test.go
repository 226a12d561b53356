package filedb

import "testing"

// Round-trip property from spec §8: deserialise(serialise(m)) equals m in
// all attributes (timestamps equal by epoch-ms).
func TestCollectionMetadataRoundTrip(t *testing.T) {
	m, err := NewCollectionMetadata("orders", "orders.blob")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m.ModificationToken = generateModificationToken()
	m.DocumentCount = 7
	if err := m.SetLockStatus(&LockStatus{IsLocked: true, LockedBy: "op-1", LockedAtMs: 100, LockTimeout: 5000}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	roundTripped, err := DeserialiseCollectionMetadata(m.Serialise())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if roundTripped.Name != m.Name || roundTripped.FileID != m.FileID {
		t.Fatalf("expected name/fileId preserved")
	}
	if roundTripped.Created.UnixMilli() != m.Created.UnixMilli() {
		t.Fatalf("expected created epoch-ms preserved")
	}
	if roundTripped.DocumentCount != m.DocumentCount {
		t.Fatalf("expected documentCount preserved")
	}
	if roundTripped.ModificationToken != m.ModificationToken {
		t.Fatalf("expected modificationToken preserved")
	}
	if roundTripped.LockStatus == nil || roundTripped.LockStatus.LockedBy != "op-1" {
		t.Fatalf("expected lockStatus preserved, got %+v", roundTripped.LockStatus)
	}
}

func TestCollectionMetadataDecrementBelowZero(t *testing.T) {
	m, err := NewCollectionMetadata("c", "c.blob")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := m.DecrementDocumentCount(); !classOf(ErrInvalidArgument, err) {
		t.Fatalf("expected InvalidArgument decrementing below zero, got %v", err)
	}
}

func TestCollectionMetadataCloneIndependence(t *testing.T) {
	m, _ := NewCollectionMetadata("c", "c.blob")
	clone := m.Clone()
	clone.DocumentCount = 42
	if m.DocumentCount == 42 {
		t.Fatalf("expected clone to be independent of original")
	}
}

func TestCollectionMetadataValidation(t *testing.T) {
	if _, err := NewCollectionMetadata("", "fid"); !classOf(ErrInvalidArgument, err) {
		t.Fatalf("expected InvalidArgument for empty name, got %v", err)
	}
	if _, err := NewCollectionMetadata("name", ""); !classOf(ErrInvalidArgument, err) {
		t.Fatalf("expected InvalidArgument for empty fileId, got %v", err)
	}
}
