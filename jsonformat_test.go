package filedb

import (
	"encoding/json"
	"testing"
	"time"
)

func TestDateRoundTripThroughEncoding(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Millisecond)
	doc := Document{"createdAt": now, "nested": Document{"updatedAt": now}}

	encoded := encodeDocumentDates(doc)
	raw, err := json.Marshal(encoded)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	result := decodeDocumentDates(decoded)
	got, ok := result["createdAt"].(time.Time)
	if !ok {
		t.Fatalf("expected createdAt to decode back to time.Time, got %T", result["createdAt"])
	}
	if got.UnixMilli() != now.UnixMilli() {
		t.Fatalf("expected round-tripped timestamp to match epoch-ms, got %v want %v", got, now)
	}

	nested, ok := asDocument(result["nested"])
	if !ok {
		t.Fatalf("expected nested mapping to survive round trip")
	}
	if _, ok := nested["updatedAt"].(time.Time); !ok {
		t.Fatalf("expected nested timestamp to decode back to time.Time")
	}
}
