package filedb

import "testing"

// Seed scenario 3 from spec §8: $inc creates field.
func TestApplyUpdateOperatorsIncCreatesField(t *testing.T) {
	result, err := applyUpdateOperators(Document{"_id": "x"}, Document{"$inc": Document{"count": 3}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result["count"] != float64(3) {
		t.Fatalf("expected count 3, got %v", result["count"])
	}
	if result["_id"] != "x" {
		t.Fatalf("expected _id preserved")
	}
}

// Seed scenario 4 from spec §8: $addToSet $each dedup.
func TestApplyUpdateOperatorsAddToSetEachDedup(t *testing.T) {
	result, err := applyUpdateOperators(
		Document{"_id": "y", "tags": []interface{}{"a"}},
		Document{"$addToSet": Document{"tags": Document{"$each": []interface{}{"a", "b", "b"}}}},
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tags := result["tags"].([]interface{})
	if len(tags) != 2 || tags[0] != "a" || tags[1] != "b" {
		t.Fatalf("expected [a b], got %v", tags)
	}
}

// Seed scenario 5 from spec §8: $pull with operator.
func TestApplyUpdateOperatorsPullWithOperator(t *testing.T) {
	result, err := applyUpdateOperators(
		Document{"_id": "z", "nums": []interface{}{10, 60, 95}},
		Document{"$pull": Document{"nums": Document{"$gt": 50}}},
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	nums := result["nums"].([]interface{})
	if len(nums) != 1 || nums[0] != 10 {
		t.Fatalf("expected [10], got %v", nums)
	}
}

func TestApplyUpdateOperatorsDoesNotMutateInput(t *testing.T) {
	original := Document{"_id": "a", "count": 1}
	_, err := applyUpdateOperators(original, Document{"$inc": Document{"count": 1}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if original["count"] != 1 {
		t.Fatalf("expected original document untouched, got %v", original["count"])
	}
}

func TestApplyUpdateOperatorsSetIdempotent(t *testing.T) {
	doc := Document{"_id": "a"}
	ops := Document{"$set": Document{"status": "ready"}}

	once, err := applyUpdateOperators(doc, ops)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	twice, err := applyUpdateOperators(once, ops)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if once["status"] != twice["status"] {
		t.Fatalf("expected idempotent $set, got %v then %v", once["status"], twice["status"])
	}
}

func TestApplyUpdateOperatorsAddToSetIdempotent(t *testing.T) {
	doc := Document{"_id": "a", "tags": []interface{}{"x"}}
	ops := Document{"$addToSet": Document{"tags": "y"}}

	once, err := applyUpdateOperators(doc, ops)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	twice, err := applyUpdateOperators(once, ops)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	onceTags := once["tags"].([]interface{})
	twiceTags := twice["tags"].([]interface{})
	if len(onceTags) != 2 || len(twiceTags) != 2 {
		t.Fatalf("expected array to grow only on first application, got %v then %v", onceTags, twiceTags)
	}
}

func TestApplyUpdateOperatorsIncNonNumeric(t *testing.T) {
	_, err := applyUpdateOperators(Document{"_id": "a"}, Document{"$inc": Document{"count": "x"}})
	if err == nil || !classOf(ErrInvalidQuery, err) {
		t.Fatalf("expected InvalidQuery, got %v", err)
	}
}

func TestApplyUpdateOperatorsPushEach(t *testing.T) {
	result, err := applyUpdateOperators(
		Document{"_id": "a"},
		Document{"$push": Document{"items": Document{"$each": []interface{}{1, 2}}}},
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	items := result["items"].([]interface{})
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %v", items)
	}
}

func TestApplyUpdateOperatorsUnsupportedOperator(t *testing.T) {
	_, err := applyUpdateOperators(Document{"_id": "a"}, Document{"$rename": Document{"a": "b"}})
	if err == nil || !classOf(ErrInvalidQuery, err) {
		t.Fatalf("expected InvalidQuery, got %v", err)
	}
}
