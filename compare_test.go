package filedb

import "testing"

func TestEqualsArrayContainsScalar(t *testing.T) {
	a := []interface{}{1, 2, 3}
	if !equals(a, 2, equalsOpts{arrayContainsScalar: true}) {
		t.Fatalf("expected array to contain scalar 2")
	}
	if equals(a, 9, equalsOpts{arrayContainsScalar: true}) {
		t.Fatalf("expected array not to contain scalar 9")
	}
}

func TestEqualsMappingOrderIrrelevant(t *testing.T) {
	a := Document{"x": 1, "y": 2}
	b := Document{"y": 2, "x": 1}
	if !equals(a, b, equalsOpts{}) {
		t.Fatalf("expected mappings with same keys/values to be equal regardless of order")
	}
}

func TestCompareOrderingCrossTypeIsZero(t *testing.T) {
	if compareOrdering(5, "5") != 0 {
		t.Fatalf("expected cross-type comparison to be 0 (not ordered)")
	}
}

func TestApplyOperatorsConjunction(t *testing.T) {
	ok, err := applyOperators(10, Document{"$gt": 5, "$lt": 20})
	if err != nil || !ok {
		t.Fatalf("expected 10 to satisfy $gt 5 and $lt 20, got %v %v", ok, err)
	}

	ok, err = applyOperators(10, Document{"$gt": 5, "$lt": 8})
	if err != nil || ok {
		t.Fatalf("expected 10 to fail $lt 8")
	}
}

func TestApplyOperatorsUnsupported(t *testing.T) {
	_, err := applyOperators(10, Document{"$ne": 5})
	if err == nil || !classOf(ErrInvalidQuery, err) {
		t.Fatalf("expected InvalidQuery for unsupported operator, got %v", err)
	}
}

func TestIsOperatorObject(t *testing.T) {
	if !isOperatorObject(Document{"$gt": 5}) {
		t.Fatalf("expected operator object")
	}
	if isOperatorObject(Document{"$gt": 5, "plain": 1}) {
		t.Fatalf("expected mixed keys not to be an operator object")
	}
	if isOperatorObject(Document{}) {
		t.Fatalf("expected empty mapping not to be an operator object")
	}
}

func TestSubsetMatchNested(t *testing.T) {
	candidate := Document{"profile": Document{"age": 30, "name": "a"}, "extra": true}
	predicate := Document{"profile": Document{"age": Document{"$gt": 18}}}

	ok, err := subsetMatch(candidate, predicate, subsetMatchOpts{operatorSupport: true})
	if err != nil || !ok {
		t.Fatalf("expected subset match, got %v %v", ok, err)
	}
}
