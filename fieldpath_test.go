package filedb

import "testing"

func TestGetPathNested(t *testing.T) {
	doc := Document{"a": Document{"b": []interface{}{1, 2, Document{"c": "x"}}}}

	v, ok := getPath(doc, "a.b.2.c")
	if !ok || v != "x" {
		t.Fatalf("expected x, got %v, %v", v, ok)
	}

	_, ok = getPath(doc, "a.b.9.c")
	if ok {
		t.Fatalf("expected not found for out of range index")
	}

	_, ok = getPath(doc, "")
	if ok {
		t.Fatalf("expected not found for empty path")
	}
}

func TestSetPathCreatesIntermediates(t *testing.T) {
	doc := Document{}
	setPath(doc, "a.b.c", 5)

	v, ok := getPath(doc, "a.b.c")
	if !ok || v != 5 {
		t.Fatalf("expected 5, got %v, %v", v, ok)
	}
}

func TestUnsetPathMapping(t *testing.T) {
	doc := Document{"a": Document{"b": 1, "c": 2}}
	unsetPath(doc, "a.b")

	if _, ok := getPath(doc, "a.b"); ok {
		t.Fatalf("expected a.b to be removed")
	}
	if v, ok := getPath(doc, "a.c"); !ok || v != 2 {
		t.Fatalf("expected a.c to remain, got %v, %v", v, ok)
	}
}

func TestUnsetPathSequenceElement(t *testing.T) {
	doc := Document{"tags": []interface{}{"a", "b", "c"}}
	unsetPath(doc, "tags.1")

	v, _ := getPath(doc, "tags")
	seq := v.([]interface{})
	if len(seq) != 2 || seq[0] != "a" || seq[1] != "c" {
		t.Fatalf("expected [a c], got %v", seq)
	}
}

func TestSplitCaching(t *testing.T) {
	s1 := split("a.b.c")
	s2 := split("a.b.c")
	if len(s1) != 3 || len(s2) != 3 {
		t.Fatalf("expected 3 segments, got %d and %d", len(s1), len(s2))
	}
}
