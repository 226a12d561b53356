// update.go - C4 Update Engine: MongoDB-style update operators applied to a
// deep clone of the target document. Operator dispatch follows the tagged
// enumeration called for by spec §9 rather than a string-keyed handler
// table.

package filedb

import (
	"fmt"

	"github.com/zeebo/errs"
)

// updateOperator is the tagged enumeration of supported update operators.
type updateOperator int

const (
	opSet updateOperator = iota
	opInc
	opMul
	opMin
	opMax
	opUnset
	opPush
	opPull
	opAddToSet
)

var updateOperatorNames = map[string]updateOperator{
	"$set":      opSet,
	"$inc":      opInc,
	"$mul":      opMul,
	"$min":      opMin,
	"$max":      opMax,
	"$unset":    opUnset,
	"$push":     opPush,
	"$pull":     opPull,
	"$addToSet": opAddToSet,
}

// applyUpdateOperators returns a new document: a deep clone of document
// with every operator in updateOps applied. document is never mutated.
func applyUpdateOperators(document Document, updateOps Document) (Document, error) {
	if document == nil {
		return nil, ErrInvalidArgument.Wrap(errs.New("document must be a mapping"))
	}
	if len(updateOps) == 0 {
		return nil, ErrInvalidArgument.Wrap(errs.New("updateOps must be a non-empty mapping"))
	}

	result := cloneDocument(document)

	for opName, operand := range updateOps {
		op, ok := updateOperatorNames[opName]
		if !ok {
			return nil, ErrInvalidQuery.Wrap(fmt.Errorf("unsupported update operator: %s", opName))
		}
		operandMap, ok := asDocument(operand)
		if !ok || len(operandMap) == 0 {
			return nil, ErrInvalidArgument.Wrap(fmt.Errorf("%s operand must be a non-empty mapping", opName))
		}
		if err := applyOperatorToPaths(result, op, operandMap); err != nil {
			return nil, err
		}
	}

	return result, nil
}

func applyOperatorToPaths(doc Document, op updateOperator, operand Document) error {
	for path, value := range operand {
		if err := applyOneOperator(doc, op, path, value); err != nil {
			return err
		}
	}
	return nil
}

func applyOneOperator(doc Document, op updateOperator, path string, value interface{}) error {
	switch op {
	case opSet:
		setPath(doc, path, cloneValue(value))
		return nil

	case opInc:
		n, ok := asFloat(value)
		if !ok {
			return ErrInvalidQuery.Wrap(fmt.Errorf("$inc operand at %q must be numeric", path))
		}
		current, found := getPath(doc, path)
		base := 0.0
		if found {
			cf, ok := asFloat(current)
			if !ok {
				return ErrInvalidQuery.Wrap(fmt.Errorf("$inc target at %q must be numeric", path))
			}
			base = cf
		}
		setPath(doc, path, base+n)
		return nil

	case opMul:
		n, ok := asFloat(value)
		if !ok {
			return ErrInvalidQuery.Wrap(fmt.Errorf("$mul operand at %q must be numeric", path))
		}
		current, found := getPath(doc, path)
		base := 0.0
		if found {
			cf, ok := asFloat(current)
			if !ok {
				return ErrInvalidQuery.Wrap(fmt.Errorf("$mul target at %q must be numeric", path))
			}
			base = cf
		}
		setPath(doc, path, base*n)
		return nil

	case opMin:
		current, found := getPath(doc, path)
		if !found {
			setPath(doc, path, cloneValue(value))
			return nil
		}
		if compareOrdering(value, current) < 0 {
			setPath(doc, path, cloneValue(value))
		}
		return nil

	case opMax:
		current, found := getPath(doc, path)
		if !found {
			setPath(doc, path, cloneValue(value))
			return nil
		}
		if compareOrdering(value, current) > 0 {
			setPath(doc, path, cloneValue(value))
		}
		return nil

	case opUnset:
		unsetPath(doc, path)
		return nil

	case opPush:
		return applyPush(doc, path, value)

	case opPull:
		return applyPull(doc, path, value)

	case opAddToSet:
		return applyAddToSet(doc, path, value)
	}
	return nil
}

// eachOperand reports whether value is of the shape {$each: [...]}, and if
// so returns the operand sequence.
func eachOperand(value interface{}) (seq []interface{}, isEach bool) {
	m, ok := asDocument(value)
	if !ok || len(m) != 1 {
		return nil, false
	}
	raw, ok := m["$each"]
	if !ok {
		return nil, false
	}
	asSeq, _ := raw.([]interface{})
	return asSeq, true
}

func applyPush(doc Document, path string, value interface{}) error {
	var toAppend []interface{}
	if seq, isEach := eachOperand(value); isEach {
		if seq == nil {
			return ErrInvalidQuery.Wrap(fmt.Errorf("$push $each operand at %q must be a sequence", path))
		}
		toAppend = seq
	} else {
		toAppend = []interface{}{value}
	}

	current, found := getPath(doc, path)
	var existing []interface{}
	if found {
		seq, ok := current.([]interface{})
		if !ok {
			return ErrInvalidQuery.Wrap(fmt.Errorf("$push target at %q is not a sequence", path))
		}
		existing = seq
	}

	out := make([]interface{}, 0, len(existing)+len(toAppend))
	out = append(out, existing...)
	for _, v := range toAppend {
		out = append(out, cloneValue(v))
	}
	setPath(doc, path, out)
	return nil
}

func applyPull(doc Document, path string, criterion interface{}) error {
	current, found := getPath(doc, path)
	if !found {
		return nil
	}
	seq, ok := current.([]interface{})
	if !ok {
		return nil
	}

	out := make([]interface{}, 0, len(seq))
	for _, el := range seq {
		matched, err := pullMatches(el, criterion)
		if err != nil {
			// Evaluation errors on individual elements are caught; the
			// element is retained.
			out = append(out, el)
			continue
		}
		if !matched {
			out = append(out, el)
		}
	}
	setPath(doc, path, out)
	return nil
}

func pullMatches(element, criterion interface{}) (bool, error) {
	if isOperatorObject(criterion) || isContainerPredicate(criterion) {
		return subsetMatch(element, criterion, subsetMatchOpts{operatorSupport: true})
	}
	return equals(element, criterion, equalsOpts{}), nil
}

func isContainerPredicate(v interface{}) bool {
	_, ok := asDocument(v)
	return ok
}

func applyAddToSet(doc Document, path string, value interface{}) error {
	var toAdd []interface{}
	if seq, isEach := eachOperand(value); isEach {
		if seq == nil {
			return ErrInvalidQuery.Wrap(fmt.Errorf("$addToSet $each operand at %q must be a sequence", path))
		}
		toAdd = seq
	} else {
		toAdd = []interface{}{value}
	}

	current, found := getPath(doc, path)
	var existing []interface{}
	if found {
		seq, ok := current.([]interface{})
		if !ok {
			return ErrInvalidQuery.Wrap(fmt.Errorf("$addToSet target at %q is not a sequence", path))
		}
		existing = seq
	}

	out := append([]interface{}{}, existing...)
	for _, candidate := range toAdd {
		if !containsEqual(out, candidate) {
			out = append(out, cloneValue(candidate))
		}
	}
	setPath(doc, path, out)
	return nil
}

// containsEqual implements the $addToSet equality rule: primary
// comparator is equals with arrayContainsScalar false; on non-match for
// two mappings, fall back to a deep-equal check (equals already performs
// a deep structural comparison for mappings, so the fallback is
// structurally identical here but kept as an explicit second pass to
// mirror the spec's documented two-step rule).
func containsEqual(haystack []interface{}, candidate interface{}) bool {
	for _, existing := range haystack {
		if equals(existing, candidate, equalsOpts{}) {
			return true
		}
		if em, ok1 := asDocument(existing); ok1 {
			if cm, ok2 := asDocument(candidate); ok2 {
				if deepEqualMap(em, cm) {
					return true
				}
			}
		}
	}
	return false
}

func deepEqualMap(a, b Document) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		bv, ok := b[k]
		if !ok || !equals(v, bv, equalsOpts{}) {
			return false
		}
	}
	return true
}
