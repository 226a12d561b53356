// compare.go - C2 Comparison Utility: equality, ordering and operator
// evaluation shared by the query and update engines.

package filedb

import (
	"fmt"
	"strings"
	"time"

	"github.com/zeebo/errs"
)

// equalsOpts configures equals. arrayContainsScalar mirrors the query
// engine's array-membership semantics: when true and a is a sequence while
// b is a scalar, equals treats the comparison as "does a contain b".
type equalsOpts struct {
	arrayContainsScalar bool
}

// equals implements C2 equality: strict type equality, timestamps compared
// by epoch-ms, mappings by same key set and deep-equal values, sequences by
// length and element-wise equality.
func equals(a, b interface{}, opts equalsOpts) bool {
	if opts.arrayContainsScalar {
		if seq, ok := a.([]interface{}); ok {
			if !isContainer(b) {
				for _, el := range seq {
					if equals(el, b, equalsOpts{}) {
						return true
					}
				}
				return false
			}
		}
	}

	switch av := a.(type) {
	case nil:
		return b == nil
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case int:
		return numEquals(float64(av), b)
	case int32:
		return numEquals(float64(av), b)
	case int64:
		return numEquals(float64(av), b)
	case float64:
		return numEquals(av, b)
	case time.Time:
		bv, ok := b.(time.Time)
		return ok && av.UnixMilli() == bv.UnixMilli()
	case Document:
		bv, ok := b.(Document)
		if !ok {
			if bm, ok2 := b.(map[string]interface{}); ok2 {
				bv = Document(bm)
			} else {
				return false
			}
		}
		if len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			ov, ok := bv[k]
			if !ok || !equals(v, ov, equalsOpts{}) {
				return false
			}
		}
		return true
	case map[string]interface{}:
		return equals(Document(av), b, equalsOpts{})
	case []interface{}:
		bv, ok := b.([]interface{})
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !equals(av[i], bv[i], equalsOpts{}) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func numEquals(av float64, b interface{}) bool {
	switch bv := b.(type) {
	case int:
		return av == float64(bv)
	case int32:
		return av == float64(bv)
	case int64:
		return av == float64(bv)
	case float64:
		return av == bv
	default:
		return false
	}
}

func isContainer(v interface{}) bool {
	switch v.(type) {
	case Document, map[string]interface{}, []interface{}:
		return true
	default:
		return false
	}
}

func asFloat(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case int:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case float64:
		return t, true
	default:
		return 0, false
	}
}

// compareOrdering returns negative/zero/positive for same-typed numbers,
// strings (lexicographic) or timestamps (epoch-ms). Any other pairing,
// including cross-type, returns 0 - "not ordered", not "equal".
func compareOrdering(a, b interface{}) int {
	if af, ok := asFloat(a); ok {
		if bf, ok := asFloat(b); ok {
			switch {
			case af < bf:
				return -1
			case af > bf:
				return 1
			default:
				return 0
			}
		}
		return 0
	}
	if as, ok := a.(string); ok {
		if bs, ok := b.(string); ok {
			return strings.Compare(as, bs)
		}
		return 0
	}
	if at, ok := a.(time.Time); ok {
		if bt, ok := b.(time.Time); ok {
			am, bm := at.UnixMilli(), bt.UnixMilli()
			switch {
			case am < bm:
				return -1
			case am > bm:
				return 1
			default:
				return 0
			}
		}
		return 0
	}
	return 0
}

// supportedComparisonOperators is the only operator set applyOperators
// accepts, per spec §4.2.
var supportedComparisonOperators = map[string]bool{
	"$eq": true, "$gt": true, "$lt": true,
}

// isOperatorObject reports whether obj is a non-null mapping with at least
// one key and every key beginning with "$".
func isOperatorObject(obj interface{}) bool {
	m, ok := asDocument(obj)
	if !ok || len(m) == 0 {
		return false
	}
	for k := range m {
		if !strings.HasPrefix(k, "$") {
			return false
		}
	}
	return true
}

func asDocument(v interface{}) (Document, bool) {
	switch t := v.(type) {
	case Document:
		return t, true
	case map[string]interface{}:
		return Document(t), true
	default:
		return nil, false
	}
}

// applyOperators evaluates an operator object (e.g. {$gt: 5, $eq: 3})
// against actual. Multiple operator keys form a conjunction. Any operator
// outside {$eq,$gt,$lt} is InvalidQuery.
func applyOperators(actual interface{}, operatorObj Document) (bool, error) {
	for op, operand := range operatorObj {
		if !supportedComparisonOperators[op] {
			return false, ErrInvalidQuery.Wrap(fmt.Errorf("unsupported operator: %s", op))
		}
		switch op {
		case "$eq":
			if !equals(actual, operand, equalsOpts{}) {
				return false, nil
			}
		case "$gt":
			if actual == nil || operand == nil {
				return false, nil
			}
			if compareOrdering(actual, operand) <= 0 {
				return false, nil
			}
		case "$lt":
			if actual == nil || operand == nil {
				return false, nil
			}
			if compareOrdering(actual, operand) >= 0 {
				return false, nil
			}
		}
	}
	return true, nil
}

// subsetMatchOpts toggles operator support for $pull-style calls that
// embed $gt/$lt/$eq criteria inside an otherwise plain mapping predicate.
type subsetMatchOpts struct {
	operatorSupport bool
}

// subsetMatch reports whether candidate satisfies predicate under subset
// (not strict-equality) semantics: a mapping predicate matches candidate
// when every predicate field is present and matching on candidate,
// ignoring any extra fields candidate carries.
func subsetMatch(candidate, predicate interface{}, opts subsetMatchOpts) (bool, error) {
	if opts.operatorSupport && isOperatorObject(predicate) {
		if isContainer(candidate) {
			return false, ErrInvalidQuery.Wrap(errs.New("operator object predicate requires a scalar candidate"))
		}
		pm, _ := asDocument(predicate)
		return applyOperators(candidate, pm)
	}

	pm, predIsMap := asDocument(predicate)
	if !predIsMap {
		return equals(candidate, predicate, equalsOpts{}), nil
	}

	cm, candIsMap := asDocument(candidate)
	if !candIsMap {
		return false, nil
	}

	for k, v := range pm {
		cv := cm[k]
		if opts.operatorSupport && isOperatorObject(v) {
			vm, _ := asDocument(v)
			ok, err := applyOperators(cv, vm)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
			continue
		}
		if _, isMap := asDocument(v); isMap {
			ok, err := subsetMatch(cv, v, opts)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
			continue
		}
		if !equals(cv, v, equalsOpts{}) {
			return false, nil
		}
	}
	return true, nil
}
