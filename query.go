// query.go - C3 Query Engine: MongoDB-style operator filters over a
// sequence of documents, grounded on ostafen-clover's predicate matching
// (q.satisfy). Operators are dispatched on their "$"-prefixed key strings.

package filedb

import (
	"fmt"

	"github.com/zeebo/errs"
)

// defaultSupportedOperators is the operator allow-list for query validation.
var defaultSupportedOperators = map[string]bool{
	"$eq": true, "$gt": true, "$lt": true, "$and": true, "$or": true,
}

// queryConfig holds the enumerated C3 options.
type queryConfig struct {
	supportedOperators map[string]bool
	maxNestedDepth      int
}

func defaultQueryConfig() queryConfig {
	return queryConfig{
		supportedOperators: defaultSupportedOperators,
		maxNestedDepth:     10,
	}
}

// validateQuery performs the single pre-traversal validation pass: depth
// bound and operator allow-list checking.
func validateQuery(query Document, cfg queryConfig, depth int) error {
	if depth > cfg.maxNestedDepth {
		return ErrInvalidQuery.Wrap(errs.New("query exceeds max nested depth"))
	}
	for k, v := range query {
		if len(k) > 0 && k[0] == '$' {
			if !cfg.supportedOperators[k] {
				return ErrInvalidQuery.Wrap(fmt.Errorf("unsupported operator: %s", k))
			}
			switch k {
			case "$and", "$or":
				seq, ok := v.([]interface{})
				if !ok {
					return ErrInvalidQuery.Wrap(fmt.Errorf("%s operand must be a sequence", k))
				}
				for _, cond := range seq {
					cm, ok := asDocument(cond)
					if !ok {
						return ErrInvalidQuery.Wrap(fmt.Errorf("%s condition must be a mapping", k))
					}
					if err := validateQuery(cm, cfg, depth+1); err != nil {
						return err
					}
				}
			}
			continue
		}
		if m, ok := asDocument(v); ok {
			if err := validateQuery(m, cfg, depth+1); err != nil {
				return err
			}
		} else if seq, ok := v.([]interface{}); ok {
			_ = seq
		}
	}
	return nil
}

// executeQuery returns the subset of documents matching query, preserving
// input order. An empty query matches everything.
func executeQuery(documents []Document, query Document) ([]Document, error) {
	return executeQueryWith(documents, query, defaultQueryConfig())
}

func executeQueryWith(documents []Document, query Document, cfg queryConfig) ([]Document, error) {
	if documents == nil {
		return nil, ErrInvalidArgument.Wrap(errs.New("documents must be a sequence"))
	}
	if query == nil {
		return nil, ErrInvalidArgument.Wrap(errs.New("query must be a non-null mapping"))
	}
	if err := validateQuery(query, cfg, 0); err != nil {
		return nil, err
	}

	out := make([]Document, 0, len(documents))
	for _, doc := range documents {
		match, err := matchDocument(doc, query)
		if err != nil {
			return nil, err
		}
		if match {
			out = append(out, doc)
		}
	}
	return out, nil
}

// matchDocument evaluates query against a single document; all top-level
// keys form an implicit conjunction.
func matchDocument(doc Document, query Document) (bool, error) {
	for k, v := range query {
		ok, err := matchCondition(doc, k, v)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func matchCondition(doc Document, key string, value interface{}) (bool, error) {
	switch key {
	case "$and":
		conds := value.([]interface{})
		for _, c := range conds {
			cm, _ := asDocument(c)
			ok, err := matchDocument(doc, cm)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
		return true, nil
	case "$or":
		conds := value.([]interface{})
		if len(conds) == 0 {
			return false, nil
		}
		for _, c := range conds {
			cm, _ := asDocument(c)
			ok, err := matchDocument(doc, cm)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	default:
		docValue, found := getPath(doc, key)
		if !found {
			docValue = nil
		}
		if isOperatorObject(value) {
			opObj, _ := asDocument(value)
			return applyOperatorsWithArrayMembership(docValue, opObj)
		}
		if m, ok := asDocument(value); ok {
			return subsetMatch(docValue, m, subsetMatchOpts{operatorSupport: false})
		}
		return equals(docValue, value, equalsOpts{arrayContainsScalar: true}), nil
	}
}

// applyOperatorsWithArrayMembership extends applyOperators' $eq with the
// query engine's array-membership rule: when docValue is a sequence and
// the operand a scalar, $eq matches if any element equals the scalar.
func applyOperatorsWithArrayMembership(docValue interface{}, operatorObj Document) (bool, error) {
	for op, operand := range operatorObj {
		if !supportedComparisonOperators[op] {
			return false, ErrInvalidQuery.Wrap(fmt.Errorf("unsupported operator: %s", op))
		}
		switch op {
		case "$eq":
			if !equals(docValue, operand, equalsOpts{arrayContainsScalar: true}) {
				return false, nil
			}
		case "$gt":
			if docValue == nil || operand == nil || compareOrdering(docValue, operand) <= 0 {
				return false, nil
			}
		case "$lt":
			if docValue == nil || operand == nil || compareOrdering(docValue, operand) >= 0 {
				return false, nil
			}
		}
	}
	return true, nil
}
