// fieldpath.go - C1 Field-Path Utility: dot-notation path parsing, get/set/unset.

package filedb

import (
	"strconv"
	"strings"
	"sync"
)

// pathCache memoises path string -> parsed segment slice. Shareable across
// every engine in the package (Query and Update reach split through
// getPath/setPath/unsetPath).
var pathCache sync.Map // map[string][]string

// split parses a dot-separated path into its segments. Empty or
// whitespace-only paths return nil, which callers treat as "no-op"/"not
// found" per spec §4.1. Parsed slices are cached and must be treated as
// immutable by callers.
func split(path string) []string {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	if cached, ok := pathCache.Load(path); ok {
		return cached.([]string)
	}
	segments := strings.Split(path, ".")
	pathCache.Store(path, segments)
	return segments
}

// getPath reads the value at path within doc, traversing mappings by key
// and sequences by parsed integer index. Traversal stops and returns
// (nil, false) the moment it hits nil or a non-container before the path is
// exhausted.
func getPath(doc interface{}, path string) (interface{}, bool) {
	segments := split(path)
	if len(segments) == 0 {
		return nil, false
	}
	cur := doc
	for _, seg := range segments {
		switch container := cur.(type) {
		case Document:
			v, ok := container[seg]
			if !ok {
				return nil, false
			}
			cur = v
		case map[string]interface{}:
			v, ok := container[seg]
			if !ok {
				return nil, false
			}
			cur = v
		case []interface{}:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(container) {
				return nil, false
			}
			cur = container[idx]
		default:
			return nil, false
		}
	}
	return cur, true
}

// setPath writes value at path within doc, auto-creating missing
// intermediate mappings. Empty/whitespace paths are a no-op.
//
// Known quirk (preserved from the source, see spec §4.1):
// setPath does not protect an existing sequence at an intermediate segment
// from being overwritten by an auto-created mapping - if doc["a"] is a
// slice and the caller sets "a.b.c", the slice at "a" is replaced with a
// fresh map. This mirrors the original implementation's behaviour rather
// than "fixing" it, since callers may already depend on it.
func setPath(doc Document, path string, value interface{}) {
	segments := split(path)
	if len(segments) == 0 {
		return
	}
	cur := doc
	for i, seg := range segments {
		last := i == len(segments)-1
		if last {
			cur[seg] = value
			return
		}
		next, ok := cur[seg]
		if !ok {
			fresh := make(Document)
			cur[seg] = fresh
			cur = fresh
			continue
		}
		switch nextMap := next.(type) {
		case Document:
			cur = nextMap
		case map[string]interface{}:
			cur = Document(nextMap)
		default:
			fresh := make(Document)
			cur[seg] = fresh
			cur = fresh
		}
	}
}

// unsetPath removes the value at path: deletes a mapping key, or removes a
// sequence element addressed by numeric index (shifting later elements
// down, like a slice delete). Missing intermediates are a no-op. Because
// removing a slice element requires replacing the slice itself in its
// parent container, traversal tracks the parent one level back rather than
// just the current node.
func unsetPath(doc Document, path string) {
	segments := split(path)
	if len(segments) == 0 {
		return
	}

	var parent interface{} = doc
	for i, seg := range segments {
		last := i == len(segments)-1

		switch container := parent.(type) {
		case Document:
			if last {
				delete(container, seg)
				return
			}
			next, ok := container[seg]
			if !ok {
				return
			}
			if last {
				return
			}
			if seq, ok := next.([]interface{}); ok && i == len(segments)-2 {
				idx, err := strconv.Atoi(segments[i+1])
				if err != nil || idx < 0 || idx >= len(seq) {
					return
				}
				container[seg] = append(append([]interface{}{}, seq[:idx]...), seq[idx+1:]...)
				return
			}
			parent = next
		case map[string]interface{}:
			if last {
				delete(container, seg)
				return
			}
			next, ok := container[seg]
			if !ok {
				return
			}
			if seq, ok := next.([]interface{}); ok && i == len(segments)-2 {
				idx, err := strconv.Atoi(segments[i+1])
				if err != nil || idx < 0 || idx >= len(seq) {
					return
				}
				container[seg] = append(append([]interface{}{}, seq[:idx]...), seq[idx+1:]...)
				return
			}
			parent = next
		case []interface{}:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(container) {
				return
			}
			if last {
				// Removing a root-level sequence element in place isn't
				// representable through this interface{} parent without a
				// container to write back into; callers needing that
				// operate on the parent document field instead.
				return
			}
			parent = container[idx]
		default:
			return
		}
	}
}
