// jsonformat.go - canonical JSON wire format for blobs (spec §6): plain
// JSON cannot distinguish a timestamp from a string, so every time.Time
// value is tagged {"__type":"Date","value":"<ISO-8601>"} at the
// serialisation boundary and untagged on the way back in. The recursive
// walk-and-convert shape mirrors the teacher's
// convertMGOToOfficial/convertOfficialToMGO pair in modern_utils.go, here
// converting between in-memory Document values and encoding/json-ready
// interface{} trees instead of between two bson dialects.

package filedb

import "time"

const dateTypeTag = "Date"

// encodeDocumentDates walks v, replacing every time.Time with its tagged
// wire representation. Used just before json.Marshal.
func encodeDocumentDates(v interface{}) interface{} {
	switch t := v.(type) {
	case time.Time:
		return Document{
			"__type": dateTypeTag,
			"value":  t.UTC().Format(time.RFC3339Nano),
		}
	case Document:
		out := make(Document, len(t))
		for k, val := range t {
			out[k] = encodeDocumentDates(val)
		}
		return out
	case map[string]interface{}:
		return encodeDocumentDates(Document(t))
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, val := range t {
			out[i] = encodeDocumentDates(val)
		}
		return out
	default:
		return v
	}
}

// decodeDocumentDates walks v, the tree freshly produced by
// json.Unmarshal, replacing every {"__type":"Date","value":...} mapping
// with the time.Time it tags. Plain mappings and sequences are otherwise
// passed through unchanged (json.Unmarshal already yields
// map[string]interface{}/[]interface{}, normalised here to Document).
func decodeDocumentDates(v interface{}) Document {
	out, _ := decodeValue(v).(Document)
	return out
}

func decodeValue(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		if tag, ok := t["__type"].(string); ok && tag == dateTypeTag {
			if s, ok := t["value"].(string); ok {
				if parsed, err := time.Parse(time.RFC3339Nano, s); err == nil {
					return parsed
				}
			}
		}
		out := make(Document, len(t))
		for k, val := range t {
			out[k] = decodeValue(val)
		}
		return out
	case Document:
		return decodeValue(map[string]interface{}(t))
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, val := range t {
			out[i] = decodeValue(val)
		}
		return out
	default:
		return v
	}
}
