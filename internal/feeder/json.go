package feeder

import (
	"bytes"
	"fmt"

	"github.com/tidwall/gjson"
)

// parseJSONRecords reads a JSON array of objects. Values become strings:
// strings verbatim, numbers and booleans by their JSON text, null as "" and
// nested objects or arrays as their raw JSON. A blank document is an empty
// array.
func parseJSONRecords(raw []byte) ([]Record, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}
	if !gjson.ValidBytes(raw) {
		return nil, fmt.Errorf("%w: malformed JSON", ErrInvalid)
	}
	root := gjson.ParseBytes(raw)
	if !root.IsArray() {
		return nil, fmt.Errorf("%w: expected a JSON array of objects", ErrInvalid)
	}

	var (
		records []Record
		err     error
	)
	root.ForEach(func(_, item gjson.Result) bool {
		if !item.IsObject() {
			err = fmt.Errorf("%w: element %d is not an object", ErrInvalid, len(records))
			return false
		}
		var rec Record
		item.ForEach(func(key, value gjson.Result) bool {
			rec.Put(key.String(), stringify(value))
			return true
		})
		records = append(records, rec)
		return true
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

func stringify(v gjson.Result) string {
	switch v.Type {
	case gjson.String:
		return v.Str
	case gjson.Null:
		return ""
	default:
		return v.Raw
	}
}
