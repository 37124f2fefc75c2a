package structured

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Field is one key/value pair of a record. Values are rendered text: JSON
// strings are unquoted, other JSON values keep their literal form.
type Field struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Record is an ordered set of fields. Source order is preserved so that
// rendered documents read the way the source was written.
type Record []Field

// Get returns the value for key.
func (r Record) Get(key string) (string, bool) {
	for _, f := range r {
		if f.Key == key {
			return f.Value, true
		}
	}
	return "", false
}

// Text renders r as "key: value" lines.
func (r Record) Text() string {
	lines := make([]string, 0, len(r))
	for _, f := range r {
		lines = append(lines, f.Key+": "+f.Value)
	}
	return strings.Join(lines, "\n")
}

// values joins the field values with single spaces.
func (r Record) values() string {
	vals := make([]string, 0, len(r))
	for _, f := range r {
		vals = append(vals, f.Value)
	}
	return strings.Join(vals, " ")
}

// MarshalJSON renders r as a JSON object in field order.
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range r {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(f.Key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(f.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// decodeRecords parses a JSON document holding either one object or an
// array of objects. Null fields are dropped.
func decodeRecords(data []byte) ([]Record, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty document")
	}
	switch trimmed[0] {
	case '{':
		rec, err := decodeObject(trimmed)
		if err != nil {
			return nil, err
		}
		return []Record{rec}, nil
	case '[':
		var raws []json.RawMessage
		if err := json.Unmarshal(trimmed, &raws); err != nil {
			return nil, err
		}
		out := make([]Record, 0, len(raws))
		for i, raw := range raws {
			rec, err := decodeObject(raw)
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", i, err)
			}
			out = append(out, rec)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported JSON structure: want object or array of objects")
	}
}

func decodeObject(raw []byte) (Record, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("want JSON object")
	}
	var rec Record
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, _ := tok.(string)
		var val json.RawMessage
		if err := dec.Decode(&val); err != nil {
			return nil, fmt.Errorf("field %q: %w", key, err)
		}
		text, ok, err := renderValue(val)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", key, err)
		}
		if ok {
			rec = append(rec, Field{Key: key, Value: text})
		}
	}
	return rec, nil
}

// renderValue converts a raw JSON value to text. It reports false for null.
func renderValue(raw json.RawMessage) (string, bool, error) {
	raw = bytes.TrimSpace(raw)
	if bytes.Equal(raw, []byte("null")) {
		return "", false, nil
	}
	if len(raw) > 0 && raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", false, err
		}
		return s, true, nil
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return "", false, err
	}
	return buf.String(), true, nil
}

// renderColumn converts a database value to text. It reports false for NULL.
func renderColumn(v any) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "", false
	case []byte:
		return string(t), true
	case string:
		return t, true
	default:
		return fmt.Sprint(t), true
	}
}
