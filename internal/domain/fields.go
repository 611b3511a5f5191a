package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Reserved submission keys; everything else in the form body is a custom field
const (
	FieldOrderID   = "orderId"
	FieldVariantID = "variantId"
)

// Field is one custom form field. Value holds the decoded JSON value
// (string, json.Number, bool, nil, []any or map[string]any).
type Field struct {
	Key   string
	Value any
}

// FieldSet keeps custom fields in the order they were submitted
type FieldSet []Field

// Get returns the value stored under key
func (fs FieldSet) Get(key string) (any, bool) {
	for _, f := range fs {
		if f.Key == key {
			return f.Value, true
		}
	}
	return nil, false
}

// Set replaces an existing key in place or appends a new one
func (fs *FieldSet) Set(key string, value any) {
	for i := range *fs {
		if (*fs)[i].Key == key {
			(*fs)[i].Value = value
			return
		}
	}
	*fs = append(*fs, Field{Key: key, Value: value})
}

// Map returns the fields as a plain map
func (fs FieldSet) Map() map[string]any {
	m := make(map[string]any, len(fs))
	for _, f := range fs {
		m[f.Key] = f.Value
	}
	return m
}

// Formula renders the fields as "key: value, key: value" in submission order
func (fs FieldSet) Formula() string {
	parts := make([]string, 0, len(fs))
	for _, f := range fs {
		parts = append(parts, f.Key+": "+FormatValue(f.Value))
	}
	return strings.Join(parts, ", ")
}

// MarshalJSON writes the fields as an object, preserving order
func (fs FieldSet) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range fs {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(f.Key)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(f.Value)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", f.Key, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads an object, preserving key order
func (fs *FieldSet) UnmarshalJSON(data []byte) error {
	var out FieldSet
	err := decodeObject(data, func(key string, value any) error {
		out.Set(key, value)
		return nil
	})
	if err != nil {
		return err
	}
	*fs = out
	return nil
}

// UnmarshalJSON splits the reserved orderId/variantId keys from the custom fields.
// Both IDs may be sent as strings or numbers.
func (s *Submission) UnmarshalJSON(data []byte) error {
	var sub Submission
	err := decodeObject(data, func(key string, value any) error {
		switch key {
		case FieldOrderID:
			id, err := idString(value)
			if err != nil {
				return fmt.Errorf("%s: %w", FieldOrderID, err)
			}
			sub.OrderID = id
		case FieldVariantID:
			id, err := idString(value)
			if err != nil {
				return fmt.Errorf("%s: %w", FieldVariantID, err)
			}
			sub.VariantID = id
		default:
			sub.Fields.Set(key, value)
		}
		return nil
	})
	if err != nil {
		return err
	}
	*s = sub
	return nil
}

// MarshalJSON is the inverse of UnmarshalJSON
func (s Submission) MarshalJSON() ([]byte, error) {
	all := make(FieldSet, 0, len(s.Fields)+2)
	all = append(all, Field{Key: FieldOrderID, Value: s.OrderID}, Field{Key: FieldVariantID, Value: s.VariantID})
	all = append(all, s.Fields...)
	return all.MarshalJSON()
}

func decodeObject(data []byte, fn func(key string, value any) error) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("expected a JSON object")
	}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("invalid JSON: %w", err)
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("invalid object key %v", keyTok)
		}
		var value any
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("invalid value for %q: %w", key, err)
		}
		if err := fn(key, value); err != nil {
			return err
		}
	}
	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return nil
}

func idString(v any) (string, error) {
	switch t := v.(type) {
	case nil:
		return "", nil
	case string:
		return strings.TrimSpace(t), nil
	case json.Number:
		return t.String(), nil
	default:
		return "", fmt.Errorf("must be a string or number")
	}
}

// FormatValue renders a decoded JSON value as plain text
func FormatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		if t {
			return "true"
		}
		return "false"
	case []any:
		parts := make([]string, len(t))
		for i, e := range t {
			parts[i] = FormatValue(e)
		}
		return strings.Join(parts, ",")
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprintf("%v", t)
		}
		return string(b)
	}
}
