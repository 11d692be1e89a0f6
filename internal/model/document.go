package model

import (
	"bytes"
	stdjson "encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/goccy/go-json"
)

// Document is a JSON object that remembers the order its keys arrived in.
//
// Documents held by a collection are treated as immutable; Merge and Clone
// return new values.
type Document struct {
	keys   []string
	fields map[string]any
}

// NewDocument returns an empty document.
func NewDocument() *Document {
	return &Document{fields: make(map[string]any)}
}

// DocumentOf builds a document from alternating key, value pairs.
func DocumentOf(kv ...any) *Document {
	d := NewDocument()
	for i := 0; i+1 < len(kv); i += 2 {
		k, ok := kv[i].(string)
		if !ok {
			continue
		}
		d.Set(k, kv[i+1])
	}
	return d
}

// DocumentFromMap converts a plain map. Keys are sorted since maps carry no order.
func DocumentFromMap(m map[string]any) *Document {
	d := NewDocument()
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		d.Set(k, m[k])
	}
	return d
}

// Len returns the number of fields.
func (d *Document) Len() int {
	if d == nil {
		return 0
	}
	return len(d.keys)
}

// Keys returns the field names in order.
func (d *Document) Keys() []string {
	if d == nil {
		return nil
	}
	out := make([]string, len(d.keys))
	copy(out, d.keys)
	return out
}

// Values returns the field values in key order.
func (d *Document) Values() []any {
	if d == nil {
		return []any{}
	}
	out := make([]any, 0, len(d.keys))
	for _, k := range d.keys {
		out = append(out, d.fields[k])
	}
	return out
}

// Get returns the value stored under key.
func (d *Document) Get(key string) (any, bool) {
	if d == nil {
		return nil, false
	}
	v, ok := d.fields[key]
	return v, ok
}

// Has reports whether key is present, even with a null value.
func (d *Document) Has(key string) bool {
	_, ok := d.Get(key)
	return ok
}

// String returns the field as a string when it holds one.
func (d *Document) String(key string) (string, bool) {
	v, _ := d.Get(key)
	s, ok := v.(string)
	return s, ok
}

// Set stores a value, appending the key when it is new.
func (d *Document) Set(key string, v any) {
	if d.fields == nil {
		d.fields = make(map[string]any)
	}
	if _, ok := d.fields[key]; !ok {
		d.keys = append(d.keys, key)
	}
	d.fields[key] = v
}

// Delete removes a key.
func (d *Document) Delete(key string) {
	if d == nil {
		return
	}
	if _, ok := d.fields[key]; !ok {
		return
	}
	delete(d.fields, key)
	for i, k := range d.keys {
		if k == key {
			d.keys = append(d.keys[:i], d.keys[i+1:]...)
			break
		}
	}
}

// Clone returns a shallow copy.
func (d *Document) Clone() *Document {
	out := NewDocument()
	if d == nil {
		return out
	}
	for _, k := range d.keys {
		out.Set(k, d.fields[k])
	}
	return out
}

// Merge returns a shallow merge of d and other. Fields of other win; keys
// only present in d keep their position.
func (d *Document) Merge(other *Document) *Document {
	out := d.Clone()
	if other == nil {
		return out
	}
	for _, k := range other.keys {
		out.Set(k, other.fields[k])
	}
	return out
}

// Map returns the fields as a plain map, recursively converting nested documents.
func (d *Document) Map() map[string]any {
	out := make(map[string]any, d.Len())
	if d == nil {
		return out
	}
	for _, k := range d.keys {
		out[k] = plain(d.fields[k])
	}
	return out
}

func plain(v any) any {
	switch t := v.(type) {
	case *Document:
		return t.Map()
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = plain(e)
		}
		return out
	default:
		return v
	}
}

// MarshalJSON writes the fields in order.
func (d *Document) MarshalJSON() ([]byte, error) {
	if d == nil {
		return []byte("null"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range d.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		if err := writeValue(&buf, d.fields[k]); err != nil {
			return nil, fmt.Errorf("model: encode field %q: %w", k, err)
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func writeValue(buf *bytes.Buffer, v any) error {
	switch t := v.(type) {
	case stdjson.Number:
		if t == "" {
			buf.WriteByte('0')
			return nil
		}
		buf.WriteString(string(t))
		return nil
	case *Document:
		b, err := t.MarshalJSON()
		if err != nil {
			return err
		}
		buf.Write(b)
		return nil
	case map[string]any:
		b, err := DocumentFromMap(t).MarshalJSON()
		if err != nil {
			return err
		}
		buf.Write(b)
		return nil
	case []any:
		buf.WriteByte('[')
		for i, e := range t {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeValue(buf, e); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
		return nil
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return err
		}
		buf.Write(b)
		return nil
	}
}

// UnmarshalJSON decodes an object keeping key order.
func (d *Document) UnmarshalJSON(b []byte) error {
	v, err := Decode(b)
	if err != nil {
		return err
	}
	doc, ok := v.(*Document)
	if !ok {
		return fmt.Errorf("model: expected JSON object, got %T", v)
	}
	*d = *doc
	return nil
}

// Decode parses JSON into nil, bool, json.Number, string, []any or *Document.
// Object key order is preserved; a repeated key keeps its first position and
// its last value.
func Decode(b []byte) (any, error) {
	dec := stdjson.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	v, err := decodeValue(dec)
	if err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("model: trailing data after JSON value")
	}
	return v, nil
}

func decodeValue(dec *stdjson.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	switch t := tok.(type) {
	case stdjson.Delim:
		switch t {
		case '{':
			doc := NewDocument()
			for dec.More() {
				kt, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, ok := kt.(string)
				if !ok {
					return nil, fmt.Errorf("model: unexpected object key %v", kt)
				}
				v, err := decodeValue(dec)
				if err != nil {
					return nil, err
				}
				doc.Set(key, v)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return doc, nil
		case '[':
			arr := []any{}
			for dec.More() {
				v, err := decodeValue(dec)
				if err != nil {
					return nil, err
				}
				arr = append(arr, v)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return arr, nil
		}
		return nil, fmt.Errorf("model: unexpected delimiter %v", t)
	default:
		return tok, nil
	}
}

// Number wraps an integer as a JSON number.
func Number(n int64) stdjson.Number {
	return stdjson.Number(strconv.FormatInt(n, 10))
}
