// Package normalize coerces loosely shaped API payloads into the shapes the
// collection layer works with: a slice for lists, a document or nil for a
// single entity, and a string identifier.
//
// None of the functions here return errors or panic. Input that does not
// match any known shape degrades to an empty slice or nil.
package normalize

import (
	stdjson "encoding/json"
	"math"
	"sort"
	"strconv"

	"github.com/goccy/go-json"

	"github.com/fairyhunter13/inventory-manager/internal/model"
)

// listKeys are the wrapper fields PickList probes, highest priority first.
var listKeys = []string{"data", "items", model.ResourceProducts, model.ResourceCategories}

// idKeys are the identity fields GetID probes, highest priority first.
var idKeys = []string{"id", "_id", "uuid"}

// ToArray returns v as a slice.
func ToArray(v any) []any {
	switch t := v.(type) {
	case []any:
		if t == nil {
			return []any{}
		}
		return t
	case []*model.Document:
		out := make([]any, len(t))
		for i, d := range t {
			out[i] = d
		}
		return out
	}
	if !Truthy(v) {
		return []any{}
	}
	switch t := v.(type) {
	case string:
		parsed, err := model.Decode([]byte(t))
		if err != nil {
			return []any{}
		}
		if arr, ok := parsed.([]any); ok {
			return arr
		}
		return []any{}
	case *model.Document:
		return t.Values()
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make([]any, 0, len(keys))
		for _, k := range keys {
			out = append(out, t[k])
		}
		return out
	}
	return []any{}
}

// listShape is one step of the PickList chain.
type listShape func(data any) ([]any, bool)

func bareList(data any) ([]any, bool) {
	arr, ok := data.([]any)
	return arr, ok
}

func wrappedList(key string) listShape {
	return func(data any) ([]any, bool) {
		doc, ok := data.(*model.Document)
		if !ok {
			return nil, false
		}
		v, _ := doc.Get(key)
		arr, ok := v.([]any)
		return arr, ok
	}
}

func objectValues(data any) ([]any, bool) {
	doc, ok := data.(*model.Document)
	if !ok || doc == nil {
		return nil, false
	}
	return doc.Values(), true
}

var listChain = func() []listShape {
	chain := []listShape{bareList}
	for _, k := range listKeys {
		chain = append(chain, wrappedList(k))
	}
	return append(chain, objectValues)
}()

// PickList extracts the list carried by a response. The first matching
// shape wins: a bare array, then an array under data, items, products or
// categories, then the values of an object.
func PickList(data any) []any {
	for _, shape := range listChain {
		if arr, ok := shape(data); ok {
			return arr
		}
	}
	return []any{}
}

// entityShape is one step of the PickEntity chain.
type entityShape func(data *model.Document) (*model.Document, bool)

func wrappedEntity(key string) entityShape {
	return func(data *model.Document) (*model.Document, bool) {
		v, _ := data.Get(key)
		doc, ok := v.(*model.Document)
		return doc, ok && doc != nil
	}
}

var entityChain = []entityShape{
	wrappedEntity("product"),
	wrappedEntity("category"),
	wrappedEntity("data"),
	func(data *model.Document) (*model.Document, bool) { return data, true },
}

// PickEntity extracts the single document carried by a response, unwrapping
// product, category and data envelopes in that order. Anything that is not
// an object yields nil.
func PickEntity(data any) *model.Document {
	if !Truthy(data) {
		return nil
	}
	doc, ok := data.(*model.Document)
	if !ok || doc == nil {
		return nil
	}
	for _, shape := range entityChain {
		if e, ok := shape(doc); ok {
			return e
		}
	}
	return nil
}

// GetID resolves the identity of an entity from id, _id or uuid. Fields
// holding null are skipped.
func GetID(v any) (string, bool) {
	doc, ok := v.(*model.Document)
	if !ok || doc == nil {
		return "", false
	}
	for _, k := range idKeys {
		raw, ok := doc.Get(k)
		if !ok || raw == nil {
			continue
		}
		return idString(raw), true
	}
	return "", false
}

func idString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case stdjson.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case *model.Document:
		if oid, ok := t.String("$oid"); ok {
			return oid
		}
		b, _ := t.MarshalJSON()
		return string(b)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

// Entities keeps the document elements of a list, in order.
func Entities(list []any) []*model.Document {
	out := make([]*model.Document, 0, len(list))
	for _, v := range list {
		if doc, ok := v.(*model.Document); ok && doc != nil {
			out = append(out, doc)
		}
	}
	return out
}

// Truthy reports whether v counts as present: nil, "", numeric zero and
// false do not.
func Truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case stdjson.Number:
		f, err := t.Float64()
		return err != nil || f != 0
	case int:
		return t != 0
	case int64:
		return t != 0
	case float64:
		return t != 0 && !math.IsNaN(t)
	case *model.Document:
		return t != nil
	}
	return true
}
