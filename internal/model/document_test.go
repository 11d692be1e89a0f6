package model

import (
	stdjson "encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeKeepsKeyOrder(t *testing.T) {
	v, err := Decode([]byte(`{"b":1,"a":"x","c":[true,null,{"z":2,"y":3}]}`))
	require.NoError(t, err)
	doc, ok := v.(*Document)
	require.True(t, ok)
	assert.Equal(t, []string{"b", "a", "c"}, doc.Keys())
	assert.Equal(t, []any{stdjson.Number("1"), "x", []any{true, nil, DocumentOf("z", stdjson.Number("2"), "y", stdjson.Number("3"))}}, doc.Values())
}

func TestDecodeRejectsTrailingData(t *testing.T) {
	_, err := Decode([]byte(`[1] [2]`))
	require.Error(t, err)
	_, err = Decode([]byte(`{"a":`))
	require.Error(t, err)
	_, err = Decode(nil)
	require.Error(t, err)
}

func TestDecodeRepeatedKey(t *testing.T) {
	v, err := Decode([]byte(`{"a":1,"b":2,"a":3}`))
	require.NoError(t, err)
	doc := v.(*Document)
	assert.Equal(t, []string{"a", "b"}, doc.Keys())
	got, _ := doc.Get("a")
	assert.Equal(t, stdjson.Number("3"), got)
}

func TestMarshalRoundTripOrder(t *testing.T) {
	in := `{"z":1,"_id":"x1","nested":{"b":[1,2.5],"a":null},"ok":false}`
	var doc Document
	require.NoError(t, doc.UnmarshalJSON([]byte(in)))
	out, err := doc.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, in, string(out))
}

func TestUnmarshalRejectsNonObject(t *testing.T) {
	var doc Document
	require.Error(t, doc.UnmarshalJSON([]byte(`[1]`)))
}

func TestMergeOverridesAndPreserves(t *testing.T) {
	prev := DocumentOf("_id", "x1", "name", "Widget", "qty", Number(5))
	upd := DocumentOf("_id", "x1", "qty", Number(9), "color", "red")
	merged := prev.Merge(upd)

	assert.Equal(t, []string{"_id", "name", "qty", "color"}, merged.Keys())
	qty, _ := merged.Get("qty")
	assert.Equal(t, Number(9), qty)
	name, _ := merged.String("name")
	assert.Equal(t, "Widget", name)

	old, _ := prev.Get("qty")
	assert.Equal(t, Number(5), old, "merge must not touch the receiver")
}

func TestDeleteAndMap(t *testing.T) {
	d := DocumentOf("a", 1, "b", DocumentOf("c", 2), "d", 3)
	d.Delete("a")
	d.Delete("missing")
	assert.Equal(t, []string{"b", "d"}, d.Keys())
	assert.Equal(t, map[string]any{"b": map[string]any{"c": 2}, "d": 3}, d.Map())
}

func TestDocumentFromMapSortsKeys(t *testing.T) {
	d := DocumentFromMap(map[string]any{"b": 2, "a": 1})
	assert.Equal(t, []string{"a", "b"}, d.Keys())
}

func TestChangeEventKey(t *testing.T) {
	ev := ChangeEvent{Resource: ResourceProducts, ID: "p1"}
	assert.Equal(t, "products/p1", ev.Key())
}
