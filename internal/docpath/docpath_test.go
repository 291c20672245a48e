package docpath

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDoc() map[string]any {
	return map[string]any{
		"personal": map[string]any{
			"name": "Ana",
			"age":  float64(34),
		},
		"debts_list": []any{
			map[string]any{"outstanding_brl": float64(100)},
		},
		"flag": true,
	}
}

func TestGet(t *testing.T) {
	doc := sampleDoc()

	tests := []struct {
		name string
		path string
		want any
	}{
		{"top level", "flag", true},
		{"nested", "personal.name", "Ana"},
		{"missing leaf", "personal.email", nil},
		{"missing branch", "a.b.c", nil},
		{"through scalar", "personal.name.first", nil},
		{"through slice", "debts_list.0", nil},
		{"empty path", "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Get(doc, tt.path))
		})
	}
}

func TestGet_EmptyDocument(t *testing.T) {
	assert.NotPanics(t, func() {
		assert.Nil(t, Get(map[string]any{}, "a.b.c"))
		assert.Nil(t, Get(nil, "a.b.c"))
	})
}

func TestLookup_DistinguishesNullFromAbsent(t *testing.T) {
	doc := map[string]any{"a": map[string]any{"b": nil}}

	v, ok := Lookup(doc, "a.b")
	assert.True(t, ok)
	assert.Nil(t, v)

	_, ok = Lookup(doc, "a.c")
	assert.False(t, ok)
}

func TestSet_RoundTrip(t *testing.T) {
	paths := []string{"flag", "personal.name", "personal.address.city", "x.y.z.w", "", "a..b", "items.0.name"}
	values := []any{"value", float64(42), false, nil, []any{"a"}, map[string]any{"k": "v"}}

	for _, path := range paths {
		for _, value := range values {
			got := Get(Set(sampleDoc(), path, value), path)
			assert.Equal(t, value, got, "path %q", path)
		}
	}
}

func TestSet_DoesNotMutateInput(t *testing.T) {
	doc := sampleDoc()
	before := Clone(doc)

	updated := Set(doc, "personal.name", "Bia")
	updated = Set(updated, "personal.address.city", "Recife")
	_ = Set(updated, "flag", false)

	if diff := cmp.Diff(before, doc); diff != "" {
		t.Errorf("input mutated (-before +after):\n%s", diff)
	}
}

func TestSet_SharesUntouchedBranches(t *testing.T) {
	doc := sampleDoc()
	updated := Set(doc, "personal.name", "Bia")

	// sibling slice is carried over without copying
	assert.Equal(t, doc["debts_list"], updated["debts_list"])
	assert.Equal(t, "Ana", Get(doc, "personal.name"))
	assert.Equal(t, "Bia", Get(updated, "personal.name"))
	assert.Equal(t, float64(34), Get(updated, "personal.age"))
}

func TestSet_CreatesIntermediateMaps(t *testing.T) {
	updated := Set(map[string]any{}, "a.b.c", 1)
	want := map[string]any{"a": map[string]any{"b": map[string]any{"c": 1}}}
	if diff := cmp.Diff(want, updated); diff != "" {
		t.Errorf("unexpected document (-want +got):\n%s", diff)
	}
}

func TestSet_NilDocument(t *testing.T) {
	updated := Set(nil, "a", 1)
	assert.Equal(t, map[string]any{"a": 1}, updated)
}

func TestSet_OverwritesScalarInTheWay(t *testing.T) {
	doc := map[string]any{"a": "scalar"}
	updated := Set(doc, "a.b", 1)

	assert.Equal(t, 1, Get(updated, "a.b"))
	assert.Equal(t, "scalar", doc["a"])
}

func TestSet_NumericSegmentsAreKeys(t *testing.T) {
	doc := map[string]any{"items": []any{"first"}}
	updated := Set(doc, "items.0", "x")

	assert.Equal(t, map[string]any{"0": "x"}, updated["items"])
	assert.Equal(t, []any{"first"}, doc["items"])
}

func TestSet_EmptySegments(t *testing.T) {
	updated := Set(map[string]any{}, "a..b", 1)
	want := map[string]any{"a": map[string]any{"": map[string]any{"b": 1}}}
	assert.Equal(t, want, updated)
}

func TestClone_IsDeep(t *testing.T) {
	doc := sampleDoc()
	clone := Clone(doc)

	clone["personal"].(map[string]any)["name"] = "Changed"
	clone["debts_list"].([]any)[0].(map[string]any)["outstanding_brl"] = float64(1)

	assert.Equal(t, "Ana", Get(doc, "personal.name"))
	item := doc["debts_list"].([]any)[0].(map[string]any)
	assert.Equal(t, float64(100), item["outstanding_brl"])
}

func TestClone_Nil(t *testing.T) {
	require.Nil(t, Clone(nil))
}

func TestSplit(t *testing.T) {
	assert.Equal(t, []string{""}, Split(""))
	assert.Equal(t, []string{"a", "", "b"}, Split("a..b"))
}
