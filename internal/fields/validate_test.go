package fields

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/custodia-labs/finplan-core/internal/core/domain"
)

func required(key string) *domain.FieldSchema {
	f := field(key, domain.FieldTypeText)
	f.Required = true
	return f
}

func TestValidate(t *testing.T) {
	fields := []*domain.FieldSchema{
		required("a"), required("b"), required("c"), required("d"), required("e"),
		field("optional", domain.FieldTypeText),
	}
	doc := map[string]any{
		"section": map[string]any{
			"a": "x",
			"b": false,
			"c": float64(0),
			"d": "",
			"e": nil,
		},
	}

	result := Validate(doc, fields)
	assert.False(t, result.IsValid)
	assert.Equal(t, 5, result.TotalRequiredFields)
	assert.Equal(t, 3, result.CompletedRequiredFields)
	assert.Equal(t, []string{"d", "e"}, result.MissingFields)
}

func TestValidate_AllFilled(t *testing.T) {
	fields := []*domain.FieldSchema{required("a"), required("list")}
	doc := map[string]any{"section": map[string]any{"a": "x", "list": []any{}}}

	result := Validate(doc, fields)
	assert.True(t, result.IsValid)
	assert.Empty(t, result.MissingFields)
	assert.Equal(t, 1.0, result.CompletionRatio())
}

func TestValidate_NoRequiredFields(t *testing.T) {
	result := Validate(nil, []*domain.FieldSchema{field("a", domain.FieldTypeText)})
	assert.True(t, result.IsValid)
	assert.Zero(t, result.TotalRequiredFields)
}

func TestValidate_CountsHiddenFields(t *testing.T) {
	hidden := required("referral_name")
	hidden.ConditionalOn = &domain.Condition{Field: "section.source", Value: "Indicação"}

	result := Validate(map[string]any{}, []*domain.FieldSchema{hidden})
	assert.False(t, result.IsValid)
	assert.Equal(t, []string{"referral_name"}, result.MissingFields)
}
