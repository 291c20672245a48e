package fields

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/finplan-core/internal/core/domain"
)

func TestSelectHandler_Coerce(t *testing.T) {
	h := &selectHandler{}
	f := field("marital_status", domain.FieldTypeSelect)
	f.Options.Items = []string{"Solteiro(a)", "Casado(a)"}

	v, err := h.Coerce(f, "Casado(a)")
	require.NoError(t, err)
	assert.Equal(t, "Casado(a)", v)

	v, err = h.Coerce(f, "")
	require.NoError(t, err)
	assert.Equal(t, "", v)

	_, err = h.Coerce(f, "Viúvo(a)")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestSearchableSelectHandler_Coerce(t *testing.T) {
	h := &searchableSelectHandler{}
	f := field("profession", domain.FieldTypeSearchableSelect)
	f.Options.Items = []string{"Médico(a)", "Engenheiro(a)", domain.SearchableSelectOther}

	tests := []struct {
		name  string
		input any
		want  string
	}{
		{"listed choice", "Médico(a)", "Médico(a)"},
		{"free text as string", "Astronauta", "Astronauta"},
		{"selection", map[string]any{"selection": "Engenheiro(a)"}, "Engenheiro(a)"},
		{"other with text", map[string]any{"selection": domain.SearchableSelectOther, "text": "Piloto"}, "Piloto"},
		{"other without text", map[string]any{"selection": domain.SearchableSelectOther, "text": ""}, domain.SearchableSelectOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := h.Coerce(f, tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCustomChoice(t *testing.T) {
	f := field("profession", domain.FieldTypeSearchableSelect)
	f.Options.Items = []string{"Médico(a)"}

	assert.Nil(t, customChoice(f, ""))
	assert.Nil(t, customChoice(f, "Médico(a)"))
	assert.Nil(t, customChoice(f, domain.SearchableSelectOther))
	assert.Equal(t, &CustomChoice{Selection: domain.SearchableSelectOther, Text: "Piloto"}, customChoice(f, "Piloto"))
}

func TestMultiSelectHandler_Coerce(t *testing.T) {
	h := &multiSelectHandler{}
	f := field("goals", domain.FieldTypeMultiSelect)
	f.Options.Items = []string{"Aposentadoria", "Viagem", "Imóvel"}

	v, err := h.Coerce(f, []any{"Viagem", "Aposentadoria", "Viagem"})
	require.NoError(t, err)
	assert.Equal(t, []any{"Viagem", "Aposentadoria"}, v)

	v, err = h.Coerce(f, nil)
	require.NoError(t, err)
	assert.Equal(t, []any{}, v)

	_, err = h.Coerce(f, []string{"Barco"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = h.Coerce(f, []any{1})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestMultiSelect_ReadSkipsNonStrings(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, selectedItems([]any{"a", 3, "b"}))
	assert.Equal(t, []string{}, selectedItems("a"))
}

func TestAvailableItems(t *testing.T) {
	f := field("goals", domain.FieldTypeMultiSelect)
	f.Options.Items = []string{"A", "B", "C"}

	assert.Equal(t, []string{"A", "C"}, availableItems(f, []string{"B"}))
	assert.Equal(t, []string{}, availableItems(f, []string{"A", "B", "C"}))
}
