package fields

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/finplan-core/internal/core/domain"
	"github.com/custodia-labs/finplan-core/internal/docpath"
)

func debtsField() *domain.FieldSchema {
	return &domain.FieldSchema{
		Key:      "debts",
		Label:    "Dívidas",
		Type:     domain.FieldTypeList,
		DataPath: "debts.debts_list",
		Options: domain.FieldOptions{
			ItemSchema: domain.ItemSchema{
				{Key: "how", Type: domain.FieldTypeText},
				{Key: "name", Type: domain.FieldTypeText},
				{Key: "outstanding_brl", Type: domain.FieldTypeCurrency},
				{Key: "is_paid_off", Type: domain.FieldTypeBoolean},
				{Key: "installment_monthly_brl", Type: domain.FieldTypeCurrency},
				{Key: "months_remaining", Type: domain.FieldTypeNumber},
				{Key: "debt_type", Type: domain.FieldTypeSelect},
			},
			ItemOptions: map[string][]string{
				"debt_type": {"Cartão", "Financiamento"},
			},
		},
	}
}

func debtsDoc() map[string]any {
	return map[string]any{
		"debts": map[string]any{
			"debts_list": []any{
				map[string]any{"name": "Carro", "outstanding_brl": float64(100)},
				map[string]any{"name": "Casa", "outstanding_brl": float64(50), "is_paid_off": true},
			},
		},
		"personal": map[string]any{"name": "Ana"},
	}
}

func TestSetItemField_TouchesOnlyOneItem(t *testing.T) {
	r := NewRenderer()
	f := debtsField()
	doc := debtsDoc()
	before := docpath.Clone(doc)

	updated, err := r.SetItemField(f, doc, 1, "outstanding_brl", "75")
	require.NoError(t, err)

	assert.Empty(t, cmp.Diff(before, doc), "input document must not change")

	items := docpath.Get(updated, "debts.debts_list").([]any)
	require.Len(t, items, 2)
	assert.Equal(t, debtsDoc()["debts"].(map[string]any)["debts_list"].([]any)[0], items[0])
	assert.Equal(t, map[string]any{"name": "Casa", "outstanding_brl": float64(75), "is_paid_off": true}, items[1])
	assert.Equal(t, doc["personal"], updated["personal"])
}

func TestSetItemField_Errors(t *testing.T) {
	r := NewRenderer()
	f := debtsField()

	_, err := r.SetItemField(f, debtsDoc(), 5, "name", "x")
	assert.ErrorIs(t, err, domain.ErrIndexOutOfRange)

	_, err = r.SetItemField(f, debtsDoc(), 0, "colour", "x")
	assert.ErrorIs(t, err, domain.ErrUnknownField)

	_, err = r.SetItemField(f, debtsDoc(), 0, "debt_type", "Consórcio")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = r.SetItemField(field("name", domain.FieldTypeText), debtsDoc(), 0, "name", "x")
	assert.ErrorIs(t, err, domain.ErrFieldTypeMismatch)
}

func TestAppendAndRemoveItem(t *testing.T) {
	r := NewRenderer()
	f := debtsField()
	doc := debtsDoc()

	appended, err := r.AppendItem(f, doc)
	require.NoError(t, err)
	items := docpath.Get(appended, "debts.debts_list").([]any)
	require.Len(t, items, 3)
	assert.Equal(t, map[string]any{}, items[2])
	assert.Len(t, docpath.Get(doc, "debts.debts_list").([]any), 2)

	removed, err := r.RemoveItem(f, appended, 0)
	require.NoError(t, err)
	items = docpath.Get(removed, "debts.debts_list").([]any)
	require.Len(t, items, 2)
	assert.Equal(t, "Casa", items[0].(map[string]any)["name"])

	_, err = r.RemoveItem(f, doc, -1)
	assert.ErrorIs(t, err, domain.ErrIndexOutOfRange)
}

func TestAppendItem_MissingList(t *testing.T) {
	r := NewRenderer()
	updated, err := r.AppendItem(debtsField(), map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, []any{map[string]any{}}, docpath.Get(updated, "debts.debts_list"))
}

func TestListHandler_Coerce(t *testing.T) {
	h := &listHandler{}
	f := debtsField()

	v, err := h.Coerce(f, []any{
		map[string]any{"name": "Carro", "outstanding_brl": "R$ 1.000,00", "extra": 1},
	})
	require.NoError(t, err)
	assert.Equal(t, []any{
		map[string]any{"name": "Carro", "outstanding_brl": float64(1000), "extra": 1},
	}, v)

	_, err = h.Coerce(f, []any{"not an item"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = h.Coerce(f, "nope")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestListItems_NonObjectEntries(t *testing.T) {
	assert.Equal(t, []any{map[string]any{}, map[string]any{"a": 1}}, listItems([]any{"x", map[string]any{"a": 1}}))
	assert.Equal(t, []any{}, listItems(nil))
}

func TestOrderedItemKeys(t *testing.T) {
	f := debtsField()

	assert.Equal(t,
		[]string{"name", "debt_type", "outstanding_brl", "is_paid_off", "installment_monthly_brl", "months_remaining", "how"},
		orderedItemKeys(f, DefaultListLayouts()))

	f.Options.FieldOrder = []string{"outstanding_brl", "missing", "name"}
	assert.Equal(t,
		[]string{"outstanding_brl", "name", "how", "is_paid_off", "installment_monthly_brl", "months_remaining", "debt_type"},
		orderedItemKeys(f, DefaultListLayouts()))

	f.Options.FieldOrder = nil
	assert.Equal(t,
		[]string{"how", "name", "outstanding_brl", "is_paid_off", "installment_monthly_brl", "months_remaining", "debt_type"},
		orderedItemKeys(f, ListLayouts{}))
}

func TestListView_Layout(t *testing.T) {
	r := NewRenderer()
	view := r.Evaluate(debtsField(), debtsDoc())

	require.NotNil(t, view.List)
	list := view.List
	assert.False(t, list.Simple)
	require.NotNil(t, list.Secondary)
	assert.Equal(t, "how", list.Secondary.Key)

	var conditional []string
	for _, c := range list.Conditional {
		conditional = append(conditional, c.Key)
	}
	assert.Equal(t, []string{"installment_monthly_brl", "months_remaining"}, conditional)

	var main []string
	for _, c := range list.Main {
		main = append(main, c.Key)
		if c.Key == "debt_type" {
			assert.Equal(t, []string{"Cartão", "Financiamento"}, c.Choices)
		}
	}
	assert.Equal(t, []string{"name", "debt_type", "outstanding_brl", "is_paid_off"}, main)

	require.Len(t, list.Rows, 2)
	assert.True(t, list.Rows[0].ShowConditional)
	assert.False(t, list.Rows[1].ShowConditional)
	assert.Equal(t, 1, list.Rows[1].Index)
}

func TestListView_Simple(t *testing.T) {
	f := &domain.FieldSchema{
		Key:      "fixed_expenses",
		Type:     domain.FieldTypeList,
		DataPath: "budget.fixed_expenses",
		Options: domain.FieldOptions{
			ItemSchema: domain.ItemSchema{
				{Key: "name", Type: domain.FieldTypeText},
				{Key: "value_monthly_brl", Type: domain.FieldTypeCurrency},
			},
		},
	}

	view := NewRenderer().Evaluate(f, map[string]any{})
	require.NotNil(t, view.List)
	assert.True(t, view.List.Simple)
	assert.Equal(t, "value_monthly_brl", view.List.ValueKey)
	assert.Len(t, view.List.Main, 2)
	assert.Empty(t, view.List.Rows)
}
