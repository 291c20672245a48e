package fields

import (
	"fmt"
	"slices"

	"github.com/custodia-labs/finplan-core/internal/core/domain"
	"github.com/custodia-labs/finplan-core/internal/docpath"
)

const (
	itemKeyName      = "name"
	itemKeySecondary = "how"
	itemKeyPaidOff   = "is_paid_off"
)

// simpleValueKeys are the value columns of two-column "name + amount" lists
var simpleValueKeys = []string{"value_monthly_brl", "market_value_brl"}

// conditionalItemKeys only apply while an item is not paid off
var conditionalItemKeys = []string{"installment_monthly_brl", "months_remaining"}

// ListLayouts maps a list field key to its preferred column order
type ListLayouts map[string][]string

// DefaultListLayouts is the column order used for the standard intake lists
func DefaultListLayouts() ListLayouts {
	return ListLayouts{
		"debts": {
			"name", "institution", "debt_type", "outstanding_brl", "interest_rate_monthly",
			"is_paid_off", "installment_monthly_brl", "months_remaining", "how",
		},
		"assets": {
			"name", "asset_type", "market_value_brl", "liquidity", "is_financed", "how",
		},
		"investments": {
			"name", "institution", "product_type", "market_value_brl", "liquidity", "how",
		},
		"insurances": {
			"name", "insurer", "coverage_brl", "premium_monthly_brl", "beneficiary", "how",
		},
		"dependents": {
			"name", "relationship", "birth_date", "is_financially_dependent",
		},
	}
}

// listHandler stores a sequence of item maps shaped by options.itemSchema
type listHandler struct{}

func (h *listHandler) Type() domain.FieldType { return domain.FieldTypeList }

func (h *listHandler) Read(field *domain.FieldSchema, doc map[string]any) any {
	return listItems(docpath.Get(doc, field.DataPath))
}

func (h *listHandler) Coerce(field *domain.FieldSchema, input any) (any, error) {
	var raw []any
	switch v := input.(type) {
	case nil:
		return []any{}, nil
	case []any:
		raw = v
	case []map[string]any:
		for _, item := range v {
			raw = append(raw, item)
		}
	default:
		return nil, invalid(field, "expected a list of items, got %T", input)
	}

	out := make([]any, len(raw))
	for i, entry := range raw {
		item, ok := entry.(map[string]any)
		if !ok {
			return nil, invalid(field, "item %d is not an object", i)
		}
		coerced := make(map[string]any, len(item))
		for key, value := range item {
			if _, known := field.Options.ItemSchema.Lookup(key); !known {
				coerced[key] = value
				continue
			}
			v, err := coerceItemValue(field, key, value)
			if err != nil {
				return nil, fmt.Errorf("item %d: %w", i, err)
			}
			coerced[key] = v
		}
		out[i] = coerced
	}
	return out, nil
}

// listItems reads a stored list. Entries that are not objects read as empty items.
func listItems(v any) []any {
	items := []any{}
	raw, ok := v.([]any)
	if !ok {
		return items
	}
	for _, entry := range raw {
		if item, ok := entry.(map[string]any); ok {
			items = append(items, item)
		} else {
			items = append(items, map[string]any{})
		}
	}
	return items
}

// coerceItemValue converts one item-field edit according to its item type
func coerceItemValue(field *domain.FieldSchema, key string, input any) (any, error) {
	itemType, known := field.Options.ItemSchema.Lookup(key)
	if !known {
		if len(field.Options.ItemSchema) > 0 {
			return nil, fmt.Errorf("%w: %q has no item field %q", domain.ErrUnknownField, field.Key, key)
		}
		return input, nil
	}

	itemField := &domain.FieldSchema{
		Key:     field.Key + "." + key,
		Type:    itemType,
		Options: domain.FieldOptions{Items: field.Options.ItemOptions[key]},
	}
	switch itemType {
	case domain.FieldTypeText, domain.FieldTypeDate:
		return (&textHandler{fieldType: itemType}).Coerce(itemField, input)
	case domain.FieldTypeNumber, domain.FieldTypeCurrency:
		return (&numberHandler{fieldType: itemType}).Coerce(itemField, input)
	case domain.FieldTypeBoolean:
		return (&booleanHandler{}).Coerce(itemField, input)
	case domain.FieldTypeSelect:
		if len(itemField.Options.Items) == 0 {
			return (&textHandler{fieldType: itemType}).Coerce(itemField, input)
		}
		return (&selectHandler{}).Coerce(itemField, input)
	default:
		return input, nil
	}
}

// appendItem returns a new list with an empty item at the end
func appendItem(items []any) []any {
	out := make([]any, len(items), len(items)+1)
	copy(out, items)
	return append(out, map[string]any{})
}

// removeItem returns a new list without the item at index
func removeItem(items []any, index int) ([]any, error) {
	if index < 0 || index >= len(items) {
		return nil, fmt.Errorf("%w: %d of %d", domain.ErrIndexOutOfRange, index, len(items))
	}
	out := make([]any, 0, len(items)-1)
	out = append(out, items[:index]...)
	return append(out, items[index+1:]...), nil
}

// setItemValue returns a new list where only key of the item at index differs
func setItemValue(items []any, index int, key string, value any) ([]any, error) {
	if index < 0 || index >= len(items) {
		return nil, fmt.Errorf("%w: %d of %d", domain.ErrIndexOutOfRange, index, len(items))
	}
	current, _ := items[index].(map[string]any)
	item := make(map[string]any, len(current)+1)
	for k, v := range current {
		item[k] = v
	}
	item[key] = value

	out := make([]any, len(items))
	copy(out, items)
	out[index] = item
	return out, nil
}

// ListColumn is one item field of a list
type ListColumn struct {
	Key     string           `json:"key"`
	Type    domain.FieldType `json:"type"`
	Choices []string         `json:"choices,omitempty"`
}

// ListRow is one item of a list with its row-level display state
type ListRow struct {
	Index           int            `json:"index"`
	Values          map[string]any `json:"values"`
	ShowConditional bool           `json:"show_conditional"`
}

// ListView is the layout and rows of a list field
type ListView struct {
	// Simple lists are rendered as a name input plus one currency input per row
	Simple      bool         `json:"simple"`
	ValueKey    string       `json:"value_key,omitempty"`
	Main        []ListColumn `json:"main"`
	Secondary   *ListColumn  `json:"secondary,omitempty"`
	Conditional []ListColumn `json:"conditional,omitempty"`
	Rows        []ListRow    `json:"rows"`
}

// isSimpleList reports whether schema has exactly a name and one known value key
func isSimpleList(schema domain.ItemSchema) (string, bool) {
	if len(schema) != 2 {
		return "", false
	}
	if _, ok := schema.Lookup(itemKeyName); !ok {
		return "", false
	}
	for _, f := range schema {
		if f.Key != itemKeyName && slices.Contains(simpleValueKeys, f.Key) {
			return f.Key, true
		}
	}
	return "", false
}

// orderedItemKeys applies fieldOrder, then the layout table, then schema order.
// Keys absent from the schema are dropped; schema keys missing from the order are appended.
func orderedItemKeys(field *domain.FieldSchema, layouts ListLayouts) []string {
	order := field.Options.FieldOrder
	if len(order) == 0 {
		order = layouts[field.Key]
	}

	schema := field.Options.ItemSchema
	keys := make([]string, 0, len(schema))
	for _, key := range order {
		if _, ok := schema.Lookup(key); ok && !slices.Contains(keys, key) {
			keys = append(keys, key)
		}
	}
	for _, f := range schema {
		if !slices.Contains(keys, f.Key) {
			keys = append(keys, f.Key)
		}
	}
	return keys
}

func listView(field *domain.FieldSchema, items []any, layouts ListLayouts) *ListView {
	view := &ListView{
		Main: []ListColumn{},
		Rows: make([]ListRow, 0, len(items)),
	}

	column := func(key string) ListColumn {
		t, _ := field.Options.ItemSchema.Lookup(key)
		return ListColumn{Key: key, Type: t, Choices: field.Options.ItemOptions[key]}
	}

	if valueKey, ok := isSimpleList(field.Options.ItemSchema); ok {
		view.Simple = true
		view.ValueKey = valueKey
		view.Main = append(view.Main, column(itemKeyName), column(valueKey))
	} else {
		for _, key := range orderedItemKeys(field, layouts) {
			switch {
			case key == itemKeySecondary:
				c := column(key)
				view.Secondary = &c
			case slices.Contains(conditionalItemKeys, key):
				view.Conditional = append(view.Conditional, column(key))
			default:
				view.Main = append(view.Main, column(key))
			}
		}
	}

	for i, entry := range items {
		item, _ := entry.(map[string]any)
		view.Rows = append(view.Rows, ListRow{
			Index:           i,
			Values:          item,
			ShowConditional: !truthy(item[itemKeyPaidOff]),
		})
	}
	return view
}
