package fields

import (
	"slices"

	"github.com/custodia-labs/finplan-core/internal/core/domain"
	"github.com/custodia-labs/finplan-core/internal/docpath"
)

// selectHandler stores one of options.items, or "" when unset
type selectHandler struct{}

func (h *selectHandler) Type() domain.FieldType { return domain.FieldTypeSelect }

func (h *selectHandler) Read(field *domain.FieldSchema, doc map[string]any) any {
	s, _ := docpath.Get(doc, field.DataPath).(string)
	return s
}

func (h *selectHandler) Coerce(field *domain.FieldSchema, input any) (any, error) {
	s, ok := stringInput(input)
	if !ok {
		return nil, invalid(field, "expected text, got %T", input)
	}
	if s != "" && !slices.Contains(field.Options.Items, s) {
		return nil, invalid(field, "%q is not an available choice", s)
	}
	return s, nil
}

// searchableSelectHandler is a select that also accepts free text.
// Structured input {"selection": ..., "text": ...} mirrors the two controls of the UI:
// choosing the sentinel keeps the typed text, or the sentinel itself when the text is empty.
type searchableSelectHandler struct{}

func (h *searchableSelectHandler) Type() domain.FieldType {
	return domain.FieldTypeSearchableSelect
}

func (h *searchableSelectHandler) Read(field *domain.FieldSchema, doc map[string]any) any {
	s, _ := docpath.Get(doc, field.DataPath).(string)
	return s
}

func (h *searchableSelectHandler) Coerce(field *domain.FieldSchema, input any) (any, error) {
	if m, ok := input.(map[string]any); ok {
		selection, _ := m["selection"].(string)
		text, _ := m["text"].(string)
		if selection == domain.SearchableSelectOther {
			if text == "" {
				return domain.SearchableSelectOther, nil
			}
			return text, nil
		}
		return selection, nil
	}
	s, ok := stringInput(input)
	if !ok {
		return nil, invalid(field, "expected text, got %T", input)
	}
	return s, nil
}

// CustomChoice describes the free-text state of a searchable select
type CustomChoice struct {
	Selection string `json:"selection"`
	Text      string `json:"text"`
}

// customChoice returns the free-text state for value, or nil when value is a listed
// choice, the sentinel itself, or empty
func customChoice(field *domain.FieldSchema, value string) *CustomChoice {
	if value == "" || value == domain.SearchableSelectOther || slices.Contains(field.Options.Items, value) {
		return nil
	}
	return &CustomChoice{Selection: domain.SearchableSelectOther, Text: value}
}

// multiSelectHandler stores an ordered, duplicate-free sequence of strings
type multiSelectHandler struct{}

func (h *multiSelectHandler) Type() domain.FieldType { return domain.FieldTypeMultiSelect }

func (h *multiSelectHandler) Read(field *domain.FieldSchema, doc map[string]any) any {
	return selectedItems(docpath.Get(doc, field.DataPath))
}

func (h *multiSelectHandler) Coerce(field *domain.FieldSchema, input any) (any, error) {
	var items []string
	switch v := input.(type) {
	case nil:
	case []string:
		items = v
	case []any:
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, invalid(field, "expected text items, got %T", item)
			}
			items = append(items, s)
		}
	default:
		return nil, invalid(field, "expected a list of choices, got %T", input)
	}

	out := make([]any, 0, len(items))
	seen := make(map[string]bool, len(items))
	for _, item := range items {
		if seen[item] {
			continue
		}
		if len(field.Options.Items) > 0 && !slices.Contains(field.Options.Items, item) {
			return nil, invalid(field, "%q is not an available choice", item)
		}
		seen[item] = true
		out = append(out, item)
	}
	return out, nil
}

// selectedItems reads a stored multi-select value, skipping non-string entries
func selectedItems(v any) []string {
	selected := []string{}
	switch t := v.(type) {
	case []any:
		for _, item := range t {
			if s, ok := item.(string); ok {
				selected = append(selected, s)
			}
		}
	case []string:
		selected = append(selected, t...)
	}
	return selected
}

// availableItems returns the choices not yet selected, in option order
func availableItems(field *domain.FieldSchema, selected []string) []string {
	available := []string{}
	for _, item := range field.Options.Items {
		if !slices.Contains(selected, item) {
			available = append(available, item)
		}
	}
	return available
}

func stringInput(input any) (string, bool) {
	switch v := input.(type) {
	case nil:
		return "", true
	case string:
		return v, true
	}
	return "", false
}
