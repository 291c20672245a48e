package fields

import (
	"fmt"
	"slices"

	"github.com/custodia-labs/finplan-core/internal/core/domain"
	"github.com/custodia-labs/finplan-core/internal/docpath"
)

// FieldView is the evaluated state of one field: what the editor shows and allows
type FieldView struct {
	Key         string           `json:"key"`
	Label       string           `json:"label"`
	Type        domain.FieldType `json:"field_type"`
	DataPath    string           `json:"data_path"`
	Required    bool             `json:"is_required"`
	Description string           `json:"description,omitempty"`
	Placeholder string           `json:"placeholder,omitempty"`
	Visible     bool             `json:"visible"`
	ReadOnly    bool             `json:"read_only"`
	Value       any              `json:"value"`

	// Display is the formatted value of currency and computed fields
	Display string `json:"display,omitempty"`
	// Choices are the options offered by the picker; for multi_select only unselected items
	Choices []string `json:"choices,omitempty"`
	// Custom is set when a searchable select holds free text
	Custom *CustomChoice `json:"custom,omitempty"`
	// List is the layout and rows of a list field
	List *ListView `json:"list,omitempty"`
}

// Renderer evaluates fields and writes edits back into documents.
// It holds only read-only configuration and is safe for concurrent use.
type Renderer struct {
	registry *Registry
	layouts  ListLayouts
}

// Option configures a Renderer
type Option func(*Renderer)

// WithRegistry replaces the default handler registry
func WithRegistry(registry *Registry) Option {
	return func(r *Renderer) {
		r.registry = registry
	}
}

// WithListLayouts replaces the default list column order table
func WithListLayouts(layouts ListLayouts) Option {
	return func(r *Renderer) {
		r.layouts = layouts
	}
}

// NewRenderer creates a renderer with the default registry and list layouts
func NewRenderer(opts ...Option) *Renderer {
	r := &Renderer{
		registry: DefaultRegistry(),
		layouts:  DefaultListLayouts(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Renderer) handler(field *domain.FieldSchema) (Handler, error) {
	h := r.registry.Get(field.Type)
	if h == nil {
		return nil, fmt.Errorf("%w: field %q has unsupported type %q", domain.ErrInvalidInput, field.Key, field.Type)
	}
	return h, nil
}

// Evaluate builds the view of field for doc. Unknown field types evaluate to the
// raw stored value so that forms stay usable with newer schemas.
func (r *Renderer) Evaluate(field *domain.FieldSchema, doc map[string]any) FieldView {
	view := FieldView{
		Key:         field.Key,
		Label:       field.Label,
		Type:        field.Type,
		DataPath:    field.DataPath,
		Required:    field.Required,
		Description: field.Description,
		Placeholder: field.Placeholder,
		Visible:     Visible(field, doc),
	}

	h, err := r.handler(field)
	if err != nil {
		view.Value = docpath.Get(doc, field.DataPath)
		view.ReadOnly = true
		return view
	}
	view.Value = h.Read(field, doc)

	switch field.Type {
	case domain.FieldTypeCurrency:
		if f, ok := view.Value.(float64); ok {
			view.Display = FormatBRL(f)
		}
	case domain.FieldTypeComputed:
		view.ReadOnly = true
		if f, ok := view.Value.(float64); ok {
			view.Display = FormatBRL(f)
		}
	case domain.FieldTypeSelect:
		view.Choices = field.Options.Items
	case domain.FieldTypeSearchableSelect:
		view.Choices = field.Options.Items
		s, _ := view.Value.(string)
		view.Custom = customChoice(field, s)
	case domain.FieldTypeMultiSelect:
		selected, _ := view.Value.([]string)
		view.Choices = availableItems(field, selected)
	case domain.FieldTypeList:
		items, _ := view.Value.([]any)
		view.List = listView(field, items, r.layouts)
	}
	return view
}

// Apply coerces input for field and returns a new document with it stored at the
// field's data path. doc is not modified.
func (r *Renderer) Apply(field *domain.FieldSchema, doc map[string]any, input any) (map[string]any, error) {
	h, err := r.handler(field)
	if err != nil {
		return nil, err
	}
	value, err := h.Coerce(field, input)
	if err != nil {
		return nil, err
	}
	return docpath.Set(doc, field.DataPath, value), nil
}

func (r *Renderer) currentList(field *domain.FieldSchema, doc map[string]any) ([]any, error) {
	if field.Type != domain.FieldTypeList {
		return nil, fmt.Errorf("%w: %q is %s, not list", domain.ErrFieldTypeMismatch, field.Key, field.Type)
	}
	return listItems(docpath.Get(doc, field.DataPath)), nil
}

// AppendItem adds an empty item to a list field
func (r *Renderer) AppendItem(field *domain.FieldSchema, doc map[string]any) (map[string]any, error) {
	items, err := r.currentList(field, doc)
	if err != nil {
		return nil, err
	}
	return docpath.Set(doc, field.DataPath, appendItem(items)), nil
}

// RemoveItem deletes the item at index from a list field
func (r *Renderer) RemoveItem(field *domain.FieldSchema, doc map[string]any, index int) (map[string]any, error) {
	items, err := r.currentList(field, doc)
	if err != nil {
		return nil, err
	}
	updated, err := removeItem(items, index)
	if err != nil {
		return nil, err
	}
	return docpath.Set(doc, field.DataPath, updated), nil
}

// SetItemField replaces one key of one list item. The result differs from doc
// only at that item and key.
func (r *Renderer) SetItemField(field *domain.FieldSchema, doc map[string]any, index int, key string, input any) (map[string]any, error) {
	items, err := r.currentList(field, doc)
	if err != nil {
		return nil, err
	}
	value, err := coerceItemValue(field, key, input)
	if err != nil {
		return nil, err
	}
	updated, err := setItemValue(items, index, key, value)
	if err != nil {
		return nil, err
	}
	return docpath.Set(doc, field.DataPath, updated), nil
}

func (r *Renderer) currentSelection(field *domain.FieldSchema, doc map[string]any) ([]string, error) {
	if field.Type != domain.FieldTypeMultiSelect {
		return nil, fmt.Errorf("%w: %q is %s, not multi_select", domain.ErrFieldTypeMismatch, field.Key, field.Type)
	}
	return selectedItems(docpath.Get(doc, field.DataPath)), nil
}

// AddOption appends item to a multi-select field unless it is already selected
func (r *Renderer) AddOption(field *domain.FieldSchema, doc map[string]any, item string) (map[string]any, error) {
	selected, err := r.currentSelection(field, doc)
	if err != nil {
		return nil, err
	}
	if slices.Contains(selected, item) {
		return doc, nil
	}
	return r.Apply(field, doc, append(selected, item))
}

// RemoveOption removes item from a multi-select field by exact match
func (r *Renderer) RemoveOption(field *domain.FieldSchema, doc map[string]any, item string) (map[string]any, error) {
	selected, err := r.currentSelection(field, doc)
	if err != nil {
		return nil, err
	}
	kept := make([]any, 0, len(selected))
	for _, s := range selected {
		if s != item {
			kept = append(kept, s)
		}
	}
	return docpath.Set(doc, field.DataPath, kept), nil
}
