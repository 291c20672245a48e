package domain

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// FieldType identifies how a field is edited, coerced and displayed
type FieldType string

const (
	FieldTypeText             FieldType = "text"
	FieldTypeNumber           FieldType = "number"
	FieldTypeCurrency         FieldType = "currency"
	FieldTypeTextarea         FieldType = "textarea"
	FieldTypeBoolean          FieldType = "boolean"
	FieldTypeSelect           FieldType = "select"
	FieldTypeSearchableSelect FieldType = "searchable_select"
	FieldTypeMultiSelect      FieldType = "multi_select"
	FieldTypeDate             FieldType = "date"
	FieldTypeComputed         FieldType = "computed"
	FieldTypeList             FieldType = "list"
)

// FieldTypes lists every supported field type in declaration order
var FieldTypes = []FieldType{
	FieldTypeText,
	FieldTypeNumber,
	FieldTypeCurrency,
	FieldTypeTextarea,
	FieldTypeBoolean,
	FieldTypeSelect,
	FieldTypeSearchableSelect,
	FieldTypeMultiSelect,
	FieldTypeDate,
	FieldTypeComputed,
	FieldTypeList,
}

// IsValid reports whether t is a known field type
func (t FieldType) IsValid() bool {
	for _, known := range FieldTypes {
		if t == known {
			return true
		}
	}
	return false
}

// IsItemType reports whether t may be used for a field inside a list item
func (t FieldType) IsItemType() bool {
	switch t {
	case FieldTypeText, FieldTypeNumber, FieldTypeCurrency, FieldTypeBoolean, FieldTypeSelect, FieldTypeDate:
		return true
	}
	return false
}

const (
	// NotesSectionKey is the reserved section rendered in the side panel.
	// It is excluded from the tab navigator and from the main progress figure.
	NotesSectionKey = "notes"

	// SourceTypeListSum makes a computed field sum one key across a list field's items
	SourceTypeListSum = "list_sum"

	// SearchableSelectOther is the sentinel choice that opens the free-text box
	SearchableSelectOther = "Outros"
)

// Condition makes a field visible only when the document value at Field equals Value
type Condition struct {
	Field string `json:"field" yaml:"field"`
	Value any    `json:"value" yaml:"value"`
}

// ItemField is one column of a list item
type ItemField struct {
	Key  string    `json:"key" yaml:"key"`
	Type FieldType `json:"type" yaml:"type"`
}

// ItemSchema maps item-field keys to item-field types, keeping declaration order.
// It is encoded as a plain object: {"name": "text", "value_monthly_brl": "currency"}.
type ItemSchema []ItemField

// Keys returns the item keys in declaration order
func (s ItemSchema) Keys() []string {
	keys := make([]string, len(s))
	for i, f := range s {
		keys[i] = f.Key
	}
	return keys
}

// Lookup returns the type declared for key
func (s ItemSchema) Lookup(key string) (FieldType, bool) {
	for _, f := range s {
		if f.Key == key {
			return f.Type, true
		}
	}
	return "", false
}

// MarshalJSON encodes the schema as an object in declaration order
func (s ItemSchema) MarshalJSON() ([]byte, error) {
	if s == nil {
		return []byte("null"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range s {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(f.Key)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		typ, err := json.Marshal(string(f.Type))
		if err != nil {
			return nil, err
		}
		buf.Write(typ)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes an object while keeping key order
func (s *ItemSchema) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*s = nil
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("itemSchema: expected object, got %v", tok)
	}

	fields := ItemSchema{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("itemSchema: expected key, got %v", keyTok)
		}
		var typ string
		if err := dec.Decode(&typ); err != nil {
			return fmt.Errorf("itemSchema %q: %w", key, err)
		}
		fields = append(fields, ItemField{Key: key, Type: FieldType(typ)})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*s = fields
	return nil
}

// UnmarshalYAML decodes a mapping node while keeping key order
func (s *ItemSchema) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("itemSchema: expected mapping at line %d", node.Line)
	}
	fields := make(ItemSchema, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		fields = append(fields, ItemField{
			Key:  node.Content[i].Value,
			Type: FieldType(node.Content[i+1].Value),
		})
	}
	*s = fields
	return nil
}

// FieldOptions is the type-specific option bag of a field
type FieldOptions struct {
	// Items are the choices of select, searchable_select and multi_select fields
	Items []string `json:"items,omitempty" yaml:"items,omitempty"`

	// ItemSchema describes list items
	ItemSchema ItemSchema `json:"itemSchema,omitempty" yaml:"itemSchema,omitempty"`
	// FieldOrder overrides the column order of list items
	FieldOrder []string `json:"fieldOrder,omitempty" yaml:"fieldOrder,omitempty"`
	// ItemOptions holds the choices of select columns inside list items
	ItemOptions map[string][]string `json:"itemOptions,omitempty" yaml:"itemOptions,omitempty"`

	// SourceFields are the data paths summed by a default computed field
	SourceFields []string `json:"sourceFields,omitempty" yaml:"sourceFields,omitempty"`
	// SourceType selects the computed mode; "list_sum" or empty
	SourceType string `json:"sourceType,omitempty" yaml:"sourceType,omitempty"`
	// SourceField is the list data path summed in list_sum mode
	SourceField string `json:"sourceField,omitempty" yaml:"sourceField,omitempty"`
	// SumKey is the item key summed in list_sum mode
	SumKey string `json:"sumKey,omitempty" yaml:"sumKey,omitempty"`
}

// FieldSchema declares one form field
type FieldSchema struct {
	ID            string       `json:"id" yaml:"id"`
	Key           string       `json:"key" yaml:"key"`
	Label         string       `json:"label" yaml:"label"`
	Type          FieldType    `json:"field_type" yaml:"field_type"`
	DataPath      string       `json:"data_path" yaml:"data_path"`
	Required      bool         `json:"is_required" yaml:"is_required"`
	Description   string       `json:"description,omitempty" yaml:"description,omitempty"`
	Placeholder   string       `json:"placeholder,omitempty" yaml:"placeholder,omitempty"`
	DefaultValue  any          `json:"default_value,omitempty" yaml:"default_value,omitempty"`
	ConditionalOn *Condition   `json:"conditional_on,omitempty" yaml:"conditional_on,omitempty"`
	Options       FieldOptions `json:"options" yaml:"options"`
}

// SectionSchema is an ordered group of fields
type SectionSchema struct {
	ID          string         `json:"id" yaml:"id"`
	Key         string         `json:"key" yaml:"key"`
	Title       string         `json:"title" yaml:"title"`
	Description string         `json:"description,omitempty" yaml:"description,omitempty"`
	Fields      []*FieldSchema `json:"fields" yaml:"fields"`
}

// IsNotes reports whether this is the reserved side-panel section
func (s *SectionSchema) IsNotes() bool {
	return s.Key == NotesSectionKey
}

// FormSchema is the ordered list of sections making up a data-collection form.
// It is loaded once and treated as read-only afterwards.
type FormSchema struct {
	Version  string           `json:"version,omitempty" yaml:"version,omitempty"`
	Sections []*SectionSchema `json:"sections" yaml:"sections"`
}

// AllFields flattens every section, notes included, in declaration order
func (f *FormSchema) AllFields() []*FieldSchema {
	var fields []*FieldSchema
	for _, section := range f.Sections {
		if section == nil {
			continue
		}
		for _, field := range section.Fields {
			if field != nil {
				fields = append(fields, field)
			}
		}
	}
	return fields
}

// MainSections returns the sections shown in the tab navigator
func (f *FormSchema) MainSections() []*SectionSchema {
	sections := make([]*SectionSchema, 0, len(f.Sections))
	for _, section := range f.Sections {
		if section != nil && !section.IsNotes() {
			sections = append(sections, section)
		}
	}
	return sections
}

// NotesSection returns the side-panel section, or nil when the form has none
func (f *FormSchema) NotesSection() *SectionSchema {
	for _, section := range f.Sections {
		if section != nil && section.IsNotes() {
			return section
		}
	}
	return nil
}

// Section looks up a section by key
func (f *FormSchema) Section(key string) (*SectionSchema, bool) {
	for _, section := range f.Sections {
		if section != nil && section.Key == key {
			return section, true
		}
	}
	return nil, false
}

// Field looks up a field by key across all sections
func (f *FormSchema) Field(key string) (*FieldSchema, bool) {
	for _, field := range f.AllFields() {
		if field.Key == key {
			return field, true
		}
	}
	return nil, false
}

// ListFieldsWithDefaults returns list fields that declare a default value
func (f *FormSchema) ListFieldsWithDefaults() []*FieldSchema {
	var fields []*FieldSchema
	for _, field := range f.AllFields() {
		if field.Type == FieldTypeList && field.DefaultValue != nil {
			fields = append(fields, field)
		}
	}
	return fields
}
