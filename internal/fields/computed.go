package fields

import (
	"github.com/custodia-labs/finplan-core/internal/core/domain"
	"github.com/custodia-labs/finplan-core/internal/docpath"
)

// computedHandler derives a read-only number from other parts of the document
type computedHandler struct{}

func (h *computedHandler) Type() domain.FieldType { return domain.FieldTypeComputed }

func (h *computedHandler) Read(field *domain.FieldSchema, doc map[string]any) any {
	return Compute(field, doc)
}

func (h *computedHandler) Coerce(field *domain.FieldSchema, input any) (any, error) {
	return nil, domain.ErrReadOnlyField
}

// Compute evaluates a computed field against the whole document.
//
// With sourceType "list_sum" it sums sumKey across the items of the list at
// sourceField. Otherwise it sums the values at each path in sourceFields.
// Missing or non-numeric values count as zero.
func Compute(field *domain.FieldSchema, doc map[string]any) float64 {
	opts := field.Options
	if opts.SourceType == domain.SourceTypeListSum {
		return sumList(doc, opts.SourceField, opts.SumKey)
	}

	var total float64
	for _, path := range opts.SourceFields {
		if f, ok := toFloat(docpath.Get(doc, path)); ok {
			total += f
		}
	}
	return total
}

func sumList(doc map[string]any, listPath, key string) float64 {
	items, ok := docpath.Get(doc, listPath).([]any)
	if !ok {
		return 0
	}
	var total float64
	for _, entry := range items {
		item, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		if f, ok := toFloat(item[key]); ok {
			total += f
		}
	}
	return total
}
