package fields

import (
	"github.com/custodia-labs/finplan-core/internal/core/domain"
	"github.com/custodia-labs/finplan-core/internal/docpath"
)

// Visible reports whether field should be shown for doc.
// A field without conditional_on is always visible; otherwise the value at the
// condition path must strictly equal the condition value. Stored values of the
// field itself are not consulted.
func Visible(field *domain.FieldSchema, doc map[string]any) bool {
	cond := field.ConditionalOn
	if cond == nil {
		return true
	}
	v, ok := docpath.Lookup(doc, cond.Field)
	if !ok {
		return false
	}
	return strictEqual(v, cond.Value)
}

// strictEqual compares scalars without type coercion. All Go numeric types are
// the single "number" type of the document model, so they compare by value.
// Objects and lists are never equal.
func strictEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)
		return ok && fa == fb
	}
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	}
	return false
}
