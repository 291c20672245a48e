package fields

import (
	"github.com/custodia-labs/finplan-core/internal/core/domain"
	"github.com/custodia-labs/finplan-core/internal/docpath"
)

// Validate counts the required fields of fields that are filled in doc.
//
// Visibility is not consulted: a required field hidden by its condition still
// counts toward the total.
func Validate(doc map[string]any, fields []*domain.FieldSchema) domain.ValidationResult {
	var result domain.ValidationResult
	for _, field := range fields {
		if field == nil || !field.Required {
			continue
		}
		result.TotalRequiredFields++
		if IsFilled(docpath.Lookup(doc, field.DataPath)) {
			result.CompletedRequiredFields++
		} else {
			result.MissingFields = append(result.MissingFields, field.Key)
		}
	}
	result.IsValid = result.CompletedRequiredFields == result.TotalRequiredFields
	return result
}

// IsFilled reports whether a looked-up value counts as answered: present, not
// null and not the empty string. False, zero and empty lists are answers.
func IsFilled(v any, found bool) bool {
	if !found || v == nil {
		return false
	}
	if s, ok := v.(string); ok && s == "" {
		return false
	}
	return true
}
