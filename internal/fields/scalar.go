package fields

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/custodia-labs/finplan-core/internal/core/domain"
	"github.com/custodia-labs/finplan-core/internal/docpath"
)

// textHandler serves text, textarea and date fields. Values pass through as strings.
type textHandler struct {
	fieldType domain.FieldType
}

func (h *textHandler) Type() domain.FieldType { return h.fieldType }

func (h *textHandler) Read(field *domain.FieldSchema, doc map[string]any) any {
	return asString(docpath.Get(doc, field.DataPath))
}

func (h *textHandler) Coerce(field *domain.FieldSchema, input any) (any, error) {
	switch v := input.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	default:
		return nil, invalid(field, "expected text, got %T", input)
	}
}

// numberHandler serves number and currency fields.
// Stored values are float64 or nil; NaN and infinities are rejected.
type numberHandler struct {
	fieldType domain.FieldType
}

func (h *numberHandler) Type() domain.FieldType { return h.fieldType }

func (h *numberHandler) Read(field *domain.FieldSchema, doc map[string]any) any {
	f, ok := toFloat(docpath.Get(doc, field.DataPath))
	if !ok {
		return nil
	}
	return f
}

func (h *numberHandler) Coerce(field *domain.FieldSchema, input any) (any, error) {
	if s, ok := input.(string); ok {
		s = strings.TrimSpace(s)
		if s == "" {
			return nil, nil
		}
		var f float64
		var err error
		if h.fieldType == domain.FieldTypeCurrency {
			f, err = parseCurrency(s)
		} else {
			f, err = strconv.ParseFloat(s, 64)
		}
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, invalid(field, "%q is not a number", s)
		}
		return f, nil
	}
	if input == nil {
		return nil, nil
	}
	f, ok := toFloat(input)
	if !ok {
		return nil, invalid(field, "expected number, got %T", input)
	}
	return f, nil
}

// booleanHandler stores real booleans; a missing value reads as false
type booleanHandler struct{}

func (h *booleanHandler) Type() domain.FieldType { return domain.FieldTypeBoolean }

func (h *booleanHandler) Read(field *domain.FieldSchema, doc map[string]any) any {
	b, _ := docpath.Get(doc, field.DataPath).(bool)
	return b
}

func (h *booleanHandler) Coerce(field *domain.FieldSchema, input any) (any, error) {
	b, ok := parseBool(input)
	if !ok {
		return nil, invalid(field, "expected boolean, got %v", input)
	}
	return b, nil
}

func parseBool(input any) (bool, bool) {
	switch v := input.(type) {
	case nil:
		return false, true
	case bool:
		return v, true
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "sim", "1":
			return true, true
		case "false", "não", "nao", "0", "":
			return false, true
		}
	}
	return false, false
}

// toFloat converts JSON/YAML numeric values to float64.
// Strings and other types are not numbers.
func toFloat(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case uint:
		f = float64(n)
	case uint64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// parseCurrency accepts plain numbers ("1234.5") and pt-BR formatted amounts
// ("R$ 1.234,50", "1.234,50"). With a comma or an R$ prefix, dots are thousand separators.
func parseCurrency(s string) (float64, error) {
	localized := false
	if trimmed, ok := strings.CutPrefix(s, "R$"); ok {
		s = trimmed
		localized = true
	}
	s = strings.ReplaceAll(strings.TrimSpace(s), " ", "")
	s = strings.ReplaceAll(s, "\u00a0", "")
	if strings.Contains(s, ",") {
		localized = true
	}
	if localized {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	}
	return strconv.ParseFloat(s, 64)
}

func asString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	default:
		return fmt.Sprint(s)
	}
}

// truthy mirrors the falsy set of the document model: nil, false, 0, "" and NaN
func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case float64:
		return t != 0 && !math.IsNaN(t)
	}
	if f, ok := toFloat(v); ok {
		return f != 0
	}
	return true
}
