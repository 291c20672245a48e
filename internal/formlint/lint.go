// Package formlint checks a form schema for structural mistakes before it is served.
// It never renders fields or touches collection data.
package formlint

import (
	"fmt"
	"sort"
	"strings"

	"github.com/custodia-labs/finplan-core/internal/core/domain"
	"github.com/custodia-labs/finplan-core/internal/docpath"
)

// Severity of an issue
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is one problem found in the schema
type Issue struct {
	Severity Severity `json:"severity"`
	Section  string   `json:"section,omitempty"`
	Field    string   `json:"field,omitempty"`
	Rule     string   `json:"rule"`
	Message  string   `json:"message"`
}

func (i Issue) String() string {
	location := i.Section
	if i.Field != "" {
		location += "." + i.Field
	}
	if location == "" {
		location = "form"
	}
	return fmt.Sprintf("%s [%s] %s: %s", i.Severity, i.Rule, location, i.Message)
}

// Result holds every issue in schema order. Valid is false when any issue is an error.
type Result struct {
	Valid  bool    `json:"valid"`
	Issues []Issue `json:"issues"`
}

// Errors returns only the error-severity issues
func (r *Result) Errors() []Issue {
	var out []Issue
	for _, issue := range r.Issues {
		if issue.Severity == SeverityError {
			out = append(out, issue)
		}
	}
	return out
}

// Err returns nil for a valid schema, otherwise an ErrInvalidInput listing the errors
func (r *Result) Err() error {
	errs := r.Errors()
	if len(errs) == 0 {
		return nil
	}
	lines := make([]string, len(errs))
	for i, issue := range errs {
		lines[i] = issue.String()
	}
	return fmt.Errorf("%w: form schema has %d error(s):\n%s", domain.ErrInvalidInput, len(errs), strings.Join(lines, "\n"))
}

type linter struct {
	result  *Result
	section string
	field   string
}

func (l *linter) errorf(rule, format string, args ...any) {
	l.result.Valid = false
	l.add(SeverityError, rule, format, args...)
}

func (l *linter) warnf(rule, format string, args ...any) {
	l.add(SeverityWarning, rule, format, args...)
}

func (l *linter) add(severity Severity, rule, format string, args ...any) {
	l.result.Issues = append(l.result.Issues, Issue{
		Severity: severity,
		Section:  l.section,
		Field:    l.field,
		Rule:     rule,
		Message:  fmt.Sprintf(format, args...),
	})
}

// Run lints form
func Run(form *domain.FormSchema) *Result {
	l := &linter{result: &Result{Valid: true, Issues: make([]Issue, 0)}}
	if form == nil || len(form.Sections) == 0 {
		l.errorf("no-sections", "form has no sections")
		return l.result
	}

	paths := collectPaths(form)
	listPaths := make(map[string]bool)
	for _, field := range form.AllFields() {
		if field != nil && field.Type == domain.FieldTypeList {
			listPaths[field.DataPath] = true
		}
	}

	sectionKeys := make(map[string]bool)
	fieldKeys := make(map[string]string)
	dataPaths := make(map[string]string)
	notes := 0

	for i, section := range form.Sections {
		l.section, l.field = "", ""
		if section == nil {
			l.errorf("nil-section", "section %d is empty", i)
			continue
		}
		l.section = section.Key

		switch {
		case section.Key == "":
			l.errorf("section-key", "section %d has no key", i)
		case sectionKeys[section.Key]:
			l.errorf("duplicate-section", "section key %q is declared more than once", section.Key)
		}
		sectionKeys[section.Key] = true
		if section.IsNotes() {
			notes++
			if notes == 2 {
				l.errorf("notes-section", "more than one %q section", domain.NotesSectionKey)
			}
		}
		if len(section.Fields) == 0 {
			l.warnf("empty-section", "section has no fields")
		}

		for j, field := range section.Fields {
			l.field = ""
			if field == nil {
				l.errorf("nil-field", "field %d is empty", j)
				continue
			}
			l.field = field.Key

			if field.Key == "" {
				l.errorf("field-key", "field %d has no key", j)
			} else if other, dup := fieldKeys[field.Key]; dup {
				l.errorf("duplicate-key", "field key also declared in section %q", other)
			} else {
				fieldKeys[field.Key] = section.Key
			}

			if field.DataPath != "" {
				if other, dup := dataPaths[field.DataPath]; dup {
					l.errorf("duplicate-path", "data_path %q is also bound to field %q", field.DataPath, other)
				} else {
					dataPaths[field.DataPath] = field.Key
				}
			}

			l.checkField(field, paths, listPaths)
		}
	}

	l.section, l.field = "", ""
	l.checkNestedPaths(dataPaths)
	return l.result
}

func collectPaths(form *domain.FormSchema) map[string]bool {
	paths := make(map[string]bool)
	for _, field := range form.AllFields() {
		if field != nil && field.DataPath != "" {
			paths[field.DataPath] = true
		}
	}
	return paths
}

func (l *linter) checkField(field *domain.FieldSchema, paths, listPaths map[string]bool) {
	if field.Label == "" {
		l.warnf("label", "field has no label")
	}

	switch {
	case field.DataPath == "":
		l.errorf("data-path", "field has no data_path")
	case !validPath(field.DataPath):
		l.warnf("data-path", "data_path %q has an empty segment", field.DataPath)
	}

	if !field.Type.IsValid() {
		l.errorf("field-type", "unknown field type %q", field.Type)
		return
	}

	switch field.Type {
	case domain.FieldTypeSelect, domain.FieldTypeMultiSelect:
		if len(field.Options.Items) == 0 {
			l.errorf("items", "%s field has no items", field.Type)
		}
	case domain.FieldTypeSearchableSelect:
		if len(field.Options.Items) == 0 {
			l.warnf("items", "searchable_select has no items; only free text can be entered")
		}
	case domain.FieldTypeList:
		l.checkList(field)
	case domain.FieldTypeComputed:
		l.checkComputed(field, listPaths)
	}

	if field.DefaultValue != nil {
		if field.Type != domain.FieldTypeList {
			l.errorf("default-value", "default_value is only supported on list fields")
		} else if _, ok := field.DefaultValue.([]any); !ok {
			l.errorf("default-value", "default_value of a list field must be a list")
		}
	}

	if cond := field.ConditionalOn; cond != nil {
		switch {
		case cond.Field == "":
			l.errorf("conditional-on", "conditional_on has no field")
		case cond.Field == field.DataPath:
			l.warnf("conditional-on", "field is conditional on its own value and can never be shown empty")
		case !paths[cond.Field]:
			l.errorf("conditional-on", "conditional_on references unknown path %q", cond.Field)
		}
	}
}

func (l *linter) checkList(field *domain.FieldSchema) {
	schema := field.Options.ItemSchema
	if len(schema) == 0 {
		l.errorf("item-schema", "list field has no itemSchema")
		return
	}

	for _, item := range schema {
		if !item.Type.IsItemType() {
			l.errorf("item-schema", "item field %q has unsupported type %q", item.Key, item.Type)
		}
		if item.Type == domain.FieldTypeSelect && len(field.Options.ItemOptions[item.Key]) == 0 {
			l.warnf("item-options", "select item field %q has no itemOptions", item.Key)
		}
	}

	for _, key := range field.Options.FieldOrder {
		if _, ok := schema.Lookup(key); !ok {
			l.warnf("field-order", "fieldOrder names unknown item field %q", key)
		}
	}
	for key := range field.Options.ItemOptions {
		if t, ok := schema.Lookup(key); !ok || t != domain.FieldTypeSelect {
			l.warnf("item-options", "itemOptions for %q which is not a select item field", key)
		}
	}
}

func (l *linter) checkComputed(field *domain.FieldSchema, listPaths map[string]bool) {
	if field.Required {
		l.warnf("computed-required", "computed field is marked required")
	}

	opts := field.Options
	switch opts.SourceType {
	case "":
		if len(opts.SourceFields) == 0 {
			l.errorf("computed-source", "computed field has no sourceFields")
		}
	case domain.SourceTypeListSum:
		if opts.SourceField == "" || opts.SumKey == "" {
			l.errorf("computed-source", "list_sum needs sourceField and sumKey")
		} else if !listPaths[opts.SourceField] {
			l.warnf("computed-source", "sourceField %q is not the data_path of a list field", opts.SourceField)
		}
	default:
		l.errorf("computed-source", "unknown sourceType %q", opts.SourceType)
	}
}

// checkNestedPaths flags a path stored inside another field's scalar value
func (l *linter) checkNestedPaths(dataPaths map[string]string) {
	paths := make([]string, 0, len(dataPaths))
	for path := range dataPaths {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	for _, path := range paths {
		key := dataPaths[path]
		segments := docpath.Split(path)
		for i := 1; i < len(segments); i++ {
			prefix := strings.Join(segments[:i], ".")
			if owner, ok := dataPaths[prefix]; ok {
				l.field = key
				l.errorf("nested-path", "data_path %q is nested inside field %q at %q", path, owner, prefix)
			}
		}
	}
	l.field = ""
}

func validPath(path string) bool {
	for _, segment := range strings.Split(path, ".") {
		if segment == "" {
			return false
		}
	}
	return true
}
