package fields

import "github.com/custodia-labs/finplan-core/internal/core/domain"

// SectionView is a section with its visible fields evaluated
type SectionView struct {
	Key         string                  `json:"key"`
	Title       string                  `json:"title"`
	Description string                  `json:"description,omitempty"`
	Fields      []FieldView             `json:"fields"`
	Progress    domain.ValidationResult `json:"progress"`
}

// FormView is an evaluated form: the tabbed sections, the notes side panel and
// the overall progress of the tabbed sections
type FormView struct {
	Sections []SectionView          `json:"sections"`
	Notes    *SectionView           `json:"notes,omitempty"`
	Progress domain.ValidationResult `json:"progress"`
}

// EvaluateSection evaluates every visible field of section in order.
// Progress covers all required fields of the section, hidden ones included.
func (r *Renderer) EvaluateSection(section *domain.SectionSchema, doc map[string]any) SectionView {
	view := SectionView{
		Key:         section.Key,
		Title:       section.Title,
		Description: section.Description,
		Fields:      make([]FieldView, 0, len(section.Fields)),
		Progress:    Validate(doc, section.Fields),
	}
	for _, field := range section.Fields {
		if field == nil || !Visible(field, doc) {
			continue
		}
		view.Fields = append(view.Fields, r.Evaluate(field, doc))
	}
	return view
}

// EvaluateForm evaluates the whole form. The notes section is reported apart
// and left out of Progress.
func (r *Renderer) EvaluateForm(form *domain.FormSchema, doc map[string]any) FormView {
	main := form.MainSections()
	view := FormView{
		Sections: make([]SectionView, 0, len(main)),
	}

	var mainFields []*domain.FieldSchema
	for _, section := range main {
		view.Sections = append(view.Sections, r.EvaluateSection(section, doc))
		mainFields = append(mainFields, section.Fields...)
	}
	view.Progress = Validate(doc, mainFields)

	if notes := form.NotesSection(); notes != nil {
		nv := r.EvaluateSection(notes, doc)
		view.Notes = &nv
	}
	return view
}
