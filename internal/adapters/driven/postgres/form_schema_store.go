package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/custodia-labs/finplan-core/internal/core/domain"
	"github.com/custodia-labs/finplan-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.FormSource = (*FormSchemaStore)(nil)

// FormSchemaStore keeps the form schema in PostgreSQL.
// Select items live in a TEXT[] column; the remaining field options are JSONB.
type FormSchemaStore struct {
	db *DB
}

// NewFormSchemaStore creates a new FormSchemaStore
func NewFormSchemaStore(db *DB) *FormSchemaStore {
	return &FormSchemaStore{db: db}
}

// Load reads the whole form. Returns domain.ErrNotFound when no form was imported.
func (s *FormSchemaStore) Load(ctx context.Context) (*domain.FormSchema, error) {
	form := &domain.FormSchema{}

	err := s.db.QueryRowContext(ctx, `SELECT version FROM form_meta`).Scan(&form.Version)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	sections, err := s.loadSections(ctx)
	if err != nil {
		return nil, err
	}
	if len(sections) == 0 {
		return nil, domain.ErrNotFound
	}

	byID := make(map[string]*domain.SectionSchema, len(sections))
	for _, section := range sections {
		byID[section.ID] = section
	}
	if err := s.loadFields(ctx, byID); err != nil {
		return nil, err
	}

	form.Sections = sections
	return form, nil
}

func (s *FormSchemaStore) loadSections(ctx context.Context) ([]*domain.SectionSchema, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, key, title, description
		FROM form_sections
		ORDER BY position
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sections []*domain.SectionSchema
	for rows.Next() {
		var section domain.SectionSchema
		var description sql.NullString
		if err := rows.Scan(&section.ID, &section.Key, &section.Title, &description); err != nil {
			return nil, err
		}
		section.Description = description.String
		sections = append(sections, &section)
	}
	return sections, rows.Err()
}

func (s *FormSchemaStore) loadFields(ctx context.Context, sections map[string]*domain.SectionSchema) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, section_id, key, label, field_type, data_path, is_required,
		       description, placeholder, default_value, conditional_on, items, options
		FROM form_fields
		ORDER BY section_id, position
	`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var field domain.FieldSchema
		var sectionID string
		var description, placeholder sql.NullString
		var defaultValue, conditionalOn, options []byte
		var items []string

		err := rows.Scan(
			&field.ID,
			&sectionID,
			&field.Key,
			&field.Label,
			&field.Type,
			&field.DataPath,
			&field.Required,
			&description,
			&placeholder,
			&defaultValue,
			&conditionalOn,
			pq.Array(&items),
			&options,
		)
		if err != nil {
			return err
		}

		field.Description = description.String
		field.Placeholder = placeholder.String
		if len(options) > 0 {
			if err := json.Unmarshal(options, &field.Options); err != nil {
				return fmt.Errorf("field %s options: %w", field.Key, err)
			}
		}
		field.Options.Items = items
		if len(defaultValue) > 0 {
			if err := json.Unmarshal(defaultValue, &field.DefaultValue); err != nil {
				return fmt.Errorf("field %s default_value: %w", field.Key, err)
			}
		}
		if len(conditionalOn) > 0 {
			var cond domain.Condition
			if err := json.Unmarshal(conditionalOn, &cond); err != nil {
				return fmt.Errorf("field %s conditional_on: %w", field.Key, err)
			}
			field.ConditionalOn = &cond
		}

		section, ok := sections[sectionID]
		if !ok {
			continue
		}
		section.Fields = append(section.Fields, &field)
	}
	return rows.Err()
}

// Save replaces the stored form with form in one transaction
func (s *FormSchemaStore) Save(ctx context.Context, form *domain.FormSchema) error {
	return s.db.Transaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM form_sections`); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO form_meta (singleton, version, updated_at)
			VALUES (TRUE, $1, NOW())
			ON CONFLICT (singleton) DO UPDATE SET
				version = EXCLUDED.version,
				updated_at = EXCLUDED.updated_at
		`, form.Version); err != nil {
			return err
		}

		for i, section := range form.Sections {
			sectionID := section.ID
			if sectionID == "" {
				sectionID = section.Key
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO form_sections (id, key, position, title, description)
				VALUES ($1, $2, $3, $4, $5)
			`, sectionID, section.Key, i, section.Title, NullString(section.Description)); err != nil {
				return fmt.Errorf("section %s: %w", section.Key, err)
			}

			for j, field := range section.Fields {
				if err := insertField(ctx, tx, sectionID, j, field); err != nil {
					return fmt.Errorf("field %s: %w", field.Key, err)
				}
			}
		}
		return nil
	})
}

func insertField(ctx context.Context, tx *sql.Tx, sectionID string, position int, field *domain.FieldSchema) error {
	fieldID := field.ID
	if fieldID == "" {
		fieldID = field.Key
	}

	opts := field.Options
	items := opts.Items
	if items == nil {
		items = []string{}
	}
	opts.Items = nil
	options, err := json.Marshal(opts)
	if err != nil {
		return err
	}

	// NULL rather than a nil []byte for absent JSONB values
	var defaultValue, conditionalOn any
	if field.DefaultValue != nil {
		b, err := json.Marshal(field.DefaultValue)
		if err != nil {
			return err
		}
		defaultValue = b
	}
	if field.ConditionalOn != nil {
		b, err := json.Marshal(field.ConditionalOn)
		if err != nil {
			return err
		}
		conditionalOn = b
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO form_fields (id, section_id, position, key, label, field_type, data_path, is_required,
		                         description, placeholder, default_value, conditional_on, items, options)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`,
		fieldID,
		sectionID,
		position,
		field.Key,
		field.Label,
		string(field.Type),
		field.DataPath,
		field.Required,
		NullString(field.Description),
		NullString(field.Placeholder),
		defaultValue,
		conditionalOn,
		pq.Array(items),
		options,
	)
	return err
}
