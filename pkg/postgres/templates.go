package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jakechorley/attendant-scheduler/pkg/db"
)

func scanTemplate(row pgx.Row) (db.ShiftTemplate, error) {
	var t db.ShiftTemplate
	var shifts []byte
	if err := row.Scan(&t.ID, &t.Name, &t.Description, &shifts, &t.IsSystem, &t.CreatedAt); err != nil {
		return t, err
	}
	if err := json.Unmarshal(shifts, &t.Shifts); err != nil {
		return t, fmt.Errorf("failed to decode shifts of template %s: %w", t.Name, err)
	}
	return t, nil
}

// ListShiftTemplates retrieves all stored templates, system templates first
func (d *DB) ListShiftTemplates(ctx context.Context) ([]db.ShiftTemplate, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT id, name, description, shifts, is_system, created_at
		FROM shift_templates
		ORDER BY is_system DESC, name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query shift templates: %w", err)
	}
	defer rows.Close()

	var templates []db.ShiftTemplate
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan shift template: %w", err)
		}
		templates = append(templates, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating shift templates: %w", err)
	}
	return templates, nil
}

// GetShiftTemplate retrieves a stored template by id
func (d *DB) GetShiftTemplate(ctx context.Context, id string) (*db.ShiftTemplate, error) {
	key, err := parseID(id)
	if err != nil {
		return nil, err
	}
	t, err := scanTemplate(d.pool.QueryRow(ctx, `
		SELECT id, name, description, shifts, is_system, created_at
		FROM shift_templates
		WHERE id = $1::uuid
	`, key))
	if err != nil {
		return nil, mapError(err)
	}
	return &t, nil
}

// InsertShiftTemplate stores a new template
func (d *DB) InsertShiftTemplate(ctx context.Context, template *db.ShiftTemplate) error {
	shifts, err := json.Marshal(template.Shifts)
	if err != nil {
		return fmt.Errorf("failed to encode template shifts: %w", err)
	}

	_, err = d.pool.Exec(ctx, `
		INSERT INTO shift_templates (id, name, description, shifts, is_system, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, template.ID, template.Name, template.Description, shifts, template.IsSystem, template.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert shift template: %w", mapError(err))
	}
	return nil
}
