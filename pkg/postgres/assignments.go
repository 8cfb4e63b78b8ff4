package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jakechorley/attendant-scheduler/pkg/db"
)

const assignmentColumns = `id, event_id, attendant_id, position_id, shift_id, shift_start, shift_end, status, notes, assigned_by, created_at, updated_at`

func scanAssignment(row pgx.Row) (db.Assignment, error) {
	var a db.Assignment
	err := row.Scan(&a.ID, &a.EventID, &a.AttendantID, &a.PositionID, &a.ShiftID, &a.ShiftStart, &a.ShiftEnd,
		&a.Status, &a.Notes, &a.AssignedBy, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}

func (d *DB) queryAssignments(ctx context.Context, query string, args ...any) ([]db.Assignment, error) {
	rows, err := d.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query assignments: %w", err)
	}
	defer rows.Close()

	var out []db.Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan assignment: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating assignments: %w", err)
	}
	return out, nil
}

// ListAssignments retrieves the event's assignments ordered by shift start
func (d *DB) ListAssignments(ctx context.Context, eventID string) ([]db.Assignment, error) {
	return d.queryAssignments(ctx, `
		SELECT `+assignmentColumns+`
		FROM assignments
		WHERE event_id = $1
		ORDER BY shift_start, id
	`, eventID)
}

// ListAttendantAssignments retrieves one attendant's assignments within an event
func (d *DB) ListAttendantAssignments(ctx context.Context, eventID, attendantID string) ([]db.Assignment, error) {
	return d.queryAssignments(ctx, `
		SELECT `+assignmentColumns+`
		FROM assignments
		WHERE event_id = $1 AND attendant_id = $2
		ORDER BY shift_start, id
	`, eventID, attendantID)
}

// GetAssignment retrieves an assignment by id
func (d *DB) GetAssignment(ctx context.Context, id string) (*db.Assignment, error) {
	key, err := parseID(id)
	if err != nil {
		return nil, err
	}
	a, err := scanAssignment(d.pool.QueryRow(ctx, `
		SELECT `+assignmentColumns+` FROM assignments WHERE id = $1::uuid
	`, key))
	if err != nil {
		return nil, mapError(err)
	}
	return &a, nil
}

// InsertAssignment stores a new assignment
func (d *DB) InsertAssignment(ctx context.Context, a *db.Assignment) error {
	_, err := d.pool.Exec(ctx, `
		INSERT INTO assignments (`+assignmentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, a.ID, a.EventID, a.AttendantID, a.PositionID, a.ShiftID, a.ShiftStart, a.ShiftEnd,
		a.Status, a.Notes, a.AssignedBy, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert assignment: %w", mapError(err))
	}
	return nil
}

// UpdateAssignment replaces the mutable fields of an assignment
func (d *DB) UpdateAssignment(ctx context.Context, a *db.Assignment) error {
	tag, err := d.pool.Exec(ctx, `
		UPDATE assignments SET
			attendant_id = $2,
			position_id = $3,
			shift_id = $4,
			shift_start = $5,
			shift_end = $6,
			status = $7,
			notes = $8,
			updated_at = $9
		WHERE id = $1
	`, a.ID, a.AttendantID, a.PositionID, a.ShiftID, a.ShiftStart, a.ShiftEnd, a.Status, a.Notes, a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update assignment: %w", mapError(err))
	}
	if tag.RowsAffected() == 0 {
		return db.ErrNotFound
	}
	return nil
}

// DeleteAssignment removes a single assignment
func (d *DB) DeleteAssignment(ctx context.Context, id string) error {
	key, err := parseID(id)
	if err != nil {
		return err
	}
	tag, err := d.pool.Exec(ctx, `DELETE FROM assignments WHERE id = $1::uuid`, key)
	if err != nil {
		return fmt.Errorf("failed to delete assignment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return db.ErrNotFound
	}
	return nil
}

// DeleteEventAssignments removes every assignment of an event and returns how many went
func (d *DB) DeleteEventAssignments(ctx context.Context, eventID string) (int64, error) {
	tag, err := d.pool.Exec(ctx, `DELETE FROM assignments WHERE event_id = $1`, eventID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete event assignments: %w", err)
	}
	return tag.RowsAffected(), nil
}
