package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jakechorley/attendant-scheduler/pkg/db"
)

const positionColumns = `id, event_id, position_number, name, area, sequence, is_active, created_at, updated_at`

func scanPosition(row pgx.Row) (db.Position, error) {
	var p db.Position
	err := row.Scan(&p.ID, &p.EventID, &p.PositionNumber, &p.Name, &p.Area, &p.Sequence, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (d *DB) queryPositions(ctx context.Context, query string, args ...any) ([]db.Position, error) {
	rows, err := d.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query positions: %w", err)
	}
	defer rows.Close()

	var positions []db.Position
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan position: %w", err)
		}
		positions = append(positions, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating positions: %w", err)
	}

	if err := d.attachShifts(ctx, positions); err != nil {
		return nil, err
	}
	return positions, nil
}

// attachShifts loads the shifts of every position in one query
func (d *DB) attachShifts(ctx context.Context, positions []db.Position) error {
	if len(positions) == 0 {
		return nil
	}
	ids := make([]string, len(positions))
	index := make(map[string]int, len(positions))
	for i := range positions {
		ids[i] = positions[i].ID
		index[positions[i].ID] = i
		positions[i].Shifts = []db.Shift{}
	}

	rows, err := d.pool.Query(ctx, `
		SELECT id, position_id, name, start_time, end_time, is_all_day, sequence
		FROM position_shifts
		WHERE position_id = ANY($1)
		ORDER BY position_id, sequence
	`, ids)
	if err != nil {
		return fmt.Errorf("failed to query shifts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var s db.Shift
		if err := rows.Scan(&s.ID, &s.PositionID, &s.Name, &s.StartTime, &s.EndTime, &s.IsAllDay, &s.Sequence); err != nil {
			return fmt.Errorf("failed to scan shift: %w", err)
		}
		i := index[s.PositionID]
		positions[i].Shifts = append(positions[i].Shifts, s)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating shifts: %w", err)
	}
	return nil
}

// ListPositions retrieves the event's positions with their shifts
func (d *DB) ListPositions(ctx context.Context, eventID string) ([]db.Position, error) {
	return d.queryPositions(ctx, `
		SELECT `+positionColumns+`
		FROM positions
		WHERE event_id = $1
		ORDER BY sequence, position_number
	`, eventID)
}

// GetPosition retrieves a single position with its shifts
func (d *DB) GetPosition(ctx context.Context, positionID string) (*db.Position, error) {
	key, err := parseID(positionID)
	if err != nil {
		return nil, err
	}
	positions, err := d.queryPositions(ctx, `SELECT `+positionColumns+` FROM positions WHERE id = $1::uuid`, key)
	if err != nil {
		return nil, err
	}
	if len(positions) == 0 {
		return nil, db.ErrNotFound
	}
	return &positions[0], nil
}

// GetPositionsByIDs retrieves the positions among ids that belong to the event
func (d *DB) GetPositionsByIDs(ctx context.Context, eventID string, positionIDs []string) ([]db.Position, error) {
	keys := parseIDs(positionIDs)
	if len(keys) == 0 {
		return nil, nil
	}
	return d.queryPositions(ctx, `
		SELECT `+positionColumns+`
		FROM positions
		WHERE event_id = $1 AND id = ANY($2::uuid[])
		ORDER BY array_position($2::uuid[], id)
	`, eventID, keys)
}

// FindPositionNumbers returns the position numbers already used in [start, end]
func (d *DB) FindPositionNumbers(ctx context.Context, eventID string, start, end int) ([]int, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT position_number
		FROM positions
		WHERE event_id = $1 AND position_number BETWEEN $2 AND $3
		ORDER BY position_number
	`, eventID, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query position numbers: %w", err)
	}
	numbers, err := pgx.CollectRows(rows, pgx.RowTo[int])
	if err != nil {
		return nil, fmt.Errorf("failed to collect position numbers: %w", err)
	}
	return numbers, nil
}

// InsertPositions inserts positions and their shifts in a single transaction
func (d *DB) InsertPositions(ctx context.Context, positions []db.Position) error {
	if len(positions) == 0 {
		return nil
	}

	return d.inTx(ctx, func(tx pgx.Tx) error {
		for _, p := range positions {
			_, err := tx.Exec(ctx, `
				INSERT INTO positions (`+positionColumns+`)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			`, p.ID, p.EventID, p.PositionNumber, p.Name, p.Area, p.Sequence, p.IsActive, p.CreatedAt, p.UpdatedAt)
			if err != nil {
				return fmt.Errorf("failed to insert position %d: %w", p.PositionNumber, mapError(err))
			}

			for _, s := range p.Shifts {
				if err := insertShift(ctx, tx, p.ID, s); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

func insertShift(ctx context.Context, tx pgx.Tx, positionID string, s db.Shift) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO position_shifts (id, position_id, name, start_time, end_time, is_all_day, sequence)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, s.ID, positionID, s.Name, s.StartTime, s.EndTime, s.IsAllDay, s.Sequence)
	if err != nil {
		return fmt.Errorf("failed to insert shift: %w", mapError(err))
	}
	return nil
}

// SetPositionActive flips the active flag of a position
func (d *DB) SetPositionActive(ctx context.Context, positionID string, active bool) (*db.Position, error) {
	key, err := parseID(positionID)
	if err != nil {
		return nil, err
	}
	tag, err := d.pool.Exec(ctx, `
		UPDATE positions SET is_active = $2, updated_at = $3 WHERE id = $1::uuid
	`, key, active, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to update position: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, db.ErrNotFound
	}
	return d.GetPosition(ctx, positionID)
}

// CountPositionReferences counts assignments and oversight rows pointing at a position
func (d *DB) CountPositionReferences(ctx context.Context, positionID string) (db.PositionReferences, error) {
	var refs db.PositionReferences
	key, err := parseID(positionID)
	if err != nil {
		return refs, nil
	}
	err = d.pool.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM assignments WHERE position_id = $1::uuid),
			(SELECT COUNT(*) FROM position_oversight WHERE position_id = $1::uuid)
	`, key).Scan(&refs.Assignments, &refs.Oversight)
	if err != nil {
		return refs, fmt.Errorf("failed to count position references: %w", err)
	}
	return refs, nil
}

// DeletePosition removes a position; shifts and counts cascade, assignments and oversight restrict
func (d *DB) DeletePosition(ctx context.Context, positionID string) error {
	key, err := parseID(positionID)
	if err != nil {
		return err
	}
	tag, err := d.pool.Exec(ctx, `DELETE FROM positions WHERE id = $1::uuid`, key)
	if err != nil {
		return fmt.Errorf("failed to delete position: %w", mapError(err))
	}
	if tag.RowsAffected() == 0 {
		return db.ErrNotFound
	}
	return nil
}

// AppendShifts appends every stamp in one transaction. The owning position row is locked
// before reading its highest sequence so concurrent appends never reuse a number.
func (d *DB) AppendShifts(ctx context.Context, stamps []db.ShiftStamp) (map[string][]db.Shift, error) {
	created := make(map[string][]db.Shift, len(stamps))

	err := d.inTx(ctx, func(tx pgx.Tx) error {
		for _, stamp := range stamps {
			key, err := parseID(stamp.PositionID)
			if err != nil {
				return fmt.Errorf("failed to lock position %s: %w", stamp.PositionID, err)
			}
			var lockedID string
			err = tx.QueryRow(ctx, `SELECT id FROM positions WHERE id = $1::uuid FOR UPDATE`, key).Scan(&lockedID)
			if err != nil {
				return fmt.Errorf("failed to lock position %s: %w", stamp.PositionID, mapError(err))
			}

			var next int
			err = tx.QueryRow(ctx, `
				SELECT COALESCE(MAX(sequence), 0) FROM position_shifts WHERE position_id = $1
			`, stamp.PositionID).Scan(&next)
			if err != nil {
				return fmt.Errorf("failed to read shift sequence: %w", err)
			}

			for _, bp := range stamp.Blueprints {
				next++
				s := db.Shift{
					ID:         uuid.New().String(),
					PositionID: stamp.PositionID,
					Name:       bp.Name,
					IsAllDay:   bp.IsAllDay,
					Sequence:   next,
				}
				if !bp.IsAllDay {
					start, end := bp.StartTime, bp.EndTime
					s.StartTime, s.EndTime = &start, &end
				}
				if err := insertShift(ctx, tx, stamp.PositionID, s); err != nil {
					return err
				}
				created[stamp.PositionID] = append(created[stamp.PositionID], s)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}
