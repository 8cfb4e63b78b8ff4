package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jakechorley/attendant-scheduler/pkg/db"
)

const oversightColumns = `id, position_id, event_id, overseer_id, keyman_id, assigned_by, created_at, updated_at`

func scanOversight(row pgx.Row) (db.Oversight, error) {
	var o db.Oversight
	err := row.Scan(&o.ID, &o.PositionID, &o.EventID, &o.OverseerID, &o.KeymanID, &o.AssignedBy, &o.CreatedAt, &o.UpdatedAt)
	return o, err
}

// GetOversight retrieves the oversight row of a position within an event
func (d *DB) GetOversight(ctx context.Context, eventID, positionID string) (*db.Oversight, error) {
	key, err := parseID(positionID)
	if err != nil {
		return nil, err
	}
	o, err := scanOversight(d.pool.QueryRow(ctx, `
		SELECT `+oversightColumns+`
		FROM position_oversight
		WHERE event_id = $1 AND position_id = $2::uuid
	`, eventID, key))
	if err != nil {
		return nil, mapError(err)
	}
	return &o, nil
}

// ListOversight retrieves every oversight row of an event
func (d *DB) ListOversight(ctx context.Context, eventID string) ([]db.Oversight, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT `+oversightColumns+`
		FROM position_oversight
		WHERE event_id = $1
		ORDER BY position_id
	`, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to query oversight: %w", err)
	}
	defer rows.Close()

	var out []db.Oversight
	for rows.Next() {
		o, err := scanOversight(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan oversight: %w", err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating oversight: %w", err)
	}
	return out, nil
}

// UpsertOversight writes every row in a single transaction. Existing rows keep their id.
func (d *DB) UpsertOversight(ctx context.Context, rows []db.Oversight) ([]db.Oversight, error) {
	out := make([]db.Oversight, 0, len(rows))

	err := d.inTx(ctx, func(tx pgx.Tx) error {
		for _, row := range rows {
			saved, err := scanOversight(tx.QueryRow(ctx, `
				INSERT INTO position_oversight (`+oversightColumns+`)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
				ON CONFLICT (position_id, event_id) DO UPDATE SET
					overseer_id = EXCLUDED.overseer_id,
					keyman_id = EXCLUDED.keyman_id,
					assigned_by = EXCLUDED.assigned_by,
					updated_at = EXCLUDED.updated_at
				RETURNING `+oversightColumns,
				row.ID, row.PositionID, row.EventID, row.OverseerID, row.KeymanID, row.AssignedBy, row.CreatedAt, row.UpdatedAt))
			if err != nil {
				return fmt.Errorf("failed to upsert oversight for position %s: %w", row.PositionID, mapError(err))
			}
			out = append(out, saved)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteOversight removes the oversight row of a position
func (d *DB) DeleteOversight(ctx context.Context, eventID, positionID string) error {
	key, err := parseID(positionID)
	if err != nil {
		return err
	}
	tag, err := d.pool.Exec(ctx, `
		DELETE FROM position_oversight WHERE event_id = $1 AND position_id = $2::uuid
	`, eventID, key)
	if err != nil {
		return fmt.Errorf("failed to delete oversight: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return db.ErrNotFound
	}
	return nil
}
