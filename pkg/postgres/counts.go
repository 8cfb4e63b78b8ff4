package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jakechorley/attendant-scheduler/pkg/db"
)

const sessionColumns = `id, event_id, session_name, count_time, status, is_active, notes, created_by, created_at, updated_at`

func scanSession(row pgx.Row) (db.CountSession, error) {
	var s db.CountSession
	err := row.Scan(&s.ID, &s.EventID, &s.SessionName, &s.CountTime, &s.Status, &s.IsActive, &s.Notes,
		&s.CreatedBy, &s.CreatedAt, &s.UpdatedAt)
	return s, err
}

// ListCountSessions retrieves the event's sessions, latest count time first
func (d *DB) ListCountSessions(ctx context.Context, eventID string) ([]db.CountSession, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT `+sessionColumns+`
		FROM count_sessions
		WHERE event_id = $1
		ORDER BY count_time DESC
	`, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to query count sessions: %w", err)
	}
	defer rows.Close()

	var out []db.CountSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan count session: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating count sessions: %w", err)
	}
	return out, nil
}

// GetCountSession retrieves a session by id
func (d *DB) GetCountSession(ctx context.Context, id string) (*db.CountSession, error) {
	key, err := parseID(id)
	if err != nil {
		return nil, err
	}
	s, err := scanSession(d.pool.QueryRow(ctx, `
		SELECT `+sessionColumns+` FROM count_sessions WHERE id = $1::uuid
	`, key))
	if err != nil {
		return nil, mapError(err)
	}
	return &s, nil
}

// FindSessionNames returns which of names are already used in the event
func (d *DB) FindSessionNames(ctx context.Context, eventID string, names []string) ([]string, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT session_name FROM count_sessions
		WHERE event_id = $1 AND session_name = ANY($2)
		ORDER BY session_name
	`, eventID, names)
	if err != nil {
		return nil, fmt.Errorf("failed to query session names: %w", err)
	}
	used, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to collect session names: %w", err)
	}
	return used, nil
}

// InsertCountSessions inserts all sessions in a single transaction
func (d *DB) InsertCountSessions(ctx context.Context, sessions []db.CountSession) error {
	if len(sessions) == 0 {
		return nil
	}

	return d.inTx(ctx, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, s := range sessions {
			batch.Queue(`
				INSERT INTO count_sessions (`+sessionColumns+`)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			`, s.ID, s.EventID, s.SessionName, s.CountTime, s.Status, s.IsActive, s.Notes, s.CreatedBy, s.CreatedAt, s.UpdatedAt)
		}

		results := tx.SendBatch(ctx, batch)
		for range sessions {
			if _, err := results.Exec(); err != nil {
				results.Close()
				return fmt.Errorf("failed to insert count session: %w", mapError(err))
			}
		}
		if err := results.Close(); err != nil {
			return fmt.Errorf("failed to close batch: %w", mapError(err))
		}
		return nil
	})
}

// UpdateCountSession replaces the mutable fields of a session
func (d *DB) UpdateCountSession(ctx context.Context, s *db.CountSession) error {
	tag, err := d.pool.Exec(ctx, `
		UPDATE count_sessions SET
			session_name = $2,
			count_time = $3,
			status = $4,
			is_active = $5,
			notes = $6,
			updated_at = $7
		WHERE id = $1
	`, s.ID, s.SessionName, s.CountTime, s.Status, s.IsActive, s.Notes, s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update count session: %w", mapError(err))
	}
	if tag.RowsAffected() == 0 {
		return db.ErrNotFound
	}
	return nil
}

// DeleteCountSession removes a session; its position counts cascade
func (d *DB) DeleteCountSession(ctx context.Context, id string) error {
	key, err := parseID(id)
	if err != nil {
		return err
	}
	tag, err := d.pool.Exec(ctx, `DELETE FROM count_sessions WHERE id = $1::uuid`, key)
	if err != nil {
		return fmt.Errorf("failed to delete count session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return db.ErrNotFound
	}
	return nil
}

// UpsertPositionCount creates or replaces the count of a position within a session.
// It reports true when a new row was created.
func (d *DB) UpsertPositionCount(ctx context.Context, c *db.PositionCount) (bool, error) {
	var id string
	var created bool
	err := d.pool.QueryRow(ctx, `
		INSERT INTO position_counts (id, count_session_id, position_id, attendee_count, notes, counted_by, counted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (count_session_id, position_id) DO UPDATE SET
			attendee_count = EXCLUDED.attendee_count,
			notes = EXCLUDED.notes,
			counted_by = EXCLUDED.counted_by,
			counted_at = EXCLUDED.counted_at
		RETURNING id, (xmax = 0)
	`, c.ID, c.CountSessionID, c.PositionID, c.AttendeeCount, c.Notes, c.CountedBy, c.CountedAt).Scan(&id, &created)
	if err != nil {
		mapped := mapError(err)
		var ce *db.ConstraintError
		if errors.As(mapped, &ce) && ce.Kind == db.ForeignKeyViolation {
			return false, db.ErrNotFound
		}
		return false, fmt.Errorf("failed to upsert position count: %w", mapped)
	}
	c.ID = id
	return created, nil
}

// ListPositionCounts retrieves every count of the given sessions
func (d *DB) ListPositionCounts(ctx context.Context, sessionIDs []string) ([]db.PositionCount, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT id, count_session_id, position_id, attendee_count, notes, counted_by, counted_at
		FROM position_counts
		WHERE count_session_id = ANY($1::uuid[])
		ORDER BY count_session_id, position_id
	`, parseIDs(sessionIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to query position counts: %w", err)
	}
	defer rows.Close()

	var out []db.PositionCount
	for rows.Next() {
		var c db.PositionCount
		if err := rows.Scan(&c.ID, &c.CountSessionID, &c.PositionID, &c.AttendeeCount, &c.Notes, &c.CountedBy, &c.CountedAt); err != nil {
			return nil, fmt.Errorf("failed to scan position count: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating position counts: %w", err)
	}
	return out, nil
}
