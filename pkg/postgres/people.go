package postgres

import (
	"context"
	"fmt"

	"github.com/jakechorley/attendant-scheduler/pkg/db"
)

// GetPeople retrieves the people among ids that exist
func (d *DB) GetPeople(ctx context.Context, ids []string) ([]db.Person, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := d.pool.Query(ctx, `
		SELECT id, first_name, last_name, role
		FROM people
		WHERE id = ANY($1)
	`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to query people: %w", err)
	}
	defer rows.Close()

	var people []db.Person
	for rows.Next() {
		var p db.Person
		if err := rows.Scan(&p.ID, &p.FirstName, &p.LastName, &p.Role); err != nil {
			return nil, fmt.Errorf("failed to scan person: %w", err)
		}
		people = append(people, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating people: %w", err)
	}
	return people, nil
}
