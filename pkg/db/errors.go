package db

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a referenced row does not exist
var ErrNotFound = errors.New("record not found")

// Constraint names shared by every store implementation
const (
	ConstraintPositionNumber = "positions_event_id_position_number_key"
	ConstraintSessionName    = "count_sessions_event_id_session_name_key"
	ConstraintTemplateName   = "shift_templates_name_key"
	ConstraintAssignmentFK   = "assignments_position_id_fkey"
	ConstraintOversightFK    = "position_oversight_position_id_fkey"
)

// ConstraintKind classifies a constraint violation
type ConstraintKind string

const (
	UniqueViolation     ConstraintKind = "unique"
	ForeignKeyViolation ConstraintKind = "foreign_key"
)

// ConstraintError reports a violated store constraint
type ConstraintError struct {
	Kind       ConstraintKind
	Constraint string
	Err        error
}

func (e *ConstraintError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s constraint %s violated", e.Kind, e.Constraint)
	}
	return fmt.Sprintf("%s constraint %s violated: %v", e.Kind, e.Constraint, e.Err)
}

func (e *ConstraintError) Unwrap() error { return e.Err }

// IsConstraint reports whether err is a violation of the named constraint
func IsConstraint(err error, constraint string) bool {
	var ce *ConstraintError
	return errors.As(err, &ce) && ce.Constraint == constraint
}
