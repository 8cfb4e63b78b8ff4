package db

import "context"

// PositionStore defines position and shift persistence
type PositionStore interface {
	ListPositions(ctx context.Context, eventID string) ([]Position, error)
	GetPosition(ctx context.Context, positionID string) (*Position, error)
	GetPositionsByIDs(ctx context.Context, eventID string, positionIDs []string) ([]Position, error)
	FindPositionNumbers(ctx context.Context, eventID string, start, end int) ([]int, error)
	// InsertPositions inserts the positions and their shifts in a single transaction
	InsertPositions(ctx context.Context, positions []Position) error
	SetPositionActive(ctx context.Context, positionID string, active bool) (*Position, error)
	CountPositionReferences(ctx context.Context, positionID string) (PositionReferences, error)
	// DeletePosition removes the position and its shifts
	DeletePosition(ctx context.Context, positionID string) error
	// AppendShifts appends every stamp in one transaction, continuing each position's sequence
	AppendShifts(ctx context.Context, stamps []ShiftStamp) (map[string][]Shift, error)
}

// ShiftTemplateStore defines stored shift template persistence
type ShiftTemplateStore interface {
	ListShiftTemplates(ctx context.Context) ([]ShiftTemplate, error)
	GetShiftTemplate(ctx context.Context, id string) (*ShiftTemplate, error)
	InsertShiftTemplate(ctx context.Context, template *ShiftTemplate) error
}

// OversightStore defines oversight persistence
type OversightStore interface {
	GetOversight(ctx context.Context, eventID, positionID string) (*Oversight, error)
	ListOversight(ctx context.Context, eventID string) ([]Oversight, error)
	// UpsertOversight writes every row keyed by (position, event) in a single transaction
	UpsertOversight(ctx context.Context, rows []Oversight) ([]Oversight, error)
	DeleteOversight(ctx context.Context, eventID, positionID string) error
}

// AssignmentStore defines assignment persistence
type AssignmentStore interface {
	ListAssignments(ctx context.Context, eventID string) ([]Assignment, error)
	ListAttendantAssignments(ctx context.Context, eventID, attendantID string) ([]Assignment, error)
	GetAssignment(ctx context.Context, id string) (*Assignment, error)
	InsertAssignment(ctx context.Context, assignment *Assignment) error
	UpdateAssignment(ctx context.Context, assignment *Assignment) error
	DeleteAssignment(ctx context.Context, id string) error
	DeleteEventAssignments(ctx context.Context, eventID string) (int64, error)
}

// CountStore defines count session and position count persistence
type CountStore interface {
	ListCountSessions(ctx context.Context, eventID string) ([]CountSession, error)
	GetCountSession(ctx context.Context, id string) (*CountSession, error)
	FindSessionNames(ctx context.Context, eventID string, names []string) ([]string, error)
	// InsertCountSessions inserts all sessions in a single transaction
	InsertCountSessions(ctx context.Context, sessions []CountSession) error
	UpdateCountSession(ctx context.Context, session *CountSession) error
	// DeleteCountSession removes the session and its position counts
	DeleteCountSession(ctx context.Context, id string) error
	UpsertPositionCount(ctx context.Context, count *PositionCount) (bool, error)
	ListPositionCounts(ctx context.Context, sessionIDs []string) ([]PositionCount, error)
}

// PersonStore reads the people directory owned by the surrounding application
type PersonStore interface {
	GetPeople(ctx context.Context, ids []string) ([]Person, error)
}

// Database defines the interface for all database operations.
// Both the in-memory MemDB and postgres.DB implement this interface.
type Database interface {
	PositionStore
	ShiftTemplateStore
	OversightStore
	AssignmentStore
	CountStore
	PersonStore
}
