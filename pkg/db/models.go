package db

import "time"

// Assignment statuses
const (
	StatusAssigned  = "ASSIGNED"
	StatusConfirmed = "CONFIRMED"
	StatusCompleted = "COMPLETED"
	StatusCancelled = "CANCELLED"
)

// Count session statuses
const (
	SessionActive    = "ACTIVE"
	SessionCompleted = "COMPLETED"
	SessionCancelled = "CANCELLED"
)

// Position represents a numbered work slot within an event
type Position struct {
	ID             string    `json:"id"`
	EventID        string    `json:"eventId"`
	PositionNumber int       `json:"positionNumber"`
	Name           string    `json:"name"`
	Area           *string   `json:"area,omitempty"`
	Sequence       int       `json:"sequence"`
	IsActive       bool      `json:"isActive"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
	Shifts         []Shift   `json:"shifts"`
}

// Shift represents a time block owned by a single position
type Shift struct {
	ID         string  `json:"id"`
	PositionID string  `json:"positionId"`
	Name       string  `json:"name"`
	StartTime  *string `json:"startTime,omitempty"`
	EndTime    *string `json:"endTime,omitempty"`
	IsAllDay   bool    `json:"isAllDay"`
	Sequence   int     `json:"sequence"`
}

// ShiftBlueprint is one entry of a shift template. Stamping copies these values into shifts.
type ShiftBlueprint struct {
	Name      string `json:"name" yaml:"name" validate:"required,max=100"`
	StartTime string `json:"startTime,omitempty" yaml:"startTime,omitempty"`
	EndTime   string `json:"endTime,omitempty" yaml:"endTime,omitempty"`
	IsAllDay  bool   `json:"isAllDay" yaml:"isAllDay"`
}

// ShiftTemplate is a named, ordered list of shift blueprints
type ShiftTemplate struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Shifts      []ShiftBlueprint `json:"shifts"`
	IsSystem    bool             `json:"isSystemTemplate"`
	CreatedAt   time.Time        `json:"createdAt"`
}

// ShiftStamp is the set of blueprints to append to one position
type ShiftStamp struct {
	PositionID string
	Blueprints []ShiftBlueprint
}

// Oversight is the overseer/keyman pairing of a position. One row per (position, event).
type Oversight struct {
	ID         string    `json:"id"`
	PositionID string    `json:"positionId"`
	EventID    string    `json:"eventId"`
	OverseerID *string   `json:"overseerId,omitempty"`
	KeymanID   *string   `json:"keymanId,omitempty"`
	AssignedBy string    `json:"assignedBy"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Assignment binds an attendant to a position for a concrete shift window
type Assignment struct {
	ID          string    `json:"id"`
	EventID     string    `json:"eventId"`
	AttendantID string    `json:"attendantId"`
	PositionID  string    `json:"positionId"`
	ShiftID     *string   `json:"shiftId,omitempty"`
	ShiftStart  time.Time `json:"shiftStart"`
	ShiftEnd    time.Time `json:"shiftEnd"`
	Status      string    `json:"status"`
	Notes       *string   `json:"notes,omitempty"`
	AssignedBy  string    `json:"assignedBy"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// CountSession is a named point-in-time attendance count within an event
type CountSession struct {
	ID          string    `json:"id"`
	EventID     string    `json:"eventId"`
	SessionName string    `json:"sessionName"`
	CountTime   time.Time `json:"countTime"`
	Status      string    `json:"status"`
	IsActive    bool      `json:"isActive"`
	Notes       *string   `json:"notes,omitempty"`
	CreatedBy   string    `json:"createdBy"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// PositionCount is the headcount submitted for one position within a count session
type PositionCount struct {
	ID             string    `json:"id"`
	CountSessionID string    `json:"countSessionId"`
	PositionID     string    `json:"positionId"`
	AttendeeCount  int       `json:"attendeeCount"`
	Notes          *string   `json:"notes,omitempty"`
	CountedBy      string    `json:"countedBy"`
	CountedAt      time.Time `json:"countedAt"`
}

// Person is a row of the people directory maintained by the surrounding application
type Person struct {
	ID        string
	FirstName string
	LastName  string
	Role      string
}

// PositionReferences counts the rows that prevent a position from being deleted
type PositionReferences struct {
	Assignments int
	Oversight   int
}
