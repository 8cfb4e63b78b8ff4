package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jakechorley/attendant-scheduler/internal/config"
	"github.com/jakechorley/attendant-scheduler/pkg/core/model"
	"github.com/jakechorley/attendant-scheduler/pkg/db"
)

// AssignmentStore defines the database operations needed for the assignment ledger
type AssignmentStore interface {
	db.PositionStore
	db.AssignmentStore
}

// CreateAssignmentArgs describes a new assignment
type CreateAssignmentArgs struct {
	AttendantID string
	PositionID  string
	ShiftID     *string
	ShiftStart  time.Time
	ShiftEnd    time.Time
	Notes       *string
}

// UpdateAssignmentArgs patches an assignment; nil fields are left unchanged
type UpdateAssignmentArgs struct {
	PositionID *string
	ShiftID    *string
	ShiftStart *time.Time
	ShiftEnd   *time.Time
	Notes      *string
}

// ClearResult reports how many rows a bulk delete removed
type ClearResult struct {
	DeletedCount int64 `json:"deletedCount"`
}

// ValidStatus reports whether s is one of the four assignment statuses
func ValidStatus(s string) bool {
	switch s {
	case db.StatusAssigned, db.StatusConfirmed, db.StatusCompleted, db.StatusCancelled:
		return true
	}
	return false
}

func validateWindow(start, end time.Time) error {
	if start.IsZero() || end.IsZero() {
		return validationError("ASSIGNMENT_INVALID_WINDOW", "shift start and end are required")
	}
	if !end.After(start) {
		return validationError("ASSIGNMENT_INVALID_WINDOW", "shift end must be after shift start").
			with("shiftStart", start).with("shiftEnd", end)
	}
	return nil
}

// checkShiftOnPosition ensures an optional shift id belongs to the assignment's position
func checkShiftOnPosition(position *db.Position, shiftID *string) error {
	if shiftID == nil {
		return nil
	}
	for _, s := range position.Shifts {
		if s.ID == *shiftID {
			return nil
		}
	}
	return notFound("SHIFT_NOT_FOUND", "shift not found on position").
		with("shiftId", *shiftID).with("positionId", position.ID)
}

// checkOverlap applies the configured double-booking policy. Cancelled assignments never overlap.
func checkOverlap(ctx context.Context, store db.AssignmentStore, cfg *config.Config, a *db.Assignment) error {
	if cfg.Assignments.OverlapPolicy != config.OverlapReject {
		return nil
	}

	existing, err := store.ListAttendantAssignments(ctx, a.EventID, a.AttendantID)
	if err != nil {
		return mapStoreError(err, "failed to check overlapping assignments")
	}

	var overlapping []string
	for _, other := range existing {
		if other.ID == a.ID || other.Status == db.StatusCancelled {
			continue
		}
		if other.ShiftStart.Before(a.ShiftEnd) && a.ShiftStart.Before(other.ShiftEnd) {
			overlapping = append(overlapping, other.ID)
		}
	}
	if len(overlapping) > 0 {
		recordWriteConflict("overlap")
		return newServiceError(KindConflict, "ASSIGNMENT_OVERLAP", "attendant is already assigned during this window", nil).
			with("overlapping", overlapping)
	}
	return nil
}

// loadEventAssignment fetches an assignment, rejecting one that belongs to another event
func loadEventAssignment(ctx context.Context, store db.AssignmentStore, eventID, assignmentID string) (*db.Assignment, error) {
	a, err := store.GetAssignment(ctx, assignmentID)
	if err != nil {
		if se := mapStoreError(err, "failed to fetch assignment"); KindOf(se) != KindNotFound {
			return nil, se
		}
		return nil, notFound("ASSIGNMENT_NOT_FOUND", "assignment not found").with("assignmentId", assignmentID)
	}
	if a.EventID != eventID {
		return nil, validationError("ASSIGNMENT_EVENT_MISMATCH", "assignment does not belong to this event").
			with("assignmentId", assignmentID)
	}
	return a, nil
}

// ListAssignments returns the event's assignments ordered by shift start
func ListAssignments(ctx context.Context, store db.AssignmentStore, eventID string) ([]db.Assignment, error) {
	assignments, err := store.ListAssignments(ctx, eventID)
	if err != nil {
		return nil, mapStoreError(err, "failed to list assignments")
	}
	if assignments == nil {
		assignments = []db.Assignment{}
	}
	return assignments, nil
}

// CreateAssignment assigns an attendant to a position for a shift window
func CreateAssignment(ctx context.Context, store AssignmentStore, people IdentityDirectory, cfg *config.Config, logger *zap.Logger, caller model.Caller, eventID string, args CreateAssignmentArgs) (*db.Assignment, error) {
	if err := requireRole(caller, "create assignments", schedulerRoles...); err != nil {
		return nil, err
	}
	if args.AttendantID == "" {
		return nil, validationError("ATTENDANT_REQUIRED", "attendant id is required")
	}
	if err := validateWindow(args.ShiftStart, args.ShiftEnd); err != nil {
		return nil, err
	}

	position, err := loadEventPosition(ctx, store, eventID, args.PositionID)
	if err != nil {
		return nil, err
	}
	if err := checkShiftOnPosition(position, args.ShiftID); err != nil {
		return nil, err
	}

	found, err := people.Lookup(ctx, []string{args.AttendantID})
	if err != nil {
		return nil, internalError("failed to look up attendant", err)
	}
	if _, ok := found[args.AttendantID]; !ok {
		return nil, notFound("ATTENDANT_NOT_FOUND", "attendant not found").with("attendantId", args.AttendantID)
	}

	now := time.Now().UTC()
	assignment := &db.Assignment{
		ID:          uuid.New().String(),
		EventID:     eventID,
		AttendantID: args.AttendantID,
		PositionID:  args.PositionID,
		ShiftID:     args.ShiftID,
		ShiftStart:  args.ShiftStart.UTC(),
		ShiftEnd:    args.ShiftEnd.UTC(),
		Status:      db.StatusAssigned,
		Notes:       args.Notes,
		AssignedBy:  caller.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := checkOverlap(ctx, store, cfg, assignment); err != nil {
		return nil, err
	}

	if err := store.InsertAssignment(ctx, assignment); err != nil {
		return nil, mapStoreError(err, "failed to create assignment")
	}

	logger.Info("Assignment created",
		zap.String("event_id", eventID),
		zap.String("assignment_id", assignment.ID),
		zap.String("attendant_id", assignment.AttendantID),
		zap.String("position_id", assignment.PositionID),
		zap.Time("shift_start", assignment.ShiftStart))

	return assignment, nil
}

// UpdateAssignment applies a patch with the same validation as creation
func UpdateAssignment(ctx context.Context, store AssignmentStore, cfg *config.Config, logger *zap.Logger, caller model.Caller, eventID, assignmentID string, args UpdateAssignmentArgs) (*db.Assignment, error) {
	if err := requireRole(caller, "update assignments", schedulerRoles...); err != nil {
		return nil, err
	}

	assignment, err := loadEventAssignment(ctx, store, eventID, assignmentID)
	if err != nil {
		return nil, err
	}

	if args.PositionID != nil && *args.PositionID != assignment.PositionID {
		assignment.PositionID = *args.PositionID
		// A shift belongs to the old position unless a new one is given
		assignment.ShiftID = nil
	}
	if args.ShiftID != nil {
		if *args.ShiftID == "" {
			assignment.ShiftID = nil
		} else {
			shiftID := *args.ShiftID
			assignment.ShiftID = &shiftID
		}
	}
	if args.ShiftStart != nil {
		assignment.ShiftStart = args.ShiftStart.UTC()
	}
	if args.ShiftEnd != nil {
		assignment.ShiftEnd = args.ShiftEnd.UTC()
	}
	if args.Notes != nil {
		assignment.Notes = args.Notes
	}

	if err := validateWindow(assignment.ShiftStart, assignment.ShiftEnd); err != nil {
		return nil, err
	}
	position, err := loadEventPosition(ctx, store, eventID, assignment.PositionID)
	if err != nil {
		return nil, err
	}
	if err := checkShiftOnPosition(position, assignment.ShiftID); err != nil {
		return nil, err
	}
	if err := checkOverlap(ctx, store, cfg, assignment); err != nil {
		return nil, err
	}

	assignment.UpdatedAt = time.Now().UTC()
	if err := store.UpdateAssignment(ctx, assignment); err != nil {
		return nil, mapStoreError(err, "failed to update assignment")
	}

	logger.Info("Assignment updated",
		zap.String("event_id", eventID),
		zap.String("assignment_id", assignmentID))

	return assignment, nil
}

// UpdateStatus sets any of the four statuses; there is no transition table
func UpdateStatus(ctx context.Context, store db.AssignmentStore, logger *zap.Logger, caller model.Caller, eventID, assignmentID, status string) (*db.Assignment, error) {
	if err := requireRole(caller, "update assignments", schedulerRoles...); err != nil {
		return nil, err
	}
	if !ValidStatus(status) {
		return nil, validationError("ASSIGNMENT_STATUS_INVALID", fmt.Sprintf("invalid status %q", status))
	}

	assignment, err := loadEventAssignment(ctx, store, eventID, assignmentID)
	if err != nil {
		return nil, err
	}

	previous := assignment.Status
	assignment.Status = status
	assignment.UpdatedAt = time.Now().UTC()
	if err := store.UpdateAssignment(ctx, assignment); err != nil {
		return nil, mapStoreError(err, "failed to update assignment status")
	}

	logger.Info("Assignment status changed",
		zap.String("assignment_id", assignmentID),
		zap.String("from", previous),
		zap.String("to", status))

	return assignment, nil
}

// DeleteAssignment removes one assignment of the event
func DeleteAssignment(ctx context.Context, store db.AssignmentStore, logger *zap.Logger, caller model.Caller, eventID, assignmentID string) error {
	if err := requireRole(caller, "delete assignments", schedulerRoles...); err != nil {
		return err
	}
	if _, err := loadEventAssignment(ctx, store, eventID, assignmentID); err != nil {
		return err
	}

	if err := store.DeleteAssignment(ctx, assignmentID); err != nil {
		return mapStoreError(err, "failed to delete assignment")
	}

	logger.Info("Assignment deleted",
		zap.String("event_id", eventID),
		zap.String("assignment_id", assignmentID))
	return nil
}

// ClearAssignments deletes every assignment of the event
func ClearAssignments(ctx context.Context, store db.AssignmentStore, logger *zap.Logger, caller model.Caller, eventID string) (result *ClearResult, err error) {
	defer func() {
		var deleted int64
		if result != nil {
			deleted = result.DeletedCount
		}
		recordBulk("clear_assignments", int(deleted), err)
	}()

	if err := requireRole(caller, "clear assignments", schedulerRoles...); err != nil {
		return nil, err
	}

	logger.Info("Clearing all assignments", zap.String("event_id", eventID))

	deleted, err := store.DeleteEventAssignments(ctx, eventID)
	if err != nil {
		return nil, mapStoreError(err, "failed to clear assignments")
	}

	logger.Info("Assignments cleared",
		zap.String("event_id", eventID),
		zap.Int64("deleted", deleted))

	return &ClearResult{DeletedCount: deleted}, nil
}
