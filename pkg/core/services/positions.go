package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jakechorley/attendant-scheduler/internal/config"
	"github.com/jakechorley/attendant-scheduler/pkg/core/model"
	"github.com/jakechorley/attendant-scheduler/pkg/core/shifttemplates"
	"github.com/jakechorley/attendant-scheduler/pkg/db"
)

// PositionTemplateStore defines the database operations needed for bulk position creation
type PositionTemplateStore interface {
	db.PositionStore
	db.ShiftTemplateStore
}

// CreatePositionArgs describes a single position
type CreatePositionArgs struct {
	PositionNumber int
	Name           string
	Area           *string
	Sequence       *int
}

// BulkCreateArgs describes a numbered range of positions. CustomShifts take precedence
// over ShiftTemplateID when both are given.
type BulkCreateArgs struct {
	StartNumber     int
	EndNumber       int
	NamePrefix      string
	Area            *string
	ShiftTemplateID string
	CustomShifts    []db.ShiftBlueprint
}

// BulkCreateResult represents the result of a bulk position creation
type BulkCreateResult struct {
	Created   int           `json:"created"`
	Positions []db.Position `json:"positions"`
}

// ListPositions returns the event's positions ordered by sequence then number
func ListPositions(ctx context.Context, store db.PositionStore, eventID string) ([]db.Position, error) {
	positions, err := store.ListPositions(ctx, eventID)
	if err != nil {
		return nil, mapStoreError(err, "failed to list positions")
	}
	if positions == nil {
		positions = []db.Position{}
	}
	return positions, nil
}

// GetPosition returns a position of the event with its shifts
func GetPosition(ctx context.Context, store db.PositionStore, eventID, positionID string) (*db.Position, error) {
	return loadEventPosition(ctx, store, eventID, positionID)
}

// loadEventPosition fetches a position and treats one from another event as missing
func loadEventPosition(ctx context.Context, store db.PositionStore, eventID, positionID string) (*db.Position, error) {
	if positionID == "" {
		return nil, validationError("POSITION_ID_REQUIRED", "position id is required")
	}
	position, err := store.GetPosition(ctx, positionID)
	if err != nil {
		if se := mapStoreError(err, "failed to fetch position"); KindOf(se) != KindNotFound {
			return nil, se
		}
		return nil, notFound("POSITION_NOT_FOUND", "position not found in this event").with("positionId", positionID)
	}
	if position.EventID != eventID {
		return nil, notFound("POSITION_NOT_FOUND", "position not found in this event").with("positionId", positionID)
	}
	return position, nil
}

// CreatePosition creates a single position. Sequence defaults to the position number.
func CreatePosition(ctx context.Context, store db.PositionStore, logger *zap.Logger, caller model.Caller, eventID string, args CreatePositionArgs) (*db.Position, error) {
	if err := requireRole(caller, "create positions", schedulerRoles...); err != nil {
		return nil, err
	}
	if args.PositionNumber < 1 {
		return nil, validationError("POSITION_NUMBER_INVALID", "position number must be at least 1")
	}
	name := strings.TrimSpace(args.Name)
	if name == "" {
		return nil, validationError("POSITION_NAME_REQUIRED", "position name is required")
	}

	sequence := args.PositionNumber
	if args.Sequence != nil {
		sequence = *args.Sequence
	}

	now := time.Now().UTC()
	position := db.Position{
		ID:             uuid.New().String(),
		EventID:        eventID,
		PositionNumber: args.PositionNumber,
		Name:           name,
		Area:           args.Area,
		Sequence:       sequence,
		IsActive:       true,
		CreatedAt:      now,
		UpdatedAt:      now,
		Shifts:         []db.Shift{},
	}

	logger.Debug("Creating position",
		zap.String("event_id", eventID),
		zap.Int("position_number", args.PositionNumber))

	if err := store.InsertPositions(ctx, []db.Position{position}); err != nil {
		mapped := mapStoreError(err, "failed to create position")
		if se := AsServiceError(mapped); se.Kind == KindConflict {
			se.with("conflicts", []int{args.PositionNumber})
		}
		return nil, mapped
	}

	logger.Info("Position created",
		zap.String("event_id", eventID),
		zap.String("position_id", position.ID),
		zap.Int("position_number", position.PositionNumber))

	return &position, nil
}

// BulkCreatePositions creates "{prefix} {n}" positions for every n in the range, with the
// resolved blueprint shifts, all or nothing. Every number already taken is reported.
func BulkCreatePositions(ctx context.Context, store PositionTemplateStore, cfg *config.Config, logger *zap.Logger, caller model.Caller, eventID string, args BulkCreateArgs) (result *BulkCreateResult, err error) {
	defer func() {
		created := 0
		if result != nil {
			created = result.Created
		}
		recordBulk("create_positions", created, err)
	}()

	if err := requireRole(caller, "create positions", schedulerRoles...); err != nil {
		return nil, err
	}

	if args.StartNumber < 1 {
		return nil, validationError("POSITION_RANGE_INVALID", "start number must be at least 1")
	}
	if args.EndNumber < args.StartNumber {
		return nil, validationError("POSITION_RANGE_INVALID", "end number must not be less than start number").
			with("startNumber", args.StartNumber).with("endNumber", args.EndNumber)
	}
	count := args.EndNumber - args.StartNumber + 1
	if count > cfg.Limits.MaxBulkPositions {
		return nil, validationError("POSITION_RANGE_TOO_LARGE",
			fmt.Sprintf("cannot create more than %d positions at once", cfg.Limits.MaxBulkPositions)).
			with("requested", count).with("max", cfg.Limits.MaxBulkPositions)
	}
	prefix := strings.TrimSpace(args.NamePrefix)
	if prefix == "" {
		return nil, validationError("POSITION_NAME_REQUIRED", "name prefix is required")
	}

	var blueprints []db.ShiftBlueprint
	switch {
	case len(args.CustomShifts) > 0:
		blueprints = args.CustomShifts
	case args.ShiftTemplateID != "":
		blueprints, err = resolveTemplate(ctx, store, args.ShiftTemplateID)
		if err != nil {
			return nil, err
		}
	}
	if problems := shifttemplates.Validate(blueprints); len(problems) > 0 {
		return nil, validationError("SHIFT_BLUEPRINT_INVALID", "invalid shift definitions").with("problems", problems)
	}

	logger.Info("Bulk creating positions",
		zap.String("event_id", eventID),
		zap.Int("start", args.StartNumber),
		zap.Int("end", args.EndNumber),
		zap.Int("shifts_per_position", len(blueprints)))

	// Pre-scan so the caller sees every collision, not just the first
	logger.Debug("Checking for existing position numbers")
	existing, err := store.FindPositionNumbers(ctx, eventID, args.StartNumber, args.EndNumber)
	if err != nil {
		return nil, mapStoreError(err, "failed to check existing positions")
	}
	if len(existing) > 0 {
		recordWriteConflict("precheck")
		return nil, newServiceError(KindConflict, "POSITION_NUMBER_CONFLICT",
			fmt.Sprintf("%d position numbers already exist", len(existing)), nil).
			with("conflicts", existing)
	}

	now := time.Now().UTC()
	positions := make([]db.Position, 0, count)
	for n := args.StartNumber; n <= args.EndNumber; n++ {
		positionID := uuid.New().String()
		shifts := make([]db.Shift, len(blueprints))
		for i, bp := range blueprints {
			shifts[i] = shifttemplates.ToShift(uuid.New().String(), positionID, i+1, bp)
		}
		positions = append(positions, db.Position{
			ID:             positionID,
			EventID:        eventID,
			PositionNumber: n,
			Name:           fmt.Sprintf("%s %d", prefix, n),
			Area:           args.Area,
			Sequence:       n,
			IsActive:       true,
			CreatedAt:      now,
			UpdatedAt:      now,
			Shifts:         shifts,
		})
	}

	// The unique constraint still guards against a concurrent create racing the pre-scan
	if err := store.InsertPositions(ctx, positions); err != nil {
		if db.IsConstraint(err, db.ConstraintPositionNumber) {
			return nil, racedNumberConflict(ctx, store, eventID, args.StartNumber, args.EndNumber, err)
		}
		return nil, mapStoreError(err, "failed to create positions")
	}

	logger.Info("Positions created",
		zap.String("event_id", eventID),
		zap.Int("created", len(positions)))

	return &BulkCreateResult{Created: len(positions), Positions: positions}, nil
}

// racedNumberConflict rescans the range after a concurrent create beat the pre-scan
func racedNumberConflict(ctx context.Context, store db.PositionStore, eventID string, start, end int, cause error) error {
	se := AsServiceError(mapStoreError(cause, "failed to create positions"))
	taken, err := store.FindPositionNumbers(ctx, eventID, start, end)
	if err != nil || len(taken) == 0 {
		return se
	}
	se.Message = fmt.Sprintf("%d position numbers already exist", len(taken))
	return se.with("conflicts", taken)
}

// SetPositionActive deactivates or reactivates a position. Assignments are untouched.
func SetPositionActive(ctx context.Context, store db.PositionStore, logger *zap.Logger, caller model.Caller, eventID, positionID string, active bool) (*db.Position, error) {
	if err := requireRole(caller, "change position status", schedulerRoles...); err != nil {
		return nil, err
	}
	if _, err := loadEventPosition(ctx, store, eventID, positionID); err != nil {
		return nil, err
	}

	position, err := store.SetPositionActive(ctx, positionID, active)
	if err != nil {
		return nil, mapStoreError(err, "failed to update position")
	}

	logger.Info("Position status changed",
		zap.String("position_id", positionID),
		zap.Bool("active", active))

	return position, nil
}

// DeletePosition removes a position and its shifts. Positions still referenced by
// assignments or oversight cannot be deleted.
func DeletePosition(ctx context.Context, store db.PositionStore, logger *zap.Logger, caller model.Caller, eventID, positionID string) error {
	if err := requireRole(caller, "delete positions", schedulerRoles...); err != nil {
		return err
	}
	if _, err := loadEventPosition(ctx, store, eventID, positionID); err != nil {
		return err
	}

	refs, err := store.CountPositionReferences(ctx, positionID)
	if err != nil {
		return mapStoreError(err, "failed to check position references")
	}
	if refs.Assignments > 0 || refs.Oversight > 0 {
		return positionInUse(refs, nil)
	}

	if err := store.DeletePosition(ctx, positionID); err != nil {
		if db.IsConstraint(err, db.ConstraintAssignmentFK) || db.IsConstraint(err, db.ConstraintOversightFK) {
			// A reference was added after the check
			refs, _ = store.CountPositionReferences(ctx, positionID)
			return positionInUse(refs, err)
		}
		return mapStoreError(err, "failed to delete position")
	}

	logger.Info("Position deleted",
		zap.String("event_id", eventID),
		zap.String("position_id", positionID))

	return nil
}

func positionInUse(refs db.PositionReferences, cause error) *ServiceError {
	recordWriteConflict("position_in_use")
	return newServiceError(KindConflict, "POSITION_IN_USE",
		fmt.Sprintf("position has %d assignments and %d oversight records", refs.Assignments, refs.Oversight), cause).
		with("assignments", refs.Assignments).
		with("oversight", refs.Oversight)
}
