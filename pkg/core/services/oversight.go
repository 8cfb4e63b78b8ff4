package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jakechorley/attendant-scheduler/pkg/core/model"
	"github.com/jakechorley/attendant-scheduler/pkg/db"
)

// IdentityDirectory resolves identities owned by the surrounding application.
// Unknown ids are absent from the returned map.
type IdentityDirectory interface {
	Lookup(ctx context.Context, ids []string) (map[string]model.Identity, error)
}

// OversightStore defines the database operations needed for oversight
type OversightStore interface {
	db.PositionStore
	db.OversightStore
}

// OversightArgs names the overseer and/or keyman to set
type OversightArgs struct {
	OverseerID *string
	KeymanID   *string
}

// OversightView is an oversight row with its identities resolved for display
type OversightView struct {
	db.Oversight
	Overseer *model.Identity `json:"overseer,omitempty"`
	Keyman   *model.Identity `json:"keyman,omitempty"`
}

// BulkOversightResult represents the result of setting oversight on many positions
type BulkOversightResult struct {
	Updated   int            `json:"updated"`
	Oversight []db.Oversight `json:"oversight"`
}

func (a OversightArgs) normalise() OversightArgs {
	if a.OverseerID != nil && *a.OverseerID == "" {
		a.OverseerID = nil
	}
	if a.KeymanID != nil && *a.KeymanID == "" {
		a.KeymanID = nil
	}
	return a
}

// validateOversightIdentities checks that every named identity exists, reporting all missing ids
func validateOversightIdentities(ctx context.Context, people IdentityDirectory, args OversightArgs) error {
	var ids []string
	if args.OverseerID != nil {
		ids = append(ids, *args.OverseerID)
	}
	if args.KeymanID != nil {
		ids = append(ids, *args.KeymanID)
	}

	found, err := people.Lookup(ctx, ids)
	if err != nil {
		return internalError("failed to look up identities", err)
	}

	var missing []string
	for _, id := range dedupe(ids) {
		if _, ok := found[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return notFound("IDENTITY_NOT_FOUND", "overseer or keyman not found").with("missing", missing)
	}
	return nil
}

func newOversightRow(eventID, positionID string, args OversightArgs, caller model.Caller, now time.Time) db.Oversight {
	return db.Oversight{
		ID:         uuid.New().String(),
		PositionID: positionID,
		EventID:    eventID,
		OverseerID: args.OverseerID,
		KeymanID:   args.KeymanID,
		AssignedBy: caller.ID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// SetOversight creates or replaces the oversight of a single position
func SetOversight(ctx context.Context, store OversightStore, people IdentityDirectory, logger *zap.Logger, caller model.Caller, eventID, positionID string, args OversightArgs) (*db.Oversight, error) {
	if err := requireRole(caller, "set oversight", schedulerRoles...); err != nil {
		return nil, err
	}
	args = args.normalise()
	if args.OverseerID == nil && args.KeymanID == nil {
		return nil, validationError("OVERSIGHT_EMPTY", "an overseer or keyman is required")
	}
	if _, err := loadEventPosition(ctx, store, eventID, positionID); err != nil {
		return nil, err
	}
	if err := validateOversightIdentities(ctx, people, args); err != nil {
		return nil, err
	}

	rows, err := store.UpsertOversight(ctx, []db.Oversight{newOversightRow(eventID, positionID, args, caller, time.Now().UTC())})
	if err != nil {
		return nil, mapStoreError(err, "failed to set oversight")
	}

	logger.Info("Oversight set",
		zap.String("event_id", eventID),
		zap.String("position_id", positionID),
		zap.Stringp("overseer_id", args.OverseerID),
		zap.Stringp("keyman_id", args.KeymanID))

	return &rows[0], nil
}

// BulkSetOversight sets the same overseer/keyman on every listed position in one transaction
func BulkSetOversight(ctx context.Context, store OversightStore, people IdentityDirectory, logger *zap.Logger, caller model.Caller, eventID string, positionIDs []string, args OversightArgs) (result *BulkOversightResult, err error) {
	defer func() {
		updated := 0
		if result != nil {
			updated = result.Updated
		}
		recordBulk("set_oversight", updated, err)
	}()

	if err := requireRole(caller, "set oversight", schedulerRoles...); err != nil {
		return nil, err
	}
	args = args.normalise()
	if args.OverseerID == nil && args.KeymanID == nil {
		return nil, validationError("OVERSIGHT_EMPTY", "an overseer or keyman is required")
	}
	positionIDs = dedupe(positionIDs)
	if len(positionIDs) == 0 {
		return nil, validationError("POSITION_IDS_REQUIRED", "at least one position id is required")
	}

	logger.Info("Bulk setting oversight",
		zap.String("event_id", eventID),
		zap.Int("positions", len(positionIDs)))

	positions, err := store.GetPositionsByIDs(ctx, eventID, positionIDs)
	if err != nil {
		return nil, mapStoreError(err, "failed to fetch positions")
	}
	found := make(map[string]bool, len(positions))
	for _, p := range positions {
		found[p.ID] = true
	}
	var missing []string
	for _, id := range positionIDs {
		if !found[id] {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return nil, notFound("POSITION_NOT_FOUND", fmt.Sprintf("%d positions not found in this event", len(missing))).
			with("missing", missing)
	}

	if err := validateOversightIdentities(ctx, people, args); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	rows := make([]db.Oversight, len(positionIDs))
	for i, id := range positionIDs {
		rows[i] = newOversightRow(eventID, id, args, caller, now)
	}
	saved, err := store.UpsertOversight(ctx, rows)
	if err != nil {
		return nil, mapStoreError(err, "failed to set oversight")
	}

	logger.Info("Oversight set on positions",
		zap.String("event_id", eventID),
		zap.Int("updated", len(saved)))

	return &BulkOversightResult{Updated: len(saved), Oversight: saved}, nil
}

// ClearOversight removes the oversight row of a position
func ClearOversight(ctx context.Context, store OversightStore, logger *zap.Logger, caller model.Caller, eventID, positionID string) error {
	if err := requireRole(caller, "clear oversight", schedulerRoles...); err != nil {
		return err
	}
	if err := store.DeleteOversight(ctx, eventID, positionID); err != nil {
		if se := mapStoreError(err, "failed to clear oversight"); KindOf(se) != KindNotFound {
			return se
		}
		return notFound("OVERSIGHT_NOT_FOUND", "no oversight set for this position").with("positionId", positionID)
	}

	logger.Info("Oversight cleared",
		zap.String("event_id", eventID),
		zap.String("position_id", positionID))
	return nil
}

// GetOversight returns the position's oversight with display identities, or nil when unset
func GetOversight(ctx context.Context, store OversightStore, people IdentityDirectory, eventID, positionID string) (*OversightView, error) {
	if _, err := loadEventPosition(ctx, store, eventID, positionID); err != nil {
		return nil, err
	}

	row, err := store.GetOversight(ctx, eventID, positionID)
	if err != nil {
		if se := mapStoreError(err, "failed to fetch oversight"); KindOf(se) != KindNotFound {
			return nil, se
		}
		return nil, nil
	}

	views, err := resolveOversight(ctx, people, []db.Oversight{*row})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

// ListOversight returns every oversight row of the event with display identities
func ListOversight(ctx context.Context, store db.OversightStore, people IdentityDirectory, eventID string) ([]OversightView, error) {
	rows, err := store.ListOversight(ctx, eventID)
	if err != nil {
		return nil, mapStoreError(err, "failed to list oversight")
	}
	return resolveOversight(ctx, people, rows)
}

func resolveOversight(ctx context.Context, people IdentityDirectory, rows []db.Oversight) ([]OversightView, error) {
	var ids []string
	for _, r := range rows {
		if r.OverseerID != nil {
			ids = append(ids, *r.OverseerID)
		}
		if r.KeymanID != nil {
			ids = append(ids, *r.KeymanID)
		}
	}

	identities := map[string]model.Identity{}
	if len(ids) > 0 {
		var err error
		identities, err = people.Lookup(ctx, dedupe(ids))
		if err != nil {
			return nil, internalError("failed to look up identities", err)
		}
	}

	views := make([]OversightView, len(rows))
	for i, r := range rows {
		views[i] = OversightView{Oversight: r}
		if r.OverseerID != nil {
			if id, ok := identities[*r.OverseerID]; ok {
				views[i].Overseer = &id
			}
		}
		if r.KeymanID != nil {
			if id, ok := identities[*r.KeymanID]; ok {
				views[i].Keyman = &id
			}
		}
	}
	return views, nil
}
