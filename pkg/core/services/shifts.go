package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jakechorley/attendant-scheduler/pkg/core/model"
	"github.com/jakechorley/attendant-scheduler/pkg/core/shifttemplates"
	"github.com/jakechorley/attendant-scheduler/pkg/db"
)

// ApplyTemplateArgs selects the positions to stamp and the template to stamp them with.
// TemplateType is a built-in type, "custom" (uses CustomShifts) or a stored template id.
type ApplyTemplateArgs struct {
	PositionIDs  []string
	TemplateType string
	CustomShifts []db.ShiftBlueprint
}

// PositionShiftCount reports the shifts added to one position
type PositionShiftCount struct {
	PositionID     string `json:"positionId"`
	PositionNumber int    `json:"positionNumber"`
	ShiftsAdded    int    `json:"shiftsAdded"`
	TotalShifts    int    `json:"totalShifts"`
}

// ApplyTemplateResult represents the result of stamping a template onto positions
type ApplyTemplateResult struct {
	TemplateType string               `json:"templateType"`
	Positions    []PositionShiftCount `json:"positions"`
}

// BuiltinTemplate is a built-in shift pattern addressed by its type
type BuiltinTemplate struct {
	Type   string              `json:"type"`
	Shifts []db.ShiftBlueprint `json:"shifts"`
}

// TemplateListing groups the built-in and stored templates
type TemplateListing struct {
	Builtin []BuiltinTemplate  `json:"builtin"`
	Stored  []db.ShiftTemplate `json:"stored"`
}

// resolveTemplate returns the blueprints of a built-in type or a stored template id
func resolveTemplate(ctx context.Context, store db.ShiftTemplateStore, ref string) ([]db.ShiftBlueprint, error) {
	if blueprints, ok := shifttemplates.Builtin(ref); ok {
		return blueprints, nil
	}

	template, err := store.GetShiftTemplate(ctx, ref)
	if err != nil {
		if se := mapStoreError(err, "failed to fetch shift template"); KindOf(se) != KindNotFound {
			return nil, se
		}
		return nil, notFound("TEMPLATE_NOT_FOUND", "shift template not found").with("template", ref)
	}
	return template.Shifts, nil
}

// AddShift appends a single shift to a position, continuing its sequence
func AddShift(ctx context.Context, store db.PositionStore, logger *zap.Logger, caller model.Caller, eventID, positionID string, blueprint db.ShiftBlueprint) (*db.Shift, error) {
	if err := requireRole(caller, "edit shifts", schedulerRoles...); err != nil {
		return nil, err
	}
	blueprint.Name = strings.TrimSpace(blueprint.Name)
	if problems := shifttemplates.Validate([]db.ShiftBlueprint{blueprint}); len(problems) > 0 {
		return nil, validationError("SHIFT_BLUEPRINT_INVALID", "invalid shift definition").with("problems", problems)
	}
	if _, err := loadEventPosition(ctx, store, eventID, positionID); err != nil {
		return nil, err
	}

	created, err := store.AppendShifts(ctx, []db.ShiftStamp{{PositionID: positionID, Blueprints: []db.ShiftBlueprint{blueprint}}})
	if err != nil {
		return nil, mapStoreError(err, "failed to add shift")
	}
	shifts := created[positionID]
	if len(shifts) != 1 {
		return nil, internalError("shift was not created", nil)
	}

	logger.Info("Shift added",
		zap.String("position_id", positionID),
		zap.String("shift", shifts[0].Name),
		zap.Int("sequence", shifts[0].Sequence))

	return &shifts[0], nil
}

// ApplyTemplate appends the template's shifts to every listed position in one transaction.
// Stamping is additive: existing shifts are kept and new ones continue the sequence.
func ApplyTemplate(ctx context.Context, store PositionTemplateStore, logger *zap.Logger, caller model.Caller, eventID string, args ApplyTemplateArgs) (result *ApplyTemplateResult, err error) {
	defer func() {
		added := 0
		if result != nil {
			for _, p := range result.Positions {
				added += p.ShiftsAdded
			}
		}
		recordBulk("apply_template", added, err)
	}()

	if err := requireRole(caller, "edit shifts", schedulerRoles...); err != nil {
		return nil, err
	}

	positionIDs := dedupe(args.PositionIDs)
	if len(positionIDs) == 0 {
		return nil, validationError("POSITION_IDS_REQUIRED", "at least one position id is required")
	}

	var blueprints []db.ShiftBlueprint
	switch args.TemplateType {
	case "":
		return nil, validationError("TEMPLATE_REQUIRED", "template type is required")
	case shifttemplates.TypeCustom:
		if len(args.CustomShifts) == 0 {
			return nil, validationError("CUSTOM_SHIFTS_REQUIRED", "custom template requires at least one shift")
		}
		blueprints = args.CustomShifts
	default:
		blueprints, err = resolveTemplate(ctx, store, args.TemplateType)
		if err != nil {
			return nil, err
		}
	}
	if problems := shifttemplates.Validate(blueprints); len(problems) > 0 {
		return nil, validationError("SHIFT_BLUEPRINT_INVALID", "invalid shift definitions").with("problems", problems)
	}

	logger.Info("Applying shift template",
		zap.String("event_id", eventID),
		zap.String("template", args.TemplateType),
		zap.Int("positions", len(positionIDs)),
		zap.Int("shifts_per_position", len(blueprints)))

	// Every position must belong to the event before anything is written
	logger.Debug("Validating positions")
	positions, err := store.GetPositionsByIDs(ctx, eventID, positionIDs)
	if err != nil {
		return nil, mapStoreError(err, "failed to fetch positions")
	}
	found := make(map[string]db.Position, len(positions))
	for _, p := range positions {
		found[p.ID] = p
	}
	var missing []string
	for _, id := range positionIDs {
		if _, ok := found[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return nil, notFound("POSITION_NOT_FOUND", fmt.Sprintf("%d positions not found in this event", len(missing))).
			with("missing", missing)
	}

	stamps := make([]db.ShiftStamp, len(positionIDs))
	for i, id := range positionIDs {
		stamps[i] = db.ShiftStamp{PositionID: id, Blueprints: blueprints}
	}
	created, err := store.AppendShifts(ctx, stamps)
	if err != nil {
		return nil, mapStoreError(err, "failed to apply shift template")
	}

	result = &ApplyTemplateResult{TemplateType: args.TemplateType, Positions: make([]PositionShiftCount, 0, len(positionIDs))}
	for _, id := range positionIDs {
		p := found[id]
		added := len(created[id])
		result.Positions = append(result.Positions, PositionShiftCount{
			PositionID:     id,
			PositionNumber: p.PositionNumber,
			ShiftsAdded:    added,
			TotalShifts:    len(p.Shifts) + added,
		})
	}

	logger.Info("Shift template applied",
		zap.String("event_id", eventID),
		zap.Int("positions", len(result.Positions)))

	return result, nil
}

// ListTemplates returns the built-in patterns followed by every stored template
func ListTemplates(ctx context.Context, store db.ShiftTemplateStore) (*TemplateListing, error) {
	listing := &TemplateListing{}
	for _, typ := range shifttemplates.BuiltinTypes() {
		shifts, _ := shifttemplates.Builtin(typ)
		listing.Builtin = append(listing.Builtin, BuiltinTemplate{Type: typ, Shifts: shifts})
	}

	stored, err := store.ListShiftTemplates(ctx)
	if err != nil {
		return nil, mapStoreError(err, "failed to list shift templates")
	}
	if stored == nil {
		stored = []db.ShiftTemplate{}
	}
	listing.Stored = stored
	return listing, nil
}

// CreateTemplate stores a user-defined template. Names are unique.
func CreateTemplate(ctx context.Context, store db.ShiftTemplateStore, logger *zap.Logger, caller model.Caller, name, description string, shifts []db.ShiftBlueprint) (*db.ShiftTemplate, error) {
	if err := requireRole(caller, "create shift templates", schedulerRoles...); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, validationError("TEMPLATE_NAME_REQUIRED", "template name is required")
	}
	if len(shifts) == 0 {
		return nil, validationError("TEMPLATE_SHIFTS_REQUIRED", "template requires at least one shift")
	}
	if problems := shifttemplates.Validate(shifts); len(problems) > 0 {
		return nil, validationError("SHIFT_BLUEPRINT_INVALID", "invalid shift definitions").with("problems", problems)
	}

	template := &db.ShiftTemplate{
		ID:          uuid.New().String(),
		Name:        name,
		Description: description,
		Shifts:      shifts,
		CreatedAt:   time.Now().UTC(),
	}
	if err := store.InsertShiftTemplate(ctx, template); err != nil {
		return nil, mapStoreError(err, "failed to create shift template")
	}

	logger.Info("Shift template created",
		zap.String("template_id", template.ID),
		zap.String("name", template.Name),
		zap.Int("shifts", len(shifts)))

	return template, nil
}

// SeedSystemTemplates inserts any system template missing by name and returns how many were added
func SeedSystemTemplates(ctx context.Context, store db.ShiftTemplateStore, logger *zap.Logger) (int, error) {
	existing, err := store.ListShiftTemplates(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list shift templates: %w", err)
	}
	names := make(map[string]bool, len(existing))
	for _, t := range existing {
		names[t.Name] = true
	}

	added := 0
	for _, t := range shifttemplates.SystemTemplates() {
		if names[t.Name] {
			logger.Debug("System template already present", zap.String("name", t.Name))
			continue
		}
		t.ID = uuid.New().String()
		t.CreatedAt = time.Now().UTC()
		if err := store.InsertShiftTemplate(ctx, &t); err != nil {
			if db.IsConstraint(err, db.ConstraintTemplateName) {
				continue
			}
			return added, fmt.Errorf("failed to seed template %s: %w", t.Name, err)
		}
		added++
	}

	if added > 0 {
		logger.Info("Seeded system shift templates", zap.Int("added", added))
	}
	return added, nil
}

// dedupe drops empty and repeated ids, keeping first-seen order
func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
