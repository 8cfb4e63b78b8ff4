package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jakechorley/attendant-scheduler/pkg/core/shifttemplates"
	"github.com/jakechorley/attendant-scheduler/pkg/db"
)

func TestApplyTemplate_AdditiveSequence(t *testing.T) {
	store := db.NewMemDB()
	ctx := context.Background()
	positions := seedPositions(t, store, eventA, 1, 2)
	ids := []string{positions[0].ID, positions[1].ID}

	result, err := ApplyTemplate(ctx, store, zap.NewNop(), admin, eventA, ApplyTemplateArgs{PositionIDs: ids, TemplateType: shifttemplates.TypeStandard})
	require.NoError(t, err)
	require.Len(t, result.Positions, 2)
	assert.Equal(t, 4, result.Positions[0].ShiftsAdded)
	assert.Equal(t, 4, result.Positions[0].TotalShifts)

	// A second stamp keeps the first and continues the sequence
	result, err = ApplyTemplate(ctx, store, zap.NewNop(), admin, eventA, ApplyTemplateArgs{PositionIDs: ids, TemplateType: shifttemplates.TypeAllDay})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Positions[1].ShiftsAdded)
	assert.Equal(t, 5, result.Positions[1].TotalShifts)

	p, err := GetPosition(ctx, store, eventA, positions[1].ID)
	require.NoError(t, err)
	require.Len(t, p.Shifts, 5)
	for i, s := range p.Shifts {
		assert.Equal(t, i+1, s.Sequence)
	}
	assert.Equal(t, "All Day", p.Shifts[4].Name)
	assert.True(t, p.Shifts[4].IsAllDay)
}

func TestApplyTemplate_Custom(t *testing.T) {
	store := db.NewMemDB()
	p := seedPositions(t, store, eventA, 1, 1)[0]

	result, err := ApplyTemplate(context.Background(), store, zap.NewNop(), admin, eventA, ApplyTemplateArgs{
		PositionIDs:  []string{p.ID, p.ID},
		TemplateType: shifttemplates.TypeCustom,
		CustomShifts: []db.ShiftBlueprint{{Name: "Gate", StartTime: "08:00", EndTime: "09:00"}},
	})
	require.NoError(t, err)
	require.Len(t, result.Positions, 1, "duplicate ids are stamped once")
	assert.Equal(t, 1, result.Positions[0].ShiftsAdded)
}

func TestApplyTemplate_CustomWithoutShifts(t *testing.T) {
	store := db.NewMemDB()
	p := seedPositions(t, store, eventA, 1, 1)[0]

	_, err := ApplyTemplate(context.Background(), store, zap.NewNop(), admin, eventA, ApplyTemplateArgs{
		PositionIDs: []string{p.ID}, TemplateType: shifttemplates.TypeCustom,
	})
	requireServiceError(t, err, KindValidation, "CUSTOM_SHIFTS_REQUIRED")
}

func TestApplyTemplate_MissingPositions(t *testing.T) {
	store := db.NewMemDB()
	ctx := context.Background()
	p := seedPositions(t, store, eventA, 1, 1)[0]
	other := seedPositions(t, store, eventB, 1, 1)[0]

	_, err := ApplyTemplate(ctx, store, zap.NewNop(), admin, eventA, ApplyTemplateArgs{
		PositionIDs:  []string{p.ID, "ghost", other.ID},
		TemplateType: shifttemplates.TypeStandard,
	})
	se := requireServiceError(t, err, KindNotFound, "POSITION_NOT_FOUND")
	assert.Equal(t, []string{"ghost", other.ID}, se.Details["missing"])

	stored, err := GetPosition(ctx, store, eventA, p.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.Shifts, "nothing stamped when any id is missing")
}

func TestApplyTemplate_Validation(t *testing.T) {
	store := db.NewMemDB()
	ctx := context.Background()

	_, err := ApplyTemplate(ctx, store, zap.NewNop(), admin, eventA, ApplyTemplateArgs{TemplateType: shifttemplates.TypeStandard})
	requireServiceError(t, err, KindValidation, "POSITION_IDS_REQUIRED")

	_, err = ApplyTemplate(ctx, store, zap.NewNop(), admin, eventA, ApplyTemplateArgs{PositionIDs: []string{"x"}})
	requireServiceError(t, err, KindValidation, "TEMPLATE_REQUIRED")

	_, err = ApplyTemplate(ctx, store, zap.NewNop(), keyman, eventA, ApplyTemplateArgs{PositionIDs: []string{"x"}, TemplateType: shifttemplates.TypeStandard})
	requireServiceError(t, err, KindForbidden, "FORBIDDEN")
}

func TestAddShift(t *testing.T) {
	store := db.NewMemDB()
	ctx := context.Background()
	p := seedPositions(t, store, eventA, 1, 1)[0]

	_, err := ApplyTemplate(ctx, store, zap.NewNop(), admin, eventA, ApplyTemplateArgs{PositionIDs: []string{p.ID}, TemplateType: shifttemplates.TypeStandard})
	require.NoError(t, err)

	shift, err := AddShift(ctx, store, zap.NewNop(), admin, eventA, p.ID, db.ShiftBlueprint{Name: " Evening ", StartTime: "17:00", EndTime: "19:00"})
	require.NoError(t, err)
	assert.Equal(t, "Evening", shift.Name)
	assert.Equal(t, 5, shift.Sequence)
	require.NotNil(t, shift.StartTime)
	assert.Equal(t, "17:00", *shift.StartTime)
}

func TestAddShift_Invalid(t *testing.T) {
	store := db.NewMemDB()
	p := seedPositions(t, store, eventA, 1, 1)[0]

	_, err := AddShift(context.Background(), store, zap.NewNop(), admin, eventA, p.ID, db.ShiftBlueprint{Name: "Bad", StartTime: "25:00", EndTime: "26:00"})
	requireServiceError(t, err, KindValidation, "SHIFT_BLUEPRINT_INVALID")
}

func TestCreateTemplate_DuplicateName(t *testing.T) {
	store := db.NewMemDB()
	ctx := context.Background()
	shifts := []db.ShiftBlueprint{{Name: "All Day", IsAllDay: true}}

	_, err := CreateTemplate(ctx, store, zap.NewNop(), admin, "Mine", "", shifts)
	require.NoError(t, err)

	_, err = CreateTemplate(ctx, store, zap.NewNop(), admin, "Mine", "", shifts)
	requireServiceError(t, err, KindConflict, "TEMPLATE_NAME_CONFLICT")

	_, err = CreateTemplate(ctx, store, zap.NewNop(), admin, "Empty", "", nil)
	requireServiceError(t, err, KindValidation, "TEMPLATE_SHIFTS_REQUIRED")
}

func TestSeedSystemTemplates_Idempotent(t *testing.T) {
	store := db.NewMemDB()
	ctx := context.Background()

	added, err := SeedSystemTemplates(ctx, store, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, len(shifttemplates.SystemTemplates()), added)

	added, err = SeedSystemTemplates(ctx, store, zap.NewNop())
	require.NoError(t, err)
	assert.Zero(t, added)

	listing, err := ListTemplates(ctx, store)
	require.NoError(t, err)
	assert.Len(t, listing.Builtin, 3)
	assert.Len(t, listing.Stored, len(shifttemplates.SystemTemplates()))
	for _, tmpl := range listing.Stored {
		assert.True(t, tmpl.IsSystem)
	}
}
