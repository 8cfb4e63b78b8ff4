package services

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jakechorley/attendant-scheduler/pkg/core/shifttemplates"
	"github.com/jakechorley/attendant-scheduler/pkg/db"
)

func TestCreatePosition_DefaultsSequence(t *testing.T) {
	store := db.NewMemDB()

	p, err := CreatePosition(context.Background(), store, zap.NewNop(), admin, eventA, CreatePositionArgs{
		PositionNumber: 7,
		Name:           "  Main Entrance ",
	})
	require.NoError(t, err)

	assert.Equal(t, 7, p.Sequence)
	assert.Equal(t, "Main Entrance", p.Name)
	assert.True(t, p.IsActive)
}

func TestCreatePosition_DuplicateNumber(t *testing.T) {
	store := db.NewMemDB()
	ctx := context.Background()

	_, err := CreatePosition(ctx, store, zap.NewNop(), admin, eventA, CreatePositionArgs{PositionNumber: 1, Name: "A"})
	require.NoError(t, err)

	_, err = CreatePosition(ctx, store, zap.NewNop(), admin, eventA, CreatePositionArgs{PositionNumber: 1, Name: "B"})
	se := requireServiceError(t, err, KindConflict, "POSITION_NUMBER_CONFLICT")
	assert.Equal(t, []int{1}, se.Details["conflicts"])

	// The same number in another event is fine
	_, err = CreatePosition(ctx, store, zap.NewNop(), admin, eventB, CreatePositionArgs{PositionNumber: 1, Name: "A"})
	assert.NoError(t, err)
}

func TestCreatePosition_Forbidden(t *testing.T) {
	store := db.NewMemDB()

	_, err := CreatePosition(context.Background(), store, zap.NewNop(), attendant, eventA, CreatePositionArgs{PositionNumber: 1, Name: "A"})
	requireServiceError(t, err, KindForbidden, "")
}

func TestBulkCreatePositions_NamesAndShifts(t *testing.T) {
	store := db.NewMemDB()

	result, err := BulkCreatePositions(context.Background(), store, testConfig(), zap.NewNop(), overseer, eventA, BulkCreateArgs{
		StartNumber:     3,
		EndNumber:       5,
		NamePrefix:      "Post",
		ShiftTemplateID: shifttemplates.TypeStandard,
	})
	require.NoError(t, err)

	assert.Equal(t, 3, result.Created)
	require.Len(t, result.Positions, 3)
	for i, p := range result.Positions {
		n := 3 + i
		assert.Equal(t, n, p.PositionNumber)
		assert.Equal(t, n, p.Sequence)
		assert.Equal(t, fmt.Sprintf("Post %d", n), p.Name)
		require.Len(t, p.Shifts, 4)
		assert.Equal(t, 1, p.Shifts[0].Sequence)
		assert.Equal(t, 4, p.Shifts[3].Sequence)
	}

	stored, err := ListPositions(context.Background(), store, eventA)
	require.NoError(t, err)
	assert.Len(t, stored, 3)
}

func TestBulkCreatePositions_CustomShiftsTakePrecedence(t *testing.T) {
	store := db.NewMemDB()

	result, err := BulkCreatePositions(context.Background(), store, testConfig(), zap.NewNop(), admin, eventA, BulkCreateArgs{
		StartNumber:     1,
		EndNumber:       1,
		NamePrefix:      "Post",
		ShiftTemplateID: shifttemplates.TypeStandard,
		CustomShifts:    []db.ShiftBlueprint{{Name: "Only", StartTime: "09:00", EndTime: "10:00"}},
	})
	require.NoError(t, err)
	require.Len(t, result.Positions[0].Shifts, 1)
	assert.Equal(t, "Only", result.Positions[0].Shifts[0].Name)
}

func TestBulkCreatePositions_StoredTemplate(t *testing.T) {
	store := db.NewMemDB()
	ctx := context.Background()

	tmpl, err := CreateTemplate(ctx, store, zap.NewNop(), admin, "Two", "", []db.ShiftBlueprint{
		{Name: "AM", StartTime: "08:00", EndTime: "12:00"},
		{Name: "PM", StartTime: "12:00", EndTime: "16:00"},
	})
	require.NoError(t, err)

	result, err := BulkCreatePositions(ctx, store, testConfig(), zap.NewNop(), admin, eventA, BulkCreateArgs{
		StartNumber: 1, EndNumber: 2, NamePrefix: "Post", ShiftTemplateID: tmpl.ID,
	})
	require.NoError(t, err)
	assert.Len(t, result.Positions[1].Shifts, 2)
}

func TestBulkCreatePositions_UnknownTemplate(t *testing.T) {
	store := db.NewMemDB()

	_, err := BulkCreatePositions(context.Background(), store, testConfig(), zap.NewNop(), admin, eventA, BulkCreateArgs{
		StartNumber: 1, EndNumber: 2, NamePrefix: "Post", ShiftTemplateID: "no-such-template",
	})
	requireServiceError(t, err, KindNotFound, "TEMPLATE_NOT_FOUND")
}

func TestBulkCreatePositions_RangeValidation(t *testing.T) {
	store := db.NewMemDB()
	ctx := context.Background()

	_, err := BulkCreatePositions(ctx, store, testConfig(), zap.NewNop(), admin, eventA, BulkCreateArgs{StartNumber: 5, EndNumber: 4, NamePrefix: "Post"})
	requireServiceError(t, err, KindValidation, "POSITION_RANGE_INVALID")

	_, err = BulkCreatePositions(ctx, store, testConfig(), zap.NewNop(), admin, eventA, BulkCreateArgs{StartNumber: 1, EndNumber: 101, NamePrefix: "Post"})
	requireServiceError(t, err, KindValidation, "POSITION_RANGE_TOO_LARGE")

	// Exactly the maximum is allowed
	result, err := BulkCreatePositions(ctx, store, testConfig(), zap.NewNop(), admin, eventA, BulkCreateArgs{StartNumber: 1, EndNumber: 100, NamePrefix: "Post"})
	require.NoError(t, err)
	assert.Equal(t, 100, result.Created)
}

func TestBulkCreatePositions_ReportsEveryConflict(t *testing.T) {
	store := db.NewMemDB()
	ctx := context.Background()
	seedPositions(t, store, eventA, 3, 3)
	seedPositions(t, store, eventA, 6, 7)

	_, err := BulkCreatePositions(ctx, store, testConfig(), zap.NewNop(), admin, eventA, BulkCreateArgs{StartNumber: 1, EndNumber: 10, NamePrefix: "Post"})
	se := requireServiceError(t, err, KindConflict, "POSITION_NUMBER_CONFLICT")
	assert.Equal(t, []int{3, 6, 7}, se.Details["conflicts"])

	positions, err := ListPositions(ctx, store, eventA)
	require.NoError(t, err)
	assert.Len(t, positions, 3, "nothing created on conflict")
}

func TestBulkCreatePositions_InvalidCustomShifts(t *testing.T) {
	store := db.NewMemDB()

	_, err := BulkCreatePositions(context.Background(), store, testConfig(), zap.NewNop(), admin, eventA, BulkCreateArgs{
		StartNumber: 1, EndNumber: 2, NamePrefix: "Post",
		CustomShifts: []db.ShiftBlueprint{{Name: "Backwards", StartTime: "12:00", EndTime: "09:00"}},
	})
	se := requireServiceError(t, err, KindValidation, "SHIFT_BLUEPRINT_INVALID")
	assert.Len(t, se.Details["problems"], 1)
}

func TestBulkCreatePositions_ConcurrentOverlap(t *testing.T) {
	store := db.NewMemDB()
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make([]error, 2)
	ranges := [][2]int{{1, 10}, {5, 15}}
	for i, r := range ranges {
		wg.Add(1)
		go func(i int, start, end int) {
			defer wg.Done()
			_, errs[i] = BulkCreatePositions(ctx, store, testConfig(), zap.NewNop(), admin, eventA, BulkCreateArgs{
				StartNumber: start, EndNumber: end, NamePrefix: "Post",
			})
		}(i, r[0], r[1])
	}
	wg.Wait()

	failures := 0
	for _, err := range errs {
		if err != nil {
			failures++
			requireServiceError(t, err, KindConflict, "POSITION_NUMBER_CONFLICT")
		}
	}
	assert.Equal(t, 1, failures)

	positions, err := ListPositions(ctx, store, eventA)
	require.NoError(t, err)
	assert.True(t, len(positions) == 10 || len(positions) == 11)
}

// staleScanStore misses existing numbers on its first scan, as if a concurrent create
// committed between the pre-scan and the insert
type staleScanStore struct {
	*db.MemDB
	scans int
}

func (s *staleScanStore) FindPositionNumbers(ctx context.Context, eventID string, start, end int) ([]int, error) {
	s.scans++
	if s.scans == 1 {
		return nil, nil
	}
	return s.MemDB.FindPositionNumbers(ctx, eventID, start, end)
}

func TestBulkCreatePositions_RaceReportsConflicts(t *testing.T) {
	mem := db.NewMemDB()
	seedPositions(t, mem, eventA, 2, 2)
	seedPositions(t, mem, eventA, 4, 4)
	store := &staleScanStore{MemDB: mem}

	_, err := BulkCreatePositions(context.Background(), store, testConfig(), zap.NewNop(), admin, eventA, BulkCreateArgs{
		StartNumber: 1, EndNumber: 5, NamePrefix: "Post",
	})
	se := requireServiceError(t, err, KindConflict, "POSITION_NUMBER_CONFLICT")
	assert.Equal(t, []int{2, 4}, se.Details["conflicts"])
	assert.Equal(t, 2, store.scans)

	positions, err := ListPositions(context.Background(), mem, eventA)
	require.NoError(t, err)
	assert.Len(t, positions, 2)
}

func TestSetPositionActive(t *testing.T) {
	store := db.NewMemDB()
	ctx := context.Background()
	p := seedPositions(t, store, eventA, 1, 1)[0]

	updated, err := SetPositionActive(ctx, store, zap.NewNop(), admin, eventA, p.ID, false)
	require.NoError(t, err)
	assert.False(t, updated.IsActive)

	updated, err = SetPositionActive(ctx, store, zap.NewNop(), admin, eventA, p.ID, true)
	require.NoError(t, err)
	assert.True(t, updated.IsActive)
}

func TestSetPositionActive_OtherEvent(t *testing.T) {
	store := db.NewMemDB()
	p := seedPositions(t, store, eventA, 1, 1)[0]

	_, err := SetPositionActive(context.Background(), store, zap.NewNop(), admin, eventB, p.ID, false)
	requireServiceError(t, err, KindNotFound, "POSITION_NOT_FOUND")
}

func TestDeactivateKeepsAssignments(t *testing.T) {
	store := db.NewMemDB()
	ctx := context.Background()
	p := seedPositions(t, store, eventA, 1, 1)[0]

	a, err := CreateAssignment(ctx, store, newDirectory(), testConfig(), zap.NewNop(), admin, eventA, assignmentArgs(p.ID, "attendant-1", 9, 11))
	require.NoError(t, err)

	_, err = SetPositionActive(ctx, store, zap.NewNop(), admin, eventA, p.ID, false)
	require.NoError(t, err)

	stored, err := store.GetAssignment(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, p.ID, stored.PositionID)
}

func TestDeletePosition_Referenced(t *testing.T) {
	store := db.NewMemDB()
	ctx := context.Background()
	p := seedPositions(t, store, eventA, 1, 1)[0]

	_, err := CreateAssignment(ctx, store, newDirectory(), testConfig(), zap.NewNop(), admin, eventA, assignmentArgs(p.ID, "attendant-1", 9, 11))
	require.NoError(t, err)
	overseerID := "overseer-1"
	_, err = SetOversight(ctx, store, newDirectory(), zap.NewNop(), admin, eventA, p.ID, OversightArgs{OverseerID: &overseerID})
	require.NoError(t, err)

	err = DeletePosition(ctx, store, zap.NewNop(), admin, eventA, p.ID)
	se := requireServiceError(t, err, KindConflict, "POSITION_IN_USE")
	assert.Equal(t, 1, se.Details["assignments"])
	assert.Equal(t, 1, se.Details["oversight"])

	_, err = GetPosition(ctx, store, eventA, p.ID)
	assert.NoError(t, err, "position survives")
}

func TestDeletePosition_SucceedsOnceUnreferenced(t *testing.T) {
	store := db.NewMemDB()
	ctx := context.Background()
	p := seedPositions(t, store, eventA, 1, 1)[0]

	a, err := CreateAssignment(ctx, store, newDirectory(), testConfig(), zap.NewNop(), admin, eventA, assignmentArgs(p.ID, "attendant-1", 9, 11))
	require.NoError(t, err)

	err = DeletePosition(ctx, store, zap.NewNop(), admin, eventA, p.ID)
	requireServiceError(t, err, KindConflict, "POSITION_IN_USE")

	require.NoError(t, DeleteAssignment(ctx, store, zap.NewNop(), admin, eventA, a.ID))
	require.NoError(t, DeletePosition(ctx, store, zap.NewNop(), admin, eventA, p.ID))

	_, err = GetPosition(ctx, store, eventA, p.ID)
	requireServiceError(t, err, KindNotFound, "POSITION_NOT_FOUND")
}

func TestDeletePosition_CascadesShifts(t *testing.T) {
	store := db.NewMemDB()
	ctx := context.Background()

	result, err := BulkCreatePositions(ctx, store, testConfig(), zap.NewNop(), admin, eventA, BulkCreateArgs{
		StartNumber: 1, EndNumber: 1, NamePrefix: "Post", ShiftTemplateID: shifttemplates.TypeAllDay,
	})
	require.NoError(t, err)
	p := result.Positions[0]

	require.NoError(t, DeletePosition(ctx, store, zap.NewNop(), admin, eventA, p.ID))

	_, err = GetPosition(ctx, store, eventA, p.ID)
	requireServiceError(t, err, KindNotFound, "POSITION_NOT_FOUND")

	// The number is free again
	seedPositions(t, store, eventA, 1, 1)
}

func TestGetPosition_OtherEvent(t *testing.T) {
	store := db.NewMemDB()
	p := seedPositions(t, store, eventA, 1, 1)[0]

	_, err := GetPosition(context.Background(), store, eventB, p.ID)
	requireServiceError(t, err, KindNotFound, "POSITION_NOT_FOUND")
}
