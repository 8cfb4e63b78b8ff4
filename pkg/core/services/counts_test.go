package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jakechorley/attendant-scheduler/pkg/db"
)

func createSession(t *testing.T, store *db.MemDB, eventID, name string, at time.Time) *db.CountSession {
	t.Helper()
	s, err := CreateSession(context.Background(), store, zap.NewNop(), admin, eventID, CreateSessionArgs{SessionName: name, CountTime: at})
	require.NoError(t, err)
	return s
}

func TestCreateSession_DuplicateName(t *testing.T) {
	store := db.NewMemDB()
	createSession(t, store, eventA, "Saturday AM", eventDay.Add(10*time.Hour))

	_, err := CreateSession(context.Background(), store, zap.NewNop(), admin, eventA, CreateSessionArgs{
		SessionName: "Saturday AM", CountTime: eventDay.Add(11 * time.Hour),
	})
	se := requireServiceError(t, err, KindConflict, "COUNT_SESSION_NAME_CONFLICT")
	assert.Equal(t, []string{"Saturday AM"}, se.Details["conflicts"])

	// Names are only unique within an event
	createSession(t, store, eventB, "Saturday AM", eventDay.Add(10*time.Hour))
}

func TestCreateSession_Validation(t *testing.T) {
	store := db.NewMemDB()
	ctx := context.Background()

	_, err := CreateSession(ctx, store, zap.NewNop(), admin, eventA, CreateSessionArgs{SessionName: " ", CountTime: eventDay})
	requireServiceError(t, err, KindValidation, "COUNT_SESSION_NAME_REQUIRED")

	_, err = CreateSession(ctx, store, zap.NewNop(), admin, eventA, CreateSessionArgs{SessionName: "x"})
	requireServiceError(t, err, KindValidation, "COUNT_TIME_REQUIRED")

	_, err = CreateSession(ctx, store, zap.NewNop(), keyman, eventA, CreateSessionArgs{SessionName: "x", CountTime: eventDay})
	requireServiceError(t, err, KindForbidden, "FORBIDDEN")
}

func TestSubmitCount_Upsert(t *testing.T) {
	store := db.NewMemDB()
	ctx := context.Background()
	p := seedPositions(t, store, eventA, 1, 1)[0]
	s := createSession(t, store, eventA, "Morning", eventDay.Add(10*time.Hour))

	first, err := SubmitCount(ctx, store, zap.NewNop(), attendant, eventA, s.ID, SubmitCountArgs{PositionID: p.ID, AttendeeCount: 40})
	require.NoError(t, err)
	assert.True(t, first.Created)

	second, err := SubmitCount(ctx, store, zap.NewNop(), keyman, eventA, s.ID, SubmitCountArgs{PositionID: p.ID, AttendeeCount: 42})
	require.NoError(t, err)
	assert.False(t, second.Created)
	assert.Equal(t, first.Count.ID, second.Count.ID)

	detail, err := GetSession(ctx, store, eventA, s.ID)
	require.NoError(t, err)
	require.Len(t, detail.Counts, 1)
	assert.Equal(t, 42, detail.Counts[0].AttendeeCount)
	assert.Equal(t, keyman.ID, detail.Counts[0].CountedBy)
	assert.Equal(t, 42, detail.TotalAttendees)
	assert.Equal(t, 1, detail.PositionsCounted)
}

func TestSubmitCount_Rejections(t *testing.T) {
	store := db.NewMemDB()
	ctx := context.Background()
	p := seedPositions(t, store, eventA, 1, 1)[0]
	other := seedPositions(t, store, eventB, 1, 1)[0]
	s := createSession(t, store, eventA, "Morning", eventDay.Add(10*time.Hour))

	_, err := SubmitCount(ctx, store, zap.NewNop(), attendant, eventA, s.ID, SubmitCountArgs{PositionID: p.ID, AttendeeCount: -1})
	requireServiceError(t, err, KindValidation, "ATTENDEE_COUNT_INVALID")

	_, err = SubmitCount(ctx, store, zap.NewNop(), anonymous, eventA, s.ID, SubmitCountArgs{PositionID: p.ID, AttendeeCount: 1})
	requireServiceError(t, err, KindForbidden, "CALLER_REQUIRED")

	_, err = SubmitCount(ctx, store, zap.NewNop(), attendant, eventA, s.ID, SubmitCountArgs{PositionID: other.ID, AttendeeCount: 1})
	requireServiceError(t, err, KindNotFound, "POSITION_NOT_FOUND")

	_, err = SubmitCount(ctx, store, zap.NewNop(), attendant, eventB, s.ID, SubmitCountArgs{PositionID: other.ID, AttendeeCount: 1})
	requireServiceError(t, err, KindValidation, "COUNT_SESSION_EVENT_MISMATCH")

	completed := db.SessionCompleted
	_, err = UpdateSession(ctx, store, zap.NewNop(), keyman, eventA, s.ID, UpdateSessionArgs{Status: &completed})
	require.NoError(t, err)

	_, err = SubmitCount(ctx, store, zap.NewNop(), attendant, eventA, s.ID, SubmitCountArgs{PositionID: p.ID, AttendeeCount: 1})
	se := requireServiceError(t, err, KindValidation, "COUNT_SESSION_NOT_ACTIVE")
	assert.Equal(t, db.SessionCompleted, se.Details["status"])
}

func TestUpdateSession(t *testing.T) {
	store := db.NewMemDB()
	ctx := context.Background()
	createSession(t, store, eventA, "Morning", eventDay.Add(10*time.Hour))
	s := createSession(t, store, eventA, "Afternoon", eventDay.Add(14*time.Hour))

	taken := "Morning"
	_, err := UpdateSession(ctx, store, zap.NewNop(), admin, eventA, s.ID, UpdateSessionArgs{SessionName: &taken})
	requireServiceError(t, err, KindConflict, "COUNT_SESSION_NAME_CONFLICT")

	bogus := "PAUSED"
	_, err = UpdateSession(ctx, store, zap.NewNop(), admin, eventA, s.ID, UpdateSessionArgs{Status: &bogus})
	requireServiceError(t, err, KindValidation, "COUNT_SESSION_STATUS_INVALID")

	_, err = UpdateSession(ctx, store, zap.NewNop(), attendant, eventA, s.ID, UpdateSessionArgs{Status: &bogus})
	requireServiceError(t, err, KindForbidden, "FORBIDDEN")

	inactive := false
	updated, err := UpdateSession(ctx, store, zap.NewNop(), admin, eventA, s.ID, UpdateSessionArgs{IsActive: &inactive})
	require.NoError(t, err)
	assert.False(t, updated.IsActive)
	assert.Equal(t, db.SessionActive, updated.Status)
}

func TestDeleteSession_CascadesCounts(t *testing.T) {
	store := db.NewMemDB()
	ctx := context.Background()
	p := seedPositions(t, store, eventA, 1, 1)[0]
	s := createSession(t, store, eventA, "Morning", eventDay.Add(10*time.Hour))

	_, err := SubmitCount(ctx, store, zap.NewNop(), attendant, eventA, s.ID, SubmitCountArgs{PositionID: p.ID, AttendeeCount: 5})
	require.NoError(t, err)

	err = DeleteSession(ctx, store, zap.NewNop(), overseer, eventA, s.ID)
	requireServiceError(t, err, KindForbidden, "FORBIDDEN")

	require.NoError(t, DeleteSession(ctx, store, zap.NewNop(), admin, eventA, s.ID))

	counts, err := store.ListPositionCounts(ctx, []string{s.ID})
	require.NoError(t, err)
	assert.Empty(t, counts)

	_, err = GetSession(ctx, store, eventA, s.ID)
	requireServiceError(t, err, KindNotFound, "COUNT_SESSION_NOT_FOUND")
}

func TestCompareSessions(t *testing.T) {
	store := db.NewMemDB()
	ctx := context.Background()
	positions := seedPositions(t, store, eventA, 1, 3)

	late := createSession(t, store, eventA, "Afternoon", eventDay.Add(14*time.Hour))
	early := createSession(t, store, eventA, "Morning", eventDay.Add(10*time.Hour))

	submit := func(sessionID string, p db.Position, n int) {
		_, err := SubmitCount(ctx, store, zap.NewNop(), attendant, eventA, sessionID, SubmitCountArgs{PositionID: p.ID, AttendeeCount: n})
		require.NoError(t, err)
	}
	submit(early.ID, positions[2], 30)
	submit(early.ID, positions[0], 10)
	submit(late.ID, positions[0], 12)

	result, err := CompareSessions(ctx, store, eventA, []string{late.ID, early.ID})
	require.NoError(t, err)

	require.Len(t, result.Sessions, 2)
	assert.Equal(t, early.ID, result.Sessions[0].ID, "sessions ordered by count time")
	assert.Equal(t, 40, result.Sessions[0].TotalCount)
	assert.Equal(t, 2, result.Sessions[0].PositionsCounted)
	assert.Equal(t, 12, result.Sessions[1].TotalCount)

	require.Len(t, result.Positions, 2, "only counted positions appear")
	assert.Equal(t, 1, result.Positions[0].PositionNumber)
	assert.Equal(t, 3, result.Positions[1].PositionNumber)
	assert.Equal(t, 10, result.Positions[0].Counts[early.ID].AttendeeCount)
	assert.Equal(t, 12, result.Positions[0].Counts[late.ID].AttendeeCount)
	_, ok := result.Positions[1].Counts[late.ID]
	assert.False(t, ok)
}

func TestCompareSessions_Validation(t *testing.T) {
	store := db.NewMemDB()
	ctx := context.Background()
	s := createSession(t, store, eventA, "Morning", eventDay.Add(10*time.Hour))
	other := createSession(t, store, eventB, "Morning", eventDay.Add(10*time.Hour))

	_, err := CompareSessions(ctx, store, eventA, []string{s.ID, s.ID})
	requireServiceError(t, err, KindValidation, "COMPARE_NEEDS_TWO_SESSIONS")

	_, err = CompareSessions(ctx, store, eventA, []string{s.ID, other.ID, "missing"})
	se := requireServiceError(t, err, KindNotFound, "COUNT_SESSION_NOT_FOUND")
	assert.Equal(t, []string{other.ID, "missing"}, se.Details["missing"])
}

func TestScheduleSessions(t *testing.T) {
	store := db.NewMemDB()
	ctx := context.Background()
	start := time.Date(2026, 7, 11, 10, 30, 0, 0, time.UTC)

	result, err := ScheduleSessions(ctx, store, testConfig(), zap.NewNop(), admin, eventA, "Headcount", "FREQ=DAILY;COUNT=3", start)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Created)
	assert.Equal(t, "Headcount 2026-07-11 10:30", result.Sessions[0].SessionName)
	assert.Equal(t, "Headcount 2026-07-13 10:30", result.Sessions[2].SessionName)

	sessions, err := ListSessions(ctx, store, eventA)
	require.NoError(t, err)
	require.Len(t, sessions, 3)
	assert.True(t, sessions[0].CountTime.After(sessions[2].CountTime), "latest first")

	// Overlapping schedule reports every collision and writes nothing
	_, err = ScheduleSessions(ctx, store, testConfig(), zap.NewNop(), admin, eventA, "Headcount", "FREQ=DAILY;COUNT=5", start.AddDate(0, 0, 1))
	se := requireServiceError(t, err, KindConflict, "COUNT_SESSION_NAME_CONFLICT")
	assert.Equal(t, []string{"Headcount 2026-07-12 10:30", "Headcount 2026-07-13 10:30"}, se.Details["conflicts"])

	sessions, err = ListSessions(ctx, store, eventA)
	require.NoError(t, err)
	assert.Len(t, sessions, 3)
}

func TestScheduleSessions_RuleLimits(t *testing.T) {
	store := db.NewMemDB()
	ctx := context.Background()
	start := time.Date(2026, 7, 11, 10, 0, 0, 0, time.UTC)

	_, err := ScheduleSessions(ctx, store, testConfig(), zap.NewNop(), admin, eventA, "Count", "FREQ=SOMETIMES", start)
	requireServiceError(t, err, KindValidation, "RRULE_INVALID")

	// Unbounded rules are capped and rejected rather than expanded forever
	_, err = ScheduleSessions(ctx, store, testConfig(), zap.NewNop(), admin, eventA, "Count", "FREQ=HOURLY", start)
	requireServiceError(t, err, KindValidation, "RRULE_TOO_MANY_OCCURRENCES")

	until := start.Add(-time.Hour).Format("20060102T150405Z")
	_, err = ScheduleSessions(ctx, store, testConfig(), zap.NewNop(), admin, eventA, "Count", "FREQ=DAILY;UNTIL="+until, start)
	requireServiceError(t, err, KindValidation, "RRULE_EMPTY")

	_, err = ScheduleSessions(ctx, store, testConfig(), zap.NewNop(), keyman, eventA, "Count", "FREQ=DAILY;COUNT=2", start)
	requireServiceError(t, err, KindForbidden, "FORBIDDEN")
}

func TestScheduleSessions_SubMinuteRuleNamesDuplicates(t *testing.T) {
	store := db.NewMemDB()
	ctx := context.Background()
	start := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)

	_, err := ScheduleSessions(ctx, store, testConfig(), zap.NewNop(), admin, eventA, "Count", "FREQ=SECONDLY;COUNT=3", start)
	se := requireServiceError(t, err, KindValidation, "RRULE_DUPLICATE_SESSION_NAMES")
	assert.Equal(t, []string{"Count 2026-01-01 09:00"}, se.Details["duplicates"])

	sessions, err := ListSessions(ctx, store, eventA)
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func TestDuplicateNames(t *testing.T) {
	assert.Equal(t, []string{"b", "a"}, duplicateNames([]string{"a", "b", "b", "a", "b", "c"}))
	assert.Nil(t, duplicateNames([]string{"a", "b"}))
}
