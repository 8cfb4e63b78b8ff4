package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/teambition/rrule-go"
	"go.uber.org/zap"

	"github.com/jakechorley/attendant-scheduler/internal/config"
	"github.com/jakechorley/attendant-scheduler/pkg/core/model"
	"github.com/jakechorley/attendant-scheduler/pkg/db"
)

const sessionNameTimeLayout = "2006-01-02 15:04"

// CountStore defines the database operations needed for attendance counts
type CountStore interface {
	db.PositionStore
	db.CountStore
}

// CreateSessionArgs describes a new count session
type CreateSessionArgs struct {
	SessionName string
	CountTime   time.Time
	Notes       *string
}

// UpdateSessionArgs patches a count session; nil fields are left unchanged
type UpdateSessionArgs struct {
	SessionName *string
	CountTime   *time.Time
	Status      *string
	IsActive    *bool
	Notes       *string
}

// SubmitCountArgs is the headcount for one position
type SubmitCountArgs struct {
	PositionID    string
	AttendeeCount int
	Notes         *string
}

// SubmitCountResult reports the stored count and whether it was newly created
type SubmitCountResult struct {
	Count   db.PositionCount `json:"count"`
	Created bool             `json:"created"`
}

// SessionDetail is a count session with its counts and aggregated total
type SessionDetail struct {
	db.CountSession
	Counts           []db.PositionCount `json:"counts"`
	TotalAttendees   int                `json:"totalAttendees"`
	PositionsCounted int                `json:"positionsCounted"`
}

// SessionSummary is one column of a session comparison
type SessionSummary struct {
	ID               string    `json:"id"`
	SessionName      string    `json:"sessionName"`
	CountTime        time.Time `json:"countTime"`
	TotalCount       int       `json:"totalCount"`
	PositionsCounted int       `json:"positionsCounted"`
}

// ComparedCount is one cell of the comparison matrix
type ComparedCount struct {
	AttendeeCount int       `json:"attendeeCount"`
	Notes         *string   `json:"notes,omitempty"`
	CountedAt     time.Time `json:"countedAt"`
}

// PositionComparison is one row of the comparison matrix, keyed by session id
type PositionComparison struct {
	PositionID     string                   `json:"positionId"`
	PositionNumber int                      `json:"positionNumber"`
	PositionName   string                   `json:"positionName"`
	Area           *string                  `json:"area,omitempty"`
	Counts         map[string]ComparedCount `json:"counts"`
}

// ComparisonResult compares several sessions of one event
type ComparisonResult struct {
	Sessions  []SessionSummary     `json:"sessions"`
	Positions []PositionComparison `json:"positions"`
}

// ScheduleResult reports the sessions created from a recurrence rule
type ScheduleResult struct {
	Created  int               `json:"created"`
	Sessions []db.CountSession `json:"sessions"`
}

// ValidSessionStatus reports whether s is one of the three session statuses
func ValidSessionStatus(s string) bool {
	switch s {
	case db.SessionActive, db.SessionCompleted, db.SessionCancelled:
		return true
	}
	return false
}

// loadEventSession fetches a session, rejecting one that belongs to another event
func loadEventSession(ctx context.Context, store db.CountStore, eventID, sessionID string) (*db.CountSession, error) {
	session, err := store.GetCountSession(ctx, sessionID)
	if err != nil {
		if se := mapStoreError(err, "failed to fetch count session"); KindOf(se) != KindNotFound {
			return nil, se
		}
		return nil, notFound("COUNT_SESSION_NOT_FOUND", "count session not found").with("sessionId", sessionID)
	}
	if session.EventID != eventID {
		return nil, validationError("COUNT_SESSION_EVENT_MISMATCH", "count session does not belong to this event").
			with("sessionId", sessionID)
	}
	return session, nil
}

func summarise(counts []db.PositionCount) (total, positions int) {
	for _, c := range counts {
		total += c.AttendeeCount
		positions++
	}
	return total, positions
}

// ListSessions returns the event's sessions, latest count time first
func ListSessions(ctx context.Context, store db.CountStore, eventID string) ([]db.CountSession, error) {
	sessions, err := store.ListCountSessions(ctx, eventID)
	if err != nil {
		return nil, mapStoreError(err, "failed to list count sessions")
	}
	if sessions == nil {
		sessions = []db.CountSession{}
	}
	return sessions, nil
}

// GetSession returns a session of the event with its counts and total
func GetSession(ctx context.Context, store db.CountStore, eventID, sessionID string) (*SessionDetail, error) {
	session, err := loadEventSession(ctx, store, eventID, sessionID)
	if err != nil {
		return nil, err
	}

	counts, err := store.ListPositionCounts(ctx, []string{sessionID})
	if err != nil {
		return nil, mapStoreError(err, "failed to list position counts")
	}
	if counts == nil {
		counts = []db.PositionCount{}
	}

	total, positions := summarise(counts)
	return &SessionDetail{
		CountSession:     *session,
		Counts:           counts,
		TotalAttendees:   total,
		PositionsCounted: positions,
	}, nil
}

// CreateSession opens a new active count session. Names are unique within the event.
func CreateSession(ctx context.Context, store db.CountStore, logger *zap.Logger, caller model.Caller, eventID string, args CreateSessionArgs) (*db.CountSession, error) {
	if err := requireRole(caller, "create count sessions", schedulerRoles...); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(args.SessionName)
	if name == "" {
		return nil, validationError("COUNT_SESSION_NAME_REQUIRED", "session name is required")
	}
	if args.CountTime.IsZero() {
		return nil, validationError("COUNT_TIME_REQUIRED", "count time is required")
	}

	now := time.Now().UTC()
	session := db.CountSession{
		ID:          uuid.New().String(),
		EventID:     eventID,
		SessionName: name,
		CountTime:   args.CountTime.UTC(),
		Status:      db.SessionActive,
		IsActive:    true,
		Notes:       args.Notes,
		CreatedBy:   caller.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := store.InsertCountSessions(ctx, []db.CountSession{session}); err != nil {
		mapped := mapStoreError(err, "failed to create count session")
		if se := AsServiceError(mapped); se.Kind == KindConflict {
			se.with("conflicts", []string{name})
		}
		return nil, mapped
	}

	logger.Info("Count session created",
		zap.String("event_id", eventID),
		zap.String("session_id", session.ID),
		zap.String("name", session.SessionName))

	return &session, nil
}

// UpdateSession patches a session of the event. Renaming onto a taken name is a conflict.
func UpdateSession(ctx context.Context, store db.CountStore, logger *zap.Logger, caller model.Caller, eventID, sessionID string, args UpdateSessionArgs) (*db.CountSession, error) {
	if err := requireRole(caller, "update count sessions", countEditorRoles...); err != nil {
		return nil, err
	}

	session, err := loadEventSession(ctx, store, eventID, sessionID)
	if err != nil {
		return nil, err
	}

	if args.SessionName != nil {
		name := strings.TrimSpace(*args.SessionName)
		if name == "" {
			return nil, validationError("COUNT_SESSION_NAME_REQUIRED", "session name is required")
		}
		session.SessionName = name
	}
	if args.CountTime != nil {
		session.CountTime = args.CountTime.UTC()
	}
	if args.Status != nil {
		if !ValidSessionStatus(*args.Status) {
			return nil, validationError("COUNT_SESSION_STATUS_INVALID", fmt.Sprintf("invalid status %q", *args.Status))
		}
		session.Status = *args.Status
	}
	if args.IsActive != nil {
		session.IsActive = *args.IsActive
	}
	if args.Notes != nil {
		session.Notes = args.Notes
	}
	session.UpdatedAt = time.Now().UTC()

	if err := store.UpdateCountSession(ctx, session); err != nil {
		return nil, mapStoreError(err, "failed to update count session")
	}

	logger.Info("Count session updated",
		zap.String("event_id", eventID),
		zap.String("session_id", sessionID))

	return session, nil
}

// DeleteSession removes a session of the event together with its counts
func DeleteSession(ctx context.Context, store db.CountStore, logger *zap.Logger, caller model.Caller, eventID, sessionID string) error {
	if err := requireRole(caller, "delete count sessions", countDeleterRoles...); err != nil {
		return err
	}
	if _, err := loadEventSession(ctx, store, eventID, sessionID); err != nil {
		return err
	}

	if err := store.DeleteCountSession(ctx, sessionID); err != nil {
		return mapStoreError(err, "failed to delete count session")
	}

	logger.Info("Count session deleted",
		zap.String("event_id", eventID),
		zap.String("session_id", sessionID))
	return nil
}

// SubmitCount records the headcount of one position, replacing any earlier count
func SubmitCount(ctx context.Context, store CountStore, logger *zap.Logger, caller model.Caller, eventID, sessionID string, args SubmitCountArgs) (*SubmitCountResult, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	if args.AttendeeCount < 0 {
		return nil, validationError("ATTENDEE_COUNT_INVALID", "attendee count must not be negative")
	}

	session, err := loadEventSession(ctx, store, eventID, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status != db.SessionActive {
		return nil, validationError("COUNT_SESSION_NOT_ACTIVE", "count session is not active").
			with("status", session.Status)
	}
	if _, err := loadEventPosition(ctx, store, eventID, args.PositionID); err != nil {
		return nil, err
	}

	count := db.PositionCount{
		ID:             uuid.New().String(),
		CountSessionID: sessionID,
		PositionID:     args.PositionID,
		AttendeeCount:  args.AttendeeCount,
		Notes:          args.Notes,
		CountedBy:      caller.ID,
		CountedAt:      time.Now().UTC(),
	}
	created, err := store.UpsertPositionCount(ctx, &count)
	if err != nil {
		return nil, mapStoreError(err, "failed to submit count")
	}

	logger.Info("Count submitted",
		zap.String("session_id", sessionID),
		zap.String("position_id", args.PositionID),
		zap.Int("attendee_count", args.AttendeeCount),
		zap.Bool("created", created))

	return &SubmitCountResult{Count: count, Created: created}, nil
}

// ListCounts returns the counts of a session of the event
func ListCounts(ctx context.Context, store db.CountStore, eventID, sessionID string) ([]db.PositionCount, error) {
	detail, err := GetSession(ctx, store, eventID, sessionID)
	if err != nil {
		return nil, err
	}
	return detail.Counts, nil
}

// CompareSessions builds per-session totals and a per-position matrix ordered by position number
func CompareSessions(ctx context.Context, store CountStore, eventID string, sessionIDs []string) (*ComparisonResult, error) {
	sessionIDs = dedupe(sessionIDs)
	if len(sessionIDs) < 2 {
		return nil, validationError("COMPARE_NEEDS_TWO_SESSIONS", "at least 2 session ids are required for comparison")
	}

	var sessions []db.CountSession
	var missing []string
	for _, id := range sessionIDs {
		s, err := store.GetCountSession(ctx, id)
		if err != nil {
			if se := mapStoreError(err, "failed to fetch count session"); KindOf(se) != KindNotFound {
				return nil, se
			}
			missing = append(missing, id)
			continue
		}
		if s.EventID != eventID {
			missing = append(missing, id)
			continue
		}
		sessions = append(sessions, *s)
	}
	if len(missing) > 0 {
		return nil, notFound("COUNT_SESSION_NOT_FOUND", "count sessions not found in this event").with("missing", missing)
	}
	sort.SliceStable(sessions, func(i, j int) bool { return sessions[i].CountTime.Before(sessions[j].CountTime) })

	counts, err := store.ListPositionCounts(ctx, sessionIDs)
	if err != nil {
		return nil, mapStoreError(err, "failed to list position counts")
	}

	bySession := make(map[string][]db.PositionCount)
	for _, c := range counts {
		bySession[c.CountSessionID] = append(bySession[c.CountSessionID], c)
	}

	positions, err := store.ListPositions(ctx, eventID)
	if err != nil {
		return nil, mapStoreError(err, "failed to list positions")
	}
	positionByID := make(map[string]db.Position, len(positions))
	for _, p := range positions {
		positionByID[p.ID] = p
	}

	result := &ComparisonResult{Sessions: make([]SessionSummary, 0, len(sessions))}
	rows := make(map[string]*PositionComparison)
	for _, s := range sessions {
		total, counted := summarise(bySession[s.ID])
		result.Sessions = append(result.Sessions, SessionSummary{
			ID:               s.ID,
			SessionName:      s.SessionName,
			CountTime:        s.CountTime,
			TotalCount:       total,
			PositionsCounted: counted,
		})

		for _, c := range bySession[s.ID] {
			row, ok := rows[c.PositionID]
			if !ok {
				p := positionByID[c.PositionID]
				row = &PositionComparison{
					PositionID:     c.PositionID,
					PositionNumber: p.PositionNumber,
					PositionName:   p.Name,
					Area:           p.Area,
					Counts:         make(map[string]ComparedCount),
				}
				rows[c.PositionID] = row
			}
			row.Counts[s.ID] = ComparedCount{AttendeeCount: c.AttendeeCount, Notes: c.Notes, CountedAt: c.CountedAt}
		}
	}

	result.Positions = make([]PositionComparison, 0, len(rows))
	for _, row := range rows {
		result.Positions = append(result.Positions, *row)
	}
	sort.Slice(result.Positions, func(i, j int) bool {
		if result.Positions[i].PositionNumber != result.Positions[j].PositionNumber {
			return result.Positions[i].PositionNumber < result.Positions[j].PositionNumber
		}
		return result.Positions[i].PositionID < result.Positions[j].PositionID
	})

	return result, nil
}

// ScheduleSessions creates one active session per occurrence of an RRULE, named
// "{prefix} {YYYY-MM-DD HH:MM}". A zero start keeps the rule's own DTSTART.
// Every name is checked before anything is written and all collisions are reported.
func ScheduleSessions(ctx context.Context, store db.CountStore, cfg *config.Config, logger *zap.Logger, caller model.Caller, eventID, namePrefix, rule string, start time.Time) (result *ScheduleResult, err error) {
	defer func() {
		created := 0
		if result != nil {
			created = result.Created
		}
		recordBulk("schedule_sessions", created, err)
	}()

	if err := requireRole(caller, "create count sessions", schedulerRoles...); err != nil {
		return nil, err
	}
	prefix := strings.TrimSpace(namePrefix)
	if prefix == "" {
		return nil, validationError("COUNT_SESSION_NAME_REQUIRED", "name prefix is required")
	}

	occurrences, err := expandRule(rule, start, cfg.Limits.MaxScheduledSessions)
	if err != nil {
		return nil, err
	}

	logger.Info("Scheduling count sessions",
		zap.String("event_id", eventID),
		zap.String("rrule", rule),
		zap.Int("occurrences", len(occurrences)))

	now := time.Now().UTC()
	sessions := make([]db.CountSession, len(occurrences))
	names := make([]string, len(occurrences))
	for i, at := range occurrences {
		names[i] = fmt.Sprintf("%s %s", prefix, at.UTC().Format(sessionNameTimeLayout))
		sessions[i] = db.CountSession{
			ID:          uuid.New().String(),
			EventID:     eventID,
			SessionName: names[i],
			CountTime:   at.UTC(),
			Status:      db.SessionActive,
			IsActive:    true,
			CreatedBy:   caller.ID,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
	}

	// Sub-minute rules collapse onto the same name
	if duplicates := duplicateNames(names); len(duplicates) > 0 {
		return nil, validationError("RRULE_DUPLICATE_SESSION_NAMES",
			"recurrence rule produces more than one session per minute").with("duplicates", duplicates)
	}

	taken, err := store.FindSessionNames(ctx, eventID, names)
	if err != nil {
		return nil, mapStoreError(err, "failed to check session names")
	}
	if len(taken) > 0 {
		recordWriteConflict("precheck")
		return nil, newServiceError(KindConflict, "COUNT_SESSION_NAME_CONFLICT",
			fmt.Sprintf("%d session names already exist", len(taken)), nil).with("conflicts", taken)
	}

	if err := store.InsertCountSessions(ctx, sessions); err != nil {
		return nil, mapStoreError(err, "failed to schedule count sessions")
	}

	logger.Info("Count sessions scheduled",
		zap.String("event_id", eventID),
		zap.Int("created", len(sessions)))

	return &ScheduleResult{Created: len(sessions), Sessions: sessions}, nil
}

// duplicateNames returns each name that occurs more than once, in first-seen order
func duplicateNames(names []string) []string {
	seen := make(map[string]int, len(names))
	var out []string
	for _, n := range names {
		seen[n]++
		if seen[n] == 2 {
			out = append(out, n)
		}
	}
	return out
}

// expandRule returns the rule's occurrences, rejecting rules with none or more than limit
func expandRule(rule string, start time.Time, limit int) ([]time.Time, error) {
	opt, err := rrule.StrToROption(strings.TrimPrefix(strings.TrimSpace(rule), "RRULE:"))
	if err != nil {
		return nil, validationError("RRULE_INVALID", "invalid recurrence rule").with("error", err.Error())
	}
	if !start.IsZero() {
		opt.Dtstart = start
	}
	// One past the limit is enough to detect an oversized rule
	if opt.Count == 0 || opt.Count > limit+1 {
		opt.Count = limit + 1
	}

	r, err := rrule.NewRRule(*opt)
	if err != nil {
		return nil, validationError("RRULE_INVALID", "invalid recurrence rule").with("error", err.Error())
	}

	occurrences := r.All()
	if len(occurrences) == 0 {
		return nil, validationError("RRULE_EMPTY", "recurrence rule produces no occurrences")
	}
	if len(occurrences) > limit {
		return nil, validationError("RRULE_TOO_MANY_OCCURRENCES",
			fmt.Sprintf("recurrence rule produces more than %d sessions", limit)).with("max", limit)
	}
	return occurrences, nil
}
