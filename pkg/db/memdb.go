package db

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemDB is an in-memory Database used for development runs and tests.
// Every method holds the lock for its whole duration, so multi-row writes are atomic.
type MemDB struct {
	mu          sync.Mutex
	positions   map[string]Position
	shifts      map[string]Shift
	templates   map[string]ShiftTemplate
	oversight   map[string]Oversight
	assignments map[string]Assignment
	sessions    map[string]CountSession
	counts      map[string]PositionCount
	people      map[string]Person
}

// NewMemDB creates an empty in-memory database
func NewMemDB() *MemDB {
	return &MemDB{
		positions:   make(map[string]Position),
		shifts:      make(map[string]Shift),
		templates:   make(map[string]ShiftTemplate),
		oversight:   make(map[string]Oversight),
		assignments: make(map[string]Assignment),
		sessions:    make(map[string]CountSession),
		counts:      make(map[string]PositionCount),
		people:      make(map[string]Person),
	}
}

// AddPeople seeds the people directory
func (m *MemDB) AddPeople(people ...Person) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range people {
		m.people[p.ID] = p
	}
}

func oversightKey(eventID, positionID string) string { return eventID + "|" + positionID }

func countKey(sessionID, positionID string) string { return sessionID + "|" + positionID }

// positionWithShifts must be called with the lock held
func (m *MemDB) positionWithShifts(p Position) Position {
	p.Shifts = []Shift{}
	for _, s := range m.shifts {
		if s.PositionID == p.ID {
			p.Shifts = append(p.Shifts, s)
		}
	}
	sort.Slice(p.Shifts, func(i, j int) bool { return p.Shifts[i].Sequence < p.Shifts[j].Sequence })
	return p
}

// ListPositions returns the event's positions with their shifts
func (m *MemDB) ListPositions(ctx context.Context, eventID string) ([]Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Position
	for _, p := range m.positions {
		if p.EventID == eventID {
			out = append(out, m.positionWithShifts(p))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Sequence != out[j].Sequence {
			return out[i].Sequence < out[j].Sequence
		}
		return out[i].PositionNumber < out[j].PositionNumber
	})
	return out, nil
}

// GetPosition returns a single position with its shifts
func (m *MemDB) GetPosition(ctx context.Context, positionID string) (*Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.positions[positionID]
	if !ok {
		return nil, ErrNotFound
	}
	p = m.positionWithShifts(p)
	return &p, nil
}

// GetPositionsByIDs returns the positions among ids that belong to the event, in id order
func (m *MemDB) GetPositionsByIDs(ctx context.Context, eventID string, positionIDs []string) ([]Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Position
	for _, id := range positionIDs {
		if p, ok := m.positions[id]; ok && p.EventID == eventID {
			out = append(out, m.positionWithShifts(p))
		}
	}
	return out, nil
}

// FindPositionNumbers returns the position numbers already used in [start, end]
func (m *MemDB) FindPositionNumbers(ctx context.Context, eventID string, start, end int) ([]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []int
	for _, p := range m.positions {
		if p.EventID == eventID && p.PositionNumber >= start && p.PositionNumber <= end {
			out = append(out, p.PositionNumber)
		}
	}
	sort.Ints(out)
	return out, nil
}

// InsertPositions inserts all positions and their shifts, or none of them
func (m *MemDB) InsertPositions(ctx context.Context, positions []Position) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	taken := make(map[string]map[int]bool)
	for _, p := range m.positions {
		if taken[p.EventID] == nil {
			taken[p.EventID] = make(map[int]bool)
		}
		taken[p.EventID][p.PositionNumber] = true
	}
	for _, p := range positions {
		if taken[p.EventID] == nil {
			taken[p.EventID] = make(map[int]bool)
		}
		if taken[p.EventID][p.PositionNumber] {
			return &ConstraintError{Kind: UniqueViolation, Constraint: ConstraintPositionNumber}
		}
		taken[p.EventID][p.PositionNumber] = true
	}

	for _, p := range positions {
		for _, s := range p.Shifts {
			s.PositionID = p.ID
			m.shifts[s.ID] = s
		}
		p.Shifts = nil
		m.positions[p.ID] = p
	}
	return nil
}

// SetPositionActive flips the active flag of a position
func (m *MemDB) SetPositionActive(ctx context.Context, positionID string, active bool) (*Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.positions[positionID]
	if !ok {
		return nil, ErrNotFound
	}
	p.IsActive = active
	p.UpdatedAt = time.Now().UTC()
	m.positions[positionID] = p
	p = m.positionWithShifts(p)
	return &p, nil
}

// CountPositionReferences counts assignments and oversight rows pointing at a position
func (m *MemDB) CountPositionReferences(ctx context.Context, positionID string) (PositionReferences, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.referencesLocked(positionID), nil
}

func (m *MemDB) referencesLocked(positionID string) PositionReferences {
	var refs PositionReferences
	for _, a := range m.assignments {
		if a.PositionID == positionID {
			refs.Assignments++
		}
	}
	for _, o := range m.oversight {
		if o.PositionID == positionID {
			refs.Oversight++
		}
	}
	return refs
}

// DeletePosition removes the position and its shifts; referenced positions are rejected
func (m *MemDB) DeletePosition(ctx context.Context, positionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.positions[positionID]; !ok {
		return ErrNotFound
	}
	refs := m.referencesLocked(positionID)
	if refs.Assignments > 0 {
		return &ConstraintError{Kind: ForeignKeyViolation, Constraint: ConstraintAssignmentFK}
	}
	if refs.Oversight > 0 {
		return &ConstraintError{Kind: ForeignKeyViolation, Constraint: ConstraintOversightFK}
	}

	for id, s := range m.shifts {
		if s.PositionID == positionID {
			delete(m.shifts, id)
		}
	}
	for key, c := range m.counts {
		if c.PositionID == positionID {
			delete(m.counts, key)
		}
	}
	delete(m.positions, positionID)
	return nil
}

// AppendShifts appends blueprints to each position after its highest existing sequence
func (m *MemDB) AppendShifts(ctx context.Context, stamps []ShiftStamp) (map[string][]Shift, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, stamp := range stamps {
		if _, ok := m.positions[stamp.PositionID]; !ok {
			return nil, ErrNotFound
		}
	}

	created := make(map[string][]Shift, len(stamps))
	for _, stamp := range stamps {
		next := 0
		for _, s := range m.shifts {
			if s.PositionID == stamp.PositionID && s.Sequence > next {
				next = s.Sequence
			}
		}
		for _, bp := range stamp.Blueprints {
			next++
			s := Shift{
				ID:         uuid.New().String(),
				PositionID: stamp.PositionID,
				Name:       bp.Name,
				IsAllDay:   bp.IsAllDay,
				Sequence:   next,
			}
			if !bp.IsAllDay {
				start, end := bp.StartTime, bp.EndTime
				s.StartTime, s.EndTime = &start, &end
			}
			m.shifts[s.ID] = s
			created[stamp.PositionID] = append(created[stamp.PositionID], s)
		}
	}
	return created, nil
}

// ListShiftTemplates returns stored templates, system templates first
func (m *MemDB) ListShiftTemplates(ctx context.Context) ([]ShiftTemplate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []ShiftTemplate
	for _, t := range m.templates {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].IsSystem != out[j].IsSystem {
			return out[i].IsSystem
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

// GetShiftTemplate returns a stored template by id
func (m *MemDB) GetShiftTemplate(ctx context.Context, id string) (*ShiftTemplate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.templates[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &t, nil
}

// InsertShiftTemplate stores a template; names are unique
func (m *MemDB) InsertShiftTemplate(ctx context.Context, template *ShiftTemplate) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, t := range m.templates {
		if t.Name == template.Name {
			return &ConstraintError{Kind: UniqueViolation, Constraint: ConstraintTemplateName}
		}
	}
	m.templates[template.ID] = *template
	return nil
}

// GetOversight returns the oversight row of a position
func (m *MemDB) GetOversight(ctx context.Context, eventID, positionID string) (*Oversight, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.oversight[oversightKey(eventID, positionID)]
	if !ok {
		return nil, ErrNotFound
	}
	return &o, nil
}

// ListOversight returns every oversight row of the event
func (m *MemDB) ListOversight(ctx context.Context, eventID string) ([]Oversight, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Oversight
	for _, o := range m.oversight {
		if o.EventID == eventID {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PositionID < out[j].PositionID })
	return out, nil
}

// UpsertOversight writes all rows or none; existing rows keep their id and creation time
func (m *MemDB) UpsertOversight(ctx context.Context, rows []Oversight) ([]Oversight, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, row := range rows {
		if _, ok := m.positions[row.PositionID]; !ok {
			return nil, &ConstraintError{Kind: ForeignKeyViolation, Constraint: ConstraintOversightFK}
		}
	}

	out := make([]Oversight, 0, len(rows))
	for _, row := range rows {
		key := oversightKey(row.EventID, row.PositionID)
		if existing, ok := m.oversight[key]; ok {
			row.ID = existing.ID
			row.CreatedAt = existing.CreatedAt
		}
		m.oversight[key] = row
		out = append(out, row)
	}
	return out, nil
}

// DeleteOversight removes the oversight row of a position
func (m *MemDB) DeleteOversight(ctx context.Context, eventID, positionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := oversightKey(eventID, positionID)
	if _, ok := m.oversight[key]; !ok {
		return ErrNotFound
	}
	delete(m.oversight, key)
	return nil
}

func sortAssignments(out []Assignment) {
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ShiftStart.Equal(out[j].ShiftStart) {
			return out[i].ShiftStart.Before(out[j].ShiftStart)
		}
		return out[i].ID < out[j].ID
	})
}

// ListAssignments returns the event's assignments ordered by shift start
func (m *MemDB) ListAssignments(ctx context.Context, eventID string) ([]Assignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Assignment
	for _, a := range m.assignments {
		if a.EventID == eventID {
			out = append(out, a)
		}
	}
	sortAssignments(out)
	return out, nil
}

// ListAttendantAssignments returns one attendant's assignments within an event
func (m *MemDB) ListAttendantAssignments(ctx context.Context, eventID, attendantID string) ([]Assignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Assignment
	for _, a := range m.assignments {
		if a.EventID == eventID && a.AttendantID == attendantID {
			out = append(out, a)
		}
	}
	sortAssignments(out)
	return out, nil
}

// GetAssignment returns an assignment by id
func (m *MemDB) GetAssignment(ctx context.Context, id string) (*Assignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.assignments[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &a, nil
}

// InsertAssignment stores a new assignment
func (m *MemDB) InsertAssignment(ctx context.Context, assignment *Assignment) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.positions[assignment.PositionID]; !ok {
		return &ConstraintError{Kind: ForeignKeyViolation, Constraint: ConstraintAssignmentFK}
	}
	m.assignments[assignment.ID] = *assignment
	return nil
}

// UpdateAssignment replaces a stored assignment
func (m *MemDB) UpdateAssignment(ctx context.Context, assignment *Assignment) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.assignments[assignment.ID]; !ok {
		return ErrNotFound
	}
	if _, ok := m.positions[assignment.PositionID]; !ok {
		return &ConstraintError{Kind: ForeignKeyViolation, Constraint: ConstraintAssignmentFK}
	}
	m.assignments[assignment.ID] = *assignment
	return nil
}

// DeleteAssignment removes a single assignment
func (m *MemDB) DeleteAssignment(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.assignments[id]; !ok {
		return ErrNotFound
	}
	delete(m.assignments, id)
	return nil
}

// DeleteEventAssignments removes every assignment of the event
func (m *MemDB) DeleteEventAssignments(ctx context.Context, eventID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var deleted int64
	for id, a := range m.assignments {
		if a.EventID == eventID {
			delete(m.assignments, id)
			deleted++
		}
	}
	return deleted, nil
}

// ListCountSessions returns the event's sessions, latest count time first
func (m *MemDB) ListCountSessions(ctx context.Context, eventID string) ([]CountSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []CountSession
	for _, s := range m.sessions {
		if s.EventID == eventID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CountTime.After(out[j].CountTime) })
	return out, nil
}

// GetCountSession returns a session by id
func (m *MemDB) GetCountSession(ctx context.Context, id string) (*CountSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &s, nil
}

// FindSessionNames returns which of names are already used in the event
func (m *MemDB) FindSessionNames(ctx context.Context, eventID string, names []string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	used := make(map[string]bool)
	for _, s := range m.sessions {
		if s.EventID == eventID {
			used[s.SessionName] = true
		}
	}
	var out []string
	for _, n := range names {
		if used[n] {
			out = append(out, n)
		}
	}
	return out, nil
}

func (m *MemDB) sessionNameTakenLocked(eventID, name, exceptID string) bool {
	for _, s := range m.sessions {
		if s.EventID == eventID && s.SessionName == name && s.ID != exceptID {
			return true
		}
	}
	return false
}

// InsertCountSessions inserts all sessions or none
func (m *MemDB) InsertCountSessions(ctx context.Context, sessions []CountSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	batch := make(map[string]bool)
	for _, s := range sessions {
		key := s.EventID + "|" + s.SessionName
		if batch[key] || m.sessionNameTakenLocked(s.EventID, s.SessionName, "") {
			return &ConstraintError{Kind: UniqueViolation, Constraint: ConstraintSessionName}
		}
		batch[key] = true
	}
	for _, s := range sessions {
		m.sessions[s.ID] = s
	}
	return nil
}

// UpdateCountSession replaces a stored session
func (m *MemDB) UpdateCountSession(ctx context.Context, session *CountSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[session.ID]; !ok {
		return ErrNotFound
	}
	if m.sessionNameTakenLocked(session.EventID, session.SessionName, session.ID) {
		return &ConstraintError{Kind: UniqueViolation, Constraint: ConstraintSessionName}
	}
	m.sessions[session.ID] = *session
	return nil
}

// DeleteCountSession removes a session and its counts
func (m *MemDB) DeleteCountSession(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[id]; !ok {
		return ErrNotFound
	}
	for key, c := range m.counts {
		if c.CountSessionID == id {
			delete(m.counts, key)
		}
	}
	delete(m.sessions, id)
	return nil
}

// UpsertPositionCount creates or replaces the count of a position within a session.
// It reports true when a new row was created.
func (m *MemDB) UpsertPositionCount(ctx context.Context, count *PositionCount) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[count.CountSessionID]; !ok {
		return false, ErrNotFound
	}
	if _, ok := m.positions[count.PositionID]; !ok {
		return false, ErrNotFound
	}

	key := countKey(count.CountSessionID, count.PositionID)
	existing, ok := m.counts[key]
	if ok {
		count.ID = existing.ID
	}
	m.counts[key] = *count
	return !ok, nil
}

// ListPositionCounts returns every count of the given sessions
func (m *MemDB) ListPositionCounts(ctx context.Context, sessionIDs []string) ([]PositionCount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	wanted := make(map[string]bool, len(sessionIDs))
	for _, id := range sessionIDs {
		wanted[id] = true
	}
	var out []PositionCount
	for _, c := range m.counts {
		if wanted[c.CountSessionID] {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CountSessionID != out[j].CountSessionID {
			return out[i].CountSessionID < out[j].CountSessionID
		}
		return out[i].PositionID < out[j].PositionID
	})
	return out, nil
}

// GetPeople returns the people among ids that exist
func (m *MemDB) GetPeople(ctx context.Context, ids []string) ([]Person, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Person
	for _, id := range ids {
		if p, ok := m.people[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}
