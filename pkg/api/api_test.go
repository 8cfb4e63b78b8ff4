package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jakechorley/attendant-scheduler/internal/config"
	"github.com/jakechorley/attendant-scheduler/pkg/core/model"
	"github.com/jakechorley/attendant-scheduler/pkg/db"
)

// mockDirectory implements services.IdentityDirectory
type mockDirectory struct {
	people map[string]model.Identity
}

func (m *mockDirectory) Lookup(ctx context.Context, ids []string) (map[string]model.Identity, error) {
	out := make(map[string]model.Identity)
	for _, id := range ids {
		if p, ok := m.people[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

type testServer struct {
	store   *db.MemDB
	handler http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store := db.NewMemDB()
	people := &mockDirectory{people: map[string]model.Identity{
		"att-1": {ID: "att-1", FirstName: "Ann", LastName: "Attendant", Role: model.RoleAttendant},
		"ov-1":  {ID: "ov-1", FirstName: "Olive", LastName: "Overseer", Role: model.RoleOverseer},
	}}
	cfg := config.Default()
	cfg.HTTP.CORSOrigins = []string{"https://scheduler.example.org"}
	s := NewServer(store, people, cfg, nil, zap.NewNop())
	return &testServer{store: store, handler: s.Handler()}
}

// do sends a request as an ADMIN caller unless role is empty
func (ts *testServer) do(t *testing.T, method, path string, body any, role model.Role) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if role != "" {
		req.Header.Set(callerIDHeader, "caller-1")
		req.Header.Set(callerRoleHeader, string(role))
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dst), rec.Body.String())
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/healthz", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))
}

func TestRequestIDIsEchoed(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(requestIDHeader, "req-123")
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)

	assert.Equal(t, "req-123", rec.Header().Get(requestIDHeader))
}

func TestBulkCreate_ConflictDetails(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/events/ev-1/positions/bulk-create", map[string]any{
		"startNumber": 1, "endNumber": 5, "namePrefix": "Post", "shiftTemplateId": "standard",
	}, model.RoleAdmin)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created struct {
		Created   int           `json:"created"`
		Positions []db.Position `json:"positions"`
	}
	decodeBody(t, rec, &created)
	assert.Equal(t, 5, created.Created)
	assert.Len(t, created.Positions[0].Shifts, 4)

	rec = ts.do(t, http.MethodPost, "/api/events/ev-1/positions/bulk-create", map[string]any{
		"startNumber": 4, "endNumber": 8, "namePrefix": "Post",
	}, model.RoleAdmin)
	require.Equal(t, http.StatusConflict, rec.Code)

	var apiErr APIError
	decodeBody(t, rec, &apiErr)
	assert.Equal(t, "POSITION_NUMBER_CONFLICT", apiErr.Code)
	assert.Equal(t, []any{float64(4), float64(5)}, apiErr.Details["conflicts"])
	assert.NotEmpty(t, apiErr.Meta["request_id"])
}

func TestDecode_UnknownFieldRejected(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/events/ev-1/positions/bulk-create", map[string]any{
		"startNumber": 1, "endNumber": 2, "namePrefix": "Post", "colour": "blue",
	}, model.RoleAdmin)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var apiErr APIError
	decodeBody(t, rec, &apiErr)
	assert.Equal(t, "INVALID_JSON", apiErr.Code)
}

func TestDecode_ValidationFailed(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/events/ev-1/positions/bulk-create", map[string]any{
		"startNumber": 1, "endNumber": 2,
	}, model.RoleAdmin)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var apiErr APIError
	decodeBody(t, rec, &apiErr)
	assert.Equal(t, "VALIDATION_FAILED", apiErr.Code)
	fields, ok := apiErr.Details["fields"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "required", fields["NamePrefix"])
}

func TestDecode_EmptyBody(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/events/ev-1/count-sessions", nil, model.RoleAdmin)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestForbiddenWithoutCaller(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodDelete, "/api/events/ev-1/assignments", nil, "")
	require.Equal(t, http.StatusForbidden, rec.Code)

	var apiErr APIError
	decodeBody(t, rec, &apiErr)
	assert.Equal(t, "CALLER_REQUIRED", apiErr.Code)

	rec = ts.do(t, http.MethodDelete, "/api/events/ev-1/assignments", nil, model.RoleAttendant)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCreateAssignment_UserIDAlias(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/events/ev-1/positions", map[string]any{"positionNumber": 1, "name": "Gate"}, model.RoleAdmin)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var position db.Position
	decodeBody(t, rec, &position)

	body := map[string]any{
		"userId":     "att-1",
		"positionId": position.ID,
		"shiftStart": "2026-07-11T09:00:00Z",
		"shiftEnd":   "2026-07-11T11:00:00Z",
	}
	rec = ts.do(t, http.MethodPost, "/api/events/ev-1/assignments", body, model.RoleOverseer)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var assignment db.Assignment
	decodeBody(t, rec, &assignment)
	assert.Equal(t, "att-1", assignment.AttendantID)

	// Both names at once is ambiguous
	body["attendantId"] = "att-1"
	rec = ts.do(t, http.MethodPost, "/api/events/ev-1/assignments", body, model.RoleOverseer)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	var apiErr APIError
	decodeBody(t, rec, &apiErr)
	assert.Equal(t, "VALIDATION_FAILED", apiErr.Code)

	delete(body, "attendantId")
	delete(body, "userId")
	rec = ts.do(t, http.MethodPost, "/api/events/ev-1/assignments", body, model.RoleOverseer)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAssignmentLifecycle(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/events/ev-1/positions", map[string]any{"positionNumber": 1, "name": "Gate"}, model.RoleAdmin)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var position db.Position
	decodeBody(t, rec, &position)

	rec = ts.do(t, http.MethodPost, "/api/events/ev-1/assignments", map[string]any{
		"attendantId": "att-1",
		"positionId":  position.ID,
		"shiftStart":  "2026-07-11T09:00:00Z",
		"shiftEnd":    "2026-07-11T11:00:00Z",
	}, model.RoleOverseer)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var assignment db.Assignment
	decodeBody(t, rec, &assignment)
	assert.Equal(t, db.StatusAssigned, assignment.Status)

	rec = ts.do(t, http.MethodPut, "/api/events/ev-1/assignments/"+assignment.ID+"/status", map[string]any{"status": "CONFIRMED"}, model.RoleOverseer)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = ts.do(t, http.MethodPut, "/api/events/ev-1/assignments/"+assignment.ID+"/status", map[string]any{"status": "LOST"}, model.RoleOverseer)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// The position is referenced and cannot be deleted
	rec = ts.do(t, http.MethodDelete, "/api/events/ev-1/positions/"+position.ID, nil, model.RoleAdmin)
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Deleting through another event is rejected
	rec = ts.do(t, http.MethodDelete, "/api/events/ev-2/assignments/"+assignment.ID, nil, model.RoleAdmin)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodDelete, "/api/events/ev-1/assignments", nil, model.RoleAdmin)
	require.Equal(t, http.StatusOK, rec.Code)
	var cleared map[string]int
	decodeBody(t, rec, &cleared)
	assert.Equal(t, 1, cleared["deletedCount"])
}

func TestOversightRoutes(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/events/ev-1/positions", map[string]any{"positionNumber": 1, "name": "Gate"}, model.RoleAdmin)
	require.Equal(t, http.StatusCreated, rec.Code)
	var position db.Position
	decodeBody(t, rec, &position)
	path := "/api/events/ev-1/positions/" + position.ID + "/oversight"

	rec = ts.do(t, http.MethodGet, path, nil, model.RoleAdmin)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"oversight": null}`, rec.Body.String())

	rec = ts.do(t, http.MethodPut, path, map[string]any{"overseerId": "ov-1"}, model.RoleAdmin)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = ts.do(t, http.MethodGet, path, nil, model.RoleAdmin)
	require.Equal(t, http.StatusOK, rec.Code)
	var got struct {
		Oversight struct {
			Overseer *model.Identity `json:"overseer"`
		} `json:"oversight"`
	}
	decodeBody(t, rec, &got)
	require.NotNil(t, got.Oversight.Overseer)
	assert.Equal(t, "Olive", got.Oversight.Overseer.FirstName)

	rec = ts.do(t, http.MethodPut, path, map[string]any{"keymanId": "nobody"}, model.RoleAdmin)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(t, http.MethodDelete, path, nil, model.RoleAdmin)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestCountSessionRoutes(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/events/ev-1/positions", map[string]any{"positionNumber": 1, "name": "Gate"}, model.RoleAdmin)
	require.Equal(t, http.StatusCreated, rec.Code)
	var position db.Position
	decodeBody(t, rec, &position)

	rec = ts.do(t, http.MethodPost, "/api/events/ev-1/count-sessions/schedule", map[string]any{
		"namePrefix": "Count", "rrule": "FREQ=DAILY;COUNT=2", "start": "2026-07-11T10:00:00Z",
	}, model.RoleAdmin)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var scheduled struct {
		Created  int               `json:"created"`
		Sessions []db.CountSession `json:"sessions"`
	}
	decodeBody(t, rec, &scheduled)
	require.Equal(t, 2, scheduled.Created)
	first := scheduled.Sessions[0].ID
	second := scheduled.Sessions[1].ID

	countPath := "/api/events/ev-1/count-sessions/" + first + "/counts"
	rec = ts.do(t, http.MethodPost, countPath, map[string]any{"positionId": position.ID, "attendeeCount": 12}, model.RoleKeyman)
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = ts.do(t, http.MethodPost, countPath, map[string]any{"positionId": position.ID, "attendeeCount": 0}, model.RoleKeyman)
	assert.Equal(t, http.StatusOK, rec.Code, "resubmission updates")
	rec = ts.do(t, http.MethodPost, countPath, map[string]any{"positionId": position.ID}, model.RoleKeyman)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "attendeeCount is required")

	rec = ts.do(t, http.MethodGet, "/api/events/ev-1/count-sessions/compare?sessionIds="+first, nil, model.RoleAdmin)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/events/ev-1/count-sessions/compare?sessionIds="+second+","+first, nil, model.RoleAdmin)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var comparison struct {
		Sessions []struct {
			ID string `json:"id"`
		} `json:"sessions"`
	}
	decodeBody(t, rec, &comparison)
	require.Len(t, comparison.Sessions, 2)
	assert.Equal(t, first, comparison.Sessions[0].ID)

	rec = ts.do(t, http.MethodDelete, "/api/events/ev-1/count-sessions/"+first, nil, model.RoleOverseer)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = ts.do(t, http.MethodDelete, "/api/events/ev-1/count-sessions/"+first, nil, model.RoleAdmin)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestTemplatesAndTerminology(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/shift-templates", map[string]any{
		"name":   "Two",
		"shifts": []map[string]any{{"name": "AM", "startTime": "08:00", "endTime": "12:00"}},
	}, model.RoleAdmin)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = ts.do(t, http.MethodGet, "/api/shift-templates", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var listing struct {
		Builtin []map[string]any `json:"builtin"`
		Stored  []map[string]any `json:"stored"`
	}
	decodeBody(t, rec, &listing)
	assert.Len(t, listing.Builtin, 3)
	assert.Len(t, listing.Stored, 1)

	rec = ts.do(t, http.MethodGet, "/api/terminology", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var terms config.TemplateConfig
	decodeBody(t, rec, &terms)
	assert.Equal(t, "Post", terms.Terminology["position"])
}

func TestExportRoute(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/events/ev-1/positions/bulk-create", map[string]any{
		"startNumber": 1, "endNumber": 2, "namePrefix": "Post",
	}, model.RoleAdmin)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/events/ev-1/export/positions.xlsx", nil, model.RoleAdmin)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "spreadsheetml")
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("PK")), "xlsx is a zip archive")
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/events/ev-1/positions", nil)
	req.Header.Set("Origin", "https://scheduler.example.org")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)

	assert.Equal(t, "https://scheduler.example.org", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestStatusFor(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/events/ev-1/positions/missing", nil, model.RoleAdmin)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
