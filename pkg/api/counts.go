package api

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/jakechorley/attendant-scheduler/pkg/core/services"
)

func (s *Server) registerCountRoutes(r *mux.Router) {
	r.HandleFunc("/count-sessions", s.handleListSessions).Methods(http.MethodGet)
	r.HandleFunc("/count-sessions", s.handleCreateSession).Methods(http.MethodPost)
	r.HandleFunc("/count-sessions/schedule", s.handleScheduleSessions).Methods(http.MethodPost)
	r.HandleFunc("/count-sessions/compare", s.handleCompareSessions).Methods(http.MethodGet)
	r.HandleFunc("/count-sessions/{sessionID}", s.handleGetSession).Methods(http.MethodGet)
	r.HandleFunc("/count-sessions/{sessionID}", s.handleUpdateSession).Methods(http.MethodPut)
	r.HandleFunc("/count-sessions/{sessionID}", s.handleDeleteSession).Methods(http.MethodDelete)
	r.HandleFunc("/count-sessions/{sessionID}/counts", s.handleListCounts).Methods(http.MethodGet)
	r.HandleFunc("/count-sessions/{sessionID}/counts", s.handleSubmitCount).Methods(http.MethodPost)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := services.ListSessions(r.Context(), s.store, mux.Vars(r)["eventID"])
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sessions)
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if !s.decodeOrFail(w, r, &req) {
		return
	}

	session, err := services.CreateSession(r.Context(), s.store, s.logger, callerFrom(r), mux.Vars(r)["eventID"], services.CreateSessionArgs{
		SessionName: req.SessionName,
		CountTime:   req.CountTime,
		Notes:       req.Notes,
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

func (s *Server) handleScheduleSessions(w http.ResponseWriter, r *http.Request) {
	var req scheduleSessionsRequest
	if !s.decodeOrFail(w, r, &req) {
		return
	}

	result, err := services.ScheduleSessions(r.Context(), s.store, s.cfg, s.logger, callerFrom(r), mux.Vars(r)["eventID"], req.NamePrefix, req.RRule, req.Start)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (s *Server) handleCompareSessions(w http.ResponseWriter, r *http.Request) {
	var ids []string
	for _, raw := range r.URL.Query()["sessionIds"] {
		ids = append(ids, strings.Split(raw, ",")...)
	}

	result, err := services.CompareSessions(r.Context(), s.store, mux.Vars(r)["eventID"], ids)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	detail, err := services.GetSession(r.Context(), s.store, vars["eventID"], vars["sessionID"])
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (s *Server) handleUpdateSession(w http.ResponseWriter, r *http.Request) {
	var req updateSessionRequest
	if !s.decodeOrFail(w, r, &req) {
		return
	}

	vars := mux.Vars(r)
	session, err := services.UpdateSession(r.Context(), s.store, s.logger, callerFrom(r), vars["eventID"], vars["sessionID"], services.UpdateSessionArgs{
		SessionName: req.SessionName,
		CountTime:   req.CountTime,
		Status:      req.Status,
		IsActive:    req.IsActive,
		Notes:       req.Notes,
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := services.DeleteSession(r.Context(), s.store, s.logger, callerFrom(r), vars["eventID"], vars["sessionID"]); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListCounts(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	counts, err := services.ListCounts(r.Context(), s.store, vars["eventID"], vars["sessionID"])
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, counts)
}

func (s *Server) handleSubmitCount(w http.ResponseWriter, r *http.Request) {
	var req submitCountRequest
	if !s.decodeOrFail(w, r, &req) {
		return
	}

	vars := mux.Vars(r)
	result, err := services.SubmitCount(r.Context(), s.store, s.logger, callerFrom(r), vars["eventID"], vars["sessionID"], services.SubmitCountArgs{
		PositionID:    req.PositionID,
		AttendeeCount: *req.AttendeeCount,
		Notes:         req.Notes,
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}
	writeJSON(w, status, result)
}
