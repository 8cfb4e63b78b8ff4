package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/jakechorley/attendant-scheduler/pkg/core/services"
)

func (s *Server) registerAssignmentRoutes(r *mux.Router) {
	r.HandleFunc("/assignments", s.handleListAssignments).Methods(http.MethodGet)
	r.HandleFunc("/assignments", s.handleCreateAssignment).Methods(http.MethodPost)
	r.HandleFunc("/assignments", s.handleClearAssignments).Methods(http.MethodDelete)
	r.HandleFunc("/assignments/{assignmentID}", s.handleUpdateAssignment).Methods(http.MethodPut)
	r.HandleFunc("/assignments/{assignmentID}", s.handleDeleteAssignment).Methods(http.MethodDelete)
	r.HandleFunc("/assignments/{assignmentID}/status", s.handleUpdateStatus).Methods(http.MethodPut)
}

func (s *Server) handleListAssignments(w http.ResponseWriter, r *http.Request) {
	assignments, err := services.ListAssignments(r.Context(), s.store, mux.Vars(r)["eventID"])
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, assignments)
}

func (s *Server) handleCreateAssignment(w http.ResponseWriter, r *http.Request) {
	var req createAssignmentRequest
	if !s.decodeOrFail(w, r, &req) {
		return
	}

	assignment, err := services.CreateAssignment(r.Context(), s.store, s.people, s.cfg, s.logger, callerFrom(r), mux.Vars(r)["eventID"], services.CreateAssignmentArgs{
		AttendantID: req.attendant(),
		PositionID:  req.PositionID,
		ShiftID:     req.ShiftID,
		ShiftStart:  req.ShiftStart,
		ShiftEnd:    req.ShiftEnd,
		Notes:       req.Notes,
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, assignment)
}

func (s *Server) handleUpdateAssignment(w http.ResponseWriter, r *http.Request) {
	var req updateAssignmentRequest
	if !s.decodeOrFail(w, r, &req) {
		return
	}

	vars := mux.Vars(r)
	assignment, err := services.UpdateAssignment(r.Context(), s.store, s.cfg, s.logger, callerFrom(r), vars["eventID"], vars["assignmentID"], services.UpdateAssignmentArgs{
		PositionID: req.PositionID,
		ShiftID:    req.ShiftID,
		ShiftStart: req.ShiftStart,
		ShiftEnd:   req.ShiftEnd,
		Notes:      req.Notes,
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, assignment)
}

func (s *Server) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if !s.decodeOrFail(w, r, &req) {
		return
	}

	vars := mux.Vars(r)
	assignment, err := services.UpdateStatus(r.Context(), s.store, s.logger, callerFrom(r), vars["eventID"], vars["assignmentID"], req.Status)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, assignment)
}

func (s *Server) handleDeleteAssignment(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := services.DeleteAssignment(r.Context(), s.store, s.logger, callerFrom(r), vars["eventID"], vars["assignmentID"]); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleClearAssignments(w http.ResponseWriter, r *http.Request) {
	result, err := services.ClearAssignments(r.Context(), s.store, s.logger, callerFrom(r), mux.Vars(r)["eventID"])
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
