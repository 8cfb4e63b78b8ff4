package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/jakechorley/attendant-scheduler/pkg/core/services"
	"github.com/jakechorley/attendant-scheduler/pkg/db"
)

func (s *Server) registerPositionRoutes(r *mux.Router) {
	r.HandleFunc("/positions", s.handleListPositions).Methods(http.MethodGet)
	r.HandleFunc("/positions", s.handleCreatePosition).Methods(http.MethodPost)
	r.HandleFunc("/positions/bulk-create", s.handleBulkCreatePositions).Methods(http.MethodPost)
	r.HandleFunc("/positions/apply-shift-template", s.handleApplyTemplate).Methods(http.MethodPost)
	r.HandleFunc("/positions/bulk-oversight", s.handleBulkOversight).Methods(http.MethodPost)
	r.HandleFunc("/positions/{positionID}", s.handleGetPosition).Methods(http.MethodGet)
	r.HandleFunc("/positions/{positionID}", s.handleDeletePosition).Methods(http.MethodDelete)
	r.HandleFunc("/positions/{positionID}/deactivate", s.handleSetActive(false)).Methods(http.MethodPost)
	r.HandleFunc("/positions/{positionID}/reactivate", s.handleSetActive(true)).Methods(http.MethodPost)
	r.HandleFunc("/positions/{positionID}/shifts", s.handleAddShift).Methods(http.MethodPost)
	r.HandleFunc("/positions/{positionID}/oversight", s.handleGetOversight).Methods(http.MethodGet)
	r.HandleFunc("/positions/{positionID}/oversight", s.handleSetOversight).Methods(http.MethodPut)
	r.HandleFunc("/positions/{positionID}/oversight", s.handleClearOversight).Methods(http.MethodDelete)
}

func (s *Server) handleListPositions(w http.ResponseWriter, r *http.Request) {
	positions, err := services.ListPositions(r.Context(), s.store, mux.Vars(r)["eventID"])
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, positions)
}

func (s *Server) handleCreatePosition(w http.ResponseWriter, r *http.Request) {
	var req createPositionRequest
	if !s.decodeOrFail(w, r, &req) {
		return
	}

	position, err := services.CreatePosition(r.Context(), s.store, s.logger, callerFrom(r), mux.Vars(r)["eventID"], services.CreatePositionArgs{
		PositionNumber: req.PositionNumber,
		Name:           req.Name,
		Area:           req.Area,
		Sequence:       req.Sequence,
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, position)
}

func (s *Server) handleBulkCreatePositions(w http.ResponseWriter, r *http.Request) {
	var req bulkCreateRequest
	if !s.decodeOrFail(w, r, &req) {
		return
	}

	result, err := services.BulkCreatePositions(r.Context(), s.store, s.cfg, s.logger, callerFrom(r), mux.Vars(r)["eventID"], services.BulkCreateArgs{
		StartNumber:     req.StartNumber,
		EndNumber:       req.EndNumber,
		NamePrefix:      req.NamePrefix,
		Area:            req.Area,
		ShiftTemplateID: req.ShiftTemplateID,
		CustomShifts:    req.CustomShifts,
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (s *Server) handleGetPosition(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	position, err := services.GetPosition(r.Context(), s.store, vars["eventID"], vars["positionID"])
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, position)
}

func (s *Server) handleDeletePosition(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := services.DeletePosition(r.Context(), s.store, s.logger, callerFrom(r), vars["eventID"], vars["positionID"]); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSetActive(active bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vars := mux.Vars(r)
		position, err := services.SetPositionActive(r.Context(), s.store, s.logger, callerFrom(r), vars["eventID"], vars["positionID"], active)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, position)
	}
}

func (s *Server) handleAddShift(w http.ResponseWriter, r *http.Request) {
	var req db.ShiftBlueprint
	if !s.decodeOrFail(w, r, &req) {
		return
	}

	vars := mux.Vars(r)
	shift, err := services.AddShift(r.Context(), s.store, s.logger, callerFrom(r), vars["eventID"], vars["positionID"], req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, shift)
}

func (s *Server) handleApplyTemplate(w http.ResponseWriter, r *http.Request) {
	var req applyTemplateRequest
	if !s.decodeOrFail(w, r, &req) {
		return
	}

	result, err := services.ApplyTemplate(r.Context(), s.store, s.logger, callerFrom(r), mux.Vars(r)["eventID"], services.ApplyTemplateArgs{
		PositionIDs:  req.PositionIDs,
		TemplateType: req.TemplateType,
		CustomShifts: req.CustomShifts,
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleGetOversight(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	view, err := services.GetOversight(r.Context(), s.store, s.people, vars["eventID"], vars["positionID"])
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	// Unset oversight is {"oversight": null}, not a 404
	writeJSON(w, http.StatusOK, map[string]any{"oversight": view})
}

func (s *Server) handleSetOversight(w http.ResponseWriter, r *http.Request) {
	var req oversightRequest
	if !s.decodeOrFail(w, r, &req) {
		return
	}

	vars := mux.Vars(r)
	row, err := services.SetOversight(r.Context(), s.store, s.people, s.logger, callerFrom(r), vars["eventID"], vars["positionID"], services.OversightArgs{
		OverseerID: req.OverseerID,
		KeymanID:   req.KeymanID,
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, row)
}

func (s *Server) handleClearOversight(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := services.ClearOversight(r.Context(), s.store, s.logger, callerFrom(r), vars["eventID"], vars["positionID"]); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleBulkOversight(w http.ResponseWriter, r *http.Request) {
	var req bulkOversightRequest
	if !s.decodeOrFail(w, r, &req) {
		return
	}

	result, err := services.BulkSetOversight(r.Context(), s.store, s.people, s.logger, callerFrom(r), mux.Vars(r)["eventID"], req.PositionIDs, services.OversightArgs{
		OverseerID: req.OverseerID,
		KeymanID:   req.KeymanID,
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleExportPositions(w http.ResponseWriter, r *http.Request) {
	eventID := mux.Vars(r)["eventID"]
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="positions-`+eventID+`.xlsx"`)
	if _, err := services.ExportPositions(r.Context(), s.store, s.people, s.logger, eventID, w); err != nil {
		w.Header().Del("Content-Disposition")
		s.writeServiceError(w, r, err)
	}
}
