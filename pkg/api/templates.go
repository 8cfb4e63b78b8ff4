package api

import (
	"net/http"

	"github.com/jakechorley/attendant-scheduler/pkg/core/services"
)

func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	listing, err := services.ListTemplates(r.Context(), s.store)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listing)
}

func (s *Server) handleCreateTemplate(w http.ResponseWriter, r *http.Request) {
	var req createTemplateRequest
	if !s.decodeOrFail(w, r, &req) {
		return
	}

	template, err := services.CreateTemplate(r.Context(), s.store, s.logger, callerFrom(r), req.Name, req.Description, req.Shifts)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, template)
}
