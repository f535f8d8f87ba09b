package api

import (
	"net/http"

	"github.com/pauljones0/dealboard/internal/deals"
)

func (s *Server) handlePostDeal(w http.ResponseWriter, r *http.Request) {
	var in deals.Input
	if !s.decodeBody(w, r, &in) {
		return
	}
	detail, err := s.deps.Deals.Post(r.Context(), ViewerID(r.Context()), in)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if s.deps.Metrics != nil {
		s.deps.Metrics.DealsPosted.Inc()
	}
	w.Header().Set("Location", "/api/deals/"+detail.ID)
	writeJSON(w, http.StatusCreated, detail)
}

func (s *Server) handleGetDeal(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	detail, err := s.deps.Deals.Get(r.Context(), ViewerID(r.Context()), id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (s *Server) handleUpdateDeal(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	var p deals.Patch
	if !s.decodeBody(w, r, &p) {
		return
	}
	detail, err := s.deps.Deals.Update(r.Context(), ViewerID(r.Context()), id, p)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (s *Server) handleDeleteDeal(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	if err := s.deps.Deals.Delete(r.Context(), ViewerID(r.Context()), id); err != nil {
		handleServiceError(w, r, err)
		return
	}
	if s.deps.Metrics != nil {
		s.deps.Metrics.DealsDeleted.Inc()
	}
	w.WriteHeader(http.StatusNoContent)
}
