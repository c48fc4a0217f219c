package server

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/jonathan/application-tracker/internal/store"
	"github.com/jonathan/application-tracker/internal/types"
)

const maxListLimit = 1000

// ApplicationsResponse is the body of GET /applications
type ApplicationsResponse struct {
	Applications []types.ApplicationRecord `json:"applications"`
	Count        int                       `json:"count"`
}

// handleHealth reports ok when the store answers a ping
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		s.logger.Warn("health check failed", zap.Error(err))
		s.errorResponse(w, http.StatusServiceUnavailable, "store unavailable")
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleListApplications lists applications, optionally filtered by ?status= and capped by ?limit=
func (s *Server) handleListApplications(w http.ResponseWriter, r *http.Request) {
	filter, err := parseListFilter(r)
	if err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}

	apps, err := s.store.ListApplications(r.Context(), filter)
	if err != nil {
		s.logger.Error("failed to list applications", zap.Error(err))
		s.errorResponse(w, HTTPStatus(err), "failed to list applications")
		return
	}
	if apps == nil {
		apps = []types.ApplicationRecord{}
	}
	s.jsonResponse(w, http.StatusOK, ApplicationsResponse{Applications: apps, Count: len(apps)})
}

// handleStats returns totals by status
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.Stats(r.Context())
	if err != nil {
		s.logger.Error("failed to compute stats", zap.Error(err))
		s.errorResponse(w, HTTPStatus(err), "failed to compute stats")
		return
	}
	s.jsonResponse(w, http.StatusOK, stats)
}

func parseListFilter(r *http.Request) (store.ListFilter, error) {
	var filter store.ListFilter
	q := r.URL.Query()

	if raw := q.Get("status"); raw != "" {
		status, ok := types.ParseStatus(raw)
		if !ok {
			return filter, &ErrValidation{Param: "status", Value: raw, Rule: "unknown status"}
		}
		filter.Status = status
	}

	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > maxListLimit {
			return filter, &ErrValidation{Param: "limit", Value: raw, Rule: "must be between 1 and " + strconv.Itoa(maxListLimit)}
		}
		filter.Limit = limit
	}
	return filter, nil
}
