package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/danceforge/backoffice/internal/checklist"
	"github.com/danceforge/backoffice/internal/models"
)

// RunResponse is returned by every run endpoint
type RunResponse struct {
	Results  map[string]*models.TestResult `json:"results"`
	Counters models.ChecklistCounters      `json:"counters"`
}

// SyncResponse is returned by the saved-results sync endpoint
type SyncResponse struct {
	Changed  int                      `json:"changed"`
	Counters models.ChecklistCounters `json:"counters"`
}

func (s *Server) handleReadinessSnapshot(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.readiness.Snapshot())
}

func (s *Server) handleRunTest(w http.ResponseWriter, r *http.Request) {
	testID := chi.URLParam(r, "testId")
	if testID == "" {
		respondError(w, http.StatusBadRequest, "validation_error", "test id is required")
		return
	}

	ctx, cancel := s.runContext(r)
	defer cancel()

	result, err := s.readiness.RunSingle(ctx, testID)
	if err != nil {
		s.respondRunError(w, r, err, zap.String("test_id", testID))
		return
	}

	s.respondRun(w, map[string]*models.TestResult{testID: result})
}

func (s *Server) handleRunCategory(w http.ResponseWriter, r *http.Request) {
	categoryID := chi.URLParam(r, "categoryId")
	if categoryID == "" {
		respondError(w, http.StatusBadRequest, "validation_error", "category id is required")
		return
	}

	ctx, cancel := s.runContext(r)
	defer cancel()

	results, err := s.readiness.RunCategory(ctx, categoryID)
	if err != nil {
		s.respondRunError(w, r, err, zap.String("category_id", categoryID))
		return
	}

	s.respondRun(w, results)
}

func (s *Server) handleRunAll(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.runContext(r)
	defer cancel()

	results, err := s.readiness.RunAll(ctx)
	if err != nil {
		s.respondRunError(w, r, err, zap.String("scope", "all"))
		return
	}

	s.respondRun(w, results)
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.runContext(r)
	defer cancel()

	changed, err := s.readiness.LoadSavedResults(ctx)
	if err != nil {
		s.respondRunError(w, r, err, zap.String("scope", "sync"))
		return
	}

	respondJSON(w, http.StatusOK, SyncResponse{
		Changed:  changed,
		Counters: s.readiness.Snapshot().Counters,
	})
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	filters := models.RunFilters{
		Scope: models.RunScope(r.URL.Query().Get("scope")),
		Limit: 50,
	}

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil && limit > 0 {
			filters.Limit = min(limit, 500)
		}
	}

	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil && offset >= 0 {
			filters.Offset = offset
		}
	}

	runs, err := s.store.ListRuns(r.Context(), filters)
	if err != nil {
		s.logger.Error("failed to list runs", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to list runs")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"runs":  runs,
		"count": len(runs),
	})
}

// runContext detaches a run from the request; runTimeout still bounds it
func (s *Server) runContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(r.Context()), s.runTimeout)
}

func (s *Server) respondRun(w http.ResponseWriter, results map[string]*models.TestResult) {
	respondJSON(w, http.StatusOK, RunResponse{
		Results:  results,
		Counters: s.readiness.Snapshot().Counters,
	})
}

func (s *Server) respondRunError(w http.ResponseWriter, r *http.Request, err error, target zap.Field) {
	fields := append(requestFields(r), target, zap.Error(err))

	switch {
	case errors.Is(err, checklist.ErrTestNotFound):
		respondError(w, http.StatusNotFound, "test_not_found", err.Error())
	case errors.Is(err, checklist.ErrCategoryNotFound):
		respondError(w, http.StatusNotFound, "category_not_found", err.Error())
	case errors.Is(err, checklist.ErrRunAllInProgress):
		respondError(w, http.StatusConflict, "run_in_progress", err.Error())
	case errors.Is(err, checklist.ErrExecutionFailure), errors.Is(err, checklist.ErrSavedResultsFailed):
		s.logger.Warn("readiness run failed", fields...)
		respondError(w, http.StatusBadGateway, "execution_failed", err.Error())
	default:
		s.logger.Error("readiness run error", fields...)
		respondError(w, http.StatusInternalServerError, "internal_error", "readiness run failed")
	}
}
