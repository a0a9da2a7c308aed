package api

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"go.uber.org/zap"

	"github.com/danceforge/backoffice/internal/models"
)

const maxPageSize = 200

func (s *Server) handleListResources(w http.ResponseWriter, r *http.Request) {
	q, err := parseCatalogQuery(r.URL.Query(), s.defaultPageSize)
	if err != nil {
		respondError(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	view, err := s.catalog.View(r.Context(), q)
	if err != nil {
		s.logger.Error("failed to load catalog", zap.Error(err))
		respondError(w, http.StatusBadGateway, "catalog_unavailable", "failed to load catalog")
		return
	}

	respondJSON(w, http.StatusOK, view)
}

func (s *Server) handleFacets(w http.ResponseWriter, r *http.Request) {
	view, err := s.catalog.View(r.Context(), models.CatalogQuery{Page: 1, Limit: 1})
	if err != nil {
		s.logger.Error("failed to load catalog", zap.Error(err))
		respondError(w, http.StatusBadGateway, "catalog_unavailable", "failed to load catalog")
		return
	}

	respondJSON(w, http.StatusOK, view.Facets)
}

// parseCatalogQuery reads filter, sort and paging parameters
func parseCatalogQuery(values url.Values, defaultLimit int) (models.CatalogQuery, error) {
	q := models.CatalogQuery{
		Filter: models.FilterState{
			Search:          values.Get("search"),
			DanceStyle:      values.Get("danceStyle"),
			AgeRange:        values.Get("ageRange"),
			DifficultyLevel: values.Get("difficultyLevel"),
			PriceRange:      values.Get("priceRange"),
			Format:          values.Get("format"),
			Seller:          values.Get("seller"),
		},
		Sort:  models.SortNewest,
		Page:  1,
		Limit: defaultLimit,
	}

	if sortStr := values.Get("sort"); sortStr != "" {
		key := models.SortKey(sortStr)
		if !key.IsValid() {
			return q, fmt.Errorf("unknown sort key %q", sortStr)
		}
		q.Sort = key
	}

	if pageStr := values.Get("page"); pageStr != "" {
		page, err := strconv.Atoi(pageStr)
		if err != nil || page < 1 {
			return q, fmt.Errorf("invalid page %q", pageStr)
		}
		q.Page = page
	}

	if limitStr := values.Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit < 1 {
			return q, fmt.Errorf("invalid limit %q", limitStr)
		}
		q.Limit = min(limit, maxPageSize)
	}

	return q, nil
}
