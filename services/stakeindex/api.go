package stakeindex

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

const defaultPageSize = 50

// API serves read-only queries over the indexed history.
type API struct {
	indexer *Indexer
	router  http.Handler
}

// NewAPI constructs the HTTP router for the indexer.
func NewAPI(indexer *Indexer) *API {
	api := &API{indexer: indexer}
	api.router = api.buildRouter()
	return api
}

// Handler exposes the configured HTTP router.
func (a *API) Handler() http.Handler {
	return a.router
}

func (a *API) buildRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	r.Route("/v1", func(v1 chi.Router) {
		v1.Get("/events", a.listEvents)
		v1.Get("/positions/{owner}", a.listPositions)
	})
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return r
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func pageSize(r *http.Request) int {
	raw := strings.TrimSpace(r.URL.Query().Get("limit"))
	if raw == "" {
		return defaultPageSize
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 || limit > 500 {
		return defaultPageSize
	}
	return limit
}

func (a *API) listEvents(w http.ResponseWriter, r *http.Request) {
	query := a.indexer.DB().Model(&StakeEvent{}).Order("created_at DESC").Limit(pageSize(r))
	if owner := strings.TrimSpace(r.URL.Query().Get("owner")); owner != "" {
		query = query.Where("owner = ?", owner)
	}
	var rows []StakeEvent
	if err := query.Find(&rows).Error; err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "query failed"})
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (a *API) listPositions(w http.ResponseWriter, r *http.Request) {
	owner := strings.TrimSpace(chi.URLParam(r, "owner"))
	if owner == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "owner is required"})
		return
	}
	query := a.indexer.DB().Model(&Position{}).
		Where("owner = ?", owner).
		Order("sequence ASC").
		Limit(pageSize(r))
	if strings.EqualFold(r.URL.Query().Get("active"), "true") {
		query = query.Where("active = ?", true)
	}
	var rows []Position
	if err := query.Find(&rows).Error; err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "query failed"})
		return
	}
	writeJSON(w, http.StatusOK, rows)
}
