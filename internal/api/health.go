package api

import (
	"database/sql"
	"net/http"

	"github.com/erazemk/shramba/internal/store"
)

// HealthHandler reports readiness and runs bootstrap.
type HealthHandler struct {
	DB    *sql.DB
	Rules RuleLoader
	Codes store.CodeFormat
}

// Live handles GET /api/healthz.
func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	if err := h.DB.PingContext(r.Context()); err != nil {
		jsonError(w, http.StatusServiceUnavailable, "database unavailable")
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Owner handles GET /api/health.
func (h *HealthHandler) Owner(w http.ResponseWriter, r *http.Request) {
	health, err := store.GetHealth(r.Context(), h.DB, ownerID(r))
	if err != nil {
		storeError(w, err, "check health")
		return
	}
	jsonResponse(w, http.StatusOK, health)
}

// Bootstrap handles POST /api/bootstrap: default categories plus a root
// location for the caller.
func (h *HealthHandler) Bootstrap(w http.ResponseWriter, r *http.Request) {
	owner := ownerID(r)
	if err := store.EnsureDefaultCategories(r.Context(), h.DB); err != nil {
		storeError(w, err, "create default categories")
		return
	}

	rules, err := h.Rules(r.Context(), owner)
	if err != nil {
		storeError(w, err, "load rules")
		return
	}
	if _, err := store.EnsureRootLocation(r.Context(), h.DB, rules, h.Codes, owner); err != nil {
		storeError(w, err, "create root location")
		return
	}

	health, err := store.GetHealth(r.Context(), h.DB, owner)
	if err != nil {
		storeError(w, err, "check health")
		return
	}
	jsonResponse(w, http.StatusOK, health)
}
