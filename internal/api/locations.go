package api

import (
	"database/sql"
	"net/http"

	"github.com/erazemk/shramba/internal/model"
	"github.com/erazemk/shramba/internal/store"
	"github.com/erazemk/shramba/internal/tree"
)

// LocationsHandler handles location tree endpoints.
type LocationsHandler struct {
	DB          *sql.DB
	Rules       RuleLoader
	Codes       store.CodeFormat
	MaxSegments int
}

type renameLocationRequest struct {
	Name string `json:"name"`
}

type moveLocationRequest struct {
	ParentID *string `json:"parentId"`
}

type pathResponse struct {
	Path    []string `json:"path"`
	Display string   `json:"display"`
}

// List handles GET /api/locations, optionally ?parent={id}.
func (h *LocationsHandler) List(w http.ResponseWriter, r *http.Request) {
	var parent *string
	if p := r.URL.Query().Get("parent"); p != "" {
		parent = &p
	}

	locs, err := store.ListLocations(r.Context(), h.DB, ownerID(r), parent)
	if err != nil {
		storeError(w, err, "list locations")
		return
	}
	if locs == nil {
		locs = []model.Location{}
	}
	jsonResponse(w, http.StatusOK, locs)
}

// Create handles POST /api/locations.
func (h *LocationsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req store.NewLocation
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	owner := ownerID(r)
	rules, err := h.Rules(r.Context(), owner)
	if err != nil {
		storeError(w, err, "load rules")
		return
	}

	loc, err := store.CreateLocation(r.Context(), h.DB, rules, h.Codes, owner, req)
	if err != nil {
		storeError(w, err, "create location")
		return
	}

	loc, err = store.GetLocation(r.Context(), h.DB, owner, loc.ID)
	if err != nil {
		storeError(w, err, "get location")
		return
	}
	jsonResponse(w, http.StatusCreated, loc)
}

// Tree handles GET /api/locations/tree.
func (h *LocationsHandler) Tree(w http.ResponseWriter, r *http.Request) {
	roots, err := store.LocationTree(r.Context(), h.DB, ownerID(r))
	if err != nil {
		storeError(w, err, "load location tree")
		return
	}
	if roots == nil {
		roots = []*store.LocationNode{}
	}
	jsonResponse(w, http.StatusOK, roots)
}

// Get handles GET /api/locations/{id}.
func (h *LocationsHandler) Get(w http.ResponseWriter, r *http.Request) {
	loc, err := store.GetLocation(r.Context(), h.DB, ownerID(r), r.PathValue("id"))
	if err != nil {
		storeError(w, err, "get location")
		return
	}
	jsonResponse(w, http.StatusOK, loc)
}

// Rename handles PUT /api/locations/{id}.
func (h *LocationsHandler) Rename(w http.ResponseWriter, r *http.Request) {
	var req renameLocationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	loc, err := store.RenameLocation(r.Context(), h.DB, ownerID(r), r.PathValue("id"), req.Name)
	if err != nil {
		storeError(w, err, "rename location")
		return
	}
	jsonResponse(w, http.StatusOK, loc)
}

// Move handles PUT /api/locations/{id}/parent. A null parentId moves the
// location to the root.
func (h *LocationsHandler) Move(w http.ResponseWriter, r *http.Request) {
	var req moveLocationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	owner := ownerID(r)
	rules, err := h.Rules(r.Context(), owner)
	if err != nil {
		storeError(w, err, "load rules")
		return
	}

	id := r.PathValue("id")
	if _, err := store.MoveLocation(r.Context(), h.DB, rules, owner, id, req.ParentID); err != nil {
		storeError(w, err, "move location")
		return
	}

	loc, err := store.GetLocation(r.Context(), h.DB, owner, id)
	if err != nil {
		storeError(w, err, "get location")
		return
	}
	jsonResponse(w, http.StatusOK, loc)
}

// Delete handles DELETE /api/locations/{id}.
func (h *LocationsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := store.DeleteLocation(r.Context(), h.DB, ownerID(r), r.PathValue("id")); err != nil {
		storeError(w, err, "delete location")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Path handles GET /api/locations/{id}/path, optionally ?max={segments}.
func (h *LocationsHandler) Path(w http.ResponseWriter, r *http.Request) {
	maxSegments, err := queryInt(r, "max", h.MaxSegments)
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	path, err := store.ResolvePath(r.Context(), h.DB, ownerID(r), r.PathValue("id"))
	if err != nil {
		storeError(w, err, "resolve path")
		return
	}
	jsonResponse(w, http.StatusOK, pathResponse{
		Path:    path,
		Display: tree.Compact(path, maxSegments),
	})
}
