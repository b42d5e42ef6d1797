package api

import (
	"database/sql"
	"net/http"

	"github.com/erazemk/shramba/internal/model"
	"github.com/erazemk/shramba/internal/schema"
	"github.com/erazemk/shramba/internal/store"
)

// InventoryHandler handles categories, items and their relations.
type InventoryHandler struct {
	DB        *sql.DB
	Validator schema.Validator
}

type createRelationRequest struct {
	Type       model.RelationType `json:"relationType"`
	FromItemID string             `json:"fromItemId"`
	ToItemID   string             `json:"toItemId"`
}

func roleParam(r *http.Request) (model.Role, bool) {
	role := model.Role(r.URL.Query().Get("role"))
	return role, role == "" || role.Valid()
}

// ListCategories handles GET /api/categories, optionally ?role=.
func (h *InventoryHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	role, ok := roleParam(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid role")
		return
	}

	cats, err := store.ListCategories(r.Context(), h.DB, role)
	if err != nil {
		storeError(w, err, "list categories")
		return
	}
	if cats == nil {
		cats = []model.Category{}
	}
	jsonResponse(w, http.StatusOK, cats)
}

// CreateCategory handles POST /api/categories.
func (h *InventoryHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req store.NewCategory
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	cat, err := store.CreateCategory(r.Context(), h.DB, req)
	if err != nil {
		storeError(w, err, "create category")
		return
	}
	jsonResponse(w, http.StatusCreated, cat)
}

// ListAggregates handles GET /api/masters: every master with its rollup.
func (h *InventoryHandler) ListAggregates(w http.ResponseWriter, r *http.Request) {
	aggs, err := store.AggregateAll(r.Context(), h.DB, ownerID(r))
	if err != nil {
		storeError(w, err, "aggregate masters")
		return
	}
	jsonResponse(w, http.StatusOK, aggs)
}

// CreateMaster handles POST /api/masters.
func (h *InventoryHandler) CreateMaster(w http.ResponseWriter, r *http.Request) {
	var req store.MasterInput
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	item, err := store.CreateMaster(r.Context(), h.DB, h.Validator, ownerID(r), req)
	if err != nil {
		storeError(w, err, "create master")
		return
	}
	jsonResponse(w, http.StatusCreated, item)
}

// Aggregate handles GET /api/masters/{id}/aggregate.
func (h *InventoryHandler) Aggregate(w http.ResponseWriter, r *http.Request) {
	agg, err := store.Aggregate(r.Context(), h.DB, ownerID(r), r.PathValue("id"))
	if err != nil {
		storeError(w, err, "aggregate master")
		return
	}
	jsonResponse(w, http.StatusOK, agg)
}

// ListVariants handles GET /api/masters/{id}/variants.
func (h *InventoryHandler) ListVariants(w http.ResponseWriter, r *http.Request) {
	items, err := store.ListVariants(r.Context(), h.DB, ownerID(r), r.PathValue("id"))
	if err != nil {
		storeError(w, err, "list variants")
		return
	}
	writeItems(w, items)
}

// ListInstances handles GET /api/masters/{id}/instances.
func (h *InventoryHandler) ListInstances(w http.ResponseWriter, r *http.Request) {
	items, err := store.ListInstances(r.Context(), h.DB, ownerID(r), r.PathValue("id"))
	if err != nil {
		storeError(w, err, "list instances")
		return
	}
	writeItems(w, items)
}

// CreateVariant handles POST /api/variants.
func (h *InventoryHandler) CreateVariant(w http.ResponseWriter, r *http.Request) {
	var req store.VariantInput
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	item, err := store.CreateVariant(r.Context(), h.DB, h.Validator, ownerID(r), req)
	if err != nil {
		storeError(w, err, "create variant")
		return
	}
	jsonResponse(w, http.StatusCreated, item)
}

// DeleteVariant handles DELETE /api/variants/{id}.
func (h *InventoryHandler) DeleteVariant(w http.ResponseWriter, r *http.Request) {
	if err := store.DeleteVariant(r.Context(), h.DB, ownerID(r), r.PathValue("id")); err != nil {
		storeError(w, err, "delete variant")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CreateInstance handles POST /api/instances.
func (h *InventoryHandler) CreateInstance(w http.ResponseWriter, r *http.Request) {
	var req store.InstanceInput
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	item, err := store.CreateInstance(r.Context(), h.DB, h.Validator, ownerID(r), req)
	if err != nil {
		storeError(w, err, "create instance")
		return
	}
	jsonResponse(w, http.StatusCreated, item)
}

// CreateRelation handles POST /api/relations.
func (h *InventoryHandler) CreateRelation(w http.ResponseWriter, r *http.Request) {
	var req createRelationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	rel, err := store.CreateRelation(r.Context(), h.DB, ownerID(r), req.Type, req.FromItemID, req.ToItemID)
	if err != nil {
		storeError(w, err, "create relation")
		return
	}
	jsonResponse(w, http.StatusCreated, rel)
}

// ListItems handles GET /api/items, optionally ?role=.
func (h *InventoryHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	role, ok := roleParam(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid role")
		return
	}

	items, err := store.ListItems(r.Context(), h.DB, ownerID(r), role)
	if err != nil {
		storeError(w, err, "list items")
		return
	}
	writeItems(w, items)
}

// GetItem handles GET /api/items/{id}.
func (h *InventoryHandler) GetItem(w http.ResponseWriter, r *http.Request) {
	item, err := store.GetItem(r.Context(), h.DB, ownerID(r), r.PathValue("id"))
	if err != nil {
		storeError(w, err, "get item")
		return
	}
	jsonResponse(w, http.StatusOK, item)
}

// UpdateQuantities handles POST /api/items/{id}/quantities.
func (h *InventoryHandler) UpdateQuantities(w http.ResponseWriter, r *http.Request) {
	var req store.QuantityDelta
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	item, err := store.UpdateQuantities(r.Context(), h.DB, ownerID(r), r.PathValue("id"), req)
	if err != nil {
		storeError(w, err, "update quantities")
		return
	}
	jsonResponse(w, http.StatusOK, item)
}

func writeItems(w http.ResponseWriter, items []model.Item) {
	if items == nil {
		items = []model.Item{}
	}
	jsonResponse(w, http.StatusOK, items)
}
