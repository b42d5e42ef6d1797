package api

import (
	"context"
	"database/sql"
	"net/http"

	"github.com/erazemk/shramba/internal/hierarchy"
	"github.com/erazemk/shramba/internal/model"
	"github.com/erazemk/shramba/internal/store"
)

// RuleLoader returns the hierarchy rules in force for an owner.
type RuleLoader func(ctx context.Context, ownerID string) (*hierarchy.RuleSet, error)

func ruleLoader(cfg Config) RuleLoader {
	return func(ctx context.Context, ownerID string) (*hierarchy.RuleSet, error) {
		return store.GetRuleSet(ctx, cfg.DB, ownerID, cfg.DefaultPreset)
	}
}

// RulesHandler handles hierarchy rule endpoints.
type RulesHandler struct {
	DB            *sql.DB
	DefaultPreset string
}

type ruleSetResponse struct {
	Rules []model.HierarchyRule `json:"rules"`
}

func newRuleSetResponse(set *hierarchy.RuleSet) ruleSetResponse {
	rules := set.Rules()
	if rules == nil {
		rules = []model.HierarchyRule{}
	}
	return ruleSetResponse{Rules: rules}
}

// Get handles GET /api/rules.
func (h *RulesHandler) Get(w http.ResponseWriter, r *http.Request) {
	set, err := store.GetRuleSet(r.Context(), h.DB, ownerID(r), h.DefaultPreset)
	if err != nil {
		storeError(w, err, "load rules")
		return
	}
	jsonResponse(w, http.StatusOK, newRuleSetResponse(set))
}

// Replace handles PUT /api/rules.
func (h *RulesHandler) Replace(w http.ResponseWriter, r *http.Request) {
	var req ruleSetResponse
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	set, err := store.ReplaceRuleSet(r.Context(), h.DB, ownerID(r), req.Rules)
	if err != nil {
		storeError(w, err, "replace rules")
		return
	}
	jsonResponse(w, http.StatusOK, newRuleSetResponse(set))
}

// Toggle handles PATCH /api/rules with a single rule.
func (h *RulesHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	var req model.HierarchyRule
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	set, err := store.SetRule(r.Context(), h.DB, ownerID(r), h.DefaultPreset, req)
	if err != nil {
		storeError(w, err, "update rule")
		return
	}
	jsonResponse(w, http.StatusOK, newRuleSetResponse(set))
}

// Presets handles GET /api/rules/presets.
func (h *RulesHandler) Presets(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, map[string]any{
		"presets": hierarchy.PresetNames(),
		"default": h.DefaultPreset,
	})
}

// ApplyPreset handles PUT /api/rules/presets/{name}.
func (h *RulesHandler) ApplyPreset(w http.ResponseWriter, r *http.Request) {
	set, err := store.ApplyPreset(r.Context(), h.DB, ownerID(r), r.PathValue("name"))
	if err != nil {
		storeError(w, err, "apply preset")
		return
	}
	jsonResponse(w, http.StatusOK, newRuleSetResponse(set))
}

// AllowedChildren handles GET /api/rules/children/{type}.
func (h *RulesHandler) AllowedChildren(w http.ResponseWriter, r *http.Request) {
	parent := model.LocationType(r.PathValue("type"))
	if !parent.Valid() {
		jsonError(w, http.StatusBadRequest, "unknown location type")
		return
	}

	set, err := store.GetRuleSet(r.Context(), h.DB, ownerID(r), h.DefaultPreset)
	if err != nil {
		storeError(w, err, "load rules")
		return
	}
	children := set.AllowedChildren(parent)
	if children == nil {
		children = []model.LocationType{}
	}
	jsonResponse(w, http.StatusOK, map[string]any{"parentType": parent, "childTypes": children})
}
