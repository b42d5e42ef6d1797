package api

import (
	"database/sql"
	"net/http"

	"github.com/erazemk/shramba/internal/schema"
	"github.com/erazemk/shramba/internal/store"
)

// Config carries what the handlers need besides the request.
type Config struct {
	DB            *sql.DB
	JWTSecret     string
	Validator     schema.Validator
	Codes         store.CodeFormat
	DefaultPreset string
	MaxSegments   int
}

// NewRouter creates the API router with all endpoints registered.
func NewRouter(cfg Config) http.Handler {
	if cfg.Validator == nil {
		cfg.Validator = schema.NewValidator()
	}

	mux := http.NewServeMux()

	health := &HealthHandler{DB: cfg.DB, Rules: ruleLoader(cfg), Codes: cfg.Codes}
	locations := &LocationsHandler{DB: cfg.DB, Rules: ruleLoader(cfg), Codes: cfg.Codes, MaxSegments: cfg.MaxSegments}
	rules := &RulesHandler{DB: cfg.DB, DefaultPreset: cfg.DefaultPreset}
	inventory := &InventoryHandler{DB: cfg.DB, Validator: cfg.Validator}

	authMW := AuthMiddleware(cfg.JWTSecret)
	handle := func(pattern string, fn http.HandlerFunc) {
		mux.Handle(pattern, authMW(fn))
	}

	// Public liveness probe.
	mux.HandleFunc("GET /api/healthz", health.Live)

	handle("GET /api/health", health.Owner)
	handle("POST /api/bootstrap", health.Bootstrap)

	handle("GET /api/locations", locations.List)
	handle("POST /api/locations", locations.Create)
	handle("GET /api/locations/tree", locations.Tree)
	handle("GET /api/locations/{id}", locations.Get)
	handle("PUT /api/locations/{id}", locations.Rename)
	handle("DELETE /api/locations/{id}", locations.Delete)
	handle("PUT /api/locations/{id}/parent", locations.Move)
	handle("GET /api/locations/{id}/path", locations.Path)

	handle("GET /api/rules", rules.Get)
	handle("PUT /api/rules", rules.Replace)
	handle("PATCH /api/rules", rules.Toggle)
	handle("GET /api/rules/presets", rules.Presets)
	handle("PUT /api/rules/presets/{name}", rules.ApplyPreset)
	handle("GET /api/rules/children/{type}", rules.AllowedChildren)

	handle("GET /api/categories", inventory.ListCategories)
	handle("POST /api/categories", inventory.CreateCategory)

	handle("GET /api/masters", inventory.ListAggregates)
	handle("POST /api/masters", inventory.CreateMaster)
	handle("GET /api/masters/{id}/aggregate", inventory.Aggregate)
	handle("GET /api/masters/{id}/variants", inventory.ListVariants)
	handle("GET /api/masters/{id}/instances", inventory.ListInstances)

	handle("POST /api/variants", inventory.CreateVariant)
	handle("DELETE /api/variants/{id}", inventory.DeleteVariant)
	handle("POST /api/instances", inventory.CreateInstance)
	handle("POST /api/relations", inventory.CreateRelation)

	handle("GET /api/items", inventory.ListItems)
	handle("GET /api/items/{id}", inventory.GetItem)
	handle("POST /api/items/{id}/quantities", inventory.UpdateQuantities)

	return mux
}
