package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/stocktally/stocktally/internal/auth"
	"github.com/stocktally/stocktally/internal/catalog"
	"github.com/stocktally/stocktally/internal/ledger"
	"github.com/stocktally/stocktally/internal/observability"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	AuthService    *auth.Service
	AuthHandler    *auth.Handler
	LedgerHandler  *ledger.Handler
	CatalogHandler *catalog.Handler
	Metrics        *observability.Metrics
}

// NewRouter constructs the chi.Router with Stocktally defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/auth", params.AuthHandler.MountRoutes)

	// Everything below requires a valid bearer token.
	r.Group(func(r chi.Router) {
		r.Use(params.AuthService.RequireToken)

		r.Route("/admin", params.AuthHandler.MountAdminRoutes)
		r.Route("/sync", params.LedgerHandler.MountSyncRoutes)
		r.Route("/inventory", params.LedgerHandler.MountInventoryRoutes)
		r.Route("/items", params.CatalogHandler.MountItemRoutes)
		r.Route("/meta", params.CatalogHandler.MountMetaRoutes)
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
