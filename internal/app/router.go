package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/klarsdoc/sistem-pembelian-kredit-manufaktur/internal/ap"
	"github.com/klarsdoc/sistem-pembelian-kredit-manufaktur/internal/inventory"
	"github.com/klarsdoc/sistem-pembelian-kredit-manufaktur/internal/observability"
	"github.com/klarsdoc/sistem-pembelian-kredit-manufaktur/internal/platform/httpx"
	"github.com/klarsdoc/sistem-pembelian-kredit-manufaktur/internal/procurement"
	"github.com/klarsdoc/sistem-pembelian-kredit-manufaktur/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger             *slog.Logger
	Config             *Config
	ProcurementHandler *procurement.Handler
	InventoryHandler   *inventory.Handler
	APHandler          *ap.Handler
	JobHandler         *jobs.Handler
	Metrics            *observability.Metrics
	StoreDriver        string
}

// NewRouter constructs the chi.Router with the API defaults.
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

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.Fail(w, http.StatusNotFound, "Endpoint tidak ditemukan", nil, nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httpx.Fail(w, http.StatusMethodNotAllowed, "Metode tidak diizinkan", nil, nil)
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.OK(w, http.StatusOK, map[string]string{"status": "ok", "store": params.StoreDriver}, "")
	})

	if params.ProcurementHandler != nil {
		params.ProcurementHandler.MountRoutes(r)
	}
	r.Route("/gudang", func(r chi.Router) {
		if params.InventoryHandler != nil {
			params.InventoryHandler.MountRoutes(r)
		}
		if params.ProcurementHandler != nil {
			r.Post("/lpb/{id}/process", params.ProcurementHandler.SubmitReceiptToWarehouse)
		}
	})
	if params.APHandler != nil {
		params.APHandler.MountRoutes(r)
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
