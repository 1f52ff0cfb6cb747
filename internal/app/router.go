package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/MedGhazal/InvoiceGenerator/internal/auth"
	"github.com/MedGhazal/InvoiceGenerator/internal/export"
	"github.com/MedGhazal/InvoiceGenerator/internal/invoicing"
	"github.com/MedGhazal/InvoiceGenerator/internal/observability"
	"github.com/MedGhazal/InvoiceGenerator/internal/parties"
	"github.com/MedGhazal/InvoiceGenerator/internal/payments"
	"github.com/MedGhazal/InvoiceGenerator/jobs"
	"github.com/MedGhazal/InvoiceGenerator/report"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	AuthService      *auth.Service
	AuthHandler      *auth.Handler
	PartiesHandler   *parties.Handler
	InvoicingHandler *invoicing.Handler
	PaymentsHandler  *payments.Handler
	ExportHandler    *export.Handler
	ReportHandler    *report.Handler
	JobsHandler      *jobs.Handler
	Metrics          *observability.Metrics
}

// NewRouter constructs the chi.Router serving the invoicing API.
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
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(params.AuthService))

		r.Route("/auth", params.AuthHandler.MountRoutes)
		params.PartiesHandler.MountRoutes(r)
		r.Route("/invoices", params.InvoicingHandler.MountRoutes)
		r.Route("/payments", params.PaymentsHandler.MountRoutes)
		r.Route("/export", params.ExportHandler.MountRoutes)
		r.Route("/reports", params.ReportHandler.MountRoutes)
		if params.JobsHandler != nil {
			r.Route("/jobs", params.JobsHandler.MountRoutes)
		}
	})

	return r
}
