package export

import (
	"encoding/csv"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/MedGhazal/InvoiceGenerator/internal/invoicing"
	"github.com/MedGhazal/InvoiceGenerator/internal/platform/httpx"
	"github.com/MedGhazal/InvoiceGenerator/internal/shared"
)

// Handler serves the bookkeeping CSV export.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers export routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/invoices.csv", h.exportCSV)
}

func (h *Handler) exportCSV(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("ids")
	if raw == "" {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Query", "ids is required")
		return
	}
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Query", "ids must be a comma separated list of numbers")
			return
		}
		ids = append(ids, id)
	}

	rows, err := h.service.Rows(r.Context(), shared.ActorID(r.Context()), ids)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="export.csv"`)
	cw := csv.NewWriter(w)
	_ = cw.Write(Headers)
	for _, row := range rows {
		_ = cw.Write([]string{
			row.EntryDate.Format("2006-01-02"),
			row.Account,
			row.Name,
			row.Label,
			row.Piece,
			row.Debit.StringFixed(2),
			row.Credit.StringFixed(2),
			row.FacturationDate.Format("2006-01-02"),
		})
	}
	cw.Flush()
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, invoicing.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", shared.UserSafeMessage(err))
	case errors.Is(err, shared.ErrForbidden):
		httpx.Problem(w, http.StatusForbidden, "Forbidden", shared.UserSafeMessage(err))
	case errors.Is(err, ErrDraftExport), errors.Is(err, ErrIncompleteInvoice):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Export Rejected", err.Error())
	default:
		h.logger.Error("export request failed", slog.Any("error", err), slog.String("path", r.URL.Path))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
