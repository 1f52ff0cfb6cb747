package payments

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/MedGhazal/InvoiceGenerator/internal/invoicing"
	"github.com/MedGhazal/InvoiceGenerator/internal/observability"
	"github.com/MedGhazal/InvoiceGenerator/internal/platform/httpx"
	"github.com/MedGhazal/InvoiceGenerator/internal/shared"
)

// Handler manages payment endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
	idem     *shared.IdempotencyStore
	metrics  *observability.Metrics
}

// NewHandler builds Handler instance. The idempotency store may be nil, in
// which case Idempotency-Key headers are ignored. metrics may be nil.
func NewHandler(logger *slog.Logger, service *Service, validate *validator.Validate, idem *shared.IdempotencyStore, metrics *observability.Metrics) *Handler {
	return &Handler{logger: logger, service: service, validate: validate, idem: idem, metrics: metrics}
}

// MountRoutes registers payment routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.createPayment)
	r.Get("/{id}", h.getPayment)
	r.Delete("/{id}", h.deletePayment)
	r.Put("/{id}/amount", h.updateAmount)
	r.Put("/{id}/invoices", h.replaceInvoices)
	r.Delete("/{id}/invoices", h.clearInvoices)
	r.Post("/{id}/invoices/{invoiceID}", h.linkInvoice)
	r.Delete("/{id}/invoices/{invoiceID}", h.unlinkInvoice)
}

type createPaymentRequest struct {
	PayorID       int64   `json:"payorId" validate:"required"`
	PaymentDay    string  `json:"paymentDay" validate:"required,datetime=2006-01-02"`
	Method        string  `json:"method" validate:"omitempty,oneof=TR CS CK CN CD DC DD BE DV"`
	PaidAmount    string  `json:"paidAmount" validate:"required"`
	BankAccountID *int64  `json:"bankAccountId"`
	InvoiceIDs    []int64 `json:"invoiceIds" validate:"required,min=1"`
}

type paymentResponse struct {
	ID            int64   `json:"id"`
	Reference     string  `json:"reference"`
	PayorID       int64   `json:"payorId"`
	PaymentDay    string  `json:"paymentDay"`
	Method        string  `json:"method"`
	PaidAmount    string  `json:"paidAmount"`
	BankAccountID *int64  `json:"bankAccountId,omitempty"`
	InvoiceIDs    []int64 `json:"invoiceIds,omitempty"`
	Share         string  `json:"share,omitempty"`
}

func toPaymentResponse(p Payment) paymentResponse {
	return paymentResponse{
		ID:            p.ID,
		Reference:     p.Reference,
		PayorID:       p.PayorID,
		PaymentDay:    p.PaymentDay.Format("2006-01-02"),
		Method:        string(p.Method),
		PaidAmount:    p.PaidAmount.StringFixed(2),
		BankAccountID: p.BankAccountID,
	}
}

func (h *Handler) createPayment(w http.ResponseWriter, r *http.Request) {
	var req createPaymentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	amount, err := decimal.NewFromString(req.PaidAmount)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "paidAmount is not a decimal")
		return
	}
	day, _ := time.Parse("2006-01-02", req.PaymentDay)

	idemKey := r.Header.Get("Idempotency-Key")
	if idemKey != "" && h.idem != nil {
		if err := h.idem.CheckAndInsert(r.Context(), idemKey, "payments"); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				httpx.Problem(w, http.StatusConflict, "Duplicate Request", "this payment was already submitted")
				return
			}
			h.respondError(w, r, err)
			return
		}
	}

	created, err := h.service.CreatePayment(r.Context(), shared.ActorID(r.Context()), CreatePaymentInput{
		PayorID:       req.PayorID,
		PaymentDay:    day,
		Method:        invoicing.PaymentMethod(req.Method),
		PaidAmount:    amount,
		BankAccountID: req.BankAccountID,
		InvoiceIDs:    req.InvoiceIDs,
	})
	if err != nil {
		if idemKey != "" && h.idem != nil {
			// Free the key so the caller can retry after fixing the request.
			if delErr := h.idem.Delete(r.Context(), idemKey); delErr != nil {
				h.logger.Warn("release idempotency key", slog.Any("error", delErr))
			}
		}
		h.respondError(w, r, err)
		return
	}
	h.metrics.RecordAllocation("applied")
	resp := toPaymentResponse(*created)
	resp.InvoiceIDs = req.InvoiceIDs
	resp.Share = Share(created.PaidAmount, len(req.InvoiceIDs)).StringFixed(2)
	httpx.JSON(w, http.StatusCreated, resp)
}

func (h *Handler) getPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	detail, err := h.service.GetPaymentDetail(r.Context(), shared.ActorID(r.Context()), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	resp := toPaymentResponse(detail.Payment)
	for _, inv := range detail.Invoices {
		resp.InvoiceIDs = append(resp.InvoiceIDs, inv.ID)
	}
	resp.Share = detail.Share.StringFixed(2)
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) deletePayment(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.service.DeletePayment(r.Context(), shared.ActorID(r.Context()), id); err != nil {
		h.respondError(w, r, err)
		return
	}
	h.metrics.RecordAllocation("applied")
	w.WriteHeader(http.StatusNoContent)
}

type updateAmountRequest struct {
	PaidAmount string `json:"paidAmount" validate:"required"`
}

func (h *Handler) updateAmount(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	var req updateAmountRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	amount, err := decimal.NewFromString(req.PaidAmount)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "paidAmount is not a decimal")
		return
	}
	if err := h.service.UpdateAmount(r.Context(), shared.ActorID(r.Context()), id, amount); err != nil {
		h.respondError(w, r, err)
		return
	}
	h.metrics.RecordAllocation("applied")
	w.WriteHeader(http.StatusNoContent)
}

type replaceInvoicesRequest struct {
	InvoiceIDs []int64 `json:"invoiceIds" validate:"required,min=1"`
}

func (h *Handler) replaceInvoices(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	var req replaceInvoicesRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if err := h.service.ReplaceInvoices(r.Context(), shared.ActorID(r.Context()), id, req.InvoiceIDs); err != nil {
		h.respondError(w, r, err)
		return
	}
	h.metrics.RecordAllocation("applied")
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) clearInvoices(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.service.ClearInvoices(r.Context(), shared.ActorID(r.Context()), id); err != nil {
		h.respondError(w, r, err)
		return
	}
	h.metrics.RecordAllocation("applied")
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) linkInvoice(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	invoiceID, ok := h.pathID(w, r, "invoiceID")
	if !ok {
		return
	}
	if err := h.service.LinkInvoice(r.Context(), shared.ActorID(r.Context()), id, invoiceID); err != nil {
		h.respondError(w, r, err)
		return
	}
	h.metrics.RecordAllocation("applied")
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) unlinkInvoice(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	invoiceID, ok := h.pathID(w, r, "invoiceID")
	if !ok {
		return
	}
	if err := h.service.UnlinkInvoice(r.Context(), shared.ActorID(r.Context()), id, invoiceID); err != nil {
		h.respondError(w, r, err)
		return
	}
	h.metrics.RecordAllocation("applied")
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Path", name+" must be numeric")
		return 0, false
	}
	return id, true
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, invoicing.ErrNotFound), errors.Is(err, shared.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", shared.UserSafeMessage(err))
	case errors.Is(err, shared.ErrForbidden):
		httpx.Problem(w, http.StatusForbidden, "Forbidden", shared.UserSafeMessage(err))
	case errors.Is(err, ErrNoInvoices),
		errors.Is(err, ErrMixedCurrencies),
		errors.Is(err, ErrOverAllocation),
		errors.Is(err, ErrNegativeAmount),
		errors.Is(err, ErrNotLinkable),
		errors.Is(err, ErrWrongPayor),
		errors.Is(err, ErrAlreadyLinked),
		errors.Is(err, ErrNotLinked):
		h.metrics.RecordAllocation("rejected")
		httpx.Problem(w, http.StatusUnprocessableEntity, "Allocation Rejected", err.Error())
	default:
		h.logger.Error("payment request failed", slog.Any("error", err), slog.String("path", r.URL.Path))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
