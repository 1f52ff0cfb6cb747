package invoicing

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/MedGhazal/InvoiceGenerator/internal/platform/httpx"
	"github.com/MedGhazal/InvoiceGenerator/internal/shared"
)

// Handler manages invoicing endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, validate *validator.Validate) *Handler {
	return &Handler{logger: logger, service: service, validate: validate}
}

// MountRoutes registers invoicing routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.createInvoice)
	r.Get("/", h.listInvoices)
	r.Get("/{id}", h.getInvoice)
	r.Put("/{id}", h.updateInvoice)
	r.Delete("/{id}", h.deleteInvoice)

	r.Post("/{id}/validate", h.validateInvoice)
	r.Post("/{id}/paid", h.markPaid)
	r.Post("/{id}/credit", h.createCreditNote)

	r.Post("/{id}/projects", h.addProject)
	r.Put("/projects/{projectID}", h.renameProject)
	r.Delete("/projects/{projectID}", h.removeProject)

	r.Post("/projects/{projectID}/fees", h.addFee)
	r.Put("/fees/{feeID}", h.updateFee)
	r.Delete("/fees/{feeID}", h.removeFee)
}

type invoiceRequest struct {
	InvoicerID      int64  `json:"invoicerId" validate:"required"`
	InvoiceeID      int64  `json:"invoiceeId" validate:"required"`
	BankAccountID   *int64 `json:"bankAccountId"`
	BaseCurrency    string `json:"baseCurrency" validate:"required,min=3,max=5,uppercase"`
	DueDate         string `json:"dueDate" validate:"omitempty,datetime=2006-01-02"`
	FacturationDate string `json:"facturationDate" validate:"omitempty,datetime=2006-01-02"`
	PaymentMethod   string `json:"paymentMethod" validate:"omitempty,oneof=TR CS CK CN CD DC DD BE DV"`
	SalesAccount    int    `json:"salesAccount"`
	VATAccount      int    `json:"vatAccount"`
	Estimate        bool   `json:"estimate"`
}

type invoiceResponse struct {
	ID              int64  `json:"id"`
	Number          string `json:"number"`
	InvoicerID      int64  `json:"invoicerId"`
	InvoiceeID      int64  `json:"invoiceeId"`
	BankAccountID   *int64 `json:"bankAccountId,omitempty"`
	BaseCurrency    string `json:"baseCurrency"`
	DueDate         string `json:"dueDate,omitempty"`
	FacturationDate string `json:"facturationDate,omitempty"`
	PaymentMethod   string `json:"paymentMethod"`
	SalesAccount    int    `json:"salesAccount"`
	VATAccount      int    `json:"vatAccount"`
	State           string `json:"state"`
	PaidAmount      string `json:"paidAmount"`
	OwedAmount      string `json:"owedAmount"`
	Outstanding     string `json:"outstanding"`
	Status          int    `json:"status"`
	Band            int    `json:"band"`
}

func toInvoiceResponse(inv Invoice, now time.Time) invoiceResponse {
	resp := invoiceResponse{
		ID:            inv.ID,
		Number:        inv.Number(now),
		InvoicerID:    inv.InvoicerID,
		InvoiceeID:    inv.InvoiceeID,
		BankAccountID: inv.BankAccountID,
		BaseCurrency:  inv.BaseCurrency,
		PaymentMethod: string(inv.PaymentMethod),
		SalesAccount:  inv.SalesAccount,
		VATAccount:    inv.VATAccount,
		State:         inv.State.String(),
		PaidAmount:    inv.PaidAmount.StringFixed(2),
		OwedAmount:    inv.OwedAmount.StringFixed(2),
		Outstanding:   inv.OutstandingAmount().StringFixed(2),
		Status:        int(inv.Status(now)),
		Band:          int(inv.Band(now)),
	}
	if inv.DueDate != nil {
		resp.DueDate = inv.DueDate.Format("2006-01-02")
	}
	if inv.FacturationDate != nil {
		resp.FacturationDate = inv.FacturationDate.Format("2006-01-02")
	}
	return resp
}

func parseDate(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil
	}
	return &t
}

func (h *Handler) decodeInvoice(w http.ResponseWriter, r *http.Request) (*invoiceRequest, bool) {
	var req invoiceRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return nil, false
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return nil, false
	}
	return &req, true
}

func (h *Handler) createInvoice(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeInvoice(w, r)
	if !ok {
		return
	}
	created, err := h.service.CreateInvoice(r.Context(), shared.ActorID(r.Context()), CreateInvoiceInput{
		InvoicerID:      req.InvoicerID,
		InvoiceeID:      req.InvoiceeID,
		BankAccountID:   req.BankAccountID,
		BaseCurrency:    req.BaseCurrency,
		DueDate:         parseDate(req.DueDate),
		FacturationDate: parseDate(req.FacturationDate),
		PaymentMethod:   PaymentMethod(req.PaymentMethod),
		SalesAccount:    req.SalesAccount,
		VATAccount:      req.VATAccount,
		Estimate:        req.Estimate,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toInvoiceResponse(*created, time.Now()))
}

func (h *Handler) listInvoices(w http.ResponseWriter, r *http.Request) {
	invoicerID, err := strconv.ParseInt(r.URL.Query().Get("invoicerId"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Query", "invoicerId must be numeric")
		return
	}
	filter := ListFilter{InvoicerID: invoicerID, Kind: ListKind(r.URL.Query().Get("kind"))}
	if from := parseDate(r.URL.Query().Get("from")); from != nil {
		filter.From = *from
	}
	if to := parseDate(r.URL.Query().Get("to")); to != nil {
		filter.To = *to
	}
	invoices, err := h.service.ListInvoices(r.Context(), shared.ActorID(r.Context()), filter)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	now := time.Now()
	out := make([]invoiceResponse, 0, len(invoices))
	for _, inv := range invoices {
		out = append(out, toInvoiceResponse(inv, now))
	}
	pagination := shared.NewPagination(1, len(out), len(out))
	httpx.JSON(w, http.StatusOK, map[string]any{"invoices": out, "pagination": pagination})
}

type feeResponse struct {
	ID             int64  `json:"id"`
	Description    string `json:"description"`
	RateUnit       string `json:"rateUnit"`
	Count          int    `json:"count"`
	VAT            int    `json:"vat"`
	TotalBeforeVAT string `json:"totalBeforeVat"`
	TotalVAT       string `json:"totalVat"`
	TotalAfterVAT  string `json:"totalAfterVat"`
}

type projectResponse struct {
	ID     int64         `json:"id"`
	Title  string        `json:"title"`
	Fees   []feeResponse `json:"fees"`
	Totals totalsJSON    `json:"totals"`
	AvgVAT string        `json:"avgVat"`
}

type totalsJSON struct {
	BeforeVAT string `json:"beforeVat"`
	VAT       string `json:"vat"`
	AfterVAT  string `json:"afterVat"`
}

func toTotalsJSON(t Totals) totalsJSON {
	return totalsJSON{
		BeforeVAT: t.BeforeVAT.StringFixed(2),
		VAT:       t.VAT.StringFixed(2),
		AfterVAT:  t.AfterVAT.StringFixed(2),
	}
}

func (h *Handler) getInvoice(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	detail, err := h.service.GetInvoiceDetail(r.Context(), shared.ActorID(r.Context()), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	now := time.Now()
	resp := map[string]any{
		"invoice": toInvoiceResponse(detail.Invoice, now),
		"totals":  toTotalsJSON(detail.Totals),
		"avgVat":  detail.AvgVAT.StringFixed(2),
	}
	projects := make([]projectResponse, 0, len(detail.Projects))
	for _, pd := range detail.Projects {
		pr := projectResponse{
			ID:     pd.Project.ID,
			Title:  pd.Project.Title,
			Totals: toTotalsJSON(pd.Totals),
			AvgVAT: pd.AvgVAT.StringFixed(2),
		}
		for _, f := range pd.Fees {
			pr.Fees = append(pr.Fees, feeResponse{
				ID:             f.ID,
				Description:    f.Description,
				RateUnit:       f.RateUnit.StringFixed(2),
				Count:          f.Count,
				VAT:            f.VAT,
				TotalBeforeVAT: f.TotalBeforeVAT().StringFixed(2),
				TotalVAT:       f.TotalVAT().StringFixed(2),
				TotalAfterVAT:  f.TotalAfterVAT().StringFixed(2),
			})
		}
		projects = append(projects, pr)
	}
	resp["projects"] = projects
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) updateInvoice(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	req, ok := h.decodeInvoice(w, r)
	if !ok {
		return
	}
	updated, err := h.service.UpdateInvoiceMeta(r.Context(), shared.ActorID(r.Context()), id, UpdateInvoiceInput{
		InvoiceeID:      req.InvoiceeID,
		BankAccountID:   req.BankAccountID,
		BaseCurrency:    req.BaseCurrency,
		DueDate:         parseDate(req.DueDate),
		FacturationDate: parseDate(req.FacturationDate),
		PaymentMethod:   PaymentMethod(req.PaymentMethod),
		SalesAccount:    req.SalesAccount,
		VATAccount:      req.VATAccount,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toInvoiceResponse(*updated, time.Now()))
}

func (h *Handler) deleteInvoice(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.service.DeleteInvoice(r.Context(), shared.ActorID(r.Context()), id); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) validateInvoice(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	inv, err := h.service.ValidateInvoice(r.Context(), shared.ActorID(r.Context()), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toInvoiceResponse(*inv, time.Now()))
}

func (h *Handler) markPaid(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	inv, err := h.service.MarkPaid(r.Context(), shared.ActorID(r.Context()), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toInvoiceResponse(*inv, time.Now()))
}

func (h *Handler) createCreditNote(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	note, err := h.service.CreateCreditNote(r.Context(), shared.ActorID(r.Context()), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toInvoiceResponse(*note, time.Now()))
}

type projectRequest struct {
	Title string `json:"title" validate:"required,max=200"`
}

func (h *Handler) addProject(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	var req projectRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	p, err := h.service.AddProject(r.Context(), shared.ActorID(r.Context()), id, req.Title)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"id": p.ID, "title": p.Title})
}

func (h *Handler) renameProject(w http.ResponseWriter, r *http.Request) {
	projectID, ok := h.pathID(w, r, "projectID")
	if !ok {
		return
	}
	var req projectRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if err := h.service.RenameProject(r.Context(), shared.ActorID(r.Context()), projectID, req.Title); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) removeProject(w http.ResponseWriter, r *http.Request) {
	projectID, ok := h.pathID(w, r, "projectID")
	if !ok {
		return
	}
	if err := h.service.RemoveProject(r.Context(), shared.ActorID(r.Context()), projectID); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type feeRequest struct {
	Description       string `json:"description" validate:"required,max=500"`
	RateUnit          string `json:"rateUnit" validate:"required"`
	Count             int    `json:"count" validate:"required,min=1"`
	VAT               int    `json:"vat" validate:"min=0,max=100"`
	BookKeepingAmount string `json:"bookKeepingAmount"`
}

func (h *Handler) decodeFee(w http.ResponseWriter, r *http.Request) (*FeeInput, bool) {
	var req feeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return nil, false
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return nil, false
	}
	rate, err := decimal.NewFromString(req.RateUnit)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "rateUnit is not a decimal")
		return nil, false
	}
	book := decimal.Zero
	if req.BookKeepingAmount != "" {
		book, err = decimal.NewFromString(req.BookKeepingAmount)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "bookKeepingAmount is not a decimal")
			return nil, false
		}
	}
	return &FeeInput{
		Description:       req.Description,
		RateUnit:          rate,
		Count:             req.Count,
		VAT:               req.VAT,
		BookKeepingAmount: book,
	}, true
}

func (h *Handler) addFee(w http.ResponseWriter, r *http.Request) {
	projectID, ok := h.pathID(w, r, "projectID")
	if !ok {
		return
	}
	input, ok := h.decodeFee(w, r)
	if !ok {
		return
	}
	fee, err := h.service.AddFee(r.Context(), shared.ActorID(r.Context()), projectID, *input)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{
		"id":            fee.ID,
		"totalAfterVat": fee.TotalAfterVAT().StringFixed(2),
	})
}

func (h *Handler) updateFee(w http.ResponseWriter, r *http.Request) {
	feeID, ok := h.pathID(w, r, "feeID")
	if !ok {
		return
	}
	input, ok := h.decodeFee(w, r)
	if !ok {
		return
	}
	fee, err := h.service.UpdateFee(r.Context(), shared.ActorID(r.Context()), feeID, *input)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"id":            fee.ID,
		"totalAfterVat": fee.TotalAfterVAT().StringFixed(2),
	})
}

func (h *Handler) removeFee(w http.ResponseWriter, r *http.Request) {
	feeID, ok := h.pathID(w, r, "feeID")
	if !ok {
		return
	}
	if err := h.service.RemoveFee(r.Context(), shared.ActorID(r.Context()), feeID); err != nil {
		h.respondError(w, r, err)
		return
	}
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
	case errors.Is(err, ErrNotFound), errors.Is(err, shared.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", shared.UserSafeMessage(err))
	case errors.Is(err, shared.ErrForbidden):
		httpx.Problem(w, http.StatusForbidden, "Forbidden", shared.UserSafeMessage(err))
	case errors.Is(err, ErrDatesRequired),
		errors.Is(err, ErrDueBeforeFacturation):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrNoProjects),
		errors.Is(err, ErrProjectWithoutFees),
		errors.Is(err, ErrNotEditable),
		errors.Is(err, ErrLastFee),
		errors.Is(err, ErrLastProject),
		errors.Is(err, ErrDraftCreditNote),
		errors.Is(err, ErrAlreadyFinal):
		httpx.Problem(w, http.StatusUnprocessableEntity, "State Conflict", err.Error())
	default:
		h.logger.Error("invoicing request failed", slog.Any("error", err), slog.String("path", r.URL.Path))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
