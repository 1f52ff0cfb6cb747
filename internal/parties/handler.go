package parties

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/MedGhazal/InvoiceGenerator/internal/platform/httpx"
	"github.com/MedGhazal/InvoiceGenerator/internal/shared"
)

// Handler manages party endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, validate *validator.Validate) *Handler {
	return &Handler{logger: logger, service: service, validate: validate}
}

// MountRoutes registers party routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/invoicers", func(r chi.Router) {
		r.Post("/", h.createInvoicer)
		r.Get("/", h.listInvoicers)
		r.Get("/{id}", h.getInvoicer)
		r.Put("/{id}", h.updateInvoicer)
		r.Get("/{id}/accounts", h.listBankAccounts)
		r.Post("/{id}/accounts", h.addBankAccount)
		r.Delete("/accounts/{accountID}", h.removeBankAccount)
		r.Get("/{id}/invoicees", h.listInvoicees)
	})
	r.Route("/invoicees", func(r chi.Router) {
		r.Post("/", h.createInvoicee)
		r.Get("/{id}", h.getInvoicee)
		r.Put("/{id}", h.updateInvoicee)
		r.Delete("/{id}", h.deleteInvoicee)
		r.Get("/{id}/balances", h.getBalances)
	})
}

type legalInfoJSON struct {
	ICE     string `json:"ice"`
	RC      string `json:"rc"`
	Patente string `json:"patente"`
	CNSS    string `json:"cnss"`
	Fiscal  string `json:"fiscal"`
}

type invoicerRequest struct {
	Name                string         `json:"name" validate:"required,max=30"`
	Address             string         `json:"address" validate:"max=70"`
	Country             string         `json:"country" validate:"required,oneof=MAR FR"`
	Phone               string         `json:"phone"`
	LogoPath            string         `json:"logoPath"`
	BookKeepingCurrency string         `json:"bookKeepingCurrency" validate:"required,min=3,max=5"`
	Legal               *legalInfoJSON `json:"legal"`
}

func (req invoicerRequest) toDomain() Invoicer {
	inv := Invoicer{
		Name:                req.Name,
		Address:             req.Address,
		Country:             req.Country,
		Phone:               req.Phone,
		LogoPath:            req.LogoPath,
		BookKeepingCurrency: req.BookKeepingCurrency,
	}
	if req.Legal != nil {
		inv.Legal = &LegalInfo{
			ICE: req.Legal.ICE, RC: req.Legal.RC, Patente: req.Legal.Patente,
			CNSS: req.Legal.CNSS, Fiscal: req.Legal.Fiscal,
		}
	}
	return inv
}

func (h *Handler) createInvoicer(w http.ResponseWriter, r *http.Request) {
	var req invoicerRequest
	if !h.decode(w, r, &req) {
		return
	}
	created, err := h.service.CreateInvoicer(r.Context(), shared.ActorID(r.Context()), req.toDomain())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) listInvoicers(w http.ResponseWriter, r *http.Request) {
	out, err := h.service.ListInvoicers(r.Context(), shared.ActorID(r.Context()))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"invoicers": out})
}

func (h *Handler) getInvoicer(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	inv, err := h.service.GetInvoicer(r.Context(), shared.ActorID(r.Context()), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

func (h *Handler) updateInvoicer(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	var req invoicerRequest
	if !h.decode(w, r, &req) {
		return
	}
	inv := req.toDomain()
	inv.ID = id
	updated, err := h.service.UpdateInvoicer(r.Context(), shared.ActorID(r.Context()), inv)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, updated)
}

type bankAccountRequest struct {
	BankName string `json:"bankName" validate:"required,max=70"`
	BIC      string `json:"bic"`
	RIB      string `json:"rib"`
	IBAN     string `json:"iban"`
}

func (h *Handler) addBankAccount(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	var req bankAccountRequest
	if !h.decode(w, r, &req) {
		return
	}
	acc, err := h.service.AddBankAccount(r.Context(), shared.ActorID(r.Context()), BankAccount{
		OwnerID:  ownerID,
		BankName: req.BankName,
		BIC:      req.BIC,
		RIB:      req.RIB,
		IBAN:     req.IBAN,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, acc)
}

func (h *Handler) listBankAccounts(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	out, err := h.service.ListBankAccounts(r.Context(), shared.ActorID(r.Context()), ownerID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"accounts": out})
}

func (h *Handler) removeBankAccount(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.pathID(w, r, "accountID")
	if !ok {
		return
	}
	if err := h.service.RemoveBankAccount(r.Context(), shared.ActorID(r.Context()), accountID); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type invoiceeRequest struct {
	InvoicerID        int64  `json:"invoicerId" validate:"required"`
	IsPerson          bool   `json:"isPerson"`
	CIN               string `json:"cin" validate:"max=15"`
	ICE               string `json:"ice" validate:"max=16"`
	Name              string `json:"name" validate:"required,max=30"`
	Address           string `json:"address" validate:"required,max=100"`
	Country           string `json:"country" validate:"required,oneof=MAR FR"`
	BookKeepingNumber int    `json:"bookKeepingNumber" validate:"min=0,max=99999"`
}

func (req invoiceeRequest) toDomain() Invoicee {
	return Invoicee{
		InvoicerID:        req.InvoicerID,
		IsPerson:          req.IsPerson,
		CIN:               req.CIN,
		ICE:               req.ICE,
		Name:              req.Name,
		Address:           req.Address,
		Country:           req.Country,
		BookKeepingNumber: req.BookKeepingNumber,
	}
}

func (h *Handler) createInvoicee(w http.ResponseWriter, r *http.Request) {
	var req invoiceeRequest
	if !h.decode(w, r, &req) {
		return
	}
	created, err := h.service.CreateInvoicee(r.Context(), shared.ActorID(r.Context()), req.toDomain())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) getInvoicee(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	c, err := h.service.GetInvoicee(r.Context(), shared.ActorID(r.Context()), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, c)
}

func (h *Handler) updateInvoicee(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	var req invoiceeRequest
	if !h.decode(w, r, &req) {
		return
	}
	c := req.toDomain()
	c.ID = id
	updated, err := h.service.UpdateInvoicee(r.Context(), shared.ActorID(r.Context()), c)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, updated)
}

func (h *Handler) deleteInvoicee(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.service.DeleteInvoicee(r.Context(), shared.ActorID(r.Context()), id); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listInvoicees(w http.ResponseWriter, r *http.Request) {
	invoicerID, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	out, err := h.service.ListInvoicees(r.Context(), shared.ActorID(r.Context()), invoicerID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"invoicees": out})
}

func (h *Handler) getBalances(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	now := time.Now()
	from := time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(now.Year(), time.December, 31, 0, 0, 0, 0, time.UTC)
	if q := r.URL.Query().Get("from"); q != "" {
		if t, err := time.Parse("2006-01-02", q); err == nil {
			from = t
		}
	}
	if q := r.URL.Query().Get("to"); q != "" {
		if t, err := time.Parse("2006-01-02", q); err == nil {
			to = t
		}
	}
	balances, err := h.service.Balances(r.Context(), shared.ActorID(r.Context()), id, from, to)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	type row struct {
		Currency    string `json:"currency"`
		Owed        string `json:"owed"`
		Paid        string `json:"paid"`
		Outstanding string `json:"outstanding"`
	}
	out := make([]row, 0, len(balances))
	for _, b := range balances {
		out = append(out, row{
			Currency:    b.Currency,
			Owed:        b.Owed.StringFixed(2),
			Paid:        b.Paid.StringFixed(2),
			Outstanding: b.Outstanding.StringFixed(2),
		})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"balances": out})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := httpx.DecodeJSON(r, target); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return false
	}
	if err := h.validate.Struct(target); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return false
	}
	return true
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
	case errors.Is(err, ErrDuplicateICE):
		httpx.Problem(w, http.StatusConflict, "Duplicate", err.Error())
	case errors.Is(err, ErrInvalidName),
		errors.Is(err, ErrInvalidAddress),
		errors.Is(err, ErrInvalidCountry),
		errors.Is(err, ErrInvalidPhone),
		errors.Is(err, ErrInvalidICE),
		errors.Is(err, ErrInvalidLegalInfo),
		errors.Is(err, ErrInvalidBIC),
		errors.Is(err, ErrInvalidRIB),
		errors.Is(err, ErrInvalidIBAN),
		errors.Is(err, ErrInvalidBookKeepingNumber):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error("parties request failed", slog.Any("error", err), slog.String("path", r.URL.Path))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
