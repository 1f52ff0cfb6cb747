package invoicing

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"

	"github.com/MedGhazal/InvoiceGenerator/internal/shared"
)

func newInvoiceRouter(svc *Service) chi.Router {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := NewHandler(logger, svc, validator.New())

	router := chi.NewRouter()
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := shared.ContextWithActor(r.Context(), &shared.Actor{ID: managerID})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	})
	router.Route("/invoices", handler.MountRoutes)
	return router
}

func TestValidateEmptyInvoiceReturns422(t *testing.T) {
	svc, _ := newTestService()
	router := newInvoiceRouter(svc)

	inv, err := svc.CreateInvoice(context.Background(), managerID, draftInput())
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	target := "/invoices/" + strconv.FormatInt(inv.ID, 10) + "/validate"
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, target, nil))

	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	require.Contains(t, rr.Body.String(), "State Conflict")
}

func TestCreateInvoiceMisorderedDatesReturns400(t *testing.T) {
	svc, _ := newTestService()
	router := newInvoiceRouter(svc)

	body := `{"invoicerId":1,"invoiceeId":3,"baseCurrency":"MAD","dueDate":"2026-03-01","facturationDate":"2026-03-31"}`
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/invoices/", strings.NewReader(body)))

	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Contains(t, rr.Body.String(), "Validation Failed")
}
