package auth

import (
	"net/http"
	"strings"

	"github.com/MedGhazal/InvoiceGenerator/internal/platform/httpx"
	"github.com/MedGhazal/InvoiceGenerator/internal/shared"
)

// Middleware authenticates requests via API key and stores the actor in the
// request context. Keys are read from "Authorization: Bearer <key>" or the
// X-API-Key header.
func Middleware(service *Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := keyFromRequest(r)
			if key == "" {
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "api key required")
				return
			}
			actor, err := service.Authenticate(r.Context(), key)
			if err != nil {
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", shared.UserSafeMessage(shared.ErrUnauthorized))
				return
			}
			next.ServeHTTP(w, r.WithContext(shared.ContextWithActor(r.Context(), actor)))
		})
	}
}

func keyFromRequest(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		if token, ok := strings.CutPrefix(header, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	return strings.TrimSpace(r.Header.Get("X-API-Key"))
}
