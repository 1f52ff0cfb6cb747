package auth

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/MedGhazal/InvoiceGenerator/internal/platform/httpx"
	"github.com/MedGhazal/InvoiceGenerator/internal/shared"
)

// Handler manages the authenticated manager's API keys.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers key management routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/keys", h.listKeys)
	r.Post("/keys", h.issueKey)
	r.Delete("/keys/{id}", h.revokeKey)
}

type keyResponse struct {
	ID         int64      `json:"id"`
	Label      string     `json:"label"`
	Prefix     string     `json:"prefix"`
	IsActive   bool       `json:"isActive"`
	CreatedAt  time.Time  `json:"createdAt"`
	LastUsedAt *time.Time `json:"lastUsedAt,omitempty"`
}

func (h *Handler) listKeys(w http.ResponseWriter, r *http.Request) {
	keys, err := h.service.ListKeys(r.Context(), shared.ActorID(r.Context()))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	out := make([]keyResponse, 0, len(keys))
	for _, key := range keys {
		out = append(out, keyResponse{
			ID:         key.ID,
			Label:      key.Label,
			Prefix:     key.Prefix,
			IsActive:   key.IsActive,
			CreatedAt:  key.CreatedAt,
			LastUsedAt: key.LastUsedAt,
		})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"keys": out})
}

func (h *Handler) issueKey(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Label string `json:"label"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", "body must be valid JSON")
		return
	}
	clear, key, err := h.service.IssueKey(r.Context(), shared.ActorID(r.Context()), req.Label)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{
		"id":    key.ID,
		"label": key.Label,
		"key":   clear,
	})
}

func (h *Handler) revokeKey(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Path", "id must be a number")
		return
	}
	if err := h.service.RevokeKey(r.Context(), shared.ActorID(r.Context()), id); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", shared.UserSafeMessage(err))
	case errors.Is(err, shared.ErrForbidden):
		httpx.Problem(w, http.StatusForbidden, "Forbidden", shared.UserSafeMessage(err))
	default:
		h.logger.Error("api key request failed", slog.Any("error", err), slog.String("path", r.URL.Path))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
