// Package httpx shapes error responses as RFC7807 problem documents.
package httpx

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
)

// ProblemDetail is the error body every handler returns.
type ProblemDetail struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// JSON sends a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// Problem sends an RFC7807 problem details response. The type field is a
// stable identifier derived from the title, e.g. "Allocation Rejected" yields
// "/problems/allocation-rejected"; clients switch on it instead of wording.
func Problem(w http.ResponseWriter, status int, title, detail string) {
	JSON(w, status, ProblemDetail{
		Type:   problemType(title),
		Title:  title,
		Status: status,
		Detail: detail,
	})
}

func problemType(title string) string {
	return "/problems/" + strings.ReplaceAll(strings.ToLower(title), " ", "-")
}

// maxBodyBytes caps request bodies; the largest legitimate payload is an
// invoice replace with a few dozen fees, far below 1 MiB.
const maxBodyBytes = 1 << 20

// DecodeJSON decodes a JSON request body into the target struct.
func DecodeJSON(r *http.Request, target any) error {
	return json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(target)
}
