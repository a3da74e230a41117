package handler

// RESPONSE HELPERS:
// These functions standardise how we send JSON responses and errors.
//
// CONSISTENT ERROR FORMAT:
// Every error response from this API has the same shape:
//
//	{"error":"not_found","message":"item not found with id 7",
//	 "timestamp":"2024-01-01T12:00:00Z","path":"/items/7"}
//
// The frontend always knows what fields to expect, regardless of whether
// it's a 400, 404, or 500.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/marketplace-api/internal/apperror"
)

// ErrorResponse is the standard error format returned by all API endpoints.
type ErrorResponse struct {
	Error     string    `json:"error"`   // Machine-readable error type (e.g. "not_found")
	Message   string    `json:"message"` // Human-readable description
	Timestamp time.Time `json:"timestamp"`
	Path      string    `json:"path"`
	Reference string    `json:"reference,omitempty"` // Set on 500s; correlates with the server log
}

// writeJSON sends a JSON response with the given status code.
//
// HEADER ORDER MATTERS:
// Headers and status code must be set BEFORE writing the body. Once Write is
// called (Encode does so internally), the headers are sent and any further
// changes are silently ignored.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already sent — we can only log it. Rare: usually
			// means the data has an unencodable type like a channel.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeError maps a domain error to the appropriate HTTP status code and
// sends the standard envelope.
//
// This is where domain errors (from the service layer) get translated to
// HTTP. The service layer returns apperror sentinels; only this function
// knows that ErrNotFound means 404. Different consumers of the services
// could map the same errors to gRPC codes or CLI messages.
//
// STATUS CODE CHOICES:
//   - validation  → 422 (unprocessable entity, not 400: the shape was
//     readable, the values were not)
//   - conflict    → 400 (duplicate username/email; this API's documented
//     contract, even though 409 is the conventional reading)
//   - unauthenticated → 401 with a WWW-Authenticate: Bearer hint
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		status := http.StatusInternalServerError
		errorType := "internal_error"

		switch {
		case errors.Is(err, apperror.ErrValidation):
			status = http.StatusUnprocessableEntity // 422
			errorType = "validation_error"
		case errors.Is(err, apperror.ErrUnauthenticated):
			status = http.StatusUnauthorized // 401
			errorType = "unauthenticated"
			w.Header().Set("WWW-Authenticate", "Bearer")
		case errors.Is(err, apperror.ErrForbidden):
			status = http.StatusForbidden // 403
			errorType = "forbidden"
		case errors.Is(err, apperror.ErrNotFound):
			status = http.StatusNotFound // 404
			errorType = "not_found"
		case errors.Is(err, apperror.ErrConflict):
			status = http.StatusBadRequest // 400, see above
			errorType = "conflict"
		}

		writeJSON(w, status, ErrorResponse{
			Error:     errorType,
			Message:   appErr.Message,
			Timestamp: time.Now().UTC(),
			Path:      r.URL.Path,
		})
		return
	}

	// Unknown error — return a generic 500. NEVER expose internal error
	// details to the client: the raw message might contain SQL or file
	// paths. The reference id ties the response to the logged detail.
	ref := xid.New().String()
	slog.Error("unhandled error",
		slog.String("reference", ref),
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()),
	)
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error:     "internal_error",
		Message:   "An internal error occurred",
		Timestamp: time.Now().UTC(),
		Path:      r.URL.Path,
		Reference: ref,
	})
}
