package web

// errors.go provides unified error response handling for the web layer.
//
// It ensures all errors are:
//   - Logged with full technical details for debugging (server-side)
//   - Returned to clients as user-friendly messages with action suggestions
//
// The error flow:
//  1. Handler encounters an error
//  2. Calls respondError(w, r, err)
//  3. The status code is derived from the error's type
//  4. Error is mapped via core.MapError to get user-friendly message
//  5. Technical error + context is logged with request ID for correlation

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/JonMunkholm/tenderdesk/internal/core"
	"github.com/JonMunkholm/tenderdesk/internal/logging"
)

// ErrorResponse represents the JSON structure for API error responses.
// Includes both machine-readable (Code) and human-readable (Message, Action) fields.
type ErrorResponse struct {
	Error     string          `json:"error"`
	Message   string          `json:"message"`
	Action    string          `json:"action,omitempty"`
	Code      string          `json:"code"`
	RowErrors []core.RowError `json:"row_errors,omitempty"`
}

// statusFor maps an error to its HTTP status code.
func statusFor(err error) int {
	var tooLarge *core.FileTooLargeError
	var maxBytes *http.MaxBytesError

	switch {
	case errors.Is(err, core.ErrValidation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrConflict):
		return http.StatusConflict
	case errors.As(err, &tooLarge), errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, core.ErrTooManyImports):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, core.ErrIO):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// respondError handles error responses with user-friendly messages.
// It logs the technical error server-side and returns a JSON body carrying
// any row errors.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	userMsg := core.MapError(err)
	logRequestError(r, err, status, userMsg.Code)

	if errors.Is(err, core.ErrTooManyImports) {
		w.Header().Set("Retry-After", "5")
	}

	message := userMsg.Message
	if errors.Is(err, core.ErrConflict) || errors.Is(err, core.ErrNotFound) {
		message = userMsg.Message + ": " + err.Error()
	}
	writeJSON(w, status, ErrorResponse{
		Error:     message,
		Message:   message,
		Action:    userMsg.Action,
		Code:      userMsg.Code,
		RowErrors: core.RowErrors(err),
	})
}

// logRequestError logs the technical error with the request ID. Client
// errors are logged at warn level.
func logRequestError(r *http.Request, err error, status int, code string) {
	log := logging.FromContext(r.Context())
	args := []any{
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", code,
	}
	if status >= http.StatusInternalServerError {
		log.Error("request error", args...)
	} else {
		log.Warn("request error", args...)
	}
}

// writeError writes a JSON error response for a malformed request.
func writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	logging.FromContext(r.Context()).Warn("bad request",
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", message,
	)
	writeJSON(w, status, ErrorResponse{Error: message, Message: message, Code: http.StatusText(status)})
}

// clientIP returns the request's remote IP without the port.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
