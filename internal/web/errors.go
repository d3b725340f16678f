package web

// errors.go turns errors into JSON responses.
//
// Every error is:
//   - Logged with the technical detail and request ID
//   - Returned as the catalogue's user message, code, and suggested action
//
// Missing-input errors also carry the list of missing inputs so a client can
// show them all at once.

import (
	"context"
	"errors"
	"net/http"

	"github.com/JonMunkholm/esgmap/internal/core"
	"github.com/JonMunkholm/esgmap/internal/logging"
	"github.com/JonMunkholm/esgmap/internal/reconcile"
	"github.com/JonMunkholm/esgmap/internal/workbook"
)

// ErrorResponse is the JSON body of every error.
type ErrorResponse struct {
	Error   string   `json:"error"`
	Message string   `json:"message"`
	Action  string   `json:"action,omitempty"`
	Code    string   `json:"code"`
	Details []string `json:"details,omitempty"`
}

// respondError logs err and writes its user-facing form.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error, status int) {
	msg := core.MapError(err)

	logging.FromContext(r.Context()).Error("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", msg.Code,
	)

	resp := ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	}

	var missing *core.MissingInputError
	if errors.As(err, &missing) {
		resp.Details = missing.Inputs
	}

	if errors.Is(err, core.ErrTooManyRuns) {
		w.Header().Set("Retry-After", "30")
	}

	writeJSON(w, status, resp)
}

// writeError writes a catalogue response for a request rejected before it
// reached a handler.
func writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	logging.FromContext(r.Context()).Warn("request rejected", "status", status, "reason", err.Error())

	msg := core.MapError(err)
	writeJSON(w, status, ErrorResponse{
		Error:   err.Error(),
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	})
}

// statusForError picks the HTTP status for a failed run.
func statusForError(err error) int {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.As(err, &maxBytes), errors.Is(err, core.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, core.ErrMissingRequiredInput), errors.Is(err, core.ErrNoFile):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrTooManyRuns):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusRequestTimeout
	case errors.Is(err, reconcile.ErrMissingIdentityField),
		errors.Is(err, workbook.ErrUnsupportedFormat),
		errors.Is(err, workbook.ErrHeaderRowMissing),
		errors.Is(err, workbook.ErrSheetNotFound):
		return http.StatusUnprocessableEntity
	case core.IsUserFacing(err):
		// Known but untyped failures, such as a corrupt workbook.
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
