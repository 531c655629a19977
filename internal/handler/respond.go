package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"oktel-timekeeper/internal/apperr"
	"oktel-timekeeper/internal/i18n"
)

// ErrorResponse is the body of every failed API call.
type ErrorResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Context map[string]any `json:"context,omitempty"`
}

func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindPolicyViolation, apperr.KindInvalidTransition:
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// errorMessage renders err for a human in the locale carried by ctx.
func errorMessage(ctx context.Context, err error) string {
	if e, ok := apperr.As(err); ok {
		return i18n.T(ctx, "error."+e.Code, e.Context)
	}
	return i18n.T(ctx, "error.internal")
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	e, ok := apperr.As(err)
	if !ok {
		slog.ErrorContext(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeStatus(w, http.StatusInternalServerError, ErrorResponse{
			Code:    "internal",
			Message: i18n.T(r.Context(), "error.internal"),
		})
		return
	}
	status := statusFor(e.Kind)
	if status == http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	writeStatus(w, status, ErrorResponse{
		Code:    e.Code,
		Message: errorMessage(r.Context(), err),
		Context: e.Context,
	})
}

// writeCode answers with a handler-level failure that has no apperr code.
func writeCode(w http.ResponseWriter, r *http.Request, status int, code string) {
	writeStatus(w, status, ErrorResponse{Code: code, Message: i18n.T(r.Context(), "error."+code)})
}

func writeJSON(w http.ResponseWriter, v any) {
	writeStatus(w, http.StatusOK, v)
}

func writeStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

// decode reads an optional JSON body into v. An empty body leaves v untouched.
func decode(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
