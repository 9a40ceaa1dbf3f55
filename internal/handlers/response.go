// Package handlers exposes the sync core to the form UI over a loopback HTTP
// API and websocket streams.
package handlers

import (
	"encoding/json"
	stderrors "errors"
	"net/http"

	"github.com/prudhvinik1/fieldsync/internal/errors"
	"github.com/prudhvinik1/fieldsync/internal/logging"
	"github.com/prudhvinik1/fieldsync/internal/utils"
)

const maxBodyBytes = 1 << 20

type errorBody struct {
	Code    errors.ErrorCode   `json:"code"`
	Message string             `json:"message"`
	Fields  []utils.FieldError `json:"fields,omitempty"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error("failed to encode response", err)
	}
}

// writeError maps err to a status by its AppError code. Internal failures
// are logged and their detail withheld.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := errors.CodeOf(err)
	status := statusFor(code)

	message := err.Error()
	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		message = appErr.Message
	}
	if status >= http.StatusInternalServerError {
		logging.Error("request failed", err, logging.Fields{"method": r.Method, "path": r.URL.Path})
		if code == errors.ErrInternal {
			message = "internal error"
		}
	}

	writeJSON(w, status, errorResponse{Error: errorBody{Code: code, Message: message}})
}

func writeFieldErrors(w http.ResponseWriter, fields []utils.FieldError) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: errorBody{
		Code:    errors.ErrValidation,
		Message: "invalid fields",
		Fields:  fields,
	}})
}

func statusFor(code errors.ErrorCode) int {
	switch code {
	case errors.ErrValidation:
		return http.StatusBadRequest
	case errors.ErrUnauthorized:
		return http.StatusUnauthorized
	case errors.ErrNotFound:
		return http.StatusNotFound
	case errors.ErrConflict:
		return http.StatusConflict
	case errors.ErrOffline:
		return http.StatusServiceUnavailable
	case errors.ErrSyncFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.Wrap(errors.ErrValidation, "invalid request body", err)
	}
	return nil
}
