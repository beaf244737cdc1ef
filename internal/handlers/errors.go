package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/partyhop/backend/internal/logging"
	"github.com/partyhop/backend/internal/parties"
)

type errorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

// respondError writes err using the status its kind maps to. Internal causes
// are logged and never echoed to the caller.
func respondError(ctx context.Context, w http.ResponseWriter, err error) {
	var perr *parties.Error
	if !errors.As(err, &perr) {
		logging.FromContext(ctx).Error("unclassified error", "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, errorResponse{Error: "Something went wrong"})
		return
	}

	if perr.Kind == parties.KindInternal && perr.Err != nil {
		logging.FromContext(ctx).Error("internal error", "error", perr.Err)
	}
	respondJSON(ctx, w, statusForKind(perr.Kind), errorResponse{Error: perr.Message, Fields: perr.Fields})
}

func statusForKind(kind parties.ErrorKind) int {
	switch kind {
	case parties.KindAuthenticationRequired:
		return http.StatusUnauthorized
	case parties.KindAuthorizationDenied:
		return http.StatusForbidden
	case parties.KindNotFound:
		return http.StatusNotFound
	case parties.KindValidationFailed:
		return http.StatusBadRequest
	case parties.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// respondJSON writes payload with status. Client errors are logged at Warn and
// server errors at Error.
func respondJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	logger := logging.FromContext(ctx)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Error("encode response body", "status", status, "error", err)
		return
	}

	switch {
	case status >= http.StatusInternalServerError:
		logger.Error("request failed", "status", status, "response", payload)
	case status >= http.StatusBadRequest:
		logger.Warn("request returned client error", "status", status, "response", payload)
	}
}
