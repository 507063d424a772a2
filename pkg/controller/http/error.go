package http

import (
	"encoding/json"
	"net/http"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/komainu/pkg/domain/types/apperr"
	"github.com/m-mizutani/komainu/pkg/utils/logging"
	"github.com/m-mizutani/komainu/pkg/utils/safe"
)

type errorResponse struct {
	Error string `json:"error"`
}

// respondError maps error tags to HTTP status codes and writes a JSON body
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		return
	}

	status := apperr.HTTPStatusFromError(err)
	ctxlog.From(r.Context()).Error("request error",
		logging.ErrAttr(err),
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
	)

	message := err.Error()
	if status == http.StatusInternalServerError {
		// Do not leak internals for unexpected failures
		message = "internal server error"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	body, _ := json.Marshal(errorResponse{Error: message})
	safe.Write(r.Context(), w, body)
}

// respondJSON writes a JSON response with the given status code
func respondJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		ctxlog.From(r.Context()).Warn("failed to encode response", logging.ErrAttr(err))
	}
}
