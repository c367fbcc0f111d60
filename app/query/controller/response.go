package controller

import (
	"errors"
	"net/http"

	"github.com/canopy-network/tokenscope/pkg/errs"
	"github.com/go-jose/go-jose/v4/json"
	"go.uber.org/zap"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeServiceError maps an error kind to its status. Only validation messages reach the client verbatim.
func (c *Controller) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := statusOf(err)
	if status >= http.StatusInternalServerError {
		c.App.Logger.Error("Request failed",
			zap.String("request_id", w.Header().Get(requestIDHeader)),
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.Error(err))
	}
	writeError(w, status, msg)
}

func statusOf(err error) (int, string) {
	switch {
	case errors.Is(err, errs.ErrValidation):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, errs.ErrNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, errs.ErrIntegrity):
		return http.StatusInternalServerError, "data integrity anomaly"
	case errors.Is(err, errs.ErrUpstream) && errs.IsTimeout(err):
		return http.StatusGatewayTimeout, "upstream timeout"
	case errors.Is(err, errs.ErrUpstream):
		return http.StatusBadGateway, "upstream error"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}
