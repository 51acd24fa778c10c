package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dmitrijs2005/gophxfer/internal/common"
)

// statusFor maps a domain error to its response status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, common.ErrInvalidIdentifier):
		return http.StatusBadRequest
	case errors.Is(err, common.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, common.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, common.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, common.ErrSizeLimitExceeded):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, common.ErrRejected):
		return http.StatusUnprocessableEntity
	case errors.Is(err, common.ErrRateLimited):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError answers with the status for err. Not-found responses carry no
// body so they reveal nothing about whether an id ever existed.
func (s *Server) writeError(ctx context.Context, w http.ResponseWriter, err error) {
	status := statusFor(err)

	switch status {
	case http.StatusNotFound:
		w.WriteHeader(status)
		return
	case http.StatusInternalServerError:
		s.logger.Error(ctx, "request failed", "error", err)
		writeJSON(w, status, common.ErrorResponse{Error: http.StatusText(status)})
		return
	}

	body := common.ErrorResponse{Error: err.Error()}

	var sizeErr *common.SizeLimitError
	if errors.As(err, &sizeErr) {
		body.MaxSizeBytes = sizeErr.Limit
	}

	writeJSON(w, status, body)
}
