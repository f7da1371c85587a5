package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/ndewijer/portfolio-sync/internal/api/response"
	"github.com/ndewijer/portfolio-sync/internal/apperrors"
	"github.com/ndewijer/portfolio-sync/internal/validation"
)

// maxBodySize bounds JSON request bodies.
const maxBodySize = 5 << 20

// parseJSON decodes the request body into T.
func parseJSON[T any](r *http.Request) (T, error) {
	var req T
	if r.Body == nil {
		return req, errors.New("request body is empty")
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodySize))
	if err := dec.Decode(&req); err != nil {
		return req, fmt.Errorf("failed to decode request body: %w", err)
	}
	return req, nil
}

// respondValidation writes a 400 with per-field messages when err is a
// validation error, and reports whether it did.
func respondValidation(w http.ResponseWriter, err error) bool {
	var verr *validation.Error
	if !errors.As(err, &verr) {
		return false
	}
	response.RespondError(w, http.StatusBadRequest, "validation failed", verr.Fields)
	return true
}

// respondServiceError maps service errors onto status codes. Errors without a
// mapping become a 500 with the given message.
func respondServiceError(w http.ResponseWriter, err error, message string) {
	switch {
	case errors.Is(err, apperrors.ErrLotNotFound):
		response.RespondError(w, http.StatusNotFound, apperrors.ErrLotNotFound.Error(), err.Error())
	case errors.Is(err, apperrors.ErrSchemeNotFound):
		response.RespondError(w, http.StatusNotFound, apperrors.ErrSchemeNotFound.Error(), err.Error())
	case errors.Is(err, apperrors.ErrNoHistoryAvailable):
		response.RespondError(w, http.StatusNotFound, apperrors.ErrNoHistoryAvailable.Error(), err.Error())
	case errors.Is(err, apperrors.ErrDuplicateEntry):
		response.RespondError(w, http.StatusConflict, apperrors.ErrDuplicateEntry.Error(), err.Error())
	case errors.Is(err, apperrors.ErrUnsupportedFormat):
		response.RespondError(w, http.StatusUnprocessableEntity, apperrors.ErrUnsupportedFormat.Error(), err.Error())
	case errors.Is(err, apperrors.ErrParseFailure):
		response.RespondError(w, http.StatusUnprocessableEntity, apperrors.ErrParseFailure.Error(), err.Error())
	case errors.Is(err, apperrors.ErrUpstreamTimeout):
		response.RespondError(w, http.StatusServiceUnavailable, apperrors.ErrUpstreamTimeout.Error(), err.Error())
	case errors.Is(err, apperrors.ErrQuoteUnavailable):
		response.RespondError(w, http.StatusServiceUnavailable, apperrors.ErrQuoteUnavailable.Error(), err.Error())
	case errors.Is(err, apperrors.ErrInvalidFundID), errors.Is(err, apperrors.ErrMissingTickers):
		response.RespondError(w, http.StatusBadRequest, err.Error(), "")
	default:
		response.RespondError(w, http.StatusInternalServerError, message, err.Error())
	}
}
