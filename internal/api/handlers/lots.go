package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ndewijer/portfolio-sync/internal/api/request"
	"github.com/ndewijer/portfolio-sync/internal/api/response"
	"github.com/ndewijer/portfolio-sync/internal/apperrors"
	"github.com/ndewijer/portfolio-sync/internal/service"
	"github.com/ndewijer/portfolio-sync/internal/validation"
)

// LotHandler handles HTTP requests for lot endpoints.
// It serves as the HTTP layer adapter, parsing requests and delegating
// business logic to the lotService.
type LotHandler struct {
	lotService *service.LotService
}

// NewLotHandler creates a new LotHandler with the provided service dependency.
func NewLotHandler(lotService *service.LotService) *LotHandler {
	return &LotHandler{
		lotService: lotService,
	}
}

// Lots handles GET requests to retrieve all lots ordered by start date.
//
// Endpoint: GET /api/lot
// Response: 200 OK with array of Lot
// Error: 500 Internal Server Error if retrieval fails
func (h *LotHandler) Lots(w http.ResponseWriter, r *http.Request) {
	lots, err := h.lotService.GetLots(r.Context())
	if err != nil {
		response.RespondError(w, http.StatusInternalServerError, apperrors.ErrFailedToRetrieveLots.Error(), err.Error())
		return
	}

	response.RespondJSON(w, http.StatusOK, lots)
}

// GetLot handles GET requests to retrieve a single lot.
//
// Endpoint: GET /api/lot/{uuid}
// Response: 200 OK with Lot
// Error: 400 Bad Request if lot ID is invalid (validated by middleware)
// Error: 404 Not Found if lot not found
func (h *LotHandler) GetLot(w http.ResponseWriter, r *http.Request) {
	lotID := chi.URLParam(r, "uuid")

	lot, err := h.lotService.GetLot(r.Context(), lotID)
	if err != nil {
		respondServiceError(w, err, apperrors.ErrFailedToRetrieveLot.Error())
		return
	}

	response.RespondJSON(w, http.StatusOK, lot)
}

// CreateLot handles POST requests to enter a lot manually.
// The lot is valued immediately unless its units are pinned.
//
// Endpoint: POST /api/lot
// Request Body: CreateLotRequest
// Response: 201 Created with Lot
// Error: 400 Bad Request if validation fails or request body is invalid
// Error: 404 Not Found if the scheme does not exist
func (h *LotHandler) CreateLot(w http.ResponseWriter, r *http.Request) {
	req, err := parseJSON[request.CreateLotRequest](r)
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	if err := validation.ValidateCreateLot(req); err != nil {
		respondValidation(w, err)
		return
	}

	lot, err := h.lotService.CreateLot(r.Context(), req)
	if err != nil {
		respondServiceError(w, err, "failed to create lot")
		return
	}

	response.RespondJSON(w, http.StatusCreated, lot)
}

// DeleteLot handles DELETE requests to remove a lot.
//
// Endpoint: DELETE /api/lot/{uuid}
// Response: 204 No Content on successful deletion
// Error: 404 Not Found if lot not found
func (h *LotHandler) DeleteLot(w http.ResponseWriter, r *http.Request) {
	lotID := chi.URLParam(r, "uuid")

	if err := h.lotService.DeleteLot(r.Context(), lotID); err != nil {
		respondServiceError(w, err, "failed to delete lot")
		return
	}

	response.RespondJSON(w, http.StatusNoContent, nil)
}
