package handlers

import (
	"net/http"

	"github.com/ndewijer/portfolio-sync/internal/api/request"
	"github.com/ndewijer/portfolio-sync/internal/api/response"
	"github.com/ndewijer/portfolio-sync/internal/apperrors"
	"github.com/ndewijer/portfolio-sync/internal/service"
	"github.com/ndewijer/portfolio-sync/internal/validation"
)

// SchemeHandler handles HTTP requests for scheme endpoints.
type SchemeHandler struct {
	schemeService *service.SchemeService
}

// NewSchemeHandler creates a new SchemeHandler with the provided service dependency.
func NewSchemeHandler(schemeService *service.SchemeService) *SchemeHandler {
	return &SchemeHandler{
		schemeService: schemeService,
	}
}

// Schemes handles GET requests to retrieve all schemes.
//
// Endpoint: GET /api/scheme
// Response: 200 OK with array of Scheme
// Error: 500 Internal Server Error if retrieval fails
func (h *SchemeHandler) Schemes(w http.ResponseWriter, r *http.Request) {
	schemes, err := h.schemeService.GetSchemes(r.Context())
	if err != nil {
		response.RespondError(w, http.StatusInternalServerError, apperrors.ErrFailedToRetrieveSchemes.Error(), err.Error())
		return
	}

	response.RespondJSON(w, http.StatusOK, schemes)
}

// CreateScheme handles POST requests to create a scheme.
//
// Endpoint: POST /api/scheme
// Request Body: CreateSchemeRequest
// Response: 201 Created with Scheme
// Error: 400 Bad Request if validation fails or request body is invalid
// Error: 409 Conflict if a scheme with the same fund ID or name and ticker exists
func (h *SchemeHandler) CreateScheme(w http.ResponseWriter, r *http.Request) {
	req, err := parseJSON[request.CreateSchemeRequest](r)
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	if err := validation.ValidateCreateScheme(req); err != nil {
		respondValidation(w, err)
		return
	}

	scheme, err := h.schemeService.CreateScheme(r.Context(), req)
	if err != nil {
		respondServiceError(w, err, "failed to create scheme")
		return
	}

	response.RespondJSON(w, http.StatusCreated, scheme)
}
