package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ndewijer/portfolio-sync/internal/api/response"
	"github.com/ndewijer/portfolio-sync/internal/apperrors"
	"github.com/ndewijer/portfolio-sync/internal/service"
)

// SyncHandler triggers valuation syncs outside the schedule.
type SyncHandler struct {
	syncService *service.SyncService
}

// NewSyncHandler creates a new SyncHandler with the provided service dependency.
func NewSyncHandler(syncService *service.SyncService) *SyncHandler {
	return &SyncHandler{
		syncService: syncService,
	}
}

// SyncAll handles POST requests to resync every lot.
// Per-lot failures are reported in the outcomes, not as an error status.
//
// Endpoint: POST /api/sync
// Response: 200 OK with array of SyncOutcome
// Error: 500 Internal Server Error if lots cannot be loaded
func (h *SyncHandler) SyncAll(w http.ResponseWriter, r *http.Request) {
	outcomes, err := h.syncService.SyncAll(r.Context())
	if err != nil {
		response.RespondError(w, http.StatusInternalServerError, apperrors.ErrFailedToSync.Error(), err.Error())
		return
	}

	response.RespondJSON(w, http.StatusOK, outcomes)
}

// SyncLot handles POST requests to resync one lot.
//
// Endpoint: POST /api/lot/{uuid}/sync
// Response: 200 OK with SyncOutcome
// Error: 400 Bad Request if lot ID is invalid (validated by middleware)
// Error: 404 Not Found if lot not found
func (h *SyncHandler) SyncLot(w http.ResponseWriter, r *http.Request) {
	lotID := chi.URLParam(r, "uuid")

	outcome, err := h.syncService.SyncLot(r.Context(), lotID)
	if err != nil {
		respondServiceError(w, err, apperrors.ErrFailedToSync.Error())
		return
	}

	response.RespondJSON(w, http.StatusOK, outcome)
}
