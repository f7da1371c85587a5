package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/ndewijer/portfolio-sync/internal/api/request"
	"github.com/ndewijer/portfolio-sync/internal/api/response"
	"github.com/ndewijer/portfolio-sync/internal/service"
	"github.com/ndewijer/portfolio-sync/internal/validation"
)

// maxStatementSize bounds uploaded statements.
const maxStatementSize = 20 << 20

// ImportHandler handles HTTP requests for statement import endpoints.
// Parsing and confirming are separate requests so the user can review the
// extracted transactions before anything is stored.
type ImportHandler struct {
	importService *service.ImportService
}

// NewImportHandler creates a new ImportHandler with the provided service dependency.
func NewImportHandler(importService *service.ImportService) *ImportHandler {
	return &ImportHandler{
		importService: importService,
	}
}

// Parse handles POST requests carrying a statement document as multipart form data.
// The "file" part holds the document and the optional "password" field unlocks
// protected PDFs and workbooks. Nothing is persisted.
//
// Endpoint: POST /api/import/parse
// Response: 200 OK with array of ParsedScheme
// Error: 400 Bad Request if the form or file part is missing
// Error: 422 Unprocessable Entity if the document is unsupported or unreadable
func (h *ImportHandler) Parse(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxStatementSize)
	if err := r.ParseMultipartForm(maxStatementSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.RespondError(w, http.StatusRequestEntityTooLarge, "statement too large", err.Error())
			return
		}
		response.RespondError(w, http.StatusBadRequest, "invalid multipart form", err.Error())
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, "file is required", err.Error())
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, "failed to read file", err.Error())
		return
	}

	kind := header.Filename
	if kind == "" {
		kind = header.Header.Get("Content-Type")
	}

	schemes, err := h.importService.ParseStatement(r.Context(), data, kind, r.FormValue("password"))
	if err != nil {
		respondServiceError(w, err, "failed to parse statement")
		return
	}

	response.RespondJSON(w, http.StatusOK, schemes)
}

// Confirm handles POST requests persisting reviewed schemes as lots.
// Transactions already imported earlier are skipped.
//
// Endpoint: POST /api/import/confirm
// Request Body: ConfirmImportRequest
// Response: 200 OK with ImportResult
// Error: 400 Bad Request if validation fails or request body is invalid
// Error: 500 Internal Server Error if the import fails; nothing is stored
func (h *ImportHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	req, err := parseJSON[request.ConfirmImportRequest](r)
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	if err := validation.ValidateConfirmImport(req); err != nil {
		respondValidation(w, err)
		return
	}

	result, err := h.importService.ConfirmImport(r.Context(), req.Schemes)
	if err != nil {
		respondServiceError(w, err, "failed to import statement")
		return
	}

	response.RespondJSON(w, http.StatusOK, result)
}
