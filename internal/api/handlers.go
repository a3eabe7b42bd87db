package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"loanapi/internal/loans"
	"loanapi/internal/models"
	"loanapi/internal/version"
)

// maxRequestBodyBytes bounds the size of a create-loan payload.
const maxRequestBodyBytes = 1 << 20

// Handlers contains HTTP handlers for the loan API
type Handlers struct {
	loanService loans.ServiceInterface
}

// NewHandlers creates a new handlers instance
func NewHandlers(loanService loans.ServiceInterface) *Handlers {
	return &Handlers{
		loanService: loanService,
	}
}

// ListLoans returns every loan
// GET /api/
func (h *Handlers) ListLoans(w http.ResponseWriter, r *http.Request) {
	slog.InfoContext(r.Context(), "Route hit: GET /api/ - Requesting all loans")

	loanList, err := h.loanService.List(r.Context())
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, models.NewListLoansResponse(loanList))
}

// CreateLoan stores the loan in the request body
// POST /api/loans
func (h *Handlers) CreateLoan(w http.ResponseWriter, r *http.Request) {
	slog.InfoContext(r.Context(), "Route hit: POST /api/loans - Creating a new loan")

	var req models.CreateLoanRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	// An empty body is a request with every field missing; the store reports which.
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		slog.WarnContext(r.Context(), "Invalid JSON in loan creation", "error", err)
		h.writeErrorResponse(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON body: %v", err))
		return
	}

	loan, err := h.loanService.Create(r.Context(), &req)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeJSONResponse(w, http.StatusCreated, models.NewCreateLoanResponse(loan))
}

// HealthCheck reports service and store health
// GET /health
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := &models.HealthCheckResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Version:   version.GetInfo().Version,
		Storage:   "ok",
	}

	if err := h.loanService.Health(r.Context()); err != nil {
		slog.WarnContext(r.Context(), "Health check failed", "error", err)
		response.Status = "unhealthy"
		response.Storage = "unavailable"
		response.Message = err.Error()
		h.writeJSONResponse(w, http.StatusServiceUnavailable, response)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, response)
}

// writeJSONResponse writes a JSON response
func (h *Handlers) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	writeJSON(w, statusCode, data)
}

// writeErrorResponse writes a fail envelope
func (h *Handlers) writeErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, models.NewErrorResponse(message))
}

// writeServiceError maps a service failure to its status code and fail envelope
func (h *Handlers) writeServiceError(w http.ResponseWriter, err error) {
	var serviceErr *loans.ServiceError
	if errors.As(err, &serviceErr) {
		h.writeErrorResponse(w, serviceErr.StatusCode, serviceErr.Error())
		return
	}
	h.writeErrorResponse(w, http.StatusBadRequest, err.Error())
}

func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Headers are already written; nothing more can be sent.
		slog.Error("Error encoding JSON response", "error", err)
	}
}
