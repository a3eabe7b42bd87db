// Package loans implements the loan operations behind the HTTP API: listing every
// loan and creating a new one. Validation and identifier assignment belong to the
// store; the service adds logging and converts failures to ServiceError.
package loans

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"loanapi/internal/models"
	"loanapi/internal/storage"
)

// Service handles loan listing and creation
type Service struct {
	storage storage.Storage
}

// NewService creates a new loan service with the given storage backend
func NewService(storage storage.Storage) *Service {
	return &Service{
		storage: storage,
	}
}

// List returns all loans. A store failure is returned as a *ServiceError.
func (s *Service) List(ctx context.Context) ([]*models.Loan, error) {
	slog.InfoContext(ctx, "getAllLoans: Fetching all loans from database...")

	loans, err := s.storage.Loans(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "getAllLoans FAILED: "+err.Error())
		return nil, newStoreError(err)
	}
	if loans == nil {
		loans = []*models.Loan{}
	}

	slog.InfoContext(ctx, fmt.Sprintf("getAllLoans: Found %d loans successfully", len(loans)))
	return loans, nil
}

// Create stores a new loan. Validation is performed by the store, so an invalid
// candidate and an unreachable store both surface as a *ServiceError.
func (s *Service) Create(ctx context.Context, req *models.CreateLoanRequest) (*models.Loan, error) {
	slog.InfoContext(ctx, "createLoan: Creating new loan with data: "+requestSummary(req))

	loan, err := s.storage.CreateLoan(ctx, req)
	if err != nil {
		slog.ErrorContext(ctx, "createLoan FAILED: "+err.Error())
		return nil, newStoreError(err)
	}

	slog.InfoContext(ctx, "createLoan: Loan created successfully with ID: "+loan.ID)
	return loan, nil
}

// Health pings the store.
func (s *Service) Health(ctx context.Context) error {
	return s.storage.Ping(ctx)
}

func requestSummary(req *models.CreateLoanRequest) string {
	if req == nil {
		return "null"
	}
	b, err := json.Marshal(req)
	if err != nil {
		return err.Error()
	}
	return string(b)
}
