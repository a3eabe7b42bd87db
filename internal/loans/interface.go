package loans

import (
	"context"

	"loanapi/internal/models"
)

// ServiceInterface defines the loan operations exposed to HTTP handlers
type ServiceInterface interface {
	// List returns every stored loan
	List(ctx context.Context) ([]*models.Loan, error)

	// Create validates and stores a new loan, returning it with its assigned ID
	Create(ctx context.Context, req *models.CreateLoanRequest) (*models.Loan, error)

	// Health reports whether the backing store is reachable
	Health(ctx context.Context) error
}

// Ensure Service implements ServiceInterface
var _ ServiceInterface = (*Service)(nil)
