package storage

import (
	"context"
	"fmt"

	"loanapi/internal/models"
)

// UnavailableStorage stands in for a backend whose construction failed. The service keeps
// serving and every store operation reports the original failure.
type UnavailableStorage struct {
	cause error
}

// NewUnavailableStorage returns a store whose operations all fail with cause.
func NewUnavailableStorage(cause error) *UnavailableStorage {
	return &UnavailableStorage{cause: cause}
}

func (u *UnavailableStorage) err() error {
	return fmt.Errorf("%w: %v", ErrUnavailable, u.cause)
}

func (u *UnavailableStorage) Loans(ctx context.Context) ([]*models.Loan, error) {
	return nil, u.err()
}

func (u *UnavailableStorage) CreateLoan(ctx context.Context, req *models.CreateLoanRequest) (*models.Loan, error) {
	return nil, u.err()
}

func (u *UnavailableStorage) Ping(ctx context.Context) error {
	return u.err()
}

func (u *UnavailableStorage) Close() error {
	return nil
}
