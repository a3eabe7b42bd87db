package storage

import (
	"context"
	"sync"

	"loanapi/internal/models"
)

// MemoryStorage implements the Storage interface using in-memory data structures.
// This provider is ideal for development, testing, and scenarios where data
// persistence is not required. It provides fast access but data is lost on restart.
type MemoryStorage struct {
	mu    sync.RWMutex
	loans []*models.Loan
}

// NewMemoryStorage creates a new memory-based storage instance
func NewMemoryStorage(config Config) (*MemoryStorage, error) {
	return &MemoryStorage{
		loans: make([]*models.Loan, 0),
	}, nil
}

// Loans returns all loans in creation order
func (m *MemoryStorage) Loans(ctx context.Context) ([]*models.Loan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	// Return copies to prevent external modification
	return copyLoans(m.loans), nil
}

// CreateLoan validates and stores a new loan under a generated ID
func (m *MemoryStorage) CreateLoan(ctx context.Context, req *models.CreateLoanRequest) (*models.Loan, error) {
	loan, err := prepareLoan(req, newLoanID())
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Store a copy to prevent external modification
	stored := *loan
	m.loans = append(m.loans, &stored)

	return loan, nil
}

// Ping always succeeds
func (m *MemoryStorage) Ping(ctx context.Context) error {
	return nil
}

// Close clears all data
func (m *MemoryStorage) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.loans = nil
	return nil
}
