package storage

import (
	"fmt"
	"time"

	"loanapi/internal/models"

	"github.com/google/uuid"
)

// timestampLayout is how SQL backends without a native timestamp type store created_at.
const timestampLayout = time.RFC3339Nano

// formatTimestamp renders t in UTC for a TEXT column.
func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

// parseTimestamp reads a created_at TEXT column back into a UTC time.
func parseTimestamp(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(timestampLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse timestamp %q: %w", s, err)
	}
	return t.UTC(), nil
}

// newLoanID returns an opaque identifier for backends without a native one.
func newLoanID() string {
	return uuid.NewString()
}

// prepareLoan validates req and builds the record to persist under id.
func prepareLoan(req *models.CreateLoanRequest, id string) (*models.Loan, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return req.ToLoan(id, time.Now()), nil
}

// copyLoans returns deep copies so callers cannot mutate backend state.
func copyLoans(loans []*models.Loan) []*models.Loan {
	out := make([]*models.Loan, len(loans))
	for i, l := range loans {
		c := *l
		out[i] = &c
	}
	return out
}
