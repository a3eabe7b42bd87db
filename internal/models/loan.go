// Package models - Loan records and creation payloads.
//
// A Loan is created once and then only read; there is no update or delete path.
// Identifiers are assigned by the storage backend, never by the caller.
package models

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
)

// LoanStatusPending is applied when a loan is created without a status.
const LoanStatusPending = "pending"

// ErrValidation is wrapped by every loan validation failure.
var ErrValidation = errors.New("loan validation failed")

// Loan is a persisted loan record.
type Loan struct {
	ID           string    `json:"id" gorm:"column:id;primaryKey;size:64"`
	Name         string    `json:"name" gorm:"column:name;not null"`
	Amount       float64   `json:"amount" gorm:"column:amount;not null"`
	Borrower     string    `json:"borrower" gorm:"column:borrower;not null"`
	InterestRate float64   `json:"interestRate" gorm:"column:interest_rate;not null"`
	Status       string    `json:"status" gorm:"column:status;not null;default:pending"`
	CreatedAt    time.Time `json:"createdAt" gorm:"column:created_at"`
}

// TableName binds Loan to the loans table for gorm.
func (Loan) TableName() string { return "loans" }

// CreateLoanRequest is the candidate record accepted by the create operation.
// Numeric fields are pointers so that an absent value is distinguishable from zero.
// There is no ID field: any identifier in the payload is dropped during decoding.
type CreateLoanRequest struct {
	Name         string   `json:"name" validate:"required"`
	Amount       *float64 `json:"amount" validate:"required"`
	Borrower     string   `json:"borrower" validate:"required"`
	InterestRate *float64 `json:"interestRate" validate:"required"`
	Status       string   `json:"status,omitempty"`
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func loanValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		// Report JSON field names so messages match the request payload.
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// Validate checks that every required field is present and non-empty.
func (r *CreateLoanRequest) Validate() error {
	if r == nil {
		return fmt.Errorf("%w: request body is required", ErrValidation)
	}

	err := loanValidator().Struct(r)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s is %s", fe.Field(), fe.Tag()))
	}
	return fmt.Errorf("%w: %s", ErrValidation, strings.Join(msgs, ", "))
}

// ToLoan builds the record a store persists, with the store-assigned id and creation time.
// It must only be called after Validate succeeds.
func (r *CreateLoanRequest) ToLoan(id string, createdAt time.Time) *Loan {
	status := strings.TrimSpace(r.Status)
	if status == "" {
		status = LoanStatusPending
	}
	return &Loan{
		ID:           id,
		Name:         r.Name,
		Amount:       *r.Amount,
		Borrower:     r.Borrower,
		InterestRate: *r.InterestRate,
		Status:       status,
		CreatedAt:    createdAt.UTC(),
	}
}
