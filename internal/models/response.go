// Package models - API response envelopes.
//
// Every response carries a top-level "status" of either "success" or "fail".
// Failures carry a human-readable "message"; successes carry "data".
package models

import "time"

const (
	StatusSuccess = "success"
	StatusFail    = "fail"
)

// ListLoansResponse is returned by GET /api/.
type ListLoansResponse struct {
	Status  string    `json:"status"`
	Results int       `json:"results"`
	Data    LoansData `json:"data"`
}

type LoansData struct {
	Loans []*Loan `json:"loans"`
}

// CreateLoanResponse is returned by POST /api/loans.
type CreateLoanResponse struct {
	Status string   `json:"status"`
	Data   LoanData `json:"data"`
}

type LoanData struct {
	Loan *Loan `json:"loan"`
}

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type HealthCheckResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version,omitempty"`
	Storage   string    `json:"storage,omitempty"`
	Message   string    `json:"message,omitempty"`
}

// NewListLoansResponse wraps loans in the success envelope. A nil slice is
// rendered as an empty JSON array.
func NewListLoansResponse(loans []*Loan) *ListLoansResponse {
	if loans == nil {
		loans = []*Loan{}
	}
	return &ListLoansResponse{
		Status:  StatusSuccess,
		Results: len(loans),
		Data:    LoansData{Loans: loans},
	}
}

func NewCreateLoanResponse(loan *Loan) *CreateLoanResponse {
	return &CreateLoanResponse{
		Status: StatusSuccess,
		Data:   LoanData{Loan: loan},
	}
}

func NewErrorResponse(message string) *ErrorResponse {
	return &ErrorResponse{
		Status:  StatusFail,
		Message: message,
	}
}
