package loans

import (
	"errors"
	"net/http"

	"loanapi/internal/models"
	"loanapi/internal/storage"
)

// Error codes carried by ServiceError
const (
	ErrorCodeValidation       = "VALIDATION_ERROR"
	ErrorCodeStorage          = "STORAGE_ERROR"
	ErrorCodeStoreUnavailable = "STORE_UNAVAILABLE"
)

// ServiceError represents errors from the loan service with HTTP context.
// Message is the text returned to the client.
type ServiceError struct {
	Code       string
	Message    string
	StatusCode int
	Err        error
}

func (e *ServiceError) Error() string {
	if e.Message == "" && e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// newStoreError classifies a failure returned by the store. Every store failure is
// reported to the client as a bad request carrying the underlying message.
func newStoreError(err error) *ServiceError {
	code := ErrorCodeStorage
	switch {
	case errors.Is(err, models.ErrValidation):
		code = ErrorCodeValidation
	case errors.Is(err, storage.ErrUnavailable):
		code = ErrorCodeStoreUnavailable
	}
	return &ServiceError{
		Code:       code,
		Message:    err.Error(),
		StatusCode: http.StatusBadRequest,
		Err:        err,
	}
}
