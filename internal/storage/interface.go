package storage

import (
	"context"
	"time"

	"loanapi/internal/models"
)

// Storage defines the interface for loan persistence and retrieval.
// It provides a clean abstraction that can be implemented by different backends
// such as JSON files, relational databases, or a document database.
//
// Backends own identifier assignment: CreateLoan validates the candidate,
// assigns the ID and creation time, and returns the stored record.
type Storage interface {
	// Loans returns every stored loan in creation order
	Loans(ctx context.Context) ([]*models.Loan, error)

	// CreateLoan validates and persists a new loan
	CreateLoan(ctx context.Context, req *models.CreateLoanRequest) (*models.Loan, error)

	// Ping reports whether the backend is reachable
	Ping(ctx context.Context) error

	// Close closes the storage connection and cleans up resources
	Close() error
}

// Config holds configuration for storage backends
type Config struct {
	// Type specifies the storage backend type (json, memory, postgres, ...)
	Type string `json:"type" yaml:"type"`

	// Path is used for file-based storage backends
	Path string `json:"path,omitempty" yaml:"path,omitempty"`

	// ConnectionString is used for database backends, with any password already substituted
	ConnectionString string `json:"-" yaml:"-"`

	// Database names the document database for the mongo backend
	Database string `json:"database,omitempty" yaml:"database,omitempty"`

	// CacheTTL specifies how long the JSON backend trusts its in-memory copy
	CacheTTL string `json:"cache_ttl,omitempty" yaml:"cache_ttl,omitempty"`

	// Connection pool settings for database backends
	MaxOpenConns    int           `json:"max_open_conns,omitempty" yaml:"max_open_conns,omitempty"`
	MaxIdleConns    int           `json:"max_idle_conns,omitempty" yaml:"max_idle_conns,omitempty"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime,omitempty" yaml:"conn_max_lifetime,omitempty"`
	ConnectTimeout  time.Duration `json:"connect_timeout,omitempty" yaml:"connect_timeout,omitempty"`
}

// connectTimeout returns the configured timeout or a 10 second default.
func (c Config) connectTimeout() time.Duration {
	if c.ConnectTimeout > 0 {
		return c.ConnectTimeout
	}
	return 10 * time.Second
}
