package storage

import (
	"context"
	"fmt"
	"sync"

	"loanapi/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS loans (
	seq           BIGSERIAL PRIMARY KEY,
	id            TEXT NOT NULL UNIQUE,
	name          TEXT NOT NULL,
	amount        DOUBLE PRECISION NOT NULL,
	borrower      TEXT NOT NULL,
	interest_rate DOUBLE PRECISION NOT NULL,
	status        TEXT NOT NULL DEFAULT 'pending',
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// PostgresStorage implements the Storage interface using PostgreSQL through a pgx pool.
//
// The pool connects on demand, so a database that is down at startup does not prevent
// construction. The schema is created on the first operation that reaches the server.
type PostgresStorage struct {
	pool *pgxpool.Pool

	schemaMu    sync.Mutex
	schemaReady bool
}

// NewPostgresStorage creates a new PostgreSQL storage instance.
func NewPostgresStorage(config Config) (*PostgresStorage, error) {
	if config.ConnectionString == "" {
		return nil, fmt.Errorf("connection string is required for PostgreSQL storage")
	}

	poolConfig, err := pgxpool.ParseConfig(config.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}
	if config.MaxOpenConns > 0 {
		poolConfig.MaxConns = int32(config.MaxOpenConns)
	}
	if config.ConnMaxLifetime > 0 {
		poolConfig.MaxConnLifetime = config.ConnMaxLifetime
	}
	poolConfig.ConnConfig.ConnectTimeout = config.connectTimeout()

	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	return &PostgresStorage{pool: pool}, nil
}

func (ps *PostgresStorage) ensureSchema(ctx context.Context) error {
	ps.schemaMu.Lock()
	defer ps.schemaMu.Unlock()

	if ps.schemaReady {
		return nil
	}
	if _, err := ps.pool.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("failed to create loans table: %w", err)
	}
	ps.schemaReady = true
	return nil
}

// Loans returns all loans in insertion order.
func (ps *PostgresStorage) Loans(ctx context.Context) ([]*models.Loan, error) {
	if err := ps.ensureSchema(ctx); err != nil {
		return nil, err
	}

	rows, err := ps.pool.Query(ctx,
		`SELECT id, name, amount, borrower, interest_rate, status, created_at FROM loans ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("failed to query loans: %w", err)
	}

	loans, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*models.Loan, error) {
		var loan models.Loan
		err := row.Scan(&loan.ID, &loan.Name, &loan.Amount, &loan.Borrower,
			&loan.InterestRate, &loan.Status, &loan.CreatedAt)
		loan.CreatedAt = loan.CreatedAt.UTC()
		return &loan, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read loans: %w", err)
	}

	return loans, nil
}

// CreateLoan validates and inserts a new loan.
func (ps *PostgresStorage) CreateLoan(ctx context.Context, req *models.CreateLoanRequest) (*models.Loan, error) {
	loan, err := prepareLoan(req, newLoanID())
	if err != nil {
		return nil, err
	}
	if err := ps.ensureSchema(ctx); err != nil {
		return nil, err
	}

	_, err = ps.pool.Exec(ctx,
		`INSERT INTO loans (id, name, amount, borrower, interest_rate, status, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		loan.ID, loan.Name, loan.Amount, loan.Borrower, loan.InterestRate, loan.Status, loan.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert loan: %w", err)
	}

	return loan, nil
}

// Ping checks that the server is reachable.
func (ps *PostgresStorage) Ping(ctx context.Context) error {
	return ps.pool.Ping(ctx)
}

// Close closes the connection pool.
func (ps *PostgresStorage) Close() error {
	ps.pool.Close()
	return nil
}
