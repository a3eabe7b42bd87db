package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"loanapi/internal/models"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS loans (
	seq           INTEGER PRIMARY KEY AUTOINCREMENT,
	id            TEXT NOT NULL UNIQUE,
	name          TEXT NOT NULL,
	amount        REAL NOT NULL,
	borrower      TEXT NOT NULL,
	interest_rate REAL NOT NULL,
	status        TEXT NOT NULL DEFAULT 'pending',
	created_at    TEXT NOT NULL
)`

// SQLiteStorage implements the Storage interface on an embedded SQLite database
// using the pure-Go modernc driver.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens the database and creates the loans table if needed
func NewSQLiteStorage(config Config) (*SQLiteStorage, error) {
	if config.ConnectionString == "" {
		return nil, fmt.Errorf("connection string is required for SQLite storage")
	}

	db, err := sql.Open("sqlite", config.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Every connection to :memory: is a separate database.
	if strings.Contains(config.ConnectionString, ":memory:") {
		db.SetMaxOpenConns(1)
	} else if config.MaxOpenConns > 0 {
		db.SetMaxOpenConns(config.MaxOpenConns)
	}

	ctx, cancel := context.WithTimeout(context.Background(), config.connectTimeout())
	defer cancel()

	// Test the connection
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create loans table: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

// Loans returns all loans in insertion order
func (ss *SQLiteStorage) Loans(ctx context.Context) ([]*models.Loan, error) {
	rows, err := ss.db.QueryContext(ctx,
		`SELECT id, name, amount, borrower, interest_rate, status, created_at FROM loans ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("failed to query loans: %w", err)
	}
	defer rows.Close()

	loans := make([]*models.Loan, 0)
	for rows.Next() {
		var (
			loan      models.Loan
			createdAt string
		)
		if err := rows.Scan(&loan.ID, &loan.Name, &loan.Amount, &loan.Borrower,
			&loan.InterestRate, &loan.Status, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan loan: %w", err)
		}
		if loan.CreatedAt, err = parseTimestamp(createdAt); err != nil {
			return nil, err
		}
		loans = append(loans, &loan)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate loans: %w", err)
	}

	return loans, nil
}

// CreateLoan validates and inserts a new loan
func (ss *SQLiteStorage) CreateLoan(ctx context.Context, req *models.CreateLoanRequest) (*models.Loan, error) {
	loan, err := prepareLoan(req, newLoanID())
	if err != nil {
		return nil, err
	}

	_, err = ss.db.ExecContext(ctx,
		`INSERT INTO loans (id, name, amount, borrower, interest_rate, status, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		loan.ID, loan.Name, loan.Amount, loan.Borrower, loan.InterestRate, loan.Status, formatTimestamp(loan.CreatedAt))
	if err != nil {
		return nil, fmt.Errorf("failed to insert loan: %w", err)
	}

	return loan, nil
}

// Ping checks the database connection
func (ss *SQLiteStorage) Ping(ctx context.Context) error {
	return ss.db.PingContext(ctx)
}

// Close closes the storage connection
func (ss *SQLiteStorage) Close() error {
	return ss.db.Close()
}
