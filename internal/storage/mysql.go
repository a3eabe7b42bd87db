package storage

import (
	"context"
	"fmt"
	"time"

	"loanapi/internal/models"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// MySQLStorage implements the Storage interface on MySQL through gorm.
type MySQLStorage struct {
	db *gorm.DB
}

// NewMySQLStorage connects, tunes the pool and migrates the loans table.
func NewMySQLStorage(config Config) (*MySQLStorage, error) {
	if config.ConnectionString == "" {
		return nil, fmt.Errorf("connection string is required for MySQL storage")
	}

	db, err := openGorm(mysql.Open(config.ConnectionString), config)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), config.connectTimeout())
	defer cancel()
	if err := db.WithContext(ctx).AutoMigrate(&models.Loan{}); err != nil {
		closeGorm(db)
		return nil, fmt.Errorf("failed to migrate loans table: %w", err)
	}

	return &MySQLStorage{db: db}, nil
}

// openGorm opens dialector, applies the pool settings and pings the database.
func openGorm(dialector gorm.Dialector, config Config) (*gorm.DB, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Warn),
		SkipDefaultTransaction: true,
		DisableAutomaticPing:   true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access connection pool: %w", err)
	}
	if config.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(config.MaxOpenConns)
	}
	if config.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(config.MaxIdleConns)
	}
	if config.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(config.ConnMaxLifetime)
	}
	sqlDB.SetConnMaxIdleTime(10 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), config.connectTimeout())
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

func closeGorm(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Loans returns all loans ordered by creation time.
func (ms *MySQLStorage) Loans(ctx context.Context) ([]*models.Loan, error) {
	loans := make([]*models.Loan, 0)
	if err := ms.db.WithContext(ctx).Order("created_at ASC").Find(&loans).Error; err != nil {
		return nil, fmt.Errorf("failed to query loans: %w", err)
	}
	for _, l := range loans {
		l.CreatedAt = l.CreatedAt.UTC()
	}
	return loans, nil
}

// CreateLoan validates and inserts a new loan.
func (ms *MySQLStorage) CreateLoan(ctx context.Context, req *models.CreateLoanRequest) (*models.Loan, error) {
	loan, err := prepareLoan(req, newLoanID())
	if err != nil {
		return nil, err
	}

	if err := ms.db.WithContext(ctx).Create(loan).Error; err != nil {
		return nil, fmt.Errorf("failed to insert loan: %w", err)
	}

	return loan, nil
}

// Ping checks the database connection.
func (ms *MySQLStorage) Ping(ctx context.Context) error {
	sqlDB, err := ms.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the underlying connection pool.
func (ms *MySQLStorage) Close() error {
	return closeGorm(ms.db)
}
