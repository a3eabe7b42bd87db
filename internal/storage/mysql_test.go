package storage

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
)

func newMockMySQLStorage(t *testing.T) (*MySQLStorage, sqlmock.Sqlmock) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)

	mock.ExpectPing()

	dial := mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	})
	db, err := openGorm(dial, Config{MaxOpenConns: 5, MaxIdleConns: 2, ConnMaxLifetime: time.Minute})
	require.NoError(t, err)

	t.Cleanup(func() { sqlDB.Close() })
	return &MySQLStorage{db: db}, mock
}

func TestOpenGorm_PingFails(t *testing.T) {
	sqlDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer sqlDB.Close()

	mock.ExpectPing().WillReturnError(errors.New("no ping"))

	dial := mysql.New(mysql.Config{Conn: sqlDB, SkipInitializeWithVersion: true})
	_, err = openGorm(dial, Config{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to ping database")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLStorage_Loans(t *testing.T) {
	s, mock := newMockMySQLStorage(t)
	created := time.Date(2024, 2, 13, 18, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{"id", "name", "amount", "borrower", "interest_rate", "status", "created_at"}).
		AddRow("a1", "Home", 250000.0, "John Doe", 4.5, "pending", created).
		AddRow("a2", "Car", 12000.0, "Jane Roe", 7.0, "approved", created.Add(time.Minute))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `loans` ORDER BY created_at ASC")).WillReturnRows(rows)

	loans, err := s.Loans(context.Background())
	require.NoError(t, err)
	require.Len(t, loans, 2)
	assert.Equal(t, "a1", loans[0].ID)
	assert.Equal(t, "John Doe", loans[0].Borrower)
	assert.Equal(t, 4.5, loans[0].InterestRate)
	assert.Equal(t, "approved", loans[1].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLStorage_LoansQueryError(t *testing.T) {
	s, mock := newMockMySQLStorage(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `loans`")).WillReturnError(errors.New("connection reset"))

	_, err := s.Loans(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestMySQLStorage_CreateLoan(t *testing.T) {
	s, mock := newMockMySQLStorage(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `loans`")).
		WithArgs(sqlmock.AnyArg(), "Home", 250000.0, "John Doe", 4.5, "pending", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	loan, err := s.CreateLoan(context.Background(), johnDoeRequest())
	require.NoError(t, err)
	assert.NotEmpty(t, loan.ID)
	assert.Equal(t, "pending", loan.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLStorage_CreateLoanValidation(t *testing.T) {
	s, mock := newMockMySQLStorage(t)

	req := johnDoeRequest()
	req.Amount = nil

	_, err := s.CreateLoan(context.Background(), req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "amount is required")
	// Nothing reached the database.
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLStorage_Ping(t *testing.T) {
	s, mock := newMockMySQLStorage(t)
	mock.ExpectPing()

	assert.NoError(t, s.Ping(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNewMySQLStorage_RequiresConnectionString(t *testing.T) {
	_, err := NewMySQLStorage(Config{})
	assert.Error(t, err)
}
