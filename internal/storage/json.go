package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"loanapi/internal/models"
)

// JSONStorage implements the Storage interface using a JSON file for persistence.
// It provides an in-memory cache for performance and supports concurrent access.
type JSONStorage struct {
	filePath     string
	cacheTTL     time.Duration
	mu           sync.RWMutex
	data         *JSONData
	lastModified time.Time
	cacheExpiry  time.Time
}

// JSONData represents the structure of data stored in JSON format
type JSONData struct {
	Loans       []*models.Loan `json:"loans"`
	LastUpdated time.Time      `json:"last_updated"`
}

// NewJSONStorage creates a new JSON-based storage instance
func NewJSONStorage(config Config) (*JSONStorage, error) {
	if config.Path == "" {
		return nil, fmt.Errorf("path is required for JSON storage")
	}

	cacheTTL := 5 * time.Minute
	if config.CacheTTL != "" {
		if duration, err := time.ParseDuration(config.CacheTTL); err == nil {
			cacheTTL = duration
		}
	}

	storage := &JSONStorage{
		filePath: config.Path,
		cacheTTL: cacheTTL,
	}

	// Initialize with empty data if file doesn't exist
	if err := storage.ensureFileExists(); err != nil {
		return nil, fmt.Errorf("failed to ensure file exists: %w", err)
	}

	// Load initial data
	if err := storage.loadData(); err != nil {
		return nil, fmt.Errorf("failed to load initial data: %w", err)
	}

	return storage, nil
}

// ensureFileExists creates the JSON file with empty data if it doesn't exist
func (j *JSONStorage) ensureFileExists() error {
	if _, err := os.Stat(j.filePath); os.IsNotExist(err) {
		// Create directory if it doesn't exist
		if err := os.MkdirAll(filepath.Dir(j.filePath), 0700); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}

		return j.saveData(&JSONData{Loans: []*models.Loan{}})
	}
	return nil
}

// loadData loads data from the JSON file with caching.
// It uses double-checked locking: a fast read-lock path for cache hits,
// and a write-lock slow path with re-validation to prevent TOCTOU races.
func (j *JSONStorage) loadData() error {
	// Fast path: cache is still valid.
	j.mu.RLock()
	if j.data != nil && time.Now().Before(j.cacheExpiry) {
		j.mu.RUnlock()
		return nil
	}
	j.mu.RUnlock()

	// Slow path: acquire write lock and re-validate before doing any I/O.
	j.mu.Lock()
	defer j.mu.Unlock()

	// Another goroutine may have loaded while we waited for the write lock.
	if j.data != nil && time.Now().Before(j.cacheExpiry) {
		return nil
	}

	info, err := os.Stat(j.filePath)
	if err != nil {
		return fmt.Errorf("failed to stat file: %w", err)
	}

	// If the file hasn't changed, extend the cache and return.
	if j.data != nil && !info.ModTime().After(j.lastModified) {
		j.cacheExpiry = time.Now().Add(j.cacheTTL)
		return nil
	}

	fileData, err := os.ReadFile(j.filePath)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	var data JSONData
	if err := json.Unmarshal(fileData, &data); err != nil {
		return fmt.Errorf("failed to unmarshal JSON: %w", err)
	}
	if data.Loans == nil {
		data.Loans = []*models.Loan{}
	}

	j.data = &data
	j.lastModified = info.ModTime()
	j.cacheExpiry = time.Now().Add(j.cacheTTL)
	return nil
}

// saveData replaces the JSON file atomically via a temporary file and rename.
func (j *JSONStorage) saveData(data *JSONData) error {
	data.LastUpdated = time.Now().UTC()

	fileData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	tmp := j.filePath + ".tmp"
	if err := os.WriteFile(tmp, fileData, 0600); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := os.Rename(tmp, j.filePath); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace file: %w", err)
	}

	if info, err := os.Stat(j.filePath); err == nil {
		j.lastModified = info.ModTime()
	}
	return nil
}

// Loans returns all loans in creation order
func (j *JSONStorage) Loans(ctx context.Context) ([]*models.Loan, error) {
	if err := j.loadData(); err != nil {
		return nil, err
	}

	j.mu.RLock()
	defer j.mu.RUnlock()

	return copyLoans(j.data.Loans), nil
}

// CreateLoan validates a loan, assigns its ID and appends it to the file
func (j *JSONStorage) CreateLoan(ctx context.Context, req *models.CreateLoanRequest) (*models.Loan, error) {
	loan, err := prepareLoan(req, newLoanID())
	if err != nil {
		return nil, err
	}

	if err := j.loadData(); err != nil {
		return nil, err
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	stored := *loan
	j.data.Loans = append(j.data.Loans, &stored)
	if err := j.saveData(j.data); err != nil {
		// Keep the cache consistent with the file.
		j.data.Loans = j.data.Loans[:len(j.data.Loans)-1]
		return nil, err
	}

	return loan, nil
}

// Ping verifies the backing file is still readable
func (j *JSONStorage) Ping(ctx context.Context) error {
	if _, err := os.Stat(j.filePath); err != nil {
		return fmt.Errorf("failed to stat file: %w", err)
	}
	return nil
}

// Close releases the cached data
func (j *JSONStorage) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.data = nil
	return nil
}
