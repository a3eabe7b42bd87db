package storage

import (
	"fmt"

	"loanapi/internal/models"
)

// Factory provides a centralized way to create storage instances based on configuration.
// This allows for easy extensibility and provider swapping without code changes.
type Factory struct{}

// NewFactory creates a new storage factory
func NewFactory() *Factory {
	return &Factory{}
}

// Create instantiates a storage provider based on the provided configuration.
// Supported providers:
//   - json: JSON file-based storage (thread-safe with caching)
//   - memory: In-memory storage (for testing/development)
//   - postgres: PostgreSQL database storage
//   - sqlite: SQLite database storage (lightweight database)
//   - mysql: MySQL database storage through gorm
//   - mongo: MongoDB document storage
func (f *Factory) Create(config models.StorageConfig) (Storage, error) {
	storageConfig := Config{
		Type:             config.Type,
		Path:             config.Path,
		ConnectionString: config.Database.ResolvedDSN(),
		Database:         config.Database.Name,
		MaxOpenConns:     config.Database.MaxOpenConns,
		MaxIdleConns:     config.Database.MaxIdleConns,
		ConnMaxLifetime:  config.Database.ConnMaxLifetime,
		ConnectTimeout:   config.Database.ConnectTimeout,
	}

	switch config.Type {
	case models.StorageTypeJSON:
		return created(NewJSONStorage(storageConfig))
	case models.StorageTypeMemory:
		return created(NewMemoryStorage(storageConfig))
	case models.StorageTypePostgres:
		return created(NewPostgresStorage(storageConfig))
	case models.StorageTypeSQLite:
		return created(NewSQLiteStorage(storageConfig))
	case models.StorageTypeMySQL:
		return created(NewMySQLStorage(storageConfig))
	case models.StorageTypeMongo:
		return created(NewMongoStorage(storageConfig))
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", config.Type)
	}
}

// GetSupportedProviders returns a list of all supported storage provider types
func (f *Factory) GetSupportedProviders() []string {
	return []string{
		models.StorageTypeJSON,
		models.StorageTypeMemory,
		models.StorageTypePostgres,
		models.StorageTypeSQLite,
		models.StorageTypeMySQL,
		models.StorageTypeMongo,
	}
}

// ValidateConfig validates that a storage configuration is valid for its type
func (f *Factory) ValidateConfig(config models.StorageConfig) error {
	return config.Validate()
}

// created converts a constructor result to Storage without producing a non-nil
// interface that wraps a nil pointer.
func created[S Storage](s S, err error) (Storage, error) {
	if err != nil {
		return nil, err
	}
	return s, nil
}
