package domain

import (
	"context"
	"time"
)

// Repository defines the interface for data persistence.
// All methods require tenantID for strict multi-tenancy isolation.
type Repository interface {
	// Scheme rule documents
	SaveSchemeDoc(ctx context.Context, tenantID string, doc *SchemeDoc) error
	GetSchemeDoc(ctx context.Context, tenantID string, schemeID string) (*SchemeDoc, error)
	ListSchemeDocs(ctx context.Context, tenantID string) ([]*SchemeDoc, error)
	DeleteSchemeDoc(ctx context.Context, tenantID string, schemeID string) error

	// Completed checks
	SaveCheck(ctx context.Context, tenantID string, rec *CheckRecord) error
	GetCheck(ctx context.Context, tenantID string, checkID string) (*CheckRecord, error)
	GetChecksByUser(ctx context.Context, tenantID string, userID string, since time.Time) ([]*CheckRecord, error)

	// Stored profiles
	SaveProfile(ctx context.Context, tenantID string, userID string, profile Profile) error
	GetProfile(ctx context.Context, tenantID string, userID string) (Profile, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string

	// SQLite specific
	SQLitePath string

	// PostgreSQL specific
	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}
