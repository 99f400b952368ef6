// Package domain defines the core interfaces and types for CreditX.
package domain

import (
	"context"
	"time"
)

// DocumentStore persists versioned weights documents and the configuration
// audit trail. It never stores scoring outcomes.
type DocumentStore interface {
	// Weights document operations
	SaveDocument(ctx context.Context, doc *WeightsDocument) error
	GetDocument(ctx context.Context, version string) (*WeightsDocument, error)
	GetActiveDocument(ctx context.Context) (*WeightsDocument, error)
	ListDocuments(ctx context.Context) ([]*WeightsDocument, error)
	ActivateDocument(ctx context.Context, version string) error

	// Configuration audit trail
	AppendAudit(ctx context.Context, entry *ConfigAudit) error
	ListAudit(ctx context.Context, limit int) ([]*ConfigAudit, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// WeightsDocument is one stored revision of the weights configuration.
// Body keeps the raw uploaded bytes (YAML or JSON) so a revision can be
// re-parsed byte-for-byte later.
type WeightsDocument struct {
	Version   string    `json:"version"`
	Body      []byte    `json:"-"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// ConfigAudit is one entry in the configuration audit trail.
type ConfigAudit struct {
	ID        int64     `json:"id"`
	Event     string    `json:"event"`
	Version   string    `json:"version"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Audit event names.
const (
	AuditLoaded       = "loaded"
	AuditReloaded     = "reloaded"
	AuditReloadFailed = "reload_failed"
	AuditUploaded     = "uploaded"
	AuditActivated    = "activated"
)

// RepositoryConfig holds configuration for document store initialization.
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
