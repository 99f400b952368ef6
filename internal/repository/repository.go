// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/opensource-finance/creditx/internal/domain"
)

// SQLRepository implements domain.DocumentStore using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new document store based on configuration.
func New(cfg domain.RepositoryConfig) (domain.DocumentStore, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}

	// Run migrations
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas(r.driver) {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// SaveDocument stores a weights document revision. Re-uploading an existing
// version replaces its body.
func (r *SQLRepository) SaveDocument(ctx context.Context, doc *domain.WeightsDocument) error {
	if doc.Version == "" {
		return fmt.Errorf("%w: version is required", domain.ErrInvalidInput)
	}
	if len(doc.Body) == 0 {
		return fmt.Errorf("%w: document body is required", domain.ErrInvalidInput)
	}

	active := 0
	if doc.Active {
		active = 1
	}

	createdAt := doc.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	query := `
		INSERT INTO weights_documents (version, body, active, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(version) DO UPDATE SET
			body = excluded.body,
			created_at = excluded.created_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		doc.Version, string(doc.Body), active, createdAt,
	)
	return err
}

// GetDocument retrieves a weights document revision by version.
func (r *SQLRepository) GetDocument(ctx context.Context, version string) (*domain.WeightsDocument, error) {
	if version == "" {
		return nil, fmt.Errorf("%w: version is required", domain.ErrInvalidInput)
	}

	query := `
		SELECT version, body, active, created_at
		FROM weights_documents
		WHERE version = ?
	`

	return r.scanDocument(r.db.QueryRowContext(ctx, r.rebind(query), version))
}

// GetActiveDocument retrieves the currently active weights document.
func (r *SQLRepository) GetActiveDocument(ctx context.Context) (*domain.WeightsDocument, error) {
	query := `
		SELECT version, body, active, created_at
		FROM weights_documents
		WHERE active = 1
		ORDER BY created_at DESC
		LIMIT 1
	`

	return r.scanDocument(r.db.QueryRowContext(ctx, query))
}

// ListDocuments retrieves all stored weights document revisions, newest first.
func (r *SQLRepository) ListDocuments(ctx context.Context) ([]*domain.WeightsDocument, error) {
	query := `
		SELECT version, body, active, created_at
		FROM weights_documents
		ORDER BY created_at DESC, version DESC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []*domain.WeightsDocument
	for rows.Next() {
		var doc domain.WeightsDocument
		var body string
		var active int

		if err := rows.Scan(&doc.Version, &body, &active, &doc.CreatedAt); err != nil {
			return nil, err
		}

		doc.Body = []byte(body)
		doc.Active = active == 1
		docs = append(docs, &doc)
	}

	return docs, rows.Err()
}

// ActivateDocument marks one revision active and deactivates the rest.
func (r *SQLRepository) ActivateDocument(ctx context.Context, version string) error {
	if version == "" {
		return fmt.Errorf("%w: version is required", domain.ErrInvalidInput)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `UPDATE weights_documents SET active = 0 WHERE active = 1`); err != nil {
		return err
	}

	result, err := tx.ExecContext(ctx, r.rebind(`UPDATE weights_documents SET active = 1 WHERE version = ?`), version)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrNotFound
	}

	return tx.Commit()
}

// AppendAudit stores one configuration audit entry.
func (r *SQLRepository) AppendAudit(ctx context.Context, entry *domain.ConfigAudit) error {
	if entry.Event == "" {
		return fmt.Errorf("%w: event is required", domain.ErrInvalidInput)
	}

	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	query := `
		INSERT INTO config_audit (event, version, detail, created_at)
		VALUES (?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		entry.Event, entry.Version, entry.Detail, createdAt,
	)
	return err
}

// ListAudit retrieves the most recent audit entries, newest first.
func (r *SQLRepository) ListAudit(ctx context.Context, limit int) ([]*domain.ConfigAudit, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, event, version, detail, created_at
		FROM config_audit
		ORDER BY id DESC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*domain.ConfigAudit
	for rows.Next() {
		var entry domain.ConfigAudit

		if err := rows.Scan(&entry.ID, &entry.Event, &entry.Version, &entry.Detail, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, &entry)
	}

	return entries, rows.Err()
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

func (r *SQLRepository) scanDocument(row *sql.Row) (*domain.WeightsDocument, error) {
	var doc domain.WeightsDocument
	var body string
	var active int

	err := row.Scan(&doc.Version, &body, &active, &doc.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	doc.Body = []byte(body)
	doc.Active = active == 1
	return &doc, nil
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	// Convert ? to $1, $2, etc.
	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}
