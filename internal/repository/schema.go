package repository

// Schema definitions for the CreditX configuration store.
// Compatible with both SQLite and PostgreSQL unless noted.

const schemaWeightsDocuments = `
CREATE TABLE IF NOT EXISTS weights_documents (
    version TEXT PRIMARY KEY,
    body TEXT NOT NULL,
    active INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_weights_documents_active ON weights_documents(active);
CREATE INDEX IF NOT EXISTS idx_weights_documents_created ON weights_documents(created_at);
`

// The audit id is auto-assigned, which SQLite and PostgreSQL spell
// differently, so the table has a variant per driver.

const schemaConfigAuditSQLite = `
CREATE TABLE IF NOT EXISTS config_audit (
    id INTEGER PRIMARY KEY,
    event TEXT NOT NULL,
    version TEXT NOT NULL,
    detail TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_config_audit_event ON config_audit(event);
CREATE INDEX IF NOT EXISTS idx_config_audit_created ON config_audit(created_at);
`

const schemaConfigAuditPostgres = `
CREATE TABLE IF NOT EXISTS config_audit (
    id BIGSERIAL PRIMARY KEY,
    event TEXT NOT NULL,
    version TEXT NOT NULL,
    detail TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_config_audit_event ON config_audit(event);
CREATE INDEX IF NOT EXISTS idx_config_audit_created ON config_audit(created_at);
`

// AllSchemas returns all schema statements for the given driver in order.
func AllSchemas(driver string) []string {
	audit := schemaConfigAuditSQLite
	if driver == "postgres" {
		audit = schemaConfigAuditPostgres
	}
	return []string{
		schemaWeightsDocuments,
		audit,
	}
}
