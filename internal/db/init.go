// Package db opens the PostgreSQL backend and seeds the record stores.
package db

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
    username TEXT PRIMARY KEY,
    password TEXT NOT NULL,
    role TEXT NOT NULL,
    company_id TEXT NOT NULL,
    updated_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS users_company_role_idx ON users (company_id, role);

CREATE TABLE IF NOT EXISTS certificates (
    id UUID PRIMARY KEY,
    num_cert INTEGER NOT NULL,
    serial TEXT NOT NULL,
    upload_date TIMESTAMPTZ NOT NULL,
    result TEXT NOT NULL,
    company_id TEXT NOT NULL,
    assigned_usernames TEXT[] NOT NULL DEFAULT '{}',
    report_url TEXT NOT NULL DEFAULT '#',
    format_url TEXT NOT NULL DEFAULT '#',
    certificate_url TEXT NOT NULL DEFAULT '#',
    UNIQUE (company_id, num_cert)
);

CREATE INDEX IF NOT EXISTS certificates_serial_idx ON certificates (serial);

CREATE TABLE IF NOT EXISTS config (
    key TEXT PRIMARY KEY,
    report TEXT NOT NULL DEFAULT '',
    format TEXT NOT NULL DEFAULT '',
    certificate TEXT NOT NULL DEFAULT '',
    updated_at TIMESTAMPTZ NOT NULL
);
`

// InitPostgres opens dsn, checks the connection and creates the schema.
func InitPostgres(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return db, nil
}
