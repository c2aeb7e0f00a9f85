// Package db opens the audit database and brings its schema up to date.
// The rest of the module is read-only against the gateway; postgres holds
// only the audit trail and its outbox.
package db

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
)

// OpenAudit connects to the audit database and applies any pending
// migrations before handing the connection out.
func OpenAudit(dsn, migrationsDir string) (*sql.DB, error) {
	conn, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open audit db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping audit db: %w", err)
	}

	if err := goose.Up(conn, migrationsDir); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate audit db: %w", err)
	}

	return conn, nil
}
