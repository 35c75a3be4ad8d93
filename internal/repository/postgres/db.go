// Package postgres implements the storage contract against a managed
// PostgreSQL instance through the pgx stdlib driver, so the repositories
// share the same database/sql surface as the embedded engine.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	_ "github.com/jackc/pgx/v5/stdlib"

	"ansifier-server/internal/apperr"
	"ansifier-server/internal/domain"
)

var createArtifactsTable = `
CREATE TABLE artifacts (
	uid TEXT PRIMARY KEY,
	content TEXT NOT NULL,
	format TEXT NOT NULL,
	created_at BIGINT NOT NULL,
	owner VARCHAR(%d) NULL
);
`

var createUsersTable = `
CREATE TABLE users (
	username VARCHAR(%d) PRIMARY KEY,
	password_hash TEXT NOT NULL,
	created_at BIGINT NOT NULL
);
`

var expectedTables = []string{"artifacts", "users"}

// Open connects to the instance described by dsn and verifies the connection.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres dsn is required")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres db: %w", err)
	}
	return db, nil
}

// VerifySchema mirrors the sqlite engine's contract: create the tables in an
// empty database, accept the exact expected set, report drift otherwise.
func VerifySchema(ctx context.Context, db *sql.DB) error {
	rows, err := db.QueryContext(ctx, `
SELECT table_name FROM information_schema.tables
WHERE table_schema = 'public' AND table_type = 'BASE TABLE'
ORDER BY table_name`)
	if err != nil {
		return apperr.Wrap(apperr.KindStorage, err, "inspect schema")
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return apperr.Wrap(apperr.KindStorage, err, "scan table name")
		}
		tables = append(tables, name)
	}
	if err := rows.Err(); err != nil {
		return apperr.Wrap(apperr.KindStorage, err, "inspect schema")
	}

	if len(tables) == 0 {
		ddls := []string{
			fmt.Sprintf(createArtifactsTable, domain.MaxUsernameLen),
			fmt.Sprintf(createUsersTable, domain.MaxUsernameLen),
		}
		for _, ddl := range ddls {
			if _, err := db.ExecContext(ctx, ddl); err != nil {
				return apperr.Wrap(apperr.KindStorage, err, "create schema")
			}
		}
		return nil
	}

	sort.Strings(tables)
	drifted := len(tables) != len(expectedTables)
	if !drifted {
		for i, name := range expectedTables {
			if tables[i] != name {
				drifted = true
				break
			}
		}
	}
	if drifted {
		return apperr.New(apperr.KindStorage, "schema drift: found tables %v, expected %v", tables, expectedTables)
	}
	return nil
}
