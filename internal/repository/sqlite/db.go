package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	_ "modernc.org/sqlite"

	"ansifier-server/internal/apperr"
)

const createArtifactsTable = `
CREATE TABLE artifacts (
	uid TEXT PRIMARY KEY,
	content TEXT NOT NULL,
	format TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	owner TEXT NULL
);
`

const createUsersTable = `
CREATE TABLE users (
	username TEXT PRIMARY KEY,
	password_hash TEXT NOT NULL,
	created_at INTEGER NOT NULL
);
`

// expectedTables is the exact table set of a healthy store, sorted.
var expectedTables = []string{"artifacts", "users"}

// Open opens (or creates) a sqlite database at the given path and ensures directories exist.
func Open(path string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	// single writer; concurrent requests queue on the one connection
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(`PRAGMA foreign_keys = ON;`); err != nil {
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	return db, nil
}

// VerifySchema checks that the store holds exactly the expected tables,
// creating them when the store is empty. Any other shape is schema drift:
// refusing to run beats quietly writing into the wrong tables.
func VerifySchema(ctx context.Context, db *sql.DB) error {
	rows, err := db.QueryContext(ctx, `
SELECT name FROM sqlite_master
WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
ORDER BY name`)
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
		for _, ddl := range []string{createArtifactsTable, createUsersTable} {
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
