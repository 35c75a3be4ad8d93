package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"ansifier-server/internal/domain"
	"ansifier-server/internal/repository"
)

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func TestArtifactInsert(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewArtifactRepository()

	created := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	q := `(?s)^\s*INSERT\s+INTO\s+artifacts\s*\(uid,\s*content,\s*format,\s*created_at,\s*owner\)\s*VALUES\s*\(\$1,\s*\$2,\s*\$3,\s*\$4,\s*\$5\)\s*$`
	mock.ExpectExec(q).
		WithArgs("uid-1", "art", "ansi-escaped", created.Unix(), nil).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Insert(context.Background(), db, &domain.Artifact{
		UID:       "uid-1",
		Content:   "art",
		Format:    domain.FormatANSIEscaped,
		CreatedAt: created,
	})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestArtifactGetNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewArtifactRepository()

	mock.ExpectQuery(`(?s)SELECT\s+uid,\s*content,\s*format,\s*created_at,\s*owner\s+FROM\s+artifacts`).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Get(context.Background(), db, "missing")
	if !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("Get = %v, want ErrNotFound", err)
	}
}

func TestArtifactGetFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewArtifactRepository()

	created := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"uid", "content", "format", "created_at", "owner"}).
		AddRow("uid-1", "art", "html/css", created.Unix(), "alice")
	mock.ExpectQuery(`(?s)SELECT\s+uid,\s*content,\s*format,\s*created_at,\s*owner\s+FROM\s+artifacts`).
		WithArgs("uid-1").
		WillReturnRows(rows)

	artifact, err := repo.Get(context.Background(), db, "uid-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if artifact.Format != domain.FormatHTMLCSS {
		t.Fatalf("format = %q", artifact.Format)
	}
	if !artifact.CreatedAt.Equal(created) {
		t.Fatalf("created_at = %v, want %v", artifact.CreatedAt, created)
	}
	if artifact.Owner == nil || *artifact.Owner != "alice" {
		t.Fatalf("owner = %v", artifact.Owner)
	}
}

func TestArtifactDeleteReportsAffected(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewArtifactRepository()

	mock.ExpectExec(`(?s)DELETE\s+FROM\s+artifacts\s+WHERE\s+uid\s*=\s*\$1`).
		WithArgs("uid-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	deleted, err := repo.Delete(context.Background(), db, "uid-1")
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if deleted {
		t.Fatal("zero affected rows must report false")
	}
}

func TestUserInsertDuplicate(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository()

	mock.ExpectExec(`(?s)INSERT\s+INTO\s+users`).
		WithArgs("alice", "hash", sqlmock.AnyArg()).
		WillReturnError(errors.New(`ERROR: duplicate key value violates unique constraint "users_pkey" (SQLSTATE 23505)`))

	err := repo.Insert(context.Background(), db, &domain.User{
		Username:     "alice",
		PasswordHash: "hash",
		CreatedAt:    time.Now().UTC(),
	})
	if !errors.Is(err, repository.ErrDuplicate) {
		t.Fatalf("Insert = %v, want ErrDuplicate", err)
	}
}

func TestUserDelete(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository()

	mock.ExpectExec(`(?s)DELETE\s+FROM\s+users\s+WHERE\s+username\s*=\s*\$1`).
		WithArgs("alice").
		WillReturnResult(sqlmock.NewResult(0, 1))

	deleted, err := repo.Delete(context.Background(), db, "alice")
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if !deleted {
		t.Fatal("one affected row must report true")
	}
}

func TestVerifySchemaDrift(t *testing.T) {
	db, mock := newMockDB(t)

	rows := sqlmock.NewRows([]string{"table_name"}).
		AddRow("artifacts").
		AddRow("sessions").
		AddRow("users")
	mock.ExpectQuery(`(?s)SELECT\s+table_name\s+FROM\s+information_schema\.tables`).
		WillReturnRows(rows)

	if err := VerifySchema(context.Background(), db); err == nil {
		t.Fatal("expected schema drift failure")
	}
}

func TestVerifySchemaCreatesWhenEmpty(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectQuery(`(?s)SELECT\s+table_name\s+FROM\s+information_schema\.tables`).
		WillReturnRows(sqlmock.NewRows([]string{"table_name"}))
	mock.ExpectExec(`(?s)CREATE\s+TABLE\s+artifacts`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`(?s)CREATE\s+TABLE\s+users`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := VerifySchema(context.Background(), db); err != nil {
		t.Fatalf("VerifySchema: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}
