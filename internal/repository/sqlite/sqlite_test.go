package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"ansifier-server/internal/apperr"
	"ansifier-server/internal/domain"
	"ansifier-server/internal/repository"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestVerifySchemaCreatesAndAccepts(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	if err := VerifySchema(ctx, db); err != nil {
		t.Fatalf("VerifySchema on empty db: %v", err)
	}
	// second run sees the created tables and accepts them
	if err := VerifySchema(ctx, db); err != nil {
		t.Fatalf("VerifySchema on healthy db: %v", err)
	}
}

func TestVerifySchemaDrift(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	if _, err := db.ExecContext(ctx, `CREATE TABLE leftovers (id INTEGER PRIMARY KEY)`); err != nil {
		t.Fatal(err)
	}

	err := VerifySchema(ctx, db)
	if err == nil {
		t.Fatal("expected schema drift failure")
	}
	if apperr.KindOf(err) != apperr.KindStorage {
		t.Fatalf("kind = %v, want storage", apperr.KindOf(err))
	}
}

func TestArtifactOrdering(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	if err := VerifySchema(ctx, db); err != nil {
		t.Fatal(err)
	}

	repo := NewArtifactRepository()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	uids := []string{"uid-a", "uid-b", "uid-c", "uid-d", "uid-e"}
	for i, uid := range uids {
		err := repo.Insert(ctx, db, &domain.Artifact{
			UID:       uid,
			Content:   "art " + uid,
			Format:    domain.FormatANSIEscaped,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("Insert %s: %v", uid, err)
		}
	}

	artifacts, err := repo.ListRecent(ctx, db, 3)
	if err != nil {
		t.Fatalf("ListRecent: %v", err)
	}
	if len(artifacts) != 3 {
		t.Fatalf("got %d rows, want 3", len(artifacts))
	}
	want := []string{"uid-e", "uid-d", "uid-c"}
	for i, artifact := range artifacts {
		if artifact.UID != want[i] {
			t.Fatalf("row %d = %s, want %s", i, artifact.UID, want[i])
		}
	}
}

func TestArtifactRoundTripValues(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	if err := VerifySchema(ctx, db); err != nil {
		t.Fatal(err)
	}

	repo := NewArtifactRepository()
	owner := "alice"
	created := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	in := &domain.Artifact{
		UID:       "uid-1",
		Content:   "\x1b[38;2;1;2;3m█\x1b[0m\n",
		Format:    domain.FormatANSIEscaped,
		CreatedAt: created,
		Owner:     &owner,
	}
	if err := repo.Insert(ctx, db, in); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	out, err := repo.Get(ctx, db, "uid-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if out.Content != in.Content || out.Format != in.Format {
		t.Fatalf("round trip mutated content/format: %+v", out)
	}
	if !out.CreatedAt.Equal(created) {
		t.Fatalf("created_at = %v, want %v", out.CreatedAt, created)
	}
	if out.Owner == nil || *out.Owner != "alice" {
		t.Fatalf("owner = %v, want alice", out.Owner)
	}

	deleted, err := repo.Delete(ctx, db, "uid-1")
	if err != nil || !deleted {
		t.Fatalf("Delete = %v, %v", deleted, err)
	}
	if _, err := repo.Get(ctx, db, "uid-1"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("Get after delete = %v, want ErrNotFound", err)
	}

	deleted, err = repo.Delete(ctx, db, "uid-1")
	if err != nil {
		t.Fatalf("Delete absent: %v", err)
	}
	if deleted {
		t.Fatal("deleting an absent row must report false")
	}
}

func TestUserDuplicate(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	if err := VerifySchema(ctx, db); err != nil {
		t.Fatal(err)
	}

	repo := NewUserRepository()
	user := &domain.User{Username: "alice", PasswordHash: "hash1", CreatedAt: time.Now().UTC()}
	if err := repo.Insert(ctx, db, user); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	dup := &domain.User{Username: "alice", PasswordHash: "hash2", CreatedAt: time.Now().UTC()}
	err := repo.Insert(ctx, db, dup)
	if !errors.Is(err, repository.ErrDuplicate) {
		t.Fatalf("duplicate insert = %v, want ErrDuplicate", err)
	}

	stored, err := repo.Get(ctx, db, "alice")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if stored.PasswordHash != "hash1" {
		t.Fatalf("hash = %q, duplicate insert mutated the row", stored.PasswordHash)
	}
}
