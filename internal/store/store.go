// Package store assembles the gallery capability surface on top of one of
// the interchangeable storage engines. A Session exposes the same static
// interface regardless of which engine backs it; record-kind logic lives in
// the repository packages the session delegates to.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"ansifier-server/internal/apperr"
	"ansifier-server/internal/config"
	"ansifier-server/internal/dbx"
	"ansifier-server/internal/domain"
	"ansifier-server/internal/repository"
	"ansifier-server/internal/repository/postgres"
	"ansifier-server/internal/repository/sqlite"
)

// Gallery is the capability surface the pipeline and HTTP layers depend on.
// Identical across engines: that is the portability contract.
type Gallery interface {
	InsertArtifact(ctx context.Context, content string, format domain.ArtifactFormat, owner *string) (string, error)
	GetArtifact(ctx context.Context, uid string) (*domain.Artifact, error)
	ListRecentArtifacts(ctx context.Context, n int) ([]domain.Artifact, error)
	ListArtifactsByOwner(ctx context.Context, owner string, n int) ([]domain.Artifact, error)
	DeleteArtifact(ctx context.Context, uid string) error

	CreateUser(ctx context.Context, username, password string) error
	Login(ctx context.Context, username, password string) (bool, error)
	DeleteUser(ctx context.Context, username string) (bool, error)

	Close() error
}

type sessionState int

const (
	stateUninitialized sessionState = iota
	stateSchemaVerified
	stateReady
	stateClosed
)

// Session binds the repositories to one live engine connection. It is not
// safe for concurrent mutation from multiple requests; create one per unit of
// work or guard it with the engine's own serialization (sqlite runs a single
// connection).
type Session struct {
	db        *sql.DB
	artifacts repository.ArtifactRepository
	users     repository.UserRepository
	state     sessionState
}

// Open selects the engine named by cfg, verifies the schema synchronously,
// and returns a Ready session. Schema drift surfaces here, before any caller
// can issue an operation.
func Open(ctx context.Context, cfg config.Config) (*Session, error) {
	s := &Session{state: stateUninitialized}

	switch cfg.Database.Engine {
	case "sqlite":
		db, err := sqlite.Open(cfg.Database.SqlitePath)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindStorage, err, "open sqlite engine")
		}
		if err := sqlite.VerifySchema(ctx, db); err != nil {
			db.Close()
			return nil, err
		}
		s.state = stateSchemaVerified
		s.db = db
		s.artifacts = sqlite.NewArtifactRepository()
		s.users = sqlite.NewUserRepository()
	case "postgres":
		db, err := postgres.Open(ctx, cfg.Database.PostgresDSN)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindStorage, err, "open postgres engine")
		}
		if err := postgres.VerifySchema(ctx, db); err != nil {
			db.Close()
			return nil, err
		}
		s.state = stateSchemaVerified
		s.db = db
		s.artifacts = postgres.NewArtifactRepository()
		s.users = postgres.NewUserRepository()
	default:
		return nil, apperr.New(apperr.KindStorage, "unknown storage engine %q", cfg.Database.Engine)
	}

	s.state = stateReady
	return s, nil
}

func (s *Session) ready() error {
	if s.state != stateReady {
		return apperr.New(apperr.KindStorage, "storage session is not ready")
	}
	return nil
}

func (s *Session) InsertArtifact(ctx context.Context, content string, format domain.ArtifactFormat, owner *string) (string, error) {
	if err := s.ready(); err != nil {
		return "", err
	}
	if !format.Valid() {
		return "", apperr.New(apperr.KindClientInput, "unknown artifact format %q", format)
	}

	artifact := &domain.Artifact{
		UID:       uuid.NewString(),
		Content:   content,
		Format:    format,
		CreatedAt: time.Now().UTC(),
		Owner:     owner,
	}

	err := dbx.InTx(ctx, s.db, func(ctx context.Context, tx dbx.Handle) error {
		return s.artifacts.Insert(ctx, tx, artifact)
	})
	if err != nil {
		return "", apperr.Wrap(apperr.KindStorage, err, "insert artifact")
	}
	return artifact.UID, nil
}

func (s *Session) GetArtifact(ctx context.Context, uid string) (*domain.Artifact, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	artifact, err := s.artifacts.Get(ctx, s.db, uid)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.New(apperr.KindNotFound, "artifact %s not found", uid)
		}
		return nil, apperr.Wrap(apperr.KindStorage, err, "get artifact")
	}
	return artifact, nil
}

func (s *Session) ListRecentArtifacts(ctx context.Context, n int) ([]domain.Artifact, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if n <= 0 {
		return nil, nil
	}
	artifacts, err := s.artifacts.ListRecent(ctx, s.db, n)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStorage, err, "list recent artifacts")
	}
	return artifacts, nil
}

func (s *Session) ListArtifactsByOwner(ctx context.Context, owner string, n int) ([]domain.Artifact, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if n <= 0 {
		return nil, nil
	}
	artifacts, err := s.artifacts.ListByOwner(ctx, s.db, owner, n)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStorage, err, "list artifacts by owner")
	}
	return artifacts, nil
}

// DeleteArtifact removes the row when present; deleting an absent uid is a
// no-op, not an error.
func (s *Session) DeleteArtifact(ctx context.Context, uid string) error {
	if err := s.ready(); err != nil {
		return err
	}
	err := dbx.InTx(ctx, s.db, func(ctx context.Context, tx dbx.Handle) error {
		_, err := s.artifacts.Delete(ctx, tx, uid)
		return err
	})
	if err != nil {
		return apperr.Wrap(apperr.KindStorage, err, "delete artifact")
	}
	return nil
}

func (s *Session) CreateUser(ctx context.Context, username, password string) error {
	if err := s.ready(); err != nil {
		return err
	}
	username = strings.TrimSpace(username)
	if username == "" {
		return apperr.New(apperr.KindClientInput, "username is required")
	}
	if len(username) > domain.MaxUsernameLen {
		return apperr.New(apperr.KindClientInput, "username must not exceed %d characters", domain.MaxUsernameLen)
	}
	if password == "" {
		return apperr.New(apperr.KindClientInput, "password is required")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return apperr.Wrap(apperr.KindStorage, err, "hash password")
	}

	user := &domain.User{
		Username:     username,
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UTC(),
	}

	err = dbx.InTx(ctx, s.db, func(ctx context.Context, tx dbx.Handle) error {
		return s.users.Insert(ctx, tx, user)
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return apperr.New(apperr.KindClientInput, "username %q is taken", username)
		}
		return apperr.Wrap(apperr.KindStorage, err, "create user")
	}
	return nil
}

// Login reports whether the credentials match. A missing user and a wrong
// password are indistinguishable to the caller.
func (s *Session) Login(ctx context.Context, username, password string) (bool, error) {
	if err := s.ready(); err != nil {
		return false, err
	}
	user, err := s.users.Get(ctx, s.db, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, nil
		}
		return false, apperr.Wrap(apperr.KindStorage, err, "look up user")
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return false, nil
	}
	return true, nil
}

func (s *Session) DeleteUser(ctx context.Context, username string) (bool, error) {
	if err := s.ready(); err != nil {
		return false, err
	}
	var deleted bool
	err := dbx.InTx(ctx, s.db, func(ctx context.Context, tx dbx.Handle) error {
		var err error
		deleted, err = s.users.Delete(ctx, tx, username)
		return err
	})
	if err != nil {
		return false, apperr.Wrap(apperr.KindStorage, err, "delete user")
	}
	return deleted, nil
}

func (s *Session) Close() error {
	if s.state == stateClosed {
		return nil
	}
	s.state = stateClosed
	if s.db == nil {
		return nil
	}
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close storage session: %w", err)
	}
	return nil
}
