// Package store persists user profiles and credential handles in SQLite.
// Torrent state is deliberately not stored here; it lives in process memory
// and a restart loses in-flight torrents.
package store

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"github.com/karl-chan/google-drive-torrent/internal/identity"
)

type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the SQLite database at the given path
// and applies the schema.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, errors.Wrap(err, "could not create database directory")
	}
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, errors.Wrap(err, "could not open database")
	}
	// SQLite supports a single writer.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id            TEXT PRIMARY KEY,
			display_name  TEXT NOT NULL,
			photo_url     TEXT NOT NULL DEFAULT '',
			access_token  TEXT NOT NULL DEFAULT '',
			refresh_token TEXT NOT NULL DEFAULT '',
			token_expiry  TIMESTAMP,
			created_at    TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at    TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`)
	return errors.Wrap(err, "could not apply schema")
}

// SaveUser upserts a user's profile and credentials after a login.
func (s *Store) SaveUser(ctx context.Context, p identity.Profile, c identity.Credentials) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, display_name, photo_url, access_token, refresh_token, token_expiry)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			display_name  = excluded.display_name,
			photo_url     = excluded.photo_url,
			access_token  = excluded.access_token,
			refresh_token = excluded.refresh_token,
			token_expiry  = excluded.token_expiry,
			updated_at    = CURRENT_TIMESTAMP
	`, p.ID, p.DisplayName, p.PhotoURL, c.AccessToken, c.RefreshToken, c.Expiry)
	return errors.Wrap(err, "could not save user")
}

// User loads a profile by id; sql.ErrNoRows surfaces for unknown users.
func (s *Store) User(ctx context.Context, id string) (identity.Profile, error) {
	var p identity.Profile
	err := s.db.QueryRowContext(ctx,
		`SELECT id, display_name, photo_url FROM users WHERE id = ?`, id,
	).Scan(&p.ID, &p.DisplayName, &p.PhotoURL)
	if err != nil {
		return identity.Profile{}, errors.Wrapf(err, "could not load user %s", id)
	}
	return p, nil
}

// Credentials loads the stored credential handle for a user.
func (s *Store) Credentials(ctx context.Context, id string) (identity.Credentials, error) {
	var c identity.Credentials
	err := s.db.QueryRowContext(ctx,
		`SELECT access_token, refresh_token, token_expiry FROM users WHERE id = ?`, id,
	).Scan(&c.AccessToken, &c.RefreshToken, &c.Expiry)
	if err != nil {
		return identity.Credentials{}, errors.Wrapf(err, "could not load credentials for %s", id)
	}
	return c, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
