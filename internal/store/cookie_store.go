package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/matthieugras/vidctl/internal/logging"
)

// CookieStore persists session cookies per API origin in a SQLite file.
// Only cookies are stored; bearer tokens stay in memory.
type CookieStore struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (or creates) the cookie database at path.
func Open(path string) (*CookieStore, error) {
	if path == "" {
		return nil, errors.New("cookie store: empty path")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("cookie store: mkdir %s: %w", filepath.Dir(path), err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("cookie store: open db: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite: single writer

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("cookie store: init schema: %w", err)
	}
	logging.Debug("Cookie store opened at %s", path)
	return &CookieStore{db: db, now: time.Now}, nil
}

func initSchema(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS cookies (
		origin     TEXT NOT NULL,
		name       TEXT NOT NULL,
		value      TEXT NOT NULL,
		path       TEXT NOT NULL DEFAULT '/',
		expires_at INTEGER,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (origin, name, path)
	)`)
	return err
}

// Load returns the unexpired cookies saved for origin.
func (s *CookieStore) Load(ctx context.Context, origin string) ([]*http.Cookie, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, value, path, expires_at FROM cookies
		 WHERE origin = ? AND (expires_at IS NULL OR expires_at > ?)
		 ORDER BY name, path`,
		origin, s.now().Unix())
	if err != nil {
		return nil, fmt.Errorf("cookie store: load: %w", err)
	}
	defer rows.Close()

	var cookies []*http.Cookie
	for rows.Next() {
		var (
			c       http.Cookie
			expires sql.NullInt64
		)
		if err := rows.Scan(&c.Name, &c.Value, &c.Path, &expires); err != nil {
			return nil, fmt.Errorf("cookie store: scan: %w", err)
		}
		if expires.Valid {
			c.Expires = time.Unix(expires.Int64, 0)
		}
		cookies = append(cookies, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("cookie store: load: %w", err)
	}
	return cookies, nil
}

// Save replaces the cookies stored for origin. Cookies with MaxAge < 0 or an
// Expires in the past are dropped.
func (s *CookieStore) Save(ctx context.Context, origin string, cookies []*http.Cookie) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("cookie store: begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM cookies WHERE origin = ?`, origin); err != nil {
		return fmt.Errorf("cookie store: clear origin: %w", err)
	}

	now := s.now()
	saved := 0
	for _, c := range cookies {
		if c == nil || c.Name == "" || c.MaxAge < 0 {
			continue
		}
		var expires any
		switch {
		case c.MaxAge > 0:
			expires = now.Add(time.Duration(c.MaxAge) * time.Second).Unix()
		case !c.Expires.IsZero():
			if !c.Expires.After(now) {
				continue
			}
			expires = c.Expires.Unix()
		}
		path := c.Path
		if path == "" {
			path = "/"
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO cookies (origin, name, value, path, expires_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			origin, c.Name, c.Value, path, expires, now.UTC().Format(time.RFC3339)); err != nil {
			return fmt.Errorf("cookie store: insert %s: %w", c.Name, err)
		}
		saved++
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("cookie store: commit: %w", err)
	}
	logging.Debug("Saved %d cookies for %s", saved, origin)
	return nil
}

// Clear removes every cookie stored for origin.
func (s *CookieStore) Clear(ctx context.Context, origin string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM cookies WHERE origin = ?`, origin); err != nil {
		return fmt.Errorf("cookie store: clear: %w", err)
	}
	return nil
}

// Close closes the database
func (s *CookieStore) Close() error {
	return s.db.Close()
}
