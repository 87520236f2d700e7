// Package archive persists raw fetched pages in a local SQLite database so a
// fetch can be replayed later without touching the origin server.
//
// Pages are keyed by request signature. Recording the same signature twice
// replaces the body, which keeps re-runs of the same window idempotent
package archive

import (
	"context"
	"database/sql"
	"errors"
	"time"

	perr "testharvest/internal/platform/errors"
	"testharvest/internal/platform/logger"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// Store is a SQLite-backed page archive. Implements connector.PageArchive
type Store struct {
	db  *sqlx.DB
	log logger.Logger
}

// Open opens (or creates) the archive database at path, enables WAL mode and
// applies pending schema migrations
func Open(path string) (*Store, error) {
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeDB, "archive open %s failed", path)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, perr.Wrapf(err, perr.ErrorCodeDB, "archive enable WAL failed")
	}

	s := &Store{db: db, log: *logger.Named("archive")}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database
func (s *Store) Close() error {
	return perr.WrapIf(s.db.Close(), perr.ErrorCodeDB, "archive close failed")
}

func (s *Store) migrate() error {
	current := 0

	var tables int
	err := s.db.Get(&tables,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'")
	if err != nil {
		return perr.Wrapf(err, perr.ErrorCodeDB, "archive schema_version probe failed")
	}
	if tables > 0 {
		if err := s.db.Get(&current, "SELECT COALESCE(MAX(version), 0) FROM schema_version"); err != nil {
			return perr.Wrapf(err, perr.ErrorCodeDB, "archive schema version read failed")
		}
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return perr.Wrapf(err, perr.ErrorCodeDB, "archive migration v%d failed", m.version)
		}
		s.log.Debug().Int("version", m.version).Msg("archive migration applied")
	}
	return nil
}

// Record stores a raw page body under sig, replacing any previous body
func (s *Store) Record(ctx context.Context, sig, url, params string, body []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO pages (signature, url, params, body, stored_at)
		VALUES (?, ?, ?, ?, ?)`,
		sig, url, params, body, time.Now().UTC(),
	)
	return perr.WrapIf(err, perr.ErrorCodeDB, "archive record page failed")
}

// Retrieve returns the body recorded under sig. A miss is a NotFound error,
// which is how a replay reports a window the archive never saw
func (s *Store) Retrieve(ctx context.Context, sig string) ([]byte, error) {
	var body []byte
	err := s.db.GetContext(ctx, &body, "SELECT body FROM pages WHERE signature = ?", sig)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, perr.NotFoundf("archive has no page for signature %s", sig)
	}
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeDB, "archive retrieve page failed")
	}
	return body, nil
}

// PageCount returns the number of recorded pages
func (s *Store) PageCount(ctx context.Context) (int, error) {
	var n int
	err := s.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM pages")
	if err != nil {
		return 0, perr.Wrapf(err, perr.ErrorCodeDB, "archive page count failed")
	}
	return n, nil
}

// Session is one recorded fetch run against an origin
type Session struct {
	UUID      string    `db:"uuid"`
	Backend   string    `db:"backend"`
	Origin    string    `db:"origin"`
	Category  string    `db:"category"`
	StartedAt time.Time `db:"started_at"`
}

// BeginSession records the start of a fetch run and returns its UUID
func (s *Store) BeginSession(ctx context.Context, backend, origin, category string) (string, error) {
	id := uuid.New().String()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (uuid, backend, origin, category, started_at)
		VALUES (?, ?, ?, ?, ?)`,
		id, backend, origin, category, time.Now().UTC(),
	)
	if err != nil {
		return "", perr.Wrapf(err, perr.ErrorCodeDB, "archive begin session failed")
	}
	return id, nil
}

// Sessions lists recorded fetch runs, newest first
func (s *Store) Sessions(ctx context.Context) ([]Session, error) {
	var out []Session
	err := s.db.SelectContext(ctx, &out,
		"SELECT uuid, backend, origin, category, started_at FROM sessions ORDER BY started_at DESC")
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeDB, "archive list sessions failed")
	}
	return out, nil
}
