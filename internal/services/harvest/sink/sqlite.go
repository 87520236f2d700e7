package sink

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"testharvest/internal/connector"
	perr "testharvest/internal/platform/errors"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

const itemsSchema = `
CREATE TABLE IF NOT EXISTS items (
	uuid       TEXT PRIMARY KEY,
	backend    TEXT NOT NULL,
	origin     TEXT NOT NULL,
	identifier TEXT NOT NULL,
	category   TEXT NOT NULL,
	tag        TEXT NOT NULL DEFAULT '',
	updated_on REAL NOT NULL,
	fetched_at DATETIME NOT NULL,
	payload    TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_items_origin_category ON items(origin, category);
CREATE INDEX IF NOT EXISTS idx_items_updated_on ON items(updated_on);
`

// SQLite persists items keyed by UUID, so re-harvesting a window upserts
// rather than duplicates
type SQLite struct {
	db *sqlx.DB
}

// OpenSQLite opens (or creates) the item database at path in WAL mode
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeDB, "item store open %s failed", path)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, perr.Wrapf(err, perr.ErrorCodeDB, "item store enable WAL failed")
	}
	if _, err := db.Exec(itemsSchema); err != nil {
		_ = db.Close()
		return nil, perr.Wrapf(err, perr.ErrorCodeDB, "item store schema failed")
	}
	return &SQLite{db: db}, nil
}

// Write upserts it by UUID
func (s *SQLite) Write(ctx context.Context, it connector.Item) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO items (
			uuid, backend, origin, identifier, category, tag,
			updated_on, fetched_at, payload
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		it.UUID, it.Backend, it.Origin, it.Identifier, it.Category, it.Tag,
		it.UpdatedOn, it.FetchedAt.UTC(), string(it.Payload),
	)
	return perr.WrapIf(err, perr.ErrorCodeDB, "item store write failed")
}

// Close closes the underlying database
func (s *SQLite) Close() error {
	return perr.WrapIf(s.db.Close(), perr.ErrorCodeDB, "item store close failed")
}

// Count returns the number of stored items
func (s *SQLite) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM items"); err != nil {
		return 0, perr.Wrapf(err, perr.ErrorCodeDB, "item store count failed")
	}
	return n, nil
}

// Get returns the stored item with the given UUID; a miss is NotFound
func (s *SQLite) Get(ctx context.Context, id string) (connector.Item, error) {
	row := s.db.QueryRowxContext(ctx,
		`SELECT uuid, backend, origin, identifier, category, tag, updated_on, fetched_at, payload
		 FROM items WHERE uuid = ?`, id)

	var (
		it        connector.Item
		fetchedAt time.Time
		payload   string
	)
	err := row.Scan(&it.UUID, &it.Backend, &it.Origin, &it.Identifier, &it.Category, &it.Tag,
		&it.UpdatedOn, &fetchedAt, &payload)
	if errors.Is(err, sql.ErrNoRows) {
		return connector.Item{}, perr.NotFoundf("item %s not stored", id)
	}
	if err != nil {
		return connector.Item{}, perr.Wrapf(err, perr.ErrorCodeDB, "item store get failed")
	}
	it.FetchedAt = fetchedAt
	it.Payload = []byte(payload)
	return it, nil
}
