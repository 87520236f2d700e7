package archive

// migration holds one schema migration with its target version
type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of schema migrations, versions sequential from 1
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS pages (
	signature TEXT PRIMARY KEY,
	url       TEXT NOT NULL,
	params    TEXT NOT NULL DEFAULT '',
	body      BLOB NOT NULL,
	stored_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS sessions (
	uuid       TEXT PRIMARY KEY,
	backend    TEXT NOT NULL,
	origin     TEXT NOT NULL,
	category   TEXT NOT NULL,
	started_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_pages_stored_at ON pages(stored_at);
CREATE INDEX IF NOT EXISTS idx_sessions_started_at ON sessions(started_at);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
}
