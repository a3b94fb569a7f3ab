package sqlite

type migration struct {
	version int
	sql     string
}

var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version    INTEGER PRIMARY KEY,
	applied_at TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS users (
	id       TEXT PRIMARY KEY,
	name     TEXT NOT NULL DEFAULT '',
	username TEXT NOT NULL DEFAULT '',
	email    TEXT NOT NULL DEFAULT '',
	avatar   TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS notifications (
	id           TEXT PRIMARY KEY,
	recipient_id TEXT NOT NULL,
	sender_id    TEXT NOT NULL DEFAULT '',
	type         TEXT NOT NULL,
	priority     TEXT NOT NULL,
	title        TEXT NOT NULL,
	content      TEXT NOT NULL DEFAULT '',
	is_read      INTEGER NOT NULL DEFAULT 0,
	read_at      INTEGER,
	entity_type  TEXT NOT NULL DEFAULT '',
	entity_id    TEXT NOT NULL DEFAULT '',
	action_url   TEXT NOT NULL DEFAULT '',
	meta_data    TEXT NOT NULL DEFAULT '{}',
	expires_at   INTEGER NOT NULL,
	created_at   INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_notifications_recipient ON notifications(recipient_id, is_read, created_at);
CREATE INDEX IF NOT EXISTS idx_notifications_expires ON notifications(expires_at);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
}
