package store

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of schema migrations.
// Each migration's version must be sequential starting from 1.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS issues (
	id          TEXT PRIMARY KEY,
	team_id     TEXT NOT NULL,
	bucket      TEXT NOT NULL CHECK(bucket IN ('todo', 'completed')),
	title       TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	state_id    TEXT NOT NULL,
	state_name  TEXT NOT NULL DEFAULT '',
	due_date    DATETIME,
	url         TEXT NOT NULL DEFAULT '',
	updated_at  DATETIME NOT NULL,
	fetched_at  DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS notifications (
	id         TEXT PRIMARY KEY,
	issue_id   TEXT NOT NULL,
	team_id    TEXT NOT NULL,
	message    TEXT NOT NULL,
	read       INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_issues_team_bucket ON issues(team_id, bucket);
CREATE INDEX IF NOT EXISTS idx_issues_updated_at ON issues(updated_at);
CREATE INDEX IF NOT EXISTS idx_notifications_read ON notifications(read);
CREATE INDEX IF NOT EXISTS idx_notifications_issue_id ON notifications(issue_id);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
}
