package database

import (
	"context"
	"fmt"
)

// sqliteSchema mirrors the tables other services own in Postgres so the
// pipeline can run against a local file
const sqliteSchema = `
CREATE TABLE IF NOT EXISTS project (
	pid TEXT PRIMARY KEY,
	project_name TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT 'init',
	update_time DATETIME
);

CREATE TABLE IF NOT EXISTS comment (
	cid TEXT NOT NULL,
	pid TEXT NOT NULL,
	parent_cid TEXT,
	username TEXT,
	content TEXT,
	comment_time DATETIME,
	is_abnormal INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (pid, cid)
);

CREATE INDEX IF NOT EXISTS idx_comment_pid_user ON comment(pid, username);
`

// EnsureLocalSchema creates the comment and project tables on sqlite.
// Other drivers point at a database managed elsewhere and are left alone.
func (f *Factory) EnsureLocalSchema(ctx context.Context) (bool, error) {
	if f.driver != DriverSQLite {
		return false, nil
	}

	db, err := f.Open(ctx)
	if err != nil {
		return false, err
	}
	defer db.Close()

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		return false, fmt.Errorf("create sqlite schema: %w", err)
	}

	f.logger.Info("local comment schema ensured")
	return true, nil
}
