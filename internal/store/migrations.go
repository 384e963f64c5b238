package store

import (
	"context"
	"database/sql"
	"strings"
)

// schema contains the DDL for all LabFlow tables.
// Each statement uses IF NOT EXISTS for idempotency.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            TEXT PRIMARY KEY,
		email         TEXT NOT NULL,
		display_name  TEXT NOT NULL DEFAULT '',
		role          TEXT NOT NULL DEFAULT 'user',
		password_hash TEXT NOT NULL DEFAULT '',
		created_at    TEXT NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email ON users(email)`,

	`CREATE TABLE IF NOT EXISTS sessions (
		id         TEXT PRIMARY KEY,
		user_id    TEXT NOT NULL,
		email      TEXT NOT NULL,
		role       TEXT NOT NULL DEFAULT 'user',
		created_at INTEGER NOT NULL,
		expires_at INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sessions_expires_at ON sessions(expires_at)`,

	`CREATE TABLE IF NOT EXISTS projects (
		id          TEXT PRIMARY KEY,
		title       TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		objective   TEXT NOT NULL DEFAULT '',
		start_date  TEXT NOT NULL DEFAULT '',
		status      TEXT NOT NULL DEFAULT 'active',
		created_at  TEXT NOT NULL,
		updated_at  TEXT NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS workflows (
		id                   TEXT PRIMARY KEY,
		project_id           TEXT NOT NULL DEFAULT '',
		title                TEXT NOT NULL,
		description          TEXT NOT NULL DEFAULT '',
		hypothesis           TEXT NOT NULL DEFAULT '',
		category             TEXT NOT NULL DEFAULT '',
		difficulty           TEXT NOT NULL,
		estimated_total_time TEXT NOT NULL DEFAULT '',
		status               TEXT NOT NULL DEFAULT 'draft',
		created_by           TEXT NOT NULL DEFAULT '',
		created_at           TEXT NOT NULL,
		updated_at           TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_workflows_project_id ON workflows(project_id)`,
	`CREATE INDEX IF NOT EXISTS idx_workflows_status ON workflows(status)`,

	`CREATE TABLE IF NOT EXISTS workflow_assays (
		workflow_id TEXT NOT NULL REFERENCES workflows(id) ON DELETE CASCADE,
		assay_id    TEXT NOT NULL,
		position    INTEGER NOT NULL,
		PRIMARY KEY (workflow_id, assay_id)
	)`,

	`CREATE TABLE IF NOT EXISTS assay_dependencies (
		workflow_id   TEXT NOT NULL REFERENCES workflows(id) ON DELETE CASCADE,
		from_assay_id TEXT NOT NULL,
		to_assay_id   TEXT NOT NULL,
		position      INTEGER NOT NULL,
		PRIMARY KEY (workflow_id, from_assay_id, to_assay_id)
	)`,

	`CREATE TABLE IF NOT EXISTS assays (
		id             TEXT PRIMARY KEY,
		workflow_id    TEXT NOT NULL DEFAULT '',
		title          TEXT NOT NULL,
		description    TEXT NOT NULL DEFAULT '',
		protocol       TEXT NOT NULL DEFAULT '',
		materials      TEXT NOT NULL DEFAULT '[]',
		parameters     TEXT NOT NULL DEFAULT '[]',
		estimated_time TEXT NOT NULL DEFAULT '',
		created_at     TEXT NOT NULL,
		updated_at     TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_assays_workflow_id ON assays(workflow_id)`,

	`CREATE TABLE IF NOT EXISTS steps (
		id                       TEXT PRIMARY KEY,
		assay_id                 TEXT NOT NULL,
		title                    TEXT NOT NULL,
		description              TEXT NOT NULL DEFAULT '',
		estimated_time           TEXT NOT NULL DEFAULT '',
		warning                  TEXT NOT NULL DEFAULT '',
		notes                    TEXT NOT NULL DEFAULT '',
		order_index              INTEGER NOT NULL DEFAULT 0,
		calculation_dependencies TEXT NOT NULL DEFAULT '[]',
		calculation_formula      TEXT NOT NULL DEFAULT '',
		created_at               TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_steps_assay_id ON steps(assay_id, order_index)`,

	`CREATE TABLE IF NOT EXISTS user_workflows (
		id               TEXT PRIMARY KEY,
		project_id       TEXT NOT NULL DEFAULT '',
		workflow_id      TEXT NOT NULL,
		user_id          TEXT NOT NULL,
		started_at       TEXT NOT NULL,
		completed_at     TEXT,
		current_assay_id TEXT NOT NULL DEFAULT '',
		current_step_id  TEXT NOT NULL DEFAULT '',
		parameters       TEXT NOT NULL DEFAULT '{}',
		status           TEXT NOT NULL DEFAULT 'in-progress'
	)`,
	`CREATE INDEX IF NOT EXISTS idx_user_workflows_user_id ON user_workflows(user_id)`,
	`CREATE INDEX IF NOT EXISTS idx_user_workflows_project_id ON user_workflows(project_id)`,
}

// alterStatements are column additions that need special handling since
// SQLite doesn't support IF NOT EXISTS for ALTER TABLE ADD COLUMN.
var alterStatements = []struct {
	table    string
	column   string
	alterSQL string
	indexSQL string // Optional index to create after column is added
}{
	{
		table:    "user_workflows",
		column:   "notes",
		alterSQL: "ALTER TABLE user_workflows ADD COLUMN notes TEXT NOT NULL DEFAULT ''",
		indexSQL: "CREATE INDEX IF NOT EXISTS idx_user_workflows_status ON user_workflows(status)",
	},
}

// migrate executes all schema DDL statements and column additions.
func migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}

	for _, alter := range alterStatements {
		if err := addColumnIfNotExists(ctx, db, alter.table, alter.column, alter.alterSQL); err != nil {
			return err
		}
		if alter.indexSQL != "" {
			if _, err := db.ExecContext(ctx, alter.indexSQL); err != nil {
				return err
			}
		}
	}

	return nil
}

// addColumnIfNotExists adds a column to a table if it doesn't already exist.
func addColumnIfNotExists(ctx context.Context, db *sql.DB, table, column, alterSQL string) error {
	rows, err := db.QueryContext(ctx, "PRAGMA table_info("+table+")")
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dfltValue *string
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk); err != nil {
			return err
		}
		if strings.EqualFold(name, column) {
			return nil
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}
	rows.Close()

	_, err = db.ExecContext(ctx, alterSQL)
	return err
}
