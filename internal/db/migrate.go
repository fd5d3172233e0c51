package db

import (
	"database/sql"
	"fmt"
	"strings"
)

// Migrate runs all schema migrations. Statements are idempotent so the full
// list is replayed on every open.
func Migrate(db *sql.DB) error {
	for i, stmt := range migrations {
		if _, err := db.Exec(stmt); err != nil {
			if strings.Contains(err.Error(), "duplicate column name") {
				continue
			}
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	return nil
}

// auditColumns is shared by every tenant-scoped table.
const auditColumns = `
		is_deleted INTEGER NOT NULL DEFAULT 0,
		deleted_at TEXT,
		is_template INTEGER NOT NULL DEFAULT 0,
		created_by TEXT NOT NULL DEFAULT '',
		updated_by TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		version INTEGER NOT NULL DEFAULT 1`

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS projects (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		started TEXT,` + auditColumns + `
	)`,

	`CREATE TABLE IF NOT EXISTS hlrs (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		project_id TEXT NOT NULL REFERENCES projects(id) DEFERRABLE INITIALLY DEFERRED,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',` + auditColumns + `
	)`,

	`CREATE TABLE IF NOT EXISTS backlogs (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		hlr_id TEXT NOT NULL REFERENCES hlrs(id) DEFERRABLE INITIALLY DEFERRED,
		name TEXT NOT NULL,
		i_want TEXT NOT NULL DEFAULT '',
		so_that TEXT NOT NULL DEFAULT '',
		story_points INTEGER,
		order_index INTEGER NOT NULL DEFAULT 0 CHECK(order_index >= 0),` + auditColumns + `
	)`,

	`CREATE TABLE IF NOT EXISTS task_types (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		project_id TEXT NOT NULL REFERENCES projects(id) DEFERRABLE INITIALLY DEFERRED,
		name TEXT NOT NULL,` + auditColumns + `
	)`,

	`CREATE TABLE IF NOT EXISTS task_statuses (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		project_id TEXT NOT NULL REFERENCES projects(id) DEFERRABLE INITIALLY DEFERRED,
		parent_id TEXT REFERENCES task_statuses(id) DEFERRABLE INITIALLY DEFERRED,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		order_index INTEGER NOT NULL DEFAULT 0 CHECK(order_index >= 0),
		rotting_days INTEGER NOT NULL DEFAULT 0,
		final_stage INTEGER NOT NULL DEFAULT 0,
		colour TEXT NOT NULL DEFAULT '',
		protected INTEGER NOT NULL DEFAULT 0,` + auditColumns + `
	)`,

	`CREATE TABLE IF NOT EXISTS resources (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		name TEXT NOT NULL,
		email TEXT NOT NULL DEFAULT '',` + auditColumns + `
	)`,

	`CREATE TABLE IF NOT EXISTS tasks (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		project_id TEXT NOT NULL REFERENCES projects(id) DEFERRABLE INITIALLY DEFERRED,
		hlr_id TEXT REFERENCES hlrs(id) DEFERRABLE INITIALLY DEFERRED,
		parent_id TEXT REFERENCES tasks(id) DEFERRABLE INITIALLY DEFERRED,
		dependency_id TEXT REFERENCES tasks(id) DEFERRABLE INITIALLY DEFERRED,
		predecessor_id TEXT REFERENCES tasks(id) DEFERRABLE INITIALLY DEFERRED,
		task_type_id TEXT REFERENCES task_types(id) DEFERRABLE INITIALLY DEFERRED,
		status_id TEXT REFERENCES task_statuses(id) DEFERRABLE INITIALLY DEFERRED,
		owner_id TEXT,
		status_assigned_at TEXT,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		started TEXT,
		deadline TEXT,
		duration_estimate INTEGER,
		duration_unit TEXT NOT NULL DEFAULT '',
		duration_actual INTEGER,
		milestone INTEGER NOT NULL DEFAULT 0,
		order_index INTEGER NOT NULL DEFAULT 0 CHECK(order_index >= 0),
		completion_percent INTEGER NOT NULL DEFAULT 0,
		recurrence_rule TEXT NOT NULL DEFAULT '',
		recurrence_of TEXT REFERENCES tasks(id) DEFERRABLE INITIALLY DEFERRED,
		notes TEXT NOT NULL DEFAULT '',` + auditColumns + `
	)`,

	`CREATE TABLE IF NOT EXISTS task_backlogs (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		task_id TEXT NOT NULL REFERENCES tasks(id) DEFERRABLE INITIALLY DEFERRED,
		backlog_id TEXT NOT NULL REFERENCES backlogs(id) DEFERRABLE INITIALLY DEFERRED,` + auditColumns + `
	)`,

	`CREATE TABLE IF NOT EXISTS task_resources (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		task_id TEXT NOT NULL REFERENCES tasks(id) DEFERRABLE INITIALLY DEFERRED,
		resource_id TEXT NOT NULL REFERENCES resources(id) DEFERRABLE INITIALLY DEFERRED,
		percentage_time INTEGER NOT NULL DEFAULT 100,` + auditColumns + `
	)`,

	`CREATE TABLE IF NOT EXISTS task_comments (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		task_id TEXT NOT NULL REFERENCES tasks(id) DEFERRABLE INITIALLY DEFERRED,
		author_id TEXT NOT NULL DEFAULT '',
		body TEXT NOT NULL,
		attachment TEXT NOT NULL DEFAULT '',` + auditColumns + `
	)`,

	// Scope lookups.
	`CREATE INDEX IF NOT EXISTS idx_tasks_scope ON tasks(tenant_id, project_id, parent_id, order_index)`,
	`CREATE INDEX IF NOT EXISTS idx_tasks_parent ON tasks(parent_id)`,
	`CREATE INDEX IF NOT EXISTS idx_task_statuses_scope ON task_statuses(tenant_id, project_id, parent_id, order_index)`,
	`CREATE INDEX IF NOT EXISTS idx_backlogs_scope ON backlogs(tenant_id, hlr_id, order_index)`,
	`CREATE INDEX IF NOT EXISTS idx_task_backlogs_task ON task_backlogs(task_id)`,
	`CREATE INDEX IF NOT EXISTS idx_task_resources_task ON task_resources(task_id)`,
	`CREATE INDEX IF NOT EXISTS idx_task_comments_task ON task_comments(task_id)`,

	// Integrity rules surfaced as field errors by the repository layer.
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_task_statuses_name
		ON task_statuses(tenant_id, project_id, COALESCE(parent_id, ''), name)
		WHERE is_deleted = 0`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_task_statuses_final_stage
		ON task_statuses(tenant_id, project_id, COALESCE(parent_id, ''))
		WHERE final_stage = 1 AND is_deleted = 0`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_task_backlogs_link
		ON task_backlogs(task_id, backlog_id)
		WHERE is_deleted = 0`,
}
