package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/alexanderramin/strata/internal/db"
	"github.com/alexanderramin/strata/internal/domain"
)

var taskColumns = `t.id, t.project_id, t.hlr_id, t.parent_id, t.dependency_id, t.predecessor_id,
		t.task_type_id, t.status_id, t.owner_id, t.status_assigned_at, t.name, t.description,
		t.started, t.deadline, t.duration_estimate, t.duration_unit, t.duration_actual,
		t.milestone, t.order_index, t.completion_percent, t.recurrence_rule, t.recurrence_of, t.notes, ` + auditColumns("t")

// taskRefColumns are the self-referencing columns a cycle walk may follow.
var taskRefColumns = map[string]bool{
	"parent_id":      true,
	"dependency_id":  true,
	"predecessor_id": true,
}

// SQLiteTaskRepo implements TaskRepo using a SQLite database.
type SQLiteTaskRepo struct {
	nodeQueries[*domain.Task]
}

// NewSQLiteTaskRepo creates a task repository over conn, which may be a
// transaction.
func NewSQLiteTaskRepo(conn db.DBTX) *SQLiteTaskRepo {
	return &SQLiteTaskRepo{nodeQueries[*domain.Task]{
		db:      conn,
		table:   "tasks",
		entity:  "task",
		columns: taskColumns,
		nested:  true,
		scope:   projectScope,
		scan:    scanTask,
	}}
}

func (r *SQLiteTaskRepo) Create(ctx context.Context, t *domain.Task) error {
	query := `INSERT INTO tasks (id, project_id, hlr_id, parent_id, dependency_id, predecessor_id,
		task_type_id, status_id, owner_id, status_assigned_at, name, description,
		started, deadline, duration_estimate, duration_unit, duration_actual,
		milestone, order_index, completion_percent, recurrence_rule, recurrence_of, notes, ` + auditInsertColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ` + auditInsertPlaceholders + `)`
	args := append(taskValues(t), auditValues(&t.Audit)...)
	args = append([]any{t.ID}, args...)
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return translateWriteError("inserting task", err)
	}
	return nil
}

// CreateBatch inserts tasks in slice order.
func (r *SQLiteTaskRepo) CreateBatch(ctx context.Context, tasks []*domain.Task) error {
	for _, t := range tasks {
		if err := r.Create(ctx, t); err != nil {
			return fmt.Errorf("task %s: %w", t.ID, err)
		}
	}
	return nil
}

func (r *SQLiteTaskRepo) GetByID(ctx context.Context, id string, vis domain.Visibility) (*domain.Task, error) {
	return r.GetNode(ctx, id, vis)
}

// Update writes every mutable column when the stored version still matches
// t.Version, then advances t.Version.
func (r *SQLiteTaskRepo) Update(ctx context.Context, t *domain.Task) error {
	now := time.Now().UTC()
	query := `UPDATE tasks SET project_id = ?, hlr_id = ?, parent_id = ?, dependency_id = ?,
		predecessor_id = ?, task_type_id = ?, status_id = ?, owner_id = ?, status_assigned_at = ?,
		name = ?, description = ?, started = ?, deadline = ?, duration_estimate = ?,
		duration_unit = ?, duration_actual = ?, milestone = ?, order_index = ?,
		completion_percent = ?, recurrence_rule = ?, recurrence_of = ?, notes = ?,
		is_deleted = ?, deleted_at = ?, is_template = ?, updated_by = ?, updated_at = ?,
		version = version + 1
		WHERE id = ? AND version = ?`
	args := taskValues(t)
	args = append(args,
		boolToInt(t.Deleted), nullableTime(t.DeletedAt), boolToInt(t.Template),
		t.UpdatedBy, now.Format(timeLayout),
		t.ID, t.Version,
	)
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return translateWriteError("updating task", err)
	}
	if err := expectOneRow(res, "task", t.ID); err != nil {
		return err
	}
	bumpVersion(&t.Audit, t.UpdatedBy, now)
	return nil
}

// ListByProject returns every task of a project in (parent, order) order.
func (r *SQLiteTaskRepo) ListByProject(ctx context.Context, tenantID, projectID string, vis domain.Visibility) ([]*domain.Task, error) {
	query := r.selectFrom() + ` WHERE t.tenant_id = ? AND t.project_id = ?` + visibilityClause("t", vis) +
		` ORDER BY t.parent_id, t.order_index, t.id`
	return r.collect(ctx, "listing tasks by project", query, []any{tenantID, projectID}, nil, nil)
}

// ListStarted returns the tasks of a project that have a start date.
func (r *SQLiteTaskRepo) ListStarted(ctx context.Context, tenantID, projectID string, vis domain.Visibility) ([]*domain.Task, error) {
	query := r.selectFrom() + ` WHERE t.tenant_id = ? AND t.project_id = ? AND t.started IS NOT NULL` +
		visibilityClause("t", vis) + ` ORDER BY t.started, t.id`
	return r.collect(ctx, "listing started tasks", query, []any{tenantID, projectID}, nil, nil)
}

// ListStartedBefore returns the tasks of a project starting before cutoff.
func (r *SQLiteTaskRepo) ListStartedBefore(ctx context.Context, tenantID, projectID string, cutoff time.Time, vis domain.Visibility) ([]*domain.Task, error) {
	query := r.selectFrom() + ` WHERE t.tenant_id = ? AND t.project_id = ? AND t.started IS NOT NULL
		AND t.started < ?` + visibilityClause("t", vis) + ` ORDER BY t.started, t.id`
	return r.collect(ctx, "listing early tasks", query, []any{tenantID, projectID, cutoff.UTC().Format(timeLayout)}, nil, nil)
}

// ListByStatus returns the tasks currently in statusID.
func (r *SQLiteTaskRepo) ListByStatus(ctx context.Context, statusID string, vis domain.Visibility) ([]*domain.Task, error) {
	query := r.selectFrom() + ` WHERE t.status_id = ?` + visibilityClause("t", vis) + ` ORDER BY t.order_index, t.id`
	return r.collect(ctx, "listing tasks by status", query, []any{statusID}, nil, nil)
}

// ListReferencing returns tasks whose dependency or predecessor is id.
func (r *SQLiteTaskRepo) ListReferencing(ctx context.Context, id string, vis domain.Visibility) ([]*domain.Task, error) {
	query := r.selectFrom() + ` WHERE (t.dependency_id = ? OR t.predecessor_id = ?)` + visibilityClause("t", vis) +
		` ORDER BY t.id`
	return r.collect(ctx, "listing referencing tasks", query, []any{id, id}, nil, nil)
}

// NextFreeName returns name, or "name (N)" with the smallest N >= 1 not
// already taken by a live sibling in scope.
func (r *SQLiteTaskRepo) NextFreeName(ctx context.Context, scope domain.Scope, name, excludeID string) (string, error) {
	where, args := r.scope(scope)
	query := `SELECT t.name FROM tasks t WHERE ` + where + ` AND t.id != ?
		AND (t.name = ? OR t.name LIKE ? ESCAPE '\')` + visibilityClause("t", domain.Live)
	args = append(args, excludeID, name, likeEscape(name)+` (%)`)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return "", fmt.Errorf("listing sibling names: %w", err)
	}
	defer rows.Close()

	taken := make(map[string]bool)
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return "", fmt.Errorf("scanning sibling name: %w", err)
		}
		taken[n] = true
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("listing sibling names: %w", err)
	}
	if !taken[name] {
		return name, nil
	}
	for i := 1; ; i++ {
		candidate := name + " (" + strconv.Itoa(i) + ")"
		if !taken[candidate] {
			return candidate, nil
		}
	}
}

// Reaches reports whether following column from fromID arrives at targetID
// within maxHierarchyDepth hops. fromID itself counts as reached.
func (r *SQLiteTaskRepo) Reaches(ctx context.Context, column, fromID, targetID string) (bool, error) {
	if !taskRefColumns[column] {
		return false, fmt.Errorf("unsupported reference column %q", column)
	}
	query := `WITH RECURSIVE walk(id, depth) AS (
			SELECT ?, 0
			UNION
			SELECT t.` + column + `, w.depth + 1 FROM tasks t
			JOIN walk w ON t.id = w.id
			WHERE t.` + column + ` IS NOT NULL AND w.depth < ?
		)
		SELECT EXISTS(SELECT 1 FROM walk WHERE id = ?)`
	var found int
	if err := r.db.QueryRowContext(ctx, query, fromID, maxHierarchyDepth, targetID).Scan(&found); err != nil {
		return false, fmt.Errorf("walking task %s chain: %w", strings.TrimSuffix(column, "_id"), err)
	}
	return found == 1, nil
}

// ReassignStatus moves every task in fromStatus to toStatus and stamps the
// assignment time.
func (r *SQLiteTaskRepo) ReassignStatus(ctx context.Context, fromStatus, toStatus, by string, now time.Time) (int, error) {
	stamp := now.UTC().Format(timeLayout)
	res, err := r.db.ExecContext(ctx, `UPDATE tasks SET status_id = ?, status_assigned_at = ?,
		updated_by = ?, updated_at = ?, version = version + 1
		WHERE status_id = ?`, toStatus, stamp, by, stamp, fromStatus)
	if err != nil {
		return 0, translateWriteError("reassigning task status", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reading affected rows: %w", err)
	}
	return int(n), nil
}

func taskValues(t *domain.Task) []any {
	return []any{
		t.ProjectID,
		t.HLRID,
		t.ParentID,
		t.DependencyID,
		t.PredecessorID,
		t.TaskTypeID,
		t.StatusID,
		t.OwnerID,
		nullableTime(t.StatusAssignedAt),
		t.Name,
		t.Description,
		nullableTime(t.Started),
		nullableTime(t.Deadline),
		nullableInt(t.DurationEstimate),
		string(t.DurationUnit),
		nullableInt(t.DurationActual),
		boolToInt(t.Milestone),
		t.OrderIndex,
		t.CompletionPercent,
		t.RecurrenceRule,
		t.RecurrenceOf,
		t.Notes,
	}
}

// scanTask scans a task row followed by any extra destinations.
func scanTask(row rowScanner, extra ...any) (*domain.Task, error) {
	var t domain.Task
	var hlrID, parentID, dependencyID, predecessorID, typeID, statusID, ownerID, recurrenceOf sql.NullString
	var assignedAt, started, deadline sql.NullString
	var estimate, actual sql.NullInt64
	var unit string
	var milestone int
	var audit auditRow

	dest := []any{
		&t.ID, &t.ProjectID, &hlrID, &parentID, &dependencyID, &predecessorID,
		&typeID, &statusID, &ownerID, &assignedAt, &t.Name, &t.Description,
		&started, &deadline, &estimate, &unit, &actual,
		&milestone, &t.OrderIndex, &t.CompletionPercent, &t.RecurrenceRule, &recurrenceOf, &t.Notes,
	}
	dest = append(dest, audit.dest()...)
	dest = append(dest, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	t.HLRID = nullStrPtr(hlrID)
	t.ParentID = nullStrPtr(parentID)
	t.DependencyID = nullStrPtr(dependencyID)
	t.PredecessorID = nullStrPtr(predecessorID)
	t.TaskTypeID = nullStrPtr(typeID)
	t.StatusID = nullStrPtr(statusID)
	t.OwnerID = nullStrPtr(ownerID)
	t.RecurrenceOf = nullStrPtr(recurrenceOf)
	t.DurationEstimate = nullIntPtr(estimate)
	t.DurationActual = nullIntPtr(actual)
	t.DurationUnit = domain.DurationUnit(unit)
	t.Milestone = intToBool(milestone)

	var err error
	if t.StatusAssignedAt, err = parseNullableTime(assignedAt); err != nil {
		return nil, err
	}
	if t.Started, err = parseNullableTime(started); err != nil {
		return nil, err
	}
	if t.Deadline, err = parseNullableTime(deadline); err != nil {
		return nil, err
	}
	if err := audit.into(&t.Audit); err != nil {
		return nil, err
	}
	return &t, nil
}
