package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/alexanderramin/strata/internal/db"
	"github.com/alexanderramin/strata/internal/domain"
)

var taskStatusColumns = `t.id, t.project_id, t.parent_id, t.name, t.description, t.order_index,
		t.rotting_days, t.final_stage, t.colour, t.protected, ` + auditColumns("t")

// SQLiteTaskStatusRepo implements TaskStatusRepo using a SQLite database.
type SQLiteTaskStatusRepo struct {
	nodeQueries[*domain.TaskStatus]
}

func NewSQLiteTaskStatusRepo(conn db.DBTX) *SQLiteTaskStatusRepo {
	return &SQLiteTaskStatusRepo{nodeQueries[*domain.TaskStatus]{
		db:      conn,
		table:   "task_statuses",
		entity:  "task status",
		columns: taskStatusColumns,
		nested:  true,
		scope:   projectScope,
		scan:    scanTaskStatus,
	}}
}

func (r *SQLiteTaskStatusRepo) Create(ctx context.Context, s *domain.TaskStatus) error {
	query := `INSERT INTO task_statuses (id, project_id, parent_id, name, description, order_index,
		rotting_days, final_stage, colour, protected, ` + auditInsertColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ` + auditInsertPlaceholders + `)`
	args := append([]any{s.ID}, taskStatusValues(s)...)
	args = append(args, auditValues(&s.Audit)...)
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return translateWriteError("inserting task status", err)
	}
	return nil
}

func (r *SQLiteTaskStatusRepo) GetByID(ctx context.Context, id string, vis domain.Visibility) (*domain.TaskStatus, error) {
	return r.GetNode(ctx, id, vis)
}

func (r *SQLiteTaskStatusRepo) Update(ctx context.Context, s *domain.TaskStatus) error {
	now := time.Now().UTC()
	query := `UPDATE task_statuses SET project_id = ?, parent_id = ?, name = ?, description = ?,
		order_index = ?, rotting_days = ?, final_stage = ?, colour = ?, protected = ?,
		is_deleted = ?, deleted_at = ?, is_template = ?, updated_by = ?, updated_at = ?,
		version = version + 1
		WHERE id = ? AND version = ?`
	args := taskStatusValues(s)
	args = append(args,
		boolToInt(s.Deleted), nullableTime(s.DeletedAt), boolToInt(s.Template),
		s.UpdatedBy, now.Format(timeLayout),
		s.ID, s.Version,
	)
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return translateWriteError("updating task status", err)
	}
	if err := expectOneRow(res, "task status", s.ID); err != nil {
		return err
	}
	bumpVersion(&s.Audit, s.UpdatedBy, now)
	return nil
}

// ListByProject returns every status of a project ordered by parent then order.
func (r *SQLiteTaskStatusRepo) ListByProject(ctx context.Context, tenantID, projectID string, vis domain.Visibility) ([]*domain.TaskStatus, error) {
	query := r.selectFrom() + ` WHERE t.tenant_id = ? AND t.project_id = ?` + visibilityClause("t", vis) +
		` ORDER BY t.parent_id, t.order_index, t.id`
	return r.collect(ctx, "listing task statuses by project", query, []any{tenantID, projectID}, nil, nil)
}

// GetProtected returns the project's unassigned fallback status.
func (r *SQLiteTaskStatusRepo) GetProtected(ctx context.Context, tenantID, projectID string) (*domain.TaskStatus, error) {
	query := r.selectFrom() + ` WHERE t.tenant_id = ? AND t.project_id = ? AND t.protected = 1
		AND t.is_deleted = 0 ORDER BY t.created_at LIMIT 1`
	s, err := scanTaskStatus(r.db.QueryRowContext(ctx, query, tenantID, projectID))
	if err != nil {
		return nil, notFoundOr("unassigned task status", err)
	}
	return s, nil
}

// FirstOpen returns the lowest-ordered top-level status that is neither
// protected nor final; new tasks default to it.
func (r *SQLiteTaskStatusRepo) FirstOpen(ctx context.Context, tenantID, projectID string) (*domain.TaskStatus, error) {
	query := r.selectFrom() + ` WHERE t.tenant_id = ? AND t.project_id = ? AND t.parent_id IS NULL
		AND t.protected = 0 AND t.final_stage = 0` + visibilityClause("t", domain.Live) +
		` ORDER BY t.order_index, t.id LIMIT 1`
	s, err := scanTaskStatus(r.db.QueryRowContext(ctx, query, tenantID, projectID))
	if err != nil {
		return nil, notFoundOr("task status", err)
	}
	return s, nil
}

// Reaches reports whether walking parents up from fromID arrives at targetID.
func (r *SQLiteTaskStatusRepo) Reaches(ctx context.Context, fromID, targetID string) (bool, error) {
	query := `WITH RECURSIVE walk(id, depth) AS (
			SELECT ?, 0
			UNION
			SELECT s.parent_id, w.depth + 1 FROM task_statuses s
			JOIN walk w ON s.id = w.id
			WHERE s.parent_id IS NOT NULL AND w.depth < ?
		)
		SELECT EXISTS(SELECT 1 FROM walk WHERE id = ?)`
	var found int
	if err := r.db.QueryRowContext(ctx, query, fromID, maxHierarchyDepth, targetID).Scan(&found); err != nil {
		return false, fmt.Errorf("walking task status parents: %w", err)
	}
	return found == 1, nil
}

func taskStatusValues(s *domain.TaskStatus) []any {
	return []any{
		s.ProjectID,
		s.ParentID,
		s.Name,
		s.Description,
		s.OrderIndex,
		s.RottingDays,
		boolToInt(s.FinalStage),
		s.Colour,
		boolToInt(s.Protected),
	}
}

func scanTaskStatus(row rowScanner, extra ...any) (*domain.TaskStatus, error) {
	var s domain.TaskStatus
	var parentID sql.NullString
	var finalStage, protected int
	var audit auditRow

	dest := []any{&s.ID, &s.ProjectID, &parentID, &s.Name, &s.Description, &s.OrderIndex,
		&s.RottingDays, &finalStage, &s.Colour, &protected}
	dest = append(dest, audit.dest()...)
	dest = append(dest, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	s.ParentID = nullStrPtr(parentID)
	s.FinalStage = intToBool(finalStage)
	s.Protected = intToBool(protected)
	if err := audit.into(&s.Audit); err != nil {
		return nil, err
	}
	return &s, nil
}
