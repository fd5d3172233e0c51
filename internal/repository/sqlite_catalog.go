package repository

import (
	"context"
	"fmt"

	"github.com/alexanderramin/strata/internal/db"
	"github.com/alexanderramin/strata/internal/domain"
)

// SQLiteCatalogRepo stores the flat per-project lookup tables: high-level
// requirements, task types and resources.
type SQLiteCatalogRepo struct {
	db db.DBTX
}

func NewSQLiteCatalogRepo(conn db.DBTX) *SQLiteCatalogRepo {
	return &SQLiteCatalogRepo{db: conn}
}

func (r *SQLiteCatalogRepo) CreateHLR(ctx context.Context, h *domain.HLR) error {
	query := `INSERT INTO hlrs (id, project_id, name, description, ` + auditInsertColumns + `)
		VALUES (?, ?, ?, ?, ` + auditInsertPlaceholders + `)`
	args := append([]any{h.ID, h.ProjectID, h.Name, h.Description}, auditValues(&h.Audit)...)
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return translateWriteError("inserting hlr", err)
	}
	return nil
}

func (r *SQLiteCatalogRepo) GetHLR(ctx context.Context, id string, vis domain.Visibility) (*domain.HLR, error) {
	query := `SELECT h.id, h.project_id, h.name, h.description, ` + auditColumns("h") +
		` FROM hlrs h WHERE h.id = ?` + visibilityClause("h", vis)
	h, err := scanHLR(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, notFoundOr("hlr", err)
	}
	return h, nil
}

func (r *SQLiteCatalogRepo) ListHLRs(ctx context.Context, tenantID, projectID string, vis domain.Visibility) ([]*domain.HLR, error) {
	query := `SELECT h.id, h.project_id, h.name, h.description, ` + auditColumns("h") +
		` FROM hlrs h WHERE h.tenant_id = ? AND h.project_id = ?` + visibilityClause("h", vis) +
		` ORDER BY h.created_at, h.id`
	rows, err := r.db.QueryContext(ctx, query, tenantID, projectID)
	if err != nil {
		return nil, fmt.Errorf("listing hlrs: %w", err)
	}
	defer rows.Close()

	var out []*domain.HLR
	for rows.Next() {
		h, err := scanHLR(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning hlr row: %w", err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func (r *SQLiteCatalogRepo) CreateTaskType(ctx context.Context, tt *domain.TaskType) error {
	query := `INSERT INTO task_types (id, project_id, name, ` + auditInsertColumns + `)
		VALUES (?, ?, ?, ` + auditInsertPlaceholders + `)`
	args := append([]any{tt.ID, tt.ProjectID, tt.Name}, auditValues(&tt.Audit)...)
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return translateWriteError("inserting task type", err)
	}
	return nil
}

func (r *SQLiteCatalogRepo) GetTaskType(ctx context.Context, id string, vis domain.Visibility) (*domain.TaskType, error) {
	query := `SELECT tt.id, tt.project_id, tt.name, ` + auditColumns("tt") +
		` FROM task_types tt WHERE tt.id = ?` + visibilityClause("tt", vis)
	tt, err := scanTaskType(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, notFoundOr("task type", err)
	}
	return tt, nil
}

func (r *SQLiteCatalogRepo) ListTaskTypes(ctx context.Context, tenantID, projectID string, vis domain.Visibility) ([]*domain.TaskType, error) {
	query := `SELECT tt.id, tt.project_id, tt.name, ` + auditColumns("tt") +
		` FROM task_types tt WHERE tt.tenant_id = ? AND tt.project_id = ?` + visibilityClause("tt", vis) +
		` ORDER BY tt.created_at, tt.id`
	rows, err := r.db.QueryContext(ctx, query, tenantID, projectID)
	if err != nil {
		return nil, fmt.Errorf("listing task types: %w", err)
	}
	defer rows.Close()

	var out []*domain.TaskType
	for rows.Next() {
		tt, err := scanTaskType(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning task type row: %w", err)
		}
		out = append(out, tt)
	}
	return out, rows.Err()
}

func (r *SQLiteCatalogRepo) CreateResource(ctx context.Context, res *domain.Resource) error {
	query := `INSERT INTO resources (id, name, email, ` + auditInsertColumns + `)
		VALUES (?, ?, ?, ` + auditInsertPlaceholders + `)`
	args := append([]any{res.ID, res.Name, res.Email}, auditValues(&res.Audit)...)
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return translateWriteError("inserting resource", err)
	}
	return nil
}

func scanHLR(row rowScanner) (*domain.HLR, error) {
	var h domain.HLR
	var audit auditRow
	dest := append([]any{&h.ID, &h.ProjectID, &h.Name, &h.Description}, audit.dest()...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	if err := audit.into(&h.Audit); err != nil {
		return nil, err
	}
	return &h, nil
}

func scanTaskType(row rowScanner) (*domain.TaskType, error) {
	var tt domain.TaskType
	var audit auditRow
	dest := append([]any{&tt.ID, &tt.ProjectID, &tt.Name}, audit.dest()...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	if err := audit.into(&tt.Audit); err != nil {
		return nil, err
	}
	return &tt, nil
}
