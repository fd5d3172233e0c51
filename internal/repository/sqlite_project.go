package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/alexanderramin/strata/internal/db"
	"github.com/alexanderramin/strata/internal/domain"
)

var projectColumns = `p.id, p.name, p.description, p.started, ` + auditColumns("p")

// SQLiteProjectRepo implements ProjectRepo using a SQLite database.
type SQLiteProjectRepo struct {
	db db.DBTX
}

func NewSQLiteProjectRepo(conn db.DBTX) *SQLiteProjectRepo {
	return &SQLiteProjectRepo{db: conn}
}

func (r *SQLiteProjectRepo) Create(ctx context.Context, p *domain.Project) error {
	query := `INSERT INTO projects (id, name, description, started, ` + auditInsertColumns + `)
		VALUES (?, ?, ?, ?, ` + auditInsertPlaceholders + `)`
	args := append([]any{p.ID, p.Name, p.Description, nullableTime(p.Started)}, auditValues(&p.Audit)...)
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return translateWriteError("inserting project", err)
	}
	return nil
}

func (r *SQLiteProjectRepo) GetByID(ctx context.Context, id string, vis domain.Visibility) (*domain.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects p WHERE p.id = ?` + visibilityClause("p", vis)
	p, err := scanProject(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, notFoundOr("project", err)
	}
	return p, nil
}

// List returns the tenant's projects ordered by name.
func (r *SQLiteProjectRepo) List(ctx context.Context, tenantID string, vis domain.Visibility) ([]*domain.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects p WHERE p.tenant_id = ?` + visibilityClause("p", vis) +
		` ORDER BY p.name, p.id`
	rows, err := r.db.QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("listing projects: %w", err)
	}
	defer rows.Close()

	var out []*domain.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning project row: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *SQLiteProjectRepo) Update(ctx context.Context, p *domain.Project) error {
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `UPDATE projects SET name = ?, description = ?, started = ?,
		is_deleted = ?, deleted_at = ?, is_template = ?, updated_by = ?, updated_at = ?,
		version = version + 1
		WHERE id = ? AND version = ?`,
		p.Name, p.Description, nullableTime(p.Started),
		boolToInt(p.Deleted), nullableTime(p.DeletedAt), boolToInt(p.Template), p.UpdatedBy,
		now.Format(timeLayout), p.ID, p.Version,
	)
	if err != nil {
		return translateWriteError("updating project", err)
	}
	if err := expectOneRow(res, "project", p.ID); err != nil {
		return err
	}
	bumpVersion(&p.Audit, p.UpdatedBy, now)
	return nil
}

func scanProject(row rowScanner) (*domain.Project, error) {
	var p domain.Project
	var started sql.NullString
	var audit auditRow

	dest := append([]any{&p.ID, &p.Name, &p.Description, &started}, audit.dest()...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	var err error
	if p.Started, err = parseNullableTime(started); err != nil {
		return nil, err
	}
	if err := audit.into(&p.Audit); err != nil {
		return nil, err
	}
	return &p, nil
}
