package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/alexanderramin/strata/internal/db"
	"github.com/alexanderramin/strata/internal/domain"
)

var backlogColumns = `t.id, t.hlr_id, t.name, t.i_want, t.so_that, t.story_points, t.order_index, ` +
	auditColumns("t")

// SQLiteBacklogRepo implements BacklogRepo. Backlog items are flat: their
// scope is (tenant, hlr) and they have no parent.
type SQLiteBacklogRepo struct {
	nodeQueries[*domain.Backlog]
}

func NewSQLiteBacklogRepo(conn db.DBTX) *SQLiteBacklogRepo {
	return &SQLiteBacklogRepo{nodeQueries[*domain.Backlog]{
		db:      conn,
		table:   "backlogs",
		entity:  "backlog",
		columns: backlogColumns,
		nested:  false,
		scope:   hlrScope,
		scan:    scanBacklog,
	}}
}

func (r *SQLiteBacklogRepo) Create(ctx context.Context, b *domain.Backlog) error {
	query := `INSERT INTO backlogs (id, hlr_id, name, i_want, so_that, story_points, order_index, ` +
		auditInsertColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ` + auditInsertPlaceholders + `)`
	args := []any{b.ID, b.HLRID, b.Name, b.IWant, b.SoThat, nullableInt(b.StoryPoints), b.OrderIndex}
	args = append(args, auditValues(&b.Audit)...)
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return translateWriteError("inserting backlog", err)
	}
	return nil
}

func (r *SQLiteBacklogRepo) GetByID(ctx context.Context, id string, vis domain.Visibility) (*domain.Backlog, error) {
	return r.GetNode(ctx, id, vis)
}

func (r *SQLiteBacklogRepo) Update(ctx context.Context, b *domain.Backlog) error {
	now := time.Now().UTC()
	query := `UPDATE backlogs SET hlr_id = ?, name = ?, i_want = ?, so_that = ?, story_points = ?,
		order_index = ?, is_deleted = ?, deleted_at = ?, is_template = ?, updated_by = ?,
		updated_at = ?, version = version + 1
		WHERE id = ? AND version = ?`
	res, err := r.db.ExecContext(ctx, query,
		b.HLRID, b.Name, b.IWant, b.SoThat, nullableInt(b.StoryPoints), b.OrderIndex,
		boolToInt(b.Deleted), nullableTime(b.DeletedAt), boolToInt(b.Template), b.UpdatedBy,
		now.Format(timeLayout), b.ID, b.Version,
	)
	if err != nil {
		return translateWriteError("updating backlog", err)
	}
	if err := expectOneRow(res, "backlog", b.ID); err != nil {
		return err
	}
	bumpVersion(&b.Audit, b.UpdatedBy, now)
	return nil
}

// ListByProject returns every backlog item under the project's HLRs.
func (r *SQLiteBacklogRepo) ListByProject(ctx context.Context, tenantID, projectID string, vis domain.Visibility) ([]*domain.Backlog, error) {
	query := r.selectFrom() + ` JOIN hlrs h ON h.id = t.hlr_id
		WHERE t.tenant_id = ? AND h.project_id = ?` + visibilityClause("t", vis) +
		` ORDER BY t.hlr_id, t.order_index, t.id`
	return r.collect(ctx, "listing backlogs by project", query, []any{tenantID, projectID}, nil, nil)
}

func scanBacklog(row rowScanner, extra ...any) (*domain.Backlog, error) {
	var b domain.Backlog
	var points sql.NullInt64
	var audit auditRow

	dest := []any{&b.ID, &b.HLRID, &b.Name, &b.IWant, &b.SoThat, &points, &b.OrderIndex}
	dest = append(dest, audit.dest()...)
	dest = append(dest, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	b.StoryPoints = nullIntPtr(points)
	if err := audit.into(&b.Audit); err != nil {
		return nil, err
	}
	return &b, nil
}
