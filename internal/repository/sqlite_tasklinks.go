package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/alexanderramin/strata/internal/db"
	"github.com/alexanderramin/strata/internal/domain"
)

// SQLiteTaskLinkRepo stores the join records hanging off tasks: backlog
// links, resource assignments and comments.
type SQLiteTaskLinkRepo struct {
	db db.DBTX
}

func NewSQLiteTaskLinkRepo(conn db.DBTX) *SQLiteTaskLinkRepo {
	return &SQLiteTaskLinkRepo{db: conn}
}

func (r *SQLiteTaskLinkRepo) CreateBacklogLink(ctx context.Context, l *domain.TaskBacklog) error {
	query := `INSERT INTO task_backlogs (id, task_id, backlog_id, ` + auditInsertColumns + `)
		VALUES (?, ?, ?, ` + auditInsertPlaceholders + `)`
	args := append([]any{l.ID, l.TaskID, l.BacklogID}, auditValues(&l.Audit)...)
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return translateWriteError("inserting task backlog link", err)
	}
	return nil
}

func (r *SQLiteTaskLinkRepo) CreateResourceLink(ctx context.Context, l *domain.TaskResource) error {
	query := `INSERT INTO task_resources (id, task_id, resource_id, percentage_time, ` + auditInsertColumns + `)
		VALUES (?, ?, ?, ?, ` + auditInsertPlaceholders + `)`
	args := append([]any{l.ID, l.TaskID, l.ResourceID, l.PercentageTime}, auditValues(&l.Audit)...)
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return translateWriteError("inserting task resource link", err)
	}
	return nil
}

func (r *SQLiteTaskLinkRepo) CreateComment(ctx context.Context, c *domain.TaskComment) error {
	query := `INSERT INTO task_comments (id, task_id, author_id, body, attachment, ` + auditInsertColumns + `)
		VALUES (?, ?, ?, ?, ?, ` + auditInsertPlaceholders + `)`
	args := append([]any{c.ID, c.TaskID, c.AuthorID, c.Body, c.Attachment}, auditValues(&c.Audit)...)
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return translateWriteError("inserting task comment", err)
	}
	return nil
}

// CreateAll inserts every record of links.
func (r *SQLiteTaskLinkRepo) CreateAll(ctx context.Context, links domain.TaskLinks) error {
	for _, l := range links.Backlogs {
		if err := r.CreateBacklogLink(ctx, l); err != nil {
			return err
		}
	}
	for _, l := range links.Resources {
		if err := r.CreateResourceLink(ctx, l); err != nil {
			return err
		}
	}
	for _, c := range links.Comments {
		if err := r.CreateComment(ctx, c); err != nil {
			return err
		}
	}
	return nil
}

// ListForTasks loads the join records of the given tasks.
func (r *SQLiteTaskLinkRepo) ListForTasks(ctx context.Context, taskIDs []string, vis domain.Visibility) (domain.TaskLinks, error) {
	var links domain.TaskLinks
	if len(taskIDs) == 0 {
		return links, nil
	}
	in := placeholders(len(taskIDs))
	args := stringArgs(taskIDs)

	rows, err := r.db.QueryContext(ctx, `SELECT l.id, l.task_id, l.backlog_id, `+auditColumns("l")+
		` FROM task_backlogs l WHERE l.task_id IN (`+in+`)`+visibilityClause("l", vis)+` ORDER BY l.created_at, l.id`, args...)
	if err != nil {
		return links, fmt.Errorf("listing task backlog links: %w", err)
	}
	for rows.Next() {
		var l domain.TaskBacklog
		var audit auditRow
		if err := rows.Scan(append([]any{&l.ID, &l.TaskID, &l.BacklogID}, audit.dest()...)...); err != nil {
			rows.Close()
			return links, fmt.Errorf("scanning task backlog link: %w", err)
		}
		if err := audit.into(&l.Audit); err != nil {
			rows.Close()
			return links, err
		}
		links.Backlogs = append(links.Backlogs, &l)
	}
	if err := closeRows(rows); err != nil {
		return links, fmt.Errorf("listing task backlog links: %w", err)
	}

	rows, err = r.db.QueryContext(ctx, `SELECT l.id, l.task_id, l.resource_id, l.percentage_time, `+auditColumns("l")+
		` FROM task_resources l WHERE l.task_id IN (`+in+`)`+visibilityClause("l", vis)+` ORDER BY l.created_at, l.id`, args...)
	if err != nil {
		return links, fmt.Errorf("listing task resource links: %w", err)
	}
	for rows.Next() {
		var l domain.TaskResource
		var audit auditRow
		if err := rows.Scan(append([]any{&l.ID, &l.TaskID, &l.ResourceID, &l.PercentageTime}, audit.dest()...)...); err != nil {
			rows.Close()
			return links, fmt.Errorf("scanning task resource link: %w", err)
		}
		if err := audit.into(&l.Audit); err != nil {
			rows.Close()
			return links, err
		}
		links.Resources = append(links.Resources, &l)
	}
	if err := closeRows(rows); err != nil {
		return links, fmt.Errorf("listing task resource links: %w", err)
	}

	rows, err = r.db.QueryContext(ctx, `SELECT l.id, l.task_id, l.author_id, l.body, l.attachment, `+auditColumns("l")+
		` FROM task_comments l WHERE l.task_id IN (`+in+`)`+visibilityClause("l", vis)+` ORDER BY l.created_at, l.id`, args...)
	if err != nil {
		return links, fmt.Errorf("listing task comments: %w", err)
	}
	for rows.Next() {
		var c domain.TaskComment
		var audit auditRow
		if err := rows.Scan(append([]any{&c.ID, &c.TaskID, &c.AuthorID, &c.Body, &c.Attachment}, audit.dest()...)...); err != nil {
			rows.Close()
			return links, fmt.Errorf("scanning task comment: %w", err)
		}
		if err := audit.into(&c.Audit); err != nil {
			rows.Close()
			return links, err
		}
		links.Comments = append(links.Comments, &c)
	}
	if err := closeRows(rows); err != nil {
		return links, fmt.Errorf("listing task comments: %w", err)
	}
	return links, nil
}

// SetDeletedForTasks tombstones or restores every join record of the given
// tasks.
func (r *SQLiteTaskLinkRepo) SetDeletedForTasks(ctx context.Context, taskIDs []string, deleted bool, by string, now time.Time) error {
	if len(taskIDs) == 0 {
		return nil
	}
	stamp := now.UTC().Format(timeLayout)
	var deletedAt any
	if deleted {
		deletedAt = stamp
	}
	for _, table := range []string{"task_backlogs", "task_resources", "task_comments"} {
		query := `UPDATE ` + table + ` SET is_deleted = ?, deleted_at = ?, updated_by = ?, updated_at = ?,
			version = version + 1 WHERE task_id IN (` + placeholders(len(taskIDs)) + `)`
		args := append([]any{boolToInt(deleted), deletedAt, by, stamp}, stringArgs(taskIDs)...)
		if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
			return translateWriteError("updating "+table+" tombstones", err)
		}
	}
	return nil
}

// DeleteBacklogLinksTo tombstones every link pointing at backlogID.
func (r *SQLiteTaskLinkRepo) DeleteBacklogLinksTo(ctx context.Context, backlogID, by string, now time.Time) error {
	stamp := now.UTC().Format(timeLayout)
	_, err := r.db.ExecContext(ctx, `UPDATE task_backlogs SET is_deleted = 1, deleted_at = ?, updated_by = ?,
		updated_at = ?, version = version + 1 WHERE backlog_id = ? AND is_deleted = 0`, stamp, by, stamp, backlogID)
	if err != nil {
		return translateWriteError("tombstoning backlog links", err)
	}
	return nil
}

func closeRows(rows interface {
	Err() error
	Close() error
}) error {
	err := rows.Err()
	if cerr := rows.Close(); err == nil {
		err = cerr
	}
	return err
}
