package repository

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/alexanderramin/strata/internal/domain"
)

// timeLayout is used for every stored timestamp. Values are written in UTC
// with fixed-width fractions so stored strings compare chronologically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// maxHierarchyDepth bounds every recursive walk. An ancestor chain that
// reaches it can only be a cycle.
const maxHierarchyDepth = 256

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// parseNullableTime parses a sql.NullString into a *time.Time.
// Returns nil if the value is NULL or empty.
func parseNullableTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := time.Parse(timeLayout, s.String)
	if err != nil {
		return nil, fmt.Errorf("parsing time %q: %w", s.String, err)
	}
	return &t, nil
}

// nullableTime converts a *time.Time to a value suitable for SQLite storage.
func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(timeLayout)
}

// nullableInt converts a *int to a value suitable for SQLite storage.
func nullableInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullIntPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}

func nullStrPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

// boolToInt converts a Go bool to an integer (0 or 1) for SQLite storage.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// intToBool converts a SQLite integer (0 or 1) to a Go bool.
func intToBool(i int) bool {
	return i != 0
}

// auditColumns returns the shared audit column list qualified by alias.
func auditColumns(alias string) string {
	cols := []string{"tenant_id", "is_deleted", "deleted_at", "is_template",
		"created_by", "updated_by", "created_at", "updated_at", "version"}
	for i, c := range cols {
		cols[i] = alias + "." + c
	}
	return strings.Join(cols, ", ")
}

const auditInsertColumns = `tenant_id, is_deleted, deleted_at, is_template,
		created_by, updated_by, created_at, updated_at, version`

const auditInsertPlaceholders = `?, ?, ?, ?, ?, ?, ?, ?, ?`

func auditValues(a *domain.Audit) []any {
	return []any{
		a.TenantID,
		boolToInt(a.Deleted),
		nullableTime(a.DeletedAt),
		boolToInt(a.Template),
		a.CreatedBy,
		a.UpdatedBy,
		a.CreatedAt.UTC().Format(timeLayout),
		a.UpdatedAt.UTC().Format(timeLayout),
		a.Version,
	}
}

// auditRow holds the raw audit columns of a scanned row.
type auditRow struct {
	tenantID  string
	deleted   int
	deletedAt sql.NullString
	template  int
	createdBy string
	updatedBy string
	createdAt string
	updatedAt string
	version   int
}

func (r *auditRow) dest() []any {
	return []any{&r.tenantID, &r.deleted, &r.deletedAt, &r.template,
		&r.createdBy, &r.updatedBy, &r.createdAt, &r.updatedAt, &r.version}
}

func (r *auditRow) into(a *domain.Audit) error {
	var err error
	a.TenantID = r.tenantID
	a.Deleted = intToBool(r.deleted)
	a.Template = intToBool(r.template)
	a.CreatedBy = r.createdBy
	a.UpdatedBy = r.updatedBy
	a.Version = r.version
	if a.DeletedAt, err = parseNullableTime(r.deletedAt); err != nil {
		return err
	}
	if a.CreatedAt, err = time.Parse(timeLayout, r.createdAt); err != nil {
		return fmt.Errorf("parsing created_at: %w", err)
	}
	if a.UpdatedAt, err = time.Parse(timeLayout, r.updatedAt); err != nil {
		return fmt.Errorf("parsing updated_at: %w", err)
	}
	return nil
}

// visibilityClause returns the tombstone/template filter for alias.
func visibilityClause(alias string, vis domain.Visibility) string {
	var b strings.Builder
	if !vis.IncludeDeleted {
		b.WriteString(" AND " + alias + ".is_deleted = 0")
	}
	if !vis.IncludeTemplates {
		b.WriteString(" AND " + alias + ".is_template = 0")
	}
	return b.String()
}

// placeholders returns "?, ?, ..." with n entries.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func stringArgs(ids []string) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}

// likeEscape escapes LIKE wildcards so a search term is matched literally.
func likeEscape(term string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(term)
}

// bumpVersion applies the post-write state of an optimistic update.
func bumpVersion(a *domain.Audit, by string, now time.Time) {
	a.Version++
	a.UpdatedBy = by
	a.UpdatedAt = now
}
