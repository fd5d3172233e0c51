package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/alexanderramin/strata/internal/domain"
)

// ErrNotFound is wrapped by every lookup that finds no row.
var ErrNotFound = errors.New("not found")

// constraintFields maps SQLite unique-constraint identifiers to the field a
// caller should report. SQLite names expression indexes by index name and
// column indexes by "table.column".
var constraintFields = []struct {
	marker  string
	field   string
	message string
}{
	{"idx_task_statuses_name", "name", "a status with this name already exists at this level"},
	{"idx_task_statuses_final_stage", "final_stage", "only one final stage is allowed at this level"},
	{"idx_task_backlogs_link", "backlog", "task is already linked to this backlog"},
	{"task_backlogs.task_id", "backlog", "task is already linked to this backlog"},
	{"PRIMARY KEY", "id", "identifier already in use"},
	{".id", "id", "identifier already in use"},
}

// translateWriteError turns integrity failures into field-keyed validation
// errors and wraps everything else with the operation name.
func translateWriteError(op string, err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	if strings.Contains(msg, "UNIQUE constraint failed") {
		for _, c := range constraintFields {
			if strings.Contains(msg, c.marker) {
				return domain.Validation(c.field, c.message)
			}
		}
		return domain.Validation("", "duplicate value")
	}
	if strings.Contains(msg, "FOREIGN KEY constraint failed") {
		return domain.Validation("", "referenced row does not exist")
	}
	if strings.Contains(msg, "CHECK constraint failed") && strings.Contains(msg, "order_index") {
		return domain.Validation("order", "order must not be negative")
	}
	return fmt.Errorf("%s: %w", op, err)
}

// notFoundOr maps sql.ErrNoRows to ErrNotFound for the given entity.
func notFoundOr(entity string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", entity, ErrNotFound)
	}
	return fmt.Errorf("scanning %s: %w", entity, err)
}

// expectOneRow turns an optimistic update that touched no row into a stale
// write error.
func expectOneRow(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading affected rows: %w", err)
	}
	if n == 0 {
		return domain.StaleWrite(entity, id)
	}
	return nil
}
