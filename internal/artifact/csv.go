// Package artifact renders conflict reports and hands them to a file sink.
package artifact

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"
)

// ConflictHeader is the column set of a conflict export.
var ConflictHeader = []string{
	"id", "name", "description", "task_type", "status",
	"started", "deadline", "project", "parent_task",
}

// ConflictRow is one task of a conflict export with its references already
// resolved to display names.
type ConflictRow struct {
	ID          string
	Name        string
	Description string
	TaskType    string
	Status      string
	Started     *time.Time
	Deadline    *time.Time
	Project     string
	ParentTask  string
}

var cellCleaner = strings.NewReplacer("|", ";", "\n", " ", "\r", "")

func cell(s string) string {
	return strings.TrimSpace(cellCleaner.Replace(s))
}

func stamp(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// WriteConflicts writes rows as a pipe-delimited export with a header line.
func WriteConflicts(w io.Writer, rows []ConflictRow) error {
	cw := csv.NewWriter(w)
	cw.Comma = '|'

	if err := cw.Write(ConflictHeader); err != nil {
		return fmt.Errorf("writing conflict header: %w", err)
	}
	for _, r := range rows {
		record := []string{
			cell(r.ID),
			cell(r.Name),
			cell(r.Description),
			cell(r.TaskType),
			cell(r.Status),
			stamp(r.Started),
			stamp(r.Deadline),
			cell(r.Project),
			cell(r.ParentTask),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("writing conflict row %s: %w", r.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
