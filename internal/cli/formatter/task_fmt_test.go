package formatter

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/alexanderramin/strata/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestFormatTaskList(t *testing.T) {
	start := time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)
	done := &domain.TaskStatus{Name: "Done", FinalStage: true}
	todo := &domain.TaskStatus{Name: "To do"}

	out := FormatTaskList([]TaskRow{
		{Task: &domain.Task{Name: "Epic", OrderIndex: 3}, Status: todo},
		{Task: &domain.Task{Name: "Story", OrderIndex: 1, Started: &start, Deadline: &end}, Label: "3", Depth: 1, Status: done},
	}, time.UTC)

	assert.Contains(t, out, "3 Epic (To do)")
	assert.Contains(t, out, "3.1 Story")
	assert.NotContains(t, out, "(Done)")
	assert.Contains(t, out, "2024-01-02 09:00 → 2024-01-02 10:00")
	assert.Contains(t, FormatTaskList(nil, time.UTC), "No tasks.")
}

func TestFormatConflicts(t *testing.T) {
	proposed := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)
	late := proposed.Add(48 * time.Hour)

	none := FormatConflicts(domain.FieldDeadline, proposed, nil, time.UTC)
	assert.Contains(t, none, "No conflicts")

	some := FormatConflicts(domain.FieldDeadline, proposed, []*domain.Task{{ID: "t1", Name: "Late", Deadline: &late}}, time.UTC)
	assert.Contains(t, some, "1 conflicting tasks")
	assert.Contains(t, some, "DEADLINE")
	assert.Contains(t, some, "2024-01-07 00:00")
}

func TestFormatRecurrence(t *testing.T) {
	assert.Contains(t, FormatRecurrence(nil, 0, false, "task has no deadline", time.UTC), "task has no deadline")

	d := time.Date(2024, 1, 8, 12, 0, 0, 0, time.UTC)
	out := FormatRecurrence([]*domain.Task{{Name: "Standup (1)", Deadline: &d}}, 3, true, "", time.UTC)
	assert.Contains(t, out, "Created 1 occurrences (3 tasks)")
	assert.Contains(t, out, "Standup (1)")
}

func TestFormatError(t *testing.T) {
	err := fmt.Errorf("updating task: %w", domain.Conflict(domain.MsgRebaseInPast, []string{"a", "b"}))
	out := FormatError(err)
	assert.Contains(t, out, "Error: CONFLICT: Can't Rebase In Past")
	assert.Contains(t, out, "conflicts: a, b")

	assert.Contains(t, FormatError(domain.Validation("deadline", "deadline must be after started")), "field: deadline")
	assert.Equal(t, "Error: boom", FormatError(errors.New("boom")))
}
