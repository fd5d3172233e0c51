package formatter

import (
	"fmt"
	"strings"
	"time"

	"github.com/alexanderramin/strata/internal/domain"
)

// TaskRow is one entry of an ordered task listing. Status carries the
// resolved status so the row can be coloured; it may be nil.
type TaskRow struct {
	Task   *domain.Task
	Label  string
	Depth  int
	Status *domain.TaskStatus
}

// FormatTaskList renders tasks as a tree with their schedule as a badge.
func FormatTaskList(rows []TaskRow, loc *time.Location) string {
	if len(rows) == 0 {
		return Dim("No tasks.") + "\n"
	}
	items := make([]TreeItem, 0, len(rows))
	for _, r := range rows {
		t := r.Task
		title := t.Name
		final := false
		if r.Status != nil {
			final = r.Status.FinalStage
			if !final {
				title += " " + StatusStyle(r.Status.Name, false).Render("("+r.Status.Name+")")
			}
		}
		if t.Milestone {
			title = StylePurple.Render("◆ ") + title
		}
		var detail string
		if t.Started != nil || t.Deadline != nil {
			detail = Span(t.Started, t.Deadline, loc)
		}
		items = append(items, TreeItem{
			Label:  Position(r.Label, t.OrderIndex),
			Title:  title,
			Level:  r.Depth,
			Final:  final,
			Detail: detail,
		})
	}
	MarkLast(items)
	return RenderTree(items)
}

// FormatTask renders a task card. label is the task's full position.
func FormatTask(t *domain.Task, label string, loc *time.Location) string {
	var b strings.Builder
	b.WriteString(StyleBold.Render(t.Name) + "  " + Dim("#"+label) + "\n\n")
	field := func(name, value string) {
		fmt.Fprintf(&b, "%s  %s\n", StyleDim.Render(fmt.Sprintf("%-10s", name)), value)
	}
	field("ID", t.ID)
	field("STARTED", Stamp(t.Started, loc))
	field("DEADLINE", Stamp(t.Deadline, loc))
	if t.DurationEstimate != nil {
		field("ESTIMATE", fmt.Sprintf("%d %s", *t.DurationEstimate, t.DurationUnit))
	}
	if t.ParentID != nil {
		field("PARENT", TruncID(*t.ParentID))
	}
	if t.DependencyID != nil {
		field("DEPENDS", TruncID(*t.DependencyID))
	}
	if t.PredecessorID != nil {
		field("AFTER", TruncID(*t.PredecessorID))
	}
	if t.RecurrenceRule != "" {
		field("REPEATS", StyleBlue.Render(t.RecurrenceRule))
	}
	if t.Description != "" {
		b.WriteString("\n" + t.Description + "\n")
	}
	return RenderBox("", strings.TrimRight(b.String(), "\n"))
}

// FormatShifted lists tasks whose schedule moved.
func FormatShifted(title string, tasks []*domain.Task, loc *time.Location) string {
	if len(tasks) == 0 {
		return Dim("No tasks moved.") + "\n"
	}
	rows := make([][]string, 0, len(tasks))
	for _, t := range tasks {
		rows = append(rows, []string{TruncID(t.ID), t.Name, Stamp(t.Started, loc), Stamp(t.Deadline, loc)})
	}
	return Header(title) + "\n" + RenderTable([]string{"ID", "NAME", "STARTED", "DEADLINE"}, rows)
}

// FormatConflicts lists descendants that would fall outside a proposed date.
func FormatConflicts(field domain.DateField, proposed time.Time, tasks []*domain.Task, loc *time.Location) string {
	if len(tasks) == 0 {
		return StyleGreen.Render("✔ No conflicts") + Dim(fmt.Sprintf(" for %s %s", field, Stamp(&proposed, loc))) + "\n"
	}
	rows := make([][]string, 0, len(tasks))
	for _, t := range tasks {
		rows = append(rows, []string{TruncID(t.ID), t.Name, StyleRed.Render(Stamp(t.DateOf(field), loc))})
	}
	head := StyleRedBold.Render(fmt.Sprintf("%d conflicting tasks", len(tasks))) +
		Dim(fmt.Sprintf(" for %s %s", field, Stamp(&proposed, loc)))
	return head + "\n" + RenderTable([]string{"ID", "NAME", strings.ToUpper(string(field))}, rows)
}

// FormatRecurrence summarises an expansion. Instances are the top-level
// copies; subtasks are listed under the count.
func FormatRecurrence(instances []*domain.Task, total int, committed bool, skipped string, loc *time.Location) string {
	if skipped != "" {
		return Dim("Nothing generated: "+skipped) + "\n"
	}
	verb := "Would create"
	if committed {
		verb = "Created"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s %d occurrences (%d tasks)\n", verb, len(instances), total)
	for _, t := range instances {
		fmt.Fprintf(&b, "  %s  %s\n", t.Name, Span(t.Started, t.Deadline, loc))
	}
	return b.String()
}
