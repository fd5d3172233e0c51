package cli

import (
	"context"
	"fmt"

	"github.com/alexanderramin/strata/internal/cli/formatter"
	"github.com/alexanderramin/strata/internal/domain"
	"github.com/alexanderramin/strata/internal/service"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

func newTaskCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Manage tasks",
	}

	cmd.AddCommand(
		newTaskAddCmd(app),
		newTaskUpdateCmd(app),
		newTaskShowCmd(app),
		newTaskMoveCmd(app),
		newTaskRescheduleCmd(app),
		newTaskConflictsCmd(app),
		newTaskRepeatCmd(app),
		newTaskDuplicateCmd(app),
		newTaskDeleteCmd(app),
		newTaskRestoreCmd(app),
		newTaskListCmd(app),
		newTaskLabelCmd(app),
	)

	return cmd
}

// taskFlags are the editable task fields shared by add and update.
type taskFlags struct {
	name, description, notes            string
	parent, dependency, predecessor     string
	status, taskType, hlr               string
	start, deadline, unit, rule, anchor string
	estimate, order                     int
	milestone, rebase                   bool
}

func (f *taskFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.name, "name", "", "Task name")
	fs.StringVar(&f.description, "description", "", "Task description")
	fs.StringVar(&f.notes, "notes", "", "Free-form notes")
	fs.StringVar(&f.parent, "parent", "", "Parent task ID")
	fs.StringVar(&f.dependency, "dependency", "", "Task that must finish before this one starts")
	fs.StringVar(&f.predecessor, "predecessor", "", "Task pushed to start at this task's deadline")
	fs.StringVar(&f.status, "status", "", "Status name or ID")
	fs.StringVar(&f.taskType, "type", "", "Task type ID")
	fs.StringVar(&f.hlr, "hlr", "", "High-level requirement ID")
	fs.StringVar(&f.start, "start", "", "Start (YYYY-MM-DD, YYYY-MM-DDTHH:MM or RFC 3339)")
	fs.StringVar(&f.deadline, "deadline", "", "Deadline")
	fs.StringVar(&f.unit, "unit", "", "Estimate unit: Weeks, Days, Hours or Minutes")
	fs.StringVar(&f.rule, "rule", "", "RFC 5545 recurrence rule, e.g. FREQ=WEEKLY;COUNT=4")
	fs.StringVar(&f.anchor, "anchor", "", "Date the recurrence rule starts from: started or deadline")
	fs.IntVar(&f.estimate, "estimate", 0, "Duration estimate in --unit")
	fs.IntVar(&f.order, "order", 0, "Position among siblings (0 appends)")
	fs.BoolVar(&f.milestone, "milestone", false, "Mark as a milestone")
	fs.BoolVar(&f.rebase, "rebase", false, "Shift siblings at --order and after down by one")
}

// apply copies every flag that was set onto t.
func (f *taskFlags) apply(ctx context.Context, app *App, fs *pflag.FlagSet, t *domain.Task) error {
	set := fs.Changed
	if set("name") {
		t.Name = f.name
	}
	if set("description") {
		t.Description = f.description
	}
	if set("notes") {
		t.Notes = f.notes
	}
	if set("parent") {
		t.ParentID = domain.StrPtr(f.parent)
	}
	if set("dependency") {
		t.DependencyID = domain.StrPtr(f.dependency)
	}
	if set("predecessor") {
		t.PredecessorID = domain.StrPtr(f.predecessor)
	}
	if set("type") {
		t.TaskTypeID = domain.StrPtr(f.taskType)
	}
	if set("hlr") {
		t.HLRID = domain.StrPtr(f.hlr)
	}
	if set("status") {
		id, err := resolveStatusID(ctx, app, t.ProjectID, f.status)
		if err != nil {
			return err
		}
		t.StatusID = id
	}
	if set("start") {
		started, err := app.parseTimePtr(f.start)
		if err != nil {
			return err
		}
		t.Started = started
	}
	if set("deadline") {
		deadline, err := app.parseTimePtr(f.deadline)
		if err != nil {
			return err
		}
		t.Deadline = deadline
	}
	if set("estimate") {
		est := f.estimate
		t.DurationEstimate = &est
	}
	if set("unit") {
		t.DurationUnit = domain.DurationUnit(f.unit)
	}
	if set("rule") {
		t.RecurrenceRule = f.rule
	}
	if set("milestone") {
		t.Milestone = f.milestone
	}
	if set("order") {
		t.OrderIndex = f.order
	}
	return nil
}

func newTaskAddCmd(app *App) *cobra.Command {
	var f taskFlags
	var projectRef string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a task",
		Long: "Create a task. Duplicate names under the same parent get a \" (N)\" suffix.\n" +
			"A task with --rule immediately expands into its next occurrences.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := app.context(cmd)
			projectID, err := resolveProjectID(ctx, app, projectRef)
			if err != nil {
				return err
			}
			t := &domain.Task{ProjectID: projectID}
			t.TenantID = app.Tenant
			if err := f.apply(ctx, app, cmd.Flags(), t); err != nil {
				return err
			}

			res, err := app.Tasks.Create(ctx, t, service.CreateTaskOptions{
				Timezone:    app.Location.String(),
				Anchor:      domain.DateField(f.anchor),
				RebaseOrder: f.rebase,
			})
			if err != nil {
				return err
			}
			printWriteResult(cmd, app, "Created", res)
			return nil
		},
	}

	f.register(cmd.Flags())
	cmd.Flags().StringVar(&projectRef, "project", "", "Project ID or prefix")
	_ = cmd.MarkFlagRequired("project")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func newTaskUpdateCmd(app *App) *cobra.Command {
	var f taskFlags
	var cascade bool

	cmd := &cobra.Command{
		Use:   "update ID",
		Short: "Change a task",
		Long: "Change a task. Only the flags given are applied; pass an empty value to\n" +
			"clear a reference. Moving a date past a subtask is a conflict unless\n" +
			"--cascade shifts the whole branch.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := app.context(cmd)
			update := func(shift bool) (*service.TaskWriteResult, error) {
				t, err := app.Tasks.GetByID(ctx, args[0])
				if err != nil {
					return nil, err
				}
				if err := f.apply(ctx, app, cmd.Flags(), t); err != nil {
					return nil, err
				}
				return app.Tasks.Update(ctx, t, service.UpdateTaskOptions{
					Timezone:     app.Location.String(),
					Anchor:       domain.DateField(f.anchor),
					CascadeDates: shift,
					RebaseOrder:  f.rebase,
				})
			}

			res, err := update(cascade)
			if err != nil && !cascade && app.confirmCascade(err) {
				res, err = update(true)
			}
			if err != nil {
				return err
			}
			printWriteResult(cmd, app, "Updated", res)
			return nil
		},
	}

	f.register(cmd.Flags())
	cmd.Flags().BoolVar(&cascade, "cascade", false, "Shift subtasks with a moved date instead of failing")

	return cmd
}

func printWriteResult(cmd *cobra.Command, app *App, verb string, res *service.TaskWriteResult) {
	out := cmd.OutOrStdout()
	t := res.Task
	fmt.Fprintf(out, "%s task %s [%s]\n", verb, t.Name, t.ID)
	if res.Reordered > 0 {
		fmt.Fprintf(out, "  %d siblings moved down\n", res.Reordered)
	}
	if len(res.Rescheduled) > 0 {
		fmt.Fprint(out, formatter.FormatShifted("Shifted subtasks", res.Rescheduled, app.Location))
	}
	if p := res.Predecessor; p != nil {
		fmt.Fprintf(out, "  predecessor %s now %s\n", p.Name, formatter.Span(p.Started, p.Deadline, app.Location))
	}
	if r := res.Recurrence; r != nil {
		fmt.Fprint(out, formatter.FormatRecurrence(topLevel(r.Tasks, t.ID), len(r.Tasks), r.Committed, r.Skipped, app.Location))
	}
}

// topLevel keeps the occurrences generated under seedID and drops their
// cloned subtasks.
func topLevel(tasks []*domain.Task, seedID string) []*domain.Task {
	var out []*domain.Task
	for _, t := range tasks {
		if domain.StrVal(t.ParentID) == seedID {
			out = append(out, t)
		}
	}
	return out
}

func newTaskShowCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show task details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := app.context(cmd)
			t, err := app.Tasks.GetByID(ctx, args[0])
			if err != nil {
				return err
			}
			label, err := app.TaskTree.FullOrderLabel(ctx, t.ID)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), formatter.FormatTask(t, formatter.Position(label, t.OrderIndex), app.Location))
			return nil
		},
	}
}

func newTaskMoveCmd(app *App) *cobra.Command {
	var order int

	cmd := &cobra.Command{
		Use:   "move ID",
		Short: "Place a task at a position among its siblings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := app.context(cmd)
			if err := app.TaskTree.Rebase(ctx, args[0], order); err != nil {
				return err
			}
			label, err := app.TaskTree.FullOrderLabel(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Moved task to %s\n", formatter.Position(label, order))
			return nil
		},
	}

	cmd.Flags().IntVar(&order, "to", 0, "Target position")
	_ = cmd.MarkFlagRequired("to")

	return cmd
}

func newTaskRescheduleCmd(app *App) *cobra.Command {
	var field, to string
	var cascade bool

	cmd := &cobra.Command{
		Use:   "reschedule ID",
		Short: "Move a task's start or deadline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			proposed, err := app.parseTime(to)
			if err != nil {
				return err
			}
			req := service.RescheduleRequest{
				TaskID:   args[0],
				Field:    domain.DateField(field),
				Proposed: proposed,
				Cascade:  cascade,
			}
			t, err := app.Schedule.RescheduleTask(app.context(cmd), req)
			if err != nil && !cascade && app.confirmCascade(err) {
				req.Cascade = true
				t, err = app.Schedule.RescheduleTask(app.context(cmd), req)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Rescheduled %s: %s\n", t.Name, formatter.Span(t.Started, t.Deadline, app.Location))
			return nil
		},
	}

	cmd.Flags().StringVar(&field, "field", string(domain.FieldDeadline), "Date to move: started or deadline")
	cmd.Flags().StringVar(&to, "to", "", "New value")
	cmd.Flags().BoolVar(&cascade, "cascade", false, "Shift subtasks by the same delta")
	_ = cmd.MarkFlagRequired("to")

	return cmd
}

func newTaskConflictsCmd(app *App) *cobra.Command {
	var field, to string
	var export bool

	cmd := &cobra.Command{
		Use:   "conflicts ID",
		Short: "List subtasks a proposed date would violate",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := app.context(cmd)
			proposed, err := app.parseTime(to)
			if err != nil {
				return err
			}
			which := domain.DateField(field)
			conflicts, err := app.Schedule.DetectDescendantDateConflicts(ctx, args[0], proposed, which)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprint(out, formatter.FormatConflicts(which, proposed, conflicts, app.Location))
			if !export || len(conflicts) == 0 {
				return nil
			}
			ids := make([]string, len(conflicts))
			for i, c := range conflicts {
				ids[i] = c.ID
			}
			loc, err := app.Tasks.ExportConflicts(ctx, ids)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Exported to %s\n", loc)
			return nil
		},
	}

	cmd.Flags().StringVar(&field, "field", string(domain.FieldDeadline), "Date to test: started or deadline")
	cmd.Flags().StringVar(&to, "to", "", "Proposed value")
	cmd.Flags().BoolVar(&export, "export", false, "Write the conflicts to the artifact store")
	_ = cmd.MarkFlagRequired("to")

	return cmd
}

func newTaskRepeatCmd(app *App) *cobra.Command {
	var anchor string
	var commit bool
	var maxCount int

	cmd := &cobra.Command{
		Use:   "repeat ID",
		Short: "Expand a task's recurrence rule into occurrences under it",
		Long: "Expand a task's recurrence rule into occurrences under it, each with a copy\n" +
			"of the task's subtasks. Without --commit the occurrences are only previewed.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := app.context(cmd)
			seed, err := app.Tasks.GetByID(ctx, args[0])
			if err != nil {
				return err
			}
			res, err := app.Recurrence.GenerateRecurringInstances(ctx, service.RecurrenceRequest{
				SeedID:   seed.ID,
				Timezone: app.Location.String(),
				Anchor:   domain.DateField(anchor),
				Commit:   commit,
				MaxCount: maxCount,
			})
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), formatter.FormatRecurrence(
				topLevel(res.Tasks, seed.ID), len(res.Tasks), res.Committed, res.Skipped, app.Location))
			return nil
		},
	}

	cmd.Flags().StringVar(&anchor, "anchor", "", "Date the rule starts from: started or deadline (default deadline)")
	cmd.Flags().BoolVar(&commit, "commit", false, "Save the occurrences")
	cmd.Flags().IntVar(&maxCount, "max", 0, "Cap on occurrences (0 uses the configured cap)")

	return cmd
}

func newTaskDuplicateCmd(app *App) *cobra.Command {
	var name string
	var order int
	var subtasks, comments, rebase bool

	cmd := &cobra.Command{
		Use:   "duplicate ID",
		Short: "Copy a task next to the original",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := service.DuplicateTaskOptions{
				Name:          name,
				CloneSubTasks: subtasks,
				Comments:      comments,
				Rebase:        rebase,
			}
			if cmd.Flags().Changed("order") {
				opts.Order = &order
			}
			res, err := app.Clones.DuplicateTask(app.context(cmd), args[0], opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created task %s [%s] with %d tasks and %d links\n",
				res.Root.Name, res.Root.ID, len(res.Tasks), res.Links.Len())
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Name of the copy (defaults to a numbered source name)")
	cmd.Flags().IntVar(&order, "order", 0, "Position of the copy")
	cmd.Flags().BoolVar(&subtasks, "subtasks", false, "Copy the task's subtasks too")
	cmd.Flags().BoolVar(&comments, "comments", false, "Copy comments")
	cmd.Flags().BoolVar(&rebase, "rebase", false, "Shift siblings at --order and after down by one")

	return cmd
}

func newTaskDeleteCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Tombstone a task and its subtasks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.Tasks.Delete(app.context(cmd), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted task %s\n", args[0])
			return nil
		},
	}
}

func newTaskRestoreCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "restore ID",
		Short: "Restore a tombstoned task and its subtasks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.Tasks.Restore(app.context(cmd), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Restored task %s\n", args[0])
			return nil
		},
	}
}

func newTaskListCmd(app *App) *cobra.Command {
	var projectRef, parent, search string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List a project's tasks in outline order",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := app.context(cmd)
			projectID, err := resolveProjectID(ctx, app, projectRef)
			if err != nil {
				return err
			}
			listed, err := app.Tasks.ListOrdered(ctx, app.Tenant, projectID, domain.StrPtr(parent), search)
			if err != nil {
				return err
			}
			statuses, err := app.Statuses.ListOrdered(ctx, app.Tenant, projectID, "")
			if err != nil {
				return err
			}
			byID := make(map[string]*domain.TaskStatus, len(statuses))
			for _, s := range statuses {
				byID[s.Node.ID] = s.Node
			}

			rows := make([]formatter.TaskRow, 0, len(listed))
			for _, l := range listed {
				row := formatter.TaskRow{Task: l.Node, Label: l.Label, Depth: l.Depth}
				if l.Node.StatusID != nil {
					row.Status = byID[*l.Node.StatusID]
				}
				rows = append(rows, row)
			}
			fmt.Fprint(cmd.OutOrStdout(), formatter.FormatTaskList(rows, app.Location))
			return nil
		},
	}

	cmd.Flags().StringVar(&projectRef, "project", "", "Project ID or prefix")
	cmd.Flags().StringVar(&parent, "parent", "", "Only the branch under this task")
	cmd.Flags().StringVar(&search, "search", "", "Only tasks whose name contains this text")
	_ = cmd.MarkFlagRequired("project")

	return cmd
}

func newTaskLabelCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "label ID",
		Short: "Print the dotted order label of a task's ancestors",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			label, err := app.TaskTree.FullOrderLabel(app.context(cmd), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), label)
			return nil
		},
	}
}
