package service

import (
	"context"
	"strings"
	"testing"

	"github.com/alexanderramin/strata/internal/artifact"
	"github.com/alexanderramin/strata/internal/domain"
	"github.com/alexanderramin/strata/internal/testutil"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seededProject creates a project through the project service so it owns
// the default statuses and task types.
func seededProject(t *testing.T, env *testEnv, ctx context.Context) *domain.Project {
	t.Helper()
	p := &domain.Project{Name: "Seeded", Started: ptrTime(testutil.Day0)}
	p.TenantID = testutil.TestTenant
	require.NoError(t, NewProjectService(env.projects, env.catalog, env.uow).Create(ctx, p))
	return p
}

func newTask(projectID, name string, opts ...testutil.TaskOption) *domain.Task {
	t := testutil.NewTestTask(projectID, name, opts...)
	t.ID = ""
	return t
}

func TestCreateTask_Defaults(t *testing.T) {
	env, ctx := setupEnv(t)
	p := seededProject(t, env, ctx)
	svc := env.taskService()

	first, err := svc.Create(ctx, newTask(p.ID, "Plan"), CreateTaskOptions{})
	require.NoError(t, err)
	second, err := svc.Create(ctx, newTask(p.ID, "Plan"), CreateTaskOptions{})
	require.NoError(t, err)

	assert.NotEmpty(t, first.Task.ID)
	assert.Equal(t, "Plan", first.Task.Name)
	assert.Equal(t, "Plan (1)", second.Task.Name)
	assert.Equal(t, 1, first.Task.OrderIndex)
	assert.Equal(t, 2, second.Task.OrderIndex)

	got := env.reload(t, first.Task.ID)
	require.NotNil(t, got.StatusID)
	status, err := env.statuses.GetByID(context.Background(), *got.StatusID, domain.Live)
	require.NoError(t, err)
	assert.Equal(t, "To do", status.Name)
	assert.NotNil(t, got.StatusAssignedAt)
	assert.Equal(t, testutil.TestUser, got.CreatedBy)
}

func TestCreateTask_ReferenceChecks(t *testing.T) {
	env, ctx := setupEnv(t)
	other := testutil.NewTestProject("Elsewhere")
	require.NoError(t, env.projects.Create(context.Background(), other))
	foreign := testutil.NewTestTask(other.ID, "Foreign")
	require.NoError(t, env.tasks.Create(context.Background(), foreign))
	svc := env.taskService()

	tests := []struct {
		name  string
		opt   testutil.TaskOption
		field string
	}{
		{"missing parent", testutil.WithParent("missing"), "parent"},
		{"parent in another project", testutil.WithParent(foreign.ID), "parent"},
		{"missing dependency", testutil.WithDependency("missing"), "dependency"},
		{"missing predecessor", testutil.WithPredecessor("missing"), "predecessor"},
		{"missing status", testutil.WithStatus("missing"), "status"},
		{"missing hlr", testutil.WithHLR("missing"), "hlr"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, newTask(env.project.ID, "Task", tt.opt), CreateTaskOptions{})
			require.Error(t, err)
			assert.True(t, domain.IsCode(err, domain.CodeNotFound), err.Error())
			assert.Equal(t, tt.field, domain.FieldOf(err))
		})
	}
}

func TestCreateTask_DateRules(t *testing.T) {
	env, ctx := setupEnv(t)
	dep := env.addTask(t, "Dependency", testutil.WithDates(testutil.At(1, 0), testutil.At(3, 0)))
	svc := env.taskService()

	tests := []struct {
		name  string
		opts  []testutil.TaskOption
		field string
	}{
		{"deadline before start", []testutil.TaskOption{testutil.WithDates(testutil.At(2, 0), testutil.At(1, 0))}, "deadline"},
		{"before project start", []testutil.TaskOption{testutil.WithDates(testutil.At(-1, 0), testutil.At(1, 0))}, "started"},
		{"before dependency deadline", []testutil.TaskOption{
			testutil.WithDates(testutil.At(2, 0), testutil.At(4, 0)),
			testutil.WithDependency(dep.ID),
		}, "started"},
		{"bad duration unit", []testutil.TaskOption{testutil.WithEstimate(3, "Fortnights")}, "duration_unit"},
		{"bad rule", []testutil.TaskOption{testutil.WithRule("FREQ=SOMETIMES")}, "recurrence_rule"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, newTask(env.project.ID, "Task", tt.opts...), CreateTaskOptions{})
			require.Error(t, err)
			assert.True(t, domain.IsCode(err, domain.CodeValidation), err.Error())
			assert.Equal(t, tt.field, domain.FieldOf(err))
		})
	}

	ok, err := svc.Create(ctx, newTask(env.project.ID, "After dependency",
		testutil.WithDates(testutil.At(3, 0), testutil.At(4, 0)), testutil.WithDependency(dep.ID)), CreateTaskOptions{})
	require.NoError(t, err)
	assert.Equal(t, dep.ID, *ok.Task.DependencyID)
}

func TestCreateTask_RebaseOrder(t *testing.T) {
	env, ctx := setupEnv(t)
	a := env.addTask(t, "A", testutil.WithOrder(1))
	b := env.addTask(t, "B", testutil.WithOrder(2))

	res, err := env.taskService().Create(ctx, newTask(env.project.ID, "C", testutil.WithOrder(1)), CreateTaskOptions{RebaseOrder: true})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Reordered)
	assert.Equal(t, 1, env.reload(t, res.Task.ID).OrderIndex)
	assert.Equal(t, 2, env.reload(t, a.ID).OrderIndex)
	assert.Equal(t, 3, env.reload(t, b.ID).OrderIndex)
}

func TestCreateTask_PushesPredecessor(t *testing.T) {
	env, ctx := setupEnv(t)
	pred := env.addTask(t, "Deploy", testutil.WithDates(testutil.At(1, 0), testutil.At(2, 0)))

	res, err := env.taskService().Create(ctx, newTask(env.project.ID, "Build",
		testutil.WithDates(testutil.At(3, 0), testutil.At(5, 0)),
		testutil.WithPredecessor(pred.ID)), CreateTaskOptions{})
	require.NoError(t, err)
	require.NotNil(t, res.Predecessor)

	got := env.reload(t, pred.ID)
	require.NotNil(t, got.DependencyID)
	assert.Equal(t, res.Task.ID, *got.DependencyID)
	assert.True(t, testutil.At(5, 0).Equal(*got.Started))
	assert.True(t, testutil.At(6, 0).Equal(*got.Deadline))
}

func TestCreateTask_TriggersRecurrence(t *testing.T) {
	env, ctx := setupEnv(t)

	res, err := env.taskService().Create(ctx, newTask(env.project.ID, "Retro",
		testutil.WithDates(testutil.At(0, 10), testutil.At(0, 12)),
		testutil.WithRule("FREQ=WEEKLY;COUNT=4")), CreateTaskOptions{})
	require.NoError(t, err)
	require.NotNil(t, res.Recurrence)
	assert.Equal(t, 3, res.Recurrence.Instances)

	branch, err := env.tasks.Branch(context.Background(), res.Task.ID, domain.Live)
	require.NoError(t, err)
	assert.Equal(t, []string{"[1] Retro", "[2] Retro", "[3] Retro"}, namesOf(branch))
}

func TestUpdateTask_RejectsParentCycle(t *testing.T) {
	env, ctx := setupEnv(t)
	a := env.addTask(t, "A")
	b := env.addTask(t, "B", testutil.WithParent(a.ID))
	c := env.addTask(t, "C", testutil.WithParent(b.ID))

	a.ParentID = &c.ID
	_, err := env.taskService().Update(ctx, a, UpdateTaskOptions{})
	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.CodeCycle))
	assert.Equal(t, "parent", domain.FieldOf(err))
}

func TestUpdateTask_DependencyCycle(t *testing.T) {
	env, ctx := setupEnv(t)
	a := env.addTask(t, "A")
	b := env.addTask(t, "B", testutil.WithDependency(a.ID))

	a.DependencyID = &b.ID
	_, err := env.taskService().Update(ctx, a, UpdateTaskOptions{})
	assert.True(t, domain.IsCode(err, domain.CodeCycle))
	assert.Equal(t, "dependency", domain.FieldOf(err))
}

func TestUpdateTask_DateMoveConflictsOrCascades(t *testing.T) {
	env, ctx := setupEnv(t)
	root := env.addTask(t, "Root", testutil.WithDates(testutil.At(1, 0), testutil.At(10, 0)))
	child := env.addTask(t, "Child", testutil.WithParent(root.ID), testutil.WithDates(testutil.At(2, 0), testutil.At(9, 0)))
	svc := env.taskService()

	moved := env.reload(t, root.ID)
	moved.Deadline = ptrTime(testutil.At(8, 0))
	_, err := svc.Update(ctx, moved, UpdateTaskOptions{})
	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.CodeConflict))
	assert.Equal(t, []string{child.ID}, domain.ConflictIDsOf(err))

	moved = env.reload(t, root.ID)
	moved.Deadline = ptrTime(testutil.At(8, 0))
	res, err := svc.Update(ctx, moved, UpdateTaskOptions{CascadeDates: true})
	require.NoError(t, err)
	assert.Len(t, res.Rescheduled, 1)

	got := env.reload(t, child.ID)
	assert.True(t, testutil.At(0, 0).Equal(*got.Started))
	assert.True(t, testutil.At(7, 0).Equal(*got.Deadline))
	assert.True(t, testutil.At(8, 0).Equal(*env.reload(t, root.ID).Deadline))
}

func TestUpdateTask_StatusChangeRestamps(t *testing.T) {
	env, ctx := setupEnv(t)
	p := seededProject(t, env, ctx)
	svc := env.taskService()
	res, err := svc.Create(ctx, newTask(p.ID, "Ticket"), CreateTaskOptions{})
	require.NoError(t, err)
	before := *env.reload(t, res.Task.ID).StatusAssignedAt

	statuses, err := env.statuses.ListByProject(context.Background(), testutil.TestTenant, p.ID, domain.Live)
	require.NoError(t, err)
	var done *domain.TaskStatus
	for _, st := range statuses {
		if st.Name == domain.DefaultFinalStatus {
			done = st
		}
	}
	require.NotNil(t, done)

	cur := env.reload(t, res.Task.ID)
	cur.Notes = "renamed only"
	_, err = svc.Update(ctx, cur, UpdateTaskOptions{})
	require.NoError(t, err)
	assert.True(t, before.Equal(*env.reload(t, res.Task.ID).StatusAssignedAt))

	cur = env.reload(t, res.Task.ID)
	cur.StatusID = &done.ID
	_, err = svc.Update(ctx, cur, UpdateTaskOptions{})
	require.NoError(t, err)
	got := env.reload(t, res.Task.ID)
	assert.Equal(t, done.ID, *got.StatusID)
	assert.False(t, got.StatusAssignedAt.Before(before))
}

func TestUpdateTask_StaleVersion(t *testing.T) {
	env, ctx := setupEnv(t)
	task := env.addTask(t, "Shared")
	svc := env.taskService()

	first := env.reload(t, task.ID)
	second := env.reload(t, task.ID)
	first.Notes = "mine"
	_, err := svc.Update(ctx, first, UpdateTaskOptions{})
	require.NoError(t, err)

	second.Notes = "theirs"
	_, err = svc.Update(ctx, second, UpdateTaskOptions{})
	assert.True(t, domain.IsCode(err, domain.CodeStaleWrite))
}

func TestDeleteAndRestoreTask_CascadeBranchAndLinks(t *testing.T) {
	env, ctx := setupEnv(t)
	root := env.addTask(t, "Root")
	child := env.addTask(t, "Child", testutil.WithParent(root.ID))
	h := testutil.NewTestHLR(env.project.ID, "Scope")
	require.NoError(t, env.catalog.CreateHLR(context.Background(), h))
	story := testutil.NewTestBacklog(h.ID, "Story", 1)
	require.NoError(t, env.backlogs.Create(context.Background(), story))
	require.NoError(t, env.links.CreateBacklogLink(context.Background(), testutil.NewTestBacklogLink(child.ID, story.ID)))
	svc := env.taskService()

	require.NoError(t, svc.Delete(ctx, root.ID))
	assert.True(t, env.reload(t, root.ID).Deleted)
	assert.True(t, env.reload(t, child.ID).Deleted)
	links, err := env.links.ListForTasks(context.Background(), []string{child.ID}, domain.Live)
	require.NoError(t, err)
	assert.Zero(t, links.Len())

	err = svc.Restore(ctx, child.ID)
	assert.True(t, domain.IsCode(err, domain.CodeValidation), "child can't come back before its parent")

	require.NoError(t, svc.Restore(ctx, root.ID))
	assert.False(t, env.reload(t, root.ID).Deleted)
	assert.False(t, env.reload(t, child.ID).Deleted)
	links, err = env.links.ListForTasks(context.Background(), []string{child.ID}, domain.Live)
	require.NoError(t, err)
	assert.Equal(t, 1, links.Len())
}

func TestListTasksOrdered_UnderParentKeepsProjectLabels(t *testing.T) {
	env, ctx := setupEnv(t)
	root := env.addTask(t, "Root", testutil.WithOrder(3))
	mid := env.addTask(t, "Mid", testutil.WithParent(root.ID), testutil.WithOrder(2))
	env.addTask(t, "Leaf", testutil.WithParent(mid.ID), testutil.WithOrder(1))

	rows, err := env.taskService().ListOrdered(ctx, testutil.TestTenant, env.project.ID, &root.ID, "")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Mid", rows[0].Node.Name)
	assert.Equal(t, "3", rows[0].Label)
	assert.Equal(t, "Leaf", rows[1].Node.Name)
	assert.Equal(t, "3.2", rows[1].Label)

	all, err := env.taskService().ListOrdered(ctx, testutil.TestTenant, env.project.ID, nil, "leaf")
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "3.2", all[0].Label)
}

func TestExportConflicts_WritesNamedReport(t *testing.T) {
	env, ctx := setupEnv(t)
	p := seededProject(t, env, ctx)
	fs := afero.NewMemMapFs()
	deps := TaskServiceDeps{
		Projects: env.projects,
		Statuses: env.statuses,
		Catalog:  env.catalog,
		Tasks:    env.tasks,
		Sink:     artifact.NewFSSink(fs, "/exports"),
		UoW:      env.uow,
	}
	svc := NewTaskService(deps)

	parent, err := svc.Create(ctx, newTask(p.ID, "Parent"), CreateTaskOptions{})
	require.NoError(t, err)
	child := newTask(p.ID, "Child", testutil.WithParent(parent.Task.ID), testutil.WithDates(testutil.At(1, 0), testutil.At(2, 0)))
	child.Description = "line one\nline | two"
	created, err := svc.Create(ctx, child, CreateTaskOptions{})
	require.NoError(t, err)

	loc, err := svc.ExportConflicts(ctx, []string{created.Task.ID})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(loc, "/exports/conflict-tasks-"))

	data, err := afero.ReadFile(fs, loc)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, strings.Join(artifact.ConflictHeader, "|"), lines[0])
	assert.Equal(t, created.Task.ID+"|Child|line one line ; two||To do|2024-01-02T00:00:00Z|2024-01-03T00:00:00Z|Seeded|Parent", lines[1])
}

func TestExportConflicts_NeedsSink(t *testing.T) {
	env, ctx := setupEnv(t)
	task := env.addTask(t, "Task")

	_, err := env.taskService().ExportConflicts(ctx, []string{task.ID})
	assert.Error(t, err)
}
