package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/alexanderramin/strata/internal/db"
	"github.com/alexanderramin/strata/internal/domain"
	"github.com/alexanderramin/strata/internal/repository"
	"github.com/alexanderramin/strata/internal/testutil"
	"github.com/stretchr/testify/require"
)

// testEnv holds the pool repos of one in-memory database plus a project to
// hang rows under.
type testEnv struct {
	db       *sql.DB
	uow      db.UnitOfWork
	projects *repository.SQLiteProjectRepo
	statuses *repository.SQLiteTaskStatusRepo
	catalog  *repository.SQLiteCatalogRepo
	backlogs *repository.SQLiteBacklogRepo
	tasks    *repository.SQLiteTaskRepo
	links    *repository.SQLiteTaskLinkRepo
	project  *domain.Project
}

func setupEnv(t *testing.T) (*testEnv, context.Context) {
	t.Helper()
	conn := testutil.NewTestDB(t)
	env := &testEnv{
		db:       conn,
		uow:      testutil.NewTestUoW(conn),
		projects: repository.NewSQLiteProjectRepo(conn),
		statuses: repository.NewSQLiteTaskStatusRepo(conn),
		catalog:  repository.NewSQLiteCatalogRepo(conn),
		backlogs: repository.NewSQLiteBacklogRepo(conn),
		tasks:    repository.NewSQLiteTaskRepo(conn),
		links:    repository.NewSQLiteTaskLinkRepo(conn),
	}
	ctx := WithActor(context.Background(), testutil.TestUser)
	env.project = testutil.NewTestProject("Platform")
	require.NoError(t, env.projects.Create(ctx, env.project))
	return env, ctx
}

func (e *testEnv) addTask(t *testing.T, name string, opts ...testutil.TaskOption) *domain.Task {
	t.Helper()
	task := testutil.NewTestTask(e.project.ID, name, opts...)
	require.NoError(t, e.tasks.Create(context.Background(), task))
	return task
}

func (e *testEnv) addStatus(t *testing.T, name string, opts ...testutil.StatusOption) *domain.TaskStatus {
	t.Helper()
	st := testutil.NewTestStatus(e.project.ID, name, opts...)
	require.NoError(t, e.statuses.Create(context.Background(), st))
	return st
}

func (e *testEnv) reload(t *testing.T, id string) *domain.Task {
	t.Helper()
	task, err := e.tasks.GetByID(context.Background(), id, domain.Everything)
	require.NoError(t, err)
	return task
}

func (e *testEnv) taskService(observers ...UseCaseObserver) *taskService {
	return newTaskService(TaskServiceDeps{
		Projects:       e.projects,
		Statuses:       e.statuses,
		Catalog:        e.catalog,
		Tasks:          e.tasks,
		MaxRecurrences: DefaultRecurrenceMaxCount,
		UoW:            e.uow,
	}, observers...)
}

func (e *testEnv) cloneService() CloneService {
	return NewCloneService(e.projects, e.statuses, e.catalog, e.backlogs, e.tasks, e.links, e.uow)
}

func namesOf(tasks []*domain.Task) []string {
	out := make([]string, len(tasks))
	for i, t := range tasks {
		out[i] = t.Name
	}
	return out
}
