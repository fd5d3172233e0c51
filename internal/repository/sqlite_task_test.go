package repository

import (
	"context"
	"testing"

	"github.com/alexanderramin/strata/internal/domain"
	"github.com/alexanderramin/strata/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTaskRepo(t *testing.T) (*SQLiteTaskRepo, *domain.Project) {
	t.Helper()
	conn := testutil.NewTestDB(t)
	p := testutil.NewTestProject("Tasks")
	require.NoError(t, NewSQLiteProjectRepo(conn).Create(context.Background(), p))
	return NewSQLiteTaskRepo(conn), p
}

func TestTaskRepo_CreateAndGetByID(t *testing.T) {
	repo, p := setupTaskRepo(t)
	ctx := context.Background()

	task := testutil.NewTestTask(p.ID, "Write report",
		testutil.WithDates(testutil.At(0, 10), testutil.At(0, 12)),
		testutil.WithEstimate(2, domain.UnitHours),
		testutil.WithRule("FREQ=WEEKLY"),
		testutil.WithOrder(4),
	)
	require.NoError(t, repo.Create(ctx, task))

	got, err := repo.GetByID(ctx, task.ID, domain.Live)
	require.NoError(t, err)
	assert.Equal(t, "Write report", got.Name)
	assert.Equal(t, p.ID, got.ProjectID)
	assert.Equal(t, 4, got.OrderIndex)
	assert.True(t, testutil.At(0, 10).Equal(*got.Started))
	assert.True(t, testutil.At(0, 12).Equal(*got.Deadline))
	require.NotNil(t, got.DurationEstimate)
	assert.Equal(t, 2, *got.DurationEstimate)
	assert.Equal(t, domain.UnitHours, got.DurationUnit)
	assert.Equal(t, "FREQ=WEEKLY", got.RecurrenceRule)
	assert.Nil(t, got.ParentID)
	assert.Equal(t, testutil.TestTenant, got.TenantID)
	assert.Equal(t, 1, got.Version)
}

func TestTaskRepo_GetByIDNotFound(t *testing.T) {
	repo, _ := setupTaskRepo(t)

	_, err := repo.GetByID(context.Background(), "missing", domain.Live)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestTaskRepo_GetByIDRespectsVisibility(t *testing.T) {
	repo, p := setupTaskRepo(t)
	ctx := context.Background()
	task := testutil.NewTestTask(p.ID, "old", testutil.Tombstoned())
	require.NoError(t, repo.Create(ctx, task))

	_, err := repo.GetByID(ctx, task.ID, domain.Live)
	require.ErrorIs(t, err, ErrNotFound)

	got, err := repo.GetByID(ctx, task.ID, domain.WithTombs)
	require.NoError(t, err)
	assert.True(t, got.Deleted)
	assert.NotNil(t, got.DeletedAt)
}

func TestTaskRepo_UpdateBumpsVersion(t *testing.T) {
	repo, p := setupTaskRepo(t)
	ctx := context.Background()
	task := testutil.NewTestTask(p.ID, "draft")
	require.NoError(t, repo.Create(ctx, task))

	stale := task.Copy()
	task.Name = "final"
	require.NoError(t, repo.Update(ctx, task))
	assert.Equal(t, 2, task.Version)

	stale.Name = "lost update"
	err := repo.Update(ctx, stale)
	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.CodeStaleWrite))

	got, err := repo.GetByID(ctx, task.ID, domain.Live)
	require.NoError(t, err)
	assert.Equal(t, "final", got.Name)
}

func TestTaskRepo_NextFreeName(t *testing.T) {
	repo, p := setupTaskRepo(t)
	ctx := context.Background()
	scope := domain.Scope{Kind: domain.KindTask, TenantID: testutil.TestTenant, ProjectID: p.ID}

	name, err := repo.NextFreeName(ctx, scope, "Deploy", "")
	require.NoError(t, err)
	assert.Equal(t, "Deploy", name)

	require.NoError(t, repo.Create(ctx, testutil.NewTestTask(p.ID, "Deploy")))
	require.NoError(t, repo.Create(ctx, testutil.NewTestTask(p.ID, "Deploy (1)")))
	require.NoError(t, repo.Create(ctx, testutil.NewTestTask(p.ID, "Deploy (1)", testutil.Tombstoned())))

	name, err = repo.NextFreeName(ctx, scope, "Deploy", "")
	require.NoError(t, err)
	assert.Equal(t, "Deploy (2)", name)
}

func TestTaskRepo_Reaches(t *testing.T) {
	repo, p := setupTaskRepo(t)
	ctx := context.Background()

	a := testutil.NewTestTask(p.ID, "a")
	b := testutil.NewTestTask(p.ID, "b", testutil.WithDependency(a.ID))
	c := testutil.NewTestTask(p.ID, "c", testutil.WithDependency(b.ID))
	require.NoError(t, repo.CreateBatch(ctx, []*domain.Task{a, b, c}))

	ok, err := repo.Reaches(ctx, "dependency_id", c.ID, a.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Reaches(ctx, "dependency_id", a.ID, c.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = repo.Reaches(ctx, "name", a.ID, c.ID)
	require.Error(t, err)
}

func TestTaskRepo_ListStartedBefore(t *testing.T) {
	repo, p := setupTaskRepo(t)
	ctx := context.Background()

	early := testutil.NewTestTask(p.ID, "early", testutil.WithDates(testutil.At(1, 0), testutil.At(2, 0)))
	late := testutil.NewTestTask(p.ID, "late", testutil.WithDates(testutil.At(5, 0), testutil.At(6, 0)))
	undated := testutil.NewTestTask(p.ID, "undated")
	require.NoError(t, repo.CreateBatch(ctx, []*domain.Task{early, late, undated}))

	got, err := repo.ListStartedBefore(ctx, testutil.TestTenant, p.ID, testutil.At(3, 0), domain.Live)
	require.NoError(t, err)
	assert.Equal(t, []string{"early"}, names(got))

	started, err := repo.ListStarted(ctx, testutil.TestTenant, p.ID, domain.Live)
	require.NoError(t, err)
	assert.Equal(t, []string{"early", "late"}, names(started))
}
