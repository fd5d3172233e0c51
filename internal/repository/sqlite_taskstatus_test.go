package repository

import (
	"context"
	"testing"

	"github.com/alexanderramin/strata/internal/domain"
	"github.com/alexanderramin/strata/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupStatusRepo(t *testing.T) (*SQLiteTaskStatusRepo, *domain.Project) {
	t.Helper()
	conn := testutil.NewTestDB(t)
	p := testutil.NewTestProject("Statuses")
	require.NoError(t, NewSQLiteProjectRepo(conn).Create(context.Background(), p))
	return NewSQLiteTaskStatusRepo(conn), p
}

func TestTaskStatusRepo_DuplicateNameIsFieldError(t *testing.T) {
	repo, p := setupStatusRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, testutil.NewTestStatus(p.ID, "Review")))
	err := repo.Create(ctx, testutil.NewTestStatus(p.ID, "Review"))

	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.CodeValidation))
	assert.Equal(t, "name", domain.FieldOf(err))
}

func TestTaskStatusRepo_SameNameUnderDifferentParents(t *testing.T) {
	repo, p := setupStatusRepo(t)
	ctx := context.Background()

	parent := testutil.NewTestStatus(p.ID, "Build")
	require.NoError(t, repo.Create(ctx, parent))
	require.NoError(t, repo.Create(ctx, testutil.NewTestStatus(p.ID, "Review")))
	require.NoError(t, repo.Create(ctx, testutil.NewTestStatus(p.ID, "Review", testutil.WithStatusParent(parent.ID))))
}

func TestTaskStatusRepo_TombstonedNameCanBeReused(t *testing.T) {
	repo, p := setupStatusRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, testutil.NewTestStatus(p.ID, "Review", testutil.TombstonedStatus())))
	require.NoError(t, repo.Create(ctx, testutil.NewTestStatus(p.ID, "Review")))
}

func TestTaskStatusRepo_SingleFinalStage(t *testing.T) {
	repo, p := setupStatusRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, testutil.NewTestStatus(p.ID, "Done", testutil.AsFinalStage())))
	err := repo.Create(ctx, testutil.NewTestStatus(p.ID, "Shipped", testutil.AsFinalStage()))

	require.Error(t, err)
	assert.Equal(t, "final_stage", domain.FieldOf(err))
}

func TestTaskStatusRepo_FirstOpenAndProtected(t *testing.T) {
	repo, p := setupStatusRepo(t)
	ctx := context.Background()

	unassigned := testutil.NewTestStatus(p.ID, domain.UnassignedStatusName)
	unassigned.Protected = true
	require.NoError(t, repo.Create(ctx, unassigned))
	require.NoError(t, repo.Create(ctx, testutil.NewTestStatus(p.ID, "Done", testutil.WithStatusOrder(1), testutil.AsFinalStage())))
	require.NoError(t, repo.Create(ctx, testutil.NewTestStatus(p.ID, "Doing", testutil.WithStatusOrder(3))))
	require.NoError(t, repo.Create(ctx, testutil.NewTestStatus(p.ID, "To do", testutil.WithStatusOrder(2))))

	first, err := repo.FirstOpen(ctx, testutil.TestTenant, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "To do", first.Name)

	prot, err := repo.GetProtected(ctx, testutil.TestTenant, p.ID)
	require.NoError(t, err)
	assert.Equal(t, unassigned.ID, prot.ID)
}

func TestTaskStatusRepo_Reaches(t *testing.T) {
	repo, p := setupStatusRepo(t)
	ctx := context.Background()

	top := testutil.NewTestStatus(p.ID, "top")
	mid := testutil.NewTestStatus(p.ID, "mid", testutil.WithStatusParent(top.ID))
	leaf := testutil.NewTestStatus(p.ID, "leaf", testutil.WithStatusParent(mid.ID))
	for _, s := range []*domain.TaskStatus{top, mid, leaf} {
		require.NoError(t, repo.Create(ctx, s))
	}

	ok, err := repo.Reaches(ctx, leaf.ID, top.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Reaches(ctx, top.ID, leaf.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTaskStatusRepo_ScopeOrderedAcrossDepths(t *testing.T) {
	repo, p := setupStatusRepo(t)
	ctx := context.Background()

	one := testutil.NewTestStatus(p.ID, "one", testutil.WithStatusOrder(1))
	two := testutil.NewTestStatus(p.ID, "two", testutil.WithStatusOrder(2))
	oneB := testutil.NewTestStatus(p.ID, "one-b", testutil.WithStatusParent(one.ID), testutil.WithStatusOrder(2))
	oneA := testutil.NewTestStatus(p.ID, "one-a", testutil.WithStatusParent(one.ID), testutil.WithStatusOrder(1))
	for _, s := range []*domain.TaskStatus{one, two, oneB, oneA} {
		require.NoError(t, repo.Create(ctx, s))
	}

	rows, err := repo.ScopeOrdered(ctx, one.NodeScope(), "", domain.Live)
	require.NoError(t, err)
	got := make([]string, len(rows))
	for i, r := range rows {
		got[i] = r.Node.Name
	}
	assert.Equal(t, []string{"one", "one-a", "one-b", "two"}, got)
}
