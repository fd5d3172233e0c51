package service

import (
	"context"
	"errors"
	"testing"

	"github.com/alexanderramin/strata/internal/domain"
	"github.com/alexanderramin/strata/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRebase_ShiftsSiblingsAtOrAboveTarget(t *testing.T) {
	env, ctx := setupEnv(t)
	a := env.addTask(t, "A", testutil.WithOrder(1))
	b := env.addTask(t, "B", testutil.WithOrder(2))
	c := env.addTask(t, "C", testutil.WithOrder(3))
	other := env.addTask(t, "Nested", testutil.WithParent(a.ID), testutil.WithOrder(1))

	svc := NewTaskHierarchyService(env.tasks, env.uow)
	require.NoError(t, svc.Rebase(ctx, c.ID, 1))

	assert.Equal(t, 1, env.reload(t, c.ID).OrderIndex)
	assert.Equal(t, 2, env.reload(t, a.ID).OrderIndex)
	assert.Equal(t, 3, env.reload(t, b.ID).OrderIndex)
	assert.Equal(t, 1, env.reload(t, other.ID).OrderIndex, "other scopes are untouched")
}

func TestRebase_IgnoresTombstonedSiblings(t *testing.T) {
	env, ctx := setupEnv(t)
	a := env.addTask(t, "A", testutil.WithOrder(1))
	gone := env.addTask(t, "Gone", testutil.WithOrder(2), testutil.Tombstoned())
	c := env.addTask(t, "C", testutil.WithOrder(3))

	require.NoError(t, NewTaskHierarchyService(env.tasks, env.uow).Rebase(ctx, c.ID, 1))

	assert.Equal(t, 2, env.reload(t, a.ID).OrderIndex)
	assert.Equal(t, 2, env.reload(t, gone.ID).OrderIndex)
}

func TestRebase_NegativeTargetRejected(t *testing.T) {
	env, ctx := setupEnv(t)
	a := env.addTask(t, "A", testutil.WithOrder(1))

	err := NewTaskHierarchyService(env.tasks, env.uow).Rebase(ctx, a.ID, -1)
	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.CodeValidation))
	assert.Equal(t, "order", domain.FieldOf(err))
}

func TestRebase_MissingNode(t *testing.T) {
	env, ctx := setupEnv(t)

	err := NewTaskHierarchyService(env.tasks, env.uow).Rebase(ctx, "nope", 1)
	assert.True(t, domain.IsCode(err, domain.CodeNotFound))
}

func TestRebase_RollsBackOnFailedWrite(t *testing.T) {
	env, ctx := setupEnv(t)
	a := env.addTask(t, "A", testutil.WithOrder(1))
	b := env.addTask(t, "B", testutil.WithOrder(2))
	c := env.addTask(t, "C", testutil.WithOrder(3))

	boom := errors.New("disk full")
	uow := &testutil.FailOnNthExecUoW{DB: env.db, FailOn: 2, Err: boom}
	err := NewTaskHierarchyService(env.tasks, uow).Rebase(ctx, c.ID, 1)
	require.ErrorIs(t, err, boom)

	assert.Equal(t, 1, env.reload(t, a.ID).OrderIndex)
	assert.Equal(t, 2, env.reload(t, b.ID).OrderIndex)
	assert.Equal(t, 3, env.reload(t, c.ID).OrderIndex)
}

func TestAssignDefaultOrder_AppendsAfterLiveSiblings(t *testing.T) {
	env, ctx := setupEnv(t)
	env.addTask(t, "A", testutil.WithOrder(4))
	env.addTask(t, "Gone", testutil.WithOrder(9), testutil.Tombstoned())

	fresh := testutil.NewTestTask(env.project.ID, "New")
	require.NoError(t, NewTaskHierarchyService(env.tasks, env.uow).AssignDefaultOrder(ctx, fresh))
	assert.Equal(t, 5, fresh.OrderIndex)

	fixed := testutil.NewTestTask(env.project.ID, "Fixed", testutil.WithOrder(2))
	require.NoError(t, NewTaskHierarchyService(env.tasks, env.uow).AssignDefaultOrder(ctx, fixed))
	assert.Equal(t, 2, fixed.OrderIndex)
}

func TestFullOrderLabel_ListsAncestorOrders(t *testing.T) {
	env, ctx := setupEnv(t)
	root := env.addTask(t, "Root", testutil.WithOrder(2))
	child := env.addTask(t, "Child", testutil.WithParent(root.ID), testutil.WithOrder(3))
	leaf := env.addTask(t, "Leaf", testutil.WithParent(child.ID), testutil.WithOrder(1))

	svc := NewTaskHierarchyService(env.tasks, env.uow)
	for id, want := range map[string]string{root.ID: "", child.ID: "2", leaf.ID: "2.3"} {
		got, err := svc.FullOrderLabel(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	chain, err := svc.AncestorChain(ctx, leaf.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Leaf", "Child", "Root"}, namesOf(chain))
}

func TestDescendantBranch_Visibility(t *testing.T) {
	env, ctx := setupEnv(t)
	root := env.addTask(t, "Root", testutil.WithOrder(1))
	live := env.addTask(t, "Live", testutil.WithParent(root.ID), testutil.WithOrder(1))
	gone := env.addTask(t, "Gone", testutil.WithParent(root.ID), testutil.WithOrder(2), testutil.Tombstoned())
	env.addTask(t, "Under gone", testutil.WithParent(gone.ID), testutil.WithOrder(1))
	env.addTask(t, "Blueprint", testutil.WithParent(root.ID), testutil.WithOrder(3), testutil.AsTemplate())
	env.addTask(t, "Grandchild", testutil.WithParent(live.ID), testutil.WithOrder(1))

	svc := NewTaskHierarchyService(env.tasks, env.uow)
	branch, err := svc.DescendantBranch(ctx, root.ID, domain.Live)
	require.NoError(t, err)
	assert.Equal(t, []string{"Live", "Grandchild"}, namesOf(branch))

	all, err := svc.DescendantBranch(ctx, root.ID, domain.Everything)
	require.NoError(t, err)
	assert.Len(t, all, 5)
}

func TestScopeOrdered_LabelsRows(t *testing.T) {
	env, ctx := setupEnv(t)
	b := env.addTask(t, "Beta", testutil.WithOrder(2))
	a := env.addTask(t, "Alpha", testutil.WithOrder(1))
	env.addTask(t, "Beta child", testutil.WithParent(b.ID), testutil.WithOrder(1))
	env.addTask(t, "Alpha child", testutil.WithParent(a.ID), testutil.WithOrder(5))

	svc := NewTaskHierarchyService(env.tasks, env.uow)
	scope := domain.Scope{Kind: domain.KindTask, TenantID: testutil.TestTenant, ProjectID: env.project.ID}
	rows, err := svc.ScopeOrdered(ctx, scope, "")
	require.NoError(t, err)
	require.Len(t, rows, 4)

	var got [][2]string
	for _, r := range rows {
		got = append(got, [2]string{r.Node.Name, r.Label})
	}
	assert.Equal(t, [][2]string{
		{"Alpha", ""},
		{"Alpha child", "1"},
		{"Beta", ""},
		{"Beta child", "2"},
	}, got)

	filtered, err := svc.ScopeOrdered(ctx, scope, "CHILD")
	require.NoError(t, err)
	require.Len(t, filtered, 2)
	assert.Equal(t, 1, filtered[0].Depth)
}

func TestBacklogHierarchy_FlatChain(t *testing.T) {
	env, ctx := setupEnv(t)
	h := testutil.NewTestHLR(env.project.ID, "Checkout")
	require.NoError(t, env.catalog.CreateHLR(context.Background(), h))
	b := testutil.NewTestBacklog(h.ID, "Pay by card", 3)
	require.NoError(t, env.backlogs.Create(context.Background(), b))

	svc := NewBacklogHierarchyService(env.backlogs, env.uow)
	label, err := svc.FullOrderLabel(ctx, b.ID)
	require.NoError(t, err)
	assert.Empty(t, label)

	branch, err := svc.DescendantBranch(ctx, b.ID, domain.Live)
	require.NoError(t, err)
	assert.Empty(t, branch)
}
