package repository

import (
	"context"
	"testing"

	"github.com/alexanderramin/strata/internal/domain"
	"github.com/alexanderramin/strata/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type taskTree struct {
	repo    *SQLiteTaskRepo
	project *domain.Project
	byName  map[string]*domain.Task
}

// setupTaskTree builds:
//
//	A(1)
//	├─ A1(1)
//	│  └─ A1a(1)
//	├─ A2(2)
//	└─ gone(3, tombstoned)
//	   └─ under(1)
//	B(2)
//	tmpl(3, template)
func setupTaskTree(t *testing.T) *taskTree {
	t.Helper()
	conn := testutil.NewTestDB(t)
	ctx := context.Background()

	projects := NewSQLiteProjectRepo(conn)
	p := testutil.NewTestProject("Tree")
	require.NoError(t, projects.Create(ctx, p))

	tt := &taskTree{repo: NewSQLiteTaskRepo(conn), project: p, byName: map[string]*domain.Task{}}
	add := func(name string, opts ...testutil.TaskOption) *domain.Task {
		task := testutil.NewTestTask(p.ID, name, opts...)
		require.NoError(t, tt.repo.Create(ctx, task))
		tt.byName[name] = task
		return task
	}
	a := add("A", testutil.WithOrder(1))
	a1 := add("A1", testutil.WithParent(a.ID), testutil.WithOrder(1))
	add("A1a", testutil.WithParent(a1.ID), testutil.WithOrder(1))
	add("A2", testutil.WithParent(a.ID), testutil.WithOrder(2))
	gone := add("gone", testutil.WithParent(a.ID), testutil.WithOrder(3), testutil.Tombstoned())
	add("under", testutil.WithParent(gone.ID), testutil.WithOrder(1))
	add("B", testutil.WithOrder(2))
	add("tmpl", testutil.WithOrder(3), testutil.AsTemplate())
	return tt
}

func names[T domain.Node](nodes []T) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.NodeName()
	}
	return out
}

func TestHierarchy_AncestorsNodeFirst(t *testing.T) {
	tt := setupTaskTree(t)

	chain, err := tt.repo.Ancestors(context.Background(), tt.byName["A1a"].ID, domain.Live)
	require.NoError(t, err)
	assert.Equal(t, []string{"A1a", "A1", "A"}, names(chain))
}

func TestHierarchy_AncestorsOfHiddenNode(t *testing.T) {
	tt := setupTaskTree(t)

	_, err := tt.repo.Ancestors(context.Background(), tt.byName["gone"].ID, domain.Live)
	require.ErrorIs(t, err, ErrNotFound)

	chain, err := tt.repo.Ancestors(context.Background(), tt.byName["under"].ID, domain.WithTombs)
	require.NoError(t, err)
	assert.Equal(t, []string{"under", "gone", "A"}, names(chain))
}

func TestHierarchy_AncestorsDetectCycle(t *testing.T) {
	tt := setupTaskTree(t)
	ctx := context.Background()

	a := tt.byName["A"]
	a.ParentID = &tt.byName["A1a"].ID
	require.NoError(t, tt.repo.Update(ctx, a))

	_, err := tt.repo.Ancestors(ctx, tt.byName["A1"].ID, domain.Live)
	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.CodeCycle))
}

func TestHierarchy_BranchPreOrderExcludesSelfAndHidden(t *testing.T) {
	tt := setupTaskTree(t)

	branch, err := tt.repo.Branch(context.Background(), tt.byName["A"].ID, domain.Live)
	require.NoError(t, err)
	assert.Equal(t, []string{"A1", "A1a", "A2"}, names(branch))
}

func TestHierarchy_BranchWithTombstones(t *testing.T) {
	tt := setupTaskTree(t)

	branch, err := tt.repo.Branch(context.Background(), tt.byName["A"].ID, domain.WithTombs)
	require.NoError(t, err)
	assert.Equal(t, []string{"A1", "A1a", "A2", "gone", "under"}, names(branch))
}

func TestHierarchy_BranchOfLeafIsEmpty(t *testing.T) {
	tt := setupTaskTree(t)

	branch, err := tt.repo.Branch(context.Background(), tt.byName["B"].ID, domain.Live)
	require.NoError(t, err)
	assert.Empty(t, branch)
}

func TestHierarchy_ScopeOrderedDepthFirst(t *testing.T) {
	tt := setupTaskTree(t)
	scope := domain.Scope{Kind: domain.KindTask, TenantID: testutil.TestTenant, ProjectID: tt.project.ID}

	rows, err := tt.repo.ScopeOrdered(context.Background(), scope, "", domain.Live)
	require.NoError(t, err)

	got := make([]string, len(rows))
	for i, r := range rows {
		got[i] = r.Node.Name
	}
	assert.Equal(t, []string{"A", "A1", "A1a", "A2", "B"}, got)
	assert.Equal(t, 0, rows[0].Depth)
	assert.Equal(t, 2, rows[2].Depth)
}

func TestHierarchy_ScopeOrderedSearchIsCaseInsensitive(t *testing.T) {
	tt := setupTaskTree(t)
	scope := domain.Scope{Kind: domain.KindTask, TenantID: testutil.TestTenant, ProjectID: tt.project.ID}

	rows, err := tt.repo.ScopeOrdered(context.Background(), scope, "a1", domain.Live)
	require.NoError(t, err)

	got := make([]string, len(rows))
	for i, r := range rows {
		got[i] = r.Node.Name
	}
	assert.Equal(t, []string{"A1", "A1a"}, got)
}

func TestHierarchy_ScopeOrderedSearchTreatsWildcardsLiterally(t *testing.T) {
	tt := setupTaskTree(t)
	scope := domain.Scope{Kind: domain.KindTask, TenantID: testutil.TestTenant, ProjectID: tt.project.ID}

	rows, err := tt.repo.ScopeOrdered(context.Background(), scope, "%", domain.Live)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestHierarchy_MaxSiblingOrderIgnoresHiddenAndSelf(t *testing.T) {
	tt := setupTaskTree(t)
	ctx := context.Background()
	a := tt.byName["A"]

	max, err := tt.repo.MaxSiblingOrder(ctx, a.NodeScope().ChildScope(a.ID), "", domain.Live)
	require.NoError(t, err)
	assert.Equal(t, 2, max, "tombstoned sibling at 3 is ignored")

	max, err = tt.repo.MaxSiblingOrder(ctx, tt.byName["B"].NodeScope(), tt.byName["B"].ID, domain.Live)
	require.NoError(t, err)
	assert.Equal(t, 1, max, "template at 3 and B itself are ignored")

	max, err = tt.repo.MaxSiblingOrder(ctx, tt.byName["B"].NodeScope().ChildScope(tt.byName["B"].ID), "", domain.Live)
	require.NoError(t, err)
	assert.Equal(t, 0, max)
}

func TestHierarchy_ListSiblingsFrom(t *testing.T) {
	tt := setupTaskTree(t)
	a := tt.byName["A"]

	sibs, err := tt.repo.ListSiblingsFrom(context.Background(), a.NodeScope().ChildScope(a.ID), 2, "", domain.Live)
	require.NoError(t, err)
	assert.Equal(t, []string{"A2"}, names(sibs))
}

func TestHierarchy_SetOrdersRejectsStaleVersion(t *testing.T) {
	tt := setupTaskTree(t)
	ctx := context.Background()
	b := tt.byName["B"]

	require.NoError(t, tt.repo.SetOrders(ctx, []domain.OrderChange{{ID: b.ID, Order: 7, Version: b.Version}}, testutil.TestUser))

	err := tt.repo.SetOrders(ctx, []domain.OrderChange{{ID: b.ID, Order: 8, Version: b.Version}}, testutil.TestUser)
	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.CodeStaleWrite))

	got, err := tt.repo.GetByID(ctx, b.ID, domain.Live)
	require.NoError(t, err)
	assert.Equal(t, 7, got.OrderIndex)
	assert.Equal(t, b.Version+1, got.Version)
}
