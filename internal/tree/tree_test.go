package tree

import (
	"testing"

	"github.com/alexanderramin/strata/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func status(id string, parent string, order int) *domain.TaskStatus {
	s := &domain.TaskStatus{ID: id, ProjectID: "p", Name: id, OrderIndex: order, ParentID: domain.StrPtr(parent)}
	s.TenantID = "t"
	s.Version = 1
	return s
}

func ids[T domain.Node](rows []domain.Ordered[T]) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.Node.NodeID()
	}
	return out
}

func TestOpenGap_ShiftsFromTarget(t *testing.T) {
	// Siblings at or above order 2, already excluding the moved node.
	siblings := []*domain.TaskStatus{
		status("d", "", 5),
		status("b", "", 2),
		status("c", "", 2),
	}

	changes := OpenGap(siblings, 2)

	require.Len(t, changes, 3)
	assert.Equal(t, domain.OrderChange{ID: "b", Order: 3, Version: 1}, changes[0])
	assert.Equal(t, domain.OrderChange{ID: "c", Order: 4, Version: 1}, changes[1])
	assert.Equal(t, domain.OrderChange{ID: "d", Order: 5, Version: 1}, changes[2])
}

func TestOpenGap_SkipsRowsAlreadyInPlace(t *testing.T) {
	siblings := []*domain.TaskStatus{status("a", "", 4), status("b", "", 7)}

	changes := OpenGap(siblings, 3)

	require.Len(t, changes, 1)
	assert.Equal(t, "b", changes[0].ID)
	assert.Equal(t, 5, changes[0].Order)
}

func TestOpenGap_Empty(t *testing.T) {
	assert.Empty(t, OpenGap([]*domain.TaskStatus(nil), 1))
}

func TestLabel(t *testing.T) {
	top := status("top", "", 3)
	mid := status("mid", "top", 1)
	leaf := status("leaf", "mid", 2)

	assert.Equal(t, "3.1", Label([]*domain.TaskStatus{leaf, mid, top}))
	assert.Equal(t, "3", Label([]*domain.TaskStatus{mid, top}))
	assert.Equal(t, "", Label([]*domain.TaskStatus{top}))
	assert.Equal(t, "", Label([]*domain.TaskStatus(nil)))
}

func TestPathSegment_SortsLikeTuples(t *testing.T) {
	a := JoinPath(PathSegment(2, "x"), PathSegment(1, "y"))
	b := PathSegment(10, "a")
	c := PathSegment(2, "x")

	assert.Less(t, c, a, "parent sorts before its children")
	assert.Less(t, a, b, "order 2 subtree sorts before order 10")
}

func buildWalk(vis domain.Visibility) *Walk[*domain.TaskStatus] {
	deleted := status("gone", "a", 0)
	deleted.Deleted = true
	template := status("tmpl", "", 9)
	template.Template = true
	nodes := []*domain.TaskStatus{
		status("b", "", 2),
		status("a", "", 1),
		status("a2", "a", 2),
		status("a1", "a", 1),
		status("a1x", "a1", 1),
		deleted,
		status("under-gone", "gone", 1),
		template,
	}
	return NewWalk(nodes, vis)
}

func TestWalk_AllIncludesTombstonesWhenAsked(t *testing.T) {
	w := buildWalk(domain.WithTombs)

	assert.Equal(t, []string{"a", "gone", "under-gone", "a1", "a1x", "a2", "b"}, ids(w.All()))
}

func TestWalk_AllOrdersByPath(t *testing.T) {
	w := buildWalk(domain.Live)

	all := w.All()
	assert.Equal(t, []string{"a", "a1", "a1x", "a2", "b"}, ids(all))
	assert.Equal(t, 2, all[2].Depth)
	for i := 1; i < len(all); i++ {
		assert.Less(t, all[i-1].Path, all[i].Path)
	}
}

func TestWalk_CycleHasNoRoot(t *testing.T) {
	w := NewWalk([]*domain.TaskStatus{status("x", "y", 1), status("y", "x", 2)}, domain.Live)

	assert.Empty(t, w.All())
}

func TestPathLabel(t *testing.T) {
	top := PathSegment(3, "a")
	mid := JoinPath(top, PathSegment(1, "b"))
	leaf := JoinPath(mid, PathSegment(2, "c"))

	assert.Equal(t, "", PathLabel(top))
	assert.Equal(t, "3", PathLabel(mid))
	assert.Equal(t, "3.1", PathLabel(leaf))
}
