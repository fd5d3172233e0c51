package service

import (
	"context"
	"fmt"
	"time"

	"github.com/alexanderramin/strata/internal/db"
	"github.com/alexanderramin/strata/internal/domain"
	"github.com/alexanderramin/strata/internal/repository"
	"github.com/alexanderramin/strata/internal/tree"
)

// Listed is one row of a scope-wide ordered listing with its dotted label.
type Listed[T domain.Node] struct {
	domain.Ordered[T]
	Label string
}

// nodeBinder builds a hierarchy repo over a transaction.
type nodeBinder[T domain.Node] func(tx db.DBTX) repository.NodeRepo[T]

type hierarchyService[T domain.Node] struct {
	entity   string
	nodes    repository.NodeRepo[T]
	bind     nodeBinder[T]
	uow      db.UnitOfWork
	observer UseCaseObserver
}

func NewTaskHierarchyService(tasks repository.TaskRepo, uow db.UnitOfWork, observers ...UseCaseObserver) HierarchyService[*domain.Task] {
	return &hierarchyService[*domain.Task]{
		entity:   "task",
		nodes:    tasks,
		bind:     func(tx db.DBTX) repository.NodeRepo[*domain.Task] { return repository.NewSQLiteTaskRepo(tx) },
		uow:      uow,
		observer: useCaseObserverOrNoop(observers),
	}
}

func NewTaskStatusHierarchyService(statuses repository.TaskStatusRepo, uow db.UnitOfWork, observers ...UseCaseObserver) HierarchyService[*domain.TaskStatus] {
	return &hierarchyService[*domain.TaskStatus]{
		entity:   "task_status",
		nodes:    statuses,
		bind:     func(tx db.DBTX) repository.NodeRepo[*domain.TaskStatus] { return repository.NewSQLiteTaskStatusRepo(tx) },
		uow:      uow,
		observer: useCaseObserverOrNoop(observers),
	}
}

func NewBacklogHierarchyService(backlogs repository.BacklogRepo, uow db.UnitOfWork, observers ...UseCaseObserver) HierarchyService[*domain.Backlog] {
	return &hierarchyService[*domain.Backlog]{
		entity:   "backlog",
		nodes:    backlogs,
		bind:     func(tx db.DBTX) repository.NodeRepo[*domain.Backlog] { return repository.NewSQLiteBacklogRepo(tx) },
		uow:      uow,
		observer: useCaseObserverOrNoop(observers),
	}
}

// AssignDefaultOrder places an unordered node after its live siblings. Nodes
// that already carry an order are left alone.
func (s *hierarchyService[T]) AssignDefaultOrder(ctx context.Context, node T) error {
	return assignDefaultOrder(ctx, s.nodes, node)
}

// Rebase moves the node to target and shifts every live sibling at or above
// target up by one, in a single transaction.
func (s *hierarchyService[T]) Rebase(ctx context.Context, id string, target int) (err error) {
	startedAt := time.Now()
	fields := map[string]any{"entity": s.entity, "id": id, "target": target}
	defer observe(ctx, s.observer, "rebase-order", startedAt, fields, &err)

	err = s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		repo := s.bind(tx)
		node, err := repo.GetNode(ctx, id, domain.Live)
		if err != nil {
			return notFound(err, s.entity, id)
		}
		n, err := rebaseNode(ctx, repo, node, target, actorFrom(ctx))
		fields["shifted"] = n
		return err
	})
	return err
}

func (s *hierarchyService[T]) AncestorChain(ctx context.Context, id string) ([]T, error) {
	chain, err := s.nodes.Ancestors(ctx, id, domain.Live)
	if err != nil {
		return nil, notFound(err, s.entity, id)
	}
	return chain, nil
}

// FullOrderLabel returns the dotted orders of the node's ancestors, top-level
// ancestor first. Top-level nodes have an empty label.
func (s *hierarchyService[T]) FullOrderLabel(ctx context.Context, id string) (string, error) {
	chain, err := s.AncestorChain(ctx, id)
	if err != nil {
		return "", err
	}
	return tree.Label(chain), nil
}

func (s *hierarchyService[T]) DescendantBranch(ctx context.Context, id string, vis domain.Visibility) ([]T, error) {
	branch, err := s.nodes.Branch(ctx, id, vis)
	if err != nil {
		return nil, notFound(err, s.entity, id)
	}
	return branch, nil
}

// ScopeOrdered lists the whole scope depth-first in path order. The scope's
// parent, when set, is the root the listing starts under.
func (s *hierarchyService[T]) ScopeOrdered(ctx context.Context, scope domain.Scope, search string) ([]Listed[T], error) {
	rows, err := s.nodes.ScopeOrdered(ctx, scope, search, domain.Live)
	if err != nil {
		return nil, err
	}
	return labelRows(rows), nil
}

func labelRows[T domain.Node](rows []domain.Ordered[T]) []Listed[T] {
	out := make([]Listed[T], len(rows))
	for i, r := range rows {
		out[i] = Listed[T]{Ordered: r, Label: tree.PathLabel(r.Path)}
	}
	return out
}

// assignDefaultOrder sets order to max(live sibling order)+1 when unset.
func assignDefaultOrder[T domain.Node](ctx context.Context, repo repository.NodeRepo[T], node T) error {
	if node.NodeOrder() != 0 {
		return nil
	}
	highest, err := repo.MaxSiblingOrder(ctx, node.NodeScope(), node.NodeID(), domain.Live)
	if err != nil {
		return fmt.Errorf("reading sibling orders: %w", err)
	}
	node.SetNodeOrder(highest + 1)
	return nil
}

// openGap renumbers the live siblings in scope at or above target to
// target+1, target+2, ... keeping their relative order. The node being placed
// is excluded and written by the caller. It returns how many rows moved.
func openGap[T domain.Node](ctx context.Context, repo repository.NodeRepo[T], scope domain.Scope, excludeID string, target int, by string) (int, error) {
	if target < 0 {
		return 0, domain.Validation("order", "order must not be negative")
	}
	siblings, err := repo.ListSiblingsFrom(ctx, scope, target, excludeID, domain.Live)
	if err != nil {
		return 0, fmt.Errorf("reading siblings: %w", err)
	}
	changes := tree.OpenGap(siblings, target)
	if err := repo.SetOrders(ctx, changes, by); err != nil {
		return 0, err
	}
	return len(changes), nil
}

// rebaseNode moves a persisted node to target and opens the gap for it.
func rebaseNode[T domain.Node](ctx context.Context, repo repository.NodeRepo[T], node T, target int, by string) (int, error) {
	n, err := openGap(ctx, repo, node.NodeScope(), node.NodeID(), target, by)
	if err != nil {
		return 0, err
	}
	if node.NodeOrder() == target {
		return n, nil
	}
	self := domain.OrderChange{ID: node.NodeID(), Order: target, Version: node.NodeVersion()}
	if err := repo.SetOrders(ctx, []domain.OrderChange{self}, by); err != nil {
		return 0, err
	}
	node.SetNodeOrder(target)
	return n, nil
}
