package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/alexanderramin/strata/internal/db"
	"github.com/alexanderramin/strata/internal/domain"
)

// pathSegmentSQL renders one path segment for alias; it matches tree.PathSegment.
func pathSegmentSQL(alias string) string {
	return "printf('%010d:%s', " + alias + ".order_index, " + alias + ".id)"
}

// nodeQueries implements the hierarchy contract over one table. Task and
// task-status repos are nested; backlog repos are flat, so ancestor and
// branch queries degrade to the node itself and nothing.
type nodeQueries[T domain.Node] struct {
	db      db.DBTX
	table   string
	entity  string
	columns string // qualified with alias "t"
	nested  bool
	scope   func(domain.Scope) (string, []any)
	scan    func(row rowScanner, extra ...any) (T, error)
}

func (q *nodeQueries[T]) selectFrom() string {
	return `SELECT ` + q.columns + ` FROM ` + q.table + ` t`
}

func (q *nodeQueries[T]) collect(ctx context.Context, op, query string, args []any, extra func() []any, after func(T)) ([]T, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		var dest []any
		if extra != nil {
			dest = extra()
		}
		n, err := q.scan(rows, dest...)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if after != nil {
			after(n)
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

// GetNode returns the node with id if vis admits it.
func (q *nodeQueries[T]) GetNode(ctx context.Context, id string, vis domain.Visibility) (T, error) {
	query := q.selectFrom() + ` WHERE t.id = ?` + visibilityClause("t", vis)
	n, err := q.scan(q.db.QueryRowContext(ctx, query, id))
	if err != nil {
		var zero T
		return zero, notFoundOr(q.entity, err)
	}
	return n, nil
}

// MaxSiblingOrder returns the highest order in scope, ignoring excludeID, or
// 0 for an empty scope.
func (q *nodeQueries[T]) MaxSiblingOrder(ctx context.Context, scope domain.Scope, excludeID string, vis domain.Visibility) (int, error) {
	where, args := q.scope(scope)
	query := `SELECT COALESCE(MAX(t.order_index), 0) FROM ` + q.table + ` t
		WHERE ` + where + ` AND t.id != ?` + visibilityClause("t", vis)
	args = append(args, excludeID)

	var highest int
	if err := q.db.QueryRowContext(ctx, query, args...).Scan(&highest); err != nil {
		return 0, fmt.Errorf("computing max %s order: %w", q.entity, err)
	}
	return highest, nil
}

// ListSiblingsFrom returns siblings in scope with order >= fromOrder, excluding
// excludeID, ascending by order then id.
func (q *nodeQueries[T]) ListSiblingsFrom(ctx context.Context, scope domain.Scope, fromOrder int, excludeID string, vis domain.Visibility) ([]T, error) {
	where, args := q.scope(scope)
	query := q.selectFrom() + ` WHERE ` + where + ` AND t.order_index >= ? AND t.id != ?` +
		visibilityClause("t", vis) + ` ORDER BY t.order_index, t.id`
	args = append(args, fromOrder, excludeID)
	return q.collect(ctx, "listing "+q.entity+" siblings", query, args, nil, nil)
}

// ListScope returns the direct members of scope ascending by order then id.
func (q *nodeQueries[T]) ListScope(ctx context.Context, scope domain.Scope, vis domain.Visibility) ([]T, error) {
	where, args := q.scope(scope)
	query := q.selectFrom() + ` WHERE ` + where + visibilityClause("t", vis) + ` ORDER BY t.order_index, t.id`
	return q.collect(ctx, "listing "+q.entity+" scope", query, args, nil, nil)
}

// Ancestors returns the chain from id up to its top-level ancestor, id first.
// The walk stops at the first ancestor vis hides. A chain longer than
// maxHierarchyDepth is reported as a cycle.
func (q *nodeQueries[T]) Ancestors(ctx context.Context, id string, vis domain.Visibility) ([]T, error) {
	if !q.nested {
		n, err := q.GetNode(ctx, id, vis)
		if err != nil {
			return nil, err
		}
		return []T{n}, nil
	}

	query := `WITH RECURSIVE chain(id, parent_id, depth) AS (
			SELECT t.id, t.parent_id, 0 FROM ` + q.table + ` t
			WHERE t.id = ?` + visibilityClause("t", vis) + `
			UNION ALL
			SELECT t.id, t.parent_id, c.depth + 1 FROM ` + q.table + ` t
			JOIN chain c ON t.id = c.parent_id
			WHERE c.depth < ?` + visibilityClause("t", vis) + `
		)
		SELECT ` + q.columns + ` FROM chain c JOIN ` + q.table + ` t ON t.id = c.id
		ORDER BY c.depth`

	chain, err := q.collect(ctx, "walking "+q.entity+" ancestors", query, []any{id, maxHierarchyDepth}, nil, nil)
	if err != nil {
		return nil, err
	}
	if len(chain) == 0 {
		return nil, fmt.Errorf("%s: %w", q.entity, ErrNotFound)
	}
	if len(chain) > maxHierarchyDepth {
		return nil, domain.Cycle("parent", fmt.Sprintf("%s %s has a cyclic parent chain", q.entity, id))
	}
	return chain, nil
}

// Branch returns every descendant of id in pre-order, excluding id. Hidden
// nodes are pruned together with everything below them.
func (q *nodeQueries[T]) Branch(ctx context.Context, id string, vis domain.Visibility) ([]T, error) {
	if !q.nested {
		if _, err := q.GetNode(ctx, id, vis); err != nil {
			return nil, err
		}
		return nil, nil
	}

	query := `WITH RECURSIVE branch(id, path, depth) AS (
			SELECT t.id, '', 0 FROM ` + q.table + ` t
			WHERE t.id = ?` + visibilityClause("t", vis) + `
			UNION ALL
			SELECT t.id, b.path || '/' || ` + pathSegmentSQL("t") + `, b.depth + 1
			FROM ` + q.table + ` t JOIN branch b ON t.parent_id = b.id
			WHERE b.depth < ?` + visibilityClause("t", vis) + `
		)
		SELECT ` + q.columns + ` FROM branch b JOIN ` + q.table + ` t ON t.id = b.id
		WHERE b.depth > 0
		ORDER BY b.path`

	nodes, err := q.collect(ctx, "walking "+q.entity+" branch", query, []any{id, maxHierarchyDepth}, nil, nil)
	if err != nil {
		return nil, err
	}
	return dedupe(nodes, id), nil
}

// ScopeOrdered lists every node reachable from the top of scope depth-first,
// sorted by the accumulated (order, id) path. A non-empty search keeps only
// nodes whose name contains it, case-insensitively; the walk itself still
// passes through non-matching nodes.
func (q *nodeQueries[T]) ScopeOrdered(ctx context.Context, scope domain.Scope, search string, vis domain.Visibility) ([]domain.Ordered[T], error) {
	where, args := q.scope(scope)
	vc := visibilityClause("t", vis)

	var query string
	if q.nested {
		query = `WITH RECURSIVE ordered(id, path, depth) AS (
				SELECT t.id, ` + pathSegmentSQL("t") + `, 0 FROM ` + q.table + ` t
				WHERE ` + where + vc + `
				UNION ALL
				SELECT t.id, o.path || '/' || ` + pathSegmentSQL("t") + `, o.depth + 1
				FROM ` + q.table + ` t JOIN ordered o ON t.parent_id = o.id
				WHERE o.depth < ?` + vc + `
			)`
		args = append(args, maxHierarchyDepth)
	} else {
		query = `WITH ordered(id, path, depth) AS (
				SELECT t.id, ` + pathSegmentSQL("t") + `, 0 FROM ` + q.table + ` t
				WHERE ` + where + vc + `
			)`
	}
	query += `
		SELECT ` + q.columns + `, o.depth, o.path FROM ordered o JOIN ` + q.table + ` t ON t.id = o.id
		WHERE (? = '' OR lower(t.name) LIKE '%' || lower(?) || '%' ESCAPE '\')
		ORDER BY o.path`
	escaped := likeEscape(search)
	args = append(args, escaped, escaped)

	var depth int
	var path string
	var out []domain.Ordered[T]
	seen := make(map[string]bool)
	_, err := q.collect(ctx, "listing ordered "+q.entity+" scope", query, args,
		func() []any { return []any{&depth, &path} },
		func(n T) {
			if seen[n.NodeID()] {
				return
			}
			seen[n.NodeID()] = true
			out = append(out, domain.Ordered[T]{Node: n, Depth: depth, Path: path})
		})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SetOrders writes an order batch with optimistic version checks. Any row that
// moved since it was read aborts the batch with a stale write error.
func (q *nodeQueries[T]) SetOrders(ctx context.Context, changes []domain.OrderChange, by string) error {
	now := time.Now().UTC().Format(timeLayout)
	query := `UPDATE ` + q.table + ` SET order_index = ?, version = version + 1, updated_at = ?, updated_by = ?
		WHERE id = ? AND version = ?`
	for _, c := range changes {
		res, err := q.db.ExecContext(ctx, query, c.Order, now, by, c.ID, c.Version)
		if err != nil {
			return translateWriteError("updating "+q.entity+" order", err)
		}
		if err := expectOneRow(res, q.entity, c.ID); err != nil {
			return err
		}
	}
	return nil
}

// dedupe drops repeated ids and the walk root, keeping first occurrences.
func dedupe[T domain.Node](nodes []T, rootID string) []T {
	seen := map[string]bool{rootID: true}
	out := nodes[:0]
	for _, n := range nodes {
		if seen[n.NodeID()] {
			continue
		}
		seen[n.NodeID()] = true
		out = append(out, n)
	}
	return out
}

// projectScope is the scope clause shared by tasks and task statuses.
func projectScope(s domain.Scope) (string, []any) {
	return `t.tenant_id = ? AND t.project_id = ? AND t.parent_id IS ?`,
		[]any{s.TenantID, s.ProjectID, s.ParentID}
}

func hlrScope(s domain.Scope) (string, []any) {
	return `t.tenant_id = ? AND t.hlr_id = ?`, []any{s.TenantID, s.HLRID}
}
