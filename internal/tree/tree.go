// Package tree holds the storage-independent parts of the hierarchy engines:
// gap opening for order rebases, dotted order labels, path keys for
// depth-first listings, and an in-memory pre-order walk for callers that
// already hold a whole scope.
package tree

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/alexanderramin/strata/internal/domain"
)

// PathOrderWidth is the zero-padding used for order values inside path keys.
// SQL and Go both build keys with this width so lexicographic comparison of
// keys matches tuple comparison of (order, id) pairs.
const PathOrderWidth = 10

// PathSegment renders one (order, id) pair of a path key.
func PathSegment(order int, id string) string {
	return fmt.Sprintf("%0*d:%s", PathOrderWidth, order, id)
}

// JoinPath appends a segment to a parent path.
func JoinPath(parent, segment string) string {
	if parent == "" {
		return segment
	}
	return parent + "/" + segment
}

// SortSiblings orders nodes ascending by order, breaking ties by id.
func SortSiblings[T domain.Node](nodes []T) {
	sort.SliceStable(nodes, func(i, j int) bool {
		if nodes[i].NodeOrder() != nodes[j].NodeOrder() {
			return nodes[i].NodeOrder() < nodes[j].NodeOrder()
		}
		return nodes[i].NodeID() < nodes[j].NodeID()
	})
}

// OpenGap computes the order batch that makes room at target. Siblings must
// already be restricted to those at or above target with the moved node
// excluded; they are renumbered target+1, target+2, ... in their current
// relative order. Rows already holding their new order are left out of the
// batch.
func OpenGap[T domain.Node](siblings []T, target int) []domain.OrderChange {
	sorted := append([]T(nil), siblings...)
	SortSiblings(sorted)

	changes := make([]domain.OrderChange, 0, len(sorted))
	for i, n := range sorted {
		next := target + 1 + i
		if n.NodeOrder() == next {
			continue
		}
		changes = append(changes, domain.OrderChange{ID: n.NodeID(), Order: next, Version: n.NodeVersion()})
	}
	return changes
}

// Label builds the dotted order label from an ancestor chain ordered from the
// node up to the top-level ancestor. The node's own order is not part of the
// label, so a top-level node yields "".
func Label[T domain.Node](chain []T) string {
	if len(chain) <= 1 {
		return ""
	}
	parts := make([]string, 0, len(chain)-1)
	for i := len(chain) - 1; i >= 1; i-- {
		parts = append(parts, strconv.Itoa(chain[i].NodeOrder()))
	}
	return strings.Join(parts, ".")
}

// PathLabel derives the dotted label of the node a path key ends at: the
// orders of every segment but the last.
func PathLabel(path string) string {
	segments := strings.Split(path, "/")
	if len(segments) <= 1 {
		return ""
	}
	parts := make([]string, 0, len(segments)-1)
	for _, seg := range segments[:len(segments)-1] {
		order, _, _ := strings.Cut(seg, ":")
		n, err := strconv.Atoi(order)
		if err != nil {
			parts = append(parts, order)
			continue
		}
		parts = append(parts, strconv.Itoa(n))
	}
	return strings.Join(parts, ".")
}

// Walk is an in-memory depth-first traversal over a flat working set.
type Walk[T domain.Node] struct {
	byID     map[string]T
	children map[string][]T
	roots    []T
}

// NewWalk indexes nodes by parent. Nodes hidden by vis are dropped, and so is
// everything below them.
func NewWalk[T domain.Node](nodes []T, vis domain.Visibility) *Walk[T] {
	w := &Walk[T]{
		byID:     make(map[string]T, len(nodes)),
		children: make(map[string][]T),
	}
	for _, n := range nodes {
		if !n.Visible(vis) {
			continue
		}
		w.byID[n.NodeID()] = n
	}
	for _, n := range w.byID {
		parent := n.NodeParentID()
		if parent == nil {
			w.roots = append(w.roots, n)
			continue
		}
		if _, ok := w.byID[*parent]; !ok {
			// Parent is hidden or outside the working set.
			continue
		}
		w.children[*parent] = append(w.children[*parent], n)
	}
	SortSiblings(w.roots)
	for id := range w.children {
		SortSiblings(w.children[id])
	}
	return w
}

// All returns every reachable node depth-first from the roots, with depth and
// path key.
func (w *Walk[T]) All() []domain.Ordered[T] {
	var out []domain.Ordered[T]
	seen := make(map[string]bool)
	var visit func(n T, depth int, parentPath string)
	visit = func(n T, depth int, parentPath string) {
		if seen[n.NodeID()] {
			return
		}
		seen[n.NodeID()] = true
		path := JoinPath(parentPath, PathSegment(n.NodeOrder(), n.NodeID()))
		out = append(out, domain.Ordered[T]{Node: n, Depth: depth, Path: path})
		for _, c := range w.children[n.NodeID()] {
			visit(c, depth+1, path)
		}
	}
	for _, r := range w.roots {
		visit(r, 0, "")
	}
	return out
}
