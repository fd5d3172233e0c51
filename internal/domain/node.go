package domain

import (
	"strings"
	"time"
)

// NodeKind names one of the three ordered hierarchies.
type NodeKind string

const (
	KindTask       NodeKind = "task"
	KindTaskStatus NodeKind = "task_status"
	KindBacklog    NodeKind = "backlog"
)

// Visibility selects which rows a hierarchy query may return. The zero value
// hides tombstoned and template rows; restore and template flows opt in.
type Visibility struct {
	IncludeDeleted   bool
	IncludeTemplates bool
}

var (
	Live       = Visibility{}
	WithTombs  = Visibility{IncludeDeleted: true}
	Everything = Visibility{IncludeDeleted: true, IncludeTemplates: true}
)

// Admits reports whether a row with the given flags is visible.
func (v Visibility) Admits(deleted, template bool) bool {
	if deleted && !v.IncludeDeleted {
		return false
	}
	if template && !v.IncludeTemplates {
		return false
	}
	return true
}

// Scope is the set of attributes that makes two nodes siblings.
//
//	task:        (tenant, project, parent)
//	task_status: (tenant, project, parent)
//	backlog:     (tenant, hlr)
type Scope struct {
	Kind      NodeKind
	TenantID  string
	ProjectID string
	HLRID     string
	ParentID  *string
}

// Key renders the scope as a comparable string.
func (s Scope) Key() string {
	parts := []string{string(s.Kind), s.TenantID}
	switch s.Kind {
	case KindBacklog:
		parts = append(parts, s.HLRID)
	default:
		parts = append(parts, s.ProjectID, StrVal(s.ParentID))
	}
	return strings.Join(parts, "|")
}

// ChildScope returns the scope of the children of the node with the given id.
func (s Scope) ChildScope(id string) Scope {
	child := s
	child.ParentID = &id
	return child
}

// RootScope drops the parent so the scope covers the top level of a hierarchy.
func (s Scope) RootScope() Scope {
	root := s
	root.ParentID = nil
	return root
}

// Node is the orderable hierarchical capability shared by tasks, task
// statuses, and backlog items.
type Node interface {
	NodeID() string
	NodeName() string
	NodeParentID() *string
	NodeOrder() int
	SetNodeOrder(order int)
	NodeScope() Scope
	NodeVersion() int
	Visible(v Visibility) bool
}

// OrderChange is one row of an order batch. Version is the version the row
// was read at; the write fails if the row moved since.
type OrderChange struct {
	ID      string
	Order   int
	Version int
}

// Ordered is one row of a scope-wide depth-first listing.
type Ordered[T Node] struct {
	Node  T
	Depth int
	Path  string
}

// Audit carries the tenant stamp, soft-delete tombstone, template flag and
// optimistic-lock version every persisted entity shares.
type Audit struct {
	TenantID  string
	Deleted   bool
	DeletedAt *time.Time
	Template  bool
	CreatedBy string
	UpdatedBy string
	CreatedAt time.Time
	UpdatedAt time.Time
	Version   int
}

func (a *Audit) Visible(v Visibility) bool { return v.Admits(a.Deleted, a.Template) }

func (a *Audit) NodeVersion() int { return a.Version }

// Tombstone marks the row deleted without removing it.
func (a *Audit) Tombstone(by string, now time.Time) {
	a.Deleted = true
	a.DeletedAt = &now
	a.UpdatedBy = by
	a.UpdatedAt = now
}

// Restore clears a tombstone.
func (a *Audit) Restore(by string, now time.Time) {
	a.Deleted = false
	a.DeletedAt = nil
	a.UpdatedBy = by
	a.UpdatedAt = now
}

// Stamp prepares a fresh audit block for an insert.
func (a *Audit) Stamp(tenantID, by string, now time.Time) {
	a.TenantID = tenantID
	a.CreatedBy = by
	a.UpdatedBy = by
	a.CreatedAt = now
	a.UpdatedAt = now
	a.Deleted = false
	a.DeletedAt = nil
	a.Version = 1
}
