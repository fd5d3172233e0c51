package repository

import (
	"context"
	"time"

	"github.com/alexanderramin/strata/internal/domain"
)

// NodeRepo is the hierarchy store contract shared by tasks, task statuses and
// backlog items. Every read takes an explicit visibility.
type NodeRepo[T domain.Node] interface {
	GetNode(ctx context.Context, id string, vis domain.Visibility) (T, error)
	MaxSiblingOrder(ctx context.Context, scope domain.Scope, excludeID string, vis domain.Visibility) (int, error)
	ListSiblingsFrom(ctx context.Context, scope domain.Scope, fromOrder int, excludeID string, vis domain.Visibility) ([]T, error)
	ListScope(ctx context.Context, scope domain.Scope, vis domain.Visibility) ([]T, error)
	Ancestors(ctx context.Context, id string, vis domain.Visibility) ([]T, error)
	Branch(ctx context.Context, id string, vis domain.Visibility) ([]T, error)
	ScopeOrdered(ctx context.Context, scope domain.Scope, search string, vis domain.Visibility) ([]domain.Ordered[T], error)
	SetOrders(ctx context.Context, changes []domain.OrderChange, by string) error
}

type TaskRepo interface {
	NodeRepo[*domain.Task]
	Create(ctx context.Context, t *domain.Task) error
	CreateBatch(ctx context.Context, tasks []*domain.Task) error
	GetByID(ctx context.Context, id string, vis domain.Visibility) (*domain.Task, error)
	Update(ctx context.Context, t *domain.Task) error
	ListByProject(ctx context.Context, tenantID, projectID string, vis domain.Visibility) ([]*domain.Task, error)
	ListStarted(ctx context.Context, tenantID, projectID string, vis domain.Visibility) ([]*domain.Task, error)
	ListStartedBefore(ctx context.Context, tenantID, projectID string, cutoff time.Time, vis domain.Visibility) ([]*domain.Task, error)
	ListByStatus(ctx context.Context, statusID string, vis domain.Visibility) ([]*domain.Task, error)
	ListReferencing(ctx context.Context, id string, vis domain.Visibility) ([]*domain.Task, error)
	NextFreeName(ctx context.Context, scope domain.Scope, name, excludeID string) (string, error)
	Reaches(ctx context.Context, column, fromID, targetID string) (bool, error)
	ReassignStatus(ctx context.Context, fromStatus, toStatus, by string, now time.Time) (int, error)
}

type TaskStatusRepo interface {
	NodeRepo[*domain.TaskStatus]
	Create(ctx context.Context, s *domain.TaskStatus) error
	GetByID(ctx context.Context, id string, vis domain.Visibility) (*domain.TaskStatus, error)
	Update(ctx context.Context, s *domain.TaskStatus) error
	ListByProject(ctx context.Context, tenantID, projectID string, vis domain.Visibility) ([]*domain.TaskStatus, error)
	GetProtected(ctx context.Context, tenantID, projectID string) (*domain.TaskStatus, error)
	FirstOpen(ctx context.Context, tenantID, projectID string) (*domain.TaskStatus, error)
	Reaches(ctx context.Context, fromID, targetID string) (bool, error)
}

type BacklogRepo interface {
	NodeRepo[*domain.Backlog]
	Create(ctx context.Context, b *domain.Backlog) error
	GetByID(ctx context.Context, id string, vis domain.Visibility) (*domain.Backlog, error)
	Update(ctx context.Context, b *domain.Backlog) error
	ListByProject(ctx context.Context, tenantID, projectID string, vis domain.Visibility) ([]*domain.Backlog, error)
}

type ProjectRepo interface {
	Create(ctx context.Context, p *domain.Project) error
	GetByID(ctx context.Context, id string, vis domain.Visibility) (*domain.Project, error)
	List(ctx context.Context, tenantID string, vis domain.Visibility) ([]*domain.Project, error)
	Update(ctx context.Context, p *domain.Project) error
}

type CatalogRepo interface {
	CreateHLR(ctx context.Context, h *domain.HLR) error
	GetHLR(ctx context.Context, id string, vis domain.Visibility) (*domain.HLR, error)
	ListHLRs(ctx context.Context, tenantID, projectID string, vis domain.Visibility) ([]*domain.HLR, error)
	CreateTaskType(ctx context.Context, tt *domain.TaskType) error
	GetTaskType(ctx context.Context, id string, vis domain.Visibility) (*domain.TaskType, error)
	ListTaskTypes(ctx context.Context, tenantID, projectID string, vis domain.Visibility) ([]*domain.TaskType, error)
	CreateResource(ctx context.Context, r *domain.Resource) error
}

type TaskLinkRepo interface {
	CreateBacklogLink(ctx context.Context, l *domain.TaskBacklog) error
	CreateResourceLink(ctx context.Context, l *domain.TaskResource) error
	CreateComment(ctx context.Context, c *domain.TaskComment) error
	CreateAll(ctx context.Context, links domain.TaskLinks) error
	ListForTasks(ctx context.Context, taskIDs []string, vis domain.Visibility) (domain.TaskLinks, error)
	SetDeletedForTasks(ctx context.Context, taskIDs []string, deleted bool, by string, now time.Time) error
	DeleteBacklogLinksTo(ctx context.Context, backlogID, by string, now time.Time) error
}

var (
	_ TaskRepo       = (*SQLiteTaskRepo)(nil)
	_ TaskStatusRepo = (*SQLiteTaskStatusRepo)(nil)
	_ BacklogRepo    = (*SQLiteBacklogRepo)(nil)
	_ ProjectRepo    = (*SQLiteProjectRepo)(nil)
	_ CatalogRepo    = (*SQLiteCatalogRepo)(nil)
	_ TaskLinkRepo   = (*SQLiteTaskLinkRepo)(nil)
)
