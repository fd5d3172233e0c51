package service

import (
	"context"
	"time"

	"github.com/alexanderramin/strata/internal/domain"
)

// HierarchyService is the ordering and traversal engine shared by tasks,
// task statuses and backlog items.
type HierarchyService[T domain.Node] interface {
	AssignDefaultOrder(ctx context.Context, node T) error
	Rebase(ctx context.Context, id string, target int) error
	AncestorChain(ctx context.Context, id string) ([]T, error)
	FullOrderLabel(ctx context.Context, id string) (string, error)
	DescendantBranch(ctx context.Context, id string, vis domain.Visibility) ([]T, error)
	ScopeOrdered(ctx context.Context, scope domain.Scope, search string) ([]Listed[T], error)
}

type ScheduleService interface {
	RebaseBranchDates(ctx context.Context, taskID string, delta time.Duration, anchor domain.DateField) ([]*domain.Task, error)
	RebaseScopeDates(ctx context.Context, tenantID, projectID string, delta time.Duration) ([]*domain.Task, error)
	DetectDescendantDateConflicts(ctx context.Context, taskID string, proposed time.Time, which domain.DateField) ([]*domain.Task, error)
	RescheduleTask(ctx context.Context, req RescheduleRequest) (*domain.Task, error)
}

type RecurrenceService interface {
	GenerateRecurringInstances(ctx context.Context, req RecurrenceRequest) (*RecurrenceResult, error)
}

type CloneService interface {
	CloneSubtree(ctx context.Context, rootID string, opts CloneOptions) (*CloneResult, error)
	DuplicateTask(ctx context.Context, taskID string, opts DuplicateTaskOptions) (*CloneResult, error)
	DuplicateProject(ctx context.Context, projectID string, opts DuplicateProjectOptions) (*ProjectCloneResult, error)
}

type TaskService interface {
	Create(ctx context.Context, t *domain.Task, opts CreateTaskOptions) (*TaskWriteResult, error)
	Update(ctx context.Context, t *domain.Task, opts UpdateTaskOptions) (*TaskWriteResult, error)
	GetByID(ctx context.Context, id string) (*domain.Task, error)
	Delete(ctx context.Context, id string) error
	Restore(ctx context.Context, id string) error
	ListOrdered(ctx context.Context, tenantID, projectID string, parentID *string, search string) ([]Listed[*domain.Task], error)
	ExportConflicts(ctx context.Context, taskIDs []string) (string, error)
}

type TaskStatusService interface {
	Create(ctx context.Context, s *domain.TaskStatus, rebase bool) error
	Update(ctx context.Context, s *domain.TaskStatus, rebase bool) error
	GetByID(ctx context.Context, id string) (*domain.TaskStatus, error)
	Delete(ctx context.Context, id string) (int, error)
	ListOrdered(ctx context.Context, tenantID, projectID, search string) ([]Listed[*domain.TaskStatus], error)
}

type BacklogService interface {
	Create(ctx context.Context, b *domain.Backlog) error
	Move(ctx context.Context, id string, target int) error
	Duplicate(ctx context.Context, id, name string) (*domain.Backlog, error)
	ListOrdered(ctx context.Context, tenantID, hlrID, search string) ([]Listed[*domain.Backlog], error)
}

type ProjectService interface {
	Create(ctx context.Context, p *domain.Project) error
	GetByID(ctx context.Context, id string) (*domain.Project, error)
	List(ctx context.Context, tenantID string, includeTemplates bool) ([]*domain.Project, error)
	CreateHLR(ctx context.Context, h *domain.HLR) error
	Reschedule(ctx context.Context, projectID string, newStart time.Time, cascade bool) (*RescheduleProjectResult, error)
}
