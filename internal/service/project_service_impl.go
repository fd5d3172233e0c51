package service

import (
	"context"
	"fmt"
	"time"

	"github.com/alexanderramin/strata/internal/db"
	"github.com/alexanderramin/strata/internal/domain"
	"github.com/alexanderramin/strata/internal/repository"
)

// RescheduleProjectResult reports a project start move and the tasks it
// shifted.
type RescheduleProjectResult struct {
	Project *domain.Project
	Delta   time.Duration
	Shifted []*domain.Task
}

type projectService struct {
	projects repository.ProjectRepo
	catalog  repository.CatalogRepo
	uow      db.UnitOfWork
	newID    IDFunc
	observer UseCaseObserver
}

func NewProjectService(projects repository.ProjectRepo, catalog repository.CatalogRepo, uow db.UnitOfWork, observers ...UseCaseObserver) ProjectService {
	return &projectService{
		projects: projects,
		catalog:  catalog,
		uow:      uow,
		newID:    NewUUID,
		observer: useCaseObserverOrNoop(observers),
	}
}

// Create stores the project and seeds its workflow: the protected unassigned
// status at order 0, the default statuses after it and the default task types.
func (s *projectService) Create(ctx context.Context, p *domain.Project) (err error) {
	startedAt := time.Now()
	fields := map[string]any{"name": p.Name}
	defer observe(ctx, s.observer, "create-project", startedAt, fields, &err)

	if p.ID == "" {
		p.ID = s.newID()
	}
	by := actorFrom(ctx)
	now := nowUTC()
	template := p.Template
	p.Stamp(p.TenantID, by, now)
	p.Template = template
	if err := validateProject(p); err != nil {
		return err
	}

	err = s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		if err := repository.NewSQLiteProjectRepo(tx).Create(ctx, p); err != nil {
			return err
		}
		statuses := repository.NewSQLiteTaskStatusRepo(tx)
		for _, st := range defaultStatuses(p, s.newID, by, now) {
			if err := statuses.Create(ctx, st); err != nil {
				return fmt.Errorf("seeding status %q: %w", st.Name, err)
			}
		}
		catalog := repository.NewSQLiteCatalogRepo(tx)
		for _, name := range domain.DefaultTaskTypeNames {
			tt := &domain.TaskType{ID: s.newID(), ProjectID: p.ID, Name: name}
			tt.Stamp(p.TenantID, by, now)
			tt.Template = p.Template
			if err := catalog.CreateTaskType(ctx, tt); err != nil {
				return fmt.Errorf("seeding task type %q: %w", name, err)
			}
		}
		return nil
	})
	fields["id"] = p.ID
	return err
}

func defaultStatuses(p *domain.Project, newID IDFunc, by string, now time.Time) []*domain.TaskStatus {
	out := make([]*domain.TaskStatus, 0, len(domain.DefaultStatusNames)+1)
	add := func(name string, order int, protected, final bool) {
		st := &domain.TaskStatus{
			ID:         newID(),
			ProjectID:  p.ID,
			Name:       name,
			OrderIndex: order,
			Protected:  protected,
			FinalStage: final,
		}
		st.Stamp(p.TenantID, by, now)
		st.Template = p.Template
		out = append(out, st)
	}
	add(domain.UnassignedStatusName, 0, true, false)
	for i, name := range domain.DefaultStatusNames {
		add(name, i+1, false, name == domain.DefaultFinalStatus)
	}
	return out
}

func (s *projectService) GetByID(ctx context.Context, id string) (*domain.Project, error) {
	p, err := s.projects.GetByID(ctx, id, domain.Live)
	if err != nil {
		return nil, notFound(err, "project", id)
	}
	return p, nil
}

func (s *projectService) List(ctx context.Context, tenantID string, includeTemplates bool) ([]*domain.Project, error) {
	return s.projects.List(ctx, tenantID, domain.Visibility{IncludeTemplates: includeTemplates})
}

func (s *projectService) CreateHLR(ctx context.Context, h *domain.HLR) (err error) {
	startedAt := time.Now()
	fields := map[string]any{"project": h.ProjectID, "name": h.Name}
	defer observe(ctx, s.observer, "create-hlr", startedAt, fields, &err)

	if h.Name == "" {
		return domain.Validation("name", "name is required")
	}
	if h.ID == "" {
		h.ID = s.newID()
	}
	p, err := s.projects.GetByID(ctx, h.ProjectID, domain.Visibility{IncludeTemplates: h.Template})
	if err != nil || p.TenantID != h.TenantID {
		return refError(err, "project", h.ProjectID)
	}
	template := h.Template
	h.Stamp(h.TenantID, actorFrom(ctx), nowUTC())
	h.Template = template
	return s.catalog.CreateHLR(ctx, h)
}

// Reschedule moves the project start. Tasks that would start before the new
// start block the move unless cascade shifts every started task by the same
// delta.
func (s *projectService) Reschedule(ctx context.Context, projectID string, newStart time.Time, cascade bool) (res *RescheduleProjectResult, err error) {
	startedAt := time.Now()
	fields := map[string]any{"project": projectID, "cascade": cascade}
	defer observe(ctx, s.observer, "reschedule-project", startedAt, fields, &err)

	newStart = newStart.UTC()
	err = s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		projects := repository.NewSQLiteProjectRepo(tx)
		tasks := repository.NewSQLiteTaskRepo(tx)
		p, err := projects.GetByID(ctx, projectID, domain.Live)
		if err != nil {
			return notFound(err, "project", projectID)
		}
		by := actorFrom(ctx)
		res = &RescheduleProjectResult{Project: p}
		if p.Started != nil {
			res.Delta = newStart.Sub(*p.Started)
		}

		early, err := tasks.ListStartedBefore(ctx, p.TenantID, p.ID, newStart, domain.Live)
		if err != nil {
			return err
		}
		switch {
		case cascade && res.Delta != 0:
			if res.Shifted, err = rebaseScopeDates(ctx, tasks, p.TenantID, p.ID, res.Delta, by); err != nil {
				return err
			}
		case !cascade && len(early) > 0:
			return domain.Conflict(domain.MsgRebaseInPast, taskIDs(early))
		}

		p.Started = &newStart
		p.UpdatedBy = by
		return projects.Update(ctx, p)
	})
	if err != nil {
		return nil, err
	}
	fields["shifted"] = len(res.Shifted)
	return res, nil
}
