package service

import (
	"context"
	"time"

	"github.com/alexanderramin/strata/internal/db"
	"github.com/alexanderramin/strata/internal/domain"
	"github.com/alexanderramin/strata/internal/repository"
)

type statusService struct {
	statuses repository.TaskStatusRepo
	uow      db.UnitOfWork
	newID    IDFunc
	observer UseCaseObserver
}

func NewTaskStatusService(statuses repository.TaskStatusRepo, uow db.UnitOfWork, observers ...UseCaseObserver) TaskStatusService {
	return &statusService{
		statuses: statuses,
		uow:      uow,
		newID:    NewUUID,
		observer: useCaseObserverOrNoop(observers),
	}
}

// Create adds a workflow column. With rebase an explicit order becomes an
// insertion point; otherwise the status goes after its siblings.
func (s *statusService) Create(ctx context.Context, st *domain.TaskStatus, rebase bool) (err error) {
	startedAt := time.Now()
	fields := map[string]any{"project": st.ProjectID, "name": st.Name}
	defer observe(ctx, s.observer, "create-status", startedAt, fields, &err)

	if st.ID == "" {
		st.ID = s.newID()
	}
	by := actorFrom(ctx)
	template := st.Template
	st.Stamp(st.TenantID, by, nowUTC())
	st.Template = template
	st.Protected = false
	if err := validateStatus(st); err != nil {
		return err
	}

	return s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		repo := repository.NewSQLiteTaskStatusRepo(tx)
		if err := checkStatusParent(ctx, repo, st); err != nil {
			return err
		}
		if rebase && st.OrderIndex > 0 {
			if _, err := openGap[*domain.TaskStatus](ctx, repo, st.NodeScope(), st.ID, st.OrderIndex, by); err != nil {
				return err
			}
		} else if err := assignDefaultOrder[*domain.TaskStatus](ctx, repo, st); err != nil {
			return err
		}
		return repo.Create(ctx, st)
	})
}

func (s *statusService) Update(ctx context.Context, st *domain.TaskStatus, rebase bool) (err error) {
	startedAt := time.Now()
	fields := map[string]any{"id": st.ID}
	defer observe(ctx, s.observer, "update-status", startedAt, fields, &err)

	if err := validateStatus(st); err != nil {
		return err
	}
	by := actorFrom(ctx)

	return s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		repo := repository.NewSQLiteTaskStatusRepo(tx)
		cur, err := repo.GetByID(ctx, st.ID, domain.Visibility{IncludeTemplates: st.Template})
		if err != nil {
			return notFound(err, "task_status", st.ID)
		}
		if cur.ProjectID != st.ProjectID || cur.TenantID != st.TenantID {
			return domain.Validation("project", "a status can't move to another project")
		}
		st.Protected = cur.Protected
		if err := checkStatusParent(ctx, repo, st); err != nil {
			return err
		}

		parentMoved := !domain.SameStr(cur.ParentID, st.ParentID)
		switch {
		case rebase && (parentMoved || cur.OrderIndex != st.OrderIndex):
			n, err := openGap[*domain.TaskStatus](ctx, repo, st.NodeScope(), st.ID, st.OrderIndex, by)
			if err != nil {
				return err
			}
			fields["reordered"] = n
		case parentMoved && cur.OrderIndex == st.OrderIndex:
			st.OrderIndex = 0
			if err := assignDefaultOrder[*domain.TaskStatus](ctx, repo, st); err != nil {
				return err
			}
		}
		st.UpdatedBy = by
		return repo.Update(ctx, st)
	})
}

func (s *statusService) GetByID(ctx context.Context, id string) (*domain.TaskStatus, error) {
	st, err := s.statuses.GetByID(ctx, id, domain.Live)
	if err != nil {
		return nil, notFound(err, "task_status", id)
	}
	return st, nil
}

// Delete tombstones a status and moves its tasks to the project's unassigned
// status. It returns how many tasks moved.
func (s *statusService) Delete(ctx context.Context, id string) (moved int, err error) {
	startedAt := time.Now()
	fields := map[string]any{"id": id}
	defer observe(ctx, s.observer, "delete-status", startedAt, fields, &err)

	err = s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		repo := repository.NewSQLiteTaskStatusRepo(tx)
		st, err := repo.GetByID(ctx, id, domain.Live)
		if err != nil {
			return notFound(err, "task_status", id)
		}
		if st.Protected {
			return domain.Validation("name", "the unassigned status can't be deleted")
		}
		fallback, err := repo.GetProtected(ctx, st.TenantID, st.ProjectID)
		if err != nil {
			return err
		}

		by := actorFrom(ctx)
		now := nowUTC()
		st.Tombstone(by, now)
		if err := repo.Update(ctx, st); err != nil {
			return err
		}
		moved, err = repository.NewSQLiteTaskRepo(tx).ReassignStatus(ctx, st.ID, fallback.ID, by, now)
		return err
	})
	fields["moved"] = moved
	return moved, err
}

func (s *statusService) ListOrdered(ctx context.Context, tenantID, projectID, search string) ([]Listed[*domain.TaskStatus], error) {
	scope := domain.Scope{Kind: domain.KindTaskStatus, TenantID: tenantID, ProjectID: projectID}
	rows, err := s.statuses.ScopeOrdered(ctx, scope, search, domain.Live)
	if err != nil {
		return nil, err
	}
	return labelRows(rows), nil
}

func checkStatusParent(ctx context.Context, repo repository.TaskStatusRepo, st *domain.TaskStatus) error {
	if st.ParentID == nil {
		return nil
	}
	if *st.ParentID == st.ID {
		return domain.Validation("parent", "Can't be parent of same task!")
	}
	parent, err := repo.GetByID(ctx, *st.ParentID, domain.Visibility{IncludeTemplates: st.Template})
	if err != nil || parent.TenantID != st.TenantID || parent.ProjectID != st.ProjectID {
		return refError(err, "parent", *st.ParentID)
	}
	found, err := repo.Reaches(ctx, *st.ParentID, st.ID)
	if err != nil {
		return err
	}
	if found {
		return domain.Cycle("parent", "Parent can't be part of its own child")
	}
	return nil
}
