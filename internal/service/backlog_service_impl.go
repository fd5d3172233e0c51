package service

import (
	"context"
	"time"

	"github.com/alexanderramin/strata/internal/db"
	"github.com/alexanderramin/strata/internal/domain"
	"github.com/alexanderramin/strata/internal/repository"
)

type backlogService struct {
	backlogs repository.BacklogRepo
	catalog  repository.CatalogRepo
	uow      db.UnitOfWork
	newID    IDFunc
	observer UseCaseObserver
}

func NewBacklogService(backlogs repository.BacklogRepo, catalog repository.CatalogRepo, uow db.UnitOfWork, observers ...UseCaseObserver) BacklogService {
	return &backlogService{
		backlogs: backlogs,
		catalog:  catalog,
		uow:      uow,
		newID:    NewUUID,
		observer: useCaseObserverOrNoop(observers),
	}
}

func (s *backlogService) Create(ctx context.Context, b *domain.Backlog) (err error) {
	startedAt := time.Now()
	fields := map[string]any{"hlr": b.HLRID, "name": b.Name}
	defer observe(ctx, s.observer, "create-backlog", startedAt, fields, &err)

	if b.ID == "" {
		b.ID = s.newID()
	}
	template := b.Template
	b.Stamp(b.TenantID, actorFrom(ctx), nowUTC())
	b.Template = template
	if err := validateBacklog(b); err != nil {
		return err
	}

	return s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		h, err := repository.NewSQLiteCatalogRepo(tx).GetHLR(ctx, b.HLRID, domain.Visibility{IncludeTemplates: b.Template})
		if err != nil || h.TenantID != b.TenantID {
			return refError(err, "hlr", b.HLRID)
		}
		repo := repository.NewSQLiteBacklogRepo(tx)
		if err := assignDefaultOrder[*domain.Backlog](ctx, repo, b); err != nil {
			return err
		}
		return repo.Create(ctx, b)
	})
}

// Move places the backlog item at target within its HLR, shifting the items
// at or above target.
func (s *backlogService) Move(ctx context.Context, id string, target int) (err error) {
	startedAt := time.Now()
	fields := map[string]any{"id": id, "target": target}
	defer observe(ctx, s.observer, "move-backlog", startedAt, fields, &err)

	return s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		repo := repository.NewSQLiteBacklogRepo(tx)
		b, err := repo.GetByID(ctx, id, domain.Live)
		if err != nil {
			return notFound(err, "backlog", id)
		}
		n, err := rebaseNode[*domain.Backlog](ctx, repo, b, target, actorFrom(ctx))
		fields["shifted"] = n
		return err
	})
}

// Duplicate copies a backlog item into the same HLR after its siblings. An
// empty name keeps the source's.
func (s *backlogService) Duplicate(ctx context.Context, id, name string) (dup *domain.Backlog, err error) {
	startedAt := time.Now()
	fields := map[string]any{"id": id}
	defer observe(ctx, s.observer, "duplicate-backlog", startedAt, fields, &err)

	err = s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		repo := repository.NewSQLiteBacklogRepo(tx)
		src, err := repo.GetByID(ctx, id, domain.Live)
		if err != nil {
			return notFound(err, "backlog", id)
		}
		dup = src.Copy()
		dup.ID = s.newID()
		dup.Name = domain.CoalesceStr(name, src.Name)
		dup.OrderIndex = 0
		dup.Stamp(src.TenantID, actorFrom(ctx), nowUTC())
		dup.Template = src.Template
		if err := assignDefaultOrder[*domain.Backlog](ctx, repo, dup); err != nil {
			return err
		}
		return repo.Create(ctx, dup)
	})
	if err != nil {
		return nil, err
	}
	fields["copy"] = dup.ID
	return dup, nil
}

func (s *backlogService) ListOrdered(ctx context.Context, tenantID, hlrID, search string) ([]Listed[*domain.Backlog], error) {
	scope := domain.Scope{Kind: domain.KindBacklog, TenantID: tenantID, HLRID: hlrID}
	rows, err := s.backlogs.ScopeOrdered(ctx, scope, search, domain.Live)
	if err != nil {
		return nil, err
	}
	return labelRows(rows), nil
}
