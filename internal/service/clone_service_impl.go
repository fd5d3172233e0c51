package service

import (
	"context"
	"fmt"
	"time"

	"github.com/alexanderramin/strata/internal/db"
	"github.com/alexanderramin/strata/internal/domain"
	"github.com/alexanderramin/strata/internal/repository"
	"github.com/alexanderramin/strata/internal/tree"
	"golang.org/x/sync/errgroup"
)

// CloneOptions shape a subtree clone. Name and Order apply to the root clone
// only; everything else applies to every cloned row.
type CloneOptions struct {
	Name string
	// Order places the root clone; nil appends it after its live siblings.
	Order *int
	// Rebase opens a gap at Order for the root clone.
	Rebase bool
	Branch bool
	Links  LinkSelection
	// ProjectID moves the clones into another project of the same tenant.
	// The root becomes top-level there, references leaving the subtree are
	// cleared, and every clone takes the target project's first open status.
	ProjectID string
	// CreatedBy stamps the clones instead of the acting user.
	CreatedBy string
}

type CloneResult struct {
	Root  *domain.Task
	Tasks []*domain.Task
	Links domain.TaskLinks
}

type DuplicateTaskOptions struct {
	Name          string
	Order         *int
	CloneSubTasks bool
	Comments      bool
	Rebase        bool
}

// DuplicateProjectOptions control a whole-project copy. Started defaults to
// the source start; task dates move by the difference. IncludeTemplates reads
// template rows, which instantiating from a template needs; Template marks
// every copied row as a template.
type DuplicateProjectOptions struct {
	Name             string
	Started          *time.Time
	Template         bool
	IncludeTemplates bool
}

type ProjectCloneResult struct {
	Project   *domain.Project
	Statuses  []*domain.TaskStatus
	TaskTypes []*domain.TaskType
	HLRs      []*domain.HLR
	Backlogs  []*domain.Backlog
	Tasks     []*domain.Task
	Links     domain.TaskLinks
}

type cloneService struct {
	projects repository.ProjectRepo
	statuses repository.TaskStatusRepo
	catalog  repository.CatalogRepo
	backlogs repository.BacklogRepo
	tasks    repository.TaskRepo
	links    repository.TaskLinkRepo
	uow      db.UnitOfWork
	newID    IDFunc
	observer UseCaseObserver
}

func NewCloneService(
	projects repository.ProjectRepo,
	statuses repository.TaskStatusRepo,
	catalog repository.CatalogRepo,
	backlogs repository.BacklogRepo,
	tasks repository.TaskRepo,
	links repository.TaskLinkRepo,
	uow db.UnitOfWork,
	observers ...UseCaseObserver,
) CloneService {
	return &cloneService{
		projects: projects,
		statuses: statuses,
		catalog:  catalog,
		backlogs: backlogs,
		tasks:    tasks,
		links:    links,
		uow:      uow,
		newID:    NewUUID,
		observer: useCaseObserverOrNoop(observers),
	}
}

// CloneSubtree copies a task, optionally with its live branch and join
// records, in one transaction. The root clone keeps the source parent and
// gets a free name among its new siblings.
func (s *cloneService) CloneSubtree(ctx context.Context, rootID string, opts CloneOptions) (res *CloneResult, err error) {
	startedAt := time.Now()
	fields := map[string]any{"root": rootID, "branch": opts.Branch}
	defer observe(ctx, s.observer, "clone-subtree", startedAt, fields, &err)

	err = s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		var err error
		res, err = cloneSubtree(ctx, tx, rootID, opts, s.newID, domain.CoalesceStr(opts.CreatedBy, actorFrom(ctx)))
		return err
	})
	if err != nil {
		return nil, err
	}
	fields["tasks"] = len(res.Tasks)
	return res, nil
}

func (s *cloneService) DuplicateTask(ctx context.Context, taskID string, opts DuplicateTaskOptions) (*CloneResult, error) {
	return s.CloneSubtree(ctx, taskID, CloneOptions{
		Name:   opts.Name,
		Order:  opts.Order,
		Rebase: opts.Rebase,
		Branch: opts.CloneSubTasks,
		Links:  LinkSelection{Backlogs: true, Resources: true, Comments: opts.Comments},
	})
}

func cloneSubtree(ctx context.Context, tx db.DBTX, rootID string, opts CloneOptions, newID IDFunc, by string) (*CloneResult, error) {
	tasks := repository.NewSQLiteTaskRepo(tx)
	links := repository.NewSQLiteTaskLinkRepo(tx)

	root, err := tasks.GetByID(ctx, rootID, domain.Live)
	if err != nil {
		return nil, notFound(err, "task", rootID)
	}
	set := []*domain.Task{root}
	if opts.Branch {
		branch, err := tasks.Branch(ctx, rootID, domain.Live)
		if err != nil {
			return nil, err
		}
		set = append(set, branch...)
	}
	var sourceLinks domain.TaskLinks
	if opts.Links != (LinkSelection{}) {
		if sourceLinks, err = links.ListForTasks(ctx, taskIDs(set), domain.Live); err != nil {
			return nil, err
		}
	}

	stamp := cloneStamp{TenantID: root.TenantID, By: by, Now: nowUTC()}
	var status *string
	if opts.ProjectID != "" && opts.ProjectID != root.ProjectID {
		if status, err = targetProject(ctx, tx, root.TenantID, opts.ProjectID); err != nil {
			return nil, err
		}
		stamp.ProjectID = opts.ProjectID
		stamp.StatusIDs = map[string]string{}
		stamp.TypeIDs = map[string]string{}
		stamp.HLRIDs = map[string]string{}
		stamp.BacklogIDs = map[string]string{}
	}

	cl := newTaskCloner(set, newID, stamp)
	clones := cl.cloneAll(set)
	newRoot, _ := cl.cloneOf(root.ID)
	if stamp.ProjectID != "" {
		for _, c := range clones {
			c.StatusAssignedAt = nil
			c.AssignStatus(status, stamp.Now)
		}
	}

	newRoot.Name, err = tasks.NextFreeName(ctx, newRoot.NodeScope(), domain.CoalesceStr(opts.Name, root.Name), "")
	if err != nil {
		return nil, err
	}
	if opts.Order != nil {
		newRoot.OrderIndex = *opts.Order
		if opts.Rebase {
			if _, err := openGap[*domain.Task](ctx, tasks, newRoot.NodeScope(), newRoot.ID, *opts.Order, by); err != nil {
				return nil, err
			}
		}
	} else {
		newRoot.OrderIndex = 0
		if err := assignDefaultOrder[*domain.Task](ctx, tasks, newRoot); err != nil {
			return nil, err
		}
	}

	newLinks := cl.cloneLinks(sourceLinks, opts.Links)
	if err := tasks.CreateBatch(ctx, clones); err != nil {
		return nil, fmt.Errorf("persisting cloned tasks: %w", err)
	}
	if err := links.CreateAll(ctx, newLinks); err != nil {
		return nil, fmt.Errorf("persisting cloned task links: %w", err)
	}
	return &CloneResult{Root: newRoot, Tasks: clones, Links: newLinks}, nil
}

// targetProject checks that projectID belongs to tenantID and returns its
// first open status, if it has one.
func targetProject(ctx context.Context, tx db.DBTX, tenantID, projectID string) (*string, error) {
	p, err := repository.NewSQLiteProjectRepo(tx).GetByID(ctx, projectID, domain.Live)
	if err != nil {
		return nil, notFound(err, "project", projectID)
	}
	if p.TenantID != tenantID {
		return nil, domain.NotFound("project", projectID)
	}
	first, err := repository.NewSQLiteTaskStatusRepo(tx).FirstOpen(ctx, tenantID, projectID)
	switch {
	case err == nil:
		return &first.ID, nil
	case isNotFound(err):
		return nil, nil
	default:
		return nil, err
	}
}

// projectPlan is the source side of a project copy.
type projectPlan struct {
	project  *domain.Project
	statuses []*domain.TaskStatus
	types    []*domain.TaskType
	hlrs     []*domain.HLR
	backlogs []*domain.Backlog
	tasks    []*domain.Task
	links    domain.TaskLinks
}

// loadProjectPlan reads the source project's tables concurrently.
func (s *cloneService) loadProjectPlan(ctx context.Context, projectID string, vis domain.Visibility) (*projectPlan, error) {
	p, err := s.projects.GetByID(ctx, projectID, vis)
	if err != nil {
		return nil, notFound(err, "project", projectID)
	}
	plan := &projectPlan{project: p}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		plan.statuses, err = s.statuses.ListByProject(gctx, p.TenantID, p.ID, vis)
		return err
	})
	g.Go(func() error {
		var err error
		plan.types, err = s.catalog.ListTaskTypes(gctx, p.TenantID, p.ID, vis)
		return err
	})
	g.Go(func() error {
		var err error
		plan.hlrs, err = s.catalog.ListHLRs(gctx, p.TenantID, p.ID, vis)
		return err
	})
	g.Go(func() error {
		var err error
		plan.backlogs, err = s.backlogs.ListByProject(gctx, p.TenantID, p.ID, vis)
		return err
	})
	g.Go(func() error {
		var err error
		plan.tasks, err = s.tasks.ListByProject(gctx, p.TenantID, p.ID, vis)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("loading project %s: %w", projectID, err)
	}

	if len(plan.tasks) > 0 {
		if plan.links, err = s.links.ListForTasks(ctx, taskIDs(plan.tasks), vis); err != nil {
			return nil, err
		}
	}
	return plan, nil
}

// DuplicateProject copies a project with its statuses, task types, HLRs,
// backlogs, tasks and task links. Every reference is remapped to the copy.
func (s *cloneService) DuplicateProject(ctx context.Context, projectID string, opts DuplicateProjectOptions) (res *ProjectCloneResult, err error) {
	startedAt := time.Now()
	fields := map[string]any{"project": projectID, "template": opts.Template}
	defer observe(ctx, s.observer, "duplicate-project", startedAt, fields, &err)

	vis := domain.Visibility{IncludeTemplates: opts.IncludeTemplates}
	plan, err := s.loadProjectPlan(ctx, projectID, vis)
	if err != nil {
		return nil, err
	}

	by := actorFrom(ctx)
	stamp := cloneStamp{TenantID: plan.project.TenantID, By: by, Now: nowUTC(), Template: opts.Template}
	res = s.buildProjectCopy(plan, opts, stamp)

	err = s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		if err := repository.NewSQLiteProjectRepo(tx).Create(ctx, res.Project); err != nil {
			return fmt.Errorf("creating project copy: %w", err)
		}
		statuses := repository.NewSQLiteTaskStatusRepo(tx)
		for _, st := range res.Statuses {
			if err := statuses.Create(ctx, st); err != nil {
				return fmt.Errorf("copying status %q: %w", st.Name, err)
			}
		}
		catalog := repository.NewSQLiteCatalogRepo(tx)
		for _, tt := range res.TaskTypes {
			if err := catalog.CreateTaskType(ctx, tt); err != nil {
				return fmt.Errorf("copying task type %q: %w", tt.Name, err)
			}
		}
		for _, h := range res.HLRs {
			if err := catalog.CreateHLR(ctx, h); err != nil {
				return fmt.Errorf("copying hlr %q: %w", h.Name, err)
			}
		}
		backlogs := repository.NewSQLiteBacklogRepo(tx)
		for _, b := range res.Backlogs {
			if err := backlogs.Create(ctx, b); err != nil {
				return fmt.Errorf("copying backlog %q: %w", b.Name, err)
			}
		}
		if err := repository.NewSQLiteTaskRepo(tx).CreateBatch(ctx, res.Tasks); err != nil {
			return fmt.Errorf("copying tasks: %w", err)
		}
		return repository.NewSQLiteTaskLinkRepo(tx).CreateAll(ctx, res.Links)
	})
	if err != nil {
		return nil, err
	}
	fields["new_project"] = res.Project.ID
	fields["tasks"] = len(res.Tasks)
	return res, nil
}

func (s *cloneService) buildProjectCopy(plan *projectPlan, opts DuplicateProjectOptions, stamp cloneStamp) *ProjectCloneResult {
	src := plan.project
	p := &domain.Project{
		ID:          s.newID(),
		Name:        domain.CoalesceStr(opts.Name, src.Name),
		Description: src.Description,
		Started:     src.Started,
		Audit:       stamp.audit(src.Audit),
	}
	if opts.Started != nil {
		start := opts.Started.UTC()
		p.Started = &start
		if src.Started != nil {
			stamp.Shift = start.Sub(*src.Started)
		}
	}
	stamp.ProjectID = p.ID
	res := &ProjectCloneResult{Project: p}

	statuses := parentsFirst(plan.statuses)
	stamp.StatusIDs = make(map[string]string, len(statuses))
	for _, st := range statuses {
		stamp.StatusIDs[st.ID] = s.newID()
	}
	for _, st := range statuses {
		c := st.Copy()
		c.ID = stamp.StatusIDs[st.ID]
		c.ProjectID = p.ID
		c.ParentID = remapRef(stamp.StatusIDs, st.ParentID)
		c.Audit = stamp.audit(st.Audit)
		res.Statuses = append(res.Statuses, c)
	}

	stamp.TypeIDs = make(map[string]string, len(plan.types))
	for _, tt := range plan.types {
		c := &domain.TaskType{ID: s.newID(), ProjectID: p.ID, Name: tt.Name, Audit: stamp.audit(tt.Audit)}
		stamp.TypeIDs[tt.ID] = c.ID
		res.TaskTypes = append(res.TaskTypes, c)
	}

	stamp.HLRIDs = make(map[string]string, len(plan.hlrs))
	for _, h := range plan.hlrs {
		c := &domain.HLR{ID: s.newID(), ProjectID: p.ID, Name: h.Name, Description: h.Description, Audit: stamp.audit(h.Audit)}
		stamp.HLRIDs[h.ID] = c.ID
		res.HLRs = append(res.HLRs, c)
	}

	stamp.BacklogIDs = make(map[string]string, len(plan.backlogs))
	for _, b := range plan.backlogs {
		hlrID, ok := stamp.HLRIDs[b.HLRID]
		if !ok {
			continue
		}
		c := b.Copy()
		c.ID = s.newID()
		c.HLRID = hlrID
		c.Audit = stamp.audit(b.Audit)
		stamp.BacklogIDs[b.ID] = c.ID
		res.Backlogs = append(res.Backlogs, c)
	}

	cl := newTaskCloner(plan.tasks, s.newID, stamp)
	res.Tasks = cl.cloneAll(parentsFirst(plan.tasks))
	res.Links = cl.cloneLinks(plan.links, allLinks)
	return res
}

// parentsFirst puts nodes in depth-first order. Nodes the walk cannot reach
// from a root, such as children of a parent outside the set, follow in their
// original order.
func parentsFirst[T domain.Node](nodes []T) []T {
	walked := tree.NewWalk(nodes, domain.Everything).All()
	out := make([]T, 0, len(nodes))
	seen := make(map[string]bool, len(walked))
	for _, r := range walked {
		out = append(out, r.Node)
		seen[r.Node.NodeID()] = true
	}
	for _, n := range nodes {
		if !seen[n.NodeID()] {
			out = append(out, n)
		}
	}
	return out
}
