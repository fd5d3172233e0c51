package service

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/alexanderramin/strata/internal/artifact"
	"github.com/alexanderramin/strata/internal/db"
	"github.com/alexanderramin/strata/internal/domain"
	"github.com/alexanderramin/strata/internal/recurrence"
	"github.com/alexanderramin/strata/internal/repository"
	"github.com/alexanderramin/strata/internal/tree"
	"golang.org/x/sync/errgroup"
)

// CreateTaskOptions tune the create hook. RebaseOrder treats a non-zero order
// as an insertion point and shifts the siblings above it; otherwise the task
// is appended. Timezone and Anchor feed recurrence expansion.
type CreateTaskOptions struct {
	Timezone    string
	Anchor      domain.DateField
	RebaseOrder bool
}

// UpdateTaskOptions tune the update hook. CascadeDates shifts the branch when
// a schedule date moves instead of rejecting descendant conflicts.
type UpdateTaskOptions struct {
	Timezone     string
	Anchor       domain.DateField
	CascadeDates bool
	RebaseOrder  bool
}

// TaskWriteResult reports what a create or update touched besides the task.
type TaskWriteResult struct {
	Task        *domain.Task
	Reordered   int
	Rescheduled []*domain.Task
	Predecessor *domain.Task
	Recurrence  *RecurrenceResult
}

// TaskServiceDeps wires a task service.
type TaskServiceDeps struct {
	Projects       repository.ProjectRepo
	Statuses       repository.TaskStatusRepo
	Catalog        repository.CatalogRepo
	Tasks          repository.TaskRepo
	Rules          recurrence.Evaluator
	MaxRecurrences int
	Sink           artifact.Sink
	UoW            db.UnitOfWork
}

type taskService struct {
	projects   repository.ProjectRepo
	statuses   repository.TaskStatusRepo
	catalog    repository.CatalogRepo
	tasks      repository.TaskRepo
	rules      recurrence.Evaluator
	recurrence *recurrenceService
	sink       artifact.Sink
	uow        db.UnitOfWork
	newID      IDFunc
	observer   UseCaseObserver
}

func NewTaskService(deps TaskServiceDeps, observers ...UseCaseObserver) TaskService {
	return newTaskService(deps, observers...)
}

func newTaskService(deps TaskServiceDeps, observers ...UseCaseObserver) *taskService {
	rules := deps.Rules
	if rules == nil {
		rules = recurrence.NewRRuleEvaluator()
	}
	return &taskService{
		projects:   deps.Projects,
		statuses:   deps.Statuses,
		catalog:    deps.Catalog,
		tasks:      deps.Tasks,
		rules:      rules,
		recurrence: newRecurrenceService(rules, deps.UoW, deps.MaxRecurrences),
		sink:       deps.Sink,
		uow:        deps.UoW,
		newID:      NewUUID,
		observer:   useCaseObserverOrNoop(observers),
	}
}

// taskTx bundles the repos a task hook uses inside its transaction.
type taskTx struct {
	db       db.DBTX
	projects *repository.SQLiteProjectRepo
	statuses *repository.SQLiteTaskStatusRepo
	catalog  *repository.SQLiteCatalogRepo
	tasks    *repository.SQLiteTaskRepo
	links    *repository.SQLiteTaskLinkRepo
}

func bindTaskTx(tx db.DBTX) *taskTx {
	return &taskTx{
		db:       tx,
		projects: repository.NewSQLiteProjectRepo(tx),
		statuses: repository.NewSQLiteTaskStatusRepo(tx),
		catalog:  repository.NewSQLiteCatalogRepo(tx),
		tasks:    repository.NewSQLiteTaskRepo(tx),
		links:    repository.NewSQLiteTaskLinkRepo(tx),
	}
}

// taskRefs are the rows a task points at, loaded while checking them.
type taskRefs struct {
	project    *domain.Project
	dependency *domain.Task
}

func (s *taskService) Create(ctx context.Context, t *domain.Task, opts CreateTaskOptions) (res *TaskWriteResult, err error) {
	startedAt := time.Now()
	fields := map[string]any{"project": t.ProjectID, "name": t.Name}
	defer observe(ctx, s.observer, "create-task", startedAt, fields, &err)

	by := actorFrom(ctx)
	now := nowUTC()
	if t.ID == "" {
		t.ID = s.newID()
	}
	template := t.Template
	t.Stamp(t.TenantID, by, now)
	t.Template = template

	if err := s.checkFields(t); err != nil {
		return nil, err
	}

	res = &TaskWriteResult{Task: t}
	err = s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		r := bindTaskTx(tx)
		refs, err := s.checkRefs(ctx, r, t)
		if err != nil {
			return err
		}
		if err := checkTaskCycles(ctx, r.tasks, t); err != nil {
			return err
		}
		if err := checkTaskDates(t, refs); err != nil {
			return err
		}

		if t.Name, err = r.tasks.NextFreeName(ctx, t.NodeScope(), t.Name, t.ID); err != nil {
			return err
		}
		if t.StatusID == nil {
			first, err := r.statuses.FirstOpen(ctx, t.TenantID, t.ProjectID)
			switch {
			case err == nil:
				t.StatusID = &first.ID
			case !isNotFound(err):
				return err
			}
		}
		t.StatusAssignedAt = nil
		t.AssignStatus(t.StatusID, now)

		if opts.RebaseOrder && t.OrderIndex > 0 {
			if res.Reordered, err = openGap[*domain.Task](ctx, r.tasks, t.NodeScope(), t.ID, t.OrderIndex, by); err != nil {
				return err
			}
		} else if err := assignDefaultOrder[*domain.Task](ctx, r.tasks, t); err != nil {
			return err
		}

		if err := r.tasks.Create(ctx, t); err != nil {
			return err
		}
		if res.Predecessor, err = pushPredecessor(ctx, r.tasks, t, by); err != nil {
			return err
		}
		if t.RecurrenceRule != "" {
			res.Recurrence, err = s.recurrence.generate(ctx, tx, t, RecurrenceRequest{
				SeedID:   t.ID,
				Timezone: opts.Timezone,
				Anchor:   opts.Anchor,
				Commit:   true,
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	fields["id"] = t.ID
	if res.Recurrence != nil {
		fields["recurring_instances"] = res.Recurrence.Instances
	}
	return res, nil
}

func (s *taskService) Update(ctx context.Context, t *domain.Task, opts UpdateTaskOptions) (res *TaskWriteResult, err error) {
	startedAt := time.Now()
	fields := map[string]any{"id": t.ID}
	defer observe(ctx, s.observer, "update-task", startedAt, fields, &err)

	if err := s.checkFields(t); err != nil {
		return nil, err
	}
	by := actorFrom(ctx)
	now := nowUTC()

	res = &TaskWriteResult{Task: t}
	err = s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		r := bindTaskTx(tx)
		cur, err := r.tasks.GetByID(ctx, t.ID, domain.Visibility{IncludeTemplates: t.Template})
		if err != nil {
			return notFound(err, "task", t.ID)
		}
		if cur.ProjectID != t.ProjectID || cur.TenantID != t.TenantID {
			return domain.Validation("project", "a task can't move to another project")
		}
		t.RecurrenceOf = cur.RecurrenceOf

		refs, err := s.checkRefs(ctx, r, t)
		if err != nil {
			return err
		}
		if err := checkTaskCycles(ctx, r.tasks, t); err != nil {
			return err
		}
		if err := checkTaskDates(t, refs); err != nil {
			return err
		}

		parentMoved := !domain.SameStr(cur.ParentID, t.ParentID)
		if parentMoved || cur.Name != t.Name {
			if t.Name, err = r.tasks.NextFreeName(ctx, t.NodeScope(), t.Name, t.ID); err != nil {
				return err
			}
		}

		if domain.SameStr(cur.StatusID, t.StatusID) {
			t.StatusAssignedAt = cur.StatusAssignedAt
		} else {
			t.StatusAssignedAt = nil
			t.AssignStatus(t.StatusID, now)
		}

		if res.Rescheduled, err = reconcileBranchDates(ctx, r.tasks, cur, t, opts.CascadeDates, by); err != nil {
			return err
		}

		switch {
		case opts.RebaseOrder && (parentMoved || cur.OrderIndex != t.OrderIndex):
			if res.Reordered, err = openGap[*domain.Task](ctx, r.tasks, t.NodeScope(), t.ID, t.OrderIndex, by); err != nil {
				return err
			}
		case parentMoved && t.OrderIndex == cur.OrderIndex:
			t.OrderIndex = 0
			if err := assignDefaultOrder[*domain.Task](ctx, r.tasks, t); err != nil {
				return err
			}
		}

		t.UpdatedBy = by
		if err := r.tasks.Update(ctx, t); err != nil {
			return err
		}

		if !domain.SameStr(cur.PredecessorID, t.PredecessorID) || !sameTime(cur.Deadline, t.Deadline) {
			if res.Predecessor, err = pushPredecessor(ctx, r.tasks, t, by); err != nil {
				return err
			}
		}
		if cur.RecurrenceRule == "" && t.RecurrenceRule != "" {
			res.Recurrence, err = s.recurrence.generate(ctx, tx, t, RecurrenceRequest{
				SeedID:   t.ID,
				Timezone: opts.Timezone,
				Anchor:   opts.Anchor,
				Commit:   true,
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	fields["rescheduled"] = len(res.Rescheduled)
	return res, nil
}

func (s *taskService) GetByID(ctx context.Context, id string) (*domain.Task, error) {
	t, err := s.tasks.GetByID(ctx, id, domain.Live)
	if err != nil {
		return nil, notFound(err, "task", id)
	}
	return t, nil
}

// Delete tombstones the task, its live branch and their join records.
func (s *taskService) Delete(ctx context.Context, id string) (err error) {
	startedAt := time.Now()
	fields := map[string]any{"id": id}
	defer observe(ctx, s.observer, "delete-task", startedAt, fields, &err)

	return s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		r := bindTaskTx(tx)
		t, err := r.tasks.GetByID(ctx, id, domain.Live)
		if err != nil {
			return notFound(err, "task", id)
		}
		branch, err := r.tasks.Branch(ctx, id, domain.Live)
		if err != nil {
			return err
		}
		all := append([]*domain.Task{t}, branch...)
		fields["tasks"] = len(all)
		return setTombstones(ctx, r, all, true, actorFrom(ctx))
	})
}

// Restore clears the tombstone of a task and of everything below it. A task
// under a tombstoned parent can't be restored on its own.
func (s *taskService) Restore(ctx context.Context, id string) (err error) {
	startedAt := time.Now()
	fields := map[string]any{"id": id}
	defer observe(ctx, s.observer, "restore-task", startedAt, fields, &err)

	return s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		r := bindTaskTx(tx)
		t, err := r.tasks.GetByID(ctx, id, domain.WithTombs)
		if err != nil {
			return notFound(err, "task", id)
		}
		if t.ParentID != nil {
			if _, err := r.tasks.GetByID(ctx, *t.ParentID, domain.Live); err != nil {
				if isNotFound(err) {
					return domain.Validation("parent", "restore the parent task first")
				}
				return err
			}
		}
		branch, err := r.tasks.Branch(ctx, id, domain.WithTombs)
		if err != nil {
			return err
		}
		all := append([]*domain.Task{t}, branch...)
		fields["tasks"] = len(all)
		return setTombstones(ctx, r, all, false, actorFrom(ctx))
	})
}

func setTombstones(ctx context.Context, r *taskTx, tasks []*domain.Task, deleted bool, by string) error {
	now := nowUTC()
	var touched []*domain.Task
	for _, t := range tasks {
		if t.Deleted == deleted {
			continue
		}
		if deleted {
			t.Tombstone(by, now)
		} else {
			t.Restore(by, now)
		}
		if err := r.tasks.Update(ctx, t); err != nil {
			return err
		}
		touched = append(touched, t)
	}
	if len(touched) == 0 {
		return nil
	}
	return r.links.SetDeletedForTasks(ctx, taskIDs(touched), deleted, by, now)
}

// ListOrdered lists a project's tasks depth-first. With parentID the listing
// covers that task's branch and labels stay relative to the whole project.
func (s *taskService) ListOrdered(ctx context.Context, tenantID, projectID string, parentID *string, search string) ([]Listed[*domain.Task], error) {
	scope := domain.Scope{Kind: domain.KindTask, TenantID: tenantID, ProjectID: projectID, ParentID: parentID}
	rows, err := s.tasks.ScopeOrdered(ctx, scope, search, domain.Live)
	if err != nil {
		return nil, err
	}
	listed := labelRows(rows)
	if parentID == nil {
		return listed, nil
	}
	chain, err := s.tasks.Ancestors(ctx, *parentID, domain.Live)
	if err != nil {
		return nil, notFound(err, "task", *parentID)
	}
	prefix := tree.Label(chain)
	if prefix != "" {
		prefix += "."
	}
	prefix += fmt.Sprint(chain[0].OrderIndex)
	for i := range listed {
		listed[i].Label = strings.Trim(prefix+"."+listed[i].Label, ".")
	}
	return listed, nil
}

// ExportConflicts renders the given tasks as a conflict report and stores it
// in the configured sink, returning the locator.
func (s *taskService) ExportConflicts(ctx context.Context, ids []string) (loc string, err error) {
	startedAt := time.Now()
	fields := map[string]any{"tasks": len(ids)}
	defer observe(ctx, s.observer, "export-conflicts", startedAt, fields, &err)

	if s.sink == nil {
		return "", fmt.Errorf("no artifact sink configured")
	}
	tasks := make([]*domain.Task, 0, len(ids))
	for _, id := range ids {
		t, err := s.tasks.GetByID(ctx, id, domain.Everything)
		if err != nil {
			return "", notFound(err, "task", id)
		}
		tasks = append(tasks, t)
	}
	rows, err := s.conflictRows(ctx, tasks)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := artifact.WriteConflicts(&buf, rows); err != nil {
		return "", err
	}
	name := fmt.Sprintf("conflict-tasks-%s.csv", nowUTC().Format("20060102T150405Z"))
	loc, err = s.sink.Put(ctx, name, &buf)
	if err != nil {
		return "", fmt.Errorf("storing conflict report: %w", err)
	}
	fields["locator"] = loc
	return loc, nil
}

// conflictRows resolves the names a conflict report shows, loading each
// project's lookup tables concurrently.
func (s *taskService) conflictRows(ctx context.Context, tasks []*domain.Task) ([]artifact.ConflictRow, error) {
	type lookups struct {
		project  string
		statuses map[string]string
		types    map[string]string
		tasks    map[string]string
	}
	byProject := make(map[string]*lookups)
	for _, t := range tasks {
		if _, ok := byProject[t.ProjectID]; ok {
			continue
		}
		byProject[t.ProjectID] = &lookups{}
	}

	g, gctx := errgroup.WithContext(ctx)
	for projectID, lk := range byProject {
		tenantID := ""
		for _, t := range tasks {
			if t.ProjectID == projectID {
				tenantID = t.TenantID
				break
			}
		}
		g.Go(func() error {
			p, err := s.projects.GetByID(gctx, projectID, domain.Everything)
			if err != nil {
				return notFound(err, "project", projectID)
			}
			lk.project = p.Name
			return nil
		})
		g.Go(func() error {
			statuses, err := s.statuses.ListByProject(gctx, tenantID, projectID, domain.Everything)
			if err != nil {
				return err
			}
			lk.statuses = make(map[string]string, len(statuses))
			for _, st := range statuses {
				lk.statuses[st.ID] = st.Name
			}
			return nil
		})
		g.Go(func() error {
			types, err := s.catalog.ListTaskTypes(gctx, tenantID, projectID, domain.Everything)
			if err != nil {
				return err
			}
			lk.types = make(map[string]string, len(types))
			for _, tt := range types {
				lk.types[tt.ID] = tt.Name
			}
			return nil
		})
		g.Go(func() error {
			all, err := s.tasks.ListByProject(gctx, tenantID, projectID, domain.Everything)
			if err != nil {
				return err
			}
			lk.tasks = make(map[string]string, len(all))
			for _, t := range all {
				lk.tasks[t.ID] = t.Name
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("loading conflict lookups: %w", err)
	}

	rows := make([]artifact.ConflictRow, 0, len(tasks))
	for _, t := range tasks {
		lk := byProject[t.ProjectID]
		rows = append(rows, artifact.ConflictRow{
			ID:          t.ID,
			Name:        t.Name,
			Description: t.Description,
			TaskType:    lk.types[domain.StrVal(t.TaskTypeID)],
			Status:      lk.statuses[domain.StrVal(t.StatusID)],
			Started:     t.Started,
			Deadline:    t.Deadline,
			Project:     lk.project,
			ParentTask:  lk.tasks[domain.StrVal(t.ParentID)],
		})
	}
	return rows, nil
}

// checkFields validates what can be checked without storage.
func (s *taskService) checkFields(t *domain.Task) error {
	if err := validateTask(t); err != nil {
		return err
	}
	if t.RecurrenceRule != "" {
		if err := s.rules.Validate(t.RecurrenceRule); err != nil {
			return domain.Validation("recurrence_rule", err.Error())
		}
	}
	return nil
}

// checkRefs verifies that every referenced row exists in the task's tenant
// and project.
func (s *taskService) checkRefs(ctx context.Context, r *taskTx, t *domain.Task) (*taskRefs, error) {
	vis := domain.Visibility{IncludeTemplates: t.Template}
	refs := &taskRefs{}

	p, err := r.projects.GetByID(ctx, t.ProjectID, vis)
	if err != nil || p.TenantID != t.TenantID {
		return nil, refError(err, "project", t.ProjectID)
	}
	refs.project = p

	taskRef := func(field string, id *string) (*domain.Task, error) {
		if id == nil {
			return nil, nil
		}
		if *id == t.ID {
			return nil, domain.Validation(field, "a task can't reference itself")
		}
		ref, err := r.tasks.GetByID(ctx, *id, vis)
		if err != nil || ref.TenantID != t.TenantID || ref.ProjectID != t.ProjectID {
			return nil, refError(err, field, *id)
		}
		return ref, nil
	}
	if _, err := taskRef("parent", t.ParentID); err != nil {
		return nil, err
	}
	if refs.dependency, err = taskRef("dependency", t.DependencyID); err != nil {
		return nil, err
	}
	if _, err := taskRef("predecessor", t.PredecessorID); err != nil {
		return nil, err
	}

	if t.StatusID != nil {
		st, err := r.statuses.GetByID(ctx, *t.StatusID, vis)
		if err != nil || st.TenantID != t.TenantID || st.ProjectID != t.ProjectID {
			return nil, refError(err, "status", *t.StatusID)
		}
	}
	if t.TaskTypeID != nil {
		tt, err := r.catalog.GetTaskType(ctx, *t.TaskTypeID, vis)
		if err != nil || tt.TenantID != t.TenantID || tt.ProjectID != t.ProjectID {
			return nil, refError(err, "task_type", *t.TaskTypeID)
		}
	}
	if t.HLRID != nil {
		h, err := r.catalog.GetHLR(ctx, *t.HLRID, vis)
		if err != nil || h.TenantID != t.TenantID || h.ProjectID != t.ProjectID {
			return nil, refError(err, "hlr", *t.HLRID)
		}
	}
	return refs, nil
}

// refError reports a missing or out-of-scope reference as NOT_FOUND.
func refError(err error, field, id string) error {
	if err != nil && !isNotFound(err) {
		return err
	}
	return domain.NotFound(field, id)
}

var taskRefColumns = []struct {
	field  string
	column string
	ref    func(*domain.Task) *string
}{
	{"parent", "parent_id", func(t *domain.Task) *string { return t.ParentID }},
	{"dependency", "dependency_id", func(t *domain.Task) *string { return t.DependencyID }},
	{"predecessor", "predecessor_id", func(t *domain.Task) *string { return t.PredecessorID }},
}

// checkTaskCycles rejects a reference whose chain along the same column
// leads back to t.
func checkTaskCycles(ctx context.Context, tasks repository.TaskRepo, t *domain.Task) error {
	for _, c := range taskRefColumns {
		ref := c.ref(t)
		if ref == nil {
			continue
		}
		found, err := tasks.Reaches(ctx, c.column, *ref, t.ID)
		if err != nil {
			return err
		}
		if found {
			return domain.Cycle(c.field, fmt.Sprintf("%s %s would create a cycle", c.field, *ref))
		}
	}
	return nil
}

func checkTaskDates(t *domain.Task, refs *taskRefs) error {
	if err := validateSpan(t); err != nil {
		return err
	}
	if t.Started == nil {
		return nil
	}
	if dep := refs.dependency; dep != nil && dep.Deadline != nil && t.Started.Before(*dep.Deadline) {
		return domain.Validation("started", "task can't start before its dependency's deadline")
	}
	if p := refs.project; p != nil && p.Started != nil && t.Started.Before(*p.Started) {
		return domain.Validation("started", "task can't start before its project")
	}
	return nil
}

// reconcileBranchDates handles a move of started or deadline between cur and
// next. Without cascade, descendants past a moved date block the update; with
// cascade the branch shifts by the delta of the first moved field.
func reconcileBranchDates(ctx context.Context, tasks repository.TaskRepo, cur, next *domain.Task, cascade bool, by string) ([]*domain.Task, error) {
	var moved []domain.DateField
	for _, f := range []domain.DateField{domain.FieldStarted, domain.FieldDeadline} {
		before, after := cur.DateOf(f), next.DateOf(f)
		if before != nil && after != nil && !before.Equal(*after) {
			moved = append(moved, f)
		}
	}
	if len(moved) == 0 {
		return nil, nil
	}
	branch, err := tasks.Branch(ctx, next.ID, domain.Live)
	if err != nil {
		return nil, err
	}
	if len(branch) == 0 {
		return nil, nil
	}
	if cascade {
		f := moved[0]
		if err := shiftTasks(ctx, tasks, branch, next.DateOf(f).Sub(*cur.DateOf(f)), by); err != nil {
			return nil, err
		}
		return branch, nil
	}

	seen := make(map[string]bool)
	var ids []string
	for _, f := range moved {
		for _, c := range dateConflicts(branch, *next.DateOf(f), f) {
			if !seen[c.ID] {
				seen[c.ID] = true
				ids = append(ids, c.ID)
			}
		}
	}
	if len(ids) > 0 {
		return nil, domain.Conflict(domain.MsgRebaseInPast, ids)
	}
	return nil, nil
}

// pushPredecessor makes t's predecessor depend on t and, when the
// predecessor starts before t's deadline, moves it to start at that deadline
// with its span unchanged.
func pushPredecessor(ctx context.Context, tasks repository.TaskRepo, t *domain.Task, by string) (*domain.Task, error) {
	if t.PredecessorID == nil {
		return nil, nil
	}
	pred, err := tasks.GetByID(ctx, *t.PredecessorID, domain.Live)
	if err != nil {
		return nil, notFound(err, "predecessor", *t.PredecessorID)
	}
	if !domain.SameStr(pred.DependencyID, &t.ID) {
		found, err := tasks.Reaches(ctx, "dependency_id", t.ID, pred.ID)
		if err != nil {
			return nil, err
		}
		if found {
			return nil, domain.Cycle("predecessor", "predecessor already leads to this task through its dependencies")
		}
		pred.DependencyID = &t.ID
	}
	if t.Deadline != nil && pred.Started != nil && pred.Started.Before(*t.Deadline) {
		pred.Shift(t.Deadline.Sub(*pred.Started))
	}
	pred.UpdatedBy = by
	if err := tasks.Update(ctx, pred); err != nil {
		return nil, fmt.Errorf("pushing predecessor %s: %w", pred.ID, err)
	}
	return pred, nil
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}
