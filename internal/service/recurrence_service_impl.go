package service

import (
	"context"
	"fmt"
	"time"

	"github.com/alexanderramin/strata/internal/db"
	"github.com/alexanderramin/strata/internal/domain"
	"github.com/alexanderramin/strata/internal/recurrence"
	"github.com/alexanderramin/strata/internal/repository"
)

// DefaultRecurrenceMaxCount caps how many instances one expansion generates.
const DefaultRecurrenceMaxCount = 50

// RecurrenceRequest expands the recurrence rule of a seed task. Anchor picks
// which seed date the rule starts from; it defaults to the deadline.
type RecurrenceRequest struct {
	SeedID   string
	Timezone string
	Anchor   domain.DateField
	Commit   bool
	MaxCount int
}

// RecurrenceResult holds every generated row. Instances counts the top-level
// copies of the seed; Tasks also includes their cloned subtrees. Skipped
// explains an expansion that produced nothing because the seed does not
// qualify.
type RecurrenceResult struct {
	Tasks     []*domain.Task
	Links     domain.TaskLinks
	Instances int
	Committed bool
	Skipped   string
}

type recurrenceService struct {
	rules    recurrence.Evaluator
	uow      db.UnitOfWork
	maxCount int
	newID    IDFunc
	observer UseCaseObserver
}

func NewRecurrenceService(rules recurrence.Evaluator, uow db.UnitOfWork, maxCount int, observers ...UseCaseObserver) RecurrenceService {
	return newRecurrenceService(rules, uow, maxCount, observers...)
}

func newRecurrenceService(rules recurrence.Evaluator, uow db.UnitOfWork, maxCount int, observers ...UseCaseObserver) *recurrenceService {
	if maxCount <= 0 {
		maxCount = DefaultRecurrenceMaxCount
	}
	return &recurrenceService{
		rules:    rules,
		uow:      uow,
		maxCount: maxCount,
		newID:    NewUUID,
		observer: useCaseObserverOrNoop(observers),
	}
}

func (s *recurrenceService) GenerateRecurringInstances(ctx context.Context, req RecurrenceRequest) (res *RecurrenceResult, err error) {
	startedAt := time.Now()
	fields := map[string]any{"seed": req.SeedID, "commit": req.Commit}
	defer observe(ctx, s.observer, "generate-recurring-instances", startedAt, fields, &err)

	err = s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		seed, err := repository.NewSQLiteTaskRepo(tx).GetByID(ctx, req.SeedID, domain.Live)
		if err != nil {
			return notFound(err, "task", req.SeedID)
		}
		res, err = s.generate(ctx, tx, seed, req)
		return err
	})
	if err != nil {
		return nil, err
	}
	fields["instances"] = res.Instances
	fields["tasks"] = len(res.Tasks)
	return res, nil
}

// recurrencePrecondition returns why seed cannot recur, or "".
func recurrencePrecondition(seed *domain.Task) string {
	switch {
	case seed.RecurrenceRule == "":
		return "task has no recurrence rule"
	case seed.Deadline == nil:
		return "task has no deadline"
	case seed.Started == nil && (seed.DurationEstimate == nil || seed.DurationUnit == ""):
		return "task has neither a start nor a duration estimate"
	}
	return ""
}

// recurrenceSpan returns the seed's duration and its start, derived from the
// estimate when the seed has no start.
func recurrenceSpan(seed *domain.Task) (time.Duration, time.Time, bool) {
	if seed.Started != nil {
		return seed.Deadline.Sub(*seed.Started), *seed.Started, true
	}
	span, ok := seed.EstimatedSpan()
	if !ok {
		return 0, time.Time{}, false
	}
	return span, seed.Deadline.Add(-span), true
}

// generate expands seed inside tx. Each retained occurrence gets a copy of the
// seed and of its live subtree with backlog and resource links, placed under
// the seed after its existing children. Occurrences from an earlier expansion
// are never copied, and a seed that already has them is not committed again.
func (s *recurrenceService) generate(ctx context.Context, tx db.DBTX, seed *domain.Task, req RecurrenceRequest) (*RecurrenceResult, error) {
	if reason := recurrencePrecondition(seed); reason != "" {
		return &RecurrenceResult{Skipped: reason}, nil
	}
	span, started, ok := recurrenceSpan(seed)
	if !ok || span <= 0 {
		return &RecurrenceResult{Skipped: "task schedule has no duration"}, nil
	}

	anchor := req.Anchor
	if anchor == "" {
		anchor = domain.FieldDeadline
	}
	if !anchor.Valid() {
		return nil, domain.Validation("anchor", fmt.Sprintf("unknown date field %q", anchor))
	}
	loc, err := time.LoadLocation(domain.CoalesceStr(req.Timezone, "UTC"))
	if err != nil {
		return nil, domain.Validation("timezone", fmt.Sprintf("unknown timezone %q", req.Timezone))
	}
	anchorAt := started
	if anchor == domain.FieldDeadline {
		anchorAt = *seed.Deadline
	}
	seq, err := s.rules.Expand(seed.RecurrenceRule, anchorAt.In(loc))
	if err != nil {
		return nil, domain.Validation("recurrence_rule", err.Error())
	}

	limit := req.MaxCount
	if limit <= 0 || limit > s.maxCount {
		limit = s.maxCount
	}
	if bound := seq.Bound(); bound > 0 && bound < limit {
		limit = bound
	}

	tasks := repository.NewSQLiteTaskRepo(tx)
	links := repository.NewSQLiteTaskLinkRepo(tx)

	branch, err := tasks.Branch(ctx, seed.ID, domain.Live)
	if err != nil {
		return nil, err
	}
	set, generated := splitGenerated(seed, branch)
	if req.Commit && generated > 0 {
		return &RecurrenceResult{Skipped: fmt.Sprintf("task already has %d generated occurrences", generated)}, nil
	}
	sourceLinks, err := links.ListForTasks(ctx, taskIDs(set), domain.Live)
	if err != nil {
		return nil, err
	}
	highest, err := tasks.MaxSiblingOrder(ctx, seed.NodeScope().ChildScope(seed.ID), "", domain.Live)
	if err != nil {
		return nil, err
	}

	by := actorFrom(ctx)
	now := nowUTC()
	res := &RecurrenceResult{}

	// The first occurrence is the seed itself.
	if _, ok := seq.Next(); !ok {
		return res, nil
	}
	for i := 1; i <= limit; i++ {
		occ, ok := seq.Next()
		if !ok {
			break
		}
		occ = occ.UTC()
		var instStart, instDeadline time.Time
		if anchor == domain.FieldDeadline {
			instDeadline, instStart = occ, occ.Add(-span)
		} else {
			instStart, instDeadline = occ, occ.Add(span)
		}

		cl := newTaskCloner(set, s.newID, cloneStamp{
			TenantID: seed.TenantID,
			By:       by,
			Now:      now,
			Template: seed.Template,
			Shift:    instDeadline.Sub(*seed.Deadline),
		})
		clones := cl.cloneAll(set)
		inst, _ := cl.cloneOf(seed.ID)
		inst.Name = fmt.Sprintf("[%d] %s", i, seed.Name)
		inst.ParentID = &seed.ID
		inst.RecurrenceOf = &seed.ID
		inst.OrderIndex = highest + i
		inst.Started = &instStart
		inst.Deadline = &instDeadline
		for _, c := range clones {
			c.RecurrenceRule = ""
			if c.StatusID != nil {
				c.StatusAssignedAt = &now
			}
		}

		res.Tasks = append(res.Tasks, clones...)
		res.Links.Append(cl.cloneLinks(sourceLinks, LinkSelection{Backlogs: true, Resources: true}))
		res.Instances++
	}

	if !req.Commit || res.Instances == 0 {
		return res, nil
	}
	if err := tasks.CreateBatch(ctx, res.Tasks); err != nil {
		return nil, fmt.Errorf("persisting recurring tasks: %w", err)
	}
	if err := links.CreateAll(ctx, res.Links); err != nil {
		return nil, fmt.Errorf("persisting recurring task links: %w", err)
	}
	res.Committed = true
	return res, nil
}

// splitGenerated returns the seed followed by the part of its pre-order branch
// that was not produced by expanding it, and the number of earlier
// occurrences.
func splitGenerated(seed *domain.Task, branch []*domain.Task) ([]*domain.Task, int) {
	set := []*domain.Task{seed}
	skip := make(map[string]bool)
	generated := 0
	for _, t := range branch {
		if domain.StrVal(t.RecurrenceOf) == seed.ID {
			skip[t.ID] = true
			generated++
			continue
		}
		if t.ParentID != nil && skip[*t.ParentID] {
			skip[t.ID] = true
			continue
		}
		set = append(set, t)
	}
	return set, generated
}
