package service

import (
	"context"
	"fmt"
	"time"

	"github.com/alexanderramin/strata/internal/db"
	"github.com/alexanderramin/strata/internal/domain"
	"github.com/alexanderramin/strata/internal/repository"
)

// RescheduleRequest moves one schedule field of a task. With Cascade the
// task's branch shifts by the same delta instead of blocking on conflicts.
type RescheduleRequest struct {
	TaskID   string
	Field    domain.DateField
	Proposed time.Time
	Cascade  bool
}

type scheduleService struct {
	tasks    repository.TaskRepo
	uow      db.UnitOfWork
	observer UseCaseObserver
}

func NewScheduleService(tasks repository.TaskRepo, uow db.UnitOfWork, observers ...UseCaseObserver) ScheduleService {
	return &scheduleService{tasks: tasks, uow: uow, observer: useCaseObserverOrNoop(observers)}
}

// RebaseBranchDates shifts started and deadline of every live descendant of
// the task by delta. The task itself is not moved.
func (s *scheduleService) RebaseBranchDates(ctx context.Context, taskID string, delta time.Duration, anchor domain.DateField) (shifted []*domain.Task, err error) {
	startedAt := time.Now()
	fields := map[string]any{"task": taskID, "delta": delta.String(), "anchor": string(anchor)}
	defer observe(ctx, s.observer, "rebase-branch-dates", startedAt, fields, &err)

	if !anchor.Valid() {
		return nil, domain.Validation("anchor", fmt.Sprintf("unknown date field %q", anchor))
	}
	err = s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		var err error
		shifted, err = rebaseBranchDates(ctx, repository.NewSQLiteTaskRepo(tx), taskID, delta, actorFrom(ctx))
		return err
	})
	fields["shifted"] = len(shifted)
	return shifted, err
}

// RebaseScopeDates shifts every started task of a project by delta.
func (s *scheduleService) RebaseScopeDates(ctx context.Context, tenantID, projectID string, delta time.Duration) (shifted []*domain.Task, err error) {
	startedAt := time.Now()
	fields := map[string]any{"project": projectID, "delta": delta.String()}
	defer observe(ctx, s.observer, "rebase-scope-dates", startedAt, fields, &err)

	err = s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		var err error
		shifted, err = rebaseScopeDates(ctx, repository.NewSQLiteTaskRepo(tx), tenantID, projectID, delta, actorFrom(ctx))
		return err
	})
	fields["shifted"] = len(shifted)
	return shifted, err
}

func (s *scheduleService) DetectDescendantDateConflicts(ctx context.Context, taskID string, proposed time.Time, which domain.DateField) ([]*domain.Task, error) {
	if !which.Valid() {
		return nil, domain.Validation("field", fmt.Sprintf("unknown date field %q", which))
	}
	branch, err := s.tasks.Branch(ctx, taskID, domain.Live)
	if err != nil {
		return nil, notFound(err, "task", taskID)
	}
	return dateConflicts(branch, proposed, which), nil
}

// RescheduleTask sets one schedule field of a task. Descendants whose same
// field falls after the proposed value block the change with a conflict
// unless the request cascades, in which case the branch shifts by the delta.
func (s *scheduleService) RescheduleTask(ctx context.Context, req RescheduleRequest) (task *domain.Task, err error) {
	startedAt := time.Now()
	fields := map[string]any{"task": req.TaskID, "field": string(req.Field), "cascade": req.Cascade}
	defer observe(ctx, s.observer, "reschedule-task", startedAt, fields, &err)

	if !req.Field.Valid() {
		return nil, domain.Validation("field", fmt.Sprintf("unknown date field %q", req.Field))
	}
	err = s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		repo := repository.NewSQLiteTaskRepo(tx)
		t, err := repo.GetByID(ctx, req.TaskID, domain.Live)
		if err != nil {
			return notFound(err, "task", req.TaskID)
		}
		by := actorFrom(ctx)
		n, err := applyDateChange(ctx, repo, t, req.Field, req.Proposed, req.Cascade, by)
		if err != nil {
			return err
		}
		fields["shifted"] = n
		setDate(t, req.Field, req.Proposed)
		if err := validateSpan(t); err != nil {
			return err
		}
		t.UpdatedBy = by
		if err := repo.Update(ctx, t); err != nil {
			return err
		}
		task = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

// applyDateChange checks or cascades the branch of t for a move of field to
// proposed. It does not write t itself.
func applyDateChange(ctx context.Context, repo repository.TaskRepo, t *domain.Task, field domain.DateField, proposed time.Time, cascade bool, by string) (int, error) {
	current := t.DateOf(field)
	if current != nil && current.Equal(proposed) {
		return 0, nil
	}
	branch, err := repo.Branch(ctx, t.ID, domain.Live)
	if err != nil {
		return 0, err
	}
	if !cascade {
		if conflicts := dateConflicts(branch, proposed, field); len(conflicts) > 0 {
			return 0, domain.Conflict(domain.MsgRebaseInPast, taskIDs(conflicts))
		}
		return 0, nil
	}
	if current == nil {
		return 0, nil
	}
	if err := shiftTasks(ctx, repo, branch, proposed.Sub(*current), by); err != nil {
		return 0, err
	}
	return len(branch), nil
}

func rebaseBranchDates(ctx context.Context, repo repository.TaskRepo, taskID string, delta time.Duration, by string) ([]*domain.Task, error) {
	if _, err := repo.GetByID(ctx, taskID, domain.Live); err != nil {
		return nil, notFound(err, "task", taskID)
	}
	branch, err := repo.Branch(ctx, taskID, domain.Live)
	if err != nil {
		return nil, err
	}
	if err := shiftTasks(ctx, repo, branch, delta, by); err != nil {
		return nil, err
	}
	return branch, nil
}

func rebaseScopeDates(ctx context.Context, repo repository.TaskRepo, tenantID, projectID string, delta time.Duration, by string) ([]*domain.Task, error) {
	tasks, err := repo.ListStarted(ctx, tenantID, projectID, domain.Live)
	if err != nil {
		return nil, err
	}
	if err := shiftTasks(ctx, repo, tasks, delta, by); err != nil {
		return nil, err
	}
	return tasks, nil
}

func shiftTasks(ctx context.Context, repo repository.TaskRepo, tasks []*domain.Task, delta time.Duration, by string) error {
	if delta == 0 {
		return nil
	}
	for _, t := range tasks {
		t.Shift(delta)
		t.UpdatedBy = by
		if err := repo.Update(ctx, t); err != nil {
			return fmt.Errorf("shifting task %s: %w", t.ID, err)
		}
	}
	return nil
}

// dateConflicts keeps the tasks whose field, truncated to the minute, is
// strictly after proposed truncated to the minute.
func dateConflicts(tasks []*domain.Task, proposed time.Time, which domain.DateField) []*domain.Task {
	limit := proposed.Truncate(time.Minute)
	var out []*domain.Task
	for _, t := range tasks {
		d := t.DateOf(which)
		if d == nil {
			continue
		}
		if d.Truncate(time.Minute).After(limit) {
			out = append(out, t)
		}
	}
	return out
}

func setDate(t *domain.Task, field domain.DateField, v time.Time) {
	v = v.UTC()
	if field == domain.FieldStarted {
		t.Started = &v
		return
	}
	t.Deadline = &v
}

func validateSpan(t *domain.Task) error {
	if t.Started != nil && t.Deadline != nil && !t.Started.Before(*t.Deadline) {
		return domain.Validation("deadline", "deadline must be after started")
	}
	return nil
}
