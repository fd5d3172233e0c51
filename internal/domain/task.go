package domain

import (
	"time"
)

// DurationUnit is the unit of a task's duration estimate.
type DurationUnit string

const (
	UnitWeeks   DurationUnit = "Weeks"
	UnitDays    DurationUnit = "Days"
	UnitHours   DurationUnit = "Hours"
	UnitMinutes DurationUnit = "Minutes"
)

func (u DurationUnit) Valid() bool {
	switch u {
	case UnitWeeks, UnitDays, UnitHours, UnitMinutes:
		return true
	}
	return false
}

// Span converts n units into a duration.
func (u DurationUnit) Span(n int) (time.Duration, bool) {
	day := 24 * time.Hour
	switch u {
	case UnitWeeks:
		return time.Duration(n) * 7 * day, true
	case UnitDays:
		return time.Duration(n) * day, true
	case UnitHours:
		return time.Duration(n) * time.Hour, true
	case UnitMinutes:
		return time.Duration(n) * time.Minute, true
	}
	return 0, false
}

// DateField selects one of a task's two schedule timestamps.
type DateField string

const (
	FieldStarted  DateField = "started"
	FieldDeadline DateField = "deadline"
)

func (f DateField) Valid() bool {
	return f == FieldStarted || f == FieldDeadline
}

// Task is a schedulable work item. Parent, dependency and predecessor all
// reference other tasks.
type Task struct {
	ID               string
	ProjectID        string
	HLRID            *string
	ParentID         *string
	DependencyID     *string
	PredecessorID    *string
	TaskTypeID       *string
	StatusID         *string
	OwnerID          *string
	StatusAssignedAt *time.Time

	Name              string
	Description       string
	Started           *time.Time
	Deadline          *time.Time
	DurationEstimate  *int
	DurationUnit      DurationUnit
	DurationActual    *int
	Milestone         bool
	OrderIndex        int
	CompletionPercent int
	RecurrenceRule    string
	RecurrenceOf      *string // seed a generated instance was expanded from
	Notes             string

	Audit
}

func (t *Task) NodeID() string         { return t.ID }
func (t *Task) NodeName() string       { return t.Name }
func (t *Task) NodeParentID() *string  { return t.ParentID }
func (t *Task) NodeOrder() int         { return t.OrderIndex }
func (t *Task) SetNodeOrder(order int) { t.OrderIndex = order }

func (t *Task) NodeScope() Scope {
	return Scope{Kind: KindTask, TenantID: t.TenantID, ProjectID: t.ProjectID, ParentID: t.ParentID}
}

// DateOf returns the timestamp named by f.
func (t *Task) DateOf(f DateField) *time.Time {
	if f == FieldStarted {
		return t.Started
	}
	return t.Deadline
}

// Shift moves both schedule timestamps by delta, skipping unset ones.
func (t *Task) Shift(delta time.Duration) {
	if t.Started != nil {
		s := t.Started.Add(delta)
		t.Started = &s
	}
	if t.Deadline != nil {
		d := t.Deadline.Add(delta)
		t.Deadline = &d
	}
}

// EstimatedSpan converts the duration estimate into a duration.
func (t *Task) EstimatedSpan() (time.Duration, bool) {
	if t.DurationEstimate == nil || t.DurationUnit == "" {
		return 0, false
	}
	return t.DurationUnit.Span(*t.DurationEstimate)
}

// AssignStatus sets the status and stamps StatusAssignedAt when it changed or
// was never stamped.
func (t *Task) AssignStatus(statusID *string, now time.Time) {
	if SameStr(t.StatusID, statusID) && t.StatusAssignedAt != nil {
		return
	}
	t.StatusID = cloneStr(statusID)
	if statusID == nil {
		t.StatusAssignedAt = nil
		return
	}
	t.StatusAssignedAt = &now
}

// Copy returns a deep copy; pointer fields do not alias the original.
func (t *Task) Copy() *Task {
	c := *t
	c.HLRID = cloneStr(t.HLRID)
	c.ParentID = cloneStr(t.ParentID)
	c.DependencyID = cloneStr(t.DependencyID)
	c.PredecessorID = cloneStr(t.PredecessorID)
	c.TaskTypeID = cloneStr(t.TaskTypeID)
	c.StatusID = cloneStr(t.StatusID)
	c.OwnerID = cloneStr(t.OwnerID)
	c.RecurrenceOf = cloneStr(t.RecurrenceOf)
	c.StatusAssignedAt = cloneTime(t.StatusAssignedAt)
	c.Started = cloneTime(t.Started)
	c.Deadline = cloneTime(t.Deadline)
	c.DurationEstimate = cloneInt(t.DurationEstimate)
	c.DurationActual = cloneInt(t.DurationActual)
	c.DeletedAt = cloneTime(t.DeletedAt)
	return &c
}
