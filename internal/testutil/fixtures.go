package testutil

import (
	"time"

	"github.com/alexanderramin/strata/internal/domain"
	"github.com/google/uuid"
)

const (
	TestTenant = "tenant-1"
	TestUser   = "tester"
)

// Day0 is the reference instant fixtures schedule against.
var Day0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// At returns Day0 plus the given days and hours.
func At(days, hours int) time.Time {
	return Day0.AddDate(0, 0, days).Add(time.Duration(hours) * time.Hour)
}

func audit() domain.Audit {
	var a domain.Audit
	a.Stamp(TestTenant, TestUser, time.Now().UTC())
	return a
}

// Project options
type ProjectOption func(*domain.Project)

func WithProjectStart(d time.Time) ProjectOption {
	return func(p *domain.Project) {
		p.Started = &d
	}
}

func AsTemplateProject() ProjectOption {
	return func(p *domain.Project) {
		p.Template = true
	}
}

func NewTestProject(name string, opts ...ProjectOption) *domain.Project {
	start := Day0
	p := &domain.Project{
		ID:      uuid.New().String(),
		Name:    name,
		Started: &start,
		Audit:   audit(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Task options
type TaskOption func(*domain.Task)

func WithParent(id string) TaskOption {
	return func(t *domain.Task) {
		t.ParentID = &id
	}
}

func WithOrder(i int) TaskOption {
	return func(t *domain.Task) {
		t.OrderIndex = i
	}
}

func WithDates(started, deadline time.Time) TaskOption {
	return func(t *domain.Task) {
		t.Started = &started
		t.Deadline = &deadline
	}
}

func WithDeadline(d time.Time) TaskOption {
	return func(t *domain.Task) {
		t.Deadline = &d
	}
}

func WithEstimate(n int, unit domain.DurationUnit) TaskOption {
	return func(t *domain.Task) {
		t.DurationEstimate = &n
		t.DurationUnit = unit
	}
}

func WithDependency(id string) TaskOption {
	return func(t *domain.Task) {
		t.DependencyID = &id
	}
}

func WithPredecessor(id string) TaskOption {
	return func(t *domain.Task) {
		t.PredecessorID = &id
	}
}

func WithStatus(id string) TaskOption {
	return func(t *domain.Task) {
		t.StatusID = &id
	}
}

func WithHLR(id string) TaskOption {
	return func(t *domain.Task) {
		t.HLRID = &id
	}
}

func WithRule(rule string) TaskOption {
	return func(t *domain.Task) {
		t.RecurrenceRule = rule
	}
}

func Tombstoned() TaskOption {
	return func(t *domain.Task) {
		now := time.Now().UTC()
		t.Deleted = true
		t.DeletedAt = &now
	}
}

func AsTemplate() TaskOption {
	return func(t *domain.Task) {
		t.Template = true
	}
}

func NewTestTask(projectID, name string, opts ...TaskOption) *domain.Task {
	t := &domain.Task{
		ID:        uuid.New().String(),
		ProjectID: projectID,
		Name:      name,
		Audit:     audit(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// TaskStatus options
type StatusOption func(*domain.TaskStatus)

func WithStatusParent(id string) StatusOption {
	return func(s *domain.TaskStatus) {
		s.ParentID = &id
	}
}

func WithStatusOrder(i int) StatusOption {
	return func(s *domain.TaskStatus) {
		s.OrderIndex = i
	}
}

func AsFinalStage() StatusOption {
	return func(s *domain.TaskStatus) {
		s.FinalStage = true
	}
}

func TombstonedStatus() StatusOption {
	return func(s *domain.TaskStatus) {
		now := time.Now().UTC()
		s.Deleted = true
		s.DeletedAt = &now
	}
}

func NewTestStatus(projectID, name string, opts ...StatusOption) *domain.TaskStatus {
	s := &domain.TaskStatus{
		ID:        uuid.New().String(),
		ProjectID: projectID,
		Name:      name,
		Audit:     audit(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func NewTestHLR(projectID, name string) *domain.HLR {
	return &domain.HLR{
		ID:        uuid.New().String(),
		ProjectID: projectID,
		Name:      name,
		Audit:     audit(),
	}
}

func NewTestBacklog(hlrID, name string, order int) *domain.Backlog {
	return &domain.Backlog{
		ID:         uuid.New().String(),
		HLRID:      hlrID,
		Name:       name,
		OrderIndex: order,
		Audit:      audit(),
	}
}

func NewTestResource(name string) *domain.Resource {
	return &domain.Resource{
		ID:    uuid.New().String(),
		Name:  name,
		Audit: audit(),
	}
}

func NewTestBacklogLink(taskID, backlogID string) *domain.TaskBacklog {
	return &domain.TaskBacklog{ID: uuid.New().String(), TaskID: taskID, BacklogID: backlogID, Audit: audit()}
}

func NewTestResourceLink(taskID, resourceID string) *domain.TaskResource {
	return &domain.TaskResource{ID: uuid.New().String(), TaskID: taskID, ResourceID: resourceID, PercentageTime: 100, Audit: audit()}
}

func NewTestComment(taskID, body string) *domain.TaskComment {
	return &domain.TaskComment{ID: uuid.New().String(), TaskID: taskID, Body: body, AuthorID: TestUser, Audit: audit()}
}
