package domain

import "time"

type Project struct {
	ID          string
	Name        string
	Description string
	Started     *time.Time

	Audit
}

// HLR is a high-level requirement grouping backlog items.
type HLR struct {
	ID          string
	ProjectID   string
	Name        string
	Description string

	Audit
}

type TaskType struct {
	ID        string
	ProjectID string
	Name      string

	Audit
}

type Resource struct {
	ID    string
	Name  string
	Email string

	Audit
}
