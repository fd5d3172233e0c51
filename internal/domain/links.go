package domain

// TaskBacklog links a task to a backlog item it delivers.
type TaskBacklog struct {
	ID        string
	TaskID    string
	BacklogID string

	Audit
}

// TaskResource assigns a resource to a task.
type TaskResource struct {
	ID             string
	TaskID         string
	ResourceID     string
	PercentageTime int

	Audit
}

type TaskComment struct {
	ID         string
	TaskID     string
	AuthorID   string
	Body       string
	Attachment string

	Audit
}

// TaskLinks bundles the join records hanging off a set of tasks.
type TaskLinks struct {
	Backlogs  []*TaskBacklog
	Resources []*TaskResource
	Comments  []*TaskComment
}

// Len returns the number of records across all link kinds.
func (l *TaskLinks) Len() int {
	return len(l.Backlogs) + len(l.Resources) + len(l.Comments)
}

// Append merges other into l.
func (l *TaskLinks) Append(other TaskLinks) {
	l.Backlogs = append(l.Backlogs, other.Backlogs...)
	l.Resources = append(l.Resources, other.Resources...)
	l.Comments = append(l.Comments, other.Comments...)
}
