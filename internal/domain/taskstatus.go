package domain

// UnassignedStatusName is the protected fallback status every project owns.
const UnassignedStatusName = "unassigned"

// DefaultStatusNames are seeded, in order, on project creation. The entry
// flagged by DefaultFinalStatus closes the workflow.
var DefaultStatusNames = []string{"To do", "In Progress", "Testing", "Approved", "Done", "Deployed"}

const DefaultFinalStatus = "Done"

// DefaultTaskTypeNames are seeded on project creation.
var DefaultTaskTypeNames = []string{"Reminder", "Backlog", "Bug", "Feature Request"}

// TaskStatus is a workflow column. Statuses nest, and at most one status per
// sibling group is the final stage.
type TaskStatus struct {
	ID          string
	ProjectID   string
	ParentID    *string
	Name        string
	Description string
	OrderIndex  int
	RottingDays int
	FinalStage  bool
	Colour      string
	Protected   bool

	Audit
}

func (s *TaskStatus) NodeID() string         { return s.ID }
func (s *TaskStatus) NodeName() string       { return s.Name }
func (s *TaskStatus) NodeParentID() *string  { return s.ParentID }
func (s *TaskStatus) NodeOrder() int         { return s.OrderIndex }
func (s *TaskStatus) SetNodeOrder(order int) { s.OrderIndex = order }

func (s *TaskStatus) NodeScope() Scope {
	return Scope{Kind: KindTaskStatus, TenantID: s.TenantID, ProjectID: s.ProjectID, ParentID: s.ParentID}
}

// Copy returns a deep copy.
func (s *TaskStatus) Copy() *TaskStatus {
	c := *s
	c.ParentID = cloneStr(s.ParentID)
	c.DeletedAt = cloneTime(s.DeletedAt)
	return &c
}
