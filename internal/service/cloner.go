package service

import (
	"time"

	"github.com/alexanderramin/strata/internal/domain"
)

// LinkSelection picks which join records follow a cloned task.
type LinkSelection struct {
	Backlogs  bool
	Resources bool
	Comments  bool
}

var allLinks = LinkSelection{Backlogs: true, Resources: true, Comments: true}

// cloneStamp is applied to every cloned row, task or link.
type cloneStamp struct {
	TenantID string
	By       string
	Now      time.Time
	// ProjectID moves clones to another project when set.
	ProjectID string
	Template  bool
	// Shift moves every schedule timestamp of the clones.
	Shift time.Duration
	// StatusIDs, TypeIDs, HLRIDs and BacklogIDs remap catalogue references
	// when a whole project is copied. See remapRef.
	StatusIDs  map[string]string
	TypeIDs    map[string]string
	HLRIDs     map[string]string
	BacklogIDs map[string]string
}

func (st cloneStamp) audit(src domain.Audit) domain.Audit {
	var a domain.Audit
	a.Stamp(domain.CoalesceStr(st.TenantID, src.TenantID), st.By, st.Now)
	a.Template = st.Template
	return a
}

// remapRef maps ref through m. A nil map keeps the reference; a reference
// missing from a non-nil map is cleared.
func remapRef(m map[string]string, ref *string) *string {
	if ref == nil {
		return nil
	}
	if m == nil {
		v := *ref
		return &v
	}
	if to, ok := m[*ref]; ok {
		return &to
	}
	return nil
}

// taskCloner copies a set of tasks with fresh identities. Every node is
// registered in the remap table before its references are resolved, so a
// self reference resolves to the clone itself and reference cycles terminate.
// References to tasks outside the set are kept when the clones stay in the
// source project and cleared otherwise.
type taskCloner struct {
	source map[string]*domain.Task
	remap  map[string]*domain.Task
	out    []*domain.Task
	newID  IDFunc
	stamp  cloneStamp
}

func newTaskCloner(tasks []*domain.Task, newID IDFunc, stamp cloneStamp) *taskCloner {
	c := &taskCloner{
		source: make(map[string]*domain.Task, len(tasks)),
		remap:  make(map[string]*domain.Task, len(tasks)),
		newID:  idFuncOrDefault(newID),
		stamp:  stamp,
	}
	for _, t := range tasks {
		c.source[t.ID] = t
	}
	return c
}

// cloneAll clones tasks in slice order and returns the clones in creation
// order. Forward references are cloned on demand ahead of their referrer.
func (c *taskCloner) cloneAll(tasks []*domain.Task) []*domain.Task {
	for _, t := range tasks {
		c.clone(t.ID)
	}
	return c.out
}

// cloneOf returns the clone of the source task with id, if any.
func (c *taskCloner) cloneOf(id string) (*domain.Task, bool) {
	n, ok := c.remap[id]
	return n, ok
}

func (c *taskCloner) clone(id string) *domain.Task {
	if n, ok := c.remap[id]; ok {
		return n
	}
	src := c.source[id]
	n := src.Copy()
	n.ID = c.newID()
	c.remap[id] = n

	n.ParentID = c.resolve(src.ParentID)
	n.DependencyID = c.resolve(src.DependencyID)
	n.PredecessorID = c.resolve(src.PredecessorID)
	n.RecurrenceOf = c.resolve(src.RecurrenceOf)

	st := c.stamp
	n.Audit = st.audit(src.Audit)
	if st.ProjectID != "" {
		n.ProjectID = st.ProjectID
	}
	n.StatusID = remapRef(st.StatusIDs, src.StatusID)
	n.TaskTypeID = remapRef(st.TypeIDs, src.TaskTypeID)
	n.HLRID = remapRef(st.HLRIDs, src.HLRID)
	if st.Shift != 0 {
		n.Shift(st.Shift)
		if n.StatusAssignedAt != nil {
			moved := n.StatusAssignedAt.Add(st.Shift)
			n.StatusAssignedAt = &moved
		}
	}

	c.out = append(c.out, n)
	return n
}

func (c *taskCloner) resolve(ref *string) *string {
	if ref == nil {
		return nil
	}
	if _, in := c.source[*ref]; in {
		id := c.clone(*ref).ID
		return &id
	}
	if c.stamp.ProjectID != "" {
		return nil
	}
	v := *ref
	return &v
}

// cloneLinks copies the selected join records of cloned tasks onto their
// clones. Records of tasks that were not cloned are dropped.
func (c *taskCloner) cloneLinks(links domain.TaskLinks, sel LinkSelection) domain.TaskLinks {
	var out domain.TaskLinks
	st := c.stamp
	if sel.Backlogs {
		for _, l := range links.Backlogs {
			to, ok := c.remap[l.TaskID]
			if !ok {
				continue
			}
			backlogID := l.BacklogID
			if st.BacklogIDs != nil {
				mapped, ok := st.BacklogIDs[backlogID]
				if !ok {
					continue
				}
				backlogID = mapped
			}
			out.Backlogs = append(out.Backlogs, &domain.TaskBacklog{
				ID: c.newID(), TaskID: to.ID, BacklogID: backlogID, Audit: st.audit(l.Audit),
			})
		}
	}
	if sel.Resources {
		for _, l := range links.Resources {
			to, ok := c.remap[l.TaskID]
			if !ok {
				continue
			}
			out.Resources = append(out.Resources, &domain.TaskResource{
				ID: c.newID(), TaskID: to.ID, ResourceID: l.ResourceID, PercentageTime: l.PercentageTime,
				Audit: st.audit(l.Audit),
			})
		}
	}
	if sel.Comments {
		for _, l := range links.Comments {
			to, ok := c.remap[l.TaskID]
			if !ok {
				continue
			}
			out.Comments = append(out.Comments, &domain.TaskComment{
				ID: c.newID(), TaskID: to.ID, AuthorID: l.AuthorID, Body: l.Body, Attachment: l.Attachment,
				Audit: st.audit(l.Audit),
			})
		}
	}
	return out
}
