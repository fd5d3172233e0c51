package domain

// Backlog is a user story ordered within its high-level requirement. Backlog
// items do not nest.
type Backlog struct {
	ID          string
	HLRID       string
	Name        string
	IWant       string
	SoThat      string
	StoryPoints *int
	OrderIndex  int

	Audit
}

func (b *Backlog) NodeID() string         { return b.ID }
func (b *Backlog) NodeName() string       { return b.Name }
func (b *Backlog) NodeParentID() *string  { return nil }
func (b *Backlog) NodeOrder() int         { return b.OrderIndex }
func (b *Backlog) SetNodeOrder(order int) { b.OrderIndex = order }

func (b *Backlog) NodeScope() Scope {
	return Scope{Kind: KindBacklog, TenantID: b.TenantID, HLRID: b.HLRID}
}

// Copy returns a deep copy.
func (b *Backlog) Copy() *Backlog {
	c := *b
	c.StoryPoints = cloneInt(b.StoryPoints)
	c.DeletedAt = cloneTime(b.DeletedAt)
	return &c
}
