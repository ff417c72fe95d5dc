package s4record

// Patch describes a partial update to a Record, applied atomically by
// Record.Patch. AssociatedURIs uses a pointer as a poor-man's sum type:
// nil means "do not touch", a non-nil (possibly empty) value means
// "replace wholesale" — the distinction invariant 9 ("optional replace")
// calls out as essential.
type Patch struct {
	UpdateBindings      map[string]*Binding
	RemoveBindings      []string
	UpdateSubscriptions map[string]*Subscription
	RemoveSubscriptions []string
	AssociatedURIs      *AssociatedURIs
	MinimumCSeq         int
	IncrementCSeq       bool
}

// Clone returns a deep copy of p, used by the site manager when deriving
// a replication patch from a client patch (forcing IncrementCSeq=false
// and setting MinimumCSeq) without mutating the caller's original.
func (p *Patch) Clone() *Patch {
	if p == nil {
		return nil
	}
	c := &Patch{
		MinimumCSeq:   p.MinimumCSeq,
		IncrementCSeq: p.IncrementCSeq,
	}
	if len(p.UpdateBindings) > 0 {
		c.UpdateBindings = make(map[string]*Binding, len(p.UpdateBindings))
		for id, b := range p.UpdateBindings {
			c.UpdateBindings[id] = b.Clone()
		}
	}
	if len(p.UpdateSubscriptions) > 0 {
		c.UpdateSubscriptions = make(map[string]*Subscription, len(p.UpdateSubscriptions))
		for id, s := range p.UpdateSubscriptions {
			c.UpdateSubscriptions[id] = s.Clone()
		}
	}
	c.RemoveBindings = append([]string(nil), p.RemoveBindings...)
	c.RemoveSubscriptions = append([]string(nil), p.RemoveSubscriptions...)
	if p.AssociatedURIs != nil {
		cloned := p.AssociatedURIs.Clone()
		c.AssociatedURIs = &cloned
	}
	return c
}
