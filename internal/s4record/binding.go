package s4record

// Binding is one registered contact for an address-of-record.
//
// AOR is the owning record's URI (Record.URI), not the binding's key in
// the Record's Bindings map. It is never persisted per binding on the
// wire (see Record's MarshalJSON); UnmarshalJSON restores it from the
// record's uri — carrying it here just saves callers from having to
// thread the AOR through every function that needs it.
type Binding struct {
	AOR                   string
	ContactURI            string
	CallID                string
	PathHeaders           []string
	CSeq                  int
	Expires               int64
	Priority              int
	Params                map[string]string
	PrivateID             string
	EmergencyRegistration bool
}

// NewBinding returns a zero-value binding as inserted by Record.GetBinding
// for a previously-absent id: Expires = 0, empty params.
func NewBinding(aor, id string) *Binding {
	return &Binding{
		AOR:    aor,
		Params: make(map[string]string),
	}
}

// Clone returns a deep copy of b.
func (b *Binding) Clone() *Binding {
	if b == nil {
		return nil
	}
	c := *b
	c.PathHeaders = append([]string(nil), b.PathHeaders...)
	c.Params = make(map[string]string, len(b.Params))
	for k, v := range b.Params {
		c.Params[k] = v
	}
	return &c
}

// Equal reports field-wise equality, per the data model's equality rule.
func (b *Binding) Equal(other *Binding) bool {
	if b == nil || other == nil {
		return b == other
	}
	if b.AOR != other.AOR ||
		b.ContactURI != other.ContactURI ||
		b.CallID != other.CallID ||
		b.CSeq != other.CSeq ||
		b.Expires != other.Expires ||
		b.Priority != other.Priority ||
		b.PrivateID != other.PrivateID ||
		b.EmergencyRegistration != other.EmergencyRegistration {
		return false
	}
	if len(b.PathHeaders) != len(other.PathHeaders) {
		return false
	}
	for i, p := range b.PathHeaders {
		if other.PathHeaders[i] != p {
			return false
		}
	}
	if len(b.Params) != len(other.Params) {
		return false
	}
	for k, v := range b.Params {
		if ov, ok := other.Params[k]; !ok || ov != v {
			return false
		}
	}
	return true
}

// IsExpired reports whether the binding's absolute expiry is at or before now.
func (b *Binding) IsExpired(now int64) bool {
	return b.Expires <= now
}
