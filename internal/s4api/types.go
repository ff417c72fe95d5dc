package s4api

import "github.com/sebas/s4/internal/s4record"

// This package's wire contract is the client/sibling HTTP API of spec §6,
// distinct from s4record's backing-store JSON layout: Record already
// marshals itself in the backing-store shape, so it is embedded directly
// in these envelopes, but Patch has no public wire form of its own (spec
// §6 only names the backing-store record layout), so patchRequest/
// patchResponse define one here.

// getResponse is the body of a successful GET.
type getResponse struct {
	Record  *s4record.Record `json:"record"`
	Version uint64           `json:"version"`
}

// patchResponse is the body of a successful PATCH.
type patchResponse struct {
	Record *s4record.Record `json:"record"`
}

// timerPopRequest is the broker's callback body (spec §6): {"aor_id": "..."}.
type timerPopRequest struct {
	AorID string `json:"aor_id"`
}

// statsResponse is the body of GET /api/v1/stats.
type statsResponse struct {
	RecordCount int `json:"record_count"`
}

type bindingDTO struct {
	ContactURI  string            `json:"contact_uri"`
	CallID      string            `json:"call_id"`
	CSeq        int               `json:"cseq"`
	Expires     int64             `json:"expires"`
	Priority    int               `json:"priority"`
	Params      map[string]string `json:"params,omitempty"`
	PathHeaders []string          `json:"path_headers,omitempty"`
	PrivateID   string            `json:"private_id,omitempty"`
	Emergency   bool              `json:"emergency_registration,omitempty"`
}

func fromBinding(b *s4record.Binding) bindingDTO {
	return bindingDTO{
		ContactURI:  b.ContactURI,
		CallID:      b.CallID,
		CSeq:        b.CSeq,
		Expires:     b.Expires,
		Priority:    b.Priority,
		Params:      b.Params,
		PathHeaders: b.PathHeaders,
		PrivateID:   b.PrivateID,
		Emergency:   b.EmergencyRegistration,
	}
}

func (d bindingDTO) toBinding() *s4record.Binding {
	return &s4record.Binding{
		ContactURI:            d.ContactURI,
		CallID:                d.CallID,
		CSeq:                  d.CSeq,
		Expires:               d.Expires,
		Priority:              d.Priority,
		Params:                d.Params,
		PathHeaders:           d.PathHeaders,
		PrivateID:             d.PrivateID,
		EmergencyRegistration: d.Emergency,
	}
}

type subscriptionDTO struct {
	ReqURI    string   `json:"req_uri"`
	FromURI   string   `json:"from_uri"`
	FromTag   string   `json:"from_tag"`
	ToURI     string   `json:"to_uri"`
	ToTag     string   `json:"to_tag"`
	CallID    string   `json:"call_id"`
	RouteURIs []string `json:"route_uris,omitempty"`
	Expires   int64    `json:"expires"`
}

func fromSubscription(s *s4record.Subscription) subscriptionDTO {
	return subscriptionDTO{
		ReqURI:    s.ReqURI,
		FromURI:   s.FromURI,
		FromTag:   s.FromTag,
		ToURI:     s.ToURI,
		ToTag:     s.ToTag,
		CallID:    s.CallID,
		RouteURIs: s.RouteURIs,
		Expires:   s.Expires,
	}
}

func (d subscriptionDTO) toSubscription() *s4record.Subscription {
	return &s4record.Subscription{
		ReqURI:    d.ReqURI,
		FromURI:   d.FromURI,
		FromTag:   d.FromTag,
		ToURI:     d.ToURI,
		ToTag:     d.ToTag,
		CallID:    d.CallID,
		RouteURIs: d.RouteURIs,
		Expires:   d.Expires,
	}
}

type associatedURIsDTO struct {
	URIs            []string          `json:"uris,omitempty"`
	Barred          []string          `json:"barred,omitempty"`
	WildcardMapping map[string]string `json:"wildcard_mapping,omitempty"`
}

func fromAssociatedURIs(a *s4record.AssociatedURIs) *associatedURIsDTO {
	barred := a.BarredURIs()
	unbarred := a.UnbarredURIs()
	uris := make([]string, 0, len(barred)+len(unbarred))
	uris = append(uris, unbarred...)
	uris = append(uris, barred...)
	return &associatedURIsDTO{
		URIs:            uris,
		Barred:          barred,
		WildcardMapping: a.WildcardMappings(),
	}
}

func (d *associatedURIsDTO) toAssociatedURIs() s4record.AssociatedURIs {
	out := s4record.NewAssociatedURIs()
	if d == nil {
		return out
	}
	barred := make(map[string]bool, len(d.Barred))
	for _, u := range d.Barred {
		barred[u] = true
	}
	for _, u := range d.URIs {
		out.AddURI(u, barred[u])
	}
	for distinct, wildcard := range d.WildcardMapping {
		out.AddWildcardMapping(wildcard, distinct)
	}
	return out
}

// patchRequest is the body of a PATCH request.
type patchRequest struct {
	UpdateBindings      map[string]bindingDTO      `json:"update_bindings,omitempty"`
	RemoveBindings      []string                   `json:"remove_bindings,omitempty"`
	UpdateSubscriptions map[string]subscriptionDTO `json:"update_subscriptions,omitempty"`
	RemoveSubscriptions []string                   `json:"remove_subscriptions,omitempty"`
	AssociatedURIs      *associatedURIsDTO         `json:"associated_uris,omitempty"`
	MinimumCSeq         int                        `json:"minimum_cseq,omitempty"`
	IncrementCSeq       bool                        `json:"increment_cseq,omitempty"`
}

func fromPatch(p *s4record.Patch) patchRequest {
	req := patchRequest{
		RemoveBindings:      p.RemoveBindings,
		RemoveSubscriptions: p.RemoveSubscriptions,
		MinimumCSeq:         p.MinimumCSeq,
		IncrementCSeq:       p.IncrementCSeq,
	}
	if len(p.UpdateBindings) > 0 {
		req.UpdateBindings = make(map[string]bindingDTO, len(p.UpdateBindings))
		for id, b := range p.UpdateBindings {
			req.UpdateBindings[id] = fromBinding(b)
		}
	}
	if len(p.UpdateSubscriptions) > 0 {
		req.UpdateSubscriptions = make(map[string]subscriptionDTO, len(p.UpdateSubscriptions))
		for id, s := range p.UpdateSubscriptions {
			req.UpdateSubscriptions[id] = fromSubscription(s)
		}
	}
	if p.AssociatedURIs != nil {
		req.AssociatedURIs = fromAssociatedURIs(p.AssociatedURIs)
	}
	return req
}

func (req patchRequest) toPatch() *s4record.Patch {
	p := &s4record.Patch{
		RemoveBindings:      req.RemoveBindings,
		RemoveSubscriptions: req.RemoveSubscriptions,
		MinimumCSeq:         req.MinimumCSeq,
		IncrementCSeq:       req.IncrementCSeq,
	}
	if len(req.UpdateBindings) > 0 {
		p.UpdateBindings = make(map[string]*s4record.Binding, len(req.UpdateBindings))
		for id, d := range req.UpdateBindings {
			p.UpdateBindings[id] = d.toBinding()
		}
	}
	if len(req.UpdateSubscriptions) > 0 {
		p.UpdateSubscriptions = make(map[string]*s4record.Subscription, len(req.UpdateSubscriptions))
		for id, d := range req.UpdateSubscriptions {
			p.UpdateSubscriptions[id] = d.toSubscription()
		}
	}
	if req.AssociatedURIs != nil {
		a := req.AssociatedURIs.toAssociatedURIs()
		p.AssociatedURIs = &a
	}
	return p
}
