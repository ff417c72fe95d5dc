package s4record

import (
	"encoding/json"
	"fmt"

	"github.com/emiago/sipgo/sip"
)

// Wire layout per spec §6. Keys are stable; unknown fields are ignored on
// read (plain encoding/json already does this for us). Refreshed and any
// path_uris derived from path headers are intentionally absent — they are
// not persisted.
//
// associated_uris and uri are not enumerated in spec §6's client-facing
// table but are carried on the wire (SPEC_FULL's domain-stack expansion)
// because the Record can't round-trip through the backing store without
// them; naming follows the original's JSON_ASSOCIATED_URIS/JSON_REQ_URI
// conventions (_examples/original_source/include/aor.h).
type wireRecord struct {
	Bindings       map[string]wireBinding      `json:"bindings"`
	Subscriptions  map[string]wireSubscription `json:"subscriptions"`
	NotifyCSeq     int                         `json:"notify_cseq"`
	TimerID        string                      `json:"timer_id"`
	SCSCFURI       string                      `json:"scscf-uri"`
	URI            string                      `json:"uri,omitempty"`
	AssociatedURIs *wireAssociatedURIs         `json:"associated_uris,omitempty"`
}

type wireBinding struct {
	ContactURI  string            `json:"uri"`
	CallID      string            `json:"cid"`
	CSeq        int               `json:"cseq"`
	Expires     int64             `json:"expires"`
	Priority    int               `json:"priority"`
	Params      map[string]string `json:"params"`
	PathHeaders []string          `json:"path_headers"`
	PrivateID   string            `json:"private_id"`
	EmergencyReg bool             `json:"emergency_reg"`
}

type wireSubscription struct {
	ReqURI    string   `json:"req_uri"`
	FromURI   string   `json:"from_uri"`
	FromTag   string   `json:"from_tag"`
	ToURI     string   `json:"to_uri"`
	ToTag     string   `json:"to_tag"`
	CallID    string   `json:"cid"`
	Routes    []string `json:"routes"`
	Expires   int64    `json:"expires"`
}

type wireAssociatedURIs struct {
	URIs             []string          `json:"uris"`
	Barring          map[string]bool   `json:"barring"`
	WildcardMapping  map[string]string `json:"wildcard-mapping"`
}

// validateURI checks URI syntax at the decode boundary using the same
// call the teacher's registration handler makes when building a Contact
// header (internal/signaling/registration/handler.go addContactHeader).
// This validates URI syntax only, not a SIP message — the telephony
// signaling schema Non-goal is untouched. An empty string is allowed:
// it's what Record.GetBinding/GetSubscription insert for a fresh entry.
func validateURI(raw string) error {
	if raw == "" {
		return nil
	}
	var u sip.Uri
	if err := sip.ParseUri(raw, &u); err != nil {
		return fmt.Errorf("%w: invalid uri %q: %v", ErrMalformedRecord, raw, err)
	}
	return nil
}

// MarshalJSON encodes r in the backing-store wire layout.
func (r *Record) MarshalJSON() ([]byte, error) {
	w := wireRecord{
		Bindings:      make(map[string]wireBinding, len(r.Bindings)),
		Subscriptions: make(map[string]wireSubscription, len(r.Subscriptions)),
		NotifyCSeq:    r.NotifyCSeq,
		TimerID:       r.TimerID,
		SCSCFURI:      r.SCSCFURI,
		URI:           r.URI,
	}
	for id, b := range r.Bindings {
		w.Bindings[id] = wireBinding{
			ContactURI:   b.ContactURI,
			CallID:       b.CallID,
			CSeq:         b.CSeq,
			Expires:      b.Expires,
			Priority:     b.Priority,
			Params:       b.Params,
			PathHeaders:  b.PathHeaders,
			PrivateID:    b.PrivateID,
			EmergencyReg: b.EmergencyRegistration,
		}
	}
	for id, s := range r.Subscriptions {
		w.Subscriptions[id] = wireSubscription{
			ReqURI:  s.ReqURI,
			FromURI: s.FromURI,
			FromTag: s.FromTag,
			ToURI:   s.ToURI,
			ToTag:   s.ToTag,
			CallID:  s.CallID,
			Routes:  s.RouteURIs,
			Expires: s.Expires,
		}
	}
	w.AssociatedURIs = &wireAssociatedURIs{
		URIs:            r.AssociatedURIs.AllURIs(),
		Barring:         r.AssociatedURIs.barred,
		WildcardMapping: r.AssociatedURIs.distinctToWild,
	}
	return json.Marshal(w)
}

// UnmarshalJSON decodes a stored record, validating URI syntax on every
// binding's contact and every subscription's dialog URIs. A failure makes
// the whole decode ErrMalformedRecord; the caller (sitemanager) folds
// this into StoreError per spec §7 while logging the distinct cause.
func (r *Record) UnmarshalJSON(data []byte) error {
	var w wireRecord
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}

	bindings := make(map[string]*Binding, len(w.Bindings))
	for id, wb := range w.Bindings {
		if err := validateURI(wb.ContactURI); err != nil {
			return err
		}
		params := wb.Params
		if params == nil {
			params = make(map[string]string)
		}
		bindings[id] = &Binding{
			AOR:                   w.URI,
			ContactURI:            wb.ContactURI,
			CallID:                wb.CallID,
			PathHeaders:           wb.PathHeaders,
			CSeq:                  wb.CSeq,
			Expires:               wb.Expires,
			Priority:              wb.Priority,
			Params:                params,
			PrivateID:             wb.PrivateID,
			EmergencyRegistration: wb.EmergencyReg,
		}
	}

	subs := make(map[string]*Subscription, len(w.Subscriptions))
	for id, ws := range w.Subscriptions {
		for _, u := range []string{ws.ReqURI, ws.FromURI, ws.ToURI} {
			if err := validateURI(u); err != nil {
				return err
			}
		}
		subs[id] = &Subscription{
			ReqURI:    ws.ReqURI,
			FromURI:   ws.FromURI,
			FromTag:   ws.FromTag,
			ToURI:     ws.ToURI,
			ToTag:     ws.ToTag,
			CallID:    ws.CallID,
			Refreshed: false,
			RouteURIs: ws.Routes,
			Expires:   ws.Expires,
		}
	}

	associated := NewAssociatedURIs()
	if w.AssociatedURIs != nil {
		for _, u := range w.AssociatedURIs.URIs {
			barred := false
			if w.AssociatedURIs.Barring != nil {
				barred = w.AssociatedURIs.Barring[u]
			}
			associated.AddURI(u, barred)
		}
		for distinct, wildcard := range w.AssociatedURIs.WildcardMapping {
			associated.AddWildcardMapping(wildcard, distinct)
		}
	}

	r.Bindings = bindings
	r.Subscriptions = subs
	r.NotifyCSeq = w.NotifyCSeq
	r.TimerID = w.TimerID
	r.SCSCFURI = w.SCSCFURI
	r.URI = w.URI
	r.AssociatedURIs = associated
	return nil
}
