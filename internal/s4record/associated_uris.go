package s4record

// AssociatedURIs is the subscriber's identity set: an implicit
// registration set of public identities, some possibly barred, plus any
// wildcard-to-distinct-identity mappings. It is an opaque value type with
// field-wise equality, grounded on the original implementation's
// AssociatedURIs (_examples/original_source/include/associated_uris.h).
type AssociatedURIs struct {
	uris            []string
	barred          map[string]bool
	distinctToWild  map[string]string
}

// NewAssociatedURIs returns an empty AssociatedURIs.
func NewAssociatedURIs() AssociatedURIs {
	return AssociatedURIs{
		barred:         make(map[string]bool),
		distinctToWild: make(map[string]string),
	}
}

// DefaultIMPU returns the first unbarred URI (or, if emergency is true and
// none is unbarred, the first URI regardless of barring).
func (a *AssociatedURIs) DefaultIMPU(emergency bool) (string, bool) {
	for _, u := range a.uris {
		if !a.barred[u] {
			return u, true
		}
	}
	if emergency && len(a.uris) > 0 {
		return a.uris[0], true
	}
	return "", false
}

// Contains reports whether uri is in the associated set.
func (a *AssociatedURIs) Contains(uri string) bool {
	for _, u := range a.uris {
		if u == uri {
			return true
		}
	}
	return false
}

// AddURI adds uri to the set with the given barring status. Duplicate
// additions update the barring status in place.
func (a *AssociatedURIs) AddURI(uri string, barred bool) {
	if a.barred == nil {
		a.barred = make(map[string]bool)
	}
	if !a.Contains(uri) {
		a.uris = append(a.uris, uri)
	}
	a.barred[uri] = barred
}

// SetBarred updates the barring status of an already-present URI.
func (a *AssociatedURIs) SetBarred(uri string, barred bool) {
	if a.barred == nil {
		a.barred = make(map[string]bool)
	}
	a.barred[uri] = barred
}

// Clear empties the associated URI set.
func (a *AssociatedURIs) Clear() {
	a.uris = nil
	a.barred = make(map[string]bool)
	a.distinctToWild = make(map[string]string)
}

// IsBarred reports whether uri is marked barred.
func (a *AssociatedURIs) IsBarred(uri string) bool {
	return a.barred[uri]
}

// UnbarredURIs returns all URIs not marked barred.
func (a *AssociatedURIs) UnbarredURIs() []string {
	var out []string
	for _, u := range a.uris {
		if !a.barred[u] {
			out = append(out, u)
		}
	}
	return out
}

// BarredURIs returns all URIs marked barred.
func (a *AssociatedURIs) BarredURIs() []string {
	var out []string
	for _, u := range a.uris {
		if a.barred[u] {
			out = append(out, u)
		}
	}
	return out
}

// AllURIs returns every associated URI, barred or not.
func (a *AssociatedURIs) AllURIs() []string {
	return append([]string(nil), a.uris...)
}

// WildcardMappings returns the distinct-identity to wildcard mapping.
func (a *AssociatedURIs) WildcardMappings() map[string]string {
	out := make(map[string]string, len(a.distinctToWild))
	for k, v := range a.distinctToWild {
		out[k] = v
	}
	return out
}

// AddWildcardMapping records that distinct belongs to wildcard.
func (a *AssociatedURIs) AddWildcardMapping(wildcard, distinct string) {
	if a.distinctToWild == nil {
		a.distinctToWild = make(map[string]string)
	}
	a.distinctToWild[distinct] = wildcard
}

// Clone returns a deep copy.
func (a AssociatedURIs) Clone() AssociatedURIs {
	c := AssociatedURIs{
		uris:           append([]string(nil), a.uris...),
		barred:         make(map[string]bool, len(a.barred)),
		distinctToWild: make(map[string]string, len(a.distinctToWild)),
	}
	for k, v := range a.barred {
		c.barred[k] = v
	}
	for k, v := range a.distinctToWild {
		c.distinctToWild[k] = v
	}
	return c
}

// Equal reports field-wise equality between two AssociatedURIs.
func (a AssociatedURIs) Equal(other AssociatedURIs) bool {
	if len(a.uris) != len(other.uris) {
		return false
	}
	for i, u := range a.uris {
		if other.uris[i] != u {
			return false
		}
	}
	if len(a.barred) != len(other.barred) {
		return false
	}
	for k, v := range a.barred {
		if ov, ok := other.barred[k]; !ok || ov != v {
			return false
		}
	}
	if len(a.distinctToWild) != len(other.distinctToWild) {
		return false
	}
	for k, v := range a.distinctToWild {
		if ov, ok := other.distinctToWild[k]; !ok || ov != v {
			return false
		}
	}
	return true
}
