package s4record

import "errors"

// ErrMalformedRecord is returned when a stored record's JSON form decodes
// into a structurally invalid Record (bad URI syntax, unparsable wire
// object). Callers fold this into StoreError; it is logged separately so
// a corrupt record can be told apart from a backend outage.
var ErrMalformedRecord = errors.New("s4record: malformed record")
