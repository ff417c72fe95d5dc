package sitemanager

import (
	"context"

	"github.com/sebas/s4/internal/s4record"
)

// Sibling is the narrow capability a site manager holds on each of its
// cross-site peers: the four client operations plus remote-DELETE,
// grounded on spec §9 ("cross-site calls as an interface") and the
// original's S4::_remote_s4s list
// (_examples/original_source/include/s4.h). Tests and in-process
// deployments satisfy this with LocalSibling; a networked
// deployment satisfies it with s4api's HTTP sibling client. The Record
// model itself never knows siblings exist.
type Sibling interface {
	Get(ctx context.Context, subID string) (*s4record.Record, uint64, error)
	Put(ctx context.Context, subID string, record *s4record.Record) error
	Patch(ctx context.Context, subID string, patch *s4record.Patch) (*s4record.Record, error)
	RemoteDelete(ctx context.Context, subID string)
}
