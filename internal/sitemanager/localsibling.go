package sitemanager

import (
	"context"

	"github.com/sebas/s4/internal/s4record"
)

// LocalSibling adapts another Manager (typically one constructed with
// NewRemote, serving another site's backing store in the same process)
// to the Sibling interface, with no network hop. Used for single-binary
// / test deployments (spec §9: "Remote siblings in tests or in-process
// deployments implement this interface without any network hop").
type LocalSibling struct {
	Remote *Manager
}

// Get implements Sibling.
func (s *LocalSibling) Get(ctx context.Context, subID string) (*s4record.Record, uint64, error) {
	rec, err := s.Remote.Get(ctx, subID)
	if err != nil {
		return nil, 0, err
	}
	return rec, rec.CAS, nil
}

// Put implements Sibling.
func (s *LocalSibling) Put(ctx context.Context, subID string, record *s4record.Record) error {
	return s.Remote.Put(ctx, subID, record)
}

// Patch implements Sibling.
func (s *LocalSibling) Patch(ctx context.Context, subID string, patch *s4record.Patch) (*s4record.Record, error) {
	return s.Remote.Patch(ctx, subID, patch)
}

// RemoteDelete implements Sibling.
func (s *LocalSibling) RemoteDelete(ctx context.Context, subID string) {
	s.Remote.RemoteDelete(ctx, subID)
}
