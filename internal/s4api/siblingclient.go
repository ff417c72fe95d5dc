package s4api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/sebas/s4/internal/s4record"
	"github.com/sebas/s4/internal/sitemanager"
)

// SiblingClient implements sitemanager.Sibling over HTTP, used when a
// sibling site lives behind a real network hop (as opposed to
// sitemanager.LocalSibling's in-process shortcut). It talks to the same
// routes Server exposes, on the assumption that the remote site runs a
// Manager constructed with NewRemote (no further replication cascade).
type SiblingClient struct {
	baseURL string
	client  *http.Client
}

// NewSiblingClient returns a client targeting baseURL (e.g.
// "http://site-b:8080").
func NewSiblingClient(baseURL string, client *http.Client) *SiblingClient {
	if client == nil {
		client = http.DefaultClient
	}
	return &SiblingClient{baseURL: baseURL, client: client}
}

func (c *SiblingClient) aorURL(subID string) string {
	return fmt.Sprintf("%s/api/v1/aors/%s", c.baseURL, url.PathEscape(subID))
}

// Get implements sitemanager.Sibling.
func (c *SiblingClient) Get(ctx context.Context, subID string) (*s4record.Record, uint64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.aorURL(subID), nil)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", sitemanager.ErrStoreError, err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", sitemanager.ErrStoreError, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var body getResponse
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return nil, 0, fmt.Errorf("%w: %v", sitemanager.ErrStoreError, err)
		}
		return body.Record, body.Version, nil
	case http.StatusNotFound:
		return nil, 0, sitemanager.ErrNotFound
	default:
		return nil, 0, fmt.Errorf("%w: sibling get status %d", sitemanager.ErrStoreError, resp.StatusCode)
	}
}

// Put implements sitemanager.Sibling.
func (c *SiblingClient) Put(ctx context.Context, subID string, record *s4record.Record) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("%w: %v", sitemanager.ErrStoreError, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.aorURL(subID), bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("%w: %v", sitemanager.ErrStoreError, err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", sitemanager.ErrStoreError, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNoContent:
		return nil
	case http.StatusPreconditionFailed:
		return sitemanager.ErrAlreadyExists
	default:
		return fmt.Errorf("%w: sibling put status %d", sitemanager.ErrStoreError, resp.StatusCode)
	}
}

// Patch implements sitemanager.Sibling.
func (c *SiblingClient) Patch(ctx context.Context, subID string, patch *s4record.Patch) (*s4record.Record, error) {
	data, err := json.Marshal(fromPatch(patch))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", sitemanager.ErrStoreError, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, c.aorURL(subID), bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", sitemanager.ErrStoreError, err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", sitemanager.ErrStoreError, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var body patchResponse
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return nil, fmt.Errorf("%w: %v", sitemanager.ErrStoreError, err)
		}
		return body.Record, nil
	case http.StatusPreconditionFailed:
		// The server maps an absent-record PATCH to 412 (spec §6); the
		// replication fallback policy (spec §4.2) keys off ErrNotFound.
		return nil, sitemanager.ErrNotFound
	default:
		return nil, fmt.Errorf("%w: sibling patch status %d", sitemanager.ErrStoreError, resp.StatusCode)
	}
}

// RemoteDelete implements sitemanager.Sibling. Any outcome is accepted
// (spec §4.2's DELETE replication policy), so errors are swallowed after
// being surfaced to the caller would have no effect anyway.
func (c *SiblingClient) RemoteDelete(ctx context.Context, subID string) {
	target := c.aorURL(subID) + "/remote-delete"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, nil)
	if err != nil {
		return
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return
	}
	defer resp.Body.Close()
}
