package s4api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sebas/s4/internal/s4record"
	"github.com/sebas/s4/internal/s4store"
	"github.com/sebas/s4/internal/sitemanager"
)

func newTestServer(t *testing.T) (*httptest.Server, *sitemanager.Manager) {
	t.Helper()
	store := s4store.NewMemStore(time.Hour)
	t.Cleanup(store.Close)

	m := sitemanager.NewLocal(store, nil, nil, nil, sitemanager.DefaultConfig())
	srv := NewServer("", m, store, LoggingConsumer{})
	ts := httptest.NewServer(srv.httpServer.Handler)
	t.Cleanup(ts.Close)
	return ts, m
}

func TestHandlePutThenGet(t *testing.T) {
	ts, _ := newTestServer(t)

	rec := s4record.New("sip:alice@example.com", "sip:scscf.example.com")
	rec.GetBinding("b1").Expires = time.Now().Add(time.Hour).Unix()
	body, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	req, _ := http.NewRequest(http.MethodPut, ts.URL+"/api/v1/aors/alice", bytes.NewReader(body))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("put status = %d, want 204", resp.StatusCode)
	}

	getResp, err := http.Get(ts.URL + "/api/v1/aors/alice")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer getResp.Body.Close()
	if getResp.StatusCode != http.StatusOK {
		t.Fatalf("get status = %d, want 200", getResp.StatusCode)
	}
	var got getResponse
	if err := json.NewDecoder(getResp.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, ok := got.Record.Bindings["b1"]; !ok {
		t.Fatalf("missing binding b1 in response: %+v", got.Record)
	}
	if got.Version == 0 {
		t.Fatalf("expected non-zero version")
	}
}

func TestHandlePutDuplicateReturnsPreconditionFailed(t *testing.T) {
	ts, _ := newTestServer(t)

	rec := s4record.New("sip:alice@example.com", "sip:scscf.example.com")
	rec.GetBinding("b1").Expires = time.Now().Add(time.Hour).Unix()
	body, _ := json.Marshal(rec)

	put := func() *http.Response {
		req, _ := http.NewRequest(http.MethodPut, ts.URL+"/api/v1/aors/alice", bytes.NewReader(body))
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("put: %v", err)
		}
		return resp
	}

	first := put()
	first.Body.Close()
	if first.StatusCode != http.StatusNoContent {
		t.Fatalf("first put status = %d, want 204", first.StatusCode)
	}

	second := put()
	second.Body.Close()
	if second.StatusCode != http.StatusPreconditionFailed {
		t.Fatalf("second put status = %d, want 412", second.StatusCode)
	}
}

func TestHandleGetMissingReturnsNotFound(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/v1/aors/nobody")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestHandlePatchMissingReturnsPreconditionFailed(t *testing.T) {
	ts, _ := newTestServer(t)

	patch := patchRequest{IncrementCSeq: true}
	body, _ := json.Marshal(patch)

	req, _ := http.NewRequest(http.MethodPatch, ts.URL+"/api/v1/aors/nobody", bytes.NewReader(body))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("patch: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusPreconditionFailed {
		t.Fatalf("status = %d, want 412", resp.StatusCode)
	}
}

func TestHandleDeleteStaleVersionReturnsPreconditionFailed(t *testing.T) {
	ts, _ := newTestServer(t)

	rec := s4record.New("sip:alice@example.com", "sip:scscf.example.com")
	rec.GetBinding("b1").Expires = time.Now().Add(time.Hour).Unix()
	body, _ := json.Marshal(rec)
	putReq, _ := http.NewRequest(http.MethodPut, ts.URL+"/api/v1/aors/alice", bytes.NewReader(body))
	putResp, err := http.DefaultClient.Do(putReq)
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	putResp.Body.Close()

	delReq, _ := http.NewRequest(http.MethodDelete, ts.URL+"/api/v1/aors/alice?version=999999", nil)
	delResp, err := http.DefaultClient.Do(delReq)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	defer delResp.Body.Close()
	if delResp.StatusCode != http.StatusPreconditionFailed {
		t.Fatalf("status = %d, want 412", delResp.StatusCode)
	}
}

func TestHandleTimerPopRejectsMissingAorID(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Post(ts.URL+"/api/v1/timers/pop", "application/json", bytes.NewReader([]byte(`{}`)))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestHandleTimerPopAcceptsValidPayload(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Post(ts.URL+"/api/v1/timers/pop", "application/json", bytes.NewReader([]byte(`{"aor_id":"alice"}`)))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}

func TestHandleStatsReportsRecordCount(t *testing.T) {
	ts, _ := newTestServer(t)

	rec := s4record.New("sip:alice@example.com", "sip:scscf.example.com")
	rec.GetBinding("b1").Expires = time.Now().Add(time.Hour).Unix()
	body, _ := json.Marshal(rec)
	req, _ := http.NewRequest(http.MethodPut, ts.URL+"/api/v1/aors/alice", bytes.NewReader(body))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	resp.Body.Close()

	statsResp, err := http.Get(ts.URL + "/api/v1/stats")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	defer statsResp.Body.Close()
	var got statsResponse
	if err := json.NewDecoder(statsResp.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.RecordCount != 1 {
		t.Fatalf("record count = %d, want 1", got.RecordCount)
	}
}
