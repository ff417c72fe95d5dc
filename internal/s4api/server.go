// Package s4api implements the client and sibling HTTP surface of spec
// §6, in the shape of the teacher's services/signaling/api package:
// http.ServeMux, JSON bodies, slog on every handler. It is the Non-goal
// boundary drawn by spec §1 ("security/transport of the RPC surface") —
// no TLS, no auth, just enough transport to exercise the core.
package s4api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sebas/s4/internal/expiry"
	"github.com/sebas/s4/internal/s4record"
	"github.com/sebas/s4/internal/sitemanager"
)

// Manager is the narrow capability the API needs from a site manager: the
// four client operations plus remote-DELETE. *sitemanager.Manager
// satisfies it directly.
type Manager interface {
	Get(ctx context.Context, subID string) (*s4record.Record, error)
	Put(ctx context.Context, subID string, rec *s4record.Record) error
	Patch(ctx context.Context, subID string, patch *s4record.Patch) (*s4record.Record, error)
	Delete(ctx context.Context, subID string, version uint64) error
	RemoteDelete(ctx context.Context, subID string)
}

// StatsProvider is the optional capability backing GET /api/v1/stats.
// s4store.MemStore implements it; a networked backing store might not,
// in which case Server is constructed with a nil provider and the
// endpoint reports zero.
type StatsProvider interface {
	RecordCount() int
}

// Server is the HTTP front end for one site's Manager.
type Server struct {
	addr       string
	httpServer *http.Server
	manager    Manager
	stats      StatsProvider
	consumer   expiry.Consumer
	startTime  time.Time
}

// NewServer builds a Server listening on addr, dispatching timer-pop
// webhooks to consumer. stats may be nil.
func NewServer(addr string, manager Manager, stats StatsProvider, consumer expiry.Consumer) *Server {
	s := &Server{
		addr:      addr,
		manager:   manager,
		stats:     stats,
		consumer:  consumer,
		startTime: time.Now(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/health", s.handleHealth)
	mux.HandleFunc("/api/v1/stats", s.handleStats)
	mux.HandleFunc("/api/v1/timers/pop", s.handleTimerPop)
	mux.HandleFunc("/api/v1/aors/", s.handleAOR)

	s.httpServer = &http.Server{Addr: addr, Handler: mux}
	return s
}

// Start begins listening in the background.
func (s *Server) Start() error {
	slog.Info("s4api: starting HTTP server", "addr", s.addr)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("s4api: server error", "error", err)
		}
	}()
	return nil
}

// Stop closes the listener.
func (s *Server) Stop() error {
	return s.httpServer.Close()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"uptime": int64(time.Since(s.startTime).Seconds()),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	count := 0
	if s.stats != nil {
		count = s.stats.RecordCount()
	}
	s.writeJSON(w, http.StatusOK, statsResponse{RecordCount: count})
}

// handleAOR dispatches /api/v1/aors/{subID}[/remote-delete] by method.
// subID may itself contain path separators (AORs are SIP URIs), so only
// the reserved "/remote-delete" suffix is special-cased.
func (s *Server) handleAOR(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/aors/")
	if rest == "" {
		http.Error(w, "sub_id required", http.StatusBadRequest)
		return
	}

	if subID, ok := strings.CutSuffix(rest, "/remote-delete"); ok {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		s.manager.RemoteDelete(r.Context(), mustUnescape(subID))
		w.WriteHeader(http.StatusOK)
		return
	}

	subID := mustUnescape(rest)
	switch r.Method {
	case http.MethodGet:
		s.handleGet(w, r, subID)
	case http.MethodPut:
		s.handlePut(w, r, subID)
	case http.MethodPatch:
		s.handlePatch(w, r, subID)
	case http.MethodDelete:
		s.handleDelete(w, r, subID)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request, subID string) {
	rec, err := s.manager.Get(r.Context(), subID)
	if err != nil {
		s.writeError(w, err, http.StatusNotFound)
		return
	}
	s.writeJSON(w, http.StatusOK, getResponse{Record: rec, Version: rec.CAS})
}

func (s *Server) handlePut(w http.ResponseWriter, r *http.Request, subID string) {
	var rec s4record.Record
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		http.Error(w, "malformed record: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.manager.Put(r.Context(), subID, &rec); err != nil {
		s.writeError(w, err, http.StatusPreconditionFailed)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePatch(w http.ResponseWriter, r *http.Request, subID string) {
	var req patchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed patch: "+err.Error(), http.StatusBadRequest)
		return
	}
	rec, err := s.manager.Patch(r.Context(), subID, req.toPatch())
	if err != nil {
		// spec §6: PATCH against an absent record is PRECONDITION_FAILED,
		// not NOT_FOUND -- the external contract differs from GET's.
		s.writeError(w, err, http.StatusPreconditionFailed)
		return
	}
	s.writeJSON(w, http.StatusOK, patchResponse{Record: rec})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request, subID string) {
	versionStr := r.URL.Query().Get("version")
	version, err := strconv.ParseUint(versionStr, 10, 64)
	if err != nil {
		http.Error(w, "version query parameter required", http.StatusBadRequest)
		return
	}
	if err := s.manager.Delete(r.Context(), subID, version); err != nil {
		s.writeError(w, err, http.StatusPreconditionFailed)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleTimerPop is the broker's callback (spec §6): parse errors and a
// missing aor_id are 400; otherwise reply 200 immediately and dispatch to
// the consumer on its own goroutine, never blocking the HTTP response on
// consumer work.
func (s *Server) handleTimerPop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req timerPopRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed timer pop payload", http.StatusBadRequest)
		return
	}
	if req.AorID == "" {
		http.Error(w, "aor_id required", http.StatusBadRequest)
		return
	}

	w.WriteHeader(http.StatusOK)

	if s.consumer == nil {
		return
	}
	trailID := uuid.NewString()
	go s.consumer.HandleTimerPop(context.Background(), req.AorID, trailID)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("s4api: failed to encode response", "error", err)
	}
}

// writeError maps a sitemanager error kind to an HTTP status. preconditionStatus
// is the status used for the "operation-specific precondition failure"
// case (spec §6's per-operation error table), since the same
// ErrVersionMismatch/ErrAlreadyExists/ErrNotFound sentinels carry
// different external meanings depending which operation produced them.
func (s *Server) writeError(w http.ResponseWriter, err error, preconditionStatus int) {
	switch {
	case errors.Is(err, sitemanager.ErrNotFound):
		if preconditionStatus == http.StatusNotFound {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		http.Error(w, "precondition failed: absent", preconditionStatus)
	case errors.Is(err, sitemanager.ErrVersionMismatch):
		http.Error(w, "precondition failed: version mismatch", preconditionStatus)
	case errors.Is(err, sitemanager.ErrAlreadyExists):
		http.Error(w, "precondition failed: already exists", preconditionStatus)
	default:
		slog.Error("s4api: server error", "error", err)
		http.Error(w, "server error", http.StatusInternalServerError)
	}
}

func mustUnescape(s string) string {
	if unescaped, err := url.PathUnescape(s); err == nil {
		return unescaped
	}
	return s
}
