// Command s4 runs one site of the replicated registration store: an
// HTTP client/sibling surface backed by a process-local store, a
// quartz-based timer broker, and the timer coordinator and expiry
// dispatcher wired to the site manager, in the shape of the teacher's
// cmd/signaling.
package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sebas/s4/internal/expiry"
	"github.com/sebas/s4/internal/logger"
	"github.com/sebas/s4/internal/s4api"
	"github.com/sebas/s4/internal/s4config"
	"github.com/sebas/s4/internal/s4store"
	"github.com/sebas/s4/internal/sitemanager"
	"github.com/sebas/s4/internal/timerbroker"
	"github.com/sebas/s4/internal/timercoordinator"
)

func main() {
	cfg := s4config.Load()

	logger.InitLogger(os.Stdout)
	logger.SetLevel(cfg.LogLevel)

	store := s4store.NewMemStore(cfg.MemStoreSweepInterval)
	defer store.Close()

	consumer := s4api.LoggingConsumer{}
	dispatcher := expiry.New(consumer)

	broker, err := timerbroker.NewQuartzBroker(func(ctx context.Context, payload []byte) {
		handleBrokerPop(ctx, consumer, payload)
	})
	if err != nil {
		slog.Error("s4: failed to start timer broker", "error", err)
		os.Exit(1)
	}
	defer broker.Stop()

	timerCoord := timercoordinator.New(broker)

	siblings := make([]sitemanager.Sibling, 0, len(cfg.Siblings))
	for _, addr := range cfg.Siblings {
		siblings = append(siblings, s4api.NewSiblingClient(addr, http.DefaultClient))
	}

	siteCfg := sitemanager.DefaultConfig()
	siteCfg.GracePeriod = cfg.GracePeriod
	siteCfg.CallbackURI = cfg.BrokerCallbackURI

	// Two Manager flavors share one backing store (spec §4.2/§4.3/§4.4):
	// the local manager serves clients, replicates to siblings, and owns
	// the timer coordinator and expiry dispatcher; the remote manager
	// holds no siblings and runs neither, so a sibling's cross-site call
	// never cascades replication back out.
	localManager := sitemanager.NewLocal(store, siblings, timerCoord, dispatcher, siteCfg)
	remoteManager := sitemanager.NewRemote(store, siteCfg)

	clientServer := s4api.NewServer(cfg.ListenAddr, localManager, store, consumer)
	siblingServer := s4api.NewServer(cfg.SiblingListenAddr, remoteManager, store, nil)

	run(clientServer, siblingServer, cfg)
}

// brokerPopPayload mirrors the opaque JSON body the timer coordinator
// hands the broker (spec §6): {"aor_id": "<sub_id>"}.
type brokerPopPayload struct {
	AorID string `json:"aor_id"`
}

// handleBrokerPop decodes the broker's payload and dispatches the
// consumer, mirroring what a real broker's HTTP callback into
// handleTimerPop would do (spec §6).
func handleBrokerPop(ctx context.Context, consumer expiry.Consumer, payload []byte) {
	var p brokerPopPayload
	if err := json.Unmarshal(payload, &p); err != nil || p.AorID == "" {
		slog.Warn("s4: malformed broker pop payload", "error", err)
		return
	}
	consumer.HandleTimerPop(ctx, p.AorID, "")
}

func run(clientServer, siblingServer *s4api.Server, cfg *s4config.Config) {
	slog.Info("s4: starting site",
		"site_id", cfg.SiteID,
		"listen", cfg.ListenAddr,
		"sibling_listen", cfg.SiblingListenAddr,
		"siblings", cfg.Siblings,
	)

	if err := clientServer.Start(); err != nil {
		slog.Error("s4: failed to start client HTTP server", "error", err)
		os.Exit(1)
	}
	if err := siblingServer.Start(); err != nil {
		slog.Error("s4: failed to start sibling HTTP server", "error", err)
		os.Exit(1)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	slog.Info("s4: received signal, shutting down", "signal", sig)

	if err := clientServer.Stop(); err != nil {
		slog.Error("s4: error during client server shutdown", "error", err)
	}
	if err := siblingServer.Stop(); err != nil {
		slog.Error("s4: error during sibling server shutdown", "error", err)
	}
	time.Sleep(200 * time.Millisecond)
}
