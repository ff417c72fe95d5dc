// Package s4config loads process configuration from flags and
// environment variables, in the shape of the teacher's
// internal/signaling/config package.
package s4config

import (
	"flag"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds one site's process configuration.
type Config struct {
	// SiteID identifies this site in logs.
	SiteID string

	// ListenAddr is the client-facing HTTP surface's bind address,
	// served by the local site manager (spec §4.2).
	ListenAddr string

	// SiblingListenAddr is the sibling-facing HTTP surface's bind
	// address, served by a remote site manager that holds no siblings
	// and runs no timer coordinator or expiry dispatcher (spec §4.2,
	// §4.3, §4.4) -- kept distinct from ListenAddr so a sibling's
	// cross-site call can never land back on the local manager and
	// cascade replication.
	SiblingListenAddr string

	// Siblings lists the base URLs of this site's replication peers'
	// sibling-facing surfaces (e.g. "http://site-b:8081"). Each becomes
	// an s4api.SiblingClient.
	Siblings []string

	// GracePeriod is added to a record's last expiry to compute backing
	// store TTL (spec §4.2/§6).
	GracePeriod time.Duration

	// BrokerCallbackURI is the base URL this site advertises to the
	// timer broker for pop callbacks (spec §6).
	BrokerCallbackURI string

	// MemStoreSweepInterval controls how often MemStore reclaims expired
	// entries.
	MemStoreSweepInterval time.Duration

	LogLevel string
}

// Load loads configuration from command line flags and environment
// variable overrides, following the teacher's config.Load convention.
func Load() *Config {
	cfg := &Config{
		GracePeriod:           5 * time.Second,
		MemStoreSweepInterval: 30 * time.Second,
	}

	flag.StringVar(&cfg.SiteID, "site-id", "site-a", "this site's identifier")
	flag.StringVar(&cfg.ListenAddr, "listen", ":8080", "client-facing HTTP listen address")
	flag.StringVar(&cfg.SiblingListenAddr, "sibling-listen", ":8081", "sibling-facing HTTP listen address")
	flag.StringVar(&cfg.LogLevel, "loglevel", "info", "log level (debug, info, warn, error)")
	flag.StringVar(&cfg.BrokerCallbackURI, "callback-uri", "http://localhost:8080/api/v1/timers/pop", "this site's timer-pop callback URL, advertised to the timer broker")
	flag.DurationVar(&cfg.GracePeriod, "grace-period", cfg.GracePeriod, "backing-store TTL grace added to a record's last expiry")

	var siblings string
	flag.StringVar(&siblings, "siblings", "", "comma-separated sibling site base URLs")

	flag.Parse()

	cfg.Siblings = parseAddressList(siblings)

	if v := os.Getenv("S4_SITE_ID"); v != "" {
		cfg.SiteID = v
	}
	if v := os.Getenv("S4_LISTEN"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("S4_SIBLING_LISTEN"); v != "" {
		cfg.SiblingListenAddr = v
	}
	if v := os.Getenv("S4_LOGLEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("S4_CALLBACK_URI"); v != "" {
		cfg.BrokerCallbackURI = v
	}
	if v := os.Getenv("S4_SIBLINGS"); v != "" {
		cfg.Siblings = parseAddressList(v)
	}
	if v := os.Getenv("S4_GRACE_PERIOD_SECONDS"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil {
			cfg.GracePeriod = time.Duration(secs) * time.Second
		}
	}

	return cfg
}

func parseAddressList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	addrs := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			addrs = append(addrs, p)
		}
	}
	return addrs
}
