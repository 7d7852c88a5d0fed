package config

import "time"

// Config holds runtime settings for the docsync CLI.
//
// Fields:
//   - ServerURL: base URL of the REST backend.
//   - HealthAddr: host:port of the backend gRPC health service.
//   - OnlineCheckInterval: how often the client probes server reachability.
//   - DatabasePath: local SQLite store.
//   - LogFile, LogLevel: the client logs to a rotating file, never to the REPL.
//   - MaxSyncAttempts: failures after which a pending-changes warning is shown.
//   - SyncBaseDelay, SyncMaxDelay: retry backoff bounds.
type Config struct {
	ServerURL           string
	HealthAddr          string
	OnlineCheckInterval time.Duration
	DatabasePath        string
	LogFile             string
	LogLevel            string
	MaxSyncAttempts     int
	SyncBaseDelay       time.Duration
	SyncMaxDelay        time.Duration
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerURL = "http://127.0.0.1:8080"
	c.HealthAddr = "127.0.0.1:50051"
	c.OnlineCheckInterval = 3 * time.Second
	c.DatabasePath = "docsync.db"
	c.LogFile = "docsync.log"
	c.LogLevel = "info"
	c.MaxSyncAttempts = 5
	c.SyncBaseDelay = time.Second
	c.SyncMaxDelay = time.Minute
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
