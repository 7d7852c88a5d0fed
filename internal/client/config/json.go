package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/docsync/internal/flagx"
	"github.com/dmitrijs2005/docsync/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling.
// It relies on timex.Duration so JSON can specify intervals either as
// strings like "3s" or as integer nanoseconds.
type JsonConfig struct {
	ServerURL           string         `json:"server_url"`
	HealthAddr          string         `json:"health_addr"`
	OnlineCheckInterval timex.Duration `json:"online_check_interval"`
	DatabasePath        string         `json:"database_path"`
	LogFile             string         `json:"log_file"`
	LogLevel            string         `json:"log_level"`
	MaxSyncAttempts     int            `json:"max_sync_attempts"`
	SyncBaseDelay       timex.Duration `json:"sync_base_delay"`
	SyncMaxDelay        timex.Duration `json:"sync_max_delay"`
}

// parseJson overlays Config with values loaded from the JSON file named by
// -c or -config. Keys that are absent leave the current value alone.
// Panics on read or unmarshal errors.
func parseJson(cfg *Config) {
	path := flagx.ConfigPath(os.Args[1:])
	if path == "" {
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}
	var jc JsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	setString(&cfg.ServerURL, jc.ServerURL)
	setString(&cfg.HealthAddr, jc.HealthAddr)
	setString(&cfg.DatabasePath, jc.DatabasePath)
	setString(&cfg.LogFile, jc.LogFile)
	setString(&cfg.LogLevel, jc.LogLevel)
	if jc.OnlineCheckInterval.Duration > 0 {
		cfg.OnlineCheckInterval = jc.OnlineCheckInterval.Duration
	}
	if jc.MaxSyncAttempts > 0 {
		cfg.MaxSyncAttempts = jc.MaxSyncAttempts
	}
	if jc.SyncBaseDelay.Duration > 0 {
		cfg.SyncBaseDelay = jc.SyncBaseDelay.Duration
	}
	if jc.SyncMaxDelay.Duration > 0 {
		cfg.SyncMaxDelay = jc.SyncMaxDelay.Duration
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
