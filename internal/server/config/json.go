package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/docsync/internal/flagx"
	"github.com/dmitrijs2005/docsync/internal/timex"
)

// JsonConfig is the JSON shape of Config. Durations accept "24h" or
// integer nanoseconds.
type JsonConfig struct {
	HTTPAddr       string         `json:"http_addr"`
	HealthAddr     string         `json:"health_addr"`
	DatabaseDSN    string         `json:"database_dsn"`
	SecretKey      string         `json:"secret_key"`
	TokenValidity  timex.Duration `json:"token_validity"`
	S3RootUser     string         `json:"s3_root_user"`
	S3RootPassword string         `json:"s3_root_password"`
	S3Bucket       string         `json:"s3_bucket"`
	S3Region       string         `json:"s3_region"`
	S3BaseEndpoint string         `json:"s3_base_endpoint"`
	ShareLinkTTL   timex.Duration `json:"share_link_ttl"`
	CORSOrigins    []string       `json:"cors_origins"`
	LogLevel       string         `json:"log_level"`
}

// parseJson overlays config with the JSON file named by -c or -config.
// Absent keys keep their current value. Panics on read or unmarshal errors.
func parseJson(config *Config) {
	path := flagx.ConfigPath(os.Args[1:])
	if path == "" {
		return
	}

	file, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	setString(&config.HTTPAddr, c.HTTPAddr)
	setString(&config.HealthAddr, c.HealthAddr)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setString(&config.LogLevel, c.LogLevel)
	if c.TokenValidity.Duration > 0 {
		config.TokenValidity = c.TokenValidity.Duration
	}
	if c.ShareLinkTTL.Duration > 0 {
		config.ShareLinkTTL = c.ShareLinkTTL.Duration
	}
	if len(c.CORSOrigins) > 0 {
		config.CORSOrigins = c.CORSOrigins
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
