package config

import (
	"os"
	"strings"
	"time"
)

// EnvPrefix prefixes every environment variable the server reads.
const EnvPrefix = "DOCSYNC_"

// parseEnv overlays config with DOCSYNC_* variables. A .env file, when the
// caller loaded one, is already part of the environment. Malformed
// durations panic like malformed JSON does.
func parseEnv(config *Config) {
	envString("HTTP_ADDR", &config.HTTPAddr)
	envString("HEALTH_ADDR", &config.HealthAddr)
	envString("DATABASE_DSN", &config.DatabaseDSN)
	envString("SECRET_KEY", &config.SecretKey)
	envString("S3_ROOT_USER", &config.S3RootUser)
	envString("S3_ROOT_PASSWORD", &config.S3RootPassword)
	envString("S3_BUCKET", &config.S3Bucket)
	envString("S3_REGION", &config.S3Region)
	envString("S3_BASE_ENDPOINT", &config.S3BaseEndpoint)
	envString("LOG_LEVEL", &config.LogLevel)
	envDuration("TOKEN_VALIDITY", &config.TokenValidity)
	envDuration("SHARE_LINK_TTL", &config.ShareLinkTTL)

	if v, ok := lookup("CORS_ORIGINS"); ok {
		var origins []string
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		config.CORSOrigins = origins
	}
}

func lookup(name string) (string, bool) {
	v, ok := os.LookupEnv(EnvPrefix + name)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return v, true
}

func envString(name string, dst *string) {
	if v, ok := lookup(name); ok {
		*dst = v
	}
}

func envDuration(name string, dst *time.Duration) {
	v, ok := lookup(name)
	if !ok {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		panic(err)
	}
	*dst = d
}
