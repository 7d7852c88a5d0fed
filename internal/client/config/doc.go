// Package config loads runtime configuration for the docsync CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file (see parseJson) selected via flags: -c or -config.
//  3. Command-line flags (see parseFlags), which override earlier values.
//
// Supported flags
//
//	-a string   base URL of the REST backend
//	-g string   address:port of the gRPC health service
//	-i int      online status check interval (seconds)
//	-d string   path of the local database
//	-l string   path of the log file
//	-r int      sync attempts before a pending-changes warning
//
// # JSON schema
//
// The JSON loader uses timex.Duration for intervals, so values can be either
// strings like "3s" or integer nanoseconds. Missing keys keep their defaults:
//
//	{
//	  "server_url": "http://127.0.0.1:8080",
//	  "health_addr": "127.0.0.1:50051",
//	  "online_check_interval": "3s",
//	  "database_path": "docsync.db",
//	  "log_file": "docsync.log",
//	  "log_level": "info",
//	  "max_sync_attempts": 5,
//	  "sync_base_delay": "1s",
//	  "sync_max_delay": "1m"
//	}
package config
