// Package config loads runtime configuration for the recdocs CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file (see parseJson), named by the --config flag.
//  3. RECDOCS_* environment variables.
//  4. Command-line flags, bound by the CLI over the loaded Config.
//
// # JSON schema
//
// Durations use timex.Duration, so values can be strings like "30s" or
// integer nanoseconds:
//
//	{
//	  "server_base_url": "https://reviews.example.org",
//	  "cache_dsn": "/var/lib/recdocs/cache.db",
//	  "cache_key_prefix": "recdocs-cache",
//	  "verify_hash": true,
//	  "request_timeout": "60s"
//	}
package config
