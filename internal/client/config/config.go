package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/dmitrijs2005/recdocs/internal/common"
)

// Config holds runtime settings for the recdocs CLI.
//
// Fields:
//   - ServerBaseURL: base URL of the gateway (scheme://host[:port]).
//   - CacheDSN: SQLite file of the local document cache.
//   - CacheKeyPrefix: namespace of cache keys.
//   - VerifyHash: check downloaded archives against the declared hash.
//   - RequestTimeout: bound on a single gateway request.
type Config struct {
	ServerBaseURL  string        `env:"RECDOCS_SERVER_URL"`
	CacheDSN       string        `env:"RECDOCS_CACHE_DSN"`
	CacheKeyPrefix string        `env:"RECDOCS_CACHE_PREFIX"`
	VerifyHash     bool          `env:"RECDOCS_VERIFY_HASH"`
	RequestTimeout time.Duration `env:"RECDOCS_REQUEST_TIMEOUT"`
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerBaseURL = "http://127.0.0.1:8080"
	c.CacheDSN = defaultCacheDSN()
	c.CacheKeyPrefix = common.CacheKeyPrefix
	c.VerifyHash = true
	c.RequestTimeout = 60 * time.Second
}

// LoadConfig builds a Config from defaults, the JSON file at path (skipped
// when path is empty) and the environment. Later sources take precedence.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := parseJson(cfg, path); err != nil {
		return nil, err
	}
	if err := parseEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaultCacheDSN() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "recdocs-cache.db"
	}
	return filepath.Join(dir, "recdocs", "cache.db")
}
