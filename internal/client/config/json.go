package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/recdocs/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. Only keys
// present in the file override the current values.
type JsonConfig struct {
	ServerBaseURL  *string         `json:"server_base_url"`
	CacheDSN       *string         `json:"cache_dsn"`
	CacheKeyPrefix *string         `json:"cache_key_prefix"`
	VerifyHash     *bool           `json:"verify_hash"`
	RequestTimeout *timex.Duration `json:"request_timeout"`
}

func parseJson(cfg *Config, path string) error {
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	var jc JsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	if jc.ServerBaseURL != nil {
		cfg.ServerBaseURL = *jc.ServerBaseURL
	}
	if jc.CacheDSN != nil {
		cfg.CacheDSN = *jc.CacheDSN
	}
	if jc.CacheKeyPrefix != nil {
		cfg.CacheKeyPrefix = *jc.CacheKeyPrefix
	}
	if jc.VerifyHash != nil {
		cfg.VerifyHash = *jc.VerifyHash
	}
	if jc.RequestTimeout != nil {
		cfg.RequestTimeout = jc.RequestTimeout.Duration
	}
	return nil
}
