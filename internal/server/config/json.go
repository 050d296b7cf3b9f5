package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/recdocs/internal/flagx"
	"github.com/dmitrijs2005/recdocs/internal/timex"
)

// JsonConfig is the on-disk shape of the server configuration file. Only
// keys present in the file override the current values.
type JsonConfig struct {
	EndpointAddrHTTP *string         `json:"endpoint_addr_http"`
	EndpointAddrGRPC *string         `json:"endpoint_addr_grpc"`
	DatabaseDSN      *string         `json:"database_dsn"`
	S3RootUser       *string         `json:"s3_root_user"`
	S3RootPassword   *string         `json:"s3_root_password"`
	S3Bucket         *string         `json:"s3_bucket"`
	S3Region         *string         `json:"s3_region"`
	S3BaseEndpoint   *string         `json:"s3_base_endpoint"`
	S3PublicURL      *string         `json:"s3_public_url"`
	UploadURLTTL     *timex.Duration `json:"upload_url_ttl"`
	UpstreamTimeout  *timex.Duration `json:"upstream_timeout"`
	DocumentHosts    []string        `json:"document_hosts"`
}

// parseJson loads the file named by -c/-config in args, if any, into
// config. An unreadable or malformed file panics: the server must not
// start on a half-applied configuration.
func parseJson(config *Config, args []string) {
	path := flagx.ConfigPath(args)
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

	setString(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	setString(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setString(&config.S3PublicURL, c.S3PublicURL)
	if c.UploadURLTTL != nil {
		config.UploadURLTTL = c.UploadURLTTL.Duration
	}
	if c.UpstreamTimeout != nil {
		config.UpstreamTimeout = c.UpstreamTimeout.Duration
	}
	if c.DocumentHosts != nil {
		config.DocumentHosts = c.DocumentHosts
	}
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}
