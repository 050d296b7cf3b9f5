package config

import (
	"flag"
	"time"

	"github.com/dmitrijs2005/recdocs/internal/flagx"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":8080")
//	-g string   gRPC health bind address (e.g., ":50051")
//	-d string   PostgreSQL DSN
//	-u string   S3 root user
//	-p string   S3 root password
//	-b string   S3 bucket name
//	-r string   S3 region
//	-e string   S3 base endpoint (e.g., "http://127.0.0.1:9000/")
//	-o string   S3 public base URL
//	-t int      presigned upload URL lifetime, minutes
//	-w int      upstream fetch timeout, seconds
func parseFlags(config *Config, args []string) {
	args = flagx.FilterArgs(args, []string{"-a", "-g", "-d", "-u", "-p", "-b", "-r", "-e", "-o", "-t", "-w"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "address and port of the HTTP gateway")
	fs.StringVar(&config.EndpointAddrGRPC, "g", config.EndpointAddrGRPC, "address and port of the gRPC health endpoint")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3Region, "r", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")
	fs.StringVar(&config.S3PublicURL, "o", config.S3PublicURL, "S3 public base URL")

	uploadURLTTL := fs.Int("t", int(config.UploadURLTTL.Minutes()), "upload URL lifetime (in minutes)")
	upstreamTimeout := fs.Int("w", int(config.UpstreamTimeout.Seconds()), "upstream fetch timeout (in seconds)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.UploadURLTTL = time.Duration(*uploadURLTTL) * time.Minute
	config.UpstreamTimeout = time.Duration(*upstreamTimeout) * time.Second
}
