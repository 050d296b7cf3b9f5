// Package cli implements the recdocs command line client.
//
// Commands:
//
//	submit   package local files and submit them for an application
//	prefetch warm the local cache with an application's current documents
//	get      write one document of an application to a file or stdout
//	manifest print the documents metadata of an application as YAML
//	decide   record a reviewer decision (accept or reject)
//	cache    manage the local document cache
//	ping     check that the gateway is healthy
//
// Persistent flags override values loaded by the config package.
package cli
