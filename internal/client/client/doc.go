// Package client talks to the recdocs gateway over HTTP.
//
// # Overview
//
// HTTPClient covers the whole client-facing surface of the gateway:
//   - GetDocumentsMeta reads the packaging metadata of an application;
//   - FetchArchive downloads an archive through the storage proxy, choosing
//     the by-URL or by-key route from the locator it is given;
//   - RequestUploadURL, CommitDocuments and Decide drive the submission
//     workflow;
//   - Ping probes /healthz.
//
// # Error Handling
//
// Non-2xx responses become *APIError values carrying the status and the
// gateway's generic message. APIError unwraps to the matching sentinel of
// package common (ErrMetadataMissing, ErrorNotFound, ErrBadRequest, ...), so
// callers match with errors.Is. Transport failures and 503 responses match
// ErrUnavailable.
//
// HTTPClient is safe for concurrent use.
package client
