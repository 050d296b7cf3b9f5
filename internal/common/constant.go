package common

// CacheKeyPrefix is the default prefix of local cache record keys
// ("<prefix>:<applicationCode>:<zipHash>").
const CacheKeyPrefix = "recdocs-cache"

// RequestIDHeaderName is the header used to correlate gateway requests
// with server-side log lines.
const RequestIDHeaderName = "X-Request-ID"
