package gateway

import (
	"net/http"

	"github.com/dmitrijs2005/recdocs/internal/logging"
)

// NewRouter serves the proxy and API routes behind the request id, access
// log and panic recovery middleware.
func NewRouter(g *Gateway, api *API, logger logging.Logger) http.Handler {
	mux := http.NewServeMux()
	g.Register(mux)
	api.Register(mux)

	return Chain(mux,
		RequestID(),
		AccessLog(logger.With("module", "http")),
		RecoverPanic(logger),
	)
}
