package client

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/dmitrijs2005/recdocs/internal/common"
)

var ErrUnavailable = errors.New("server unavailable")

// Gateway messages that select a more specific sentinel than the status alone.
const (
	msgMetadataMissing   = "Documents metadata not found"
	msgInvalidTransition = "Status transition not allowed"
	msgVersionConflict   = "Concurrent update, retry"
)

// APIError is a non-2xx gateway response.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("gateway returned %d", e.StatusCode)
	}
	return fmt.Sprintf("gateway returned %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusNotFound:
		if e.Message == msgMetadataMissing {
			return common.ErrMetadataMissing
		}
		return common.ErrorNotFound
	case http.StatusBadRequest:
		return common.ErrBadRequest
	case http.StatusForbidden:
		return common.ErrForbidden
	case http.StatusConflict:
		if e.Message == msgVersionConflict {
			return common.ErrVersionConflict
		}
		if e.Message == msgInvalidTransition {
			return common.ErrInvalidTransition
		}
		return common.ErrorInternal
	case http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusGatewayTimeout:
		return ErrUnavailable
	default:
		return common.ErrUpstreamFetch
	}
}
