package routes

import (
	"context"
	"errors"
	"fmt"

	"github.com/sabanago/ride-sharing/pkg/common"
	"github.com/sabanago/ride-sharing/pkg/httpclient"
)

// CodeProviderError marks responses caused by an upstream routing failure.
const CodeProviderError = "ROUTE_PROVIDER_ERROR"

// Provider answers route lookups against one upstream routing service.
type Provider interface {
	Name() string
	Lookup(ctx context.Context, origin, destination Coordinate, mode Mode) (*RouteResult, error)
}

// providerFailure turns the last upstream error of an exhausted provider
// chain into the API-facing 502, keeping the provider name and upstream
// status visible.
func providerFailure(provider string, err error) error {
	msg := fmt.Sprintf("route provider %s failed", provider)

	var httpErr *httpclient.HTTPError
	if errors.As(err, &httpErr) {
		msg = fmt.Sprintf("route provider %s failed with status %d", provider, httpErr.StatusCode)
	}

	return common.NewUpstreamError(msg, err).WithCode(CodeProviderError)
}
