package routes

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sabanago/ride-sharing/pkg/httpclient"
)

const osrmDefaultBaseURL = "https://router.project-osrm.org"

// osrmProfiles maps API modes onto OSRM profile path segments.
var osrmProfiles = map[Mode]string{
	ModeDriving: "driving",
	ModeWalking: "foot",
	ModeCycling: "bike",
}

// OSRMProvider calls an OSRM routing daemon.
type OSRMProvider struct {
	client *httpclient.Client
}

// NewOSRMProvider creates an OSRM adapter. The public demo server is the
// default; self-hosted deployments point OSRM_BASE_URL at their own router.
func NewOSRMProvider(baseURL string, timeout time.Duration) *OSRMProvider {
	if baseURL == "" {
		baseURL = osrmDefaultBaseURL
	}
	return &OSRMProvider{
		client: httpclient.NewClient(baseURL, timeout, httpclient.WithDefaultRetry()),
	}
}

// Name implements Provider.
func (p *OSRMProvider) Name() string { return "osrm" }

type osrmResponse struct {
	Code   string `json:"code"`
	Routes []struct {
		Distance float64 `json:"distance"`
		Duration float64 `json:"duration"`
		Geometry string  `json:"geometry"`
	} `json:"routes"`
}

// Lookup implements Provider. Coordinates go on the path as lng,lat pairs;
// overview=full keeps the polyline5 geometry.
func (p *OSRMProvider) Lookup(ctx context.Context, origin, destination Coordinate, mode Mode) (*RouteResult, error) {
	profile, ok := osrmProfiles[mode]
	if !ok {
		profile = osrmProfiles[ModeDriving]
	}

	path := fmt.Sprintf("/route/v1/%s/%f,%f;%f,%f?overview=full&geometries=polyline",
		profile,
		origin.Longitude, origin.Latitude,
		destination.Longitude, destination.Latitude,
	)

	resp, err := p.client.Get(ctx, path, nil)
	if err != nil {
		return nil, fmt.Errorf("osrm route request failed: %w", err)
	}

	var parsed osrmResponse
	if err := json.Unmarshal(resp, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse osrm response: %w", err)
	}
	if parsed.Code != "Ok" || len(parsed.Routes) == 0 {
		return nil, fmt.Errorf("osrm returned %q with %d routes", parsed.Code, len(parsed.Routes))
	}

	route := parsed.Routes[0]
	return &RouteResult{
		DistanceMeters:  route.Distance,
		DurationSeconds: route.Duration,
		EncodedPolyline: route.Geometry,
		FetchedAt:       time.Now().UTC(),
		Provider:        p.Name(),
	}, nil
}
