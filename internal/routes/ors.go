package routes

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sabanago/ride-sharing/pkg/httpclient"
)

const orsDefaultBaseURL = "https://api.openrouteservice.org"

// orsProfiles maps API modes onto OpenRouteService profile names.
var orsProfiles = map[Mode]string{
	ModeDriving: "driving-car",
	ModeWalking: "foot-walking",
	ModeCycling: "cycling-regular",
}

// ORSProvider calls the OpenRouteService directions API.
type ORSProvider struct {
	apiKey string
	client *httpclient.Client
}

// NewORSProvider creates an OpenRouteService adapter.
func NewORSProvider(apiKey, baseURL string, timeout time.Duration) *ORSProvider {
	if baseURL == "" {
		baseURL = orsDefaultBaseURL
	}
	return &ORSProvider{
		apiKey: apiKey,
		client: httpclient.NewClient(baseURL, timeout, httpclient.WithDefaultRetry()),
	}
}

// Name implements Provider.
func (p *ORSProvider) Name() string { return "ors" }

type orsRequest struct {
	Coordinates [][]float64 `json:"coordinates"`
}

type orsResponse struct {
	Routes []struct {
		Summary struct {
			Distance float64 `json:"distance"`
			Duration float64 `json:"duration"`
		} `json:"summary"`
		Geometry string `json:"geometry"`
	} `json:"routes"`
}

// Lookup implements Provider. ORS expects [lng, lat] pairs.
func (p *ORSProvider) Lookup(ctx context.Context, origin, destination Coordinate, mode Mode) (*RouteResult, error) {
	profile, ok := orsProfiles[mode]
	if !ok {
		profile = orsProfiles[ModeDriving]
	}

	body := orsRequest{
		Coordinates: [][]float64{
			{origin.Longitude, origin.Latitude},
			{destination.Longitude, destination.Latitude},
		},
	}
	headers := map[string]string{"Authorization": p.apiKey}

	resp, err := p.client.Post(ctx, "/v2/directions/"+profile, body, headers)
	if err != nil {
		return nil, fmt.Errorf("ors directions request failed: %w", err)
	}

	var parsed orsResponse
	if err := json.Unmarshal(resp, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse ors response: %w", err)
	}
	if len(parsed.Routes) == 0 {
		return nil, fmt.Errorf("ors returned no routes")
	}

	route := parsed.Routes[0]
	return &RouteResult{
		DistanceMeters:  route.Summary.Distance,
		DurationSeconds: route.Summary.Duration,
		EncodedPolyline: route.Geometry,
		FetchedAt:       time.Now().UTC(),
		Provider:        p.Name(),
	}, nil
}
