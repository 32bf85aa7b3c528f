package routes

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/sabanago/ride-sharing/pkg/httpclient"
)

const googleDefaultBaseURL = "https://maps.googleapis.com"

// googleModes maps API modes onto Google Directions travel modes.
var googleModes = map[Mode]string{
	ModeDriving: "driving",
	ModeWalking: "walking",
	ModeCycling: "bicycling",
}

// GoogleProvider calls the Google Directions API.
type GoogleProvider struct {
	apiKey string
	client *httpclient.Client
}

// NewGoogleProvider creates a Google Directions adapter.
func NewGoogleProvider(apiKey, baseURL string, timeout time.Duration) *GoogleProvider {
	if baseURL == "" {
		baseURL = googleDefaultBaseURL
	}
	return &GoogleProvider{
		apiKey: apiKey,
		client: httpclient.NewClient(baseURL, timeout, httpclient.WithDefaultRetry()),
	}
}

// Name implements Provider.
func (p *GoogleProvider) Name() string { return "google" }

type googleDirectionsResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	Routes       []struct {
		Legs []struct {
			Distance struct {
				Value float64 `json:"value"`
			} `json:"distance"`
			Duration struct {
				Value float64 `json:"value"`
			} `json:"duration"`
			DurationInTraffic *struct {
				Value float64 `json:"value"`
			} `json:"duration_in_traffic"`
		} `json:"legs"`
		OverviewPolyline struct {
			Points string `json:"points"`
		} `json:"overview_polyline"`
	} `json:"routes"`
}

// Lookup implements Provider. Distance and duration are summed over legs;
// duration_in_traffic wins over the static duration when Google returns it.
func (p *GoogleProvider) Lookup(ctx context.Context, origin, destination Coordinate, mode Mode) (*RouteResult, error) {
	travelMode, ok := googleModes[mode]
	if !ok {
		travelMode = googleModes[ModeDriving]
	}

	params := url.Values{}
	params.Set("origin", fmt.Sprintf("%f,%f", origin.Latitude, origin.Longitude))
	params.Set("destination", fmt.Sprintf("%f,%f", destination.Latitude, destination.Longitude))
	params.Set("mode", travelMode)
	params.Set("departure_time", "now")
	params.Set("units", "metric")
	params.Set("key", p.apiKey)

	resp, err := p.client.Get(ctx, "/maps/api/directions/json?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("google directions request failed: %w", err)
	}

	var parsed googleDirectionsResponse
	if err := json.Unmarshal(resp, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse google response: %w", err)
	}
	if parsed.Status != "OK" || len(parsed.Routes) == 0 {
		return nil, fmt.Errorf("google returned %s: %s", parsed.Status, parsed.ErrorMessage)
	}

	route := parsed.Routes[0]
	var distance, duration float64
	for _, leg := range route.Legs {
		distance += leg.Distance.Value
		if leg.DurationInTraffic != nil {
			duration += leg.DurationInTraffic.Value
		} else {
			duration += leg.Duration.Value
		}
	}

	return &RouteResult{
		DistanceMeters:  distance,
		DurationSeconds: duration,
		EncodedPolyline: route.OverviewPolyline.Points,
		FetchedAt:       time.Now().UTC(),
		Provider:        p.Name(),
	}, nil
}
