package routes

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sabanago/ride-sharing/pkg/httpclient"
)

func TestORSProvider_Lookup(t *testing.T) {
	var (
		gotPath string
		gotAuth string
		gotBody orsRequest
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"routes":[{"summary":{"distance":12400.5,"duration":1263.2},"geometry":"encoded"}]}`)
	}))
	defer server.Close()

	provider := NewORSProvider("test-key", server.URL, 2*time.Second)

	route, err := provider.Lookup(context.Background(), campusCoord, portalCoord, ModeDriving)
	require.NoError(t, err)

	assert.Equal(t, "/v2/directions/driving-car", gotPath)
	assert.Equal(t, "test-key", gotAuth)
	require.Len(t, gotBody.Coordinates, 2)
	assert.Equal(t, []float64{-74.03352, 4.86153}, gotBody.Coordinates[0], "ors takes lng,lat pairs")

	assert.Equal(t, 12400.5, route.DistanceMeters)
	assert.Equal(t, 1263.2, route.DurationSeconds)
	assert.Equal(t, "encoded", route.EncodedPolyline)
	assert.Equal(t, "ors", route.Provider)
	assert.False(t, route.FetchedAt.IsZero())
}

func TestORSProvider_NoRoutes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"routes":[]}`)
	}))
	defer server.Close()

	provider := NewORSProvider("test-key", server.URL, 2*time.Second)

	_, err := provider.Lookup(context.Background(), campusCoord, portalCoord, ModeDriving)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no routes")
}

func TestORSProvider_UpstreamStatusSurfaces(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":"invalid api key"}`)
	}))
	defer server.Close()

	provider := NewORSProvider("bad-key", server.URL, 2*time.Second)

	_, err := provider.Lookup(context.Background(), campusCoord, portalCoord, ModeDriving)
	require.Error(t, err)

	var httpErr *httpclient.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusUnauthorized, httpErr.StatusCode)
}

func TestOSRMProvider_Lookup(t *testing.T) {
	var gotPath, gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		fmt.Fprint(w, `{"code":"Ok","routes":[{"distance":12400.5,"duration":1263.2,"geometry":"encoded"}]}`)
	}))
	defer server.Close()

	provider := NewOSRMProvider(server.URL, 2*time.Second)

	route, err := provider.Lookup(context.Background(), campusCoord, portalCoord, ModeDriving)
	require.NoError(t, err)

	// OSRM wants lng,lat pairs on the path.
	assert.Equal(t, "/route/v1/driving/-74.033520,4.861530;-74.045890,4.754350", gotPath)
	assert.Equal(t, "overview=full&geometries=polyline", gotQuery)

	assert.Equal(t, 12400.5, route.DistanceMeters)
	assert.Equal(t, 1263.2, route.DurationSeconds)
	assert.Equal(t, "osrm", route.Provider)
}

func TestOSRMProvider_CyclingProfile(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		fmt.Fprint(w, `{"code":"Ok","routes":[{"distance":100,"duration":60,"geometry":"g"}]}`)
	}))
	defer server.Close()

	provider := NewOSRMProvider(server.URL, 2*time.Second)

	_, err := provider.Lookup(context.Background(), campusCoord, portalCoord, ModeCycling)
	require.NoError(t, err)
	assert.Contains(t, gotPath, "/route/v1/bike/")
}

func TestOSRMProvider_NonOkCode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"code":"NoRoute","routes":[]}`)
	}))
	defer server.Close()

	provider := NewOSRMProvider(server.URL, 2*time.Second)

	_, err := provider.Lookup(context.Background(), campusCoord, portalCoord, ModeDriving)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NoRoute")
}

func TestGoogleProvider_Lookup(t *testing.T) {
	var gotQuery map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = map[string]string{}
		for key := range r.URL.Query() {
			gotQuery[key] = r.URL.Query().Get(key)
		}
		fmt.Fprint(w, `{
			"status": "OK",
			"routes": [{
				"legs": [
					{"distance": {"value": 8000}, "duration": {"value": 600}, "duration_in_traffic": {"value": 750}},
					{"distance": {"value": 4400}, "duration": {"value": 500}}
				],
				"overview_polyline": {"points": "encoded"}
			}]
		}`)
	}))
	defer server.Close()

	provider := NewGoogleProvider("test-key", server.URL, 2*time.Second)

	route, err := provider.Lookup(context.Background(), campusCoord, portalCoord, ModeCycling)
	require.NoError(t, err)

	assert.Equal(t, "4.861530,-74.033520", gotQuery["origin"])
	assert.Equal(t, "4.754350,-74.045890", gotQuery["destination"])
	assert.Equal(t, "bicycling", gotQuery["mode"])
	assert.Equal(t, "test-key", gotQuery["key"])
	assert.Equal(t, "metric", gotQuery["units"])
	assert.Equal(t, "now", gotQuery["departure_time"])

	// Legs are summed; the first leg's traffic-aware duration wins.
	assert.Equal(t, float64(12400), route.DistanceMeters)
	assert.Equal(t, float64(1250), route.DurationSeconds)
	assert.Equal(t, "encoded", route.EncodedPolyline)
	assert.Equal(t, "google", route.Provider)
}

func TestGoogleProvider_StatusNotOK(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status":"REQUEST_DENIED","error_message":"API key invalid","routes":[]}`)
	}))
	defer server.Close()

	provider := NewGoogleProvider("bad-key", server.URL, 2*time.Second)

	_, err := provider.Lookup(context.Background(), campusCoord, portalCoord, ModeDriving)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "REQUEST_DENIED")
	assert.Contains(t, err.Error(), "API key invalid")
}
