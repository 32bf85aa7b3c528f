package routes

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sabanago/ride-sharing/internal/tariff"
	"github.com/sabanago/ride-sharing/pkg/common"
	"github.com/sabanago/ride-sharing/pkg/config"
	"github.com/sabanago/ride-sharing/pkg/httpclient"
	"github.com/sabanago/ride-sharing/pkg/resilience"
)

var (
	campusCoord = Coordinate{Latitude: 4.86153, Longitude: -74.03352}
	portalCoord = Coordinate{Latitude: 4.75435, Longitude: -74.04589}
)

type stubProvider struct {
	name     string
	route    *RouteResult
	err      error
	delay    time.Duration
	calls    atomic.Int32
	lastMode Mode
}

func (p *stubProvider) Name() string { return p.name }

func (p *stubProvider) Lookup(ctx context.Context, origin, destination Coordinate, mode Mode) (*RouteResult, error) {
	p.calls.Add(1)
	p.lastMode = mode
	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if p.err != nil {
		return nil, p.err
	}
	out := *p.route
	out.Provider = p.name
	return &out, nil
}

func newTestService(providers ...Provider) *Service {
	return &Service{
		providers: providers,
		breakers:  map[string]*resilience.CircuitBreaker{},
		cache:     NewCache(nil, time.Minute),
		tariff: tariff.NewService(config.TariffConfig{
			BaseBoarding: 1500,
			PerKm:        450,
			PerMinute:    80,
			RangePercent: 15,
		}),
		timeout: 2 * time.Second,
	}
}

func TestLookup_UsesFirstProvider(t *testing.T) {
	primary := &stubProvider{name: "ors", route: &RouteResult{DistanceMeters: 12400, DurationSeconds: 1260}}
	backup := &stubProvider{name: "osrm", route: &RouteResult{DistanceMeters: 99999, DurationSeconds: 9999}}
	svc := newTestService(primary, backup)

	route, err := svc.Lookup(context.Background(), campusCoord, portalCoord, ModeDriving)
	require.NoError(t, err)

	assert.Equal(t, "ors", route.Provider)
	assert.False(t, route.CacheHit)
	assert.Equal(t, int32(1), primary.calls.Load())
	assert.Zero(t, backup.calls.Load(), "backup must not be called when the primary answers")
}

func TestLookup_FallsBackWhenPrimaryFails(t *testing.T) {
	primary := &stubProvider{name: "ors", err: errors.New("connection refused")}
	backup := &stubProvider{name: "osrm", route: &RouteResult{DistanceMeters: 12400, DurationSeconds: 1260}}
	svc := newTestService(primary, backup)

	route, err := svc.Lookup(context.Background(), campusCoord, portalCoord, ModeDriving)
	require.NoError(t, err)

	assert.Equal(t, "osrm", route.Provider)
	assert.Equal(t, int32(1), primary.calls.Load())
	assert.Equal(t, int32(1), backup.calls.Load())
}

func TestLookup_AllProvidersFailReturns502(t *testing.T) {
	primary := &stubProvider{name: "ors", err: errors.New("connection refused")}
	backup := &stubProvider{name: "osrm", err: fmt.Errorf("osrm route request failed: %w", &httpclient.HTTPError{StatusCode: 503, Body: "down"})}
	svc := newTestService(primary, backup)

	_, err := svc.Lookup(context.Background(), campusCoord, portalCoord, ModeDriving)
	require.Error(t, err)

	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, http.StatusBadGateway, appErr.Code)
	assert.Equal(t, CodeProviderError, appErr.ErrorCode)
	assert.Contains(t, appErr.Message, "osrm", "message names the last provider tried")
	assert.Contains(t, appErr.Message, "503", "upstream status stays visible")
}

func TestLookup_SecondCallServedFromCache(t *testing.T) {
	provider := &stubProvider{name: "osrm", route: &RouteResult{DistanceMeters: 12400, DurationSeconds: 1260}}
	svc := newTestService(provider)
	ctx := context.Background()

	first, err := svc.Lookup(ctx, campusCoord, portalCoord, ModeDriving)
	require.NoError(t, err)
	assert.False(t, first.CacheHit)

	second, err := svc.Lookup(ctx, campusCoord, portalCoord, ModeDriving)
	require.NoError(t, err)
	assert.True(t, second.CacheHit)
	assert.Equal(t, first.DistanceMeters, second.DistanceMeters)

	assert.Equal(t, int32(1), provider.calls.Load(), "cache hit must not reach the provider")
}

func TestLookup_CollapsesConcurrentRequests(t *testing.T) {
	provider := &stubProvider{
		name:  "osrm",
		route: &RouteResult{DistanceMeters: 12400, DurationSeconds: 1260},
		delay: 50 * time.Millisecond,
	}
	svc := newTestService(provider)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			route, err := svc.Lookup(context.Background(), campusCoord, portalCoord, ModeDriving)
			assert.NoError(t, err)
			assert.Equal(t, float64(12400), route.DistanceMeters)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), provider.calls.Load(), "identical concurrent lookups must share one upstream call")
}

func TestLookup_DefaultsModeToDriving(t *testing.T) {
	provider := &stubProvider{name: "osrm", route: &RouteResult{DistanceMeters: 100, DurationSeconds: 60}}
	svc := newTestService(provider)

	_, err := svc.Lookup(context.Background(), campusCoord, portalCoord, "")
	require.NoError(t, err)
	assert.Equal(t, ModeDriving, provider.lastMode)
}

func TestLookup_RejectsUnknownMode(t *testing.T) {
	svc := newTestService(&stubProvider{name: "osrm", route: &RouteResult{}})

	_, err := svc.Lookup(context.Background(), campusCoord, portalCoord, "flying")
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, http.StatusBadRequest, appErr.Code)
}

func TestLookup_RejectsInvalidCoordinates(t *testing.T) {
	svc := newTestService(&stubProvider{name: "osrm", route: &RouteResult{}})

	_, err := svc.Lookup(context.Background(), Coordinate{Latitude: 95, Longitude: 0}, portalCoord, ModeDriving)
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, http.StatusBadRequest, appErr.Code)
	assert.Contains(t, appErr.Message, "origin")
}

func TestBuildProviders_PrimaryFirstAndCredentialGated(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.RoutesConfig
		want []string
	}{
		{
			name: "osrm only without keys",
			cfg:  config.RoutesConfig{Provider: "osrm", RequestTimeoutSeconds: 10},
			want: []string{"osrm"},
		},
		{
			name: "ors primary when key present",
			cfg:  config.RoutesConfig{Provider: "ors", ORSAPIKey: "key", RequestTimeoutSeconds: 10},
			want: []string{"ors", "osrm"},
		},
		{
			name: "full chain keeps configured primary first",
			cfg:  config.RoutesConfig{Provider: "osrm", ORSAPIKey: "key", GoogleAPIKey: "key", RequestTimeoutSeconds: 10},
			want: []string{"osrm", "ors", "google"},
		},
		{
			name: "google primary",
			cfg:  config.RoutesConfig{Provider: "google", GoogleAPIKey: "key", RequestTimeoutSeconds: 10},
			want: []string{"google", "osrm"},
		},
		{
			name: "primary without key falls back to osrm first",
			cfg:  config.RoutesConfig{Provider: "ors", RequestTimeoutSeconds: 10},
			want: []string{"osrm"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			providers := buildProviders(tt.cfg)
			names := make([]string, 0, len(providers))
			for _, p := range providers {
				names = append(names, p.Name())
			}
			assert.Equal(t, tt.want, names)
		})
	}
}

func TestProviderFailure_KeepsUpstreamStatusVisible(t *testing.T) {
	wrapped := fmt.Errorf("ors directions request failed: %w", &httpclient.HTTPError{StatusCode: 429, Body: "quota"})

	err := providerFailure("ors", wrapped)

	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, http.StatusBadGateway, appErr.Code)
	assert.Equal(t, CodeProviderError, appErr.ErrorCode)
	assert.Equal(t, "route provider ors failed with status 429", appErr.Message)
}

func TestProviderFailure_PlainError(t *testing.T) {
	err := providerFailure("osrm", errors.New("dial tcp: timeout"))

	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "route provider osrm failed", appErr.Message)
}

func TestRouteSuggest_CombinesRouteAndTariff(t *testing.T) {
	provider := &stubProvider{name: "osrm", route: &RouteResult{DistanceMeters: 10000, DurationSeconds: 600}}
	svc := newTestService(provider)

	route, suggestion, err := svc.RouteSuggest(context.Background(), campusCoord, portalCoord, ModeDriving)
	require.NoError(t, err)

	assert.Equal(t, float64(10000), route.DistanceMeters)
	require.NotNil(t, suggestion)
	// 1500 base + 450*10 km + 80*10 min
	assert.Equal(t, float64(6800), suggestion.SuggestedTariff)
	assert.Equal(t, float64(5780), suggestion.Range.Min)
	assert.Equal(t, float64(7820), suggestion.Range.Max)
}
