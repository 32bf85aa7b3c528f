package routes

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/sabanago/ride-sharing/internal/tariff"
	"github.com/sabanago/ride-sharing/pkg/common"
	"github.com/sabanago/ride-sharing/pkg/config"
	"github.com/sabanago/ride-sharing/pkg/geo"
	"github.com/sabanago/ride-sharing/pkg/logger"
	"github.com/sabanago/ride-sharing/pkg/models"
	"github.com/sabanago/ride-sharing/pkg/resilience"
	"github.com/sabanago/ride-sharing/pkg/tracing"
)

// Service resolves directions through a chain of routing providers. The
// configured primary is tried first and the remaining providers act as
// fallbacks, each behind its own circuit breaker. Identical concurrent
// lookups are collapsed into a single upstream call.
type Service struct {
	providers []Provider
	breakers  map[string]*resilience.CircuitBreaker
	cache     *Cache
	tariff    *tariff.Service
	group     singleflight.Group
	timeout   time.Duration
}

func NewService(cfg config.RoutesConfig, rescfg config.ResilienceConfig, cache *Cache, tariffSvc *tariff.Service) *Service {
	providers := buildProviders(cfg)

	breakers := make(map[string]*resilience.CircuitBreaker, len(providers))
	for _, p := range providers {
		breakers[p.Name()] = resilience.NewBreakerFromConfig("routes-"+p.Name(), rescfg.CircuitBreaker, nil)
	}

	return &Service{
		providers: providers,
		breakers:  breakers,
		cache:     cache,
		tariff:    tariffSvc,
		timeout:   time.Duration(cfg.RequestTimeoutSeconds) * time.Second,
	}
}

// buildProviders keeps only the providers that have credentials and moves the
// configured primary to the front. OSRM needs no key, so the chain is never
// empty.
func buildProviders(cfg config.RoutesConfig) []Provider {
	timeout := time.Duration(cfg.RequestTimeoutSeconds) * time.Second

	var available []Provider
	if cfg.ORSAPIKey != "" {
		available = append(available, NewORSProvider(cfg.ORSAPIKey, cfg.ORSBaseURL, timeout))
	}
	available = append(available, NewOSRMProvider(cfg.OSRMBaseURL, timeout))
	if cfg.GoogleAPIKey != "" {
		available = append(available, NewGoogleProvider(cfg.GoogleAPIKey, "", timeout))
	}

	ordered := make([]Provider, 0, len(available))
	for _, p := range available {
		if p.Name() == cfg.Provider {
			ordered = append(ordered, p)
		}
	}
	for _, p := range available {
		if p.Name() != cfg.Provider {
			ordered = append(ordered, p)
		}
	}
	return ordered
}

// Providers reports the chain order, primarily for the health endpoint.
func (s *Service) Providers() []string {
	names := make([]string, 0, len(s.providers))
	for _, p := range s.providers {
		names = append(names, p.Name())
	}
	return names
}

// Lookup returns the route between two coordinates, serving from cache when
// possible. Cached responses are marked with CacheHit.
func (s *Service) Lookup(ctx context.Context, origin, destination Coordinate, mode Mode) (*RouteResult, error) {
	ctx, span := tracing.StartSpan(ctx, "routes-service", "Lookup")
	defer span.End()

	if mode == "" {
		mode = ModeDriving
	}
	if !mode.Valid() {
		return nil, common.NewBadRequestError(fmt.Sprintf("unsupported mode %q", mode), nil)
	}
	if !geo.ValidCoordinate(origin.Latitude, origin.Longitude) {
		return nil, common.NewBadRequestError("invalid origin coordinates", nil)
	}
	if !geo.ValidCoordinate(destination.Latitude, destination.Longitude) {
		return nil, common.NewBadRequestError("invalid destination coordinates", nil)
	}

	if cached := s.cache.Get(ctx, origin, destination, mode); cached != nil {
		cached.CacheHit = true
		span.SetAttributes(tracing.CacheHitKey.Bool(true), tracing.ProviderKey.String(cached.Provider))
		return cached, nil
	}

	value, err, _ := s.group.Do(cacheKey(origin, destination, mode), func() (interface{}, error) {
		return s.lookupUpstream(ctx, origin, destination, mode)
	})
	if err != nil {
		return nil, err
	}

	// Copy so collapsed callers never share a pointer.
	out := *value.(*RouteResult)
	span.SetAttributes(tracing.CacheHitKey.Bool(false), tracing.ProviderKey.String(out.Provider))
	return &out, nil
}

func (s *Service) lookupUpstream(ctx context.Context, origin, destination Coordinate, mode Mode) (*RouteResult, error) {
	var (
		lastName string
		lastErr  error
	)
	for _, p := range s.providers {
		result, err := s.callProvider(ctx, p, origin, destination, mode)
		if err == nil {
			s.cache.Set(ctx, origin, destination, mode, result)
			return result, nil
		}

		lastName, lastErr = p.Name(), err
		logger.Get().Warn("route provider failed, trying next",
			zap.String("provider", p.Name()),
			zap.String("mode", string(mode)),
			zap.Error(err),
		)
	}
	return nil, providerFailure(lastName, lastErr)
}

func (s *Service) callProvider(ctx context.Context, p Provider, origin, destination Coordinate, mode Mode) (*RouteResult, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var result *RouteResult
	err := tracing.TraceExternalAPI(callCtx, "routes", p.Name(), "directions", func(ctx context.Context) error {
		value, err := s.breakers[p.Name()].Execute(ctx, func(ctx context.Context) (interface{}, error) {
			return p.Lookup(ctx, origin, destination, mode)
		})
		if err != nil {
			return err
		}
		result = value.(*RouteResult)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// RouteSuggest resolves the route and prices it with the campus tariff model
// in one call, which is what the trip creation screen shows.
func (s *Service) RouteSuggest(ctx context.Context, origin, destination Coordinate, mode Mode) (*RouteResult, *models.TariffSuggestion, error) {
	route, err := s.Lookup(ctx, origin, destination, mode)
	if err != nil {
		return nil, nil, err
	}

	suggestion, err := s.tariff.Suggest(&models.TariffSuggestRequest{
		DistanceKm:      route.DistanceKm(),
		DurationMinutes: route.DurationMinutes(),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("suggest tariff for route: %w", err)
	}
	return route, suggestion, nil
}
