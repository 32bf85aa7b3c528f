package transit

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/sabanago/ride-sharing/pkg/common"
	"github.com/sabanago/ride-sharing/pkg/models"
)

// Service serves the transit catalog and snaps proposed routes onto it.
type Service struct {
	repo *Repository

	mu  sync.Mutex
	idx *StopIndex
}

// NewService creates a new transit service.
func NewService(repo *Repository) *Service {
	return &Service{repo: repo}
}

// ListStops returns the full stop catalog.
func (s *Service) ListStops(ctx context.Context) ([]models.TransitStop, error) {
	stops, err := s.repo.ListStops(ctx)
	if err != nil {
		return nil, fmt.Errorf("list transit stops: %w", err)
	}
	if stops == nil {
		stops = []models.TransitStop{}
	}
	return stops, nil
}

// ListStations returns trunk stations.
func (s *Service) ListStations(ctx context.Context) ([]models.TransitStop, error) {
	stations, err := s.repo.ListStations(ctx)
	if err != nil {
		return nil, fmt.Errorf("list transit stations: %w", err)
	}
	if stations == nil {
		stations = []models.TransitStop{}
	}
	return stations, nil
}

// ListRoutes returns the service lines.
func (s *Service) ListRoutes(ctx context.Context) ([]models.TransitRoute, error) {
	routes, err := s.repo.ListRoutes(ctx)
	if err != nil {
		return nil, fmt.Errorf("list transit routes: %w", err)
	}
	if routes == nil {
		routes = []models.TransitRoute{}
	}
	return routes, nil
}

// GetStop returns one stop by id.
func (s *Service) GetStop(ctx context.Context, id uuid.UUID) (*models.TransitStop, error) {
	stops, err := s.repo.GetStopsByIDs(ctx, []uuid.UUID{id})
	if err != nil {
		return nil, fmt.Errorf("get transit stop: %w", err)
	}
	stop, ok := stops[id]
	if !ok {
		return nil, common.NewNotFoundError("transit stop not found", nil)
	}
	return &stop, nil
}

// GetStops returns the requested stops and errors when any id is unknown.
func (s *Service) GetStops(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.TransitStop, error) {
	stops, err := s.repo.GetStopsByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("get transit stops: %w", err)
	}
	for _, id := range ids {
		if _, ok := stops[id]; !ok {
			return nil, common.NewNotFoundError("transit stop not found", nil)
		}
	}
	return stops, nil
}

// SnapRoute maps a proposed polyline onto known stops, deduplicated in
// traversal order.
func (s *Service) SnapRoute(ctx context.Context, points []models.RoutePoint) ([]models.TransitStop, error) {
	idx, err := s.index(ctx)
	if err != nil {
		return nil, err
	}
	return idx.SnapRoute(points), nil
}

// index lazily builds the snap index from the seeded catalog. The catalog
// only changes with a reseed and redeploy, so one build per process is fine;
// a failed load is retried on the next call.
func (s *Service) index(ctx context.Context) (*StopIndex, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.idx != nil {
		return s.idx, nil
	}
	stops, err := s.repo.ListStops(ctx)
	if err != nil {
		return nil, fmt.Errorf("load stop index: %w", err)
	}
	s.idx = NewStopIndex(stops)
	return s.idx, nil
}
