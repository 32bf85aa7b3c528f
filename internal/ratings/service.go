package ratings

import (
	"context"
	"fmt"
	"math"

	"github.com/google/uuid"

	"github.com/sabanago/ride-sharing/pkg/models"
)

// Service exposes driver rating aggregates to the rest of the API.
type Service struct {
	repo *Repository
}

// NewService creates a new ratings service.
func NewService(repo *Repository) *Service {
	return &Service{repo: repo}
}

// DriverRating returns the aggregate rating for one driver. A driver with no
// ratings gets a zero aggregate, not an error.
func (s *Service) DriverRating(ctx context.Context, driverID uuid.UUID) (*models.DriverRating, error) {
	avg, count, err := s.repo.GetDriverAggregate(ctx, driverID)
	if err != nil {
		return nil, fmt.Errorf("get driver rating: %w", err)
	}
	return &models.DriverRating{Average: round2(avg), Count: count}, nil
}

// DriverRatings returns aggregates for a set of drivers keyed by driver id.
func (s *Service) DriverRatings(ctx context.Context, driverIDs []uuid.UUID) (map[uuid.UUID]models.DriverRating, error) {
	if len(driverIDs) == 0 {
		return map[uuid.UUID]models.DriverRating{}, nil
	}
	aggs, err := s.repo.GetDriverAggregates(ctx, driverIDs)
	if err != nil {
		return nil, fmt.Errorf("get driver ratings: %w", err)
	}
	for id, agg := range aggs {
		agg.Average = round2(agg.Average)
		aggs[id] = agg
	}
	return aggs, nil
}

// round2 keeps listing payloads stable regardless of float noise in AVG.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
