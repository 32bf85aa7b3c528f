package ratings

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sabanago/ride-sharing/pkg/models"
)

// Repository reads rating aggregates. Ratings are written by the campus
// feedback flow outside this core; trips only consume the aggregates.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new ratings repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// GetDriverAggregate returns the average score and rating count for a driver.
func (r *Repository) GetDriverAggregate(ctx context.Context, driverID uuid.UUID) (float64, int, error) {
	var avg float64
	var count int
	err := r.db.QueryRow(ctx, `
		SELECT COALESCE(AVG(score), 0), COUNT(*)
		FROM ratings WHERE driver_id = $1`, driverID,
	).Scan(&avg, &count)
	return avg, count, err
}

// GetDriverAggregates returns aggregates for a set of drivers in one query.
// Drivers without ratings are absent from the map.
func (r *Repository) GetDriverAggregates(ctx context.Context, driverIDs []uuid.UUID) (map[uuid.UUID]models.DriverRating, error) {
	rows, err := r.db.Query(ctx, `
		SELECT driver_id, COALESCE(AVG(score), 0), COUNT(*)
		FROM ratings
		WHERE driver_id = ANY($1)
		GROUP BY driver_id`, driverIDs,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	aggs := make(map[uuid.UUID]models.DriverRating, len(driverIDs))
	for rows.Next() {
		var id uuid.UUID
		var agg models.DriverRating
		if err := rows.Scan(&id, &agg.Average, &agg.Count); err != nil {
			return nil, err
		}
		aggs[id] = agg
	}
	return aggs, rows.Err()
}
