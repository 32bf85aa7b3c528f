package transit

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sabanago/ride-sharing/pkg/models"
)

// Repository reads the seeded TransMilenio catalog. The tables are reference
// data loaded by migrations; nothing in the API writes to them.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new transit repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// ListStops returns every stop and station.
func (r *Repository) ListStops(ctx context.Context) ([]models.TransitStop, error) {
	return r.queryStops(ctx, `
		SELECT id, name, latitude, longitude, kind, route_refs
		FROM transit_stops
		ORDER BY name`)
}

// ListStations returns trunk stations only.
func (r *Repository) ListStations(ctx context.Context) ([]models.TransitStop, error) {
	return r.queryStops(ctx, `
		SELECT id, name, latitude, longitude, kind, route_refs
		FROM transit_stops
		WHERE kind = 'station'
		ORDER BY name`)
}

func (r *Repository) queryStops(ctx context.Context, sql string, args ...any) ([]models.TransitStop, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stops []models.TransitStop
	for rows.Next() {
		var s models.TransitStop
		if err := rows.Scan(&s.ID, &s.Name, &s.Latitude, &s.Longitude, &s.Kind, &s.RouteRefs); err != nil {
			return nil, err
		}
		stops = append(stops, s)
	}
	return stops, rows.Err()
}

// GetStopsByIDs returns the requested stops keyed by id. Missing ids are
// simply absent; the caller decides whether that is an error.
func (r *Repository) GetStopsByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.TransitStop, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, name, latitude, longitude, kind, route_refs
		FROM transit_stops
		WHERE id = ANY($1)`, ids,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stops := make(map[uuid.UUID]models.TransitStop, len(ids))
	for rows.Next() {
		var s models.TransitStop
		if err := rows.Scan(&s.ID, &s.Name, &s.Latitude, &s.Longitude, &s.Kind, &s.RouteRefs); err != nil {
			return nil, err
		}
		stops[s.ID] = s
	}
	return stops, rows.Err()
}

// ListRoutes returns the service lines.
func (r *Repository) ListRoutes(ctx context.Context) ([]models.TransitRoute, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, code, name, kind, stop_names
		FROM transit_routes
		ORDER BY code`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var routes []models.TransitRoute
	for rows.Next() {
		var rt models.TransitRoute
		if err := rows.Scan(&rt.ID, &rt.Code, &rt.Name, &rt.Kind, &rt.StopNames); err != nil {
			return nil, err
		}
		routes = append(routes, rt)
	}
	return routes, rows.Err()
}
