package routes

import (
	"fmt"
	"time"
)

// Mode is the travel profile requested from a provider.
type Mode string

const (
	ModeDriving Mode = "driving"
	ModeWalking Mode = "walking"
	ModeCycling Mode = "cycling"
)

// Valid reports whether the mode is one the providers understand.
func (m Mode) Valid() bool {
	switch m {
	case ModeDriving, ModeWalking, ModeCycling:
		return true
	}
	return false
}

// Coordinate is a WGS84 point.
type Coordinate struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lng"`
}

// Normalize renders the coordinate as the canonical cache-key string.
// Five decimals is roughly one metre, so GPS jitter between requests for
// the same corner still lands on the same entry.
func (c Coordinate) Normalize() string {
	return fmt.Sprintf("%.5f,%.5f", c.Latitude, c.Longitude)
}

// RouteResult is one provider answer. Cached entries are immutable
// snapshots; CacheHit is decorated on reads and never stored as true.
type RouteResult struct {
	DistanceMeters  float64   `json:"distance_meters"`
	DurationSeconds float64   `json:"duration_seconds"`
	EncodedPolyline string    `json:"encoded_polyline,omitempty"`
	FetchedAt       time.Time `json:"fetched_at"`
	Provider        string    `json:"provider"`
	CacheHit        bool      `json:"cache_hit"`
}

// DistanceKm returns the route length in kilometres.
func (r *RouteResult) DistanceKm() float64 {
	return r.DistanceMeters / 1000
}

// DurationMinutes returns the travel time in minutes.
func (r *RouteResult) DurationMinutes() float64 {
	return r.DurationSeconds / 60
}
