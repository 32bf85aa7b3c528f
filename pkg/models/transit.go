package models

import "github.com/google/uuid"

// TransitStopKind distinguishes plain stops from trunk stations.
type TransitStopKind string

const (
	StopKindStop    TransitStopKind = "stop"
	StopKindStation TransitStopKind = "station"
)

// TransitStop is a seeded reference point of the city transit network. Trip
// routes snap to these.
type TransitStop struct {
	ID        uuid.UUID       `json:"id" db:"id"`
	Name      string          `json:"name" db:"name"`
	Latitude  float64         `json:"latitude" db:"latitude"`
	Longitude float64         `json:"longitude" db:"longitude"`
	Kind      TransitStopKind `json:"kind" db:"kind"`
	RouteRefs []string        `json:"route_refs,omitempty" db:"route_refs"`
}

// TransitRoute is a named service line of the transit network.
type TransitRoute struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Code      string    `json:"code" db:"code"`
	Name      string    `json:"name" db:"name"`
	Kind      string    `json:"kind" db:"kind"`
	StopNames []string  `json:"stop_names,omitempty" db:"stop_names"`
}
