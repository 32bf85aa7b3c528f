package transit

import (
	"math"

	"github.com/google/uuid"
	"github.com/uber/h3-go/v4"

	"github.com/sabanago/ride-sharing/pkg/geo"
	"github.com/sabanago/ride-sharing/pkg/models"
)

// snapResolution is the H3 resolution of the stop index. Resolution 9 cells
// have ~175 m edges, so a k=1 disk already covers typical GPS drift around a
// stop.
const snapResolution = 9

// snapRings are the grid disk radii tried in order before falling back to a
// full scan. At resolution 9, k=4 reaches roughly 1.4 km.
var snapRings = []int{1, 2, 4}

// StopIndex answers nearest-stop queries over the seeded catalog. The H3
// cell buckets narrow candidates; haversine distance picks the winner.
type StopIndex struct {
	stops []models.TransitStop
	cells map[h3.Cell][]int
}

// NewStopIndex buckets the stops by H3 cell.
func NewStopIndex(stops []models.TransitStop) *StopIndex {
	idx := &StopIndex{
		stops: stops,
		cells: make(map[h3.Cell][]int, len(stops)),
	}
	for i, s := range stops {
		cell := cellAt(s.Latitude, s.Longitude)
		idx.cells[cell] = append(idx.cells[cell], i)
	}
	return idx
}

func cellAt(lat, lng float64) h3.Cell {
	cell, err := h3.LatLngToCell(h3.NewLatLng(lat, lng), snapResolution)
	if err != nil {
		return 0
	}
	return cell
}

// Nearest returns the stop closest to the given point. Only an empty index
// has no answer.
func (idx *StopIndex) Nearest(lat, lng float64) (models.TransitStop, bool) {
	if len(idx.stops) == 0 {
		return models.TransitStop{}, false
	}

	origin := cellAt(lat, lng)
	for _, k := range snapRings {
		cells, err := origin.GridDisk(k)
		if err != nil {
			break
		}
		if stop, ok := idx.nearestIn(cells, lat, lng); ok {
			return stop, true
		}
	}

	// Point far from every bucket: scan the whole catalog.
	best := idx.stops[0]
	bestDist := geo.HaversineMeters(lat, lng, best.Latitude, best.Longitude)
	for _, s := range idx.stops[1:] {
		if d := geo.HaversineMeters(lat, lng, s.Latitude, s.Longitude); d < bestDist {
			best, bestDist = s, d
		}
	}
	return best, true
}

func (idx *StopIndex) nearestIn(cells []h3.Cell, lat, lng float64) (models.TransitStop, bool) {
	var best models.TransitStop
	bestDist := math.MaxFloat64
	found := false
	for _, cell := range cells {
		for _, i := range idx.cells[cell] {
			s := idx.stops[i]
			if d := geo.HaversineMeters(lat, lng, s.Latitude, s.Longitude); d < bestDist {
				best, bestDist, found = s, d, true
			}
		}
	}
	return best, found
}

// SnapRoute maps each route point to its nearest stop, dropping consecutive
// and non-consecutive repeats while preserving traversal order.
func (idx *StopIndex) SnapRoute(points []models.RoutePoint) []models.TransitStop {
	seen := make(map[uuid.UUID]bool, len(points))
	var snapped []models.TransitStop
	for _, p := range points {
		stop, ok := idx.Nearest(p.Latitude, p.Longitude)
		if !ok || seen[stop.ID] {
			continue
		}
		seen[stop.ID] = true
		snapped = append(snapped, stop)
	}
	return snapped
}
