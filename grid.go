package soar

import (
	"context"
	"fmt"
	"math"
	"time"
)

// BoundingBox is a lat/lon box in WGS84 degrees, bounds included.
type BoundingBox struct {
	MinLat, MaxLat, MinLon, MaxLon float64
}

// SupportedArea is the coverage of the isobaric dataset.
var SupportedArea = BoundingBox{MinLat: 55.35, MaxLat: 64.25, MinLon: -1.45, MaxLon: 14.51}

// Contains returns whether the point is inside the box.
func (b BoundingBox) Contains(lat, lon float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat && lon >= b.MinLon && lon <= b.MaxLon
}

func (b BoundingBox) String() string {
	return fmt.Sprintf("lat [%.2f, %.2f], lon [%.2f, %.2f]", b.MinLat, b.MaxLat, b.MinLon, b.MaxLon)
}

// Resolution is the sampling step of the grid in degrees.
type Resolution struct {
	Lat, Lon float64
}

// DefaultResolution of the isobaric grid.
var DefaultResolution = Resolution{Lat: 0.25, Lon: 0.25}

// Snap returns the grid point of (lat, lon): each coordinate is rounded half away from zero to
// the nearest multiple of the resolution.
func (r Resolution) Snap(lat, lon float64) (float64, float64) {
	return snap(lat, r.Lat), snap(lon, r.Lon)
}

func snap(v, step float64) float64 {
	if step <= 0 {
		return v
	}
	s := math.Round(v/step) * step
	// Drop the floating point noise of the multiplication, e.g. 59.900000000000006.
	return math.Round(s*1e6) / 1e6
}

// GridValue is the state of a grid cell at a single pressure level.
type GridValue struct {
	UWind       float64 // eastward m/s
	VWind       float64 // northward m/s
	Temperature float64 // K
}

// GridCell maps a pressure level (hPa) to its value.
type GridCell map[int]GridValue

// gridKey is a grid point in micro degrees, avoiding float keys.
type gridKey struct {
	lat, lon int64
}

func keyOf(lat, lon float64) gridKey {
	return gridKey{int64(math.Round(lat * 1e6)), int64(math.Round(lon * 1e6))}
}

// Grid is a gridded pressure-level dataset valid at a single time.
type Grid struct {
	ValidTime  time.Time
	Resolution Resolution
	cells      map[gridKey]GridCell
}

// NewGrid returns an empty grid.
func NewGrid(validTime time.Time, res Resolution) *Grid {
	return &Grid{ValidTime: validTime, Resolution: res, cells: make(map[gridKey]GridCell)}
}

// Set stores the cell at the grid point nearest to (lat, lon).
func (g *Grid) Set(lat, lon float64, cell GridCell) {
	slat, slon := g.Resolution.Snap(lat, lon)
	g.cells[keyOf(slat, slon)] = cell
}

// Cell returns the cell at exactly this grid point. Callers must snap beforehand.
func (g *Grid) Cell(lat, lon float64) (GridCell, bool) {
	c, ok := g.cells[keyOf(lat, lon)]
	return c, ok
}

// Len returns the number of cells.
func (g *Grid) Len() int {
	return len(g.cells)
}

// GridSource provides the gridded dataset valid at (or nearest to) the requested time.
type GridSource interface {
	Grid(ctx context.Context, t time.Time) (*Grid, error)
}
