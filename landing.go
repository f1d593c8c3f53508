package soar

import (
	"fmt"
	"math"

	"github.com/soniakeys/meeus/globe"
	"github.com/soniakeys/unit"
)

// Site is a geodetic location, in degrees (east positive) and meters above sea level.
type Site struct {
	Latitude, Longitude, Elevation float64
}

// Offset returns the site reached by moving by the local east/north/up offset p (in meters).
func (s Site) Offset(p Vector3) Site {
	φ := unit.AngleFromDeg(s.Latitude)
	// Both radii are in km.
	rm := globe.Earth76.RadiusOfCurvature(φ) * 1e3
	rp := globe.Earth76.RadiusAtLatitude(φ) * 1e3
	rtn := Site{Latitude: s.Latitude + signedDeg(p.Y/rm), Longitude: s.Longitude, Elevation: s.Elevation + p.Z}
	if rp > 0 {
		rtn.Longitude += signedDeg(p.X / rp)
	}
	return rtn
}

// DistanceTo returns the distance along the surface of the ellipsoid, in meters.
func (s Site) DistanceTo(o Site) float64 {
	if s.Latitude == o.Latitude && s.Longitude == o.Longitude {
		return 0
	}
	return globe.Earth76.Distance(s.coord(), o.coord()) * 1e3
}

// coord converts to meeus coordinates, which count longitudes positively westward.
func (s Site) coord() globe.Coord {
	return globe.Coord{Lat: unit.AngleFromDeg(s.Latitude), Lon: unit.AngleFromDeg(-s.Longitude)}
}

func (s Site) String() string {
	return fmt.Sprintf("(%.5f°, %.5f°) @ %.0f m", s.Latitude, s.Longitude, s.Elevation)
}

// signedDeg converts radians to degrees without wrapping.
func signedDeg(a float64) float64 {
	return a / deg2rad
}

// FlightSummary sums up a trajectory.
type FlightSummary struct {
	Apogee         float64 // m, above the launch site
	ApogeeTime     float64 // s
	MaxSpeed       float64 // m/s
	FlightTime     float64 // s
	FinalPhase     FlightPhase
	Landing        Vector3 // m, relative to the launch site
	LandingSite    Site
	GroundDistance float64 // m from the launch site
	Bearing        float64 // deg clockwise from north, of the landing point from the launch site
}

// Summarize returns the summary of a trajectory launched from site.
func Summarize(site Site, samples []TrajectorySample) (FlightSummary, error) {
	if len(samples) == 0 {
		return FlightSummary{}, fmt.Errorf("empty trajectory")
	}
	origin := samples[0].Position
	sum := FlightSummary{Apogee: math.Inf(-1)}
	for _, s := range samples {
		if h := s.Position.Z - origin.Z; h > sum.Apogee {
			sum.Apogee = h
			sum.ApogeeTime = s.Time
		}
		sum.MaxSpeed = math.Max(sum.MaxSpeed, s.Speed)
	}
	last := samples[len(samples)-1]
	sum.FlightTime = last.Time
	sum.FinalPhase = last.Phase
	sum.Landing = last.Position.Sub(origin)
	sum.LandingSite = site.Offset(sum.Landing)
	sum.GroundDistance = site.DistanceTo(sum.LandingSite)
	_, bearing, _ := Cartesian2Spherical(Vector3{sum.Landing.X, sum.Landing.Y, 0})
	sum.Bearing = bearing.Deg()
	return sum, nil
}

func (s FlightSummary) String() string {
	return fmt.Sprintf("apogee %.0f m @ %.1f s, max speed %.1f m/s, %s after %.1f s at %s (%.0f m away, bearing %.0f°)", s.Apogee, s.ApogeeTime, s.MaxSpeed, s.FinalPhase, s.FlightTime, s.LandingSite, s.GroundDistance, s.Bearing)
}
