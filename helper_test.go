package soar

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gonum/floats"
)

var testLaunch = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func assertPanic(t *testing.T, f func()) {
	defer func() {
		if r := recover(); r == nil {
			t.Errorf("code did not panic")
		}
	}()
	f()
}

func vectorsEqual(a, b Vector3, ε float64) bool {
	return floats.EqualApprox(a.Slice(), b.Slice(), ε)
}

// standardLayers returns the standard atmosphere on every pressure level with a uniform wind.
func standardLayers(windX, windY float64) []AtmosphericLayer {
	layers := []AtmosphericLayer{{PressureHPa: 1013, Altitude: 0, Temperature: SeaLevelTemperature, WindX: windX, WindY: windY}}
	for _, p := range PressureLevels {
		alt := CalculateAltitude(float64(p), 1013.25, SeaLevelTemperature, 0)
		layers = append(layers, AtmosphericLayer{PressureHPa: p, Altitude: alt, Temperature: SeaLevelTemperature - LapseRate*alt, WindX: windX, WindY: windY})
	}
	return layers
}

func standardProfile(t *testing.T, windX, windY float64) *AtmosphericProfile {
	p, err := NewAtmosphericProfile(testLaunch, standardLayers(windX, windY))
	if err != nil {
		t.Fatalf("standard profile: %s", err)
	}
	return p
}

// failingAtmosphere fails every lookup above the ceiling.
type failingAtmosphere struct {
	Atmosphere
	ceiling float64
}

func (a failingAtmosphere) Conditions(altitude float64) (Conditions, error) {
	if altitude > a.ceiling {
		return Conditions{}, Errorf(FetchError, "conditions", "nothing above %.0f m", a.ceiling)
	}
	return a.Atmosphere.Conditions(altitude)
}

type fakeGrid struct {
	grid  *Grid
	err   error
	calls int32
}

func (f *fakeGrid) Grid(ctx context.Context, t time.Time) (*Grid, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.err != nil {
		return nil, f.err
	}
	return f.grid, nil
}

type fakeForecast struct {
	readings []SurfaceReading
	err      error
	calls    int32
	from, to time.Time
}

func (f *fakeForecast) Forecast(ctx context.Context, lat, lon float64, from, to time.Time) ([]SurfaceReading, error) {
	atomic.AddInt32(&f.calls, 1)
	f.from, f.to = from, to
	if f.err != nil {
		return nil, f.err
	}
	return f.readings, nil
}

// standardCell returns a grid cell with the standard temperatures and a westerly wind.
func standardCell() GridCell {
	cell := make(GridCell, len(PressureLevels))
	for _, p := range PressureLevels {
		alt := CalculateAltitude(float64(p), 1013.25, SeaLevelTemperature, 0)
		cell[p] = GridValue{UWind: 10, VWind: -2, Temperature: SeaLevelTemperature - LapseRate*alt}
	}
	return cell
}

func seaLevelReading(at time.Time) SurfaceReading {
	return SurfaceReading{
		Time:               at,
		AirTemperature:     SeaLevelTemperature - CelsiusOffset,
		WindSpeed:          4,
		WindGust:           7,
		WindFromDirection:  270,
		PressureAtSeaLevel: 1013.25,
		RelativeHumidity:   60,
	}
}
