package soar

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/gonum/floats"
)

func newTestBuilder(t *testing.T, altitude float64) (*ProfileBuilder, *fakeGrid, *fakeForecast) {
	grid := NewGrid(testLaunch, DefaultResolution)
	grid.Set(60, 10.75, standardCell())
	r0, r1 := seaLevelReading(testLaunch), seaLevelReading(testLaunch.Add(time.Hour))
	r0.Altitude, r1.Altitude = altitude, altitude
	fg := &fakeGrid{grid: grid}
	ff := &fakeForecast{readings: []SurfaceReading{r0, r1}}
	return NewProfileBuilder(fg, ff, BuilderConfig{}, nil), fg, ff
}

func TestBuildProfile(t *testing.T) {
	b, fg, ff := newTestBuilder(t, 0)
	p, err := b.BuildProfile(context.Background(), 59.91, 10.75, testLaunch)
	if err != nil {
		t.Fatal(err)
	}
	if fg.calls != 1 || ff.calls != 1 {
		t.Fatalf("expected one fetch each, got %d grid and %d forecast", fg.calls, ff.calls)
	}
	if !ff.from.Equal(testLaunch.Add(-time.Hour)) || !ff.to.Equal(testLaunch.Add(time.Hour)) {
		t.Fatalf("incorrect forecast window [%s, %s]", ff.from, ff.to)
	}
	layers := p.Layers()
	if len(layers) != len(PressureLevels)+1 {
		t.Fatalf("expected %d layers, got %d", len(PressureLevels)+1, len(layers))
	}
	for i := 1; i < len(layers); i++ {
		if layers[i].Altitude <= layers[i-1].Altitude {
			t.Fatalf("layer %s not above %s", layers[i], layers[i-1])
		}
	}
	l850, _ := p.Layer(850)
	if math.Abs(l850.Altitude-1457)/1457 > 0.05 {
		t.Fatalf("850 hPa at %f m", l850.Altitude)
	}
	// Winds come from the grid above the ground, and from the forecast on the ground.
	if l850.WindX != 10 || l850.WindY != -2 {
		t.Fatalf("incorrect 850 hPa wind %s", l850)
	}
	if g := p.Ground(); g.PressureHPa != 1013 || !floats.EqualWithinAbs(g.WindX, 4, 1e-9) {
		t.Fatalf("incorrect ground layer %s", g)
	}
	if !p.ValidTime().Equal(testLaunch) {
		t.Fatalf("valid time %s", p.ValidTime())
	}
}

func TestBuildProfileElevatedSite(t *testing.T) {
	// At 1600 m the ground is above 850 hPa.
	b, _, _ := newTestBuilder(t, 1600)
	p, err := b.BuildProfile(context.Background(), 60, 10.75, testLaunch)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := p.Layer(850); ok {
		t.Fatal("850 hPa is underground and should be skipped")
	}
	if p.Ground().Altitude != 1600 || p.Ground().PressureHPa >= 850 {
		t.Fatalf("incorrect ground %s", p.Ground())
	}
	l750, ok := p.Layer(750)
	if !ok || l750.Altitude <= 1600 {
		t.Fatalf("750 hPa layer %s", l750)
	}
}

func TestBuildProfileOutOfBounds(t *testing.T) {
	b, fg, ff := newTestBuilder(t, 0)
	_, err := b.BuildProfile(context.Background(), 70, 10, testLaunch)
	if !errors.Is(err, ErrOutOfBounds) {
		t.Fatalf("expected out of bounds, got %v", err)
	}
	if KindOf(err) != OutOfBoundsError {
		t.Fatalf("kind %s", KindOf(err))
	}
	if fg.calls != 0 || ff.calls != 0 {
		t.Fatal("out of bounds request fetched data")
	}
}

func TestBuildProfileFetchErrors(t *testing.T) {
	for _, tc := range []struct {
		name        string
		grid, fcast error
		exp         error
	}{
		{"availability", Errorf(AvailabilityError, "grid", "nothing published"), nil, ErrAvailability},
		{"grid transport", NewError(FetchError, "grid", errors.New("connection reset")), nil, ErrFetch},
		{"forecast", nil, Errorf(ForecastError, "forecast", "no data"), ErrForecast},
	} {
		b, fg, ff := newTestBuilder(t, 0)
		fg.err, ff.err = tc.grid, tc.fcast
		p, err := b.BuildProfile(context.Background(), 60, 10.75, testLaunch)
		if !errors.Is(err, tc.exp) || p != nil {
			t.Errorf("%s: expected %v, got %v (%v)", tc.name, tc.exp, err, p)
		}
	}
}

func TestBuildProfileMissingCell(t *testing.T) {
	b, _, _ := newTestBuilder(t, 0)
	// Inside the area but far from the only cell.
	_, err := b.BuildProfile(context.Background(), 63, 5, testLaunch)
	if !errors.Is(err, ErrParsing) {
		t.Fatalf("expected a parsing error, got %v", err)
	}
}

func TestBuildProfileMissingLevel(t *testing.T) {
	b, fg, _ := newTestBuilder(t, 0)
	cell := standardCell()
	delete(cell, 700)
	fg.grid = NewGrid(testLaunch, DefaultResolution)
	fg.grid.Set(60, 10.75, cell)
	p, err := b.BuildProfile(context.Background(), 60, 10.75, testLaunch)
	if err != nil {
		t.Fatalf("a missing level failed the build: %s", err)
	}
	l700, ok := p.Layer(700)
	if !ok || l700.Temperature != 0 || l700.WindX != 0 || l700.WindY != 0 {
		t.Fatalf("missing level should default to zero: %s", l700)
	}
	l750, _ := p.Layer(750)
	l600, _ := p.Layer(600)
	if l700.Altitude <= l750.Altitude || l600.Altitude <= l700.Altitude {
		t.Fatalf("layers not stacked: 750 hPa %s, 700 hPa %s, 600 hPa %s", l750, l700, l600)
	}
	// Above the gap the altitudes match the complete cell within the temperature difference.
	full, _, _ := newTestBuilder(t, 0)
	ref, err := full.BuildProfile(context.Background(), 60, 10.75, testLaunch)
	if err != nil {
		t.Fatal(err)
	}
	ref600, _ := ref.Layer(600)
	if math.Abs(l600.Altitude-ref600.Altitude) > 20 {
		t.Fatalf("600 hPa at %f m, expected about %f m", l600.Altitude, ref600.Altitude)
	}
}

func TestBuildProfileGridResolution(t *testing.T) {
	b, fg, _ := newTestBuilder(t, 0)
	fg.grid = NewGrid(testLaunch, Resolution{Lat: 0.5, Lon: 0.5})
	fg.grid.Set(60, 10.5, standardCell())
	// At 0.25° this point would snap to (60.25, 10.5), which the dataset does not have.
	p, err := b.BuildProfile(context.Background(), 60.2, 10.6, testLaunch)
	if err != nil {
		t.Fatalf("expected the dataset resolution to be used: %s", err)
	}
	if l850, _ := p.Layer(850); l850.WindX != 10 {
		t.Fatalf("incorrect 850 hPa layer %s", l850)
	}
}
