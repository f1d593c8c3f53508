package soar

import (
	"context"
	"time"

	"github.com/BlastBlastBlast/soar-sub000/metrics"
	kitlog "github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultForecastWindow is how far around the launch time the surface forecast is aggregated.
	DefaultForecastWindow = time.Hour
)

// ProfileProvider builds the atmospheric profile above a location at a given time.
type ProfileProvider interface {
	BuildProfile(ctx context.Context, lat, lon float64, t time.Time) (*AtmosphericProfile, error)
}

// BuilderConfig configures a ProfileBuilder. Zero values are replaced by the defaults.
type BuilderConfig struct {
	ForecastWindow time.Duration
	Resolution     Resolution
	Area           BoundingBox
}

func (c BuilderConfig) withDefaults() BuilderConfig {
	if c.ForecastWindow <= 0 {
		c.ForecastWindow = DefaultForecastWindow
	}
	if c.Resolution.Lat <= 0 || c.Resolution.Lon <= 0 {
		c.Resolution = DefaultResolution
	}
	if c.Area == (BoundingBox{}) {
		c.Area = SupportedArea
	}
	return c
}

// ProfileBuilder fuses the grid dataset and the surface forecast into an AtmosphericProfile.
type ProfileBuilder struct {
	grid     GridSource
	forecast ForecastSource
	conf     BuilderConfig
	logger   kitlog.Logger
}

// NewProfileBuilder returns a new builder. A nil logger disables logging.
func NewProfileBuilder(grid GridSource, forecast ForecastSource, conf BuilderConfig, logger kitlog.Logger) *ProfileBuilder {
	if logger == nil {
		logger = kitlog.NewNopLogger()
	}
	return &ProfileBuilder{grid: grid, forecast: forecast, conf: conf.withDefaults(), logger: kitlog.With(logger, "subsys", "atmosphere")}
}

// Resolution returns the grid resolution used to snap the coordinates.
func (b *ProfileBuilder) Resolution() Resolution {
	return b.conf.Resolution
}

// BuildProfile implements the ProfileProvider interface.
func (b *ProfileBuilder) BuildProfile(ctx context.Context, lat, lon float64, t time.Time) (*AtmosphericProfile, error) {
	start := time.Now()
	p, err := b.build(ctx, lat, lon, t)
	metrics.RecordProfileBuild(time.Since(start), KindOf(err).String(), err == nil)
	if err != nil {
		level.Warn(b.logger).Log("lat", lat, "lon", lon, "time", t.UTC(), "err", err)
		return nil, err
	}
	level.Info(b.logger).Log("lat", lat, "lon", lon, "profile", p, "duration", time.Since(start))
	return p, nil
}

func (b *ProfileBuilder) build(ctx context.Context, lat, lon float64, t time.Time) (*AtmosphericProfile, error) {
	if !b.conf.Area.Contains(lat, lon) {
		return nil, Errorf(OutOfBoundsError, "build profile", "(%.4f, %.4f) outside of %s", lat, lon, b.conf.Area)
	}

	// Both fetches are independent; the first failure cancels the other.
	var (
		grid     *Grid
		readings []SurfaceReading
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		grid, err = b.grid.Grid(gctx, t)
		return
	})
	g.Go(func() (err error) {
		readings, err = b.forecast.Forecast(gctx, lat, lon, t.Add(-b.conf.ForecastWindow), t.Add(b.conf.ForecastWindow))
		return
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	surface, err := AggregateForecast(readings, t)
	if err != nil {
		return nil, err
	}
	// Cells are stored at the resolution of the dataset.
	res := grid.Resolution
	if res.Lat <= 0 || res.Lon <= 0 {
		res = b.conf.Resolution
	}
	slat, slon := res.Snap(lat, lon)
	cell, ok := grid.Cell(slat, slon)
	if !ok {
		return nil, Errorf(ParsingError, "build profile", "no grid cell at (%.4f, %.4f)", slat, slon)
	}
	level.Debug(b.logger).Log("grid_lat", slat, "grid_lon", slon, "readings", len(readings), "sea_level_pressure(hPa)", surface.PressureAtSeaLevel)
	return NewAtmosphericProfile(grid.ValidTime, b.layers(surface, cell))
}

// layers folds the pressure levels on top of the ground layer, each altitude computed from the
// layer just below it.
func (b *ProfileBuilder) layers(surface SurfaceReading, cell GridCell) []AtmosphericLayer {
	ground, groundPressure := surface.groundLayer()
	layers := make([]AtmosphericLayer, 1, len(PressureLevels)+1)
	layers[0] = ground

	prevPressure, prevAltitude, prevTemperature := groundPressure, ground.Altitude, ground.Temperature
	for _, p := range PressureLevels {
		if p >= ground.PressureHPa {
			// This level is underground.
			continue
		}
		val, ok := cell[p]
		if !ok {
			level.Warn(b.logger).Log("pressure(hPa)", p, "msg", "missing grid value, defaulting to zero")
		}
		altitude := CalculateAltitude(float64(p), prevPressure, prevTemperature, prevAltitude)
		layers = append(layers, AtmosphericLayer{
			PressureHPa: p,
			Altitude:    altitude,
			Temperature: val.Temperature,
			WindX:       val.UWind,
			WindY:       val.VWind,
		})
		prevPressure, prevAltitude = float64(p), altitude
		// A zero (defaulted) temperature would stack the next level on this one.
		if val.Temperature > 0 {
			prevTemperature = val.Temperature
		} else {
			level.Warn(b.logger).Log("pressure(hPa)", p, "msg", "no temperature, next altitude uses the layer below", "temperature(K)", prevTemperature)
		}
	}
	return layers
}
