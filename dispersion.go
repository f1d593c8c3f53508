package soar

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"runtime"
	"time"

	kitlog "github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/gonum/matrix/mat64"
	"github.com/gonum/stat"
	"github.com/gonum/stat/distmv"
	"golang.org/x/sync/errgroup"
)

// DispersionConfig defines a Monte Carlo analysis of the landing point.
type DispersionConfig struct {
	Runs         int
	Workers      int     // zero means GOMAXPROCS
	Seed         int64   // zero means a time based seed
	ThrustSigma  float64 // relative, e.g. 0.02 for 2%
	AzimuthSigma float64 // deg
	PitchSigma   float64 // deg
}

// Validate returns an error if the analysis cannot run.
func (c DispersionConfig) Validate() error {
	if c.Runs <= 0 {
		return fmt.Errorf("%w: dispersion needs at least one run, got %d", ErrInvalidConfig, c.Runs)
	}
	if c.Workers < 0 || c.ThrustSigma < 0 || c.AzimuthSigma < 0 || c.PitchSigma < 0 {
		return fmt.Errorf("%w: dispersion workers and sigmas may not be negative", ErrInvalidConfig)
	}
	return nil
}

// DispersionRun is the outcome of one perturbed flight.
type DispersionRun struct {
	Index   int
	Rocket  RocketConfig
	Summary FlightSummary
	Aborted bool
}

// DispersionResult gathers all the runs and the landing statistics of the runs which landed.
type DispersionResult struct {
	Runs                  []DispersionRun
	Landed, Aborted       int
	MeanEast, MeanNorth   float64 // m
	SigmaEast, SigmaNorth float64 // m
}

func (r DispersionResult) String() string {
	return fmt.Sprintf("%d runs (%d landed, %d aborted): landing at E %.0f±%.0f m, N %.0f±%.0f m", len(r.Runs), r.Landed, r.Aborted, r.MeanEast, r.SigmaEast, r.MeanNorth, r.SigmaNorth)
}

// Disperse runs as many simulations as requested with perturbed thrust and launch angles,
// all against the same atmosphere. Any atmosphere failure stops the whole analysis.
func Disperse(ctx context.Context, origin Site, config RocketConfig, atmo Atmosphere, dc DispersionConfig, logger kitlog.Logger) (DispersionResult, error) {
	if err := dc.Validate(); err != nil {
		return DispersionResult{}, err
	}
	if err := config.Validate(); err != nil {
		return DispersionResult{}, err
	}
	if logger == nil {
		logger = kitlog.NewNopLogger()
	}
	logger = kitlog.With(logger, "subsys", "dispersion")
	workers := dc.Workers
	if workers == 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	seed := dc.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	level.Info(logger).Log("status", "started", "runs", dc.Runs, "workers", workers, "seed", seed)

	// Draws happen sequentially so that a seed always yields the same rockets.
	noise, ok := distmv.NewNormal([]float64{0, 0, 0}, mat64.NewSymDense(3, []float64{1, 0, 0, 0, 1, 0, 0, 0, 1}), rand.New(rand.NewSource(seed)))
	if !ok {
		return DispersionResult{}, fmt.Errorf("dispersion noise is not positive definite")
	}
	runs := make([]DispersionRun, dc.Runs)
	draw := make([]float64, 3)
	for i := range runs {
		noise.Rand(draw)
		rocket := config
		rocket.Thrust = math.Max(0, config.Thrust*(1+dc.ThrustSigma*draw[0]))
		rocket.LaunchAzimuth = config.LaunchAzimuth + dc.AzimuthSigma*draw[1]
		rocket.LaunchPitch = math.Min(90, config.LaunchPitch+dc.PitchSigma*draw[2])
		runs[i] = DispersionRun{Index: i, Rocket: rocket}
	}

	start := Vector3{Z: origin.Elevation}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range runs {
		run := &runs[i]
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			sim, err := NewSimulation(start, run.Rocket, atmo, nil)
			if err != nil {
				return err
			}
			samples, err := sim.Run()
			if err != nil {
				return fmt.Errorf("dispersion run %d: %w", run.Index, err)
			}
			run.Aborted = sim.Aborted()
			run.Summary, err = Summarize(origin, samples)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		level.Error(logger).Log("status", "failed", "err", err)
		return DispersionResult{}, err
	}

	rslt := DispersionResult{Runs: runs}
	var east, north []float64
	for _, run := range runs {
		if run.Aborted || run.Summary.FinalPhase != Landed {
			rslt.Aborted++
			continue
		}
		rslt.Landed++
		east = append(east, run.Summary.Landing.X)
		north = append(north, run.Summary.Landing.Y)
	}
	if len(east) > 0 {
		rslt.MeanEast, rslt.SigmaEast = stat.MeanStdDev(east, nil)
		rslt.MeanNorth, rslt.SigmaNorth = stat.MeanStdDev(north, nil)
		if len(east) == 1 {
			rslt.SigmaEast, rslt.SigmaNorth = 0, 0
		}
	}
	level.Info(logger).Log("status", "finished", "result", rslt)
	return rslt, nil
}
