package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	soar "github.com/BlastBlastBlast/soar-sub000"
	"github.com/BlastBlastBlast/soar-sub000/metno"
	"github.com/BlastBlastBlast/soar-sub000/metrics"
	kitlog "github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
)

// This code reads the scenario, builds the atmosphere above the launch site and flies the rocket.

const (
	defaultScenario = "~~unset~~"
	stdoutName      = "-"
)

var (
	scenario    string
	outputDir   string
	csvName     string
	metricsFile string
	dispersion  bool
	timestamp   bool
	debug       bool
)

func init() {
	flag.StringVar(&scenario, "scenario", defaultScenario, "launch scenario TOML file")
	flag.StringVar(&outputDir, "output", ".", "directory of the CSV exports")
	flag.StringVar(&csvName, "csv", "", "export the trajectory (and dispersion) as CSV under this name, - writes the trajectory to stdout")
	flag.StringVar(&metricsFile, "metrics-file", "", "write the prometheus metrics to this textfile when done")
	flag.BoolVar(&dispersion, "dispersion", false, "run the Monte Carlo dispersion of the scenario")
	flag.BoolVar(&timestamp, "timestamp", false, "append the creation time to the exported file names")
	flag.BoolVar(&debug, "debug", false, "log debug messages")
}

func main() {
	flag.Parse()
	var logger kitlog.Logger
	logger = kitlog.NewLogfmtLogger(kitlog.NewSyncWriter(os.Stderr))
	logger = kitlog.With(logger, "ts", kitlog.DefaultTimestampUTC)
	if debug {
		logger = level.NewFilter(logger, level.AllowDebug())
	} else {
		logger = level.NewFilter(logger, level.AllowInfo())
	}

	if scenario == defaultScenario {
		level.Error(logger).Log("err", "no scenario provided")
		os.Exit(2)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := run(ctx, logger, os.Stdout)
	stop()
	if metricsFile != "" {
		if merr := metrics.WriteTextfile(metricsFile); merr != nil {
			level.Error(logger).Log("metrics", metricsFile, "err", merr)
		}
	}
	if err != nil {
		level.Error(logger).Log("scenario", scenario, "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger kitlog.Logger, stdout io.Writer) error {
	conf, err := soar.LoadConfig(scenario)
	if err != nil {
		return err
	}
	launch := conf.LaunchTime
	if launch.IsZero() {
		launch = time.Now().UTC()
	}
	level.Info(logger).Log("site", conf.Launch, "launch", launch, "rocket", conf.Rocket)

	forecast := metno.NewForecastClient(conf.Weather.ForecastURL, conf.Weather.UserAgent, conf.Weather.Timeout, logger)
	elevation := conf.Launch.Elevation
	forecast.Altitude = &elevation
	grid := metno.NewGridClient(conf.Weather.GridURL, conf.Weather.UserAgent, nil, conf.Weather.Timeout, logger)
	builder := soar.NewProfileBuilder(grid, forecast, conf.Builder(), logger)
	profiles := soar.NewProfileCache(builder, builder.Resolution(), 0, conf.Weather.CacheTTL)

	profile, err := profiles.BuildProfile(ctx, conf.Launch.Latitude, conf.Launch.Longitude, launch)
	if err != nil {
		return fmt.Errorf("building atmosphere: %w", err)
	}
	level.Info(logger).Log("profile", profile)

	origin := soar.Vector3{Z: conf.Launch.Elevation}
	sim, err := soar.NewSimulation(origin, conf.Rocket, profile, logger)
	if err != nil {
		return err
	}
	samples, err := sim.Run()
	if err != nil {
		return err
	}
	summary, err := soar.Summarize(conf.Launch, samples)
	if err != nil {
		return err
	}
	if sim.Aborted() {
		level.Warn(logger).Log("summary", summary, "err", "rocket fell below the launch altitude before apogee")
	} else {
		level.Info(logger).Log("summary", summary)
	}
	if csvName != stdoutName {
		// The summary is logged in any case, stdout is left to the CSV.
		fmt.Fprintln(stdout, summary)
	}

	export := soar.ExportConfig{Filename: csvName, OutputDir: outputDir, Timestamp: timestamp}
	if err := exportTrajectory(stdout, export, launch, samples, logger); err != nil {
		return err
	}
	if export.Filename == stdoutName {
		export = soar.ExportConfig{}
	}

	if !dispersion {
		return nil
	}
	dc := conf.Dispersion
	if dc.Runs == 0 {
		dc.Runs = 100
	}
	rslt, err := soar.Disperse(ctx, conf.Launch, conf.Rocket, profile, dc, logger)
	if err != nil {
		return err
	}
	level.Info(logger).Log("dispersion", rslt)
	if csvName != stdoutName {
		fmt.Fprintln(stdout, rslt)
	}
	if !export.IsUseless() {
		filename, err := soar.ExportDispersion(export, launch, rslt)
		if err != nil {
			return err
		}
		level.Info(logger).Log("saved", filename)
	}
	return nil
}

// exportTrajectory writes the samples to stdout or to a CSV file, depending on the export name.
func exportTrajectory(stdout io.Writer, export soar.ExportConfig, launch time.Time, samples []soar.TrajectorySample, logger kitlog.Logger) error {
	switch export.Filename {
	case "":
		return nil
	case stdoutName:
		return soar.WriteTrajectory(stdout, samples)
	}
	filename, err := soar.ExportTrajectory(export, launch, samples)
	if err != nil {
		return err
	}
	level.Info(logger).Log("saved", filename)
	return nil
}
