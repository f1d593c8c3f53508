package soar

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// ExportConfig configures the exporting of the simulation.
type ExportConfig struct {
	Filename  string
	OutputDir string
	Timestamp bool // Append the creation time to the file name
}

// IsUseless returns whether this config doesn't actually do anything.
func (c ExportConfig) IsUseless() bool {
	return c.Filename == ""
}

// path returns the file name of the given kind of export.
func (c ExportConfig) path(kind string) string {
	name := fmt.Sprintf("%s-%s", kind, c.Filename)
	if c.Timestamp {
		t := time.Now()
		name = fmt.Sprintf("%s-%d-%02d-%02dT%02d.%02d.%02d", name, t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second())
	}
	return filepath.Join(c.OutputDir, name+".csv")
}

// createCSVFile creates the file and writes the commented header, the caller must close it.
func createCSVFile(filename, records string, launch time.Time) (*os.File, error) {
	f, err := os.Create(filename)
	if err != nil {
		return nil, err
	}
	if _, err := fmt.Fprintf(f, "# Creation date (UTC): %s\n# Records are %s\n#   Launch time (UTC): %s\n", time.Now().UTC(), records, launch.UTC()); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

// ExportTrajectory writes the samples as CSV and returns the file name.
func ExportTrajectory(conf ExportConfig, launch time.Time, samples []TrajectorySample) (filename string, err error) {
	filename = conf.path("trajectory")
	f, err := createCSVFile(filename, "<t> <x> <y> <z> <speed> <phase>\n#   Time in seconds since ignition\n#   Position in meters east, north and up of the launch site", launch)
	if err != nil {
		return "", err
	}
	defer closeFile(f, &err)
	if err := WriteTrajectory(f, samples); err != nil {
		return "", err
	}
	return filename, nil
}

// WriteTrajectory writes the samples as CSV, with a header row.
func WriteTrajectory(w io.Writer, samples []TrajectorySample) error {
	cw := csv.NewWriter(w)
	cw.Write([]string{"time", "x", "y", "z", "speed", "phase"})
	for _, s := range samples {
		cw.Write([]string{ftoa(s.Time, 3), ftoa(s.Position.X, 3), ftoa(s.Position.Y, 3), ftoa(s.Position.Z, 3), ftoa(s.Speed, 3), s.Phase.String()})
	}
	cw.Flush()
	return cw.Error()
}

// ExportDispersion writes one row per dispersion run and returns the file name.
func ExportDispersion(conf ExportConfig, launch time.Time, rslt DispersionResult) (filename string, err error) {
	filename = conf.path("dispersion")
	f, err := createCSVFile(filename, "<run> <thrust> <azimuth> <pitch> <apogee> <east> <north> <phase>\n#   Angles in degrees, distances in meters", launch)
	if err != nil {
		return "", err
	}
	defer closeFile(f, &err)
	cw := csv.NewWriter(f)
	cw.Write([]string{"run", "thrust", "azimuth", "pitch", "apogee", "east", "north", "phase"})
	for _, run := range rslt.Runs {
		cw.Write([]string{
			strconv.Itoa(run.Index),
			ftoa(run.Rocket.Thrust, 1),
			ftoa(run.Rocket.LaunchAzimuth, 3),
			ftoa(run.Rocket.LaunchPitch, 3),
			ftoa(run.Summary.Apogee, 1),
			ftoa(run.Summary.Landing.X, 1),
			ftoa(run.Summary.Landing.Y, 1),
			run.Summary.FinalPhase.String(),
		})
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return "", err
	}
	return filename, nil
}

// closeFile closes c and reports its error unless err is already set.
func closeFile(c io.Closer, err *error) {
	if cerr := c.Close(); cerr != nil && *err == nil {
		*err = cerr
	}
}

func ftoa(v float64, prec int) string {
	return strconv.FormatFloat(v, 'f', prec, 64)
}
