package soar

import (
	"errors"
	"testing"
	"time"

	"github.com/gonum/floats"
)

func TestAggregateForecastWorstCase(t *testing.T) {
	r0 := seaLevelReading(testLaunch.Add(-time.Hour))
	r1 := seaLevelReading(testLaunch)
	r2 := seaLevelReading(testLaunch.Add(time.Hour))
	r0.WindSpeed, r1.WindSpeed, r2.WindSpeed = 3, 9, 5
	r0.WindGust, r1.WindGust, r2.WindGust = 12, 10, 11
	r0.CloudFractionLow, r2.CloudFractionLow = 80, 20
	r1.PrecipitationAmount = 0.4
	r2.ProbabilityOfThunder = 15
	r0.RelativeHumidity, r1.RelativeHumidity, r2.RelativeHumidity = 70, 95, 60
	r0.AirTemperature, r1.AirTemperature, r2.AirTemperature = 10, 12, 14
	r0.PressureAtSeaLevel, r1.PressureAtSeaLevel, r2.PressureAtSeaLevel = 1010, 1012, 1014
	// Around north: naive averaging would give 180°.
	r0.WindFromDirection, r1.WindFromDirection, r2.WindFromDirection = 350, 0, 10

	agg, err := AggregateForecast([]SurfaceReading{r0, r1, r2}, testLaunch)
	if err != nil {
		t.Fatal(err)
	}
	if agg.WindSpeed != 9 || agg.WindGust != 12 || agg.CloudFractionLow != 80 || agg.PrecipitationAmount != 0.4 || agg.ProbabilityOfThunder != 15 || agg.RelativeHumidity != 95 {
		t.Fatalf("not the worst case: %+v", agg)
	}
	if !floats.EqualWithinAbs(agg.AirTemperature, 12, 1e-9) || !floats.EqualWithinAbs(agg.PressureAtSeaLevel, 1012, 1e-9) {
		t.Fatalf("thermodynamic values not averaged: %+v", agg)
	}
	if d := agg.WindFromDirection; !(d < 1e-6 || d > 360-1e-6) {
		t.Fatalf("wind direction %f, expected north", d)
	}
	if !agg.Time.Equal(testLaunch) {
		t.Fatalf("aggregated time %s", agg.Time)
	}
}

func TestAggregateForecastErrors(t *testing.T) {
	if _, err := AggregateForecast(nil, testLaunch); !errors.Is(err, ErrForecast) {
		t.Fatalf("empty window: %v", err)
	}
	r := seaLevelReading(testLaunch)
	r.PressureAtSeaLevel = 0
	if _, err := AggregateForecast([]SurfaceReading{r}, testLaunch); !errors.Is(err, ErrParsing) {
		t.Fatalf("no pressure: %v", err)
	}
}

func TestGroundLayer(t *testing.T) {
	r := seaLevelReading(testLaunch)
	r.Altitude = 500
	l, p := r.groundLayer()
	if exp := CalculatePressure(500, 1013.25, SeaLevelTemperature, 0); !floats.EqualWithinAbs(p, exp, 1e-9) {
		t.Fatalf("ground pressure %f, expected %f", p, exp)
	}
	if l.PressureHPa != 955 || l.Altitude != 500 || !floats.EqualWithinAbs(l.Temperature, SeaLevelTemperature, 1e-9) {
		t.Fatalf("incorrect ground layer %s", l)
	}
	// A westerly wind blows east.
	if !floats.EqualWithinAbs(l.WindX, 4, 1e-9) || !floats.EqualWithinAbs(l.WindY, 0, 1e-9) {
		t.Fatalf("incorrect ground wind %s", l)
	}
}
