package soar

import (
	"context"
	"errors"
	"math"
	"time"
)

// SurfaceReading is a point forecast at the launch site.
type SurfaceReading struct {
	Time                 time.Time
	Altitude             float64 // m above sea level of the forecast point
	AirTemperature       float64 // °C
	WindSpeed            float64 // m/s
	WindGust             float64 // m/s
	WindFromDirection    float64 // deg
	CloudFractionTotal   float64 // %
	CloudFractionHigh    float64 // %
	CloudFractionMedium  float64 // %
	CloudFractionLow     float64 // %
	RelativeHumidity     float64 // %
	DewPointTemperature  float64 // °C
	PrecipitationAmount  float64 // mm
	ProbabilityOfThunder float64 // %
	PressureAtSeaLevel   float64 // hPa
}

// ForecastSource provides the surface forecast time series at a location between two times.
type ForecastSource interface {
	Forecast(ctx context.Context, lat, lon float64, from, to time.Time) ([]SurfaceReading, error)
}

// AggregateForecast reduces a window of readings to a single representative one. The reduction is
// pessimistic: the maximum is kept for every value where more is worse for a launch, the wind
// direction is the circular mean and the thermodynamic values are averaged.
func AggregateForecast(readings []SurfaceReading, at time.Time) (SurfaceReading, error) {
	if len(readings) == 0 {
		return SurfaceReading{}, NewError(ForecastError, "aggregate", errors.New("no readings in window"))
	}
	agg := SurfaceReading{Time: at, Altitude: readings[0].Altitude}
	var sinSum, cosSum float64
	for _, r := range readings {
		agg.WindSpeed = math.Max(agg.WindSpeed, r.WindSpeed)
		agg.WindGust = math.Max(agg.WindGust, r.WindGust)
		agg.CloudFractionTotal = math.Max(agg.CloudFractionTotal, r.CloudFractionTotal)
		agg.CloudFractionHigh = math.Max(agg.CloudFractionHigh, r.CloudFractionHigh)
		agg.CloudFractionMedium = math.Max(agg.CloudFractionMedium, r.CloudFractionMedium)
		agg.CloudFractionLow = math.Max(agg.CloudFractionLow, r.CloudFractionLow)
		agg.PrecipitationAmount = math.Max(agg.PrecipitationAmount, r.PrecipitationAmount)
		agg.RelativeHumidity = math.Max(agg.RelativeHumidity, r.RelativeHumidity)
		agg.ProbabilityOfThunder = math.Max(agg.ProbabilityOfThunder, r.ProbabilityOfThunder)

		s, c := math.Sincos(Deg2rad(r.WindFromDirection))
		sinSum += s
		cosSum += c
		agg.AirTemperature += r.AirTemperature
		agg.DewPointTemperature += r.DewPointTemperature
		agg.PressureAtSeaLevel += r.PressureAtSeaLevel
	}
	n := float64(len(readings))
	agg.AirTemperature /= n
	agg.DewPointTemperature /= n
	agg.PressureAtSeaLevel /= n
	if sinSum != 0 || cosSum != 0 {
		agg.WindFromDirection = Rad2deg(math.Atan2(sinSum, cosSum))
	}
	if agg.PressureAtSeaLevel <= 0 {
		return SurfaceReading{}, Errorf(ParsingError, "aggregate", "invalid sea level pressure %.1f hPa", agg.PressureAtSeaLevel)
	}
	return agg, nil
}

// groundLayer returns the layer at the forecast point, and its exact pressure in hPa.
func (r SurfaceReading) groundLayer() (AtmosphericLayer, float64) {
	tempK := r.AirTemperature + CelsiusOffset
	pressure := CalculatePressure(r.Altitude, r.PressureAtSeaLevel, tempK, 0)
	x, y := windFromSpeedDirection(r.WindSpeed, r.WindFromDirection)
	return AtmosphericLayer{
		PressureHPa: int(math.Round(pressure)),
		Altitude:    r.Altitude,
		Temperature: tempK,
		WindX:       x,
		WindY:       y,
	}, pressure
}
