package metno

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	soar "github.com/BlastBlastBlast/soar-sub000"
	kitlog "github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
)

// DefaultForecastURL is the Locationforecast 2.0 endpoint.
const DefaultForecastURL = "https://api.met.no/weatherapi/locationforecast/2.0"

// ForecastClient retrieves point forecasts from Locationforecast. It implements soar.ForecastSource.
type ForecastClient struct {
	client
	baseURL string
	// Altitude of the site in meters. When nil the API uses its own terrain model.
	Altitude *float64
}

// NewForecastClient returns a new client. MET Norway rejects requests without an identifying User-Agent.
func NewForecastClient(baseURL, userAgent string, timeout time.Duration, logger kitlog.Logger) *ForecastClient {
	if baseURL == "" {
		baseURL = DefaultForecastURL
	}
	c := newClient(userAgent, timeout, logger)
	c.logger = kitlog.With(c.logger, "subsys", "locationforecast")
	return &ForecastClient{client: c, baseURL: baseURL}
}

type forecastDetails struct {
	AirPressureAtSeaLevel   *float64 `json:"air_pressure_at_sea_level"`
	AirTemperature          *float64 `json:"air_temperature"`
	CloudAreaFraction       *float64 `json:"cloud_area_fraction"`
	CloudAreaFractionHigh   *float64 `json:"cloud_area_fraction_high"`
	CloudAreaFractionMedium *float64 `json:"cloud_area_fraction_medium"`
	CloudAreaFractionLow    *float64 `json:"cloud_area_fraction_low"`
	DewPointTemperature     *float64 `json:"dew_point_temperature"`
	RelativeHumidity        *float64 `json:"relative_humidity"`
	WindFromDirection       *float64 `json:"wind_from_direction"`
	WindSpeed               *float64 `json:"wind_speed"`
	WindSpeedOfGust         *float64 `json:"wind_speed_of_gust"`
	PrecipitationAmount     *float64 `json:"precipitation_amount"`
	ProbabilityOfThunder    *float64 `json:"probability_of_thunder"`
}

type forecastResponse struct {
	Geometry struct {
		Coordinates []float64 `json:"coordinates"` // lon, lat, altitude
	} `json:"geometry"`
	Properties struct {
		Timeseries []struct {
			Time time.Time `json:"time"`
			Data struct {
				Instant struct {
					Details forecastDetails `json:"details"`
				} `json:"instant"`
				Next1Hours *struct {
					Details forecastDetails `json:"details"`
				} `json:"next_1_hours"`
			} `json:"data"`
		} `json:"timeseries"`
	} `json:"properties"`
}

// Forecast implements soar.ForecastSource: it returns the readings between from and to, both included.
func (c *ForecastClient) Forecast(ctx context.Context, lat, lon float64, from, to time.Time) ([]soar.SurfaceReading, error) {
	const op = "forecast"
	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(lat, 'f', 4, 64))
	q.Set("lon", strconv.FormatFloat(lon, 'f', 4, 64))
	if c.Altitude != nil {
		q.Set("altitude", strconv.Itoa(int(*c.Altitude)))
	}
	body, err := c.get(ctx, op, c.baseURL+"/complete?"+q.Encode())
	if err != nil {
		var se statusError
		if errors.As(err, &se) {
			if se.code == http.StatusNotFound || se.code == http.StatusNoContent {
				return nil, soar.NewError(soar.ForecastError, op, se)
			}
			return nil, soar.NewError(soar.FetchError, op, se)
		}
		return nil, err
	}
	readings, err := decodeForecast(body, from, to)
	if err != nil {
		return nil, err
	}
	level.Debug(c.logger).Log("lat", lat, "lon", lon, "from", from, "to", to, "readings", len(readings))
	return readings, nil
}

func decodeForecast(body []byte, from, to time.Time) ([]soar.SurfaceReading, error) {
	const op = "forecast"
	var resp forecastResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, soar.NewError(soar.ParsingError, op, fmt.Errorf("decoding locationforecast: %w", err))
	}
	var altitude float64
	if len(resp.Geometry.Coordinates) > 2 {
		altitude = resp.Geometry.Coordinates[2]
	}
	var readings []soar.SurfaceReading
	for _, ts := range resp.Properties.Timeseries {
		if ts.Time.Before(from) || ts.Time.After(to) {
			continue
		}
		d := ts.Data.Instant.Details
		if d.AirTemperature == nil || d.AirPressureAtSeaLevel == nil {
			return nil, soar.Errorf(soar.ParsingError, op, "reading at %s lacks temperature or pressure", ts.Time.Format(time.RFC3339))
		}
		r := soar.SurfaceReading{
			Time:                ts.Time,
			Altitude:            altitude,
			AirTemperature:      *d.AirTemperature,
			PressureAtSeaLevel:  *d.AirPressureAtSeaLevel,
			WindSpeed:           value(d.WindSpeed),
			WindGust:            value(d.WindSpeedOfGust),
			WindFromDirection:   value(d.WindFromDirection),
			CloudFractionTotal:  value(d.CloudAreaFraction),
			CloudFractionHigh:   value(d.CloudAreaFractionHigh),
			CloudFractionMedium: value(d.CloudAreaFractionMedium),
			CloudFractionLow:    value(d.CloudAreaFractionLow),
			RelativeHumidity:    value(d.RelativeHumidity),
			DewPointTemperature: value(d.DewPointTemperature),
		}
		if next := ts.Data.Next1Hours; next != nil {
			r.PrecipitationAmount = value(next.Details.PrecipitationAmount)
			r.ProbabilityOfThunder = value(next.Details.ProbabilityOfThunder)
		}
		readings = append(readings, r)
	}
	if len(readings) == 0 {
		return nil, soar.Errorf(soar.ForecastError, op, "no forecast between %s and %s", from.Format(time.RFC3339), to.Format(time.RFC3339))
	}
	return readings, nil
}

func value(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
