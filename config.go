package soar

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes the environment variables overriding a scenario, e.g. SOAR_ROCKET_THRUST.
const EnvPrefix = "SOAR"

// WeatherConfig defines how weather data is retrieved.
type WeatherConfig struct {
	UserAgent      string
	ForecastURL    string
	GridURL        string
	ForecastWindow time.Duration
	Resolution     Resolution
	CacheTTL       time.Duration
	Timeout        time.Duration
}

// Config is a whole launch scenario.
type Config struct {
	Launch     Site
	LaunchTime time.Time // zero means now
	Rocket     RocketConfig
	Weather    WeatherConfig
	Dispersion DispersionConfig
}

// Builder returns the profile builder settings of this scenario.
func (c Config) Builder() BuilderConfig {
	return BuilderConfig{ForecastWindow: c.Weather.ForecastWindow, Resolution: c.Weather.Resolution, Area: SupportedArea}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("launch.elevation", 0.0)
	v.SetDefault("rocket.name", "rocket")
	v.SetDefault("rocket.drag_coefficient", 0.5)
	v.SetDefault("rocket.parachute_drag_coefficient", 1.5)
	v.SetDefault("rocket.launch_azimuth", 0.0)
	v.SetDefault("rocket.launch_pitch", 85.0)
	v.SetDefault("rocket.launch_rail_length", 5.0)
	v.SetDefault("rocket.integration_step", 0.1)
	v.SetDefault("rocket.max_flight_time", DefaultMaxFlightTime)
	v.SetDefault("weather.forecast_url", "https://api.met.no/weatherapi/locationforecast/2.0")
	v.SetDefault("weather.grid_url", "https://api.met.no/weatherapi/isobaricgrib/1.0")
	v.SetDefault("weather.forecast_window", DefaultForecastWindow)
	v.SetDefault("weather.grid_resolution_lat", DefaultResolution.Lat)
	v.SetDefault("weather.grid_resolution_lon", DefaultResolution.Lon)
	v.SetDefault("weather.cache_ttl", DefaultCacheTTL)
	v.SetDefault("weather.timeout", 30*time.Second)
	v.SetDefault("dispersion.runs", 0)
	v.SetDefault("dispersion.workers", 0)
	v.SetDefault("dispersion.seed", 0)
	v.SetDefault("dispersion.thrust_sigma", 0.02)
	v.SetDefault("dispersion.azimuth_sigma", 1.0)
	v.SetDefault("dispersion.pitch_sigma", 1.0)
}

// LoadConfig reads the TOML scenario at path. Any key may be overridden by the environment.
func LoadConfig(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("reading %s: %w", path, err)
	}
	return configFrom(v)
}

func configFrom(v *viper.Viper) (Config, error) {
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for _, key := range []string{"launch.latitude", "launch.longitude", "rocket.wet_mass", "rocket.dry_mass"} {
		if !v.IsSet(key) {
			return Config{}, fmt.Errorf("%w: `%s` is missing", ErrInvalidConfig, key)
		}
	}
	conf := Config{
		Launch: Site{
			Latitude:  v.GetFloat64("launch.latitude"),
			Longitude: v.GetFloat64("launch.longitude"),
			Elevation: v.GetFloat64("launch.elevation"),
		},
		Rocket: RocketConfig{
			Name:                     v.GetString("rocket.name"),
			WetMass:                  v.GetFloat64("rocket.wet_mass"),
			DryMass:                  v.GetFloat64("rocket.dry_mass"),
			BurnTime:                 v.GetFloat64("rocket.burn_time"),
			Thrust:                   v.GetFloat64("rocket.thrust"),
			CrossSectionalArea:       v.GetFloat64("rocket.cross_sectional_area"),
			DragCoefficient:          v.GetFloat64("rocket.drag_coefficient"),
			ParachuteArea:            v.GetFloat64("rocket.parachute_area"),
			ParachuteDragCoefficient: v.GetFloat64("rocket.parachute_drag_coefficient"),
			LaunchAzimuth:            v.GetFloat64("rocket.launch_azimuth"),
			LaunchPitch:              v.GetFloat64("rocket.launch_pitch"),
			LaunchRailLength:         v.GetFloat64("rocket.launch_rail_length"),
			IntegrationStep:          v.GetFloat64("rocket.integration_step"),
			MaxFlightTime:            v.GetFloat64("rocket.max_flight_time"),
		},
		Weather: WeatherConfig{
			UserAgent:      v.GetString("weather.user_agent"),
			ForecastURL:    v.GetString("weather.forecast_url"),
			GridURL:        v.GetString("weather.grid_url"),
			ForecastWindow: v.GetDuration("weather.forecast_window"),
			Resolution:     Resolution{Lat: v.GetFloat64("weather.grid_resolution_lat"), Lon: v.GetFloat64("weather.grid_resolution_lon")},
			CacheTTL:       v.GetDuration("weather.cache_ttl"),
			Timeout:        v.GetDuration("weather.timeout"),
		},
		Dispersion: DispersionConfig{
			Runs:         v.GetInt("dispersion.runs"),
			Workers:      v.GetInt("dispersion.workers"),
			Seed:         v.GetInt64("dispersion.seed"),
			ThrustSigma:  v.GetFloat64("dispersion.thrust_sigma"),
			AzimuthSigma: v.GetFloat64("dispersion.azimuth_sigma"),
			PitchSigma:   v.GetFloat64("dispersion.pitch_sigma"),
		},
	}
	switch raw := v.Get("launch.time").(type) {
	case time.Time:
		// TOML datetime literal.
		conf.LaunchTime = raw.UTC()
	case string:
		if raw == "" {
			break
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return Config{}, fmt.Errorf("%w: launch time `%s` is not RFC3339", ErrInvalidConfig, raw)
		}
		conf.LaunchTime = t.UTC()
	}
	if !SupportedArea.Contains(conf.Launch.Latitude, conf.Launch.Longitude) {
		return Config{}, fmt.Errorf("%w: launch site %s is outside %s", ErrInvalidConfig, conf.Launch, SupportedArea)
	}
	if err := conf.Rocket.Validate(); err != nil {
		return Config{}, err
	}
	return conf, nil
}
