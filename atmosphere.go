package soar

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"
)

const (
	// SeaLevelTemperature of the standard atmosphere in Kelvin.
	SeaLevelTemperature = 288.15
	// LapseRate of the troposphere in K/m.
	LapseRate = 0.0065
	// Gravity is the standard gravity in m/s^2.
	Gravity = 9.80665
	// DryAirMolarMass in kg/mol.
	DryAirMolarMass = 0.0289644
	// UniversalGasConstant in J/(mol.K).
	UniversalGasConstant = 8.3144598
	// SpecificGasConstant of dry air in J/(kg.K).
	SpecificGasConstant = 287.0
	// CelsiusOffset converts °C to K.
	CelsiusOffset = 273.15
)

var (
	// Exponent of the barometric formula, g.M/(R.L) ≈ 5.2559.
	barometricExp = Gravity * DryAirMolarMass / (UniversalGasConstant * LapseRate)
	// Exponent of the hypsometric equation, R.L/(g.M) ≈ 0.1903.
	hypsometricExp = 1 / barometricExp
)

// PressureLevels are the isobaric levels of the grid dataset (hPa), highest pressure first.
var PressureLevels = []int{850, 750, 700, 600, 500, 450, 400, 350, 300, 275, 250, 225, 200, 150, 100}

// CalculatePressure returns the pressure at altitude given a reference pressure, temperature (K)
// and altitude, from the barometric formula. The pressure unit is that of the reference.
func CalculatePressure(altitude, refPressure, refTemperature, refAltitude float64) float64 {
	return refPressure * math.Pow(1-LapseRate*(altitude-refAltitude)/refTemperature, barometricExp)
}

// CalculateAltitude returns the altitude of the pressure surface above a reference layer from the
// hypsometric equation. The reference temperature is in Kelvin.
func CalculateAltitude(pressure, refPressure, refTemperature, refAltitude float64) float64 {
	return refAltitude + (refTemperature/LapseRate)*(1-math.Pow(pressure/refPressure, hypsometricExp))
}

// AtmosphericLayer is the atmospheric state on an isobaric surface.
type AtmosphericLayer struct {
	PressureHPa int
	Altitude    float64 // m above sea level
	Temperature float64 // K
	WindX       float64 // eastward m/s
	WindY       float64 // northward m/s
}

// WindSpeed returns the horizontal wind speed in m/s.
func (l AtmosphericLayer) WindSpeed() float64 {
	return math.Hypot(l.WindX, l.WindY)
}

// WindDirection returns where the wind blows from, in degrees clockwise from north.
func (l AtmosphericLayer) WindDirection() float64 {
	if l.WindX == 0 && l.WindY == 0 {
		return 0
	}
	return Rad2deg(math.Atan2(-l.WindX, -l.WindY))
}

func (l AtmosphericLayer) String() string {
	return fmt.Sprintf("%d hPa @ %.1f m: %.2f K, wind %.1f m/s from %.0f°", l.PressureHPa, l.Altitude, l.Temperature, l.WindSpeed(), l.WindDirection())
}

// windFromSpeedDirection returns the east and north components of a wind blowing from direction (deg).
func windFromSpeedDirection(speed, direction float64) (x, y float64) {
	s, c := math.Sincos(direction * deg2rad)
	return -speed * s, -speed * c
}

// Conditions is the interpolated atmospheric state at a given altitude.
type Conditions struct {
	Altitude    float64 // m
	Pressure    float64 // hPa
	Temperature float64 // K
	Wind        Vector3 // m/s, Z is always zero
}

// Density returns the air density from the ideal gas law, in kg/m^3.
func (c Conditions) Density() float64 {
	if c.Temperature <= 0 {
		return 0
	}
	return c.Pressure * 100 / (SpecificGasConstant * c.Temperature)
}

// Atmosphere is anything which can provide the conditions at a given altitude.
type Atmosphere interface {
	Conditions(altitude float64) (Conditions, error)
}

// AtmosphericProfile is a vertical profile from the ground up to the highest pressure level.
// It is immutable once built and safe for concurrent use.
type AtmosphericProfile struct {
	validTime time.Time
	layers    []AtmosphericLayer // sorted by increasing altitude
	byLevel   map[int]int        // pressure -> index in layers
}

// NewAtmosphericProfile returns a profile from the provided layers, in any order. The layers must
// strictly increase in altitude as their pressure strictly decreases.
func NewAtmosphericProfile(validTime time.Time, layers []AtmosphericLayer) (*AtmosphericProfile, error) {
	if len(layers) == 0 {
		return nil, NewError(ParsingError, "profile", errors.New("no layers"))
	}
	sorted := make([]AtmosphericLayer, len(layers))
	copy(sorted, layers)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].PressureHPa > sorted[j].PressureHPa
	})
	byLevel := make(map[int]int, len(sorted))
	for i, l := range sorted {
		if math.IsNaN(l.Altitude) || math.IsNaN(l.Temperature) || math.IsNaN(l.WindX) || math.IsNaN(l.WindY) {
			return nil, Errorf(ParsingError, "profile", "NaN in layer %d hPa", l.PressureHPa)
		}
		if i > 0 {
			prev := sorted[i-1]
			if l.PressureHPa == prev.PressureHPa {
				return nil, Errorf(ParsingError, "profile", "duplicate layer %d hPa", l.PressureHPa)
			}
			if l.Altitude <= prev.Altitude {
				return nil, Errorf(ParsingError, "profile", "layer %d hPa at %.1f m is not above layer %d hPa at %.1f m", l.PressureHPa, l.Altitude, prev.PressureHPa, prev.Altitude)
			}
		}
		byLevel[l.PressureHPa] = i
	}
	return &AtmosphericProfile{validTime: validTime, layers: sorted, byLevel: byLevel}, nil
}

// ValidTime returns the time this profile is valid for.
func (p *AtmosphericProfile) ValidTime() time.Time {
	return p.validTime
}

// Layers returns a copy of the layers, from the ground up.
func (p *AtmosphericProfile) Layers() []AtmosphericLayer {
	rtn := make([]AtmosphericLayer, len(p.layers))
	copy(rtn, p.layers)
	return rtn
}

// Layer returns the layer at the given pressure level.
func (p *AtmosphericProfile) Layer(pressureHPa int) (AtmosphericLayer, bool) {
	i, ok := p.byLevel[pressureHPa]
	if !ok {
		return AtmosphericLayer{}, false
	}
	return p.layers[i], true
}

// Ground returns the ground level layer.
func (p *AtmosphericProfile) Ground() AtmosphericLayer {
	return p.layers[0]
}

// Top returns the highest layer.
func (p *AtmosphericProfile) Top() AtmosphericLayer {
	return p.layers[len(p.layers)-1]
}

// Conditions implements the Atmosphere interface. The state is linearly interpolated between the
// two bracketing layers, and clamped to the boundary layers outside of the profile.
func (p *AtmosphericProfile) Conditions(altitude float64) (Conditions, error) {
	if p == nil || len(p.layers) == 0 {
		return Conditions{}, NewError(ParsingError, "conditions", errors.New("empty profile"))
	}
	if math.IsNaN(altitude) || math.IsInf(altitude, 0) {
		return Conditions{}, Errorf(ParsingError, "conditions", "invalid altitude %f", altitude)
	}
	if altitude <= p.layers[0].Altitude {
		return p.layers[0].conditions(altitude), nil
	}
	last := len(p.layers) - 1
	if altitude >= p.layers[last].Altitude {
		return p.layers[last].conditions(altitude), nil
	}
	// First layer strictly above the altitude.
	i := sort.Search(len(p.layers), func(i int) bool {
		return p.layers[i].Altitude > altitude
	})
	lo, hi := p.layers[i-1], p.layers[i]
	f := (altitude - lo.Altitude) / (hi.Altitude - lo.Altitude)
	return Conditions{
		Altitude:    altitude,
		Pressure:    lerp(float64(lo.PressureHPa), float64(hi.PressureHPa), f),
		Temperature: lerp(lo.Temperature, hi.Temperature, f),
		Wind:        Vector3{lerp(lo.WindX, hi.WindX, f), lerp(lo.WindY, hi.WindY, f), 0},
	}, nil
}

func (l AtmosphericLayer) conditions(altitude float64) Conditions {
	return Conditions{
		Altitude:    altitude,
		Pressure:    float64(l.PressureHPa),
		Temperature: l.Temperature,
		Wind:        Vector3{l.WindX, l.WindY, 0},
	}
}

func (p *AtmosphericProfile) String() string {
	return fmt.Sprintf("profile @ %s: %d layers from %.0f m to %.0f m", p.validTime.UTC().Format(time.RFC3339), len(p.layers), p.Ground().Altitude, p.Top().Altitude)
}
