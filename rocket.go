package soar

import (
	"fmt"
	"math"

	"github.com/soniakeys/unit"
)

const (
	// DefaultMaxFlightTime bounds a simulation when the config does not, in seconds.
	DefaultMaxFlightTime = 2 * 3600.0
)

// RocketConfig defines a single stage rocket with a parachute deployed at apogee.
type RocketConfig struct {
	Name                     string
	WetMass                  float64 // kg, at ignition
	DryMass                  float64 // kg, at burnout
	BurnTime                 float64 // s
	Thrust                   float64 // N, constant during the burn
	CrossSectionalArea       float64 // m^2
	DragCoefficient          float64
	ParachuteArea            float64 // m^2
	ParachuteDragCoefficient float64
	LaunchAzimuth            float64 // deg, clockwise from north
	LaunchPitch              float64 // deg, above the horizon
	LaunchRailLength         float64 // m
	IntegrationStep          float64 // s
	MaxFlightTime            float64 // s, zero means DefaultMaxFlightTime
}

// Validate returns an error if this config would not integrate.
func (c RocketConfig) Validate() error {
	switch {
	case !(c.IntegrationStep > 0):
		return fmt.Errorf("%w: integration step must be positive, got %f s", ErrInvalidConfig, c.IntegrationStep)
	case !(c.DryMass > 0):
		return fmt.Errorf("%w: dry mass must be positive, got %f kg", ErrInvalidConfig, c.DryMass)
	case c.WetMass < c.DryMass:
		return fmt.Errorf("%w: wet mass %f kg is less than dry mass %f kg", ErrInvalidConfig, c.WetMass, c.DryMass)
	case c.BurnTime < 0 || c.Thrust < 0:
		return fmt.Errorf("%w: burn time and thrust may not be negative", ErrInvalidConfig)
	case c.CrossSectionalArea < 0 || c.DragCoefficient < 0 || c.ParachuteArea < 0 || c.ParachuteDragCoefficient < 0:
		return fmt.Errorf("%w: areas and drag coefficients may not be negative", ErrInvalidConfig)
	case c.LaunchRailLength < 0:
		return fmt.Errorf("%w: rail length may not be negative", ErrInvalidConfig)
	}
	return nil
}

// Mass returns the mass at t seconds after ignition: linear from wet to dry during the burn.
func (c RocketConfig) Mass(t float64) float64 {
	if t <= 0 {
		if c.BurnTime <= 0 {
			return c.DryMass
		}
		return c.WetMass
	}
	if t >= c.BurnTime {
		return c.DryMass
	}
	return c.WetMass - (c.WetMass-c.DryMass)*t/c.BurnTime
}

// Burning returns whether the motor thrusts at t.
func (c RocketConfig) Burning(t float64) bool {
	return t < c.BurnTime && c.Thrust > 0
}

// LaunchDirection returns the unit vector along the launch rail.
func (c RocketConfig) LaunchDirection() Vector3 {
	return Spherical2Cartesian(unit.AngleFromDeg(c.LaunchAzimuth), unit.AngleFromDeg(c.LaunchPitch))
}

// ThrustToWeight returns the thrust to weight ratio at ignition.
func (c RocketConfig) ThrustToWeight() float64 {
	return c.Thrust / (c.Mass(0) * Gravity)
}

func (c RocketConfig) maxFlightTime() float64 {
	if c.MaxFlightTime > 0 && !math.IsInf(c.MaxFlightTime, 0) {
		return c.MaxFlightTime
	}
	return DefaultMaxFlightTime
}

func (c RocketConfig) String() string {
	return fmt.Sprintf("%s: %.1f->%.1f kg, %.0f N for %.1f s, az %.1f°, pitch %.1f°", c.Name, c.WetMass, c.DryMass, c.Thrust, c.BurnTime, c.LaunchAzimuth, c.LaunchPitch)
}
