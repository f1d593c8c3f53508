package soar

import (
	"fmt"
	"math"

	"github.com/gonum/floats"
	"github.com/soniakeys/unit"
)

const (
	deg2rad = math.Pi / 180
	zeroε   = 1e-12
)

// Vector3 is a vector in the local launch frame: X points east, Y north and Z up (meters).
type Vector3 struct {
	X, Y, Z float64
}

// Add returns v + o.
func (v Vector3) Add(o Vector3) Vector3 {
	return Vector3{v.X + o.X, v.Y + o.Y, v.Z + o.Z}
}

// Sub returns v - o.
func (v Vector3) Sub(o Vector3) Vector3 {
	return Vector3{v.X - o.X, v.Y - o.Y, v.Z - o.Z}
}

// Scale returns v multiplied by f.
func (v Vector3) Scale(f float64) Vector3 {
	return Vector3{v.X * f, v.Y * f, v.Z * f}
}

// Dot performs the inner product.
func (v Vector3) Dot(o Vector3) float64 {
	return v.X*o.X + v.Y*o.Y + v.Z*o.Z
}

// Cross performs the cross product.
func (v Vector3) Cross(o Vector3) Vector3 {
	return Vector3{v.Y*o.Z - v.Z*o.Y,
		v.Z*o.X - v.X*o.Z,
		v.X*o.Y - v.Y*o.X}
}

// Norm returns the euclidean norm.
func (v Vector3) Norm() float64 {
	return math.Sqrt(v.Dot(v))
}

// Unit returns the unit vector of v, or the nil vector if v has no length.
func (v Vector3) Unit() Vector3 {
	n := v.Norm()
	if floats.EqualWithinAbs(n, 0, zeroε) {
		return Vector3{}
	}
	return v.Scale(1 / n)
}

// Slice returns the components as a slice, mostly for the gonum helpers.
func (v Vector3) Slice() []float64 {
	return []float64{v.X, v.Y, v.Z}
}

// IsFinite returns whether no component is NaN or infinite.
func (v Vector3) IsFinite() bool {
	for _, c := range v.Slice() {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}

func (v Vector3) String() string {
	return fmt.Sprintf("(%.3f, %.3f, %.3f)", v.X, v.Y, v.Z)
}

// Spherical2Cartesian returns the unit vector pointing at the provided azimuth (clockwise from
// north) and elevation (above the horizon).
func Spherical2Cartesian(azimuth, elevation unit.Angle) Vector3 {
	sα, cα := azimuth.Sincos()
	sφ, cφ := elevation.Sincos()
	return Vector3{cφ * sα, cφ * cα, sφ}
}

// Cartesian2Spherical returns the norm, azimuth and elevation of the provided vector.
func Cartesian2Spherical(v Vector3) (r float64, azimuth, elevation unit.Angle) {
	r = v.Norm()
	if r == 0 {
		return 0, 0, 0
	}
	azimuth = unit.Angle(math.Atan2(v.X, v.Y)).Mod1()
	elevation = unit.Angle(math.Asin(v.Z / r))
	return
}

// Deg2rad converts degrees to radians, and enforced only positive numbers.
func Deg2rad(a float64) float64 {
	if a < 0 {
		a += 360
	}
	return math.Mod(a*deg2rad, 2*math.Pi)
}

// Rad2deg converts radians to degrees, and enforced only positive numbers.
func Rad2deg(a float64) float64 {
	if a < 0 {
		a += 2 * math.Pi
	}
	return math.Mod(a/deg2rad, 360)
}

// lerp linearly interpolates between a and b, f being the fraction from a.
func lerp(a, b, f float64) float64 {
	return a + (b-a)*f
}
