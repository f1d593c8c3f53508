package soar

import (
	"math"
	"testing"

	"github.com/gonum/floats"
	"github.com/soniakeys/unit"
)

func TestVector3(t *testing.T) {
	a := Vector3{1, 2, 3}
	b := Vector3{-2, 0.5, 4}
	if got := a.Add(b); got != (Vector3{-1, 2.5, 7}) {
		t.Fatalf("Add: %s", got)
	}
	if got := a.Sub(b); got != (Vector3{3, 1.5, -1}) {
		t.Fatalf("Sub: %s", got)
	}
	if got := a.Dot(b); got != 11 {
		t.Fatalf("Dot: %f", got)
	}
	// The cross product is orthogonal to both operands.
	c := a.Cross(b)
	if !floats.EqualWithinAbs(c.Dot(a), 0, zeroε) || !floats.EqualWithinAbs(c.Dot(b), 0, zeroε) {
		t.Fatalf("Cross %s not orthogonal", c)
	}
	if !floats.EqualWithinAbs(Vector3{3, 4, 12}.Norm(), 13, zeroε) {
		t.Fatal("incorrect norm")
	}
	if u := b.Unit(); !floats.EqualWithinAbs(u.Norm(), 1, zeroε) {
		t.Fatalf("unit vector has norm %f", u.Norm())
	}
	if u := (Vector3{}).Unit(); u != (Vector3{}) {
		t.Fatalf("unit of zero vector should be zero, got %s", u)
	}
	if !(Vector3{1, 2, 3}).IsFinite() || (Vector3{1, math.NaN(), 3}).IsFinite() || (Vector3{math.Inf(1), 0, 0}).IsFinite() {
		t.Fatal("IsFinite failed")
	}
}

func TestSpherical2Cartesian(t *testing.T) {
	for _, tc := range []struct {
		az, el float64
		exp    Vector3
	}{
		{0, 0, Vector3{0, 1, 0}},
		{90, 0, Vector3{1, 0, 0}},
		{180, 0, Vector3{0, -1, 0}},
		{270, 45, Vector3{-math.Sqrt2 / 2, 0, math.Sqrt2 / 2}},
		{123, 90, Vector3{0, 0, 1}},
	} {
		got := Spherical2Cartesian(unit.AngleFromDeg(tc.az), unit.AngleFromDeg(tc.el))
		if !vectorsEqual(got, tc.exp, 1e-12) {
			t.Errorf("az=%f el=%f: got %s, want %s", tc.az, tc.el, got, tc.exp)
		}
	}
	// Round trip.
	v := Vector3{-3, 7, 2}
	r, az, el := Cartesian2Spherical(v)
	if back := Spherical2Cartesian(az, el).Scale(r); !vectorsEqual(back, v, 1e-12) {
		t.Fatalf("round trip: %s != %s", back, v)
	}
	if az.Deg() < 0 || az.Deg() >= 360 {
		t.Fatalf("azimuth %f out of [0, 360)", az.Deg())
	}
}

func TestAngles(t *testing.T) {
	for i := 0.0; i < 360; i += 30 {
		if !floats.EqualWithinAbs(Rad2deg(Deg2rad(i)), i, 1e-10) {
			t.Fatalf("incorrect conversion for %f", i)
		}
	}
	if !floats.EqualWithinAbs(Rad2deg(-math.Pi/2), 270, 1e-10) {
		t.Fatal("negative angles are not wrapped")
	}
	if !floats.EqualWithinAbs(Deg2rad(-90), 3*math.Pi/2, 1e-10) {
		t.Fatal("negative angles are not wrapped")
	}
}
