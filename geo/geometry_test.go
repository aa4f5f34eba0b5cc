package geo

import (
	"math"
	"testing"
)

func TestDistanceZeroToSelf(t *testing.T) {
	points := [][2]float64{
		{0, 0},
		{31.7683, 35.2137},
		{-45.5, 170.25},
		{89.9, -179.9},
	}
	for _, p := range points {
		if d := Distance(p[0], p[1], p[0], p[1]); d != 0 {
			t.Fatalf("Distance(%v, %v) = %v, want 0", p, p, d)
		}
	}
}

func TestDistanceSymmetric(t *testing.T) {
	cases := []struct {
		lat1, lng1, lat2, lng2 float64
	}{
		{31.7683, 35.2137, 31.5204, 34.4668},
		{0, 0, 0, 180},
		{-33.9, 151.2, 51.5, -0.12},
		{90, 0, -90, 0},
	}
	for _, tc := range cases {
		ab := Distance(tc.lat1, tc.lng1, tc.lat2, tc.lng2)
		ba := Distance(tc.lat2, tc.lng2, tc.lat1, tc.lng1)
		if math.Abs(ab-ba) > 1e-9 {
			t.Fatalf("Distance not symmetric: %v vs %v", ab, ba)
		}
	}
}

func TestDistanceKnownValues(t *testing.T) {
	// Quarter of the equator.
	got := Distance(0, 0, 0, 90)
	want := math.Pi / 2 * EarthRadiusKm
	if math.Abs(got-want) > 1e-6 {
		t.Fatalf("Distance(equator quarter) = %v, want %v", got, want)
	}

	// Jerusalem to Gaza City is roughly 76 km.
	got = Distance(31.7683, 35.2137, 31.5204, 34.4668)
	if got < 70 || got > 82 {
		t.Fatalf("Distance(Jerusalem, Gaza) = %.2f km, want ~76", got)
	}
}

func TestElevationDegrees(t *testing.T) {
	observer := ECEF(0, 0, 0)

	overhead := ECEF(0, 0, 20000)
	if el := ElevationDegrees(observer, overhead); math.Abs(el-90) > 1e-6 {
		t.Fatalf("overhead elevation = %v, want 90", el)
	}

	// Antipodal target sits straight below.
	below := ECEF(0, 180, 0)
	if el := ElevationDegrees(observer, below); math.Abs(el+90) > 1e-6 {
		t.Fatalf("antipodal elevation = %v, want -90", el)
	}

	if el := ElevationDegrees(observer, observer); el != 90 {
		t.Fatalf("degenerate elevation = %v, want 90", el)
	}
}

func TestECEFRadius(t *testing.T) {
	v := ECEF(31.7683, 35.2137, 0)
	if math.Abs(v.Norm()-EarthRadiusKm) > 1e-9 {
		t.Fatalf("|ECEF| = %v, want %v", v.Norm(), EarthRadiusKm)
	}
}
