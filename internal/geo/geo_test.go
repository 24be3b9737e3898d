package geo

import (
	"math"
	"testing"

	"github.com/golang/geo/s2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func drawLocation(t *rapid.T, label string) Location {
	lat := rapid.Float64Range(-89.9, 89.9).Draw(t, label+"_lat")
	lng := rapid.Float64Range(-179.9, 180.0).Draw(t, label+"_lng")
	return FromDegrees(lat, lng)
}

func TestGreatCircle_EquatorQuarter(t *testing.T) {
	a := FromDegrees(0, 0)
	b := FromDegrees(0, 90)

	assert.InDelta(t, 10007.543, GreatCircle(a, b), 0.01)
	assert.InDelta(t, math.Pi/2, Bearing(a, b), 1e-12)
}

func TestGreatCircle_OttawaCambridge(t *testing.T) {
	ottawa := FromDegrees(45.40, -75.68)
	cambridge := FromDegrees(52.21, 0.12)

	assert.InDelta(t, 5365, GreatCircle(ottawa, cambridge), 10)
}

func TestGreatCircle_MatchesS2(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		a := drawLocation(t, "a")
		b := drawLocation(t, "b")

		want := float64(a.LatLng().Distance(b.LatLng())) * EarthRadius
		assert.InDelta(t, want, GreatCircle(a, b), 0.001) // 1 m
	})
}

func TestBearing_Reciprocity(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		a := drawLocation(t, "a")
		b := drawLocation(t, "b")
		c := CentralAngle(a, b)
		if c > math.Pi-0.05 || c < 1e-4 {
			t.Skip("no well-defined azimuth")
		}

		// Continuing past B along the arc leaves B opposite to the way back.
		beyond := Waypoint(a, Bearing(a, b), GreatCircle(a, b)+100)
		diff := NormalizeAzimuth(Bearing(b, beyond) - Bearing(b, a))
		assert.InDelta(t, math.Pi, diff, 1e-7)
	})
}

func TestBearing_ReciprocalOnMeridian(t *testing.T) {
	a := FromDegrees(10, 20)
	b := FromDegrees(40, 20)

	assert.InDelta(t, 0, Bearing(a, b), 1e-9)
	assert.InDelta(t, math.Pi, Bearing(b, a), 1e-9)
	assert.InDelta(t, Bearing(a, b)+math.Pi, Bearing(b, a), 1e-9)
}

func TestWaypoint_RoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		a := drawLocation(t, "a")
		b := drawLocation(t, "b")
		if Degenerate(a, b) {
			t.Skip("degenerate pair")
		}

		got := Waypoint(a, Bearing(a, b), GreatCircle(a, b))
		assert.Less(t, GreatCircle(got, b), 0.010) // 10 m
	})
}

func TestWaypoint_StaysOnArc(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		a := drawLocation(t, "a")
		b := drawLocation(t, "b")
		if Degenerate(a, b) {
			t.Skip("degenerate pair")
		}

		p := NewPath(a, b, false)
		mid := p.Midpoint()
		assert.InDelta(t, p.Distance/2, GreatCircle(a, mid), 0.01)
		assert.InDelta(t, p.Distance/2, GreatCircle(mid, b), 0.01)
	})
}

func TestDegenerate(t *testing.T) {
	a := FromDegrees(12, 34)

	assert.True(t, Degenerate(a, a))
	assert.True(t, Degenerate(a, FromDegrees(-12, 34-180)))
	assert.False(t, Degenerate(a, FromDegrees(13, 34)))
	assert.Equal(t, 0.0, Bearing(a, a))
}

func TestNewPath_Long(t *testing.T) {
	a := FromDegrees(40.01, -105.27)
	b := FromDegrees(-33.87, 151.21)

	short := NewPath(a, b, false)
	long := NewPath(a, b, true)

	require.Greater(t, short.Distance, 13000.0)
	assert.InDelta(t, 2*math.Pi*EarthRadius, short.Distance+long.Distance, 1e-6)
	assert.InDelta(t, math.Pi, math.Abs(short.Azimuth-long.Azimuth), 1e-9)
	assert.Less(t, GreatCircle(long.PointAt(long.Distance), b), 0.01)
}

func TestNormalizeLongitude(t *testing.T) {
	assert.InDelta(t, math.Pi, NormalizeLongitude(-math.Pi), 1e-12)
	assert.InDelta(t, math.Pi, NormalizeLongitude(math.Pi), 1e-12)
	assert.InDelta(t, -math.Pi/2, NormalizeLongitude(3*math.Pi/2), 1e-12)
	assert.InDelta(t, 0.1, NormalizeLongitude(0.1+4*math.Pi), 1e-12)
}

func TestLocation_LatLng(t *testing.T) {
	l := FromDegrees(45.5, -75.25)
	ll := l.LatLng()

	assert.InDelta(t, 45.5, ll.Lat.Degrees(), 1e-9)
	assert.InDelta(t, -75.25, ll.Lng.Degrees(), 1e-9)
	assert.True(t, ll.IsValid())
	assert.True(t, l.Valid())
	assert.False(t, Location{Lat: 2}.Valid())

	p := s2.PointFromLatLng(ll)
	assert.InDelta(t, 1.0, p.Norm(), 1e-12)
}
