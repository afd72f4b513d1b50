package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	libreville  = Point{Lat: 0.390, Lng: 9.454}
	portGentil  = Point{Lat: -0.7193, Lng: 8.7815}
	franceville = Point{Lat: -1.6333, Lng: 13.5833}
)

func TestDistanceKm_IdenticalPointIsZero(t *testing.T) {
	d, ok := DistanceKm(libreville, libreville)

	require.True(t, ok)
	assert.InDelta(t, 0, d, 1e-9)
}

func TestDistanceKm_KnownCityPairs(t *testing.T) {
	d, ok := DistanceKm(libreville, portGentil)
	require.True(t, ok)
	assert.InDelta(t, 144, d, 2)

	d, ok = DistanceKm(Point{Lat: 0, Lng: 0}, Point{Lat: 0, Lng: 1})
	require.True(t, ok)
	assert.InDelta(t, 111.195, d, 0.01)
}

func TestDistanceKm_Symmetric(t *testing.T) {
	points := []Point{libreville, portGentil, franceville, {Lat: 89.9, Lng: -179.9}, {Lat: -45, Lng: 170}}

	for _, a := range points {
		for _, b := range points {
			ab, ok1 := DistanceKm(a, b)
			ba, ok2 := DistanceKm(b, a)
			require.True(t, ok1)
			require.True(t, ok2)
			assert.InDelta(t, ab, ba, 1e-9)
		}
	}
}

func TestDistanceKm_MonotonicAlongMeridian(t *testing.T) {
	prev := -1.0
	for step := 0; step <= 90; step++ {
		target := Point{Lat: libreville.Lat + float64(step)*0.5, Lng: libreville.Lng}
		if target.Lat > 90 {
			break
		}
		d, ok := DistanceKm(libreville, target)
		require.True(t, ok)
		assert.GreaterOrEqual(t, d, prev)
		prev = d
	}
}

func TestDistanceKm_NonFiniteIsUnknown(t *testing.T) {
	cases := []Point{
		{Lat: math.NaN(), Lng: 9.4},
		{Lat: 0.3, Lng: math.Inf(1)},
		{Lat: math.Inf(-1), Lng: math.NaN()},
	}

	for _, p := range cases {
		_, ok := DistanceKm(libreville, p)
		assert.False(t, ok)
		_, ok = DistanceKm(p, libreville)
		assert.False(t, ok)
	}
}

func TestDistanceFrom_NilTargetIsUnknown(t *testing.T) {
	_, ok := DistanceFrom(libreville, nil)
	assert.False(t, ok)

	d, ok := DistanceFrom(libreville, &portGentil)
	assert.True(t, ok)
	assert.Greater(t, d, 0.0)
}

func TestPoint_InRange(t *testing.T) {
	assert.True(t, libreville.InRange())
	assert.False(t, Point{Lat: 91, Lng: 0}.InRange())
	assert.False(t, Point{Lat: 0, Lng: -181}.InRange())
	assert.False(t, Point{Lat: math.NaN(), Lng: 0}.InRange())
}
