package geo

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDistance_SamePointIsZero(t *testing.T) {
	t.Parallel()

	require.Zero(t, Distance(41.01, 29.01, 41.01, 29.01))
	require.Zero(t, Point{Lat: -33.9, Lon: 151.2}.DistanceTo(Point{Lat: -33.9, Lon: 151.2}))
}

func TestDistance_Symmetric(t *testing.T) {
	t.Parallel()

	pairs := []struct{ a, b Point }{
		{Point{41.00, 29.00}, Point{41.50, 29.50}},
		{Point{55.75, 37.61}, Point{59.93, 30.33}},
		{Point{-33.86, 151.20}, Point{51.50, -0.12}},
	}
	for _, p := range pairs {
		require.InDelta(t, p.a.DistanceTo(p.b), p.b.DistanceTo(p.a), 1e-9)
	}
}

func TestDistance_KnownValues(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		a, b     Point
		expected float64
		delta    float64
	}{
		{"courier A to pickup", Point{41.00, 29.00}, Point{41.01, 29.01}, 1.4, 0.1},
		{"courier B to pickup", Point{41.50, 29.50}, Point{41.01, 29.01}, 68.2, 1.0},
		{"moscow to saint petersburg", Point{55.7558, 37.6173}, Point{59.9343, 30.3351}, 634, 5},
		{"one degree of latitude", Point{0, 0}, Point{1, 0}, 111.19, 0.05},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.InDelta(t, tt.expected, tt.a.DistanceTo(tt.b), tt.delta)
		})
	}
}

func TestDistance_MonotonicAlongMeridian(t *testing.T) {
	t.Parallel()

	prev := 0.0
	for lat := 0.5; lat <= 10; lat += 0.5 {
		d := Distance(0, 0, lat, 0)
		require.Greater(t, d, prev)
		prev = d
	}
}

func TestPoint_Valid(t *testing.T) {
	t.Parallel()

	require.True(t, Point{Lat: 41, Lon: 29}.Valid())
	require.True(t, Point{Lat: -90, Lon: 180}.Valid())
	require.False(t, Point{Lat: 91, Lon: 0}.Valid())
	require.False(t, Point{Lat: 0, Lon: -181}.Valid())
}
