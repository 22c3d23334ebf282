package route

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asistentevial/eta-worker/internal/calculator"
)

var (
	origin = Waypoint{Coordinate: calculator.Coordinate{Latitude: 19.4326, Longitude: -99.1332}, Label: "Zócalo"}
	stopB  = Waypoint{Coordinate: calculator.Coordinate{Latitude: 19.4270, Longitude: -99.1677}, Label: "Reforma"}
	stopC  = Waypoint{Coordinate: calculator.Coordinate{Latitude: 19.3600, Longitude: -99.1800}}
)

func TestSummarize_OriginOnly(t *testing.T) {
	for _, speed := range []float64{60, 0, -5} {
		got := Summarize(Route{origin}, speed)
		want := Summary{Legs: []Leg{}}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("Summarize(origin only, %v) mismatch (-want +got):\n%s", speed, diff)
		}
	}
}

func TestSummarize_Empty(t *testing.T) {
	got := Summarize(nil, 60)
	assert.Zero(t, got.TotalDistanceKM)
	assert.Zero(t, got.TotalStops)
	assert.Zero(t, got.EstimatedDurationMinutes)
}

func TestSummarize_Additivity(t *testing.T) {
	got := Summarize(Route{origin, stopB, stopC}, 60)

	ab := calculator.DistanceKM(origin.Coordinate, stopB.Coordinate)
	bc := calculator.DistanceKM(stopB.Coordinate, stopC.Coordinate)

	want := Summary{
		TotalDistanceKM:          ab + bc,
		TotalStops:               2,
		EstimatedDurationMinutes: (ab + bc) / 60 * 60,
		Legs: []Leg{
			{From: "Zócalo", To: "Reforma", DistanceKM: ab, Distance: calculator.FormatDistanceKM(ab)},
			{From: "Reforma", To: stopC.Coordinate.String(), DistanceKM: bc, Distance: calculator.FormatDistanceKM(bc)},
		},
	}

	if diff := cmp.Diff(want, got, cmpopts.EquateApprox(0, 1e-9)); diff != "" {
		t.Errorf("Summarize() mismatch (-want +got):\n%s", diff)
	}
}

func TestSummarize_DurationUsesSpeed(t *testing.T) {
	r := Route{origin, stopB}
	slow := Summarize(r, 30)
	fast := Summarize(r, 90)

	assert.Greater(t, slow.EstimatedDurationMinutes, fast.EstimatedDurationMinutes)
	assert.InDelta(t, slow.TotalDistanceKM, fast.TotalDistanceKM, 1e-12)

	stopped := Summarize(r, 0)
	assert.True(t, math.IsInf(stopped.EstimatedDurationMinutes, 1))
}

func TestSummary_Formatting(t *testing.T) {
	s := Summarize(Route{origin, stopB}, 60)
	assert.Equal(t, "3.7 km", s.Distance())
	assert.Equal(t, "4 min", s.Duration())
	assert.Equal(t, s.Distance(), s.Legs[0].Distance)
}

func TestRoute_Coordinates(t *testing.T) {
	coords := Route{origin, stopB}.Coordinates()
	require.Len(t, coords, 2)
	assert.Equal(t, origin.Coordinate, coords[0])
	assert.Equal(t, stopB.Coordinate, coords[1])
}
