package route

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asistentevial/eta-worker/internal/calculator"
)

func newTestPlanner(t *testing.T, stops ...Waypoint) *Planner {
	t.Helper()

	p := NewPlanner(60)
	require.NoError(t, p.SetOrigin(origin))
	for _, s := range stops {
		require.NoError(t, p.AddStop(s))
	}
	return p
}

func TestPlanner_AddStopRecomputes(t *testing.T) {
	p := NewPlanner(60)
	assert.Zero(t, p.Summary().TotalStops)

	err := p.AddStop(stopB)
	assert.ErrorIs(t, err, ErrNoOrigin)

	require.NoError(t, p.SetOrigin(origin))
	require.NoError(t, p.AddStop(stopB))

	assert.Equal(t, 1, p.Summary().TotalStops)
	assert.InDelta(t, calculator.DistanceKM(origin.Coordinate, stopB.Coordinate), p.Summary().TotalDistanceKM, 1e-9)
}

func TestPlanner_RejectsInvalidWaypoint(t *testing.T) {
	p := newTestPlanner(t)

	err := p.AddStop(Waypoint{Coordinate: calculator.Coordinate{Latitude: 120}})
	assert.ErrorIs(t, err, calculator.ErrInvalidCoordinate)
	assert.Equal(t, 0, p.Stops())
}

func TestPlanner_RemoveStop(t *testing.T) {
	p := newTestPlanner(t, stopB, stopC)

	require.NoError(t, p.RemoveStop(0))
	assert.Equal(t, Route{origin, stopC}, p.Route())
	assert.InDelta(t, calculator.DistanceKM(origin.Coordinate, stopC.Coordinate), p.Summary().TotalDistanceKM, 1e-9)

	assert.ErrorIs(t, p.RemoveStop(1), ErrStopIndexOutOfRange)
	assert.ErrorIs(t, p.RemoveStop(-1), ErrStopIndexOutOfRange)
}

func TestPlanner_MoveStop(t *testing.T) {
	stopD := Waypoint{Coordinate: calculator.Coordinate{Latitude: 19.50, Longitude: -99.10}, Label: "D"}
	p := newTestPlanner(t, stopB, stopC, stopD)

	require.NoError(t, p.MoveStop(2, 0))
	assert.Equal(t, Route{origin, stopD, stopB, stopC}, p.Route())

	require.NoError(t, p.MoveStop(0, 2))
	assert.Equal(t, Route{origin, stopB, stopC, stopD}, p.Route())

	want := Summarize(Route{origin, stopB, stopC, stopD}, 60)
	assert.InDelta(t, want.TotalDistanceKM, p.Summary().TotalDistanceKM, 1e-9)

	assert.ErrorIs(t, p.MoveStop(0, 3), ErrStopIndexOutOfRange)
}

func TestPlanner_Clear(t *testing.T) {
	p := newTestPlanner(t, stopB, stopC)

	p.Clear()

	assert.Equal(t, Route{origin}, p.Route())
	assert.Zero(t, p.Summary().TotalDistanceKM)
	assert.Zero(t, p.Summary().EstimatedDurationMinutes)
}

func TestPlanner_RouteIsCopy(t *testing.T) {
	p := newTestPlanner(t, stopB)

	r := p.Route()
	r[1].Label = "changed"

	assert.Equal(t, "Reforma", p.Route()[1].Label)
}
