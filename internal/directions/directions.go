// Package directions obtains the polyline and travel duration that feed a
// simulated unit, from OSRM, the Google Directions API or a straight line.
package directions

import (
	"context"
	"errors"

	"github.com/asistentevial/eta-worker/internal/calculator"
)

// ErrNoRoute is returned when a provider answers but has no usable route
var ErrNoRoute = errors.New("no route found")

// Directions is a provider's answer reduced to what the simulator needs
type Directions struct {
	Polyline        []calculator.Coordinate
	DurationSeconds float64
	DistanceKM      float64
	Provider        string
}

// Provider looks up a driving route between two coordinates
type Provider interface {
	Route(ctx context.Context, origin, destination calculator.Coordinate) (*Directions, error)
	Name() string
}

// StraightLineProvider degrades to the great-circle segment between the two
// points, timed at a fixed average speed.
type StraightLineProvider struct {
	AverageSpeedKMH float64
}

// Name identifies the provider in logs and events
func (StraightLineProvider) Name() string { return "straight_line" }

// Route returns [origin, destination] and the GeoMetrics duration estimate
func (p StraightLineProvider) Route(_ context.Context, origin, destination calculator.Coordinate) (*Directions, error) {
	distance := calculator.DistanceKM(origin, destination)
	if distance == 0 {
		return nil, ErrNoRoute
	}

	return &Directions{
		Polyline:        []calculator.Coordinate{origin, destination},
		DurationSeconds: calculator.EstimateDurationMinutes(distance, p.AverageSpeedKMH) * 60,
		DistanceKM:      distance,
		Provider:        p.Name(),
	}, nil
}
