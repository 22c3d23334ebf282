// Package route sums haversine legs over an ordered list of waypoints
// (origin first, then stops) and keeps the summary in step with edits.
package route

import (
	"github.com/asistentevial/eta-worker/internal/calculator"
)

// Waypoint is a coordinate with an optional label, e.g. a named stop
type Waypoint struct {
	calculator.Coordinate
	Label string `json:"label,omitempty"`
}

// Route is an ordered sequence [origin, stop_1, ..., stop_n]
type Route []Waypoint

// Coordinates returns the route's coordinates in order
func (r Route) Coordinates() []calculator.Coordinate {
	coords := make([]calculator.Coordinate, len(r))
	for i, wp := range r {
		coords[i] = wp.Coordinate
	}
	return coords
}

// Leg is the straight-line distance between two consecutive waypoints
type Leg struct {
	From       string  `json:"from"`
	To         string  `json:"to"`
	DistanceKM float64 `json:"distance_km"`
	Distance   string  `json:"distance"`
}

// Summary is derived from a Route and never edited on its own
type Summary struct {
	TotalDistanceKM          float64 `json:"total_distance_km"`
	TotalStops               int     `json:"total_stops"`
	EstimatedDurationMinutes float64 `json:"estimated_duration_minutes"`
	Legs                     []Leg   `json:"legs"`
}

// Distance renders the total distance with the same rounding as each Leg
func (s Summary) Distance() string {
	return calculator.FormatDistanceKM(s.TotalDistanceKM)
}

// Duration renders the estimated duration
func (s Summary) Duration() string {
	return calculator.FormatDuration(s.EstimatedDurationMinutes * 60)
}

// Summarize walks the route pairwise and sums the leg distances.
// An origin-only (or empty) route yields a zero summary for any speed.
func Summarize(r Route, averageSpeedKMH float64) Summary {
	summary := Summary{Legs: []Leg{}}
	if len(r) < 2 {
		return summary
	}

	var total float64
	for i := 1; i < len(r); i++ {
		d := calculator.DistanceKM(r[i-1].Coordinate, r[i].Coordinate)
		total += d
		summary.Legs = append(summary.Legs, Leg{
			From:       label(r, i-1),
			To:         label(r, i),
			DistanceKM: d,
			Distance:   calculator.FormatDistanceKM(d),
		})
	}

	summary.TotalDistanceKM = total
	summary.TotalStops = len(r) - 1
	summary.EstimatedDurationMinutes = calculator.EstimateDurationMinutes(total, averageSpeedKMH)

	return summary
}

func label(r Route, i int) string {
	if r[i].Label != "" {
		return r[i].Label
	}
	return r[i].Coordinate.String()
}
