package route

import (
	"errors"
	"fmt"
)

var (
	// ErrStopIndexOutOfRange is returned when a stop index does not exist
	ErrStopIndexOutOfRange = errors.New("stop index out of range")
	// ErrNoOrigin is returned when stops are added before an origin
	ErrNoOrigin = errors.New("route has no origin")
)

// Planner owns one route being built interactively and recomputes the
// summary after every structural change. Stop indexes are 0-based and
// exclude the origin. A Planner is not safe for concurrent use.
type Planner struct {
	route           Route
	averageSpeedKMH float64
	summary         Summary
}

// NewPlanner creates an empty planner
func NewPlanner(averageSpeedKMH float64) *Planner {
	p := &Planner{averageSpeedKMH: averageSpeedKMH}
	p.recompute()
	return p
}

// SetOrigin sets or replaces the origin
func (p *Planner) SetOrigin(origin Waypoint) error {
	if err := origin.Validate(); err != nil {
		return err
	}
	if len(p.route) == 0 {
		p.route = Route{origin}
	} else {
		p.route[0] = origin
	}
	p.recompute()
	return nil
}

// AddStop appends a stop after the last one
func (p *Planner) AddStop(stop Waypoint) error {
	if len(p.route) == 0 {
		return ErrNoOrigin
	}
	if err := stop.Validate(); err != nil {
		return err
	}
	p.route = append(p.route, stop)
	p.recompute()
	return nil
}

// RemoveStop removes the stop at index i
func (p *Planner) RemoveStop(i int) error {
	if i < 0 || i >= p.Stops() {
		return fmt.Errorf("%w: %d", ErrStopIndexOutOfRange, i)
	}
	pos := i + 1
	p.route = append(p.route[:pos], p.route[pos+1:]...)
	p.recompute()
	return nil
}

// MoveStop moves the stop at index from so it ends up at index to
func (p *Planner) MoveStop(from, to int) error {
	n := p.Stops()
	if from < 0 || from >= n {
		return fmt.Errorf("%w: %d", ErrStopIndexOutOfRange, from)
	}
	if to < 0 || to >= n {
		return fmt.Errorf("%w: %d", ErrStopIndexOutOfRange, to)
	}
	if from == to {
		return nil
	}

	stop := p.route[from+1]
	rest := append(Route{}, p.route[:from+1]...)
	rest = append(rest, p.route[from+2:]...)

	pos := to + 1
	p.route = append(rest[:pos], append(Route{stop}, rest[pos:]...)...)
	p.recompute()
	return nil
}

// Clear drops all stops, keeping the origin
func (p *Planner) Clear() {
	if len(p.route) > 1 {
		p.route = p.route[:1]
	}
	p.recompute()
}

// Stops returns the number of stops, excluding the origin
func (p *Planner) Stops() int {
	if len(p.route) == 0 {
		return 0
	}
	return len(p.route) - 1
}

// Route returns a copy of the current route
func (p *Planner) Route() Route {
	return append(Route{}, p.route...)
}

// Summary returns the summary of the current route
func (p *Planner) Summary() Summary {
	return p.summary
}

func (p *Planner) recompute() {
	p.summary = Summarize(p.route, p.averageSpeedKMH)
}

