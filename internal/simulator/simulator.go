// Package simulator moves a responder unit along a precomputed polyline,
// one vertex per tick, spreading the supplied total duration evenly over
// the polyline's vertices and recomputing the remaining ETA on every tick.
package simulator

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/asistentevial/eta-worker/internal/calculator"
)

// Status represents the state of a simulation
type Status string

// Status constants define the simulation lifecycle
const (
	StatusIdle    Status = "idle"
	StatusEnRoute Status = "en_route"
	StatusArrived Status = "arrived"
)

var (
	// ErrInvalidSimulationInput is returned by Start for a polyline shorter
	// than two points or a non-positive duration. It is never retried.
	ErrInvalidSimulationInput = errors.New("invalid simulation input")
	// ErrSimulationActive is returned by Start when a simulation is already
	// running or has arrived and was not cancelled.
	ErrSimulationActive = errors.New("simulation already active")
	// ErrNotRunning is returned by Run when there is nothing to drive.
	ErrNotRunning = errors.New("simulation not running")
)

// Unit is a snapshot of the simulated responder
type Unit struct {
	Status              Status                `json:"status"`
	CurrentPosition     calculator.Coordinate `json:"current_position"`
	StepIndex           int                   `json:"step_index"`
	TotalSteps          int                   `json:"total_steps"`
	RemainingETASeconds float64               `json:"remaining_eta_seconds"`
	RemainingDistanceKM float64               `json:"remaining_distance_km"`
}

// Simulator owns one simulated unit. Tick is the only mutator of the unit
// while en route; Cancel tears it down from any state.
type Simulator struct {
	mu    sync.Mutex
	clock Clock

	status        Status
	polyline      []calculator.Coordinate
	remainingKM   []float64 // remainingKM[i] is the path length from vertex i to the end
	totalDuration float64
	index         int
	remaining     float64

	// stop is closed by Cancel so a running Run returns
	stop chan struct{}
}

// New creates an idle simulator driven by the given clock.
// A nil clock uses the wall clock.
func New(clock Clock) *Simulator {
	if clock == nil {
		clock = RealClock{}
	}
	return &Simulator{
		clock:  clock,
		status: StatusIdle,
	}
}

// Start moves the simulator from Idle to EnRoute at the polyline's first point
func (s *Simulator) Start(polyline []calculator.Coordinate, totalDurationSeconds float64) error {
	if len(polyline) < 2 {
		return fmt.Errorf("%w: polyline needs at least 2 points, got %d", ErrInvalidSimulationInput, len(polyline))
	}
	if math.IsNaN(totalDurationSeconds) || math.IsInf(totalDurationSeconds, 0) || totalDurationSeconds <= 0 {
		return fmt.Errorf("%w: duration must be positive, got %v", ErrInvalidSimulationInput, totalDurationSeconds)
	}
	for i, c := range polyline {
		if err := c.Validate(); err != nil {
			return fmt.Errorf("%w: point %d: %v", ErrInvalidSimulationInput, i, err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != StatusIdle {
		return ErrSimulationActive
	}

	s.polyline = append([]calculator.Coordinate(nil), polyline...)
	s.remainingKM = make([]float64, len(polyline))
	for i := len(polyline) - 2; i >= 0; i-- {
		s.remainingKM[i] = s.remainingKM[i+1] + calculator.DistanceKM(polyline[i], polyline[i+1])
	}
	s.totalDuration = totalDurationSeconds
	s.index = 0
	s.remaining = totalDurationSeconds
	s.status = StatusEnRoute
	s.stop = make(chan struct{})

	return nil
}

// Tick advances the unit one polyline vertex and returns the new snapshot.
// It does nothing unless the simulation is en route.
func (s *Simulator) Tick() Unit {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != StatusEnRoute {
		return s.snapshotLocked()
	}

	totalSteps := len(s.polyline)
	s.index++

	if s.index >= totalSteps-1 {
		s.index = totalSteps - 1
		s.remaining = 0
		s.status = StatusArrived
	} else {
		s.remaining = s.totalDuration * (1 - float64(s.index)/float64(totalSteps))
	}

	return s.snapshotLocked()
}

// Cancel stops ticking and discards the simulation. Calling it while idle
// is a no-op.
func (s *Simulator) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status == StatusIdle {
		return
	}

	close(s.stop)
	s.stop = nil
	s.polyline = nil
	s.remainingKM = nil
	s.totalDuration = 0
	s.index = 0
	s.remaining = 0
	s.status = StatusIdle
}

// TickInterval is the time between vertices: total duration over segments
func (s *Simulator) TickInterval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.tickIntervalLocked()
}

func (s *Simulator) tickIntervalLocked() time.Duration {
	if len(s.polyline) < 2 {
		return 0
	}
	seconds := s.totalDuration / float64(len(s.polyline)-1)
	return time.Duration(seconds * float64(time.Second))
}

// Status returns the current state
func (s *Simulator) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.status
}

// Polyline returns a copy of the route being driven, nil while idle
func (s *Simulator) Polyline() []calculator.Coordinate {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.polyline == nil {
		return nil
	}
	return append([]calculator.Coordinate(nil), s.polyline...)
}

// Snapshot returns a copy of the unit's current state
func (s *Simulator) Snapshot() Unit {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.snapshotLocked()
}

func (s *Simulator) snapshotLocked() Unit {
	if s.status == StatusIdle {
		return Unit{Status: StatusIdle}
	}

	return Unit{
		Status:              s.status,
		CurrentPosition:     s.polyline[s.index],
		StepIndex:           s.index,
		TotalSteps:          len(s.polyline),
		RemainingETASeconds: s.remaining,
		RemainingDistanceKM: s.remainingKM[s.index],
	}
}

// Run ticks the simulation at TickInterval until the unit arrives, the
// simulation is cancelled or ctx is done. onTick, when set, receives every
// snapshot produced by a tick. Run returns nil on arrival, ErrNotRunning
// when cancelled and ctx.Err() when the context ends first.
func (s *Simulator) Run(ctx context.Context, onTick func(Unit)) error {
	s.mu.Lock()
	if s.status != StatusEnRoute {
		s.mu.Unlock()
		return ErrNotRunning
	}
	stop := s.stop
	interval := s.tickIntervalLocked()
	s.mu.Unlock()

	if interval <= 0 {
		interval = time.Nanosecond
	}

	ticker := s.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return ErrNotRunning
		case <-ticker.C():
			// Cancel may have raced with the tick
			select {
			case <-stop:
				return ErrNotRunning
			default:
			}

			unit := s.Tick()
			if unit.Status == StatusIdle {
				return ErrNotRunning
			}
			if onTick != nil {
				onTick(unit)
			}
			if unit.Status == StatusArrived {
				return nil
			}
		}
	}
}
