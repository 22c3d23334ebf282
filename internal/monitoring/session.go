package monitoring

import (
	"context"
	"sync"
	"time"

	"github.com/asistentevial/eta-worker/internal/calculator"
	"github.com/asistentevial/eta-worker/internal/simulator"
)

// subscriberBuffer is how many snapshots a slow subscriber may lag behind
const subscriberBuffer = 16

// Session is one SOS/assistance monitoring session. It exclusively owns
// its simulator.
type Session struct {
	ID              string
	Origin          calculator.Coordinate
	Destination     calculator.Coordinate
	Provider        string
	RouteDistanceKM float64
	DurationSeconds float64
	CreatedAt       time.Time

	polyline []calculator.Coordinate
	sim      *simulator.Simulator
	cancel   context.CancelFunc
	done     chan struct{}

	mu        sync.Mutex
	arrivedAt *time.Time
	finished  bool
	subs      map[uint64]chan simulator.Unit
	nextSub   uint64
}

// Snapshot is a read-only view of a session and its unit
type Snapshot struct {
	ID                string                `json:"id"`
	Origin            calculator.Coordinate `json:"origin"`
	Destination       calculator.Coordinate `json:"destination"`
	Provider          string                `json:"provider"`
	RouteDistanceKM   float64               `json:"route_distance_km"`
	DurationSeconds   float64               `json:"duration_seconds"`
	CreatedAt         time.Time             `json:"created_at"`
	ArrivedAt         *time.Time            `json:"arrived_at,omitempty"`
	Unit              simulator.Unit        `json:"unit"`
	ETA               string                `json:"eta"`
	RemainingDistance string                `json:"remaining_distance"`

	// Polyline is the full route; list views leave it out
	Polyline []calculator.Coordinate `json:"polyline,omitempty"`
}

func newSession(id string, origin, destination calculator.Coordinate, sim *simulator.Simulator) *Session {
	return &Session{
		ID:          id,
		Origin:      origin,
		Destination: destination,
		CreatedAt:   time.Now().UTC(),
		polyline:    sim.Polyline(),
		sim:         sim,
		done:        make(chan struct{}),
		subs:        make(map[uint64]chan simulator.Unit),
	}
}

// Snapshot returns the session's current state including its route
func (s *Session) Snapshot() Snapshot {
	snap := s.summary()
	snap.Polyline = append([]calculator.Coordinate(nil), s.polyline...)
	return snap
}

// summary is Snapshot without the polyline
func (s *Session) summary() Snapshot {
	unit := s.sim.Snapshot()

	s.mu.Lock()
	var arrivedAt *time.Time
	if s.arrivedAt != nil {
		t := *s.arrivedAt
		arrivedAt = &t
	}
	s.mu.Unlock()

	return Snapshot{
		ID:                s.ID,
		Origin:            s.Origin,
		Destination:       s.Destination,
		Provider:          s.Provider,
		RouteDistanceKM:   s.RouteDistanceKM,
		DurationSeconds:   s.DurationSeconds,
		CreatedAt:         s.CreatedAt,
		ArrivedAt:         arrivedAt,
		Unit:              unit,
		ETA:               calculator.FormatDuration(unit.RemainingETASeconds),
		RemainingDistance: calculator.FormatDistanceKM(unit.RemainingDistanceKM),
	}
}

// subscribe registers a snapshot listener. When the session has already
// finished the returned channel is closed immediately.
func (s *Session) subscribe() (<-chan simulator.Unit, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan simulator.Unit, subscriberBuffer)
	if s.finished {
		close(ch)
		return ch, func() {}
	}

	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch

	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if c, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(c)
		}
	}
}

// broadcast delivers u to every subscriber, dropping it for those whose
// buffer is full
func (s *Session) broadcast(u simulator.Unit) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, ch := range s.subs {
		select {
		case ch <- u:
		default:
		}
	}
}

func (s *Session) markArrived() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	s.arrivedAt = &now
}

// finish closes all subscriber channels; later subscribers get a closed one
func (s *Session) finish() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.finished = true
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
}
