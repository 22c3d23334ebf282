// Package monitoring runs live-tracking sessions: it obtains a route from a
// directions provider, hands it to a unit simulator and fans the unit's
// snapshots out to subscribers, telemetry and lifecycle events.
package monitoring

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/asistentevial/eta-worker/internal/calculator"
	"github.com/asistentevial/eta-worker/internal/directions"
	"github.com/asistentevial/eta-worker/internal/messaging"
	"github.com/asistentevial/eta-worker/internal/simulator"
	"github.com/asistentevial/eta-worker/internal/telemetry"
)

var (
	// ErrRoutingUnavailable means no usable route could be obtained; no
	// simulation was started
	ErrRoutingUnavailable = errors.New("routing unavailable")
	// ErrSessionNotFound is returned for unknown session ids
	ErrSessionNotFound = errors.New("session not found")
	// ErrTooManySessions is returned when MaxSessions are active
	ErrTooManySessions = errors.New("too many active sessions")
	// ErrShuttingDown is returned by StartSession once Shutdown was called
	ErrShuttingDown = errors.New("monitoring manager is shutting down")
)

// Options tunes a Manager
type Options struct {
	// AverageSpeedKMH times the straight-line fallback
	AverageSpeedKMH float64
	// FallbackStraightLine degrades to a straight segment when routing fails
	FallbackStraightLine bool
	// MaxRetries is the number of retries after the first directions request
	MaxRetries int
	// RetryInitialInterval is the first backoff delay
	RetryInitialInterval time.Duration
	// MaxSessions caps concurrent sessions; 0 means unlimited
	MaxSessions int
	// Clock drives the simulators; nil uses the wall clock
	Clock simulator.Clock
}

// Manager owns every active monitoring session
type Manager struct {
	sessions  cmap.ConcurrentMap[string, *Session]
	provider  directions.Provider
	fallback  directions.Provider
	publisher messaging.Publisher
	sink      telemetry.PositionSink
	opts      Options
	logger    zerolog.Logger
	tracer    trace.Tracer

	// slots counts registered sessions plus starts still waiting on directions
	slots atomic.Int64

	mu     sync.Mutex
	closed bool
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewManager creates a session manager
func NewManager(provider directions.Provider, publisher messaging.Publisher, sink telemetry.PositionSink, opts Options, logger zerolog.Logger) *Manager {
	if publisher == nil {
		publisher = messaging.NewLogPublisher(logger)
	}
	if sink == nil {
		sink = telemetry.NopSink{}
	}
	if opts.RetryInitialInterval <= 0 {
		opts.RetryInitialInterval = 200 * time.Millisecond
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		sessions:  cmap.New[*Session](),
		provider:  provider,
		publisher: publisher,
		sink:      sink,
		opts:      opts,
		logger:    logger,
		tracer:    otel.Tracer("github.com/asistentevial/eta-worker/internal/monitoring"),
		ctx:       ctx,
		cancel:    cancel,
	}
	if opts.FallbackStraightLine {
		m.fallback = directions.StraightLineProvider{AverageSpeedKMH: opts.AverageSpeedKMH}
	}

	return m
}

// StartSession looks up a route from origin to destination and starts a
// simulated unit along it
func (m *Manager) StartSession(ctx context.Context, origin, destination calculator.Coordinate) (Snapshot, error) {
	if err := origin.Validate(); err != nil {
		return Snapshot{}, fmt.Errorf("origin: %w", err)
	}
	if err := destination.Validate(); err != nil {
		return Snapshot{}, fmt.Errorf("destination: %w", err)
	}
	if m.ctx.Err() != nil {
		return Snapshot{}, ErrShuttingDown
	}
	if !m.reserveSlot() {
		return Snapshot{}, ErrTooManySessions
	}
	registered := false
	defer func() {
		if !registered {
			m.slots.Add(-1)
		}
	}()

	ctx, span := m.tracer.Start(ctx, "monitoring.StartSession")
	defer span.End()

	id := uuid.New().String()
	span.SetAttributes(attribute.String("session.id", id))

	dirs, err := m.lookup(ctx, origin, destination)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "routing unavailable")

		m.logger.Warn().Err(err).Str("session_id", id).Msg("Could not calculate route")
		m.publish(messaging.SessionRoutingFailed, messaging.SessionEvent{
			SessionID:   id,
			Origin:      origin,
			Destination: destination,
			Error:       err.Error(),
		})
		return Snapshot{}, fmt.Errorf("%w: %v", ErrRoutingUnavailable, err)
	}

	sim := simulator.New(m.opts.Clock)
	if err := sim.Start(dirs.Polyline, dirs.DurationSeconds); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid simulation input")
		return Snapshot{}, err
	}

	sess := newSession(id, origin, destination, sim)
	sess.Provider = dirs.Provider
	sess.RouteDistanceKM = dirs.DistanceKM
	sess.DurationSeconds = dirs.DurationSeconds

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		sim.Cancel()
		return Snapshot{}, ErrShuttingDown
	}
	runCtx, cancel := context.WithCancel(m.ctx)
	sess.cancel = cancel
	m.sessions.Set(id, sess)
	m.wg.Add(1)
	registered = true
	m.mu.Unlock()

	go m.run(runCtx, sess)

	m.logger.Info().
		Str("session_id", id).
		Str("provider", dirs.Provider).
		Int("polyline_points", len(dirs.Polyline)).
		Float64("duration_seconds", dirs.DurationSeconds).
		Dur("tick_interval", sim.TickInterval()).
		Msg("Monitoring session started")

	m.publish(messaging.SessionStarted, messaging.SessionEvent{
		SessionID:           id,
		Origin:              origin,
		Destination:         destination,
		Provider:            dirs.Provider,
		RemainingETASeconds: dirs.DurationSeconds,
	})

	return sess.Snapshot(), nil
}

// reserveSlot claims room for one more session under MaxSessions
func (m *Manager) reserveSlot() bool {
	for {
		n := m.slots.Load()
		if m.opts.MaxSessions > 0 && n >= int64(m.opts.MaxSessions) {
			return false
		}
		if m.slots.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

// lookup asks the provider with exponential backoff and falls back to a
// straight line when configured
func (m *Manager) lookup(ctx context.Context, origin, destination calculator.Coordinate) (*directions.Directions, error) {
	ctx, span := m.tracer.Start(ctx, "directions.Route", trace.WithAttributes(
		attribute.String("directions.provider", m.provider.Name()),
	))
	defer span.End()

	attempt := 0
	op := func() (*directions.Directions, error) {
		attempt++
		d, err := m.provider.Route(ctx, origin, destination)
		if err == nil {
			return d, nil
		}
		if errors.Is(err, directions.ErrNoRoute) {
			return nil, backoff.Permanent(err)
		}
		m.logger.Debug().Err(err).Int("attempt", attempt).Msg("Directions request failed")
		return nil, err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = m.opts.RetryInitialInterval

	d, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(m.opts.MaxRetries+1)),
	)
	span.SetAttributes(attribute.Int("directions.attempts", attempt))
	if err == nil {
		return d, nil
	}

	if m.fallback == nil {
		return nil, err
	}

	m.logger.Warn().Err(err).Msg("Directions unavailable, falling back to straight line")
	fd, ferr := m.fallback.Route(ctx, origin, destination)
	if ferr != nil {
		return nil, errors.Join(err, ferr)
	}
	return fd, nil
}

// run drives the session's simulator until arrival or cancellation
func (m *Manager) run(ctx context.Context, sess *Session) {
	defer m.wg.Done()
	defer close(sess.done)
	defer sess.finish()

	err := sess.sim.Run(ctx, func(u simulator.Unit) {
		if u.Status == simulator.StatusArrived {
			sess.markArrived()
		}
		sess.broadcast(u)

		if err := m.sink.PublishPosition(sess.ID, u); err != nil {
			m.logger.Error().Err(err).Str("session_id", sess.ID).Msg("Failed to publish position")
		}
	})

	switch {
	case err == nil:
		m.logger.Info().Str("session_id", sess.ID).Msg("Unit arrived")
		m.publish(messaging.SessionArrived, messaging.SessionEvent{
			SessionID:   sess.ID,
			Origin:      sess.Origin,
			Destination: sess.Destination,
			Provider:    sess.Provider,
		})
	case errors.Is(err, simulator.ErrNotRunning), errors.Is(err, context.Canceled):
		m.logger.Debug().Str("session_id", sess.ID).Msg("Session run stopped")
	default:
		m.logger.Error().Err(err).Str("session_id", sess.ID).Msg("Session run failed")
	}
}

// GetSession returns a session's current snapshot
func (m *Manager) GetSession(id string) (Snapshot, error) {
	sess, ok := m.sessions.Get(id)
	if !ok {
		return Snapshot{}, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return sess.Snapshot(), nil
}

// ListSessions returns sessions filtered by unit status, newest first
func (m *Manager) ListSessions(status simulator.Status, limit, offset int) []Snapshot {
	filtered := []Snapshot{}
	for _, sess := range m.sessions.Items() {
		snap := sess.summary()
		if status == "" || snap.Unit.Status == status {
			filtered = append(filtered, snap)
		}
	}

	sort.Slice(filtered, func(i, j int) bool {
		return filtered[i].CreatedAt.After(filtered[j].CreatedAt)
	})

	start := offset
	if start < 0 {
		start = 0
	}
	if start > len(filtered) {
		return []Snapshot{}
	}

	end := len(filtered)
	if limit > 0 && start+limit < end {
		end = start + limit
	}

	return filtered[start:end]
}

// CancelSession stops a session's unit (en route or arrived) and discards it
func (m *Manager) CancelSession(id string) error {
	sess, ok := m.sessions.Pop(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	m.slots.Add(-1)

	last := sess.sim.Snapshot()
	sess.sim.Cancel()
	sess.cancel()
	<-sess.done

	m.logger.Info().
		Str("session_id", id).
		Str("status", string(last.Status)).
		Msg("Monitoring session cancelled")

	m.publish(messaging.SessionCancelled, messaging.SessionEvent{
		SessionID:           id,
		Origin:              sess.Origin,
		Destination:         sess.Destination,
		Provider:            sess.Provider,
		RemainingETASeconds: last.RemainingETASeconds,
	})

	return nil
}

// Subscribe streams the session's unit snapshots. The channel is closed when
// the unit arrives, the session is cancelled or unsubscribe is called.
func (m *Manager) Subscribe(id string) (<-chan simulator.Unit, func(), error) {
	sess, ok := m.sessions.Get(id)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	ch, unsubscribe := sess.subscribe()
	return ch, unsubscribe, nil
}

// Stats returns session counts by unit status
func (m *Manager) Stats() map[string]int {
	stats := map[string]int{
		"total":                         0,
		string(simulator.StatusEnRoute): 0,
		string(simulator.StatusArrived): 0,
	}

	for _, sess := range m.sessions.Items() {
		stats["total"]++
		stats[string(sess.sim.Status())]++
	}

	return stats
}

// Shutdown refuses new sessions, stops every running one and waits for
// their goroutines
func (m *Manager) Shutdown(timeout time.Duration) error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()

	m.cancel()
	for _, sess := range m.sessions.Items() {
		sess.sim.Cancel()
	}

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("shutdown timeout exceeded")
	}
}

func (m *Manager) publish(routingKey string, event messaging.SessionEvent) {
	event.OccurredAt = time.Now().UTC()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := m.publisher.Publish(ctx, routingKey, event); err != nil {
		m.logger.Error().Err(err).Str("routing_key", routingKey).Msg("Failed to publish session event")
	}
}
