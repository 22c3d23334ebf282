// Package database persists named multi-stop routes ("saved routes") in
// PostgreSQL, with an in-memory store for tests and single-node setups.
package database

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/asistentevial/eta-worker/internal/route"
)

var (
	// ErrNotFound is returned when a saved route does not exist
	ErrNotFound = errors.New("saved route not found")
	// ErrInvalidRoute is returned by Save for routes that cannot be summarized
	ErrInvalidRoute = errors.New("invalid saved route")
)

// SavedRoute is a named route with its summary as computed at save time
type SavedRoute struct {
	ID              string        `json:"id"`
	Name            string        `json:"name"`
	Waypoints       route.Route   `json:"waypoints"`
	AverageSpeedKMH float64       `json:"average_speed_kmh"`
	Summary         route.Summary `json:"summary"`
	CreatedAt       time.Time     `json:"created_at"`
}

// RouteStore persists saved routes
type RouteStore interface {
	Save(ctx context.Context, r *SavedRoute) error
	Get(ctx context.Context, id string) (*SavedRoute, error)
	List(ctx context.Context, limit, offset int) ([]SavedRoute, error)
	Delete(ctx context.Context, id string) error
	HealthCheck(ctx context.Context) error
	Close() error
}

// prepare validates r, assigns an id and creation time and recomputes the
// summary
func prepare(r *SavedRoute) error {
	if len(r.Waypoints) == 0 {
		return fmt.Errorf("%w: no waypoints", ErrInvalidRoute)
	}
	if r.AverageSpeedKMH <= 0 {
		return fmt.Errorf("%w: average speed must be positive", ErrInvalidRoute)
	}
	for i, wp := range r.Waypoints {
		if err := wp.Validate(); err != nil {
			return fmt.Errorf("%w: waypoint %d: %v", ErrInvalidRoute, i, err)
		}
	}

	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	r.Summary = route.Summarize(r.Waypoints, r.AverageSpeedKMH)
	return nil
}

// MemoryStore keeps saved routes in process memory
type MemoryStore struct {
	mu     sync.RWMutex
	routes map[string]SavedRoute
}

// NewMemoryStore creates an empty MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{routes: make(map[string]SavedRoute)}
}

// Save inserts or replaces r, filling ID, CreatedAt and Summary
func (s *MemoryStore) Save(_ context.Context, r *SavedRoute) error {
	if err := prepare(r); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *r
	stored.Waypoints = append(route.Route(nil), r.Waypoints...)
	s.routes[r.ID] = stored
	return nil
}

// Get returns a copy of the saved route
func (s *MemoryStore) Get(_ context.Context, id string) (*SavedRoute, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.routes[id]
	if !ok {
		return nil, ErrNotFound
	}
	r.Waypoints = append(route.Route(nil), r.Waypoints...)
	return &r, nil
}

// List returns saved routes newest first
func (s *MemoryStore) List(_ context.Context, limit, offset int) ([]SavedRoute, error) {
	s.mu.RLock()
	all := make([]SavedRoute, 0, len(s.routes))
	for _, r := range s.routes {
		all = append(all, r)
	}
	s.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	if offset < 0 {
		offset = 0
	}
	if offset >= len(all) {
		return []SavedRoute{}, nil
	}
	end := len(all)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}

	return all[offset:end], nil
}

// Delete removes a saved route
func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.routes[id]; !ok {
		return ErrNotFound
	}
	delete(s.routes, id)
	return nil
}

// HealthCheck always succeeds
func (s *MemoryStore) HealthCheck(context.Context) error { return nil }

// Close does nothing
func (s *MemoryStore) Close() error { return nil }
