package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/asistentevial/eta-worker/internal/route"
)

const schema = `
CREATE TABLE IF NOT EXISTS saved_routes (
	id                         UUID PRIMARY KEY,
	name                       TEXT NOT NULL,
	waypoints                  JSONB NOT NULL,
	average_speed_kmh          DOUBLE PRECISION NOT NULL,
	total_distance_km          DOUBLE PRECISION NOT NULL,
	total_stops                INTEGER NOT NULL,
	estimated_duration_minutes DOUBLE PRECISION NOT NULL,
	created_at                 TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS saved_routes_created_at_idx ON saved_routes (created_at DESC);
`

// Client is a PostgreSQL-backed RouteStore
type Client struct {
	db *sql.DB
}

// NewClient creates a new database client with connection pooling
func NewClient(dsn string) (*Client, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(1 * time.Minute)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to ping database: %w (also failed to close: %w)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Client{db: db}, nil
}

// EnsureSchema creates the saved_routes table if it does not exist
func (c *Client) EnsureSchema(ctx context.Context) error {
	if _, err := c.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Close closes the database connection
func (c *Client) Close() error {
	return c.db.Close()
}

// Save upserts a saved route
func (c *Client) Save(ctx context.Context, r *SavedRoute) error {
	if err := prepare(r); err != nil {
		return err
	}

	waypoints, err := json.Marshal(r.Waypoints)
	if err != nil {
		return fmt.Errorf("failed to encode waypoints: %w", err)
	}

	query := `
		INSERT INTO saved_routes (
			id, name, waypoints, average_speed_kmh,
			total_distance_km, total_stops, estimated_duration_minutes, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			waypoints = EXCLUDED.waypoints,
			average_speed_kmh = EXCLUDED.average_speed_kmh,
			total_distance_km = EXCLUDED.total_distance_km,
			total_stops = EXCLUDED.total_stops,
			estimated_duration_minutes = EXCLUDED.estimated_duration_minutes
	`

	_, err = c.db.ExecContext(ctx, query,
		r.ID,
		r.Name,
		waypoints,
		r.AverageSpeedKMH,
		r.Summary.TotalDistanceKM,
		r.Summary.TotalStops,
		r.Summary.EstimatedDurationMinutes,
		r.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert failed: %w", err)
	}

	return nil
}

// Get retrieves a saved route by id; legs are recomputed from the waypoints
func (c *Client) Get(ctx context.Context, id string) (*SavedRoute, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}

	query := `
		SELECT id, name, waypoints, average_speed_kmh, created_at
		FROM saved_routes
		WHERE id = $1
	`

	r, err := scanRoute(c.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}

	return r, nil
}

// List returns saved routes newest first
func (c *Client) List(ctx context.Context, limit, offset int) ([]SavedRoute, error) {
	query := `
		SELECT id, name, waypoints, average_speed_kmh, created_at
		FROM saved_routes
		ORDER BY created_at DESC
		OFFSET $1
	`
	args := []interface{}{max(offset, 0)}

	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer func() { _ = rows.Close() }() // nolint:errcheck // Close in defer, error not actionable

	routes := []SavedRoute{}
	for rows.Next() {
		r, err := scanRoute(rows)
		if err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		routes = append(routes, *r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}

	return routes, nil
}

// Delete removes a saved route
func (c *Client) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrNotFound
	}

	res, err := c.db.ExecContext(ctx, `DELETE FROM saved_routes WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete failed: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete failed: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}

	return nil
}

// HealthCheck verifies database connectivity
func (c *Client) HealthCheck(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRoute(row rowScanner) (*SavedRoute, error) {
	var r SavedRoute
	var waypoints []byte

	if err := row.Scan(&r.ID, &r.Name, &waypoints, &r.AverageSpeedKMH, &r.CreatedAt); err != nil {
		return nil, err
	}

	if err := json.Unmarshal(waypoints, &r.Waypoints); err != nil {
		return nil, fmt.Errorf("failed to decode waypoints: %w", err)
	}
	r.Summary = route.Summarize(r.Waypoints, r.AverageSpeedKMH)
	r.CreatedAt = r.CreatedAt.UTC()

	return &r, nil
}
