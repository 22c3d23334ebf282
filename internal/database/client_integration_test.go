//go:build integration

package database

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asistentevial/eta-worker/internal/config"
)

// setupTestClient creates a test database client with the schema in place
func setupTestClient(t *testing.T) (*Client, func()) {
	t.Helper()

	cfg, err := config.Load()
	require.NoError(t, err, "Failed to load config")

	client, err := NewClient(cfg.DatabaseDSN())
	require.NoError(t, err, "Failed to create database client")

	require.NoError(t, client.EnsureSchema(context.Background()))

	cleanup := func() {
		if client != nil {
			client.Close()
		}
	}

	return client, cleanup
}

func TestClient_HealthCheck(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	client, cleanup := setupTestClient(t)
	defer cleanup()

	assert.NoError(t, client.HealthCheck(context.Background()))
}

func TestClient_HealthCheckWithTimeout(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	client, cleanup := setupTestClient(t)
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Nanosecond)
	defer cancel()

	time.Sleep(10 * time.Millisecond) // Ensure timeout expires

	err := client.HealthCheck(ctx)
	assert.Error(t, err, "HealthCheck should fail with expired context")
	assert.Contains(t, err.Error(), "context deadline exceeded")
}

func TestClient_SaveGetDelete(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	client, cleanup := setupTestClient(t)
	defer cleanup()

	ctx := context.Background()

	saved := &SavedRoute{Name: "integration", Waypoints: zocaloToCoyoacan, AverageSpeedKMH: 45}
	require.NoError(t, client.Save(ctx, saved))
	defer func() { _ = client.Delete(ctx, saved.ID) }()

	got, err := client.Get(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, saved.Name, got.Name)
	assert.Equal(t, saved.Waypoints, got.Waypoints)
	assert.InDelta(t, saved.Summary.TotalDistanceKM, got.Summary.TotalDistanceKM, 1e-9)
	assert.WithinDuration(t, saved.CreatedAt, got.CreatedAt, time.Millisecond)

	// upsert keeps the id
	saved.Name = "renamed"
	require.NoError(t, client.Save(ctx, saved))
	got, err = client.Get(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, "renamed", got.Name)

	require.NoError(t, client.Delete(ctx, saved.ID))
	_, err = client.Get(ctx, saved.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, client.Delete(ctx, saved.ID), ErrNotFound)
}

func TestClient_GetUnknownIDs(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	client, cleanup := setupTestClient(t)
	defer cleanup()

	ctx := context.Background()

	for _, id := range []string{uuid.New().String(), "not-a-uuid"} {
		_, err := client.Get(ctx, id)
		assert.ErrorIs(t, err, ErrNotFound, id)
	}
}

func TestClient_ListOrdering(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	client, cleanup := setupTestClient(t)
	defer cleanup()

	ctx := context.Background()

	base := time.Now().UTC().Add(24 * time.Hour)
	var ids []string
	for i := 0; i < 3; i++ {
		r := &SavedRoute{
			Name:            "ordering",
			Waypoints:       zocaloToCoyoacan,
			AverageSpeedKMH: 60,
			CreatedAt:       base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, client.Save(ctx, r))
		ids = append(ids, r.ID)
	}
	defer func() {
		for _, id := range ids {
			_ = client.Delete(ctx, id)
		}
	}()

	routes, err := client.List(ctx, 3, 0)
	require.NoError(t, err)
	require.Len(t, routes, 3)
	assert.Equal(t, []string{ids[2], ids[1], ids[0]}, []string{routes[0].ID, routes[1].ID, routes[2].ID})
}

func TestClient_ConcurrentSaves(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	client, cleanup := setupTestClient(t)
	defer cleanup()

	ctx := context.Background()

	numSaves := 10
	errs := make(chan error, numSaves)
	ids := make(chan string, numSaves)

	for i := 0; i < numSaves; i++ {
		go func() {
			r := &SavedRoute{Name: "concurrent", Waypoints: zocaloToCoyoacan, AverageSpeedKMH: 60}
			err := client.Save(ctx, r)
			if err == nil {
				ids <- r.ID
			}
			errs <- err
		}()
	}

	for i := 0; i < numSaves; i++ {
		assert.NoError(t, <-errs)
	}
	close(ids)
	for id := range ids {
		_ = client.Delete(ctx, id)
	}
}

func TestClient_ConnectionPooling(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	client, cleanup := setupTestClient(t)
	defer cleanup()

	stats := client.db.Stats()
	assert.Equal(t, 25, stats.MaxOpenConnections)
}
