package directions

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/asistentevial/eta-worker/internal/calculator"
)

// OSRMProvider queries an OSRM server's driving profile
type OSRMProvider struct {
	baseURL string
	client  *http.Client
}

// osrmResponse is the subset of the OSRM route response we read
type osrmResponse struct {
	Code   string `json:"code"`
	Routes []struct {
		Distance float64 `json:"distance"` // meters
		Duration float64 `json:"duration"` // seconds
		Geometry struct {
			Coordinates [][]float64 `json:"coordinates"` // [lon, lat]
		} `json:"geometry"`
	} `json:"routes"`
}

// NewOSRMProvider creates an OSRM client for baseURL, e.g.
// "https://router.project-osrm.org"
func NewOSRMProvider(baseURL string, timeout time.Duration) *OSRMProvider {
	return &OSRMProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// Name identifies the provider in logs and events
func (p *OSRMProvider) Name() string { return "osrm" }

// Route returns the full-overview geojson geometry of the first route
func (p *OSRMProvider) Route(ctx context.Context, origin, destination calculator.Coordinate) (*Directions, error) {
	url := fmt.Sprintf("%s/route/v1/driving/%.6f,%.6f;%.6f,%.6f?overview=full&geometries=geojson",
		p.baseURL, origin.Longitude, origin.Latitude, destination.Longitude, destination.Latitude)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build OSRM request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("OSRM request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }() // nolint:errcheck // Close in defer, error not actionable

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("OSRM returned %d", resp.StatusCode)
	}

	var parsed osrmResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode OSRM response: %w", err)
	}

	if parsed.Code != "" && parsed.Code != "Ok" {
		return nil, fmt.Errorf("%w: OSRM code %s", ErrNoRoute, parsed.Code)
	}
	if len(parsed.Routes) == 0 {
		return nil, ErrNoRoute
	}

	r := parsed.Routes[0]
	coords := make([]calculator.Coordinate, 0, len(r.Geometry.Coordinates))
	for _, pair := range r.Geometry.Coordinates {
		if len(pair) < 2 {
			continue
		}
		coords = append(coords, calculator.Coordinate{Latitude: pair[1], Longitude: pair[0]})
	}

	if len(coords) < 2 {
		return nil, fmt.Errorf("%w: geometry has %d points", ErrNoRoute, len(coords))
	}

	return &Directions{
		Polyline:        coords,
		DurationSeconds: r.Duration,
		DistanceKM:      r.Distance / 1000,
		Provider:        p.Name(),
	}, nil
}
