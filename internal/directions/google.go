package directions

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"googlemaps.github.io/maps"

	"github.com/asistentevial/eta-worker/internal/calculator"
)

// GoogleProvider uses the Google Maps Directions API
type GoogleProvider struct {
	client *maps.Client
}

// NewGoogleProvider creates a GoogleProvider. baseURL overrides the API
// endpoint when non-empty.
func NewGoogleProvider(apiKey, baseURL string, timeout time.Duration) (*GoogleProvider, error) {
	opts := []maps.ClientOption{
		maps.WithAPIKey(apiKey),
		maps.WithHTTPClient(&http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}),
	}
	if baseURL != "" {
		opts = append(opts, maps.WithBaseURL(baseURL))
	}

	c, err := maps.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}

	return &GoogleProvider{client: c}, nil
}

// Name identifies the provider in logs and events
func (p *GoogleProvider) Name() string { return "google" }

// Route decodes the overview polyline of the first route and sums its legs
func (p *GoogleProvider) Route(ctx context.Context, origin, destination calculator.Coordinate) (*Directions, error) {
	req := &maps.DirectionsRequest{
		Origin:      origin.String(),
		Destination: destination.String(),
		Mode:        maps.TravelModeDriving,
		Language:    "es",
		Region:      "mx",
	}

	routes, _, err := p.client.Directions(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("directions request failed: %w", err)
	}
	if len(routes) == 0 {
		return nil, ErrNoRoute
	}

	r := routes[0]
	points, err := r.OverviewPolyline.Decode()
	if err != nil {
		return nil, fmt.Errorf("failed to decode overview polyline: %w", err)
	}
	if len(points) < 2 {
		return nil, fmt.Errorf("%w: polyline has %d points", ErrNoRoute, len(points))
	}

	coords := make([]calculator.Coordinate, len(points))
	for i, pt := range points {
		coords[i] = calculator.Coordinate{Latitude: pt.Lat, Longitude: pt.Lng}
	}

	var duration time.Duration
	var meters int
	for _, leg := range r.Legs {
		duration += leg.Duration
		meters += leg.Meters
	}

	return &Directions{
		Polyline:        coords,
		DurationSeconds: duration.Seconds(),
		DistanceKM:      float64(meters) / 1000,
		Provider:        p.Name(),
	}, nil
}
