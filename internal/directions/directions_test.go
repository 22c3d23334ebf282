package directions

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asistentevial/eta-worker/internal/calculator"
)

var (
	origin      = calculator.Coordinate{Latitude: 19.4326, Longitude: -99.1332}
	destination = calculator.Coordinate{Latitude: 19.4270, Longitude: -99.1677}
)

func TestOSRMProvider_Route(t *testing.T) {
	var gotPath, gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"code": "Ok",
			"routes": [{
				"distance": 4210.5,
				"duration": 612.3,
				"geometry": {"coordinates": [[-99.1332, 19.4326], [-99.1500, 19.4300], [-99.1677, 19.4270]]}
			}]
		}`)) //nolint:errcheck
	}))
	defer server.Close()

	p := NewOSRMProvider(server.URL+"/", 5*time.Second)
	d, err := p.Route(context.Background(), origin, destination)
	require.NoError(t, err)

	assert.Equal(t, "/route/v1/driving/-99.133200,19.432600;-99.167700,19.427000", gotPath)
	assert.Contains(t, gotQuery, "geometries=geojson")
	assert.Equal(t, "osrm", d.Provider)
	assert.InDelta(t, 612.3, d.DurationSeconds, 1e-9)
	assert.InDelta(t, 4.2105, d.DistanceKM, 1e-9)
	require.Len(t, d.Polyline, 3)
	assert.Equal(t, origin, d.Polyline[0])
	assert.Equal(t, destination, d.Polyline[2])
}

func TestOSRMProvider_Errors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		wantNoRte bool
	}{
		{"server error", http.StatusInternalServerError, `{}`, false},
		{"bad json", http.StatusOK, `{"routes":`, false},
		{"no route code", http.StatusOK, `{"code":"NoRoute","routes":[]}`, true},
		{"empty routes", http.StatusOK, `{"code":"Ok","routes":[]}`, true},
		{"short geometry", http.StatusOK, `{"code":"Ok","routes":[{"geometry":{"coordinates":[[-99.1,19.4]]}}]}`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body)) //nolint:errcheck
			}))
			defer server.Close()

			_, err := NewOSRMProvider(server.URL, time.Second).Route(context.Background(), origin, destination)
			require.Error(t, err)
			assert.Equal(t, tt.wantNoRte, errors.Is(err, ErrNoRoute))
		})
	}
}

func TestGoogleProvider_Route(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/directions/json") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"status": "OK",
			"routes": [{
				"summary": "test",
				"overview_polyline": {"points": "_p~iF~ps|U_ulLnnqC_mqNvxq` + "`" + `@"},
				"legs": [
					{"distance": {"value": 1500, "text": "1.5 km"}, "duration": {"value": 300, "text": "5 min"}},
					{"distance": {"value": 500, "text": "0.5 km"}, "duration": {"value": 60, "text": "1 min"}}
				]
			}]
		}`)) //nolint:errcheck
	}))
	defer server.Close()

	p, err := NewGoogleProvider("test-key", server.URL, 5*time.Second)
	require.NoError(t, err)

	d, err := p.Route(context.Background(), origin, destination)
	require.NoError(t, err)

	assert.Equal(t, "google", d.Provider)
	assert.InDelta(t, 360, d.DurationSeconds, 1e-9)
	assert.InDelta(t, 2.0, d.DistanceKM, 1e-9)
	require.Len(t, d.Polyline, 3)
	assert.InDelta(t, 38.5, d.Polyline[0].Latitude, 1e-5)
	assert.InDelta(t, -120.2, d.Polyline[0].Longitude, 1e-5)
	assert.InDelta(t, 43.252, d.Polyline[2].Latitude, 1e-5)
}

func TestGoogleProvider_ZeroResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status": "ZERO_RESULTS", "routes": []}`)) //nolint:errcheck
	}))
	defer server.Close()

	p, err := NewGoogleProvider("test-key", server.URL, time.Second)
	require.NoError(t, err)

	_, err = p.Route(context.Background(), origin, destination)
	assert.Error(t, err)
}

func TestStraightLineProvider(t *testing.T) {
	p := StraightLineProvider{AverageSpeedKMH: 60}

	d, err := p.Route(context.Background(), origin, destination)
	require.NoError(t, err)

	km := calculator.DistanceKM(origin, destination)
	assert.Equal(t, []calculator.Coordinate{origin, destination}, d.Polyline)
	assert.InDelta(t, km, d.DistanceKM, 1e-12)
	assert.InDelta(t, km*60, d.DurationSeconds, 1e-9)
	assert.Equal(t, "straight_line", d.Provider)

	_, err = p.Route(context.Background(), origin, origin)
	assert.ErrorIs(t, err, ErrNoRoute)
}
