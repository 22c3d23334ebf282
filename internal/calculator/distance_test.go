package calculator

import (
	"errors"
	"math"
	"testing"
)

var (
	zocalo         = Coordinate{Latitude: 19.4326, Longitude: -99.1332}
	bellasArtesOst = Coordinate{Latitude: 19.4270, Longitude: -99.1677}
)

func TestHaversine(t *testing.T) {
	tests := []struct {
		name      string
		lat1      float64
		lon1      float64
		lat2      float64
		lon2      float64
		expected  float64
		tolerance float64
	}{
		{
			name:      "Same location",
			lat1:      19.4326,
			lon1:      -99.1332,
			lat2:      19.4326,
			lon2:      -99.1332,
			expected:  0.0,
			tolerance: 0.001,
		},
		{
			name:      "Centro Histórico to Reforma (~3.7 km)",
			lat1:      19.4326,
			lon1:      -99.1332,
			lat2:      19.4270,
			lon2:      -99.1677,
			expected:  3.67,
			tolerance: 0.05,
		},
		{
			name:      "CDMX to Puebla (~106 km)",
			lat1:      19.4326,
			lon1:      -99.1332,
			lat2:      19.0414,
			lon2:      -98.2063,
			expected:  106.5,
			tolerance: 2.0,
		},
		{
			name:      "Equator crossing",
			lat1:      1.0,
			lon1:      0.0,
			lat2:      -1.0,
			lon2:      0.0,
			expected:  222.4,
			tolerance: 1.0,
		},
		{
			name:      "Antipodal points",
			lat1:      0.0,
			lon1:      0.0,
			lat2:      0.0,
			lon2:      180.0,
			expected:  math.Pi * EarthRadiusKM,
			tolerance: 0.001,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Haversine(tt.lat1, tt.lon1, tt.lat2, tt.lon2)
			if math.Abs(result-tt.expected) > tt.tolerance {
				t.Errorf("Haversine() = %.2f km, expected %.2f km (±%.2f km)", result, tt.expected, tt.tolerance)
			}
		})
	}
}

func TestDistanceKM_Symmetry(t *testing.T) {
	points := []Coordinate{
		zocalo,
		bellasArtesOst,
		{Latitude: 32.5149, Longitude: -117.0382},
		{Latitude: 20.9674, Longitude: -89.5926},
		{Latitude: -33.8688, Longitude: 151.2093},
		{Latitude: 90, Longitude: 0},
	}

	for _, a := range points {
		for _, b := range points {
			ab := DistanceKM(a, b)
			ba := DistanceKM(b, a)
			if math.Abs(ab-ba) > 1e-9 {
				t.Errorf("DistanceKM(%v, %v) = %.12f, reverse = %.12f", a, b, ab, ba)
			}
			if ab < 0 {
				t.Errorf("DistanceKM(%v, %v) = %.4f, expected non-negative", a, b, ab)
			}
		}
	}
}

func TestDistanceKM_Identity(t *testing.T) {
	for _, c := range []Coordinate{zocalo, {Latitude: -90, Longitude: 180}, {}} {
		if d := DistanceKM(c, c); d != 0 {
			t.Errorf("DistanceKM(%v, %v) = %g, expected 0", c, c, d)
		}
	}
}

func TestEstimateDurationMinutes(t *testing.T) {
	t.Run("60 km at 60 km/h is one hour", func(t *testing.T) {
		if got := EstimateDurationMinutes(60, 60); got != 60 {
			t.Errorf("expected 60 minutes, got %.2f", got)
		}
	})

	t.Run("strictly decreasing in speed", func(t *testing.T) {
		prev := math.Inf(1)
		for _, speed := range []float64{0.5, 1, 10, 30, 60, 90, 120} {
			got := EstimateDurationMinutes(15, speed)
			if got >= prev {
				t.Errorf("duration at %.1f km/h = %.4f, expected < %.4f", speed, got, prev)
			}
			prev = got
		}
	})

	t.Run("non-positive speed is +Inf", func(t *testing.T) {
		for _, speed := range []float64{0, -10, math.NaN()} {
			if got := EstimateDurationMinutes(5, speed); !math.IsInf(got, 1) {
				t.Errorf("EstimateDurationMinutes(5, %v) = %v, expected +Inf", speed, got)
			}
		}
	})

	t.Run("zero distance is zero for any speed", func(t *testing.T) {
		if got := EstimateDurationMinutes(0, 0); got != 0 {
			t.Errorf("expected 0, got %v", got)
		}
	})
}

func TestCoordinateValidate(t *testing.T) {
	tests := []struct {
		name    string
		coord   Coordinate
		wantErr bool
	}{
		{"valid", zocalo, false},
		{"poles and antimeridian", Coordinate{Latitude: -90, Longitude: 180}, false},
		{"latitude too high", Coordinate{Latitude: 90.1, Longitude: 0}, true},
		{"longitude too low", Coordinate{Latitude: 0, Longitude: -180.5}, true},
		{"NaN latitude", Coordinate{Latitude: math.NaN(), Longitude: 0}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.coord.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidCoordinate) {
				t.Errorf("expected ErrInvalidCoordinate, got %v", err)
			}
		})
	}
}

func TestParseCoordinate(t *testing.T) {
	c, err := ParseCoordinate(" 19.4326, -99.1332 ")
	if err != nil {
		t.Fatalf("ParseCoordinate() failed: %v", err)
	}
	if c != zocalo {
		t.Errorf("expected %v, got %v", zocalo, c)
	}

	for _, input := range []string{"", "19.4", "a,b", "19.4,-99.1,3", "95,0"} {
		if _, err := ParseCoordinate(input); err == nil {
			t.Errorf("ParseCoordinate(%q) expected error, got nil", input)
		}
	}
}

func TestGeohash(t *testing.T) {
	if got := Geohash(Coordinate{Latitude: 57.64911, Longitude: 10.40744}, 11); got != "u4pruydqqvj" {
		t.Errorf("expected geohash u4pruydqqvj, got %s", got)
	}
	if got := Geohash(zocalo, 6); len(got) != 6 {
		t.Errorf("expected 6 character geohash, got %q", got)
	}
}

func TestDegreesToRadians(t *testing.T) {
	tests := []struct {
		degrees  float64
		expected float64
	}{
		{0, 0},
		{90, math.Pi / 2},
		{180, math.Pi},
		{360, 2 * math.Pi},
		{-90, -math.Pi / 2},
	}

	for _, tt := range tests {
		result := degreesToRadians(tt.degrees)
		if math.Abs(result-tt.expected) > 0.0001 {
			t.Errorf("degreesToRadians(%.2f) = %.4f, expected %.4f", tt.degrees, result, tt.expected)
		}
	}
}

func BenchmarkHaversine(b *testing.B) {
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		DistanceKM(zocalo, bellasArtesOst)
	}
}
