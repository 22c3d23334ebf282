package calculator

import (
	"fmt"
	"math"
)

// FormatDistanceKM renders a distance given in kilometers.
// Legs and route totals must both go through here so they round alike.
func FormatDistanceKM(km float64) string {
	return FormatDistanceMeters(km * 1000)
}

// FormatDistanceMeters renders meters below 1 km as whole meters ("999 m")
// and anything else as kilometers with one decimal ("1.0 km").
func FormatDistanceMeters(meters float64) string {
	if meters < 0 {
		meters = 0
	}
	rounded := math.Round(meters)
	if rounded < 1000 {
		return fmt.Sprintf("%d m", int64(rounded))
	}
	return fmt.Sprintf("%.1f km", meters/1000)
}

// FormatDuration renders seconds as "< 1 min", "N min" or "H h M min".
func FormatDuration(seconds float64) string {
	if math.IsInf(seconds, 1) {
		return "--"
	}
	if seconds < 60 {
		return "< 1 min"
	}

	totalMinutes := int64(math.Round(seconds / 60))
	hours := totalMinutes / 60
	minutes := totalMinutes % 60

	if hours == 0 {
		return fmt.Sprintf("%d min", minutes)
	}
	return fmt.Sprintf("%d h %d min", hours, minutes)
}
