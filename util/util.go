package util

import (
	"time"
)

// Returns the current unix time in seconds
func EpochSeconds() float64 {
	return float64(time.Now().UnixNano()) / float64(1e9)
}

// Converts a duration to fractional seconds
func Seconds(d time.Duration) float64 {
	return float64(d.Nanoseconds()) / float64(1e9)
}
