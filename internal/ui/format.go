package ui

import (
	"fmt"
	"math"
	"time"

	"github.com/dustin/go-humanize"
)

// FormatDuration renders seconds as mm:ss, or hh:mm:ss when there is at least an hour
func FormatDuration(totalSeconds float64) string {
	if totalSeconds < 0 || math.IsNaN(totalSeconds) {
		totalSeconds = 0
	}
	sec := int64(math.Floor(totalSeconds))
	hours := sec / 3600
	minutes := (sec % 3600) / 60
	seconds := sec % 60

	if hours > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%02d:%02d", minutes, seconds)
}

// RelativeTime renders t relative to now, e.g. "3 days ago". Zero times render as "".
func RelativeTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return humanize.Time(t)
}

// FormatViews renders a view count with thousands separators
func FormatViews(n int64) string {
	if n == 1 {
		return "1 view"
	}
	return humanize.Comma(n) + " views"
}

// FormatBytes renders a byte count, e.g. "1.2 MB"
func FormatBytes(n int64) string {
	if n < 0 {
		n = 0
	}
	return humanize.Bytes(uint64(n))
}
