package ui

import (
	"testing"
	"time"

	"github.com/charmbracelet/lipgloss"
)

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		seconds float64
		want    string
	}{
		{0, "00:00"},
		{59, "00:59"},
		{59.9, "00:59"},
		{61, "01:01"},
		{600, "10:00"},
		{3599, "59:59"},
		{3600, "01:00:00"},
		{3661, "01:01:01"},
		{-5, "00:00"},
	}

	for _, tt := range tests {
		if got := FormatDuration(tt.seconds); got != tt.want {
			t.Errorf("FormatDuration(%v) = %q, want %q", tt.seconds, got, tt.want)
		}
	}
}

func TestFormatViews(t *testing.T) {
	if got := FormatViews(1); got != "1 view" {
		t.Errorf("FormatViews(1) = %q", got)
	}
	if got := FormatViews(1234567); got != "1,234,567 views" {
		t.Errorf("FormatViews(1234567) = %q", got)
	}
}

func TestRelativeTime(t *testing.T) {
	if got := RelativeTime(time.Time{}); got != "" {
		t.Errorf("zero time should render empty, got %q", got)
	}
	if got := RelativeTime(time.Now().Add(-3 * 24 * time.Hour)); got != "3 days ago" {
		t.Errorf("RelativeTime(-3d) = %q", got)
	}
}

func TestFormatBytes(t *testing.T) {
	if got := FormatBytes(-1); got != "0 B" {
		t.Errorf("FormatBytes(-1) = %q", got)
	}
	if got := FormatBytes(1500); got != "1.5 kB" {
		t.Errorf("FormatBytes(1500) = %q", got)
	}
}

func TestStatusStyle(t *testing.T) {
	tests := []struct {
		code int
		want string
	}{
		{200, "success"},
		{204, "success"},
		{401, "warning"},
		{429, "warning"},
		{404, "error"},
		{500, "error"},
		{301, "muted"},
	}

	styles := map[string]lipgloss.Style{
		"success": SuccessStyle,
		"warning": WarningStyle,
		"error":   ErrorStyle,
		"muted":   MutedStyle,
	}

	for _, tt := range tests {
		got := StatusStyle(tt.code).GetForeground()
		if got != styles[tt.want].GetForeground() {
			t.Errorf("StatusStyle(%d) foreground = %v, want %s style", tt.code, got, tt.want)
		}
	}
}
