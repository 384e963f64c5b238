package labutil

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestFormatDate(t *testing.T) {
	tests := []struct {
		in   time.Time
		want string
	}{
		{time.Date(2025, 3, 4, 15, 0, 0, 0, time.UTC), "Mar 4, 2025"},
		{time.Date(2024, 12, 25, 0, 0, 0, 0, time.UTC), "Dec 25, 2024"},
		{time.Time{}, ""},
	}
	for _, tt := range tests {
		if got := FormatDate(tt.in); got != tt.want {
			t.Errorf("FormatDate(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTruncateText(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"hello", 10, "hello"},
		{"hello", 5, "hello"},
		{"hello world", 5, "hello..."},
		{"", 3, ""},
		{"µg per µL", 2, "µg..."},
		{"abc", 0, "..."},
	}
	for _, tt := range tests {
		if got := TruncateText(tt.in, tt.n); got != tt.want {
			t.Errorf("TruncateText(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}

func TestCalculateDuration(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"30 minutes", 30, false},
		{"1 minute", 1, false},
		{"2 hours", 120, false},
		{"1 Hour", 60, false},
		{"1 day", 1440, false},
		{"3 days", 4320, false},
		{"1.5 hours", 60, false},
		{"2 weeks", 0, false},
		{"overnight incubation", 0, false},
		{"about hours", 0, true},
		{"30", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		got, err := CalculateDuration(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("CalculateDuration(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if err != nil && !errors.Is(err, ErrBadDuration) {
			t.Errorf("CalculateDuration(%q) error = %v, want ErrBadDuration", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("CalculateDuration(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestSumDurations(t *testing.T) {
	total, skipped := SumDurations("30 minutes", "2 hours", "soon", "1 day")
	if total != 30+120+1440 {
		t.Errorf("total = %d", total)
	}
	if diff := cmp.Diff([]int{2}, skipped); diff != "" {
		t.Errorf("skipped (-want +got):\n%s", diff)
	}
}

func TestFormatMinutes(t *testing.T) {
	tests := map[int]string{
		0:    "0 minutes",
		1:    "1 minute",
		45:   "45 minutes",
		60:   "1 hour",
		125:  "2 hours 5 minutes",
		1440: "1 day",
		1625: "1 day 3 hours 5 minutes",
	}
	for in, want := range tests {
		if got := FormatMinutes(in); got != want {
			t.Errorf("FormatMinutes(%d) = %q, want %q", in, got, want)
		}
	}
}
