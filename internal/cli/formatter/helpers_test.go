package formatter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRelativeDateFrom(t *testing.T) {
	now := time.Date(2026, 2, 7, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		input time.Time
		want  string
	}{
		{"today", now, "Today"},
		{"tomorrow", now.Add(24 * time.Hour), "Tomorrow"},
		{"yesterday", now.Add(-24 * time.Hour), "Yesterday"},
		{"3 days future", now.Add(3 * 24 * time.Hour), "In 3d"},
		{"3 days past", now.Add(-3 * 24 * time.Hour), "3d ago"},
		{"3 weeks future", now.Add(21 * 24 * time.Hour), "In 3w"},
		{"3 months future", now.Add(90 * 24 * time.Hour), "In 3mo"},
		{"2 weeks past", now.Add(-14 * 24 * time.Hour), "2w ago"},
		{"3 months past", now.Add(-90 * 24 * time.Hour), "3mo ago"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RelativeDateFrom(tt.input, now))
		})
	}
}

func TestPosition(t *testing.T) {
	assert.Equal(t, "4", Position("", 4))
	assert.Equal(t, "3.1.2", Position("3.1", 2))
}

func TestStamp_UsesLocation(t *testing.T) {
	ts := time.Date(2024, 3, 1, 15, 30, 0, 0, time.UTC)
	berlin := time.FixedZone("CET", 3600)

	assert.Equal(t, "2024-03-01 15:30", Stamp(&ts, nil))
	assert.Equal(t, "2024-03-01 16:30", Stamp(&ts, berlin))
	assert.Contains(t, Stamp(nil, nil), "--")
}

func TestSpan(t *testing.T) {
	start := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	end := start.Add(2 * time.Hour)

	assert.Equal(t, "2024-03-01 09:00 → 2024-03-01 11:00", Span(&start, &end, time.UTC))
	assert.Contains(t, Span(nil, nil, time.UTC), "unscheduled")
}

func TestTruncID(t *testing.T) {
	assert.Contains(t, TruncID("0123456789abcdef"), "01234567")
	assert.NotContains(t, TruncID("0123456789abcdef"), "89")
}
