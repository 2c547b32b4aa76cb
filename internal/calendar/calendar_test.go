package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestTradingDaysBetween(t *testing.T) {
	tests := []struct {
		name  string
		start time.Time
		end   time.Time
		want  int
	}{
		{
			name:  "same day",
			start: date(2026, time.January, 5),
			end:   date(2026, time.January, 5),
			want:  0,
		},
		{
			name:  "start after end",
			start: date(2026, time.January, 10),
			end:   date(2026, time.January, 5),
			want:  0,
		},
		{
			name:  "full week monday to monday",
			start: date(2026, time.January, 5), // Monday
			end:   date(2026, time.January, 12),
			want:  5,
		},
		{
			name:  "weekend only",
			start: date(2026, time.January, 10), // Saturday
			end:   date(2026, time.January, 12), // Monday
			want:  0,
		},
		{
			name:  "friday to tuesday skips weekend",
			start: date(2026, time.January, 9), // Friday
			end:   date(2026, time.January, 13),
			want:  2, // Friday, Monday
		},
		{
			name:  "half-open interval excludes end",
			start: date(2026, time.January, 5),
			end:   date(2026, time.January, 6),
			want:  1,
		},
		{
			name:  "time of day is ignored",
			start: time.Date(2026, time.January, 5, 23, 59, 0, 0, time.UTC),
			end:   time.Date(2026, time.January, 6, 0, 1, 0, 0, time.UTC),
			want:  1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TradingDaysBetween(tt.start, tt.end))
		})
	}
}

func TestDaysBetween(t *testing.T) {
	tests := []struct {
		name string
		a    time.Time
		b    time.Time
		want int
	}{
		{
			name: "same day",
			a:    date(2026, time.March, 1),
			b:    date(2026, time.March, 1),
			want: 0,
		},
		{
			name: "weekends counted",
			a:    date(2026, time.January, 9), // Friday
			b:    date(2026, time.January, 12),
			want: 3,
		},
		{
			name: "absolute when reversed",
			a:    date(2026, time.January, 12),
			b:    date(2026, time.January, 9),
			want: 3,
		},
		{
			name: "full year",
			a:    date(2025, time.January, 1),
			b:    date(2026, time.January, 1),
			want: 365,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DaysBetween(tt.a, tt.b))
		})
	}
}

func TestAddTradingDays(t *testing.T) {
	tests := []struct {
		name  string
		start time.Time
		n     int
		want  time.Time
	}{
		{
			name:  "zero days",
			start: date(2026, time.January, 5),
			n:     0,
			want:  date(2026, time.January, 5),
		},
		{
			name:  "friday plus one lands on monday",
			start: date(2026, time.January, 9),
			n:     1,
			want:  date(2026, time.January, 12),
		},
		{
			name:  "saturday start plus one lands on monday",
			start: date(2026, time.January, 10),
			n:     1,
			want:  date(2026, time.January, 12),
		},
		{
			name:  "fifty trading days spans ten weeks",
			start: date(2026, time.January, 5), // Monday
			n:     50,
			want:  date(2026, time.March, 16),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AddTradingDays(tt.start, tt.n))
		})
	}
}
