package services

import (
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestComputeNextDue(t *testing.T) {
	tests := []struct {
		name  string
		today time.Time
		day   int
		want  time.Time
	}{
		{
			name:  "later this month",
			today: date(2024, 5, 10),
			day:   15,
			want:  date(2024, 5, 15),
		},
		{
			name:  "today counts",
			today: date(2024, 5, 15),
			day:   15,
			want:  date(2024, 5, 15),
		},
		{
			name:  "already passed - next month",
			today: date(2024, 5, 20),
			day:   15,
			want:  date(2024, 6, 15),
		},
		{
			name:  "december rolls into january",
			today: date(2024, 12, 20),
			day:   5,
			want:  date(2025, 1, 5),
		},
		{
			name:  "day 31 clamps to 28",
			today: date(2024, 4, 1),
			day:   31,
			want:  date(2024, 4, 28),
		},
		{
			name:  "day 31 in february",
			today: date(2024, 2, 29),
			day:   31,
			want:  date(2024, 3, 28),
		},
		{
			name:  "day below 1 clamps to 1",
			today: date(2024, 5, 2),
			day:   0,
			want:  date(2024, 6, 1),
		},
		{
			name:  "time of day ignored",
			today: time.Date(2024, 5, 15, 23, 59, 0, 0, time.UTC),
			day:   15,
			want:  date(2024, 5, 15),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeNextDue(tt.today, tt.day)
			if !got.Equal(tt.want) {
				t.Errorf("ComputeNextDue(%s, %d) = %s, want %s",
					tt.today.Format(time.RFC3339), tt.day, got.Format("2006-01-02"), tt.want.Format("2006-01-02"))
			}
		})
	}
}

func TestComputeNextDue_NeverBeforeToday(t *testing.T) {
	start := date(2023, 1, 1)
	for i := 0; i < 800; i += 7 {
		today := start.AddDate(0, 0, i)
		for day := 1; day <= 31; day++ {
			got := ComputeNextDue(today, day)
			if got.Before(today) {
				t.Fatalf("ComputeNextDue(%s, %d) = %s is before today", today.Format("2006-01-02"), day, got.Format("2006-01-02"))
			}
			if got.Sub(today) > 31*24*time.Hour {
				t.Fatalf("ComputeNextDue(%s, %d) = %s is more than a month away", today.Format("2006-01-02"), day, got.Format("2006-01-02"))
			}
		}
	}
}
