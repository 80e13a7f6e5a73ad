package timeutil

import (
	"errors"
	"testing"
	"time"
)

func date(y int, m time.Month, d, h, min, s, ms int) time.Time {
	return time.Date(y, m, d, h, min, s, ms*int(time.Millisecond), time.UTC)
}

func TestCalculatePeriod(t *testing.T) {
	wednesday := date(2024, time.March, 13, 15, 30, 0, 0)

	tests := []struct {
		name      string
		period    Period
		now       time.Time
		wantStart time.Time
		wantEnd   time.Time
	}{
		{
			name:      "daily",
			period:    PeriodDaily,
			now:       wednesday,
			wantStart: date(2024, time.March, 13, 0, 0, 0, 0),
			wantEnd:   date(2024, time.March, 13, 23, 59, 59, 999),
		},
		{
			name:      "weekly from wednesday",
			period:    PeriodWeekly,
			now:       wednesday,
			wantStart: date(2024, time.March, 10, 0, 0, 0, 0),
			wantEnd:   date(2024, time.March, 16, 23, 59, 59, 999),
		},
		{
			name:      "weekly on sunday",
			period:    PeriodWeekly,
			now:       date(2024, time.March, 10, 8, 0, 0, 0),
			wantStart: date(2024, time.March, 10, 0, 0, 0, 0),
			wantEnd:   date(2024, time.March, 16, 23, 59, 59, 999),
		},
		{
			name:      "weekly across month boundary",
			period:    PeriodWeekly,
			now:       date(2024, time.March, 1, 9, 0, 0, 0),
			wantStart: date(2024, time.February, 25, 0, 0, 0, 0),
			wantEnd:   date(2024, time.March, 2, 23, 59, 59, 999),
		},
		{
			name:      "monthly leap february",
			period:    PeriodMonthly,
			now:       date(2024, time.February, 15, 12, 0, 0, 0),
			wantStart: date(2024, time.February, 1, 0, 0, 0, 0),
			wantEnd:   date(2024, time.February, 29, 23, 59, 59, 999),
		},
		{
			name:      "monthly december",
			period:    PeriodMonthly,
			now:       date(2023, time.December, 5, 0, 0, 0, 0),
			wantStart: date(2023, time.December, 1, 0, 0, 0, 0),
			wantEnd:   date(2023, time.December, 31, 23, 59, 59, 999),
		},
		{
			name:      "quarterly second quarter",
			period:    PeriodQuarterly,
			now:       date(2024, time.May, 20, 0, 0, 0, 0),
			wantStart: date(2024, time.April, 1, 0, 0, 0, 0),
			wantEnd:   date(2024, time.June, 30, 23, 59, 59, 999),
		},
		{
			name:      "quarterly fourth quarter",
			period:    PeriodQuarterly,
			now:       date(2024, time.December, 31, 0, 0, 0, 0),
			wantStart: date(2024, time.October, 1, 0, 0, 0, 0),
			wantEnd:   date(2024, time.December, 31, 23, 59, 59, 999),
		},
		{
			name:      "yearly",
			period:    PeriodYearly,
			now:       wednesday,
			wantStart: date(2024, time.January, 1, 0, 0, 0, 0),
			wantEnd:   date(2024, time.December, 31, 23, 59, 59, 999),
		},
		{
			name:      "unknown defaults to monthly",
			period:    Period("fortnightly"),
			now:       wednesday,
			wantStart: date(2024, time.March, 1, 0, 0, 0, 0),
			wantEnd:   date(2024, time.March, 31, 23, 59, 59, 999),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CalculatePeriod(tt.period, tt.now, nil)
			if err != nil {
				t.Fatalf("CalculatePeriod() error = %v", err)
			}
			if !got.Start.Equal(tt.wantStart) {
				t.Errorf("start = %v, want %v", got.Start, tt.wantStart)
			}
			if !got.End.Equal(tt.wantEnd) {
				t.Errorf("end = %v, want %v", got.End, tt.wantEnd)
			}
		})
	}
}

func TestCalculatePeriodWeeklySpansSevenDays(t *testing.T) {
	for day := 10; day <= 16; day++ {
		now := date(2024, time.March, day, 10, 0, 0, 0)
		got, err := CalculatePeriod(PeriodWeekly, now, nil)
		if err != nil {
			t.Fatalf("CalculatePeriod() error = %v", err)
		}
		if got.Start.Weekday() != time.Sunday {
			t.Errorf("day %d: start weekday = %v, want Sunday", day, got.Start.Weekday())
		}
		if got.End.Weekday() != time.Saturday {
			t.Errorf("day %d: end weekday = %v, want Saturday", day, got.End.Weekday())
		}
		if span := got.End.Sub(got.Start); span != 7*24*time.Hour-time.Millisecond {
			t.Errorf("day %d: span = %v, want 7 days less 1ms", day, span)
		}
	}
}

func TestCalculatePeriodCustom(t *testing.T) {
	now := date(2024, time.March, 13, 15, 30, 0, 0)

	t.Run("with end date", func(t *testing.T) {
		end := date(2024, time.April, 2, 8, 0, 0, 0)
		got, err := CalculatePeriod(PeriodCustom, now, &end)
		if err != nil {
			t.Fatalf("CalculatePeriod() error = %v", err)
		}
		if !got.Start.Equal(now) {
			t.Errorf("start = %v, want now", got.Start)
		}
		if want := date(2024, time.April, 2, 23, 59, 59, 999); !got.End.Equal(want) {
			t.Errorf("end = %v, want %v", got.End, want)
		}
	})

	t.Run("without end date", func(t *testing.T) {
		_, err := CalculatePeriod(PeriodCustom, now, nil)
		if !errors.Is(err, ErrCustomPeriodEnd) {
			t.Errorf("error = %v, want ErrCustomPeriodEnd", err)
		}
	})
}
