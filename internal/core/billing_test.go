package core

import (
	"errors"
	"testing"
	"time"
)

func TestBillingPeriodFor(t *testing.T) {
	tests := []struct {
		name      string
		year      int
		month     int
		wantStart string
		wantEnd   string
	}{
		{"january rolls back to december", 2025, 1, "2024-12-01", "2024-12-31"},
		{"february covers january", 2025, 2, "2025-01-01", "2025-01-31"},
		{"march covers leap february", 2024, 3, "2024-02-01", "2024-02-29"},
		{"march covers common february", 2025, 3, "2025-02-01", "2025-02-28"},
		{"may covers 30-day april", 2025, 5, "2025-04-01", "2025-04-30"},
		{"december covers november", 2025, 12, "2025-11-01", "2025-11-30"},
		{"century non-leap february", 2100, 3, "2100-02-01", "2100-02-28"},
		{"400-year leap february", 2000, 3, "2000-02-01", "2000-02-29"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := BillingPeriodFor(tt.year, tt.month)
			if p.Start.String() != tt.wantStart || p.End.String() != tt.wantEnd {
				t.Errorf("BillingPeriodFor(%d, %d) = %s, want %s..%s", tt.year, tt.month, p, tt.wantStart, tt.wantEnd)
			}
		})
	}
}

func TestBillingPeriodForCoversPreviousMonthEveryMonth(t *testing.T) {
	for year := 2023; year <= 2028; year++ {
		for month := 2; month <= 12; month++ {
			p := BillingPeriodFor(year, month)
			if p.Start.Year() != year || p.Start.Month() != month-1 || p.Start.Day() != 1 {
				t.Fatalf("%d-%02d: start = %s", year, month, p.Start)
			}
			if p.End.Year() != year || p.End.Month() != month-1 {
				t.Fatalf("%d-%02d: end = %s", year, month, p.End)
			}
			// the day after the end is the first of the processing month
			next := p.End.AddDate(0, 0, 1)
			if next.Day() != 1 || int(next.Month()) != month {
				t.Fatalf("%d-%02d: end %s is not the last day of its month", year, month, p.End)
			}
		}
	}
}

func TestBillingPeriodContains(t *testing.T) {
	p := BillingPeriodFor(2025, 2)
	cases := map[string]bool{
		"2024-12-31": false,
		"2025-01-01": true,
		"2025-01-15": true,
		"2025-01-31": true,
		"2025-02-01": false,
	}
	for s, want := range cases {
		d, _ := ParseDate(s)
		if got := p.Contains(d); got != want {
			t.Errorf("Contains(%s) = %v, want %v", s, got, want)
		}
	}
}

func TestDueDate(t *testing.T) {
	tests := []struct {
		name       string
		year       int
		month      int
		billingDay int
		want       string
		wantErr    error
	}{
		{"regular day", 2025, 3, 15, "2025-03-15", nil},
		{"31st in 30-day month clamps", 2025, 4, 31, "2025-04-30", nil},
		{"31st in common february clamps", 2025, 2, 31, "2025-02-28", nil},
		{"30th in leap february clamps", 2024, 2, 30, "2024-02-29", nil},
		{"29th in leap february stays", 2024, 2, 29, "2024-02-29", nil},
		{"31st in 31-day month stays", 2025, 1, 31, "2025-01-31", nil},
		{"zero billing day", 2025, 1, 0, "", ErrInvalidBillingDay},
		{"billing day 32", 2025, 1, 32, "", ErrInvalidBillingDay},
		{"month 13", 2025, 13, 1, "", ErrInvalidMonth},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DueDate(tt.year, tt.month, tt.billingDay)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("DueDate() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("DueDate() unexpected error: %v", err)
			}
			if got.String() != tt.want {
				t.Errorf("DueDate() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestIsEligible(t *testing.T) {
	at := func(y, m, d, h int) time.Time {
		return time.Date(y, time.Month(m), d, h, 0, 0, 0, time.Local)
	}
	tests := []struct {
		name       string
		today      time.Time
		billingDay int
		want       bool
	}{
		{"day before due date", at(2025, 3, 14, 23), 15, false},
		{"on due date at midnight", at(2025, 3, 15, 0), 15, true},
		{"on due date late", at(2025, 3, 15, 23), 15, true},
		{"after due date", at(2025, 3, 20, 9), 15, true},
		{"first of month with day 1", at(2025, 3, 1, 0), 1, true},
		{"31st card on april 29", at(2025, 4, 29, 12), 31, false},
		{"31st card on april 30", at(2025, 4, 30, 0), 31, true},
		{"31st card on feb 27", at(2025, 2, 27, 12), 31, false},
		{"31st card on feb 28", at(2025, 2, 28, 0), 31, true},
		{"31st card on leap feb 28", at(2024, 2, 28, 12), 31, false},
		{"31st card on leap feb 29", at(2024, 2, 29, 0), 31, true},
		{"no billing day", at(2025, 3, 31, 12), 0, false},
		{"billing day out of range", at(2025, 3, 31, 12), 40, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsEligible(tt.today, tt.billingDay); got != tt.want {
				t.Errorf("IsEligible(%s, %d) = %v, want %v", tt.today.Format(time.RFC3339), tt.billingDay, got, tt.want)
			}
		})
	}
}

func TestIsEligibleForEarlierProcessingMonth(t *testing.T) {
	today := time.Date(2025, 3, 2, 8, 0, 0, 0, time.UTC)
	// a February pass evaluated in March has long passed its due date
	if !IsEligibleFor(today, 2025, 2, 31) {
		t.Fatalf("expected february cycle to be eligible in march")
	}
	// an April pass evaluated in March is not yet due
	if IsEligibleFor(today, 2025, 4, 1) {
		t.Fatalf("expected april cycle to be ineligible in march")
	}
}

func TestLastDayOfMonth(t *testing.T) {
	cases := []struct{ y, m, want int }{
		{2024, 2, 29}, {2025, 2, 28}, {2025, 4, 30}, {2025, 12, 31}, {2025, 1, 31},
	}
	for _, c := range cases {
		if got := LastDayOfMonth(c.y, c.m); got != c.want {
			t.Errorf("LastDayOfMonth(%d, %d) = %d, want %d", c.y, c.m, got, c.want)
		}
	}
}
