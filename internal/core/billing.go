// Package core provides the ledger domain types and the calendar rules
// used by credit-card settlement.
//
// This file holds the two pure functions the settlement engine is built on:
// the billing period covered by a settlement month, and the due date a card's
// billing day maps to inside that month.
package core

import (
	"fmt"
	"time"
)

// BillingPeriod is an inclusive calendar-date range.
type BillingPeriod struct {
	Start Date
	End   Date
}

// Contains reports whether d falls inside the period, bounds included.
func (p BillingPeriod) Contains(d Date) bool {
	return !d.Before(p.Start.Time) && !d.After(p.End.Time)
}

func (p BillingPeriod) String() string {
	return fmt.Sprintf("%s..%s", p.Start, p.End)
}

// BillingPeriodFor returns the cycle settled in the given processing month:
// the whole previous calendar month.
//
// Both bounds come from time.Date normalisation. Month 0 of a year is
// December of the year before, and day 0 of a month is the last day of the
// month before it, so January and leap Februaries need no special casing.
//
// Examples:
//
//	BillingPeriodFor(2024, 3) -> 2024-02-01..2024-02-29
//	BillingPeriodFor(2025, 1) -> 2024-12-01..2024-12-31
func BillingPeriodFor(year, month int) BillingPeriod {
	start := time.Date(year, time.Month(month)-1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(year, time.Month(month), 0, 0, 0, 0, 0, time.UTC)
	return BillingPeriod{Start: Date{Time: start}, End: Date{Time: end}}
}

// LastDayOfMonth returns the number of days in the given month.
func LastDayOfMonth(year, month int) int {
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// DueDate returns the date a cycle with the given billing day closes in the
// processing month. Billing days past the end of a short month clamp to its
// last day, so a "31st" card closes on Feb 28/29 and Apr 30.
func DueDate(year, month, billingDay int) (Date, error) {
	if month < 1 || month > 12 {
		return Date{}, ErrInvalidMonth
	}
	if !ValidBillingDay(billingDay) {
		return Date{}, ErrInvalidBillingDay
	}
	day := billingDay
	if last := LastDayOfMonth(year, month); day > last {
		day = last
	}
	return NewDate(year, month, day), nil
}

// IsEligible reports whether the cycle for billingDay has closed in today's
// own month.
func IsEligible(today time.Time, billingDay int) bool {
	return IsEligibleFor(today, today.Year(), int(today.Month()), billingDay)
}

// IsEligibleFor reports whether today is on or after the due date of the
// given processing month. Only the calendar date of today is compared.
// Invalid billing days are never eligible.
func IsEligibleFor(today time.Time, year, month, billingDay int) bool {
	due, err := DueDate(year, month, billingDay)
	if err != nil {
		return false
	}
	return !DateOf(today).Before(due.Time)
}
