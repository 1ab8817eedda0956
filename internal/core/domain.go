package core

import (
	"errors"
	"strings"
	"time"
)

const (
	KindCash   PaymentKind = "cash"
	KindCredit PaymentKind = "credit"

	Income  TransactionType = "income"
	Expense TransactionType = "expense"
)

const dateLayout = "2006-01-02"

type (
	PaymentKind     string
	TransactionType string

	Date struct {
		time.Time
	}

	PaymentMethod struct {
		ID          int64
		Name        string
		Kind        PaymentKind
		BillingDay  int   // 0 when not configured
		AssetID     int64 // 0 when no asset is linked
		Description string
	}

	Asset struct {
		ID      int64
		Name    string
		Balance int64 // signed, integer currency units
		Note    string
	}

	Transaction struct {
		ID              int64
		Date            Date
		Amount          int64
		Note            string
		Type            TransactionType
		PaymentMethodID int64 // 0 when no payment method
	}

	// SettlementRecord is the idempotency marker for one card and one
	// settlement month. It is never updated or deleted.
	SettlementRecord struct {
		ID              int64
		PaymentMethodID int64
		Year            int
		Month           int // 1-12
		Amount          int64
		ProcessedAt     time.Time
	}
)

var (
	ErrInvalidDay          = errors.New("invalid day")
	ErrInvalidMonth        = errors.New("invalid month")
	ErrInvalidBillingDay   = errors.New("invalid billing day")
	ErrInvalidKind         = errors.New("invalid payment method kind")
	ErrInvalidTxType       = errors.New("invalid transaction type")
	ErrEmptyName           = errors.New("empty name")
	ErrBillingDayNotCredit = errors.New("billing day is only meaningful for credit methods")
)

func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	_, month, day := d.Date()
	if day < 1 || day > 31 {
		return ErrInvalidDay
	}
	if month < 1 || month > 12 {
		return ErrInvalidMonth
	}
	return nil
}

// Day returns the day of the month
func (d Date) Day() int {
	return d.Time.Day()
}

// Month returns the month
func (d Date) Month() int {
	return int(d.Time.Month())
}

// Year returns the year
func (d Date) Year() int {
	return d.Time.Year()
}

// String formats the date as YYYY-MM-DD, the storage representation.
func (d Date) String() string {
	return d.Format(dateLayout)
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf drops the clock part of t, keeping the calendar date as seen in t's location.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, err
	}
	return Date{Time: t}, nil
}

func (k PaymentKind) IsValid() bool {
	return k == KindCash || k == KindCredit
}

func (t TransactionType) IsValid() bool {
	return t == Income || t == Expense
}

// ValidBillingDay reports whether day can be used as a billing day.
func ValidBillingDay(day int) bool {
	return day >= 1 && day <= 31
}

// Settleable reports whether the engine should consider this method at all.
func (pm PaymentMethod) Settleable() bool {
	return pm.Kind == KindCredit && pm.AssetID != 0
}

func (pm PaymentMethod) Validate() error {
	if strings.TrimSpace(pm.Name) == "" {
		return ErrEmptyName
	}
	if !pm.Kind.IsValid() {
		return ErrInvalidKind
	}
	if pm.BillingDay != 0 {
		if pm.Kind != KindCredit {
			return ErrBillingDayNotCredit
		}
		if !ValidBillingDay(pm.BillingDay) {
			return ErrInvalidBillingDay
		}
	}
	return nil
}

func (a Asset) Validate() error {
	if strings.TrimSpace(a.Name) == "" {
		return ErrEmptyName
	}
	return nil
}

func (t Transaction) Validate() error {
	if err := t.Date.Validate(); err != nil {
		return err
	}
	if !t.Type.IsValid() {
		return ErrInvalidTxType
	}
	if len(t.Note) > 200 {
		return errors.New("note too long (max 200 characters)")
	}
	return nil
}

func (r SettlementRecord) Validate() error {
	if r.PaymentMethodID == 0 {
		return errors.New("settlement requires a payment method")
	}
	if r.Month < 1 || r.Month > 12 {
		return ErrInvalidMonth
	}
	if r.ProcessedAt.IsZero() {
		return errors.New("settlement requires a processing time")
	}
	return nil
}
