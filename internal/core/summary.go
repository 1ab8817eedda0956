package core

import "time"

// StatementPreview is a compact view of one card's cycle for a processing month.
type StatementPreview struct {
	PaymentMethodID int64
	Year            int
	Month           int // 1-12
	Period          BillingPeriod
	DueDate         Date
	Total           int64
	Transactions    int
	Due             bool
	Settled         bool
	GeneratedAt     time.Time
}
