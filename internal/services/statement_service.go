package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ledger/internal/core"
)

// ErrNotSettleable is returned when a statement is requested for a method
// the settlement engine would never process.
var ErrNotSettleable = errors.New("payment method is not a settleable credit card")

// PaymentMethodReader loads a single payment method.
type PaymentMethodReader interface {
	GetPaymentMethod(ctx context.Context, id int64) (core.PaymentMethod, error)
}

// StatementService previews what a settlement pass would charge a card for a
// given settlement month. It never writes.
type StatementService struct {
	methods      PaymentMethodReader
	transactions core.TransactionQuery
	settlements  core.SettlementLookup
	now          func() time.Time
}

func NewStatementService(methods PaymentMethodReader, transactions core.TransactionQuery, settlements core.SettlementLookup, now func() time.Time) *StatementService {
	if now == nil {
		now = time.Now
	}
	return &StatementService{
		methods:      methods,
		transactions: transactions,
		settlements:  settlements,
		now:          now,
	}
}

// Preview computes the billing period, due date and current expense total of
// one card for the settlement month (year, month).
func (s *StatementService) Preview(ctx context.Context, paymentMethodID int64, year, month int) (core.StatementPreview, error) {
	pm, err := s.methods.GetPaymentMethod(ctx, paymentMethodID)
	if err != nil {
		return core.StatementPreview{}, fmt.Errorf("get payment method: %w", err)
	}
	if pm.Kind != core.KindCredit {
		return core.StatementPreview{}, ErrNotSettleable
	}

	due, err := core.DueDate(year, month, pm.BillingDay)
	if err != nil {
		return core.StatementPreview{}, fmt.Errorf("due date: %w", err)
	}

	now := s.now()
	preview := core.StatementPreview{
		PaymentMethodID: pm.ID,
		Year:            year,
		Month:           month,
		Period:          core.BillingPeriodFor(year, month),
		DueDate:         due,
		Due:             core.IsEligibleFor(now, year, month, pm.BillingDay),
		GeneratedAt:     now,
	}

	txs, err := s.transactions.FindByPaymentMethodAndDateRange(ctx, pm.ID, preview.Period.Start, preview.Period.End, core.Expense)
	if err != nil {
		return core.StatementPreview{}, fmt.Errorf("load transactions: %w", err)
	}
	for _, tx := range txs {
		preview.Total += tx.Amount
	}
	preview.Transactions = len(txs)

	preview.Settled, err = s.settlements.SettlementExists(ctx, pm.ID, year, month)
	if err != nil {
		return core.StatementPreview{}, fmt.Errorf("check settlement: %w", err)
	}
	return preview, nil
}
