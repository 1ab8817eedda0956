package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"ledger/internal/core"
	"ledger/internal/log"
)

// SettlementStatus tags what happened to one card during a pass.
type SettlementStatus string

const (
	StatusSettled               SettlementStatus = "settled"
	StatusSkippedNoBillingDay   SettlementStatus = "skipped_no_billing_day"
	StatusSkippedNoAsset        SettlementStatus = "skipped_no_asset"
	StatusSkippedNotCredit      SettlementStatus = "skipped_not_credit"
	StatusSkippedNotDue         SettlementStatus = "skipped_not_due"
	StatusSkippedAlreadySettled SettlementStatus = "skipped_already_settled"
	StatusFailed                SettlementStatus = "failed"
)

// AllStatuses lists every status a CardOutcome can carry.
var AllStatuses = []SettlementStatus{
	StatusSettled,
	StatusSkippedNoBillingDay,
	StatusSkippedNoAsset,
	StatusSkippedNotCredit,
	StatusSkippedNotDue,
	StatusSkippedAlreadySettled,
	StatusFailed,
}

// CardOutcome is the result of evaluating one payment method in a pass.
type CardOutcome struct {
	PaymentMethodID int64
	AssetID         int64
	Status          SettlementStatus
	Amount          int64
	Period          core.BillingPeriod
	SettlementID    int64
	Err             error
}

// PassReport summarizes one processing pass for a settlement month.
type PassReport struct {
	Year       int
	Month      int
	StartedAt  time.Time
	FinishedAt time.Time
	Outcomes   []CardOutcome
}

// Count returns how many cards ended with status s.
func (r *PassReport) Count(s SettlementStatus) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == s {
			n++
		}
	}
	return n
}

// Failed returns the outcomes that ended in error.
func (r *PassReport) Failed() []CardOutcome {
	var failed []CardOutcome
	for _, o := range r.Outcomes {
		if o.Status == StatusFailed {
			failed = append(failed, o)
		}
	}
	return failed
}

// Settled returns the total amount debited during the pass.
func (r *PassReport) Settled() int64 {
	var total int64
	for _, o := range r.Outcomes {
		if o.Status == StatusSettled {
			total += o.Amount
		}
	}
	return total
}

// Duration is the wall time the pass took.
func (r *PassReport) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// EventPublisher is notified after a settlement has been committed.
type EventPublisher interface {
	PublishSettlementCompleted(ctx context.Context, rec core.SettlementRecord) error
}

// PassObserver receives every finished pass report.
type PassObserver interface {
	ObservePass(report *PassReport)
}

// SettlementProcessor applies closed billing cycles of credit cards to the
// assets that fund them, exactly once per card and settlement month.
type SettlementProcessor struct {
	methods      core.PaymentMethodDirectory
	transactions core.TransactionQuery
	store        core.SettlementStore
	publisher    EventPublisher
	observer     PassObserver
	logger       *log.Logger
	now          func() time.Time
	concurrency  int

	// passes are serialized; a trigger that arrives while one runs waits
	runMu sync.Mutex
}

// ProcessorOption configures a SettlementProcessor.
type ProcessorOption func(*SettlementProcessor)

// WithPublisher sets the post-commit event publisher.
func WithPublisher(pub EventPublisher) ProcessorOption {
	return func(p *SettlementProcessor) { p.publisher = pub }
}

// WithObserver sets a sink for pass reports, typically metrics.
func WithObserver(o PassObserver) ProcessorOption {
	return func(p *SettlementProcessor) { p.observer = o }
}

// WithClock replaces time.Now. The returned time's location decides what
// "today" means for eligibility.
func WithClock(now func() time.Time) ProcessorOption {
	return func(p *SettlementProcessor) { p.now = now }
}

// WithConcurrency bounds how many cards are settled in parallel.
func WithConcurrency(n int) ProcessorOption {
	return func(p *SettlementProcessor) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

// WithLogger overrides the component logger.
func WithLogger(l *log.Logger) ProcessorOption {
	return func(p *SettlementProcessor) { p.logger = l }
}

// NewSettlementProcessor creates a processor over the given collaborators.
func NewSettlementProcessor(methods core.PaymentMethodDirectory, transactions core.TransactionQuery, store core.SettlementStore, opts ...ProcessorOption) *SettlementProcessor {
	p := &SettlementProcessor{
		methods:      methods,
		transactions: transactions,
		store:        store,
		now:          time.Now,
		concurrency:  1,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = log.ForComponent(log.ComponentSettlement)
	}
	return p
}

// RunPass settles every eligible card for the given settlement month.
//
// Per-card problems never fail the pass; they are reported in the outcome
// list. An error is returned only when the card list cannot be loaded or
// ctx ends before the pass completes.
func (p *SettlementProcessor) RunPass(ctx context.Context, year, month int) (*PassReport, error) {
	if p.methods == nil || p.transactions == nil || p.store == nil {
		return nil, fmt.Errorf("processor not properly initialized")
	}
	if month < 1 || month > 12 {
		return nil, fmt.Errorf("settlement month %d: %w", month, core.ErrInvalidMonth)
	}

	p.runMu.Lock()
	defer p.runMu.Unlock()

	report := &PassReport{Year: year, Month: month, StartedAt: p.now()}
	defer func() {
		report.FinishedAt = p.now()
		if p.observer != nil {
			p.observer.ObservePass(report)
		}
	}()

	methods, err := p.methods.ListCreditMethodsWithAsset(ctx)
	if err != nil {
		return report, fmt.Errorf("list credit payment methods: %w", err)
	}

	p.logger.InfoContext(ctx, "Processing credit card settlements",
		log.FieldYear, year,
		log.FieldMonth, month,
		"cards", len(methods))

	today := p.now()
	report.Outcomes = make([]CardOutcome, len(methods))

	var g errgroup.Group
	g.SetLimit(p.concurrency)
	for i, pm := range methods {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				report.Outcomes[i] = CardOutcome{PaymentMethodID: pm.ID, AssetID: pm.AssetID, Status: StatusFailed, Err: err}
				return nil
			}
			report.Outcomes[i] = p.settleCard(ctx, today, year, month, pm)
			return nil
		})
	}
	_ = g.Wait()

	p.logger.InfoContext(ctx, "Credit card settlement pass complete",
		log.FieldYear, year,
		log.FieldMonth, month,
		"settled", report.Count(StatusSettled),
		"already_settled", report.Count(StatusSkippedAlreadySettled),
		"not_due", report.Count(StatusSkippedNotDue),
		"failed", report.Count(StatusFailed))

	return report, ctx.Err()
}

// settleCard runs the gates and, if all pass, the settlement unit for one card.
func (p *SettlementProcessor) settleCard(ctx context.Context, today time.Time, year, month int, pm core.PaymentMethod) CardOutcome {
	out := CardOutcome{PaymentMethodID: pm.ID, AssetID: pm.AssetID}
	fields := log.NewFields().WithCycle(pm.ID, year, month)

	switch {
	case pm.Kind != core.KindCredit:
		out.Status = StatusSkippedNotCredit
		p.logger.WarnContext(ctx, "Skipping non-credit payment method", fields.ToSlice()...)
		return out
	case pm.AssetID == 0:
		out.Status = StatusSkippedNoAsset
		p.logger.WarnContext(ctx, "Skipping credit card without linked asset", fields.ToSlice()...)
		return out
	case !core.ValidBillingDay(pm.BillingDay):
		out.Status = StatusSkippedNoBillingDay
		p.logger.WarnContext(ctx, "Skipping credit card without a valid billing day",
			append(fields.ToSlice(), log.FieldBillingDay, pm.BillingDay)...)
		return out
	}

	if !core.IsEligibleFor(today, year, month, pm.BillingDay) {
		out.Status = StatusSkippedNotDue
		p.logger.DebugContext(ctx, "Billing cycle not closed yet",
			append(fields.ToSlice(), log.FieldBillingDay, pm.BillingDay)...)
		return out
	}

	exists, err := p.store.SettlementExists(ctx, pm.ID, year, month)
	if err != nil {
		return p.fail(ctx, out, fields, "check settlement", err)
	}
	if exists {
		out.Status = StatusSkippedAlreadySettled
		p.logger.DebugContext(ctx, "Billing cycle already settled", fields.ToSlice()...)
		return out
	}

	out.Period = core.BillingPeriodFor(year, month)
	txs, err := p.transactions.FindByPaymentMethodAndDateRange(ctx, pm.ID, out.Period.Start, out.Period.End, core.Expense)
	if err != nil {
		return p.fail(ctx, out, fields, "load transactions", err)
	}
	for _, tx := range txs {
		out.Amount += tx.Amount
	}

	rec := core.SettlementRecord{
		PaymentMethodID: pm.ID,
		Year:            year,
		Month:           month,
		Amount:          out.Amount,
		ProcessedAt:     p.now(),
	}
	err = p.store.RunInTx(ctx, func(tx core.SettlementTx) error {
		// the pre-check above may be stale by now
		exists, err := tx.SettlementExists(ctx, pm.ID, year, month)
		if err != nil {
			return err
		}
		if exists {
			return core.ErrDuplicateSettlement
		}
		id, err := tx.InsertSettlement(ctx, rec)
		if err != nil {
			return err
		}
		rec.ID = id
		return tx.AdjustBalance(ctx, pm.AssetID, -out.Amount)
	})
	if errors.Is(err, core.ErrDuplicateSettlement) {
		out.Status = StatusSkippedAlreadySettled
		p.logger.InfoContext(ctx, "Billing cycle settled concurrently, skipping", fields.ToSlice()...)
		return out
	}
	if err != nil {
		return p.fail(ctx, out, fields, "settle", err)
	}

	out.Status = StatusSettled
	out.SettlementID = rec.ID
	p.logger.InfoContext(ctx, "Credit card settled",
		append(fields.ToSlice(),
			log.FieldSettlementID, rec.ID,
			log.FieldAssetID, pm.AssetID,
			log.FieldAmount, out.Amount,
			log.FieldPeriod, out.Period.String(),
			"transactions", len(txs))...)

	if p.publisher != nil {
		if err := p.publisher.PublishSettlementCompleted(ctx, rec); err != nil {
			p.logger.WarnContext(ctx, "Failed to publish settlement event",
				append(fields.ToSlice(), log.FieldSettlementID, rec.ID, log.FieldError, err)...)
		}
	}
	return out
}

func (p *SettlementProcessor) fail(ctx context.Context, out CardOutcome, fields log.LogFields, op string, err error) CardOutcome {
	out.Status = StatusFailed
	out.Err = fmt.Errorf("%s: %w", op, err)
	p.logger.ErrorContext(ctx, "Credit card settlement failed",
		fields.WithOperation(op).WithError(err).ToSlice()...)
	return out
}
