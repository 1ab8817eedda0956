package services

import (
	"context"
	"fmt"
	"sync"

	"ledger/internal/core"
)

type settleKey struct {
	pmID  int64
	year  int
	month int
}

// memLedger is an in-memory ledger store. Write transactions are serialized
// and applied only when fn returns nil, like the SQLite store.
type memLedger struct {
	mu          sync.Mutex
	txMu        sync.Mutex
	methods     []core.PaymentMethod
	assets      map[int64]int64
	txs         []core.Transaction
	settlements map[settleKey]core.SettlementRecord
	nextID      int64

	listErr    error
	findErr    map[int64]error
	existsErr  error
	adjustErr  error
	staleReads bool // SettlementExists always reports false
	finds      int
}

func newMemLedger() *memLedger {
	return &memLedger{
		assets:      make(map[int64]int64),
		settlements: make(map[settleKey]core.SettlementRecord),
		findErr:     make(map[int64]error),
	}
}

func (m *memLedger) addCard(pm core.PaymentMethod) {
	if pm.Kind == "" {
		pm.Kind = core.KindCredit
	}
	m.methods = append(m.methods, pm)
}

func (m *memLedger) addExpense(pmID int64, date string, amount int64) {
	m.addTx(pmID, date, amount, core.Expense)
}

func (m *memLedger) addTx(pmID int64, date string, amount int64, typ core.TransactionType) {
	d, err := core.ParseDate(date)
	if err != nil {
		panic(err)
	}
	m.txs = append(m.txs, core.Transaction{ID: int64(len(m.txs) + 1), Date: d, Amount: amount, Type: typ, PaymentMethodID: pmID})
}

func (m *memLedger) balance(assetID int64) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.assets[assetID]
}

func (m *memLedger) record(pmID int64, year, month int) (core.SettlementRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.settlements[settleKey{pmID, year, month}]
	return rec, ok
}

func (m *memLedger) recordCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.settlements)
}

func (m *memLedger) ListCreditMethodsWithAsset(ctx context.Context) ([]core.PaymentMethod, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := make([]core.PaymentMethod, len(m.methods))
	copy(out, m.methods)
	return out, nil
}

func (m *memLedger) GetPaymentMethod(ctx context.Context, id int64) (core.PaymentMethod, error) {
	for _, pm := range m.methods {
		if pm.ID == id {
			return pm, nil
		}
	}
	return core.PaymentMethod{}, fmt.Errorf("payment method %d: not found", id)
}

func (m *memLedger) FindByPaymentMethodAndDateRange(ctx context.Context, pmID int64, start, end core.Date, typ core.TransactionType) ([]core.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.finds++
	if err := m.findErr[pmID]; err != nil {
		return nil, err
	}
	period := core.BillingPeriod{Start: start, End: end}
	var out []core.Transaction
	for _, tx := range m.txs {
		if tx.PaymentMethodID == pmID && tx.Type == typ && period.Contains(tx.Date) {
			out = append(out, tx)
		}
	}
	return out, nil
}

func (m *memLedger) SettlementExists(ctx context.Context, pmID int64, year, month int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.existsErr != nil {
		return false, m.existsErr
	}
	if m.staleReads {
		return false, nil
	}
	_, ok := m.settlements[settleKey{pmID, year, month}]
	return ok, nil
}

func (m *memLedger) RunInTx(ctx context.Context, fn func(tx core.SettlementTx) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	tx := &memTx{m: m, deltas: make(map[int64]int64)}
	if err := fn(tx); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range tx.inserts {
		m.settlements[settleKey{rec.PaymentMethodID, rec.Year, rec.Month}] = rec
	}
	for id, d := range tx.deltas {
		m.assets[id] += d
	}
	return nil
}

type memTx struct {
	m       *memLedger
	inserts []core.SettlementRecord
	deltas  map[int64]int64
}

func (t *memTx) SettlementExists(ctx context.Context, pmID int64, year, month int) (bool, error) {
	ok, err := t.m.SettlementExists(ctx, pmID, year, month)
	if err != nil || ok {
		return ok, err
	}
	for _, rec := range t.inserts {
		if rec.PaymentMethodID == pmID && rec.Year == year && rec.Month == month {
			return true, nil
		}
	}
	return false, nil
}

func (t *memTx) InsertSettlement(ctx context.Context, rec core.SettlementRecord) (int64, error) {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	if _, dup := t.m.settlements[settleKey{rec.PaymentMethodID, rec.Year, rec.Month}]; dup {
		return 0, core.ErrDuplicateSettlement
	}
	t.m.nextID++
	rec.ID = t.m.nextID
	t.inserts = append(t.inserts, rec)
	return rec.ID, nil
}

func (t *memTx) AdjustBalance(ctx context.Context, assetID int64, delta int64) error {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	if t.m.adjustErr != nil {
		return t.m.adjustErr
	}
	if _, ok := t.m.assets[assetID]; !ok {
		return core.ErrAssetNotFound
	}
	t.deltas[assetID] += delta
	return nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []core.SettlementRecord
	err    error
}

func (p *recordingPublisher) PublishSettlementCompleted(ctx context.Context, rec core.SettlementRecord) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, rec)
	return nil
}

type recordingObserver struct {
	reports []*PassReport
}

func (o *recordingObserver) ObservePass(r *PassReport) {
	o.reports = append(o.reports, r)
}
