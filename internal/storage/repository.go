package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"ledger/internal/core"
	"ledger/internal/log"

	_ "modernc.org/sqlite"
)

// processedAtLayout keeps sub-second precision and sorts lexically.
const processedAtLayout = time.RFC3339Nano

// SQLiteRepository is the ledger store. It serves the payment method
// directory, the transaction query, the asset ledger and the settlement
// idempotency table from one database.
type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	logger  *log.Logger
}

var (
	_ core.PaymentMethodDirectory = (*SQLiteRepository)(nil)
	_ core.TransactionQuery       = (*SQLiteRepository)(nil)
	_ core.SettlementStore        = (*SQLiteRepository)(nil)
)

// dsn enables foreign keys, waits on a locked database instead of failing
// right away, and makes every write transaction take the write lock at BEGIN.
func dsn(dbPath string) string {
	return dbPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_txlock=immediate"
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	db, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return NewSQLiteRepositoryFromDB(db), nil
}

// NewSQLiteRepositoryFromDB wraps an already opened and migrated handle.
func NewSQLiteRepositoryFromDB(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{
		db:      db,
		queries: New(db),
		logger:  log.ForComponent(log.ComponentStorage),
	}
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping backs the /readyz check.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) CreateAsset(ctx context.Context, a core.Asset) (int64, error) {
	if err := a.Validate(); err != nil {
		return 0, fmt.Errorf("invalid asset: %w", err)
	}
	id, err := r.queries.CreateAsset(ctx, CreateAssetParams{
		Name:    a.Name,
		Balance: a.Balance,
		Note:    a.Note,
	})
	if err != nil {
		return 0, fmt.Errorf("create asset: %w", err)
	}
	return id, nil
}

func (r *SQLiteRepository) GetAsset(ctx context.Context, id int64) (core.Asset, error) {
	row, err := r.queries.GetAsset(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Asset{}, fmt.Errorf("asset %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return core.Asset{}, fmt.Errorf("get asset: %w", err)
	}
	return core.Asset{ID: row.ID, Name: row.Name, Balance: row.Balance, Note: row.Note}, nil
}

func (r *SQLiteRepository) CreatePaymentMethod(ctx context.Context, pm core.PaymentMethod) (int64, error) {
	if err := pm.Validate(); err != nil {
		return 0, fmt.Errorf("invalid payment method: %w", err)
	}
	id, err := r.queries.CreatePaymentMethod(ctx, CreatePaymentMethodParams{
		Name:        pm.Name,
		Kind:        string(pm.Kind),
		BillingDay:  nullInt(int64(pm.BillingDay)),
		AssetID:     nullInt(pm.AssetID),
		Description: pm.Description,
	})
	if err != nil {
		return 0, fmt.Errorf("create payment method: %w", err)
	}
	return id, nil
}

func (r *SQLiteRepository) GetPaymentMethod(ctx context.Context, id int64) (core.PaymentMethod, error) {
	row, err := r.queries.GetPaymentMethod(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.PaymentMethod{}, fmt.Errorf("payment method %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return core.PaymentMethod{}, fmt.Errorf("get payment method: %w", err)
	}
	return toCorePaymentMethod(row), nil
}

func (r *SQLiteRepository) CreateTransaction(ctx context.Context, t core.Transaction) (int64, error) {
	if err := t.Validate(); err != nil {
		return 0, fmt.Errorf("invalid transaction: %w", err)
	}
	id, err := r.queries.CreateTransaction(ctx, CreateTransactionParams{
		Date:            t.Date.String(),
		Amount:          t.Amount,
		Note:            t.Note,
		Type:            string(t.Type),
		PaymentMethodID: nullInt(t.PaymentMethodID),
	})
	if err != nil {
		return 0, fmt.Errorf("create transaction: %w", err)
	}
	return id, nil
}

// ListCreditMethodsWithAsset implements core.PaymentMethodDirectory.
func (r *SQLiteRepository) ListCreditMethodsWithAsset(ctx context.Context) ([]core.PaymentMethod, error) {
	rows, err := r.queries.ListCreditMethodsWithAsset(ctx)
	if err != nil {
		return nil, fmt.Errorf("list credit payment methods: %w", err)
	}
	methods := make([]core.PaymentMethod, len(rows))
	for i, row := range rows {
		methods[i] = toCorePaymentMethod(row)
	}
	return methods, nil
}

// FindByPaymentMethodAndDateRange implements core.TransactionQuery. Both
// bounds are inclusive; dates are compared as YYYY-MM-DD text.
func (r *SQLiteRepository) FindByPaymentMethodAndDateRange(ctx context.Context, paymentMethodID int64, start, end core.Date, typ core.TransactionType) ([]core.Transaction, error) {
	rows, err := r.queries.ListTransactionsByMethodAndDateRange(ctx, ListTransactionsByMethodAndDateRangeParams{
		PaymentMethodID: nullInt(paymentMethodID),
		Type:            string(typ),
		StartDate:       start.String(),
		EndDate:         end.String(),
	})
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}

	txs := make([]core.Transaction, 0, len(rows))
	for _, row := range rows {
		d, err := core.ParseDate(row.Date)
		if err != nil {
			return nil, fmt.Errorf("transaction %d has malformed date %q: %w", row.ID, row.Date, err)
		}
		txs = append(txs, core.Transaction{
			ID:              row.ID,
			Date:            d,
			Amount:          row.Amount,
			Note:            row.Note,
			Type:            core.TransactionType(row.Type),
			PaymentMethodID: row.PaymentMethodID.Int64,
		})
	}
	return txs, nil
}

// SettlementExists implements core.SettlementLookup.
func (r *SQLiteRepository) SettlementExists(ctx context.Context, paymentMethodID int64, year, month int) (bool, error) {
	return settlementExistsRow(ctx, r.queries, paymentMethodID, year, month)
}

func (r *SQLiteRepository) GetSettlement(ctx context.Context, id int64) (core.SettlementRecord, error) {
	row, err := r.queries.GetSettlement(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.SettlementRecord{}, fmt.Errorf("settlement %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return core.SettlementRecord{}, fmt.Errorf("get settlement: %w", err)
	}
	return toCoreSettlement(row)
}

// ListSettlements returns the records of one settlement month ordered by
// payment method.
func (r *SQLiteRepository) ListSettlements(ctx context.Context, year, month int) ([]core.SettlementRecord, error) {
	rows, err := r.queries.ListSettlementsByMonth(ctx, ListSettlementsByMonthParams{
		SettlementYear:  int64(year),
		SettlementMonth: int64(month),
	})
	if err != nil {
		return nil, fmt.Errorf("list settlements: %w", err)
	}
	records := make([]core.SettlementRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := toCoreSettlement(row)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// RunInTx implements core.SettlementStore. fn's writes are committed only
// if it returns nil.
func (r *SQLiteRepository) RunInTx(ctx context.Context, fn func(tx core.SettlementTx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() // no-op once committed

	if err := fn(&settlementTx{queries: r.queries.WithTx(tx), logger: r.logger}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

type settlementTx struct {
	queries *Queries
	logger  *log.Logger
}

func (t *settlementTx) SettlementExists(ctx context.Context, paymentMethodID int64, year, month int) (bool, error) {
	return settlementExistsRow(ctx, t.queries, paymentMethodID, year, month)
}

func (t *settlementTx) InsertSettlement(ctx context.Context, rec core.SettlementRecord) (int64, error) {
	if err := rec.Validate(); err != nil {
		return 0, fmt.Errorf("invalid settlement: %w", err)
	}
	id, err := t.queries.InsertSettlement(ctx, InsertSettlementParams{
		PaymentMethodID: rec.PaymentMethodID,
		SettlementYear:  int64(rec.Year),
		SettlementMonth: int64(rec.Month),
		Amount:          rec.Amount,
		ProcessedAt:     rec.ProcessedAt.UTC().Format(processedAtLayout),
	})
	if isUniqueViolation(err) {
		return 0, ErrDuplicateSettlement
	}
	if err != nil {
		return 0, fmt.Errorf("insert settlement: %w", err)
	}
	return id, nil
}

func (t *settlementTx) AdjustBalance(ctx context.Context, assetID int64, delta int64) error {
	res, err := t.queries.AdjustAssetBalance(ctx, AdjustAssetBalanceParams{Delta: delta, ID: assetID})
	if err != nil {
		return fmt.Errorf("adjust asset balance: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("adjust asset balance: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("asset %d: %w", assetID, ErrAssetNotFound)
	}
	t.logger.DebugContext(ctx, "Asset balance adjusted", log.FieldAssetID, assetID, "delta", delta)
	return nil
}

func settlementExistsRow(ctx context.Context, q *Queries, paymentMethodID int64, year, month int) (bool, error) {
	n, err := q.SettlementExists(ctx, SettlementExistsParams{
		PaymentMethodID: paymentMethodID,
		SettlementYear:  int64(year),
		SettlementMonth: int64(month),
	})
	if err != nil {
		return false, fmt.Errorf("check settlement: %w", err)
	}
	return n != 0, nil
}

func toCorePaymentMethod(row PaymentMethod) core.PaymentMethod {
	return core.PaymentMethod{
		ID:          row.ID,
		Name:        row.Name,
		Kind:        core.PaymentKind(row.Kind),
		BillingDay:  int(row.BillingDay.Int64),
		AssetID:     row.AssetID.Int64,
		Description: row.Description,
	}
}

func toCoreSettlement(row Settlement) (core.SettlementRecord, error) {
	processedAt, err := time.Parse(processedAtLayout, row.ProcessedAt)
	if err != nil {
		return core.SettlementRecord{}, fmt.Errorf("settlement %d has malformed processed_at %q: %w", row.ID, row.ProcessedAt, err)
	}
	return core.SettlementRecord{
		ID:              row.ID,
		PaymentMethodID: row.PaymentMethodID,
		Year:            int(row.SettlementYear),
		Month:           int(row.SettlementMonth),
		Amount:          row.Amount,
		ProcessedAt:     processedAt,
	}, nil
}

func nullInt(v int64) sql.NullInt64 {
	return sql.NullInt64{Int64: v, Valid: v != 0}
}
