package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledger/internal/core"
	"ledger/internal/log"
)

func newMockRepository(t *testing.T) (*SQLiteRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewSQLiteRepositoryFromDB(db), mock
}

func settleFn(ctx context.Context, rec core.SettlementRecord, assetID int64) func(core.SettlementTx) error {
	return func(tx core.SettlementTx) error {
		if _, err := tx.InsertSettlement(ctx, rec); err != nil {
			return err
		}
		return tx.AdjustBalance(ctx, assetID, -rec.Amount)
	}
}

func TestRunInTx_CommitsInsertAndDebit(t *testing.T) {
	repo, mock := newMockRepository(t)
	ctx := context.Background()
	rec := core.SettlementRecord{PaymentMethodID: 3, Year: 2025, Month: 2, Amount: 120000, ProcessedAt: time.Now()}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO settlements").
		WithArgs(int64(3), int64(2025), int64(2), int64(120000), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(7, 1))
	mock.ExpectExec("UPDATE assets").
		WithArgs(int64(-120000), int64(11)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.RunInTx(ctx, settleFn(ctx, rec, 11)))
	assert.NoError(t, mock.ExpectationsWereMet())
	assert.Equal(t, log.ComponentStorage, repo.logger.Component())
}

func TestRunInTx_RollsBackWhenDebitFails(t *testing.T) {
	repo, mock := newMockRepository(t)
	ctx := context.Background()
	rec := core.SettlementRecord{PaymentMethodID: 3, Year: 2025, Month: 2, Amount: 500, ProcessedAt: time.Now()}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO settlements").
		WillReturnResult(sqlmock.NewResult(7, 1))
	mock.ExpectExec("UPDATE assets").
		WillReturnError(errors.New("disk I/O error"))
	mock.ExpectRollback()

	err := repo.RunInTx(ctx, settleFn(ctx, rec, 11))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "adjust asset balance")
	assert.NoError(t, mock.ExpectationsWereMet(), "insert must be rolled back with the failed debit")
}

func TestRunInTx_RollsBackWhenAssetMissing(t *testing.T) {
	repo, mock := newMockRepository(t)
	ctx := context.Background()
	rec := core.SettlementRecord{PaymentMethodID: 3, Year: 2025, Month: 2, Amount: 500, ProcessedAt: time.Now()}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO settlements").
		WillReturnResult(sqlmock.NewResult(7, 1))
	mock.ExpectExec("UPDATE assets").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.RunInTx(ctx, settleFn(ctx, rec, 99))
	assert.ErrorIs(t, err, ErrAssetNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunInTx_DuplicateInsertSkipsDebit(t *testing.T) {
	repo, mock := newMockRepository(t)
	ctx := context.Background()
	rec := core.SettlementRecord{PaymentMethodID: 3, Year: 2025, Month: 2, Amount: 500, ProcessedAt: time.Now()}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO settlements").
		WillReturnError(errors.New("constraint failed: UNIQUE constraint failed: settlements.payment_method_id, settlements.settlement_year, settlements.settlement_month (2067)"))
	mock.ExpectRollback()

	err := repo.RunInTx(ctx, settleFn(ctx, rec, 11))
	assert.ErrorIs(t, err, ErrDuplicateSettlement)
	assert.NoError(t, mock.ExpectationsWereMet(), "no balance update may follow a duplicate insert")
}

func TestRunInTx_CommitFailure(t *testing.T) {
	repo, mock := newMockRepository(t)
	ctx := context.Background()
	rec := core.SettlementRecord{PaymentMethodID: 3, Year: 2025, Month: 2, Amount: 500, ProcessedAt: time.Now()}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO settlements").WillReturnResult(sqlmock.NewResult(7, 1))
	mock.ExpectExec("UPDATE assets").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit().WillReturnError(errors.New("database is locked"))

	err := repo.RunInTx(ctx, settleFn(ctx, rec, 11))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "commit transaction")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSettlementExists_PropagatesQueryError(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(int64(3), int64(2025), int64(2)).
		WillReturnError(errors.New("database is locked"))

	_, err := repo.SettlementExists(context.Background(), 3, 2025, 2)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "check settlement")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIsUniqueViolation(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"unrelated", errors.New("no such table: settlements"), false},
		{"unique message", errors.New("UNIQUE constraint failed: settlements.payment_method_id"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isUniqueViolation(tt.err))
		})
	}
}
