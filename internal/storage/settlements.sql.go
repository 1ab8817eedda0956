package storage

import (
	"context"
)

const getSettlement = `-- name: GetSettlement :one
SELECT id, payment_method_id, settlement_year, settlement_month, amount, processed_at
FROM settlements
WHERE id = ?
`

func (q *Queries) GetSettlement(ctx context.Context, id int64) (Settlement, error) {
	row := q.db.QueryRowContext(ctx, getSettlement, id)
	var i Settlement
	err := row.Scan(
		&i.ID,
		&i.PaymentMethodID,
		&i.SettlementYear,
		&i.SettlementMonth,
		&i.Amount,
		&i.ProcessedAt,
	)
	return i, err
}

const insertSettlement = `-- name: InsertSettlement :execlastid
INSERT INTO settlements (payment_method_id, settlement_year, settlement_month, amount, processed_at)
VALUES (?, ?, ?, ?, ?)
`

type InsertSettlementParams struct {
	PaymentMethodID int64
	SettlementYear  int64
	SettlementMonth int64
	Amount          int64
	ProcessedAt     string
}

func (q *Queries) InsertSettlement(ctx context.Context, arg InsertSettlementParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, insertSettlement,
		arg.PaymentMethodID,
		arg.SettlementYear,
		arg.SettlementMonth,
		arg.Amount,
		arg.ProcessedAt,
	)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

const listSettlementsByMonth = `-- name: ListSettlementsByMonth :many
SELECT id, payment_method_id, settlement_year, settlement_month, amount, processed_at
FROM settlements
WHERE settlement_year = ? AND settlement_month = ?
ORDER BY payment_method_id
`

type ListSettlementsByMonthParams struct {
	SettlementYear  int64
	SettlementMonth int64
}

func (q *Queries) ListSettlementsByMonth(ctx context.Context, arg ListSettlementsByMonthParams) ([]Settlement, error) {
	rows, err := q.db.QueryContext(ctx, listSettlementsByMonth, arg.SettlementYear, arg.SettlementMonth)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Settlement
	for rows.Next() {
		var i Settlement
		if err := rows.Scan(
			&i.ID,
			&i.PaymentMethodID,
			&i.SettlementYear,
			&i.SettlementMonth,
			&i.Amount,
			&i.ProcessedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const settlementExists = `-- name: SettlementExists :one
SELECT EXISTS (
    SELECT 1 FROM settlements
    WHERE payment_method_id = ? AND settlement_year = ? AND settlement_month = ?
)
`

type SettlementExistsParams struct {
	PaymentMethodID int64
	SettlementYear  int64
	SettlementMonth int64
}

func (q *Queries) SettlementExists(ctx context.Context, arg SettlementExistsParams) (int64, error) {
	row := q.db.QueryRowContext(ctx, settlementExists, arg.PaymentMethodID, arg.SettlementYear, arg.SettlementMonth)
	var column_1 int64
	err := row.Scan(&column_1)
	return column_1, err
}
