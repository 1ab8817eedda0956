package storage

import (
	"context"
	"database/sql"
)

const adjustAssetBalance = `-- name: AdjustAssetBalance :execresult
UPDATE assets
SET balance = balance + ?1
WHERE id = ?2
`

type AdjustAssetBalanceParams struct {
	Delta int64
	ID    int64
}

func (q *Queries) AdjustAssetBalance(ctx context.Context, arg AdjustAssetBalanceParams) (sql.Result, error) {
	return q.db.ExecContext(ctx, adjustAssetBalance, arg.Delta, arg.ID)
}

const createAsset = `-- name: CreateAsset :execlastid
INSERT INTO assets (name, balance, note)
VALUES (?, ?, ?)
`

type CreateAssetParams struct {
	Name    string
	Balance int64
	Note    string
}

func (q *Queries) CreateAsset(ctx context.Context, arg CreateAssetParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, createAsset, arg.Name, arg.Balance, arg.Note)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

const createPaymentMethod = `-- name: CreatePaymentMethod :execlastid
INSERT INTO payment_methods (name, kind, billing_day, asset_id, description)
VALUES (?, ?, ?, ?, ?)
`

type CreatePaymentMethodParams struct {
	Name        string
	Kind        string
	BillingDay  sql.NullInt64
	AssetID     sql.NullInt64
	Description string
}

func (q *Queries) CreatePaymentMethod(ctx context.Context, arg CreatePaymentMethodParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, createPaymentMethod,
		arg.Name,
		arg.Kind,
		arg.BillingDay,
		arg.AssetID,
		arg.Description,
	)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

const createTransaction = `-- name: CreateTransaction :execlastid
INSERT INTO transactions (date, amount, note, type, payment_method_id)
VALUES (?, ?, ?, ?, ?)
`

type CreateTransactionParams struct {
	Date            string
	Amount          int64
	Note            string
	Type            string
	PaymentMethodID sql.NullInt64
}

func (q *Queries) CreateTransaction(ctx context.Context, arg CreateTransactionParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, createTransaction,
		arg.Date,
		arg.Amount,
		arg.Note,
		arg.Type,
		arg.PaymentMethodID,
	)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

const getAsset = `-- name: GetAsset :one
SELECT id, name, balance, note
FROM assets
WHERE id = ?
`

func (q *Queries) GetAsset(ctx context.Context, id int64) (Asset, error) {
	row := q.db.QueryRowContext(ctx, getAsset, id)
	var i Asset
	err := row.Scan(
		&i.ID,
		&i.Name,
		&i.Balance,
		&i.Note,
	)
	return i, err
}

const getPaymentMethod = `-- name: GetPaymentMethod :one
SELECT id, name, kind, billing_day, asset_id, description
FROM payment_methods
WHERE id = ?
`

func (q *Queries) GetPaymentMethod(ctx context.Context, id int64) (PaymentMethod, error) {
	row := q.db.QueryRowContext(ctx, getPaymentMethod, id)
	var i PaymentMethod
	err := row.Scan(
		&i.ID,
		&i.Name,
		&i.Kind,
		&i.BillingDay,
		&i.AssetID,
		&i.Description,
	)
	return i, err
}

const listCreditMethodsWithAsset = `-- name: ListCreditMethodsWithAsset :many
SELECT id, name, kind, billing_day, asset_id, description
FROM payment_methods
WHERE kind = 'credit' AND asset_id IS NOT NULL
ORDER BY id
`

func (q *Queries) ListCreditMethodsWithAsset(ctx context.Context) ([]PaymentMethod, error) {
	rows, err := q.db.QueryContext(ctx, listCreditMethodsWithAsset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []PaymentMethod
	for rows.Next() {
		var i PaymentMethod
		if err := rows.Scan(
			&i.ID,
			&i.Name,
			&i.Kind,
			&i.BillingDay,
			&i.AssetID,
			&i.Description,
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

const listTransactionsByMethodAndDateRange = `-- name: ListTransactionsByMethodAndDateRange :many
SELECT id, date, amount, note, type, payment_method_id
FROM transactions
WHERE payment_method_id = ?1
  AND type = ?2
  AND date BETWEEN ?3 AND ?4
ORDER BY date, id
`

type ListTransactionsByMethodAndDateRangeParams struct {
	PaymentMethodID sql.NullInt64
	Type            string
	StartDate       string
	EndDate         string
}

func (q *Queries) ListTransactionsByMethodAndDateRange(ctx context.Context, arg ListTransactionsByMethodAndDateRangeParams) ([]Transaction, error) {
	rows, err := q.db.QueryContext(ctx, listTransactionsByMethodAndDateRange,
		arg.PaymentMethodID,
		arg.Type,
		arg.StartDate,
		arg.EndDate,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Transaction
	for rows.Next() {
		var i Transaction
		if err := rows.Scan(
			&i.ID,
			&i.Date,
			&i.Amount,
			&i.Note,
			&i.Type,
			&i.PaymentMethodID,
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
