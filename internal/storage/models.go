package storage

import (
	"database/sql"
)

type Asset struct {
	ID      int64
	Name    string
	Balance int64
	Note    string
}

type PaymentMethod struct {
	ID          int64
	Name        string
	Kind        string
	BillingDay  sql.NullInt64
	AssetID     sql.NullInt64
	Description string
}

type Settlement struct {
	ID              int64
	PaymentMethodID int64
	SettlementYear  int64
	SettlementMonth int64
	Amount          int64
	ProcessedAt     string
}

type Transaction struct {
	ID              int64
	Date            string
	Amount          int64
	Note            string
	Type            string
	PaymentMethodID sql.NullInt64
}
