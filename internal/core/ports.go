package core

import (
	"context"
	"errors"
)

var (
	// ErrDuplicateSettlement is returned when a settlement record for the same
	// (payment method, year, month) already exists.
	ErrDuplicateSettlement = errors.New("settlement already recorded")

	// ErrAssetNotFound is returned when a balance adjustment targets a missing asset.
	ErrAssetNotFound = errors.New("asset not found")
)

// Ports consumed by the settlement engine.
type (
	PaymentMethodDirectory interface {
		// ListCreditMethodsWithAsset returns every credit method that has an asset linked.
		ListCreditMethodsWithAsset(ctx context.Context) ([]PaymentMethod, error)
	}

	TransactionQuery interface {
		// FindByPaymentMethodAndDateRange returns transactions of the given type
		// paid with paymentMethodID whose date lies in [start, end].
		FindByPaymentMethodAndDateRange(ctx context.Context, paymentMethodID int64, start, end Date, typ TransactionType) ([]Transaction, error)
	}

	SettlementLookup interface {
		SettlementExists(ctx context.Context, paymentMethodID int64, year, month int) (bool, error)
	}

	// SettlementStore owns the idempotency table and opens the unit of work
	// that pairs the settlement insert with the asset debit.
	SettlementStore interface {
		SettlementLookup

		// RunInTx runs fn in a single store transaction. If fn returns an
		// error nothing it wrote is kept.
		RunInTx(ctx context.Context, fn func(tx SettlementTx) error) error
	}

	SettlementTx interface {
		SettlementLookup

		// InsertSettlement returns ErrDuplicateSettlement on a uniqueness violation.
		InsertSettlement(ctx context.Context, rec SettlementRecord) (int64, error)

		// AdjustBalance adds delta to the asset balance relative to its current
		// value. Returns ErrAssetNotFound when no row was touched.
		AdjustBalance(ctx context.Context, assetID int64, delta int64) error
	}
)
