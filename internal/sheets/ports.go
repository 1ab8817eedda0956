package sheets

import (
	"context"

	"ledger/internal/core"
)

// Ports for outbound adapters.
type (
	SettlementWriter interface {
		// AppendSettlement writes one row for rec and returns a reference to it.
		AppendSettlement(ctx context.Context, rec core.SettlementRecord) (rowRef string, err error)
	}

	// SettlementLister reads back the rows mirrored for a settlement year.
	SettlementLister interface {
		ListSettlements(ctx context.Context, year int) ([]core.SettlementRecord, error)
	}

	SettlementMirror interface {
		SettlementWriter
		SettlementLister
	}
)
