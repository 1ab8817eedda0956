package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"ledger/internal/core"
	ports "ledger/internal/sheets"
)

// Store keeps mirrored settlement rows in process memory, grouped by year.
type Store struct {
	mu   sync.Mutex
	rows map[int][]core.SettlementRecord
	seq  int
}

var _ ports.SettlementMirror = (*Store)(nil)

func New() *Store {
	return &Store{rows: make(map[int][]core.SettlementRecord)}
}

// AppendSettlement stores the record and returns a synthetic row reference.
func (s *Store) AppendSettlement(_ context.Context, rec core.SettlementRecord) (string, error) {
	if err := rec.Validate(); err != nil {
		return "", err
	}
	if rec.ID == 0 {
		return "", errors.New("settlement has no id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[rec.Year] = append(s.rows[rec.Year], rec)
	s.seq++
	return fmt.Sprintf("mem:%d", s.seq), nil
}

// ListSettlements returns the rows of a year in append order.
func (s *Store) ListSettlements(_ context.Context, year int) ([]core.SettlementRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.SettlementRecord(nil), s.rows[year]...), nil
}
