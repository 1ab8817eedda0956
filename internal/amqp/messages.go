package amqp

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"ledger/internal/core"
)

// EventSettlementCompleted is the AMQP message type of SettlementEventMessage.
const EventSettlementCompleted = "settlement.completed"

// SettlementEventMessage announces a committed settlement. Consumers that
// need more than these fields read the record back by SettlementID.
type SettlementEventMessage struct {
	EventID         string    `json:"event_id"`
	SettlementID    int64     `json:"settlement_id"`
	PaymentMethodID int64     `json:"payment_method_id"`
	Year            int       `json:"year"`
	Month           int       `json:"month"`
	Amount          int64     `json:"amount"`
	ProcessedAt     time.Time `json:"processed_at"`
}

// NewSettlementEventMessage builds the event for rec with a fresh event id.
func NewSettlementEventMessage(rec core.SettlementRecord) *SettlementEventMessage {
	return &SettlementEventMessage{
		EventID:         uuid.NewString(),
		SettlementID:    rec.ID,
		PaymentMethodID: rec.PaymentMethodID,
		Year:            rec.Year,
		Month:           rec.Month,
		Amount:          rec.Amount,
		ProcessedAt:     rec.ProcessedAt.UTC(),
	}
}

// Validate rejects messages no handler could act on.
func (m *SettlementEventMessage) Validate() error {
	if m.SettlementID <= 0 {
		return errors.New("settlement_id is required")
	}
	if m.PaymentMethodID <= 0 {
		return errors.New("payment_method_id is required")
	}
	if m.Month < 1 || m.Month > 12 {
		return core.ErrInvalidMonth
	}
	return nil
}

// Record converts the message back to a settlement record.
func (m *SettlementEventMessage) Record() core.SettlementRecord {
	return core.SettlementRecord{
		ID:              m.SettlementID,
		PaymentMethodID: m.PaymentMethodID,
		Year:            m.Year,
		Month:           m.Month,
		Amount:          m.Amount,
		ProcessedAt:     m.ProcessedAt,
	}
}

// ToJSON converts the message to JSON bytes
func (m *SettlementEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// SettlementEventMessageFromJSON creates a message from JSON bytes
func SettlementEventMessageFromJSON(data []byte) (*SettlementEventMessage, error) {
	var msg SettlementEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
