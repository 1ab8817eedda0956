package http

import (
	"errors"
	"net/http"
	"time"

	"ledger/internal/core"
	"ledger/internal/log"
	"ledger/internal/services"
	"ledger/internal/storage"
)

type settlementDTO struct {
	ID              int64     `json:"id"`
	PaymentMethodID int64     `json:"payment_method_id"`
	Year            int       `json:"year"`
	Month           int       `json:"month"`
	Amount          int64     `json:"amount"`
	ProcessedAt     time.Time `json:"processed_at"`
}

type statementDTO struct {
	PaymentMethodID int64     `json:"payment_method_id"`
	Year            int       `json:"year"`
	Month           int       `json:"month"`
	PeriodStart     string    `json:"period_start"`
	PeriodEnd       string    `json:"period_end"`
	DueDate         string    `json:"due_date"`
	Total           int64     `json:"total"`
	TotalFormatted  string    `json:"total_formatted"`
	Transactions    int       `json:"transactions"`
	Due             bool      `json:"due"`
	Settled         bool      `json:"settled"`
	GeneratedAt     time.Time `json:"generated_at"`
}

func toSettlementDTO(rec core.SettlementRecord) settlementDTO {
	return settlementDTO{
		ID:              rec.ID,
		PaymentMethodID: rec.PaymentMethodID,
		Year:            rec.Year,
		Month:           rec.Month,
		Amount:          rec.Amount,
		ProcessedAt:     rec.ProcessedAt.UTC(),
	}
}

func toStatementDTO(p core.StatementPreview) statementDTO {
	return statementDTO{
		PaymentMethodID: p.PaymentMethodID,
		Year:            p.Year,
		Month:           p.Month,
		PeriodStart:     p.Period.Start.String(),
		PeriodEnd:       p.Period.End.String(),
		DueDate:         p.DueDate.String(),
		Total:           p.Total,
		TotalFormatted:  core.FormatAmount(p.Total),
		Transactions:    p.Transactions,
		Due:             p.Due,
		Settled:         p.Settled,
		GeneratedAt:     p.GeneratedAt.UTC(),
	}
}

// handleListSettlements serves GET /api/settlements?year=&month=.
func (s *Server) handleListSettlements(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	params, err := ParseMonthParams(r.URL.Query())
	if err != nil {
		ErrorJSON(w, http.StatusBadRequest, err.Error())
		return
	}

	records, err := s.deps.Settlements.ListSettlements(ctx, params.Year, params.Month)
	if err != nil {
		log.FromContext(ctx).ErrorContext(ctx, "Failed to list settlements",
			log.FieldYear, params.Year,
			log.FieldMonth, params.Month,
			log.FieldError, err)
		ErrorJSON(w, http.StatusInternalServerError, "failed to list settlements")
		return
	}

	out := make([]settlementDTO, 0, len(records))
	for _, rec := range records {
		out = append(out, toSettlementDTO(rec))
	}
	NewJSONResponse().Body(out).Write(w)
}

// handleStatement serves GET /api/cards/{id}/statement?year=&month=.
func (s *Server) handleStatement(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := ParseIDParam(r.PathValue("id"))
	if err != nil {
		ErrorJSON(w, http.StatusBadRequest, err.Error())
		return
	}
	params, err := ParseMonthParams(r.URL.Query())
	if err != nil {
		ErrorJSON(w, http.StatusBadRequest, err.Error())
		return
	}

	preview, err := s.deps.Statements.Preview(ctx, id, params.Year, params.Month)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		ErrorJSON(w, http.StatusNotFound, "payment method not found")
		return
	case errors.Is(err, services.ErrNotSettleable):
		ErrorJSON(w, http.StatusUnprocessableEntity, err.Error())
		return
	case err != nil:
		log.FromContext(ctx).ErrorContext(ctx, "Failed to compute statement",
			log.FieldPaymentMethodID, id,
			log.FieldYear, params.Year,
			log.FieldMonth, params.Month,
			log.FieldError, err)
		ErrorJSON(w, http.StatusInternalServerError, "failed to compute statement")
		return
	}

	NewJSONResponse().Body(toStatementDTO(preview)).Write(w)
}
