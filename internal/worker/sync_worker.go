package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"ledger/internal/amqp"
	"ledger/internal/core"
	"ledger/internal/log"
	"ledger/internal/sheets"
	"ledger/internal/storage"
)

// SettlementSource reads committed settlement records.
type SettlementSource interface {
	GetSettlement(ctx context.Context, id int64) (core.SettlementRecord, error)
	ListSettlements(ctx context.Context, year, month int) ([]core.SettlementRecord, error)
}

// SyncWorker mirrors settlement records from SQLite to Google Sheets
type SyncWorker struct {
	store  SettlementSource
	sheets sheets.SettlementMirror
	logger *log.Logger

	// serializes read-then-append on the sheet between the consumer and
	// the reconcile loop
	mu sync.Mutex
}

func NewSyncWorker(store SettlementSource, mirror sheets.SettlementMirror) *SyncWorker {
	return &SyncWorker{
		store:  store,
		sheets: mirror,
		logger: log.ForComponent(log.ComponentWorker),
	}
}

// HandleSettlementEvent processes a single settlement event from AMQP.
// The row is built from the stored record, not from the message body.
func (w *SyncWorker) HandleSettlementEvent(ctx context.Context, msg *amqp.SettlementEventMessage) error {
	w.logger.InfoContext(ctx, "Processing settlement event",
		log.FieldEventID, msg.EventID,
		log.FieldSettlementID, msg.SettlementID)

	rec, err := w.store.GetSettlement(ctx, msg.SettlementID)
	if errors.Is(err, storage.ErrNotFound) {
		// Redelivery cannot fix this, so the event is dropped.
		w.logger.WarnContext(ctx, "Settlement from event not found, skipping",
			log.FieldEventID, msg.EventID,
			log.FieldSettlementID, msg.SettlementID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get settlement from storage: %w", err)
	}

	w.mu.Lock()
	err = w.syncSettlement(ctx, rec)
	w.mu.Unlock()
	if err != nil {
		return fmt.Errorf("sync settlement to sheets: %w", err)
	}
	return nil
}

// ReconcileMonth appends every settlement of (year, month) that is not in
// the sheet yet. This is a backup mechanism in case AMQP messages are lost.
// It returns how many rows were appended.
func (w *SyncWorker) ReconcileMonth(ctx context.Context, year, month int) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	records, err := w.store.ListSettlements(ctx, year, month)
	if err != nil {
		return 0, fmt.Errorf("list settlements: %w", err)
	}
	if len(records) == 0 {
		return 0, nil
	}

	mirrored, err := w.mirroredIDs(ctx, year)
	if err != nil {
		return 0, err
	}

	appended, failed := 0, 0
	for _, rec := range records {
		if mirrored[rec.ID] {
			continue
		}
		if _, err := w.append(ctx, rec); err != nil {
			w.logger.ErrorContext(ctx, "Failed to sync settlement",
				log.FieldSettlementID, rec.ID,
				log.FieldError, err)
			failed++
			continue
		}
		appended++
	}

	w.logger.InfoContext(ctx, "Settlement reconcile completed",
		log.FieldYear, year,
		log.FieldMonth, month,
		"total", len(records),
		"appended", appended,
		"errors", failed)

	if failed > 0 {
		return appended, fmt.Errorf("%d settlements could not be synced", failed)
	}
	return appended, nil
}

// StartupSyncCheck reconciles the given month and the one before it, the
// only months a pass can have written to recently.
func (w *SyncWorker) StartupSyncCheck(ctx context.Context, year, month int) error {
	prevYear, prevMonth := year, month-1
	if prevMonth == 0 {
		prevYear, prevMonth = year-1, 12
	}

	var errs []error
	for _, ym := range [][2]int{{prevYear, prevMonth}, {year, month}} {
		if _, err := w.ReconcileMonth(ctx, ym[0], ym[1]); err != nil {
			errs = append(errs, fmt.Errorf("%04d-%02d: %w", ym[0], ym[1], err))
		}
	}
	return errors.Join(errs...)
}

// syncSettlement appends rec unless its row already exists. Requeued
// events therefore never duplicate a row.
func (w *SyncWorker) syncSettlement(ctx context.Context, rec core.SettlementRecord) error {
	mirrored, err := w.mirroredIDs(ctx, rec.Year)
	if err != nil {
		return err
	}
	if mirrored[rec.ID] {
		w.logger.InfoContext(ctx, "Settlement already in sheet, skipping",
			log.FieldSettlementID, rec.ID)
		return nil
	}
	_, err = w.append(ctx, rec)
	return err
}

func (w *SyncWorker) append(ctx context.Context, rec core.SettlementRecord) (string, error) {
	ref, err := w.sheets.AppendSettlement(ctx, rec)
	if err != nil {
		return "", fmt.Errorf("append to sheets: %w", err)
	}

	w.logger.InfoContext(ctx, "Successfully synced settlement",
		log.FieldSettlementID, rec.ID,
		log.FieldPaymentMethodID, rec.PaymentMethodID,
		log.FieldAmount, rec.Amount,
		log.FieldSheetsRef, ref)
	return ref, nil
}

func (w *SyncWorker) mirroredIDs(ctx context.Context, year int) (map[int64]bool, error) {
	rows, err := w.sheets.ListSettlements(ctx, year)
	if err != nil {
		return nil, fmt.Errorf("read sheet rows: %w", err)
	}
	ids := make(map[int64]bool, len(rows))
	for _, r := range rows {
		ids[r.ID] = true
	}
	return ids, nil
}
