package google

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"ledger/internal/core"
)

// parseSettlementRows converts a values matrix (as returned by Sheets API)
// into settlement records. A leading header row is skipped, and so is any
// row whose ref column does not carry a settlement id. Rows edited by hand
// into something unparseable are dropped rather than failing the read.
func parseSettlementRows(values [][]interface{}) []core.SettlementRecord {
	var out []core.SettlementRecord
	for i, raw := range values {
		row := toStrings(raw)
		if i == 0 && strings.EqualFold(safeGet(row, 0), "year") {
			continue
		}
		rec, ok := parseSettlementRow(row)
		if !ok {
			continue
		}
		out = append(out, rec)
	}
	return out
}

func parseSettlementRow(row []string) (core.SettlementRecord, bool) {
	id, ok := parseRowRef(safeGet(row, 5))
	if !ok {
		return core.SettlementRecord{}, false
	}
	year, err := strconv.Atoi(safeGet(row, 0))
	if err != nil {
		return core.SettlementRecord{}, false
	}
	month, err := strconv.Atoi(safeGet(row, 1))
	if err != nil || month < 1 || month > 12 {
		return core.SettlementRecord{}, false
	}
	pmID, err := strconv.ParseInt(safeGet(row, 2), 10, 64)
	if err != nil {
		return core.SettlementRecord{}, false
	}
	amount, err := core.ParseAmount(safeGet(row, 3))
	if err != nil {
		return core.SettlementRecord{}, false
	}
	// processed_at is informational; a blank or reformatted cell keeps the row.
	processedAt, _ := time.Parse(time.RFC3339, safeGet(row, 4))

	return core.SettlementRecord{
		ID:              id,
		PaymentMethodID: pmID,
		Year:            year,
		Month:           month,
		Amount:          amount,
		ProcessedAt:     processedAt,
	}, true
}

// parseRowRef extracts the settlement id from a "settlement:<id>" cell.
func parseRowRef(s string) (int64, bool) {
	rest, found := strings.CutPrefix(strings.TrimSpace(s), "settlement:")
	if !found {
		return 0, false
	}
	id, err := strconv.ParseInt(rest, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// toStrings renders cells as trimmed strings. Numbers come back as float64
// when values are read unformatted, and are printed without an exponent.
func toStrings(in []interface{}) []string {
	out := make([]string, len(in))
	for i, v := range in {
		switch n := v.(type) {
		case float64:
			out[i] = strconv.FormatFloat(n, 'f', -1, 64)
		case string:
			out[i] = strings.TrimSpace(n)
		case nil:
			out[i] = ""
		default:
			out[i] = strings.TrimSpace(fmt.Sprint(n))
		}
	}
	return out
}

func safeGet(arr []string, idx int) string {
	if idx >= 0 && idx < len(arr) {
		return arr[idx]
	}
	return ""
}
