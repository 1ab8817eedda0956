package http

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// MonthParams holds parsed year/month values from request parameters.
type MonthParams struct {
	Year  int
	Month int
}

var (
	errMissingYear  = errors.New("missing year")
	errMissingMonth = errors.New("missing month")
)

// ParseMonthParams extracts year and month from query parameters. Both are
// required; there is no fallback to the current date.
func ParseMonthParams(query url.Values) (MonthParams, error) {
	var params MonthParams

	y := strings.TrimSpace(query.Get("year"))
	if y == "" {
		return params, errMissingYear
	}
	year, err := strconv.Atoi(y)
	if err != nil || year < 1 || year > 9999 {
		return params, fmt.Errorf("invalid year %q", y)
	}

	m := strings.TrimSpace(query.Get("month"))
	if m == "" {
		return params, errMissingMonth
	}
	month, err := strconv.Atoi(m)
	if err != nil || month < 1 || month > 12 {
		return params, fmt.Errorf("invalid month %q: must be between 1 and 12", m)
	}

	params.Year = year
	params.Month = month
	return params, nil
}

// ParseIDParam parses a positive numeric identifier from a path segment.
func ParseIDParam(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", raw)
	}
	return id, nil
}
