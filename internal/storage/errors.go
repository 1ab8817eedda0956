package storage

import (
	"errors"
	"strings"

	"ledger/internal/core"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

var (
	// ErrNotFound is returned by single-row lookups that match nothing.
	ErrNotFound = errors.New("not found")

	ErrDuplicateSettlement = core.ErrDuplicateSettlement
	ErrAssetNotFound       = core.ErrAssetNotFound
)

// isUniqueViolation reports whether err came from a UNIQUE constraint.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var se *sqlite.Error
	if errors.As(err, &se) {
		return se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
	}
	// go-sqlmock and wrapped driver errors only carry the message.
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
