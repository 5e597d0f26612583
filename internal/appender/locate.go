package appender

import (
	"strings"
	"time"

	"pricegrab/internal/store"
)

// NextEmptyRow scans the data region top to bottom and returns the first
// row whose date cell is empty. Rows are contiguous, so this is the row
// the next record belongs in. Pure read, linear in the number of existing
// rows; a store holds years of daily rows at most.
func NextEmptyRow(w *store.Workbook) (int, error) {
	for row := store.FirstDataRow; ; row++ {
		v, err := w.Cell(row, store.ColDate)
		if err != nil {
			return 0, err
		}
		if strings.TrimSpace(v) == "" {
			return row, nil
		}
	}
}

// IsDuplicateSession is the duplicate guard: it reports whether the
// candidate date equals the most recently written row's date, meaning the
// source has not published a new session yet (weekend or holiday). On the
// first-ever append there is no prior row and the guard passes.
func IsDuplicateSession(w *store.Workbook, nextRow int, candidate time.Time) bool {
	if nextRow <= store.FirstDataRow {
		return false
	}
	prev, ok := w.DateAt(nextRow - 1)
	return ok && sameDay(prev, candidate)
}
