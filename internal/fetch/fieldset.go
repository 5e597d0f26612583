// Package fetch is the fetch collaborator: it retrieves the latest daily
// quote row for one symbol from the source's historical-data page and
// returns it as a flat field-name to raw-string mapping. Everything beyond
// that single row - normalization, dedup, persistence - belongs to the
// append engine.
package fetch

import (
	"context"
	"strings"

	apperrors "pricegrab/internal/errors"
)

// Field names of a daily quote row. These are stable keys; the values are
// raw market-snapshot strings exactly as the source renders them (date as
// "Dec 17, 2020", volume comma-grouped).
const (
	FieldDate   = "date"
	FieldOpen   = "open"
	FieldHigh   = "high"
	FieldLow    = "low"
	FieldClose  = "close"
	FieldVolume = "volume"
)

// RequiredFields lists every field a usable FieldSet must carry, in store
// column order.
var RequiredFields = []string{FieldDate, FieldOpen, FieldHigh, FieldLow, FieldClose, FieldVolume}

// FieldSet holds one day's raw quote values keyed by field name.
type FieldSet map[string]string

// Validate checks that every required field is present and non-empty.
func (fs FieldSet) Validate() error {
	for _, name := range RequiredFields {
		if strings.TrimSpace(fs[name]) == "" {
			return apperrors.NewFieldMissingError(name)
		}
	}
	return nil
}

// Fetcher retrieves the latest daily quote row from the source.
type Fetcher interface {
	Fetch(ctx context.Context) (FieldSet, error)
}

// The history table renders seven cells per data row:
// date, open, high, low, close, adjusted close, volume.
// The adjusted close is not part of the client's workbook.
const historyRowCells = 7

var cellFieldIndex = map[string]int{
	FieldDate:   0,
	FieldOpen:   1,
	FieldHigh:   2,
	FieldLow:    3,
	FieldClose:  4,
	FieldVolume: 6,
}

// fieldSetFromCells maps one table row's cell texts to a FieldSet.
// Rows with fewer cells (dividend and split annotations) must be filtered
// out by the caller.
func fieldSetFromCells(cells []string) (FieldSet, error) {
	if len(cells) < historyRowCells {
		return nil, apperrors.NewSourceUnavailableError("history table row has too few cells", nil).
			WithContext("cells", len(cells))
	}

	fs := make(FieldSet, len(RequiredFields))
	for name, idx := range cellFieldIndex {
		fs[name] = strings.TrimSpace(cells[idx])
	}
	if err := fs.Validate(); err != nil {
		return nil, err
	}
	return fs, nil
}
