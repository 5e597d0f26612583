package appender

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	apperrors "pricegrab/internal/errors"
	"pricegrab/internal/fetch"
)

// sourceDateLayout matches the source's textual date, e.g. "Dec 17, 2020".
// A pattern-based parse covers both one- and two-digit days and fails
// loudly on anything else; the character offsets of the source string are
// not part of the contract.
const sourceDateLayout = "Jan 2, 2006"

// Record is the normalized, typed form of a fetched FieldSet.
type Record struct {
	Date   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume int64
}

// Suspicious reports whether the record violates the high >= low sanity
// expectation. The source occasionally publishes such rows; they are
// logged, not rejected.
func (r *Record) Suspicious() bool {
	return r.High < r.Low
}

// Normalize converts the raw FieldSet into a Record. Any missing field or
// unparseable value is fatal for the run; no partial record is ever
// produced.
func Normalize(fs fetch.FieldSet) (*Record, error) {
	if err := fs.Validate(); err != nil {
		return nil, err
	}

	date, err := parseSourceDate(fs[fetch.FieldDate])
	if err != nil {
		return nil, err
	}

	rec := &Record{Date: date}
	prices := []struct {
		field string
		dst   *float64
	}{
		{fetch.FieldOpen, &rec.Open},
		{fetch.FieldHigh, &rec.High},
		{fetch.FieldLow, &rec.Low},
		{fetch.FieldClose, &rec.Close},
	}
	for _, p := range prices {
		v, err := parsePrice(fs[p.field])
		if err != nil {
			return nil, apperrors.NewFormatError(
				fmt.Sprintf("field %s value %q is not a number", p.field, fs[p.field]), err).
				WithContext("field", p.field)
		}
		*p.dst = v
	}

	rec.Volume, err = parseVolume(fs[fetch.FieldVolume])
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// parseSourceDate normalizes the source's "Mon D, YYYY" date into a
// calendar date with no time component.
func parseSourceDate(raw string) (time.Time, error) {
	t, err := time.Parse(sourceDateLayout, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, apperrors.NewFormatError(
			fmt.Sprintf("source date %q does not match %q", raw, sourceDateLayout), err).
			WithContext("field", fetch.FieldDate)
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
}

// parsePrice parses a locale-formatted decimal, tolerating comma grouping.
func parsePrice(raw string) (float64, error) {
	return strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(raw), ",", ""), 64)
}

// parseVolume parses the comma-grouped share count. Volume can never be
// negative.
func parseVolume(raw string) (int64, error) {
	v, err := strconv.ParseInt(strings.ReplaceAll(strings.TrimSpace(raw), ",", ""), 10, 64)
	if err != nil {
		return 0, apperrors.NewFormatError(
			fmt.Sprintf("field %s value %q is not an integer", fetch.FieldVolume, raw), err).
			WithContext("field", fetch.FieldVolume)
	}
	if v < 0 {
		return 0, apperrors.NewFormatError(
			fmt.Sprintf("field %s value %q is negative", fetch.FieldVolume, raw), nil).
			WithContext("field", fetch.FieldVolume)
	}
	return v, nil
}

// sameDay compares two timestamps as calendar days, ignoring time and
// location differences introduced by cell formatting.
func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month() && a.Day() == b.Day()
}
