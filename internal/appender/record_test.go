package appender

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "pricegrab/internal/errors"
	"pricegrab/internal/fetch"
)

func validFieldSet() fetch.FieldSet {
	return fetch.FieldSet{
		fetch.FieldDate:   "Dec 17, 2020",
		fetch.FieldOpen:   "5.00",
		fetch.FieldHigh:   "5.50",
		fetch.FieldLow:    "4.90",
		fetch.FieldClose:  "5.20",
		fetch.FieldVolume: "12,345",
	}
}

func TestNormalize(t *testing.T) {
	rec, err := Normalize(validFieldSet())
	require.NoError(t, err)

	assert.Equal(t, time.Date(2020, 12, 17, 0, 0, 0, 0, time.UTC), rec.Date)
	assert.Equal(t, 5.00, rec.Open)
	assert.Equal(t, 5.50, rec.High)
	assert.Equal(t, 4.90, rec.Low)
	assert.Equal(t, 5.20, rec.Close)
	assert.Equal(t, int64(12345), rec.Volume)
	assert.False(t, rec.Suspicious())
}

func TestNormalize_SingleDigitDay(t *testing.T) {
	fs := validFieldSet()
	fs[fetch.FieldDate] = "Jan 4, 2021"

	rec, err := Normalize(fs)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2021, 1, 4, 0, 0, 0, 0, time.UTC), rec.Date)
}

func TestNormalize_DateRoundTrip(t *testing.T) {
	rec, err := Normalize(validFieldSet())
	require.NoError(t, err)

	// Formatting the normalized date back into the source layout must
	// reproduce the original string.
	assert.Equal(t, "Dec 17, 2020", rec.Date.Format(sourceDateLayout))
}

func TestNormalize_LargeGroupedVolume(t *testing.T) {
	fs := validFieldSet()
	fs[fetch.FieldVolume] = "1,234,567,890"

	rec, err := Normalize(fs)
	require.NoError(t, err)
	assert.Equal(t, int64(1234567890), rec.Volume)
}

func TestNormalize_SuspiciousHighLow(t *testing.T) {
	fs := validFieldSet()
	fs[fetch.FieldHigh] = "4.00"
	fs[fetch.FieldLow] = "4.50"

	// Not validated, only flagged.
	rec, err := Normalize(fs)
	require.NoError(t, err)
	assert.True(t, rec.Suspicious())
}

func TestNormalize_Failures(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(fetch.FieldSet)
		wantType apperrors.ErrorType
	}{
		{"missing field", func(fs fetch.FieldSet) { delete(fs, fetch.FieldClose) }, apperrors.ErrTypeFieldMissing},
		{"blank field", func(fs fetch.FieldSet) { fs[fetch.FieldOpen] = "  " }, apperrors.ErrTypeFieldMissing},
		{"bad month", func(fs fetch.FieldSet) { fs[fetch.FieldDate] = "Foo 17, 2020" }, apperrors.ErrTypeFormat},
		{"bad day", func(fs fetch.FieldSet) { fs[fetch.FieldDate] = "Dec x, 2020" }, apperrors.ErrTypeFormat},
		{"bad year", func(fs fetch.FieldSet) { fs[fetch.FieldDate] = "Dec 17, 20x0" }, apperrors.ErrTypeFormat},
		{"bad price", func(fs fetch.FieldSet) { fs[fetch.FieldHigh] = "five" }, apperrors.ErrTypeFormat},
		{"bad volume", func(fs fetch.FieldSet) { fs[fetch.FieldVolume] = "12.5k" }, apperrors.ErrTypeFormat},
		{"negative volume", func(fs fetch.FieldSet) { fs[fetch.FieldVolume] = "-100" }, apperrors.ErrTypeFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := validFieldSet()
			tt.mutate(fs)

			_, err := Normalize(fs)
			require.Error(t, err)
			assert.True(t, apperrors.IsType(err, tt.wantType),
				"expected %s, got %v", tt.wantType, err)
		})
	}
}

func TestSameDay(t *testing.T) {
	a := time.Date(2020, 12, 17, 0, 0, 0, 0, time.UTC)
	b := time.Date(2020, 12, 17, 23, 59, 0, 0, time.Local)
	c := time.Date(2020, 12, 18, 0, 0, 0, 0, time.UTC)

	assert.True(t, sameDay(a, b))
	assert.False(t, sameDay(a, c))
}
