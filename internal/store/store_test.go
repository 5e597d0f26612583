package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "pricegrab/internal/errors"
)

func newTestWorkbook(t *testing.T) *Workbook {
	t.Helper()
	path := filepath.Join(t.TempDir(), "prices.xlsx")
	w, err := Create(path, "volume limit", nil)
	require.NoError(t, err)
	t.Cleanup(func() { w.Close() })
	return w
}

func TestOpen_NotFound(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.xlsx"), "volume limit", nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeStoreNotFound))
}

func TestOpen_MissingSheet(t *testing.T) {
	w := newTestWorkbook(t)
	require.NoError(t, w.Save())

	_, err := Open(w.Path(), "no such sheet", nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeStoreNotFound))
}

func TestCreate_RefusesExisting(t *testing.T) {
	w := newTestWorkbook(t)
	require.NoError(t, w.Save())

	_, err := Create(w.Path(), "volume limit", nil)
	require.Error(t, err)
}

func TestRoundTrip_ValuesSurviveReopen(t *testing.T) {
	w := newTestWorkbook(t)

	day := time.Date(2020, 12, 17, 0, 0, 0, 0, time.UTC)
	require.NoError(t, w.SetDate(FirstDataRow, day))
	require.NoError(t, w.SetPrice(FirstDataRow, ColOpen, 5.00))
	require.NoError(t, w.SetPrice(FirstDataRow, ColHigh, 5.50))
	require.NoError(t, w.SetPrice(FirstDataRow, ColLow, 4.90))
	require.NoError(t, w.SetPrice(FirstDataRow, ColClose, 5.20))
	require.NoError(t, w.SetVolume(FirstDataRow, 12345))
	require.NoError(t, w.Save())

	reopened, err := Open(w.Path(), "volume limit", nil)
	require.NoError(t, err)
	defer reopened.Close()

	got, ok := reopened.DateAt(FirstDataRow)
	require.True(t, ok)
	assert.Equal(t, day.Year(), got.Year())
	assert.Equal(t, day.Month(), got.Month())
	assert.Equal(t, day.Day(), got.Day())

	vol, err := reopened.Cell(FirstDataRow, ColVolume)
	require.NoError(t, err)
	assert.Equal(t, "12,345", vol)
}

func TestDateAt_EmptyCell(t *testing.T) {
	w := newTestWorkbook(t)
	_, ok := w.DateAt(FirstDataRow)
	assert.False(t, ok)
}

func TestMarkWeekBoundary_SurvivesReopen(t *testing.T) {
	w := newTestWorkbook(t)

	for i := 0; i < 3; i++ {
		row := FirstDataRow + i
		require.NoError(t, w.SetDate(row, time.Date(2020, 12, 14+i, 0, 0, 0, 0, time.UTC)))
		require.NoError(t, w.SetVolume(row, int64(1000*(i+1))))
	}
	require.NoError(t, w.MarkWeekBoundary(FirstDataRow+2))
	require.NoError(t, w.Save())

	reopened, err := Open(w.Path(), "volume limit", nil)
	require.NoError(t, err)
	defer reopened.Close()

	assert.Equal(t, []int{FirstDataRow + 2}, reopened.WeekBoundaries())
	assert.True(t, reopened.HasWeekBoundary(FirstDataRow+2))
	assert.False(t, reopened.HasWeekBoundary(FirstDataRow+1))
}

func TestMarkWeekBoundary_Idempotent(t *testing.T) {
	w := newTestWorkbook(t)
	require.NoError(t, w.SetDate(FirstDataRow, time.Date(2020, 12, 18, 0, 0, 0, 0, time.UTC)))

	require.NoError(t, w.MarkWeekBoundary(FirstDataRow))
	require.NoError(t, w.MarkWeekBoundary(FirstDataRow))

	assert.Equal(t, []int{FirstDataRow}, w.WeekBoundaries())
}

func TestWeekBoundaries_SortedAndCopied(t *testing.T) {
	w := newTestWorkbook(t)
	for _, row := range []int{9, 4, 7} {
		require.NoError(t, w.SetDate(row, time.Date(2021, 1, row, 0, 0, 0, 0, time.UTC)))
		require.NoError(t, w.MarkWeekBoundary(row))
	}

	got := w.WeekBoundaries()
	assert.Equal(t, []int{4, 7, 9}, got)

	// Mutating the returned slice must not corrupt the index.
	got[0] = 99
	assert.Equal(t, []int{4, 7, 9}, w.WeekBoundaries())
}

func TestFormulas(t *testing.T) {
	w := newTestWorkbook(t)
	row := FirstDataRow

	require.NoError(t, w.SetLimitFormula(row, "ROUND(AVERAGE($F$3:$F$7)*0.25,-2)"))
	require.NoError(t, w.SetViolationFormula(row, `IF(H3<G3,"",+H3-G3)`))

	limit, err := w.GetFormula(row, ColLimit)
	require.NoError(t, err)
	assert.Equal(t, "ROUND(AVERAGE($F$3:$F$7)*0.25,-2)", limit)

	violation, err := w.GetFormula(row, ColViolation)
	require.NoError(t, err)
	assert.Contains(t, violation, "IF(H3<G3")
}

func TestSave_LeavesNoTempFile(t *testing.T) {
	w := newTestWorkbook(t)
	require.NoError(t, w.Save())

	assert.NoFileExists(t, w.Path()+".tmp.xlsx")
	assert.FileExists(t, w.Path())
}

func TestSave_Reopenable(t *testing.T) {
	w := newTestWorkbook(t)
	require.NoError(t, w.SetDate(FirstDataRow, time.Date(2020, 12, 17, 0, 0, 0, 0, time.UTC)))
	require.NoError(t, w.Save())

	reopened, err := Open(w.Path(), "volume limit", nil)
	require.NoError(t, err)
	defer reopened.Close()

	_, ok := reopened.DateAt(FirstDataRow)
	assert.True(t, ok)
}
