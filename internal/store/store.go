// Package store is the storage collaborator: cell-level access to the
// client's price-history workbook. It owns the workbook's display formats
// (the client's formatting standards), the week-boundary border marker, and
// the atomic save. It never decides what to write; that is the append
// engine's job.
package store

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	apperrors "pricegrab/internal/errors"
)

// Workbook layout. The first two rows hold titles; data rows follow
// contiguously from FirstDataRow.
const (
	HeaderRows   = 2
	FirstDataRow = HeaderRows + 1
)

// Column letters of one row: six value cells, the derived limit, the
// human-entered observed value, and the derived violation.
const (
	ColDate      = "A"
	ColOpen      = "B"
	ColHigh      = "C"
	ColLow       = "D"
	ColClose     = "E"
	ColVolume    = "F"
	ColLimit     = "G"
	ColObserved  = "H"
	ColViolation = "I"
)

// markedColumns are the columns that receive the week-boundary bottom
// border, matching the width of the data region.
var markedColumns = []string{ColDate, ColOpen, ColHigh, ColLow, ColClose, ColVolume}

// Display formats required by the client.
const (
	fmtDate      = "mm/dd/yyyy"
	fmtPrice     = "0.00"
	fmtVolume    = "#,##0"
	fmtViolation = "[Red]#,##0"
)

// dateLayouts covers the renderings GetCellValue can produce for a date
// cell depending on how the workbook was last written.
var dateLayouts = []string{"01/02/2006", "1/2/2006", "2006-01-02", "01-02-06"}

// styleIDs caches the excelize style ids for this workbook.
type styleIDs struct {
	date, price, volume, limit, violation int
	// bordered variants carry the thin bottom border of the week marker.
	dateBordered, priceBordered, volumeBordered int
}

// Workbook wraps one open xlsx price-history store.
type Workbook struct {
	file   *excelize.File
	path   string
	sheet  string
	styles styleIDs
	// boundaries holds the row indices carrying the week marker, ascending.
	// Rebuilt once per open by a forward scan, so no component ever has to
	// re-derive week edges from cell formatting.
	boundaries []int
	logger     *slog.Logger
}

// Open loads the workbook at path and rebuilds the week-boundary index.
func Open(path, sheet string, logger *slog.Logger) (*Workbook, error) {
	if logger == nil {
		logger = slog.Default()
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.NewStoreNotFoundError(path, err)
		}
		return nil, fmt.Errorf("failed to open workbook %s: %w", path, err)
	}

	if idx, err := f.GetSheetIndex(sheet); err != nil || idx < 0 {
		f.Close()
		return nil, apperrors.NewStoreNotFoundError(path, err).
			WithContext("sheet", sheet)
	}

	w := &Workbook{file: f, path: path, sheet: sheet, logger: logger}
	if err := w.ensureStyles(); err != nil {
		f.Close()
		return nil, err
	}
	if err := w.scanBoundaries(); err != nil {
		f.Close()
		return nil, err
	}

	logger.Debug("workbook opened",
		slog.String("path", path),
		slog.String("sheet", sheet),
		slog.Int("week_boundaries", len(w.boundaries)))
	return w, nil
}

// Create bootstraps a new workbook with the two title rows so the first
// scheduled run has a destination. Fails if path already exists.
func Create(path, sheet string, logger *slog.Logger) (*Workbook, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("workbook already exists at %s", path)
	}

	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}

	titles := map[string]string{
		"A1": "Daily Price History",
		"A2": "Date", "B2": "Open", "C2": "High", "D2": "Low", "E2": "Close",
		"F2": "Volume", "G2": "Volume Limit", "H2": "Observed", "I2": "Violation",
	}
	for cell, v := range titles {
		if err := f.SetCellValue(sheet, cell, v); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to write title cell %s: %w", cell, err)
		}
	}

	w := &Workbook{file: f, path: path, sheet: sheet, logger: logger}
	if err := w.ensureStyles(); err != nil {
		f.Close()
		return nil, err
	}
	if err := w.Save(); err != nil {
		f.Close()
		return nil, err
	}

	logger.Info("workbook created",
		slog.String("path", path),
		slog.String("sheet", sheet))
	return w, nil
}

// Close releases the in-memory workbook without saving.
func (w *Workbook) Close() error {
	return w.file.Close()
}

// Path returns the destination path of the workbook.
func (w *Workbook) Path() string { return w.path }

// Cell returns the displayed value at the given row and column letter, or
// the empty string for an empty cell.
func (w *Workbook) Cell(row int, col string) (string, error) {
	v, err := w.file.GetCellValue(w.sheet, cellName(col, row))
	if err != nil {
		return "", fmt.Errorf("failed to read cell %s%d: %w", col, row, err)
	}
	return v, nil
}

// DateAt parses the date cell of the given row. The second return is false
// for an empty or unparseable cell.
func (w *Workbook) DateAt(row int) (time.Time, bool) {
	v, err := w.Cell(row, ColDate)
	if err != nil || strings.TrimSpace(v) == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// SetDate writes the date cell of a row with the client's date format.
func (w *Workbook) SetDate(row int, t time.Time) error {
	cell := cellName(ColDate, row)
	if err := w.file.SetCellValue(w.sheet, cell, t); err != nil {
		return fmt.Errorf("failed to write date cell %s: %w", cell, err)
	}
	return w.file.SetCellStyle(w.sheet, cell, cell, w.styles.date)
}

// SetPrice writes one of the open/high/low/close cells.
func (w *Workbook) SetPrice(row int, col string, v float64) error {
	cell := cellName(col, row)
	if err := w.file.SetCellValue(w.sheet, cell, v); err != nil {
		return fmt.Errorf("failed to write price cell %s: %w", cell, err)
	}
	return w.file.SetCellStyle(w.sheet, cell, cell, w.styles.price)
}

// SetVolume writes the volume cell with comma grouping.
func (w *Workbook) SetVolume(row int, v int64) error {
	cell := cellName(ColVolume, row)
	if err := w.file.SetCellValue(w.sheet, cell, v); err != nil {
		return fmt.Errorf("failed to write volume cell %s: %w", cell, err)
	}
	return w.file.SetCellStyle(w.sheet, cell, cell, w.styles.volume)
}

// SetLimitFormula writes the rolling-average limit formula into column G.
func (w *Workbook) SetLimitFormula(row int, formula string) error {
	cell := cellName(ColLimit, row)
	if err := w.file.SetCellFormula(w.sheet, cell, formula); err != nil {
		return fmt.Errorf("failed to write limit formula %s: %w", cell, err)
	}
	return w.file.SetCellStyle(w.sheet, cell, cell, w.styles.limit)
}

// SetViolationFormula writes the manual-input violation formula into
// column I.
func (w *Workbook) SetViolationFormula(row int, formula string) error {
	cell := cellName(ColViolation, row)
	if err := w.file.SetCellFormula(w.sheet, cell, formula); err != nil {
		return fmt.Errorf("failed to write violation formula %s: %w", cell, err)
	}
	return w.file.SetCellStyle(w.sheet, cell, cell, w.styles.violation)
}

// GetFormula returns the formula stored at the given row and column.
func (w *Workbook) GetFormula(row int, col string) (string, error) {
	return w.file.GetCellFormula(w.sheet, cellName(col, row))
}

// CalcCell evaluates the cell's formula and returns the result as
// displayed. Plain value cells return their value.
func (w *Workbook) CalcCell(row int, col string) (string, error) {
	return w.file.CalcCellValue(w.sheet, cellName(col, row))
}

// MarkWeekBoundary stamps the thin bottom border across the data columns of
// row and records it in the boundary index. Marking is idempotent.
func (w *Workbook) MarkWeekBoundary(row int) error {
	if w.HasWeekBoundary(row) {
		return nil
	}

	for _, col := range markedColumns {
		cell := cellName(col, row)
		style := w.styles.priceBordered
		switch col {
		case ColDate:
			style = w.styles.dateBordered
		case ColVolume:
			style = w.styles.volumeBordered
		}
		if err := w.file.SetCellStyle(w.sheet, cell, cell, style); err != nil {
			return fmt.Errorf("failed to mark week boundary at %s: %w", cell, err)
		}
	}

	w.insertBoundary(row)
	w.logger.Debug("week boundary marked", slog.Int("row", row))
	return nil
}

// HasWeekBoundary reports whether row carries the week marker.
func (w *Workbook) HasWeekBoundary(row int) bool {
	for _, r := range w.boundaries {
		if r == row {
			return true
		}
	}
	return false
}

// WeekBoundaries returns the marked row indices in ascending order.
func (w *Workbook) WeekBoundaries() []int {
	out := make([]int, len(w.boundaries))
	copy(out, w.boundaries)
	return out
}

// Save persists the workbook atomically: the full file is written next to
// the destination and renamed over it, so a failed run leaves the store
// byte-for-byte unchanged. A destination locked by another process (open in
// Excel) surfaces as StoreBusy.
func (w *Workbook) Save() error {
	// The temp name must keep the xlsx extension: SaveAs validates it and
	// rejects anything else.
	tmp := w.path + ".tmp.xlsx"
	if err := w.file.SaveAs(tmp); err != nil {
		if isLockedError(err) {
			return apperrors.NewStoreBusyError(w.path, err)
		}
		return fmt.Errorf("failed to write workbook: %w", err)
	}

	if err := os.Rename(tmp, w.path); err != nil {
		os.Remove(tmp)
		if isLockedError(err) {
			return apperrors.NewStoreBusyError(w.path, err)
		}
		return fmt.Errorf("failed to replace workbook: %w", err)
	}

	w.logger.Debug("workbook saved", slog.String("path", w.path))
	return nil
}

// isLockedError recognizes the save failures a workbook open in an
// editor produces.
func isLockedError(err error) bool {
	if errors.Is(err, os.ErrPermission) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "being used by another process") ||
		strings.Contains(msg, "sharing violation")
}

// scanBoundaries walks the data region once and rebuilds the boundary
// index from the marker borders, stopping at the first empty date cell.
func (w *Workbook) scanBoundaries() error {
	w.boundaries = w.boundaries[:0]
	for row := FirstDataRow; ; row++ {
		v, err := w.Cell(row, ColDate)
		if err != nil {
			return err
		}
		if strings.TrimSpace(v) == "" {
			return nil
		}
		marked, err := w.cellHasBottomBorder(cellName(ColDate, row))
		if err != nil {
			return err
		}
		if marked {
			w.boundaries = append(w.boundaries, row)
		}
	}
}

// cellHasBottomBorder inspects the cell's style for the marker border.
func (w *Workbook) cellHasBottomBorder(cell string) (bool, error) {
	styleID, err := w.file.GetCellStyle(w.sheet, cell)
	if err != nil {
		return false, fmt.Errorf("failed to read style of %s: %w", cell, err)
	}
	style, err := w.file.GetStyle(styleID)
	if err != nil || style == nil {
		return false, nil
	}
	for _, b := range style.Border {
		if b.Type == "bottom" && b.Style > 0 {
			return true, nil
		}
	}
	return false, nil
}

// insertBoundary keeps the boundary index sorted ascending.
func (w *Workbook) insertBoundary(row int) {
	for i, r := range w.boundaries {
		if row < r {
			w.boundaries = append(w.boundaries[:i], append([]int{row}, w.boundaries[i:]...)...)
			return
		}
	}
	w.boundaries = append(w.boundaries, row)
}

// ensureStyles registers the client display formats with the workbook.
func (w *Workbook) ensureStyles() error {
	arial := &excelize.Font{Family: "Arial", Size: 11}
	thinBottom := []excelize.Border{{Type: "bottom", Style: 1, Color: "000000"}}

	build := func(numFmt string, bordered bool) (int, error) {
		nf := numFmt
		s := &excelize.Style{Font: arial, CustomNumFmt: &nf}
		if bordered {
			s.Border = thinBottom
		}
		return w.file.NewStyle(s)
	}

	var err error
	if w.styles.date, err = build(fmtDate, false); err != nil {
		return fmt.Errorf("failed to register date style: %w", err)
	}
	if w.styles.price, err = build(fmtPrice, false); err != nil {
		return fmt.Errorf("failed to register price style: %w", err)
	}
	if w.styles.volume, err = build(fmtVolume, false); err != nil {
		return fmt.Errorf("failed to register volume style: %w", err)
	}
	if w.styles.limit, err = build(fmtVolume, false); err != nil {
		return fmt.Errorf("failed to register limit style: %w", err)
	}
	if w.styles.violation, err = build(fmtViolation, false); err != nil {
		return fmt.Errorf("failed to register violation style: %w", err)
	}
	if w.styles.dateBordered, err = build(fmtDate, true); err != nil {
		return fmt.Errorf("failed to register bordered date style: %w", err)
	}
	if w.styles.priceBordered, err = build(fmtPrice, true); err != nil {
		return fmt.Errorf("failed to register bordered price style: %w", err)
	}
	if w.styles.volumeBordered, err = build(fmtVolume, true); err != nil {
		return fmt.Errorf("failed to register bordered volume style: %w", err)
	}
	return nil
}

func cellName(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}
