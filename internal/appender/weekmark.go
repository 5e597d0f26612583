package appender

import (
	"time"

	"pricegrab/internal/store"
)

// WeekMarker decides when the most recent row closes a trading week and
// stamps the boundary marker on it.
//
// The decision uses the real-world weekday at run time, not the scraped
// date: the scraper runs once per trading day, and a fixed week-closing
// weekday is more reliable than deriving the edge from the market calendar,
// which holiday-shortened weeks would defeat. This is a deliberate
// simplification carried over from the system being replaced.
type WeekMarker struct {
	closeDay time.Weekday
	now      func() time.Time
}

// NewWeekMarker creates a marker for the given week-closing weekday. The
// now function is injectable for tests; nil means time.Now.
func NewWeekMarker(closeDay time.Weekday, now func() time.Time) *WeekMarker {
	if now == nil {
		now = time.Now
	}
	return &WeekMarker{closeDay: closeDay, now: now}
}

// IsWeekClose reports whether the current wall-clock day closes the
// trading week.
func (m *WeekMarker) IsWeekClose() bool {
	return m.now().Weekday() == m.closeDay
}

// MarkIfWeekClose attaches the week-boundary marker to lastRow when today
// is the week-closing day. Returns whether a new marker was attached;
// already-marked rows are left alone so repeated runs on the same boundary
// day stamp exactly once.
func (m *WeekMarker) MarkIfWeekClose(w *store.Workbook, lastRow int) (bool, error) {
	if !m.IsWeekClose() || lastRow < store.FirstDataRow {
		return false, nil
	}
	if w.HasWeekBoundary(lastRow) {
		return false, nil
	}
	if err := w.MarkWeekBoundary(lastRow); err != nil {
		return false, err
	}
	return true, nil
}
