// Package appender is the append engine: one run fetches the latest
// session, decides whether it is genuinely new, writes it as the next row
// of the store, maintains the week-boundary markers, derives the rolling
// limit and violation formulas, and persists everything in a single save.
package appender

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	apperrors "pricegrab/internal/errors"
	"pricegrab/internal/fetch"
	"pricegrab/internal/market"
	"pricegrab/internal/store"
)

// State names the steps of one append run, in execution order.
type State string

const (
	StateFetching         State = "fetching"
	StateNormalizing      State = "normalizing"
	StateLocating         State = "locating"
	StateGuardChecking    State = "guard_checking"
	StateWriting          State = "writing"
	StateMarking          State = "marking"
	StateBuildingFormulas State = "building_formulas"
	StatePersisting       State = "persisting"
)

// Status classifies a completed run.
type Status string

const (
	// StatusAppended means a new row was written and persisted.
	StatusAppended Status = "appended"
	// StatusNoUpdate means the source has not published a new session;
	// nothing was appended. Expected on weekends and holidays, never an
	// error.
	StatusNoUpdate Status = "no_update"
)

// Outcome describes a successfully terminated run. Failures are returned
// as errors instead; an Outcome is never partial.
type Outcome struct {
	RunID     string
	Status    Status
	Row       int
	TradeDate time.Time
	// LimitBuilt is false early in the store's life, when fewer than four
	// completed weeks exist and the derived cells stay blank.
	LimitBuilt bool
	// MarkedRow is the row that received a week-boundary marker during
	// this run, or zero.
	MarkedRow int
}

// Appender orchestrates append runs against one store.
type Appender struct {
	fetcher  fetch.Fetcher
	marker   *WeekMarker
	calendar *market.Calendar
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures an Appender.
type Option func(*Appender)

// WithCalendar attaches an advisory trading calendar used to annotate
// no-update days in logs.
func WithCalendar(c *market.Calendar) Option {
	return func(a *Appender) { a.calendar = c }
}

// WithClock injects the wall clock used for the week-boundary decision.
func WithClock(now func() time.Time) Option {
	return func(a *Appender) {
		a.now = now
		a.marker = NewWeekMarker(a.marker.closeDay, now)
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Appender) { a.logger = logger }
}

// New creates an Appender. weekCloseDay is the real-world weekday on which
// the most recent row is stamped as the last trading day of its week.
func New(fetcher fetch.Fetcher, weekCloseDay time.Weekday, opts ...Option) *Appender {
	a := &Appender{
		fetcher: fetcher,
		logger:  slog.Default(),
		now:     time.Now,
	}
	a.marker = NewWeekMarker(weekCloseDay, a.now)
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run executes one append against the open workbook. The workbook is only
// saved after every field, marker and formula is computed, so any failure
// leaves the persisted store exactly as it was. The returned error is nil
// for both StatusAppended and StatusNoUpdate.
func (a *Appender) Run(ctx context.Context, w *store.Workbook) (*Outcome, error) {
	runID := uuid.NewString()
	log := a.logger.With(slog.String("run_id", runID))
	log.Info("append run starting", slog.String("store", w.Path()))

	fs, err := a.fetcher.Fetch(ctx)
	if err != nil {
		return nil, a.fail(log, StateFetching, err)
	}

	rec, err := Normalize(fs)
	if err != nil {
		return nil, a.fail(log, StateNormalizing, err)
	}
	if rec.Suspicious() {
		log.Warn("source published high below low",
			slog.Float64("high", rec.High),
			slog.Float64("low", rec.Low),
			slog.Time("trade_date", rec.Date))
	}

	row, err := NextEmptyRow(w)
	if err != nil {
		return nil, a.fail(log, StateLocating, err)
	}

	if IsDuplicateSession(w, row, rec.Date) {
		return a.abortNoUpdate(log, w, runID, row, rec.Date)
	}

	if err := a.writeRecord(w, row, rec); err != nil {
		return nil, a.fail(log, StateWriting, err)
	}

	marked, err := a.marker.MarkIfWeekClose(w, row)
	if err != nil {
		return nil, a.fail(log, StateMarking, err)
	}

	outcome := &Outcome{
		RunID:     runID,
		Status:    StatusAppended,
		Row:       row,
		TradeDate: rec.Date,
	}
	if marked {
		outcome.MarkedRow = row
	}

	limit, err := BuildLimitFormula(w.WeekBoundaries(), row)
	switch {
	case err == nil:
		if err := w.SetLimitFormula(row, limit); err != nil {
			return nil, a.fail(log, StateBuildingFormulas, err)
		}
		if err := w.SetViolationFormula(row, BuildViolationFormula(row)); err != nil {
			return nil, a.fail(log, StateBuildingFormulas, err)
		}
		outcome.LimitBuilt = true
	case apperrors.IsType(err, apperrors.ErrTypeInsufficientHistory):
		// Early in the store's life. The data row still goes in; the
		// derived cells stay blank until four weeks have completed.
		log.Warn("not enough completed weeks for the rolling limit",
			slog.Int("row", row),
			slog.String("detail", err.Error()))
	default:
		return nil, a.fail(log, StateBuildingFormulas, err)
	}

	if err := w.Save(); err != nil {
		return nil, a.fail(log, StatePersisting, err)
	}

	log.Info("append run complete",
		slog.Int("row", row),
		slog.Time("trade_date", rec.Date),
		slog.Bool("limit_built", outcome.LimitBuilt),
		slog.Bool("week_boundary", marked))
	return outcome, nil
}

// abortNoUpdate terminates a duplicate-session run. The week-boundary
// marker is the single mutation permitted on a no-update day: the Saturday
// run sees no new session but must still stamp Friday's row, and the stamp
// rides the same end-of-run save as everything else.
func (a *Appender) abortNoUpdate(log *slog.Logger, w *store.Workbook, runID string, row int, date time.Time) (*Outcome, error) {
	outcome := &Outcome{
		RunID:     runID,
		Status:    StatusNoUpdate,
		TradeDate: date,
	}

	marked, err := a.marker.MarkIfWeekClose(w, row-1)
	if err != nil {
		return nil, a.fail(log, StateMarking, err)
	}
	if marked {
		outcome.MarkedRow = row - 1
		if err := w.Save(); err != nil {
			return nil, a.fail(log, StatePersisting, err)
		}
	}

	attrs := []any{
		slog.Time("trade_date", date),
		slog.Bool("week_boundary", marked),
	}
	if a.calendar != nil {
		attrs = append(attrs, slog.String("today_is", a.calendar.Describe(a.now())))
	}
	log.Info("markets are closed today, no update", attrs...)
	return outcome, nil
}

// writeRecord fills the six value cells of the new row.
func (a *Appender) writeRecord(w *store.Workbook, row int, rec *Record) error {
	if err := w.SetDate(row, rec.Date); err != nil {
		return err
	}
	prices := map[string]float64{
		store.ColOpen:  rec.Open,
		store.ColHigh:  rec.High,
		store.ColLow:   rec.Low,
		store.ColClose: rec.Close,
	}
	for _, col := range []string{store.ColOpen, store.ColHigh, store.ColLow, store.ColClose} {
		if err := w.SetPrice(row, col, prices[col]); err != nil {
			return err
		}
	}
	return w.SetVolume(row, rec.Volume)
}

// fail logs and wraps a stage failure so the caller's diagnostics name the
// step that broke.
func (a *Appender) fail(log *slog.Logger, state State, err error) error {
	log.Error("append run failed",
		slog.String("state", string(state)),
		slog.String("error", err.Error()))
	return fmt.Errorf("%s: %w", state, err)
}
