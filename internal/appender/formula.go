package appender

import (
	"fmt"

	apperrors "pricegrab/internal/errors"
	"pricegrab/internal/store"
)

const (
	// trailingWeeks is the width of the rolling volume window.
	trailingWeeks = 4
	// boundariesNeeded bounds the window: the 1st boundary scanning
	// backward ends it, the 5th starts it (one row further down).
	boundariesNeeded = trailingWeeks + 1
	// limitFactor scales the average volume into the client's limit.
	limitFactor = "0.25"
)

// BuildLimitFormula emits the rolling-average limit formula for the row
// being appended. boundaries is the store's week-boundary index in
// ascending order; only boundaries above the new row count.
//
// The window runs from one row below the 5th-most-recent boundary to the
// most recent boundary, covering the four completed weeks regardless of
// how many trading days each held. With fewer than five boundaries the
// builder refuses with InsufficientHistory rather than clamping: a clamped
// window would put a plausible-looking but wrong limit in the workbook.
func BuildLimitFormula(boundaries []int, row int) (string, error) {
	prior := make([]int, 0, len(boundaries))
	for _, b := range boundaries {
		if b < row {
			prior = append(prior, b)
		}
	}
	if len(prior) < boundariesNeeded {
		return "", apperrors.NewInsufficientHistoryError(len(prior), boundariesNeeded)
	}

	end := prior[len(prior)-1]
	start := prior[len(prior)-boundariesNeeded] + 1
	return fmt.Sprintf("ROUND(AVERAGE($%s$%d:$%s$%d)*%s,-2)",
		store.ColVolume, start, store.ColVolume, end, limitFactor), nil
}

// BuildViolationFormula emits the conditional violation formula for the
// row being appended: blank while the manually entered observed value
// stays below the limit, otherwise the excess. The observed cell is empty
// at write time; the formula goes live when a human fills it in.
func BuildViolationFormula(row int) string {
	return fmt.Sprintf(`IF(%[1]s%[3]d<%[2]s%[3]d,"",+%[1]s%[3]d-%[2]s%[3]d)`,
		store.ColObserved, store.ColLimit, row)
}
