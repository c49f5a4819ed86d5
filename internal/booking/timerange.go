// Package booking holds the pure admission and lifecycle rules for station
// reservations: interval validation, overlap detection, authorization and the
// reservation state machine. Nothing here reads a clock or writes to a store.
package booking

import "time"

// ValidateTimeRange checks a proposed [start, end) interval against now.
// A zero time counts as absent. Every rule is checked and the failures are
// returned together as Errors.
func ValidateTimeRange(start, end, now time.Time) error {
	var errs Errors

	if start.IsZero() {
		errs = errs.Add(&ValidationError{Field: "start", Message: "start required"})
	}
	if end.IsZero() {
		errs = errs.Add(&ValidationError{Field: "end", Message: "end required"})
	}
	if !start.IsZero() && !end.IsZero() {
		if !start.Before(end) {
			errs = errs.Add(&ValidationError{Field: "start", Message: "start must precede end"})
		}
		if start.Before(now) {
			errs = errs.Add(&ValidationError{Field: "start", Message: "start cannot be in the past"})
		}
	}

	return errs.Err()
}
