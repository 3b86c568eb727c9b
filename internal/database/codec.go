package database

import "time"

// Branch, supplier and product identifiers cross the stored-procedure
// boundary divided by 10: the procedures work on the bare business code,
// while the rest of the system appends a trailing check digit. The check
// digit is recomputed by the persistence layer on the way back, so the
// round trip through FromBusinessCode restores a zero digit placeholder.

// ToBusinessCode strips the trailing check digit from a system identifier.
func ToBusinessCode(id int64) int64 {
	return id / 10
}

// FromBusinessCode rebuilds a system identifier from a bare business code.
func FromBusinessCode(code int64) int64 {
	return code * 10
}

// The two persistence paths sit on storage engines with different minimum
// representable dates. Dates below the floor are sent as no value; dates
// past year 9999 are clamped to the maximum each engine accepts.
var (
	movementDateFloor = time.Date(1000, time.January, 1, 0, 0, 0, 0, time.UTC)
	ruleDateFloor     = time.Date(1753, time.January, 1, 0, 0, 0, 0, time.UTC)
	dateCeiling       = time.Date(9999, time.December, 31, 23, 59, 59, 0, time.UTC)
)

func coerceDate(t time.Time, floor time.Time) *time.Time {
	if t.IsZero() || t.Before(floor) {
		return nil
	}
	if t.After(dateCeiling) {
		clamped := dateCeiling
		return &clamped
	}
	out := t
	return &out
}

// CoerceMovementDate prepares a date for the movement posting path
// (minimum year 1000).
func CoerceMovementDate(t time.Time) *time.Time {
	return coerceDate(t, movementDateFloor)
}

// CoerceRuleDate prepares a date for the condition-rule path
// (minimum year 1753).
func CoerceRuleDate(t time.Time) *time.Time {
	return coerceDate(t, ruleDateFloor)
}
