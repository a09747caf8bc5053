package watch

import "errors"

var (
	ErrEntityRequired   = errors.New("descriptor requires entity_id")
	ErrCheckerRequired  = errors.New("descriptor requires a check")
	ErrDuplicateID      = errors.New("duplicate descriptor id")
	ErrNegativeDebounce = errors.New("debounce must not be negative")

	ErrUnknownCheckerType = errors.New("unknown checker type")
	ErrUnknownOperator    = errors.New("unknown comparison operator")
	ErrUnknownConverter   = errors.New("unknown converter")
	ErrExpectedRequired   = errors.New("comparison requires an expected value")
	ErrValuesRequired     = errors.New("membership check requires values")

	errNotANumber = errors.New("value is not a number")
)
