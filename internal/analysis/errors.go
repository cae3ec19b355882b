package analysis

import "errors"

var (
	// ErrDegenerateInput means the text has too few letters for the
	// requested statistic.
	ErrDegenerateInput = errors.New("degenerate input")

	// ErrKeyPeriodTooLarge means the index of coincidence is below the
	// lowest calibrated threshold.
	ErrKeyPeriodTooLarge = errors.New("key period too large")

	// ErrUnhandledIC means no row of the period table covers the value.
	ErrUnhandledIC = errors.New("unhandled index of coincidence")

	// ErrInvalidIndex means a letter index or key is outside [0, 26).
	ErrInvalidIndex = errors.New("invalid alphabet index")

	// ErrInvalidPeriod means a key period below 1 was requested.
	ErrInvalidPeriod = errors.New("invalid key period")

	// ErrSearchSpaceTooLarge means the per-bucket candidate product exceeds
	// the configured combination limit.
	ErrSearchSpaceTooLarge = errors.New("key search space too large")
)
