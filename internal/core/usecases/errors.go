package usecases

import "errors"

var (
	// ErrUnknownDestination is returned when a quoted route references a
	// destination with no pricing record. Callers map it to an empty result.
	ErrUnknownDestination = errors.New("unknown destination")

	// ErrVehicleUnavailable is the retryable commit-time conflict: the
	// vehicle chosen by the advisory availability check was taken by a
	// concurrent booking before this one could bind it.
	ErrVehicleUnavailable = errors.New("vehicle no longer available")

	// ErrCodeCollision is returned when the bounded retry budget for
	// opportunity code generation is exhausted.
	ErrCodeCollision = errors.New("opportunity code collision budget exhausted")

	// ErrOpportunityNotFound is returned for lookups by unknown code.
	ErrOpportunityNotFound = errors.New("opportunity not found")

	// ErrInvalidStateTransition rejects lifecycle moves out of a terminal
	// opportunity state.
	ErrInvalidStateTransition = errors.New("invalid opportunity state transition")

	// ErrDateBlocked is returned when a requested trip falls on a blocked
	// holiday date or inside a blocked time window.
	ErrDateBlocked = errors.New("date blocked for bookings")
)
