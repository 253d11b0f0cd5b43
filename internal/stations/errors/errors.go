package errors

import "errors"

var (
	ErrNotFound = errors.New("station not found")

	ErrInvalidID = errors.New("invalid station ID format")

	ErrNoSlotsAvailable = errors.New("no available slots at station")

	ErrSlotsAtCapacity = errors.New("available slots already at total capacity")

	ErrNotBookable = errors.New("station is not accepting bookings")
)
