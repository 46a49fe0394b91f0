package units

import "errors"

var (
	// ErrUnknownEntity is returned when the entity type has no permitted units.
	ErrUnknownEntity = errors.New("invalid entity type or no units found")
	// ErrNoMeasurement is returned when no number followed by a permitted unit is found.
	ErrNoMeasurement = errors.New("no measurement found")
)
