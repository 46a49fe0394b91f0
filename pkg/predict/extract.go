// Package predict turns a product image and an entity type into a
// measurement prediction string.
package predict

import (
	"errors"

	"imgmeasure/pkg/units"
)

// InvalidEntityPrediction is emitted for entity types with no known units.
const InvalidEntityPrediction = "Invalid entity type or no units found."

// Extract runs cleanup, abbreviation expansion and selection over raw
// recognized text.
func Extract(raw, entity string) string {
	m, err := units.SelectMax(units.Normalize(units.Clean(raw)), entity)
	return Render(m, err)
}

// Render maps a selection result to its output form.
func Render(m units.Measurement, err error) string {
	switch {
	case err == nil:
		return m.String()
	case errors.Is(err, units.ErrUnknownEntity):
		return InvalidEntityPrediction
	default:
		return ""
	}
}
