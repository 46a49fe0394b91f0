package units

import (
	"fmt"
	"sort"
)

// Abbreviation maps a short unit spelling to its canonical full form.
type Abbreviation struct {
	Short string
	Full  string
}

// abbreviations is applied in this order by Normalize.
var abbreviations = []Abbreviation{
	{"cm", "centimetre"},
	{"ft", "foot"},
	{"in", "inch"},
	{"m", "metre"},
	{"mm", "millimetre"},
	{"yd", "yard"},
	{"g", "gram"},
	{"kg", "kilogram"},
	{"µg", "microgram"},
	{"mg", "milligram"},
	{"oz", "ounce"},
	{"lb", "pound"},
	{"ton", "ton"},
	{"kv", "kilovolt"},
	{"mv", "millivolt"},
	{"v", "volt"},
	{"kw", "kilowatt"},
	{"w", "watt"},
	{"cl", "centilitre"},
	{"cu ft", "cubic foot"},
	{"cu in", "cubic inch"},
	{"cup", "cup"},
	{"dl", "decilitre"},
	{"fl oz", "fluid ounce"},
	{"gal", "gallon"},
	{"imp gal", "imperial gallon"},
	{"l", "litre"},
	{"µl", "microlitre"},
	{"ml", "millilitre"},
	{"pt", "pint"},
	{"qt", "quart"},
}

var (
	lengthUnits = []string{"centimetre", "foot", "inch", "metre", "millimetre", "yard"}
	weightUnits = []string{"gram", "kilogram", "microgram", "milligram", "ounce", "pound", "ton"}
	volumeUnits = []string{
		"centilitre", "cubic foot", "cubic inch", "cup", "decilitre", "fluid ounce",
		"gallon", "imperial gallon", "litre", "microlitre", "millilitre", "pint", "quart",
	}
)

// entityUnits lists the canonical units accepted for each entity type.
// Slice order is the tie-break order used by SelectMax.
var entityUnits = map[string][]string{
	"width":                         lengthUnits,
	"depth":                         lengthUnits,
	"height":                        lengthUnits,
	"item_weight":                   weightUnits,
	"maximum_weight_recommendation": weightUnits,
	"voltage":                       {"kilovolt", "millivolt", "volt"},
	"wattage":                       {"kilowatt", "watt"},
	"item_volume":                   volumeUnits,
}

// Abbreviations returns a copy of the abbreviation table in application order.
func Abbreviations() []Abbreviation {
	out := make([]Abbreviation, len(abbreviations))
	copy(out, abbreviations)
	return out
}

// UnitsFor returns the permitted units for entity, or false when the entity
// type is unknown.
func UnitsFor(entity string) ([]string, bool) {
	us, ok := entityUnits[entity]
	if !ok || len(us) == 0 {
		return nil, false
	}
	out := make([]string, len(us))
	copy(out, us)
	return out, true
}

// EntityTypes returns the known entity types sorted by name.
func EntityTypes() []string {
	out := make([]string, 0, len(entityUnits))
	for k := range entityUnits {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Validate reports abbreviations whose full form no entity accepts.
func Validate() error {
	known := map[string]struct{}{}
	for _, us := range entityUnits {
		for _, u := range us {
			known[u] = struct{}{}
		}
	}
	for _, a := range abbreviations {
		if _, ok := known[a.Full]; !ok {
			return fmt.Errorf("abbreviation %q maps to unknown unit %q", a.Short, a.Full)
		}
	}
	return nil
}
