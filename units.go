package gol

import "fmt"

// LengthUnit is one of the accepted unit strings of spec.md §6.
type LengthUnit string

const (
	Meters     LengthUnit = "m"
	MetersLong LengthUnit = "meters"
	Kilometers LengthUnit = "km"
	KilometersLong LengthUnit = "kilometers"
	Feet       LengthUnit = "ft"
	FeetLong   LengthUnit = "feet"
	Yards      LengthUnit = "yd"
	YardsLong  LengthUnit = "yards"
	Miles      LengthUnit = "mi"
	MilesLong  LengthUnit = "miles"
)

// metersPerUnit is the conversion factor from one unit to meters (spec.md
// §6's "conversion factors from meters to each unit" inverted here so
// MetersToUnit/UnitToMeters share one table).
var metersPerUnit = map[LengthUnit]float64{
	Meters:         1,
	MetersLong:     1,
	Kilometers:     1000,
	KilometersLong: 1000,
	Feet:           1 / 3.28084,
	FeetLong:       1 / 3.28084,
	Yards:          1 / 1.093613,
	YardsLong:      1 / 1.093613,
	Miles:          1 / 6.213711922373339e-4,
	MilesLong:      1 / 6.213711922373339e-4,
}

// UnitToMeters converts a quantity in unit to meters.
func UnitToMeters(value float64, unit LengthUnit) (float64, error) {
	factor, ok := metersPerUnit[unit]
	if !ok {
		return 0, fmt.Errorf("gol: unrecognized length unit %q", unit)
	}
	return value * factor, nil
}

// MetersToUnit converts a quantity in meters to unit.
func MetersToUnit(meters float64, unit LengthUnit) (float64, error) {
	factor, ok := metersPerUnit[unit]
	if !ok {
		return 0, fmt.Errorf("gol: unrecognized length unit %q", unit)
	}
	return meters / factor, nil
}
