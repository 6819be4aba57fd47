package table

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// ConflictError reports two different values supplied for the same cell.
// Each (country, year, feature) must come from exactly one observation.
type ConflictError struct {
	Country string
	Year    float64
	Feature string
	First   decimal.Decimal
	Second  decimal.Decimal
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflicting values for %s %v %s: %s and %s",
		e.Country, e.Year, e.Feature, e.First.String(), e.Second.String())
}

// YearFormatError reports a year that does not parse as a number.
type YearFormatError struct {
	Country string
	Year    string
	Err     error
}

func (e *YearFormatError) Error() string {
	return fmt.Sprintf("invalid year %q for %s: %v", e.Year, e.Country, e.Err)
}

func (e *YearFormatError) Unwrap() error { return e.Err }
