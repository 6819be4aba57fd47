// Package table reshapes fetched observations into the tidy per-(country, year)
// table the dashboard charts are drawn from.
package table

import (
	"github.com/mauv0809/landuse-dashboard/internal/ingest"
	"github.com/shopspring/decimal"
)

// LongRecord is one raw observation spread over every feature column: the
// observed feature holds its value and every other column is a nil placeholder.
// The same (Country, Year) recurs once per indicator fetched.
type LongRecord struct {
	Country string
	Year    string
	Values  map[string]*decimal.Decimal
}

// FromObservations turns each observation into a sparse LongRecord with a key
// for every feature. Observations for features outside the list still produce
// a row, with all placeholders nil.
func FromObservations(obs []ingest.Observation, features []string) []LongRecord {
	records := make([]LongRecord, 0, len(obs))
	for _, o := range obs {
		values := make(map[string]*decimal.Decimal, len(features))
		for _, f := range features {
			if f == o.Feature {
				values[f] = o.Value
			} else {
				values[f] = nil
			}
		}
		records = append(records, LongRecord{
			Country: o.Country,
			Year:    o.Year,
			Values:  values,
		})
	}
	return records
}
