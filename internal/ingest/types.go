package ingest

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// DefaultBaseURL is the World Bank Indicators API v2 root.
const DefaultBaseURL = "https://api.worldbank.org/v2"

// Indicator pairs a remote series code with the table column it fills.
type Indicator struct {
	Code    string
	Feature string
}

// DefaultIndicators are the four land-use series shown on the dashboard.
var DefaultIndicators = []Indicator{
	{Code: "AG.LND.ARBL.HA.PC", Feature: "arable_land_per_person"},
	{Code: "SP.RUR.TOTL.ZS", Feature: "rural_percentage"},
	{Code: "SP.RUR.TOTL", Feature: "rural_population"},
	{Code: "AG.LND.FRST.K2", Feature: "forest_area_km2"},
}

// YearRange is an inclusive [Start, End] span of years. Start <= End is the
// caller's responsibility.
type YearRange struct {
	Start int
	End   int
}

// String renders the range the way the API's date parameter expects it.
func (y YearRange) String() string {
	return fmt.Sprintf("%d:%d", y.Start, y.End)
}

// Observation is one fetched data point. A nil Value is a null in the
// response, i.e. the series has no figure for that country and year.
type Observation struct {
	Country string
	Year    string
	Feature string
	Value   *decimal.Decimal
}

// apiObservation is the raw shape of one element of the response's data array.
// Date and Value are kept raw so both string and numeric encodings coerce.
type apiObservation struct {
	Indicator struct {
		ID    string `json:"id"`
		Value string `json:"value"`
	} `json:"indicator"`
	Country *struct {
		ID    string  `json:"id"`
		Value *string `json:"value"`
	} `json:"country"`
	CountryISO3 string          `json:"countryiso3code"`
	Date        json.RawMessage `json:"date"`
	Value       json.RawMessage `json:"value"`
}

// apiMessage is what the API returns in place of metadata when it rejects a
// query, e.g. an unknown indicator code.
type apiMessage struct {
	Message []struct {
		ID    string `json:"id"`
		Key   string `json:"key"`
		Value string `json:"value"`
	} `json:"message"`
}
