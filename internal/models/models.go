package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Refresh records one successful pipeline run.
type Refresh struct {
	ID           int       `json:"id"`
	RefreshedAt  time.Time `json:"refreshed_at"`
	Rows         int       `json:"rows"`
	Observations int       `json:"observations"`
	CreatedAt    time.Time `json:"created_at"`
}

// IndicatorValue is one stored cell of the wide table.
type IndicatorValue struct {
	Country string          `json:"country"`
	Year    float64         `json:"year"`
	Feature string          `json:"feature"`
	Value   decimal.Decimal `json:"value"`
}

// TableKey is one stored (country, year) row of the wide table, kept even
// when none of its cells were supplied.
type TableKey struct {
	Country string  `json:"country"`
	Year    float64 `json:"year"`
}

// TableRow is a wide table row as served over the API: country, year and one
// numeric field per feature, in Features order.
type TableRow struct {
	Country  string
	Year     float64
	Features []string
	Values   map[string]decimal.Decimal
}

// MarshalJSON encodes the row as a flat object with the features in order.
func (r TableRow) MarshalJSON() ([]byte, error) {
	// Hand-built so the feature columns keep their order.
	buf := []byte(`{"country":`)
	b, err := json.Marshal(r.Country)
	if err != nil {
		return nil, err
	}
	buf = append(buf, b...)
	buf = append(buf, `,"year":`...)
	b, err = json.Marshal(r.Year)
	if err != nil {
		return nil, err
	}
	buf = append(buf, b...)
	for _, f := range r.Features {
		buf = append(buf, ',')
		b, err = json.Marshal(f)
		if err != nil {
			return nil, err
		}
		buf = append(buf, b...)
		buf = append(buf, ':')
		b, err = json.Marshal(r.Values[f].InexactFloat64())
		if err != nil {
			return nil, err
		}
		buf = append(buf, b...)
	}
	return append(buf, '}'), nil
}
