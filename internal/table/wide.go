package table

import (
	"io"
	"strconv"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/shopspring/decimal"
)

// Row is one (country, year) of the wide table with a value for every feature.
type Row struct {
	Country string
	Year    float64
	Values  map[string]decimal.Decimal
}

// Value returns the feature's value, zero if the row has no such column.
func (r Row) Value(feature string) decimal.Decimal {
	return r.Values[feature]
}

// Float returns the feature's value as a float64.
func (r Row) Float(feature string) float64 {
	return r.Values[feature].InexactFloat64()
}

// WideTable is the tidy result of Build. It is never modified after
// construction; callers must not modify the rows it hands out.
type WideTable struct {
	features []string
	rows     []Row
	index    map[key]int
	supplied map[cell]bool
}

func newWideTable(features []string, rows []Row, supplied map[cell]bool) *WideTable {
	fs := make([]string, len(features))
	copy(fs, features)

	index := make(map[key]int, len(rows))
	for i, r := range rows {
		index[key{country: r.Country, year: r.Year}] = i
	}
	return &WideTable{features: fs, rows: rows, index: index, supplied: supplied}
}

// Features returns the value columns in order.
func (t *WideTable) Features() []string {
	out := make([]string, len(t.features))
	copy(out, t.features)
	return out
}

// Len returns the number of rows.
func (t *WideTable) Len() int { return len(t.rows) }

// Rows returns all rows ordered by country then year.
func (t *WideTable) Rows() []Row {
	out := make([]Row, len(t.rows))
	copy(out, t.rows)
	return out
}

// Countries returns the distinct countries in alphabetical order.
func (t *WideTable) Countries() []string {
	var out []string
	for i, r := range t.rows {
		if i == 0 || r.Country != t.rows[i-1].Country {
			out = append(out, r.Country)
		}
	}
	return out
}

// ForCountry returns the country's rows in ascending year order.
func (t *WideTable) ForCountry(country string) []Row {
	var out []Row
	for _, r := range t.rows {
		if r.Country == country {
			out = append(out, r)
		}
	}
	return out
}

// ForYear returns one row per country that has the given year.
func (t *WideTable) ForYear(year float64) []Row {
	var out []Row
	for _, r := range t.rows {
		if r.Year == year {
			out = append(out, r)
		}
	}
	return out
}

// Lookup returns the row for a country and year.
func (t *WideTable) Lookup(country string, year float64) (Row, bool) {
	i, ok := t.index[key{country: country, year: year}]
	if !ok {
		return Row{}, false
	}
	return t.rows[i], true
}

// Supplied reports whether any observation supplied the cell. A zero cell
// with Supplied false was never reported by the source.
func (t *WideTable) Supplied(country string, year float64, feature string) bool {
	return t.supplied[cell{key: key{country: country, year: year}, feature: feature}]
}

// Column extracts one feature from rows as float64s.
func Column(rows []Row, feature string) []float64 {
	out := make([]float64, len(rows))
	for i, r := range rows {
		out[i] = r.Float(feature)
	}
	return out
}

// Years extracts the year of each row.
func Years(rows []Row) []float64 {
	out := make([]float64, len(rows))
	for i, r := range rows {
		out[i] = r.Year
	}
	return out
}

// DataFrame returns the table as a dataframe with columns country, year and
// then one float column per feature.
func (t *WideTable) DataFrame() dataframe.DataFrame {
	countries := make([]string, len(t.rows))
	years := make([]float64, len(t.rows))
	for i, r := range t.rows {
		countries[i] = r.Country
		years[i] = r.Year
	}

	cols := []series.Series{
		series.New(countries, series.String, "country"),
		series.New(years, series.Float, "year"),
	}
	for _, f := range t.features {
		cols = append(cols, series.New(Column(t.rows, f), series.Float, f))
	}
	return dataframe.New(cols...)
}

// WriteCSV writes the table as CSV with a header row. Years are written in
// their shortest form and values with their full decimal precision.
func (t *WideTable) WriteCSV(w io.Writer) error {
	df := t.textFrame()
	if df.Err != nil {
		return df.Err
	}
	return df.WriteCSV(w)
}

// textFrame is DataFrame with every column already formatted as a string, so
// gota does not round the floats on the way out.
func (t *WideTable) textFrame() dataframe.DataFrame {
	countries := make([]string, len(t.rows))
	years := make([]string, len(t.rows))
	for i, r := range t.rows {
		countries[i] = r.Country
		years[i] = strconv.FormatFloat(r.Year, 'f', -1, 64)
	}

	cols := []series.Series{
		series.New(countries, series.String, "country"),
		series.New(years, series.String, "year"),
	}
	for _, f := range t.features {
		values := make([]string, len(t.rows))
		for i, r := range t.rows {
			values[i] = r.Value(f).String()
		}
		cols = append(cols, series.New(values, series.String, f))
	}
	return dataframe.New(cols...)
}
