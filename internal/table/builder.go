package table

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

type key struct {
	country string
	year    float64
}

type cell struct {
	key
	feature string
}

type group struct {
	key    key
	values map[string]*decimal.Decimal
}

// Build collapses sparse long records into one row per (country, year).
//
// Every cell takes the single non-nil value contributed for it. A repeated
// identical value is accepted; a different one is a *ConflictError. Cells no
// record supplied read as zero. Years are parsed as numbers and a year that
// does not parse is a *YearFormatError. Input order does not matter.
func Build(records []LongRecord, features []string) (*WideTable, error) {
	groups := make(map[key]*group)
	supplied := make(map[cell]bool)

	for _, rec := range records {
		year, err := parseYear(rec.Year)
		if err != nil {
			return nil, &YearFormatError{Country: rec.Country, Year: rec.Year, Err: err}
		}
		k := key{country: rec.Country, year: year}

		g, ok := groups[k]
		if !ok {
			g = &group{key: k, values: make(map[string]*decimal.Decimal, len(features))}
			groups[k] = g
		}

		for _, f := range features {
			v := rec.Values[f]
			if v == nil {
				continue
			}
			prev := g.values[f]
			if prev == nil {
				d := *v
				g.values[f] = &d
				supplied[cell{key: k, feature: f}] = true
				continue
			}
			if !prev.Equal(*v) {
				return nil, &ConflictError{
					Country: k.country,
					Year:    k.year,
					Feature: f,
					First:   *prev,
					Second:  *v,
				}
			}
		}
	}

	rows := make([]Row, 0, len(groups))
	for _, g := range groups {
		values := make(map[string]decimal.Decimal, len(features))
		for _, f := range features {
			if v := g.values[f]; v != nil {
				values[f] = *v
			} else {
				values[f] = decimal.Zero
			}
		}
		rows = append(rows, Row{Country: g.key.country, Year: g.key.year, Values: values})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Country != rows[j].Country {
			return rows[i].Country < rows[j].Country
		}
		return rows[i].Year < rows[j].Year
	})

	return newWideTable(features, rows, supplied), nil
}

func parseYear(s string) (float64, error) {
	y, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(y) || math.IsInf(y, 0) {
		return 0, fmt.Errorf("not a finite number")
	}
	return y, nil
}
