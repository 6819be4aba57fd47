// Package charts turns the wide indicator table into plotly-style figures.
package charts

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/mauv0809/landuse-dashboard/internal/ingest"
	"github.com/mauv0809/landuse-dashboard/internal/table"
)

const (
	featureArable = "arable_land_per_person"
	featureRural  = "rural_percentage"
	featureRurPop = "rural_population"
	featureForest = "forest_area_km2"
)

// Figure is one chart: its traces and its layout.
type Figure struct {
	Data   []Trace `json:"data"`
	Layout Layout  `json:"layout"`
}

// Trace is a single plotted series. X holds []float64 or []string.
type Trace struct {
	Type         string    `json:"type"`
	Mode         string    `json:"mode,omitempty"`
	Name         string    `json:"name,omitempty"`
	X            any       `json:"x"`
	Y            []float64 `json:"y"`
	Text         []string  `json:"text,omitempty"`
	TextPosition string    `json:"textposition,omitempty"`
}

type Layout struct {
	Title string `json:"title"`
	XAxis Axis   `json:"xaxis"`
	YAxis Axis   `json:"yaxis"`
}

type Axis struct {
	Title    string   `json:"title"`
	AutoTick *bool    `json:"autotick,omitempty"`
	Tick0    *float64 `json:"tick0,omitempty"`
	DTick    *float64 `json:"dtick,omitempty"`
}

// Options fixes the year span shown on the time axes and the year of the
// bar-chart snapshots.
type Options struct {
	Years        ingest.YearRange
	SnapshotYear int
}

// Build assembles the five dashboard figures, in display order:
// arable land over time, arable land in the snapshot year, rural share over
// time, rural population against forest area, rural population in the
// snapshot year.
func Build(t *table.WideTable, opts Options) ([]Figure, error) {
	have := map[string]bool{}
	for _, f := range t.Features() {
		have[f] = true
	}
	for _, f := range []string{featureArable, featureRural, featureRurPop, featureForest} {
		if !have[f] {
			return nil, fmt.Errorf("table has no %s column", f)
		}
	}

	countries := t.Countries()
	snapshot := t.ForYear(float64(opts.SnapshotYear))
	span := fmt.Sprintf("%d to %d", opts.Years.Start, opts.Years.End)

	return []Figure{
		{
			Data: lineTraces(t, countries, featureArable),
			Layout: Layout{
				Title: "Change in Hectares Arable Land <br> per Person " + span,
				XAxis: yearAxis(opts.Years),
				YAxis: Axis{Title: "Hectares"},
			},
		},
		{
			Data: []Trace{barTrace(snapshot, featureArable)},
			Layout: Layout{
				Title: fmt.Sprintf("Hectares Arable Land per Person in %d", opts.SnapshotYear),
				XAxis: Axis{Title: "Country"},
				YAxis: Axis{Title: "Hectares per person"},
			},
		},
		{
			Data: lineTraces(t, countries, featureRural),
			Layout: Layout{
				Title: "Change in Rural Population <br> (Percent of Total Population)",
				XAxis: yearAxis(opts.Years),
				YAxis: Axis{Title: "Percent"},
			},
		},
		{
			Data: scatterTraces(t, countries),
			Layout: Layout{
				Title: fmt.Sprintf("Rural Population versus <br> Forested Area (Square Km) %d-%d", opts.Years.Start, opts.Years.End),
				XAxis: Axis{Title: "Rural Population"},
				YAxis: Axis{Title: "Forest Area (square km)"},
			},
		},
		{
			Data: []Trace{barTrace(snapshot, featureRurPop)},
			Layout: Layout{
				Title: fmt.Sprintf("Rural Population in %d", opts.SnapshotYear),
				XAxis: Axis{Title: "Country"},
				YAxis: Axis{Title: "Rural Population"},
			},
		},
	}, nil
}

// yearAxis ticks only at the range bounds.
func yearAxis(years ingest.YearRange) Axis {
	autoTick := false
	tick0 := float64(years.Start)
	dtick := float64(years.End - years.Start)
	return Axis{Title: "Year", AutoTick: &autoTick, Tick0: &tick0, DTick: &dtick}
}

func lineTraces(t *table.WideTable, countries []string, feature string) []Trace {
	traces := make([]Trace, 0, len(countries))
	for _, country := range countries {
		rows := t.ForCountry(country)
		traces = append(traces, Trace{
			Type: "scatter",
			Mode: "lines",
			Name: country,
			X:    table.Years(rows),
			Y:    table.Column(rows, feature),
		})
	}
	return traces
}

// barTrace plots one value per country, largest first.
func barTrace(rows []table.Row, feature string) Trace {
	sorted := make([]table.Row, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Value(feature).GreaterThan(sorted[j].Value(feature))
	})

	names := make([]string, len(sorted))
	for i, r := range sorted {
		names[i] = r.Country
	}
	return Trace{
		Type: "bar",
		X:    names,
		Y:    table.Column(sorted, feature),
	}
}

func scatterTraces(t *table.WideTable, countries []string) []Trace {
	traces := make([]Trace, 0, len(countries))
	for _, country := range countries {
		rows := t.ForCountry(country)
		text := make([]string, len(rows))
		for i, r := range rows {
			text[i] = r.Country + " " + yearLabel(r.Year)
		}
		traces = append(traces, Trace{
			Type:         "scatter",
			Mode:         "markers",
			Name:         country,
			X:            table.Column(rows, featureRurPop),
			Y:            table.Column(rows, featureForest),
			Text:         text,
			TextPosition: "top center",
		})
	}
	return traces
}

// yearLabel formats a year in its shortest form with at least one decimal
// place, e.g. "2015.0" or "1990.5".
func yearLabel(year float64) string {
	s := strconv.FormatFloat(year, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
