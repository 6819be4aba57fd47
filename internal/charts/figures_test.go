package charts_test

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"

	"github.com/mauv0809/landuse-dashboard/internal/charts"
	"github.com/mauv0809/landuse-dashboard/internal/ingest"
	"github.com/mauv0809/landuse-dashboard/internal/table"
	"github.com/shopspring/decimal"
)

var features = []string{"arable_land_per_person", "rural_percentage", "rural_population", "forest_area_km2"}

func buildTable(t *testing.T) *table.WideTable {
	t.Helper()

	data := []struct {
		country string
		year    string
		values  [4]float64
	}{
		{"Brazil", "2014", [4]float64{0.38, 14.6, 29000000, 4950000}},
		{"Brazil", "2015", [4]float64{0.39, 14.3, 29500000, 4940000}},
		{"Canada", "2014", [4]float64{1.25, 18.9, 6700000, 3470000}},
		{"Canada", "2015", [4]float64{1.21, 18.7, 6750000, 3470000}},
		{"Japan", "2015", [4]float64{0.03, 8.5, 10800000, 249000}},
	}

	var obs []ingest.Observation
	for _, d := range data {
		for i, f := range features {
			v := decimal.NewFromFloat(d.values[i])
			obs = append(obs, ingest.Observation{Country: d.country, Year: d.year, Feature: f, Value: &v})
		}
	}

	wide, err := table.Build(table.FromObservations(obs, features), features)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return wide
}

func TestBuildFigures(t *testing.T) {
	figs, err := charts.Build(buildTable(t), charts.Options{
		Years:        ingest.YearRange{Start: 1990, End: 2015},
		SnapshotYear: 2015,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(figs) != 5 {
		t.Fatalf("expected 5 figures, got %d", len(figs))
	}

	// line charts: one trace per country
	for _, i := range []int{0, 2, 3} {
		if len(figs[i].Data) != 3 {
			t.Errorf("figure %d: expected 3 traces, got %d", i, len(figs[i].Data))
		}
	}
	first := figs[0].Data[0]
	if first.Name != "Brazil" || first.Mode != "lines" {
		t.Errorf("unexpected first trace %#v", first)
	}
	if !reflect.DeepEqual(first.X, []float64{2014, 2015}) {
		t.Errorf("unexpected x %v", first.X)
	}
	if !reflect.DeepEqual(first.Y, []float64{0.38, 0.39}) {
		t.Errorf("unexpected y %v", first.Y)
	}
	if *figs[0].Layout.XAxis.Tick0 != 1990 || *figs[0].Layout.XAxis.DTick != 25 {
		t.Errorf("unexpected year axis %#v", figs[0].Layout.XAxis)
	}

	// bar charts: sorted descending
	arable := figs[1].Data[0]
	if !reflect.DeepEqual(arable.X, []string{"Canada", "Brazil", "Japan"}) {
		t.Errorf("unexpected arable bar order %v", arable.X)
	}
	ruralPop := figs[4].Data[0]
	if !reflect.DeepEqual(ruralPop.X, []string{"Brazil", "Japan", "Canada"}) {
		t.Errorf("unexpected rural population bar order %v", ruralPop.X)
	}
	if figs[4].Layout.Title != "Rural Population in 2015" {
		t.Errorf("unexpected title %q", figs[4].Layout.Title)
	}

	scatter := figs[3].Data[0]
	if scatter.Mode != "markers" || !reflect.DeepEqual(scatter.Text, []string{"Brazil 2014.0", "Brazil 2015.0"}) {
		t.Errorf("unexpected scatter trace %#v", scatter)
	}
}

func TestBuildFiguresJSON(t *testing.T) {
	figs, err := charts.Build(buildTable(t), charts.Options{
		Years:        ingest.YearRange{Start: 1990, End: 2015},
		SnapshotYear: 2015,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := json.Marshal(figs[0])
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s := string(b)
	for _, want := range []string{`"data":[`, `"layout":{`, `"autotick":false`, `"tick0":1990`, `"dtick":25`} {
		if !strings.Contains(s, want) {
			t.Errorf("expected %s in %s", want, s)
		}
	}
}

func TestBuildFiguresMissingColumn(t *testing.T) {
	wide, err := table.Build(nil, []string{"arable_land_per_person"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := charts.Build(wide, charts.Options{}); err == nil {
		t.Fatal("expected an error for missing columns")
	}
}

func TestBuildFiguresNoSnapshotRows(t *testing.T) {
	figs, err := charts.Build(buildTable(t), charts.Options{
		Years:        ingest.YearRange{Start: 1990, End: 2020},
		SnapshotYear: 2020,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n := len(figs[1].Data[0].Y); n != 0 {
		t.Errorf("expected an empty bar chart, got %d bars", n)
	}
}
