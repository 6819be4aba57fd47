package db

import (
	"context"
	"os"
	"reflect"
	"testing"
	"time"

	"github.com/mauv0809/landuse-dashboard/internal/ingest"
	"github.com/mauv0809/landuse-dashboard/internal/models"
	"github.com/mauv0809/landuse-dashboard/internal/table"
	"github.com/shopspring/decimal"
)

var features = []string{"arable_land_per_person", "rural_percentage", "rural_population", "forest_area_km2"}

func TestCellRecord(t *testing.T) {
	rec := cellRecord(models.IndicatorValue{
		Country: "Brazil",
		Year:    2015,
		Feature: "rural_percentage",
		Value:   decimal.RequireFromString("14.3"),
	}, features)

	if rec.Country != "Brazil" || rec.Year != "2015" {
		t.Fatalf("unexpected key %s %s", rec.Country, rec.Year)
	}
	if len(rec.Values) != len(features) {
		t.Fatalf("expected %d columns, got %d", len(features), len(rec.Values))
	}
	if v := rec.Values["rural_percentage"]; v == nil || v.String() != "14.3" {
		t.Errorf("unexpected value %v", v)
	}
	if rec.Values["forest_area_km2"] != nil {
		t.Error("expected nil placeholder")
	}
}

func TestRebuildTableKeepsRowsWithoutValues(t *testing.T) {
	five := decimal.NewFromInt(5)
	records := table.FromObservations([]ingest.Observation{
		{Country: "Japan", Year: "1990", Feature: "rural_population", Value: nil},
		{Country: "Japan", Year: "1991", Feature: "rural_population", Value: &five},
	}, features)
	wide, err := table.Build(records, features)
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	keys, values := storedRows(wide)
	if len(keys) != 2 || len(values) != 1 {
		t.Fatalf("expected 2 keys and 1 value, got %d and %d", len(keys), len(values))
	}

	rebuilt, err := rebuildTable(keys, values, features)
	if err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	if rebuilt.Len() != wide.Len() {
		t.Fatalf("expected %d rows after rebuild, got %d", wide.Len(), rebuilt.Len())
	}
	if !reflect.DeepEqual(rebuilt.Rows(), wide.Rows()) {
		t.Errorf("rebuilt rows differ:\n%#v\n%#v", rebuilt.Rows(), wide.Rows())
	}
	if _, ok := rebuilt.Lookup("Japan", 1990); !ok {
		t.Error("expected a row for Japan 1990")
	}
	if rebuilt.Supplied("Japan", 1990, "rural_population") {
		t.Error("expected Japan 1990 to have no supplied cells")
	}
	if !rebuilt.Supplied("Japan", 1991, "rural_population") {
		t.Error("expected Japan 1991 rural_population to be supplied")
	}
}

// TestRepositoryRoundTrip needs a disposable Postgres database.
func TestRepositoryRoundTrip(t *testing.T) {
	databaseURL := os.Getenv("TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()

	if err := RunMigrations(databaseURL); err != nil {
		t.Fatalf("migrations: %v", err)
	}
	pool, err := Connect(ctx, databaseURL)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer pool.Close()
	repo := NewRepository(pool)

	v := decimal.RequireFromString("0.39")
	records := []table.LongRecord{
		cellRecord(models.IndicatorValue{Country: "Brazil", Year: 2015, Feature: "arable_land_per_person", Value: v}, features),
		cellRecord(models.IndicatorValue{Country: "Canada", Year: 2015, Feature: "rural_percentage", Value: decimal.NewFromInt(19)}, features),
		keyRecord(models.TableKey{Country: "Japan", Year: 1990}, features),
	}
	wide, err := table.Build(records, features)
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	refreshedAt := time.Now().UTC().Truncate(time.Second)
	n, err := repo.SaveTable(ctx, wide, len(records), refreshedAt)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 stored cells, got %d", n)
	}

	loaded, last, err := repo.LoadTable(ctx, features)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if last == nil || !last.RefreshedAt.Equal(refreshedAt) || last.Rows != 3 {
		t.Fatalf("unexpected refresh %#v", last)
	}
	if loaded.Len() != 3 {
		t.Fatalf("expected 3 rows, got %d", loaded.Len())
	}
	if row, ok := loaded.Lookup("Japan", 1990); !ok || !row.Value("rural_population").IsZero() {
		t.Fatalf("expected an all-zero Japan 1990 row, got %#v (%v)", row, ok)
	}
	row, ok := loaded.Lookup("Brazil", 2015)
	if !ok || !row.Value("arable_land_per_person").Equal(v) {
		t.Fatalf("unexpected Brazil row %#v", row)
	}
	if loaded.Supplied("Brazil", 2015, "rural_percentage") {
		t.Error("expected unsupplied cell to stay unsupplied")
	}

	count, err := repo.GetValueCount(ctx)
	if err != nil || count != 2 {
		t.Fatalf("expected 2 stored values, got %d (%v)", count, err)
	}
}
