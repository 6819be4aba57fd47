// Package pipeline runs the fetch-and-reshape core end to end.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/mauv0809/landuse-dashboard/internal/charts"
	"github.com/mauv0809/landuse-dashboard/internal/config"
	"github.com/mauv0809/landuse-dashboard/internal/ingest"
	"github.com/mauv0809/landuse-dashboard/internal/table"
)

// Fetcher retrieves raw observations for every indicator.
type Fetcher interface {
	FetchAll(ctx context.Context, countries []string, years ingest.YearRange, indicators []ingest.Indicator) ([]ingest.Observation, error)
}

// Snapshot is the result of one refresh: the wide table and the figures drawn
// from it.
type Snapshot struct {
	Table        *table.WideTable
	Figures      []charts.Figure
	Observations int
	RefreshedAt  time.Time
}

// Runner refreshes the dashboard data from the configured source.
type Runner struct {
	cfg     config.Config
	fetcher Fetcher
	now     func() time.Time
}

// NewRunner creates a runner for cfg that fetches through f.
func NewRunner(cfg config.Config, f Fetcher) *Runner {
	return &Runner{cfg: cfg, fetcher: f, now: time.Now}
}

// NewClient builds the World Bank client described by cfg.
func NewClient(cfg config.Config) *ingest.Client {
	return ingest.NewClient(ingest.Options{
		BaseURL:      cfg.BaseURL,
		PerPage:      cfg.PerPage,
		Workers:      cfg.Workers,
		RateLimitRPS: cfg.RateLimitRPS,
		Timeout:      cfg.HTTPTimeout,
	})
}

// Run fetches every indicator, pivots the result and assembles the figures.
// Any fetch or format failure aborts the run.
func (r *Runner) Run(ctx context.Context) (*Snapshot, error) {
	start := r.now()
	log.Printf("Starting refresh (countries: %v, years: %s, indicators: %d)...",
		r.cfg.Countries, r.cfg.Years, len(r.cfg.Indicators))

	obs, err := r.fetcher.FetchAll(ctx, r.cfg.Countries, r.cfg.Years, r.cfg.Indicators)
	if err != nil {
		return nil, err
	}

	wide, err := table.Build(table.FromObservations(obs, r.cfg.Features()), r.cfg.Features())
	if err != nil {
		return nil, fmt.Errorf("building table: %w", err)
	}

	snap, err := NewSnapshot(wide, r.cfg, len(obs), start)
	if err != nil {
		return nil, err
	}

	log.Printf("Refresh complete: %d observations, %d rows, %d countries in %v",
		len(obs), wide.Len(), len(wide.Countries()), r.now().Sub(start))
	return snap, nil
}

// NewSnapshot assembles the figures for an already built table.
func NewSnapshot(wide *table.WideTable, cfg config.Config, observations int, refreshedAt time.Time) (*Snapshot, error) {
	figs, err := charts.Build(wide, charts.Options{Years: cfg.Years, SnapshotYear: cfg.SnapshotYear})
	if err != nil {
		return nil, fmt.Errorf("building figures: %w", err)
	}
	return &Snapshot{
		Table:        wide,
		Figures:      figs,
		Observations: observations,
		RefreshedAt:  refreshedAt,
	}, nil
}
