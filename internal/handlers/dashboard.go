package handlers

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/mauv0809/landuse-dashboard/internal/ingest"
	"github.com/mauv0809/landuse-dashboard/internal/models"
	"github.com/mauv0809/landuse-dashboard/internal/pipeline"
	"github.com/mauv0809/landuse-dashboard/internal/table"
)

// Response is the JSON envelope for admin endpoints and errors.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Count   int    `json:"count,omitempty"`
	Elapsed string `json:"elapsed,omitempty"`
}

func notReady(c echo.Context) error {
	return c.JSON(http.StatusServiceUnavailable, Response{
		Success: false,
		Message: "Data is not loaded yet. Try again shortly or POST /admin/refresh.",
	})
}

// Figures handles GET /api/figures
// Returns the five dashboard figures.
func (h *Handler) Figures(c echo.Context) error {
	snap := h.Snapshot()
	if snap == nil {
		return notReady(c)
	}
	return c.JSON(http.StatusOK, snap.Figures)
}

// Table handles GET /api/table
// Returns the wide table rows. Query params:
// - country: exact country name (optional)
// - year: four-digit year (optional)
func (h *Handler) Table(c echo.Context) error {
	snap := h.Snapshot()
	if snap == nil {
		return notReady(c)
	}
	t := snap.Table

	rows := t.Rows()
	if country := strings.TrimSpace(c.QueryParam("country")); country != "" {
		rows = t.ForCountry(country)
	}
	if yearParam := strings.TrimSpace(c.QueryParam("year")); yearParam != "" {
		year, err := strconv.ParseFloat(yearParam, 64)
		if err != nil {
			return c.JSON(http.StatusBadRequest, Response{
				Success: false,
				Message: fmt.Sprintf("year must be a number, got %q", yearParam),
			})
		}
		rows = filterYear(rows, year)
	}

	features := t.Features()
	out := make([]models.TableRow, 0, len(rows))
	for _, r := range rows {
		out = append(out, models.TableRow{
			Country:  r.Country,
			Year:     r.Year,
			Features: features,
			Values:   r.Values,
		})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"columns":   append([]string{"country", "year"}, features...),
		"countries": t.Countries(),
		"rows":      out,
		"total":     len(out),
	})
}

func filterYear(rows []table.Row, year float64) []table.Row {
	out := make([]table.Row, 0, len(rows))
	for _, r := range rows {
		if r.Year == year {
			out = append(out, r)
		}
	}
	return out
}

// TableCSV handles GET /api/table.csv
func (h *Handler) TableCSV(c echo.Context) error {
	snap := h.Snapshot()
	if snap == nil {
		return notReady(c)
	}

	c.Response().Header().Set(echo.HeaderContentType, "text/csv; charset=utf-8")
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="indicators.csv"`)
	c.Response().WriteHeader(http.StatusOK)
	return snap.Table.WriteCSV(c.Response())
}

// RefreshNow re-runs the pipeline, persists the result when a store is
// configured and then serves it. Refreshes are serialised, so a slower run
// can never replace the result of one that started after it. On error the
// current snapshot stays in place.
func (h *Handler) RefreshNow(ctx context.Context) (*pipeline.Snapshot, error) {
	h.refreshMu.Lock()
	defer h.refreshMu.Unlock()

	snap, err := h.refresher.Run(ctx)
	if err != nil {
		return nil, err
	}

	if h.store != nil {
		count, err := h.store.SaveSnapshot(ctx, snap)
		if err != nil {
			return nil, fmt.Errorf("saving snapshot: %w", err)
		}
		log.Printf("Saved %d indicator values", count)
	}

	h.SetSnapshot(snap)
	return snap, nil
}

// Refresh handles POST /admin/refresh
// Re-runs the pipeline, swaps the served snapshot and persists it when a
// store is configured. A failed refresh leaves the current snapshot in place.
func (h *Handler) Refresh(c echo.Context) error {
	start := time.Now()

	log.Println("Starting dashboard refresh...")
	snap, err := h.RefreshNow(c.Request().Context())
	if err != nil {
		log.Printf("Error refreshing dashboard: %v", err)
		status := http.StatusInternalServerError
		var te *ingest.TransportError
		if errors.As(err, &te) {
			status = http.StatusBadGateway
		}
		return c.JSON(status, Response{
			Success: false,
			Message: fmt.Sprintf("Failed to refresh: %v", err),
		})
	}

	elapsed := since(start)
	log.Printf("Dashboard refresh complete: %d rows in %s", snap.Table.Len(), elapsed)

	return c.JSON(http.StatusOK, Response{
		Success: true,
		Message: fmt.Sprintf("Successfully refreshed %d rows", snap.Table.Len()),
		Count:   snap.Table.Len(),
		Elapsed: elapsed,
	})
}

// Status handles GET /admin/status
func (h *Handler) Status(c echo.Context) error {
	ctx := c.Request().Context()

	status := map[string]interface{}{
		"loaded": false,
	}
	if snap := h.Snapshot(); snap != nil {
		status["loaded"] = true
		status["rows"] = snap.Table.Len()
		status["countries"] = len(snap.Table.Countries())
		status["observations"] = snap.Observations
		status["refreshed_at"] = snap.RefreshedAt.UTC().Format(time.RFC3339)
	}
	if h.store != nil {
		refreshes, err := h.store.GetRefreshCount(ctx)
		if err != nil {
			log.Printf("Error counting refreshes: %v", err)
		} else {
			status["stored_refreshes"] = refreshes
		}
	}

	return c.JSON(http.StatusOK, status)
}
