package handlers

import (
	"bytes"
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"
	"github.com/mauv0809/landuse-dashboard/internal/pipeline"
	"github.com/mauv0809/landuse-dashboard/internal/views"
)

// Refresher produces a fresh snapshot.
type Refresher interface {
	Run(ctx context.Context) (*pipeline.Snapshot, error)
}

// SnapshotStore persists snapshots. It is optional.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, s *pipeline.Snapshot) (int, error)
	GetRefreshCount(ctx context.Context) (int, error)
}

// Handler serves the dashboard from the most recent snapshot.
type Handler struct {
	refresher Refresher
	store     SnapshotStore

	mu       sync.RWMutex
	snapshot *pipeline.Snapshot

	// refreshMu serialises refreshes.
	refreshMu sync.Mutex
}

// New creates a handler. store may be nil.
func New(refresher Refresher, store SnapshotStore) *Handler {
	return &Handler{refresher: refresher, store: store}
}

// RegisterRoutes wires every endpoint onto e.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.Health)
	e.GET("/", h.Index)

	api := e.Group("/api")
	api.GET("/figures", h.Figures)
	api.GET("/table", h.Table)
	api.GET("/table.csv", h.TableCSV)

	admin := e.Group("/admin")
	admin.POST("/refresh", h.Refresh)
	admin.GET("/status", h.Status)
}

// SetSnapshot swaps in a new snapshot.
func (h *Handler) SetSnapshot(s *pipeline.Snapshot) {
	h.mu.Lock()
	h.snapshot = s
	h.mu.Unlock()
}

// Snapshot returns the current snapshot, nil before the first refresh.
func (h *Handler) Snapshot() *pipeline.Snapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.snapshot
}

// Health returns application health status
// @Summary Health check
// @Description Returns the health status of the application
// @Tags system
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// Index renders the dashboard page.
func (h *Handler) Index(c echo.Context) error {
	snap := h.Snapshot()
	if snap == nil {
		return Render(c, http.StatusServiceUnavailable, views.Loading())
	}
	return Render(c, http.StatusOK, views.Index(snap.Figures, snap.RefreshedAt))
}

// Render writes a templ component as an HTML response.
func Render(c echo.Context, status int, t templ.Component) error {
	var buf bytes.Buffer
	if err := t.Render(c.Request().Context(), &buf); err != nil {
		return err
	}
	return c.HTMLBlob(status, buf.Bytes())
}

func since(t time.Time) string {
	return time.Since(t).Round(time.Millisecond).String()
}
