package main

import (
	"context"
	"log"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/mauv0809/landuse-dashboard/internal/config"
	"github.com/mauv0809/landuse-dashboard/internal/db"
	"github.com/mauv0809/landuse-dashboard/internal/handlers"
	"github.com/mauv0809/landuse-dashboard/internal/pipeline"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	ctx := context.Background()

	runner := pipeline.NewRunner(cfg, pipeline.NewClient(cfg))

	// Database is optional: without it the dashboard lives in memory only
	var repo *db.Repository
	if cfg.DatabaseURL != "" {
		if err := db.RunMigrations(cfg.DatabaseURL); err != nil {
			log.Printf("Warning: Could not run migrations: %v", err)
		} else {
			log.Println("Migrations completed")
		}

		pool, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Printf("Warning: Could not connect to database: %v", err)
			log.Println("Continuing without database connection...")
		} else {
			defer pool.Close()
			repo = db.NewRepository(pool)
			log.Println("Connected to database")
		}
	} else {
		log.Println("DATABASE_URL not set, snapshots will not be persisted")
	}

	var h *handlers.Handler
	if repo != nil {
		h = handlers.New(runner, repo)
	} else {
		h = handlers.New(runner, nil)
	}

	// Serve the last stored table straight away if there is one
	if repo != nil {
		wide, last, err := repo.LoadTable(ctx, cfg.Features())
		if err != nil {
			log.Printf("Warning: Could not load stored table: %v", err)
		} else if wide != nil {
			snap, err := pipeline.NewSnapshot(wide, cfg, last.Observations, last.RefreshedAt)
			if err != nil {
				log.Printf("Warning: Could not build figures from stored table: %v", err)
			} else {
				h.SetSnapshot(snap)
				log.Printf("Loaded stored table: %d rows from %s", wide.Len(), last.RefreshedAt.Format(time.RFC3339))
			}
		}
	}

	// Refresh in the background so the server starts immediately
	go func() {
		snap, err := h.RefreshNow(ctx)
		if err != nil {
			log.Printf("Initial refresh failed: %v", err)
			return
		}
		log.Printf("Initial refresh complete: %d rows", snap.Table.Len())
	}()

	// Setup Echo
	e := echo.New()
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:   true,
		LogURI:      true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			if v.Error == nil {
				log.Printf("%d %s", v.Status, v.URI)
			} else {
				log.Printf("%d %s - %v", v.Status, v.URI, v.Error)
			}
			return nil
		},
	}))
	e.Use(middleware.Recover())

	h.RegisterRoutes(e)

	log.Printf("Starting server on :%s", cfg.Port)
	if err := e.Start(":" + cfg.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
