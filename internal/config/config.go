package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mauv0809/landuse-dashboard/internal/ingest"
	"gopkg.in/yaml.v3"
)

// DefaultCountries are the ISO codes of the ten largest economies.
var DefaultCountries = []string{"us", "cn", "jp", "de", "gb", "in", "fr", "br", "it", "ca"}

const (
	defaultPort    = "8080"
	defaultPerPage = 1000
	defaultWorkers = 4
)

// Config is everything the pipeline and the server need.
//
// Countries and Years are the only inputs the fetch-and-reshape core treats as
// adjustable; the rest tunes transport, serving and storage.
type Config struct {
	Countries  []string
	Years      ingest.YearRange
	Indicators []ingest.Indicator

	// SnapshotYear is the single year shown in the bar charts.
	SnapshotYear int

	BaseURL      string
	PerPage      int
	Workers      int
	RateLimitRPS float64
	// HTTPTimeout of zero means no client timeout.
	HTTPTimeout time.Duration

	Port        string
	DatabaseURL string
}

// Default returns the stock dashboard configuration: ten countries, 1990-2015,
// the four land-use indicators.
func Default() Config {
	countries := make([]string, len(DefaultCountries))
	copy(countries, DefaultCountries)
	indicators := make([]ingest.Indicator, len(ingest.DefaultIndicators))
	copy(indicators, ingest.DefaultIndicators)

	return Config{
		Countries:    countries,
		Years:        ingest.YearRange{Start: 1990, End: 2015},
		Indicators:   indicators,
		SnapshotYear: 2015,
		BaseURL:      ingest.DefaultBaseURL,
		PerPage:      defaultPerPage,
		Workers:      defaultWorkers,
		Port:         defaultPort,
	}
}

// Load reads .env (if present), an optional YAML file named by DASHBOARD_CONFIG
// and then the process environment, in that order of increasing precedence.
func Load() (Config, error) {
	// Load .env file if it exists (local dev)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := Default()
	if path := os.Getenv("DASHBOARD_CONFIG"); path != "" {
		if err := cfg.ApplyFile(path); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// fileConfig mirrors the YAML layout of a dashboard config file.
type fileConfig struct {
	Countries []string `yaml:"countries"`
	Years     *struct {
		Start int `yaml:"start"`
		End   int `yaml:"end"`
	} `yaml:"years"`
	SnapshotYear int `yaml:"snapshot_year"`
	Indicators   []struct {
		Code    string `yaml:"code"`
		Feature string `yaml:"feature"`
	} `yaml:"indicators"`
	BaseURL string `yaml:"base_url"`
	PerPage int    `yaml:"per_page"`
}

// ApplyFile overlays the settings found in a YAML file.
func (c *Config) ApplyFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	return c.ApplyYAML(b)
}

// ApplyYAML overlays settings from YAML bytes. Absent keys leave the current
// value untouched.
func (c *Config) ApplyYAML(b []byte) error {
	var raw fileConfig
	if err := yaml.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}

	if len(raw.Countries) > 0 {
		c.Countries = normalizeCountries(raw.Countries)
	}
	if raw.Years != nil {
		c.Years = ingest.YearRange{Start: raw.Years.Start, End: raw.Years.End}
		c.SnapshotYear = raw.Years.End
	}
	if raw.SnapshotYear != 0 {
		c.SnapshotYear = raw.SnapshotYear
	}
	if len(raw.Indicators) > 0 {
		c.Indicators = c.Indicators[:0]
		for i, ind := range raw.Indicators {
			code := strings.TrimSpace(ind.Code)
			feature := strings.TrimSpace(ind.Feature)
			if code == "" || feature == "" {
				return fmt.Errorf("indicator %d: code and feature are required", i)
			}
			c.Indicators = append(c.Indicators, ingest.Indicator{Code: code, Feature: feature})
		}
	}
	if raw.BaseURL != "" {
		c.BaseURL = raw.BaseURL
	}
	if raw.PerPage > 0 {
		c.PerPage = raw.PerPage
	}
	return nil
}

// ApplyEnv overlays settings from environment variables looked up by getenv.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if v := strings.TrimSpace(getenv("COUNTRIES")); v != "" {
		c.Countries = normalizeCountries(strings.Split(v, ","))
	}

	yearsChanged := false
	if v := strings.TrimSpace(getenv("YEAR_START")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid YEAR_START %q: %w", v, err)
		}
		c.Years.Start = n
		yearsChanged = true
	}
	if v := strings.TrimSpace(getenv("YEAR_END")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid YEAR_END %q: %w", v, err)
		}
		c.Years.End = n
		yearsChanged = true
	}
	if v := strings.TrimSpace(getenv("SNAPSHOT_YEAR")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid SNAPSHOT_YEAR %q: %w", v, err)
		}
		c.SnapshotYear = n
	} else if yearsChanged {
		c.SnapshotYear = c.Years.End
	}

	if v := strings.TrimSpace(getenv("WORLDBANK_BASE_URL")); v != "" {
		c.BaseURL = strings.TrimRight(v, "/")
	}
	if v := strings.TrimSpace(getenv("PER_PAGE")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid PER_PAGE %q", v)
		}
		c.PerPage = n
	}
	if v := strings.TrimSpace(getenv("FETCH_WORKERS")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid FETCH_WORKERS %q", v)
		}
		c.Workers = n
	}
	if v := strings.TrimSpace(getenv("RATE_LIMIT_RPS")); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid RATE_LIMIT_RPS %q: %w", v, err)
		}
		c.RateLimitRPS = f
	}
	if v := strings.TrimSpace(getenv("HTTP_TIMEOUT")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid HTTP_TIMEOUT %q: %w", v, err)
		}
		c.HTTPTimeout = d
	}
	if v := strings.TrimSpace(getenv("PORT")); v != "" {
		c.Port = v
	}
	if v := strings.TrimSpace(getenv("DATABASE_URL")); v != "" {
		c.DatabaseURL = v
	}
	return nil
}

// Features returns the table column names in indicator order.
func (c Config) Features() []string {
	out := make([]string, 0, len(c.Indicators))
	for _, ind := range c.Indicators {
		out = append(out, ind.Feature)
	}
	return out
}

func normalizeCountries(in []string) []string {
	out := make([]string, 0, len(in))
	for _, code := range in {
		code = strings.ToLower(strings.TrimSpace(code))
		if code != "" {
			out = append(out, code)
		}
	}
	return out
}
