package ingest

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const defaultPerPage = 1000

// Options configures a Client. Zero values select the defaults.
type Options struct {
	BaseURL string
	// PerPage is the single page size requested; anything beyond it is dropped.
	PerPage int
	// Workers bounds how many indicators are fetched at once. 1 is sequential.
	Workers int
	// RateLimitRPS limits requests per second across workers. <=0 disables.
	RateLimitRPS float64
	// Timeout is the HTTP client timeout. Zero means none.
	Timeout time.Duration
	// HTTPClient overrides the client built from Timeout.
	HTTPClient *http.Client
}

// Client fetches indicator series from the World Bank API.
type Client struct {
	baseURL    string
	perPage    int
	workers    int
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient creates a new World Bank API client.
func NewClient(opts Options) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		perPage:    opts.PerPage,
		workers:    opts.Workers,
		httpClient: opts.HTTPClient,
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.perPage <= 0 {
		c.perPage = defaultPerPage
	}
	if c.workers <= 0 {
		c.workers = 1
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: opts.Timeout}
	}
	if opts.RateLimitRPS > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(opts.RateLimitRPS), 1)
	}
	return c
}

// FetchAll fetches every indicator for the given countries and years. One
// request is made per indicator; the first failure aborts the rest and no
// partial result is returned. Observations come back grouped in indicator
// order whatever order the requests finish in.
func (c *Client) FetchAll(ctx context.Context, countries []string, years YearRange, indicators []Indicator) ([]Observation, error) {
	results := make([][]Observation, len(indicators))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)
	for i, ind := range indicators {
		i, ind := i, ind
		g.Go(func() error {
			obs, err := c.FetchIndicator(gctx, countries, years, ind)
			if err != nil {
				return fmt.Errorf("fetching %s: %w", ind.Code, err)
			}
			results[i] = obs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	total := 0
	for _, obs := range results {
		total += len(obs)
	}
	all := make([]Observation, 0, total)
	for _, obs := range results {
		all = append(all, obs...)
	}
	return all, nil
}

// FetchIndicator fetches a single indicator series.
func (c *Client) FetchIndicator(ctx context.Context, countries []string, years YearRange, ind Indicator) ([]Observation, error) {
	u, err := c.indicatorURL(countries, years, ind.Code)
	if err != nil {
		return nil, err
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	body, err := c.doRequest(ctx, ind, u)
	if err != nil {
		return nil, err
	}

	obs, err := ParseResponse(ind, body)
	if err != nil {
		return nil, err
	}
	if len(obs) == 0 {
		log.Printf("No observations for %s (%s)", ind.Code, ind.Feature)
	} else {
		log.Printf("Fetched %d observations for %s", len(obs), ind.Code)
	}
	return obs, nil
}

// indicatorURL builds {base}/country/{a;b;c}/indicator/{code}?date=&format=json&per_page=.
func (c *Client) indicatorURL(countries []string, years YearRange, code string) (string, error) {
	u, err := url.Parse(fmt.Sprintf("%s/country/%s/indicator/%s", c.baseURL, strings.Join(countries, ";"), code))
	if err != nil {
		return "", fmt.Errorf("invalid indicator URL: %w", err)
	}

	q := u.Query()
	q.Set("format", "json")
	q.Set("date", years.String())
	q.Set("per_page", strconv.Itoa(c.perPage))
	u.RawQuery = q.Encode()

	return u.String(), nil
}

func (c *Client) doRequest(ctx context.Context, ind Indicator, urlStr string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Indicator: ind.Code, Err: fmt.Errorf("executing request: %w", err)}
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, &TransportError{Indicator: ind.Code, StatusCode: httpResp.StatusCode, Err: fmt.Errorf("reading response: %w", err)}
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, &TransportError{
			Indicator:  ind.Code,
			StatusCode: httpResp.StatusCode,
			Snippet:    snippet(body),
		}
	}

	return body, nil
}
