package ingest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func observationsJSON(feature string, points ...string) string {
	return fmt.Sprintf(`[{"page":1,"pages":1,"per_page":1000,"total":%d,"sourceid":"2"},[%s]]`, len(points), strings.Join(points, ","))
}

func point(country, year, value string) string {
	return fmt.Sprintf(`{"country":{"id":"XX","value":%q},"date":%q,"value":%s}`, country, year, value)
}

func TestFetchIndicatorRequest(t *testing.T) {
	var gotPath, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		_, _ = w.Write([]byte(observationsJSON("", point("Brazil", "2015", "0.3"))))
	}))
	defer srv.Close()

	c := NewClient(Options{BaseURL: srv.URL + "/"})
	obs, err := c.FetchIndicator(context.Background(), []string{"br", "ca"}, YearRange{Start: 1990, End: 2015}, arable)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotPath != "/country/br;ca/indicator/AG.LND.ARBL.HA.PC" {
		t.Errorf("unexpected path %q", gotPath)
	}
	if gotQuery != "date=1990%3A2015&format=json&per_page=1000" {
		t.Errorf("unexpected query %q", gotQuery)
	}
	if len(obs) != 1 || obs[0].Country != "Brazil" || obs[0].Feature != arable.Feature {
		t.Fatalf("unexpected observations: %#v", obs)
	}
}

func TestFetchIndicatorPerPage(t *testing.T) {
	var gotPerPage string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPerPage = r.URL.Query().Get("per_page")
		_, _ = w.Write([]byte(`[{},[]]`))
	}))
	defer srv.Close()

	c := NewClient(Options{BaseURL: srv.URL, PerPage: 50})
	if _, err := c.FetchIndicator(context.Background(), []string{"us"}, YearRange{Start: 2000, End: 2001}, arable); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotPerPage != "50" {
		t.Fatalf("expected per_page=50, got %q", gotPerPage)
	}
}

func TestFetchIndicatorNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream unavailable"))
	}))
	defer srv.Close()

	c := NewClient(Options{BaseURL: srv.URL})
	_, err := c.FetchIndicator(context.Background(), []string{"us"}, YearRange{Start: 1990, End: 2015}, arable)

	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("expected *TransportError, got %T: %v", err, err)
	}
	if te.StatusCode != http.StatusBadGateway {
		t.Errorf("expected status 502, got %d", te.StatusCode)
	}
	if te.Snippet != "upstream unavailable" {
		t.Errorf("unexpected snippet %q", te.Snippet)
	}
}

func TestFetchIndicatorConnectionFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := NewClient(Options{BaseURL: url})
	_, err := c.FetchIndicator(context.Background(), []string{"us"}, YearRange{Start: 1990, End: 2015}, arable)

	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("expected *TransportError, got %T: %v", err, err)
	}
	if te.StatusCode != 0 {
		t.Errorf("expected no status, got %d", te.StatusCode)
	}
}

func TestFetchIndicatorMalformedJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"page":1}, [{"country":`))
	}))
	defer srv.Close()

	c := NewClient(Options{BaseURL: srv.URL})
	_, err := c.FetchIndicator(context.Background(), []string{"us"}, YearRange{Start: 1990, End: 2015}, arable)

	var fe *FormatError
	if !errors.As(err, &fe) {
		t.Fatalf("expected *FormatError, got %T: %v", err, err)
	}
}

func newIndicatorServer(t *testing.T, bodies map[string]string, delays map[string]time.Duration) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		parts := strings.Split(r.URL.Path, "/")
		code := parts[len(parts)-1]
		if d := delays[code]; d > 0 {
			time.Sleep(d)
		}
		body, ok := bodies[code]
		if !ok {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(body))
	}))
}

func TestFetchAllKeepsIndicatorOrder(t *testing.T) {
	bodies := map[string]string{}
	for i, ind := range DefaultIndicators {
		bodies[ind.Code] = observationsJSON("", point("Brazil", "2015", fmt.Sprint(i+1)))
	}
	// The first indicator finishes last.
	delays := map[string]time.Duration{DefaultIndicators[0].Code: 50 * time.Millisecond}
	srv := newIndicatorServer(t, bodies, delays)
	defer srv.Close()

	c := NewClient(Options{BaseURL: srv.URL, Workers: 4})
	obs, err := c.FetchAll(context.Background(), []string{"br"}, YearRange{Start: 2015, End: 2015}, DefaultIndicators)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(obs) != len(DefaultIndicators) {
		t.Fatalf("expected %d observations, got %d", len(DefaultIndicators), len(obs))
	}
	for i, o := range obs {
		if o.Feature != DefaultIndicators[i].Feature {
			t.Errorf("obs[%d]: expected feature %s, got %s", i, DefaultIndicators[i].Feature, o.Feature)
		}
	}
}

func TestFetchAllEmptyIndicator(t *testing.T) {
	bodies := map[string]string{}
	for _, ind := range DefaultIndicators {
		bodies[ind.Code] = observationsJSON("", point("Brazil", "2015", "1"), point("Canada", "2015", "2"))
	}
	bodies[DefaultIndicators[2].Code] = `[{"page":0,"pages":0,"total":0}, []]`
	srv := newIndicatorServer(t, bodies, nil)
	defer srv.Close()

	c := NewClient(Options{BaseURL: srv.URL, Workers: 2})
	obs, err := c.FetchAll(context.Background(), []string{"br", "ca"}, YearRange{Start: 2015, End: 2015}, DefaultIndicators)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(obs) != 6 {
		t.Fatalf("expected 6 observations, got %d", len(obs))
	}
}

func TestFetchAllAbortsOnFailure(t *testing.T) {
	bodies := map[string]string{}
	for _, ind := range DefaultIndicators[:3] {
		bodies[ind.Code] = observationsJSON("", point("Brazil", "2015", "1"))
	}
	srv := newIndicatorServer(t, bodies, nil)
	defer srv.Close()

	c := NewClient(Options{BaseURL: srv.URL, Workers: 1})
	obs, err := c.FetchAll(context.Background(), []string{"br"}, YearRange{Start: 2015, End: 2015}, DefaultIndicators)
	if err == nil {
		t.Fatal("expected an error")
	}
	if obs != nil {
		t.Fatalf("expected no partial result, got %d observations", len(obs))
	}
	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("expected *TransportError, got %T: %v", err, err)
	}
	if te.Indicator != DefaultIndicators[3].Code {
		t.Errorf("expected failure on %s, got %s", DefaultIndicators[3].Code, te.Indicator)
	}
}

func TestFetchAllBoundedWorkers(t *testing.T) {
	var inFlight, peak atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		inFlight.Add(-1)
		_, _ = w.Write([]byte(`[{},[]]`))
	}))
	defer srv.Close()

	c := NewClient(Options{BaseURL: srv.URL, Workers: 2})
	if _, err := c.FetchAll(context.Background(), []string{"us"}, YearRange{Start: 1990, End: 2015}, DefaultIndicators); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if peak.Load() > 2 {
		t.Fatalf("expected at most 2 concurrent requests, saw %d", peak.Load())
	}
}
